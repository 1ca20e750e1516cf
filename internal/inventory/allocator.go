package inventory

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"shopledger/backend/internal/apperr"
	"shopledger/backend/internal/domain"
)

// Plan is the computed deduction for one product. Computing a plan never
// touches the product; Apply performs the writes.
type Plan struct {
	ProductID string              `json:"product_id"`
	Quantity  int                 `json:"quantity"`
	Lines     []domain.Allocation `json:"lines"`
	TotalCost decimal.Decimal     `json:"total_cost"`
}

// UnitCost is the blended cost of one unit across the plan's batches.
func (p Plan) UnitCost() decimal.Decimal {
	if p.Quantity == 0 {
		return decimal.Zero
	}
	return p.TotalCost.DivRound(decimal.NewFromInt(int64(p.Quantity)), 4)
}

// compareFEFO orders dated batches before undated ones, earliest expiry
// first, then by purchase date and lot number.
func compareFEFO(a, b domain.Batch) int {
	switch {
	case a.ExpiresAt != nil && b.ExpiresAt == nil:
		return -1
	case a.ExpiresAt == nil && b.ExpiresAt != nil:
		return 1
	case a.ExpiresAt != nil && b.ExpiresAt != nil && !a.ExpiresAt.Equal(*b.ExpiresAt):
		return a.ExpiresAt.Compare(*b.ExpiresAt)
	}
	if c := a.PurchasedAt.Compare(b.PurchasedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.LotNumber, b.LotNumber)
}

// SortFEFO returns a sorted copy of batches.
func SortFEFO(batches []domain.Batch) []domain.Batch {
	sorted := slices.Clone(batches)
	slices.SortStableFunc(sorted, compareFEFO)
	return sorted
}

func Allocate(product domain.Product, quantity int) (Plan, error) {
	if quantity < 1 {
		return Plan{}, apperr.Validationf("quantity must be positive").WithID("product_id", product.ID)
	}
	available := product.OnHand()
	if available < quantity {
		return Plan{}, apperr.Stock(product.ID, quantity, available)
	}

	plan := Plan{ProductID: product.ID, Quantity: quantity, TotalCost: decimal.Zero}
	remaining := quantity
	for _, batch := range SortFEFO(product.Batches) {
		if remaining == 0 {
			break
		}
		if batch.Quantity < 1 {
			continue
		}
		used := min(remaining, batch.Quantity)
		plan.Lines = append(plan.Lines, domain.Allocation{
			BatchID:   batch.ID,
			LotNumber: batch.LotNumber,
			Quantity:  used,
			UnitCost:  batch.UnitCost,
		})
		plan.TotalCost = plan.TotalCost.Add(batch.UnitCost.Mul(decimal.NewFromInt(int64(used))))
		remaining -= used
	}
	return plan, nil
}

// Apply deducts a plan from product. The plan must have been computed from
// the same product state; a stale plan is rejected before any batch changes.
func Apply(product *domain.Product, plan Plan) error {
	indexes := make([]int, len(plan.Lines))
	for i, line := range plan.Lines {
		idx, ok := product.BatchByID(line.BatchID)
		if !ok {
			return apperr.NotFoundf("batch", line.BatchID).WithID("product_id", product.ID)
		}
		if product.Batches[idx].Quantity < line.Quantity {
			return apperr.Stock(product.ID, line.Quantity, product.Batches[idx].Quantity).WithID("batch_id", line.BatchID)
		}
		indexes[i] = idx
	}
	for i, line := range plan.Lines {
		product.Batches[indexes[i]].Quantity -= line.Quantity
	}
	return nil
}

// Restock puts allocations back into the batches they came from. When a
// batch no longer exists the quantity goes to the most recently purchased
// batch; a product with no batches at all gets a new one for the lot.
func Restock(product *domain.Product, allocations []domain.Allocation, batchID func() string, at time.Time) {
	for _, a := range allocations {
		if a.Quantity < 1 {
			continue
		}
		if idx, ok := product.BatchByID(a.BatchID); ok {
			product.Batches[idx].Quantity += a.Quantity
			continue
		}
		if idx, ok := latestBatch(product.Batches); ok {
			product.Batches[idx].Quantity += a.Quantity
			continue
		}
		product.Batches = append(product.Batches, domain.Batch{
			ID:          batchID(),
			LotNumber:   a.LotNumber,
			Quantity:    a.Quantity,
			UnitCost:    a.UnitCost,
			PurchasedAt: at,
		})
	}
}

func latestBatch(batches []domain.Batch) (int, bool) {
	best := -1
	for i := range batches {
		if best < 0 || batches[i].PurchasedAt.After(batches[best].PurchasedAt) {
			best = i
		}
	}
	return best, best >= 0
}

// Outstanding subtracts already reversed allocations from an original
// allocation record, per batch.
func Outstanding(original []domain.Allocation, reversed ...[]domain.Allocation) []domain.Allocation {
	left := slices.Clone(original)
	for _, set := range reversed {
		for _, r := range set {
			qty := r.Quantity
			for i := range left {
				if qty == 0 {
					break
				}
				if left[i].BatchID != r.BatchID || left[i].Quantity == 0 {
					continue
				}
				take := min(qty, left[i].Quantity)
				left[i].Quantity -= take
				qty -= take
			}
		}
	}
	return slices.DeleteFunc(left, func(a domain.Allocation) bool { return a.Quantity == 0 })
}

// TakeForReturn picks quantity units from an allocation record, undoing the
// last-drawn batches first.
func TakeForReturn(outstanding []domain.Allocation, quantity int) ([]domain.Allocation, error) {
	total := 0
	for _, a := range outstanding {
		total += a.Quantity
	}
	if quantity > total {
		return nil, apperr.Validationf("return quantity %d exceeds outstanding %d", quantity, total)
	}

	taken := make([]domain.Allocation, 0, len(outstanding))
	remaining := quantity
	for i := len(outstanding) - 1; i >= 0 && remaining > 0; i-- {
		a := outstanding[i]
		use := min(remaining, a.Quantity)
		a.Quantity = use
		taken = append(taken, a)
		remaining -= use
	}
	slices.Reverse(taken)
	return taken, nil
}

// CostOf sums quantity times unit cost over allocations.
func CostOf(allocations []domain.Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.UnitCost.Mul(decimal.NewFromInt(int64(a.Quantity))))
	}
	return total
}
