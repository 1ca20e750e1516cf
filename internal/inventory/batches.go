package inventory

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shopledger/backend/internal/apperr"
	"shopledger/backend/internal/domain"
)

// Receive adds a purchased lot to the product.
func Receive(product *domain.Product, batch domain.Batch) error {
	batch.LotNumber = strings.TrimSpace(batch.LotNumber)
	if batch.LotNumber == "" {
		return apperr.Validationf("lot number is required").WithID("product_id", product.ID)
	}
	if batch.Quantity < 1 {
		return apperr.Validationf("received quantity must be positive").WithID("product_id", product.ID)
	}
	if batch.UnitCost.IsNegative() {
		return apperr.Validationf("unit cost must not be negative").WithID("product_id", product.ID)
	}
	if _, exists := product.BatchByLot(batch.LotNumber); exists {
		return apperr.Conflictf("lot %s already exists", batch.LotNumber).WithID("product_id", product.ID)
	}
	if batch.Received == 0 {
		batch.Received = batch.Quantity
	}
	product.Batches = append(product.Batches, batch)
	return nil
}

// ReturnToSupplier takes quantity out of the named lot.
func ReturnToSupplier(product *domain.Product, lot string, quantity int) (domain.Allocation, error) {
	idx, ok := product.BatchByLot(lot)
	if !ok {
		return domain.Allocation{}, apperr.NotFoundf("lot", lot).WithID("product_id", product.ID)
	}
	batch := &product.Batches[idx]
	if quantity < 1 {
		return domain.Allocation{}, apperr.Validationf("quantity must be positive").WithID("product_id", product.ID)
	}
	if batch.Quantity < quantity {
		return domain.Allocation{}, apperr.Stock(product.ID, quantity, batch.Quantity).WithID("lot", lot)
	}
	batch.Quantity -= quantity
	return domain.Allocation{
		BatchID:   batch.ID,
		LotNumber: batch.LotNumber,
		Quantity:  quantity,
		UnitCost:  batch.UnitCost,
	}, nil
}

// Revise corrects a lot created by a purchase. Units already sold stay
// consumed, so the new received quantity may not drop below them.
func Revise(product *domain.Product, lot string, received int, unitCost decimal.Decimal, expiresAt *time.Time) error {
	idx, ok := product.BatchByLot(lot)
	if !ok {
		return apperr.NotFoundf("lot", lot).WithID("product_id", product.ID)
	}
	batch := &product.Batches[idx]
	consumed := batch.Received - batch.Quantity
	if received < consumed {
		return apperr.Conflictf("lot %s has %d units consumed, cannot reduce to %d", lot, consumed, received).WithID("product_id", product.ID)
	}
	batch.Received = received
	batch.Quantity = received - consumed
	batch.UnitCost = unitCost
	batch.ExpiresAt = expiresAt
	return nil
}

// Valuation is the cost of the remaining stock.
func Valuation(product domain.Product) decimal.Decimal {
	total := decimal.Zero
	for _, b := range product.Batches {
		total = total.Add(b.UnitCost.Mul(decimal.NewFromInt(int64(b.Quantity))))
	}
	return total
}

// Summarize reports on-hand stock, valuation and the lots expiring before
// now plus warningDays.
func Summarize(product domain.Product, now time.Time, warningDays int) domain.StockLine {
	line := domain.StockLine{
		ProductID: product.ID,
		Name:      product.Name,
		OnHand:    product.OnHand(),
		Valuation: Valuation(product),
	}
	horizon := now.AddDate(0, 0, warningDays)
	for _, b := range SortFEFO(product.Batches) {
		if b.Quantity < 1 || b.ExpiresAt == nil {
			continue
		}
		if line.NearestExpiry == nil {
			expiry := *b.ExpiresAt
			line.NearestExpiry = &expiry
		}
		if !b.ExpiresAt.After(horizon) {
			line.Expiring = append(line.Expiring, b)
		}
	}
	return line
}
