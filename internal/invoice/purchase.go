package invoice

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shopledger/backend/internal/apperr"
	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/inventory"
	"shopledger/backend/internal/store"
)

type lotKey struct {
	productID string
	lot       string
}

// CreatePurchase receives one batch per line and raises the supplier's
// balance by the base-currency total.
func (e *Engine) CreatePurchase(tx store.Tx, req domain.PurchaseRequest) (domain.Invoice, error) {
	supplierID := strings.TrimSpace(req.SupplierID)
	if supplierID == "" {
		return domain.Invoice{}, apperr.Validationf("a purchase needs a supplier")
	}
	if len(req.Lines) == 0 {
		return domain.Invoice{}, apperr.Validationf("purchase has no lines")
	}
	currency, rate, err := e.pricing(req.Currency, req.ExchangeRate)
	if err != nil {
		return domain.Invoice{}, err
	}
	if _, err := e.ledger.GetParty(tx, domain.PartySupplier, supplierID); err != nil {
		return domain.Invoice{}, err
	}

	now := e.now()
	inv := domain.Invoice{
		ID:           newInvoiceID(),
		Kind:         domain.InvoicePurchase,
		PartyID:      supplierID,
		Currency:     currency,
		ExchangeRate: rate,
		Note:         strings.TrimSpace(req.Note),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	products := newProductSet(tx)
	for i, pl := range req.Lines {
		line, err := e.purchaseLine(i, pl, currency, rate)
		if err != nil {
			return domain.Invoice{}, err
		}
		product, err := products.get(pl.ProductID)
		if err != nil {
			return domain.Invoice{}, err
		}
		line.Name = product.Name
		batch := domain.Batch{
			ID:                newBatchID(),
			LotNumber:         line.LotNumber,
			Quantity:          line.Quantity,
			Received:          line.Quantity,
			UnitCost:          line.UnitCost,
			PurchasedAt:       now,
			ExpiresAt:         line.ExpiresAt,
			PurchaseInvoiceID: inv.ID,
		}
		if err := inventory.Receive(product, batch); err != nil {
			return domain.Invoice{}, err
		}
		line.Allocations = []domain.Allocation{{
			BatchID:   batch.ID,
			LotNumber: batch.LotNumber,
			Quantity:  batch.Quantity,
			UnitCost:  batch.UnitCost,
		}}
		inv.Lines = append(inv.Lines, line)
	}

	if err := e.settle(&inv, req.Discount); err != nil {
		return domain.Invoice{}, err
	}
	if inv.Number, err = e.nextNumber(tx, inv.Kind); err != nil {
		return domain.Invoice{}, err
	}
	if err := products.save(now); err != nil {
		return domain.Invoice{}, err
	}
	if err := e.save(tx, inv); err != nil {
		return domain.Invoice{}, err
	}
	if err := e.post(tx, domain.PartySupplier, inv, domain.TxPurchase); err != nil {
		return domain.Invoice{}, err
	}
	return inv, nil
}

// purchaseLine validates a request line and converts its unit cost to the
// base currency at the invoice rate.
func (e *Engine) purchaseLine(i int, pl domain.PurchaseLine, currency string, rate decimal.Decimal) (domain.LineItem, error) {
	lot := strings.TrimSpace(pl.LotNumber)
	if pl.ProductID == "" || lot == "" {
		return domain.LineItem{}, apperr.Validationf("line %d needs a product and a lot number", i)
	}
	if pl.Quantity < 1 {
		return domain.LineItem{}, apperr.Validationf("line %d quantity must be positive", i)
	}
	if pl.UnitCost.IsNegative() {
		return domain.LineItem{}, apperr.Validationf("line %d unit cost must not be negative", i)
	}
	baseCost, err := e.conv.Convert(pl.UnitCost, currency, rate)
	if err != nil {
		return domain.LineItem{}, err
	}
	var expires *time.Time
	if pl.ExpiresAt != nil {
		t := pl.ExpiresAt.UTC()
		expires = &t
	}
	return domain.LineItem{
		ProductID: pl.ProductID,
		Quantity:  pl.Quantity,
		UnitPrice: pl.UnitCost,
		UnitCost:  baseCost,
		LotNumber: lot,
		ExpiresAt: expires,
	}, nil
}

// EditPurchase replaces a purchase that has no returns. Lots kept on the
// invoice are revised in place, dropped lots are removed if untouched, and
// new lots are received. The supplier balance moves by the change in total.
func (e *Engine) EditPurchase(tx store.Tx, id string, req domain.PurchaseRequest) (domain.Invoice, error) {
	before, err := e.Get(tx, domain.InvoicePurchase, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	returns, err := e.ReturnsOf(tx, before)
	if err != nil {
		return domain.Invoice{}, err
	}
	if len(returns) > 0 {
		return domain.Invoice{}, apperr.Conflictf("purchase %s has returns and can no longer be edited", before.Number).WithID("invoice_id", id)
	}
	if strings.TrimSpace(req.SupplierID) != before.PartyID {
		return domain.Invoice{}, apperr.Validationf("the supplier of a purchase cannot change").WithID("invoice_id", id)
	}
	if len(req.Lines) == 0 {
		return domain.Invoice{}, apperr.Validationf("purchase has no lines").WithID("invoice_id", id)
	}
	currency, rate, err := e.pricing(req.Currency, req.ExchangeRate)
	if err != nil {
		return domain.Invoice{}, err
	}

	now := e.now()
	products := newProductSet(tx)
	existing := make(map[lotKey]bool, len(before.Lines))
	for _, line := range before.Lines {
		existing[lotKey{line.ProductID, line.LotNumber}] = true
	}

	after := before
	after.Lines = nil
	after.Currency = currency
	after.ExchangeRate = rate
	after.Note = strings.TrimSpace(req.Note)
	after.UpdatedAt = now

	kept := make(map[lotKey]bool, len(req.Lines))
	for i, pl := range req.Lines {
		line, err := e.purchaseLine(i, pl, currency, rate)
		if err != nil {
			return domain.Invoice{}, err
		}
		key := lotKey{line.ProductID, line.LotNumber}
		if kept[key] {
			return domain.Invoice{}, apperr.Validationf("lot %s appears twice", line.LotNumber).WithID("product_id", line.ProductID)
		}
		kept[key] = true

		product, err := products.get(line.ProductID)
		if err != nil {
			return domain.Invoice{}, err
		}
		line.Name = product.Name

		if existing[key] || ownsLot(product, line.LotNumber, before.ID) {
			if err := inventory.Revise(product, line.LotNumber, line.Quantity, line.UnitCost, line.ExpiresAt); err != nil {
				return domain.Invoice{}, err
			}
		} else {
			batch := domain.Batch{
				ID:                newBatchID(),
				LotNumber:         line.LotNumber,
				Quantity:          line.Quantity,
				Received:          line.Quantity,
				UnitCost:          line.UnitCost,
				PurchasedAt:       now,
				ExpiresAt:         line.ExpiresAt,
				PurchaseInvoiceID: before.ID,
			}
			if err := inventory.Receive(product, batch); err != nil {
				return domain.Invoice{}, err
			}
		}
		idx, _ := product.BatchByLot(line.LotNumber)
		b := product.Batches[idx]
		line.Allocations = []domain.Allocation{{BatchID: b.ID, LotNumber: b.LotNumber, Quantity: line.Quantity, UnitCost: b.UnitCost}}
		after.Lines = append(after.Lines, line)
	}

	var referenced map[string]bool
	for key := range existing {
		if kept[key] {
			continue
		}
		if referenced == nil {
			if referenced, err = referencedBatches(tx); err != nil {
				return domain.Invoice{}, err
			}
		}
		product, err := products.get(key.productID)
		if err != nil {
			return domain.Invoice{}, err
		}
		if err := dropLot(product, key.lot, referenced); err != nil {
			return domain.Invoice{}, err
		}
	}

	if err := e.settle(&after, req.Discount); err != nil {
		return domain.Invoice{}, err
	}
	if err := products.save(now); err != nil {
		return domain.Invoice{}, err
	}
	if err := e.save(tx, after); err != nil {
		return domain.Invoice{}, err
	}
	if err := e.repost(tx, domain.PartySupplier, before, after); err != nil {
		return domain.Invoice{}, err
	}
	return after, nil
}

// dropLot takes a lot off its purchase. Lots with sold units cannot be
// dropped. A lot that sale or return lines still point at is kept as an
// exhausted record; otherwise it is removed.
func dropLot(product *domain.Product, lot string, referenced map[string]bool) error {
	if err := inventory.Revise(product, lot, 0, decimal.Zero, nil); err != nil {
		if errors.Is(err, apperr.NotFound) {
			return nil
		}
		return err
	}
	idx, _ := product.BatchByLot(lot)
	if referenced[product.Batches[idx].ID] {
		return nil
	}
	product.Batches = append(product.Batches[:idx], product.Batches[idx+1:]...)
	return nil
}

// ownsLot reports whether lot on product was received by purchase id, which
// is the case for lots a previous edit dropped but had to keep.
func ownsLot(product *domain.Product, lot, purchaseID string) bool {
	idx, ok := product.BatchByLot(lot)
	return ok && product.Batches[idx].PurchaseInvoiceID == purchaseID
}

// referencedBatches collects the batch ids recorded in the allocations of
// every sale and sale return.
func referencedBatches(tx store.Tx) (map[string]bool, error) {
	all, err := store.LoadAll[domain.Invoice](tx, store.SaleInvoices)
	if err != nil {
		return nil, apperr.Persistence("scan sale allocations", err)
	}
	ids := make(map[string]bool)
	for _, inv := range all {
		for _, line := range inv.Lines {
			for _, a := range line.Allocations {
				ids[a.BatchID] = true
			}
		}
	}
	return ids, nil
}

// CreatePurchaseReturn sends units of purchased lots back to the supplier
// and lowers the supplier balance.
func (e *Engine) CreatePurchaseReturn(tx store.Tx, originalID string, req domain.ReturnRequest) (domain.Invoice, error) {
	original, err := e.Get(tx, domain.InvoicePurchase, originalID)
	if err != nil {
		return domain.Invoice{}, err
	}
	order, qty, err := returnLines(original, req.Lines)
	if err != nil {
		return domain.Invoice{}, err
	}
	prior, err := e.ReturnsOf(tx, original)
	if err != nil {
		return domain.Invoice{}, err
	}
	priorQty, _, priorBase := returnedSoFar(prior)

	now := e.now()
	products := newProductSet(tx)
	lines := make([]domain.LineItem, 0, len(order))
	for _, idx := range order {
		src := original.Lines[idx]
		want := qty[idx]
		if left := src.Quantity - priorQty[idx]; want > left {
			return domain.Invoice{}, apperr.Validationf("line %d: returning %d but only %d left to return", idx, want, left).WithID("invoice_id", original.ID)
		}
		product, err := products.get(src.ProductID)
		if err != nil {
			return domain.Invoice{}, err
		}
		alloc, err := inventory.ReturnToSupplier(product, src.LotNumber, want)
		if err != nil {
			return domain.Invoice{}, err
		}
		lines = append(lines, domain.LineItem{
			ProductID:    src.ProductID,
			Name:         src.Name,
			Quantity:     want,
			UnitPrice:    src.UnitPrice,
			UnitCost:     alloc.UnitCost,
			LotNumber:    src.LotNumber,
			ExpiresAt:    src.ExpiresAt,
			Allocations:  []domain.Allocation{alloc},
			OriginalLine: intPtr(idx),
		})
	}

	ret := domain.Invoice{
		ID:                newInvoiceID(),
		Kind:              domain.InvoicePurchaseReturn,
		OriginalInvoiceID: original.ID,
		PartyID:           original.PartyID,
		Lines:             lines,
		Currency:          original.Currency,
		ExchangeRate:      original.ExchangeRate,
		Note:              strings.TrimSpace(req.Note),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := e.settle(&ret, proratedDiscount(original, decimalSum(lines))); err != nil {
		return domain.Invoice{}, err
	}
	capFinalReturn(original, &ret, priorQty, priorBase)
	if ret.Number, err = e.nextNumber(tx, ret.Kind); err != nil {
		return domain.Invoice{}, err
	}

	if err := products.save(now); err != nil {
		return domain.Invoice{}, err
	}
	if err := e.save(tx, ret); err != nil {
		return domain.Invoice{}, err
	}
	if err := e.post(tx, domain.PartySupplier, ret, domain.TxPurchaseReturn); err != nil {
		return domain.Invoice{}, err
	}
	return ret, nil
}
