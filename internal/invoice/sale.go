package invoice

import (
	"errors"
	"strings"

	"shopledger/backend/internal/apperr"
	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/inventory"
	"shopledger/backend/internal/store"
)

// CreateSale allocates stock for every product line and commits the sale.
// A sale with a customer is on credit and raises that customer's balance.
func (e *Engine) CreateSale(tx store.Tx, req domain.SaleRequest) (domain.Invoice, error) {
	if len(req.Lines) == 0 {
		return domain.Invoice{}, apperr.Validationf("cart is empty")
	}
	currency, rate, err := e.pricing(req.Currency, req.ExchangeRate)
	if err != nil {
		return domain.Invoice{}, err
	}
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID != "" {
		if _, err := e.ledger.GetParty(tx, domain.PartyCustomer, customerID); err != nil {
			return domain.Invoice{}, err
		}
	}

	products := newProductSet(tx)
	lines, err := e.saleLines(tx, products, req.Lines)
	if err != nil {
		return domain.Invoice{}, err
	}

	now := e.now()
	inv := domain.Invoice{
		ID:           newInvoiceID(),
		Kind:         domain.InvoiceSale,
		PartyID:      customerID,
		Lines:        lines,
		Currency:     currency,
		ExchangeRate: rate,
		Note:         strings.TrimSpace(req.Note),
		CreatedAt:    now,
		UpdatedAt:    now,
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
	if err := e.post(tx, domain.PartyCustomer, inv, domain.TxCreditSale); err != nil {
		return domain.Invoice{}, err
	}
	return inv, nil
}

// saleLines builds invoice lines and deducts stock from the working copies
// in products. Every line is checked so the caller sees all shortfalls.
func (e *Engine) saleLines(tx store.Tx, products *productSet, reqLines []domain.SaleLine) ([]domain.LineItem, error) {
	lines := make([]domain.LineItem, 0, len(reqLines))
	var failures []error
	for i, rl := range reqLines {
		if (rl.ProductID == "") == (rl.ServiceID == "") {
			return nil, apperr.Validationf("line %d must name exactly one product or service", i)
		}
		if rl.Quantity < 1 {
			return nil, apperr.Validationf("line %d quantity must be positive", i)
		}
		if rl.UnitPrice.IsNegative() {
			return nil, apperr.Validationf("line %d unit price must not be negative", i)
		}

		if rl.ServiceID != "" {
			svc, err := loadService(tx, rl.ServiceID)
			if err != nil {
				return nil, err
			}
			lines = append(lines, domain.LineItem{
				ServiceID: svc.ID,
				Name:      svc.Name,
				Quantity:  rl.Quantity,
				UnitPrice: rl.UnitPrice,
			})
			continue
		}

		product, err := products.get(rl.ProductID)
		if err != nil {
			return nil, err
		}
		plan, err := inventory.Allocate(*product, rl.Quantity)
		if err != nil {
			if errors.Is(err, apperr.InsufficientStock) {
				failures = append(failures, err)
				continue
			}
			return nil, err
		}
		if err := inventory.Apply(product, plan); err != nil {
			return nil, err
		}
		lines = append(lines, domain.LineItem{
			ProductID:   product.ID,
			Name:        product.Name,
			Quantity:    rl.Quantity,
			UnitPrice:   rl.UnitPrice,
			UnitCost:    plan.UnitCost(),
			Allocations: plan.Lines,
		})
	}
	if len(failures) > 0 {
		return nil, errors.Join(failures...)
	}
	return lines, nil
}

// EditSale replaces a committed sale that has no returns. The old
// allocations go back to their batches, the new lines are allocated, and a
// credit customer's balance moves by the change in total.
func (e *Engine) EditSale(tx store.Tx, id string, req domain.SaleRequest) (domain.Invoice, error) {
	before, err := e.Get(tx, domain.InvoiceSale, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	returns, err := e.ReturnsOf(tx, before)
	if err != nil {
		return domain.Invoice{}, err
	}
	if len(returns) > 0 {
		return domain.Invoice{}, apperr.Conflictf("sale %s has returns and can no longer be edited", before.Number).WithID("invoice_id", id)
	}
	if strings.TrimSpace(req.CustomerID) != before.PartyID {
		return domain.Invoice{}, apperr.Validationf("the customer of a sale cannot change").WithID("invoice_id", id)
	}
	if len(req.Lines) == 0 {
		return domain.Invoice{}, apperr.Validationf("cart is empty").WithID("invoice_id", id)
	}
	currency, rate, err := e.pricing(req.Currency, req.ExchangeRate)
	if err != nil {
		return domain.Invoice{}, err
	}

	now := e.now()
	products := newProductSet(tx)
	for _, line := range before.Lines {
		if !line.IsProduct() {
			continue
		}
		product, err := products.get(line.ProductID)
		if err != nil {
			return domain.Invoice{}, err
		}
		inventory.Restock(product, line.Allocations, newBatchID, now)
	}

	lines, err := e.saleLines(tx, products, req.Lines)
	if err != nil {
		return domain.Invoice{}, err
	}

	after := before
	after.Lines = lines
	after.Currency = currency
	after.ExchangeRate = rate
	after.Note = strings.TrimSpace(req.Note)
	after.UpdatedAt = now
	if err := e.settle(&after, req.Discount); err != nil {
		return domain.Invoice{}, err
	}

	if err := products.save(now); err != nil {
		return domain.Invoice{}, err
	}
	if err := e.save(tx, after); err != nil {
		return domain.Invoice{}, err
	}
	if err := e.repost(tx, domain.PartyCustomer, before, after); err != nil {
		return domain.Invoice{}, err
	}
	return after, nil
}

// CreateReturn records a return against a sale as its own invoice. Stock goes
// back to the batches the sold units came from; the value is the original
// price less the original discount's share.
func (e *Engine) CreateReturn(tx store.Tx, originalID string, req domain.ReturnRequest) (domain.Invoice, error) {
	original, err := e.Get(tx, domain.InvoiceSale, originalID)
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
	priorQty, priorAllocs, priorBase := returnedSoFar(prior)

	now := e.now()
	products := newProductSet(tx)
	lines := make([]domain.LineItem, 0, len(order))
	for _, idx := range order {
		src := original.Lines[idx]
		want := qty[idx]
		if left := src.Quantity - priorQty[idx]; want > left {
			return domain.Invoice{}, apperr.Validationf("line %d: returning %d but only %d left to return", idx, want, left).WithID("invoice_id", original.ID)
		}
		line := domain.LineItem{
			ProductID:    src.ProductID,
			ServiceID:    src.ServiceID,
			Name:         src.Name,
			Quantity:     want,
			UnitPrice:    src.UnitPrice,
			OriginalLine: intPtr(idx),
		}
		if src.IsProduct() {
			taken, err := inventory.TakeForReturn(inventory.Outstanding(src.Allocations, priorAllocs[idx]...), want)
			if err != nil {
				return domain.Invoice{}, err
			}
			product, err := products.get(src.ProductID)
			if err != nil {
				return domain.Invoice{}, err
			}
			inventory.Restock(product, taken, newBatchID, now)
			line.Allocations = taken
			line.UnitCost = inventory.CostOf(taken).DivRound(decimalInt(want), 4)
		}
		lines = append(lines, line)
	}

	ret := domain.Invoice{
		ID:                newInvoiceID(),
		Kind:              domain.InvoiceReturn,
		OriginalInvoiceID: original.ID,
		PartyID:           original.PartyID,
		Lines:             lines,
		Currency:          original.Currency,
		ExchangeRate:      original.ExchangeRate,
		Note:              strings.TrimSpace(req.Note),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	subtotal := decimalSum(lines)
	if err := e.settle(&ret, proratedDiscount(original, subtotal)); err != nil {
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
	if err := e.post(tx, domain.PartyCustomer, ret, domain.TxSaleReturn); err != nil {
		return domain.Invoice{}, err
	}
	return ret, nil
}
