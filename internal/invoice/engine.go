package invoice

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shopledger/backend/internal/apperr"
	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/ledger"
	"shopledger/backend/internal/money"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/xid"
)

// Engine turns sale, purchase and return commands into invoices. Every
// method works on one store.Tx and either returns an error before writing
// or leaves a complete set of writes staged on it.
type Engine struct {
	conv   *money.Converter
	ledger *ledger.Ledger
	now    func() time.Time
}

func New(conv *money.Converter, l *ledger.Ledger, now func() time.Time) *Engine {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{conv: conv, ledger: l, now: now}
}

func (e *Engine) Get(tx store.Tx, kind domain.InvoiceKind, id string) (domain.Invoice, error) {
	inv, err := store.Load[domain.Invoice](tx, store.InvoiceCollection(kind), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Invoice{}, apperr.NotFoundf("invoice", id)
		}
		return domain.Invoice{}, apperr.Persistence("load invoice", err)
	}
	if inv.Kind != kind {
		return domain.Invoice{}, apperr.NotFoundf("invoice", id).WithID("kind", string(kind))
	}
	return inv, nil
}

// List returns invoices of the given kind, newest first.
func (e *Engine) List(tx store.Tx, kind domain.InvoiceKind) ([]domain.Invoice, error) {
	all, err := store.LoadAll[domain.Invoice](tx, store.InvoiceCollection(kind))
	if err != nil {
		return nil, apperr.Persistence("list invoices", err)
	}
	out := slices.DeleteFunc(all, func(inv domain.Invoice) bool { return inv.Kind != kind })
	slices.SortFunc(out, func(a, b domain.Invoice) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out, nil
}

// ReturnsOf lists the return invoices that reference original.
func (e *Engine) ReturnsOf(tx store.Tx, original domain.Invoice) ([]domain.Invoice, error) {
	kind := domain.InvoiceReturn
	if original.Kind == domain.InvoicePurchase {
		kind = domain.InvoicePurchaseReturn
	}
	all, err := e.List(tx, kind)
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(all, func(inv domain.Invoice) bool { return inv.OriginalInvoiceID != original.ID })
	slices.Reverse(out)
	return out, nil
}

// nextNumber hands out the display number for kind. The counter lives in
// settings; on first use it starts after the highest number already issued.
func (e *Engine) nextNumber(tx store.Tx, kind domain.InvoiceKind) (string, error) {
	prefix := kind.Prefix()
	seqID := "seq-" + prefix

	seq, err := store.Load[domain.Sequence](tx, store.Settings, seqID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return "", apperr.Persistence("load sequence", err)
		}
		seq = domain.Sequence{ID: seqID}
		all, err := store.LoadAll[domain.Invoice](tx, store.InvoiceCollection(kind))
		if err != nil {
			return "", apperr.Persistence("scan invoice numbers", err)
		}
		for _, inv := range all {
			if n, ok := numberSuffix(inv.Number, prefix); ok && n > seq.Last {
				seq.Last = n
			}
		}
	}

	seq.Last++
	if err := store.Save(tx, store.Settings, seq.ID, seq); err != nil {
		return "", apperr.Persistence("save sequence", err)
	}
	return fmt.Sprintf("%s%05d", prefix, seq.Last), nil
}

func numberSuffix(number, prefix string) (int64, bool) {
	rest, ok := strings.CutPrefix(number, prefix)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// pricing resolves the invoice currency and the rate it is converted at.
// The stored rate is zero for base-currency invoices.
func (e *Engine) pricing(currency string, rate decimal.Decimal) (string, decimal.Decimal, error) {
	code, err := e.conv.Canonical(currency)
	if err != nil {
		return "", decimal.Zero, err
	}
	if e.conv.IsBase(code) {
		return code, decimal.Zero, nil
	}
	r, err := e.conv.Rate(code, rate)
	if err != nil {
		return "", decimal.Zero, err
	}
	return code, r, nil
}

// settle fills Subtotal, Discount, Total and BaseTotal from the lines.
func (e *Engine) settle(inv *domain.Invoice, discount decimal.Decimal) error {
	subtotal := decimal.Zero
	for _, line := range inv.Lines {
		subtotal = subtotal.Add(line.Value())
	}
	if discount.IsNegative() {
		return apperr.Validationf("discount must not be negative")
	}
	if discount.GreaterThan(subtotal) {
		return apperr.Validationf("discount %s exceeds subtotal %s", discount, subtotal)
	}
	inv.Subtotal = subtotal
	inv.Discount = discount
	inv.Total = subtotal.Sub(discount)

	base, err := e.conv.Normalize(inv.Total, inv.Currency, inv.ExchangeRate)
	if err != nil {
		return err
	}
	inv.BaseTotal = base
	return nil
}

// proratedDiscount is the share of the original discount carried by a
// return worth returnSubtotal.
func proratedDiscount(original domain.Invoice, returnSubtotal decimal.Decimal) decimal.Decimal {
	if original.Subtotal.IsZero() || original.Discount.IsZero() {
		return decimal.Zero
	}
	share := original.Discount.Mul(returnSubtotal).DivRound(original.Subtotal, 4)
	if share.GreaterThan(returnSubtotal) {
		return returnSubtotal
	}
	return share
}

type productSet struct {
	tx    store.Tx
	items map[string]*domain.Product
}

func newProductSet(tx store.Tx) *productSet {
	return &productSet{tx: tx, items: make(map[string]*domain.Product)}
}

// get loads a product once; later calls return the same working copy.
func (s *productSet) get(id string) (*domain.Product, error) {
	if p, ok := s.items[id]; ok {
		return p, nil
	}
	p, err := store.Load[domain.Product](s.tx, store.Products, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFoundf("product", id)
		}
		return nil, apperr.Persistence("load product", err)
	}
	s.items[id] = &p
	return &p, nil
}

func (s *productSet) save(now time.Time) error {
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		p := s.items[id]
		p.UpdatedAt = now
		if err := store.Save(s.tx, store.Products, id, p); err != nil {
			return apperr.Persistence("save product", err)
		}
	}
	return nil
}

func loadService(tx store.Tx, id string) (domain.Service, error) {
	svc, err := store.Load[domain.Service](tx, store.Services, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Service{}, apperr.NotFoundf("service", id)
		}
		return domain.Service{}, apperr.Persistence("load service", err)
	}
	return svc, nil
}

func (e *Engine) save(tx store.Tx, inv domain.Invoice) error {
	if err := store.Save(tx, store.InvoiceCollection(inv.Kind), inv.ID, inv); err != nil {
		return apperr.Persistence("save invoice", err)
	}
	return nil
}

// post records the invoice's effect on its party. Zero amounts post nothing.
func (e *Engine) post(tx store.Tx, partyKind domain.PartyKind, inv domain.Invoice, kind domain.TransactionKind) error {
	if !inv.IsCredit() || inv.BaseTotal == 0 {
		return nil
	}
	_, err := e.ledger.Apply(tx, ledger.Entry{
		PartyKind:   partyKind,
		PartyID:     inv.PartyID,
		Kind:        kind,
		Amount:      inv.BaseTotal,
		Description: fmt.Sprintf("%s %s", inv.Kind, inv.Number),
		InvoiceID:   inv.ID,
	})
	return err
}

// repost moves the party balance by the change in BaseTotal after an edit.
func (e *Engine) repost(tx store.Tx, partyKind domain.PartyKind, before, after domain.Invoice) error {
	delta := after.BaseTotal - before.BaseTotal
	if !after.IsCredit() || delta == 0 {
		return nil
	}
	_, err := e.ledger.Apply(tx, ledger.Entry{
		PartyKind:   partyKind,
		PartyID:     after.PartyID,
		Kind:        domain.TxAdjustment,
		Delta:       delta,
		Description: fmt.Sprintf("edit of %s", after.Number),
		InvoiceID:   after.ID,
	})
	return err
}

// returnLines merges request lines by original line index.
func returnLines(original domain.Invoice, req []domain.ReturnLine) ([]int, map[int]int, error) {
	qty := make(map[int]int, len(req))
	order := make([]int, 0, len(req))
	for _, r := range req {
		if r.Line < 0 || r.Line >= len(original.Lines) {
			return nil, nil, apperr.Validationf("line %d does not exist on %s", r.Line, original.Number).WithID("invoice_id", original.ID)
		}
		if r.Quantity < 1 {
			return nil, nil, apperr.Validationf("return quantity must be positive").WithID("invoice_id", original.ID)
		}
		if _, seen := qty[r.Line]; !seen {
			order = append(order, r.Line)
		}
		qty[r.Line] += r.Quantity
	}
	return order, qty, nil
}

// returnedSoFar sums quantities and allocations already returned per
// original line.
func returnedSoFar(returns []domain.Invoice) (map[int]int, map[int][][]domain.Allocation, money.Amount) {
	qty := make(map[int]int)
	allocs := make(map[int][][]domain.Allocation)
	var base money.Amount
	for _, r := range returns {
		base += r.BaseTotal
		for _, line := range r.Lines {
			if line.OriginalLine == nil {
				continue
			}
			qty[*line.OriginalLine] += line.Quantity
			allocs[*line.OriginalLine] = append(allocs[*line.OriginalLine], line.Allocations)
		}
	}
	return qty, allocs, base
}

// capFinalReturn makes the last return that empties the original carry
// exactly what is left of its base total, so rounding never over-credits.
func capFinalReturn(original domain.Invoice, ret *domain.Invoice, priorQty map[int]int, priorBase money.Amount) {
	for i, line := range original.Lines {
		returned := priorQty[i]
		for _, rl := range ret.Lines {
			if rl.OriginalLine != nil && *rl.OriginalLine == i {
				returned += rl.Quantity
			}
		}
		if returned < line.Quantity {
			return
		}
	}
	ret.BaseTotal = original.BaseTotal - priorBase
}

func intPtr(v int) *int { return &v }

func newInvoiceID() string { return xid.New("inv") }

func newBatchID() string { return xid.New("bat") }

func decimalInt(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }

func decimalSum(lines []domain.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Value())
	}
	return total
}
