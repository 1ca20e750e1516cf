package ledger

import (
	"errors"
	"slices"
	"strings"
	"time"

	"shopledger/backend/internal/apperr"
	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/money"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/xid"
)

// Entry is a transaction to append. Delta is derived from Kind and Amount
// except for adjustments and salary payments, which must set it.
type Entry struct {
	PartyKind   domain.PartyKind
	PartyID     string
	Kind        domain.TransactionKind
	Amount      money.Amount
	Delta       money.Amount
	Description string
	InvoiceID   string
}

var allowed = map[domain.PartyKind][]domain.TransactionKind{
	domain.PartyCustomer: {domain.TxCreditSale, domain.TxSaleReturn, domain.TxPayment, domain.TxAdjustment},
	domain.PartySupplier: {domain.TxPurchase, domain.TxPurchaseReturn, domain.TxPayment, domain.TxAdjustment},
	domain.PartyEmployee: {domain.TxAdvance, domain.TxSalaryPayment, domain.TxPayment, domain.TxAdjustment},
}

// sign is the balance direction of a kind; zero means the entry carries its own delta.
func sign(kind domain.TransactionKind) int {
	switch kind {
	case domain.TxCreditSale, domain.TxPurchase, domain.TxAdvance:
		return 1
	case domain.TxSaleReturn, domain.TxPurchaseReturn, domain.TxPayment:
		return -1
	}
	return 0
}

type Ledger struct {
	now func() time.Time
}

func New(now func() time.Time) *Ledger {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Ledger{now: now}
}

// Apply appends one transaction and moves the party's cached balance by its
// delta. Both writes go through tx, so they commit together.
func (l *Ledger) Apply(tx store.Tx, e Entry) (domain.Transaction, error) {
	if !slices.Contains(allowed[e.PartyKind], e.Kind) {
		return domain.Transaction{}, apperr.Validationf("%s transactions are not valid for a %s", e.Kind, e.PartyKind).WithID("party_id", e.PartyID)
	}
	switch s := sign(e.Kind); s {
	case 0:
		if e.Kind == domain.TxAdjustment {
			if e.Delta == 0 {
				return domain.Transaction{}, apperr.Validationf("adjustment must change the balance").WithID("party_id", e.PartyID)
			}
			e.Amount = e.Delta.Abs()
		} else if e.Amount <= 0 {
			return domain.Transaction{}, apperr.Validationf("amount must be positive").WithID("party_id", e.PartyID)
		}
	default:
		if e.Amount <= 0 {
			return domain.Transaction{}, apperr.Validationf("amount must be positive").WithID("party_id", e.PartyID)
		}
		e.Delta = e.Amount * money.Amount(s)
	}

	party, err := l.GetParty(tx, e.PartyKind, e.PartyID)
	if err != nil {
		return domain.Transaction{}, err
	}
	txColl, err := store.TransactionCollection(e.PartyKind)
	if err != nil {
		return domain.Transaction{}, apperr.Validationf("%v", err)
	}

	now := l.now()
	party.Balance += e.Delta
	party.UpdatedAt = now
	entry := domain.Transaction{
		ID:           xid.New("txn"),
		PartyID:      party.ID,
		PartyKind:    party.Kind,
		Kind:         e.Kind,
		Amount:       e.Amount,
		Delta:        e.Delta,
		BalanceAfter: party.Balance,
		Description:  strings.TrimSpace(e.Description),
		InvoiceID:    e.InvoiceID,
		CreatedAt:    now,
	}

	if err := store.Save(tx, txColl, entry.ID, entry); err != nil {
		return domain.Transaction{}, apperr.Persistence("save transaction", err)
	}
	if err := l.saveParty(tx, party); err != nil {
		return domain.Transaction{}, err
	}
	return entry, nil
}

// Statement returns the party and its transactions, oldest first.
func (l *Ledger) Statement(tx store.Tx, kind domain.PartyKind, id string) (domain.Statement, error) {
	party, err := l.GetParty(tx, kind, id)
	if err != nil {
		return domain.Statement{}, err
	}
	txns, err := l.transactions(tx, kind)
	if err != nil {
		return domain.Statement{}, err
	}
	own := make([]domain.Transaction, 0, 16)
	for _, t := range txns {
		if t.PartyID == id {
			own = append(own, t)
		}
	}
	return domain.Statement{Party: party, Transactions: own}, nil
}

func (l *Ledger) transactions(tx store.Tx, kind domain.PartyKind) ([]domain.Transaction, error) {
	coll, err := store.TransactionCollection(kind)
	if err != nil {
		return nil, apperr.Validationf("%v", err)
	}
	txns, err := store.LoadAll[domain.Transaction](tx, coll)
	if err != nil {
		return nil, apperr.Persistence("load transactions", err)
	}
	slices.SortFunc(txns, func(a, b domain.Transaction) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return txns, nil
}

func (l *Ledger) GetParty(tx store.Tx, kind domain.PartyKind, id string) (domain.Party, error) {
	coll, err := store.PartyCollection(kind)
	if err != nil {
		return domain.Party{}, apperr.Validationf("%v", err)
	}
	party, err := store.Load[domain.Party](tx, coll, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Party{}, apperr.NotFoundf(string(kind), id)
		}
		return domain.Party{}, apperr.Persistence("load party", err)
	}
	return party, nil
}

func (l *Ledger) ListParties(tx store.Tx, kind domain.PartyKind) ([]domain.Party, error) {
	coll, err := store.PartyCollection(kind)
	if err != nil {
		return nil, apperr.Validationf("%v", err)
	}
	parties, err := store.LoadAll[domain.Party](tx, coll)
	if err != nil {
		return nil, apperr.Persistence("list parties", err)
	}
	slices.SortFunc(parties, func(a, b domain.Party) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return parties, nil
}

func (l *Ledger) CreateParty(tx store.Tx, kind domain.PartyKind, req domain.PartyCreateRequest) (domain.Party, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Party{}, apperr.Validationf("name is required")
	}
	if req.MonthlySalary != 0 && kind != domain.PartyEmployee {
		return domain.Party{}, apperr.Validationf("monthly salary only applies to employees")
	}
	prefix := map[domain.PartyKind]string{
		domain.PartyCustomer: "cus",
		domain.PartySupplier: "sup",
		domain.PartyEmployee: "emp",
	}[kind]
	if prefix == "" {
		return domain.Party{}, apperr.Validationf("unknown party kind %q", kind)
	}

	now := l.now()
	party := domain.Party{
		ID:            xid.New(prefix),
		Kind:          kind,
		Name:          name,
		Phone:         strings.TrimSpace(req.Phone),
		Address:       strings.TrimSpace(req.Address),
		Notes:         strings.TrimSpace(req.Notes),
		MonthlySalary: req.MonthlySalary,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := l.saveParty(tx, party); err != nil {
		return domain.Party{}, err
	}
	return party, nil
}

// UpdateParty changes contact fields. The balance only moves through Apply.
func (l *Ledger) UpdateParty(tx store.Tx, kind domain.PartyKind, id string, req domain.PartyUpdateRequest) (domain.Party, error) {
	party, err := l.GetParty(tx, kind, id)
	if err != nil {
		return domain.Party{}, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Party{}, apperr.Validationf("name is required").WithID("party_id", id)
		}
		party.Name = name
	}
	if req.Phone != nil {
		party.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		party.Address = strings.TrimSpace(*req.Address)
	}
	if req.Notes != nil {
		party.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.MonthlySalary != nil {
		if kind != domain.PartyEmployee {
			return domain.Party{}, apperr.Validationf("monthly salary only applies to employees").WithID("party_id", id)
		}
		party.MonthlySalary = *req.MonthlySalary
	}
	party.UpdatedAt = l.now()
	if err := l.saveParty(tx, party); err != nil {
		return domain.Party{}, err
	}
	return party, nil
}

// DeleteParty removes a party whose balance is exactly zero. Its
// transactions stay in the log.
func (l *Ledger) DeleteParty(tx store.Tx, kind domain.PartyKind, id string) error {
	party, err := l.GetParty(tx, kind, id)
	if err != nil {
		return err
	}
	if party.Balance != 0 {
		return apperr.New(apperr.NonZeroBalance, "balance is %d", party.Balance).WithID("party_id", id)
	}
	coll, _ := store.PartyCollection(kind)
	if err := tx.Delete(coll, id); err != nil {
		return apperr.Persistence("delete party", err)
	}
	return nil
}

// Reconcile recomputes every balance from the transaction log and reports
// parties whose cached balance disagrees. It does not repair anything.
func (l *Ledger) Reconcile(tx store.Tx) (domain.ReconcileReport, error) {
	report := domain.ReconcileReport{Drift: []domain.BalanceDrift{}}
	for _, kind := range []domain.PartyKind{domain.PartyCustomer, domain.PartySupplier, domain.PartyEmployee} {
		parties, err := l.ListParties(tx, kind)
		if err != nil {
			return domain.ReconcileReport{}, err
		}
		txns, err := l.transactions(tx, kind)
		if err != nil {
			return domain.ReconcileReport{}, err
		}
		sums := make(map[string]money.Amount, len(parties))
		for _, t := range txns {
			sums[t.PartyID] += t.Delta
		}
		for _, p := range parties {
			report.Checked++
			if sums[p.ID] != p.Balance {
				report.Drift = append(report.Drift, domain.BalanceDrift{
					PartyKind: kind,
					PartyID:   p.ID,
					Name:      p.Name,
					Cached:    p.Balance,
					Computed:  sums[p.ID],
				})
			}
		}
	}
	return report, nil
}

func (l *Ledger) saveParty(tx store.Tx, party domain.Party) error {
	coll, err := store.PartyCollection(party.Kind)
	if err != nil {
		return apperr.Validationf("%v", err)
	}
	if err := store.Save(tx, coll, party.ID, party); err != nil {
		return apperr.Persistence("save party", err)
	}
	return nil
}
