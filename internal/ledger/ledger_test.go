package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"shopledger/backend/internal/apperr"
	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/money"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/store/memory"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newParty(t *testing.T, gw store.Gateway, l *Ledger, kind domain.PartyKind, req domain.PartyCreateRequest) domain.Party {
	t.Helper()
	var p domain.Party
	err := gw.Update(context.Background(), func(tx store.Tx) error {
		var err error
		p, err = l.CreateParty(tx, kind, req)
		return err
	})
	if err != nil {
		t.Fatalf("create party: %v", err)
	}
	return p
}

func apply(gw store.Gateway, l *Ledger, e Entry) (domain.Transaction, error) {
	var out domain.Transaction
	err := gw.Update(context.Background(), func(tx store.Tx) error {
		var err error
		out, err = l.Apply(tx, e)
		return err
	})
	return out, err
}

func TestApplyKeepsBalanceEqualToSumOfDeltas(t *testing.T) {
	gw := memory.New()
	l := New(fixedClock())
	c := newParty(t, gw, l, domain.PartyCustomer, domain.PartyCreateRequest{Name: "Ayu"})

	entries := []Entry{
		{Kind: domain.TxCreditSale, Amount: 1200},
		{Kind: domain.TxPayment, Amount: 500},
		{Kind: domain.TxSaleReturn, Amount: 100},
		{Kind: domain.TxAdjustment, Delta: -50},
		{Kind: domain.TxCreditSale, Amount: 75},
	}
	for _, e := range entries {
		e.PartyKind = domain.PartyCustomer
		e.PartyID = c.ID
		if _, err := apply(gw, l, e); err != nil {
			t.Fatalf("apply %s: %v", e.Kind, err)
		}
	}

	var stmt domain.Statement
	err := gw.View(context.Background(), func(tx store.Tx) error {
		var err error
		stmt, err = l.Statement(tx, domain.PartyCustomer, c.ID)
		return err
	})
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	var sum money.Amount
	for _, txn := range stmt.Transactions {
		sum += txn.Delta
	}
	if stmt.Party.Balance != 625 || sum != stmt.Party.Balance {
		t.Fatalf("expected balance 625 equal to delta sum, got balance=%d sum=%d", stmt.Party.Balance, sum)
	}
	if len(stmt.Transactions) != 5 || stmt.Transactions[0].Kind != domain.TxCreditSale || stmt.Transactions[4].BalanceAfter != 625 {
		t.Fatalf("unexpected statement order: %+v", stmt.Transactions)
	}
	if stmt.Transactions[3].Amount != 50 {
		t.Fatalf("expected adjustment magnitude 50, got %d", stmt.Transactions[3].Amount)
	}
}

func TestApplyRejectsKindNotValidForParty(t *testing.T) {
	gw := memory.New()
	l := New(fixedClock())
	s := newParty(t, gw, l, domain.PartySupplier, domain.PartyCreateRequest{Name: "PT Farma"})

	_, err := apply(gw, l, Entry{PartyKind: domain.PartySupplier, PartyID: s.ID, Kind: domain.TxCreditSale, Amount: 10})
	if !errors.Is(err, apperr.Validation) {
		t.Fatalf("expected Validation, got %v", err)
	}
	_, err = apply(gw, l, Entry{PartyKind: domain.PartySupplier, PartyID: "sup-missing", Kind: domain.TxPayment, Amount: 10})
	if !errors.Is(err, apperr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestDeletePartyRequiresZeroBalance(t *testing.T) {
	gw := memory.New()
	l := New(fixedClock())
	e := newParty(t, gw, l, domain.PartyEmployee, domain.PartyCreateRequest{Name: "Budi", MonthlySalary: 3000})

	if _, err := apply(gw, l, Entry{PartyKind: domain.PartyEmployee, PartyID: e.ID, Kind: domain.TxAdvance, Amount: 200}); err != nil {
		t.Fatalf("advance: %v", err)
	}

	del := func() error {
		return gw.Update(context.Background(), func(tx store.Tx) error {
			return l.DeleteParty(tx, domain.PartyEmployee, e.ID)
		})
	}
	err := del()
	if !errors.Is(err, apperr.NonZeroBalance) {
		t.Fatalf("expected NonZeroBalance, got %v", err)
	}

	if _, err := apply(gw, l, Entry{PartyKind: domain.PartyEmployee, PartyID: e.ID, Kind: domain.TxPayment, Amount: 200}); err != nil {
		t.Fatalf("repay: %v", err)
	}
	if err := del(); err != nil {
		t.Fatalf("expected delete at zero balance to succeed, got %v", err)
	}
}

func TestReconcileReportsDrift(t *testing.T) {
	gw := memory.New()
	l := New(fixedClock())
	c := newParty(t, gw, l, domain.PartyCustomer, domain.PartyCreateRequest{Name: "Citra"})
	if _, err := apply(gw, l, Entry{PartyKind: domain.PartyCustomer, PartyID: c.ID, Kind: domain.TxCreditSale, Amount: 900}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	corrupt := func(tx store.Tx) error {
		p, err := l.GetParty(tx, domain.PartyCustomer, c.ID)
		if err != nil {
			return err
		}
		p.Balance = 1000
		return store.Save(tx, store.Customers, p.ID, p)
	}
	if err := gw.Update(context.Background(), corrupt); err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	var report domain.ReconcileReport
	err := gw.View(context.Background(), func(tx store.Tx) error {
		var err error
		report, err = l.Reconcile(tx)
		return err
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if report.Checked != 1 || len(report.Drift) != 1 || report.Drift[0].Computed != 900 || report.Drift[0].Cached != 1000 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestCreatePartyRejectsSalaryForCustomers(t *testing.T) {
	gw := memory.New()
	l := New(fixedClock())
	err := gw.Update(context.Background(), func(tx store.Tx) error {
		_, err := l.CreateParty(tx, domain.PartyCustomer, domain.PartyCreateRequest{Name: "Dewi", MonthlySalary: 10})
		return err
	})
	if !errors.Is(err, apperr.Validation) {
		t.Fatalf("expected Validation, got %v", err)
	}
}
