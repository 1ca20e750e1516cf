package payroll

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"shopledger/backend/internal/apperr"
	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/ledger"
	"shopledger/backend/internal/money"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/store/memory"
	"shopledger/backend/internal/store/storetest"
)

func setup(t *testing.T) (store.Gateway, *ledger.Ledger, *Settlement) {
	t.Helper()
	now := func() time.Time { return time.Date(2026, 10, 31, 17, 0, 0, 0, time.UTC) }
	l := ledger.New(now)
	return memory.New(), l, New(l, now)
}

func hire(t *testing.T, gw store.Gateway, l *ledger.Ledger, name string, salary, advance money.Amount) domain.Party {
	t.Helper()
	var emp domain.Party
	err := gw.Update(context.Background(), func(tx store.Tx) error {
		var err error
		emp, err = l.CreateParty(tx, domain.PartyEmployee, domain.PartyCreateRequest{Name: name, MonthlySalary: salary})
		if err != nil || advance == 0 {
			return err
		}
		_, err = l.Apply(tx, ledger.Entry{PartyKind: domain.PartyEmployee, PartyID: emp.ID, Kind: domain.TxAdvance, Amount: advance})
		return err
	})
	if err != nil {
		t.Fatalf("hire %s: %v", name, err)
	}
	return emp
}

func TestRunPaysNetDueAndSkipsOverAdvanced(t *testing.T) {
	gw, l, s := setup(t)
	paid := hire(t, gw, l, "Andi", 5000, 1200)
	skipped := hire(t, gw, l, "Bayu", 3000, 3500)

	var result domain.PayrollResult
	err := gw.Update(context.Background(), func(tx store.Tx) error {
		var err error
		result, err = s.Run(tx)
		return err
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.NothingToProcess || result.TotalPaid != 3800 || len(result.Paid) != 1 || len(result.Skipped) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	err = gw.View(context.Background(), func(tx store.Tx) error {
		stmt, err := l.Statement(tx, domain.PartyEmployee, paid.ID)
		if err != nil {
			return err
		}
		last := stmt.Transactions[len(stmt.Transactions)-1]
		if last.Kind != domain.TxSalaryPayment || last.Amount != 3800 || stmt.Party.Balance != 0 {
			t.Fatalf("expected salary_payment of 3800 and balance 0, got %+v balance=%d", last, stmt.Party.Balance)
		}

		other, err := l.GetParty(tx, domain.PartyEmployee, skipped.ID)
		if err != nil {
			return err
		}
		if other.Balance != 3500 {
			t.Fatalf("expected skipped employee to keep 3500, got %d", other.Balance)
		}

		expenses, err := store.LoadAll[domain.Expense](tx, store.Expenses)
		if err != nil {
			return err
		}
		if len(expenses) != 1 || expenses[0].Amount != 3800 || expenses[0].Category != domain.ExpenseCategorySalary {
			t.Fatalf("expected one salary expense of 3800, got %+v", expenses)
		}

		report, err := l.Reconcile(tx)
		if err != nil {
			return err
		}
		if len(report.Drift) != 0 {
			t.Fatalf("unexpected drift: %+v", report.Drift)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestRunWithNobodyDueWritesNothing(t *testing.T) {
	gw, l, s := setup(t)
	hire(t, gw, l, "Candra", 1000, 1000)

	var result domain.PayrollResult
	err := gw.Update(context.Background(), func(tx store.Tx) error {
		var err error
		result, err = s.Run(tx)
		return err
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.NothingToProcess || result.ExpenseID != "" {
		t.Fatalf("expected nothing to process, got %+v", result)
	}
	_ = gw.View(context.Background(), func(tx store.Tx) error {
		docs, err := tx.GetAll(store.Expenses)
		if err != nil {
			t.Fatalf("list expenses: %v", err)
		}
		if len(docs) != 0 {
			t.Fatalf("expected no expense records, got %d", len(docs))
		}
		return nil
	})
}

func TestRunRollsBackEveryEmployeeWhenOneWriteFails(t *testing.T) {
	gw, l, s := setup(t)
	hire(t, gw, l, "Andi", 5000, 1200)
	hire(t, gw, l, "Bayu", 4000, 0)
	before := storetest.Dump(t, gw)

	faulty := &storetest.FailingGateway{Gateway: gw, Collection: store.Employees, FailAt: 2}
	err := faulty.Update(context.Background(), func(tx store.Tx) error {
		_, err := s.Run(tx)
		return err
	})
	if !errors.Is(err, apperr.PersistenceFailure) || !errors.Is(err, storetest.ErrInjected) {
		t.Fatalf("expected PersistenceFailure from the second salary write, got %v", err)
	}
	if after := storetest.Dump(t, gw); !reflect.DeepEqual(before, after) {
		t.Fatalf("expected no writes after a failed run\nbefore: %v\nafter:  %v", before, after)
	}
}
