package payroll

import (
	"fmt"
	"time"

	"shopledger/backend/internal/apperr"
	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/ledger"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/xid"
)

type Settlement struct {
	ledger *ledger.Ledger
	now    func() time.Time
}

func New(l *ledger.Ledger, now func() time.Time) *Settlement {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Settlement{ledger: l, now: now}
}

// Run settles every employee against their monthly salary. Employees whose
// advances cover the salary are skipped and keep their balance. When nobody
// is due, nothing is written.
func (s *Settlement) Run(tx store.Tx) (domain.PayrollResult, error) {
	employees, err := s.ledger.ListParties(tx, domain.PartyEmployee)
	if err != nil {
		return domain.PayrollResult{}, err
	}

	now := s.now()
	result := domain.PayrollResult{RunAt: now, Paid: []domain.PayrollLine{}, Skipped: []domain.PayrollLine{}}
	for _, emp := range employees {
		line := domain.PayrollLine{
			EmployeeID: emp.ID,
			Name:       emp.Name,
			Salary:     emp.MonthlySalary,
			Advances:   emp.Balance,
			NetDue:     emp.MonthlySalary - emp.Balance,
		}
		if line.NetDue <= 0 {
			result.Skipped = append(result.Skipped, line)
			continue
		}
		result.Paid = append(result.Paid, line)
		result.TotalPaid += line.NetDue
	}
	if len(result.Paid) == 0 {
		result.NothingToProcess = true
		return result, nil
	}

	for _, line := range result.Paid {
		_, err := s.ledger.Apply(tx, ledger.Entry{
			PartyKind:   domain.PartyEmployee,
			PartyID:     line.EmployeeID,
			Kind:        domain.TxSalaryPayment,
			Amount:      line.NetDue,
			Delta:       -line.Advances,
			Description: fmt.Sprintf("salary %s", now.Format("2006-01")),
		})
		if err != nil {
			return domain.PayrollResult{}, err
		}
	}

	expense := domain.Expense{
		ID:          xid.New("exp"),
		Date:        now,
		Description: fmt.Sprintf("payroll %s: %d employees", now.Format("2006-01"), len(result.Paid)),
		Amount:      result.TotalPaid,
		Category:    domain.ExpenseCategorySalary,
		CreatedAt:   now,
	}
	if err := store.Save(tx, store.Expenses, expense.ID, expense); err != nil {
		return domain.PayrollResult{}, apperr.Persistence("save payroll expense", err)
	}
	result.ExpenseID = expense.ID
	return result, nil
}
