package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shopledger/backend/internal/apperr"
	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/inventory"
	"shopledger/backend/internal/money"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/xid"
)

const stockReportKey = "stock"

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseRequest) (domain.Expense, error) {
	if err := s.check(req); err != nil {
		return domain.Expense{}, err
	}
	now := s.now()
	date := req.Date
	if date.IsZero() {
		date = now
	}
	expense := domain.Expense{
		ID:          xid.New("exp"),
		Date:        date.UTC(),
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		Category:    strings.ToLower(strings.TrimSpace(req.Category)),
		CreatedAt:   now,
	}
	err := s.update(ctx, func(tx store.Tx) error {
		if err := store.Save(tx, store.Expenses, expense.ID, expense); err != nil {
			return apperr.Persistence("save expense", err)
		}
		return s.logAudit(tx, "expense_create", "expense", expense.ID, fmt.Sprintf("category=%s,amount=%d", expense.Category, expense.Amount))
	})
	if err != nil {
		return domain.Expense{}, err
	}
	return expense, nil
}

// ListExpenses returns expenses dated in [from, to), oldest first. A zero
// bound is open.
func (s *Service) ListExpenses(ctx context.Context, from, to time.Time) ([]domain.Expense, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, apperr.Validationf("range end is before its start")
	}
	var out []domain.Expense
	err := s.view(ctx, func(tx store.Tx) error {
		all, err := store.LoadAll[domain.Expense](tx, store.Expenses)
		if err != nil {
			return err
		}
		out = slices.DeleteFunc(all, func(e domain.Expense) bool { return !inRange(e.Date, from, to) })
		slices.SortFunc(out, func(a, b domain.Expense) int {
			if c := a.Date.Compare(b.Date); c != 0 {
				return c
			}
			return strings.Compare(a.ID, b.ID)
		})
		return nil
	})
	return out, err
}

// StockReport summarizes on-hand stock, valuation and expiring lots.
func (s *Service) StockReport(ctx context.Context) (domain.StockReport, error) {
	var out domain.StockReport
	gen, hit := s.cached(ctx, stockReportKey, &out)
	if hit {
		return out, nil
	}
	now := s.now()
	out = domain.StockReport{
		GeneratedAt:    now,
		WarningDays:    s.warningDays,
		Products:       []domain.StockLine{},
		TotalValuation: decimal.Zero,
	}
	err := s.view(ctx, func(tx store.Tx) error {
		products, err := store.LoadAll[domain.Product](tx, store.Products)
		if err != nil {
			return err
		}
		slices.SortFunc(products, func(a, b domain.Product) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
		for _, p := range products {
			line := inventory.Summarize(p, now, s.warningDays)
			out.Products = append(out.Products, line)
			out.TotalValuation = out.TotalValuation.Add(line.Valuation)
		}
		return nil
	})
	if err != nil {
		return domain.StockReport{}, err
	}
	s.remember(ctx, gen, stockReportKey, out)
	return out, nil
}

// ProfitSummary totals sales, returns, cost of goods and expenses dated in
// [from, to). Amounts are in the base currency.
func (s *Service) ProfitSummary(ctx context.Context, from, to time.Time) (domain.ProfitSummary, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return domain.ProfitSummary{}, apperr.Validationf("range end is before its start")
	}
	out := domain.ProfitSummary{From: from, To: to, CostOfGoods: decimal.Zero}
	err := s.view(ctx, func(tx store.Tx) error {
		invoices, err := store.LoadAll[domain.Invoice](tx, store.SaleInvoices)
		if err != nil {
			return err
		}
		for _, inv := range invoices {
			if !inRange(inv.CreatedAt, from, to) {
				continue
			}
			cost := lineCost(inv.Lines)
			switch inv.Kind {
			case domain.InvoiceSale:
				out.Revenue += inv.BaseTotal
				out.CostOfGoods = out.CostOfGoods.Add(cost)
			case domain.InvoiceReturn:
				out.Returns += inv.BaseTotal
				out.CostOfGoods = out.CostOfGoods.Sub(cost)
			}
		}

		expenses, err := store.LoadAll[domain.Expense](tx, store.Expenses)
		if err != nil {
			return err
		}
		for _, e := range expenses {
			if inRange(e.Date, from, to) {
				out.Expenses += e.Amount
			}
		}
		return nil
	})
	if err != nil {
		return domain.ProfitSummary{}, err
	}
	out.GrossProfit = (out.Revenue - out.Returns).Decimal().Sub(out.CostOfGoods)
	out.NetProfit = out.GrossProfit.Sub(out.Expenses.Decimal())
	return out, nil
}

func lineCost(lines []domain.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		if line.IsProduct() {
			total = total.Add(inventory.CostOf(line.Allocations))
		}
	}
	return total
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

// FormatAmount renders a base-currency amount for display.
func (s *Service) FormatAmount(a money.Amount) string {
	return s.conv.Format(a)
}
