package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"shopledger/backend/internal/money"
)

type StockLine struct {
	ProductID     string          `json:"product_id"`
	Name          string          `json:"name"`
	OnHand        int             `json:"on_hand"`
	Valuation     decimal.Decimal `json:"valuation"`
	NearestExpiry *time.Time      `json:"nearest_expiry,omitempty"`
	Expiring      []Batch         `json:"expiring,omitempty"`
}

type StockReport struct {
	GeneratedAt    time.Time       `json:"generated_at"`
	WarningDays    int             `json:"warning_days"`
	Products       []StockLine     `json:"products"`
	TotalValuation decimal.Decimal `json:"total_valuation"`
}

type ProfitSummary struct {
	From        time.Time       `json:"from"`
	To          time.Time       `json:"to"`
	Revenue     money.Amount    `json:"revenue"`
	Returns     money.Amount    `json:"returns"`
	CostOfGoods decimal.Decimal `json:"cost_of_goods"`
	Expenses    money.Amount    `json:"expenses"`
	GrossProfit decimal.Decimal `json:"gross_profit"`
	NetProfit   decimal.Decimal `json:"net_profit"`
}

type Statement struct {
	Party        Party         `json:"party"`
	Transactions []Transaction `json:"transactions"`
}

type BalanceDrift struct {
	PartyKind PartyKind    `json:"party_kind"`
	PartyID   string       `json:"party_id"`
	Name      string       `json:"name"`
	Cached    money.Amount `json:"cached"`
	Computed  money.Amount `json:"computed"`
}

type ReconcileReport struct {
	Checked int            `json:"checked"`
	Drift   []BalanceDrift `json:"drift"`
}

type PayrollLine struct {
	EmployeeID string       `json:"employee_id"`
	Name       string       `json:"name"`
	Salary     money.Amount `json:"salary"`
	Advances   money.Amount `json:"advances"`
	NetDue     money.Amount `json:"net_due"`
}

type PayrollResult struct {
	RunAt            time.Time     `json:"run_at"`
	Paid             []PayrollLine `json:"paid"`
	Skipped          []PayrollLine `json:"skipped"`
	TotalPaid        money.Amount  `json:"total_paid"`
	ExpenseID        string        `json:"expense_id,omitempty"`
	NothingToProcess bool          `json:"nothing_to_process"`
}
