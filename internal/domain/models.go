package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"shopledger/backend/internal/money"
)

type Product struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	SalePrice       money.Amount `json:"sale_price"`
	UnitsPerPackage int          `json:"units_per_package"`
	Batches         []Batch      `json:"batches"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Batch is a lot of a product bought together. Quantity is what remains;
// a batch at zero stays on the product so historical lines can refer to it.
type Batch struct {
	ID                string          `json:"id"`
	LotNumber         string          `json:"lot_number"`
	Quantity          int             `json:"quantity"`
	Received          int             `json:"received"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	PurchasedAt       time.Time       `json:"purchased_at"`
	ExpiresAt         *time.Time      `json:"expires_at,omitempty"`
	PurchaseInvoiceID string          `json:"purchase_invoice_id,omitempty"`
}

func (p Product) OnHand() int {
	total := 0
	for _, b := range p.Batches {
		total += b.Quantity
	}
	return total
}

func (p Product) BatchByLot(lot string) (int, bool) {
	for i := range p.Batches {
		if p.Batches[i].LotNumber == lot {
			return i, true
		}
	}
	return -1, false
}

func (p Product) BatchByID(id string) (int, bool) {
	for i := range p.Batches {
		if p.Batches[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// Service is a non-stock catalog item such as a consultation or a delivery fee.
type Service struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Price     money.Amount `json:"price"`
	CreatedAt time.Time    `json:"created_at"`
}

type InvoiceKind string

const (
	InvoiceSale           InvoiceKind = "sale"
	InvoiceReturn         InvoiceKind = "return"
	InvoicePurchase       InvoiceKind = "purchase"
	InvoicePurchaseReturn InvoiceKind = "purchase_return"
)

// Prefix is the display-sequence prefix for the kind.
func (k InvoiceKind) Prefix() string {
	switch k {
	case InvoiceSale:
		return "F"
	case InvoiceReturn:
		return "R"
	case InvoicePurchase:
		return "P"
	case InvoicePurchaseReturn:
		return "PR"
	}
	return ""
}

func (k InvoiceKind) IsPurchaseSide() bool {
	return k == InvoicePurchase || k == InvoicePurchaseReturn
}

func (k InvoiceKind) IsReturn() bool {
	return k == InvoiceReturn || k == InvoicePurchaseReturn
}

// Allocation records how much of a line came out of (or went back into) one batch.
type Allocation struct {
	BatchID   string          `json:"batch_id"`
	LotNumber string          `json:"lot_number"`
	Quantity  int             `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

type LineItem struct {
	ProductID   string          `json:"product_id,omitempty"`
	ServiceID   string          `json:"service_id,omitempty"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	LotNumber   string          `json:"lot_number,omitempty"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	Allocations []Allocation    `json:"allocations,omitempty"`
	// OriginalLine is the index of the returned line on the original invoice.
	OriginalLine *int `json:"original_line,omitempty"`
}

func (l LineItem) Value() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l LineItem) IsProduct() bool { return l.ProductID != "" }

type Invoice struct {
	ID                string          `json:"id"`
	Number            string          `json:"number"`
	Kind              InvoiceKind     `json:"kind"`
	OriginalInvoiceID string          `json:"original_invoice_id,omitempty"`
	PartyID           string          `json:"party_id,omitempty"`
	Lines             []LineItem      `json:"lines"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Discount          decimal.Decimal `json:"discount"`
	Total             decimal.Decimal `json:"total"`
	Currency          string          `json:"currency"`
	ExchangeRate      decimal.Decimal `json:"exchange_rate"`
	BaseTotal         money.Amount    `json:"base_total"`
	Note              string          `json:"note,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// IsCredit reports whether the invoice is carried on a party's balance.
func (inv Invoice) IsCredit() bool { return inv.PartyID != "" }

type PartyKind string

const (
	PartyCustomer PartyKind = "customer"
	PartySupplier PartyKind = "supplier"
	PartyEmployee PartyKind = "employee"
)

type Party struct {
	ID            string       `json:"id"`
	Kind          PartyKind    `json:"kind"`
	Name          string       `json:"name"`
	Phone         string       `json:"phone,omitempty"`
	Address       string       `json:"address,omitempty"`
	Notes         string       `json:"notes,omitempty"`
	MonthlySalary money.Amount `json:"monthly_salary,omitempty"`
	Balance       money.Amount `json:"balance"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

type TransactionKind string

const (
	TxCreditSale     TransactionKind = "credit_sale"
	TxSaleReturn     TransactionKind = "sale_return"
	TxPurchase       TransactionKind = "purchase"
	TxPurchaseReturn TransactionKind = "purchase_return"
	TxPayment        TransactionKind = "payment"
	TxAdvance        TransactionKind = "advance"
	TxSalaryPayment  TransactionKind = "salary_payment"
	TxAdjustment     TransactionKind = "adjustment"
)

// Transaction is an immutable ledger entry. Amount is the figure recorded on
// the document; Delta is its signed effect on the party balance.
type Transaction struct {
	ID           string          `json:"id"`
	PartyID      string          `json:"party_id"`
	PartyKind    PartyKind       `json:"party_kind"`
	Kind         TransactionKind `json:"kind"`
	Amount       money.Amount    `json:"amount"`
	Delta        money.Amount    `json:"delta"`
	BalanceAfter money.Amount    `json:"balance_after"`
	Description  string          `json:"description,omitempty"`
	InvoiceID    string          `json:"invoice_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Expense struct {
	ID          string       `json:"id"`
	Date        time.Time    `json:"date"`
	Description string       `json:"description"`
	Amount      money.Amount `json:"amount"`
	Category    string       `json:"category"`
	CreatedAt   time.Time    `json:"created_at"`
}

const ExpenseCategorySalary = "salary"

type ActivityEntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

// Sequence is the last display number handed out for an invoice prefix.
type Sequence struct {
	ID   string `json:"id"`
	Last int64  `json:"last"`
}
