package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"shopledger/backend/internal/money"
)

type ProductCreateRequest struct {
	Name            string       `json:"name" validate:"required,max=200"`
	SalePrice       money.Amount `json:"sale_price" validate:"gte=0"`
	UnitsPerPackage int          `json:"units_per_package" validate:"gte=0"`
}

type ProductUpdateRequest struct {
	Name            *string       `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	SalePrice       *money.Amount `json:"sale_price,omitempty" validate:"omitempty,gte=0"`
	UnitsPerPackage *int          `json:"units_per_package,omitempty" validate:"omitempty,gte=0"`
}

type ServiceCreateRequest struct {
	Name  string       `json:"name" validate:"required,max=200"`
	Price money.Amount `json:"price" validate:"gte=0"`
}

// SaleLine names exactly one of ProductID or ServiceID.
type SaleLine struct {
	ProductID string          `json:"product_id,omitempty" validate:"required_without=ServiceID,excluded_with=ServiceID"`
	ServiceID string          `json:"service_id,omitempty" validate:"required_without=ProductID"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type SaleRequest struct {
	CustomerID   string          `json:"customer_id,omitempty"`
	Currency     string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	Discount     decimal.Decimal `json:"discount"`
	Lines        []SaleLine      `json:"lines" validate:"required,min=1,dive"`
	Note         string          `json:"note,omitempty" validate:"max=500"`
}

// ReturnLine refers to a line of the original invoice by its position.
type ReturnLine struct {
	Line     int `json:"line" validate:"gte=0"`
	Quantity int `json:"quantity" validate:"gt=0"`
}

type ReturnRequest struct {
	Lines []ReturnLine `json:"lines" validate:"required,min=1,dive"`
	Note  string       `json:"note,omitempty" validate:"max=500"`
}

type PurchaseLine struct {
	ProductID string          `json:"product_id" validate:"required"`
	LotNumber string          `json:"lot_number" validate:"required,max=64"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

type PurchaseRequest struct {
	SupplierID   string          `json:"supplier_id" validate:"required"`
	Currency     string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	Discount     decimal.Decimal `json:"discount"`
	Lines        []PurchaseLine  `json:"lines" validate:"required,min=1,dive"`
	Note         string          `json:"note,omitempty" validate:"max=500"`
}

type PartyCreateRequest struct {
	Name          string       `json:"name" validate:"required,max=200"`
	Phone         string       `json:"phone,omitempty" validate:"max=40"`
	Address       string       `json:"address,omitempty" validate:"max=300"`
	Notes         string       `json:"notes,omitempty" validate:"max=1000"`
	MonthlySalary money.Amount `json:"monthly_salary,omitempty" validate:"gte=0"`
}

type PartyUpdateRequest struct {
	Name          *string       `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Phone         *string       `json:"phone,omitempty" validate:"omitempty,max=40"`
	Address       *string       `json:"address,omitempty" validate:"omitempty,max=300"`
	Notes         *string       `json:"notes,omitempty" validate:"omitempty,max=1000"`
	MonthlySalary *money.Amount `json:"monthly_salary,omitempty" validate:"omitempty,gte=0"`
}

// TransactionRequest is a manual ledger entry. Amount is a magnitude for
// payments and advances and a signed correction for adjustments.
type TransactionRequest struct {
	Kind         TransactionKind `json:"kind" validate:"required,oneof=payment advance adjustment"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	Description  string          `json:"description,omitempty" validate:"max=500"`
}

type ExpenseRequest struct {
	Date        time.Time    `json:"date"`
	Description string       `json:"description" validate:"required,max=500"`
	Amount      money.Amount `json:"amount" validate:"gt=0"`
	Category    string       `json:"category" validate:"required,max=64"`
}
