package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"shopledger/backend/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	ErrReadOnly = errors.New("write attempted in read-only transaction")
)

const (
	Products             = "products"
	SaleInvoices         = "sale_invoices"
	PurchaseInvoices     = "purchase_invoices"
	Customers            = "customers"
	Suppliers            = "suppliers"
	Employees            = "employees"
	Expenses             = "expenses"
	Services             = "services"
	CustomerTransactions = "customer_transactions"
	SupplierTransactions = "supplier_transactions"
	PayrollTransactions  = "payroll_transactions"
	ActivityLog          = "activity_log"
	Settings             = "settings"
)

// Collections lists every collection in a stable order.
var Collections = []string{
	Products,
	SaleInvoices,
	PurchaseInvoices,
	Customers,
	Suppliers,
	Employees,
	Expenses,
	Services,
	CustomerTransactions,
	SupplierTransactions,
	PayrollTransactions,
	ActivityLog,
	Settings,
}

func IsCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}

// Tx is a handle on one unit of work. Writes become visible to other
// callers only when the surrounding Update returns nil.
type Tx interface {
	GetAll(collection string) ([]json.RawMessage, error)
	Get(collection string, id string) (json.RawMessage, error)
	Put(collection string, id string, doc json.RawMessage) error
	Delete(collection string, id string) error
	Clear(collection string) error
}

// Gateway runs functions inside transactions. If fn returns an error from
// Update, none of its writes are kept and the error is returned unchanged.
type Gateway interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
	Close() error
}

func Load[T any](tx Tx, collection string, id string) (T, error) {
	var out T
	doc, err := tx.Get(collection, id)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(doc, &out); err != nil {
		return out, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return out, nil
}

func LoadAll[T any](tx Tx, collection string) ([]T, error) {
	docs, err := tx.GetAll(collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := json.Unmarshal(doc, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", collection, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func Save(tx Tx, collection string, id string, v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	return tx.Put(collection, id, doc)
}

func PartyCollection(kind domain.PartyKind) (string, error) {
	switch kind {
	case domain.PartyCustomer:
		return Customers, nil
	case domain.PartySupplier:
		return Suppliers, nil
	case domain.PartyEmployee:
		return Employees, nil
	}
	return "", fmt.Errorf("unknown party kind %q", kind)
}

func TransactionCollection(kind domain.PartyKind) (string, error) {
	switch kind {
	case domain.PartyCustomer:
		return CustomerTransactions, nil
	case domain.PartySupplier:
		return SupplierTransactions, nil
	case domain.PartyEmployee:
		return PayrollTransactions, nil
	}
	return "", fmt.Errorf("unknown party kind %q", kind)
}

func InvoiceCollection(kind domain.InvoiceKind) string {
	if kind.IsPurchaseSide() {
		return PurchaseInvoices
	}
	return SaleInvoices
}
