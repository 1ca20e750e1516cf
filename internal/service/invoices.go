package service

import (
	"context"
	"errors"
	"fmt"

	"shopledger/backend/internal/apperr"
	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/store"
)

func (s *Service) CreateSale(ctx context.Context, req domain.SaleRequest) (domain.Invoice, error) {
	if err := s.check(req); err != nil {
		return domain.Invoice{}, err
	}
	var out domain.Invoice
	err := s.update(ctx, func(tx store.Tx) error {
		inv, err := s.invoices.CreateSale(tx, req)
		if err != nil {
			return err
		}
		out = inv
		return s.logAudit(tx, "sale_create", "invoice", inv.ID, invoiceDetail(inv))
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	s.log.Info().Str("invoice_id", out.ID).Str("number", out.Number).Int64("base_total", int64(out.BaseTotal)).Msg("sale committed")
	return out, nil
}

func (s *Service) EditSale(ctx context.Context, id string, req domain.SaleRequest) (domain.Invoice, error) {
	if err := s.check(req); err != nil {
		return domain.Invoice{}, err
	}
	var out domain.Invoice
	err := s.update(ctx, func(tx store.Tx) error {
		inv, err := s.invoices.EditSale(tx, id, req)
		if err != nil {
			return err
		}
		out = inv
		return s.logAudit(tx, "sale_edit", "invoice", inv.ID, invoiceDetail(inv))
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	s.log.Info().Str("invoice_id", out.ID).Str("number", out.Number).Int64("base_total", int64(out.BaseTotal)).Msg("sale edited")
	return out, nil
}

func (s *Service) CreateReturn(ctx context.Context, saleID string, req domain.ReturnRequest) (domain.Invoice, error) {
	if err := s.check(req); err != nil {
		return domain.Invoice{}, err
	}
	var out domain.Invoice
	err := s.update(ctx, func(tx store.Tx) error {
		ret, err := s.invoices.CreateReturn(tx, saleID, req)
		if err != nil {
			return err
		}
		out = ret
		return s.logAudit(tx, "sale_return", "invoice", ret.ID, fmt.Sprintf("%s,original=%s", invoiceDetail(ret), saleID))
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	s.log.Info().Str("invoice_id", out.ID).Str("original_id", saleID).Int64("base_total", int64(out.BaseTotal)).Msg("sale return committed")
	return out, nil
}

func (s *Service) CreatePurchase(ctx context.Context, req domain.PurchaseRequest) (domain.Invoice, error) {
	if err := s.check(req); err != nil {
		return domain.Invoice{}, err
	}
	var out domain.Invoice
	err := s.update(ctx, func(tx store.Tx) error {
		inv, err := s.invoices.CreatePurchase(tx, req)
		if err != nil {
			return err
		}
		out = inv
		return s.logAudit(tx, "purchase_create", "invoice", inv.ID, invoiceDetail(inv))
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	s.log.Info().Str("invoice_id", out.ID).Str("number", out.Number).Int64("base_total", int64(out.BaseTotal)).Msg("purchase committed")
	return out, nil
}

func (s *Service) EditPurchase(ctx context.Context, id string, req domain.PurchaseRequest) (domain.Invoice, error) {
	if err := s.check(req); err != nil {
		return domain.Invoice{}, err
	}
	var out domain.Invoice
	err := s.update(ctx, func(tx store.Tx) error {
		inv, err := s.invoices.EditPurchase(tx, id, req)
		if err != nil {
			return err
		}
		out = inv
		return s.logAudit(tx, "purchase_edit", "invoice", inv.ID, invoiceDetail(inv))
	})
	return out, err
}

func (s *Service) CreatePurchaseReturn(ctx context.Context, purchaseID string, req domain.ReturnRequest) (domain.Invoice, error) {
	if err := s.check(req); err != nil {
		return domain.Invoice{}, err
	}
	var out domain.Invoice
	err := s.update(ctx, func(tx store.Tx) error {
		ret, err := s.invoices.CreatePurchaseReturn(tx, purchaseID, req)
		if err != nil {
			return err
		}
		out = ret
		return s.logAudit(tx, "purchase_return", "invoice", ret.ID, fmt.Sprintf("%s,original=%s", invoiceDetail(ret), purchaseID))
	})
	return out, err
}

// GetInvoice loads an invoice from the sale or purchase side. Returns live
// in the same collection as their originals, so both kinds are tried.
func (s *Service) GetInvoice(ctx context.Context, kind domain.InvoiceKind, id string) (domain.Invoice, error) {
	var out domain.Invoice
	err := s.view(ctx, func(tx store.Tx) error {
		inv, err := s.invoices.Get(tx, kind, id)
		if errors.Is(err, apperr.NotFound) {
			inv, err = s.invoices.Get(tx, counterpart(kind), id)
		}
		out = inv
		return err
	})
	return out, err
}

// ListInvoices returns invoices of one kind, newest first.
func (s *Service) ListInvoices(ctx context.Context, kind domain.InvoiceKind) ([]domain.Invoice, error) {
	var out []domain.Invoice
	err := s.view(ctx, func(tx store.Tx) error {
		list, err := s.invoices.List(tx, kind)
		out = list
		return err
	})
	return out, err
}

func counterpart(kind domain.InvoiceKind) domain.InvoiceKind {
	switch kind {
	case domain.InvoiceSale:
		return domain.InvoiceReturn
	case domain.InvoiceReturn:
		return domain.InvoiceSale
	case domain.InvoicePurchase:
		return domain.InvoicePurchaseReturn
	}
	return domain.InvoicePurchase
}

func invoiceDetail(inv domain.Invoice) string {
	return fmt.Sprintf("number=%s,party=%s,lines=%d,total=%s %s,base=%d", inv.Number, inv.PartyID, len(inv.Lines), inv.Total, inv.Currency, inv.BaseTotal)
}
