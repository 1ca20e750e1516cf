package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"shopledger/backend/internal/apperr"
	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/xid"
)

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	err := s.view(ctx, func(tx store.Tx) error {
		products, err := store.LoadAll[domain.Product](tx, store.Products)
		if err != nil {
			return err
		}
		slices.SortFunc(products, func(a, b domain.Product) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
		out = products
		return nil
	})
	return out, err
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var out domain.Product
	err := s.view(ctx, func(tx store.Tx) error {
		p, err := loadProduct(tx, id)
		out = p
		return err
	})
	return out, err
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := s.check(req); err != nil {
		return domain.Product{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Product{}, apperr.Validationf("name is required")
	}

	now := s.now()
	product := domain.Product{
		ID:              xid.New("prd"),
		Name:            name,
		SalePrice:       req.SalePrice,
		UnitsPerPackage: req.UnitsPerPackage,
		Batches:         []domain.Batch{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err := s.update(ctx, func(tx store.Tx) error {
		if err := store.Save(tx, store.Products, product.ID, product); err != nil {
			return apperr.Persistence("save product", err)
		}
		return s.logAudit(tx, "product_create", "product", product.ID, fmt.Sprintf("name=%s,price=%d", product.Name, product.SalePrice))
	})
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// UpdateProduct changes catalogue fields. Batches only change through
// invoices.
func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := s.check(req); err != nil {
		return domain.Product{}, err
	}
	var out domain.Product
	err := s.update(ctx, func(tx store.Tx) error {
		product, err := loadProduct(tx, id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return apperr.Validationf("name is required").WithID("product_id", id)
			}
			product.Name = name
		}
		if req.SalePrice != nil {
			product.SalePrice = *req.SalePrice
		}
		if req.UnitsPerPackage != nil {
			product.UnitsPerPackage = *req.UnitsPerPackage
		}
		product.UpdatedAt = s.now()
		if err := store.Save(tx, store.Products, product.ID, product); err != nil {
			return apperr.Persistence("save product", err)
		}
		out = product
		return s.logAudit(tx, "product_update", "product", product.ID, fmt.Sprintf("name=%s,price=%d", product.Name, product.SalePrice))
	})
	return out, err
}

// DeleteProduct removes a product with no stock on hand that no invoice
// refers to.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	return s.update(ctx, func(tx store.Tx) error {
		product, err := loadProduct(tx, id)
		if err != nil {
			return err
		}
		if onHand := product.OnHand(); onHand > 0 {
			return apperr.Conflictf("product still has %d units on hand", onHand).WithID("product_id", id)
		}
		for _, coll := range []string{store.SaleInvoices, store.PurchaseInvoices} {
			invoices, err := store.LoadAll[domain.Invoice](tx, coll)
			if err != nil {
				return apperr.Persistence("scan invoices", err)
			}
			for _, inv := range invoices {
				for _, line := range inv.Lines {
					if line.ProductID == id {
						return apperr.Conflictf("product is used by invoice %s", inv.Number).WithID("product_id", id).WithID("invoice_id", inv.ID)
					}
				}
			}
		}
		if err := tx.Delete(store.Products, id); err != nil {
			return apperr.Persistence("delete product", err)
		}
		return s.logAudit(tx, "product_delete", "product", id, product.Name)
	})
}

func (s *Service) ListServices(ctx context.Context) ([]domain.Service, error) {
	var out []domain.Service
	err := s.view(ctx, func(tx store.Tx) error {
		services, err := store.LoadAll[domain.Service](tx, store.Services)
		if err != nil {
			return err
		}
		slices.SortFunc(services, func(a, b domain.Service) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
		out = services
		return nil
	})
	return out, err
}

func (s *Service) CreateService(ctx context.Context, req domain.ServiceCreateRequest) (domain.Service, error) {
	if err := s.check(req); err != nil {
		return domain.Service{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Service{}, apperr.Validationf("name is required")
	}
	svc := domain.Service{
		ID:        xid.New("svc"),
		Name:      name,
		Price:     req.Price,
		CreatedAt: s.now(),
	}
	err := s.update(ctx, func(tx store.Tx) error {
		if err := store.Save(tx, store.Services, svc.ID, svc); err != nil {
			return apperr.Persistence("save service", err)
		}
		return s.logAudit(tx, "service_create", "service", svc.ID, fmt.Sprintf("name=%s,price=%d", svc.Name, svc.Price))
	})
	if err != nil {
		return domain.Service{}, err
	}
	return svc, nil
}

func loadProduct(tx store.Tx, id string) (domain.Product, error) {
	p, err := store.Load[domain.Product](tx, store.Products, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Product{}, apperr.NotFoundf("product", id)
		}
		return domain.Product{}, apperr.Persistence("load product", err)
	}
	return p, nil
}

func sortNewestFirst[T any](items []T, key func(T) (time.Time, string)) {
	slices.SortFunc(items, func(a, b T) int {
		at, aid := key(a)
		bt, bid := key(b)
		if c := bt.Compare(at); c != 0 {
			return c
		}
		return strings.Compare(bid, aid)
	})
}
