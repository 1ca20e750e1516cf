package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"shopledger/backend/internal/cache"
	"shopledger/backend/internal/config"
	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/money"
	"shopledger/backend/internal/service"
	"shopledger/backend/internal/store/memory"
)

func memoryOpener(svc *service.Service) opener {
	return func(context.Context) (*service.Service, func() error, error) {
		return svc, nil, nil
	}
}

func execute(t *testing.T, svc *service.Service, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(memoryOpener(svc))
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func newService() *service.Service {
	return service.New(memory.New(), money.MustConverter("IDR"), service.Options{})
}

func TestExportThenRestoreNeedsYes(t *testing.T) {
	ctx := context.Background()
	src := newService()
	if _, err := src.CreateProduct(ctx, domain.ProductCreateRequest{Name: "Betadine"}); err != nil {
		t.Fatalf("create product: %v", err)
	}
	file := filepath.Join(t.TempDir(), "backup.json")
	if _, err := execute(t, src, "export", "-o", file); err != nil {
		t.Fatalf("export: %v", err)
	}
	if info, err := os.Stat(file); err != nil || info.Size() == 0 {
		t.Fatalf("expected backup file, err=%v", err)
	}

	dst := newService()
	if _, err := execute(t, dst, "restore", file); err == nil {
		t.Fatalf("expected restore without --yes to fail")
	}
	out, err := execute(t, dst, "restore", file, "--yes")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !strings.Contains(out, "restored 2 records") {
		t.Fatalf("unexpected restore output: %q", out)
	}
	products, err := dst.ListProducts(ctx)
	if err != nil || len(products) != 1 || products[0].Name != "Betadine" {
		t.Fatalf("expected restored product, got %+v (err=%v)", products, err)
	}
}

func TestPayrollRunPrintsSettlement(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	emp, err := svc.CreateParty(ctx, domain.PartyEmployee, domain.PartyCreateRequest{Name: "Dewi", MonthlySalary: 5000})
	if err != nil {
		t.Fatalf("create employee: %v", err)
	}
	if _, err := svc.RecordTransaction(ctx, domain.PartyEmployee, emp.ID, domain.TransactionRequest{Kind: domain.TxAdvance, Amount: decimal.NewFromInt(1200)}); err != nil {
		t.Fatalf("advance: %v", err)
	}

	out, err := execute(t, svc, "payroll", "run")
	if err != nil {
		t.Fatalf("payroll run: %v", err)
	}
	if !strings.Contains(out, "Dewi") {
		t.Fatalf("expected employee in output, got %q", out)
	}
	if !strings.Contains(out, "total paid") {
		t.Fatalf("expected total line, got %q", out)
	}

	out, err = execute(t, newService(), "payroll", "run")
	if err != nil {
		t.Fatalf("payroll run without employees: %v", err)
	}
	if !strings.Contains(out, "nothing to process") {
		t.Fatalf("expected nothing to process, got %q", out)
	}
}

func TestReconcileAndStock(t *testing.T) {
	svc := newService()
	out, err := execute(t, svc, "reconcile")
	if err != nil || !strings.Contains(out, "no drift") {
		t.Fatalf("expected clean reconcile, got %q (err=%v)", out, err)
	}
	out, err = execute(t, svc, "stock")
	if err != nil || !strings.Contains(out, "TOTAL") {
		t.Fatalf("expected stock table, got %q (err=%v)", out, err)
	}
}

type recordingCache struct {
	cache.NoopReportCache
	invalidated int
	closed      bool
}

func (c *recordingCache) Invalidate(context.Context) error {
	c.invalidated++
	return nil
}

func TestRestoreFromConfigInvalidatesSharedCache(t *testing.T) {
	ctx := context.Background()
	src := newService()
	if _, err := src.CreateParty(ctx, domain.PartyCustomer, domain.PartyCreateRequest{Name: "Sari"}); err != nil {
		t.Fatalf("create customer: %v", err)
	}
	file := filepath.Join(t.TempDir(), "backup.json")
	if _, err := execute(t, src, "export", "-o", file); err != nil {
		t.Fatalf("export: %v", err)
	}

	reports := &recordingCache{}
	prev := openCache
	openCache = func(context.Context, config.Config, zerolog.Logger) (cache.ReportCache, func() error) {
		return reports, func() error {
			reports.closed = true
			return nil
		}
	}
	t.Cleanup(func() { openCache = prev })

	cfg := config.Config{StorageDriver: config.DriverMemory, BaseCurrency: "IDR", ReportCacheTTLSeconds: 60}
	var out bytes.Buffer
	root := newRootCmd(openFromConfig(cfg))
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"restore", file, "--yes"})
	if err := root.ExecuteContext(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if reports.invalidated != 1 {
		t.Fatalf("expected restore to invalidate the report cache once, got %d", reports.invalidated)
	}
	if !reports.closed {
		t.Fatalf("expected cache to be closed when the command finished")
	}
}
