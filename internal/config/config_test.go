package config

import (
	"testing"
	"time"
)

func TestLoadDefaultsToMemoryStore(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("BASE_CURRENCY", "")

	cfg := Load()
	if cfg.StorageDriver != DriverMemory {
		t.Fatalf("expected memory driver, got %q", cfg.StorageDriver)
	}
	if cfg.BaseCurrency != "IDR" {
		t.Fatalf("expected IDR base currency, got %q", cfg.BaseCurrency)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestLoadPicksPostgresWhenDatabaseURLSet(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/shopledger")

	cfg := Load()
	if cfg.StorageDriver != DriverPostgres {
		t.Fatalf("expected postgres driver, got %q", cfg.StorageDriver)
	}
}

func TestLoadFallsBackOnBadNumbers(t *testing.T) {
	t.Setenv("REPORT_CACHE_TTL_SECONDS", "zero")
	t.Setenv("EXPIRY_WARNING_DAYS", "-4")

	cfg := Load()
	if cfg.ReportCacheTTL() != time.Minute {
		t.Fatalf("expected 60s cache ttl, got %s", cfg.ReportCacheTTL())
	}
	if cfg.ExpiryWarningDays != 30 {
		t.Fatalf("expected 30 warning days, got %d", cfg.ExpiryWarningDays)
	}
}

func TestValidateRejectsIncompleteDrivers(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "postgres without url", cfg: Config{StorageDriver: DriverPostgres, BaseCurrency: "IDR"}},
		{name: "sqlite without path", cfg: Config{StorageDriver: DriverSQLite, BaseCurrency: "IDR"}},
		{name: "unknown driver", cfg: Config{StorageDriver: "mongo", BaseCurrency: "IDR"}},
		{name: "no base currency", cfg: Config{StorageDriver: DriverMemory}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
