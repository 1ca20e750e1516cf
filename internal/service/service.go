package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"shopledger/backend/internal/apperr"
	"shopledger/backend/internal/cache"
	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/invoice"
	"shopledger/backend/internal/ledger"
	"shopledger/backend/internal/logger"
	"shopledger/backend/internal/money"
	"shopledger/backend/internal/payroll"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/xid"
)

type Options struct {
	Cache       cache.ReportCache
	CacheTTL    time.Duration
	WarningDays int
	Now         func() time.Time
}

// Service is the command boundary of the ledger. Every mutating call runs in
// one gateway Update and writes its activity-log entry in the same unit.
type Service struct {
	gw          store.Gateway
	conv        *money.Converter
	ledger      *ledger.Ledger
	invoices    *invoice.Engine
	payroll     *payroll.Settlement
	cache       cache.ReportCache
	cacheTTL    time.Duration
	warningDays int
	validate    *validator.Validate
	now         func() time.Time
	log         zerolog.Logger
}

func New(gw store.Gateway, conv *money.Converter, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopReportCache{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.WarningDays <= 0 {
		opts.WarningDays = 30
	}

	l := ledger.New(opts.Now)
	return &Service{
		gw:          gw,
		conv:        conv,
		ledger:      l,
		invoices:    invoice.New(conv, l, opts.Now),
		payroll:     payroll.New(l, opts.Now),
		cache:       opts.Cache,
		cacheTTL:    opts.CacheTTL,
		warningDays: opts.WarningDays,
		validate:    newValidator(),
		now:         opts.Now,
		log:         logger.WithComponent("service"),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// check runs struct validation and reports every failing field at once.
func (s *Service) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Validationf("%v", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s", field, fe.Tag()))
		}
	}
	return apperr.Validationf("%s", strings.Join(msgs, "; "))
}

func (s *Service) view(ctx context.Context, fn func(tx store.Tx) error) error {
	return apperr.Persistence("read", s.gw.View(ctx, fn))
}

// update commits fn and then drops cached read models.
func (s *Service) update(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := s.gw.Update(ctx, fn); err != nil {
		return apperr.Persistence("commit", err)
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to invalidate report cache")
	}
	return nil
}

// logAudit stages an activity-log entry on tx.
func (s *Service) logAudit(tx store.Tx, action string, entityType string, entityID string, detail string) error {
	entry := domain.ActivityEntry{
		ID:         xid.New("act"),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  s.now(),
	}
	if err := store.Save(tx, store.ActivityLog, entry.ID, entry); err != nil {
		return apperr.Persistence("write activity log", err)
	}
	return nil
}

// cached looks key up. On a miss the returned generation is the one the
// freshly built value must be remembered under.
func (s *Service) cached(ctx context.Context, key string, dest any) (cache.Generation, bool) {
	gen, hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("report cache read failed")
		return gen, false
	}
	return gen, hit
}

func (s *Service) remember(ctx context.Context, gen cache.Generation, key string, value any) {
	if err := s.cache.Set(ctx, gen, key, value, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("report cache write failed")
	}
}

// ListActivity returns the newest activity-log entries first.
func (s *Service) ListActivity(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	if limit < 1 {
		limit = 100
	}
	var out []domain.ActivityEntry
	err := s.view(ctx, func(tx store.Tx) error {
		all, err := store.LoadAll[domain.ActivityEntry](tx, store.ActivityLog)
		if err != nil {
			return err
		}
		sortNewestFirst(all, func(e domain.ActivityEntry) (time.Time, string) { return e.CreatedAt, e.ID })
		if len(all) > limit {
			all = all[:limit]
		}
		out = all
		return nil
	})
	return out, err
}

func (s *Service) BaseCurrency() string {
	return s.conv.Base()
}
