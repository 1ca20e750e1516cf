package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"shopledger/backend/internal/apperr"
	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/logger"
	"shopledger/backend/internal/service"
	"shopledger/backend/internal/xid"
)

const (
	maxBodyBytes   = 1 << 20
	maxBackupBytes = 64 << 20
	restorePath    = "/api/v1/backup/restore"
)

type API struct {
	service       *service.Service
	allowedOrigin string
	log           zerolog.Logger
}

func New(svc *service.Service, allowedOrigin string) *API {
	return &API{
		service:       svc,
		allowedOrigin: allowedOrigin,
		log:           logger.WithComponent("httpapi"),
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealth)

	mux.HandleFunc("GET /api/v1/products", a.handleListProducts)
	mux.HandleFunc("POST /api/v1/products", a.handleCreateProduct)
	mux.HandleFunc("GET /api/v1/products/{id}", a.handleGetProduct)
	mux.HandleFunc("PATCH /api/v1/products/{id}", a.handleUpdateProduct)
	mux.HandleFunc("DELETE /api/v1/products/{id}", a.handleDeleteProduct)
	mux.HandleFunc("GET /api/v1/services", a.handleListServices)
	mux.HandleFunc("POST /api/v1/services", a.handleCreateService)

	mux.HandleFunc("GET /api/v1/sales", a.handleListInvoices(domain.InvoiceSale))
	mux.HandleFunc("POST /api/v1/sales", a.handleCreateSale)
	mux.HandleFunc("GET /api/v1/sales/{id}", a.handleGetInvoice(domain.InvoiceSale))
	mux.HandleFunc("PUT /api/v1/sales/{id}", a.handleEditSale)
	mux.HandleFunc("POST /api/v1/sales/{id}/returns", a.handleCreateReturn)

	mux.HandleFunc("GET /api/v1/purchases", a.handleListInvoices(domain.InvoicePurchase))
	mux.HandleFunc("POST /api/v1/purchases", a.handleCreatePurchase)
	mux.HandleFunc("GET /api/v1/purchases/{id}", a.handleGetInvoice(domain.InvoicePurchase))
	mux.HandleFunc("PUT /api/v1/purchases/{id}", a.handleEditPurchase)
	mux.HandleFunc("POST /api/v1/purchases/{id}/returns", a.handleCreatePurchaseReturn)

	for path, kind := range map[string]domain.PartyKind{
		"customers": domain.PartyCustomer,
		"suppliers": domain.PartySupplier,
		"employees": domain.PartyEmployee,
	} {
		base := "/api/v1/" + path
		mux.HandleFunc("GET "+base, a.handleListParties(kind))
		mux.HandleFunc("POST "+base, a.handleCreateParty(kind))
		mux.HandleFunc("GET "+base+"/{id}", a.handleGetParty(kind))
		mux.HandleFunc("PATCH "+base+"/{id}", a.handleUpdateParty(kind))
		mux.HandleFunc("DELETE "+base+"/{id}", a.handleDeleteParty(kind))
		mux.HandleFunc("GET "+base+"/{id}/statement", a.handleStatement(kind))
		mux.HandleFunc("POST "+base+"/{id}/transactions", a.handleRecordTransaction(kind))
	}

	mux.HandleFunc("POST /api/v1/payroll/run", a.handleRunPayroll)
	mux.HandleFunc("GET /api/v1/expenses", a.handleListExpenses)
	mux.HandleFunc("POST /api/v1/expenses", a.handleCreateExpense)
	mux.HandleFunc("GET /api/v1/reports/stock", a.handleStockReport)
	mux.HandleFunc("GET /api/v1/reports/profit", a.handleProfitReport)
	mux.HandleFunc("GET /api/v1/ledger/reconcile", a.handleReconcile)
	mux.HandleFunc("GET /api/v1/activity", a.handleActivity)
	mux.HandleFunc("GET /api/v1/backup", a.handleExport)
	mux.HandleFunc("POST "+restorePath, a.handleRestore)

	return a.withMiddleware(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = xid.New("req")
		}
		w.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			limit := int64(maxBodyBytes)
			if r.URL.Path == restorePath {
				limit = maxBackupBytes
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		reqLog := logger.WithRequestID(requestID)
		reqLog.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(startedAt)).
			Msg("request")
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validationf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return apperr.Validationf("invalid JSON body: %v", err)
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// parseDay accepts a calendar day or an RFC 3339 timestamp. With endOfRange
// a calendar day covers the whole day.
func parseDay(raw string, endOfRange bool) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, trimmed); err == nil {
		if endOfRange {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, apperr.Validationf("invalid date %q", raw)
	}
	return t.UTC(), nil
}

func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict, apperr.NonZeroBalance:
		return http.StatusConflict
	case apperr.InsufficientStock, apperr.MissingExchangeRate:
		return http.StatusUnprocessableEntity
	case apperr.Validation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// details lists every structured failure in err, including each member of
// a joined error.
func details(err error) []*apperr.Error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*apperr.Error
		for _, e := range joined.Unwrap() {
			out = append(out, details(e)...)
		}
		return out
	}
	var e *apperr.Error
	if errors.As(err, &e) {
		return []*apperr.Error{e}
	}
	return nil
}

func (a *API) writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		a.log.Error().Err(err).Int("status", status).Msg("internal error")
		writeJSON(w, status, map[string]any{"error": "internal server error"})
		return
	}
	payload := map[string]any{
		"error": err.Error(),
		"kind":  apperr.KindOf(err),
	}
	if d := details(err); len(d) > 0 {
		payload["details"] = d
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
