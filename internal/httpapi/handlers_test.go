package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"shopledger/backend/internal/money"
	"shopledger/backend/internal/service"
	"shopledger/backend/internal/store/memory"
)

// newTestAPI builds a full API over an in-memory store so handler tests
// exercise the complete request path.
func newTestAPI(t *testing.T) http.Handler {
	t.Helper()
	svc := service.New(memory.New(), money.MustConverter("IDR"), service.Options{})
	return New(svc, "*").Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func idOf(t *testing.T, body map[string]any, key string) string {
	t.Helper()
	obj, ok := body[key].(map[string]any)
	if !ok {
		t.Fatalf("missing %q in %v", key, body)
	}
	id, _ := obj["id"].(string)
	if id == "" {
		t.Fatalf("missing id in %v", obj)
	}
	return id
}

func TestHandleHealth(t *testing.T) {
	h := newTestAPI(t)
	rec := do(t, h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["ok"] != true || body["base_currency"] != "IDR" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestMiddlewareSetsSecurityHeadersAndRequestID(t *testing.T) {
	h := newTestAPI(t)
	rec := do(t, h, http.MethodGet, "/healthz", nil)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options nosniff, got %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := rec.Header().Get("X-Request-ID"); !strings.HasPrefix(got, "req-") {
		t.Fatalf("expected generated request id, got %q", got)
	}

	pre := httptest.NewRequest(http.MethodOptions, "/api/v1/products", nil)
	preRec := httptest.NewRecorder()
	h.ServeHTTP(preRec, pre)
	if preRec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", preRec.Code)
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	h := newTestAPI(t)
	body := `{"name":"` + strings.Repeat("a", maxBodyBytes+1024) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized body, got %d", rec.Code)
	}
}

func TestErrorKindsMapToStatusCodes(t *testing.T) {
	h := newTestAPI(t)

	if rec := do(t, h, http.MethodGet, "/api/v1/products/prd-missing", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	} else if body := decode(t, rec); body["kind"] != "not_found" {
		t.Fatalf("expected not_found kind, got %v", body["kind"])
	}

	if rec := do(t, h, http.MethodPost, "/api/v1/products", map[string]any{"name": "X", "colour": "red"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}

	if rec := do(t, h, http.MethodPost, "/api/v1/sales", map[string]any{"lines": []any{}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty cart, got %d", rec.Code)
	}

	if rec := do(t, h, http.MethodDelete, "/api/v1/healthz", nil); rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 404 or 405, got %d", rec.Code)
	}
}

func TestSaleAndLedgerEndpoints(t *testing.T) {
	h := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/api/v1/products", map[string]any{"name": "Amoxicillin", "sale_price": 2000})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product: %d %s", rec.Code, rec.Body.String())
	}
	productID := idOf(t, decode(t, rec), "product")

	rec = do(t, h, http.MethodPost, "/api/v1/suppliers", map[string]any{"name": "PT Kimia"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create supplier: %d %s", rec.Code, rec.Body.String())
	}
	supplierID := idOf(t, decode(t, rec), "party")

	rec = do(t, h, http.MethodPost, "/api/v1/purchases", map[string]any{
		"supplier_id": supplierID,
		"lines":       []any{map[string]any{"product_id": productID, "lot_number": "AMX-1", "quantity": 5, "unit_cost": "1200"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create purchase: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/api/v1/customers", map[string]any{"name": "Klinik Mawar"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create customer: %d %s", rec.Code, rec.Body.String())
	}
	customerID := idOf(t, decode(t, rec), "party")

	rec = do(t, h, http.MethodPost, "/api/v1/sales", map[string]any{
		"customer_id": customerID,
		"lines":       []any{map[string]any{"product_id": productID, "quantity": 9, "unit_price": "2000"}},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for short stock, got %d %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	detailsList, _ := body["details"].([]any)
	if len(detailsList) != 1 {
		t.Fatalf("expected one shortfall detail, got %v", body)
	}
	if shortfall := detailsList[0].(map[string]any)["shortfall"]; shortfall != float64(4) {
		t.Fatalf("expected shortfall 4, got %v", shortfall)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/sales", map[string]any{
		"customer_id": customerID,
		"lines":       []any{map[string]any{"product_id": productID, "quantity": 2, "unit_price": "2000"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sale: %d %s", rec.Code, rec.Body.String())
	}
	saleID := idOf(t, decode(t, rec), "invoice")

	if rec := do(t, h, http.MethodGet, "/api/v1/sales/"+saleID, nil); rec.Code != http.StatusOK {
		t.Fatalf("get sale: %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/customers/"+customerID+"/statement", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("statement: %d", rec.Code)
	}
	party := decode(t, rec)["party"].(map[string]any)
	if party["balance"] != float64(4000) {
		t.Fatalf("expected balance 4000, got %v", party["balance"])
	}

	if rec := do(t, h, http.MethodDelete, "/api/v1/customers/"+customerID, nil); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 deleting customer with balance, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/customers/"+customerID+"/transactions", map[string]any{"kind": "payment", "amount": "4000"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("payment: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodDelete, "/api/v1/customers/"+customerID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 after settling, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/v1/reports/stock", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stock report: %d", rec.Code)
	}
	products := decode(t, rec)["products"].([]any)
	if products[0].(map[string]any)["on_hand"] != float64(3) {
		t.Fatalf("expected 3 on hand, got %v", products[0])
	}
}

func TestRestoreRequiresConfirmation(t *testing.T) {
	h := newTestAPI(t)
	rec := do(t, h, http.MethodGet, "/api/v1/backup", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d", rec.Code)
	}
	doc := rec.Body.Bytes()

	post := func(path string) int {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(doc))
		req.Header.Set("Content-Type", "application/json")
		res := httptest.NewRecorder()
		h.ServeHTTP(res, req)
		return res.Code
	}
	if code := post("/api/v1/backup/restore"); code != http.StatusBadRequest {
		t.Fatalf("expected 400 without confirm, got %d", code)
	}
	if code := post("/api/v1/backup/restore?confirm=true"); code != http.StatusOK {
		t.Fatalf("expected 200 with confirm, got %d", code)
	}
}
