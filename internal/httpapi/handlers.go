package httpapi

import (
	"net/http"
	"strings"
	"time"

	"shopledger/backend/internal/backup"
	"shopledger/backend/internal/domain"
)

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"at":            time.Now().UTC().Format(time.RFC3339),
		"base_currency": a.service.BaseCurrency(),
	})
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context())
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeFailure(w, err)
		return
	}
	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeFailure(w, err)
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteProduct(r.Context(), r.PathValue("id")); err != nil {
		a.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := a.service.ListServices(r.Context())
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (a *API) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var req domain.ServiceCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeFailure(w, err)
		return
	}
	svc, err := a.service.CreateService(r.Context(), req)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"service": svc})
}

// handleListInvoices lists originals by default; ?kind=return lists the
// returns of the same side.
func (a *API) handleListInvoices(kind domain.InvoiceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		want := kind
		if strings.EqualFold(r.URL.Query().Get("kind"), "return") {
			want = domain.InvoiceReturn
			if kind == domain.InvoicePurchase {
				want = domain.InvoicePurchaseReturn
			}
		}
		invoices, err := a.service.ListInvoices(r.Context(), want)
		if err != nil {
			a.writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
	}
}

func (a *API) handleGetInvoice(kind domain.InvoiceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, err := a.service.GetInvoice(r.Context(), kind, r.PathValue("id"))
		if err != nil {
			a.writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoice": inv})
	}
}

func (a *API) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeFailure(w, err)
		return
	}
	inv, err := a.service.CreateSale(r.Context(), req)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"invoice": inv})
}

func (a *API) handleEditSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeFailure(w, err)
		return
	}
	inv, err := a.service.EditSale(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": inv})
}

func (a *API) handleCreateReturn(w http.ResponseWriter, r *http.Request) {
	var req domain.ReturnRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeFailure(w, err)
		return
	}
	inv, err := a.service.CreateReturn(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"invoice": inv})
}

func (a *API) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req domain.PurchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeFailure(w, err)
		return
	}
	inv, err := a.service.CreatePurchase(r.Context(), req)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"invoice": inv})
}

func (a *API) handleEditPurchase(w http.ResponseWriter, r *http.Request) {
	var req domain.PurchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeFailure(w, err)
		return
	}
	inv, err := a.service.EditPurchase(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": inv})
}

func (a *API) handleCreatePurchaseReturn(w http.ResponseWriter, r *http.Request) {
	var req domain.ReturnRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeFailure(w, err)
		return
	}
	inv, err := a.service.CreatePurchaseReturn(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"invoice": inv})
}

func (a *API) handleListParties(kind domain.PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parties, err := a.service.ListParties(r.Context(), kind)
		if err != nil {
			a.writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"parties": parties})
	}
}

func (a *API) handleCreateParty(kind domain.PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.PartyCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeFailure(w, err)
			return
		}
		party, err := a.service.CreateParty(r.Context(), kind, req)
		if err != nil {
			a.writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"party": party})
	}
}

func (a *API) handleGetParty(kind domain.PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		party, err := a.service.GetParty(r.Context(), kind, r.PathValue("id"))
		if err != nil {
			a.writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"party": party})
	}
}

func (a *API) handleUpdateParty(kind domain.PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.PartyUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeFailure(w, err)
			return
		}
		party, err := a.service.UpdateParty(r.Context(), kind, r.PathValue("id"), req)
		if err != nil {
			a.writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"party": party})
	}
}

func (a *API) handleDeleteParty(kind domain.PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := a.service.DeleteParty(r.Context(), kind, r.PathValue("id")); err != nil {
			a.writeFailure(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *API) handleStatement(kind domain.PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := a.service.Statement(r.Context(), kind, r.PathValue("id"))
		if err != nil {
			a.writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func (a *API) handleRecordTransaction(kind domain.PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.TransactionRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeFailure(w, err)
			return
		}
		txn, err := a.service.RecordTransaction(r.Context(), kind, r.PathValue("id"), req)
		if err != nil {
			a.writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"transaction": txn})
	}
}

func (a *API) handleRunPayroll(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.RunPayroll(r.Context())
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	from, to, err := dayRange(r)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	expenses, err := a.service.ListExpenses(r.Context(), from, to)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
}

func (a *API) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req domain.ExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeFailure(w, err)
		return
	}
	expense, err := a.service.CreateExpense(r.Context(), req)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"expense": expense})
}

func (a *API) handleStockReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.service.StockReport(r.Context())
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleProfitReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := dayRange(r)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	summary, err := a.service.ProfitSummary(r.Context(), from, to)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := a.service.Reconcile(r.Context())
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 1000)
	entries, err := a.service.ListActivity(r.Context(), limit)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	doc, err := a.service.Export(r.Context())
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="shopledger-backup.json"`)
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) handleRestore(w http.ResponseWriter, r *http.Request) {
	var doc backup.Document
	if err := decodeJSON(r, &doc); err != nil {
		a.writeFailure(w, err)
		return
	}
	confirmed := r.URL.Query().Get("confirm") == "true"
	counts, err := a.service.Restore(r.Context(), doc, confirmed)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"restored": counts})
}

func dayRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := parseDay(r.URL.Query().Get("from"), false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDay(r.URL.Query().Get("to"), true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}
