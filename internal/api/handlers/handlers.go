// Package handlers implements the HTTP endpoints of the ledger server.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/voice-ledger/internal/api/middleware"
	"github.com/dvloznov/voice-ledger/internal/autosave"
	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/ledger"
	"github.com/dvloznov/voice-ledger/internal/logger"
	"github.com/go-chi/chi/v5"
)

// Ledger is the controller surface the HTTP API needs.
type Ledger interface {
	Snapshot() domain.LedgerDocument
	Loaded() bool
	UpdateInfoField(field domain.InfoField, value string) error
	AddTransaction(in ledger.NewTransaction) (string, error)
	UpdateTransaction(id string, field domain.TransactionField, value string) (bool, error)
	RemoveTransaction(id string) (bool, error)
	Reset(ctx context.Context) error
	AIAvailable() bool
	Busy() []ledger.Target
}

// Saver is the write-behind persistence the API can report on and force.
type Saver interface {
	Dirty() bool
	Flush(ctx context.Context) error
}

// LedgerView is the JSON shape of the ledger.
type LedgerView struct {
	domain.LedgerDocument
	Total int64 `json:"total"`
}

func newLedgerView(doc domain.LedgerDocument) LedgerView {
	if doc.Transactions == nil {
		doc.Transactions = []domain.Transaction{}
	}
	return LedgerView{LedgerDocument: doc, Total: doc.Total()}
}

// LedgerHandler handles ledger and transaction endpoints.
type LedgerHandler struct {
	ledger Ledger
	saver  Saver
}

// NewLedgerHandler creates a new ledger handler. saver may be nil when the
// ledger is not persisted.
func NewLedgerHandler(l Ledger, saver Saver) *LedgerHandler {
	return &LedgerHandler{ledger: l, saver: saver}
}

// GetLedger handles GET /api/ledger
func (h *LedgerHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, newLedgerView(h.ledger.Snapshot()))
}

// UpdateInfo handles PUT /api/ledger/info/{field}
func (h *LedgerHandler) UpdateInfo(w http.ResponseWriter, r *http.Request) {
	field, err := domain.ParseInfoField(chi.URLParam(r, "field"))
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	var req struct {
		Value *string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
		middleware.WriteError(w, http.StatusBadRequest, "Request body must be {\"value\": \"...\"}")
		return
	}

	if err := h.ledger.UpdateInfoField(field, *req.Value); err != nil {
		h.writeMutationError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newLedgerView(h.ledger.Snapshot()))
}

// transactionRequest accepts amount as a number or as free text; text is
// sanitized the same way typed input is.
type transactionRequest struct {
	Date        *string         `json:"date"`
	Description *string         `json:"description"`
	Amount      json.RawMessage `json:"amount"`
}

func (req transactionRequest) toNewTransaction() (ledger.NewTransaction, error) {
	out := ledger.NewTransaction{Date: req.Date, Description: req.Description}
	raw := strings.TrimSpace(string(req.Amount))
	if raw == "" || raw == "null" {
		return out, nil
	}

	var amount int64
	var s string
	if err := json.Unmarshal(req.Amount, &s); err == nil {
		amount = domain.SanitizeAmount(s)
	} else {
		var f float64
		if err := json.Unmarshal(req.Amount, &f); err != nil {
			return out, fmt.Errorf("amount must be a number or a string")
		}
		amount = domain.AmountFromNumber(f)
	}
	out.Amount = &amount
	return out, nil
}

// AddTransaction handles POST /api/transactions
func (h *LedgerHandler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	in, err := req.toNewTransaction()
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.ledger.AddTransaction(in)
	if err != nil {
		h.writeMutationError(w, r, err)
		return
	}

	doc := h.ledger.Snapshot()
	if i := doc.IndexOf(id); i >= 0 {
		middleware.WriteJSON(w, http.StatusCreated, doc.Transactions[i])
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// UpdateTransaction handles PATCH /api/transactions/{id}
func (h *LedgerHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Field string          `json:"field"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	field, err := domain.ParseTransactionField(req.Field)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	found, err := h.ledger.UpdateTransaction(id, field, rawValue(req.Value))
	if err != nil {
		h.writeMutationError(w, r, err)
		return
	}
	if !found {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	// A concurrent delete may land between the update and the snapshot.
	doc := h.ledger.Snapshot()
	i := doc.IndexOf(id)
	if i < 0 {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, doc.Transactions[i])
}

// rawValue turns a JSON string or number into the text the controller
// sanitizes.
func rawValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *LedgerHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	removed, err := h.ledger.RemoveTransaction(chi.URLParam(r, "id"))
	if err != nil {
		h.writeMutationError(w, r, err)
		return
	}
	if !removed {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reset handles POST /api/ledger/reset. The caller must confirm with
// ?confirm=true since the stored ledger is erased.
func (h *LedgerHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm")); !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Reset must be confirmed with ?confirm=true")
		return
	}
	if err := h.ledger.Reset(r.Context()); err != nil {
		h.writeMutationError(w, r, err)
		return
	}
	log := logger.FromContext(r.Context())
	log.Info().Msg("Ledger reset")
	middleware.WriteJSON(w, http.StatusOK, newLedgerView(h.ledger.Snapshot()))
}

// Save handles POST /api/ledger/save. It writes any debounced change now
// instead of waiting for the quiet period.
func (h *LedgerHandler) Save(w http.ResponseWriter, r *http.Request) {
	if h.saver == nil {
		middleware.WriteError(w, http.StatusNotImplemented, "Ledger is not persisted")
		return
	}
	if err := h.saver.Flush(r.Context()); err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to save ledger")
		if errors.Is(err, autosave.ErrClosed) {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Server is shutting down")
			return
		}
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save ledger")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"dirty": h.saver.Dirty()})
}

func (h *LedgerHandler) writeMutationError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ledger.ErrNotLoaded) {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Ledger is still loading")
		return
	}
	log := logger.FromContext(r.Context())
	log.Error().Err(err).Msg("Ledger mutation failed")
	middleware.WriteError(w, http.StatusBadRequest, err.Error())
}
