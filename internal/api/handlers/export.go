package handlers

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/dvloznov/voice-ledger/internal/api/middleware"
	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/export"
	"github.com/dvloznov/voice-ledger/internal/logger"
)

// Sharer is the export surface the HTTP API needs.
type Sharer interface {
	Share(ctx context.Context, doc domain.LedgerDocument) (export.ShareResult, error)
	SaveToDriveAssist(ctx context.Context, doc domain.LedgerDocument, confirm export.Confirmer) (export.DriveResult, error)
}

// ExportHandler handles spreadsheet export and sharing.
type ExportHandler struct {
	ledger Ledger
	sharer Sharer
}

// NewExportHandler creates a new export handler.
func NewExportHandler(l Ledger, s Sharer) *ExportHandler {
	return &ExportHandler{ledger: l, sharer: s}
}

// Download handles GET /api/export
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	artifact, err := export.Render(h.ledger.Snapshot())
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to render ledger")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to render ledger")
		return
	}

	w.Header().Set("Content-Type", artifact.MIMEType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": artifact.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(artifact.Data)
}

// Share handles POST /api/share
func (h *ExportHandler) Share(w http.ResponseWriter, r *http.Request) {
	res, err := h.sharer.Share(r.Context(), h.ledger.Snapshot())
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Share failed")
		status := http.StatusInternalServerError
		if errors.Is(err, export.ErrShareFailed) {
			status = http.StatusBadGateway
		}
		middleware.WriteError(w, status, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// SaveToDrive handles POST /api/drive. The ledger is saved locally; the
// drive page is opened only with ?open=true.
func (h *ExportHandler) SaveToDrive(w http.ResponseWriter, r *http.Request) {
	open, _ := strconv.ParseBool(r.URL.Query().Get("open"))
	confirm := export.ConfirmFunc(func(context.Context, string) (bool, error) {
		return open, nil
	})

	res, err := h.sharer.SaveToDriveAssist(r.Context(), h.ledger.Snapshot(), confirm)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Save to drive failed")
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}
