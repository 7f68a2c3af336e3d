package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/voice-ledger/internal/api/middleware"
	"github.com/dvloznov/voice-ledger/internal/capture"
	"github.com/dvloznov/voice-ledger/internal/ledger"
)

// Status is the UI-facing state outside the ledger document. Targets lists
// every target that is capturing, processing or showing an error; Dirty is
// set while a change waits for the debounced write.
type Status struct {
	Loaded      bool                   `json:"loaded"`
	AIAvailable bool                   `json:"aiAvailable"`
	Busy        []ledger.Target        `json:"busy"`
	Targets     []capture.TargetStatus `json:"targets"`
	Dirty       bool                   `json:"dirty"`
	Notice      *capture.Notice        `json:"notice,omitempty"`
	Time        string                 `json:"time"`
}

// StatusHandler reports controller and pipeline state.
type StatusHandler struct {
	ledger   Ledger
	pipeline Capturer
	saver    Saver
	now      func() time.Time
}

// NewStatusHandler creates a new status handler. saver may be nil.
func NewStatusHandler(l Ledger, p Capturer, saver Saver) *StatusHandler {
	return &StatusHandler{ledger: l, pipeline: p, saver: saver, now: time.Now}
}

// GetStatus handles GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := Status{
		Loaded:      h.ledger.Loaded(),
		AIAvailable: h.ledger.AIAvailable(),
		Busy:        h.ledger.Busy(),
		Targets:     h.pipeline.Active(),
		Time:        h.now().Format(time.RFC3339),
	}
	if st.Busy == nil {
		st.Busy = []ledger.Target{}
	}
	if h.saver != nil {
		st.Dirty = h.saver.Dirty()
	}
	if n, ok := h.pipeline.Notification(); ok {
		st.Notice = &n
	}
	middleware.WriteJSON(w, http.StatusOK, st)
}

// DismissNotice handles DELETE /api/status/notice
func (h *StatusHandler) DismissNotice(w http.ResponseWriter, r *http.Request) {
	h.pipeline.DismissNotice()
	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   h.now().Format(time.RFC3339),
	})
}
