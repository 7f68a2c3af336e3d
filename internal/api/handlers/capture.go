package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dvloznov/voice-ledger/internal/api/middleware"
	"github.com/dvloznov/voice-ledger/internal/capture"
	"github.com/dvloznov/voice-ledger/internal/jobs"
	"github.com/dvloznov/voice-ledger/internal/ledger"
	"github.com/dvloznov/voice-ledger/internal/logger"
	"github.com/dvloznov/voice-ledger/internal/transcribe"
	"github.com/go-chi/chi/v5"
)

// MaxAudioBytes bounds one uploaded recording.
const MaxAudioBytes = 25 << 20

// Capturer is the capture pipeline surface the HTTP API needs.
type Capturer interface {
	Capture(ctx context.Context, t ledger.Target, audio capture.Audio) (ledger.Applied, error)
	Submit(ctx context.Context, t ledger.Target, audio capture.Audio) (string, error)
	BeginRecording(t ledger.Target) error
	CancelRecording(t ledger.Target)
	State(t ledger.Target) capture.State
	Active() []capture.TargetStatus
	Notification() (capture.Notice, bool)
	DismissNotice()
}

// CaptureHandler handles voice capture endpoints.
type CaptureHandler struct {
	pipeline Capturer
	jobs     jobs.JobStore
}

// NewCaptureHandler creates a new capture handler. store may be nil when
// asynchronous capture is disabled.
func NewCaptureHandler(p Capturer, store jobs.JobStore) *CaptureHandler {
	return &CaptureHandler{pipeline: p, jobs: store}
}

// BeginRecording handles POST /api/capture/recording?target=&field=&id=
//
// The client calls it when the microphone opens so other views see the
// target as capturing.
func (h *CaptureHandler) BeginRecording(w http.ResponseWriter, r *http.Request) {
	target, err := ledger.ParseTarget(r.FormValue("target"), r.FormValue("field"), r.FormValue("id"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.pipeline.BeginRecording(target); err != nil {
		h.writeCaptureError(w, r, target, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, capture.TargetStatus{Target: target, State: h.pipeline.State(target)})
}

// CancelRecording handles DELETE /api/capture/recording?target=&field=&id=
func (h *CaptureHandler) CancelRecording(w http.ResponseWriter, r *http.Request) {
	target, err := ledger.ParseTarget(r.FormValue("target"), r.FormValue("field"), r.FormValue("id"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.pipeline.CancelRecording(target)
	middleware.WriteJSON(w, http.StatusOK, capture.TargetStatus{Target: target, State: h.pipeline.State(target)})
}

// Capture handles POST /api/capture
//
// Multipart form: audio (file), target (info|tx|new), field, id, async.
func (h *CaptureHandler) Capture(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxAudioBytes+1<<20)
	if err := r.ParseMultipartForm(MaxAudioBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Expected multipart form with an audio file")
		return
	}

	target, err := ledger.ParseTarget(r.FormValue("target"), r.FormValue("field"), r.FormValue("id"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read audio")
		return
	}
	mimeType := r.FormValue("mime")
	if mimeType == "" {
		mimeType = header.Header.Get("Content-Type")
	}
	audio := capture.Audio{Data: data, MIMEType: mimeType}

	if async, _ := strconv.ParseBool(r.FormValue("async")); async {
		jobID, err := h.pipeline.Submit(r.Context(), target, audio)
		if err != nil {
			h.writeCaptureError(w, r, target, err)
			return
		}
		middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
			"job_id": jobID,
			"status": string(jobs.JobStatusPending),
		})
		return
	}

	applied, err := h.pipeline.Capture(r.Context(), target, audio)
	if err != nil {
		h.writeCaptureError(w, r, target, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, applied)
}

func (h *CaptureHandler) writeCaptureError(w http.ResponseWriter, r *http.Request, t ledger.Target, err error) {
	body := map[string]interface{}{"error": err.Error(), "target": t}
	if n, ok := h.pipeline.Notification(); ok && n.Target == t {
		body["notice"] = n
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, capture.ErrTargetBusy):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrStale):
		status = http.StatusConflict
	case errors.Is(err, capture.ErrUnknownTarget):
		status = http.StatusNotFound
	case errors.Is(err, capture.ErrNoAudio):
		status = http.StatusBadRequest
	case errors.Is(err, capture.ErrAsyncDisabled):
		status = http.StatusNotImplemented
	case errors.Is(err, transcribe.ErrMissingCredential):
		status = http.StatusServiceUnavailable
	case errors.Is(err, transcribe.ErrServiceUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, ledger.ErrNotLoaded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("target", t.String()).Msg("Capture failed")
	}
	middleware.WriteJSON(w, status, body)
}

// GetJob handles GET /api/capture/jobs/{id}
func (h *CaptureHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	job, err := h.jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/capture/jobs
//
// Query: target (a target key such as "info:name", "tx:<id>" or "new"),
// status, limit, offset.
func (h *CaptureHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		TargetKey: query.Get("target"),
		Status:    jobs.JobStatus(query.Get("status")),
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	list := []*jobs.CaptureJob{}
	if h.jobs != nil {
		var err error
		list, err = h.jobs.ListJobs(r.Context(), filter)
		if err != nil {
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Msg("Failed to list jobs")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
			return
		}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}
