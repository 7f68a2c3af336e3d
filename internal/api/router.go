// Package api assembles the HTTP surface of the ledger server.
package api

import (
	"net/http"

	"github.com/dvloznov/voice-ledger/internal/api/handlers"
	"github.com/dvloznov/voice-ledger/internal/api/middleware"
	"github.com/dvloznov/voice-ledger/internal/jobs"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Deps are the collaborators behind the routes. Saver, Jobs, Recorder and
// Metrics may be nil.
type Deps struct {
	Ledger   handlers.Ledger
	Capture  handlers.Capturer
	Sharer   handlers.Sharer
	Saver    handlers.Saver
	Jobs     jobs.JobStore
	Recorder middleware.RequestRecorder
	Metrics  http.Handler
	Logger   zerolog.Logger
}

// NewRouter wires handlers and middleware.
func NewRouter(d Deps) http.Handler {
	ledgerHandler := handlers.NewLedgerHandler(d.Ledger, d.Saver)
	captureHandler := handlers.NewCaptureHandler(d.Capture, d.Jobs)
	exportHandler := handlers.NewExportHandler(d.Ledger, d.Sharer)
	statusHandler := handlers.NewStatusHandler(d.Ledger, d.Capture, d.Saver)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Logger))
	if d.Recorder != nil {
		r.Use(middleware.Metrics(d.Recorder))
	}
	r.Use(middleware.CORS)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", statusHandler.Health)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", statusHandler.GetStatus)
		r.Delete("/status/notice", statusHandler.DismissNotice)

		r.Get("/ledger", ledgerHandler.GetLedger)
		r.Put("/ledger/info/{field}", ledgerHandler.UpdateInfo)
		r.Post("/ledger/reset", ledgerHandler.Reset)
		r.Post("/ledger/save", ledgerHandler.Save)

		r.Post("/transactions", ledgerHandler.AddTransaction)
		r.Patch("/transactions/{id}", ledgerHandler.UpdateTransaction)
		r.Delete("/transactions/{id}", ledgerHandler.DeleteTransaction)

		r.Post("/capture", captureHandler.Capture)
		r.Post("/capture/recording", captureHandler.BeginRecording)
		r.Delete("/capture/recording", captureHandler.CancelRecording)
		r.Get("/capture/jobs", captureHandler.ListJobs)
		r.Get("/capture/jobs/{id}", captureHandler.GetJob)

		r.Get("/export", exportHandler.Download)
		r.Post("/share", exportHandler.Share)
		r.Post("/drive", exportHandler.SaveToDrive)
	})

	return r
}
