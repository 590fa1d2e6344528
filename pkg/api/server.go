// Package api serves the HTTP front door for job submission and
// retrieval.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.calcjobs.dev/calcjobs/pkg/job"
	"go.calcjobs.dev/calcjobs/pkg/store"
	"go.calcjobs.dev/calcjobs/pkg/submit"
	"go.uber.org/zap"
)

// MaxBodySize caps job submission bodies (10 MiB).
const MaxBodySize = 10 * 1024 * 1024

// JobReader is the slice of the store the read endpoints need.
type JobReader interface {
	GetJob(ctx context.Context, id string) (job.Job, error)
	ListJobs(ctx context.Context, page store.Page) (int, []job.Job, error)
	GetOperation(ctx context.Context, jobID, operationID string) (job.Operation, error)
	ListOperations(ctx context.Context, jobID string, page store.Page) (int, []job.Operation, error)
	CountCompleted(ctx context.Context, jobID string) (int, error)
}

// Submitter runs the submission pipeline behind the write endpoints.
type Submitter interface {
	Submit(ctx context.Context, body string) (*submit.Receipt, error)
	Delete(ctx context.Context, jobID string) error
}

// Server exposes the job API over HTTP.
type Server struct {
	Reader    JobReader
	Submitter Submitter
	Log       *zap.Logger
	Metrics   *Metrics
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.health)
	r.Route("/api/jobs", func(r chi.Router) {
		r.Post("/", s.createJob)
		r.Get("/", s.listJobs)
		r.Route("/{jobID}", func(r chi.Router) {
			r.Get("/", s.getJob)
			r.Delete("/", s.deleteJob)
			r.Get("/operations", s.listOperations)
			r.Get("/operations/{operationID}", s.getOperation)
		})
	})
	r.NotFound(s.fallback)
	r.MethodNotAllowed(s.fallback)
	return r
}

// HealthRouter serves the liveness probe and fallback route for
// services that do not expose the job API.
func HealthRouter(log *zap.Logger, metrics *Metrics) http.Handler {
	s := &Server{Log: log, Metrics: metrics}
	r := chi.NewRouter()
	r.Get("/health", s.health)
	r.NotFound(s.fallback)
	r.MethodNotAllowed(s.fallback)
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.Metrics.health.Add(r.Context(), 1)
	writeJSON(w, http.StatusOK, healthResponse{Status: "UP"})
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	s.Metrics.createJob.Add(r.Context(), 1)
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize+1))
	if err != nil {
		s.Log.Warn("Failed to read job body", zap.Error(err))
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if len(body) > MaxBodySize {
		s.Log.Warn("Rejecting oversize job body")
		http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
		return
	}
	receipt, err := s.Submitter.Submit(r.Context(), string(body))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newJobResponse{
		ID:                receipt.JobID,
		CreatedOperations: receipt.OperationCount,
		Status:            job.StatusInProgress,
	})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	s.Metrics.listJobs.Add(r.Context(), 1)
	page := pageFromQuery(r)
	total, jobs, err := s.Reader.ListJobs(r.Context(), page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]idResponse, len(jobs))
	for i, j := range jobs {
		items[i] = idResponse{ID: j.ID}
	}
	writeJSON(w, http.StatusOK, pageResponse{
		Page:  page.Number,
		Size:  page.Size,
		Total: total,
		Items: items,
	})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	s.Metrics.getJob.Add(r.Context(), 1)
	jobID := chi.URLParam(r, "jobID")
	j, err := s.Reader.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	completed, err := s.Reader.CountCompleted(r.Context(), jobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{
		ID:         j.ID,
		Operations: j.OperationCount,
		Status:     j.Status(completed),
	})
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	s.Metrics.deleteJob.Add(r.Context(), 1)
	if err := s.Submitter.Delete(r.Context(), chi.URLParam(r, "jobID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) listOperations(w http.ResponseWriter, r *http.Request) {
	s.Metrics.listOperations.Add(r.Context(), 1)
	page := pageFromQuery(r)
	total, ops, err := s.Reader.ListOperations(r.Context(), chi.URLParam(r, "jobID"), page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]idResponse, len(ops))
	for i, op := range ops {
		items[i] = idResponse{ID: op.ID}
	}
	writeJSON(w, http.StatusOK, pageResponse{
		Page:  page.Number,
		Size:  page.Size,
		Total: total,
		Items: items,
	})
}

func (s *Server) getOperation(w http.ResponseWriter, r *http.Request) {
	s.Metrics.getOperation.Add(r.Context(), 1)
	op, err := s.Reader.GetOperation(r.Context(),
		chi.URLParam(r, "jobID"), chi.URLParam(r, "operationID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := operationResponse{ID: op.ID, Request: op.Request}
	if op.HasResult {
		resp.Result = &op.Result
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) fallback(w http.ResponseWriter, r *http.Request) {
	s.Metrics.fallback.Add(r.Context(), 1)
	s.Log.Warn("Unexpected route targeted",
		zap.String("method", r.Method), zap.String("path", r.URL.Path))
	http.Error(w, "Unexpected route", http.StatusNotFound)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidID):
		http.Error(w, "invalid id", http.StatusBadRequest)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		s.Log.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
