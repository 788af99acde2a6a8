package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/annualguard/annualguard/internal/application/pipeline"
	domai "github.com/annualguard/annualguard/internal/domain/ai"
	"github.com/annualguard/annualguard/internal/domain/analysis"
	"github.com/annualguard/annualguard/internal/domain/verdict"
	"github.com/annualguard/annualguard/internal/middleware"
)

type Router struct {
	svc *pipeline.Service
}

func NewRouter(svc *pipeline.Service) http.Handler {
	r := &Router{svc: svc}
	mux := chi.NewRouter()

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(middleware.TenantMiddleware)
		rt.Post("/reports/analyze", r.wrap(r.handleAnalyze))
		rt.Get("/analyses/latest", r.wrap(r.handleLatest))
		rt.Get("/analyses/{id}", r.wrap(r.handleGetJob))
		rt.Get("/analyses/{id}/events", r.wrap(r.handleEvents))
		rt.Get("/analyses/{id}/failures", r.wrap(r.handleFailures))
		rt.Get("/cache/{hash}", r.wrap(r.handleCache))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows),
				errors.Is(err, analysis.ErrNoCachedVerdict),
				errors.Is(err, pipeline.ErrJobNotFound):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, domai.ErrQuotaExceeded):
				http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
			case errors.As(err, new(badRequestError)):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

type badRequestError struct{ err error }

func (e badRequestError) Error() string { return e.err.Error() }
func (e badRequestError) Unwrap() error { return e.err }

func badRequest(format string, args ...any) error {
	return badRequestError{err: fmt.Errorf(format, args...)}
}

// POST /v1/{tenant}/reports/analyze
// multipart/form-data: file=<pdf>, company=, fiscal_year=, skip_cache=
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")

	if err := req.ParseMultipartForm(middleware.MaxUploadBytes); err != nil {
		return badRequest("invalid multipart body: %v", err)
	}
	file, _, err := req.FormFile("file")
	if err != nil {
		return badRequest("file field is required")
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, middleware.MaxUploadBytes+1))
	if err != nil {
		return err
	}
	if err := middleware.ValidatePDF(content); err != nil {
		return badRequest("%v", err)
	}

	fiscalYear := 0
	if v := req.FormValue("fiscal_year"); v != "" {
		fiscalYear, err = strconv.Atoi(v)
		if err != nil {
			return badRequest("fiscal_year must be a number")
		}
	}
	if err := middleware.ValidateFiscalYear(fiscalYear); err != nil {
		return badRequest("%v", err)
	}

	job, err := r.svc.Submit(pipeline.AnalyzeCommand{
		TenantID:   tenant,
		Company:    middleware.SanitizeString(req.FormValue("company")),
		FiscalYear: fiscalYear,
		Content:    content,
		SkipCache:  req.FormValue("skip_cache") == "true",
	})
	if err != nil {
		return err
	}
	middleware.IncrementAnalyses()

	// langsung balikin respons, analysis jalan di background
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	return json.NewEncoder(w).Encode(map[string]any{
		"job_id":        job.ID,
		"status":        string(job.State),
		"document_hash": job.DocumentHash,
		"submitted_at":  job.SubmittedAt,
	})
}

// GET /v1/{tenant}/analyses/{id}
func (r *Router) handleGetJob(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateJobID(id); err != nil {
		return badRequest("%v", err)
	}

	job, err := r.svc.Job(tenant, analysis.JobID(id))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(job)
}

// GET /v1/{tenant}/analyses/{id}/events — SSE progress stream
func (r *Router) handleEvents(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateJobID(id); err != nil {
		return badRequest("%v", err)
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	ch, cancel, err := r.svc.Subscribe(tenant, analysis.JobID(id))
	if err != nil {
		return err
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-req.Context().Done():
			return nil
		case ev, open := <-ch:
			if !open {
				// job terminal: kirim state akhir (plus verdict kalau ada)
				if job, jerr := r.svc.Job(tenant, analysis.JobID(id)); jerr == nil {
					writeSSE(w, "result", job)
					flusher.Flush()
				}
				return nil
			}
			writeSSE(w, "progress", ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// GET /v1/{tenant}/analyses/{id}/failures
func (r *Router) handleFailures(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateJobID(id); err != nil {
		return badRequest("%v", err)
	}

	list, err := r.svc.JobFailures(req.Context(), tenant, analysis.JobID(id))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*analysis.Failure{}
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/{tenant}/analyses/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.svc.Latest(req.Context(), tenant, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*verdict.Verdict{}
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/{tenant}/cache/{hash}
func (r *Router) handleCache(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	hash := chi.URLParam(req, "hash")
	if err := middleware.ValidateDocumentHash(hash); err != nil {
		return badRequest("%v", err)
	}

	v, err := r.svc.Cached(req.Context(), tenant, hash)
	if err != nil {
		return err
	}
	middleware.IncrementCacheHits()
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}
