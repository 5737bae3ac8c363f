// Package server exposes evidence lookups over HTTP.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/evidence-cli/internal/evidence"
	"github.com/sells-group/evidence-cli/internal/model"
)

// Evidence looks up evidence records for a company.
type Evidence interface {
	GetEvidence(ctx context.Context, company model.CompanyIdentity, source evidence.CandidateSource) ([]model.EvidenceRecord, error)
}

// Options configures the HTTP handler.
type Options struct {
	CORSOrigins []string
	// RequestTimeout bounds a single lookup. Zero means no limit beyond the
	// client connection.
	RequestTimeout time.Duration
}

// Response is the body of every lookup reply. Result is null when no
// company was given.
type Response struct {
	Result *string `json:"result"`
}

type handler struct {
	ev     Evidence
	source evidence.CandidateSource
}

// New builds the router. Lookups accept a JSON body {"company": "..."} or a
// company query parameter on / and /evidence.
func New(ev Evidence, source evidence.CandidateSource, opts Options) http.Handler {
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         3600,
	}))
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	h := &handler{ev: ev, source: source}
	r.Get("/health", h.health)
	for _, path := range []string{"/", "/evidence"} {
		r.Get(path, h.lookup)
		r.Post(path, h.lookup)
	}
	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) lookup(w http.ResponseWriter, r *http.Request) {
	company := companyFrom(r)
	if company.IsZero() {
		writeJSON(w, http.StatusOK, Response{})
		return
	}

	log := zap.L().With(
		zap.String("company", company.String()),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)

	recs, err := h.ev.GetEvidence(r.Context(), company, h.source)
	if err != nil {
		log.Error("server: evidence lookup failed", zap.Error(err))
	}

	result := evidence.Summaries(recs)
	log.Info("server: evidence lookup", zap.Int("records", len(recs)))
	writeJSON(w, http.StatusOK, Response{Result: &result})
}

// companyFrom reads the company from a JSON body first, then from the query
// string. A malformed body is ignored.
func companyFrom(r *http.Request) model.CompanyIdentity {
	if r.Body != nil && r.Method == http.MethodPost {
		var body struct {
			Company *string `json:"company"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err == nil && body.Company != nil {
			return model.NormalizeCompany(*body.Company)
		}
	}
	return model.NormalizeCompany(r.URL.Query().Get("company"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: write response", zap.Error(err))
	}
}
