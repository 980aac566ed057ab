package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/KaramelBytes/sigloom-cli/internal/ai"
	"github.com/KaramelBytes/sigloom-cli/internal/analysis"
	"github.com/KaramelBytes/sigloom-cli/internal/ingest"
	"github.com/KaramelBytes/sigloom-cli/internal/logging"
	"github.com/KaramelBytes/sigloom-cli/internal/measure"
	"github.com/KaramelBytes/sigloom-cli/internal/metrics"
	"github.com/KaramelBytes/sigloom-cli/internal/query"
)

// maxUploadBytes caps POST /api/ingest bodies.
const maxUploadBytes = 64 << 20

// Options configures a Server. Zero values are usable.
type Options struct {
	// Load is applied to every ingestion; per-request map overrides are appended.
	Load ingest.LoadOptions
	// Technology is the selection used when a request names none.
	Technology measure.Technology
	// Refiner is optional; nil disables refinement.
	Refiner *ai.Refiner
	// RefineWait bounds how long /api/ask waits for a refined answer.
	RefineWait time.Duration
	Metrics    *metrics.Metrics
	Logger     logging.Logger
}

// Server exposes the current dataset over HTTP.
type Server struct {
	store *measure.Store
	opt   Options
	log   logging.Logger
	mux   *http.ServeMux

	// ingestMu serializes ingestion; Options.Load.Normalize.Rand is not safe for concurrent use.
	ingestMu sync.Mutex
}

// New builds a Server over store and registers its routes.
func New(store *measure.Store, opt Options) *Server {
	if opt.Logger == nil {
		opt.Logger = logging.Nop{}
	}
	if opt.RefineWait <= 0 {
		opt.RefineWait = 20 * time.Second
	}
	s := &Server{store: store, opt: opt, log: opt.Logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/dataset", s.handleDataset)
	s.mux.HandleFunc("GET /api/kpis", s.handleKPIs)
	s.mux.HandleFunc("GET /api/hourly", s.handleHourly)
	s.mux.HandleFunc("GET /api/daily", s.handleDaily)
	s.mux.HandleFunc("GET /api/categories", s.handleCategories)
	s.mux.HandleFunc("POST /api/ask", s.handleAsk)
	s.mux.HandleFunc("POST /api/ingest", s.handleIngest)
	if s.opt.Metrics != nil {
		s.mux.Handle("GET /metrics", s.opt.Metrics.Handler())
	}
}

// Handler returns the routed handler wrapped with request logging.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		s.mux.ServeHTTP(lrw, r)
		s.log.Debug("%s %s %d (%v)", r.Method, r.URL.Path, lrw.statusCode, time.Since(start))
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("listening on %s", addr)
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Ingest loads CSV bytes and, on success, replaces the current dataset.
// On failure the current dataset is left as it was.
func (s *Server) Ingest(name string, data []byte, overrides []string) (*ingest.Pass, error) {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()
	opt := s.opt.Load
	opt.Overrides = append(append([]string(nil), opt.Overrides...), overrides...)
	pass, err := ingest.Load(name, data, opt)
	if err != nil {
		return nil, err
	}
	s.store.Replace(pass.Dataset)
	s.opt.Metrics.ObserveIngest(pass.Dataset.Len(), pass.Result.Defaulted)
	s.log.Info("ingested %s: %d rows (dataset %s)", name, pass.Dataset.Len(), pass.Dataset.ID)
	return pass, nil
}

type datasetResponse struct {
	*measure.Dataset
	Rows int `json:"rows"`
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	ds := s.store.Load()
	if ds == nil {
		writeError(w, http.StatusNotFound, "no dataset loaded")
		return
	}
	writeJSON(w, http.StatusOK, datasetResponse{Dataset: ds, Rows: ds.Len()})
}

// snapshot returns the current dataset's records narrowed to the tech query param.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (*measure.Dataset, []measure.Record, bool) {
	ds := s.store.Load()
	if ds == nil {
		writeError(w, http.StatusNotFound, "no dataset loaded")
		return nil, nil, false
	}
	tech := s.opt.Technology
	if v := r.URL.Query().Get("tech"); v != "" {
		tech = measure.ParseTechnology(v)
	}
	return ds, analysis.FilterTechnology(ds.Records, tech), true
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	ds, recs, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, analysis.Summarize(recs, ds.Headers))
}

func (s *Server) handleHourly(w http.ResponseWriter, r *http.Request) {
	_, recs, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, analysis.ByHour(recs))
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	_, recs, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, analysis.ByDay(recs))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key, err := fieldParam(q.Get("key"), measure.FieldLocation)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	field, err := fieldParam(q.Get("field"), measure.FieldThroughput)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	_, recs, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, analysis.Categories(recs, key, field))
}

func fieldParam(v string, def measure.Field) (measure.Field, error) {
	if v == "" {
		return def, nil
	}
	return measure.ParseField(v)
}

type askRequest struct {
	Question string `json:"question"`
	Tech     string `json:"tech"`
	Refine   bool   `json:"refine"`
}

type askResponse struct {
	query.Answer
	Refined string `json:"refined,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	tech := s.opt.Technology
	if req.Tech != "" {
		tech = measure.ParseTechnology(req.Tech)
	}
	ds := s.store.Load()
	ans := query.New(tech).Answer(ds, req.Question)
	s.opt.Metrics.ObserveQuery(ans.Intent)

	resp := askResponse{Answer: ans}
	if req.Refine && s.opt.Refiner != nil && ans.Intent != query.IntentNoMatch {
		resp.Refined = s.refine(r.Context(), ds, tech, req.Question, ans.Text)
	}
	writeJSON(w, http.StatusOK, resp)
}

// refine waits up to RefineWait for a refined answer; "" means none arrived.
func (s *Server) refine(ctx context.Context, ds *measure.Dataset, tech measure.Technology, question, local string) string {
	ctx, cancel := context.WithTimeout(ctx, s.opt.RefineWait)
	defer cancel()
	ch := s.opt.Refiner.RefineAsync(ctx, ai.RefineRequest{
		Question:    question,
		Summary:     analysis.Summarize(analysis.FilterTechnology(ds.Records, tech), ds.Headers),
		LocalAnswer: local,
	})
	select {
	case refined := <-ch:
		return refined
	case <-ctx.Done():
		return ""
	}
}

type ingestResponse struct {
	Dataset   *measure.Dataset `json:"dataset"`
	Rows      int              `json:"rows"`
	Encoding  string           `json:"encoding"`
	Defaulted map[string]int   `json:"defaulted"`
	Unmapped  []string         `json:"unmapped"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("read body: %v", err))
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload.csv"
	}
	pass, err := s.Ingest(name, body, r.URL.Query()["map"])
	if err != nil {
		s.log.Warn("ingest %s failed: %v", name, err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defaulted := make(map[string]int, len(pass.Result.Defaulted))
	for f, n := range pass.Result.Defaulted {
		defaulted[string(f)] = n
	}
	writeJSON(w, http.StatusOK, ingestResponse{
		Dataset:   pass.Dataset,
		Rows:      pass.Dataset.Len(),
		Encoding:  pass.Table.Encoding,
		Defaulted: defaulted,
		Unmapped:  pass.Mapping.Unmapped(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// loggingResponseWriter captures the status code for request logs.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}
