// Package server exposes the matcher over HTTP and gRPC.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"contentmapper/internal/attack"
	"contentmapper/internal/matcher"
	"contentmapper/internal/store"
)

const (
	maxBodyBytes = 1 << 20
	maxBatchSize = 1000
)

// Server wraps HTTP and gRPC servers
type Server struct {
	matcher *matcher.Matcher
	graph   *attack.Graph
	cfg     *Config
	router  *mux.Router
	grpcSrv *grpc.Server
	logger  *slog.Logger
}

func New(m *matcher.Matcher, g *attack.Graph, cfg *Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if g == nil {
		g = attack.Build(nil)
	}
	s := &Server{matcher: m, graph: g, cfg: cfg, router: mux.NewRouter().UseEncodedPath(), logger: logger}
	s.routes()
	s.grpcSrv = s.NewGRPCServer()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/classify", s.handleClassify).Methods(http.MethodPost)
	v1.HandleFunc("/classify/batch", s.handleClassifyBatch).Methods(http.MethodPost)
	v1.HandleFunc("/default-entry", s.handleDefaultEntry).Methods(http.MethodPost)
	v1.HandleFunc("/tactics", s.handleTactics).Methods(http.MethodGet)
	v1.HandleFunc("/tactics/{id}", s.handleTactic).Methods(http.MethodGet)
	v1.HandleFunc("/techniques/{id}", s.handleTechnique).Methods(http.MethodGet)
	v1.HandleFunc("/mappings", s.handleListMappings).Methods(http.MethodGet)
	v1.HandleFunc("/mappings", s.handlePutMapping).Methods(http.MethodPut)
	v1.HandleFunc("/mappings/{title}", s.handleDeleteMapping).Methods(http.MethodDelete)
}

func (s *Server) Router() http.Handler { return s.router }

// StartMetrics serves /metrics on its own listener.
func (s *Server) StartMetrics(addr string) *http.Server {
	handler := http.NewServeMux()
	handler.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", "err", err)
		}
	}()
	return srv
}

// StartGRPC blocks serving the Matcher service on addr.
func (s *Server) StartGRPC(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeGRPC(ln)
}

// ServeGRPC blocks serving the Matcher service on ln. It returns
// grpc.ErrServerStopped if StopGRPC already ran.
func (s *Server) ServeGRPC(ln net.Listener) error {
	return s.grpcSrv.Serve(ln)
}

// StopGRPC drains in-flight RPCs. Safe to call before or without StartGRPC.
func (s *Server) StopGRPC() {
	s.grpcSrv.GracefulStop()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var c matcher.Candidate
	if !s.decode(w, r, &c) {
		return
	}
	if c.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	writeJSON(w, http.StatusOK, s.matcher.Classify(r.Context(), c))
}

type batchRequest struct {
	Searches []matcher.Candidate `json:"searches"`
}

type batchResult struct {
	Title string `json:"title"`
	matcher.Result
}

func (s *Server) handleClassifyBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Searches) > maxBatchSize {
		writeError(w, http.StatusBadRequest, "too many searches in batch")
		return
	}

	results, err := s.matcher.ClassifyAll(r.Context(), req.Searches)
	if err != nil {
		s.logger.Warn("batch classification interrupted", "err", err)
		writeError(w, http.StatusServiceUnavailable, "batch classification interrupted")
		return
	}
	out := make([]batchResult, len(results))
	for i, res := range results {
		out[i] = batchResult{Title: req.Searches[i].Title, Result: res}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

func (s *Server) handleDefaultEntry(w http.ResponseWriter, r *http.Request) {
	var c matcher.Candidate
	if !s.decode(w, r, &c) {
		return
	}
	if c.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	writeJSON(w, http.StatusOK, matcher.DefaultEntry(c, s.graph))
}

type tacticView struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ShortName  string   `json:"short_name,omitempty"`
	Techniques []string `json:"techniques,omitempty"`
}

func (s *Server) handleTactics(w http.ResponseWriter, r *http.Request) {
	ids := s.graph.TacticIDs()
	out := make([]tacticView, 0, len(ids))
	for _, id := range ids {
		t := s.graph.Tactics[id]
		out = append(out, tacticView{ID: t.ID, Name: t.Name, ShortName: t.ShortName})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tactics": out, "summary": s.graph.Summary()})
}

func (s *Server) handleTactic(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	t, ok := s.graph.Tactics[id]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown tactic")
		return
	}
	view := tacticView{ID: t.ID, Name: t.Name, ShortName: t.ShortName}
	for techID := range t.Techniques {
		view.Techniques = append(view.Techniques, techID)
	}
	sort.Strings(view.Techniques)
	writeJSON(w, http.StatusOK, view)
}

type techniqueView struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Tactics       []string `json:"tactics"`
	SubTechniques []string `json:"sub_techniques,omitempty"`
}

func (s *Server) handleTechnique(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	name, ok := s.graph.Name(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown technique")
		return
	}
	tactics := s.graph.TacticsFor(id)
	if tactics == nil {
		tactics = []string{}
	}
	writeJSON(w, http.StatusOK, techniqueView{
		ID:            id,
		Name:          name,
		Tactics:       tactics,
		SubTechniques: s.graph.TechniqueToSubTechnique[id],
	})
}

func (s *Server) handleListMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := s.matcher.Overrides(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	if mappings == nil {
		mappings = []store.Mapping{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"mappings": mappings})
}

func (s *Server) handlePutMapping(w http.ResponseWriter, r *http.Request) {
	var m store.Mapping
	if !s.decode(w, r, &m) {
		return
	}
	if err := s.matcher.RecordOverride(r.Context(), m.SearchTitle, m.ContentID); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteMapping takes a path-escaped title since saved-search titles
// may contain slashes.
func (s *Server) handleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	title, err := url.PathUnescape(mux.Vars(r)["title"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid title")
		return
	}
	if err := s.matcher.RemoveOverride(r.Context(), title); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidMapping):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "mapping not found")
	case errors.Is(err, matcher.ErrNoStore):
		writeError(w, http.StatusNotImplemented, err.Error())
	default:
		s.logger.Error("mapping store error", "err", err)
		writeError(w, http.StatusServiceUnavailable, "mapping store unavailable")
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Debug("bad request body", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
