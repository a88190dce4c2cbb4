package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
)

// Server serves the documentation UI and the catalogue API
type Server struct {
	cache     *Cache
	frontends *FrontendManager
	requests  *prometheus.CounterVec
}

// NewServer creates the doc server around a cache and configured frontends.
// A nil registerer falls back to the default prometheus registry.
func NewServer(cache *Cache, frontends *FrontendManager, reg prometheus.Registerer) *Server {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openapi_doc_server_requests_total",
			Help: "Number of HTTP requests by handler and status.",
		},
		[]string{"handler", "code"},
	)
	reg.MustRegister(requests)
	return &Server{cache: cache, frontends: frontends, requests: requests}
}

// Handler builds the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleDefaultFrontend)
	mux.HandleFunc("GET /docs/{frontend}", s.handleFrontend)
	mux.HandleFunc("GET /api/apis", s.handleListAPIs)
	mux.HandleFunc("GET /api/apis/{id}/spec", s.handleSpec)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleDefaultFrontend(w http.ResponseWriter, r *http.Request) {
	s.render(w, "default", s.frontends.Default())
}

func (s *Server) handleFrontend(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("frontend")
	frontend := s.frontends.Get(name)
	if frontend == nil {
		s.count("frontend", http.StatusNotFound)
		http.Error(w, "unknown frontend: "+name, http.StatusNotFound)
		return
	}
	s.render(w, "frontend", frontend)
}

func (s *Server) render(w http.ResponseWriter, handler string, frontend Frontend) {
	apis := s.apiInfos()
	var markup string
	var err error
	if len(apis) == 0 {
		markup, err = frontend.RenderEmptyState()
	} else {
		markup, err = frontend.RenderCatalogue(apis)
	}
	if err != nil {
		klog.Errorf("Failed to render %s frontend: %v", frontend.Name(), err)
		s.count(handler, http.StatusInternalServerError)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	s.count(handler, http.StatusOK)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(markup))
}

func (s *Server) handleListAPIs(w http.ResponseWriter, r *http.Request) {
	s.count("list", http.StatusOK)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.cache.APIs()); err != nil {
		klog.Errorf("Failed to encode API list: %v", err)
	}
}

func (s *Server) handleSpec(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.cache.Lookup(id); !ok {
		s.count("spec", http.StatusNotFound)
		http.Error(w, "unknown API: "+id, http.StatusNotFound)
		return
	}
	s.count("spec", http.StatusOK)
	w.Header().Set("Content-Type", "application/json")
	http.ServeFile(w, r, s.cache.SpecPath(id))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.count("healthz", http.StatusOK)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// apiInfos projects cached entries into the frontend view model
func (s *Server) apiInfos() []APIInfo {
	entries := s.cache.APIs()
	apis := make([]APIInfo, 0, len(entries))
	for _, entry := range entries {
		description := ""
		if entry.Description != nil {
			description = *entry.Description
		}
		apis = append(apis, APIInfo{
			ID:          entry.ID,
			Name:        entry.Name,
			Description: description,
			SpecURL:     "/api/apis/" + entry.ID + "/spec",
			Available:   entry.Available,
		})
	}
	return apis
}

func (s *Server) count(handler string, code int) {
	s.requests.WithLabelValues(handler, strconv.Itoa(code)).Inc()
}
