package web

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mspro-labs/emlak-ai/internal/models"
	"mspro-labs/emlak-ai/internal/observability"
)

// Minimum accepted form values.
const (
	MinArea  = 10
	MinRooms = 1
	MinAge   = 0
)

// defaultRegion groups the model's districts when the site file lists none.
const defaultRegion = "İstanbul"

// Predictor is the part of the price model the form needs.
type Predictor interface {
	Predict(f models.Features) float64
	Districts() []string
	KnownDistrict(d string) bool
}

// Config wires a Server.
type Config struct {
	Addr    string
	Regions map[string][]string // region → districts; empty means one group of model districts
	MapPath string
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// Server serves the estimate form, the map image and the ops endpoints.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	page       *template.Template
	cfg        Config
	logger     *slog.Logger

	mu        sync.RWMutex
	model     Predictor
	mapAt     time.Time
	mapErr    error
	mapWanted bool
}

// NewServer parses the templates and registers the routes.
func NewServer(cfg Config) (*Server, error) {
	page, err := parsePage("estimate.html")
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := mux.NewRouter()
	s := &Server{
		router: r,
		page:   page,
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      r,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	r.HandleFunc("/", s.handleForm).Methods(http.MethodGet)
	r.HandleFunc("/estimate", s.handleEstimate).Methods(http.MethodPost)
	r.HandleFunc("/map.png", s.handleMap).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.Use(s.logRequests)

	return s, nil
}

// SetModel publishes a trained model; the server reports ready afterwards.
func (s *Server) SetModel(m Predictor) {
	s.mu.Lock()
	s.model = m
	s.mu.Unlock()
}

// SetMapStatus records the result of the latest map render.
func (s *Server) SetMapStatus(at time.Time, err error) {
	s.mu.Lock()
	s.mapWanted = true
	s.mapAt = at
	s.mapErr = err
	s.mu.Unlock()
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains connections within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type formInput struct {
	District string
	Area     string
	Rooms    string
	Age      string
}

type estimate struct {
	Price         float64
	District      string
	KnownDistrict bool
}

type mapView struct {
	Available  bool
	RenderedAt string
	Version    int64
	Error      string
}

type pageData struct {
	Regions   []string
	Region    string
	Districts []string
	Input     formInput
	Error     string
	Estimate  *estimate
	Map       mapView
}

// handleForm renders the empty form. A region change re-submits the whole
// form here, so typed values come back as query parameters.
func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := s.newPage(q.Get("region"))
	data.Input = formInput{
		District: strings.TrimSpace(q.Get("district")),
		Area:     queryOr(q, "area", "100"),
		Rooms:    queryOr(q, "rooms", "3"),
		Age:      queryOr(q, "age", "10"),
	}
	s.render(w, http.StatusOK, data)
}

func queryOr(q url.Values, key, fallback string) string {
	if v := strings.TrimSpace(q.Get(key)); v != "" {
		return v
	}
	return fallback
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	m := s.currentModel()
	if m == nil {
		http.Error(w, "model is not ready yet", http.StatusServiceUnavailable)
		return
	}

	data := s.newPage(r.PostForm.Get("region"))
	data.Input = formInput{
		District: strings.TrimSpace(r.PostForm.Get("district")),
		Area:     strings.TrimSpace(r.PostForm.Get("area")),
		Rooms:    strings.TrimSpace(r.PostForm.Get("rooms")),
		Age:      strings.TrimSpace(r.PostForm.Get("age")),
	}

	f, err := parseFeatures(data.Input)
	if err != nil {
		data.Error = err.Error()
		s.render(w, http.StatusUnprocessableEntity, data)
		return
	}

	price := m.Predict(f)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.Predictions.Inc()
	}
	known := m.KnownDistrict(f.District)
	s.logger.Debug("estimate served", "district", f.District, "known", known, "price", price)

	data.Estimate = &estimate{Price: price, District: f.District, KnownDistrict: known}
	data.Map = s.mapView()
	s.render(w, http.StatusOK, data)
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MapPath == "" {
		http.NotFound(w, r)
		return
	}
	if _, err := os.Stat(s.cfg.MapPath); err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, s.cfg.MapPath)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.currentModel() == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  "model not trained",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
	})
}

func (s *Server) currentModel() Predictor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

func (s *Server) mapView() mapView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case !s.mapWanted:
		return mapView{Error: "henüz oluşturulmadı"}
	case s.mapErr != nil:
		return mapView{Error: s.mapErr.Error()}
	default:
		return mapView{
			Available:  true,
			RenderedAt: s.mapAt.Format("02.01.2006 15:04"),
			Version:    s.mapAt.Unix(),
		}
	}
}

// newPage resolves the region select and the districts it offers.
// Unknown or empty regions fall back to the first one.
func (s *Server) newPage(region string) pageData {
	groups := s.regions()
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	if _, ok := groups[region]; !ok && len(names) > 0 {
		region = names[0]
	}
	return pageData{
		Regions:   names,
		Region:    region,
		Districts: groups[region],
		Map:       s.mapView(),
	}
}

func (s *Server) regions() map[string][]string {
	if len(s.cfg.Regions) > 0 {
		return s.cfg.Regions
	}
	m := s.currentModel()
	if m == nil {
		return map[string][]string{}
	}
	return map[string][]string{defaultRegion: m.Districts()}
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.page.ExecuteTemplate(w, "base.html", data); err != nil {
		s.logger.Error("template error", "error", err)
	}
}

// formError is a validation message shown to the user as-is.
type formError string

func (e formError) Error() string { return string(e) }

const (
	errDistrict formError = "Lütfen bir ilçe seçin."
	errArea     formError = "Metrekare en az 10 olmalı."
	errRooms    formError = "Oda sayısı en az 1 olmalı."
	errAge      formError = "Bina yaşı 0 veya daha büyük olmalı."
)

func parseFeatures(in formInput) (models.Features, error) {
	if in.District == "" {
		return models.Features{}, errDistrict
	}
	area, err := strconv.ParseFloat(in.Area, 64)
	if err != nil || math.IsNaN(area) || math.IsInf(area, 0) || area < MinArea {
		return models.Features{}, errArea
	}
	rooms, err := strconv.Atoi(in.Rooms)
	if err != nil || rooms < MinRooms {
		return models.Features{}, errRooms
	}
	age, err := strconv.Atoi(in.Age)
	if err != nil || age < MinAge {
		return models.Features{}, errAge
	}
	return models.Features{
		Area:        area,
		RoomCount:   float64(rooms),
		BuildingAge: float64(age),
		District:    in.District,
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
