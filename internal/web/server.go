// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package web exposes the analysis, selection and redaction workflow over
// HTTP for the review UI.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"docsentry/internal/analyzer"
	"docsentry/internal/docparse"
	"docsentry/internal/redactor"
	"docsentry/internal/selection"
	"docsentry/internal/store"
	"docsentry/internal/version"
)

// Server hosts the document review API.
type Server struct {
	analyzer   *analyzer.Analyzer
	selections *selection.Service
	engine     *redactor.Engine
	opts       redactor.Options
	router     *mux.Router
	server     *http.Server
	logger     *zap.Logger

	maxUploadSize int64
}

// Config carries server settings.
type Config struct {
	Port          int
	MaxUploadSize int64
}

// New creates the API server. All collaborators are injected.
func New(cfg Config, an *analyzer.Analyzer, sel *selection.Service, eng *redactor.Engine, opts redactor.Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 50 << 20
	}

	s := &Server{
		analyzer:      an,
		selections:    sel,
		engine:        eng,
		opts:          opts,
		router:        mux.NewRouter(),
		logger:        logger,
		maxUploadSize: cfg.MaxUploadSize,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/analyze", s.handleAnalyze).Methods("POST")
	api.HandleFunc("/documents/{id}", s.handleGetDocument).Methods("GET")
	api.HandleFunc("/documents/{id}/sections", s.handleGetSections).Methods("GET")
	api.HandleFunc("/documents/{id}/hierarchy", s.handleGetHierarchy).Methods("GET")
	api.HandleFunc("/documents/{id}/selected", s.handleGetSelected).Methods("GET")
	api.HandleFunc("/documents/{id}/selections", s.handlePutSelections).Methods("PUT")
	api.HandleFunc("/documents/{id}/export", s.handleExport).Methods("GET")
	api.HandleFunc("/redact/preview", s.handleRedactPreview).Methods("POST")
}

// Start runs the server until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.status),
			zap.Duration("duration", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// handleAnalyze accepts one multipart upload under the "file" field and runs
// the full analysis pipeline on it.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(s.maxUploadSize); err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to parse form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	buf, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	fileType := header.Header.Get("Content-Type")
	if ct := r.FormValue("contentType"); ct != "" {
		fileType = ct
	}

	analysis, err := s.analyzer.Analyze(r.Context(), buf, header.Filename, fileType)
	if err != nil {
		switch {
		case errors.Is(err, docparse.ErrUnsupportedFormat):
			s.writeError(w, http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, docparse.ErrEncryptedDocument):
			s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			s.logger.Error("analysis failed", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "analysis failed")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	analysis, err := s.analyzer.GetAnalysis(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleGetSections(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var page *int
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid page number")
			return
		}
		page = &n
	}

	secs, err := s.analyzer.GetSections(r.Context(), id, page)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"documentId": id,
		"sections":   secs,
	})
}

func (s *Server) handleGetHierarchy(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 0 {
		s.writeError(w, http.StatusBadRequest, "page query parameter is required")
		return
	}

	nodes, err := s.analyzer.GetTextHierarchy(r.Context(), id, page)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"documentId": id,
		"page":       page,
		"hierarchy":  nodes,
	})
}

func (s *Server) handleGetSelected(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	secs, err := s.selections.GetSelected(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"documentId": id,
		"sections":   secs,
	})
}

// selectionRequest is the PUT /selections body. Ids absent from the map
// keep their current state.
type selectionRequest struct {
	Selections map[string]bool `json:"selections"`
}

func (s *Server) handlePutSelections(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.selections.BulkSetSelection(r.Context(), id, req.Selections); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"documentId": id,
		"updated":    len(req.Selections),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	data, err := s.analyzer.ExportJSON(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".json"))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

type previewRequest struct {
	Text string `json:"text"`
}

// handleRedactPreview redacts a text snippet without persisting anything,
// so reviewers can see what a section would look like after redaction.
func (s *Server) handleRedactPreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.RedactText(req.Text, s.opts))
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "document not found")
		return
	}
	s.logger.Error("store error", zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
