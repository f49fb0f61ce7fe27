// ABOUTME: HTTP routes for form submission, QR generation, and scan-and-sync
// ABOUTME: Serves the embedded offline pages and translates API requests into store and pipeline calls
package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"image"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/harperreed/scanpush/db"
	"github.com/harperreed/scanpush/models"
	"github.com/harperreed/scanpush/qr"
	"github.com/harperreed/scanpush/sync"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxUploadBytes = 20 << 20

// maxImagePixels bounds the decoded size of an upload; a small compressed
// file can declare dimensions that would take gigabytes to decode.
const maxImagePixels = 40_000_000

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed sw.js static
var assetsFS embed.FS

var pages = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

type pageData struct {
	Title        string
	AccountTypes []string
}

type Server struct {
	forms        *db.FormStore
	orchestrator *sync.Orchestrator
	router       *mux.Router
}

func NewServer(forms *db.FormStore, orchestrator *sync.Orchestrator) *Server {
	s := &Server{
		forms:        forms,
		orchestrator: orchestrator,
		router:       mux.NewRouter(),
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodGet)
	s.router.HandleFunc("/routes", s.handleRoutes).Methods(http.MethodGet)

	// Offline web front end
	s.router.HandleFunc("/", s.handlePage("landing", "Home")).Methods(http.MethodGet)
	s.router.HandleFunc("/form", s.handlePage("form", "New form")).Methods(http.MethodGet)
	s.router.HandleFunc("/upload_qr", s.handlePage("upload_qr", "Scan QR")).Methods(http.MethodGet)
	s.router.HandleFunc("/sw.js", s.handleServiceWorker).Methods(http.MethodGet)
	s.router.PathPrefix("/static/").Handler(http.FileServer(http.FS(assetsFS))).Methods(http.MethodGet)

	s.router.HandleFunc("/submit", s.handleSubmit).Methods(http.MethodPost)
	s.router.HandleFunc("/forms", s.handleListForms).Methods(http.MethodGet)
	s.router.HandleFunc("/forms/{id}", s.handleGetForm).Methods(http.MethodGet)
	s.router.HandleFunc("/generate_qr", s.handleGenerateQR).Methods(http.MethodPost)

	s.router.HandleFunc("/decode_qr", s.handleDecodeQR).Methods(http.MethodPost)
	s.router.HandleFunc("/upload_qr", s.handleUploadQR).Methods(http.MethodPost)
	s.router.HandleFunc("/process_qr", s.handleProcessQR).Methods(http.MethodPost)

	return s
}

// Handler returns the router wrapped with CORS and tracing.
func (s *Server) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	return otelhttp.NewHandler(cors(s.router), "scanpush")
}

// Start serves on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting web server at http://localhost%s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Println("Shutting down web server")
		return srv.Shutdown(shutdownCtx)
	}
}

type errorBody struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	StatusCode int    `json:"upstream_status,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

// writeError reports err with its kind and detail; nothing is collapsed into
// a bare generic error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var se *sync.Error
	switch {
	case errors.As(err, &se):
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, sync.HTTPStatus(se.Kind), map[string]errorBody{"error": {
			Kind:       string(se.Kind),
			Message:    se.Message,
			Detail:     se.Detail,
			StatusCode: se.StatusCode,
		}})
	case errors.Is(err, context.Canceled):
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, sync.StatusClientClosedRequest, map[string]errorBody{"error": {
			Kind: string(sync.KindCanceled), Message: "request cancelled",
		}})
	case errors.Is(err, context.DeadlineExceeded):
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusGatewayTimeout, map[string]errorBody{"error": {
			Kind: string(sync.KindTimeout), Message: "request deadline exceeded",
		}})
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, map[string]errorBody{"error": {
			Kind: "internal", Message: err.Error(),
		}})
	}
}

func invalidInput(message string, err error) error {
	return &sync.Error{Kind: sync.KindInvalidInput, Message: message, Err: err}
}

func (s *Server) handlePage(name, title string) http.HandlerFunc {
	data := pageData{
		Title:        title,
		AccountTypes: []string{models.AccountTypePersonal, models.AccountTypeBusiness},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
			log.Printf("Error rendering %s: %v", name, err)
			http.Error(w, "failed to render page", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = buf.WriteTo(w)
	}
}

func (s *Server) handleServiceWorker(w http.ResponseWriter, r *http.Request) {
	script, err := assetsFS.ReadFile("sw.js")
	if err != nil {
		http.Error(w, "service worker missing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Service-Worker-Allowed", "/")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(script)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	var routes []string
	_ = s.router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		tmpl, err := route.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, _ := route.GetMethods()
		routes = append(routes, strings.Join(methods, ",")+" "+tmpl)
		return nil
	})
	writeJSON(w, http.StatusOK, map[string][]string{"routes": routes})
}

type submitResponse struct {
	Status string `json:"status"`
	models.FormRecord
	Created bool `json:"created"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var rec models.FormRecord
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&rec); err != nil {
		writeError(w, r, invalidInput("request body must be a JSON form", err))
		return
	}

	rec.Normalize()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	created, err := s.forms.InsertIfAbsent(r.Context(), &rec)
	if err != nil {
		writeError(w, r, &sync.Error{Kind: sync.KindStoreUnavailable, Message: "failed to store form", Err: err})
		return
	}

	if !created {
		stored, err := s.forms.Get(r.Context(), rec.ID)
		if err == nil && stored != nil {
			rec = *stored
		}
	}

	writeJSON(w, http.StatusOK, submitResponse{Status: "received", FormRecord: rec, Created: created})
}

func (s *Server) lookup(ctx context.Context, id string) (*models.FormRecord, error) {
	return sync.NewResolver(s.forms).Resolve(ctx, id)
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	rec, err := s.lookup(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListForms(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := s.forms.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, &sync.Error{Kind: sync.KindStoreUnavailable, Message: "failed to list forms", Err: err})
		return
	}
	if records == nil {
		records = []models.FormRecord{}
	}
	writeJSON(w, http.StatusOK, map[string][]models.FormRecord{"forms": records})
}

func (s *Server) handleGenerateQR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   string `json:"id"`
		Size int    `json:"size,omitempty"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil || strings.TrimSpace(req.ID) == "" {
		writeError(w, r, invalidInput("request body must be JSON with an id", err))
		return
	}

	rec, err := s.lookup(r.Context(), strings.TrimSpace(req.ID))
	if err != nil {
		writeError(w, r, err)
		return
	}

	png, err := qr.Encode(rec.ID, req.Size)
	if err != nil {
		writeError(w, r, fmt.Errorf("failed to render qr code: %w", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `attachment; filename="user_data_qr.png"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

// readUpload returns the bytes of the multipart file in field.
func readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, invalidInput("No image uploaded", err)
	}

	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, invalidInput("No image uploaded", err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, invalidInput("failed to read uploaded image", err)
	}

	// Undecodable headers are left for the decoder to report.
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		if int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
			return nil, invalidInput(fmt.Sprintf("image is too large (%dx%d pixels)", cfg.Width, cfg.Height), nil)
		}
	}
	return data, nil
}

func (s *Server) handleDecodeQR(w http.ResponseWriter, r *http.Request) {
	image, err := readUpload(w, r, "file")
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := s.orchestrator.DecodeIdentifier(r.Context(), image)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleUploadQR(w http.ResponseWriter, r *http.Request) {
	image, err := readUpload(w, r, "file")
	if err != nil {
		writeError(w, r, err)
		return
	}

	outcome, err := s.orchestrator.ScanAndSync(r.Context(), image)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "success",
		"message":   "Data Uploaded to Salesforce Successfully",
		"id":        outcome.Identifier,
		"remote_id": outcome.Result.RemoteID,
	})
}

func (s *Server) handleProcessQR(w http.ResponseWriter, r *http.Request) {
	image, err := readUpload(w, r, "qr_image")
	if err != nil {
		writeError(w, r, err)
		return
	}

	outcome, err := s.orchestrator.ScanAndSync(r.Context(), image)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "success",
		"data":              outcome.Result.Payload,
		"salesforce_result": outcome.Result,
	})
}
