// Package http provides the web chat and its JSON API.
// Framework/driver layer: the outermost circle.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/searchchat-go/internal/adapters/loader"
	"github.com/0xcro3dile/searchchat-go/internal/domain/entities"
	"github.com/0xcro3dile/searchchat-go/internal/domain/usecases"
)

const maxUploadMemory = 32 << 20

type ctxKeyLog struct{}

// Server serves the chat page and the API on top of one SearchChat.
type Server struct {
	chat   *usecases.SearchChat
	events *broadcaster
	addr   string
	log    logrus.FieldLogger
}

// NewServer creates a server and subscribes it to the chat's transcript.
func NewServer(chat *usecases.SearchChat, addr string, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		chat:   chat,
		events: newBroadcaster(),
		addr:   addr,
		log:    log,
	}
	chat.Transcript().Subscribe(s.events)
	return s
}

// Handler returns the routed handler with its middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	// UI
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/submit", s.handleSubmitForm).Methods(http.MethodPost)

	// API
	r.HandleFunc("/api/search", s.handleSearch).Methods(http.MethodPost)
	r.HandleFunc("/api/attachment", s.handleAttach).Methods(http.MethodPost)
	r.HandleFunc("/api/attachment", s.handleDetach).Methods(http.MethodDelete)
	r.HandleFunc("/api/transcript", s.handleTranscript).Methods(http.MethodGet)
	r.HandleFunc("/api/transcript/stream", s.handleStream).Methods(http.MethodGet)
	r.HandleFunc("/api/results/{entry}/{index:[0-9]+}/detail", s.handleDetail).Methods(http.MethodPost)
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)

	return corsMiddleware(s.loggingMiddleware(r))
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: searches and the event stream are long-lived
	}

	s.log.WithField("addr", s.addr).Info("web chat starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)

	data := pageData{
		Entries:     s.chat.Transcript().Entries(),
		Attachment:  s.chat.Attachments().Current(),
		Placeholder: usecases.DefaultPlaceholder,
	}
	if data.Attachment != nil {
		data.Placeholder = usecases.CaptionPlaceholder
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		log.WithError(err).Error("rendering page")
	}
}

// handleSubmitForm serves the page's own form and redirects back to it.
func (s *Server) handleSubmitForm(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)

	if err := s.stageUpload(r); err != nil {
		renderHTTPError(log, w, err, uploadStatus(err))
		return
	}
	if err := s.chat.Submit(r.Context(), r.FormValue("message")); err != nil {
		// already shown in the transcript
		log.WithError(err).Debug("submission did not succeed")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleSearch submits and answers with the entries of that submission only.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)

	if err := s.stageUpload(r); err != nil {
		renderHTTPError(log, w, err, uploadStatus(err))
		return
	}

	id, err := s.chat.SubmitWithID(r.Context(), r.FormValue("message"))

	resp := struct {
		Entries []entities.ChatEntry `json:"entries"`
		Error   string               `json:"error,omitempty"`
	}{Entries: []entities.ChatEntry{}}
	for _, e := range s.chat.Transcript().Entries() {
		if e.SubmissionID == id {
			resp.Entries = append(resp.Entries, e)
		}
	}

	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = submitStatus(err)
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)

	if err := s.stageUpload(r); err != nil {
		renderHTTPError(log, w, err, uploadStatus(err))
		return
	}
	att := s.chat.Attachments().Current()
	if att == nil {
		renderHTTPError(log, w, entities.ErrNoAttachment, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":         att.Name,
		"size":         att.Size,
		"size_kb":      att.SizeKB(),
		"content_type": att.ContentType,
	})
}

func (s *Server) handleDetach(w http.ResponseWriter, r *http.Request) {
	s.chat.Attachments().Detach()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": s.chat.Transcript().SessionID(),
		"entries": s.chat.Transcript().Entries(),
	})
}

// handleStream pushes transcript changes as server-sent events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	events, unsubscribe := s.events.subscribe()
	defer unsubscribe()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			sendSSE(w, flusher, ev)
		}
	}
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	vars := mux.Vars(r)

	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		renderHTTPError(log, w, errors.Wrap(err, "card index"), http.StatusBadRequest)
		return
	}
	if err := s.chat.SelectCard(vars["entry"], index); err != nil {
		renderHTTPError(log, w, err, http.StatusNotFound)
		return
	}

	if r.FormValue("redirect") != "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth reports this server and the search backend.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.chat.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "backend": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "backend": "ok"})
}

// stageUpload attaches the optional "file" part of a multipart request.
func (s *Server) stageUpload(r *http.Request) error {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil && err != http.ErrNotMultipart {
		return errors.Wrap(err, "parsing form")
	}

	file, header, err := r.FormFile("file")
	if err == http.ErrMissingFile || err == http.ErrNotMultipart {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "reading upload")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return errors.Wrap(err, "reading upload")
	}
	att, err := loader.FromBytes(header.Filename, data)
	if err != nil {
		return err
	}
	return s.chat.Attachments().Attach(att)
}

func uploadStatus(err error) int {
	var tooLarge *entities.AttachmentTooLargeError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, loader.ErrNotImage):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusBadRequest
	}
}

func submitStatus(err error) int {
	switch {
	case entities.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entities.ErrSubmissionInFlight):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func renderHTTPError(log logrus.FieldLogger, w http.ResponseWriter, err error, code int) {
	log.WithField("error", err).Warn("request error")
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	b      int
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.b += n
	return n, err
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Flush keeps SSE working through the recorder.
func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w}
		log := s.log.WithFields(logrus.Fields{
			"http.req.path":   r.URL.Path,
			"http.req.method": r.Method,
			"http.req.id":     entities.NewID(),
		})
		ctx := context.WithValue(r.Context(), ctxKeyLog{}, log)
		next.ServeHTTP(rec, r.WithContext(ctx))

		log.WithFields(logrus.Fields{
			"http.resp.took_ms": int64(time.Since(start) / time.Millisecond),
			"http.resp.status":  rec.status,
			"http.resp.bytes":   rec.b,
		}).Debug("request complete")
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			return
		}
		next.ServeHTTP(w, r)
	})
}
