package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-pdf-qa/extract"
	"go-pdf-qa/progress"
	"go-pdf-qa/qa"
	"go-pdf-qa/rag"
)

const (
	uploadField = "pdf"

	// share of the progress bar spent receiving the upload body
	bodyProgressTo = 40

	// room for multipart boundaries, part headers and other form fields on
	// top of the file size ceiling
	multipartOverhead = 64 << 10
)

type Server struct {
	svc      *qa.Service
	broker   *progress.Broker
	maxBytes int64
	logger   *zap.Logger
}

func NewServer(svc *qa.Service, broker *progress.Broker, maxBytes int64, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		svc:      svc,
		broker:   broker,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Routes returns the API mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.rootHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /status", s.statusHandler)
	mux.Handle("GET /progress", s.broker.Handler())
	mux.HandleFunc("POST /upload", s.uploadHandler)
	mux.HandleFunc("POST /ask", s.askHandler)
	mux.HandleFunc("POST /query", s.queryHandler)
	return mux
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "PDF QA API is live")
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}

type statusResponse struct {
	Generation  uint64     `json:"generation"`
	Source      string     `json:"source"`
	ChunksCount int        `json:"chunksCount"`
	Dimension   int        `json:"dimension"`
	LoadedAt    *time.Time `json:"loadedAt"`
}

// GET /status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	gen := s.svc.Store().Current()
	resp := statusResponse{
		Generation:  gen.Number,
		Source:      gen.Source,
		ChunksCount: len(gen.Chunks),
		Dimension:   gen.Dimension,
	}
	if !gen.CreatedAt.IsZero() {
		resp.LoadedAt = &gen.CreatedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

type uploadResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	ChunksCount int    `json:"chunksCount"`
	Generation  uint64 `json:"generation"`
}

// POST /upload  (multipart, field "pdf")
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)
	log := s.logger.With(zap.String("request_id", requestID))

	tracker := progress.NewTracker(s.broker)
	fail := func(err error) {
		status, code := errorStatus(err)
		tracker.Fail(code)
		log.Warn("upload rejected", zap.Int("status", status), zap.Error(err))
		writeError(w, status, code, err)
	}

	bodyLimit := s.maxBytes + multipartOverhead
	if r.ContentLength > bodyLimit {
		fail(&http.MaxBytesError{Limit: s.maxBytes})
		return
	}

	body := http.MaxBytesReader(w, r.Body, bodyLimit)
	r.Body = readCloser{tracker.Reader(body, r.ContentLength, 0, bodyProgressTo), body}

	name, data, err := readUpload(r, s.maxBytes)
	if err != nil {
		fail(err)
		return
	}
	if !extract.IsPDF(data) {
		fail(errUnsupportedMedia)
		return
	}

	res, err := s.svc.Ingest(r.Context(), qa.Upload{Name: name, Data: data, Progress: tracker})
	if err != nil {
		fail(err)
		return
	}
	tracker.Complete()

	writeJSON(w, http.StatusOK, uploadResponse{
		Success:     true,
		Message:     "PDF processed successfully",
		ChunksCount: res.ChunksCount,
		Generation:  res.Generation,
	})
}

var errUnsupportedMedia = rag.NewValidationError(uploadField, "not a PDF document")

// readUpload returns the name and content of the "pdf" part. maxBytes
// bounds the file itself, not the multipart framing around it.
func readUpload(r *http.Request, maxBytes int64) (string, []byte, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return "", nil, errUnsupportedMedia
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", nil, rag.NewValidationError(uploadField, "missing file field")
		}
		if err != nil {
			return "", nil, readError(err)
		}
		if part.FormName() != uploadField {
			part.Close()
			continue
		}
		data, err := io.ReadAll(io.LimitReader(part, maxBytes+1))
		part.Close()
		if err != nil {
			return "", nil, readError(err)
		}
		if int64(len(data)) > maxBytes {
			return "", nil, &http.MaxBytesError{Limit: maxBytes}
		}
		return partName(part), data, nil
	}
}

func partName(p *multipart.Part) string {
	if name := p.FileName(); name != "" {
		return name
	}
	return uploadField
}

func readError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return tooLarge
	}
	return rag.NewValidationError(uploadField, "malformed multipart body: "+err.Error())
}

type readCloser struct {
	io.Reader
	io.Closer
}

type askRequest struct {
	Question string `json:"question"`
}

// POST /ask  { "question": "..." }
func (s *Server) askHandler(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", errors.New("invalid json"))
		return
	}

	ans, err := s.svc.Ask(r.Context(), req.Question)
	if err != nil {
		status, code := errorStatus(err)
		s.logger.Warn("ask failed", zap.Int("status", status), zap.Error(err))
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// queryResult reports a non-finite similarity as null.
type queryResult struct {
	ID         int      `json:"id"`
	Text       string   `json:"text"`
	Similarity *float64 `json:"similarity"`
}

// POST /query  { "query": "...", "top_k": 3 }
func (s *Server) queryHandler(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", errors.New("invalid json"))
		return
	}

	results, err := s.svc.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		status, code := errorStatus(err)
		s.logger.Warn("query failed", zap.Int("status", status), zap.Error(err))
		writeError(w, status, code, err)
		return
	}

	out := make([]queryResult, len(results))
	for i, res := range results {
		out[i] = queryResult{ID: res.ID, Text: res.Text}
		if !math.IsNaN(res.Similarity) && !math.IsInf(res.Similarity, 0) {
			sim := res.Similarity
			out[i].Similarity = &sim
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// errorStatus maps an error to its HTTP status and stable code.
func errorStatus(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "validation_error"
	case errors.Is(err, errUnsupportedMedia):
		return http.StatusUnsupportedMediaType, "validation_error"
	case errors.Is(err, rag.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, rag.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, rag.ErrDependencyTimeout):
		return http.StatusGatewayTimeout, "dependency_timeout"
	case errors.Is(err, rag.ErrExtraction):
		return http.StatusUnprocessableEntity, "extraction_error"
	case errors.Is(err, rag.ErrEmbedding):
		return http.StatusBadGateway, "embedding_error"
	case errors.Is(err, rag.ErrGeneration):
		return http.StatusBadGateway, "generation_error"
	case errors.Is(err, rag.ErrDimensionMismatch):
		return http.StatusInternalServerError, "dimension_mismatch"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
