package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/ragdoc/internal/extract"
	"github.com/hyperjump/ragdoc/internal/indexer"
	"github.com/hyperjump/ragdoc/internal/keyword"
	"github.com/hyperjump/ragdoc/internal/models"
	"github.com/hyperjump/ragdoc/internal/search"
	"github.com/hyperjump/ragdoc/internal/storage"
	"github.com/hyperjump/ragdoc/pkg/utils"
)

const (
	msgNoFile      = "No file uploaded"
	msgUnsupported = "Unsupported file type. Only PDF and DOCX files are supported."
	msgNoText      = "No text could be extracted from the document"
	msgIndexed     = "Document indexed successfully"

	multipartOverhead   = 1 << 20
	defaultChunkResults = 10
	maxChunkResults     = 100
)

type uploadResponse struct {
	Message       string   `json:"message"`
	PointsAdded   int      `json:"points_added"`
	Filename      string   `json:"filename"`
	TextLength    int      `json:"text_length"`
	ChunksCreated int      `json:"chunks_created"`
	UploadID      string   `json:"upload_id"`
	Warnings      []string `json:"warnings,omitempty"`
}

func (s *Server) tooLargeMessage() string {
	max := s.config.Server.MaxUploadBytes
	if max >= 1<<20 && max%(1<<20) == 0 {
		return fmt.Sprintf("File too large. Maximum size is %dMB", max>>20)
	}
	return fmt.Sprintf("File too large. Maximum size is %d bytes", max)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.config.Server.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			s.respondError(w, http.StatusBadRequest, s.tooLargeMessage())
		default:
			s.respondError(w, http.StatusBadRequest, msgNoFile)
		}
		return
	}
	defer file.Close()

	if header.Size > maxBytes {
		s.respondError(w, http.StatusBadRequest, s.tooLargeMessage())
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !extract.Supported(ext) {
		s.respondError(w, http.StatusBadRequest, msgUnsupported)
		return
	}

	s.logger.Info("document upload started", zap.String("filename", header.Filename), zap.Int64("size", header.Size))
	tmpPath, err := saveTemp(file, ext)
	if tmpPath != "" {
		defer func() {
			if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				s.logger.Warn("failed to remove temp file", zap.String("path", tmpPath), zap.Error(rmErr))
			}
		}()
	}
	if err != nil {
		s.logger.Error("upload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Processing failed: "+err.Error())
		return
	}

	res, err := s.ingester.IngestFile(r.Context(), tmpPath, header.Filename)
	if err != nil {
		status, msg := uploadError(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("upload failed", zap.String("filename", header.Filename), zap.Error(err))
		} else {
			s.logger.Info("upload rejected", zap.String("filename", header.Filename), zap.Error(err))
		}
		s.respondError(w, status, msg)
		return
	}

	s.respondJSON(w, http.StatusOK, uploadResponse{
		Message:       msgIndexed,
		PointsAdded:   res.PointsAdded,
		Filename:      res.Filename,
		TextLength:    res.TextLength,
		ChunksCreated: res.ChunksCreated,
		UploadID:      res.UploadID,
		Warnings:      res.Warnings,
	})
}

// saveTemp copies an upload to a temporary file keeping its extension. The
// returned path is set whenever a file was created, even on error.
func saveTemp(src io.Reader, ext string) (string, error) {
	tmp, err := os.CreateTemp("", "ragdoc-upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		return path, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return path, fmt.Errorf("close temp file: %w", err)
	}
	return path, nil
}

func uploadError(err error) (int, string) {
	var extErr *extract.ExtractionError
	switch {
	case errors.Is(err, extract.ErrUnsupportedType):
		return http.StatusBadRequest, msgUnsupported
	case errors.Is(err, extract.ErrNoText), errors.Is(err, indexer.ErrEmptyDocument):
		return http.StatusBadRequest, msgNoText
	case errors.As(err, &extErr):
		return http.StatusBadRequest, "Could not read document: " + extErr.Error()
	default:
		return http.StatusInternalServerError, "Processing failed: " + err.Error()
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Normalize()
	s.logger.Info("processing query", zap.String("question", utils.Truncate(req.Question, 100)))

	result, err := s.engine.Answer(r.Context(), req.Question)
	if err != nil {
		var invalid *search.InvalidQueryError
		if errors.As(err, &invalid) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Query processing failed: "+err.Error())
		return
	}
	s.logger.Info("query processed",
		zap.String("outcome", string(result.Outcome)),
		zap.Int("retrieved", len(result.RetrievedDocs)),
		zap.Int64("query_time_ms", result.QueryTime),
	)
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]interface{}{
		"chunks":            s.store.Count(),
		"vector_index_size": s.store.Count(),
		"vector_index_type": s.store.IndexType(),
		"dimensions":        s.store.Dimensions(),
	}
	if s.uploads != nil {
		n, err := s.uploads.CountUploads(ctx)
		if err != nil {
			s.logger.Error("status: count uploads failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["uploads"] = n
	}
	if s.keyword != nil {
		if n, err := s.keyword.DocCount(); err == nil {
			resp["keyword_documents"] = n
		}
	}
	if s.watchDirs != nil {
		resp["watch_directories"] = s.watchDirs()
	}

	cfg := s.config
	diskBytes, err := storage.DiskUsageBytes(cfg.Storage.PersistDir, cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = map[string]interface{}{
		"embedding_provider": cfg.Embedding.Provider,
		"max_chunk_size":     cfg.Chunking.MaxChunkSize,
		"overlap_size":       cfg.Chunking.OverlapSize,
		"top_k":              cfg.Retrieval.TopK,
		"score_threshold":    cfg.Retrieval.MinScore(),
		"generation_model":   cfg.Generation.Model,
		"persist_dir":        cfg.Storage.PersistDir,
		"database_path":      cfg.Storage.DatabasePath,
		"bleve_index_path":   cfg.Storage.BleveIndexPath,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	if s.uploads == nil {
		s.respondError(w, http.StatusNotImplemented, "upload ledger not enabled")
		return
	}
	var q models.UploadListQuery
	var err error
	if q.Limit, err = intParam(r, "limit"); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if q.Offset, err = intParam(r, "offset"); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	q.Validate()

	ctx := r.Context()
	list, err := s.uploads.ListUploads(ctx, q.Offset, q.Limit)
	if err != nil {
		s.logger.Error("list uploads failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.uploads.CountUploads(ctx)
	if err != nil {
		s.logger.Error("count uploads failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"uploads": list,
		"total":   total,
		"limit":   q.Limit,
		"offset":  q.Offset,
	})
}

func (s *Server) handleChunkSearch(w http.ResponseWriter, r *http.Request) {
	if s.keyword == nil {
		s.respondError(w, http.StatusNotImplemented, "keyword index not enabled")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit <= 0 {
		limit = defaultChunkResults
	}
	limit = min(limit, maxChunkResults)
	opts := &keyword.SearchOptions{FilenameBoost: 2}
	if fuzzy, _ := strconv.ParseBool(r.URL.Query().Get("fuzzy")); fuzzy {
		opts.FuzzyEnabled = true
	}

	results, err := s.keyword.Search(r.Context(), query, limit, opts)
	if err != nil {
		s.logger.Error("chunk search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	hits := make([]models.KeywordHit, 0, len(results))
	for _, res := range results {
		c, ok := s.store.Get(res.ChunkID)
		if !ok {
			continue
		}
		hits = append(hits, models.KeywordHit{Chunk: c, Score: res.Score})
	}
	resp := map[string]interface{}{
		"query": query,
		"hits":  hits,
	}
	if len(hits) == 0 {
		if suggestion, ok := s.keyword.Suggest(query); ok {
			resp["suggestion"] = suggestion
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid chunk id")
		return
	}
	c, ok := s.store.Get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "chunk not found")
		return
	}
	s.respondJSON(w, http.StatusOK, c)
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
