package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/seiri/internal/export"
	"github.com/hyperjump/seiri/internal/fingerprint"
	"github.com/hyperjump/seiri/internal/grouping"
	"github.com/hyperjump/seiri/internal/models"
	"github.com/hyperjump/seiri/internal/refine"
	"github.com/hyperjump/seiri/internal/storage"
	"github.com/hyperjump/seiri/internal/table"
	"go.uber.org/zap"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	datasets, err := s.storage.CountDatasets(ctx)
	if err != nil {
		s.logger.Error("status: count datasets failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	refinements, err := s.storage.CountRefinements(ctx)
	if err != nil {
		s.logger.Error("status: count refinements failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := models.Status{
		Datasets:         int(datasets),
		Refinements:      int(refinements),
		Provider:         s.config.Embedding.Provider,
		EmbedderReady:    true,
		DefaultThreshold: s.refiner.DefaultThreshold(),
		DefaultStrategy:  s.config.Refine.Strategy,
	}
	if lazy, ok := s.embedder.(interface{ Built() bool }); ok {
		status.EmbedderReady = lazy.Built()
	}
	if status.EmbedderReady && s.embedder != nil {
		status.Model = s.embedder.Model()
		status.Dimensions = s.embedder.Dimensions()
	}

	resp := map[string]interface{}{
		"status": status,
		"config": map[string]interface{}{
			"database_path":    s.config.Storage.DatabasePath,
			"max_upload_bytes": s.config.Server.MaxUploadBytes,
			"placeholder":      s.config.Refine.Placeholder,
		},
	}
	if size, err := storage.DatabaseSize(s.config.Storage.DatabasePath); err == nil {
		resp["disk_usage_bytes"] = size
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUploadDataset(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.config.Server.MaxUploadBytes
	if r.ContentLength > maxBytes {
		s.respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", maxBytes))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", maxBytes))
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if !table.Supported(header.Filename) {
		s.respondError(w, http.StatusUnsupportedMediaType, fmt.Sprintf("unsupported file type: %s", header.Filename))
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	ctx := r.Context()
	fp := fingerprint.Of(content)
	if existing, err := s.storage.GetDatasetByFingerprint(ctx, fp); err == nil {
		s.logger.Debug("dataset already stored", zap.String("id", existing.ID), zap.String("name", header.Filename))
		s.respondJSON(w, http.StatusOK, existing.Summary())
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		s.respondFailure(w, err)
		return
	}

	tbl, err := table.Load(header.Filename, content)
	if err != nil {
		switch {
		case errors.Is(err, table.ErrUnsupportedFormat):
			s.respondError(w, http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, table.ErrTableTooLarge):
			s.respondError(w, http.StatusRequestEntityTooLarge, err.Error())
		default:
			s.respondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	ds := models.NewDataset(tbl, fp)
	if err := s.storage.CreateDataset(ctx, ds); err != nil {
		s.respondFailure(w, err)
		return
	}
	s.logger.Info("dataset uploaded",
		zap.String("id", ds.ID),
		zap.String("name", ds.Name),
		zap.Int("rows", len(ds.Rows)),
		zap.Int("columns", len(ds.Columns)))
	s.respondJSON(w, http.StatusCreated, ds.Summary())
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	list, err := s.storage.ListDatasets(r.Context(), offset, limit)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"datasets": list})
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := s.storage.GetDataset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ds.Preview(queryInt(r, "limit", s.config.Refine.PreviewRows)))
}

func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete dataset request", zap.String("id", id))
	if err := s.storage.DeleteDataset(r.Context(), id); err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleGetColumn(w http.ResponseWriter, r *http.Request) {
	ds, err := s.storage.GetDataset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	column := pathParam(r, "column")
	values, err := ds.Table().Column(column)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	unique := make(map[string]struct{}, len(values))
	for _, v := range values {
		unique[v] = struct{}{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"column": column,
		"values": values,
		"unique": len(unique),
	})
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	var req models.RefineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx := r.Context()
	ds, err := s.storage.GetDataset(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.logger.Debug("refine request",
		zap.String("dataset", ds.ID),
		zap.String("column", req.Column),
		zap.Float64("threshold", req.Threshold))

	ref, err := s.refiner.Refine(ctx, ds.Table(), req)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	ref.DatasetID = ds.ID
	s.editMu.Lock()
	err = s.storage.SaveRefinement(ctx, ref)
	s.editMu.Unlock()
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ref)
}

func (s *Server) handleListRefinements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if _, err := s.storage.GetDataset(ctx, id); err != nil {
		s.respondFailure(w, err)
		return
	}
	list, err := s.storage.ListRefinements(ctx, id)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"refinements": list})
}

func (s *Server) handleGetRefinement(w http.ResponseWriter, r *http.Request) {
	ref, err := s.storage.GetRefinement(r.Context(), chi.URLParam(r, "id"), pathParam(r, "column"))
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ref)
}

func (s *Server) handleEditRow(w http.ResponseWriter, r *http.Request) {
	row, err := strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "row must be an integer")
		return
	}
	var req models.EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.updateRefinement(w, r, func(ref *models.Refinement) error {
		return refine.Edit(ref, row, req.Value)
	})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req models.RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.updateRefinement(w, r, func(ref *models.Refinement) error {
		n := refine.Rename(ref, req.From, req.To)
		s.logger.Debug("renamed values", zap.String("from", req.From), zap.String("to", req.To), zap.Int("rows", n))
		return nil
	})
}

// updateRefinement loads the refinement addressed by r, applies fn and stores the result.
func (s *Server) updateRefinement(w http.ResponseWriter, r *http.Request, fn func(*models.Refinement) error) {
	s.editMu.Lock()
	defer s.editMu.Unlock()

	ctx := r.Context()
	ref, err := s.storage.GetRefinement(ctx, chi.URLParam(r, "id"), pathParam(r, "column"))
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	if err := fn(ref); err != nil {
		s.respondFailure(w, err)
		return
	}
	if err := s.storage.SaveRefinement(ctx, ref); err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ref)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	full, _ := strconv.ParseBool(r.URL.Query().Get("full"))

	ctx := r.Context()
	ds, err := s.storage.GetDataset(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	ref, err := s.storage.GetRefinement(ctx, ds.ID, pathParam(r, "column"))
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	sheet, err := export.FromRefinement(ds.Table(), ref, full)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, sheet, format); err != nil {
		s.respondFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// respondFailure maps domain errors to HTTP status codes.
func (s *Server) respondFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, table.ErrColumnNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, refine.ErrInvalidRequest), errors.Is(err, refine.ErrRowOutOfRange):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, table.ErrUnsupportedFormat):
		s.respondError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, table.ErrTableTooLarge):
		s.respondError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, grouping.ErrEmbedding):
		s.logger.Error("embedding failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// pathParam returns a decoded URL parameter. chi matches against RawPath when
// the request has one, so only then is the parameter still escaped.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
