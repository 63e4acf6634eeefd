package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/tutorly/internal/auth"
	"github.com/hyperjump/tutorly/internal/ingest"
	"github.com/hyperjump/tutorly/internal/models"
	"github.com/hyperjump/tutorly/internal/storage"
	"go.uber.org/zap"
)

const maxChatBodyBytes = 1 << 20

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	var req models.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("chat request", zap.String("user_id", user.ID), zap.Strings("selected_docs", req.SelectedDocs))
	resp, err := s.pipeline.Ask(r.Context(), user.ID, &req)
	if err != nil {
		s.respondFailure(w, "chat failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type uploadResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Chunks int    `json:"chunks"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	limit := s.config.Server.MaxUploadBytes
	if r.ContentLength > limit {
		s.respondError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	s.logger.Debug("upload request", zap.String("user_id", user.ID), zap.String("name", header.Filename), zap.Int("bytes", len(content)))
	res, err := s.resources.Ingest(r.Context(), &ingest.Upload{UserID: user.ID, Name: header.Filename, Content: content})
	if err != nil {
		s.respondFailure(w, "ingestion failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, uploadResponse{ID: res.Resource.ID, Name: res.Resource.Name, Chunks: res.Chunks})
}

type resourceView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Chunks    int64     `json:"chunks"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	list, err := s.storage.ListResources(r.Context(), user.ID)
	if err != nil {
		s.respondFailure(w, "list resources failed", err)
		return
	}
	out := make([]resourceView, 0, len(list))
	for _, res := range list {
		n, err := s.storage.CountChunksByResourceID(r.Context(), res.ID)
		if err != nil {
			s.respondFailure(w, "count chunks failed", err)
			return
		}
		out = append(out, resourceView{ID: res.ID, Name: res.Name, Chunks: n, CreatedAt: res.CreatedAt})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"resources": out})
}

func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete resource request", zap.String("user_id", user.ID), zap.String("id", id))
	if err := s.resources.DeleteResource(r.Context(), user.ID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "resource not found")
			return
		}
		s.respondFailure(w, "deletion failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	resp, err := Status(r.Context(), s.storage, s.config, s.pipeline.Strategy(), user.ID)
	if err != nil {
		s.respondFailure(w, "status failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// respondFailure logs err and writes it with the status from statusForError.
func (s *Server) respondFailure(w http.ResponseWriter, msg string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
