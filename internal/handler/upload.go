package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/storage"
	"github.com/dukerupert/huddle/internal/store"
)

// MaxUploadSize caps a single uploaded file.
const MaxUploadSize = 10 << 20

type UploadHandler struct {
	uploads *store.UploadStore
	bucket  *storage.Bucket
	logger  *slog.Logger
}

func NewUploadHandler(uploads *store.UploadStore, bucket *storage.Bucket, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{uploads: uploads, bucket: bucket, logger: logger.With("component", "uploads")}
}

func (h *UploadHandler) enabled(w http.ResponseWriter) bool {
	if !h.bucket.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "file storage is not configured")
		return false
	}
	return true
}

// Create handles POST /api/uploads with a multipart "file" field.
func (h *UploadHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file must be at most 10 MiB")
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart form with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if header.Size > MaxUploadSize {
		writeError(w, http.StatusRequestEntityTooLarge, "file must be at most 10 MiB")
		return
	}
	if header.Size == 0 {
		writeError(w, http.StatusBadRequest, "file is empty")
		return
	}

	filename := filepath.Base(header.Filename)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	userID := auth.UserID(r.Context())
	key := storage.NewKey(userID, filename)
	if err := h.bucket.Put(r.Context(), key, file, header.Size, contentType); err != nil {
		h.logger.Error("store upload", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	up, err := h.uploads.Create(userID, key, filename, contentType, header.Size)
	if err != nil {
		h.logger.Error("record upload", "user_id", userID, "error", err)
		// the object would be unreachable without its row
		if derr := h.bucket.Delete(r.Context(), key); derr != nil {
			h.logger.Error("remove orphaned object", "key", key, "error", derr)
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, up)
}

func (h *UploadHandler) List(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.uploads.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list uploads", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if uploads == nil {
		uploads = []model.Upload{}
	}
	writeJSON(w, http.StatusOK, uploads)
}

func (h *UploadHandler) owned(w http.ResponseWriter, r *http.Request) *model.Upload {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil
	}
	up, err := h.uploads.GetByID(id, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get upload", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	if up == nil {
		writeError(w, http.StatusNotFound, "upload not found")
		return nil
	}
	return up
}

// Download handles GET /api/uploads/{id} by streaming the stored object.
func (h *UploadHandler) Download(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}
	up := h.owned(w, r)
	if up == nil {
		return
	}

	obj, err := h.bucket.Get(r.Context(), up.ObjectKey)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "upload not found")
		return
	}
	if err != nil {
		h.logger.Error("fetch upload", "upload_id", up.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", up.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(up.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": up.Filename}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.Warn("stream upload", "upload_id", up.ID, "error", err)
	}
}

func (h *UploadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}
	up := h.owned(w, r)
	if up == nil {
		return
	}

	if err := h.bucket.Delete(r.Context(), up.ObjectKey); err != nil {
		h.logger.Error("delete object", "upload_id", up.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.uploads.Delete(up.ID, up.UserID); err != nil {
		h.logger.Error("delete upload", "upload_id", up.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
