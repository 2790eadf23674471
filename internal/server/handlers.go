package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/clipstash/clipstash-api/internal/auth"
	"github.com/clipstash/clipstash-api/internal/catalog"
	"github.com/clipstash/clipstash-api/internal/pipeline"
	"github.com/clipstash/clipstash-api/internal/storage"
)

// multipartOverhead is slack added to the request body limit so the
// multipart framing around a maximum-size file does not trip the reader.
const multipartOverhead = 1 << 20

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	uploads   *pipeline.UploadService
	catalog   catalog.Repository
	validator *validator.Validate
	logger    *slog.Logger

	jwtSecret         string
	maxVideoBytes     int64
	maxThumbnailBytes int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithUploadLimits sets the request body ceilings for the upload endpoints.
func WithUploadLimits(video, thumbnail int64) HandlerOption {
	return func(h *Handlers) {
		if video > 0 {
			h.maxVideoBytes = video
		}
		if thumbnail > 0 {
			h.maxThumbnailBytes = thumbnail
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(uploads *pipeline.UploadService, cat catalog.Repository, jwtSecret string, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		uploads:           uploads,
		catalog:           cat,
		validator:         validator.New(),
		logger:            logger,
		jwtSecret:         jwtSecret,
		maxVideoBytes:     1 << 30,
		maxThumbnailBytes: 10 << 20,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /healthz requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateVideo handles POST /api/videos requests.
func (h *Handlers) CreateVideo(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req CreateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	now := time.Now().UTC()
	video := &catalog.Video{
		ID:          uuid.New(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Title:       req.Title,
		Description: req.Description,
		UserID:      userID,
	}
	if err := h.catalog.Create(r.Context(), video); err != nil {
		h.logger.Error("failed to create video",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create video", "VIDEO_CREATE_FAILED")
		return
	}

	h.logger.Info("video created",
		slog.String("video_id", video.ID.String()),
		slog.String("user_id", userID.String()),
	)

	writeJSON(w, http.StatusCreated, video)
}

// GetVideo handles GET /api/videos/{videoID} requests.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	videoID, ok := h.videoID(w, r)
	if !ok {
		return
	}

	video, err := h.catalog.Get(r.Context(), videoID)
	if err != nil {
		h.writeCatalogError(w, videoID, err)
		return
	}
	if video.UserID != userID {
		writeError(w, http.StatusForbidden, "you do not own this video", "FORBIDDEN")
		return
	}

	writeJSON(w, http.StatusOK, video)
}

// ListVideos handles GET /api/videos requests, returning the caller's videos.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	videos, err := h.catalog.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list videos",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list videos", "VIDEO_LIST_FAILED")
		return
	}
	if videos == nil {
		videos = []*catalog.Video{}
	}

	writeJSON(w, http.StatusOK, videos)
}

// DeleteVideo handles DELETE /api/videos/{videoID} requests.
func (h *Handlers) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	videoID, ok := h.videoID(w, r)
	if !ok {
		return
	}

	video, err := h.catalog.Get(r.Context(), videoID)
	if err != nil {
		h.writeCatalogError(w, videoID, err)
		return
	}
	if video.UserID != userID {
		writeError(w, http.StatusForbidden, "you do not own this video", "FORBIDDEN")
		return
	}

	if err := h.catalog.Delete(r.Context(), videoID); err != nil {
		h.writeCatalogError(w, videoID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadVideo handles POST /api/videos/{videoID}/upload requests.
// It feeds the multipart file through the upload pipeline.
func (h *Handlers) UploadVideo(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	videoID, ok := h.videoID(w, r)
	if !ok {
		return
	}

	if !h.authorizeOwner(w, r, videoID, userID) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxVideoBytes+multipartOverhead)

	file, header, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing video file field", "MISSING_FILE")
		return
	}
	defer func() { _ = file.Close() }()

	video, err := h.uploads.UploadVideo(r.Context(), pipeline.UploadVideoInput{
		VideoID:      videoID,
		UserID:       userID,
		MediaType:    header.Header.Get("Content-Type"),
		Body:         file,
		DeclaredSize: header.Size,
	})
	if err != nil {
		h.writePipelineError(w, videoID, err)
		return
	}

	writeJSON(w, http.StatusOK, video)
}

// UploadThumbnail handles POST /api/videos/{videoID}/thumbnail requests.
func (h *Handlers) UploadThumbnail(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	videoID, ok := h.videoID(w, r)
	if !ok {
		return
	}

	if !h.authorizeOwner(w, r, videoID, userID) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxThumbnailBytes+multipartOverhead)

	file, header, err := r.FormFile("thumbnail")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing thumbnail file field", "MISSING_FILE")
		return
	}
	defer func() { _ = file.Close() }()

	video, err := h.uploads.UploadThumbnail(r.Context(), pipeline.UploadThumbnailInput{
		VideoID:      videoID,
		UserID:       userID,
		MediaType:    header.Header.Get("Content-Type"),
		Body:         file,
		DeclaredSize: header.Size,
	})
	if err != nil {
		h.writePipelineError(w, videoID, err)
		return
	}

	writeJSON(w, http.StatusOK, video)
}

// authenticate validates the bearer token and returns the caller's user ID.
// On failure it writes a 401 response and returns ok=false.
func (h *Handlers) authenticate(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	token, err := auth.GetBearerToken(r.Header)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing or malformed bearer token", "UNAUTHORIZED")
		return uuid.Nil, false
	}

	userID, err := auth.ValidateJWT(token, h.jwtSecret)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token", "UNAUTHORIZED")
		return uuid.Nil, false
	}

	return userID, true
}

// authorizeOwner resolves the catalog entry and verifies ownership before
// any of the request body is consumed, so a non-owner's upload bytes are
// never parsed or spilled to disk. The pipeline re-checks ownership as part
// of its own run. On failure it writes the response and returns false.
func (h *Handlers) authorizeOwner(w http.ResponseWriter, r *http.Request, videoID, userID uuid.UUID) bool {
	video, err := h.catalog.Get(r.Context(), videoID)
	if err != nil {
		h.writeCatalogError(w, videoID, err)
		return false
	}
	if video.UserID != userID {
		writeError(w, http.StatusForbidden, "you do not own this video", "FORBIDDEN")
		return false
	}
	return true
}

// videoID parses the {videoID} path value. On failure it writes a 400
// response and returns ok=false.
func (h *Handlers) videoID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("videoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid video ID", "INVALID_VIDEO_ID")
		return uuid.Nil, false
	}
	return id, true
}

// writeCatalogError maps catalog errors to HTTP responses.
func (h *Handlers) writeCatalogError(w http.ResponseWriter, videoID uuid.UUID, err error) {
	if errors.Is(err, catalog.ErrVideoNotFound) {
		writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
		return
	}
	h.logger.Error("catalog operation failed",
		slog.String("video_id", videoID.String()),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
}

// writePipelineError maps pipeline errors to HTTP responses. Tool
// diagnostics are logged for operability but never leaked to the client.
func (h *Handlers) writePipelineError(w http.ResponseWriter, videoID uuid.UUID, err error) {
	switch {
	case errors.Is(err, catalog.ErrVideoNotFound):
		writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
	case errors.Is(err, pipeline.ErrForbidden):
		writeError(w, http.StatusForbidden, "you do not own this video", "FORBIDDEN")
	case errors.Is(err, pipeline.ErrUnsupportedMediaType):
		writeError(w, http.StatusBadRequest, "unsupported media type", "UNSUPPORTED_MEDIA_TYPE")
	case errors.Is(err, storage.ErrPayloadTooLarge):
		writeError(w, http.StatusBadRequest, "file is too large", "PAYLOAD_TOO_LARGE")
	default:
		h.logger.Error("upload pipeline failed",
			slog.String("video_id", videoID.String()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "upload failed", "UPLOAD_FAILED")
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
