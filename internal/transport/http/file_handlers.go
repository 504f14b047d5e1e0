package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fileflow/fileflow-server/internal/service/files"
	"github.com/fileflow/fileflow-server/internal/store"
)

// FileHandlers provides HTTP handlers for file upload and download endpoints.
type FileHandlers struct {
	service *files.Service
	store   store.Store
	log     *zerolog.Logger
}

// NewFileHandlers creates a new file handlers instance.
func NewFileHandlers(svc *files.Service, st store.Store, logger *zerolog.Logger) *FileHandlers {
	return &FileHandlers{
		service: svc,
		store:   st,
		log:     logger,
	}
}

// FileResponse represents a file in API responses.
type FileResponse struct {
	ID            int64  `json:"id"`
	Filename      string `json:"filename"`
	OriginalName  string `json:"original_name"`
	Size          int64  `json:"size"`
	Mimetype      string `json:"mimetype"`
	UserID        int64  `json:"user_id"`
	RoomID        *int64 `json:"room_id,omitempty"`
	DownloadCount int    `json:"download_count"`
	UploadedAt    string `json:"uploaded_at"`
	DownloadURL   string `json:"download_url"`
}

func fileToResponse(f *store.File) FileResponse {
	return FileResponse{
		ID:            f.ID,
		Filename:      f.Filename,
		OriginalName:  f.OriginalName,
		Size:          f.Size,
		Mimetype:      f.Mimetype,
		UserID:        f.UserID,
		RoomID:        f.RoomID,
		DownloadCount: f.DownloadCount,
		UploadedAt:    f.UploadedAt.Format("2006-01-02T15:04:05Z07:00"),
		DownloadURL:   fmt.Sprintf("/api/files/%d/download", f.ID),
	}
}

// Upload handles multipart file upload. An optional room_id form field
// attaches the file to a room the uploader belongs to.
// POST /api/files
func (h *FileHandlers) Upload(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		h.log.Debug().Err(err).Msg("missing file in upload")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing file"})
		return
	}

	var roomID *int64
	if raw := c.PostForm("room_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room id"})
			return
		}
		member, err := h.store.IsMember(c.Request.Context(), parsed, uid)
		if err != nil {
			h.log.Error().Err(err).Int64("room_id", parsed).Msg("failed to check membership")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		if !member {
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a room member"})
			return
		}
		roomID = &parsed
	}

	src, err := header.Open()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to open uploaded file")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	defer src.Close()

	mimetype := header.Header.Get("Content-Type")
	file, err := h.service.Save(c.Request.Context(), src, header.Filename, mimetype, header.Size, uid, roomID)
	if err != nil {
		if errors.Is(err, files.ErrTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "file too large"})
			return
		}
		h.log.Error().Err(err).Int64("user_id", uid).Str("name", header.Filename).Msg("failed to save upload")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("file_id", file.ID).Int64("user_id", uid).Int64("size", file.Size).Msg("file uploaded")
	c.JSON(http.StatusCreated, fileToResponse(file))
}

// List handles listing the authenticated user's uploads.
// GET /api/files
func (h *FileHandlers) List(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	fileList, err := h.service.ListUserFiles(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list files")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]FileResponse, 0, len(fileList))
	for _, f := range fileList {
		response = append(response, fileToResponse(f))
	}
	c.JSON(http.StatusOK, response)
}

// fileParam parses the :fileId path parameter. On failure the error response
// has already been written.
func (h *FileHandlers) fileParam(c *gin.Context) (int64, bool) {
	fileID, err := strconv.ParseInt(c.Param("fileId"), 10, 64)
	if err != nil {
		h.log.Debug().Str("file_id", c.Param("fileId")).Msg("invalid file id")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid file id"})
		return 0, false
	}
	return fileID, true
}

// Download serves file data and bumps the download counter. Files attached
// to a room are restricted to room members; unattached files are restricted
// to the uploader.
// GET /api/files/:fileId/download
func (h *FileHandlers) Download(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	fileID, ok := h.fileParam(c)
	if !ok {
		return
	}

	file, err := h.service.Get(c.Request.Context(), fileID)
	if err != nil {
		if errors.Is(err, files.ErrFileNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "file not found"})
			return
		}
		h.log.Error().Err(err).Int64("file_id", fileID).Msg("failed to load file")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	allowed := file.UserID == uid
	if !allowed && file.RoomID != nil {
		member, err := h.store.IsMember(c.Request.Context(), *file.RoomID, uid)
		if err != nil {
			h.log.Error().Err(err).Int64("file_id", fileID).Msg("failed to check membership")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		allowed = member
	}
	if !allowed {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
		return
	}

	if _, err := h.service.Download(c.Request.Context(), fileID); err != nil {
		h.log.Error().Err(err).Int64("file_id", fileID).Msg("failed to count download")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Debug().Int64("file_id", fileID).Int64("user_id", uid).Msg("file downloaded")
	c.FileAttachment(file.Path, file.OriginalName)
}

// Delete removes an uploaded file. Only the uploader may delete.
// DELETE /api/files/:fileId
func (h *FileHandlers) Delete(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	fileID, ok := h.fileParam(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), fileID, uid); err != nil {
		switch {
		case errors.Is(err, files.ErrFileNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "file not found"})
		case errors.Is(err, files.ErrNotOwner):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "not the file owner"})
		default:
			h.log.Error().Err(err).Int64("file_id", fileID).Msg("failed to delete file")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Int64("file_id", fileID).Int64("user_id", uid).Msg("file deleted")
	c.JSON(http.StatusOK, gin.H{"message": "file deleted"})
}
