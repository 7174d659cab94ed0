// Package uploads validates vendor documents and forwards them to the tender backend.
package uploads

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tender-evaluator/internal/shared/server/middleware"
	"tender-evaluator/internal/shared/server/respond"
	"tender-evaluator/internal/shared/telemetry"
	"tender-evaluator/internal/shared/util"
	"tender-evaluator/internal/tenderapi"
)

const (
	defaultMaxUploadBytes = 25 << 20
	defaultMaxFiles       = 10
	multipartOverhead     = 1 << 20
)

// Uploader is the slice of the tender API the handler forwards to.
type Uploader interface {
	UploadVendorDocuments(ctx context.Context, vendorID int64, files []tenderapi.UploadFile) ([]tenderapi.Document, error)
}

// UploaderFactory returns an uploader authenticated with the caller's token.
type UploaderFactory func(token string) Uploader

type Handler struct {
	NewUploader UploaderFactory
	MaxBytes    int64
	MaxFiles    int
}

func NewHandler(factory UploaderFactory, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &Handler{NewUploader: factory, MaxBytes: maxBytes, MaxFiles: defaultMaxFiles}
}

type uploadResponse struct {
	VendorID  int64                `json:"vendorId"`
	Files     []FileInfo           `json:"files"`
	Documents []tenderapi.Document `json:"documents"`
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/vendors/:id/documents", h.upload)
}

func (h *Handler) upload(c *gin.Context) {
	vendorID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || vendorID <= 0 {
		respond.Invalid(c, "invalid vendor id", nil)
		return
	}
	c.Set("vendorId", vendorID)

	maxFiles := h.MaxFiles
	if maxFiles <= 0 {
		maxFiles = defaultMaxFiles
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(maxFiles)*h.MaxBytes+multipartOverhead)
	form, err := c.MultipartForm()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "upload exceeds size limit", nil)
			return
		}
		respond.Invalid(c, "multipart form with files is required", nil)
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		respond.Invalid(c, "at least one file is required", nil)
		return
	}
	if len(headers) > maxFiles {
		respond.Invalid(c, "too many files", gin.H{"maxFiles": maxFiles})
		return
	}

	files := make([]tenderapi.UploadFile, 0, len(headers))
	infos := make([]FileInfo, 0, len(headers))
	for _, fh := range headers {
		name, err := util.SanitizeFileName(fh.Filename)
		if err != nil {
			respond.Invalid(c, "invalid file name", gin.H{"file": fh.Filename})
			return
		}
		data, err := readPart(fh, h.MaxBytes)
		if err != nil {
			respond.Invalid(c, "failed to read file", gin.H{"file": name})
			return
		}
		info, err := Inspect(name, fh.Header.Get("Content-Type"), data, h.MaxBytes)
		if err != nil {
			status, code := inspectStatus(err)
			respond.Error(c, status, code, err.Error(), gin.H{"file": name})
			return
		}
		infos = append(infos, info)
		files = append(files, tenderapi.UploadFile{Name: name, ContentType: info.ContentType, Data: data})
	}

	if h.NewUploader == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "uploads not configured", nil)
		return
	}
	docs, err := h.NewUploader(middleware.BearerTokenFromContext(c)).UploadVendorDocuments(c.Request.Context(), vendorID, files)
	if err != nil {
		if tenderapi.IsUnauthorized(err) {
			respond.Error(c, http.StatusUnauthorized, "upstream_unauthorized", "tender api rejected the token", nil)
			return
		}
		c.Set("upstreamError", err.Error())
		respond.Error(c, http.StatusBadGateway, "upstream_error", "failed to upload documents", nil)
		return
	}

	telemetry.Info("uploads.forwarded", map[string]any{
		"vendor_id":  vendorID,
		"files":      len(files),
		"documents":  len(docs),
		"user_id":    middleware.UserIDFromContext(c),
		"request_id": c.GetString("requestId"),
	})
	respond.Created(c, uploadResponse{VendorID: vendorID, Files: infos, Documents: docs})
}

// readPart reads one part, allowing a single byte past the limit so Inspect
// can tell "exactly at limit" from "over".
func readPart(fh *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxBytes+1))
}

func inspectStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "file_too_large"
	case errors.Is(err, ErrUnsupportedType):
		return http.StatusUnsupportedMediaType, "unsupported_type"
	default:
		return http.StatusBadRequest, "validation_error"
	}
}
