package handlers

import (
	stderrors "errors"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suvankar11223/chatzi-sub000/internal/storage"
	"github.com/suvankar11223/chatzi-sub000/pkg/errors"
)

const (
	maxAvatarSize     = 5 << 20
	maxAttachmentSize = 25 << 20
)

var avatarExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
}

// Uploads puts files in object storage and hands back a public URL, which
// clients then send as an avatar or message attachment.
type UploadHandler struct {
	Uploader *storage.Uploader
}

func (h *UploadHandler) UploadAvatar(c *gin.Context) {
	file, header, err := formFile(c)
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	if header.Size > maxAvatarSize {
		respondError(c, errors.BadRequest("Avatar exceeds 5MB"))
		return
	}
	if !avatarExtensions[strings.ToLower(filepath.Ext(header.Filename))] {
		respondError(c, errors.BadRequest("Avatar must be a .png, .jpg, .jpeg, .webp or .gif image"))
		return
	}
	h.put(c, storage.FolderAvatars, file, header)
}

func (h *UploadHandler) UploadAttachment(c *gin.Context) {
	file, header, err := formFile(c)
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	if header.Size > maxAttachmentSize {
		respondError(c, errors.BadRequest("Attachment exceeds 25MB"))
		return
	}
	h.put(c, storage.FolderAttachments, file, header)
}

func (h *UploadHandler) put(c *gin.Context, folder string, file multipart.File, header *multipart.FileHeader) {
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	obj, err := h.Uploader.Put(c.Request.Context(), folder, header.Filename, contentType, header.Size, file)
	if stderrors.Is(err, storage.ErrNotConfigured) {
		respondError(c, errors.Unavailable("File uploads are not configured"))
		return
	}
	if err != nil {
		respondError(c, errors.Wrap(err, "Upload failed"))
		return
	}
	respondOK(c, http.StatusOK, obj)
}

// formFile accepts the common field names clients use for uploads.
func formFile(c *gin.Context) (multipart.File, *multipart.FileHeader, error) {
	for _, field := range []string{"file", "image", "avatar"} {
		file, header, err := c.Request.FormFile(field)
		if err == nil {
			return file, header, nil
		}
	}
	return nil, nil, errors.BadRequest("No valid file field found")
}
