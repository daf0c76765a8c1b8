package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Lixing-Zhang/ebook-landing/internal/models"
	"github.com/gabriel-vasile/mimetype"
)

var ErrAttachmentTooLarge = errors.New("attachment exceeds size limit")

// DataURLReader reads attachments into base64 data URLs
type DataURLReader struct {
	maxBytes int64
}

// NewDataURLReader creates a reader rejecting files above maxBytes; zero means no limit
func NewDataURLReader(maxBytes int64) *DataURLReader {
	return &DataURLReader{maxBytes: maxBytes}
}

// ReadDataURL returns data:<mime>;base64,<body>.
// The declared content type is used when set, otherwise it is sniffed from the bytes.
func (r *DataURLReader) ReadDataURL(ctx context.Context, file models.AttachmentFile) (string, error) {
	if r.maxBytes > 0 && file.Size() > r.maxBytes {
		return "", fmt.Errorf("%w: %s is %d bytes", ErrAttachmentTooLarge, file.Name(), file.Size())
	}

	rc, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open attachment: %w", err)
	}
	defer rc.Close()

	var src io.Reader = rc
	if r.maxBytes > 0 {
		src = io.LimitReader(rc, r.maxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("failed to read attachment: %w", err)
	}
	if r.maxBytes > 0 && int64(len(data)) > r.maxBytes {
		return "", fmt.Errorf("%w: %s", ErrAttachmentTooLarge, file.Name())
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	mimeType := file.ContentType()
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}
	mimeType, _, _ = strings.Cut(mimeType, ";")

	return "data:" + strings.TrimSpace(mimeType) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// StripDataURLHeader returns the text after the first comma, or "" when there is none
func StripDataURLHeader(dataURL string) string {
	_, body, ok := strings.Cut(dataURL, ",")
	if !ok {
		return ""
	}
	return body
}

// MimeFromDataURL returns the media type declared in a data URL header
func MimeFromDataURL(dataURL string) string {
	header, _, ok := strings.Cut(dataURL, ",")
	if !ok {
		return ""
	}
	mediaType, _, _ := strings.Cut(strings.TrimPrefix(header, "data:"), ";")
	return mediaType
}
