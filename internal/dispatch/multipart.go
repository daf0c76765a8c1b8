// Package dispatch delivers order payloads to the form-processing endpoint.
package dispatch

import (
	"bytes"
	"fmt"
	"mime/multipart"

	"github.com/Lixing-Zhang/ebook-landing/internal/models"
)

// EncodeMultipart writes the payload as multipart/form-data, fields in payload order.
// It returns the body and its content type.
func EncodeMultipart(payload *models.Payload) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range payload.Fields() {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}
