package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Lixing-Zhang/ebook-landing/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/Lixing-Zhang/ebook-landing/internal/dispatch")

// HTTPDispatcher POSTs payloads to a fixed endpoint URL.
// Any response counts as delivered, whatever its status; the endpoint's reply is not
// something the pipeline can act on. Only transport failures are errors.
type HTTPDispatcher struct {
	endpoint string
	client   *http.Client
	log      *slog.Logger
}

// NewHTTPDispatcher creates a dispatcher for endpoint
func NewHTTPDispatcher(endpoint string, client *http.Client, log *slog.Logger) *HTTPDispatcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &HTTPDispatcher{
		endpoint: endpoint,
		client:   client,
		log:      log,
	}
}

// Dispatch sends one multipart POST
func (d *HTTPDispatcher) Dispatch(ctx context.Context, payload *models.Payload) error {
	ctx, span := tracer.Start(ctx, "order.dispatch", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	body, contentType, err := EncodeMultipart(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		return err
	}
	span.SetAttributes(
		attribute.String("http.url", d.endpoint),
		attribute.Int("http.request_content_length", len(body)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad request")
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := d.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return fmt.Errorf("failed to post order: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	d.log.Debug("order endpoint responded", "status", resp.StatusCode)
	return nil
}
