package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Lixing-Zhang/ebook-landing/internal/discount"
	"github.com/Lixing-Zhang/ebook-landing/internal/models"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrSubmissionInFlight   = errors.New("submission already in flight")
	ErrAttachmentUnreadable = errors.New("attachment could not be read")
)

// Submission outcomes and dispatch results reported to the Recorder
const (
	OutcomeAccepted = "accepted"
	OutcomeIgnored  = "ignored"
	OutcomeAborted  = "aborted"

	ResultDelivered = "delivered"
	ResultFailed    = "failed"
)

const (
	defaultOptimisticDelay = 50 * time.Millisecond
	defaultDispatchTimeout = 30 * time.Second
	defaultCurrency        = "฿"

	attachmentErrorMessage = "We could not read your payment slip. Please try again."
)

var tracer = otel.Tracer("github.com/Lixing-Zhang/ebook-landing/internal/service")

// SubmitControl is the form's submit button
type SubmitControl interface {
	Disabled() bool
	Disable()
	Enable()
}

// PriceDisplay is the pre-rendered price the customer sees, e.g. ฿135
type PriceDisplay interface {
	Displayed() string
}

// Form is one order form instance
type Form interface {
	ID() string
	Fields() []models.Field
	// Attachment returns nil when no file was attached
	Attachment() models.AttachmentFile
	DiscountCode() string
	Price() PriceDisplay
	SubmitControl() SubmitControl
	Guard() *models.Guard
	Close()
	Reset()
}

// FileReader turns an attachment into a data URL
type FileReader interface {
	ReadDataURL(ctx context.Context, file models.AttachmentFile) (string, error)
}

// Presenter shows the loading, success and error indicators.
// ShowSuccess and ShowError close the loading indicator first.
type Presenter interface {
	ShowLoading()
	ShowSuccess()
	ShowError(message string)
}

// Dispatcher sends one payload to the form-processing endpoint
type Dispatcher interface {
	Dispatch(ctx context.Context, payload *models.Payload) error
}

// Recorder receives pipeline measurements
type Recorder interface {
	SubmissionObserved(outcome string)
	DispatchObserved(result string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) SubmissionObserved(string)              {}
func (nopRecorder) DispatchObserved(string, time.Duration) {}

// OrderService runs the order submission pipeline
type OrderService struct {
	reader     FileReader
	dispatcher Dispatcher
	log        *slog.Logger
	recorder   Recorder

	optimisticDelay time.Duration
	dispatchTimeout time.Duration
	currency        string
	afterFunc       func(time.Duration, func())

	inflight sync.WaitGroup
}

// Option configures an OrderService
type Option func(*OrderService)

// WithOptimisticDelay sets the delay after which success is shown
func WithOptimisticDelay(d time.Duration) Option {
	return func(s *OrderService) {
		if d > 0 {
			s.optimisticDelay = d
		}
	}
}

// WithDispatchTimeout bounds each outbound call
func WithDispatchTimeout(d time.Duration) Option {
	return func(s *OrderService) {
		if d > 0 {
			s.dispatchTimeout = d
		}
	}
}

// WithCurrency sets the marker stripped from the displayed price
func WithCurrency(marker string) Option {
	return func(s *OrderService) {
		s.currency = marker
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(s *OrderService) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewOrderService creates a new order service
func NewOrderService(reader FileReader, dispatcher Dispatcher, log *slog.Logger, opts ...Option) *OrderService {
	if log == nil {
		log = slog.Default()
	}
	s := &OrderService{
		reader:          reader,
		dispatcher:      dispatcher,
		log:             log,
		recorder:        nopRecorder{},
		optimisticDelay: defaultOptimisticDelay,
		dispatchTimeout: defaultDispatchTimeout,
		currency:        defaultCurrency,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit runs one submission attempt for form.
//
// It returns ErrSubmissionInFlight without touching anything when the form already has a
// submission in flight, and an error wrapping ErrAttachmentUnreadable when the attachment
// cannot be read. A nil return means the payload was handed to the dispatcher; success is
// then shown after the optimistic delay whatever the endpoint does.
func (s *OrderService) Submit(ctx context.Context, form Form, ui Presenter) error {
	control := form.SubmitControl()
	guard := form.Guard()
	if control.Disabled() || !guard.TryAcquire() {
		s.recorder.SubmissionObserved(OutcomeIgnored)
		s.log.Debug("submission ignored", "form_id", form.ID())
		return ErrSubmissionInFlight
	}
	control.Disable()

	submissionID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "order.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("form.id", form.ID()),
		attribute.String("submission.id", submissionID),
	)

	payload := buildPayload(form.Fields())
	ui.ShowLoading()

	var attachment models.Attachment
	if file := form.Attachment(); file != nil && file.Size() > 0 {
		dataURL, err := s.reader.ReadDataURL(ctx, file)
		if err != nil {
			ui.ShowError(attachmentErrorMessage)
			guard.Release()
			control.Enable()

			s.recorder.SubmissionObserved(OutcomeAborted)
			s.log.Warn("submission aborted",
				"form_id", form.ID(),
				"submission_id", submissionID,
				"file_name", file.Name(),
				"error", err,
			)
			span.RecordError(err)
			span.SetStatus(codes.Error, "attachment unreadable")
			return fmt.Errorf("%w: %v", ErrAttachmentUnreadable, err)
		}
		attachment = models.Attachment{
			Content:  StripDataURLHeader(dataURL),
			FileName: file.Name(),
			MimeType: MimeFromDataURL(dataURL),
		}
	}
	payload.SetAttachment(attachment)

	raw := form.DiscountCode()
	payload.Set(models.FieldFinalPrice, discount.StripMarker(form.Price().Displayed(), s.currency))
	payload.Set(models.FieldDiscountCode, raw)
	payload.Set(models.FieldAppliedDiscountCode, models.NormalizeDiscountCode(raw))

	s.dispatch(context.WithoutCancel(ctx), form.ID(), submissionID, payload)
	s.scheduleFinalize(form, ui)

	s.recorder.SubmissionObserved(OutcomeAccepted)
	s.log.Info("submission accepted",
		"form_id", form.ID(),
		"submission_id", submissionID,
		"fields", payload.Len(),
		"has_attachment", attachment.FileName != "",
	)
	return nil
}

// dispatch sends the payload in the background and only logs the outcome.
// ctx must not carry the caller's cancellation.
func (s *OrderService) dispatch(ctx context.Context, formID, submissionID string, payload *models.Payload) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
		defer cancel()

		start := time.Now()
		err := s.dispatcher.Dispatch(ctx, payload)
		elapsed := time.Since(start)
		if err != nil {
			s.recorder.DispatchObserved(ResultFailed, elapsed)
			s.log.Error("order dispatch failed",
				"form_id", formID,
				"submission_id", submissionID,
				"duration", elapsed,
				"error", err,
			)
			return
		}
		s.recorder.DispatchObserved(ResultDelivered, elapsed)
		s.log.Debug("order dispatched",
			"form_id", formID,
			"submission_id", submissionID,
			"duration", elapsed,
		)
	}()
}

// scheduleFinalize commits the optimistic success after the fixed delay.
// It does not wait for the dispatch started alongside it.
func (s *OrderService) scheduleFinalize(form Form, ui Presenter) {
	s.inflight.Add(1)
	s.afterFunc(s.optimisticDelay, func() {
		defer s.inflight.Done()

		ui.ShowSuccess()
		form.Close()
		form.Reset()
		form.Guard().Release()
		form.SubmitControl().Enable()
	})
}

// Drain waits for in-flight dispatches and pending finalizations, or for ctx to end
func (s *OrderService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// buildPayload copies every form field except the raw attachment control
func buildPayload(fields []models.Field) *models.Payload {
	payload := models.NewPayload()
	for _, f := range fields {
		if f.Name == models.FieldAttachment {
			continue
		}
		payload.Add(f.Name, f.Value)
	}
	return payload
}
