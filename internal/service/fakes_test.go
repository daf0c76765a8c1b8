package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Lixing-Zhang/ebook-landing/internal/models"
	"github.com/Lixing-Zhang/ebook-landing/pkg/logger"
)

func discardLogger() *slog.Logger {
	return logger.NewWithWriter(io.Discard, "error")
}

type priceText string

func (p priceText) Displayed() string { return string(p) }

type fakeForm struct {
	id       string
	fields   []models.Field
	file     models.AttachmentFile
	discount string
	price    string

	guard  models.Guard
	button models.SubmitButton

	mu     sync.Mutex
	closed bool
	resets int
}

func newFakeForm(fields ...models.Field) *fakeForm {
	return &fakeForm{id: "form-1", fields: fields, price: "฿135"}
}

func (f *fakeForm) ID() string                        { return f.id }
func (f *fakeForm) Fields() []models.Field            { return f.fields }
func (f *fakeForm) Attachment() models.AttachmentFile { return f.file }
func (f *fakeForm) DiscountCode() string              { return f.discount }
func (f *fakeForm) Price() PriceDisplay               { return priceText(f.price) }
func (f *fakeForm) SubmitControl() SubmitControl      { return &f.button }
func (f *fakeForm) Guard() *models.Guard              { return &f.guard }

func (f *fakeForm) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeForm) Reset() {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
}

func (f *fakeForm) state() (closed bool, resets int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed, f.resets
}

type fakePresenter struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePresenter) record(event string) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *fakePresenter) ShowLoading()         { p.record("loading") }
func (p *fakePresenter) ShowSuccess()         { p.record("success") }
func (p *fakePresenter) ShowError(msg string) { p.record("error") }

func (p *fakePresenter) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

// fakeDispatcher records payloads. When release is set, Dispatch blocks until it is closed.
type fakeDispatcher struct {
	mu       sync.Mutex
	payloads []*models.Payload
	ctxErrs  []error
	err      error
	release  chan struct{}
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, payload *models.Payload) error {
	d.mu.Lock()
	d.payloads = append(d.payloads, payload)
	d.mu.Unlock()

	if d.release != nil {
		<-d.release
	}

	d.mu.Lock()
	d.ctxErrs = append(d.ctxErrs, ctx.Err())
	d.mu.Unlock()
	return d.err
}

func (d *fakeDispatcher) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.payloads)
}

func (d *fakeDispatcher) Payload(i int) *models.Payload {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.payloads[i]
}

func (d *fakeDispatcher) Finished() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]error(nil), d.ctxErrs...)
}

type failingReader struct{}

func (failingReader) ReadDataURL(ctx context.Context, file models.AttachmentFile) (string, error) {
	return "", errors.New("corrupted file handle")
}

type memFile struct {
	name        string
	contentType string
	data        []byte
	openErr     error
}

func (f *memFile) Name() string        { return f.name }
func (f *memFile) ContentType() string { return f.contentType }
func (f *memFile) Size() int64         { return int64(len(f.data)) }

func (f *memFile) Open() (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

type fakeRecorder struct {
	mu          sync.Mutex
	submissions map[string]int
	dispatches  map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{submissions: map[string]int{}, dispatches: map[string]int{}}
}

func (r *fakeRecorder) SubmissionObserved(outcome string) {
	r.mu.Lock()
	r.submissions[outcome]++
	r.mu.Unlock()
}

func (r *fakeRecorder) DispatchObserved(result string, elapsed time.Duration) {
	r.mu.Lock()
	r.dispatches[result]++
	r.mu.Unlock()
}

func (r *fakeRecorder) count(m map[string]int, key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return m[key]
}

// manualTimer captures scheduled finalizations so tests decide when they run
type manualTimer struct {
	mu    sync.Mutex
	funcs []func()
	delay time.Duration
}

func (m *manualTimer) AfterFunc(d time.Duration, f func()) {
	m.mu.Lock()
	m.delay = d
	m.funcs = append(m.funcs, f)
	m.mu.Unlock()
}

func (m *manualTimer) Fire() {
	m.mu.Lock()
	funcs := m.funcs
	m.funcs = nil
	m.mu.Unlock()
	for _, f := range funcs {
		f()
	}
}

func (m *manualTimer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.funcs)
}
