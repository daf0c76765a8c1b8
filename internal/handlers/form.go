package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"

	"github.com/Lixing-Zhang/ebook-landing/internal/models"
	"github.com/Lixing-Zhang/ebook-landing/internal/service"
)

var ErrMalformedForm = errors.New("malformed order form")

// maxFieldBytes bounds a single text field of the order form
const maxFieldBytes = 64 << 10

// uploadedFile is an attachment buffered from the request body
type uploadedFile struct {
	name        string
	contentType string
	data        []byte
	size        int64
}

func (f *uploadedFile) Name() string        { return f.name }
func (f *uploadedFile) ContentType() string { return f.contentType }
func (f *uploadedFile) Size() int64         { return f.size }

func (f *uploadedFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// readOrderForm streams the multipart body, keeping fields in the order they were sent.
// At most maxFile+1 bytes of the attachment are buffered; a larger file keeps that size so
// the reader rejects it.
func readOrderForm(r *http.Request, maxFile int64) ([]models.Field, *uploadedFile, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedForm, err)
	}

	var fields []models.Field
	var file *uploadedFile
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrMalformedForm, err)
		}

		name := part.FormName()
		if name == "" {
			_ = part.Close()
			continue
		}

		if part.FileName() == "" && !isFilePart(part) {
			value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
			_ = part.Close()
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %v", ErrMalformedForm, err)
			}
			if len(value) > maxFieldBytes {
				return nil, nil, fmt.Errorf("%w: field %q exceeds %d bytes", ErrMalformedForm, name, maxFieldBytes)
			}
			fields = append(fields, models.Field{Name: name, Value: string(value)})
			continue
		}

		fields = append(fields, models.Field{Name: name, Value: part.FileName()})
		if name != models.FieldAttachment || file != nil {
			_ = part.Close()
			continue
		}

		data, err := io.ReadAll(io.LimitReader(part, maxFile+1))
		_ = part.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrMalformedForm, err)
		}
		if len(data) > 0 {
			file = &uploadedFile{
				name:        part.FileName(),
				contentType: part.Header.Get("Content-Type"),
				data:        data,
				size:        int64(len(data)),
			}
		}
	}

	return fields, file, nil
}

// isFilePart reports whether an empty file input was sent, which browsers do with filename=""
func isFilePart(part *multipart.Part) bool {
	return part.Header.Get("Content-Type") == "application/octet-stream"
}

// displayedPrice is the price string rendered for the form
type displayedPrice string

func (p displayedPrice) Displayed() string { return string(p) }

// orderForm adapts a form session and one request's fields to service.Form
type orderForm struct {
	session *models.FormSession
	fields  []models.Field
	file    *uploadedFile
	price   string
}

func (f *orderForm) ID() string             { return f.session.ID }
func (f *orderForm) Fields() []models.Field { return f.fields }

func (f *orderForm) Attachment() models.AttachmentFile {
	if f.file == nil {
		return nil
	}
	return f.file
}

func (f *orderForm) DiscountCode() string {
	return fieldValue(f.fields, models.FieldDiscountCode)
}

func (f *orderForm) Price() service.PriceDisplay           { return displayedPrice(f.price) }
func (f *orderForm) SubmitControl() service.SubmitControl  { return &f.session.Button }
func (f *orderForm) Guard() *models.Guard                  { return &f.session.Guard }
func (f *orderForm) Close()                                { f.session.Close() }
func (f *orderForm) Reset()                                { f.session.Reset() }

func fieldValue(fields []models.Field, name string) string {
	for _, f := range fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// responsePresenter collects the indicators shown during one submission and signals
// when a terminal one (success or error) has been shown.
type responsePresenter struct {
	mu      sync.Mutex
	events  []string
	message string
	done    chan struct{}
	once    sync.Once
}

func newResponsePresenter() *responsePresenter {
	return &responsePresenter{done: make(chan struct{})}
}

func (p *responsePresenter) ShowLoading() {
	p.mu.Lock()
	p.events = append(p.events, "loading")
	p.mu.Unlock()
}

func (p *responsePresenter) ShowSuccess() {
	p.mu.Lock()
	p.events = append(p.events, "success")
	p.mu.Unlock()
	p.once.Do(func() { close(p.done) })
}

func (p *responsePresenter) ShowError(message string) {
	p.mu.Lock()
	p.events = append(p.events, "error")
	p.message = message
	p.mu.Unlock()
	p.once.Do(func() { close(p.done) })
}

// Done is closed once a terminal indicator is shown
func (p *responsePresenter) Done() <-chan struct{} {
	return p.done
}

func (p *responsePresenter) snapshot() ([]string, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...), p.message
}
