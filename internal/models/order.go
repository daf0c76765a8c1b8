package models

import (
	"io"
	"strings"
)

// Field names of the outbound order payload.
const (
	FieldAttachment          = "paymentSlip"
	FieldFileContent         = "fileContent"
	FieldFileName            = "fileName"
	FieldMimeType            = "mimeType"
	FieldFinalPrice          = "finalPrice"
	FieldDiscountCode        = "discountCode"
	FieldAppliedDiscountCode = "appliedDiscountCode"
)

// Field is one name/value pair taken from the order form
type Field struct {
	Name  string
	Value string
}

// Payload is the flat, ordered field mapping sent to the form-processing endpoint.
// Add keeps repeated names like a browser form does; Set replaces the first occurrence.
type Payload struct {
	fields []Field
	index  map[string]int
}

// NewPayload creates an empty payload
func NewPayload() *Payload {
	return &Payload{index: make(map[string]int)}
}

// Add appends a field
func (p *Payload) Add(name, value string) {
	if _, ok := p.index[name]; !ok {
		p.index[name] = len(p.fields)
	}
	p.fields = append(p.fields, Field{Name: name, Value: value})
}

// Set replaces the value of the first field with this name, or appends it
func (p *Payload) Set(name, value string) {
	if i, ok := p.index[name]; ok {
		p.fields[i].Value = value
		return
	}
	p.Add(name, value)
}

// Get returns the first value for name and whether it is present
func (p *Payload) Get(name string) (string, bool) {
	i, ok := p.index[name]
	if !ok {
		return "", false
	}
	return p.fields[i].Value, true
}

// Fields returns a copy of the fields in insertion order
func (p *Payload) Fields() []Field {
	out := make([]Field, len(p.fields))
	copy(out, p.fields)
	return out
}

// Len returns the number of fields
func (p *Payload) Len() int {
	return len(p.fields)
}

// AttachmentFile is a binary file attached to the order form
type AttachmentFile interface {
	Name() string
	ContentType() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// Attachment is the text-safe encoding of an attachment. The zero value stands for
// no attachment and still fills all three payload fields, with empty strings.
type Attachment struct {
	Content  string
	FileName string
	MimeType string
}

// SetAttachment writes the three attachment fields
func (p *Payload) SetAttachment(a Attachment) {
	p.Set(FieldFileContent, a.Content)
	p.Set(FieldFileName, a.FileName)
	p.Set(FieldMimeType, a.MimeType)
}

// NormalizeDiscountCode returns the applied form of a raw discount input
func NormalizeDiscountCode(raw string) string {
	return strings.ToUpper(raw)
}
