package models

import (
	"sync"
	"time"
)

// FormSession is one open order form. It owns the form's submission guard and submit
// control, so repeated requests for the same form share them.
type FormSession struct {
	ID        string
	CreatedAt time.Time

	Guard  Guard
	Button SubmitButton

	mu       sync.Mutex
	open     bool
	resets   int
	lastSeen time.Time
}

// NewFormSession creates an open form session
func NewFormSession(id string, now time.Time) *FormSession {
	return &FormSession{
		ID:        id,
		CreatedAt: now,
		open:      true,
		lastSeen:  now,
	}
}

// Touch records activity on the session
func (s *FormSession) Touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// LastSeen returns the time of the last activity
func (s *FormSession) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Close hides the form
func (s *FormSession) Close() {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
}

// Open reports whether the form is shown and can still be submitted
func (s *FormSession) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Reset returns the form's fields to their initial state
func (s *FormSession) Reset() {
	s.mu.Lock()
	s.resets++
	s.mu.Unlock()
}

// Status returns a point-in-time view of the session
func (s *FormSession) Status() FormSessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FormSessionStatus{
		ID:            s.ID,
		State:         s.Guard.State().String(),
		Open:          s.open,
		SubmitEnabled: !s.Button.Disabled(),
		Resets:        s.resets,
	}
}

// FormSessionStatus is the JSON view of a form session
type FormSessionStatus struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	Open          bool   `json:"open"`
	SubmitEnabled bool   `json:"submitEnabled"`
	Resets        int    `json:"resets"`
}
