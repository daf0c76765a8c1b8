package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Lixing-Zhang/ebook-landing/internal/discount"
	"github.com/Lixing-Zhang/ebook-landing/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(reader FileReader, d Dispatcher, opts ...Option) (*OrderService, *manualTimer) {
	timer := &manualTimer{}
	svc := NewOrderService(reader, d, discardLogger(), opts...)
	svc.afterFunc = timer.AfterFunc
	return svc, timer
}

func fieldValue(t *testing.T, p *models.Payload, name string) string {
	t.Helper()
	v, ok := p.Get(name)
	require.True(t, ok, "payload is missing %s", name)
	return v
}

func TestOrderService_Submit_NoAttachment(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	svc, timer := newTestService(NewDataURLReader(0), dispatcher)

	form := newFakeForm(
		models.Field{Name: "name", Value: "A"},
		models.Field{Name: "email", Value: "b@x.com"},
	)
	ui := &fakePresenter{}

	require.NoError(t, svc.Submit(context.Background(), form, ui))
	timer.Fire()
	require.NoError(t, svc.Drain(context.Background()))

	require.Equal(t, 1, dispatcher.Calls())
	payload := dispatcher.Payload(0)

	assert.Equal(t, "A", fieldValue(t, payload, "name"))
	assert.Equal(t, "b@x.com", fieldValue(t, payload, "email"))
	assert.Equal(t, "", fieldValue(t, payload, models.FieldFileContent))
	assert.Equal(t, "", fieldValue(t, payload, models.FieldFileName))
	assert.Equal(t, "", fieldValue(t, payload, models.FieldMimeType))
	assert.Equal(t, "135", fieldValue(t, payload, models.FieldFinalPrice))
	assert.Equal(t, "", fieldValue(t, payload, models.FieldDiscountCode))
	assert.Equal(t, "", fieldValue(t, payload, models.FieldAppliedDiscountCode))

	names := make([]string, 0, payload.Len())
	for _, f := range payload.Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"name", "email",
		models.FieldFileContent, models.FieldFileName, models.FieldMimeType,
		models.FieldFinalPrice, models.FieldDiscountCode, models.FieldAppliedDiscountCode,
	}, names)
}

func TestOrderService_Submit_DiscountCode(t *testing.T) {
	pricer := discount.NewPricer(discount.NewCatalog(map[string]int64{"WIZ20": 20}), 135, "฿")
	dispatcher := &fakeDispatcher{}
	svc, timer := newTestService(NewDataURLReader(0), dispatcher)

	form := newFakeForm(models.Field{Name: "name", Value: "A"})
	form.discount = "wiz20"
	form.price = pricer.Quote(context.Background(), form.discount).Display
	require.Equal(t, "฿115", form.price)

	require.NoError(t, svc.Submit(context.Background(), form, &fakePresenter{}))
	timer.Fire()
	require.NoError(t, svc.Drain(context.Background()))

	payload := dispatcher.Payload(0)
	assert.Equal(t, "115", fieldValue(t, payload, models.FieldFinalPrice))
	assert.Equal(t, "wiz20", fieldValue(t, payload, models.FieldDiscountCode))
	assert.Equal(t, "WIZ20", fieldValue(t, payload, models.FieldAppliedDiscountCode))
}

func TestOrderService_Submit_ExcludesRawAttachmentField(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	svc, timer := newTestService(NewDataURLReader(0), dispatcher)

	form := newFakeForm(
		models.Field{Name: "name", Value: "A"},
		models.Field{Name: models.FieldAttachment, Value: "C:\\fakepath\\slip.png"},
	)

	require.NoError(t, svc.Submit(context.Background(), form, &fakePresenter{}))
	timer.Fire()
	require.NoError(t, svc.Drain(context.Background()))

	_, ok := dispatcher.Payload(0).Get(models.FieldAttachment)
	assert.False(t, ok)
}

func TestOrderService_Submit_WithAttachment(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	tests := []struct {
		name     string
		file     *memFile
		wantMime string
	}{
		{
			name:     "declared content type",
			file:     &memFile{name: "slip.png", contentType: "image/png", data: png},
			wantMime: "image/png",
		},
		{
			name:     "sniffed content type",
			file:     &memFile{name: "slip.txt", data: []byte("transfer ref 42")},
			wantMime: "text/plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher := &fakeDispatcher{}
			svc, timer := newTestService(NewDataURLReader(1<<20), dispatcher)

			form := newFakeForm(models.Field{Name: "name", Value: "A"})
			form.file = tt.file

			require.NoError(t, svc.Submit(context.Background(), form, &fakePresenter{}))
			timer.Fire()
			require.NoError(t, svc.Drain(context.Background()))

			payload := dispatcher.Payload(0)
			content := fieldValue(t, payload, models.FieldFileContent)
			assert.NotEmpty(t, content)
			assert.False(t, strings.HasPrefix(content, "data:"))
			assert.NotContains(t, content, ";base64,")
			assert.Equal(t, base64.StdEncoding.EncodeToString(tt.file.data), content)
			assert.Equal(t, tt.file.name, fieldValue(t, payload, models.FieldFileName))
			assert.Equal(t, tt.wantMime, fieldValue(t, payload, models.FieldMimeType))
		})
	}
}

func TestOrderService_Submit_EmptyAttachmentCountsAsAbsent(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	svc, timer := newTestService(failingReader{}, dispatcher)

	form := newFakeForm()
	form.file = &memFile{name: "empty.png", contentType: "image/png"}

	require.NoError(t, svc.Submit(context.Background(), form, &fakePresenter{}))
	timer.Fire()
	require.NoError(t, svc.Drain(context.Background()))

	payload := dispatcher.Payload(0)
	assert.Equal(t, "", fieldValue(t, payload, models.FieldFileName))
	assert.Equal(t, "", fieldValue(t, payload, models.FieldFileContent))
}

func TestOrderService_Submit_IgnoredWhileInFlight(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	recorder := newFakeRecorder()
	svc, timer := newTestService(NewDataURLReader(0), dispatcher, WithRecorder(recorder))

	form := newFakeForm(models.Field{Name: "name", Value: "A"})
	first := &fakePresenter{}
	second := &fakePresenter{}

	require.NoError(t, svc.Submit(context.Background(), form, first))
	err := svc.Submit(context.Background(), form, second)
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	require.Eventually(t, func() bool { return dispatcher.Calls() == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, second.Events())
	assert.Equal(t, []string{"loading"}, first.Events())
	assert.Equal(t, 1, timer.Pending())
	assert.Equal(t, 1, recorder.count(recorder.submissions, OutcomeIgnored))

	timer.Fire()
	require.NoError(t, svc.Drain(context.Background()))

	// released by the finalize step, so the next attempt goes through
	require.NoError(t, svc.Submit(context.Background(), form, &fakePresenter{}))
	timer.Fire()
	require.NoError(t, svc.Drain(context.Background()))
	assert.Equal(t, 2, dispatcher.Calls())
}

func TestOrderService_Submit_DisabledControlIsNoOp(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	svc, timer := newTestService(NewDataURLReader(0), dispatcher)

	form := newFakeForm()
	form.button.Disable()
	ui := &fakePresenter{}

	assert.ErrorIs(t, svc.Submit(context.Background(), form, ui), ErrSubmissionInFlight)
	assert.Equal(t, models.StateIdle, form.guard.State())
	assert.Empty(t, ui.Events())
	assert.Equal(t, 0, timer.Pending())
	assert.Equal(t, 0, dispatcher.Calls())
}

func TestOrderService_Submit_ConcurrentAttempts(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	svc, timer := newTestService(NewDataURLReader(0), dispatcher)
	form := newFakeForm(models.Field{Name: "name", Value: "A"})

	var accepted, ignored int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.Submit(context.Background(), form, &fakePresenter{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, ErrSubmissionInFlight):
				ignored++
			}
		}()
	}
	wg.Wait()
	timer.Fire()
	require.NoError(t, svc.Drain(context.Background()))

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 19, ignored)
	assert.Equal(t, 1, dispatcher.Calls())
}

func TestOrderService_Submit_AttachmentReadFailure(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	recorder := newFakeRecorder()
	svc, timer := newTestService(failingReader{}, dispatcher, WithRecorder(recorder))

	form := newFakeForm(models.Field{Name: "name", Value: "A"})
	form.file = &memFile{name: "slip.png", contentType: "image/png", data: []byte("x")}
	ui := &fakePresenter{}

	err := svc.Submit(context.Background(), form, ui)
	assert.ErrorIs(t, err, ErrAttachmentUnreadable)

	assert.Equal(t, []string{"loading", "error"}, ui.Events())
	assert.Equal(t, models.StateIdle, form.guard.State())
	assert.False(t, form.button.Disabled())
	assert.Equal(t, 0, timer.Pending())
	assert.Equal(t, 0, dispatcher.Calls())
	assert.Equal(t, 1, recorder.count(recorder.submissions, OutcomeAborted))

	closed, resets := form.state()
	assert.False(t, closed, "form stays open for retry")
	assert.Equal(t, 0, resets)

	// a retry without the broken file is accepted
	form.file = nil
	require.NoError(t, svc.Submit(context.Background(), form, &fakePresenter{}))
	timer.Fire()
	require.NoError(t, svc.Drain(context.Background()))
	assert.Equal(t, 1, dispatcher.Calls())
}

func TestOrderService_Submit_OpenFailure(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	svc, _ := newTestService(NewDataURLReader(0), dispatcher)

	form := newFakeForm()
	form.file = &memFile{name: "slip.png", data: []byte("x"), openErr: errors.New("handle closed")}

	err := svc.Submit(context.Background(), form, &fakePresenter{})
	assert.ErrorIs(t, err, ErrAttachmentUnreadable)
	assert.Equal(t, 0, dispatcher.Calls())
}

func TestOrderService_Submit_FinalizesWithoutWaitingForNetwork(t *testing.T) {
	dispatcher := &fakeDispatcher{release: make(chan struct{})}
	svc := NewOrderService(NewDataURLReader(0), dispatcher, discardLogger(),
		WithOptimisticDelay(10*time.Millisecond))

	form := newFakeForm(models.Field{Name: "name", Value: "A"})
	ui := &fakePresenter{}

	require.NoError(t, svc.Submit(context.Background(), form, ui))

	require.Eventually(t, func() bool {
		events := ui.Events()
		return len(events) == 2 && events[1] == "success"
	}, time.Second, 5*time.Millisecond)

	closed, resets := form.state()
	assert.True(t, closed)
	assert.Equal(t, 1, resets)
	assert.False(t, form.button.Disabled())
	assert.Equal(t, models.StateIdle, form.guard.State())
	assert.Empty(t, dispatcher.Finished(), "network call is still pending")

	close(dispatcher.release)
	require.NoError(t, svc.Drain(context.Background()))
	assert.Len(t, dispatcher.Finished(), 1)
}

func TestOrderService_Submit_DispatchFailureIsOnlyLogged(t *testing.T) {
	dispatcher := &fakeDispatcher{err: errors.New("connection refused")}
	recorder := newFakeRecorder()
	svc, timer := newTestService(NewDataURLReader(0), dispatcher, WithRecorder(recorder))

	form := newFakeForm()
	ui := &fakePresenter{}

	require.NoError(t, svc.Submit(context.Background(), form, ui))
	require.Eventually(t, func() bool {
		return recorder.count(recorder.dispatches, ResultFailed) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"loading"}, ui.Events())

	timer.Fire()
	require.NoError(t, svc.Drain(context.Background()))

	assert.Equal(t, []string{"loading", "success"}, ui.Events())
	assert.Equal(t, 1, recorder.count(recorder.dispatches, ResultFailed))
	assert.Equal(t, 1, recorder.count(recorder.submissions, OutcomeAccepted))
}

func TestOrderService_Submit_DispatchOutlivesCaller(t *testing.T) {
	dispatcher := &fakeDispatcher{release: make(chan struct{})}
	svc, timer := newTestService(NewDataURLReader(0), dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, svc.Submit(ctx, newFakeForm(), &fakePresenter{}))
	cancel()

	close(dispatcher.release)
	timer.Fire()
	require.NoError(t, svc.Drain(context.Background()))

	assert.Equal(t, []error{nil}, dispatcher.Finished())
}

func TestOrderService_Submit_UsesOptimisticDelay(t *testing.T) {
	svc, timer := newTestService(NewDataURLReader(0), &fakeDispatcher{}, WithOptimisticDelay(75*time.Millisecond))

	require.NoError(t, svc.Submit(context.Background(), newFakeForm(), &fakePresenter{}))
	assert.Equal(t, 75*time.Millisecond, timer.delay)

	timer.Fire()
	require.NoError(t, svc.Drain(context.Background()))
}

func TestOrderService_Drain_Timeout(t *testing.T) {
	dispatcher := &fakeDispatcher{release: make(chan struct{})}
	svc, timer := newTestService(NewDataURLReader(0), dispatcher)

	require.NoError(t, svc.Submit(context.Background(), newFakeForm(), &fakePresenter{}))
	timer.Fire()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, svc.Drain(ctx), context.DeadlineExceeded)

	close(dispatcher.release)
	require.NoError(t, svc.Drain(context.Background()))
}
