package autosave

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sameera/osem-ladders-sub001/internal/assessment"
	"github.com/sameera/osem-ladders-sub001/internal/models"
	"github.com/sameera/osem-ladders-sub001/internal/reportid"
	"github.com/sameera/osem-ladders-sub001/pkg/client"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func withFixedClock(t *testing.T) {
	t.Helper()
	prev := timeNow
	timeNow = func() time.Time { return fixedNow }
	t.Cleanup(func() { timeNow = prev })
}

// blockingSave records payloads and waits for release before returning
type blockingSave struct {
	mu       sync.Mutex
	payloads []models.Responses
	started  chan struct{}
	release  chan error
}

func newBlockingSave() *blockingSave {
	return &blockingSave{
		started: make(chan struct{}, 8),
		release: make(chan error),
	}
}

func (b *blockingSave) Save(ctx context.Context, responses models.Responses) error {
	b.mu.Lock()
	b.payloads = append(b.payloads, responses)
	b.mu.Unlock()
	b.started <- struct{}{}
	return <-b.release
}

func (b *blockingSave) Payloads() []models.Responses {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Responses(nil), b.payloads...)
}

func TestSaveSuccess(t *testing.T) {
	withFixedClock(t)
	state := assessment.NewState()
	state.Select("Tech", "Coding", 2)

	var got models.Responses
	o := New(state, func(ctx context.Context, r models.Responses) error {
		got = r
		return nil
	})

	var kinds []Kind
	o.Subscribe(func(s Status) { kinds = append(kinds, s.Kind) })

	status := o.Save(context.Background(), "manual")
	assert.Equal(t, KindSaved, status.Kind)
	assert.Equal(t, fixedNow, status.SavedAt)
	assert.Equal(t, models.Responses{"Tech|Coding": {SelectedLevel: 2}}, got)
	assert.Equal(t, []Kind{KindSaving, KindSaved}, kinds)
}

func TestSaveFailureThenRetry(t *testing.T) {
	withFixedClock(t)
	fail := true
	o := New(assessment.NewState(), func(ctx context.Context, r models.Responses) error {
		if fail {
			return errors.New("boom")
		}
		return nil
	})

	status := o.Save(context.Background(), "manual")
	require.Equal(t, KindError, status.Kind)
	assert.EqualError(t, status.Err, "boom")
	assert.True(t, status.CanRetry())

	fail = false
	status = o.Retry(context.Background())
	assert.Equal(t, KindSaved, status.Kind)
	assert.False(t, status.CanRetry())
}

func TestRetryIsNoopUnlessError(t *testing.T) {
	var calls int
	o := New(assessment.NewState(), func(ctx context.Context, r models.Responses) error {
		calls++
		return nil
	})

	assert.Equal(t, KindIdle, o.Retry(context.Background()).Kind)
	assert.Zero(t, calls)
}

func TestMarkDirty(t *testing.T) {
	o := New(assessment.NewState(), func(ctx context.Context, r models.Responses) error { return nil })

	o.MarkDirty()
	assert.Equal(t, KindIdle, o.Status().Kind)

	o.Save(context.Background(), "manual")
	require.Equal(t, KindSaved, o.Status().Kind)

	o.MarkDirty()
	assert.Equal(t, Status{Kind: KindIdle}, o.Status())
}

func TestTriggerWhileSavingIsCoalesced(t *testing.T) {
	bs := newBlockingSave()
	o := New(assessment.NewState(), bs.Save)

	done := make(chan Status)
	go func() { done <- o.Save(context.Background(), "interval") }()
	<-bs.started

	status := o.Save(context.Background(), "navigation")
	assert.Equal(t, KindSaving, status.Kind)

	bs.release <- nil
	assert.Equal(t, KindSaved, (<-done).Kind)
	assert.Len(t, bs.Payloads(), 1)
}

func TestPayloadIsSnapshotAtTrigger(t *testing.T) {
	state := assessment.NewState()
	state.Select("Tech", "Coding", 1)

	bs := newBlockingSave()
	o := New(state, bs.Save)

	done := make(chan Status)
	go func() { done <- o.Save(context.Background(), "manual") }()
	<-bs.started

	state.Select("Tech", "Testing", 3)
	bs.release <- nil
	<-done

	go func() { done <- o.Save(context.Background(), "manual") }()
	<-bs.started
	bs.release <- nil
	<-done

	payloads := bs.Payloads()
	require.Len(t, payloads, 2)
	assert.Equal(t, models.Responses{"Tech|Coding": {SelectedLevel: 1}}, payloads[0])
	assert.Equal(t, models.Responses{
		"Tech|Coding":  {SelectedLevel: 1},
		"Tech|Testing": {SelectedLevel: 3},
	}, payloads[1])
}

func TestResetDiscardsInFlightResult(t *testing.T) {
	bs := newBlockingSave()
	o := New(assessment.NewState(), bs.Save)

	var mu sync.Mutex
	var kinds []Kind
	o.Subscribe(func(s Status) {
		mu.Lock()
		kinds = append(kinds, s.Kind)
		mu.Unlock()
	})

	done := make(chan Status)
	go func() { done <- o.Save(context.Background(), "manual") }()
	<-bs.started

	o.Reset()

	// the pre-reset call is still running, so a new trigger must not overlap it
	assert.Equal(t, KindIdle, o.Save(context.Background(), "after-reset").Kind)
	assert.Len(t, bs.Payloads(), 1)

	bs.release <- errors.New("late failure")
	assert.Equal(t, KindIdle, (<-done).Kind)
	assert.Equal(t, KindIdle, o.Status().Kind)

	mu.Lock()
	assert.Equal(t, []Kind{KindSaving, KindIdle}, kinds)
	mu.Unlock()

	go func() { done <- o.Save(context.Background(), "manual") }()
	<-bs.started
	bs.release <- nil
	assert.Equal(t, KindSaved, (<-done).Kind)
	assert.Len(t, bs.Payloads(), 2)
}

func TestFlushWaitsForSaveInFlight(t *testing.T) {
	bs := newBlockingSave()
	state := assessment.NewState()
	o := New(state, bs.Save)

	first := make(chan Status)
	go func() { first <- o.Save(context.Background(), "interval") }()
	<-bs.started

	state.Select("Tech", "Coding", 2)

	flushed := make(chan Status)
	go func() { flushed <- o.Flush(context.Background(), "submit") }()

	select {
	case <-bs.started:
		t.Fatal("flush started a save while another was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	bs.release <- nil
	assert.Equal(t, KindSaved, (<-first).Kind)

	<-bs.started
	bs.release <- nil
	assert.Equal(t, KindSaved, (<-flushed).Kind)

	payloads := bs.Payloads()
	require.Len(t, payloads, 2)
	assert.Empty(t, payloads[0])
	assert.Equal(t, 2, payloads[1]["Tech|Coding"].SelectedLevel)
}

func TestFlushGivesUpWithContext(t *testing.T) {
	bs := newBlockingSave()
	o := New(assessment.NewState(), bs.Save)

	first := make(chan Status)
	go func() { first <- o.Save(context.Background(), "interval") }()
	<-bs.started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := o.Flush(ctx, "submit")
	assert.Equal(t, KindError, st.Kind)
	assert.ErrorIs(t, st.Err, context.Canceled)

	bs.release <- nil
	assert.Equal(t, KindSaved, (<-first).Kind)
	assert.Len(t, bs.Payloads(), 1)
}

func TestUnsubscribe(t *testing.T) {
	o := New(assessment.NewState(), func(ctx context.Context, r models.Responses) error { return nil })

	var n int
	unsubscribe := o.Subscribe(func(Status) { n++ })
	o.Save(context.Background(), "manual")
	unsubscribe()
	o.Save(context.Background(), "manual")

	assert.Equal(t, 2, n)
}

func TestScheduledSaves(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var calls atomic.Int32
	o := New(assessment.NewState(), func(ctx context.Context, r models.Responses) error {
		calls.Add(1)
		return nil
	}, WithInterval(10*time.Millisecond))

	o.Start(context.Background())
	o.Start(context.Background())
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	o.Reset()
	after := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, calls.Load())

	o.Start(context.Background())
	require.Eventually(t, func() bool { return calls.Load() > after }, time.Second, 5*time.Millisecond)
	o.Stop()
	o.Stop()
}

func TestScheduledSavesStopWithContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	o := New(assessment.NewState(), func(ctx context.Context, r models.Responses) error { return nil },
		WithInterval(time.Hour))
	o.Start(ctx)
	cancel()
	o.Stop()
}

// immediateTimer fires at once and records every requested wait
type immediateTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	ch    chan time.Time
}

func (f *immediateTimer) Start(d time.Duration) {
	f.mu.Lock()
	f.waits = append(f.waits, d)
	f.mu.Unlock()
	f.ch <- time.Now()
}

func (f *immediateTimer) Stop() {}

func (f *immediateTimer) C() <-chan time.Time { return f.ch }

func clientSave(c *client.Client) SaveFunc {
	ident := reportid.Identity{UserID: "u1", AssessmentID: "2024-h1", Type: models.ReportSelf}
	return func(ctx context.Context, responses models.Responses) error {
		_, err := c.SaveResponses(ctx, ident, "u1", responses)
		return err
	}
}

func respond(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status >= 400 {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   map[string]string{"code": "failed", "message": http.StatusText(status)},
		})
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"data":    models.Report{ID: "u1|2024-h1|self"},
	})
}

func TestSaveRetriesServerErrorsThroughClient(t *testing.T) {
	withFixedClock(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			respond(w, http.StatusServiceUnavailable)
			return
		}
		respond(w, http.StatusOK)
	}))
	defer srv.Close()

	timer := &immediateTimer{ch: make(chan time.Time, 1)}
	c := client.NewClient(srv.URL, "", client.WithRetryTimer(timer))

	state := assessment.NewState()
	state.Select("Tech", "Coding", 2)
	o := New(state, clientSave(c))

	status := o.Save(context.Background(), "manual")
	assert.Equal(t, KindSaved, status.Kind)
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, timer.waits)
}

func TestSaveClientErrorGoesStraightToError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respond(w, http.StatusBadRequest)
	}))
	defer srv.Close()

	timer := &immediateTimer{ch: make(chan time.Time, 1)}
	c := client.NewClient(srv.URL, "", client.WithRetryTimer(timer))
	o := New(assessment.NewState(), clientSave(c))

	status := o.Save(context.Background(), "manual")
	require.Equal(t, KindError, status.Kind)
	assert.Equal(t, client.ErrorKindClient, client.Classify(status.Err))
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, timer.waits)
}
