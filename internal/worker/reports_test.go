package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jmehdipour/leadsite/internal/events"
	"github.com/jmehdipour/leadsite/internal/kafka"
	"github.com/jmehdipour/leadsite/internal/model"
	"github.com/jmehdipour/leadsite/internal/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSource struct {
	ch chan kafka.Message

	mu        sync.Mutex
	committed []int64
}

func newFakeSource(msgs ...kafka.Message) *fakeSource {
	s := &fakeSource{ch: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		s.ch <- m
	}
	return s
}

func (s *fakeSource) Fetch(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-s.ch:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (s *fakeSource) Commit(_ context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.committed = append(s.committed, m.Offset)
	}
	return nil
}

func (s *fakeSource) offsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.committed...)
}

type fakeEvents struct {
	mu       sync.Mutex
	batches  [][]model.LeadEvent
	fail     int // number of InsertBatch calls to fail first
	calls    int
	maxBatch int
}

func (f *fakeEvents) InsertBatch(_ context.Context, evs []model.LeadEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(evs) == 0 {
		return nil
	}
	f.calls++
	f.maxBatch = max(f.maxBatch, len(evs))
	if f.fail > 0 {
		f.fail--
		return errors.New("clickhouse unavailable")
	}
	f.batches = append(f.batches, append([]model.LeadEvent(nil), evs...))
	return nil
}

func (f *fakeEvents) Summary(context.Context, time.Time) (repository.EventSummary, error) {
	return repository.EventSummary{}, nil
}

func (f *fakeEvents) stored() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func eventMsg(t *testing.T, offset int64, email string) kafka.Message {
	t.Helper()
	e := events.NewEvent(model.EventLeadSubmitted, model.Lead{Email: email, Service: "Consulting"}, time.Now())
	b, err := json.Marshal(e)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: b}
}

func TestReportsFlushesBySize(t *testing.T) {
	src := newFakeSource(eventMsg(t, 1, "a@x.com"), eventMsg(t, 2, "b@x.com"), eventMsg(t, 3, "c@x.com"))
	repo := &fakeEvents{}

	w := NewReportsKafka(src, repo, nil)
	w.BatchSize = 3
	w.BatchWait = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return repo.stored() == 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Len(t, repo.batches, 1)
	assert.Equal(t, []int64{1, 2, 3}, src.offsets())
}

func TestReportsSkipsPoisonAndRetriesFailedInsert(t *testing.T) {
	src := newFakeSource(
		kafka.Message{Offset: 1, Value: []byte("{bad")},
		eventMsg(t, 2, "a@x.com"),
	)
	repo := &fakeEvents{fail: 1}

	w := NewReportsKafka(src, repo, nil)
	w.BatchSize = 100
	w.BatchWait = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return repo.stored() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2}, src.offsets())
}

func TestReportsPausesFetchWhileInsertFails(t *testing.T) {
	src := newFakeSource(eventMsg(t, 1, "a@x.com"), eventMsg(t, 2, "b@x.com"), eventMsg(t, 3, "c@x.com"))
	repo := &fakeEvents{fail: 3}

	w := NewReportsKafka(src, repo, nil)
	w.BatchSize = 1
	w.BatchWait = 10 * time.Millisecond
	w.MaxBackoff = 40 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return repo.stored() == 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	// three failed retries of the first event, then one insert per event
	assert.Equal(t, 6, repo.calls)
	assert.Equal(t, 1, repo.maxBatch)
	assert.Equal(t, []int64{1, 2, 3}, src.offsets())
}

func TestReportsFlushesOnShutdown(t *testing.T) {
	src := newFakeSource(eventMsg(t, 7, "a@x.com"))
	repo := &fakeEvents{}

	w := NewReportsKafka(src, repo, nil)
	w.BatchSize = 100
	w.BatchWait = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// let the fetcher hand the message over before shutting down
	require.Eventually(t, func() bool { return len(src.ch) == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 1, repo.stored())
	assert.Equal(t, []int64{7}, src.offsets())
}
