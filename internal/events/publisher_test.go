package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/leadsite/internal/model"
)

type recordingWriter struct {
	keys, values [][]byte
	err          error
}

func (w *recordingWriter) Write(_ context.Context, key, value []byte) error {
	if w.err != nil {
		return w.err
	}
	w.keys = append(w.keys, key)
	w.values = append(w.values, value)
	return nil
}

func TestPublishRoundTrip(t *testing.T) {
	w := &recordingWriter{}
	p := NewKafkaPublisher(w, 0, nil)

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	lead := model.Lead{Email: "Jane@X.com", Service: "Consulting", BusinessType: "dental", Status: model.StatusNotContacted}
	e := NewEvent(model.EventLeadSubmitted, lead, at)

	require.NoError(t, p.Publish(context.Background(), e))
	require.Len(t, w.values, 1)
	assert.Equal(t, "jane@x.com", string(w.keys[0]))

	got, err := Decode(w.values[0])
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, model.EventLeadSubmitted, got.Type)
	assert.Equal(t, "Not Contacted", got.Status)
	assert.True(t, at.Equal(got.OccurredAt))
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewKafkaPublisher(&recordingWriter{err: boom}, 0, nil)

	err := p.Publish(context.Background(), NewEvent(model.EventLeadOptedOut, model.Lead{Email: "a@x.com"}, time.Now()))
	assert.ErrorIs(t, err, boom)
}

// stalledWriter blocks until its context ends, like a writer retrying a dead broker.
type stalledWriter struct{}

func (stalledWriter) Write(ctx context.Context, _, _ []byte) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestPublishGivesUpAfterTimeout(t *testing.T) {
	p := NewKafkaPublisher(stalledWriter{}, 20*time.Millisecond, nil)

	start := time.Now()
	err := p.Publish(context.Background(), NewEvent(model.EventLeadSubmitted, model.Lead{Email: "a@x.com"}, start))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDecodeRejectsIncompleteEvents(t *testing.T) {
	_, err := Decode([]byte(`{"type":"lead.submitted"}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}
