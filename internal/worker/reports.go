package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jmehdipour/leadsite/internal/events"
	"github.com/jmehdipour/leadsite/internal/kafka"
	"github.com/jmehdipour/leadsite/internal/metrics"
	"github.com/jmehdipour/leadsite/internal/model"
	"github.com/jmehdipour/leadsite/internal/repository"
)

// Source is satisfied by *kafka.Consumer.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// ReportsKafka:
// - fetches lead events from Kafka,
// - batches them into ClickHouse by size or time,
// - commits offsets only after the batch is stored.
type ReportsKafka struct {
	Consumer Source
	Events   repository.EventsRepository
	Log      *zap.Logger

	BatchSize  int           // max buffered events per flush
	BatchWait  time.Duration // max time to wait before flush
	MaxBackoff time.Duration // cap on the retry delay after a failed insert
}

func NewReportsKafka(consumer Source, repo repository.EventsRepository, log *zap.Logger) *ReportsKafka {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReportsKafka{
		Consumer:  consumer,
		Events:    repo,
		Log:       log.Named("reports"),
		BatchSize:  500,
		BatchWait:  2 * time.Second,
		MaxBackoff: 30 * time.Second,
	}
}

type pending struct {
	event model.LeadEvent
	msg   kafka.Message
}

// Run starts the worker and blocks until ctx is cancelled. Buffered events are
// flushed once more on shutdown. While inserts fail, fetching pauses and the
// flush is retried with a doubling delay.
func (w *ReportsKafka) Run(ctx context.Context) error {
	if w.BatchSize <= 0 {
		w.BatchSize = 500
	}
	if w.BatchWait <= 0 {
		w.BatchWait = 2 * time.Second
	}
	if w.MaxBackoff < w.BatchWait {
		w.MaxBackoff = w.BatchWait
	}

	msgCh := make(chan kafka.Message, w.BatchSize)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.fetch(ctx, msgCh)
	}()
	defer wg.Wait()

	var in <-chan kafka.Message = msgCh

	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	var (
		buf    []pending
		poison []kafka.Message // committed with the next stored batch

		fetchDone bool
		backoff   time.Duration
		retry     <-chan time.Time
	)

	flush := func(ctx context.Context) bool {
		if len(buf) == 0 && len(poison) == 0 {
			return true
		}
		batch := make([]model.LeadEvent, len(buf))
		msgs := append(make([]kafka.Message, 0, len(buf)+len(poison)), poison...)
		for i, p := range buf {
			batch[i] = p.event
			msgs = append(msgs, p.msg)
		}

		if err := w.Events.InsertBatch(ctx, batch); err != nil {
			// kept for the next flush; offsets stay uncommitted
			metrics.ReportEventsTotal.WithLabelValues("failed").Add(float64(len(batch)))
			w.Log.Error("insert lead events failed", zap.Int("events", len(batch)), zap.Error(err))
			return false
		}
		metrics.ReportEventsTotal.WithLabelValues("inserted").Add(float64(len(batch)))

		if err := w.Consumer.Commit(ctx, msgs...); err != nil {
			w.Log.Warn("kafka commit failed", zap.Error(err))
		}
		w.Log.Info("flushed lead events", zap.Int("events", len(batch)), zap.Int("skipped", len(poison)))
		buf = buf[:0]
		poison = poison[:0]
		return true
	}

	// flushOrPause stops reading new messages until a retry succeeds.
	flushOrPause := func() {
		if flush(ctx) {
			backoff, retry = 0, nil
			if !fetchDone {
				in = msgCh
			}
			return
		}
		backoff = min(max(2*backoff, w.BatchWait), w.MaxBackoff)
		in = nil
		retry = time.After(backoff)
		w.Log.Warn("pausing fetch until insert recovers", zap.Duration("retry_in", backoff))
	}

	for {
		select {
		case <-ctx.Done():
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(shutdown)
			cancel()
			return nil

		case m, ok := <-in:
			if !ok {
				in, fetchDone = nil, true
				continue
			}
			e, err := events.Decode(m.Value)
			if err != nil {
				metrics.ReportEventsTotal.WithLabelValues("invalid").Inc()
				w.Log.Warn("bad lead event", zap.Int64("offset", m.Offset), zap.Error(err))
				poison = append(poison, m)
				continue
			}
			buf = append(buf, pending{event: e, msg: m})
			if len(buf) >= w.BatchSize {
				flushOrPause()
			}

		case <-tick.C:
			if retry == nil {
				flushOrPause()
			}

		case <-retry:
			flushOrPause()
		}
	}
}

// fetch feeds out until ctx is cancelled, then closes it.
func (w *ReportsKafka) fetch(ctx context.Context, out chan<- kafka.Message) {
	defer close(out)
	for {
		m, err := w.Consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.Log.Warn("kafka fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}
		select {
		case out <- m:
		case <-ctx.Done():
			return
		}
	}
}
