package workers

import (
	"chat-relay/observability"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/jonboulle/clockwork"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestProcessStatsWorker_Samples_On_Start_And_Tick(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	metrics := observability.NewNopMetrics()
	recorder := observability.NewStatsRecorder()

	worker := NewProcessStatsWorker(log, clock, time.Second, metrics, recorder, func() int { return 3 })
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	// Given the first sample taken at start
	req.NoError(clock.BlockUntilContext(ctx, 1))
	first := recorder.Latest()
	req.Equal(3, first.Connections)
	req.Positive(first.Goroutines)
	req.Positive(first.RSSBytes)
	req.Equal(float64(first.RSSBytes), testutil.ToFloat64(metrics.ProcessRSS))

	// When the interval elapses
	clock.Advance(time.Second)

	// Then a new sample is recorded
	req.Eventually(func() bool {
		return recorder.Latest().SampledAt.After(first.SampledAt)
	}, time.Second, 10*time.Millisecond)

	cancel()
	req.NoError(<-done)
}

func TestValueLogGCWorker(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	clock := clockwork.NewFakeClock()
	worker := NewValueLogGCWorker(log, db, clock, time.Minute)

	// Nothing to rewrite in a fresh database
	req.NoError(worker.collect(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	req.NoError(clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Minute)
	cancel()
	req.NoError(<-done)
}

type fakeServer struct {
	started  chan struct{}
	stop     chan struct{}
	shutdown atomic.Bool
	startErr error
}

func newFakeServer(startErr error) *fakeServer {
	return &fakeServer{started: make(chan struct{}), stop: make(chan struct{}), startErr: startErr}
}

func (s *fakeServer) Start() error {
	close(s.started)
	if s.startErr != nil {
		return s.startErr
	}
	<-s.stop
	return http.ErrServerClosed
}

func (s *fakeServer) Shutdown(context.Context) error {
	s.shutdown.Store(true)
	close(s.stop)
	return nil
}

func TestHTTPServerWorker_Shuts_Down_On_Cancel(t *testing.T) {
	req := require.New(t)
	server := newFakeServer(nil)
	worker := NewHTTPServerWorker(logs.GetLoggerFromLevel(slog.LevelDebug), server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	<-server.started
	cancel()
	req.NoError(<-done)
	req.True(server.shutdown.Load())
}

func TestHTTPServerWorker_Returns_Start_Error(t *testing.T) {
	req := require.New(t)
	boom := errors.New("address already in use")
	worker := NewHTTPServerWorker(logs.GetLoggerFromLevel(slog.LevelDebug), newFakeServer(boom), time.Second)

	err := worker.Run(context.Background())
	req.ErrorIs(err, boom)
}
