package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"order-sync/contract"
)

type countingWorker struct {
	runs     atomic.Int32
	panics   int32
	finished chan struct{}
}

func (w *countingWorker) Run(_ context.Context) error {
	n := w.runs.Add(1)
	if n <= w.panics {
		panic("boom")
	}
	close(w.finished)
	return nil
}

type blockingWorker struct{}

func (w *blockingWorker) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func TestSupervisor_RestartsPanickedWorker(t *testing.T) {
	// GIVEN a worker that panics on its first run
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	worker := &countingWorker{panics: 1, finished: make(chan struct{})}
	supervisor := NewSupervisor(log, 10*time.Millisecond).Add(worker)

	// WHEN running it under supervision
	done := make(chan struct{})
	go func() {
		supervisor.Run(context.Background())
		close(done)
	}()

	// THEN the worker is restarted and completes on the second run
	select {
	case <-worker.finished:
	case <-time.After(2 * time.Second):
		t.Fatal("worker was never restarted")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not return after workers finished")
	}
	req.Equal(int32(2), worker.runs.Load())
}

func TestSupervisor_StopCancelsWorkers(t *testing.T) {
	// GIVEN a worker that only returns once its context is cancelled
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	supervisor := NewSupervisor(log, 10*time.Millisecond)
	supervisor.Add(&blockingWorker{})

	done := make(chan struct{})
	go func() {
		supervisor.Run(context.Background())
		close(done)
	}()

	// WHEN stopping the supervisor
	time.Sleep(50 * time.Millisecond)
	supervisor.Stop()

	// THEN Run returns once every worker has finished
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestSupervisor_ParentContextCancelsWorkers(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	supervisor := NewSupervisor(log, 10*time.Millisecond)
	supervisor.Add(&blockingWorker{}, &blockingWorker{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		supervisor.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor ignored parent cancellation")
	}
}

var _ contract.Worker = (*countingWorker)(nil)
var _ contract.Worker = (*blockingWorker)(nil)
