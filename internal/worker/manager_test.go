package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeWorker records lifecycle calls for ordering assertions
type fakeWorker struct {
	name string
	mu   sync.Mutex
	log  *[]string
}

func (f *fakeWorker) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.log = append(*f.log, "start:"+f.name)
	return nil
}

func (f *fakeWorker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.log = append(*f.log, "stop:"+f.name)
}

func (f *fakeWorker) Name() string { return f.name }

func TestManagerLifecycle(t *testing.T) {
	var log []string
	m := NewManager(zap.NewNop())
	m.Register(&fakeWorker{name: "first", log: &log})
	m.Register(&fakeWorker{name: "second", log: &log})

	require.Equal(t, 2, m.Count())
	require.NoError(t, m.StartAll(context.Background()))
	m.StopAll()

	// Start in registration order, stop in reverse.
	assert.Equal(t, []string{"start:first", "start:second", "stop:second", "stop:first"}, log)
}

func TestDeadlineWorker_DoubleStart(t *testing.T) {
	w := NewDeadlineWorker(nil, time.Hour, zap.NewNop())
	// Swap the loop out: with a nil resolver the immediate pass would
	// panic, so only exercise the running-state bookkeeping.
	w.isRunning = true

	err := w.Start(context.Background())
	assert.Error(t, err)
}

func TestDeadlineWorker_StopWithoutStart(t *testing.T) {
	w := NewDeadlineWorker(nil, time.Hour, zap.NewNop())
	assert.NotPanics(t, w.Stop)
}

func TestNewDeadlineWorker_DefaultInterval(t *testing.T) {
	w := NewDeadlineWorker(nil, 0, zap.NewNop())
	assert.Equal(t, 5*time.Minute, w.interval)
	assert.Equal(t, "DeadlineWorker", w.Name())
}
