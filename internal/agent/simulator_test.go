package agent

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/csm-transport/internal/codec"
	"github.com/and161185/csm-transport/internal/csm"
	"github.com/and161185/csm-transport/internal/sending"
	"github.com/and161185/csm-transport/model"
	"github.com/and161185/csm-transport/storage/metricfile"
	"github.com/and161185/csm-transport/storage/objectqueue"
	"github.com/stretchr/testify/require"
)

func newSimulator(t *testing.T, seed uint64) (*Simulator, *sending.SendingQueue[model.Metric], *metricfile.Directory) {
	t.Helper()
	dir, err := metricfile.OpenDirectory(t.TempDir(), nil)
	require.NoError(t, err)
	queue := sending.NewSendingQueue(
		sending.Configuration[model.Metric]{Name: "csm", Codec: codec.Metric()},
		sending.ObjectQueueFactoryFunc[model.Metric](func() objectqueue.ObjectQueue[model.Metric] {
			return objectqueue.NewInMemory[model.Metric]()
		}),
		nil,
	)
	listener := csm.NewListener(dir, csm.NewProducer(dir, queue, nil), csm.ListenerOptions{})
	return NewSimulator(listener, 235, seed), queue, dir
}

func TestSimulator_EveryImpressionIsQueued(t *testing.T) {
	sim, queue, dir := newSimulator(t, 42)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		req := sim.SimulateCall()
		require.NotEmpty(t, req.Slots)
		require.LessOrEqual(t, len(req.Slots), 3)
		require.Equal(t, 235, req.ProfileID)
		for _, s := range req.Slots {
			seen[s.ImpressionID] = true
		}
	}

	polled := queue.Poll(1000)
	require.Len(t, polled, len(seen))
	for _, m := range polled {
		require.True(t, seen[m.ImpressionID()])
		require.True(t, m.IsReadyToSend())
		group, ok := m.RequestGroupID()
		require.True(t, ok)
		require.NotEmpty(t, group)
	}

	files, err := dir.All()
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestSimulator_Run(t *testing.T) {
	sim, queue, _ := newSimulator(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return queue.Size() > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
