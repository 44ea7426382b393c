package objectqueue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/and161185/csm-transport/internal/codec"
	"github.com/and161185/csm-transport/internal/errs"
	"github.com/and161185/csm-transport/model"
	"github.com/stretchr/testify/require"
)

func metric(id string) model.Metric {
	return model.NewMetricBuilder(id).SetReadyToSend(true).Build()
}

func ids(t *testing.T, entries []Entry[model.Metric]) []string {
	t.Helper()
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		require.NoError(t, e.Err)
		out = append(out, e.Value.ImpressionID())
	}
	return out
}

func TestObjectQueues(t *testing.T) {
	tests := []struct {
		name string
		open func(t *testing.T) ObjectQueue[model.Metric]
	}{
		{
			name: "file",
			open: func(t *testing.T) ObjectQueue[model.Metric] {
				q, err := OpenFile(filepath.Join(t.TempDir(), "q"), codec.Metric(), false, nil)
				require.NoError(t, err)
				return q
			},
		},
		{
			name: "in-memory",
			open: func(t *testing.T) ObjectQueue[model.Metric] {
				return NewInMemory[model.Metric]()
			},
		},
		{
			name: "in-memory measured",
			open: func(t *testing.T) ObjectQueue[model.Metric] {
				return NewInMemoryWithCodec(codec.Metric())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.open(t)
			defer q.Close()

			require.NoError(t, q.Add(metric("a")))
			require.NoError(t, q.Add(metric("b")))
			require.NoError(t, q.Add(metric("c")))
			require.Equal(t, 3, q.Size())

			entries, err := q.Peek(2)
			require.NoError(t, err)
			require.Equal(t, []string{"a", "b"}, ids(t, entries))

			require.NoError(t, q.Remove(2))
			entries, err = q.Peek(5)
			require.NoError(t, err)
			require.Equal(t, []string{"c"}, ids(t, entries))

			require.NoError(t, q.Remove(5))
			require.Equal(t, 0, q.Size())

			require.NoError(t, q.Close())
			require.ErrorIs(t, q.Add(metric("d")), errs.ErrQueueClosed)
		})
	}
}

func TestFileObjectQueue_EncodedSizeMatchesUsedBytes(t *testing.T) {
	q, err := OpenFile(filepath.Join(t.TempDir(), "q"), codec.Metric(), true, nil)
	require.NoError(t, err)
	defer q.Close()

	e, err := q.Encode(metric("sized"))
	require.NoError(t, err)

	before := q.UsedBytes()
	require.NoError(t, q.AddEncoded(e))
	require.Equal(t, before+e.Size, q.UsedBytes())
	require.Equal(t, q.UsedBytes(), q.FileLength())

	entries, err := q.Peek(1)
	require.NoError(t, err)
	require.Equal(t, []string{"sized"}, ids(t, entries))
}

func TestFileObjectQueue_RejectsForeignEncoding(t *testing.T) {
	q, err := OpenFile(filepath.Join(t.TempDir(), "q"), codec.Metric(), false, nil)
	require.NoError(t, err)
	defer q.Close()

	e, err := NewInMemoryWithCodec(codec.Metric()).Encode(metric("a"))
	require.NoError(t, err)
	require.Error(t, q.AddEncoded(e))
	require.Equal(t, 0, q.Size())
}

func TestInMemoryObjectQueue_ByteAccounting(t *testing.T) {
	tests := []struct {
		name     string
		queue    *InMemoryObjectQueue[model.Metric]
		measured bool
	}{
		{"with codec", NewInMemoryWithCodec(codec.Metric()), true},
		{"without codec", NewInMemory[model.Metric](), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.queue
			a, err := q.Encode(metric("a"))
			require.NoError(t, err)
			require.Equal(t, tt.measured, a.Size > 0)

			require.NoError(t, q.AddEncoded(a))
			require.NoError(t, q.Add(metric("bb")))
			total := q.UsedBytes()
			if tt.measured {
				data, err := codec.Metric().Encode(metric("bb"))
				require.NoError(t, err)
				require.Equal(t, a.Size+int64(len(data)), total)
			} else {
				require.Zero(t, total)
			}

			require.NoError(t, q.Remove(1))
			require.Equal(t, total-a.Size, q.UsedBytes())
			require.NoError(t, q.Remove(5))
			require.Zero(t, q.UsedBytes())
			require.Zero(t, q.FileLength())
			require.NoError(t, q.Compact())
		})
	}
}

func TestFileObjectQueue_UndecodableEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "q")

	raw, err := OpenFile(path, codec.JSONCodec[map[string]any]{}, false, nil)
	require.NoError(t, err)
	require.NoError(t, raw.Add(map[string]any{"impressionId": "ok"}))
	require.NoError(t, raw.Add(map[string]any{"zoneId": 1}))
	require.NoError(t, raw.Close())

	q, err := OpenFile(path, codec.Metric(), false, nil)
	require.NoError(t, err)
	defer q.Close()

	entries, err := q.Peek(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.NoError(t, entries[0].Err)
	require.Equal(t, "ok", entries[0].Value.ImpressionID())
	require.ErrorIs(t, entries[1].Err, errs.ErrCorruptRecord)

	_, err = os.Stat(q.Path())
	require.NoError(t, err)
}
