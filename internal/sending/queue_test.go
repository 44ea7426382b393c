package sending

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/and161185/csm-transport/internal/codec"
	"github.com/and161185/csm-transport/model"
	"github.com/and161185/csm-transport/storage/objectqueue"
	"github.com/and161185/csm-transport/storage/queuefile"
	"github.com/stretchr/testify/require"
)

func testConfiguration(limits Limits) Configuration[model.Metric] {
	return Configuration[model.Metric]{
		Name:     "test",
		Filename: "queue",
		Limits:   limits,
		Codec:    codec.Metric(),
	}
}

func newFileQueue(t *testing.T, dir string, limits Limits) *SendingQueue[model.Metric] {
	t.Helper()
	conf := testConfiguration(limits)
	q := NewSendingQueue(conf, NewFileQueueFactory(dir, conf, nil), nil)
	t.Cleanup(func() { q.Close() })
	return q
}

func metric(id string) model.Metric {
	return model.NewMetricBuilder(id).SetReadyToSend(true).Build()
}

func impressionIDs(metrics []model.Metric) []string {
	out := make([]string, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, m.ImpressionID())
	}
	return out
}

func TestSendingQueue_OfferPoll(t *testing.T) {
	q := newFileQueue(t, t.TempDir(), Limits{})

	for _, id := range []string{"a", "b", "c"} {
		require.True(t, q.Offer(metric(id)))
	}
	require.Equal(t, 3, q.Size())

	require.Equal(t, []string{"a", "b"}, impressionIDs(q.Poll(2)))
	require.Equal(t, []string{"c"}, impressionIDs(q.Poll(10)))
	require.Empty(t, q.Poll(10))
}

func TestSendingQueue_EmptyQueueIsSmall(t *testing.T) {
	q := newFileQueue(t, t.TempDir(), Limits{})
	require.EqualValues(t, queuefile.HeaderSize, q.TotalSize())

	require.True(t, q.Offer(metric("a")))
	require.Greater(t, q.TotalSize(), int64(queuefile.HeaderSize))

	q.Poll(1)
	require.Less(t, q.TotalSize(), int64(20))
}

func TestSendingQueue_PollZeroDoesNotTouchStorage(t *testing.T) {
	created := 0
	factory := ObjectQueueFactoryFunc[model.Metric](func() objectqueue.ObjectQueue[model.Metric] {
		created++
		return objectqueue.NewInMemory[model.Metric]()
	})
	q := NewSendingQueue(testConfiguration(Limits{}), factory, nil)

	require.Empty(t, q.Poll(0))
	require.Empty(t, q.Poll(-1))
	require.Equal(t, 0, created)

	q.Offer(metric("a"))
	q.Poll(1)
	q.Offer(metric("b"))
	require.Equal(t, 1, created, "the object queue is created once, on first use")
}

func TestSendingQueue_NewInstanceSeesPersistedRecords(t *testing.T) {
	dir := t.TempDir()
	q := newFileQueue(t, dir, Limits{})
	require.True(t, q.Offer(metric("a")))
	require.True(t, q.Offer(metric("b")))
	require.NoError(t, q.Close())

	q2 := newFileQueue(t, dir, Limits{})
	require.Equal(t, []string{"a", "b"}, impressionIDs(q2.Poll(10)))
}

func TestSendingQueue_ConcurrentPollsNeverDuplicate(t *testing.T) {
	q := newFileQueue(t, t.TempDir(), Limits{})
	for i := 0; i < 2000; i++ {
		require.True(t, q.Offer(metric(fmt.Sprintf("id-%d", i))))
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			polled := q.Poll(100)
			mu.Lock()
			defer mu.Unlock()
			for _, m := range polled {
				seen[m.ImpressionID()]++
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, 1000)
	for id, n := range seen {
		require.Equal(t, 1, n, id)
	}
	require.Equal(t, 1000, q.Size())
}

func TestSendingQueue_CorruptRecordsAreDropped(t *testing.T) {
	dir := t.TempDir()
	raw, err := objectqueue.OpenFile(filepath.Join(dir, "queue"), codec.JSONCodec[map[string]any]{}, false, nil)
	require.NoError(t, err)
	require.NoError(t, raw.Add(map[string]any{"impressionId": "a"}))
	require.NoError(t, raw.Add(map[string]any{"impressionId": ""}))
	require.NoError(t, raw.Add(map[string]any{"impressionId": "b"}))
	require.NoError(t, raw.Close())

	q := newFileQueue(t, dir, Limits{})
	require.Equal(t, []string{"a", "b"}, impressionIDs(q.Poll(2)))
	require.Equal(t, 0, q.Size())
}

func TestSendingQueue_EvictsOldest(t *testing.T) {
	t.Run("elements", func(t *testing.T) {
		q := newFileQueue(t, t.TempDir(), Limits{MaxElements: 3})
		for _, id := range []string{"a", "b", "c", "d", "e"} {
			require.True(t, q.Offer(metric(id)))
		}
		require.Equal(t, []string{"c", "d", "e"}, impressionIDs(q.Poll(10)))
	})

	t.Run("bytes", func(t *testing.T) {
		conf := testConfiguration(Limits{})
		probe, err := objectqueue.OpenFile(filepath.Join(t.TempDir(), "probe"), conf.Codec, false, nil)
		require.NoError(t, err)
		defer probe.Close()
		entry, err := probe.Encode(metric("a"))
		require.NoError(t, err)

		q := newFileQueue(t, t.TempDir(), Limits{MaxBytes: queuefile.HeaderSize + 2*entry.Size})
		for _, id := range []string{"a", "b", "c", "d"} {
			require.True(t, q.Offer(metric(id)))
			require.LessOrEqual(t, q.Size(), 2)
		}
		require.Equal(t, []string{"c", "d"}, impressionIDs(q.Poll(10)))
	})
}

func TestSendingQueue_FileStaysWithinMaxBytes(t *testing.T) {
	const limit = 2 * 1024
	dir := t.TempDir()
	q := newFileQueue(t, dir, Limits{MaxBytes: limit})

	var largest int64
	for i := 0; i < 600; i++ {
		require.True(t, q.Offer(metric(fmt.Sprintf("id-%d", i))))
		if i%3 == 0 {
			require.Len(t, q.Poll(1), 1)
		}
		if size := q.TotalSize(); size > largest {
			largest = size
		}
	}
	require.LessOrEqual(t, largest, int64(limit))

	info, err := os.Stat(filepath.Join(dir, "queue"))
	require.NoError(t, err)
	require.LessOrEqual(t, info.Size(), int64(limit))

	size := q.Size()
	require.NoError(t, q.Close())
	polled := newFileQueue(t, dir, Limits{MaxBytes: limit}).Poll(size)
	require.Len(t, polled, size)
	require.Equal(t, "id-599", polled[size-1].ImpressionID())
}

func TestSendingQueue_RecordLargerThanLimit(t *testing.T) {
	q := newFileQueue(t, t.TempDir(), Limits{MaxBytes: 32})
	require.False(t, q.Offer(metric("this metric does not fit in 32 bytes")))
	require.Equal(t, 0, q.Size())
}

type failingQueue struct {
	objectqueue.ObjectQueue[model.Metric]
	addErr, peekErr, removeErr error
}

func (f *failingQueue) AddEncoded(e objectqueue.Encoded[model.Metric]) error {
	if f.addErr != nil {
		return f.addErr
	}
	return f.ObjectQueue.AddEncoded(e)
}

func (f *failingQueue) Peek(n int) ([]objectqueue.Entry[model.Metric], error) {
	if f.peekErr != nil {
		return nil, f.peekErr
	}
	return f.ObjectQueue.Peek(n)
}

func (f *failingQueue) Remove(n int) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	return f.ObjectQueue.Remove(n)
}

func TestSendingQueue_StorageFailures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		fq        *failingQueue
		wantOffer bool
		wantPoll  int
	}{
		{"add fails", &failingQueue{addErr: boom}, false, 1},
		{"peek fails", &failingQueue{peekErr: boom}, true, 0},
		{"remove fails", &failingQueue{removeErr: boom}, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := objectqueue.NewInMemory[model.Metric]()
			require.NoError(t, mem.Add(metric("stored")))
			tt.fq.ObjectQueue = mem

			factory := ObjectQueueFactoryFunc[model.Metric](func() objectqueue.ObjectQueue[model.Metric] { return tt.fq })
			q := NewSendingQueue(testConfiguration(Limits{}), factory, nil)

			require.Equal(t, tt.wantOffer, q.Offer(metric("new")))
			require.Len(t, q.Poll(1), tt.wantPoll)
		})
	}
}

func TestFileQueueFactory_FallsBackToMemory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(dir, []byte("file"), 0o644))

	conf := testConfiguration(Limits{})
	q := NewSendingQueue(conf, NewFileQueueFactory(dir, conf, nil), nil)

	require.True(t, q.Offer(metric("a")))
	require.EqualValues(t, 0, q.TotalSize())
	require.Equal(t, []string{"a"}, impressionIDs(q.Poll(1)))
}

func TestFileQueueFactory_FallbackKeepsByteLimit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(dir, []byte("file"), 0o644))

	conf := Configuration[model.RemoteLogRecords]{
		Name:     RemoteLogQueueName,
		Filename: "logs",
		Limits:   Limits{MaxBytes: 1024},
		Codec:    codec.RemoteLogs(),
	}
	q := NewSendingQueue(conf, NewFileQueueFactory(dir, conf, nil), nil)

	record := model.RemoteLogRecords{
		Context: model.RemoteLogContext{Version: "1", SessionID: "s"},
		Logs:    []model.RemoteLogRecord{{Level: model.LogLevelWarn, Messages: []string{"slow bid"}}},
	}
	data, err := codec.RemoteLogs().Encode(record)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		require.True(t, q.Offer(record))
	}
	require.Equal(t, 1024/len(data), q.Size())
	require.EqualValues(t, 0, q.TotalSize())
}

func TestQueues_DoNotShareStorage(t *testing.T) {
	dir := t.TempDir()
	metrics := newFileQueue(t, dir, Limits{})

	logConf := Configuration[model.RemoteLogRecords]{
		Name:     RemoteLogQueueName,
		Filename: "logs",
		Codec:    codec.RemoteLogs(),
	}
	logs := NewSendingQueue(logConf, NewFileQueueFactory(dir, logConf, nil), nil)
	defer logs.Close()

	require.True(t, metrics.Offer(metric("a")))
	require.True(t, logs.Offer(model.RemoteLogRecords{Context: model.RemoteLogContext{Version: "1"}}))

	require.Equal(t, 1, metrics.Size())
	require.Equal(t, 1, logs.Size())
	require.Len(t, logs.Poll(5), 1)
	require.Equal(t, 1, metrics.Size())
}
