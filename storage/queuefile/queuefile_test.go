package queuefile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/and161185/csm-transport/internal/errs"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func openTemp(t *testing.T, opts Options) (*QueueFile, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue")
	q, err := Open(path, opts)
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q, path
}

func peekData(t *testing.T, q *QueueFile, n int) []string {
	t.Helper()
	els, err := q.Peek(n)
	require.NoError(t, err)
	out := make([]string, 0, len(els))
	for _, e := range els {
		require.NoError(t, e.Err)
		out = append(out, string(e.Data))
	}
	return out
}

func TestQueueFile_EmptyFileIsHeaderOnly(t *testing.T) {
	q, path := openTemp(t, Options{})

	require.Equal(t, 0, q.Size())
	require.EqualValues(t, HeaderSize, q.FileLength())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.EqualValues(t, HeaderSize, info.Size())
}

func TestQueueFile_FIFO(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			q, _ := openTemp(t, Options{Compress: compress})

			for _, s := range []string{"a", "bb", "ccc"} {
				require.NoError(t, q.Add([]byte(s)))
			}
			require.Equal(t, 3, q.Size())
			require.Equal(t, []string{"a", "bb"}, peekData(t, q, 2))
			require.Equal(t, []string{"a", "bb", "ccc"}, peekData(t, q, 10))

			require.NoError(t, q.Remove(1))
			require.Equal(t, []string{"bb", "ccc"}, peekData(t, q, 10))

			require.NoError(t, q.Remove(5))
			require.Equal(t, 0, q.Size())
			require.EqualValues(t, HeaderSize, q.FileLength())
		})
	}
}

func TestQueueFile_Reopen(t *testing.T) {
	q, path := openTemp(t, Options{Compress: true})
	require.NoError(t, q.Add([]byte("one")))
	require.NoError(t, q.Add([]byte("two")))
	require.NoError(t, q.Add([]byte("three")))
	require.NoError(t, q.Remove(1))
	require.NoError(t, q.Close())

	q2, err := Open(path, Options{Compress: true})
	require.NoError(t, err)
	defer q2.Close()

	require.Equal(t, 2, q2.Size())
	require.Equal(t, []string{"two", "three"}, peekData(t, q2, 10))
}

func TestQueueFile_UncommittedAppendIsDiscarded(t *testing.T) {
	q, path := openTemp(t, Options{})
	require.NoError(t, q.Add([]byte("kept")))
	committed := q.FileLength()
	require.NoError(t, q.Close())

	// frame bytes written past the tail without a header update
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)
	_, err = f.Write(encodeFrame([]byte("lost"), false))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	q2, err := Open(path, Options{})
	require.NoError(t, err)
	defer q2.Close()

	require.Equal(t, []string{"kept"}, peekData(t, q2, 10))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, committed, info.Size())
}

func TestQueueFile_CorruptEntry(t *testing.T) {
	q, path := openTemp(t, Options{})
	require.NoError(t, q.Add([]byte("first")))
	require.NoError(t, q.Add([]byte("second")))
	require.NoError(t, q.Add([]byte("third")))
	require.NoError(t, q.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	idx := bytes.Index(raw, []byte("second"))
	require.Positive(t, idx)
	raw[idx] ^= 0xff
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	q2, err := Open(path, Options{})
	require.NoError(t, err)
	defer q2.Close()

	els, err := q2.Peek(3)
	require.NoError(t, err)
	require.Len(t, els, 3)
	require.NoError(t, els[0].Err)
	require.ErrorIs(t, els[1].Err, errs.ErrCorruptRecord)
	require.NoError(t, els[2].Err)
	require.Equal(t, "third", string(els[2].Data))
}

func TestQueueFile_BadHeaderResets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a queue file"), 0o644))

	core, logs := observer.New(zapcore.WarnLevel)
	q, err := Open(path, Options{Logger: zap.New(core).Sugar()})
	require.NoError(t, err)
	defer q.Close()

	require.Equal(t, 0, q.Size())
	require.EqualValues(t, HeaderSize, q.FileLength())
	require.Equal(t, 1, logs.FilterMessageSnippet("unreadable header").Len())

	require.NoError(t, q.Add([]byte("fresh")))
	require.Equal(t, []string{"fresh"}, peekData(t, q, 1))
}

func TestQueueFile_FrameOverrunningTail(t *testing.T) {
	q, path := openTemp(t, Options{})
	require.NoError(t, q.Add([]byte("ok")))
	require.NoError(t, q.Add([]byte("broken")))
	require.NoError(t, q.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	second := HeaderSize + frameHeaderSize + len("ok")
	binary.BigEndian.PutUint32(raw[second:], 1<<20)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	q2, err := Open(path, Options{})
	require.NoError(t, err)
	defer q2.Close()

	require.Equal(t, []string{"ok"}, peekData(t, q2, 10))
	require.EqualValues(t, second, q2.FileLength())
}

func TestQueueFile_Compaction(t *testing.T) {
	q, path := openTemp(t, Options{})
	payload := bytes.Repeat([]byte("x"), 1024)
	for i := 0; i < 100; i++ {
		require.NoError(t, q.Add(append([]byte(fmt.Sprintf("%03d", i)), payload...)))
	}
	before := q.FileLength()

	require.NoError(t, q.Remove(90))
	require.Less(t, q.FileLength(), before/2)
	require.Equal(t, 10, q.Size())

	els, err := q.Peek(1)
	require.NoError(t, err)
	require.Equal(t, "090", string(els[0].Data[:3]))

	_, err = os.Stat(path + compactSuffix)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, q.Close())
	q2, err := Open(path, Options{})
	require.NoError(t, err)
	defer q2.Close()
	require.Equal(t, 10, q2.Size())
}

func TestQueueFile_Compact(t *testing.T) {
	q, path := openTemp(t, Options{Compress: true})
	for _, d := range []string{"a", "b", "c"} {
		require.NoError(t, q.Add([]byte(d)))
	}
	require.NoError(t, q.Compact())
	require.Equal(t, q.UsedBytes(), q.FileLength())

	require.NoError(t, q.Remove(2))
	require.Greater(t, q.FileLength(), q.UsedBytes(), "small prefixes are not compacted on remove")

	require.NoError(t, q.Compact())
	require.Equal(t, q.UsedBytes(), q.FileLength())
	require.Equal(t, []string{"c"}, peekData(t, q, 5))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, q.FileLength(), info.Size())

	require.NoError(t, q.Add([]byte("d")))
	require.NoError(t, q.Close())
	q2, err := Open(path, Options{})
	require.NoError(t, err)
	defer q2.Close()
	require.Equal(t, []string{"c", "d"}, peekData(t, q2, 5))
}

func TestQueueFile_AddFrame(t *testing.T) {
	q, _ := openTemp(t, Options{Compress: true})
	frame := q.EncodeFrame([]byte("encoded once"))
	require.NoError(t, q.AddFrame(frame))
	require.Equal(t, HeaderSize+int64(len(frame)), q.FileLength())
	require.Equal(t, []string{"encoded once"}, peekData(t, q, 1))

	require.Error(t, q.AddFrame([]byte{1, 2}))
	require.Equal(t, 1, q.Size())
}

func TestQueueFile_UsedBytes(t *testing.T) {
	q, _ := openTemp(t, Options{})
	data := []byte("payload")

	require.EqualValues(t, HeaderSize, q.UsedBytes())
	require.NoError(t, q.Add(data))
	require.Equal(t, HeaderSize+int64(len(q.EncodeFrame(data))), q.UsedBytes())
}

func TestQueueFile_Closed(t *testing.T) {
	q, _ := openTemp(t, Options{})
	require.NoError(t, q.Close())

	require.ErrorIs(t, q.Add([]byte("x")), errs.ErrQueueClosed)
	_, err := q.Peek(1)
	require.ErrorIs(t, err, errs.ErrQueueClosed)
	require.ErrorIs(t, q.Remove(1), errs.ErrQueueClosed)
	require.ErrorIs(t, q.Compact(), errs.ErrQueueClosed)
	require.NoError(t, q.Close())
}
