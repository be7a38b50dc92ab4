package drain_test

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/CZERTAINLY/piperepro/internal/drain"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRelay(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		given    string
		then     string
	}{
		{"empty", "", ""},
		{"lf", "a\nb\n", "a\r\nb\r\n"},
		{"crlf", "a\r\nb\r\n", "a\r\nb\r\n"},
		{"mixed", "a\nb\r\nc\n", "a\r\nb\r\nc\r\n"},
		{"no final terminator", "a\nb", "a\r\nb\r\n"},
		{"empty lines", "\n\n", "\r\n\r\n"},
		{"only cr inside", "a\rb\n", "a\rb\r\n"},
		{"invalid utf-8", "\xff\xfe\n", "\xff\xfe\r\n"},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			err := drain.Relay(t.Context(), "stdout", strings.NewReader(tt.given), &out)
			require.NoError(t, err)
			require.Equal(t, tt.then, out.String())
		})
	}
}

func TestRelayLongLine(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("x", 1<<20)
	var out bytes.Buffer
	err := drain.Relay(t.Context(), "stdout", strings.NewReader(long+"\nshort\n"), &out)
	require.NoError(t, err)
	require.Equal(t, long+drain.CRLF+"short"+drain.CRLF, out.String())
}

func TestRelayPipe(t *testing.T) {
	t.Parallel()
	const lines = 50_000 // well over a 64KiB pipe buffer

	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	writeErr := make(chan error, 1)
	go func() {
		defer func() { _ = w.Close() }()
		for i := range lines {
			if _, err := fmt.Fprintf(w, "line %d\n", i); err != nil {
				writeErr <- err
				return
			}
		}
		writeErr <- nil
	}()

	var out bytes.Buffer
	require.NoError(t, drain.Relay(t.Context(), "stdout", r, &out))
	require.NoError(t, <-writeErr)

	got := strings.Split(strings.TrimSuffix(out.String(), drain.CRLF), drain.CRLF)
	require.Len(t, got, lines)
	for i, line := range got {
		require.Equal(t, fmt.Sprintf("line %d", i), line)
	}
}

type failingWriter struct {
	ok  int
	err error
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.ok == 0 {
		return 0, w.err
	}
	w.ok--
	return len(p), nil
}

func TestRelayWriteFailure(t *testing.T) {
	t.Parallel()
	errBroken := errors.New("broken stream")

	src := strings.NewReader(strings.Repeat("line\n", 10_000))
	dst := &failingWriter{ok: 2, err: errBroken}

	err := drain.Relay(t.Context(), "stderr", src, dst)
	require.Error(t, err)
	require.ErrorIs(t, err, drain.ErrRelayWrite)
	require.ErrorIs(t, err, errBroken)

	var relayErr *drain.RelayError
	require.ErrorAs(t, err, &relayErr)
	require.Equal(t, "stderr", relayErr.Stream)
	require.Equal(t, 2, relayErr.Lines)

	require.Zero(t, src.Len(), "source must be drained even after a write failure")
}

func TestLines(t *testing.T) {
	t.Parallel()
	errBoom := errors.New("boom")

	t.Run("read error", func(t *testing.T) {
		r := io.MultiReader(strings.NewReader("a\nb"), iotest.ErrReader(errBoom))
		var lines []string
		var errs []error
		for line, err := range drain.Lines(r) {
			if err != nil {
				errs = append(errs, err)
				continue
			}
			lines = append(lines, string(line))
		}
		require.Equal(t, []string{"a", "b"}, lines)
		require.Len(t, errs, 1)
		require.ErrorIs(t, errs[0], errBoom)
	})

	t.Run("break", func(t *testing.T) {
		var lines []string
		for line := range drain.Lines(strings.NewReader("a\nb\nc\n")) {
			lines = append(lines, string(line))
			if len(lines) == 2 {
				break
			}
		}
		require.Equal(t, []string{"a", "b"}, lines)
	})
}

func TestRelayReadError(t *testing.T) {
	t.Parallel()
	r := io.MultiReader(strings.NewReader("a\n"), iotest.ErrReader(os.ErrClosed))
	var out bytes.Buffer
	require.NoError(t, drain.Relay(t.Context(), "stdout", r, &out))
	require.Equal(t, "a\r\n", out.String())
}
