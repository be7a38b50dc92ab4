// Package drain relays the output of a child process line by line.
//
// A pipe has a bounded kernel buffer. A child writing into a full pipe
// blocks until the other end is read, so a pipe nobody reads stops the child
// forever. Relay keeps reading its pipe until the child closes it, which
// keeps free space in the buffer and lets the child run to completion.
//
// Each Relay owns exactly one source and one destination. Lines keep the
// order of the source; nothing is guaranteed between two Relays writing to
// different destinations.
package drain

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
)

// CRLF terminates every relayed line, whatever the source used.
const CRLF = "\r\n"

var ErrRelayWrite = errors.New("relay write failed")

// RelayError reports a failed write to the parent stream.
type RelayError struct {
	Stream string
	Lines  int // lines relayed before the failure
	Err    error
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("%v: %s after %d lines: %v", ErrRelayWrite, e.Stream, e.Lines, e.Err)
}

func (e *RelayError) Unwrap() error { return e.Err }

func (e *RelayError) Is(target error) bool { return target == ErrRelayWrite }

// Lines returns the lines of r without their terminators. A final line
// without a terminator is returned too. The sequence ends on io.EOF; any
// other read error is yielded once as the last element.
func Lines(r io.Reader) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		br := bufio.NewReader(r)
		for {
			line, err := br.ReadBytes('\n')
			if len(line) > 0 {
				if !yield(trim(line), nil) {
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield(nil, err)
				}
				return
			}
		}
	}
}

func trim(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	return bytes.TrimSuffix(line, []byte{'\r'})
}

// Relay copies every line of src to dst followed by CRLF until src is
// exhausted. name identifies the stream in logs and errors.
//
// When dst fails, Relay discards the rest of src so the writer is never
// blocked, and returns *RelayError once src is exhausted.
func Relay(ctx context.Context, name string, src io.Reader, dst io.Writer) error {
	var (
		n   int
		buf []byte
	)
	for line, err := range Lines(src) {
		if err != nil {
			slog.DebugContext(ctx, "reading stream", "stream", name, "error", err)
			break
		}
		buf = append(append(buf[:0], line...), CRLF...)
		if _, err := dst.Write(buf); err != nil {
			slog.ErrorContext(ctx, "relay write failed: discarding the rest of the stream",
				"stream", name,
				"lines", n,
				"error", err,
			)
			_, _ = io.Copy(io.Discard, src)
			return &RelayError{Stream: name, Lines: n, Err: err}
		}
		n++
	}
	slog.DebugContext(ctx, "stream drained", "stream", name, "lines", n)
	return nil
}
