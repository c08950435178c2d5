package parser

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
)

const (
	readBufferSize = 64 * 1024

	// MaxLineSize bounds a single line. Longer lines are dropped the same way
	// malformed lines are.
	MaxLineSize = 8 * 1024 * 1024

	// ctxCheckInterval is how many lines are read between cancellation checks
	ctxCheckInterval = 256
)

// ForEachLine streams r line by line and calls fn for every non-blank line
// with surrounding whitespace trimmed. The slice passed to fn is only valid
// until fn returns.
//
// It returns ctx.Err() if ctx is cancelled mid-scan and any read error other
// than io.EOF.
func ForEachLine(ctx context.Context, r io.Reader, fn func(line []byte)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	reader := bufio.NewReaderSize(r, readBufferSize)
	var (
		buf      []byte
		skipping bool
		lines    int
	)

	for {
		chunk, err := reader.ReadSlice('\n')
		if !skipping {
			if len(buf)+len(chunk) > MaxLineSize {
				skipping = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		if !skipping {
			if line := bytes.TrimSpace(buf); len(line) > 0 {
				fn(line)
			}
		}
		buf = buf[:0]
		skipping = false

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		lines++
		if lines%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
}
