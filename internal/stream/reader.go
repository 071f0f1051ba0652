package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
)

const readBufferSize = 4096

// Read pumps r through an Assembler, pushing each snapshot to sink, and
// returns the final text. It stops reading after [DONE]. A clean EOF without
// [DONE] finalizes normally; a failed read returns the partial text with the
// error.
func Read(ctx context.Context, r io.Reader, sink Sink, opts ...Option) (string, error) {
	a := NewAssembler(opts...)
	emit := func(snapshots []string) {
		if sink == nil {
			return
		}
		for _, s := range snapshots {
			sink(s)
		}
	}

	buf := make([]byte, readBufferSize)
	for !a.Done() {
		if err := ctx.Err(); err != nil {
			return a.Text(), err
		}

		n, err := r.Read(buf)
		if n > 0 {
			emit(a.Feed(buf[:n]))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return a.Text(), ctxErr
			}
			return a.Text(), fmt.Errorf("read stream: %w", err)
		}
	}

	emit(a.Finish())
	return a.Text(), a.Err()
}
