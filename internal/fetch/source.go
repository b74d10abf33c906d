package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
)

// payloadSource feeds one job's content. Downloads stream from a URL via
// the transport; restores copy from the backup root.
type payloadSource interface {
	// stream writes the full payload into w, honoring ctx between chunks.
	// total is the source's declared size, -1 when unknown.
	stream(ctx context.Context, w io.Writer) (total int64, err error)
}

type urlSource struct {
	transport Transport
	url       string
}

func (s *urlSource) stream(ctx context.Context, w io.Writer) (int64, error) {
	return s.transport.Fetch(ctx, s.url, w)
}

// fileSource copies a local backup file in chunks so cancellation takes
// effect mid-copy. Local read failures are not retried.
type fileSource struct {
	path string
}

func (s *fileSource) stream(ctx context.Context, w io.Writer) (int64, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return -1, fmt.Errorf("open backup copy: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return -1, fmt.Errorf("stat backup copy: %w", err)
	}
	total := info.Size()

	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, rerr := f.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return total, werr
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, fmt.Errorf("read backup copy: %w", rerr)
		}
	}
}
