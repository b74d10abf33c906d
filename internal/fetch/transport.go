package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cindergrace/depot/internal/ui"
	"github.com/cindergrace/depot/internal/version"
)

// Transport streams a remote resource into a writer. Implementations must
// honor ctx cancellation between chunks and report the total size when the
// server declares one (-1 otherwise).
type Transport interface {
	Fetch(ctx context.Context, url string, w io.Writer) (total int64, err error)
}

// HTTPTransport fetches over HTTP(S) with mandatory certificate validation.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport builds the HTTP transport. insecureSkipVerify disables
// TLS certificate validation; it is an explicit configuration override and
// is logged loudly here so it can never happen silently.
func NewHTTPTransport(timeout time.Duration, insecureSkipVerify bool) *HTTPTransport {
	inner := http.DefaultTransport.(*http.Transport).Clone()
	// Bound the connect and header wait, not the body copy; model files
	// legitimately take much longer than any fixed request timeout.
	inner.ResponseHeaderTimeout = timeout
	if insecureSkipVerify {
		ui.Warn("TLS certificate verification DISABLED by configuration; downloads are not authenticated")
		inner.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &HTTPTransport{
		client: &http.Client{Transport: inner},
	}
}

func (t *HTTPTransport) Fetch(ctx context.Context, url string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return -1, &TransportError{Err: err}
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return -1, ctx.Err()
		}
		if tlsErr := asTLSError(err); tlsErr != nil {
			return -1, tlsErr
		}
		return -1, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return -1, &TransportError{Status: resp.StatusCode, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	total := resp.ContentLength
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return total, werr
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			return total, &TransportError{Err: rerr}
		}
	}
}

// asTLSError unwraps certificate validation failures so they are never
// classified as retryable transport errors.
func asTLSError(err error) *TLSError {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return &TLSError{Err: err}
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return &TLSError{Err: err}
	}
	var hostname x509.HostnameError
	if errors.As(err, &hostname) {
		return &TLSError{Err: err}
	}
	var invalid x509.CertificateInvalidError
	if errors.As(err, &invalid) {
		return &TLSError{Err: err}
	}
	return nil
}
