package fetch

import "fmt"

// TransportError is a network-level failure. Status is the HTTP status code
// when one was received, 0 for connection-level failures.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport: HTTP %d", e.Status)
	}
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying could plausibly succeed. Server errors
// and connection-level failures are transient; client errors are not.
func (e *TransportError) Transient() bool {
	if e.Status == 0 {
		return true
	}
	switch {
	case e.Status >= 500:
		return true
	case e.Status == 408 || e.Status == 429:
		return true
	}
	return false
}

// TLSError is a certificate validation failure. It is never retried and
// never downgraded to an insecure connection.
type TLSError struct {
	Err error
}

func (e *TLSError) Error() string {
	return fmt.Sprintf("tls: %v", e.Err)
}

func (e *TLSError) Unwrap() error {
	return e.Err
}

// IntegrityError is a size or checksum mismatch found during verification.
// The temporary artifact is discarded; nothing reaches the final path.
type IntegrityError struct {
	Field    string // "size" or "sha256"
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: %s mismatch: expected %s, got %s", e.Field, e.Expected, e.Actual)
}
