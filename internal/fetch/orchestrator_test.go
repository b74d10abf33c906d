package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cindergrace/depot/internal/catalog"
	"github.com/cindergrace/depot/internal/pathsafe"
)

func testDef(id, filename, url string, size int64, sha string) *catalog.ModelDefinition {
	return &catalog.ModelDefinition{
		ID:           id,
		Filename:     filename,
		SourceURL:    url,
		SizeBytes:    size,
		SHA256:       sha,
		TargetFolder: "vae",
	}
}

func fastOpts() Options {
	return Options{Parallelism: 2, MaxRetries: 3, RetryBaseDelay: time.Millisecond}
}

func waitDone(t *testing.T, job *Job) {
	t.Helper()
	select {
	case <-job.Done():
	case <-time.After(10 * time.Second):
		t.Fatalf("job %s did not finish (state %s)", job.ModelID(), job.State())
	}
}

// destDirEntries lists whatever is left in the job's destination directory,
// catching both premature final files and leaked temp files.
func destDirEntries(t *testing.T, job *Job) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Dir(job.DestPath()))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestDownloadSuccess(t *testing.T) {
	content := []byte("model weights payload")
	sum := sha256.Sum256(content)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer server.Close()

	o := New(fastOpts(), NewHTTPTransport(5*time.Second, false), t.TempDir(), "")
	defer o.Close()

	completed := make(chan string, 1)
	o.OnComplete(func(id string) { completed <- id })

	def := testDef("m", "m.safetensors", server.URL, int64(len(content)), hex.EncodeToString(sum[:]))
	job, err := o.Download(def)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	waitDone(t, job)

	if job.State() != JobComplete {
		t.Fatalf("state = %s, want complete (err: %v)", job.State(), job.Err())
	}
	got, err := os.ReadFile(job.DestPath())
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if string(got) != string(content) {
		t.Error("destination content does not match payload")
	}
	if names := destDirEntries(t, job); len(names) != 1 {
		t.Errorf("destination dir = %v, want only the final file", names)
	}

	select {
	case id := <-completed:
		if id != "m" {
			t.Errorf("completion hook got %q, want m", id)
		}
	case <-time.After(time.Second):
		t.Error("completion hook never ran")
	}
}

func TestDownloadDeduplicatesActiveDestination(t *testing.T) {
	gate := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	o := New(fastOpts(), NewHTTPTransport(5*time.Second, false), t.TempDir(), "")
	defer o.Close()

	def := testDef("m", "m.safetensors", server.URL, 0, "")
	first, err := o.Download(def)
	if err != nil {
		t.Fatal(err)
	}
	second, err := o.Download(def)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("second enqueue for an active destination started a new job")
	}

	close(gate)
	waitDone(t, first)
	if first.State() != JobComplete {
		t.Fatalf("state = %s, want complete (err: %v)", first.State(), first.Err())
	}

	// The claim is released after completion, so a fresh enqueue may start a
	// new transfer. Release is asynchronous with Done; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		third, err := o.Download(def)
		if err != nil {
			t.Fatal(err)
		}
		if third != first {
			waitDone(t, third)
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("claim never released after completion")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDownloadNotFoundFailsWithoutRetry(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	o := New(fastOpts(), NewHTTPTransport(5*time.Second, false), t.TempDir(), "")
	defer o.Close()

	job, err := o.Download(testDef("m", "m.safetensors", server.URL, 0, ""))
	if err != nil {
		t.Fatal(err)
	}
	waitDone(t, job)

	if job.State() != JobFailed {
		t.Fatalf("state = %s, want failed", job.State())
	}
	if job.Attempts() != 1 {
		t.Errorf("Attempts() = %d, want 1 for a client error", job.Attempts())
	}
	var te *TransportError
	if !errors.As(job.Err(), &te) || te.Status != http.StatusNotFound {
		t.Errorf("Err() = %v, want TransportError with status 404", job.Err())
	}
	if names := destDirEntries(t, job); len(names) != 0 {
		t.Errorf("destination dir = %v, want empty after failure", names)
	}
}

func TestDownloadRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	o := New(fastOpts(), NewHTTPTransport(5*time.Second, false), t.TempDir(), "")
	defer o.Close()

	job, err := o.Download(testDef("m", "m.safetensors", server.URL, 0, ""))
	if err != nil {
		t.Fatal(err)
	}
	waitDone(t, job)

	if job.State() != JobComplete {
		t.Fatalf("state = %s, want complete (err: %v)", job.State(), job.Err())
	}
	if job.Attempts() != 3 {
		t.Errorf("Attempts() = %d, want 3", job.Attempts())
	}
}

func TestDownloadRetryBound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	opts := fastOpts()
	opts.MaxRetries = 2
	o := New(opts, NewHTTPTransport(5*time.Second, false), t.TempDir(), "")
	defer o.Close()

	job, err := o.Download(testDef("m", "m.safetensors", server.URL, 0, ""))
	if err != nil {
		t.Fatal(err)
	}
	waitDone(t, job)

	if job.State() != JobFailed {
		t.Fatalf("state = %s, want failed", job.State())
	}
	if job.Attempts() != 3 {
		t.Errorf("Attempts() = %d, want 1 initial + 2 retries", job.Attempts())
	}
}

func TestVerificationMismatchDiscardsArtifact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("short"))
	}))
	defer server.Close()

	tests := []struct {
		name      string
		def       *catalog.ModelDefinition
		wantField string
	}{
		{"size mismatch", testDef("m", "m.safetensors", server.URL, 999, ""), "size"},
		{"checksum mismatch", testDef("m", "m.safetensors", server.URL, 0, "deadbeef"), "sha256"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(fastOpts(), NewHTTPTransport(5*time.Second, false), t.TempDir(), "")
			defer o.Close()

			job, err := o.Download(tt.def)
			if err != nil {
				t.Fatal(err)
			}
			waitDone(t, job)

			if job.State() != JobFailed {
				t.Fatalf("state = %s, want failed", job.State())
			}
			var ie *IntegrityError
			if !errors.As(job.Err(), &ie) || ie.Field != tt.wantField {
				t.Errorf("Err() = %v, want IntegrityError on %s", job.Err(), tt.wantField)
			}
			if names := destDirEntries(t, job); len(names) != 0 {
				t.Errorf("destination dir = %v, want empty after integrity failure", names)
			}
		})
	}
}

func TestCancelWhileDownloading(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 1000; i++ {
			select {
			case <-r.Context().Done():
				return
			default:
			}
			w.Write([]byte("chunk"))
			flusher.Flush()
			time.Sleep(5 * time.Millisecond)
		}
	}))
	defer server.Close()

	o := New(fastOpts(), NewHTTPTransport(5*time.Second, false), t.TempDir(), "")
	defer o.Close()

	job, err := o.Download(testDef("m", "m.safetensors", server.URL, 0, ""))
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		written, _ := job.Progress()
		if job.State() == JobDownloading && written > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("transfer never started (state %s)", job.State())
		}
		time.Sleep(5 * time.Millisecond)
	}

	o.Cancel(job)
	waitDone(t, job)

	if job.State() != JobCancelled {
		t.Fatalf("state = %s, want cancelled", job.State())
	}
	if names := destDirEntries(t, job); len(names) != 0 {
		t.Errorf("destination dir = %v, want empty after cancellation", names)
	}
}

func TestCancelQueuedJob(t *testing.T) {
	gate := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	opts := fastOpts()
	opts.Parallelism = 1
	o := New(opts, NewHTTPTransport(5*time.Second, false), t.TempDir(), "")
	defer o.Close()

	blocker, err := o.Download(testDef("a", "a.safetensors", server.URL, 0, ""))
	if err != nil {
		t.Fatal(err)
	}
	queued, err := o.Download(testDef("b", "b.safetensors", server.URL, 0, ""))
	if err != nil {
		t.Fatal(err)
	}

	o.Cancel(queued)
	waitDone(t, queued)
	if queued.State() != JobCancelled {
		t.Fatalf("queued job state = %s, want cancelled", queued.State())
	}

	close(gate)
	waitDone(t, blocker)
	if blocker.State() != JobComplete {
		t.Errorf("blocking job state = %s, want complete (err: %v)", blocker.State(), blocker.Err())
	}
}

func TestWorkerPoolBound(t *testing.T) {
	var inFlight, peak atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		inFlight.Add(-1)
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	o := New(fastOpts(), NewHTTPTransport(5*time.Second, false), t.TempDir(), "")
	defer o.Close()

	jobs := make([]*Job, 0, 5)
	for i := 0; i < 5; i++ {
		def := testDef(fmt.Sprintf("m%d", i), fmt.Sprintf("m%d.safetensors", i), server.URL, 0, "")
		job, err := o.Download(def)
		if err != nil {
			t.Fatal(err)
		}
		jobs = append(jobs, job)
	}
	for _, job := range jobs {
		waitDone(t, job)
		if job.State() != JobComplete {
			t.Errorf("job %s state = %s, want complete (err: %v)", job.ModelID(), job.State(), job.Err())
		}
	}

	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrent transfers = %d, want at most 2", p)
	}
}

func TestRestore(t *testing.T) {
	models := t.TempDir()
	backup := t.TempDir()
	content := []byte("backed up weights")

	backupDir := filepath.Join(backup, "vae")
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(backupDir, "m.safetensors"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	o := New(fastOpts(), NewHTTPTransport(5*time.Second, false), models, backup)
	defer o.Close()

	def := testDef("m", "m.safetensors", "", int64(len(content)), "")
	job, err := o.Restore(def)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	waitDone(t, job)

	if job.State() != JobComplete {
		t.Fatalf("state = %s, want complete (err: %v)", job.State(), job.Err())
	}
	if job.Kind() != KindRestore {
		t.Errorf("Kind() = %s, want restore", job.Kind())
	}
	got, err := os.ReadFile(job.DestPath())
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Error("restored content does not match backup")
	}

	// The backup copy stays in place after a restore.
	if _, err := os.Stat(filepath.Join(backupDir, "m.safetensors")); err != nil {
		t.Errorf("backup copy missing after restore: %v", err)
	}
}

func TestRestoreErrors(t *testing.T) {
	o := New(fastOpts(), NewHTTPTransport(5*time.Second, false), t.TempDir(), t.TempDir())
	defer o.Close()

	if _, err := o.Restore(testDef("m", "m.safetensors", "", 0, "")); err == nil {
		t.Error("Restore() succeeded with no backup copy on disk")
	}

	noBackup := New(fastOpts(), NewHTTPTransport(5*time.Second, false), t.TempDir(), "")
	defer noBackup.Close()
	if _, err := noBackup.Restore(testDef("m", "m.safetensors", "", 0, "")); err == nil {
		t.Error("Restore() succeeded without a backup root")
	}
}

func TestDownloadRejectsUnsafeDestination(t *testing.T) {
	o := New(fastOpts(), NewHTTPTransport(5*time.Second, false), t.TempDir(), "")
	defer o.Close()

	def := testDef("m", "m.safetensors", "http://example.com/m", 0, "")
	def.TargetSubpath = "../evil"

	job, err := o.Download(def)
	if job != nil {
		t.Error("Download() returned a job for a traversal destination")
	}
	var te *pathsafe.TraversalError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *pathsafe.TraversalError", err)
	}
}

func TestDownloadRequiresSourceURL(t *testing.T) {
	o := New(fastOpts(), NewHTTPTransport(5*time.Second, false), t.TempDir(), "")
	defer o.Close()

	if _, err := o.Download(testDef("m", "m.safetensors", "", 0, "")); err == nil {
		t.Error("Download() succeeded for a model with no source URL")
	}
}

func TestTransportErrorTransient(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{0, true},
		{500, true},
		{503, true},
		{408, true},
		{429, true},
		{404, false},
		{403, false},
		{400, false},
	}
	for _, tt := range tests {
		e := &TransportError{Status: tt.status, Err: errors.New("x")}
		if got := e.Transient(); got != tt.want {
			t.Errorf("Transient() for status %d = %v, want %v", tt.status, got, tt.want)
		}
	}
}
