package fetch

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// JobState is the lifecycle state of one transfer.
type JobState int

const (
	JobQueued JobState = iota
	JobDownloading
	JobVerifying
	JobComplete
	JobFailed
	JobCancelled
)

func (s JobState) String() string {
	switch s {
	case JobQueued:
		return "queued"
	case JobDownloading:
		return "downloading"
	case JobVerifying:
		return "verifying"
	case JobComplete:
		return "complete"
	case JobFailed:
		return "failed"
	case JobCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	return s == JobComplete || s == JobFailed || s == JobCancelled
}

// JobKind distinguishes downloads from backup restores.
type JobKind int

const (
	KindDownload JobKind = iota
	KindRestore
)

func (k JobKind) String() string {
	if k == KindRestore {
		return "restore"
	}
	return "download"
}

// Job is the handle for one in-flight transfer. All state transitions are
// sequential and visible atomically through State().
type Job struct {
	id       string
	modelID  string
	kind     JobKind
	destPath string
	src      payloadSource

	// declared expectations, zero-valued when the catalog omits them
	expectSize int64
	expectSHA  string

	mu       sync.Mutex
	state    JobState
	attempts int
	err      error
	cancel   context.CancelFunc

	written atomic.Int64
	total   atomic.Int64

	done chan struct{}
}

func newJob(modelID string, kind JobKind, destPath string, src payloadSource, expectSize int64, expectSHA string) *Job {
	j := &Job{
		id:         uuid.NewString(),
		modelID:    modelID,
		kind:       kind,
		destPath:   destPath,
		src:        src,
		expectSize: expectSize,
		expectSHA:  expectSHA,
		state:      JobQueued,
		done:       make(chan struct{}),
	}
	j.total.Store(-1)
	return j
}

func (j *Job) ID() string       { return j.id }
func (j *Job) ModelID() string  { return j.modelID }
func (j *Job) Kind() JobKind    { return j.kind }
func (j *Job) DestPath() string { return j.destPath }

// State returns the current lifecycle state.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Attempts returns how many transfer attempts have started.
func (j *Job) Attempts() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.attempts
}

// Err returns the last recorded error, nil unless Failed.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Progress returns bytes written so far and the declared total (-1 when
// unknown).
func (j *Job) Progress() (written, total int64) {
	return j.written.Load(), j.total.Load()
}

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// begin moves Queued → Downloading and installs the cancel func. Returns
// false when the job was cancelled while queued.
func (j *Job) begin(cancel context.CancelFunc) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != JobQueued {
		return false
	}
	j.state = JobDownloading
	j.cancel = cancel
	return true
}

// transition moves the job to state, recording err for terminal failures,
// and closes done on any terminal state.
func (j *Job) transition(state JobState, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = state
	if err != nil {
		j.err = err
	}
	if state.Terminal() {
		close(j.done)
	}
}

func (j *Job) addAttempt() {
	j.mu.Lock()
	j.attempts++
	j.mu.Unlock()
}

// requestCancel implements the cancellation edges: a queued job is finished
// immediately, a downloading job gets its context cancelled and the worker
// completes the transition. Returns true when the job will end Cancelled.
func (j *Job) requestCancel() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch j.state {
	case JobQueued:
		j.state = JobCancelled
		close(j.done)
		return true
	case JobDownloading:
		if j.cancel != nil {
			j.cancel()
		}
		return true
	}
	return false
}

// countingWriter tracks bytes written into the temp file for Progress().
type countingWriter struct {
	w   io.Writer
	job *Job
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.job.written.Add(int64(n))
	return n, err
}
