// Package fetch schedules and executes model downloads and backup restores
// under a bounded worker pool.
//
// Each transfer streams into a temporary file beside its destination and is
// renamed into place only after size/checksum verification succeeds; a
// partially written file is never observable at the final path.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cindergrace/depot/internal/catalog"
	"github.com/cindergrace/depot/internal/pathsafe"
	"github.com/cindergrace/depot/internal/ui"
)

const queueCapacity = 256

// Options is the orchestrator policy. Zero values fall back to defaults.
type Options struct {
	Parallelism    int           // worker pool size, default 2
	MaxRetries     int           // retries after the first attempt, default 3
	RetryBaseDelay time.Duration // backoff base, doubled per attempt, default 500ms
}

func (o Options) withDefaults() Options {
	if o.Parallelism <= 0 {
		o.Parallelism = 2
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = 500 * time.Millisecond
	}
	return o
}

// Orchestrator owns the job queue, the worker pool and the per-destination
// claims. Jobs stay inspectable after reaching a terminal state until the
// caller acknowledges them with Ack.
type Orchestrator struct {
	opts       Options
	transport  Transport
	modelsRoot string
	backupRoot string
	onComplete func(modelID string)

	mu     sync.Mutex
	active map[string]*Job // destination path → non-terminal job
	jobs   map[string]*Job // job id → job, until Ack

	queue  chan *Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New starts an orchestrator with its worker pool. Close releases it.
func New(opts Options, transport Transport, modelsRoot, backupRoot string) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		opts:       opts.withDefaults(),
		transport:  transport,
		modelsRoot: modelsRoot,
		backupRoot: backupRoot,
		active:     make(map[string]*Job),
		jobs:       make(map[string]*Job),
		queue:      make(chan *Job, queueCapacity),
		ctx:        ctx,
		cancel:     cancel,
	}

	for i := 0; i < o.opts.Parallelism; i++ {
		o.wg.Add(1)
		go o.worker()
	}
	return o
}

// OnComplete registers a hook run after every successful transfer, used to
// invalidate the resolver's cached status for the affected model.
func (o *Orchestrator) OnComplete(fn func(modelID string)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onComplete = fn
}

// Download enqueues a fetch of def's source URL to its validated target
// path. While a job for the same destination is active, the existing handle
// is returned instead of starting a duplicate transfer.
func (o *Orchestrator) Download(def *catalog.ModelDefinition) (*Job, error) {
	if def.SourceURL == "" {
		return nil, fmt.Errorf("model %q has no source URL", def.ID)
	}
	src := &urlSource{transport: o.transport, url: def.SourceURL}
	return o.enqueue(def, KindDownload, src)
}

// Restore enqueues a copy of def's backup file to its validated target
// path. Restore verification uses the same declared size/checksum rules;
// with no declared metadata the restore proceeds on presence alone.
func (o *Orchestrator) Restore(def *catalog.ModelDefinition) (*Job, error) {
	if o.backupRoot == "" {
		return nil, fmt.Errorf("no backup root configured")
	}
	backupPath, err := pathsafe.Validate(o.backupRoot, def.TargetFolder, def.TargetSubpath, def.Filename)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(backupPath); err != nil {
		return nil, fmt.Errorf("model %q has no backup copy: %w", def.ID, err)
	}
	return o.enqueue(def, KindRestore, &fileSource{path: backupPath})
}

func (o *Orchestrator) enqueue(def *catalog.ModelDefinition, kind JobKind, src payloadSource) (*Job, error) {
	dest, err := pathsafe.Validate(o.modelsRoot, def.TargetFolder, def.TargetSubpath, def.Filename)
	if err != nil {
		// Validator rejection: the job never starts.
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if existing, ok := o.active[dest]; ok {
		return existing, nil
	}

	job := newJob(def.ID, kind, dest, src, def.SizeBytes, def.SHA256)
	select {
	case o.queue <- job:
	default:
		return nil, fmt.Errorf("job queue full (%d pending)", queueCapacity)
	}
	o.active[dest] = job
	o.jobs[job.id] = job
	ui.Debug("job enqueued", "model", def.ID, "kind", kind.String(), "dest", dest)
	return job, nil
}

// Job looks up a handle by id.
func (o *Orchestrator) Job(id string) (*Job, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.jobs[id]
	return j, ok
}

// Jobs returns all unacknowledged jobs.
func (o *Orchestrator) Jobs() []*Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*Job, 0, len(o.jobs))
	for _, j := range o.jobs {
		out = append(out, j)
	}
	return out
}

// Cancel requests cooperative cancellation. A queued job is removed
// immediately; a downloading job stops at its next I/O checkpoint. Jobs in
// Verifying or a terminal state are unaffected.
func (o *Orchestrator) Cancel(j *Job) {
	wasQueued := j.State() == JobQueued
	if !j.requestCancel() {
		return
	}
	if wasQueued && j.State() == JobCancelled {
		o.release(j)
	}
}

// Ack removes a terminal job from the inspection set. Non-terminal jobs are
// kept.
func (o *Orchestrator) Ack(j *Job) {
	if !j.State().Terminal() {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.jobs, j.id)
}

// Close cancels all work and waits for the workers to exit.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}

// release frees the per-destination claim once a job is terminal.
func (o *Orchestrator) release(j *Job) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active[j.destPath] == j {
		delete(o.active, j.destPath)
	}
}

func (o *Orchestrator) worker() {
	defer o.wg.Done()
	for {
		select {
		case <-o.ctx.Done():
			return
		case job := <-o.queue:
			o.run(job)
		}
	}
}

func (o *Orchestrator) run(job *Job) {
	jobCtx, cancelJob := context.WithCancel(o.ctx)
	defer cancelJob()

	if !job.begin(cancelJob) {
		// Cancelled while queued; the claim was already released.
		return
	}
	defer o.release(job)

	err := o.transfer(jobCtx, job)
	switch {
	case err == nil:
		job.transition(JobComplete, nil)
		ui.Debug("job complete", "model", job.modelID, "kind", job.kind.String())
		o.mu.Lock()
		hook := o.onComplete
		o.mu.Unlock()
		if hook != nil {
			hook(job.modelID)
		}
	case errors.Is(err, context.Canceled):
		job.transition(JobCancelled, nil)
		ui.Debug("job cancelled", "model", job.modelID)
	default:
		job.transition(JobFailed, err)
		ui.Warn("job failed", "model", job.modelID, "kind", job.kind.String(), "attempts", job.Attempts(), "err", err)
	}
}

// transfer runs the attempt loop, verification and the atomic rename. Any
// returned error means nothing was left at the final path and the temp file
// was removed.
func (o *Orchestrator) transfer(ctx context.Context, job *Job) error {
	dir := filepath.Dir(job.destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(job.destPath)+".partial-")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	removeTmp := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	for attempt := 0; ; attempt++ {
		job.addAttempt()
		job.written.Store(0)
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			removeTmp()
			return err
		}
		if err := tmp.Truncate(0); err != nil {
			removeTmp()
			return err
		}

		total, serr := job.src.stream(ctx, &countingWriter{w: tmp, job: job})
		if total > 0 {
			job.total.Store(total)
		}
		if serr == nil {
			break
		}
		if ctx.Err() != nil {
			removeTmp()
			return context.Canceled
		}

		var te *TransportError
		retryable := errors.As(serr, &te) && te.Transient()
		if !retryable || attempt >= o.opts.MaxRetries {
			removeTmp()
			return serr
		}

		delay := o.opts.RetryBaseDelay << attempt
		ui.Debug("transient transfer failure, retrying", "model", job.modelID, "attempt", job.Attempts(), "delay", delay, "err", serr)
		select {
		case <-ctx.Done():
			removeTmp()
			return context.Canceled
		case <-time.After(delay):
		}
	}

	job.transition(JobVerifying, nil)
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := verify(tmpPath, job); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, job.destPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// verify checks the declared size and checksum against the temp artifact.
// Restores without any declared expectation pass on presence, with a
// surfaced warning.
func verify(path string, job *Job) error {
	if job.expectSize == 0 && job.expectSHA == "" {
		if job.kind == KindRestore {
			ui.Warn("no declared size or checksum; restoring on presence alone", "model", job.modelID)
		}
		return nil
	}

	if job.expectSize > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() != job.expectSize {
			return &IntegrityError{
				Field:    "size",
				Expected: fmt.Sprintf("%d", job.expectSize),
				Actual:   fmt.Sprintf("%d", info.Size()),
			}
		}
	}

	if job.expectSHA != "" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		h := sha256.New()
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return err
		}
		actual := hex.EncodeToString(h.Sum(nil))
		if !strings.EqualFold(actual, job.expectSHA) {
			return &IntegrityError{Field: "sha256", Expected: job.expectSHA, Actual: actual}
		}
	}
	return nil
}
