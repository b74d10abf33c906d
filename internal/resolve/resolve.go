// Package resolve computes the on-disk status of the models a
// (workflow, tier) selection requires.
package resolve

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/cindergrace/depot/internal/catalog"
	"github.com/cindergrace/depot/internal/pathsafe"
)

// Status is the derived on-disk state of one model.
type Status int

const (
	StatusMissing Status = iota
	StatusPresent
	StatusBackupAvailable
	StatusCorrupt
)

func (s Status) String() string {
	switch s {
	case StatusMissing:
		return "missing"
	case StatusPresent:
		return "present"
	case StatusBackupAvailable:
		return "backup"
	case StatusCorrupt:
		return "corrupt"
	}
	return "unknown"
}

// Entry is one model's resolved state.
type Entry struct {
	Definition *catalog.ModelDefinition
	Status     Status
	Path       string // validated absolute target path
	ActualSize int64  // size at the target path, 0 when absent
	BackupSize int64  // size of the backup copy, 0 when absent
}

// NotFoundError reports an unknown workflow, tier or model id. No state
// changes on a NotFoundError; it is a caller error.
type NotFoundError struct {
	Kind string // "workflow", "tier" or "model"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Resolver derives model statuses from the filesystem. Resolution is
// read-only and idempotent; results are cached per model id until
// invalidated by a catalog reload or a completed job.
type Resolver struct {
	modelsRoot string
	backupRoot string // empty disables backup probing
	deepVerify bool   // compare declared checksums, not just sizes

	mu    sync.Mutex
	cache map[string]Entry
}

// NewResolver creates a resolver over the given storage roots. deepVerify
// enables full SHA-256 comparison for models that declare a checksum; the
// declared size is always compared.
func NewResolver(modelsRoot, backupRoot string, deepVerify bool) *Resolver {
	return &Resolver{
		modelsRoot: modelsRoot,
		backupRoot: backupRoot,
		deepVerify: deepVerify,
		cache:      make(map[string]Entry),
	}
}

// Resolve returns one entry per model in the set's declaration order.
func (r *Resolver) Resolve(cat *catalog.Catalog, workflowID, tier string) ([]Entry, error) {
	wf, ok := cat.Workflow(workflowID)
	if !ok {
		return nil, &NotFoundError{Kind: "workflow", ID: workflowID}
	}
	set, ok := wf.ModelSets[tier]
	if !ok {
		return nil, &NotFoundError{Kind: "tier", ID: tier}
	}

	entries := make([]Entry, 0, len(set.ModelIDs))
	for _, id := range set.ModelIDs {
		def, ok := cat.Model(id)
		if !ok {
			// Load validation rejects dangling references, so this only
			// fires when the caller mixes catalogs.
			return nil, &NotFoundError{Kind: "model", ID: id}
		}
		entry, err := r.entryFor(def)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Status resolves a single model definition.
func (r *Resolver) Status(def *catalog.ModelDefinition) (Entry, error) {
	return r.entryFor(def)
}

// Invalidate drops the cached status for one model id.
func (r *Resolver) Invalidate(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, id)
}

// InvalidateAll drops every cached status. Called on catalog reload.
func (r *Resolver) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]Entry)
}

func (r *Resolver) entryFor(def *catalog.ModelDefinition) (Entry, error) {
	r.mu.Lock()
	if e, ok := r.cache[def.ID]; ok {
		r.mu.Unlock()
		return e, nil
	}
	r.mu.Unlock()

	target, err := pathsafe.Validate(r.modelsRoot, def.TargetFolder, def.TargetSubpath, def.Filename)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{Definition: def, Status: StatusMissing, Path: target}

	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		entry.ActualSize = info.Size()
		entry.Status = StatusPresent
		if def.SizeBytes > 0 && info.Size() != def.SizeBytes {
			entry.Status = StatusCorrupt
		} else if r.deepVerify && def.SHA256 != "" {
			match, err := checksumMatches(target, def.SHA256)
			if err != nil {
				return Entry{}, err
			}
			if !match {
				entry.Status = StatusCorrupt
			}
		}
	}

	// The backup root is only probed when the primary copy is absent, so a
	// corrupt primary is never masked by a healthy backup.
	if entry.Status == StatusMissing && r.backupRoot != "" {
		backup, err := pathsafe.Validate(r.backupRoot, def.TargetFolder, def.TargetSubpath, def.Filename)
		if err != nil {
			return Entry{}, err
		}
		if info, err := os.Stat(backup); err == nil && !info.IsDir() {
			entry.BackupSize = info.Size()
			entry.Status = StatusBackupAvailable
		}
	}

	r.mu.Lock()
	r.cache[def.ID] = entry
	r.mu.Unlock()
	return entry, nil
}

// checksumMatches streams path through SHA-256 and compares against the
// lowercase hex expected digest.
func checksumMatches(path, expected string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, err
	}
	actual := hex.EncodeToString(h.Sum(nil))
	return strings.EqualFold(actual, expected), nil
}
