// Package catalog loads and holds the workflow/model declarations that
// drive resolution and downloads. A Catalog is immutable after Load; the
// Store swaps whole Catalog values so concurrent readers never observe a
// partial update.
package catalog

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/cindergrace/depot/internal/pathsafe"
)

// ModelDefinition is one downloadable model artifact.
type ModelDefinition struct {
	ID            string
	Filename      string
	SourceURL     string
	SizeBytes     int64 // 0 means undeclared
	SHA256        string
	TargetFolder  string
	TargetSubpath string
}

// DestKey returns the normalized destination key used for conflict
// detection: folder/subpath/filename with dot segments collapsed.
func (m *ModelDefinition) DestKey() string {
	return path.Clean(path.Join(m.TargetFolder, m.TargetSubpath, m.Filename))
}

// ModelSet is the ordered list of model ids one (workflow, tier) requires.
type ModelSet struct {
	Name     string
	VRAMGB   int
	ModelIDs []string
}

// WorkflowDefinition maps tier labels to model sets.
type WorkflowDefinition struct {
	ID        string
	Name      string
	Category  string
	ModelSets map[string]*ModelSet
}

// Tiers returns the workflow's tier labels sorted by declared VRAM, then
// label, so listings are deterministic.
func (w *WorkflowDefinition) Tiers() []string {
	labels := make([]string, 0, len(w.ModelSets))
	for label := range w.ModelSets {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		a, b := w.ModelSets[labels[i]], w.ModelSets[labels[j]]
		if a.VRAMGB != b.VRAMGB {
			return a.VRAMGB < b.VRAMGB
		}
		return labels[i] < labels[j]
	})
	return labels
}

// Catalog is the loaded, validated document. Immutable after Load.
type Catalog struct {
	Version       string
	TargetFolders []string

	workflows   map[string]*WorkflowDefinition
	models      map[string]*ModelDefinition
	workflowIDs []string
}

// Workflow looks up a workflow by id.
func (c *Catalog) Workflow(id string) (*WorkflowDefinition, bool) {
	w, ok := c.workflows[id]
	return w, ok
}

// Model looks up a model definition by id.
func (c *Catalog) Model(id string) (*ModelDefinition, bool) {
	m, ok := c.models[id]
	return m, ok
}

// Workflows returns all workflows sorted by id.
func (c *Catalog) Workflows() []*WorkflowDefinition {
	out := make([]*WorkflowDefinition, 0, len(c.workflowIDs))
	for _, id := range c.workflowIDs {
		out = append(out, c.workflows[id])
	}
	return out
}

// ModelCount returns the number of model declarations.
func (c *Catalog) ModelCount() int {
	return len(c.models)
}

// SchemaError reports every problem found in a document. A document that
// produces a SchemaError yields no Catalog at all.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid catalog: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid catalog: %d problems: %s",
		len(e.Problems), strings.Join(e.Problems, "; "))
}

// Load parses and validates a catalog document. It is all-or-nothing: any
// schema problem returns a *SchemaError and no Catalog.
func Load(data []byte) (*Catalog, error) {
	dups, err := duplicateKeys(data)
	if err != nil {
		return nil, &SchemaError{Problems: []string{err.Error()}}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &SchemaError{Problems: []string{err.Error()}}
	}

	var problems []string
	for _, d := range dups {
		problems = append(problems, fmt.Sprintf("duplicate id %q", d))
	}
	if doc.Version == "" {
		problems = append(problems, "missing version")
	}

	for _, folder := range doc.TargetFolders {
		// target_folders may list subfolders ("diffusion_models/wan"); the
		// leading element must still be a whitelisted folder.
		head := folder
		if i := strings.Index(folder, "/"); i >= 0 {
			head = folder[:i]
		}
		if !pathsafe.IsWhitelisted(head) {
			problems = append(problems, fmt.Sprintf("target folder %q is not whitelisted", folder))
		}
	}

	models := make(map[string]*ModelDefinition, len(doc.Models))
	destinations := make(map[string]string, len(doc.Models))
	modelIDs := make([]string, 0, len(doc.Models))
	for id := range doc.Models {
		modelIDs = append(modelIDs, id)
	}
	sort.Strings(modelIDs)

	for _, id := range modelIDs {
		md := doc.Models[id]
		if id == "" {
			problems = append(problems, "empty model id")
			continue
		}
		if md.Filename == "" {
			problems = append(problems, fmt.Sprintf("model %q: missing filename", id))
			continue
		}
		if md.SizeMB < 0 {
			problems = append(problems, fmt.Sprintf("model %q: negative size_mb", id))
			continue
		}

		folder, subpath := splitTargetPath(md.TargetPath)
		if folder == "" {
			problems = append(problems, fmt.Sprintf("model %q: missing target_path", id))
			continue
		}

		def := &ModelDefinition{
			ID:            id,
			Filename:      md.Filename,
			SourceURL:     md.URL,
			SizeBytes:     md.SizeMB * 1024 * 1024,
			SHA256:        strings.ToLower(md.SHA256),
			TargetFolder:  folder,
			TargetSubpath: subpath,
		}

		key := def.DestKey()
		if other, ok := destinations[key]; ok {
			problems = append(problems, fmt.Sprintf(
				"models %q and %q declare the same destination %q", other, id, key))
			continue
		}
		destinations[key] = id
		models[id] = def
	}

	workflows := make(map[string]*WorkflowDefinition, len(doc.Workflows))
	workflowIDs := make([]string, 0, len(doc.Workflows))
	for id := range doc.Workflows {
		workflowIDs = append(workflowIDs, id)
	}
	sort.Strings(workflowIDs)

	for _, wfID := range workflowIDs {
		wd := doc.Workflows[wfID]
		wf := &WorkflowDefinition{
			ID:        wfID,
			Name:      wd.Name,
			Category:  wd.Category,
			ModelSets: make(map[string]*ModelSet, len(wd.ModelSets)),
		}
		for tier, sd := range wd.ModelSets {
			for _, mid := range sd.Models {
				if _, ok := doc.Models[mid]; !ok {
					problems = append(problems, fmt.Sprintf(
						"workflow %q tier %q references unknown model %q", wfID, tier, mid))
				}
			}
			wf.ModelSets[tier] = &ModelSet{
				Name:     sd.Name,
				VRAMGB:   sd.VRAMGB,
				ModelIDs: append([]string(nil), sd.Models...),
			}
		}
		workflows[wfID] = wf
	}

	if len(problems) > 0 {
		return nil, &SchemaError{Problems: problems}
	}

	return &Catalog{
		Version:       doc.Version,
		TargetFolders: append([]string(nil), doc.TargetFolders...),
		workflows:     workflows,
		models:        models,
		workflowIDs:   workflowIDs,
	}, nil
}

// splitTargetPath splits "<folder>/<subpath>" into its leading folder and
// the remainder. The remainder may be empty.
func splitTargetPath(p string) (folder, subpath string) {
	p = strings.Trim(p, "/")
	if p == "" {
		return "", ""
	}
	if i := strings.Index(p, "/"); i >= 0 {
		return p[:i], p[i+1:]
	}
	return p, ""
}
