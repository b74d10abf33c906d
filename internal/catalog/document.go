package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Document mirrors the on-disk workflow_models.json schema.
type Document struct {
	Version       string                 `json:"version"`
	TargetFolders []string               `json:"target_folders"`
	Workflows     map[string]WorkflowDoc `json:"workflows"`
	Models        map[string]ModelDoc    `json:"models"`
}

// WorkflowDoc is one workflow declaration in the document.
type WorkflowDoc struct {
	Name      string                 `json:"name"`
	Category  string                 `json:"category"`
	ModelSets map[string]ModelSetDoc `json:"model_sets"`
}

// ModelSetDoc is one tier's model set within a workflow.
type ModelSetDoc struct {
	Name   string   `json:"name"`
	VRAMGB int      `json:"vram_gb"`
	Models []string `json:"models"`
}

// ModelDoc is one model declaration in the document. SizeMB and SHA256 are
// optional; TargetPath is "<folder>" or "<folder>/<subpath>".
type ModelDoc struct {
	Filename   string `json:"filename"`
	URL        string `json:"url"`
	SizeMB     int64  `json:"size_mb"`
	SHA256     string `json:"sha256"`
	TargetPath string `json:"target_path"`
}

// duplicateKeys scans the raw JSON for repeated keys inside the "workflows"
// and "models" objects. encoding/json silently keeps the last value for a
// repeated key, which would turn an id collision into a silent overwrite.
func duplicateKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("document root is not an object")
	}

	var dups []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)

		if key == "workflows" || key == "models" {
			d, err := scanObjectKeys(dec, key)
			if err != nil {
				return nil, err
			}
			dups = append(dups, d...)
			continue
		}
		if err := skipValue(dec); err != nil {
			return nil, err
		}
	}
	return dups, nil
}

// scanObjectKeys consumes one object value and returns section-qualified
// names for any repeated keys.
func scanObjectKeys(dec *json.Decoder, section string) ([]string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		// Not an object; let the struct decode report the type error.
		return nil, skipRest(dec, tok)
	}

	seen := make(map[string]bool)
	var dups []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		if seen[key] {
			dups = append(dups, section+"/"+key)
		}
		seen[key] = true
		if err := skipValue(dec); err != nil {
			return nil, err
		}
	}
	_, err = dec.Token() // closing brace
	return dups, err
}

// skipValue consumes one complete JSON value from dec.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	return skipRest(dec, tok)
}

// skipRest consumes the remainder of a value whose first token was tok.
func skipRest(dec *json.Decoder, tok json.Token) error {
	d, ok := tok.(json.Delim)
	if !ok || (d != '{' && d != '[') {
		return nil
	}
	depth := 1
	for depth > 0 {
		t, err := dec.Token()
		if err == io.EOF {
			return fmt.Errorf("unexpected end of document")
		}
		if err != nil {
			return err
		}
		if d, ok := t.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
