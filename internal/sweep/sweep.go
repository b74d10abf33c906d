// Package sweep finds model files under the whitelisted folders that are
// not referenced by a (workflow, tier) selection, and evacuates them to the
// backup root or deletes them.
package sweep

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cindergrace/depot/internal/pathsafe"
	"github.com/cindergrace/depot/internal/resolve"
)

// modelExtensions are the file types treated as model artifacts.
var modelExtensions = map[string]bool{
	".safetensors": true,
	".ckpt":        true,
	".pt":          true,
	".pth":         true,
	".bin":         true,
	".gguf":        true,
}

// Extra is one unreferenced model file found on disk.
type Extra struct {
	Folder   string // whitelisted folder name
	Subpath  string // relative directory below the folder, may be empty
	Filename string
	Size     int64
}

// Path returns the file's absolute path under root.
func (e Extra) Path(root string) string {
	return filepath.Join(root, e.Folder, filepath.FromSlash(e.Subpath), e.Filename)
}

// Scan walks the whitelisted folders under modelsRoot and returns every
// model file not present in the expected snapshot, in folder order.
func Scan(modelsRoot string, expected []resolve.Entry) ([]Extra, error) {
	keep := make(map[string]bool, len(expected))
	for _, e := range expected {
		keep[e.Path] = true
	}

	var extras []Extra
	for _, folder := range pathsafe.Folders() {
		folderPath := filepath.Join(modelsRoot, folder)
		if _, err := os.Stat(folderPath); err != nil {
			continue
		}

		err := filepath.WalkDir(folderPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !modelExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
				return nil
			}
			if keep[path] {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(folderPath, filepath.Dir(path))
			if err != nil {
				return err
			}
			if rel == "." {
				rel = ""
			}
			extras = append(extras, Extra{
				Folder:   folder,
				Subpath:  filepath.ToSlash(rel),
				Filename: d.Name(),
				Size:     info.Size(),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", folderPath, err)
		}
	}
	return extras, nil
}

// Evacuate moves an extra file to the backup root, or deletes it when
// backupRoot is empty. A same-size backup copy already in place means the
// source is simply deleted. Returns a human-readable outcome.
func Evacuate(modelsRoot, backupRoot string, extra Extra) (string, error) {
	source, err := pathsafe.Validate(modelsRoot, extra.Folder, extra.Subpath, extra.Filename)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(source)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", extra.Filename, err)
	}

	if backupRoot == "" {
		if err := os.Remove(source); err != nil {
			return "", err
		}
		return "deleted (no backup root)", nil
	}

	dest, err := pathsafe.Validate(backupRoot, extra.Folder, extra.Subpath, extra.Filename)
	if err != nil {
		return "", err
	}

	if bi, err := os.Stat(dest); err == nil && bi.Size() == info.Size() {
		if err := os.Remove(source); err != nil {
			return "", err
		}
		return "deleted (already in backup)", nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", err
	}
	if err := moveFile(source, dest); err != nil {
		return "", err
	}
	return "moved to backup", nil
}

// moveFile renames when possible and falls back to copy+remove across
// filesystems. The copy lands under a temp name and is renamed into place.
func moveFile(source, dest string) error {
	if err := os.Rename(source, dest); err == nil {
		return nil
	}

	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".moving-")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.ReadFrom(in); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Remove(source)
}
