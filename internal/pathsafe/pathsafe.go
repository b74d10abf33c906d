// Package pathsafe validates destination paths for model files.
//
// Every string that originates in a catalog document (folder, subpath,
// filename) must pass through Validate before it is used to touch the
// filesystem. Nothing else in the codebase joins catalog strings into paths.
package pathsafe

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// whitelistedFolders is the fixed set of approved top-level destination
// folders. It is process-wide and not editable at runtime.
var whitelistedFolders = []string{
	"checkpoints",
	"clip_vision",
	"controlnet",
	"diffusion_models",
	"loras",
	"text_encoders",
	"upscale_models",
	"vae",
	"LLM",
}

var whitelistSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(whitelistedFolders))
	for _, f := range whitelistedFolders {
		m[f] = struct{}{}
	}
	return m
}()

// Folders returns the whitelisted folder names in declaration order.
func Folders() []string {
	out := make([]string, len(whitelistedFolders))
	copy(out, whitelistedFolders)
	return out
}

// IsWhitelisted reports whether folder is an approved destination folder.
func IsWhitelisted(folder string) bool {
	_, ok := whitelistSet[folder]
	return ok
}

// TraversalError reports a rejected destination path. A caller receiving
// one must not write anything; there is no partial or best-effort result.
type TraversalError struct {
	Folder   string
	Subpath  string
	Filename string
	Reason   string
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("unsafe path %q in folder %q: %s",
		path.Join(e.Subpath, e.Filename), e.Folder, e.Reason)
}

// Validate joins baseDir, folder, subpath and filename into an absolute
// destination path, rejecting anything that could escape baseDir/folder.
//
// folder must be a whitelisted folder name. subpath is an optional relative
// directory below it (slash-separated, may be empty). filename is the final
// path element and must not contain separators.
func Validate(baseDir, folder, subpath, filename string) (string, error) {
	reject := func(reason string) (string, error) {
		return "", &TraversalError{Folder: folder, Subpath: subpath, Filename: filename, Reason: reason}
	}

	if !IsWhitelisted(folder) {
		return reject("target folder is not whitelisted")
	}

	// Backslashes and NUL bytes are rejected on the raw inputs regardless
	// of host path conventions.
	for _, s := range []string{folder, subpath, filename} {
		if strings.ContainsAny(s, "\\\x00") {
			return reject("path contains a backslash or NUL byte")
		}
	}

	if filename == "" {
		return reject("empty filename")
	}
	if strings.Contains(filename, "/") {
		return reject("filename contains a path separator")
	}
	if hasParentSegment(filename) {
		return reject("filename is a parent-directory reference")
	}

	if path.IsAbs(subpath) {
		return reject("subpath is absolute")
	}
	if hasParentSegment(subpath) {
		return reject("subpath contains a parent-directory segment")
	}

	rel := filename
	if subpath != "" {
		rel = path.Join(subpath, filename)
	}
	rel = path.Clean(rel)
	if rel == "" || rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return reject("path escapes its folder after normalization")
	}
	if path.IsAbs(rel) {
		return reject("path is absolute after normalization")
	}

	root := filepath.Join(baseDir, folder)
	abs := filepath.Join(root, filepath.FromSlash(rel))

	// Belt and braces: the joined result must still sit below baseDir/folder.
	within, err := filepath.Rel(root, abs)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return reject("resolved path is outside the target folder")
	}

	return abs, nil
}

// hasParentSegment reports whether any slash-separated segment of s is "..".
func hasParentSegment(s string) bool {
	for _, seg := range strings.Split(s, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
