package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mediaconv/internal/runstore"
)

var DefaultExtensions = []string{".avi", ".mkv", ".mp4"}

type CollectOptions struct {
	Extensions []string
	// Recursive descends into subdirectories of directory inputs.
	Recursive bool
	// SkipDirName is never descended into (the output directory).
	SkipDirName string
}

type CollectResult struct {
	Files   []string `json:"files"`
	Missing []string `json:"missing,omitempty"`
	Ignored []string `json:"ignored,omitempty"`
}

// Collect expands files and directories into an ordered, de-duplicated list
// of absolute media paths. Directory contents are sorted by name.
func Collect(inputs []string, opts CollectOptions) (CollectResult, error) {
	exts := NormalizeExtensions(opts.Extensions)
	res := CollectResult{Files: []string{}}
	seen := make(map[string]bool)
	add := func(p string) {
		if seen[p] {
			return
		}
		seen[p] = true
		res.Files = append(res.Files, p)
	}

	for _, raw := range inputs {
		p := CleanInputPath(raw)
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return CollectResult{}, fmt.Errorf("resolve %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				res.Missing = append(res.Missing, p)
				continue
			}
			return CollectResult{}, fmt.Errorf("stat %s: %w", abs, err)
		}
		if !info.IsDir() {
			if MatchesExtension(abs, exts) {
				add(abs)
			} else {
				res.Ignored = append(res.Ignored, abs)
			}
			continue
		}
		files, err := scanDir(abs, exts, opts)
		if err != nil {
			return CollectResult{}, err
		}
		for _, f := range files {
			add(f)
		}
	}
	return res, nil
}

func scanDir(root string, exts []string, opts CollectOptions) ([]string, error) {
	skip := strings.TrimSpace(opts.SkipDirName)
	if !opts.Recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", root, err)
		}
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			p := filepath.Join(root, e.Name())
			if MatchesExtension(p, exts) && !runstore.IsPartialPath(p) {
				out = append(out, p)
			}
		}
		sort.Strings(out)
		return out, nil
	}

	out := []string{}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (d.Name() == skip || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if MatchesExtension(path, exts) && !runstore.IsPartialPath(path) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory %s: %w", root, err)
	}
	sort.Strings(out)
	return out, nil
}

// CleanInputPath trims whitespace and the quotes terminals add around
// dragged-in paths.
func CleanInputPath(raw string) string {
	p := strings.TrimSpace(raw)
	p = strings.Trim(p, `"'`)
	return strings.TrimSpace(p)
}

// NormalizeExtensions lowercases and dots each extension, dropping
// duplicates. An empty list yields DefaultExtensions.
func NormalizeExtensions(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, e := range raw {
		v := strings.ToLower(strings.TrimSpace(e))
		if v == "" {
			continue
		}
		if !strings.HasPrefix(v, ".") {
			v = "." + v
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultExtensions...)
	}
	return out
}

func MatchesExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
