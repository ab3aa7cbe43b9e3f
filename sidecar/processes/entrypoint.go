package processes

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const DefaultEntryPoint = "packages/backend/src/index.ts"

// DefaultAscents are the directory levels above the executable's directory
// where the workspace root is looked for. A development build sits deeper
// (src-tauri/target/debug) than a packaged one, so several depths are tried.
var DefaultAscents = []int{3, 4, 5}

// Strategy maps the running executable's directory to a candidate entry point.
type Strategy func(exeDir string) string

// Ascend returns a Strategy that climbs levels directories from the
// executable and appends relPath.
func Ascend(levels int, relPath string) Strategy {
	return func(exeDir string) string {
		parts := make([]string, 0, levels+2)
		parts = append(parts, exeDir)
		for i := 0; i < levels; i++ {
			parts = append(parts, "..")
		}
		parts = append(parts, filepath.FromSlash(relPath))
		return filepath.Join(parts...)
	}
}

// EntryPointResolver locates the backend's entry point file. Strategies are
// tried in order and the first existing candidate wins; RelPath relative to the
// working directory is the last resort.
type EntryPointResolver struct {
	RelPath    string
	Strategies []Strategy

	// Executable and Getwd default to os.Executable and os.Getwd.
	Executable func() (string, error)
	Getwd      func() (string, error)
}

// NewEntryPointResolver builds a resolver that tries relPath at each of the
// given ascents from the executable's directory.
func NewEntryPointResolver(relPath string, ascents []int) *EntryPointResolver {
	if relPath == "" {
		relPath = DefaultEntryPoint
	}
	if ascents == nil {
		ascents = DefaultAscents
	}
	strategies := make([]Strategy, 0, len(ascents))
	for _, n := range ascents {
		strategies = append(strategies, Ascend(n, relPath))
	}
	return &EntryPointResolver{
		RelPath:    relPath,
		Strategies: strategies,
	}
}

// Candidates lists every path Resolve would try, in order.
func (r *EntryPointResolver) Candidates() []string {
	var out []string
	if exeDir, ok := r.exeDir(); ok {
		for _, s := range r.Strategies {
			out = append(out, s(exeDir))
		}
	}
	out = append(out, r.fallback())
	return out
}

// Resolve returns the canonical path of the first candidate that exists.
func (r *EntryPointResolver) Resolve() (string, error) {
	if exeDir, ok := r.exeDir(); ok {
		for _, s := range r.Strategies {
			if p, ok := canonicalFile(s(exeDir)); ok {
				return p, nil
			}
		}
	}

	if p, ok := canonicalFile(r.fallback()); ok {
		return p, nil
	}

	return "", newLaunchError(ErrEntryPointNotFound, fmt.Sprintf("Cannot locate %s", r.RelPath), nil)
}

// WorkspaceRoot strips RelPath's components off a resolved entry point,
// e.g. <root>/packages/backend/src/index.ts -> <root>. An absolute RelPath has
// no workspace above it, so its own directory is the root.
func (r *EntryPointResolver) WorkspaceRoot(entryPoint string) string {
	if filepath.IsAbs(filepath.FromSlash(r.RelPath)) {
		return filepath.Dir(entryPoint)
	}
	depth := len(strings.Split(strings.Trim(filepath.ToSlash(r.RelPath), "/"), "/"))
	root := entryPoint
	for i := 0; i < depth; i++ {
		root = filepath.Dir(root)
	}
	return root
}

// fallback is RelPath against the working directory, or RelPath itself when
// it is absolute or the working directory is unknown.
func (r *EntryPointResolver) fallback() string {
	p := filepath.FromSlash(r.RelPath)
	if filepath.IsAbs(p) {
		return p
	}
	if wd, err := r.getwd(); err == nil {
		return filepath.Join(wd, p)
	}
	return p
}

func (r *EntryPointResolver) exeDir() (string, bool) {
	executable := r.Executable
	if executable == nil {
		executable = os.Executable
	}
	exe, err := executable()
	if err != nil {
		return "", false
	}
	// Join cleans ".." lexically, so start from the physical location.
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), true
}

func (r *EntryPointResolver) getwd() (string, error) {
	if r.Getwd != nil {
		return r.Getwd()
	}
	return os.Getwd()
}

// canonicalFile resolves symlinks and reports whether p names an existing
// regular file.
func canonicalFile(p string) (string, bool) {
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", false
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", false
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return "", false
	}
	return abs, true
}
