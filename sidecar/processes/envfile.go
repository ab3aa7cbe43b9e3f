package processes

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/subosito/gotenv"
)

const DefaultEnvFileName = ".env"

// EnvFileMode selects how the workspace env file reaches the backend.
type EnvFileMode string

const (
	// EnvFileFlag passes --env-file=<path> to the runtime, which loads it.
	EnvFileFlag EnvFileMode = "flag"
	// EnvFileInject parses the file here and appends it to the child's environment.
	EnvFileInject EnvFileMode = "inject"
	// EnvFileIgnore never forwards the env file.
	EnvFileIgnore EnvFileMode = "ignore"
)

// ParseEnvFileMode validates a mode string; empty means EnvFileFlag.
func ParseEnvFileMode(s string) (EnvFileMode, error) {
	switch EnvFileMode(s) {
	case "", EnvFileFlag:
		return EnvFileFlag, nil
	case EnvFileInject, EnvFileIgnore:
		return EnvFileMode(s), nil
	default:
		return "", fmt.Errorf("unknown env file mode %q (want flag, inject or ignore)", s)
	}
}

// FindEnvFile reports the env file a backend rooted at root would receive.
// An empty name means DefaultEnvFileName.
func FindEnvFile(root, name string) (string, bool) {
	return findEnvFile(root, orDefault(name, DefaultEnvFileName))
}

// findEnvFile returns root/name if it exists as a regular file.
func findEnvFile(root, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	p := filepath.Join(root, name)
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", false
	}
	return p, true
}

// readEnvFile parses a dotenv file into KEY=VALUE pairs.
func readEnvFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	env, err := gotenv.StrictParse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out, nil
}
