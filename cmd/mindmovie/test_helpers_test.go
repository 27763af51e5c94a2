package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"mindmovie/internal/fileutil"
)

// writeCLIConfig writes a minimal valid configuration under a temp dir and
// returns its path.
func writeCLIConfig(t *testing.T) (configPath, buildDir string) {
	t.Helper()
	base := t.TempDir()
	buildDir = filepath.Join(base, "build")
	logDir := filepath.Join(base, "logs")
	content := fmt.Sprintf(`[paths]
build_dir = %q
log_dir = %q
`, buildDir, logDir)
	configPath = filepath.Join(base, "config.toml")
	if err := fileutil.WriteFileAtomic(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath, buildDir
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("output missing %q:\n%s", needle, haystack)
	}
}
