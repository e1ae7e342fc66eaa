package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// executeValidateCmd runs the validate command with the given config path
// and returns its output and any error.
func executeValidateCmd(t *testing.T, configPath string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	defer rootCmd.SetOut(nil)

	rootCmd.SetArgs([]string{"validate", "-c", configPath})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunValidate_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
port: 8080
write_timeout: 3s
queue_limit: 64
allowed_origins: [https://lobby.example.com]
entities:
  beacon: {x: 10, y: 20}
  anchor: {fixed: true}
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	output, err := executeValidateCmd(t, configPath)
	if err != nil {
		t.Fatalf("validate command error = %v", err)
	}

	expectedPhrases := []string{
		configPath + " is valid",
		"Stream on :8080/subscribe",
		"Write timeout: 3s",
		"Max message:   1048576 bytes",
		"Queue limit:   64 frames",
		"Origins:       1 listed",
		"Seed world: 2 entities",
		"  anchor  1 attribute\n",
		"  beacon  2 attributes\n",
	}

	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("output missing %q\nGot: %s", phrase, output)
		}
	}
}

func TestRunValidate_Defaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(configPath, []byte("# nothing set\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	output, err := executeValidateCmd(t, configPath)
	if err != nil {
		t.Fatalf("validate command error = %v", err)
	}

	for _, phrase := range []string{"Queue limit:   unbounded", "Origins:       any", "Write timeout: 5s", "Seed world: 0 entities"} {
		if !strings.Contains(output, phrase) {
			t.Errorf("output missing %q\nGot: %s", phrase, output)
		}
	}
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	configContent := `
port: 8080
log_level: loud
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err := executeValidateCmd(t, configPath)
	if err == nil {
		t.Fatal("validate command expected error for invalid config, got nil")
	}

	if !strings.Contains(err.Error(), "log_level must be one of") {
		t.Errorf("error should mention 'log_level must be one of', got: %v", err)
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	_, err := executeValidateCmd(t, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("validate command expected error for missing file, got nil")
	}

	if !strings.Contains(err.Error(), "failed to read") {
		t.Errorf("error should mention 'failed to read', got: %v", err)
	}
}

func TestRunValidate_SeedOrderIsSorted(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "entities:\n  zeta: {}\n  alpha: {x: 1}\n  mid: {a: 1, b: 2, c: 3}\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	output, err := executeValidateCmd(t, configPath)
	if err != nil {
		t.Fatalf("validate command error = %v", err)
	}

	seed := strings.Index(output, "Seed world:")
	if seed < 0 {
		t.Fatalf("output missing seed section\nGot: %s", output)
	}
	output = output[seed:]

	a := strings.Index(output, "alpha")
	m := strings.Index(output, "mid  ")
	z := strings.Index(output, "zeta")
	if a < 0 || m < 0 || z < 0 || !(a < m && m < z) {
		t.Errorf("seed entities not listed in sorted order\nGot: %s", output)
	}
	if !strings.Contains(output, "  zeta   0 attributes") {
		t.Errorf("names should be padded to a common width\nGot: %s", output)
	}
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	defer rootCmd.SetOut(nil)

	rootCmd.SetArgs([]string{"version"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("version command error = %v", err)
	}
	if got := out.String(); !strings.HasPrefix(got, "worldsync dev (commit none") {
		t.Errorf("version output = %q", got)
	}
}
