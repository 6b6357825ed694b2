package settings

// settings_test.go - Tests for settings loading, defaults and init answers.

import (
	"os"
	"path/filepath"
	"testing"

	"cargoabi/internal/abi"
	"cargoabi/internal/manifest"
	"cargoabi/internal/metadata"
)

// ---------------------------------------------------------------------------
// Getters
// ---------------------------------------------------------------------------

func TestSettings_NilReceiver(t *testing.T) {
	var s *Settings
	if got := s.SDK(); got != DefaultSDKCrate {
		t.Errorf("SDK() = %q, want %q", got, DefaultSDKCrate)
	}
	if got := s.OutputName(); got != DefaultOutput {
		t.Errorf("OutputName() = %q, want %q", got, DefaultOutput)
	}
	if got := s.Subdir(); got != DefaultTargetSubdir {
		t.Errorf("Subdir() = %q, want %q", got, DefaultTargetSubdir)
	}
	if got := s.Excluded(); got != nil {
		t.Errorf("Excluded() = %v, want nil", got)
	}
}

func TestSettings_Overrides(t *testing.T) {
	s := &Settings{SDKCrate: "my-sdk", Output: "out/abi.json", ExcludeDeps: []string{"shared"}}
	if got := s.SDK(); got != "my-sdk" {
		t.Errorf("SDK() = %q", got)
	}
	if got := s.OutputName(); got != "out/abi.json" {
		t.Errorf("OutputName() = %q", got)
	}
	if got := s.Subdir(); got != DefaultTargetSubdir {
		t.Errorf("Subdir() = %q, want default", got)
	}
	if got := s.Excluded(); len(got) != 1 || got[0] != "shared" {
		t.Errorf("Excluded() = %v", got)
	}
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoad_FileNotExist(t *testing.T) {
	s, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("expected nil error for missing file, got: %v", err)
	}
	if s != nil {
		t.Fatalf("expected nil settings for missing file, got: %+v", s)
	}
}

func writeSettings(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, Dir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(Path(dir), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	writeSettings(t, dir, `
sdk_crate: near-sdk-fork
exclude_deps:
  - shared
  - "tools"
`)

	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s == nil {
		t.Fatal("expected non-nil settings")
	}
	if s.SDK() != "near-sdk-fork" {
		t.Errorf("SDK() = %q", s.SDK())
	}
	if s.OutputName() != DefaultOutput {
		t.Errorf("OutputName() = %q, want default", s.OutputName())
	}
	if len(s.Excluded()) != 2 {
		t.Fatalf("expected 2 excluded deps, got %d", len(s.Excluded()))
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeSettings(t, dir, "sdk_crate: [unterminated\n")
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_OutputEscapesTarget(t *testing.T) {
	for _, output := range []string{"../../abi.json", "..", ".", "sub/..", "/tmp/abi.json"} {
		dir := t.TempDir()
		writeSettings(t, dir, "output: \""+output+"\"\n")
		if _, err := Load(dir); err == nil {
			t.Errorf("output %q: expected error for a path that is not inside the target directory", output)
		}
	}
}

func TestLoad_OutputInsideTarget(t *testing.T) {
	for _, output := range []string{"..abi.json", "abi/../contract.json", "near/abi.json"} {
		dir := t.TempDir()
		writeSettings(t, dir, "output: \""+output+"\"\n")
		s, err := Load(dir)
		if err != nil {
			t.Errorf("output %q: %v", output, err)
			continue
		}
		if s.OutputName() != output {
			t.Errorf("OutputName() = %q, want %q", s.OutputName(), output)
		}
	}
}

func TestDefaultsMatchOwners(t *testing.T) {
	var s *Settings
	if s.SDK() != manifest.DefaultSDKCrate {
		t.Errorf("SDK() = %q, want %q", s.SDK(), manifest.DefaultSDKCrate)
	}
	if s.OutputName() != abi.FileName {
		t.Errorf("OutputName() = %q, want %q", s.OutputName(), abi.FileName)
	}
	if s.Subdir() != metadata.DefaultTargetSubdir {
		t.Errorf("Subdir() = %q, want %q", s.Subdir(), metadata.DefaultTargetSubdir)
	}
}

// ---------------------------------------------------------------------------
// Init
// ---------------------------------------------------------------------------

func TestQuestions_KeysMatchYAML(t *testing.T) {
	want := []string{"sdk_crate", "output", "target_subdir", "exclude_deps"}
	qs := Questions()
	if len(qs) != len(want) {
		t.Fatalf("got %d questions, want %d", len(qs), len(want))
	}
	for i, q := range qs {
		if q.Key != want[i] {
			t.Errorf("question %d key = %q, want %q", i, q.Key, want[i])
		}
		if q.Prompt == "" {
			t.Errorf("question %q has no prompt", q.Key)
		}
	}
}

func TestFromAnswers(t *testing.T) {
	s := FromAnswers(map[string]string{
		"sdk_crate":     "near-sdk",
		"output":        " contract.json ",
		"target_subdir": "",
		"exclude_deps":  "shared, tools,,",
	})
	if s.SDKCrate != "" {
		t.Errorf("default SDK should be left unset, got %q", s.SDKCrate)
	}
	if s.Output != "contract.json" {
		t.Errorf("Output = %q", s.Output)
	}
	if len(s.ExcludeDeps) != 2 || s.ExcludeDeps[0] != "shared" || s.ExcludeDeps[1] != "tools" {
		t.Errorf("ExcludeDeps = %v", s.ExcludeDeps)
	}
}

func TestWrite_RoundTripAndRefuseOverwrite(t *testing.T) {
	dir := t.TempDir()
	in := &Settings{Output: "contract.json", ExcludeDeps: []string{"shared"}}
	if err := Write(dir, in); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.OutputName() != "contract.json" || out.SDK() != DefaultSDKCrate {
		t.Errorf("round trip mismatch: %+v", out)
	}

	if err := Write(dir, in); err == nil {
		t.Fatal("expected error writing over existing settings")
	}
}
