// Package settings loads cargo-abi configuration from
// .cargo-abi/settings.yaml next to the contract manifest.
//
// Every key is optional; an absent file means all defaults.
//
//	sdk_crate: near-sdk        # dependency copied into the driver
//	output: abi.json           # artifact name inside the target directory
//	target_subdir: abi-gen     # driver build directory inside the target directory
//	exclude_deps: [shared]     # path dependencies to keep relative
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"cargoabi/internal/abi"
	"cargoabi/internal/manifest"
	"cargoabi/internal/metadata"
)

const (
	Dir      = ".cargo-abi"
	FileName = "settings.yaml"

	DefaultSDKCrate     = manifest.DefaultSDKCrate
	DefaultOutput       = abi.FileName
	DefaultTargetSubdir = metadata.DefaultTargetSubdir
)

// Settings holds cargo-abi configuration.
type Settings struct {
	SDKCrate     string   `yaml:"sdk_crate,omitempty"`
	Output       string   `yaml:"output,omitempty"`
	TargetSubdir string   `yaml:"target_subdir,omitempty"`
	ExcludeDeps  []string `yaml:"exclude_deps,omitempty"`
}

// Path returns the settings file location for a crate rooted at root.
func Path(root string) string {
	return filepath.Join(root, Dir, FileName)
}

// Load reads the settings file under root.
// Returns nil (not an error) if the file does not exist.
func Load(root string) (*Settings, error) {
	path := Path(root)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}

func (s *Settings) validate() error {
	for key, v := range map[string]string{"output": s.Output, "target_subdir": s.TargetSubdir} {
		if v != "" && !insideTarget(v) {
			return fmt.Errorf("%s must name a path inside the target directory, got %q", key, v)
		}
	}
	return nil
}

// insideTarget reports whether the relative path p names an entry strictly
// below the directory it is joined to.
func insideTarget(p string) bool {
	if filepath.IsAbs(p) {
		return false
	}
	clean := filepath.Clean(p)
	return clean != "." && clean != ".." && !strings.HasPrefix(clean, ".."+string(filepath.Separator))
}

// The getters below are safe to call on a nil *Settings receiver.

func (s *Settings) SDK() string {
	if s == nil || s.SDKCrate == "" {
		return DefaultSDKCrate
	}
	return s.SDKCrate
}

func (s *Settings) OutputName() string {
	if s == nil || s.Output == "" {
		return DefaultOutput
	}
	return s.Output
}

func (s *Settings) Subdir() string {
	if s == nil || s.TargetSubdir == "" {
		return DefaultTargetSubdir
	}
	return s.TargetSubdir
}

func (s *Settings) Excluded() []string {
	if s == nil {
		return nil
	}
	return s.ExcludeDeps
}

// Question describes a single prompt asked by `cargo-abi init`.
type Question struct {
	Key     string
	Prompt  string
	Default string
}

// Questions lists the init prompts in the order they are asked.
func Questions() []Question {
	return []Question{
		{Key: "sdk_crate", Prompt: "SDK dependency to copy into the driver", Default: DefaultSDKCrate},
		{Key: "output", Prompt: "Artifact file name", Default: DefaultOutput},
		{Key: "target_subdir", Prompt: "Driver build directory (inside target)", Default: DefaultTargetSubdir},
		{Key: "exclude_deps", Prompt: "Path dependencies to keep relative (comma separated)"},
	}
}

// FromAnswers builds Settings from prompt answers keyed by Question.Key.
// Answers equal to the default are left unset.
func FromAnswers(answers map[string]string) *Settings {
	pick := func(key, def string) string {
		v := strings.TrimSpace(answers[key])
		if v == def {
			return ""
		}
		return v
	}
	s := &Settings{
		SDKCrate:     pick("sdk_crate", DefaultSDKCrate),
		Output:       pick("output", DefaultOutput),
		TargetSubdir: pick("target_subdir", DefaultTargetSubdir),
	}
	for _, dep := range strings.Split(answers["exclude_deps"], ",") {
		if dep = strings.TrimSpace(dep); dep != "" {
			s.ExcludeDeps = append(s.ExcludeDeps, dep)
		}
	}
	return s
}

// Write creates the settings file under root. Errors if it already exists.
func Write(root string, s *Settings) error {
	path := Path(root)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("settings already exist at %s", path)
	}
	if err := s.validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
