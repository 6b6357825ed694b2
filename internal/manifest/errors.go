package manifest

import (
	"errors"
	"fmt"
)

var (
	// ErrSectionNotFound is wrapped by SectionError when a required section
	// or key is absent.
	ErrSectionNotFound = errors.New("section not found")
	// ErrSectionShape is wrapped by SectionError when a section has the wrong
	// TOML type.
	ErrSectionShape = errors.New("section has the wrong shape")
)

// SectionError reports a structural problem with one manifest section.
type SectionError struct {
	Manifest string
	Section  string
	// Want is the expected TOML type for shape errors, empty for missing
	// sections.
	Want string
}

func (e *SectionError) Error() string {
	if e.Want == "" {
		return fmt.Sprintf("%s: %s section not found", e.Manifest, e.Section)
	}
	return fmt.Sprintf("%s: %s should be %s", e.Manifest, e.Section, e.Want)
}

func (e *SectionError) Unwrap() error {
	if e.Want == "" {
		return ErrSectionNotFound
	}
	return ErrSectionShape
}
