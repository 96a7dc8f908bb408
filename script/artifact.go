package script

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrGenerationFailed is returned when the model emits empty or truncated
	// code. Generation failures are fatal to the workflow.
	ErrGenerationFailed = errors.New("script generation failed")

	// ErrInvalidFramework is returned when the framework tag is unknown.
	ErrInvalidFramework = errors.New("invalid framework")
)

// Framework tags the automation framework a script targets.
type Framework string

const (
	FrameworkPlaywright Framework = "playwright"
	FrameworkSelenium   Framework = "selenium"
)

// IsValid checks if the framework is valid.
func (f Framework) IsValid() bool {
	switch f {
	case FrameworkPlaywright, FrameworkSelenium:
		return true
	default:
		return false
	}
}

// Artifact is a generated, versioned test program. Artifacts are immutable:
// a repair constructs a new Artifact with the attempt number incremented,
// never an in-place edit.
type Artifact struct {
	ID        uuid.UUID `json:"id"`
	Framework Framework `json:"framework"`
	Source    string    `json:"source"`
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"created_at"`
}

// NewArtifact creates the first-attempt artifact for a generated source.
func NewArtifact(framework Framework, source string) *Artifact {
	return &Artifact{
		ID:        uuid.New(),
		Framework: framework,
		Source:    source,
		Attempt:   1,
		CreatedAt: time.Now(),
	}
}

// NextAttempt creates a repaired successor of this artifact. The attempt
// number strictly increases; everything else about the original is retained.
func (a *Artifact) NextAttempt(source string) *Artifact {
	return &Artifact{
		ID:        uuid.New(),
		Framework: a.Framework,
		Source:    source,
		Attempt:   a.Attempt + 1,
		CreatedAt: time.Now(),
	}
}

// FileName returns the artifact's on-disk name within a run directory.
func (a *Artifact) FileName() string {
	return "test_generated.py"
}
