package script

import (
	"errors"
	"time"
)

// DefectKind is the closed set of defect categories the validator may
// report. Keeping the set closed keeps the repair loop's termination logic
// decidable; free-text categories are deliberately not allowed.
type DefectKind string

const (
	// DefectMissingImport means a required framework import is absent.
	DefectMissingImport DefectKind = "missing_import"

	// DefectMissingEntrypoint means no test function is defined.
	DefectMissingEntrypoint DefectKind = "missing_entrypoint"

	// DefectMissingAssertion means the script verifies nothing.
	DefectMissingAssertion DefectKind = "missing_assertion"

	// DefectForbiddenPattern means the script uses a construct the execution
	// sandbox does not allow (interactive input, subprocess spawning, eval).
	DefectForbiddenPattern DefectKind = "forbidden_pattern"

	// DefectSyntax means the source is not parseable as a standalone program.
	DefectSyntax DefectKind = "syntax"
)

// IsValid checks if the defect kind belongs to the closed set.
func (k DefectKind) IsValid() bool {
	switch k {
	case DefectMissingImport, DefectMissingEntrypoint, DefectMissingAssertion,
		DefectForbiddenPattern, DefectSyntax:
		return true
	default:
		return false
	}
}

// Defect describes one problem found in an artifact.
type Defect struct {
	Kind        DefectKind `json:"kind"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description"`
}

// ErrVerdictContract is returned when a verdict violates the validator
// contract (a rejection without defects or without a repair at attempt+1).
// This is a bug in the validator, not a recoverable runtime condition.
var ErrVerdictContract = errors.New("verdict violates validator contract")

// Verdict is the outcome of checking one artifact. An accepted verdict has
// no defects and no repair; a rejected verdict carries at least one defect
// and a repaired artifact at the next attempt number.
type Verdict struct {
	Accepted  bool      `json:"accepted"`
	Attempt   int       `json:"attempt"`
	Defects   []Defect  `json:"defects,omitempty"`
	Repaired  *Artifact `json:"repaired,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// CheckContract verifies the verdict invariants against the artifact it
// judged. Callers should fail fast on a violation rather than loop.
func (v *Verdict) CheckContract(checked *Artifact) error {
	if v.Accepted {
		if len(v.Defects) != 0 || v.Repaired != nil {
			return ErrVerdictContract
		}
		return nil
	}

	if len(v.Defects) == 0 {
		return ErrVerdictContract
	}
	for _, d := range v.Defects {
		if !d.Kind.IsValid() {
			return ErrVerdictContract
		}
	}
	if v.Repaired == nil {
		return ErrVerdictContract
	}
	if v.Repaired.Attempt != checked.Attempt+1 {
		return ErrVerdictContract
	}
	return nil
}
