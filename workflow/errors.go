package workflow

import "errors"

var (
	// ErrRepairExhausted is returned when the repair loop runs out of
	// attempts without an accepted artifact. It always travels with the full
	// defect and version history, never an empty result.
	ErrRepairExhausted = errors.New("repair attempts exhausted")

	// ErrValidatorContract is returned when the validator's rejection lacks
	// a defect list or a repaired artifact at the next attempt number. The
	// controller fails fast on this rather than looping.
	ErrValidatorContract = errors.New("validator contract violation")

	// ErrNoArtifact is returned when the repair loop is started without a
	// seeded artifact.
	ErrNoArtifact = errors.New("repair loop requires a generated artifact")
)
