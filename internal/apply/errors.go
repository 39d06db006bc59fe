package apply

import (
	"errors"
	"fmt"
)

// SecurityPolicyError reports a rule payload that the active policy forbids.
// It is a hard failure: the simulation is not recorded.
type SecurityPolicyError struct {
	// Source is "document" when the built rules carry an expression step and
	// "payload" when the raw payload does.
	Source string

	// Path locates the offending transform in the raw payload, if known.
	Path string
}

// Error implements the error interface.
func (e *SecurityPolicyError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("security policy: expression transforms are disallowed (%s at %s)", e.Source, e.Path)
	}
	return fmt.Sprintf("security policy: expression transforms are disallowed (%s)", e.Source)
}

// StateReason explains why Apply refused a simulation.
type StateReason string

const (
	// ReasonUnknown indicates the id was never issued or has been evicted.
	ReasonUnknown StateReason = "unknown"

	// ReasonAlreadyApplied indicates the simulation was applied before.
	ReasonAlreadyApplied StateReason = "already_applied"

	// ReasonFailedSimulation indicates the simulation did not pass.
	ReasonFailedSimulation StateReason = "failed_simulation"

	// ReasonStale indicates the simulation is older than the TTL.
	ReasonStale StateReason = "stale"

	// ReasonPayloadDrift indicates the rule payload changed since simulation.
	ReasonPayloadDrift StateReason = "payload_drift"
)

// ApplyStateError reports a refused Apply. Nothing was written.
type ApplyStateError struct {
	SimulationID int64
	Reason       StateReason
	Detail       string
}

// Error implements the error interface.
func (e *ApplyStateError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("apply simulation %d refused: %s: %s", e.SimulationID, e.Reason, e.Detail)
	}
	return fmt.Sprintf("apply simulation %d refused: %s", e.SimulationID, e.Reason)
}

// IsSecurityPolicy returns true if err is a policy violation.
// Uses errors.As to handle wrapped errors.
func IsSecurityPolicy(err error) bool {
	var pe *SecurityPolicyError
	return errors.As(err, &pe)
}

// IsStateReason returns true if err is an ApplyStateError with the given
// reason.
func IsStateReason(err error, reason StateReason) bool {
	var se *ApplyStateError
	if errors.As(err, &se) {
		return se.Reason == reason
	}
	return false
}
