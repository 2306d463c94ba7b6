package model

// SessionPhase is the three-state persisted view of the remote session.
// Stopping survives a failed stop so that a restart does not silently
// report an idle session the server may still be running.
type SessionPhase string

const (
	PhaseIdle     SessionPhase = "idle"
	PhaseActive   SessionPhase = "active"
	PhaseStopping SessionPhase = "stopping"
)

// SessionRecord is the durable subset of session state. Trading and Status
// are always written together.
type SessionRecord struct {
	Trading bool
	Status  string
	Phase   SessionPhase
}

// ActiveRecord returns the record written after a confirmed start.
func ActiveRecord() SessionRecord {
	return SessionRecord{Trading: true, Status: InProgressLabel, Phase: PhaseActive}
}

// IsActive reports whether the record describes a running session: the
// trading flag is set and the label is exactly InProgressLabel.
func (r SessionRecord) IsActive() bool {
	return r.Trading && r.Status == InProgressLabel
}

// IsZero reports whether nothing is persisted.
func (r SessionRecord) IsZero() bool {
	return !r.Trading && r.Status == "" && (r.Phase == "" || r.Phase == PhaseIdle)
}
