package model

import "time"

// SessionStatus represents the lifecycle state of a trading session.
type SessionStatus string

const (
	SessionNotStarted           SessionStatus = "not_started"
	SessionCheckingSubscription SessionStatus = "checking_subscription"
	SessionStarting             SessionStatus = "starting"
	SessionInProgress           SessionStatus = "in_progress"
	SessionStopping             SessionStatus = "stopping"
	SessionStopped              SessionStatus = "stopped"
	SessionFailed               SessionStatus = "failed"
)

// InProgressLabel is the TradingStatus value written to the session record
// while a session is active. It is the only label checked on restore.
const InProgressLabel = "In progress"

// Label returns the text shown to the user for the status.
func (s SessionStatus) Label() string {
	switch s {
	case SessionNotStarted:
		return "Not Started"
	case SessionCheckingSubscription:
		return "Checking subscription..."
	case SessionStarting:
		return "Starting, please wait..."
	case SessionInProgress:
		return InProgressLabel
	case SessionStopping:
		return "Stopping, please wait..."
	case SessionStopped:
		return "Stopped"
	case SessionFailed:
		return "Failed"
	default:
		return string(s)
	}
}

// IsIdle reports whether a new session may be started from this status.
// NotStarted, Stopped and Failed differ only in the last message shown.
func (s SessionStatus) IsIdle() bool {
	return s == SessionNotStarted || s == SessionStopped || s == SessionFailed
}

// SessionSnapshot is the read-only view of the controller state handed to UIs.
type SessionSnapshot struct {
	Status  SessionStatus
	Label   string
	Message string

	// ErrorKind and Action are set when the last operation failed.
	ErrorKind ErrorKind
	Action    UserAction

	// StopUnconfirmed is true when a stop request was issued but the server
	// never confirmed it. The remote session may still be trading.
	StopUnconfirmed bool
	Busy            bool
	UpdatedAt       time.Time
}

// CanStart reports whether a start request would be accepted.
func (s SessionSnapshot) CanStart() bool {
	return !s.Busy && s.Status.IsIdle()
}

// CanStop reports whether a stop request would be accepted.
func (s SessionSnapshot) CanStop() bool {
	if s.Busy {
		return false
	}
	return s.Status == SessionInProgress || (s.Status.IsIdle() && s.StopUnconfirmed)
}

// EventType distinguishes the kinds of session events.
type EventType string

const (
	EventState EventType = "state"
	EventError EventType = "error"
)

// SessionEvent is published by the controller on every state change and on
// every reported error.
type SessionEvent struct {
	Type        EventType
	OperationID string
	Snapshot    SessionSnapshot
	ErrorKind   ErrorKind
	Message     string
	At          time.Time
}
