package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed remote operation.
type ErrorKind string

const (
	KindTransport          ErrorKind = "transport"
	KindAuthExpired        ErrorKind = "auth_expired"
	KindNotFound           ErrorKind = "resource_not_found"
	KindNoSubscription     ErrorKind = "no_active_subscription"
	KindStartRejected      ErrorKind = "start_rejected"
	KindStopRejected       ErrorKind = "stop_rejected"
	KindCatalogUnavailable ErrorKind = "catalog_unavailable"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindStorage            ErrorKind = "storage"
	KindUnknown            ErrorKind = "unknown"
)

// UserAction is the follow-up a UI should offer for a failure.
type UserAction string

const (
	ActionNone      UserAction = ""
	ActionSubscribe UserAction = "subscribe"
	ActionLogin     UserAction = "login"
)

// Action returns the UI follow-up for the kind. A missing subscription routes
// to the purchase flow; an expired credential routes to login.
func (k ErrorKind) Action() UserAction {
	switch k {
	case KindNoSubscription:
		return ActionSubscribe
	case KindAuthExpired:
		return ActionLogin
	default:
		return ActionNone
	}
}

// Operation names a remote call for error reporting.
type Operation string

const (
	OpFetchCatalog      Operation = "fetch_broker_catalog"
	OpCheckSubscription Operation = "check_subscription"
	OpStartTrading      Operation = "start_trading"
	OpStopTrading       Operation = "stop_trading"
	OpLogin             Operation = "login"
	OpLogout            Operation = "logout"
)

// Default user-facing messages for failures without a server message.
const (
	MsgTransport          = "Something went wrong on our side."
	MsgUnknown            = "An error occurred. Please try again."
	MsgCatalogUnavailable = "Failed to fetch broker servers"
	MsgNoSubscription     = "You have no subscription with us, please subscribe."
	MsgNotSignedIn        = "You are not signed in. Please log in again."
	MsgStopped            = "Trading has Stopped"
	MsgStopUnconfirmed    = "The last stop request was not confirmed by the server. Trading may still be running."
)

// TradingError is the classified failure of a remote operation.
type TradingError struct {
	Op         Operation
	Kind       ErrorKind
	StatusCode int

	// Message is safe to show to the user.
	Message string
	Err     error
}

func (e *TradingError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d): %s", e.Op, e.Kind, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *TradingError) Unwrap() error {
	return e.Err
}

// AsTradingError extracts a *TradingError from err. Errors that are not
// classified become KindUnknown failures of op.
func AsTradingError(op Operation, err error) *TradingError {
	var te *TradingError
	if errors.As(err, &te) {
		return te
	}
	return &TradingError{Op: op, Kind: KindUnknown, Message: MsgUnknown, Err: err}
}

// KindOf returns the ErrorKind carried by err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var te *TradingError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}
