package tradingapi

import (
	"encoding/json"
	"html"
	"net/http"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/ericfisherdev/profitpilot/internal/domain/model"
)

// messagePolicy strips all markup from server-supplied messages before they
// are shown to the user.
var messagePolicy = bluemonday.StrictPolicy()

// maxMessageLen caps the length of a server message shown to the user.
const maxMessageLen = 300

// errorBody is the failure body returned by the backend.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// classify maps a non-200 HTTP response of op to the failure taxonomy.
// message is the sanitized server message and may be empty.
//
//	op                  401           403             404               other
//	check_subscription  AuthExpired   NoSubscription  NoSubscription    Unknown
//	start_trading       AuthExpired   Unknown         StartRejected     Unknown
//	stop_trading        AuthExpired   Unknown         StopRejected      Unknown
//	login               InvalidCreds  Unknown         NotFound          Unknown
//	logout              AuthExpired   Unknown         NotFound          Unknown
func classify(op model.Operation, status int, message string) *model.TradingError {
	kind := model.KindUnknown

	switch op {
	case model.OpCheckSubscription:
		switch status {
		case http.StatusNotFound, http.StatusForbidden:
			kind = model.KindNoSubscription
		case http.StatusUnauthorized:
			kind = model.KindAuthExpired
		}
	case model.OpStartTrading:
		switch status {
		case http.StatusNotFound:
			kind = model.KindStartRejected
		case http.StatusUnauthorized:
			kind = model.KindAuthExpired
		}
	case model.OpStopTrading:
		switch status {
		case http.StatusNotFound:
			kind = model.KindStopRejected
		case http.StatusUnauthorized:
			kind = model.KindAuthExpired
		}
	case model.OpLogin:
		switch status {
		case http.StatusNotFound:
			kind = model.KindNotFound
		case http.StatusUnauthorized:
			kind = model.KindInvalidCredentials
		}
	case model.OpLogout:
		switch status {
		case http.StatusNotFound:
			kind = model.KindNotFound
		case http.StatusUnauthorized:
			kind = model.KindAuthExpired
		}
	case model.OpFetchCatalog:
		kind = model.KindCatalogUnavailable
	}

	if message == "" {
		message = defaultMessage(kind)
	}

	return &model.TradingError{
		Op:         op,
		Kind:       kind,
		StatusCode: status,
		Message:    message,
	}
}

// transportError reports a call that never produced an HTTP response.
func transportError(op model.Operation, err error) *model.TradingError {
	return &model.TradingError{
		Op:      op,
		Kind:    model.KindTransport,
		Message: model.MsgTransport,
		Err:     err,
	}
}

func defaultMessage(kind model.ErrorKind) string {
	switch kind {
	case model.KindNoSubscription:
		return model.MsgNoSubscription
	case model.KindAuthExpired:
		return model.MsgNotSignedIn
	case model.KindCatalogUnavailable:
		return model.MsgCatalogUnavailable
	case model.KindTransport:
		return model.MsgTransport
	default:
		return model.MsgUnknown
	}
}

// serverMessage extracts the user-facing message from a failure body.
// Non-JSON bodies yield "".
func serverMessage(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}

	msg := body.Error
	if msg == "" {
		msg = body.Message
	}

	// Sanitize escapes entities; the message is plain text, not HTML.
	msg = strings.TrimSpace(html.UnescapeString(messagePolicy.Sanitize(msg)))
	if runes := []rune(msg); len(runes) > maxMessageLen {
		msg = strings.TrimSpace(string(runes[:maxMessageLen])) + "..."
	}
	return msg
}
