package driven

import (
	"context"

	"github.com/ericfisherdev/profitpilot/internal/domain/model"
)

// TradingAPI defines the driven port for the remote trading service.
// Every method is single-shot; failures are returned as *model.TradingError
// classified into the shared taxonomy.
type TradingAPI interface {
	// FetchBrokerCatalog returns the broker to server-name mapping. With
	// revalidate set, a cached copy is never served without asking the server.
	FetchBrokerCatalog(ctx context.Context, revalidate bool) (model.BrokerCatalog, error)

	// CheckSubscription verifies that token belongs to a user with an active
	// subscription. A nil error means the gated call may proceed.
	CheckSubscription(ctx context.Context, token string) error

	// StartTrading starts the server-side session.
	StartTrading(ctx context.Context, token string, params model.TradingParameters) error

	// StopTrading stops the server-side session.
	StopTrading(ctx context.Context, token string) error
}

// AuthAPI defines the driven port for remote authentication.
type AuthAPI interface {
	// Login exchanges email and password for a bearer token.
	Login(ctx context.Context, email, password string) (string, error)

	// Logout invalidates token on the server.
	Logout(ctx context.Context, token string) error
}
