// Package form validates trading parameters entered through a UI before they
// reach the session controller.
package form

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ericfisherdev/profitpilot/internal/domain/model"
)

// ErrInvalidInput is wrapped by every validation failure.
var ErrInvalidInput = errors.New("invalid input")

// TradingForm is the raw start form. The same shape is accepted as a JSON
// request body and as a YAML parameters file.
type TradingForm struct {
	Broker   string `json:"broker" yaml:"broker"`
	Server   string `json:"server" yaml:"server"`
	Login    string `json:"login" yaml:"login"`
	Password string `json:"password" yaml:"password"`
	Profit   string `json:"profit" yaml:"profit"`
	Pair     string `json:"pair,omitempty" yaml:"pair,omitempty"`
}

// Parameters trims and validates the form. Empty required fields are passed
// through so the controller can report them as missing; fields that are
// present but malformed are rejected here. When catalog is non-empty and
// knows the broker, the server must be one of its servers.
func (f TradingForm) Parameters(catalog model.BrokerCatalog) (model.TradingParameters, error) {
	params := model.TradingParameters{
		Broker:   strings.TrimSpace(f.Broker),
		Server:   strings.TrimSpace(f.Server),
		Login:    strings.TrimSpace(f.Login),
		Password: f.Password,
		Profit:   strings.TrimSpace(f.Profit),
		Pair:     strings.ToUpper(strings.TrimSpace(f.Pair)),
	}

	if params.Profit != "" {
		if err := validateProfit(params.Profit); err != nil {
			return params, err
		}
	}

	if params.Pair != "" && !slices.Contains(model.SupportedPairs, params.Pair) {
		return params, fmt.Errorf("%w: unsupported pair %q (supported: %s)",
			ErrInvalidInput, params.Pair, strings.Join(model.SupportedPairs, ", "))
	}

	if len(catalog) > 0 && params.Broker != "" && params.Server != "" {
		if catalog.Servers(params.Broker) != nil && !catalog.HasServer(params.Broker, params.Server) {
			return params, fmt.Errorf("%w: server %q is not offered by %s", ErrInvalidInput, params.Server, params.Broker)
		}
	}

	return params, nil
}

func validateProfit(profit string) error {
	d, err := decimal.NewFromString(profit)
	if err != nil {
		return fmt.Errorf("%w: profit %q is not a number", ErrInvalidInput, profit)
	}
	if !d.IsPositive() {
		return fmt.Errorf("%w: profit must be greater than zero", ErrInvalidInput)
	}
	return nil
}
