package model

import "strings"

// TradingParameters are the inputs of a start request. Login and Password
// are held in memory only and passed straight through to the remote call.
type TradingParameters struct {
	Broker   string
	Login    string
	Password string
	Server   string
	Profit   string

	// Pair is the currency-pair selector of earlier protocol revisions.
	// It is optional and omitted from the request when empty.
	Pair string
}

// Missing returns the names of required fields that are empty or blank, in
// form order.
func (p TradingParameters) Missing() []string {
	var missing []string
	if blank(p.Broker) {
		missing = append(missing, "broker")
	}
	if blank(p.Server) {
		missing = append(missing, "server")
	}
	if blank(p.Login) {
		missing = append(missing, "login")
	}
	if blank(p.Password) {
		missing = append(missing, "password")
	}
	if blank(p.Profit) {
		missing = append(missing, "profit")
	}
	return missing
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// SupportedPairs lists the currency pairs the pair selector offers.
var SupportedPairs = []string{
	"EUR/USD",
	"GBP/USD",
	"USD/JPY",
	"AUD/USD",
	"USD/CAD",
	"USD/CHF",
}
