// Package tradingapi implements the TradingAPI and AuthAPI ports against the
// ProfitPilot REST backend.
package tradingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/profitpilot/internal/domain/model"
	"github.com/ericfisherdev/profitpilot/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.TradingAPI = (*Client)(nil)
	_ driven.AuthAPI    = (*Client)(nil)
)

// Remote endpoint paths, relative to the base URL.
const (
	pathBrokerServers     = "/trading/broker-servers"
	pathCheckSubscription = "/subscriptions/check-subscription"
	pathStartTrading      = "/trading/Start-trading"
	pathStopTrading       = "/trading/Stop-trading"
	pathLogin             = "/auth/login"
	pathLogout            = "/auth/logOut"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 1 << 20

// Client implements the driven.TradingAPI and driven.AuthAPI ports.
type Client struct {
	http    *http.Client
	baseURL *url.URL
}

// NewClient creates a client for the backend at baseURL with the following
// transport stack:
//  1. httpcache (ETag-based revalidation of the broker catalog GET)
//  2. net/http default transport
//
// timeout bounds every call; an expired timeout surfaces as a transport error.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	return NewClientWithHTTPClient(&http.Client{Transport: cacheTransport, Timeout: timeout}, baseURL)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// Tests use it to point the client at an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parsing base URL %q: scheme and host are required", baseURL)
	}

	return &Client{http: httpClient, baseURL: u}, nil
}

// tokenRequest is the body of every call that only carries the credential.
type tokenRequest struct {
	Token string `json:"token"`
}

// startRequest is the body of the start-trading call.
type startRequest struct {
	Token          string `json:"token"`
	Login          string `json:"login"`
	SelectedBroker string `json:"selectedBroker"`
	ServerName     string `json:"serverName"`
	Password       string `json:"password"`
	Profit         string `json:"profit"`
	SelectedPair   string `json:"selectedPair,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// FetchBrokerCatalog retrieves the broker to server-name mapping. Every
// failure is reported as KindCatalogUnavailable. revalidate sends
// Cache-Control: no-cache so httpcache goes to the server even when the
// cached response is still fresh.
func (c *Client) FetchBrokerCatalog(ctx context.Context, revalidate bool) (model.BrokerCatalog, error) {
	unavailable := func(status int, err error) error {
		return &model.TradingError{
			Op:         model.OpFetchCatalog,
			Kind:       model.KindCatalogUnavailable,
			StatusCode: status,
			Message:    model.MsgCatalogUnavailable,
			Err:        err,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(pathBrokerServers), nil)
	if err != nil {
		return nil, unavailable(0, err)
	}
	req.Header.Set("Accept", "application/json")
	if revalidate {
		req.Header.Set("Cache-Control", "no-cache")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, unavailable(0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, unavailable(resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var catalog model.BrokerCatalog
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&catalog); err != nil {
		return nil, unavailable(0, fmt.Errorf("decoding broker catalog: %w", err))
	}
	if catalog == nil {
		catalog = model.BrokerCatalog{}
	}

	slog.Debug("broker catalog fetched",
		"brokers", len(catalog),
		"from_cache", resp.Header.Get(httpcache.XFromCache) == "1",
		"revalidate", revalidate,
	)

	return catalog, nil
}

// CheckSubscription verifies that token has an active subscription.
func (c *Client) CheckSubscription(ctx context.Context, token string) error {
	_, err := c.post(ctx, model.OpCheckSubscription, pathCheckSubscription, tokenRequest{Token: token})
	return err
}

// StartTrading starts the server-side trading session.
func (c *Client) StartTrading(ctx context.Context, token string, params model.TradingParameters) error {
	body := startRequest{
		Token:          token,
		Login:          params.Login,
		SelectedBroker: params.Broker,
		ServerName:     params.Server,
		Password:       params.Password,
		Profit:         params.Profit,
		SelectedPair:   params.Pair,
	}
	_, err := c.post(ctx, model.OpStartTrading, pathStartTrading, body)
	return err
}

// StopTrading stops the server-side trading session.
func (c *Client) StopTrading(ctx context.Context, token string) error {
	_, err := c.post(ctx, model.OpStopTrading, pathStopTrading, tokenRequest{Token: token})
	return err
}

// Login exchanges email and password for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	data, err := c.post(ctx, model.OpLogin, pathLogin, loginRequest{Email: email, Password: password})
	if err != nil {
		return "", err
	}

	var resp loginResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", &model.TradingError{Op: model.OpLogin, Kind: model.KindUnknown, Message: model.MsgUnknown, Err: fmt.Errorf("decoding login response: %w", err)}
	}
	if resp.Token == "" {
		return "", &model.TradingError{Op: model.OpLogin, Kind: model.KindUnknown, Message: model.MsgUnknown, Err: errors.New("login response carried no token")}
	}
	return resp.Token, nil
}

// Logout invalidates token on the server.
func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.post(ctx, model.OpLogout, pathLogout, tokenRequest{Token: token})
	return err
}

// post sends body as JSON and returns the response body on HTTP 200.
// Any other outcome is classified into a *model.TradingError.
func (c *Client) post(ctx context.Context, op model.Operation, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &model.TradingError{Op: op, Kind: model.KindUnknown, Message: model.MsgUnknown, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(payload))
	if err != nil {
		return nil, &model.TradingError{Op: op, Kind: model.KindUnknown, Message: model.MsgUnknown, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("trading api request failed", "op", op, "error", err)
		return nil, transportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, transportError(op, fmt.Errorf("reading response: %w", err))
	}

	slog.Debug("trading api call",
		"op", op,
		"status", resp.StatusCode,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	if resp.StatusCode == http.StatusOK {
		return data, nil
	}

	return nil, classify(op, resp.StatusCode, serverMessage(data))
}

func (c *Client) endpoint(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}
