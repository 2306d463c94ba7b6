package application_test

import (
	"context"
	"net/http"
	"sync"

	"github.com/ericfisherdev/profitpilot/internal/domain/model"
	"github.com/ericfisherdev/profitpilot/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockTradingAPI struct {
	mu sync.Mutex

	catalog    model.BrokerCatalog
	catalogErr error
	subErr     error
	startErr   error
	stopErr    error
	loginToken string
	loginErr   error
	logoutErr  error

	// Optional gates: when set, the call signals entered and blocks on release.
	catalogEntered chan struct{}
	catalogRelease chan struct{}
	subEntered     chan struct{}
	subRelease     chan struct{}
	stopEntered    chan struct{}
	stopRelease    chan struct{}
	onStop         func(ctx context.Context)
	onSubscribe    func(ctx context.Context)
	onLogout       func(ctx context.Context)

	catalogCalls  int
	revalidations []bool
	subCalls      int
	startCalls    int
	stopCalls     int
	logoutCalls   int
	lastToken     string
	lastParams    model.TradingParameters
}

var (
	_ driven.TradingAPI = (*mockTradingAPI)(nil)
	_ driven.AuthAPI    = (*mockTradingAPI)(nil)
)

func (m *mockTradingAPI) FetchBrokerCatalog(ctx context.Context, revalidate bool) (model.BrokerCatalog, error) {
	m.mu.Lock()
	m.catalogCalls++
	m.revalidations = append(m.revalidations, revalidate)
	entered, release := m.catalogEntered, m.catalogRelease
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.catalogErr != nil {
		return nil, m.catalogErr
	}
	return m.catalog.Clone(), nil
}

func (m *mockTradingAPI) CheckSubscription(ctx context.Context, token string) error {
	m.mu.Lock()
	m.subCalls++
	m.lastToken = token
	entered, release, hook := m.subEntered, m.subRelease, m.onSubscribe
	m.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if entered != nil {
		entered <- struct{}{}
		<-release
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subErr
}

func (m *mockTradingAPI) StartTrading(_ context.Context, token string, params model.TradingParameters) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCalls++
	m.lastToken = token
	m.lastParams = params
	return m.startErr
}

func (m *mockTradingAPI) StopTrading(ctx context.Context, token string) error {
	m.mu.Lock()
	m.stopCalls++
	m.lastToken = token
	entered, release, hook := m.stopEntered, m.stopRelease, m.onStop
	m.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if entered != nil {
		entered <- struct{}{}
		<-release
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopErr
}

func (m *mockTradingAPI) Login(_ context.Context, _, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loginToken, m.loginErr
}

func (m *mockTradingAPI) Logout(ctx context.Context, token string) error {
	m.mu.Lock()
	m.logoutCalls++
	m.lastToken = token
	hook := m.onLogout
	m.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logoutErr
}

func (m *mockTradingAPI) calls() (sub, start, stop int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subCalls, m.startCalls, m.stopCalls
}

func (m *mockTradingAPI) catalogCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalogCalls
}

func (m *mockTradingAPI) catalogRevalidations() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bool(nil), m.revalidations...)
}

type mockSecretStore struct {
	mu      sync.Mutex
	values  map[string]string
	getErr  error
	setErr  error
	cleared int
}

func newSecretStore(token string) *mockSecretStore {
	s := &mockSecretStore{values: map[string]string{}}
	if token != "" {
		s.values[driven.TokenKey] = token
	}
	return s
}

func (m *mockSecretStore) Set(_ context.Context, key, plaintext string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = plaintext
	return nil
}

func (m *mockSecretStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.values[key], nil
}

func (m *mockSecretStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *mockSecretStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = map[string]string{}
	m.cleared++
	return nil
}

type mockSessionStore struct {
	mu       sync.Mutex
	record   model.SessionRecord
	saves    []model.SessionRecord
	clears   int
	loadErr  error
	saveErr  error
	clearErr error
}

func (m *mockSessionStore) Load(_ context.Context) (model.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return model.SessionRecord{}, m.loadErr
	}
	return m.record, nil
}

func (m *mockSessionStore) Save(_ context.Context, record model.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.record = record
	m.saves = append(m.saves, record)
	return nil
}

func (m *mockSessionStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearErr != nil {
		return m.clearErr
	}
	m.record = model.SessionRecord{}
	m.clears++
	return nil
}

func (m *mockSessionStore) current() model.SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record
}

func (m *mockSessionStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves)
}

// rejected builds the classified failure the trading API client returns.
func rejected(op model.Operation, kind model.ErrorKind, status int, message string) error {
	return &model.TradingError{Op: op, Kind: kind, StatusCode: status, Message: message}
}

var (
	errNoSubscription = rejected(model.OpCheckSubscription, model.KindNoSubscription, http.StatusForbidden, "No subscription")
	errSessionExpired = rejected(model.OpStopTrading, model.KindAuthExpired, http.StatusUnauthorized, "Session expired")
)

var validParams = model.TradingParameters{
	Broker:   "Exness",
	Login:    "12345678",
	Password: "s3cret",
	Server:   "Exness-MT5Trial7",
	Profit:   "50",
}
