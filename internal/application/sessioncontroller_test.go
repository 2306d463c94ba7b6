package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/profitpilot/internal/application"
	"github.com/ericfisherdev/profitpilot/internal/domain/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newController(api *mockTradingAPI, secrets *mockSecretStore, store *mockSessionStore) *application.SessionController {
	return application.NewSessionController(api, secrets, store, discardLogger())
}

// drain collects every event currently buffered on ch without blocking.
func drain(ch <-chan model.SessionEvent) []model.SessionEvent {
	var events []model.SessionEvent
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}

func stateSequence(events []model.SessionEvent) []model.SessionStatus {
	var seq []model.SessionStatus
	for _, ev := range events {
		if ev.Type == model.EventState {
			seq = append(seq, ev.Snapshot.Status)
		}
	}
	return seq
}

func errorKinds(events []model.SessionEvent) []model.ErrorKind {
	var kinds []model.ErrorKind
	for _, ev := range events {
		if ev.Type == model.EventError {
			kinds = append(kinds, ev.ErrorKind)
		}
	}
	return kinds
}

// --- Restore ---

func TestInitialize_RestoresActiveSession(t *testing.T) {
	api := &mockTradingAPI{}
	store := &mockSessionStore{record: model.ActiveRecord()}
	c := newController(api, newSecretStore("tok"), store)

	c.Initialize(context.Background())
	c.Wait()

	state := c.CurrentState()
	assert.Equal(t, model.SessionInProgress, state.Status)
	assert.Equal(t, "In progress", state.Label)
	assert.True(t, state.CanStop())
	assert.False(t, state.CanStart())

	sub, start, stop := api.calls()
	assert.Zero(t, sub)
	assert.Zero(t, start)
	assert.Zero(t, stop)
}

func TestInitialize_EmptyRecordIsNotStarted(t *testing.T) {
	c := newController(&mockTradingAPI{}, newSecretStore("tok"), &mockSessionStore{})

	c.Initialize(context.Background())
	c.Wait()

	state := c.CurrentState()
	assert.Equal(t, model.SessionNotStarted, state.Status)
	assert.Equal(t, "Not Started", state.Label)
	assert.True(t, state.CanStart())
	assert.False(t, state.CanStop())
}

func TestInitialize_OtherLabelIsNotStarted(t *testing.T) {
	store := &mockSessionStore{record: model.SessionRecord{Trading: true, Status: "Starting"}}
	c := newController(&mockTradingAPI{}, newSecretStore("tok"), store)

	c.Initialize(context.Background())
	c.Wait()

	assert.Equal(t, model.SessionNotStarted, c.CurrentState().Status)
}

func TestInitialize_StoppingPhaseSurfacesUnconfirmedStop(t *testing.T) {
	store := &mockSessionStore{record: model.SessionRecord{Phase: model.PhaseStopping}}
	c := newController(&mockTradingAPI{}, newSecretStore("tok"), store)

	c.Initialize(context.Background())
	c.Wait()

	state := c.CurrentState()
	assert.Equal(t, model.SessionNotStarted, state.Status)
	assert.True(t, state.StopUnconfirmed)
	assert.Equal(t, model.MsgStopUnconfirmed, state.Message)
	assert.True(t, state.CanStop())
}

func TestInitialize_LoadFailureReportsStorageError(t *testing.T) {
	store := &mockSessionStore{loadErr: errors.New("disk I/O error")}
	c := newController(&mockTradingAPI{}, newSecretStore("tok"), store)
	events, cancel := c.Subscribe(16)
	defer cancel()

	c.Initialize(context.Background())
	c.Wait()

	assert.Equal(t, model.SessionNotStarted, c.CurrentState().Status)
	assert.Contains(t, errorKinds(drain(events)), model.KindStorage)
}

func TestRestore_MakesNoNetworkCall(t *testing.T) {
	api := &mockTradingAPI{}
	c := newController(api, newSecretStore("tok"), &mockSessionStore{record: model.ActiveRecord()})

	c.Restore(context.Background())

	assert.Equal(t, model.SessionInProgress, c.CurrentState().Status)
	assert.Zero(t, api.catalogCallCount())
	sub, start, stop := api.calls()
	assert.Zero(t, sub+start+stop)
}

// --- Catalog ---

func TestInitialize_FetchesCatalog(t *testing.T) {
	api := &mockTradingAPI{catalog: model.BrokerCatalog{
		"Exness": {"Exness-MT5Trial7", "Exness-MT5Real"},
	}}
	c := newController(api, newSecretStore("tok"), &mockSessionStore{})

	c.Initialize(context.Background())
	c.Wait()

	assert.Equal(t, []string{"Exness"}, c.Catalog().Brokers())
	assert.Equal(t, []string{"Exness-MT5Trial7", "Exness-MT5Real"}, c.Catalog().Servers("Exness"))
	assert.Equal(t, 1, api.catalogCallCount())
	assert.Equal(t, []bool{false}, api.catalogRevalidations(), "startup fetch may be served from cache")
}

func TestRefreshCatalog_Revalidates(t *testing.T) {
	api := &mockTradingAPI{catalog: model.BrokerCatalog{"Exness": {"Exness-MT5Real"}}}
	c := newController(api, newSecretStore("tok"), &mockSessionStore{})

	catalog, err := c.RefreshCatalog(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Exness"}, catalog.Brokers())
	assert.Equal(t, []bool{true}, api.catalogRevalidations())
}

func TestRefreshCatalog_DetachedFromCallerCancellation(t *testing.T) {
	api := &mockTradingAPI{
		catalog:        model.BrokerCatalog{"Exness": {"Exness-MT5Real"}},
		catalogEntered: make(chan struct{}),
		catalogRelease: make(chan struct{}),
	}
	c := newController(api, newSecretStore("tok"), &mockSessionStore{})

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		catalog model.BrokerCatalog
		err     error
	}
	done := make(chan result, 1)
	go func() {
		catalog, err := c.RefreshCatalog(ctx)
		done <- result{catalog, err}
	}()

	<-api.catalogEntered
	cancel()
	close(api.catalogRelease)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, []string{"Exness"}, res.catalog.Brokers())
}

func TestInitialize_CatalogFailureLeavesCatalogEmpty(t *testing.T) {
	api := &mockTradingAPI{catalogErr: rejected(model.OpFetchCatalog, model.KindCatalogUnavailable, 500, model.MsgCatalogUnavailable)}
	c := newController(api, newSecretStore("tok"), &mockSessionStore{})
	events, cancel := c.Subscribe(16)
	defer cancel()

	c.Initialize(context.Background())
	c.Wait()

	assert.Empty(t, c.Catalog())
	assert.Empty(t, c.Catalog().Brokers())

	var found bool
	for _, ev := range drain(events) {
		if ev.Type == model.EventError && ev.ErrorKind == model.KindCatalogUnavailable {
			assert.Equal(t, "Failed to fetch broker servers", ev.Message)
			found = true
		}
	}
	assert.True(t, found, "expected a catalog error event")

	// Catalog failure does not affect session state.
	assert.Equal(t, model.SessionNotStarted, c.CurrentState().Status)
}

func TestRefreshCatalog_FailureKeepsPreviousCatalog(t *testing.T) {
	api := &mockTradingAPI{catalog: model.BrokerCatalog{"Exness": {"Exness-MT5Real"}}}
	c := newController(api, newSecretStore("tok"), &mockSessionStore{})

	_, err := c.RefreshCatalog(context.Background())
	require.NoError(t, err)

	api.mu.Lock()
	api.catalogErr = errors.New("connection refused")
	api.mu.Unlock()

	catalog, err := c.RefreshCatalog(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"Exness"}, catalog.Brokers())
}

func TestCatalog_ReturnsCopy(t *testing.T) {
	api := &mockTradingAPI{catalog: model.BrokerCatalog{"Exness": {"Exness-MT5Real"}}}
	c := newController(api, newSecretStore("tok"), &mockSessionStore{})
	_, err := c.RefreshCatalog(context.Background())
	require.NoError(t, err)

	catalog := c.Catalog()
	catalog["Exness"][0] = "mutated"
	delete(catalog, "Exness")

	assert.Equal(t, []string{"Exness-MT5Real"}, c.Catalog().Servers("Exness"))
}

// --- Start ---

func TestRequestStart_Success(t *testing.T) {
	api := &mockTradingAPI{}
	store := &mockSessionStore{}
	c := newController(api, newSecretStore("tok"), store)
	events, cancel := c.Subscribe(16)
	defer cancel()

	state, err := c.RequestStart(context.Background(), validParams)
	require.NoError(t, err)

	assert.Equal(t, model.SessionInProgress, state.Status)
	assert.Equal(t, "In progress", state.Label)
	assert.False(t, state.Busy)
	assert.Equal(t, "tok", api.lastToken)
	assert.Equal(t, validParams, api.lastParams)

	sub, start, stop := api.calls()
	assert.Equal(t, 1, sub)
	assert.Equal(t, 1, start)
	assert.Zero(t, stop)

	require.Len(t, store.saves, 1)
	assert.Equal(t, model.ActiveRecord(), store.saves[0])
	assert.True(t, store.current().IsActive())

	assert.Equal(t, []model.SessionStatus{
		model.SessionCheckingSubscription,
		model.SessionStarting,
		model.SessionInProgress,
	}, stateSequence(drain(events)))
}

func TestRequestStart_EventsShareOperationID(t *testing.T) {
	c := newController(&mockTradingAPI{}, newSecretStore("tok"), &mockSessionStore{})
	events, cancel := c.Subscribe(16)
	defer cancel()

	_, err := c.RequestStart(context.Background(), validParams)
	require.NoError(t, err)

	got := drain(events)
	require.NotEmpty(t, got)
	opID := got[0].OperationID
	assert.NotEmpty(t, opID)
	for _, ev := range got {
		assert.Equal(t, opID, ev.OperationID)
	}
}

func TestRequestStart_MissingParameters(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *model.TradingParameters)
		field  string
	}{
		{"broker", func(p *model.TradingParameters) { p.Broker = "" }, "broker"},
		{"server", func(p *model.TradingParameters) { p.Server = "" }, "server"},
		{"login", func(p *model.TradingParameters) { p.Login = "" }, "login"},
		{"password", func(p *model.TradingParameters) { p.Password = "" }, "password"},
		{"profit", func(p *model.TradingParameters) { p.Profit = "" }, "profit"},
		{"blank login", func(p *model.TradingParameters) { p.Login = " " }, "login"},
		{"blank server", func(p *model.TradingParameters) { p.Server = "\t " }, "server"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockTradingAPI{}
			store := &mockSessionStore{}
			c := newController(api, newSecretStore("tok"), store)

			params := validParams
			tt.mutate(&params)

			state, err := c.RequestStart(context.Background(), params)
			require.ErrorIs(t, err, application.ErrMissingParameters)
			assert.Contains(t, err.Error(), tt.field)

			assert.Equal(t, model.SessionNotStarted, state.Status)
			assert.False(t, state.Busy)
			sub, start, _ := api.calls()
			assert.Zero(t, sub)
			assert.Zero(t, start)
			assert.Zero(t, store.saveCount())
		})
	}
}

func TestRequestStart_NoSubscription(t *testing.T) {
	api := &mockTradingAPI{subErr: errNoSubscription}
	store := &mockSessionStore{}
	c := newController(api, newSecretStore("tok"), store)
	events, cancel := c.Subscribe(16)
	defer cancel()

	state, err := c.RequestStart(context.Background(), validParams)
	require.NoError(t, err)

	assert.Equal(t, model.SessionFailed, state.Status)
	assert.Equal(t, "No subscription", state.Message)
	assert.Equal(t, model.KindNoSubscription, state.ErrorKind)
	assert.Equal(t, model.ActionSubscribe, state.Action)
	assert.True(t, state.CanStart())

	_, start, _ := api.calls()
	assert.Zero(t, start, "start must not be issued without a subscription")
	assert.Zero(t, store.saveCount())
	assert.True(t, store.current().IsZero())

	got := drain(events)
	assert.Equal(t, []model.SessionStatus{model.SessionCheckingSubscription, model.SessionFailed}, stateSequence(got))
	assert.Equal(t, []model.ErrorKind{model.KindNoSubscription}, errorKinds(got))
}

func TestRequestStart_StartRejected(t *testing.T) {
	api := &mockTradingAPI{startErr: rejected(model.OpStartTrading, model.KindStartRejected, 404, "Invalid MT5 account")}
	store := &mockSessionStore{}
	c := newController(api, newSecretStore("tok"), store)

	state, err := c.RequestStart(context.Background(), validParams)
	require.NoError(t, err)

	assert.Equal(t, model.SessionFailed, state.Status)
	assert.Equal(t, "Invalid MT5 account", state.Message)
	assert.Equal(t, model.KindStartRejected, state.ErrorKind)
	assert.Equal(t, model.ActionNone, state.Action)
	assert.Zero(t, store.saveCount())
}

func TestRequestStart_UnclassifiedErrorGetsGenericMessage(t *testing.T) {
	api := &mockTradingAPI{startErr: errors.New("boom")}
	c := newController(api, newSecretStore("tok"), &mockSessionStore{})

	state, err := c.RequestStart(context.Background(), validParams)
	require.NoError(t, err)

	assert.Equal(t, model.SessionFailed, state.Status)
	assert.Equal(t, model.KindUnknown, state.ErrorKind)
	assert.Equal(t, model.MsgUnknown, state.Message)
}

func TestRequestStart_NoCredential(t *testing.T) {
	api := &mockTradingAPI{}
	c := newController(api, newSecretStore(""), &mockSessionStore{})

	state, err := c.RequestStart(context.Background(), validParams)
	require.NoError(t, err)

	assert.Equal(t, model.SessionFailed, state.Status)
	assert.Equal(t, model.KindAuthExpired, state.ErrorKind)
	assert.Equal(t, model.ActionLogin, state.Action)
	assert.Equal(t, model.MsgNotSignedIn, state.Message)

	sub, start, _ := api.calls()
	assert.Zero(t, sub, "no request may be sent without a credential")
	assert.Zero(t, start)
}

func TestRequestStart_UnreadableCredential(t *testing.T) {
	api := &mockTradingAPI{}
	secrets := newSecretStore("tok")
	secrets.getErr = errors.New("cipher: message authentication failed")
	c := newController(api, secrets, &mockSessionStore{})

	state, err := c.RequestStart(context.Background(), validParams)
	require.NoError(t, err)

	assert.Equal(t, model.KindAuthExpired, state.ErrorKind)
	sub, _, _ := api.calls()
	assert.Zero(t, sub)
}

func TestRequestStart_DetachedFromCallerCancellation(t *testing.T) {
	var subCtxErr error
	api := &mockTradingAPI{onSubscribe: func(ctx context.Context) { subCtxErr = ctx.Err() }}
	c := newController(api, newSecretStore("tok"), &mockSessionStore{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state, err := c.RequestStart(ctx, validParams)
	require.NoError(t, err)
	assert.NoError(t, subCtxErr)
	assert.Equal(t, model.SessionInProgress, state.Status)
}

func TestRequestStart_SaveFailureKeepsInProgress(t *testing.T) {
	store := &mockSessionStore{saveErr: errors.New("database is locked")}
	c := newController(&mockTradingAPI{}, newSecretStore("tok"), store)
	events, cancel := c.Subscribe(16)
	defer cancel()

	state, err := c.RequestStart(context.Background(), validParams)
	require.NoError(t, err)

	assert.Equal(t, model.SessionInProgress, state.Status)
	assert.Contains(t, errorKinds(drain(events)), model.KindStorage)
}

func TestRequestStart_RejectedWhileInProgress(t *testing.T) {
	api := &mockTradingAPI{}
	c := newController(api, newSecretStore("tok"), &mockSessionStore{record: model.ActiveRecord()})
	c.Initialize(context.Background())
	c.Wait()

	state, err := c.RequestStart(context.Background(), validParams)
	require.ErrorIs(t, err, application.ErrInvalidTransition)
	assert.Equal(t, model.SessionInProgress, state.Status)

	sub, _, _ := api.calls()
	assert.Zero(t, sub)
}

func TestRequestStart_RetryAfterFailure(t *testing.T) {
	api := &mockTradingAPI{subErr: errNoSubscription}
	c := newController(api, newSecretStore("tok"), &mockSessionStore{})

	state, err := c.RequestStart(context.Background(), validParams)
	require.NoError(t, err)
	require.Equal(t, model.SessionFailed, state.Status)

	api.mu.Lock()
	api.subErr = nil
	api.mu.Unlock()

	state, err = c.RequestStart(context.Background(), validParams)
	require.NoError(t, err)
	assert.Equal(t, model.SessionInProgress, state.Status)
	assert.Empty(t, state.Message)
	assert.Empty(t, state.ErrorKind)
}

// --- Single in-flight operation ---

func TestRequestStart_SecondRequestRejectedWhileInFlight(t *testing.T) {
	api := &mockTradingAPI{
		subEntered: make(chan struct{}),
		subRelease: make(chan struct{}),
	}
	store := &mockSessionStore{}
	c := newController(api, newSecretStore("tok"), store)

	done := make(chan model.SessionSnapshot)
	go func() {
		state, _ := c.RequestStart(context.Background(), validParams)
		done <- state
	}()

	<-api.subEntered

	pending := c.CurrentState()
	assert.Equal(t, model.SessionCheckingSubscription, pending.Status)
	assert.Equal(t, "Checking subscription...", pending.Label)
	assert.True(t, pending.Busy)
	assert.False(t, pending.CanStart())
	assert.False(t, pending.CanStop())

	_, err := c.RequestStart(context.Background(), validParams)
	require.ErrorIs(t, err, application.ErrBusy)

	_, err = c.RequestStop(context.Background())
	require.ErrorIs(t, err, application.ErrBusy)

	require.ErrorIs(t, c.Reset(context.Background()), application.ErrBusy)

	close(api.subRelease)
	final := <-done

	assert.Equal(t, model.SessionInProgress, final.Status)
	sub, start, stop := api.calls()
	assert.Equal(t, 1, sub)
	assert.Equal(t, 1, start)
	assert.Zero(t, stop)
	assert.Equal(t, 1, store.saveCount())
}

func TestRequestStop_SecondRequestRejectedWhileInFlight(t *testing.T) {
	api := &mockTradingAPI{
		stopEntered: make(chan struct{}),
		stopRelease: make(chan struct{}),
	}
	c := newController(api, newSecretStore("tok"), &mockSessionStore{record: model.ActiveRecord()})
	c.Initialize(context.Background())
	c.Wait()

	done := make(chan model.SessionSnapshot)
	go func() {
		state, _ := c.RequestStop(context.Background())
		done <- state
	}()

	<-api.stopEntered

	pending := c.CurrentState()
	assert.Equal(t, model.SessionStopping, pending.Status)
	assert.Equal(t, "Stopping, please wait...", pending.Label)
	assert.True(t, pending.Busy)

	_, err := c.RequestStop(context.Background())
	require.ErrorIs(t, err, application.ErrBusy)

	close(api.stopRelease)
	final := <-done

	assert.Equal(t, model.SessionStopped, final.Status)
	_, _, stop := api.calls()
	assert.Equal(t, 1, stop, "stop must never be double-submitted")
}

// --- Stop ---

func TestRequestStop_Success(t *testing.T) {
	api := &mockTradingAPI{}
	store := &mockSessionStore{record: model.ActiveRecord()}
	c := newController(api, newSecretStore("tok"), store)
	c.Initialize(context.Background())
	c.Wait()
	events, cancel := c.Subscribe(16)
	defer cancel()

	state, err := c.RequestStop(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.SessionStopped, state.Status)
	assert.Equal(t, "Stopped", state.Label)
	assert.Equal(t, "Trading has Stopped", state.Message)
	assert.False(t, state.StopUnconfirmed)
	assert.True(t, state.CanStart())
	assert.False(t, state.CanStop())

	assert.True(t, store.current().IsZero())
	assert.Equal(t, 1, store.clears)

	assert.Equal(t, []model.SessionStatus{model.SessionStopping, model.SessionStopped}, stateSequence(drain(events)))
}

func TestRequestStop_SessionExpired(t *testing.T) {
	store := &mockSessionStore{record: model.ActiveRecord()}
	var atCall model.SessionRecord
	api := &mockTradingAPI{
		stopErr: errSessionExpired,
		onStop:  func(context.Context) { atCall = store.current() },
	}
	c := newController(api, newSecretStore("tok"), store)
	c.Initialize(context.Background())
	c.Wait()

	state, err := c.RequestStop(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.SessionFailed, state.Status)
	assert.Equal(t, "Session expired", state.Message)
	assert.Equal(t, model.KindAuthExpired, state.ErrorKind)
	assert.Equal(t, model.ActionLogin, state.Action)
	assert.True(t, state.StopUnconfirmed)
	assert.True(t, state.CanStop())

	// The trading pair is cleared before the remote call is issued.
	assert.False(t, atCall.Trading)
	assert.Empty(t, atCall.Status)
	assert.Equal(t, model.PhaseStopping, atCall.Phase)

	rec := store.current()
	assert.False(t, rec.IsActive())
	assert.Equal(t, model.PhaseStopping, rec.Phase)
}

func TestRequestStop_RetryAfterUnconfirmedStop(t *testing.T) {
	api := &mockTradingAPI{stopErr: errSessionExpired}
	store := &mockSessionStore{record: model.ActiveRecord()}
	c := newController(api, newSecretStore("tok"), store)
	c.Initialize(context.Background())
	c.Wait()

	_, err := c.RequestStop(context.Background())
	require.NoError(t, err)

	api.mu.Lock()
	api.stopErr = nil
	api.mu.Unlock()

	state, err := c.RequestStop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.SessionStopped, state.Status)
	assert.False(t, state.StopUnconfirmed)
	assert.True(t, store.current().IsZero())

	_, _, stop := api.calls()
	assert.Equal(t, 2, stop)
}

func TestRequestStop_RetryAfterRestart(t *testing.T) {
	api := &mockTradingAPI{}
	store := &mockSessionStore{record: model.SessionRecord{Phase: model.PhaseStopping}}
	c := newController(api, newSecretStore("tok"), store)
	c.Initialize(context.Background())
	c.Wait()

	state, err := c.RequestStop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.SessionStopped, state.Status)
}

func TestRequestStop_InvalidFromNotStarted(t *testing.T) {
	api := &mockTradingAPI{}
	store := &mockSessionStore{}
	c := newController(api, newSecretStore("tok"), store)

	state, err := c.RequestStop(context.Background())
	require.ErrorIs(t, err, application.ErrInvalidTransition)
	assert.Equal(t, model.SessionNotStarted, state.Status)

	_, _, stop := api.calls()
	assert.Zero(t, stop)
	assert.Zero(t, store.saveCount())
}

func TestRequestStop_AfterStoppedIsRejected(t *testing.T) {
	api := &mockTradingAPI{}
	c := newController(api, newSecretStore("tok"), &mockSessionStore{record: model.ActiveRecord()})
	c.Initialize(context.Background())
	c.Wait()

	_, err := c.RequestStop(context.Background())
	require.NoError(t, err)

	_, err = c.RequestStop(context.Background())
	require.ErrorIs(t, err, application.ErrInvalidTransition)

	_, _, stop := api.calls()
	assert.Equal(t, 1, stop)
}

func TestRequestStop_NoCredential(t *testing.T) {
	api := &mockTradingAPI{}
	store := &mockSessionStore{record: model.ActiveRecord()}
	c := newController(api, newSecretStore(""), store)
	c.Initialize(context.Background())
	c.Wait()

	state, err := c.RequestStop(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.SessionFailed, state.Status)
	assert.Equal(t, model.KindAuthExpired, state.ErrorKind)
	assert.True(t, state.StopUnconfirmed)

	_, _, stop := api.calls()
	assert.Zero(t, stop)
}

func TestRequestStop_SaveFailureStillStops(t *testing.T) {
	api := &mockTradingAPI{}
	store := &mockSessionStore{record: model.ActiveRecord()}
	c := newController(api, newSecretStore("tok"), store)
	c.Initialize(context.Background())
	c.Wait()

	store.mu.Lock()
	store.saveErr = errors.New("database is locked")
	store.mu.Unlock()

	state, err := c.RequestStop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.SessionStopped, state.Status)

	_, _, stop := api.calls()
	assert.Equal(t, 1, stop)
}

// --- Full cycle ---

func TestSession_StartStopCycle(t *testing.T) {
	api := &mockTradingAPI{}
	store := &mockSessionStore{}
	c := newController(api, newSecretStore("tok"), store)

	state, err := c.RequestStart(context.Background(), validParams)
	require.NoError(t, err)
	require.Equal(t, model.SessionInProgress, state.Status)

	state, err = c.RequestStop(context.Background())
	require.NoError(t, err)
	require.Equal(t, model.SessionStopped, state.Status)

	state, err = c.RequestStart(context.Background(), validParams)
	require.NoError(t, err)
	assert.Equal(t, model.SessionInProgress, state.Status)
	assert.Empty(t, state.Message)

	sub, start, stop := api.calls()
	assert.Equal(t, 2, sub)
	assert.Equal(t, 2, start)
	assert.Equal(t, 1, stop)
}

// --- Reset ---

func TestReset_ClearsRecord(t *testing.T) {
	store := &mockSessionStore{record: model.ActiveRecord()}
	c := newController(&mockTradingAPI{}, newSecretStore("tok"), store)
	c.Initialize(context.Background())
	c.Wait()

	require.NoError(t, c.Reset(context.Background()))

	state := c.CurrentState()
	assert.Equal(t, model.SessionNotStarted, state.Status)
	assert.False(t, state.StopUnconfirmed)
	assert.False(t, state.Busy)
	assert.True(t, store.current().IsZero())
}

func TestReset_ClearFailureIsReturned(t *testing.T) {
	store := &mockSessionStore{clearErr: errors.New("readonly database")}
	c := newController(&mockTradingAPI{}, newSecretStore("tok"), store)

	err := c.Reset(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clear session record")
	assert.False(t, c.CurrentState().Busy)
}
