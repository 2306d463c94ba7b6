// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/profitpilot/internal/domain/model"
	"github.com/ericfisherdev/profitpilot/internal/domain/port/driven"
)

// Rejections returned by the controller. A rejected request has no side
// effects: state is unchanged and no remote call is issued.
var (
	ErrBusy              = errors.New("another session operation is in flight")
	ErrMissingParameters = errors.New("trading parameters incomplete")
	ErrInvalidTransition = errors.New("operation not allowed in the current session state")
)

// ErrNoCredential means the secret store holds no bearer token.
var ErrNoCredential = errors.New("no credential stored")

// msgStorage is shown when the session record could not be read or written.
const msgStorage = "Session state could not be saved on this device."

// SessionController owns the trading session state machine. It restores
// state from the SessionStore, gates every start behind a subscription
// check, and allows at most one mutating operation in flight.
type SessionController struct {
	api     driven.TradingAPI
	secrets driven.SecretStore
	store   driven.SessionStore
	logger  *slog.Logger
	now     func() time.Time

	mu              sync.RWMutex
	status          model.SessionStatus
	message         string
	errKind         model.ErrorKind
	stopUnconfirmed bool
	busy            bool
	updatedAt       time.Time

	catalogMu    sync.RWMutex
	catalog      model.BrokerCatalog
	catalogGroup singleflight.Group

	events *broadcaster
	bg     sync.WaitGroup
}

// NewSessionController creates a controller in the NotStarted state.
// Call Initialize once before serving UI requests.
func NewSessionController(
	api driven.TradingAPI,
	secrets driven.SecretStore,
	store driven.SessionStore,
	logger *slog.Logger,
) *SessionController {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionController{
		api:       api,
		secrets:   secrets,
		store:     store,
		logger:    logger,
		now:       time.Now,
		status:    model.SessionNotStarted,
		updatedAt: time.Now(),
		catalog:   model.BrokerCatalog{},
		events:    newBroadcaster(),
	}
}

// Initialize restores state from the persisted record, then refreshes the
// broker catalog in the background. It never fails: a record that cannot be
// read yields NotStarted, and a catalog failure leaves the catalog empty.
// Both are reported as error events.
func (c *SessionController) Initialize(ctx context.Context) {
	c.Restore(ctx)

	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		_, _ = c.fetchCatalog(ctx, false)
	}()
}

// Wait blocks until background work started by Initialize has finished.
func (c *SessionController) Wait() {
	c.bg.Wait()
}

// Restore derives the current state from the persisted record without any
// network call. An active record is restored as InProgress without consulting
// the server. Initialize calls it; one-shot callers that do not need the
// catalog may call it directly.
func (c *SessionController) Restore(ctx context.Context) {
	rec, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Error("load session record failed", "error", err)
		c.reportError("", model.KindStorage, msgStorage)
		return
	}

	c.mu.Lock()
	switch {
	case rec.IsActive():
		c.status = model.SessionInProgress
		c.message = ""
	case rec.Phase == model.PhaseStopping:
		c.status = model.SessionNotStarted
		c.message = model.MsgStopUnconfirmed
		c.stopUnconfirmed = true
	default:
		c.status = model.SessionNotStarted
		c.message = ""
	}
	c.updatedAt = c.now()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("session restored",
		"status", snap.Status,
		"stop_unconfirmed", snap.StopUnconfirmed,
		"record_empty", rec.IsZero(),
	)
	c.publishState("", snap)
}

// CurrentState returns the current session snapshot.
func (c *SessionController) CurrentState() model.SessionSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Subscribe returns a stream of session events and a function that ends the
// subscription. Slow subscribers drop events rather than block the controller.
func (c *SessionController) Subscribe(buffer int) (<-chan model.SessionEvent, func()) {
	return c.events.subscribe(buffer)
}

// RequestStart runs the gated start protocol: subscription check, then the
// remote start, then the persisted record. It blocks until the protocol
// settles. Remote failures end in SessionFailed and are not returned; the
// returned error is non-nil only when the request was rejected.
func (c *SessionController) RequestStart(ctx context.Context, params model.TradingParameters) (model.SessionSnapshot, error) {
	opID := uuid.NewString()

	err := c.begin(opID, model.SessionCheckingSubscription, func() error {
		if missing := params.Missing(); len(missing) > 0 {
			return fmt.Errorf("%w: missing %s", ErrMissingParameters, strings.Join(missing, ", "))
		}
		if !c.status.IsIdle() {
			return fmt.Errorf("%w: cannot start from %s", ErrInvalidTransition, c.status)
		}
		return nil
	})
	if err != nil {
		return c.CurrentState(), err
	}

	// Once issued, remote calls run to completion or transport failure.
	ctx = context.WithoutCancel(ctx)
	logger := c.logger.With("op_id", opID)
	logger.Info("start requested", "broker", params.Broker, "server", params.Server)

	token, err := c.credential(ctx, model.OpCheckSubscription)
	if err != nil {
		c.fail(opID, model.OpCheckSubscription, err)
		return c.CurrentState(), nil
	}

	if err := c.api.CheckSubscription(ctx, token); err != nil {
		c.fail(opID, model.OpCheckSubscription, err)
		return c.CurrentState(), nil
	}

	c.transition(opID, model.SessionStarting)

	if err := c.api.StartTrading(ctx, token, params); err != nil {
		c.fail(opID, model.OpStartTrading, err)
		return c.CurrentState(), nil
	}

	saveErr := c.store.Save(ctx, model.ActiveRecord())

	c.finish(opID, model.SessionInProgress, "", false)
	logger.Info("trading session started")

	if saveErr != nil {
		// The server is trading; keep InProgress in memory even though a
		// restart will not restore it.
		logger.Error("persist active session failed", "error", saveErr)
		c.reportError(opID, model.KindStorage, msgStorage)
	}

	return c.CurrentState(), nil
}

// RequestStop runs the stop protocol. It is valid from InProgress, and from
// an idle state whose last stop was never confirmed. The trading flag is
// cleared before the remote call; the stopping phase persists until the
// server confirms.
func (c *SessionController) RequestStop(ctx context.Context) (model.SessionSnapshot, error) {
	opID := uuid.NewString()

	err := c.begin(opID, model.SessionStopping, func() error {
		if c.status == model.SessionInProgress || (c.status.IsIdle() && c.stopUnconfirmed) {
			return nil
		}
		return fmt.Errorf("%w: cannot stop from %s", ErrInvalidTransition, c.status)
	})
	if err != nil {
		return c.CurrentState(), err
	}

	ctx = context.WithoutCancel(ctx)
	logger := c.logger.With("op_id", opID)
	logger.Info("stop requested")

	c.mu.Lock()
	c.stopUnconfirmed = true
	c.mu.Unlock()

	if err := c.store.Save(ctx, model.SessionRecord{Phase: model.PhaseStopping}); err != nil {
		// The remote service is authoritative; a failed local write does
		// not hold back the stop call.
		logger.Error("persist stopping phase failed", "error", err)
		c.reportError(opID, model.KindStorage, msgStorage)
	}

	token, err := c.credential(ctx, model.OpStopTrading)
	if err != nil {
		c.fail(opID, model.OpStopTrading, err)
		return c.CurrentState(), nil
	}

	if err := c.api.StopTrading(ctx, token); err != nil {
		c.fail(opID, model.OpStopTrading, err)
		return c.CurrentState(), nil
	}

	clearErr := c.store.Clear(ctx)

	c.finish(opID, model.SessionStopped, model.MsgStopped, false)
	logger.Info("trading session stopped")

	if clearErr != nil {
		logger.Error("clear session record failed", "error", clearErr)
		c.reportError(opID, model.KindStorage, msgStorage)
	}

	return c.CurrentState(), nil
}

// Reset discards the session state and the persisted record, returning to
// NotStarted. It is rejected while an operation is in flight.
func (c *SessionController) Reset(ctx context.Context) error {
	return c.resetAfter(ctx, nil)
}

// resetAfter claims the in-flight slot, runs first and resets only when first
// succeeds. No operation can start while first runs. A failing first leaves
// the state untouched.
func (c *SessionController) resetAfter(ctx context.Context, first func(ctx context.Context) error) error {
	opID := uuid.NewString()

	if err := c.begin(opID, "", func() error { return nil }); err != nil {
		return err
	}

	if first != nil {
		if err := first(ctx); err != nil {
			c.release(opID)
			return err
		}
	}

	c.mu.RLock()
	wasActive := c.status == model.SessionInProgress || c.stopUnconfirmed
	c.mu.RUnlock()
	if wasActive {
		c.logger.Warn("resetting session while the remote session may still be active", "op_id", opID)
	}

	clearErr := c.store.Clear(ctx)
	c.finish(opID, model.SessionNotStarted, "", false)

	if clearErr != nil {
		return fmt.Errorf("clear session record: %w", clearErr)
	}
	return nil
}

// Catalog returns a copy of the last fetched broker catalog. It is empty
// until the first successful fetch.
func (c *SessionController) Catalog() model.BrokerCatalog {
	c.catalogMu.RLock()
	defer c.catalogMu.RUnlock()
	return c.catalog.Clone()
}

// RefreshCatalog fetches the broker catalog from the remote service, bypassing
// any cached copy. Concurrent callers share one fetch. On failure the previous
// catalog is kept and returned along with the error.
func (c *SessionController) RefreshCatalog(ctx context.Context) (model.BrokerCatalog, error) {
	return c.fetchCatalog(ctx, true)
}

// fetchCatalog runs the shared catalog fetch. Callers sharing a fetch are not
// affected by the first caller's cancellation; the client timeout bounds it.
func (c *SessionController) fetchCatalog(ctx context.Context, revalidate bool) (model.BrokerCatalog, error) {
	key := "catalog"
	if revalidate {
		key = "catalog:revalidate"
	}
	fetchCtx := context.WithoutCancel(ctx)

	_, err, _ := c.catalogGroup.Do(key, func() (any, error) {
		catalog, err := c.api.FetchBrokerCatalog(fetchCtx, revalidate)
		if err != nil {
			te := model.AsTradingError(model.OpFetchCatalog, err)
			c.logger.Error("broker catalog refresh failed", "kind", te.Kind, "error", err)
			c.reportError("", model.KindCatalogUnavailable, model.MsgCatalogUnavailable)
			return nil, err
		}

		c.catalogMu.Lock()
		c.catalog = catalog.Clone()
		c.catalogMu.Unlock()

		c.logger.Info("broker catalog refreshed", "brokers", len(catalog), "revalidate", revalidate)
		return nil, nil
	})
	return c.Catalog(), err
}

// begin claims the single in-flight slot. check runs under the state lock
// and may reject the request. status, when non-empty, becomes the new state.
func (c *SessionController) begin(opID string, status model.SessionStatus, check func() error) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	if err := check(); err != nil {
		c.mu.Unlock()
		return err
	}

	c.busy = true
	if status != "" {
		c.status = status
		c.message = ""
		c.errKind = ""
	}
	c.updatedAt = c.now()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publishState(opID, snap)
	return nil
}

// transition moves to an intermediate state while keeping the slot claimed.
func (c *SessionController) transition(opID string, status model.SessionStatus) {
	c.mu.Lock()
	c.status = status
	c.updatedAt = c.now()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publishState(opID, snap)
}

// finish settles the operation successfully and releases the slot.
func (c *SessionController) finish(opID string, status model.SessionStatus, message string, stopUnconfirmed bool) {
	c.mu.Lock()
	c.status = status
	c.message = message
	c.errKind = ""
	c.stopUnconfirmed = stopUnconfirmed
	c.busy = false
	c.updatedAt = c.now()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publishState(opID, snap)
}

// release frees the slot without changing the session state.
func (c *SessionController) release(opID string) {
	c.mu.Lock()
	c.busy = false
	c.updatedAt = c.now()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publishState(opID, snap)
}

// fail settles the operation as SessionFailed with the classified reason and
// releases the slot.
func (c *SessionController) fail(opID string, op model.Operation, err error) {
	te := model.AsTradingError(op, err)

	c.logger.Warn("session operation failed",
		"op_id", opID,
		"op", te.Op,
		"kind", te.Kind,
		"status_code", te.StatusCode,
		"error", err,
	)

	c.mu.Lock()
	c.status = model.SessionFailed
	c.message = te.Message
	c.errKind = te.Kind
	c.busy = false
	c.updatedAt = c.now()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publishState(opID, snap)
	c.events.publish(model.SessionEvent{
		Type:        model.EventError,
		OperationID: opID,
		Snapshot:    snap,
		ErrorKind:   te.Kind,
		Message:     te.Message,
		At:          snap.UpdatedAt,
	})
}

// credential reads the bearer token. A missing token or an unreadable store
// is an AuthExpired failure so no empty credential reaches the network.
func (c *SessionController) credential(ctx context.Context, op model.Operation) (string, error) {
	token, err := c.secrets.Get(ctx, driven.TokenKey)
	if err != nil {
		c.logger.Error("read credential failed", "error", err)
		return "", &model.TradingError{Op: op, Kind: model.KindAuthExpired, Message: model.MsgNotSignedIn, Err: err}
	}
	if token == "" {
		return "", &model.TradingError{Op: op, Kind: model.KindAuthExpired, Message: model.MsgNotSignedIn, Err: ErrNoCredential}
	}
	return token, nil
}

func (c *SessionController) reportError(opID string, kind model.ErrorKind, message string) {
	snap := c.CurrentState()
	c.events.publish(model.SessionEvent{
		Type:        model.EventError,
		OperationID: opID,
		Snapshot:    snap,
		ErrorKind:   kind,
		Message:     message,
		At:          c.now(),
	})
}

func (c *SessionController) publishState(opID string, snap model.SessionSnapshot) {
	c.events.publish(model.SessionEvent{
		Type:        model.EventState,
		OperationID: opID,
		Snapshot:    snap,
		At:          snap.UpdatedAt,
	})
}

// snapshotLocked builds a snapshot. c.mu must be held.
func (c *SessionController) snapshotLocked() model.SessionSnapshot {
	return model.SessionSnapshot{
		Status:          c.status,
		Label:           c.status.Label(),
		Message:         c.message,
		ErrorKind:       c.errKind,
		Action:          c.errKind.Action(),
		StopUnconfirmed: c.stopUnconfirmed,
		Busy:            c.busy,
		UpdatedAt:       c.updatedAt,
	}
}
