package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/andrew/tutor-chat/pkg/llm"
	"github.com/andrew/tutor-chat/pkg/models"
	"go.uber.org/zap"
)

var (
	// ErrEmptyUtterance is returned for blank input; nothing is recorded
	ErrEmptyUtterance = errors.New("conversation: empty utterance")
	// ErrTurnInFlight is returned when a turn is submitted while another awaits its reply
	ErrTurnInFlight = errors.New("conversation: a turn is already awaiting a reply")
	// ErrSessionClosed is returned after Close
	ErrSessionClosed = errors.New("conversation: session closed")
)

// ErrorFormatter turns a failed exchange into the text shown in the timeline
type ErrorFormatter func(err error) string

// DefaultErrorText is the timeline text for a failed turn
func DefaultErrorText(err error) string {
	return fmt.Sprintf("Sorry, I couldn't connect to the AI. Please make sure the backend is running. Error: %v", err)
}

// Dispatcher drives request/response turns against a backend and feeds the
// results into its Store. It owns the session for the lifetime of one view.
type Dispatcher struct {
	store     *Store
	client    llm.Client
	logger    *zap.Logger
	errorText ErrorFormatter

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards inFlight and closed and serializes terminal Store mutations.
	// It is not held across the exchange.
	mu       sync.Mutex
	inFlight bool
	closed   bool
	wg       sync.WaitGroup
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger used for turn lifecycle events
func WithLogger(logger *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithErrorFormatter overrides the failure text appended to the timeline
func WithErrorFormatter(f ErrorFormatter) DispatcherOption {
	return func(d *Dispatcher) { d.errorText = f }
}

// NewDispatcher creates a dispatcher that owns store and sends turns through client
func NewDispatcher(store *Store, client llm.Client, opts ...DispatcherOption) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		store:     store,
		client:    client,
		logger:    zap.NewNop(),
		errorText: DefaultErrorText,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Store returns the session this dispatcher owns
func (d *Dispatcher) Store() *Store {
	return d.store
}

// Submit starts a turn and returns immediately. It reports whether a turn
// was started; blank input, a pending turn or a closed session start nothing.
// Observers follow the outcome through the Store.
func (d *Dispatcher) Submit(utterance string) bool {
	history, err := d.begin(utterance)
	if err != nil {
		d.logger.Debug("submit rejected", zap.Error(err))
		return false
	}

	go func() {
		defer d.wg.Done()
		_, _ = d.exchange(d.ctx, history)
	}()
	return true
}

// SubmitAction submits the canned prompt for a quick-start action
func (d *Dispatcher) SubmitAction(actionID string) bool {
	return d.Submit(ResolveActionPrompt(actionID))
}

// Turn runs one turn to completion and returns the terminal message. A
// non-nil error after the optimistic append has already been surfaced in the
// timeline; it is returned for information only.
func (d *Dispatcher) Turn(ctx context.Context, utterance string) (models.DisplayMessage, error) {
	history, err := d.begin(utterance)
	if err != nil {
		return models.DisplayMessage{}, err
	}
	defer d.wg.Done()

	ctx, cancel := mergeCancel(ctx, d.ctx)
	defer cancel()
	return d.exchange(ctx, history)
}

// begin validates the utterance, applies the optimistic update and returns
// the history to send.
func (d *Dispatcher) begin(utterance string) ([]models.WireTurn, error) {
	if strings.TrimSpace(utterance) == "" {
		return nil, ErrEmptyUtterance
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrSessionClosed
	}
	if d.inFlight {
		return nil, ErrTurnInFlight
	}
	d.inFlight = true
	d.wg.Add(1)

	d.store.AppendUserMessage(utterance)
	return d.store.SnapshotWireHistory(), nil
}

// exchange performs the network call and applies exactly one terminal
// mutation, unless the session was closed while the call was running.
func (d *Dispatcher) exchange(ctx context.Context, history []models.WireTurn) (models.DisplayMessage, error) {
	start := time.Now()
	d.logger.Info("sending turn", zap.Int("history_len", len(history)))

	reply, err := d.client.Chat(ctx, history)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.inFlight = false

	if d.closed {
		d.logger.Debug("dropping completion for closed session", zap.Error(err))
		return models.DisplayMessage{}, ErrSessionClosed
	}

	if err != nil {
		d.logger.Warn("turn failed",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)))
		return d.store.AppendAssistantError(d.errorText(err)), err
	}

	d.logger.Info("turn completed",
		zap.Int("reply_len", len(reply)),
		zap.Duration("elapsed", time.Since(start)))
	return d.store.AppendAssistantMessage(reply), nil
}

// Wait blocks until every started turn has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close discards the session: the in-flight exchange is cancelled and its
// completion will not touch the Store.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
	return d.client.Close()
}

// mergeCancel returns a context cancelled when either parent is done
func mergeCancel(ctx, other context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(other, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
