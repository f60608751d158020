package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/orchestrator-service/domain"
	"github.com/shipabox/shipment-saga/shared/events"
	"github.com/shipabox/shipment-saga/shared/models"
	"github.com/shipabox/shipment-saga/shared/saga"
	"github.com/shipabox/shipment-saga/shared/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxConcurrent bounds simultaneous dispatches in DispatchAll
	DefaultMaxConcurrent = 8
	// defaultConflictRetries is how often a dispatch that lost a
	// compare-and-swap is replayed against fresh state
	defaultConflictRetries = 3
)

// DispatchResult describes what one dispatch did
type DispatchResult struct {
	CorrelationID models.ID
	Event         domain.EventType
	Outcome       saga.Outcome
	Transition    string
	From          domain.State
	To            domain.State
	// Shipment is the instance after the transition, also when it finalized
	Shipment *domain.Shipment
	// Published is the outbound event, if the transition emitted one
	Published *events.Event
}

// BatchItem pairs a DispatchAll input with its result
type BatchItem struct {
	Message domain.Message
	Result  *DispatchResult
	Err     error
}

// Orchestrator applies inbound messages to shipment sagas. Dispatches for
// the same shipment are serialized; different shipments run in parallel.
type Orchestrator struct {
	workflow        *domain.Workflow
	store           domain.InstanceStore
	publisher       events.Publisher
	journal         events.EventStore
	resolver        *CorrelationResolver
	locker          *saga.KeyedLocker
	logger          *zap.Logger
	maxConcurrent   int
	conflictRetries int
	newID           func() models.ID
}

// OrchestratorOption configures an Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithJournal records every applied and emitted event per shipment
func WithJournal(journal events.EventStore) OrchestratorOption {
	return func(o *Orchestrator) {
		o.journal = journal
	}
}

func WithLogger(logger *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithMaxConcurrent(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

func WithConflictRetries(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.conflictRetries = n
		}
	}
}

// WithIDGenerator replaces the correlation id generator
func WithIDGenerator(newID func() models.ID) OrchestratorOption {
	return func(o *Orchestrator) {
		o.newID = newID
	}
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(
	workflow *domain.Workflow,
	store domain.InstanceStore,
	publisher events.Publisher,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		workflow:        workflow,
		store:           store,
		publisher:       publisher,
		locker:          saga.NewKeyedLocker(),
		logger:          zap.NewNop(),
		maxConcurrent:   DefaultMaxConcurrent,
		conflictRetries: defaultConflictRetries,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.resolver = NewCorrelationResolver(store, o.newID)
	return o
}

// Workflow returns the active transition table
func (o *Orchestrator) Workflow() *domain.Workflow {
	return o.workflow
}

// Dispatch resolves, validates, applies, persists and publishes one message.
// Errors carry the domain taxonomy: ErrInvalidMessage, ErrUnrouteableEvent,
// ErrUnhandledTransition, ErrStoreFailure, ErrVersionConflict and
// ErrPublishFailure.
func (o *Orchestrator) Dispatch(ctx context.Context, msg domain.Message) (result *DispatchResult, err error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "saga.dispatch",
		trace.WithAttributes(
			attribute.String("saga.workflow", o.workflow.Name()),
			attribute.String("event_type", msg.Type.String()),
			attribute.String("event_id", msg.EventID.String()),
			attribute.String("correlation_id", msg.CorrelationID.String()),
		),
	)
	defer span.End()

	status := "error"
	defer func() {
		if err != nil {
			status = faultKind(err)
			span.RecordError(err)
		}
		telemetry.RecordCounter(ctx, "saga_dispatch_total", "Total saga dispatches", 1,
			attribute.String("event_type", msg.Type.Short()),
			attribute.String("status", status),
		)
		telemetry.RecordHistogram(ctx, "saga_dispatch_duration_seconds", "Saga dispatch duration", time.Since(start).Seconds(),
			attribute.String("event_type", msg.Type.Short()),
			attribute.String("status", status),
		)
		o.logDispatch(msg, result, err)
	}()

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		result, err = o.dispatchOnce(ctx, msg)
		if err == nil || !errors.Is(err, domain.ErrVersionConflict) || attempt >= o.conflictRetries {
			break
		}
		o.logger.Warn("retrying dispatch after version conflict",
			zap.String("event_type", msg.Type.String()),
			zap.String("event_id", msg.EventID.String()),
			zap.Int("attempt", attempt),
		)
	}
	if err != nil {
		return nil, err
	}

	status = result.Outcome.String()
	span.SetAttributes(
		attribute.String("correlation_id", result.CorrelationID.String()),
		attribute.String("saga.outcome", status),
		attribute.String("saga.from", result.From.String()),
		attribute.String("saga.to", result.To.String()),
	)

	return result, nil
}

// DispatchAll dispatches msgs with at most maxConcurrent in flight. Items
// are returned in input order; one failure never cancels the others.
func (o *Orchestrator) DispatchAll(ctx context.Context, msgs []domain.Message) []BatchItem {
	items := make([]BatchItem, len(msgs))

	var gr errgroup.Group
	gr.SetLimit(o.maxConcurrent)

	for i, msg := range msgs {
		i, msg := i, msg
		gr.Go(func() error {
			result, err := o.Dispatch(ctx, msg)
			items[i] = BatchItem{Message: msg, Result: result, Err: err}
			return nil
		})
	}
	_ = gr.Wait()

	return items
}

func (o *Orchestrator) dispatchOnce(ctx context.Context, msg domain.Message) (*DispatchResult, error) {
	initiating := o.workflow.IsInitiating(msg.Type)

	if !initiating {
		unlock, err := o.locker.Lock(ctx, lockKey(msg.CorrelationID))
		if err != nil {
			return nil, err
		}
		defer unlock()

		res, err := o.resolver.Resolve(ctx, msg, false)
		if err != nil {
			return nil, err
		}
		return o.apply(ctx, msg, res, false)
	}

	// lock order is natural key first, then correlation id
	unlockKey, err := o.locker.Lock(ctx, "nk:"+msg.NaturalKey())
	if err != nil {
		return nil, err
	}
	defer unlockKey()

	res, err := o.resolver.Resolve(ctx, msg, true)
	if err != nil {
		return nil, err
	}
	if !res.Created {
		unlock, err := o.locker.Lock(ctx, lockKey(res.Shipment.CorrelationID))
		if err != nil {
			return nil, err
		}
		defer unlock()

		if res, err = o.resolver.Refresh(ctx, res); err != nil {
			return nil, err
		}
	}

	return o.apply(ctx, msg, res, true)
}

func lockKey(id models.ID) string {
	return "id:" + id.String()
}

// apply runs the matched transition against a working copy and commits it
func (o *Orchestrator) apply(ctx context.Context, msg domain.Message, res *Resolution, initiating bool) (*DispatchResult, error) {
	current := res.Shipment
	from := current.State

	result := &DispatchResult{
		CorrelationID: current.CorrelationID,
		Event:         msg.Type,
		From:          from,
		To:            from,
		Shipment:      current,
	}

	if !initiating && current.HasApplied(msg.EventID) {
		result.Outcome = saga.OutcomeDuplicate
		return result, nil
	}

	tr, ok := o.workflow.Lookup(from, msg.Type)
	if !ok {
		return nil, &domain.UnhandledTransitionError{
			CorrelationID: current.CorrelationID,
			State:         from,
			Event:         msg.Type,
			Accepted:      o.workflow.AcceptedStates(msg.Type),
		}
	}

	working := current.Clone()
	outbound, err := tr.Effect(working, msg)
	if err != nil {
		return nil, errors.Wrapf(err, "apply %s", tr.Name)
	}

	working.State = tr.Next(from)
	if !initiating {
		working.MarkApplied(msg.EventID)
	}
	working.Timestamps = working.Timestamps.Update()
	working.Version = working.Version.Update()

	result.Transition = tr.Name
	result.To = working.State
	result.Shipment = working
	result.Published = outbound

	switch {
	case tr.Finalize:
		if !res.Created {
			if err := o.store.Delete(ctx, working.CorrelationID, current.Version.Value); err != nil {
				return nil, storeFailure(err, "delete shipment")
			}
		}
		result.Outcome = saga.OutcomeCompleted
	default:
		if err := o.store.Put(ctx, working); err != nil {
			return nil, storeFailure(err, "put shipment")
		}
		switch {
		case res.Created:
			result.Outcome = saga.OutcomeCreated
		case working.State != from:
			result.Outcome = saga.OutcomeTransitioned
		default:
			result.Outcome = saga.OutcomeRecorded
		}
	}

	o.logger.Info(domain.Narrate(working, msg),
		zap.String("correlation_id", working.CorrelationID.String()),
		zap.String("transition", tr.Name),
	)

	inbound := msg.ToEvent().Clone()
	inbound.CorrelationID = working.CorrelationID
	o.record(ctx, working.CorrelationID, inbound)

	if outbound != nil {
		if err := o.publisher.Publish(ctx, outbound); err != nil {
			return nil, errors.Wrapf(domain.ErrPublishFailure, "publish %s for shipment %s: %v",
				outbound.EventType, working.CorrelationID, err)
		}
		o.record(ctx, working.CorrelationID, outbound)
	}

	return result, nil
}

// record journals an applied or emitted event. Emitted events are recorded
// only once published. The journal is an audit trail; a failure is logged
// and never fails dispatch.
func (o *Orchestrator) record(ctx context.Context, id models.ID, event *events.Event) {
	if o.journal == nil {
		return
	}

	if err := o.journal.Append(ctx, id, event); err != nil {
		o.logger.Warn("failed to journal shipment event",
			zap.Error(err),
			zap.String("correlation_id", id.String()),
			zap.String("event_type", event.EventType),
		)
	}
}

func (o *Orchestrator) logDispatch(msg domain.Message, result *DispatchResult, err error) {
	fields := []zap.Field{
		zap.String("event_type", msg.Type.String()),
		zap.String("event_id", msg.EventID.String()),
	}

	if err != nil {
		fields = append(fields, zap.String("correlation_id", msg.CorrelationID.String()), zap.Error(err))
		switch {
		case errors.Is(err, domain.ErrUnrouteableEvent), errors.Is(err, domain.ErrInvalidMessage):
			o.logger.Warn("dispatch rejected", fields...)
		default:
			o.logger.Error("dispatch failed", fields...)
		}
		return
	}

	fields = append(fields,
		zap.String("correlation_id", result.CorrelationID.String()),
		zap.String("from_state", result.From.String()),
		zap.String("to_state", result.To.String()),
		zap.String("outcome", result.Outcome.String()),
	)
	if result.Outcome == saga.OutcomeDuplicate {
		o.logger.Warn("duplicate event ignored", fields...)
		return
	}
	o.logger.Debug("dispatch applied", fields...)
}

// faultKind labels an error for metrics
func faultKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidMessage):
		return "invalid_message"
	case errors.Is(err, domain.ErrUnrouteableEvent):
		return "unrouteable"
	case errors.Is(err, domain.ErrUnhandledTransition):
		return "unhandled_transition"
	case errors.Is(err, domain.ErrVersionConflict):
		return "version_conflict"
	case errors.Is(err, domain.ErrStoreFailure):
		return "store_failure"
	case errors.Is(err, domain.ErrPublishFailure):
		return "publish_failure"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
