package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/netsync/internal/authority"
	"github.com/roach88/netsync/internal/marshal"
	"github.com/roach88/netsync/internal/predict"
	"github.com/roach88/netsync/internal/registry"
	"github.com/roach88/netsync/internal/store"
)

// Default movement properties read by prediction and authoritative
// movement updates.
const (
	DefaultTransformField = "Transform"
	DefaultVelocityField  = "Velocity"
)

// Journal persists what the session receives and sends.
// *store.Store implements it.
type Journal interface {
	WriteSession(ctx context.Context, sess store.Session) error
	WriteEvent(ctx context.Context, rec store.EventRecord) (id string, inserted bool, err error)
	WriteReconciliation(ctx context.Context, rec store.ReconciliationRecord) (string, error)
}

// Option configures a Session.
type Option func(*Session)

// WithJournal records inbound events, accepted outbound calls and
// reconciliations to j.
func WithJournal(j Journal) Option {
	return func(s *Session) {
		s.journal = j
	}
}

// WithNow sets the wall-clock source used by prediction.
func WithNow(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithMetrics reports counters to m.
func WithMetrics(m Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithOwnerField sets the property holding an object's owner client id.
func WithOwnerField(name string) Option {
	return func(s *Session) {
		s.ownerField = name
	}
}

// WithPolicy replaces the property/RPC permission policy.
func WithPolicy(p authority.Policy) Option {
	return func(s *Session) {
		s.policy = p
	}
}

// WithTempIDBase sets where temporary spawn ids start.
func WithTempIDBase(base registry.ID) Option {
	return func(s *Session) {
		s.tempIDBase = base
	}
}

// WithPredictionConfig sets the configuration of every predictor.
func WithPredictionConfig(cfg predict.Config) Option {
	return func(s *Session) {
		s.predCfg = cfg
	}
}

// WithMovementFields names the transform and velocity properties.
func WithMovementFields(transform, velocity string) Option {
	return func(s *Session) {
		s.transformField = transform
		s.velocityField = velocity
	}
}

// WithTrackedFields limits the properties captured with each prediction
// snapshot. Without it every trackable property is captured.
func WithTrackedFields(names ...string) Option {
	return func(s *Session) {
		s.tracked = names
	}
}

// WithID sets the session id instead of generating one.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// WithIDGenerator sets the session id generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(s *Session) {
		s.idGen = gen
	}
}

// WithClock resumes journal sequencing from an existing clock.
func WithClock(c *Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithLabel sets a free-form label stored with the session row.
func WithLabel(label string) Option {
	return func(s *Session) {
		s.label = label
	}
}

// Session is the replication control thread for one client.
type Session struct {
	id       string
	label    string
	clientID authority.ClientID

	clock *Clock
	queue *eventQueue

	factory    *Factory
	registry   *registry.Registry
	marshaller *marshal.Marshaller
	authority  *authority.Model
	caller     authority.Caller

	// controlled holds the predictor of every locally controlled object.
	controlled map[registry.ID]*predict.Predictor

	journal Journal
	started bool
	metrics Metrics
	now     func() time.Time
	idGen   IDGenerator

	ownerField     string
	policy         authority.Policy
	tempIDBase     registry.ID
	predCfg        predict.Config
	transformField string
	velocityField  string
	tracked        []string
}

// New creates a Session for clientID. Objects are created through factory
// and outbound calls go to caller; a nil caller rejects every call.
func New(clientID authority.ClientID, factory *Factory, caller authority.Caller, opts ...Option) (*Session, error) {
	if factory == nil {
		factory = NewFactory()
	}
	if caller == nil {
		caller = authority.CallerFunc(func(string, string) bool { return false })
	}

	s := &Session{
		clientID:       clientID,
		clock:          NewClock(),
		queue:          newEventQueue(),
		factory:        factory,
		caller:         caller,
		controlled:     make(map[registry.ID]*predict.Predictor),
		metrics:        nopMetrics{},
		now:            time.Now,
		idGen:          UUIDv7Generator{},
		ownerField:     authority.DefaultOwnerField,
		tempIDBase:     registry.DefaultTempIDBase,
		predCfg:        predict.DefaultConfig(),
		transformField: DefaultTransformField,
		velocityField:  DefaultVelocityField,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.predCfg.Validate(); err != nil {
		return nil, fmt.Errorf("session: prediction config: %w", err)
	}
	if s.id == "" {
		s.id = s.idGen.Generate()
	}

	s.registry = registry.New(registry.WithTempIDBase(s.tempIDBase))
	s.marshaller = marshal.New(marshal.WithResolver(resolver{objects: s.registry, classes: factory}))

	authOpts := []authority.Option{authority.WithOwnerField(s.ownerField)}
	if s.policy != nil {
		authOpts = append(authOpts, authority.WithPolicy(s.policy))
	}
	s.authority = authority.New(s.marshaller, s.registry, authority.CallerFunc(s.authorityCall), authOpts...)

	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// ClientID returns the local client id.
func (s *Session) ClientID() authority.ClientID { return s.clientID }

// Registry returns the object registry. Mutate it only on the control thread.
func (s *Session) Registry() *registry.Registry { return s.registry }

// Marshaller returns the session's marshaller.
func (s *Session) Marshaller() *marshal.Marshaller { return s.marshaller }

// Authority returns the session's authority model.
func (s *Session) Authority() *authority.Model { return s.authority }

// Factory returns the class factory.
func (s *Session) Factory() *Factory { return s.factory }

// Clock returns the journal clock.
func (s *Session) Clock() *Clock { return s.clock }

// QueueLen returns the number of queued events.
func (s *Session) QueueLen() int { return s.queue.Len() }

// Enqueue submits an event for processing on the control thread.
// Safe from any goroutine. Returns false once the session is stopped.
func (s *Session) Enqueue(ev Event) bool {
	return s.queue.Enqueue(ev)
}

// Start writes the session row to the journal. Run and Drain call it;
// calling it again is a no-op.
func (s *Session) Start(ctx context.Context) error {
	if s.started || s.journal == nil {
		s.started = true
		return nil
	}
	err := s.journal.WriteSession(ctx, store.Session{
		ID:         s.id,
		ClientID:   int64(s.clientID),
		StartedSeq: s.clock.Current(),
		Label:      s.label,
	})
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	s.started = true
	return nil
}

// Run starts the control loop. It blocks until ctx is cancelled or Stop
// is called and the queue has drained.
//
// Must be called from exactly one goroutine. A failed event is logged
// with its context and processing continues.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	slog.Info("session starting", "session", s.id, "client_id", s.clientID)

	for {
		ev, ok := s.queue.TryDequeue()
		if ok {
			s.handle(ctx, ev)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("session stopping: context cancelled", "session", s.id)
			s.queue.Close()
			return ctx.Err()

		case _, open := <-s.queue.Wait():
			// The signal channel is closed by Stop; a closed, empty
			// queue ends the loop.
			if !open && s.queue.Len() == 0 {
				slog.Info("session stopping: queue closed", "session", s.id)
				return nil
			}
		}
	}
}

// Drain processes every queued event on the calling goroutine and
// returns how many were handled. Events enqueued while draining are
// handled too.
func (s *Session) Drain(ctx context.Context) int {
	if err := s.Start(ctx); err != nil {
		slog.Error("session start failed", "session", s.id, "error", err)
	}
	n := 0
	for {
		if ctx.Err() != nil {
			return n
		}
		ev, ok := s.queue.TryDequeue()
		if !ok {
			return n
		}
		s.handle(ctx, ev)
		n++
	}
}

// Stop closes the queue. Run returns once what is queued has been processed.
func (s *Session) Stop() {
	s.queue.Close()
}

func (s *Session) handle(ctx context.Context, ev Event) {
	if err := s.processEvent(ctx, ev); err != nil {
		s.metrics.EventFailed(ev.Type.String(), CodeOf(err))
		logEventError(ev, err)
	} else {
		s.metrics.EventProcessed(ev.Type.String())
	}
	s.metrics.RegistrySize(s.registry.Len())
	s.metrics.QueueDepth(s.queue.Len())
}

// processEvent routes an event to its handler.
// Called only on the control thread.
func (s *Session) processEvent(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EventProperty:
		return s.applyProperty(ctx, ev)
	case EventCreate:
		return s.applyCreate(ctx, ev)
	case EventDestroy:
		return s.applyDestroy(ctx, ev)
	case EventRemap:
		return s.applyRemap(ctx, ev)
	case EventMovement:
		return s.applyMovement(ctx, ev)
	case EventTick:
		s.tick()
		return nil
	case EventTask:
		if ev.Task == nil {
			return &SyncError{Code: ErrCodeMalformedEvent, Message: "task event without function"}
		}
		ev.Task(s)
		return nil
	default:
		return &SyncError{Code: ErrCodeMalformedEvent, Message: fmt.Sprintf("unknown event type: %d", ev.Type)}
	}
}

// record appends rec to the journal, stamped with the next seq.
// Journal failures are logged; the event is still applied.
func (s *Session) record(ctx context.Context, rec store.EventRecord) {
	rec.Seq = s.clock.Next()
	if s.journal == nil {
		return
	}
	if !s.started {
		if err := s.Start(ctx); err != nil {
			slog.Error("journal session write failed", "session", s.id, "error", err)
			return
		}
	}
	rec.SessionID = s.id
	if _, _, err := s.journal.WriteEvent(ctx, rec); err != nil {
		slog.Error("journal write failed",
			"session", s.id,
			"kind", rec.Kind,
			"object_id", rec.ObjectID,
			"seq", rec.Seq,
			"error", err,
		)
	}
}

// authorityCall is the Caller handed to the authority model, so its
// requests are journaled like every other outbound call.
func (s *Session) authorityCall(reducer, argsJSON string) bool {
	return s.call(context.Background(), reducer, argsJSON, 0)
}

// call forwards an outbound call to the transport and journals it when
// accepted. auxID carries the temp id of a spawn.
func (s *Session) call(ctx context.Context, reducer, argsJSON string, auxID uint64) bool {
	if !s.caller.Call(reducer, argsJSON) {
		slog.Debug("call rejected", "reducer", reducer, "session", s.id)
		return false
	}
	s.record(ctx, store.EventRecord{
		Kind:     store.KindCall,
		ObjectID: callObjectID(argsJSON),
		AuxID:    auxID,
		Name:     reducer,
		Payload:  argsJSON,
	})
	return true
}

func callObjectID(argsJSON string) uint64 {
	var args struct {
		ObjectID uint64 `json:"object_id"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return 0
	}
	return args.ObjectID
}

// logEventError logs an event processing failure with full context.
func logEventError(ev Event, err error) {
	code := CodeOf(err)
	switch ev.Type {
	case EventProperty:
		slog.Warn("property update failed",
			"error", err,
			"code", code,
			"object_id", ev.ObjectID,
			"property", ev.Name,
		)
	case EventCreate:
		slog.Warn("create failed",
			"error", err,
			"code", code,
			"object_id", ev.ObjectID,
			"class", ev.Name,
		)
	case EventRemap:
		slog.Warn("remap failed",
			"error", err,
			"code", code,
			"temp_id", ev.AuxID,
			"server_id", ev.ObjectID,
		)
	case EventDestroy, EventMovement:
		slog.Warn("event failed",
			"error", err,
			"code", code,
			"event_type", ev.Type.String(),
			"object_id", ev.ObjectID,
		)
	default:
		slog.Error("event processing failed",
			"error", err,
			"code", code,
			"event_type", ev.Type.String(),
		)
	}
}
