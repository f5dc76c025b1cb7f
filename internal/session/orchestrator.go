package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goodtune/wellcore/internal/clock"
	"github.com/goodtune/wellcore/internal/device"
	"github.com/goodtune/wellcore/internal/metrics"
	"github.com/goodtune/wellcore/internal/provider"
	"github.com/goodtune/wellcore/internal/retry"
	"github.com/goodtune/wellcore/internal/storage"
	"github.com/rs/zerolog"
)

const (
	// DefaultCeiling is the reference deployment's session ceiling
	DefaultCeiling = 15 * time.Minute

	// DefaultTickInterval is how often the ceiling watchdog checks a session
	DefaultTickInterval = time.Second

	// DefaultPersistTimeout bounds best-effort audit writes
	DefaultPersistTimeout = 5 * time.Second
)

// Config holds orchestrator configuration
type Config struct {
	ReplicaID      string
	Ceiling        time.Duration
	TickInterval   time.Duration
	CreatePolicy   retry.Policy
	PersistTimeout time.Duration
	Clock          clock.Clock
}

// Orchestrator runs the session state machine for one user. Start and End
// are safe for concurrent use; at most one session is ever in flight.
type Orchestrator struct {
	userID   string
	guard    *device.Guard
	provider provider.Client
	sessions storage.SessionStore
	config   Config
	logger   zerolog.Logger

	mu            sync.Mutex
	state         State
	current       *Session
	handle        *device.Handle
	disposers     []func()
	cancelStart   context.CancelFunc
	startDone     chan struct{}
	stopWatch     chan struct{}
	reachedActive bool

	subMu   sync.Mutex
	subs    map[int]func(Ended)
	nextSub int
}

// New creates an idle orchestrator. sessions may be nil, in which case no
// audit rows are written.
func New(userID string, guard *device.Guard, client provider.Client, sessions storage.SessionStore, config Config, logger zerolog.Logger) *Orchestrator {
	if config.Ceiling <= 0 {
		config.Ceiling = DefaultCeiling
	}
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	if config.CreatePolicy.MaxAttempts <= 0 {
		config.CreatePolicy = retry.SessionCreate()
	}
	if config.PersistTimeout <= 0 {
		config.PersistTimeout = DefaultPersistTimeout
	}
	if config.Clock == nil {
		config.Clock = clock.Real{}
	}

	closed := make(chan struct{})
	close(closed)

	return &Orchestrator{
		userID:    userID,
		guard:     guard,
		provider:  client,
		sessions:  sessions,
		config:    config,
		logger:    logger.With().Str("component", "session").Str("user_id", userID).Logger(),
		state:     StateIdle,
		startDone: closed,
		subs:      make(map[int]func(Ended)),
	}
}

// UserID returns the user this orchestrator serves
func (o *Orchestrator) UserID() string {
	return o.userID
}

// Start acquires capture devices, creates the provider session and arms the
// ceiling watchdog. ceilingSeconds <= 0 selects the deployment ceiling;
// larger values are clamped to it.
func (o *Orchestrator) Start(ctx context.Context, personality string, ceilingSeconds int) (*Session, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		metrics.SessionStarts.WithLabelValues("already_active").Inc()
		return nil, ErrAlreadyActive
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	o.state = StateAcquiringResources
	o.current = nil
	o.reachedActive = false
	o.cancelStart = cancel
	o.startDone = done
	o.mu.Unlock()

	defer close(done)
	defer cancel()

	ceiling := o.ceilingSeconds(ceilingSeconds)

	handle, err := o.guard.Acquire(attemptCtx)
	if err != nil {
		if o.abandonStart() {
			metrics.SessionStarts.WithLabelValues("aborted").Inc()
			return nil, ErrAborted
		}

		var devErr *device.Error
		if errors.As(err, &devErr) {
			metrics.SessionStarts.WithLabelValues("media_unavailable").Inc()
			return nil, &MediaUnavailableError{Reason: devErr.Reason, Err: err}
		}
		metrics.SessionStarts.WithLabelValues("cancelled").Inc()
		return nil, err
	}

	o.mu.Lock()
	if o.state == StateEnding {
		o.mu.Unlock()
		o.guard.Release(handle)
		metrics.SessionStarts.WithLabelValues("aborted").Inc()
		return nil, ErrAborted
	}
	o.state = StateCreatingSession
	o.mu.Unlock()

	var conv *provider.Conversation
	err = o.config.CreatePolicy.Execute(attemptCtx, func(ctx context.Context) error {
		c, err := o.provider.CreateSession(ctx, provider.CreateRequest{
			ReplicaID:      o.config.ReplicaID,
			Personality:    personality,
			CeilingSeconds: ceiling,
		})
		if err != nil {
			o.logger.Warn().Err(err).Msg("Provider session create attempt failed")
			return err
		}
		conv = c
		return nil
	}, provider.IsRetryable)

	o.mu.Lock()
	if o.state == StateEnding {
		o.mu.Unlock()
		o.guard.Release(handle)
		if conv != nil {
			o.terminateRemote(ctx, conv.ID)
		}
		metrics.SessionStarts.WithLabelValues("aborted").Inc()
		return nil, ErrAborted
	}
	if err != nil {
		o.state = StateIdle
		o.cancelStart = nil
		o.mu.Unlock()
		o.guard.Release(handle)
		return nil, o.createError(ctx, err)
	}

	sess := &Session{
		ID:             conv.ID,
		UserID:         o.userID,
		Personality:    personality,
		ProviderURL:    conv.URL,
		StartedAt:      o.config.Clock.Now(),
		CeilingSeconds: ceiling,
	}
	stop := make(chan struct{})

	o.current = sess
	o.handle = handle
	o.state = StateActive
	o.reachedActive = true
	o.cancelStart = nil
	o.stopWatch = stop
	o.disposers = append(o.disposers, handle.Subscribe(func(ev device.Event) {
		o.onDeviceEvent(sess.ID, ev)
	}))
	o.mu.Unlock()

	go o.watch(sess, stop)

	metrics.SessionStarts.WithLabelValues("ok").Inc()
	metrics.SessionsActive.Inc()

	o.logger.Info().
		Str("session_id", sess.ID).
		Int("ceiling_seconds", ceiling).
		Msg("Session started")

	o.persist(ctx, o.record(sess, nil, ""))

	snapshot := *sess
	return &snapshot, nil
}

// End terminates the session on the user's behalf
func (o *Orchestrator) End(ctx context.Context) error {
	return o.EndWithReason(ctx, ReasonUser)
}

// EndWithReason terminates the session from any in-flight state. It is a
// no-op when the orchestrator is idle or already ending. Device release
// always runs; provider teardown and the final audit write are best-effort.
func (o *Orchestrator) EndWithReason(ctx context.Context, reason EndReason) error {
	o.end(ctx, "", reason)
	return nil
}

// endSession ends the session only while sessionID is still the current
// one. It reports false when another session (or none) is current.
func (o *Orchestrator) endSession(ctx context.Context, sessionID string, reason EndReason) bool {
	return o.end(ctx, sessionID, reason)
}

// end runs the teardown. A non-empty sessionID must match the current
// session, checked under the same lock as the Ending transition.
func (o *Orchestrator) end(ctx context.Context, sessionID string, reason EndReason) bool {
	o.mu.Lock()
	if sessionID != "" && (o.current == nil || o.current.ID != sessionID) {
		o.mu.Unlock()
		return false
	}
	if o.state == StateIdle || o.state == StateEnding {
		o.mu.Unlock()
		return true
	}
	o.state = StateEnding
	if o.cancelStart != nil {
		o.cancelStart()
		o.cancelStart = nil
	}
	if o.stopWatch != nil {
		close(o.stopWatch)
		o.stopWatch = nil
	}
	done := o.startDone
	o.mu.Unlock()

	// An in-flight Start observes Ending and unwinds its own resources
	<-done

	o.mu.Lock()
	sess := o.current
	handle := o.handle
	disposers := o.disposers
	reached := o.reachedActive
	o.mu.Unlock()

	endedAt := o.config.Clock.Now()
	ended := Ended{
		UserID:        o.userID,
		EndedAt:       endedAt,
		Reason:        reason,
		ReachedActive: reached,
	}

	func() {
		defer o.guard.Release(handle)
		if sess != nil && reason != ReasonProvider {
			o.terminateRemote(ctx, sess.ID)
		}
	}()

	for _, dispose := range disposers {
		dispose()
	}

	if sess != nil {
		ended.SessionID = sess.ID
		ended.StartedAt = sess.StartedAt
		ended.CeilingSeconds = sess.CeilingSeconds
		ended.DurationSeconds = elapsed(sess.StartedAt, endedAt)

		metrics.SessionsActive.Dec()
		metrics.SessionDuration.WithLabelValues(string(reason)).Observe(float64(ended.DurationSeconds))

		o.persist(ctx, o.record(sess, &endedAt, reason))

		o.logger.Info().
			Str("session_id", sess.ID).
			Str("reason", string(reason)).
			Int("duration_seconds", ended.DurationSeconds).
			Msg("Session ended")
	}

	o.mu.Lock()
	o.state = StateIdle
	o.current = nil
	o.handle = nil
	o.disposers = nil
	o.mu.Unlock()

	o.emit(ended)
	return true
}

// ProviderTerminated ends the session after the provider reported that
// sessionID has ended upstream
func (o *Orchestrator) ProviderTerminated(ctx context.Context, sessionID string) error {
	if !o.endSession(ctx, sessionID, ReasonProvider) {
		return ErrUnknownSession
	}
	return nil
}

// State returns the current lifecycle state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Current returns a copy of the active session, if any
func (o *Orchestrator) Current() (Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return Session{}, false
	}
	return *o.current, true
}

// ElapsedSeconds returns whole seconds since the session started, derived
// from the clock rather than counted
func (o *Orchestrator) ElapsedSeconds() int {
	sess, ok := o.Current()
	if !ok {
		return 0
	}
	return elapsed(sess.StartedAt, o.config.Clock.Now())
}

// RemainingSeconds returns max(0, ceiling - elapsed)
func (o *Orchestrator) RemainingSeconds() int {
	sess, ok := o.Current()
	if !ok {
		return 0
	}
	return o.remaining(&sess)
}

// Status returns a snapshot suitable for presentation
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	status := Status{State: o.state}
	if o.current != nil {
		sess := *o.current
		status.Session = &sess
	}
	o.mu.Unlock()

	if status.Session != nil {
		status.ElapsedSeconds = elapsed(status.Session.StartedAt, o.config.Clock.Now())
		status.RemainingSeconds = o.remaining(status.Session)
	}
	return status
}

// Subscribe registers fn for terminal events. The returned disposer may be
// called more than once.
func (o *Orchestrator) Subscribe(fn func(Ended)) (dispose func()) {
	o.subMu.Lock()
	defer o.subMu.Unlock()

	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn

	return func() {
		o.subMu.Lock()
		delete(o.subs, id)
		o.subMu.Unlock()
	}
}

func (o *Orchestrator) emit(ev Ended) {
	o.subMu.Lock()
	subs := make([]func(Ended), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.subMu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// abandonStart returns the orchestrator to Idle after a failed acquisition.
// It reports true when End is already tearing the attempt down.
func (o *Orchestrator) abandonStart() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateEnding {
		return true
	}
	o.state = StateIdle
	o.cancelStart = nil
	return false
}

func (o *Orchestrator) createError(ctx context.Context, err error) error {
	if provider.IsConflict(err) {
		metrics.SessionStarts.WithLabelValues("provider_conflict").Inc()
		o.logger.Warn().Err(err).Msg("Provider reports an active conversation")
		return &ProviderConflictError{Err: err}
	}
	if ctx.Err() != nil {
		metrics.SessionStarts.WithLabelValues("cancelled").Inc()
		return ctx.Err()
	}

	metrics.SessionStarts.WithLabelValues("create_failed").Inc()
	o.logger.Error().Err(err).Msg("Failed to create provider session")

	message := err.Error()
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		message = exhausted.LastError.Error()
	}
	return &SessionCreateFailedError{Message: message, Err: err}
}

func (o *Orchestrator) onDeviceEvent(sessionID string, ev device.Event) {
	o.logger.Warn().
		Str("session_id", sessionID).
		Str("device", string(ev.Device)).
		Str("event", string(ev.Type)).
		Msg("Capture device lost, ending session")

	o.endSession(context.Background(), sessionID, ReasonDevice)
}

// watch ends sess once its remaining time reaches zero
func (o *Orchestrator) watch(sess *Session, stop <-chan struct{}) {
	ticker := time.NewTicker(o.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if o.remaining(sess) > 0 {
				continue
			}
			if o.endSession(context.Background(), sess.ID, ReasonCeiling) {
				o.logger.Info().Str("session_id", sess.ID).Msg("Session ceiling reached")
			}
			return
		}
	}
}

func (o *Orchestrator) terminateRemote(ctx context.Context, sessionID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.config.PersistTimeout)
	defer cancel()

	if err := o.provider.EndSession(ctx, sessionID); err != nil {
		o.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to end provider session")
	}
}

func (o *Orchestrator) persist(ctx context.Context, record storage.SessionRecord) {
	if o.sessions == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.config.PersistTimeout)
	defer cancel()

	if err := o.sessions.UpsertSession(ctx, record); err != nil {
		metrics.PersistenceFailures.WithLabelValues("session").Inc()
		o.logger.Error().Err(err).Str("session_id", record.ID).Msg("Failed to persist session audit row")
	}
}

func (o *Orchestrator) record(sess *Session, endedAt *time.Time, reason EndReason) storage.SessionRecord {
	record := storage.SessionRecord{
		ID:             sess.ID,
		UserID:         sess.UserID,
		Personality:    sess.Personality,
		ProviderURL:    sess.ProviderURL,
		StartedAt:      sess.StartedAt,
		CeilingSeconds: int64(sess.CeilingSeconds),
		Active:         endedAt == nil,
	}
	if endedAt != nil {
		record.EndedAt = endedAt
		record.DurationSeconds = int64(elapsed(sess.StartedAt, *endedAt))
		record.EndReason = string(reason)
	}
	return record
}

func (o *Orchestrator) ceilingSeconds(requested int) int {
	limit := int(o.config.Ceiling / time.Second)
	if requested <= 0 || requested > limit {
		return limit
	}
	return requested
}

func (o *Orchestrator) remaining(sess *Session) int {
	left := sess.CeilingSeconds - elapsed(sess.StartedAt, o.config.Clock.Now())
	if left < 0 {
		return 0
	}
	return left
}

func elapsed(from, to time.Time) int {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}
