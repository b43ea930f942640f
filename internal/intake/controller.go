// internal/intake/controller.go
//
// Intake – submission controller.
//
// Context
//   Controller owns the submit lifecycle of one intake form view:
//
//      Idle/Failed/Succeeded ──submit, valid──▶ Submitting ──ok──▶ Succeeded
//                                                    └─────err──▶ Failed
//
//   An invalid draft never leaves its current state (Succeeded falls back to
//   Idle) and never reaches the Creator.  There is no terminal state; the
//   next attempt or Reset starts over.
//
// Workflow
//   •  Submit try-acquires a one-slot semaphore.  The slot is held exactly
//      while an attempt runs, so a second Submit during a pending one returns
//      OutcomeIgnored without touching the network.  Release is deferred, so
//      it happens on every exit path, panics included.
//   •  Validation and the Creator call both use one Snapshot taken at the
//      start of the attempt.  Edits made while the call is pending land in
//      the Store but not in the in-flight Payload.
//   •  Settlement is the single place failures are handled: state becomes
//      Failed, the user sees SafeMessage text, and the raw detail goes to the
//      diagnostic logger.  Success resets the draft and calls onSuccess once.
//   •  After Dispose, settlements are discarded: no state writes and no
//      callback.
//
//------------------------------------------------------------------------------

package intake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/yanizio/intake/internal/metrics"
)

// ErrDisposed is returned by SetField once the owning view is gone.
var ErrDisposed = errors.New("intake: controller disposed")

// maxLoggedBody caps how much of a raw response body reaches the logs.
const maxLoggedBody = 512

// State is the submit lifecycle state.
type State int

const (
	Idle State = iota
	Submitting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome reports what one Submit call did.
type Outcome int

const (
	OutcomeIgnored   Outcome = iota // another attempt was pending
	OutcomeInvalid                  // field errors, no network call
	OutcomeSucceeded                // created; draft reset; onSuccess called
	OutcomeFailed                   // Creator failed; draft kept
	OutcomeDiscarded                // view disposed; result dropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Creator performs the creation request.  Failures should be *HTTPError,
// *NetworkError, or *DecodeError; anything else is shown as a generic error.
type Creator interface {
	Create(ctx context.Context, p Payload) (CreatedPatientRef, error)
}

// CreatorFunc adapts a function to Creator.
type CreatorFunc func(ctx context.Context, p Payload) (CreatedPatientRef, error)

func (f CreatorFunc) Create(ctx context.Context, p Payload) (CreatedPatientRef, error) {
	return f(ctx, p)
}

// View is the read model handed to the UI layer.  Message belongs in an
// assertive live region; FieldErrors are keyed by Field so the consumer can
// bind each one to Field.ErrorID.
type View struct {
	State       State
	Loading     bool
	Draft       Draft
	Age         *int // derived from Draft.DOB on every read
	FieldErrors FieldErrors
	Message     string
}

// Option configures a Controller.
type Option func(*Controller)

// WithValidator replaces the default Validator.
func WithValidator(v *Validator) Option { return func(c *Controller) { c.validator = v } }

// WithClock sets the source of "today" for validation and age display.
func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

// WithLogger sets the diagnostic channel.
func WithLogger(l *zap.SugaredLogger) Option { return func(c *Controller) { c.log = l } }

// WithOnSuccess registers the collaborator told about a created patient.
func WithOnSuccess(fn func(CreatedPatientRef)) Option {
	return func(c *Controller) { c.onSuccess = fn }
}

// WithStore lets the caller share a Store it already populates.
func WithStore(s *Store) Option { return func(c *Controller) { c.store = s } }

// Controller is safe for concurrent use.
type Controller struct {
	creator   Creator
	store     *Store
	validator *Validator
	now       func() time.Time
	log       *zap.SugaredLogger
	onSuccess func(CreatedPatientRef)

	gate *semaphore.Weighted // held exactly while Submitting

	mu        sync.Mutex
	state     State
	fieldErrs FieldErrors
	message   string
	disposed  bool
}

// New returns an Idle controller with an empty draft.
func New(creator Creator, opts ...Option) *Controller {
	c := &Controller{
		creator: creator,
		gate:    semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.store == nil {
		c.store = NewStore()
	}
	if c.validator == nil {
		c.validator = NewValidator(c.now)
	}
	if c.log == nil {
		c.log = zap.NewNop().Sugar()
	}
	return c
}

// SetField merges one edit into the current draft.
func (c *Controller) SetField(name Field, value string) error {
	c.mu.Lock()
	disposed := c.disposed
	c.mu.Unlock()
	if disposed {
		return ErrDisposed
	}
	return c.store.SetField(name, value)
}

// Submit runs one validate → create → settle attempt.
func (c *Controller) Submit(ctx context.Context) (out Outcome) {
	defer func() { metrics.SubmissionsTotal.WithLabelValues(out.String()).Inc() }()

	if !c.gate.TryAcquire(1) {
		return OutcomeIgnored
	}
	defer c.gate.Release(1)

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return OutcomeDiscarded
	}

	snap := c.store.Snapshot()
	if errs := c.validator.Validate(snap); len(errs) > 0 {
		c.fieldErrs = errs
		if c.state != Failed {
			c.state = Idle
		}
		c.mu.Unlock()
		for f := range errs {
			metrics.ValidationFailuresTotal.WithLabelValues(string(f)).Inc()
		}
		return OutcomeInvalid
	}

	c.state = Submitting
	c.fieldErrs = nil
	c.message = ""
	c.mu.Unlock()

	attempt := uuid.NewString()
	c.log.Debugw("patient submission started", "attempt", attempt)

	ref, err := c.create(WithAttemptID(ctx, attempt), NewPayload(snap))
	out, notify := c.settle(attempt, ref, err)
	if notify != nil {
		notify(ref)
	}
	return out
}

// create calls the Creator, turning a panic or an id-less success into an
// error so settle sees every result the same way.
func (c *Controller) create(ctx context.Context, p Payload) (ref CreatedPatientRef, err error) {
	metrics.SubmissionsInFlight.Inc()
	defer metrics.SubmissionsInFlight.Dec()
	defer func() {
		if r := recover(); r != nil {
			ref, err = CreatedPatientRef{}, fmt.Errorf("creator panic: %v", r)
		}
	}()

	ref, err = c.creator.Create(ctx, p)
	if err == nil && ref.ID == "" {
		err = &DecodeError{Err: ErrEmptyID}
	}
	return ref, err
}

// settle applies the result and returns the onSuccess callback for Submit to
// run once the outcome is fixed.
func (c *Controller) settle(attempt string, ref CreatedPatientRef, err error) (Outcome, func(CreatedPatientRef)) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		c.log.Infow("submission settled after dispose, result dropped",
			"attempt", attempt, "created", err == nil, "patient_id", ref.ID)
		return OutcomeDiscarded, nil
	}

	if err != nil {
		c.state = Failed
		c.message = SafeMessage(err)
		c.mu.Unlock()
		c.logFailure(attempt, err)
		return OutcomeFailed, nil
	}

	c.store.Reset()
	c.state = Succeeded
	cb := c.onSuccess
	c.mu.Unlock()

	c.log.Infow("patient created", "attempt", attempt, "patient_id", ref.ID)
	return OutcomeSucceeded, cb
}

// logFailure routes raw failure detail to the diagnostic channel.
func (c *Controller) logFailure(attempt string, err error) {
	cat := category(err)
	metrics.SubmissionFailuresTotal.WithLabelValues(cat).Inc()

	fields := []any{"attempt", attempt, "category", cat, "err", err}
	var (
		he *HTTPError
		de *DecodeError
	)
	switch {
	case errors.As(err, &he):
		fields = append(fields, "status", he.StatusCode, "body", clip(he.RawBody))
	case errors.As(err, &de):
		fields = append(fields, "body", clip(de.RawBody))
	}
	c.log.Warnw("patient submission failed", fields...)
}

// Reset returns the controller to Idle with an empty draft.  It reports false
// and does nothing while an attempt is pending.
func (c *Controller) Reset() bool {
	if !c.gate.TryAcquire(1) {
		return false
	}
	defer c.gate.Release(1)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Reset()
	c.state = Idle
	c.fieldErrs = nil
	c.message = ""
	return true
}

// Dispose marks the owning view as torn down.
func (c *Controller) Dispose() {
	c.mu.Lock()
	c.disposed = true
	c.mu.Unlock()
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// View returns a consistent copy of everything the UI renders.
func (c *Controller) View() View {
	c.mu.Lock()
	v := View{
		State:       c.state,
		Loading:     c.state == Submitting,
		FieldErrors: c.fieldErrs.clone(),
		Message:     c.message,
	}
	c.mu.Unlock()

	v.Draft = c.store.Snapshot()
	if age, ok := ComputeAge(v.Draft.DOB, c.now()); ok {
		v.Age = &age
	}
	return v
}

func clip(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "…"
	}
	return string(b)
}
