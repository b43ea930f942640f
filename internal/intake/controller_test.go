package intake

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yanizio/intake/internal/metrics"
)

// fakeCreator records calls and returns a scripted result.  When gate is set,
// Create signals entered and then blocks until gate is closed.
type fakeCreator struct {
	mu       sync.Mutex
	calls    []Payload
	attempts []string
	ref      CreatedPatientRef
	err      error
	panicMsg string

	entered chan struct{}
	gate    chan struct{}
}

func (f *fakeCreator) Create(ctx context.Context, p Payload) (CreatedPatientRef, error) {
	f.mu.Lock()
	f.calls = append(f.calls, p)
	f.attempts = append(f.attempts, AttemptID(ctx))
	f.mu.Unlock()

	if f.gate != nil {
		f.entered <- struct{}{}
		<-f.gate
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.ref, f.err
}

func (f *fakeCreator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func blockingCreator(ref CreatedPatientRef, err error) *fakeCreator {
	return &fakeCreator{
		ref:     ref,
		err:     err,
		entered: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
}

// fill writes d into c field by field, the way a form would.
func fill(t *testing.T, c *Controller, d Draft) {
	t.Helper()
	for _, f := range Fields() {
		if err := c.SetField(f, d.Get(f)); err != nil {
			t.Fatalf("SetField(%s): %v", f, err)
		}
	}
}

type successSpy struct {
	mu   sync.Mutex
	refs []CreatedPatientRef
}

func (s *successSpy) record(ref CreatedPatientRef) {
	s.mu.Lock()
	s.refs = append(s.refs, ref)
	s.mu.Unlock()
}

func (s *successSpy) got() []CreatedPatientRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CreatedPatientRef(nil), s.refs...)
}

func newController(cr Creator, spy *successSpy) *Controller {
	return New(cr, WithClock(clock), WithOnSuccess(spy.record))
}

func TestController_InitialState(t *testing.T) {
	c := New(&fakeCreator{})

	v := c.View()
	if v.State != Idle || v.Loading {
		t.Fatalf("state = %v loading=%v, want idle", v.State, v.Loading)
	}
	if !v.Draft.IsEmpty() || v.Age != nil || v.Message != "" || len(v.FieldErrors) != 0 {
		t.Fatalf("unexpected initial view: %#v", v)
	}
}

func TestController_InvalidDraftNeverCallsCreator(t *testing.T) {
	cr := &fakeCreator{ref: CreatedPatientRef{ID: "abc"}}
	spy := &successSpy{}
	c := newController(cr, spy)

	d := validDraft()
	d.LastName = ""
	d.Email = "broken"
	fill(t, c, d)

	if out := c.Submit(context.Background()); out != OutcomeInvalid {
		t.Fatalf("outcome = %v, want invalid", out)
	}
	if cr.count() != 0 {
		t.Fatalf("creator called %d times", cr.count())
	}

	v := c.View()
	if v.State != Idle {
		t.Errorf("state = %v, want idle", v.State)
	}
	if len(v.FieldErrors) != 2 || v.FieldErrors[FieldLastName] == "" || v.FieldErrors[FieldEmail] == "" {
		t.Errorf("field errors = %#v", v.FieldErrors)
	}
	if v.Draft != d {
		t.Errorf("draft changed: %#v", v.Draft)
	}
	if len(spy.got()) != 0 {
		t.Error("onSuccess called for invalid draft")
	}
}

func TestController_ValidDraftSendsSnapshotPayload(t *testing.T) {
	cr := &fakeCreator{ref: CreatedPatientRef{ID: "abc"}}
	c := newController(cr, &successSpy{})

	d := validDraft()
	d.DOB = "2000-01-01"
	d.Phone = "+14155550123"
	fill(t, c, d)

	c.Submit(context.Background())

	if cr.count() != 1 {
		t.Fatalf("creator called %d times, want 1", cr.count())
	}
	if cr.calls[0] != NewPayload(d) {
		t.Fatalf("payload = %#v, want %#v", cr.calls[0], NewPayload(d))
	}
	if cr.attempts[0] == "" {
		t.Error("attempt id not propagated")
	}
}

func TestController_PayloadIsTrimmed(t *testing.T) {
	cr := &fakeCreator{ref: CreatedPatientRef{ID: "abc"}}
	c := newController(cr, &successSpy{})

	d := validDraft()
	d.Email = "  ada@example.com "
	d.FirstName = "\tAda"
	fill(t, c, d)

	if out := c.Submit(context.Background()); out != OutcomeSucceeded {
		t.Fatalf("outcome = %v", out)
	}
	got := cr.calls[0]
	if got.Email != "ada@example.com" || got.FirstName != "Ada" {
		t.Fatalf("payload not trimmed: %#v", got)
	}
}

func TestController_PanickingCallbackCountsAsSucceeded(t *testing.T) {
	succeeded := metrics.SubmissionsTotal.WithLabelValues(OutcomeSucceeded.String())
	ignored := metrics.SubmissionsTotal.WithLabelValues(OutcomeIgnored.String())
	beforeOK, beforeIgnored := testutil.ToFloat64(succeeded), testutil.ToFloat64(ignored)

	c := New(&fakeCreator{ref: CreatedPatientRef{ID: "abc"}},
		WithClock(clock),
		WithOnSuccess(func(CreatedPatientRef) { panic("callback bug") }))
	fill(t, c, validDraft())

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("callback panic swallowed")
			}
		}()
		c.Submit(context.Background())
	}()

	if d := testutil.ToFloat64(succeeded) - beforeOK; d != 1 {
		t.Errorf("succeeded delta = %v, want 1", d)
	}
	if d := testutil.ToFloat64(ignored) - beforeIgnored; d != 0 {
		t.Errorf("ignored delta = %v, want 0", d)
	}
	if c.State() != Succeeded {
		t.Errorf("state = %v", c.State())
	}
	if !c.Reset() {
		t.Error("gate still held after callback panic")
	}
}

func TestController_SuccessResetsDraftAndNotifiesOnce(t *testing.T) {
	cr := &fakeCreator{ref: CreatedPatientRef{ID: "abc"}}
	spy := &successSpy{}
	c := newController(cr, spy)
	fill(t, c, validDraft())

	if out := c.Submit(context.Background()); out != OutcomeSucceeded {
		t.Fatalf("outcome = %v, want succeeded", out)
	}

	got := spy.got()
	if len(got) != 1 || got[0] != (CreatedPatientRef{ID: "abc"}) {
		t.Fatalf("onSuccess calls = %#v", got)
	}
	v := c.View()
	if v.State != Succeeded || v.Loading {
		t.Errorf("state = %v loading=%v", v.State, v.Loading)
	}
	if !v.Draft.IsEmpty() {
		t.Errorf("draft not reset: %#v", v.Draft)
	}
}

func TestController_HTTPFailureKeepsDraftAndHidesBody(t *testing.T) {
	raw := []byte(`{"error":"constraint patient_email_key violated at db-7"}`)
	cr := &fakeCreator{err: &HTTPError{StatusCode: 422, RawBody: raw}}
	spy := &successSpy{}
	c := newController(cr, spy)
	d := validDraft()
	fill(t, c, d)

	if out := c.Submit(context.Background()); out != OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", out)
	}

	v := c.View()
	if v.State != Failed {
		t.Errorf("state = %v, want failed", v.State)
	}
	if v.Message != MsgReview {
		t.Errorf("message = %q", v.Message)
	}
	if strings.Contains(v.Message, "constraint") || strings.Contains(v.Message, string(raw)) {
		t.Errorf("message leaks raw body: %q", v.Message)
	}
	if v.Draft != d {
		t.Errorf("draft not preserved: %#v", v.Draft)
	}
	if len(spy.got()) != 0 {
		t.Error("onSuccess called on failure")
	}
}

func TestController_RetryAfterFailure(t *testing.T) {
	cr := &fakeCreator{err: &NetworkError{Err: errors.New("dial tcp: connection refused")}}
	spy := &successSpy{}
	c := newController(cr, spy)
	fill(t, c, validDraft())

	if out := c.Submit(context.Background()); out != OutcomeFailed {
		t.Fatalf("first outcome = %v", out)
	}
	if c.View().Message != MsgNetwork {
		t.Fatalf("message = %q", c.View().Message)
	}

	cr.mu.Lock()
	cr.err, cr.ref = nil, CreatedPatientRef{ID: "p-2"}
	cr.mu.Unlock()

	if out := c.Submit(context.Background()); out != OutcomeSucceeded {
		t.Fatalf("retry outcome = %v", out)
	}
	if c.View().Message != "" {
		t.Errorf("message not cleared: %q", c.View().Message)
	}
	if len(spy.got()) != 1 {
		t.Errorf("onSuccess calls = %d", len(spy.got()))
	}
}

func TestController_InvalidAfterFailureStaysFailed(t *testing.T) {
	cr := &fakeCreator{err: &HTTPError{StatusCode: 500}}
	c := newController(cr, &successSpy{})
	fill(t, c, validDraft())
	c.Submit(context.Background())

	_ = c.SetField(FieldFirstName, " ")
	if out := c.Submit(context.Background()); out != OutcomeInvalid {
		t.Fatalf("outcome = %v", out)
	}
	if c.State() != Failed {
		t.Fatalf("state = %v, want failed", c.State())
	}
	if cr.count() != 1 {
		t.Fatalf("creator called %d times", cr.count())
	}
}

func TestController_SecondSubmitWhilePendingIsNoop(t *testing.T) {
	cr := blockingCreator(CreatedPatientRef{ID: "abc"}, nil)
	spy := &successSpy{}
	c := newController(cr, spy)
	fill(t, c, validDraft())

	done := make(chan Outcome, 1)
	go func() { done <- c.Submit(context.Background()) }()
	<-cr.entered

	if v := c.View(); v.State != Submitting || !v.Loading {
		t.Fatalf("state = %v loading=%v, want submitting", v.State, v.Loading)
	}
	if out := c.Submit(context.Background()); out != OutcomeIgnored {
		t.Fatalf("second outcome = %v, want ignored", out)
	}
	if c.Reset() {
		t.Fatal("Reset succeeded while submitting")
	}

	close(cr.gate)
	if out := <-done; out != OutcomeSucceeded {
		t.Fatalf("first outcome = %v", out)
	}
	if cr.count() != 1 {
		t.Fatalf("creator called %d times, want 1", cr.count())
	}
	if len(spy.got()) != 1 {
		t.Fatalf("onSuccess calls = %d", len(spy.got()))
	}
}

func TestController_EditsDuringFlightDoNotReachPayload(t *testing.T) {
	cr := blockingCreator(CreatedPatientRef{}, &HTTPError{StatusCode: 503})
	c := newController(cr, &successSpy{})
	d := validDraft()
	fill(t, c, d)

	done := make(chan Outcome, 1)
	go func() { done <- c.Submit(context.Background()) }()
	<-cr.entered

	_ = c.SetField(FieldFirstName, "Augusta")
	close(cr.gate)
	<-done

	if cr.calls[0].FirstName != "Ada" {
		t.Fatalf("in-flight payload mutated: %q", cr.calls[0].FirstName)
	}
	if got := c.View().Draft.FirstName; got != "Augusta" {
		t.Fatalf("edit lost, draft firstName = %q", got)
	}
	if c.View().Message != MsgUnavailable {
		t.Fatalf("message = %q", c.View().Message)
	}
}

func TestController_DisposeDiscardsSettlement(t *testing.T) {
	cr := blockingCreator(CreatedPatientRef{ID: "abc"}, nil)
	spy := &successSpy{}
	c := newController(cr, spy)
	d := validDraft()
	fill(t, c, d)

	done := make(chan Outcome, 1)
	go func() { done <- c.Submit(context.Background()) }()
	<-cr.entered

	c.Dispose()
	close(cr.gate)

	if out := <-done; out != OutcomeDiscarded {
		t.Fatalf("outcome = %v, want discarded", out)
	}
	if len(spy.got()) != 0 {
		t.Fatal("onSuccess called after dispose")
	}
	if c.View().Draft != d {
		t.Fatal("draft written after dispose")
	}
	if err := c.SetField(FieldEmail, "x@example.com"); !errors.Is(err, ErrDisposed) {
		t.Fatalf("SetField after dispose: %v", err)
	}
	// Lock was released: a new Submit is discarded, not ignored.
	if out := c.Submit(context.Background()); out != OutcomeDiscarded {
		t.Fatalf("post-dispose outcome = %v", out)
	}
}

func TestController_PanicReleasesLock(t *testing.T) {
	cr := &fakeCreator{panicMsg: "nil map write in transport"}
	c := newController(cr, &successSpy{})
	fill(t, c, validDraft())

	if out := c.Submit(context.Background()); out != OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", out)
	}
	if c.View().Message != MsgGeneric {
		t.Fatalf("message = %q", c.View().Message)
	}

	cr.mu.Lock()
	cr.panicMsg, cr.ref = "", CreatedPatientRef{ID: "ok"}
	cr.mu.Unlock()
	if out := c.Submit(context.Background()); out != OutcomeSucceeded {
		t.Fatalf("outcome after panic = %v", out)
	}
}

func TestController_EmptyIDIsDecodeFailure(t *testing.T) {
	cr := &fakeCreator{ref: CreatedPatientRef{}}
	spy := &successSpy{}
	c := newController(cr, spy)
	fill(t, c, validDraft())

	if out := c.Submit(context.Background()); out != OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", out)
	}
	if c.View().Message != MsgDecode {
		t.Fatalf("message = %q", c.View().Message)
	}
	if len(spy.got()) != 0 {
		t.Fatal("onSuccess called for empty id")
	}
}

func TestController_ResetAndAge(t *testing.T) {
	c := newController(&fakeCreator{err: &HTTPError{StatusCode: 409}}, &successSpy{})
	d := validDraft()
	d.DOB = "2000-01-01"
	fill(t, c, d)

	v := c.View()
	if v.Age == nil || *v.Age != 26 {
		t.Fatalf("age = %v, want 26", v.Age)
	}
	if v.Draft.DOB != "2000-01-01" {
		t.Fatal("age display touched the draft")
	}

	c.Submit(context.Background())
	if c.View().Message != MsgDuplicate {
		t.Fatalf("message = %q", c.View().Message)
	}

	if !c.Reset() {
		t.Fatal("Reset refused while idle")
	}
	v = c.View()
	if v.State != Idle || !v.Draft.IsEmpty() || v.Message != "" || v.Age != nil {
		t.Fatalf("view after reset: %#v", v)
	}
}

func TestController_SucceededFallsBackToIdleOnInvalid(t *testing.T) {
	c := newController(&fakeCreator{ref: CreatedPatientRef{ID: "abc"}}, &successSpy{})
	fill(t, c, validDraft())
	c.Submit(context.Background())

	// Draft is empty after success, so the next attempt is invalid.
	if out := c.Submit(context.Background()); out != OutcomeInvalid {
		t.Fatalf("outcome = %v", out)
	}
	if c.State() != Idle {
		t.Fatalf("state = %v, want idle", c.State())
	}
}

func TestSafeMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&HTTPError{StatusCode: 400}, MsgReview},
		{&HTTPError{StatusCode: 422, RawBody: []byte("secret")}, MsgReview},
		{&HTTPError{StatusCode: 401}, MsgUnauthorized},
		{&HTTPError{StatusCode: 403}, MsgUnauthorized},
		{&HTTPError{StatusCode: 409}, MsgDuplicate},
		{&HTTPError{StatusCode: 404}, MsgRejected},
		{&HTTPError{StatusCode: 502}, MsgUnavailable},
		{&NetworkError{Err: context.DeadlineExceeded}, MsgNetwork},
		{&DecodeError{Err: ErrEmptyID}, MsgDecode},
		{errors.New("boom"), MsgGeneric},
	}
	for _, tc := range tests {
		if got := SafeMessage(tc.err); got != tc.want {
			t.Errorf("SafeMessage(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{Idle: "idle", Submitting: "submitting", Succeeded: "succeeded", Failed: "failed"} {
		if s.String() != want {
			t.Errorf("%d.String() = %q", s, s.String())
		}
	}
}
