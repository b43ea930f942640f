// internal/form/submit.go
//
// Intake – consolidated submit helper.
//
// Context
//   Handlers want one call that parses the POST body, checks the CSRF token,
//   copies posted values into the controller, and runs one submit attempt.
//   HandleSubmit provides that so the web handler stays terse.  Keys other
//   than draft fields (csrf_token, and anything a client invents) are
//   ignored; they never reach the draft or the payload.
//
//------------------------------------------------------------------------------

package form

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/yanizio/intake/internal/intake"
)

// ErrBadToken is returned when the CSRF token is missing, forged, or stale.
var ErrBadToken = errors.New("form: security token invalid")

// ApplyPosted copies every posted draft field into ctrl.
func ApplyPosted(ctrl *intake.Controller, posted url.Values) error {
	for _, f := range intake.Fields() {
		vals, ok := posted[string(f)]
		if !ok || len(vals) == 0 {
			continue
		}
		if err := ctrl.SetField(f, vals[0]); err != nil {
			return err
		}
	}
	return nil
}

// HandleSubmit parses r, verifies its token with s, applies the posted
// values to ctrl, and submits.  Non-nil errors mean the attempt never
// started: a malformed body, ErrBadToken, or a disposed controller.
func HandleSubmit(r *http.Request, s *Signer, ctrl *intake.Controller) (intake.Outcome, error) {
	if err := r.ParseForm(); err != nil {
		return intake.OutcomeIgnored, err
	}
	if !s.Verify(r.PostForm.Get("csrf_token")) {
		return intake.OutcomeIgnored, ErrBadToken
	}
	if err := ApplyPosted(ctrl, r.PostForm); err != nil {
		return intake.OutcomeIgnored, err
	}
	return ctrl.Submit(r.Context()), nil
}
