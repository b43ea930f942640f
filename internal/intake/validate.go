// internal/intake/validate.go
//
// Intake – field validation.
//
// Context
//   Validate maps a Draft to FieldErrors.  It is pure apart from reading the
//   injected clock, always synchronous, and never touches the network.  Rules
//   are declared as go-playground/validator tags on Draft; the custom tags
//   below cover what the stock rule set does not.
//
// Workflow
//   •  Every value is trimmed first, so "  " counts as blank and a padded
//      email still validates.
//   •  The validator reports at most one failing tag per field.  That tag is
//      translated to a user-facing message keyed by the JSON field name.
//
//------------------------------------------------------------------------------

package intake

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

var (
	phoneRe     = regexp.MustCompile(`^\+?[0-9().\- ]+$`)
	insuranceRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{2,29}$`)
)

var labels = map[Field]string{
	FieldFirstName:   "First name",
	FieldLastName:    "Last name",
	FieldDOB:         "Date of birth",
	FieldEmail:       "Email",
	FieldPhone:       "Phone",
	FieldInsuranceID: "Insurance ID",
}

// Label returns the human-readable name of f.
func (f Field) Label() string {
	if l, ok := labels[f]; ok {
		return l
	}
	return string(f)
}

// Validator checks drafts against the intake rules.  Safe for concurrent use.
type Validator struct {
	v   *validator.Validate
	now func() time.Time
}

// NewValidator builds a Validator.  now supplies "today" for the date of
// birth check; nil means time.Now.
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	iv := &Validator{v: validator.New(validator.WithRequiredStructEnabled()), now: now}

	iv.v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Registration only fails on empty tags or nil funcs.
	_ = iv.v.RegisterValidation("notblank", notBlank)
	_ = iv.v.RegisterValidation("isodate", isoDate)
	_ = iv.v.RegisterValidation("notfuture", iv.notFuture)
	_ = iv.v.RegisterValidation("phone", phone)
	_ = iv.v.RegisterValidation("insuranceid", insuranceID)

	return iv
}

// Validate returns the field errors for d.  The result is never nil; an empty
// map means d may be submitted.
func (iv *Validator) Validate(d Draft) FieldErrors {
	errs := FieldErrors{}
	clean := trimmed(d)

	err := iv.v.Struct(clean)
	if err == nil {
		return errs
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError only happens for non-struct input.
		for _, f := range fieldOrder {
			errs[f] = "Unable to validate this field."
		}
		return errs
	}

	for _, fe := range verrs {
		f := Field(fe.Field())
		if _, seen := errs[f]; seen {
			continue
		}
		errs[f] = message(f, fe.Tag())
	}
	return errs
}

/*──────────────────────────── rules ───────────────────────────────────────*/

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func isoDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(dateLayout, fl.Field().String())
	return err == nil
}

// notFuture compares at date granularity in the clock's location: today
// passes, tomorrow fails.  Unparseable input is left to isodate.
func (iv *Validator) notFuture(fl validator.FieldLevel) bool {
	dob, err := time.Parse(dateLayout, fl.Field().String())
	if err != nil {
		return true
	}
	return !dob.After(dateOf(iv.now()))
}

func phone(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if !phoneRe.MatchString(s) || strings.LastIndex(s, "+") > 0 {
		return false
	}
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n >= 7 && n <= 15
}

func insuranceID(fl validator.FieldLevel) bool {
	return insuranceRe.MatchString(fl.Field().String())
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func trimmed(d Draft) Draft {
	return Draft{
		FirstName:   strings.TrimSpace(d.FirstName),
		LastName:    strings.TrimSpace(d.LastName),
		DOB:         strings.TrimSpace(d.DOB),
		Email:       strings.TrimSpace(d.Email),
		Phone:       strings.TrimSpace(d.Phone),
		InsuranceID: strings.TrimSpace(d.InsuranceID),
	}
}

// dateOf drops the clock part of t, keeping its calendar date, as a UTC
// midnight so it compares with values from time.Parse.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func message(f Field, tag string) string {
	switch tag {
	case "notblank", "required":
		return fmt.Sprintf("%s is required.", f.Label())
	case "email":
		return "Enter a valid email address."
	case "isodate":
		return "Enter a valid date (YYYY-MM-DD)."
	case "notfuture":
		return "Date of birth cannot be in the future."
	case "phone":
		return "Enter a valid phone number."
	case "insuranceid":
		return "Insurance ID must be 3-30 letters, digits, or hyphens."
	default:
		return fmt.Sprintf("%s is invalid.", f.Label())
	}
}
