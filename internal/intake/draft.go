// internal/intake/draft.go
//
// Intake – data model.
//
// Context
//   A Draft is the in-progress set of values typed into the patient intake
//   form.  Every field is a plain string so the form can hold partial or
//   invalid input while the user is still typing.  Nothing derived (age) and
//   nothing high-sensitivity (national identifiers) lives here.
//
//   Field names double as JSON keys and as the suffix of stable DOM ids, so
//   consumers can associate labels and error text with a field without
//   knowing the Go struct.
//
//------------------------------------------------------------------------------

package intake

import "errors"

// ErrUnknownField is returned when a caller names a field the draft does not
// carry.
var ErrUnknownField = errors.New("intake: unknown field")

// Field names one Draft key.
type Field string

const (
	FieldFirstName   Field = "firstName"
	FieldLastName    Field = "lastName"
	FieldDOB         Field = "dob"
	FieldEmail       Field = "email"
	FieldPhone       Field = "phone"
	FieldInsuranceID Field = "insuranceId"
)

var fieldOrder = []Field{
	FieldFirstName,
	FieldLastName,
	FieldDOB,
	FieldEmail,
	FieldPhone,
	FieldInsuranceID,
}

// Fields returns every draft field in display order.
func Fields() []Field {
	out := make([]Field, len(fieldOrder))
	copy(out, fieldOrder)
	return out
}

// Valid reports whether f is one of the draft fields.
func (f Field) Valid() bool {
	for _, k := range fieldOrder {
		if k == f {
			return true
		}
	}
	return false
}

// ID is the stable element id of the input bound to f.
func (f Field) ID() string { return "fld-" + string(f) }

// ErrorID is the stable element id of the error text bound to f.
func (f Field) ErrorID() string { return "err-" + string(f) }

// Draft holds raw form values.  The zero value is the empty draft.  The
// validate tags are read by Validator after every value is trimmed.
type Draft struct {
	FirstName   string `json:"firstName"             validate:"notblank"`
	LastName    string `json:"lastName"              validate:"notblank"`
	DOB         string `json:"dob"                   validate:"notblank,isodate,notfuture"` // YYYY-MM-DD
	Email       string `json:"email"                 validate:"notblank,email"`
	Phone       string `json:"phone,omitempty"       validate:"omitempty,phone"`
	InsuranceID string `json:"insuranceId,omitempty" validate:"omitempty,insuranceid"`
}

// Get returns the value stored under f.
func (d Draft) Get(f Field) string {
	switch f {
	case FieldFirstName:
		return d.FirstName
	case FieldLastName:
		return d.LastName
	case FieldDOB:
		return d.DOB
	case FieldEmail:
		return d.Email
	case FieldPhone:
		return d.Phone
	case FieldInsuranceID:
		return d.InsuranceID
	}
	return ""
}

// With returns a copy of d with f set to value.  Unknown fields return d
// unchanged together with ErrUnknownField.
func (d Draft) With(f Field, value string) (Draft, error) {
	switch f {
	case FieldFirstName:
		d.FirstName = value
	case FieldLastName:
		d.LastName = value
	case FieldDOB:
		d.DOB = value
	case FieldEmail:
		d.Email = value
	case FieldPhone:
		d.Phone = value
	case FieldInsuranceID:
		d.InsuranceID = value
	default:
		return d, ErrUnknownField
	}
	return d, nil
}

// IsEmpty reports whether no field carries a value.
func (d Draft) IsEmpty() bool { return d == Draft{} }

// FieldErrors maps a field to a user-facing message.  A missing key means the
// field is valid; an empty map means the whole draft is valid.
type FieldErrors map[Field]string

// clone returns an independent copy; nil stays nil.
func (fe FieldErrors) clone() FieldErrors {
	if fe == nil {
		return nil
	}
	out := make(FieldErrors, len(fe))
	for k, v := range fe {
		out[k] = v
	}
	return out
}

// CreatedPatientRef is the identifier returned by a successful creation call.
type CreatedPatientRef struct {
	ID string `json:"id"`
}

// Payload is the request body sent to the creation endpoint.  It is built
// from a Draft snapshot and carries the draft fields only.
type Payload struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DOB         string `json:"dob"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	InsuranceID string `json:"insuranceId,omitempty"`
}

// NewPayload copies d into a Payload with surrounding whitespace removed,
// so the values sent are the ones Validate checked.
func NewPayload(d Draft) Payload {
	d = trimmed(d)
	return Payload{
		FirstName:   d.FirstName,
		LastName:    d.LastName,
		DOB:         d.DOB,
		Email:       d.Email,
		Phone:       d.Phone,
		InsuranceID: d.InsuranceID,
	}
}
