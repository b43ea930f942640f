package intake

import (
	"strings"
	"time"
)

// ComputeAge returns the number of whole years between dob and today.  The
// boolean is false when dob is not a YYYY-MM-DD date or lies after today.
// The result is for display only; it is never stored in a Draft or Payload.
func ComputeAge(dob string, today time.Time) (int, bool) {
	born, err := time.Parse(dateLayout, strings.TrimSpace(dob))
	if err != nil {
		return 0, false
	}
	now := dateOf(today)
	if born.After(now) {
		return 0, false
	}

	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	return age, true
}
