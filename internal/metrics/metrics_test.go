package metrics

import "testing"

func TestStatusClass(t *testing.T) {
	tests := map[int]string{0: "error", 201: "2xx", 303: "3xx", 422: "4xx", 503: "5xx"}
	for code, want := range tests {
		if got := StatusClass(code); got != want {
			t.Errorf("StatusClass(%d) = %q, want %q", code, got, want)
		}
	}
}
