package progress

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
	}{
		"zero":     {"0s", "0m 00s"},
		"seconds":  {"42s", "0m 42s"},
		"minutes":  {"3m7s", "3m 07s"},
		"hours":    {"1h2m3s", "62m 03s"},
		"negative": {"-5s", "0m 00s"},
	}
	for name, tc := range cases {
		d, err := time.ParseDuration(tc.in)
		if err != nil {
			t.Fatal(err)
		}
		if got := formatDuration(d); got != tc.want {
			t.Errorf("%s: formatDuration(%s) = %q, want %q", name, tc.in, got, tc.want)
		}
	}
}
