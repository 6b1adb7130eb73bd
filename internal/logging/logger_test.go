package logging

import "testing"

func TestTruncate(t *testing.T) {
	cases := map[string]string{
		"":                  "",
		"GABC":              "GABC",
		"GABCDEFG":          "GABCDEFG",
		"GABCDEFGHIJKLMNOP": "GABCDEFG...",
		"pk_live_abcdef123": "pk_live_...",
	}
	for in, want := range cases {
		if got := Truncate(in); got != want {
			t.Fatalf("Truncate(%q) = %q, want %q", in, got, want)
		}
	}
}
