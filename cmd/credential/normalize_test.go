package credential

import (
	"strings"
	"testing"
)

func TestNormalizeSubject(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Alice":              "alice",
		"  bob@EXAMPLE.com ": "bob@example.com",
		"":                   "",
		"ÄÖÜ":                "äöü",
	}
	for in, want := range cases {
		if got := NormalizeSubject(in); got != want {
			t.Fatalf("NormalizeSubject(%q)=%q want %q", in, got, want)
		}
	}
}

func TestValidSubject(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want bool
	}{
		{in: "alice", want: true},
		{in: "", want: false},
		{in: "line\nbreak", want: false},
		{in: strings.Repeat("a", MaxSubjectLength), want: true},
		{in: strings.Repeat("a", MaxSubjectLength+1), want: false},
		{in: strings.Repeat("ä", MaxSubjectLength), want: true},
	}
	for _, tc := range cases {
		if got := ValidSubject(tc.in); got != tc.want {
			t.Fatalf("ValidSubject(len=%d)=%v want %v", len(tc.in), got, tc.want)
		}
	}
}

func TestErrors_Format(t *testing.T) {
	t.Parallel()

	nf := NotFoundError{Op: "credential.Get", Subject: "alice"}
	if got := nf.Error(); got != "credential.Get: not_found: alice" {
		t.Fatalf("NotFoundError=%q", got)
	}
	oe := OpError{Op: "credential.Put", Kind: ErrInvalidInput}
	if got := oe.Error(); got != "credential.Put: invalid_input" {
		t.Fatalf("OpError=%q", got)
	}
}
