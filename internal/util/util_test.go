package util

import (
	"strings"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"082 123 4567":      "+27821234567",
		"0821234567":        "+27821234567",
		"27821234567":       "+27821234567",
		"+27 82 123 4567":   "+27821234567",
		"821234567":         "+27821234567",
		"+1 (415) 555-0100": "+14155550100",
		"":                  "",
	}
	for in, want := range cases {
		if got := NormalizePhone(in); got != want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderTemplate(t *testing.T) {
	got := RenderTemplate("Hi {name}, ref {ref} {missing}", map[string]string{"name": "Ann", "ref": "T1"})
	if got != "Hi Ann, ref T1 {missing}" {
		t.Fatalf("unexpected render %q", got)
	}
}

func TestRenderTemplateDoesNotExpandValues(t *testing.T) {
	vars := map[string]string{
		"amount":         "{transaction_id}",
		"transaction_id": "T1",
		"z":              "{amount}",
	}
	for i := 0; i < 20; i++ {
		got := RenderTemplate("R{amount} ref {transaction_id} {z}", vars)
		if got != "R{transaction_id} ref T1 {amount}" {
			t.Fatalf("values must be inserted verbatim, got %q", got)
		}
	}
}

func TestIDsAreSortableAndPrefixed(t *testing.T) {
	a, b := NewJobID(), NewJobID()
	if !strings.HasPrefix(a, "job_") || len(a) != len("job_")+26 {
		t.Fatalf("unexpected job id %q", a)
	}
	if a == b {
		t.Fatalf("expected unique ids")
	}
	if !strings.HasPrefix(NewCorrelationID(), "dsp_") {
		t.Fatalf("expected dsp_ prefix")
	}
}
