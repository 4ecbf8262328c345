package protocol

import "testing"

func TestPriority(t *testing.T) {
	severities := []Severity{
		Emergency, Alert, Critical, Error,
		Warning, Notice, Informational, Debug,
	}

	for _, f := range []Facility{Kernel, User, Local0, Local7} {
		for _, s := range severities {
			pri := Priority(f, s)
			if expected := int(f)*8 + int(s); pri != expected {
				t.Fatalf("Priority(%s, %s): expected %d, got %d", f, s, expected, pri)
			}
			if pri < 0 || pri > 191 {
				t.Fatalf("Priority(%s, %s) out of range: %d", f, s, pri)
			}
		}
	}

	if pri := Priority(Local0, Informational); pri != 134 {
		t.Fatalf("expected local0/info to encode as 134, got %d", pri)
	}
}

func TestParseSeverity(t *testing.T) {
	testCases := []struct {
		in       string
		expected Severity
	}{
		{"emergency", Emergency},
		{"EMERG", Emergency},
		{"crit", Critical},
		{"error", Error},
		{"warn", Warning},
		{"info", Informational},
		{"debug", Debug},
		{"6", Informational},
		{"0", Emergency},
	}

	for _, tc := range testCases {
		s, err := ParseSeverity(tc.in)
		if err != nil {
			t.Fatalf("ParseSeverity(%q): %+v", tc.in, err)
		}
		if s != tc.expected {
			t.Fatalf("ParseSeverity(%q): expected %s, got %s", tc.in, tc.expected, s)
		}
	}

	for _, in := range []string{"", "fatal", "8", "-1"} {
		if _, err := ParseSeverity(in); err == nil {
			t.Fatalf("ParseSeverity(%q): expected an error", in)
		}
	}
}

func TestParseFacility(t *testing.T) {
	testCases := []struct {
		in       string
		expected Facility
	}{
		{"kern", Kernel},
		{"daemon", Daemon},
		{"LOCAL0", Local0},
		{"local7", Local7},
		{"16", Local0},
		{"23", Local7},
	}

	for _, tc := range testCases {
		f, err := ParseFacility(tc.in)
		if err != nil {
			t.Fatalf("ParseFacility(%q): %+v", tc.in, err)
		}
		if f != tc.expected {
			t.Fatalf("ParseFacility(%q): expected %s, got %s", tc.in, tc.expected, f)
		}
	}

	for _, in := range []string{"", "local8", "24", "-1"} {
		if _, err := ParseFacility(in); err == nil {
			t.Fatalf("ParseFacility(%q): expected an error", in)
		}
	}
}
