package money

import (
	"errors"
	"testing"
)

func TestToMinorUnits(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"0.00", 0},
		{"1", 100},
		{"10.50", 1050},
		{"9999.99", 999999},
		{"0.1", 10},
		{"0.005", 1},
		{"0.004", 0},
		{"12.345", 1235},
		{" 42.00 ", 4200},
	}
	for _, tc := range cases {
		got, err := ToMinorUnits(tc.in)
		if err != nil {
			t.Fatalf("ToMinorUnits(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ToMinorUnits(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestToMinorUnitsRejects(t *testing.T) {
	for _, in := range []string{"", "-1.00", "abc", "1.2.3", "1,50", "NaN", "."} {
		if _, err := ToMinorUnits(in); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("ToMinorUnits(%q): expected ErrInvalidAmount, got %v", in, err)
		}
	}
}

func TestToMinorUnitsOverflow(t *testing.T) {
	// 2e17 major units is 2e19 minor units, past the int64 range; the
	// conversion must reject it rather than wrap to a positive value.
	for _, in := range []string{"200000000000000000.00", "92233720368547758.08", "9999999999999999999"} {
		if _, err := ToMinorUnits(in); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("ToMinorUnits(%q): expected overflow rejection, got %v", in, err)
		}
	}

	// The largest representable amount still converts exactly.
	minor, err := ToMinorUnits("92233720368547758.07")
	if err != nil {
		t.Fatalf("max amount: %v", err)
	}
	if minor != 9223372036854775807 {
		t.Fatalf("expected max int64, got %d", minor)
	}
}

func TestDisplayRoundTrip(t *testing.T) {
	for _, display := range []string{"0.00", "0.01", "1.00", "10.50", "9999.99", "10000.00"} {
		minor, err := ToMinorUnits(display)
		if err != nil {
			t.Fatalf("ToMinorUnits(%q): %v", display, err)
		}
		if got := ToDisplayUnits(minor); got != display {
			t.Fatalf("round trip of %q yielded %q", display, got)
		}
	}
}

func TestNormalizeLegacy(t *testing.T) {
	minor, err := NormalizeLegacy(SchemaVersionMinorUnits, "123456")
	if err != nil {
		t.Fatalf("minor-unit row: %v", err)
	}
	if minor != 123456 {
		t.Fatalf("expected 123456, got %d", minor)
	}

	// Legacy rows hold major-unit decimals; the version tag alone selects
	// the conversion, even when the value would parse as an integer.
	minor, err = NormalizeLegacy(SchemaVersionLegacy, "1234.56")
	if err != nil {
		t.Fatalf("legacy row: %v", err)
	}
	if minor != 123456 {
		t.Fatalf("expected 123456, got %d", minor)
	}

	minor, err = NormalizeLegacy(SchemaVersionLegacy, "50")
	if err != nil {
		t.Fatalf("legacy integer row: %v", err)
	}
	if minor != 5000 {
		t.Fatalf("expected 5000, got %d", minor)
	}

	if _, err := NormalizeLegacy(7, "100"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for unknown version, got %v", err)
	}
}

func TestNormalizeLegacyAcceptsNumericScaleText(t *testing.T) {
	// The balance column is NUMERIC with a fixed scale, so Postgres renders
	// integral minor-unit counts with trailing zero fraction digits.
	cases := []struct {
		raw  string
		want int64
	}{
		{"0.0000", 0},
		{"999900.0000", 999900},
		{"123456.00", 123456},
	}
	for _, tc := range cases {
		got, err := NormalizeLegacy(SchemaVersionMinorUnits, tc.raw)
		if err != nil {
			t.Fatalf("NormalizeLegacy(v1, %q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizeLegacy(v1, %q) = %d, want %d", tc.raw, got, tc.want)
		}
	}

	// A non-zero fraction digit on a minor-unit row is corruption, not a
	// rendering artifact.
	for _, raw := range []string{"123.4500", "0.0001", "50."} {
		if _, err := NormalizeLegacy(SchemaVersionMinorUnits, raw); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("NormalizeLegacy(v1, %q): expected ErrInvalidAmount, got %v", raw, err)
		}
	}
}
