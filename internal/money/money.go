package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// All balances and transaction amounts are held as int64 minor units (cents).
// Decimal strings exist only at the display and gateway boundaries, and this
// package is the only place that converts between the two.

const minorPerMajor = 100

// ErrInvalidAmount indicates the input is not a non-negative decimal amount.
var ErrInvalidAmount = errors.New("invalid amount")

// SchemaVersionMinorUnits marks wallet rows whose balance column holds an
// integer count of minor units. Rows at SchemaVersionLegacy predate the
// migration and hold a major-unit decimal instead.
const (
	SchemaVersionLegacy     = 0
	SchemaVersionMinorUnits = 1
)

// ToMinorUnits parses a decimal string into minor units, rounding half-up to
// two fraction digits. Negative, empty, and malformed input is rejected.
// Parsing is done digit by digit so no float ever touches a monetary value.
func ToMinorUnits(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("%w: negative", ErrInvalidAmount)
	}
	s = strings.TrimPrefix(s, "+")

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" && fracPart == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	var major int64
	for _, r := range intPart {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		d := int64(r - '0')
		if major > (1<<62)/10 {
			return 0, fmt.Errorf("%w: overflow", ErrInvalidAmount)
		}
		major = major*10 + d
	}

	var frac int64
	switch {
	case len(fracPart) == 0:
		frac = 0
	default:
		for _, r := range fracPart {
			if r < '0' || r > '9' {
				return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
			}
		}
		frac = int64(digit(fracPart, 0))*10 + int64(digit(fracPart, 1))
		// Round half-up on the third fraction digit.
		if len(fracPart) > 2 && digit(fracPart, 2) >= 5 {
			frac++
		}
	}

	if major > (math.MaxInt64-frac)/minorPerMajor {
		return 0, fmt.Errorf("%w: overflow", ErrInvalidAmount)
	}
	return major*minorPerMajor + frac, nil
}

// ToDisplayUnits renders minor units as a decimal string with exactly two
// fraction digits, the format the payment network expects.
func ToDisplayUnits(m int64) string {
	sign := ""
	if m < 0 {
		sign = "-"
		m = -m
	}
	return fmt.Sprintf("%s%d.%02d", sign, m/minorPerMajor, m%minorPerMajor)
}

// NormalizeLegacy converts a raw balance column value into minor units based
// on the wallet's schema version. Version decides the interpretation; the
// shape of the value never does.
func NormalizeLegacy(schemaVersion int, raw string) (int64, error) {
	switch schemaVersion {
	case SchemaVersionMinorUnits:
		text := strings.TrimSpace(raw)
		// NUMERIC columns render with their declared scale, so an integral
		// minor-unit count arrives as e.g. "999900.0000". Any non-zero
		// fraction digit means the row is corrupt, not legacy.
		if intPart, fracPart, found := strings.Cut(text, "."); found {
			if fracPart == "" || strings.Trim(fracPart, "0") != "" {
				return 0, fmt.Errorf("%w: fractional minor units %q", ErrInvalidAmount, raw)
			}
			text = intPart
		}
		minor, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
		}
		if minor < 0 {
			return 0, fmt.Errorf("%w: negative balance", ErrInvalidAmount)
		}
		return minor, nil
	case SchemaVersionLegacy:
		return ToMinorUnits(raw)
	default:
		return 0, fmt.Errorf("%w: unknown schema version %d", ErrInvalidAmount, schemaVersion)
	}
}

func digit(s string, i int) byte {
	if i >= len(s) {
		return 0
	}
	return s[i] - '0'
}
