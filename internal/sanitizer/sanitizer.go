// Package sanitizer coerces untrusted input into values that are safe to put into the ledger.
package sanitizer

import (
	"encoding/json"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
)

var strictPolicy = bluemonday.StrictPolicy()

// Number converts an arbitrary value into a finite float64. It never fails: anything
// that cannot be read as a finite number becomes 0.
func Number(value any) float64 {
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case json.Number:
		return String(v.String())
	case decimal.Decimal:
		return finite(v.InexactFloat64())
	case *float64:
		if v == nil {
			return 0
		}
		return finite(*v)
	case *string:
		if v == nil {
			return 0
		}
		return String(*v)
	case string:
		return String(v)
	case bool:
		return 0
	case fmt.Stringer:
		return String(v.String())
	default:
		return 0
	}
}

// String keeps only digits, '.' and '-' and parses the rest, so "$1,234.56" reads as 1234.56.
func String(s string) float64 {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)

	if cleaned == "" {
		return 0
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}

	return finite(f)
}

// Text removes markup and surrounding whitespace from free-form text such as holding names.
func Text(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
