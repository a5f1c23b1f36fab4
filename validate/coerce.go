package validate

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/jonwraymond/calldispatch/route"
)

var (
	errString  = validation.NewError("validation_is_string", "must be a string")
	errNumber  = validation.NewError("validation_is_number", "must be a number")
	errInteger = validation.NewError("validation_is_integer", "must be an integer")
	errBoolean = validation.NewError("validation_is_boolean", "must be a boolean")
	errObject  = validation.NewError("validation_is_object", "must be an object")
	errArray   = validation.NewError("validation_is_array", "must be an array")
)

// coerce converts v to the representation of typ: float64 for number, int64
// for integer, bool for boolean, []any for array. An empty typ keeps v.
func coerce(typ string, v any) (any, error) {
	switch typ {
	case route.TypeString:
		if _, ok := v.(string); !ok {
			return nil, errString
		}
		return v, nil
	case route.TypeNumber:
		n, ok := toFloat(v)
		if !ok {
			return nil, errNumber
		}
		return n, nil
	case route.TypeInteger:
		n, ok := toInt(v)
		if !ok {
			return nil, errInteger
		}
		return n, nil
	case route.TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
				return parsed, nil
			}
		}
		return nil, errBoolean
	case route.TypeObject:
		if _, ok := v.(map[string]any); !ok {
			return nil, errObject
		}
		return v, nil
	case route.TypeArray:
		switch a := v.(type) {
		case []any:
			return a, nil
		case []string:
			out := make([]any, len(a))
			for i, s := range a {
				out[i] = s
			}
			return out, nil
		}
		return nil, errArray
	default:
		return v, nil
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}

func asFloat(v any) float64 {
	f, _ := toFloat(v)
	return f
}
