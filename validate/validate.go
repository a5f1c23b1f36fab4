package validate

import (
	"fmt"
	"maps"
	"mime/multipart"
	"regexp"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/jonwraymond/calldispatch/route"
)

// Errors lists one message per failing parameter, ordered by parameter name.
type Errors struct {
	Messages []string `json:"messages"`
}

// Empty reports whether validation passed.
func (e Errors) Empty() bool {
	return len(e.Messages) == 0
}

func (e Errors) Error() string {
	return strings.Join(e.Messages, "; ")
}

// Validate checks params and files against the parameters declared by call
// and by its authentication binding. Parameters outside the schema are left
// alone. Accepted numeric and boolean strings are replaced in params by their
// parsed values.
func Validate(call *route.Call, params map[string]any, files map[string][]*multipart.FileHeader) Errors {
	var errs Errors
	if call == nil {
		return errs
	}

	schema := route.CombineWithAuthentication(*call).Parameters
	for _, name := range slices.Sorted(maps.Keys(schema)) {
		if err := check(name, schema[name], params, files); err != nil {
			errs.Messages = append(errs.Messages, name+" "+err.Error())
		}
	}
	return errs
}

func check(name string, spec route.ParamSpec, params map[string]any, files map[string][]*multipart.FileHeader) error {
	if spec.Type == route.TypeFile {
		if spec.Required && len(files[name]) == 0 {
			return validation.ErrRequired
		}
		return nil
	}

	raw, ok := params[name]
	if !ok || blank(raw) {
		if spec.Required {
			return validation.ErrRequired
		}
		return nil
	}

	v, err := coerce(spec.Type, raw)
	if err != nil {
		return err
	}
	params[name] = v

	return validation.Validate(v, rules(spec, v)...)
}

// blank treats nil and the empty string as absent; 0 and false are values.
func blank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func rules(spec route.ParamSpec, v any) []validation.Rule {
	var rs []validation.Rule

	switch v.(type) {
	case string:
		if spec.Pattern != "" {
			rs = append(rs, validation.Match(pattern(spec.Pattern)))
		}
		if spec.Min != nil || spec.Max != nil {
			rs = append(rs, lengthRange(spec.Min, spec.Max))
		}
	case float64, int64:
		if spec.Min != nil || spec.Max != nil {
			rs = append(rs, numberRange(spec.Min, spec.Max))
		}
	case []any, map[string]any:
		if spec.Min != nil || spec.Max != nil {
			rs = append(rs, lengthRange(spec.Min, spec.Max))
		}
	}

	if len(spec.Enum) > 0 {
		rs = append(rs, oneOf(spec.Enum))
	}
	return rs
}

// lengthRange bounds the rune count of a string or the size of a list or
// object. ozzo's Length reads a zero max as unbounded; here max 0 means the
// value must be empty.
func lengthRange(lo, hi *float64) validation.Rule {
	return validation.By(func(value any) error {
		var n int
		switch v := value.(type) {
		case string:
			n = utf8.RuneCountInString(v)
		case []any:
			n = len(v)
		case map[string]any:
			n = len(v)
		}
		switch {
		case hi != nil && *hi == 0 && n > 0:
			return validation.ErrLengthEmptyRequired
		case lo != nil && float64(n) < *lo:
			return validation.ErrLengthTooShort.SetParams(map[string]any{"min": *lo})
		case hi != nil && float64(n) > *hi:
			return validation.ErrLengthTooLong.SetParams(map[string]any{"max": *hi})
		}
		return nil
	})
}

// numberRange bounds a numeric value. ozzo's Min and Max skip zero values,
// which would let 0 through a positive minimum.
func numberRange(lo, hi *float64) validation.Rule {
	return validation.By(func(value any) error {
		n := asFloat(value)
		if lo != nil && n < *lo {
			return validation.ErrMinGreaterEqualThanRequired.SetParams(map[string]any{"threshold": *lo})
		}
		if hi != nil && n > *hi {
			return validation.ErrMaxLessEqualThanRequired.SetParams(map[string]any{"threshold": *hi})
		}
		return nil
	})
}

// oneOf compares the value's string form against the allowed strings.
func oneOf(allowed []string) validation.Rule {
	in := make([]any, len(allowed))
	for i, s := range allowed {
		in[i] = s
	}
	return validation.By(func(value any) error {
		return validation.Validate(fmt.Sprint(value), validation.In(in...))
	})
}

var patterns sync.Map // string -> *regexp.Regexp

// pattern compiles expr once. Route loading rejects patterns that do not
// compile, so a failure here matches nothing.
func pattern(expr string) *regexp.Regexp {
	if re, ok := patterns.Load(expr); ok {
		return re.(*regexp.Regexp)
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		re = regexp.MustCompile(`[^\s\S]`)
	}
	actual, _ := patterns.LoadOrStore(expr, re)
	return actual.(*regexp.Regexp)
}
