package expr

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

// builtin is an allow-listed pure function. maxArgs < 0 means variadic.
type builtin struct {
	minArgs int
	maxArgs int
	call    func(args []any) (any, error)
}

// builtins is the complete set of callable names.
var builtins = map[string]builtin{
	"len":        {1, 1, fnLen},
	"lower":      {1, 1, textFn(strings.ToLower)},
	"upper":      {1, 1, textFn(strings.ToUpper)},
	"trim":       {1, 1, textFn(strings.TrimSpace)},
	"replace":    {3, 3, fnReplace},
	"substr":     {2, 3, fnSubstr},
	"contains":   {2, 2, textPredicate(strings.Contains)},
	"startswith": {2, 2, textPredicate(strings.HasPrefix)},
	"endswith":   {2, 2, textPredicate(strings.HasSuffix)},
	"split":      {3, 3, fnSplit},
	"number":     {1, 1, fnNumber},
	"text":       {1, 1, fnText},
	"round":      {1, 2, fnRound},
	"abs":        {1, 1, fnAbs},
	"min":        {1, -1, extremum(-1)},
	"max":        {1, -1, extremum(1)},
	"coalesce":   {1, -1, fnCoalesce},
}

// Names returns the allow-listed builtin names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func requireText(v any) (string, error) {
	if v == nil {
		return "", evalErr("argument is null")
	}
	return textOf(v), nil
}

func textFn(f func(string) string) func([]any) (any, error) {
	return func(args []any) (any, error) {
		s, err := requireText(args[0])
		if err != nil {
			return nil, err
		}
		return f(s), nil
	}
}

func textPredicate(f func(string, string) bool) func([]any) (any, error) {
	return func(args []any) (any, error) {
		s, err := requireText(args[0])
		if err != nil {
			return nil, err
		}
		sub, err := requireText(args[1])
		if err != nil {
			return nil, err
		}
		return f(s, sub), nil
	}
}

func fnLen(args []any) (any, error) {
	s, err := requireText(args[0])
	if err != nil {
		return nil, err
	}
	return int64(len([]rune(s))), nil
}

func fnReplace(args []any) (any, error) {
	parts := make([]string, 3)
	for i, a := range args {
		s, err := requireText(a)
		if err != nil {
			return nil, err
		}
		parts[i] = s
	}
	return strings.ReplaceAll(parts[0], parts[1], parts[2]), nil
}

func intArg(v any) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case float64:
		if n == math.Trunc(n) {
			return int(n), nil
		}
	}
	return 0, evalErr("expected integer, got %s", typeName(v))
}

// fnSubstr slices by character; negative indexes count from the end and
// out-of-range bounds are clamped.
func fnSubstr(args []any) (any, error) {
	s, err := requireText(args[0])
	if err != nil {
		return nil, err
	}
	runes := []rune(s)
	start, err := intArg(args[1])
	if err != nil {
		return nil, err
	}
	end := len(runes)
	if len(args) == 3 {
		if end, err = intArg(args[2]); err != nil {
			return nil, err
		}
	}
	start, end = clampIndex(start, len(runes)), clampIndex(end, len(runes))
	if start >= end {
		return "", nil
	}
	return string(runes[start:end]), nil
}

func clampIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	return max(0, min(i, n))
}

// fnSplit returns the idx-th part of s split on sep, or null when out of range.
func fnSplit(args []any) (any, error) {
	s, err := requireText(args[0])
	if err != nil {
		return nil, err
	}
	sep, err := requireText(args[1])
	if err != nil {
		return nil, err
	}
	if sep == "" {
		return nil, evalErr("empty separator")
	}
	idx, err := intArg(args[2])
	if err != nil {
		return nil, err
	}
	parts := strings.Split(s, sep)
	if idx < 0 {
		idx += len(parts)
	}
	if idx < 0 || idx >= len(parts) {
		return nil, nil
	}
	return parts[idx], nil
}

func fnNumber(args []any) (any, error) {
	switch v := args[0].(type) {
	case int64, float64:
		return v, nil
	case nil:
		return nil, nil
	}
	s := strings.TrimSpace(textOf(args[0]))
	if s == "" {
		return nil, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !isFinite(f) {
		return nil, evalErr("cannot convert %q to number", s)
	}
	return f, nil
}

func fnText(args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	return textOf(args[0]), nil
}

// fnRound rounds half away from zero. With one argument it yields an int.
func fnRound(args []any) (any, error) {
	f, ok := asFloat(args[0])
	if !ok {
		return nil, evalErr("expected number, got %s", typeName(args[0]))
	}
	if len(args) == 1 {
		r := math.Round(f)
		if math.Abs(r) > math.MaxInt64/2 {
			return nil, evalErr("integer overflow")
		}
		return int64(r), nil
	}
	digits, err := intArg(args[1])
	if err != nil {
		return nil, err
	}
	if digits < 0 || digits > 15 {
		return nil, evalErr("digits out of range")
	}
	scale := math.Pow(10, float64(digits))
	r := math.Round(f*scale) / scale
	if !isFinite(r) {
		return nil, evalErr("%g rounded to %d digits is not a finite number", f, digits)
	}
	return r, nil
}

func fnAbs(args []any) (any, error) {
	switch v := args[0].(type) {
	case int64:
		if v == math.MinInt64 {
			return nil, evalErr("integer overflow")
		}
		if v < 0 {
			return -v, nil
		}
		return v, nil
	case float64:
		return math.Abs(v), nil
	default:
		return nil, evalErr("expected number, got %s", typeName(v))
	}
}

// extremum returns min (sign -1) or max (sign 1) over numbers or texts.
func extremum(sign int) func([]any) (any, error) {
	return func(args []any) (any, error) {
		best := args[0]
		for _, a := range args[1:] {
			c, err := compare(a, best)
			if err != nil {
				return nil, err
			}
			if c*sign > 0 {
				best = a
			}
		}
		if best == nil {
			return nil, evalErr("argument is null")
		}
		return best, nil
	}
}

// fnCoalesce returns the first argument that is neither null nor empty text.
func fnCoalesce(args []any) (any, error) {
	for _, a := range args {
		if a == nil {
			continue
		}
		if s, ok := a.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return a, nil
	}
	return nil, nil
}
