package engine

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/gastrack/relay/internal/types"
)

/*
 * Condition evaluation.
 *
 * Implements the 16 comparison operators with fail-closed semantics: any
 * coercion failure, missing field, non-list in/not_in operand, or unknown
 * operator evaluates to false. Evaluation never returns an error and never
 * panics; a rule with a broken condition simply does not fire.
 *
 * Coercion rules:
 *   - Numeric operators coerce both sides via toNumber (float64/int/int64
 *     and numeric strings); failure on either side -> false
 *   - Substring operators coerce both sides via stringify
 *   - is_empty/is_not_empty treat nil and whitespace-only strings as empty
 *   - in/not_in require the operand to be a list; both evaluate to false
 *     for a non-list operand (not_in does NOT fail open)
 *
 * Why function-based: operators carry almost no individual behavior, so a
 * switch reads cleaner than 16 single-method implementations.
 */

// Evaluate applies a single comparison operator to a context value.
// Unknown operators evaluate to false; callers log the configuration warning.
func Evaluate(got any, op types.Operator, want any) bool {
	switch op {
	case types.OpEquals:
		return looseEqual(got, want)
	case types.OpNotEquals:
		return !looseEqual(got, want)
	case types.OpGreaterThan:
		return compareNumeric(got, want) == 1
	case types.OpLessThan:
		return compareNumeric(got, want) == -1
	case types.OpGreaterThanOrEqual:
		c := compareNumeric(got, want)
		return c == 0 || c == 1
	case types.OpLessThanOrEqual:
		c := compareNumeric(got, want)
		return c == 0 || c == -1
	case types.OpContains:
		return strings.Contains(stringify(got), stringify(want))
	case types.OpNotContains:
		return !strings.Contains(stringify(got), stringify(want))
	case types.OpStartsWith:
		return strings.HasPrefix(stringify(got), stringify(want))
	case types.OpEndsWith:
		return strings.HasSuffix(stringify(got), stringify(want))
	case types.OpIsEmpty:
		return isEmpty(got)
	case types.OpIsNotEmpty:
		return !isEmpty(got)
	case types.OpIsNull:
		return got == nil
	case types.OpIsNotNull:
		return got != nil
	case types.OpIn:
		return inList(got, want)
	case types.OpNotIn:
		list, ok := want.([]any)
		if !ok {
			return false
		}
		return !containsValue(list, got)
	default:
		return false
	}
}

// looseEqual compares with numeric tolerance so 2 (int) equals 2.0 (float64
// from JSON). Non-numeric values fall back to deep equality, which is safe
// for the non-comparable types (maps, slices) a JSON context may hold.
func looseEqual(a, b any) bool {
	if na, nb, ok := bothNumbers(a, b); ok {
		return na == nb
	}
	return reflect.DeepEqual(a, b)
}

// compareNumeric performs three-way numeric comparison (-1/0/1).
// Returns -2 for incomparable inputs so every ordering operator fails closed.
func compareNumeric(a, b any) int {
	na, nb, ok := bothNumbers(a, b)
	if !ok {
		return -2
	}
	switch {
	case na < nb:
		return -1
	case na > nb:
		return 1
	default:
		return 0
	}
}

// bothNumbers attempts to convert both values to float64.
func bothNumbers(a, b any) (float64, float64, bool) {
	na, oka := toNumber(a)
	nb, okb := toNumber(b)
	return na, nb, oka && okb
}

// toNumber converts value to float64 if it is numeric or a numeric string.
// Whitespace-only strings and booleans are not numbers.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// isEmpty treats nil and whitespace-only strings as empty.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// inList reports whether got appears in the list operand.
// A non-list operand evaluates to false.
func inList(got, want any) bool {
	list, ok := want.([]any)
	if !ok {
		return false
	}
	return containsValue(list, got)
}

func containsValue(list []any, v any) bool {
	for _, elem := range list {
		if looseEqual(v, elem) {
			return true
		}
	}
	return false
}

// conditionsMet evaluates the rule's condition list as a logical AND.
// An empty list is vacuously true. Unknown operators are logged as
// configuration warnings and fail the condition (and therefore the rule).
func (e *Engine) conditionsMet(rule *types.AutomationRule, execCtx Context) bool {
	for _, cond := range rule.Conditions {
		if !types.KnownOperator(cond.Operator) {
			e.log.Warn("rule condition uses unknown operator",
				"rule_id", rule.ID, "operator", string(cond.Operator))
			return false
		}
		got, _ := lookupPath(execCtx, cond.Field)
		if !Evaluate(got, cond.Operator, cond.Value) {
			return false
		}
	}
	return true
}
