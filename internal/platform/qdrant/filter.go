package qdrant

import (
	"fmt"
	"sort"
	"strings"
)

// translateFilter maps a flat payload filter to Qdrant's must/must_not form.
// Scalar values become exact matches, slices become match-any, and a
// map{"$ne": v} value becomes a must_not match. Anything else is rejected so
// a bad filter fails loudly instead of silently widening a tenant's scope.
func translateFilter(filter map[string]any) (map[string]any, error) {
	const op = "filter_translate"

	must := make([]any, 0, len(filter))
	mustNot := make([]any, 0)

	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		field := strings.TrimSpace(key)
		if field == "" {
			continue
		}
		if strings.HasPrefix(field, "$") {
			return nil, opErr(op, OperationErrorUnsupportedFilter,
				fmt.Sprintf("unsupported filter operator %q", field), nil)
		}

		switch value := filter[key].(type) {
		case map[string]any:
			neVal, ok := value["$ne"]
			if !ok || len(value) != 1 {
				return nil, opErr(op, OperationErrorUnsupportedFilter,
					fmt.Sprintf("field %q has unsupported operator map", field), nil)
			}
			scalar, ok := toScalarValue(neVal)
			if !ok {
				return nil, opErr(op, OperationErrorValidation,
					fmt.Sprintf("field %q $ne expects scalar value", field), nil)
			}
			mustNot = append(mustNot, matchCondition(field, scalar))
		case []any, []string, []int, []int64, []float64, []bool:
			values, err := toScalarSlice(value)
			if err != nil {
				return nil, opErr(op, OperationErrorValidation,
					fmt.Sprintf("field %q expects scalar array", field), err)
			}
			if len(values) == 0 {
				return nil, opErr(op, OperationErrorValidation,
					fmt.Sprintf("field %q match list cannot be empty", field), nil)
			}
			must = append(must, map[string]any{
				"key":   field,
				"match": map[string]any{"any": values},
			})
		default:
			scalar, ok := toScalarValue(value)
			if !ok {
				return nil, opErr(op, OperationErrorValidation,
					fmt.Sprintf("field %q expects scalar, array, or $ne map", field), nil)
			}
			must = append(must, matchCondition(field, scalar))
		}
	}

	out := map[string]any{}
	if len(must) > 0 {
		out["must"] = must
	}
	if len(mustNot) > 0 {
		out["must_not"] = mustNot
	}
	return out, nil
}

func matchCondition(key string, value any) map[string]any {
	return map[string]any{
		"key": key,
		"match": map[string]any{
			"value": value,
		},
	}
}

func toScalarSlice(value any) ([]any, error) {
	switch typed := value.(type) {
	case []any:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			scalar, ok := toScalarValue(v)
			if !ok {
				return nil, fmt.Errorf("expected scalar, got %T", v)
			}
			out = append(out, scalar)
		}
		return out, nil
	case []string:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, v)
		}
		return out, nil
	case []int:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, v)
		}
		return out, nil
	case []int64:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, v)
		}
		return out, nil
	case []float64:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, v)
		}
		return out, nil
	case []bool:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected scalar array, got %T", value)
	}
}

func toScalarValue(value any) (any, bool) {
	switch typed := value.(type) {
	case string:
		return typed, true
	case bool:
		return typed, true
	case int:
		return typed, true
	case int32:
		return int(typed), true
	case int64:
		return typed, true
	case float32:
		return float64(typed), true
	case float64:
		return typed, true
	default:
		return nil, false
	}
}
