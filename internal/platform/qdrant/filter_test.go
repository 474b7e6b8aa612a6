package qdrant

import (
	"errors"
	"testing"
)

func TestTranslateFilterScalarAndList(t *testing.T) {
	out, err := translateFilter(map[string]any{
		"user_id":          "u-1",
		"youtube_video_id": []string{"vid-1", "vid-2"},
	})
	if err != nil {
		t.Fatalf("translateFilter: %v", err)
	}
	must, ok := out["must"].([]any)
	if !ok {
		t.Fatalf("must type: got=%T", out["must"])
	}
	if len(must) != 2 {
		t.Fatalf("must length: want=2 got=%d", len(must))
	}
	if _, hasNot := out["must_not"]; hasNot {
		t.Fatalf("unexpected must_not: %v", out["must_not"])
	}
}

func TestTranslateFilterNotEqual(t *testing.T) {
	out, err := translateFilter(map[string]any{
		"channel_id": map[string]any{"$ne": "ch-1"},
	})
	if err != nil {
		t.Fatalf("translateFilter: %v", err)
	}
	mustNot, ok := out["must_not"].([]any)
	if !ok || len(mustNot) != 1 {
		t.Fatalf("must_not: got=%v", out["must_not"])
	}
	cond, ok := mustNot[0].(map[string]any)
	if !ok || cond["key"] != "channel_id" {
		t.Fatalf("condition: got=%v", mustNot[0])
	}
}

func TestTranslateFilterDeterministicOrder(t *testing.T) {
	out, err := translateFilter(map[string]any{
		"b_field": "2",
		"a_field": "1",
	})
	if err != nil {
		t.Fatalf("translateFilter: %v", err)
	}
	must := out["must"].([]any)
	first := must[0].(map[string]any)
	if first["key"] != "a_field" {
		t.Fatalf("expected sorted field order, got first=%v", first["key"])
	}
}

func TestTranslateFilterRejectsOperatorKeys(t *testing.T) {
	_, err := translateFilter(map[string]any{"$and": []any{}})
	var typed *OperationError
	if !errors.As(err, &typed) {
		t.Fatalf("expected OperationError, got=%T", err)
	}
	if typed.Code != OperationErrorUnsupportedFilter {
		t.Fatalf("code: want=%q got=%q", OperationErrorUnsupportedFilter, typed.Code)
	}
}

func TestTranslateFilterRejectsEmptyList(t *testing.T) {
	_, err := translateFilter(map[string]any{"youtube_video_id": []string{}})
	var typed *OperationError
	if !errors.As(err, &typed) {
		t.Fatalf("expected OperationError, got=%T", err)
	}
	if typed.Code != OperationErrorValidation {
		t.Fatalf("code: want=%q got=%q", OperationErrorValidation, typed.Code)
	}
}

func TestTranslateFilterRejectsUnsupportedOperatorMap(t *testing.T) {
	_, err := translateFilter(map[string]any{
		"score": map[string]any{"$gt": 1},
	})
	var typed *OperationError
	if !errors.As(err, &typed) {
		t.Fatalf("expected OperationError, got=%T", err)
	}
	if typed.Code != OperationErrorUnsupportedFilter {
		t.Fatalf("code: want=%q got=%q", OperationErrorUnsupportedFilter, typed.Code)
	}
}
