package steps

import (
	"context"
	"regexp"
	"strings"

	"github.com/tubewise/tubewise-backend/internal/platform/openai"
)

var youtubeURLPattern = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([A-Za-z0-9_-]{11,})`)

// ExtractYoutubeVideoID returns the video id from the first YouTube URL in
// text, or "" when no URL is present.
func ExtractYoutubeVideoID(text string) string {
	m := youtubeURLPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

type Classification struct {
	Intent     Intent
	Confidence float64
	Reasoning  string
}

// ClassifyIntent routes the user query to exactly one intent. A YouTube URL
// short-circuits to video_load without a model call. Malformed or out-of-set
// model output retries up to 2 times, then degrades to chitchat with
// confidence 0.
func ClassifyIntent(ctx context.Context, deps Deps, state *State) (Classification, error) {
	query := strings.TrimSpace(state.UserQuery)
	if ExtractYoutubeVideoID(query) != "" {
		return Classification{Intent: IntentVideoLoad, Confidence: 1.0, Reasoning: "youtube url detected"}, nil
	}

	schema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"intent": map[string]any{
				"type": "string",
				"enum": intentEnumForSchema(),
			},
			"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			"reasoning":  map[string]any{"type": "string"},
		},
		"required": []any{"intent", "confidence", "reasoning"},
	}

	system := classifySystemPrompt()
	user := renderClassifyInput(query, state.History)
	meta := openai.CallMeta{
		UserID:    state.UserID.String(),
		RequestID: state.RequestID,
		Stage:     "classify",
	}

	const maxParseAttempts = 3
	for attempt := 0; attempt < maxParseAttempts; attempt++ {
		obj, err := deps.AI.GenerateJSON(ctx, system, user, "intent_classification_v1", schema, meta)
		if err != nil {
			return Classification{}, err
		}

		rawIntent, _ := obj["intent"].(string)
		intent, ok := ParseIntent(rawIntent)
		if !ok {
			deps.Log.Warn("classifier returned out-of-set intent",
				"intent", rawIntent,
				"attempt", attempt+1,
				"request_id", state.RequestID,
			)
			continue
		}

		confidence, _ := obj["confidence"].(float64)
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
		reasoning, _ := obj["reasoning"].(string)
		return Classification{Intent: intent, Confidence: confidence, Reasoning: reasoning}, nil
	}

	deps.Log.Warn("classifier degraded to chitchat after repeated malformed output",
		"request_id", state.RequestID,
	)
	return Classification{Intent: IntentChitchat, Confidence: 0, Reasoning: "classification failed"}, nil
}

func intentEnumForSchema() []any {
	values := IntentValues()
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}
