package steps

import (
	"context"
	"fmt"

	"github.com/tubewise/tubewise-backend/internal/platform/openai"
	"github.com/tubewise/tubewise-backend/internal/types"
)

// GenerateResponse synthesizes the assistant reply for the resolved intent.
// Returns the response text plus the turn metadata persisted alongside it.
func GenerateResponse(ctx context.Context, deps Deps, state *State) (string, map[string]any, error) {
	meta := openai.CallMeta{
		UserID:    state.UserID.String(),
		RequestID: state.RequestID,
		Stage:     "generate",
	}

	sourceChunks := make([]string, 0, len(state.GradedChunks))
	for _, c := range state.GradedChunks {
		sourceChunks = append(sourceChunks, c.ChunkID.String())
	}
	turnMeta := map[string]any{
		"intent":        string(state.Intent),
		"chunks_used":   len(state.GradedChunks),
		"source_chunks": sourceChunks,
	}

	var (
		system string
		prompt string
		opts   openai.TextOptions
	)

	switch state.Intent {
	case IntentChitchat:
		system = chitchatSystemPrompt()
		prompt = renderQAInput(state.UserQuery, state.History, nil)
		opts = openai.TextOptions{System: system, Temperature: 0.8, MaxTokens: 500, Meta: meta}

	case IntentQA:
		if len(state.GradedChunks) == 0 {
			turnMeta["no_context"] = true
		}
		system = qaSystemPrompt()
		prompt = renderQAInput(state.UserQuery, state.History, state.GradedChunks)
		opts = openai.TextOptions{System: system, Temperature: 0.7, MaxTokens: 2000, Meta: meta}

	case IntentLinkedIn:
		system = linkedinSystemPrompt()
		prompt = renderQAInput(state.UserQuery, state.History, state.GradedChunks)
		opts = openai.TextOptions{System: system, Temperature: 0.7, MaxTokens: 2000, Meta: meta}

	case IntentMetadata:
		transcripts, err := listScopedTranscripts(ctx, deps, state)
		if err != nil {
			return "", nil, err
		}
		turnMeta["video_count"] = len(transcripts)
		system = metadataListSystemPrompt()
		prompt = renderMetadataListInput(state.UserQuery, transcripts)
		opts = openai.TextOptions{System: system, Temperature: 0.3, MaxTokens: 1500, Meta: meta}

	case IntentMetadataSearch:
		system = metadataSearchSystemPrompt(false)
		prompt = renderMetadataSearchInput(state.UserQuery, state.GradedChunks, false)
		opts = openai.TextOptions{System: system, Temperature: 0.3, MaxTokens: 1500, Meta: meta}

	case IntentMetadataSearchAndSummarize:
		system = metadataSearchSystemPrompt(true)
		prompt = renderMetadataSearchInput(state.UserQuery, state.GradedChunks, true)
		opts = openai.TextOptions{System: system, Temperature: 0.3, MaxTokens: 2000, Meta: meta}

	default:
		return "", nil, fmt.Errorf("generator has no template for intent %q", state.Intent)
	}

	response, usage, err := deps.AI.GenerateText(ctx, prompt, opts)
	if err != nil {
		return "", nil, err
	}
	turnMeta["total_tokens"] = usage.TotalTokens
	return response, turnMeta, nil
}

func listScopedTranscripts(ctx context.Context, deps Deps, state *State) ([]*types.Transcript, error) {
	if state.ChannelID != nil {
		return deps.Transcripts.ListByChannel(ctx, nil, *state.ChannelID)
	}
	return deps.Transcripts.ListByUser(ctx, nil, state.UserID)
}
