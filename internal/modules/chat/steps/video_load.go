package steps

import (
	"context"
	"fmt"
	"strings"
)

const (
	VideoLoadStarted   = "started"
	VideoLoadCompleted = "completed"
	VideoLoadFailed    = "failed"
)

// RunVideoLoad hands the turn to the ingestion collaborator instead of
// generating a reply. The persisted assistant message is a short templated
// acknowledgment; no RAG context is consumed.
func RunVideoLoad(ctx context.Context, deps Deps, state *State) (string, map[string]any, error) {
	videoID := ExtractYoutubeVideoID(state.UserQuery)
	if videoID == "" {
		return "", nil, fmt.Errorf("video_load intent without a recognizable youtube url")
	}
	youtubeURL := extractYoutubeURL(state.UserQuery)

	if deps.VideoFrames != nil {
		deps.VideoFrames.VideoLoadConfirmation(youtubeURL, videoID)
		deps.VideoFrames.VideoLoadStatus(VideoLoadStarted, videoID, "", "")
	}

	title, err := deps.Ingest.IngestVideo(ctx, state.UserID, youtubeURL)
	if err != nil {
		if deps.VideoFrames != nil {
			deps.VideoFrames.VideoLoadStatus(VideoLoadFailed, videoID, "", err.Error())
		}
		return "", nil, err
	}

	if deps.VideoFrames != nil {
		deps.VideoFrames.VideoLoadStatus(VideoLoadCompleted, videoID, title, "")
	}

	response := fmt.Sprintf("Added video *%s* to your library.", title)
	turnMeta := map[string]any{
		"intent":           string(IntentVideoLoad),
		"chunks_used":      0,
		"source_chunks":    []string{},
		"youtube_video_id": videoID,
		"video_title":      title,
	}
	return response, turnMeta, nil
}

func extractYoutubeURL(text string) string {
	for _, field := range strings.Fields(text) {
		if youtubeURLPattern.MatchString(field) {
			return strings.Trim(field, `"'<>()`)
		}
	}
	// The id matched somewhere but not on a whole token; rebuild a canonical URL.
	return "https://www.youtube.com/watch?v=" + ExtractYoutubeVideoID(text)
}
