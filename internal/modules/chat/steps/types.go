package steps

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tubewise/tubewise-backend/internal/platform/logger"
	"github.com/tubewise/tubewise-backend/internal/platform/openai"
	"github.com/tubewise/tubewise-backend/internal/platform/qdrant"
	"github.com/tubewise/tubewise-backend/internal/repos"
)

// Intent is the classifier's discrete label selecting the downstream path.
type Intent string

const (
	IntentChitchat                   Intent = "chitchat"
	IntentQA                         Intent = "qa"
	IntentLinkedIn                   Intent = "linkedin"
	IntentMetadata                   Intent = "metadata"
	IntentMetadataSearch             Intent = "metadata_search"
	IntentMetadataSearchAndSummarize Intent = "metadata_search_and_summarize"
	IntentVideoLoad                  Intent = "video_load"
)

// ParseIntent fails closed: unknown labels are rejected, not coerced.
func ParseIntent(raw string) (Intent, bool) {
	switch Intent(strings.TrimSpace(strings.ToLower(raw))) {
	case IntentChitchat:
		return IntentChitchat, true
	case IntentQA:
		return IntentQA, true
	case IntentLinkedIn:
		return IntentLinkedIn, true
	case IntentMetadata:
		return IntentMetadata, true
	case IntentMetadataSearch:
		return IntentMetadataSearch, true
	case IntentMetadataSearchAndSummarize:
		return IntentMetadataSearchAndSummarize, true
	case IntentVideoLoad:
		return IntentVideoLoad, true
	default:
		return "", false
	}
}

func IntentValues() []Intent {
	return []Intent{
		IntentChitchat,
		IntentQA,
		IntentLinkedIn,
		IntentMetadata,
		IntentMetadataSearch,
		IntentMetadataSearchAndSummarize,
		IntentVideoLoad,
	}
}

// NeedsRetrieval reports whether the intent routes through the retriever.
func (i Intent) NeedsRetrieval() bool {
	switch i {
	case IntentQA, IntentLinkedIn, IntentMetadataSearch, IntentMetadataSearchAndSummarize:
		return true
	default:
		return false
	}
}

type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type RetrievedChunk struct {
	ChunkID        uuid.UUID
	Score          float64
	ChunkText      string
	YoutubeVideoID string
	VideoTitle     string
	ChunkIndex     int
}

// State threads through the pipeline. Nodes extend it; they never mutate a
// predecessor's fields.
type State struct {
	UserID         uuid.UUID
	ConversationID uuid.UUID
	ChannelID      *uuid.UUID
	RequestID      string

	UserQuery string
	History   []HistoryMessage

	Intent          Intent
	Confidence      float64
	RetrievedChunks []RetrievedChunk
	GradedChunks    []RetrievedChunk

	Response string
	Metadata map[string]any
}

// IngestionRunner is the video-load collaborator: fetch, chunk, embed, and
// index one video for the user, returning the video title.
type IngestionRunner interface {
	IngestVideo(ctx context.Context, userID uuid.UUID, youtubeURL string) (string, error)
}

// VideoLoadEmitter receives the side-effect frames for the video-load path.
// Emission is best-effort; a closed session turns these into no-ops.
type VideoLoadEmitter interface {
	VideoLoadConfirmation(youtubeURL, videoID string)
	VideoLoadStatus(status, videoID, videoTitle, errMsg string)
}

type Deps struct {
	Log         *logger.Logger
	DB          *gorm.DB
	AI          openai.Client
	Vec         qdrant.VectorStore
	Chunks      repos.ChunkRepo
	Transcripts repos.TranscriptRepo
	Channels    repos.ChannelRepo
	Ingest      IngestionRunner
	VideoFrames VideoLoadEmitter

	GlobalCollection  string
	TopK              int
	GraderConcurrency int
}
