package services

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "strings"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
  "github.com/tubewise/tubewise-backend/internal/modules/chat/steps"
  "github.com/tubewise/tubewise-backend/internal/platform/apierr"
  "github.com/tubewise/tubewise-backend/internal/platform/logger"
  "github.com/tubewise/tubewise-backend/internal/platform/openai"
  "github.com/tubewise/tubewise-backend/internal/platform/qdrant"
  "github.com/tubewise/tubewise-backend/internal/repos"
  "github.com/tubewise/tubewise-backend/internal/types"
)

// FetchedTranscript is what the external fetcher hands back for one video.
type FetchedTranscript struct {
  YoutubeVideoID string
  Title          string
  ChannelName    string
  Duration       int
  Text           string
}

// TranscriptFetcher resolves a YouTube video id to its transcript. The
// concrete implementation talks to whatever transcript source is deployed;
// the service only depends on this seam.
type TranscriptFetcher interface {
  Fetch(ctx context.Context, youtubeVideoID string) (*FetchedTranscript, error)
}

// ChunkingOptions hold the token-window parameters.
type ChunkingOptions struct {
  SizeTokens int
  OverlapPct int
}

type IngestionService interface {
  // IngestVideo is the video_load path: fetch, persist, chunk, embed, index
  // into the user's global collection. Idempotent per (user, video).
  IngestVideo(ctx context.Context, userID uuid.UUID, youtubeURL string) (string, error)

  // IndexTranscriptForChannel copies a transcript's chunks into the channel's
  // collection with channel_id payloads.
  IndexTranscriptForChannel(ctx context.Context, channel *types.Channel, transcript *types.Transcript) error
}

type ingestionService struct {
  db             *gorm.DB
  log            *logger.Logger
  ai             openai.Client
  vec            qdrant.VectorStore
  fetcher        TranscriptFetcher
  transcriptRepo repos.TranscriptRepo
  chunkRepo      repos.ChunkRepo

  globalCollection string
  embedDim         int
  chunking         ChunkingOptions
}

func NewIngestionService(
  db *gorm.DB,
  log *logger.Logger,
  ai openai.Client,
  vec qdrant.VectorStore,
  fetcher TranscriptFetcher,
  transcriptRepo repos.TranscriptRepo,
  chunkRepo repos.ChunkRepo,
  globalCollection string,
  embedDim int,
  chunking ChunkingOptions,
) IngestionService {
  serviceLog := log.With("service", "IngestionService")
  if chunking.SizeTokens <= 0 {
    chunking.SizeTokens = 700
  }
  if chunking.OverlapPct < 0 || chunking.OverlapPct >= 100 {
    chunking.OverlapPct = 20
  }
  return &ingestionService{
    db:               db,
    log:              serviceLog,
    ai:               ai,
    vec:              vec,
    fetcher:          fetcher,
    transcriptRepo:   transcriptRepo,
    chunkRepo:        chunkRepo,
    globalCollection: globalCollection,
    embedDim:         embedDim,
    chunking:         chunking,
  }
}

func (is *ingestionService) IngestVideo(ctx context.Context, userID uuid.UUID, youtubeURL string) (string, error) {
  videoID := steps.ExtractYoutubeVideoID(strings.TrimSpace(youtubeURL))
  if videoID == "" {
    return "", apierr.InvalidInput(fmt.Errorf("not a recognizable youtube url: %q", youtubeURL))
  }

  // Idempotence: a second load of the same video is a no-op.
  existing, err := is.transcriptRepo.GetByUserAndVideoID(ctx, nil, userID, videoID)
  if err == nil {
    is.log.Info("video already ingested", "youtube_video_id", videoID, "user_id", userID.String())
    return existing.Title, nil
  }
  if !errors.Is(err, gorm.ErrRecordNotFound) {
    return "", apierr.Internal(fmt.Errorf("check existing transcript: %w", err))
  }

  fetched, err := is.fetcher.Fetch(ctx, videoID)
  if err != nil {
    return "", apierr.External(fmt.Errorf("fetch transcript for %s: %w", videoID, err))
  }
  if strings.TrimSpace(fetched.Text) == "" {
    return "", apierr.External(fmt.Errorf("video %s has no transcript", videoID))
  }

  title := strings.TrimSpace(fetched.Title)
  if title == "" {
    title = videoID
  }

  metadata, _ := json.Marshal(map[string]any{
    "channel_name": fetched.ChannelName,
    "duration":     fetched.Duration,
  })

  transcript := &types.Transcript{
    ID:             uuid.New(),
    UserID:         userID,
    YoutubeVideoID: videoID,
    Title:          title,
    ChannelName:    fetched.ChannelName,
    Duration:       fetched.Duration,
    TranscriptText: fetched.Text,
    Metadata:       datatypes.JSON(metadata),
  }

  spans := chunkByTokenWindow(fetched.Text, is.chunking.SizeTokens, is.chunking.OverlapPct)
  if len(spans) == 0 {
    return "", apierr.External(fmt.Errorf("video %s transcript produced no chunks", videoID))
  }

  if err := is.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if _, err := is.transcriptRepo.Create(ctx, tx, transcript); err != nil {
      return fmt.Errorf("create transcript: %w", err)
    }
    chunks := make([]*types.Chunk, 0, len(spans))
    for i, span := range spans {
      chunks = append(chunks, &types.Chunk{
        ID:           uuid.New(),
        TranscriptID: transcript.ID,
        UserID:       userID,
        ChunkIndex:   i,
        ChunkText:    span.text,
        TokenCount:   span.tokens,
      })
    }
    if _, err := is.chunkRepo.Create(ctx, tx, chunks); err != nil {
      return fmt.Errorf("create chunks: %w", err)
    }
    return is.indexChunks(ctx, is.globalCollection, transcript, chunks, nil)
  }); err != nil {
    var ae *apierr.Error
    if errors.As(err, &ae) {
      return "", err
    }
    return "", apierr.Internal(err)
  }

  is.log.Info("video ingested",
    "youtube_video_id", videoID,
    "user_id", userID.String(),
    "chunks", len(spans),
  )
  return title, nil
}

func (is *ingestionService) IndexTranscriptForChannel(ctx context.Context, channel *types.Channel, transcript *types.Transcript) error {
  source, err := is.chunkRepo.GetByTranscriptID(ctx, nil, transcript.ID)
  if err != nil {
    return apierr.Internal(fmt.Errorf("load transcript chunks: %w", err))
  }

  var personal []*types.Chunk
  for _, c := range source {
    if c.ChannelID == nil {
      personal = append(personal, c)
    }
  }
  if len(personal) == 0 {
    // Transcript was ingested without personal chunks; re-chunk from the text.
    spans := chunkByTokenWindow(transcript.TranscriptText, is.chunking.SizeTokens, is.chunking.OverlapPct)
    for i, span := range spans {
      personal = append(personal, &types.Chunk{
        TranscriptID: transcript.ID,
        UserID:       transcript.UserID,
        ChunkIndex:   i,
        ChunkText:    span.text,
        TokenCount:   span.tokens,
      })
    }
  }
  if len(personal) == 0 {
    return apierr.Internal(fmt.Errorf("transcript %s has no chunkable content", transcript.ID))
  }

  return is.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    channelChunks := make([]*types.Chunk, 0, len(personal))
    for _, c := range personal {
      channelID := channel.ID
      channelChunks = append(channelChunks, &types.Chunk{
        ID:           uuid.New(),
        TranscriptID: transcript.ID,
        UserID:       transcript.UserID,
        ChannelID:    &channelID,
        ChunkIndex:   c.ChunkIndex,
        ChunkText:    c.ChunkText,
        TokenCount:   c.TokenCount,
      })
    }
    if _, err := is.chunkRepo.Create(ctx, tx, channelChunks); err != nil {
      return fmt.Errorf("create channel chunks: %w", err)
    }
    return is.indexChunks(ctx, channel.QdrantCollectionName, transcript, channelChunks, &channel.ID)
  })
}

// indexChunks embeds chunk texts and upserts them with the retrieval payload.
// Point id equals chunk row id, so hydration is a straight id lookup.
func (is *ingestionService) indexChunks(ctx context.Context, collection string, transcript *types.Transcript, chunks []*types.Chunk, channelID *uuid.UUID) error {
  texts := make([]string, 0, len(chunks))
  for _, c := range chunks {
    texts = append(texts, c.ChunkText)
  }
  meta := openai.CallMeta{UserID: transcript.UserID.String(), Stage: "ingest_embed"}
  vectors, err := is.ai.Embed(ctx, texts, meta)
  if err != nil {
    return apierr.External(fmt.Errorf("embed chunks: %w", err))
  }
  if len(vectors) != len(chunks) {
    return apierr.External(fmt.Errorf("embed chunks: expected %d vectors, got %d", len(chunks), len(vectors)))
  }

  points := make([]qdrant.Vector, 0, len(chunks))
  for i, c := range chunks {
    payload := map[string]any{
      "chunk_id":         c.ID.String(),
      "user_id":          c.UserID.String(),
      "youtube_video_id": transcript.YoutubeVideoID,
      "chunk_index":      c.ChunkIndex,
      "chunk_text":       c.ChunkText,
    }
    if channelID != nil {
      payload["channel_id"] = channelID.String()
    }
    points = append(points, qdrant.Vector{
      ID:      c.ID.String(),
      Values:  vectors[i],
      Payload: payload,
    })
  }
  if err := is.vec.Upsert(ctx, collection, points); err != nil {
    return apierr.External(fmt.Errorf("upsert vectors into %s: %w", collection, err))
  }
  return nil
}

type chunkSpan struct {
  text   string
  tokens int
}

// chunkByTokenWindow splits text into overlapping windows. Tokens are
// approximated by whitespace-delimited words; close enough for window sizing.
func chunkByTokenWindow(text string, sizeTokens, overlapPct int) []chunkSpan {
  words := strings.Fields(text)
  if len(words) == 0 {
    return nil
  }
  if sizeTokens <= 0 {
    sizeTokens = 700
  }
  step := sizeTokens - sizeTokens*overlapPct/100
  if step <= 0 {
    step = sizeTokens
  }

  var spans []chunkSpan
  for start := 0; start < len(words); start += step {
    end := start + sizeTokens
    if end > len(words) {
      end = len(words)
    }
    window := words[start:end]
    spans = append(spans, chunkSpan{
      text:   strings.Join(window, " "),
      tokens: len(window),
    })
    if end == len(words) {
      break
    }
  }
  return spans
}
