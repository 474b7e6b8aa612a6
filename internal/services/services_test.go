package services

import (
  "context"
  "errors"
  "strings"
  "testing"
  "time"
  "github.com/google/uuid"
  "gorm.io/driver/sqlite"
  "gorm.io/gorm"
  gormlogger "gorm.io/gorm/logger"
  "github.com/tubewise/tubewise-backend/internal/platform/apierr"
  "github.com/tubewise/tubewise-backend/internal/platform/logger"
  "github.com/tubewise/tubewise-backend/internal/platform/qdrant"
  "github.com/tubewise/tubewise-backend/internal/repos"
  "github.com/tubewise/tubewise-backend/internal/types"
)

// The service tests run against in-memory sqlite with a hand-written schema:
// the production DDL leans on Postgres defaults (uuid_generate_v4, jsonb)
// that sqlite does not have, and the services set ids themselves anyway.
const testSchema = `
CREATE TABLE conversation (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  title TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);
CREATE TABLE channel (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  display_title TEXT,
  description TEXT,
  qdrant_collection_name TEXT NOT NULL,
  created_by TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);
CREATE TABLE channel_conversation (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  channel_id TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME,
  UNIQUE (user_id, channel_id)
);
CREATE TABLE message (
  id TEXT PRIMARY KEY,
  conversation_id TEXT,
  channel_conversation_id TEXT,
  role TEXT NOT NULL,
  content TEXT NOT NULL,
  metadata TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);
CREATE TABLE transcript (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  youtube_video_id TEXT NOT NULL,
  title TEXT NOT NULL,
  channel_name TEXT,
  duration INTEGER,
  transcript_text TEXT NOT NULL,
  metadata TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);
CREATE TABLE chunk (
  id TEXT PRIMARY KEY,
  transcript_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  channel_id TEXT,
  chunk_index INTEGER NOT NULL,
  chunk_text TEXT NOT NULL,
  token_count INTEGER,
  metadata TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);
`

// recordingVectorStore is a no-op vector backend that remembers filtered
// deletes so tests can assert what would have been dropped.
type recordingVectorStore struct {
  filterDeletes []filterDelete
}

type filterDelete struct {
  collection string
  filter     map[string]any
}

func (v *recordingVectorStore) EnsureCollection(ctx context.Context, collection string, dim int) error {
  return nil
}

func (v *recordingVectorStore) EnsurePayloadIndexes(ctx context.Context, collection string, fields []string) error {
  return nil
}

func (v *recordingVectorStore) Upsert(ctx context.Context, collection string, vectors []qdrant.Vector) error {
  return nil
}

func (v *recordingVectorStore) Search(ctx context.Context, collection string, query []float32, filter map[string]any, limit int) ([]qdrant.Match, error) {
  return nil, nil
}

func (v *recordingVectorStore) Delete(ctx context.Context, collection string, ids []string) error {
  return nil
}

func (v *recordingVectorStore) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
  v.filterDeletes = append(v.filterDeletes, filterDelete{collection: collection, filter: filter})
  return nil
}

func (v *recordingVectorStore) DropCollection(ctx context.Context, collection string) error {
  return nil
}

type serviceFixture struct {
  db                  *gorm.DB
  log                 *logger.Logger
  vec                 *recordingVectorStore
  conversations       ConversationService
  channelConversation ChannelConversationService
  turns               TurnService
  transcripts         TranscriptService
  conversationRepo    repos.ConversationRepo
  channelRepo         repos.ChannelRepo
  messageRepo         repos.MessageRepo
  transcriptRepo      repos.TranscriptRepo
  chunkRepo           repos.ChunkRepo
}

func newServiceFixture(t *testing.T) *serviceFixture {
  t.Helper()
  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("logger.New: %v", err)
  }
  t.Cleanup(func() {
    log.Sync()
  })

  // One shared-cache memory DB per test so pooled connections see the same
  // schema without tests seeing each other's rows.
  dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
  db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
    Logger: gormlogger.Default.LogMode(gormlogger.Silent),
  })
  if err != nil {
    t.Fatalf("open sqlite: %v", err)
  }
  sqlDB, err := db.DB()
  if err != nil {
    t.Fatalf("unwrap sql.DB: %v", err)
  }
  sqlDB.SetMaxOpenConns(1)
  t.Cleanup(func() {
    sqlDB.Close()
  })

  for _, stmt := range strings.Split(testSchema, ";") {
    stmt = strings.TrimSpace(stmt)
    if stmt == "" {
      continue
    }
    if err := db.Exec(stmt).Error; err != nil {
      t.Fatalf("create schema: %v", err)
    }
  }

  conversationRepo := repos.NewConversationRepo(db, log)
  channelConversationRepo := repos.NewChannelConversationRepo(db, log)
  channelRepo := repos.NewChannelRepo(db, log)
  messageRepo := repos.NewMessageRepo(db, log)
  transcriptRepo := repos.NewTranscriptRepo(db, log)
  chunkRepo := repos.NewChunkRepo(db, log)
  vec := &recordingVectorStore{}

  return &serviceFixture{
    db:                  db,
    log:                 log,
    vec:                 vec,
    conversations:       NewConversationService(db, log, conversationRepo, messageRepo),
    channelConversation: NewChannelConversationService(db, log, channelConversationRepo, channelRepo, messageRepo),
    turns:               NewTurnService(db, log, messageRepo, conversationRepo, channelConversationRepo),
    transcripts:         NewTranscriptService(db, log, vec, transcriptRepo, chunkRepo, "transcripts_global"),
    conversationRepo:    conversationRepo,
    channelRepo:         channelRepo,
    messageRepo:         messageRepo,
    transcriptRepo:      transcriptRepo,
    chunkRepo:           chunkRepo,
  }
}

func (f *serviceFixture) seedChannel(t *testing.T, name string) *types.Channel {
  t.Helper()
  channel := &types.Channel{
    ID:                   uuid.New(),
    Name:                 name,
    QdrantCollectionName: CollectionNameForChannel(name),
    CreatedBy:            uuid.New(),
  }
  created, err := f.channelRepo.Create(context.Background(), nil, channel)
  if err != nil {
    t.Fatalf("seed channel: %v", err)
  }
  return created
}

func TestDefaultConversationTitle(t *testing.T) {
  at := time.Date(2026, 8, 26, 9, 30, 0, 0, time.UTC)
  if got := DefaultConversationTitle(at); got != "Chat 2026-08-26 09:30" {
    t.Fatalf("title: got=%q", got)
  }
}

func TestGetOrCreateConversationCreatesWithDefaultTitle(t *testing.T) {
  f := newServiceFixture(t)
  userID := uuid.New()

  conversation, err := f.conversations.GetOrCreate(context.Background(), userID, nil)
  if err != nil {
    t.Fatalf("GetOrCreate: %v", err)
  }
  if conversation.ID == uuid.Nil {
    t.Fatalf("conversation id not set")
  }
  if !strings.HasPrefix(conversation.Title, "Chat ") {
    t.Fatalf("default title: got=%q", conversation.Title)
  }

  again, err := f.conversations.GetOrCreate(context.Background(), userID, &conversation.ID)
  if err != nil {
    t.Fatalf("GetOrCreate existing: %v", err)
  }
  if again.ID != conversation.ID {
    t.Fatalf("existing lookup: want=%s got=%s", conversation.ID, again.ID)
  }
}

func TestConversationOwnership(t *testing.T) {
  f := newServiceFixture(t)
  owner := uuid.New()
  stranger := uuid.New()

  conversation, err := f.conversations.GetOrCreate(context.Background(), owner, nil)
  if err != nil {
    t.Fatalf("GetOrCreate: %v", err)
  }

  if _, _, err := f.conversations.GetDetail(context.Background(), stranger, conversation.ID); apierr.CodeOf(err) != apierr.CodeForbidden {
    t.Fatalf("stranger access: want=%s got=%v", apierr.CodeForbidden, err)
  }
  missing := uuid.New()
  if _, _, err := f.conversations.GetDetail(context.Background(), owner, missing); apierr.CodeOf(err) != apierr.CodeNotFound {
    t.Fatalf("missing conversation: want=%s got=%v", apierr.CodeNotFound, err)
  }
}

func TestUpdateTitleValidation(t *testing.T) {
  f := newServiceFixture(t)
  userID := uuid.New()
  conversation, err := f.conversations.GetOrCreate(context.Background(), userID, nil)
  if err != nil {
    t.Fatalf("GetOrCreate: %v", err)
  }

  if _, err := f.conversations.UpdateTitle(context.Background(), userID, conversation.ID, "   "); apierr.CodeOf(err) != apierr.CodeInvalidInput {
    t.Fatalf("empty title: want=%s got=%v", apierr.CodeInvalidInput, err)
  }
  if _, err := f.conversations.UpdateTitle(context.Background(), userID, conversation.ID, strings.Repeat("x", 201)); apierr.CodeOf(err) != apierr.CodeInvalidInput {
    t.Fatalf("long title: want=%s got=%v", apierr.CodeInvalidInput, err)
  }

  updated, err := f.conversations.UpdateTitle(context.Background(), userID, conversation.ID, "  My Notes  ")
  if err != nil {
    t.Fatalf("UpdateTitle: %v", err)
  }
  if updated.Title != "My Notes" {
    t.Fatalf("title: got=%q", updated.Title)
  }
  reloaded, err := f.conversationRepo.GetByID(context.Background(), nil, conversation.ID)
  if err != nil {
    t.Fatalf("reload: %v", err)
  }
  if reloaded.Title != "My Notes" {
    t.Fatalf("persisted title: got=%q", reloaded.Title)
  }
}

func TestDeleteConversationCascadesMessages(t *testing.T) {
  f := newServiceFixture(t)
  userID := uuid.New()
  conversation, err := f.conversations.GetOrCreate(context.Background(), userID, nil)
  if err != nil {
    t.Fatalf("GetOrCreate: %v", err)
  }

  if _, _, err := f.turns.CommitTurn(context.Background(), CommitTurnInput{
    ConversationID:   &conversation.ID,
    UserContent:      "hello",
    AssistantContent: "hi!",
  }); err != nil {
    t.Fatalf("CommitTurn: %v", err)
  }

  if err := f.conversations.Delete(context.Background(), userID, conversation.ID); err != nil {
    t.Fatalf("Delete: %v", err)
  }

  var count int64
  if err := f.db.Model(&types.Message{}).Where("conversation_id = ?", conversation.ID).Count(&count).Error; err != nil {
    t.Fatalf("count messages: %v", err)
  }
  if count != 0 {
    t.Fatalf("messages after delete: want=0 got=%d", count)
  }
  if _, _, err := f.conversations.GetDetail(context.Background(), userID, conversation.ID); apierr.CodeOf(err) != apierr.CodeNotFound {
    t.Fatalf("conversation after delete: want=%s got=%v", apierr.CodeNotFound, err)
  }
}

func TestChannelConversationGetOrCreateIdempotent(t *testing.T) {
  f := newServiceFixture(t)
  channel := f.seedChannel(t, "systems-design")
  userID := uuid.New()

  first, err := f.channelConversation.GetOrCreate(context.Background(), userID, channel.ID)
  if err != nil {
    t.Fatalf("GetOrCreate: %v", err)
  }
  second, err := f.channelConversation.GetOrCreate(context.Background(), userID, channel.ID)
  if err != nil {
    t.Fatalf("GetOrCreate again: %v", err)
  }
  if first.ID != second.ID {
    t.Fatalf("idempotence: first=%s second=%s", first.ID, second.ID)
  }

  var count int64
  if err := f.db.Model(&types.ChannelConversation{}).
    Where("user_id = ? AND channel_id = ?", userID, channel.ID).
    Count(&count).Error; err != nil {
    t.Fatalf("count: %v", err)
  }
  if count != 1 {
    t.Fatalf("rows: want=1 got=%d", count)
  }
}

func TestChannelConversationRejectsDeletedChannel(t *testing.T) {
  f := newServiceFixture(t)
  channel := f.seedChannel(t, "retired")
  userID := uuid.New()

  if err := f.channelRepo.SoftDelete(context.Background(), nil, channel.ID); err != nil {
    t.Fatalf("soft delete: %v", err)
  }
  if _, err := f.channelConversation.GetOrCreate(context.Background(), userID, channel.ID); apierr.CodeOf(err) != apierr.CodeNotFound {
    t.Fatalf("deleted channel: want=%s got=%v", apierr.CodeNotFound, err)
  }
}

func TestCommitTurnBumpsUpdatedAtAndOrdersHistory(t *testing.T) {
  f := newServiceFixture(t)
  userID := uuid.New()
  conversation, err := f.conversations.GetOrCreate(context.Background(), userID, nil)
  if err != nil {
    t.Fatalf("GetOrCreate: %v", err)
  }
  before := conversation.UpdatedAt

  time.Sleep(10 * time.Millisecond)
  userMsg, assistantMsg, err := f.turns.CommitTurn(context.Background(), CommitTurnInput{
    ConversationID:    &conversation.ID,
    UserContent:       "what is a goroutine?",
    AssistantContent:  "a lightweight thread managed by the runtime",
    AssistantMetadata: map[string]any{"intent": "qa", "chunks_used": 2},
  })
  if err != nil {
    t.Fatalf("CommitTurn: %v", err)
  }
  if userMsg.Role != types.MessageRoleUser || assistantMsg.Role != types.MessageRoleAssistant {
    t.Fatalf("roles: got=%q/%q", userMsg.Role, assistantMsg.Role)
  }
  if len(assistantMsg.Metadata) == 0 {
    t.Fatalf("assistant metadata not persisted")
  }

  reloaded, err := f.conversationRepo.GetByID(context.Background(), nil, conversation.ID)
  if err != nil {
    t.Fatalf("reload: %v", err)
  }
  if !reloaded.UpdatedAt.After(before) {
    t.Fatalf("updated_at not bumped: before=%v after=%v", before, reloaded.UpdatedAt)
  }

  history, err := f.turns.History(context.Background(), &conversation.ID, nil, 10)
  if err != nil {
    t.Fatalf("History: %v", err)
  }
  if len(history) != 2 {
    t.Fatalf("history length: want=2 got=%d", len(history))
  }
  if history[0].Role != types.MessageRoleUser || history[1].Role != types.MessageRoleAssistant {
    t.Fatalf("history order: got=[%s %s]", history[0].Role, history[1].Role)
  }
}

func TestCommitTurnRequiresExactlyOneParent(t *testing.T) {
  f := newServiceFixture(t)
  id := uuid.New()

  if _, _, err := f.turns.CommitTurn(context.Background(), CommitTurnInput{
    UserContent:      "orphan",
    AssistantContent: "orphan",
  }); err == nil {
    t.Fatalf("CommitTurn: want error with no parent")
  }
  other := uuid.New()
  if _, _, err := f.turns.CommitTurn(context.Background(), CommitTurnInput{
    ConversationID:        &id,
    ChannelConversationID: &other,
    UserContent:           "both",
    AssistantContent:      "both",
  }); err == nil {
    t.Fatalf("CommitTurn: want error with both parents")
  }
}

func TestChunkByTokenWindow(t *testing.T) {
  words := make([]string, 1000)
  for i := range words {
    words[i] = "w"
  }
  text := strings.Join(words, " ")

  spans := chunkByTokenWindow(text, 700, 20)
  if len(spans) != 2 {
    t.Fatalf("spans: want=2 got=%d", len(spans))
  }
  if spans[0].tokens != 700 {
    t.Fatalf("first span tokens: want=700 got=%d", spans[0].tokens)
  }
  // Step is 700 - 140 = 560, so the second window covers words 560..1000.
  if spans[1].tokens != 440 {
    t.Fatalf("second span tokens: want=440 got=%d", spans[1].tokens)
  }

  if got := chunkByTokenWindow("   ", 700, 20); got != nil {
    t.Fatalf("empty text: want nil got=%v", got)
  }
  short := chunkByTokenWindow("only five words right here", 700, 20)
  if len(short) != 1 || short[0].tokens != 5 {
    t.Fatalf("short text: got=%+v", short)
  }
}

func TestCommitTurnKeepsUserBeforeAssistantAcrossTurns(t *testing.T) {
  f := newServiceFixture(t)
  userID := uuid.New()
  conversation, err := f.conversations.GetOrCreate(context.Background(), userID, nil)
  if err != nil {
    t.Fatalf("GetOrCreate: %v", err)
  }

  // Back-to-back commits land within the same clock tick, so ordering must
  // not depend on created_at alone.
  for i := 0; i < 3; i++ {
    if _, _, err := f.turns.CommitTurn(context.Background(), CommitTurnInput{
      ConversationID:   &conversation.ID,
      UserContent:      "question",
      AssistantContent: "answer",
    }); err != nil {
      t.Fatalf("CommitTurn %d: %v", i, err)
    }
  }

  messages, err := f.messageRepo.ListByConversation(context.Background(), nil, conversation.ID)
  if err != nil {
    t.Fatalf("ListByConversation: %v", err)
  }
  if len(messages) != 6 {
    t.Fatalf("messages: want=6 got=%d", len(messages))
  }
  for i, m := range messages {
    want := types.MessageRoleUser
    if i%2 == 1 {
      want = types.MessageRoleAssistant
    }
    if m.Role != want {
      t.Fatalf("message %d role: want=%s got=%s", i, want, m.Role)
    }
  }

  history, err := f.turns.History(context.Background(), &conversation.ID, nil, 4)
  if err != nil {
    t.Fatalf("History: %v", err)
  }
  if len(history) != 4 {
    t.Fatalf("history: want=4 got=%d", len(history))
  }
  if history[0].Role != types.MessageRoleUser || history[3].Role != types.MessageRoleAssistant {
    t.Fatalf("history window roles: got=[%s ... %s]", history[0].Role, history[3].Role)
  }
}

func (f *serviceFixture) seedTranscript(t *testing.T, userID uuid.UUID, videoID string, channelID *uuid.UUID) *types.Transcript {
  t.Helper()
  transcript, err := f.transcriptRepo.Create(context.Background(), nil, &types.Transcript{
    ID:             uuid.New(),
    UserID:         userID,
    YoutubeVideoID: videoID,
    Title:          "seeded video",
    TranscriptText: "hello transcript",
  })
  if err != nil {
    t.Fatalf("seed transcript: %v", err)
  }
  chunks := []*types.Chunk{
    {ID: uuid.New(), TranscriptID: transcript.ID, UserID: userID, ChunkIndex: 0, ChunkText: "hello", TokenCount: 1},
    {ID: uuid.New(), TranscriptID: transcript.ID, UserID: userID, ChannelID: channelID, ChunkIndex: 1, ChunkText: "transcript", TokenCount: 1},
  }
  if _, err := f.chunkRepo.Create(context.Background(), nil, chunks); err != nil {
    t.Fatalf("seed chunks: %v", err)
  }
  return transcript
}

func TestDeleteTranscriptDropsChunksAndFilteredVectors(t *testing.T) {
  f := newServiceFixture(t)
  userID := uuid.New()
  channelID := uuid.New()
  transcript := f.seedTranscript(t, userID, "dQw4w9WgXcQ", &channelID)

  if err := f.transcripts.Delete(context.Background(), userID, transcript.ID); err != nil {
    t.Fatalf("Delete: %v", err)
  }

  if len(f.vec.filterDeletes) != 1 {
    t.Fatalf("filter deletes: want=1 got=%d", len(f.vec.filterDeletes))
  }
  call := f.vec.filterDeletes[0]
  if call.collection != "transcripts_global" {
    t.Fatalf("collection: got=%q", call.collection)
  }
  if call.filter["user_id"] != userID.String() || call.filter["youtube_video_id"] != "dQw4w9WgXcQ" {
    t.Fatalf("filter: got=%v", call.filter)
  }

  ids, err := f.chunkRepo.ListIDsByTranscriptID(context.Background(), nil, transcript.ID)
  if err != nil {
    t.Fatalf("list chunk ids: %v", err)
  }
  if len(ids) != 0 {
    t.Fatalf("chunk rows survived delete: %v", ids)
  }
  if _, err := f.transcriptRepo.GetByID(context.Background(), nil, transcript.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
    t.Fatalf("transcript lookup after delete: got=%v", err)
  }
}

func TestDeleteTranscriptRequiresOwnership(t *testing.T) {
  f := newServiceFixture(t)
  owner := uuid.New()
  transcript := f.seedTranscript(t, owner, "abc123xyz00", nil)

  err := f.transcripts.Delete(context.Background(), uuid.New(), transcript.ID)
  if apierr.CodeOf(err) != apierr.CodeForbidden {
    t.Fatalf("foreign delete: want=%s got=%v", apierr.CodeForbidden, err)
  }
  if len(f.vec.filterDeletes) != 0 {
    t.Fatalf("vectors touched on refused delete: %v", f.vec.filterDeletes)
  }
}

func TestCollectionNameForChannel(t *testing.T) {
  if got := CollectionNameForChannel("systems-design"); got != "channel_systems_design" {
    t.Fatalf("collection name: got=%q", got)
  }
  if got := CollectionNameForChannel("golang"); got != "channel_golang" {
    t.Fatalf("collection name: got=%q", got)
  }
}
