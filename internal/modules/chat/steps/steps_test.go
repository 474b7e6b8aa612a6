package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tubewise/tubewise-backend/internal/platform/logger"
	"github.com/tubewise/tubewise-backend/internal/platform/openai"
	"github.com/tubewise/tubewise-backend/internal/platform/qdrant"
	"github.com/tubewise/tubewise-backend/internal/repos"
	"github.com/tubewise/tubewise-backend/internal/types"
)

type fakeAI struct {
	embedFn    func(ctx context.Context, texts []string, meta openai.CallMeta) ([][]float32, error)
	generateFn func(ctx context.Context, prompt string, opts openai.TextOptions) (string, openai.Usage, error)
	jsonFn     func(ctx context.Context, system, user, schemaName string, schema map[string]any, meta openai.CallMeta) (map[string]any, error)
}

func (f *fakeAI) Embed(ctx context.Context, texts []string, meta openai.CallMeta) ([][]float32, error) {
	return f.embedFn(ctx, texts, meta)
}

func (f *fakeAI) GenerateText(ctx context.Context, prompt string, opts openai.TextOptions) (string, openai.Usage, error) {
	return f.generateFn(ctx, prompt, opts)
}

func (f *fakeAI) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any, meta openai.CallMeta) (map[string]any, error) {
	return f.jsonFn(ctx, system, user, schemaName, schema, meta)
}

type fakeVec struct {
	qdrant.VectorStore
	searchFn func(ctx context.Context, collection string, query []float32, filter map[string]any, limit int) ([]qdrant.Match, error)
}

func (f *fakeVec) Search(ctx context.Context, collection string, query []float32, filter map[string]any, limit int) ([]qdrant.Match, error) {
	return f.searchFn(ctx, collection, query, filter, limit)
}

type fakeChunkRepo struct {
	repos.ChunkRepo
	byID map[uuid.UUID]*types.Chunk
}

func (f *fakeChunkRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Chunk, error) {
	out := make([]*types.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := f.byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeTranscriptRepo struct {
	repos.TranscriptRepo
	byID   map[uuid.UUID]*types.Transcript
	byUser []*types.Transcript
}

func (f *fakeTranscriptRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Transcript, error) {
	out := make([]*types.Transcript, 0, len(ids))
	for _, id := range ids {
		if t, ok := f.byID[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTranscriptRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Transcript, error) {
	return f.byUser, nil
}

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() {
		log.Sync()
	})
	return Deps{
		Log:               log,
		GlobalCollection:  "youtube_chunks",
		TopK:              12,
		GraderConcurrency: 4,
	}
}

func TestExtractYoutubeVideoID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"check https://www.youtube.com/watch?v=dQw4w9WgXcQ please", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"what is FastAPI?", ""},
		{"youtube.com/watch?v=short", ""},
	}
	for _, c := range cases {
		if got := ExtractYoutubeVideoID(c.in); got != c.want {
			t.Fatalf("ExtractYoutubeVideoID(%q): want=%q got=%q", c.in, c.want, got)
		}
	}
}

func TestClassifyIntentURLShortCircuit(t *testing.T) {
	deps := newTestDeps(t)
	deps.AI = &fakeAI{
		jsonFn: func(context.Context, string, string, string, map[string]any, openai.CallMeta) (map[string]any, error) {
			t.Fatalf("model must not be called for a URL query")
			return nil, nil
		},
	}
	state := &State{UserQuery: "load https://youtu.be/dQw4w9WgXcQ"}

	c, err := ClassifyIntent(context.Background(), deps, state)
	if err != nil {
		t.Fatalf("ClassifyIntent: %v", err)
	}
	if c.Intent != IntentVideoLoad {
		t.Fatalf("intent: want=%q got=%q", IntentVideoLoad, c.Intent)
	}
	if c.Confidence != 1.0 {
		t.Fatalf("confidence: want=1.0 got=%v", c.Confidence)
	}
}

func TestClassifyIntentParsesEnum(t *testing.T) {
	deps := newTestDeps(t)
	deps.AI = &fakeAI{
		jsonFn: func(context.Context, string, string, string, map[string]any, openai.CallMeta) (map[string]any, error) {
			return map[string]any{"intent": "QA", "confidence": 0.91, "reasoning": "topical question"}, nil
		},
	}
	state := &State{UserQuery: "what is FastAPI?"}

	c, err := ClassifyIntent(context.Background(), deps, state)
	if err != nil {
		t.Fatalf("ClassifyIntent: %v", err)
	}
	if c.Intent != IntentQA {
		t.Fatalf("intent: want=%q got=%q", IntentQA, c.Intent)
	}
	if c.Confidence != 0.91 {
		t.Fatalf("confidence: want=0.91 got=%v", c.Confidence)
	}
}

func TestClassifyIntentDegradesToChitchat(t *testing.T) {
	deps := newTestDeps(t)
	calls := 0
	deps.AI = &fakeAI{
		jsonFn: func(context.Context, string, string, string, map[string]any, openai.CallMeta) (map[string]any, error) {
			calls++
			return map[string]any{"intent": "banana", "confidence": 0.5, "reasoning": "?"}, nil
		},
	}
	state := &State{UserQuery: "hello there"}

	c, err := ClassifyIntent(context.Background(), deps, state)
	if err != nil {
		t.Fatalf("ClassifyIntent: %v", err)
	}
	if calls != 3 {
		t.Fatalf("model calls: want=3 got=%d", calls)
	}
	if c.Intent != IntentChitchat {
		t.Fatalf("intent: want=%q got=%q", IntentChitchat, c.Intent)
	}
	if c.Confidence != 0 {
		t.Fatalf("confidence: want=0 got=%v", c.Confidence)
	}
}

func TestClassifyIntentPropagatesCallError(t *testing.T) {
	deps := newTestDeps(t)
	boom := errors.New("upstream down")
	deps.AI = &fakeAI{
		jsonFn: func(context.Context, string, string, string, map[string]any, openai.CallMeta) (map[string]any, error) {
			return nil, boom
		},
	}
	state := &State{UserQuery: "hello"}

	if _, err := ClassifyIntent(context.Background(), deps, state); !errors.Is(err, boom) {
		t.Fatalf("want wrapped call error, got %v", err)
	}
}

func TestRetrieveChunksHydratesInScoreOrder(t *testing.T) {
	deps := newTestDeps(t)
	userID := uuid.New()
	transcriptID := uuid.New()
	chunkA := uuid.New()
	chunkB := uuid.New()
	missing := uuid.New()

	deps.AI = &fakeAI{
		embedFn: func(ctx context.Context, texts []string, meta openai.CallMeta) ([][]float32, error) {
			if len(texts) != 1 {
				t.Fatalf("embed texts: want=1 got=%d", len(texts))
			}
			return [][]float32{{0.1, 0.2}}, nil
		},
	}
	var gotCollection string
	var gotFilter map[string]any
	deps.Vec = &fakeVec{
		searchFn: func(ctx context.Context, collection string, query []float32, filter map[string]any, limit int) ([]qdrant.Match, error) {
			gotCollection = collection
			gotFilter = filter
			return []qdrant.Match{
				{ID: chunkB.String(), Score: 0.9},
				{ID: missing.String(), Score: 0.7},
				{ID: chunkA.String(), Score: 0.5},
			}, nil
		},
	}
	deps.Chunks = &fakeChunkRepo{byID: map[uuid.UUID]*types.Chunk{
		chunkA: {ID: chunkA, TranscriptID: transcriptID, ChunkText: "alpha", ChunkIndex: 0},
		chunkB: {ID: chunkB, TranscriptID: transcriptID, ChunkText: "beta", ChunkIndex: 1},
	}}
	deps.Transcripts = &fakeTranscriptRepo{byID: map[uuid.UUID]*types.Transcript{
		transcriptID: {ID: transcriptID, YoutubeVideoID: "vid-1", Title: "Intro to FastAPI"},
	}}

	state := &State{UserID: userID, UserQuery: "what is FastAPI?"}
	out, err := RetrieveChunks(context.Background(), deps, state)
	if err != nil {
		t.Fatalf("RetrieveChunks: %v", err)
	}
	if gotCollection != "youtube_chunks" {
		t.Fatalf("collection: want=youtube_chunks got=%q", gotCollection)
	}
	if gotFilter["user_id"] != userID.String() {
		t.Fatalf("filter user_id: got=%v", gotFilter)
	}
	if len(out) != 2 {
		t.Fatalf("chunks: want=2 got=%d", len(out))
	}
	if out[0].ChunkID != chunkB || out[1].ChunkID != chunkA {
		t.Fatalf("score ordering lost: got=[%s %s]", out[0].ChunkID, out[1].ChunkID)
	}
	if out[0].VideoTitle != "Intro to FastAPI" {
		t.Fatalf("title hydration: got=%q", out[0].VideoTitle)
	}
}

func TestRetrieveChunksTopKZeroYieldsEmpty(t *testing.T) {
	deps := newTestDeps(t)
	deps.TopK = 0
	state := &State{UserID: uuid.New(), UserQuery: "anything"}

	out, err := RetrieveChunks(context.Background(), deps, state)
	if err != nil {
		t.Fatalf("RetrieveChunks: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("chunks: want=0 got=%d", len(out))
	}
}

func TestGradeChunksFiltersAndPreservesOrder(t *testing.T) {
	deps := newTestDeps(t)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	verdicts := map[string]bool{"first": true, "second": false, "third": true}
	deps.AI = &fakeAI{
		jsonFn: func(ctx context.Context, system, user, schemaName string, schema map[string]any, meta openai.CallMeta) (map[string]any, error) {
			for text, relevant := range verdicts {
				if strings.Contains(user, text) {
					return map[string]any{"is_relevant": relevant, "reasoning": "judged"}, nil
				}
			}
			return nil, fmt.Errorf("unexpected grading input: %q", user)
		},
	}
	state := &State{
		UserQuery: "query",
		RetrievedChunks: []RetrievedChunk{
			{ChunkID: ids[0], ChunkText: "first", Score: 0.9},
			{ChunkID: ids[1], ChunkText: "second", Score: 0.8},
			{ChunkID: ids[2], ChunkText: "third", Score: 0.7},
		},
	}

	out, err := GradeChunks(context.Background(), deps, state)
	if err != nil {
		t.Fatalf("GradeChunks: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("graded: want=2 got=%d", len(out))
	}
	if out[0].ChunkID != ids[0] || out[1].ChunkID != ids[2] {
		t.Fatalf("order lost: got=[%s %s]", out[0].ChunkID, out[1].ChunkID)
	}
}

func TestGradeChunksSwallowsPerChunkErrors(t *testing.T) {
	deps := newTestDeps(t)
	var calls atomic.Int64
	deps.AI = &fakeAI{
		jsonFn: func(ctx context.Context, system, user, schemaName string, schema map[string]any, meta openai.CallMeta) (map[string]any, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("transient grader failure")
			}
			return map[string]any{"is_relevant": true, "reasoning": "ok"}, nil
		},
	}
	state := &State{
		UserQuery: "query",
		RetrievedChunks: []RetrievedChunk{
			{ChunkID: uuid.New(), ChunkText: "a"},
			{ChunkID: uuid.New(), ChunkText: "b"},
		},
	}

	out, err := GradeChunks(context.Background(), deps, state)
	if err != nil {
		t.Fatalf("GradeChunks: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("graded: want=1 (failed chunk dropped) got=%d", len(out))
	}
}

func TestGradeChunksBoundsConcurrency(t *testing.T) {
	deps := newTestDeps(t)
	deps.GraderConcurrency = 2

	var mu sync.Mutex
	inFlight, peak := 0, 0
	deps.AI = &fakeAI{
		jsonFn: func(ctx context.Context, system, user, schemaName string, schema map[string]any, meta openai.CallMeta) (map[string]any, error) {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()
			defer func() {
				mu.Lock()
				inFlight--
				mu.Unlock()
			}()
			return map[string]any{"is_relevant": true, "reasoning": "ok"}, nil
		},
	}

	chunks := make([]RetrievedChunk, 10)
	for i := range chunks {
		chunks[i] = RetrievedChunk{ChunkID: uuid.New(), ChunkText: fmt.Sprintf("chunk %d", i)}
	}
	state := &State{UserQuery: "query", RetrievedChunks: chunks}

	if _, err := GradeChunks(context.Background(), deps, state); err != nil {
		t.Fatalf("GradeChunks: %v", err)
	}
	if peak > 2 {
		t.Fatalf("peak concurrency: want<=2 got=%d", peak)
	}
}

func TestGenerateResponseQANoContextNotice(t *testing.T) {
	deps := newTestDeps(t)
	deps.AI = &fakeAI{
		generateFn: func(ctx context.Context, prompt string, opts openai.TextOptions) (string, openai.Usage, error) {
			if opts.Temperature != 0.7 || opts.MaxTokens != 2000 {
				t.Fatalf("qa options: got temp=%v max=%d", opts.Temperature, opts.MaxTokens)
			}
			return "I could not find that in your videos.", openai.Usage{TotalTokens: 42}, nil
		},
	}
	state := &State{UserID: uuid.New(), UserQuery: "what is FastAPI?", Intent: IntentQA}

	response, meta, err := GenerateResponse(context.Background(), deps, state)
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	if response == "" {
		t.Fatalf("response: want non-empty")
	}
	if meta["no_context"] != true {
		t.Fatalf("metadata no_context: want=true got=%v", meta["no_context"])
	}
	if meta["chunks_used"] != 0 {
		t.Fatalf("metadata chunks_used: want=0 got=%v", meta["chunks_used"])
	}
}

func TestGenerateResponseSourceChunkBookkeeping(t *testing.T) {
	deps := newTestDeps(t)
	deps.AI = &fakeAI{
		generateFn: func(ctx context.Context, prompt string, opts openai.TextOptions) (string, openai.Usage, error) {
			return "answer", openai.Usage{}, nil
		},
	}
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	state := &State{
		UserID:    uuid.New(),
		UserQuery: "q",
		Intent:    IntentQA,
		GradedChunks: []RetrievedChunk{
			{ChunkID: ids[0], ChunkText: "a"},
			{ChunkID: ids[1], ChunkText: "b"},
		},
	}

	_, meta, err := GenerateResponse(context.Background(), deps, state)
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	source, ok := meta["source_chunks"].([]string)
	if !ok {
		t.Fatalf("source_chunks type: got=%T", meta["source_chunks"])
	}
	if len(source) != 2 || source[0] != ids[0].String() || source[1] != ids[1].String() {
		t.Fatalf("source_chunks: got=%v", source)
	}
	if meta["chunks_used"] != 2 {
		t.Fatalf("chunks_used: want=2 got=%v", meta["chunks_used"])
	}
}

func TestGenerateResponseChitchatTemperature(t *testing.T) {
	deps := newTestDeps(t)
	deps.AI = &fakeAI{
		generateFn: func(ctx context.Context, prompt string, opts openai.TextOptions) (string, openai.Usage, error) {
			if opts.Temperature != 0.8 || opts.MaxTokens != 500 {
				t.Fatalf("chitchat options: got temp=%v max=%d", opts.Temperature, opts.MaxTokens)
			}
			return "hey!", openai.Usage{}, nil
		},
	}
	state := &State{UserID: uuid.New(), UserQuery: "hi", Intent: IntentChitchat}

	if _, _, err := GenerateResponse(context.Background(), deps, state); err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
}

type fakeIngest struct {
	title string
	err   error
}

func (f *fakeIngest) IngestVideo(ctx context.Context, userID uuid.UUID, youtubeURL string) (string, error) {
	return f.title, f.err
}

type recordingEmitter struct {
	confirmations []string
	statuses      []string
}

func (r *recordingEmitter) VideoLoadConfirmation(youtubeURL, videoID string) {
	r.confirmations = append(r.confirmations, videoID)
}

func (r *recordingEmitter) VideoLoadStatus(status, videoID, videoTitle, errMsg string) {
	r.statuses = append(r.statuses, status)
}

func TestRunVideoLoadSuccess(t *testing.T) {
	deps := newTestDeps(t)
	emitter := &recordingEmitter{}
	deps.Ingest = &fakeIngest{title: "Intro to FastAPI"}
	deps.VideoFrames = emitter

	state := &State{UserID: uuid.New(), UserQuery: "https://youtu.be/dQw4w9WgXcQ"}
	response, meta, err := RunVideoLoad(context.Background(), deps, state)
	if err != nil {
		t.Fatalf("RunVideoLoad: %v", err)
	}
	if response != "Added video *Intro to FastAPI* to your library." {
		t.Fatalf("response: got=%q", response)
	}
	if meta["youtube_video_id"] != "dQw4w9WgXcQ" {
		t.Fatalf("metadata video id: got=%v", meta["youtube_video_id"])
	}
	wantStatuses := []string{VideoLoadStarted, VideoLoadCompleted}
	if len(emitter.statuses) != 2 || emitter.statuses[0] != wantStatuses[0] || emitter.statuses[1] != wantStatuses[1] {
		t.Fatalf("statuses: want=%v got=%v", wantStatuses, emitter.statuses)
	}
	if len(emitter.confirmations) != 1 || emitter.confirmations[0] != "dQw4w9WgXcQ" {
		t.Fatalf("confirmations: got=%v", emitter.confirmations)
	}
}

func TestRunVideoLoadFailureEmitsFailedStatus(t *testing.T) {
	deps := newTestDeps(t)
	emitter := &recordingEmitter{}
	deps.Ingest = &fakeIngest{err: errors.New("no transcript available")}
	deps.VideoFrames = emitter

	state := &State{UserID: uuid.New(), UserQuery: "https://youtu.be/dQw4w9WgXcQ"}
	if _, _, err := RunVideoLoad(context.Background(), deps, state); err == nil {
		t.Fatalf("RunVideoLoad: want error")
	}
	if len(emitter.statuses) != 2 || emitter.statuses[1] != VideoLoadFailed {
		t.Fatalf("statuses: want failed terminal, got=%v", emitter.statuses)
	}
}

func TestRenderSearchHitsCollapsesVideos(t *testing.T) {
	out := renderSearchHits([]RetrievedChunk{
		{YoutubeVideoID: "vid-1", VideoTitle: "First", Score: 0.8},
		{YoutubeVideoID: "vid-1", VideoTitle: "First", Score: 0.95},
		{YoutubeVideoID: "vid-2", VideoTitle: "Second", Score: 0.5},
	})
	want := "- First (relevance 0.95)\n- Second (relevance 0.50)"
	if out != want {
		t.Fatalf("renderSearchHits:\nwant=%q\ngot=%q", want, out)
	}
}
