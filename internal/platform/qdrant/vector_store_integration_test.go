package qdrant

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

// Runs against a live Qdrant when QDRANT_INTEGRATION=1 and QDRANT_URL are set.
func TestVectorStoreIntegrationRoundTrip(t *testing.T) {
	if os.Getenv("QDRANT_INTEGRATION") != "1" {
		t.Skip("set QDRANT_INTEGRATION=1 to run")
	}
	cfg, err := ResolveConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveConfigFromEnv: %v", err)
	}

	store, err := NewVectorStore(newTestLogger(t), cfg)
	if err != nil {
		t.Fatalf("NewVectorStore: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	collection := fmt.Sprintf("it_%d", time.Now().UnixNano())
	const dim = 4
	if err := store.EnsureCollection(ctx, collection, dim); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	t.Cleanup(func() {
		_ = store.DropCollection(context.Background(), collection)
	})
	if err := store.EnsurePayloadIndexes(ctx, collection, []string{"user_id", "youtube_video_id"}); err != nil {
		t.Fatalf("EnsurePayloadIndexes: %v", err)
	}

	idA := uuid.NewString()
	idB := uuid.NewString()
	err = store.Upsert(ctx, collection, []Vector{
		{ID: idA, Values: []float32{1, 0, 0, 0}, Payload: map[string]any{"user_id": "u-1", "youtube_video_id": "vid-1"}},
		{ID: idB, Values: []float32{0, 1, 0, 0}, Payload: map[string]any{"user_id": "u-2", "youtube_video_id": "vid-2"}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	matches, err := store.Search(ctx, collection, []float32{1, 0, 0, 0}, map[string]any{"user_id": "u-1"}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches length: want=1 got=%d", len(matches))
	}
	if matches[0].ID != idA {
		t.Fatalf("match id: want=%s got=%s", idA, matches[0].ID)
	}

	if err := store.DeleteByFilter(ctx, collection, map[string]any{"user_id": "u-2"}); err != nil {
		t.Fatalf("DeleteByFilter: %v", err)
	}
	if err := store.Delete(ctx, collection, []string{idA}); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	matches, err = store.Search(ctx, collection, []float32{1, 0, 0, 0}, nil, 5)
	if err != nil {
		t.Fatalf("Search after delete: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("matches after delete: want=0 got=%d", len(matches))
	}
}
