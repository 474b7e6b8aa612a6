package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tubewise/tubewise-backend/internal/modules/chat/steps"
	"github.com/tubewise/tubewise-backend/internal/platform/apierr"
	"github.com/tubewise/tubewise-backend/internal/platform/httpx"
	"github.com/tubewise/tubewise-backend/internal/platform/logger"
	"github.com/tubewise/tubewise-backend/internal/platform/qdrant"
)

// Step names surfaced in status frames.
const (
	StepRouting    = "routing"
	StepRetrieving = "retrieving"
	StepGrading    = "grading"
	StepGenerating = "generating"
	StepIngesting  = "ingesting"
)

const (
	nodeClassify  = "classify"
	nodeRetrieve  = "retrieve"
	nodeGrade     = "grade"
	nodeGenerate  = "generate"
	nodeVideoLoad = "video_load"
)

// ProgressFunc receives one status frame per entered node. Implementations
// must not block; a closed session makes this a no-op.
type ProgressFunc func(step, message string)

type Result struct {
	Response string
	Metadata map[string]any
	Intent   steps.Intent
}

// node runs one stage against the state and names its successor. An empty
// successor terminates the walk.
type node struct {
	step string
	run  func(ctx context.Context, state *steps.State) error
	next func(state *steps.State) string
}

type retryPolicy struct {
	attempts int
	base     time.Duration
	factor   float64
	cap      time.Duration
}

// Graph is the turn pipeline: classify, then conditionally retrieve, grade,
// and generate (or hand off to video ingestion). Cancellation is checked at
// node boundaries; in-flight external calls finish but their results are
// discarded.
type Graph struct {
	log   *logger.Logger
	deps  steps.Deps
	nodes map[string]node
	retry retryPolicy
}

func NewGraph(deps steps.Deps) *Graph {
	g := &Graph{
		log:  deps.Log.With("service", "ChatGraph"),
		deps: deps,
		retry: retryPolicy{
			attempts: 3,
			base:     1 * time.Second,
			factor:   2,
			cap:      10 * time.Second,
		},
	}
	g.nodes = map[string]node{
		nodeClassify: {
			step: StepRouting,
			run: func(ctx context.Context, state *steps.State) error {
				c, err := steps.ClassifyIntent(ctx, g.deps, state)
				if err != nil {
					return err
				}
				state.Intent = c.Intent
				state.Confidence = c.Confidence
				return nil
			},
			next: func(state *steps.State) string {
				switch {
				case state.Intent == steps.IntentVideoLoad:
					return nodeVideoLoad
				case state.Intent.NeedsRetrieval():
					return nodeRetrieve
				default:
					return nodeGenerate
				}
			},
		},
		nodeRetrieve: {
			step: StepRetrieving,
			run: func(ctx context.Context, state *steps.State) error {
				chunks, err := steps.RetrieveChunks(ctx, g.deps, state)
				if err != nil {
					return err
				}
				state.RetrievedChunks = chunks
				return nil
			},
			next: func(*steps.State) string { return nodeGrade },
		},
		nodeGrade: {
			step: StepGrading,
			run: func(ctx context.Context, state *steps.State) error {
				graded, err := steps.GradeChunks(ctx, g.deps, state)
				if err != nil {
					return err
				}
				state.GradedChunks = graded
				return nil
			},
			next: func(*steps.State) string { return nodeGenerate },
		},
		nodeGenerate: {
			step: StepGenerating,
			run: func(ctx context.Context, state *steps.State) error {
				response, meta, err := steps.GenerateResponse(ctx, g.deps, state)
				if err != nil {
					return err
				}
				state.Response = response
				state.Metadata = meta
				return nil
			},
			next: func(*steps.State) string { return "" },
		},
		nodeVideoLoad: {
			step: StepIngesting,
			run: func(ctx context.Context, state *steps.State) error {
				response, meta, err := steps.RunVideoLoad(ctx, g.deps, state)
				if err != nil {
					return err
				}
				state.Response = response
				state.Metadata = meta
				return nil
			},
			next: func(*steps.State) string { return "" },
		},
	}
	return g
}

// Run executes the graph for one turn. progress may be nil.
func (g *Graph) Run(ctx context.Context, state *steps.State, progress ProgressFunc) (Result, error) {
	current := nodeClassify
	for current != "" {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		n, ok := g.nodes[current]
		if !ok {
			return Result{}, apierr.Internal(fmt.Errorf("pipeline node %q not registered", current))
		}
		if progress != nil {
			progress(n.step, stepMessage(n.step))
		}
		if err := g.runWithRetry(ctx, current, n, state); err != nil {
			return Result{}, err
		}
		current = n.next(state)
	}
	return Result{Response: state.Response, Metadata: state.Metadata, Intent: state.Intent}, nil
}

func (g *Graph) runWithRetry(ctx context.Context, name string, n node, state *steps.State) error {
	backoff := g.retry.base
	var lastErr error
	for attempt := 1; attempt <= g.retry.attempts; attempt++ {
		err := n.run(ctx, state)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		if !isTransient(err) {
			return err
		}
		if attempt == g.retry.attempts {
			break
		}
		g.log.Warn("pipeline node retrying",
			"node", name,
			"attempt", attempt,
			"request_id", state.RequestID,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(httpx.JitterSleep(backoff)):
		}
		backoff = time.Duration(float64(backoff) * g.retry.factor)
		if backoff > g.retry.cap {
			backoff = g.retry.cap
		}
	}
	g.log.Error("pipeline node exhausted retries",
		"node", name,
		"request_id", state.RequestID,
		"error", lastErr,
	)
	return apierr.External(fmt.Errorf("%s failed after %d attempts: %w", name, g.retry.attempts, lastErr))
}

// isTransient decides whether a node failure is worth another attempt.
// Validation and authorization errors fail fast.
func isTransient(err error) bool {
	var opErr *qdrant.OperationError
	if errors.As(err, &opErr) {
		return opErr.Transient()
	}
	return httpx.IsRetryableError(err)
}

func stepMessage(step string) string {
	switch step {
	case StepRouting:
		return "Working out what you need"
	case StepRetrieving:
		return "Searching your video transcripts"
	case StepGrading:
		return "Checking which excerpts are relevant"
	case StepGenerating:
		return "Writing the answer"
	case StepIngesting:
		return "Loading the video"
	default:
		return ""
	}
}
