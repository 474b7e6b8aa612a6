package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tubewise/tubewise-backend/internal/platform/envutil"
	"github.com/tubewise/tubewise-backend/internal/platform/logger"
)

type Config struct {
	JWTSecretKey   string
	AllowedOrigins []string

	GlobalCollection string
	EmbedDim         int

	RetrievalTopK     int
	GraderConcurrency int

	RateLimitPerWindow int
	RateLimitWindow    time.Duration

	MaxHistoryMessages int
	MaxContentChars    int
	HeartbeatInterval  time.Duration
	MaxMissedPongs     int
	TurnTimeout        time.Duration

	ChunkSizeTokens      int
	ChunkOverlapPct      int
	ChannelDeleteOrphans bool
}

// configOverlay mirrors the optional YAML file pointed at by CONFIG_FILE.
// Only set fields override the environment; the file is for the tuning knobs,
// not for secrets.
type configOverlay struct {
	Context struct {
		Messages struct {
			Max int `yaml:"max"`
		} `yaml:"messages"`
	} `yaml:"context"`
	Retrieval struct {
		TopK int `yaml:"top_k"`
	} `yaml:"retrieval"`
	Rate struct {
		PerMinute int `yaml:"per_minute"`
	} `yaml:"rate"`
	Grader struct {
		Concurrency int `yaml:"concurrency"`
	} `yaml:"grader"`
	Heartbeat struct {
		IntervalSeconds int `yaml:"interval_s"`
	} `yaml:"heartbeat"`
	Chunking struct {
		SizeTokens int `yaml:"size_tokens"`
		OverlapPct int `yaml:"overlap_pct"`
	} `yaml:"chunking"`
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		JWTSecretKey:   envutil.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		AllowedOrigins: splitCSV(envutil.GetEnv("ALLOWED_ORIGINS", "", log)),

		GlobalCollection: envutil.GetEnv("QDRANT_GLOBAL_COLLECTION", "youtube_chunks", log),
		EmbedDim:         envutil.GetEnvAsInt("EMBED_DIM", 1536, log),

		RetrievalTopK:     envutil.GetEnvAsInt("RETRIEVAL_TOP_K", 12, log),
		GraderConcurrency: envutil.GetEnvAsInt("GRADER_CONCURRENCY", 4, log),

		RateLimitPerWindow: envutil.GetEnvAsInt("RATE_LIMIT_PER_MINUTE", 10, log),
		RateLimitWindow:    time.Minute,

		MaxHistoryMessages: envutil.GetEnvAsInt("CONTEXT_MAX_MESSAGES", 10, log),
		MaxContentChars:    envutil.GetEnvAsInt("MAX_CONTENT_CHARS", 2000, log),
		HeartbeatInterval:  time.Duration(envutil.GetEnvAsInt("HEARTBEAT_INTERVAL_S", 30, log)) * time.Second,
		MaxMissedPongs:     envutil.GetEnvAsInt("MAX_MISSED_PONGS", 2, log),
		TurnTimeout:        time.Duration(envutil.GetEnvAsInt("TURN_TIMEOUT_S", 120, log)) * time.Second,

		ChunkSizeTokens:      envutil.GetEnvAsInt("CHUNK_SIZE_TOKENS", 700, log),
		ChunkOverlapPct:      envutil.GetEnvAsInt("CHUNK_OVERLAP_PCT", 20, log),
		ChannelDeleteOrphans: envutil.GetEnvAsBool("CHANNEL_DELETE_ORPHANS", false, log),
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyOverlayFile(&cfg, path); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
		log.Info("Config overlay applied", "path", path)
	}
	return cfg, nil
}

func applyOverlayFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var overlay configOverlay
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return err
	}
	if v := overlay.Context.Messages.Max; v > 0 {
		cfg.MaxHistoryMessages = v
	}
	if v := overlay.Retrieval.TopK; v > 0 {
		cfg.RetrievalTopK = v
	}
	if v := overlay.Rate.PerMinute; v > 0 {
		cfg.RateLimitPerWindow = v
	}
	if v := overlay.Grader.Concurrency; v > 0 {
		cfg.GraderConcurrency = v
	}
	if v := overlay.Heartbeat.IntervalSeconds; v > 0 {
		cfg.HeartbeatInterval = time.Duration(v) * time.Second
	}
	if v := overlay.Chunking.SizeTokens; v > 0 {
		cfg.ChunkSizeTokens = v
	}
	if v := overlay.Chunking.OverlapPct; v > 0 {
		cfg.ChunkOverlapPct = v
	}
	return nil
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
