package services

import (
  "context"
  "encoding/json"
  "fmt"
  "io"
  "net/http"
  "net/url"
  "strings"
  "time"
  "github.com/tubewise/tubewise-backend/internal/platform/envutil"
  "github.com/tubewise/tubewise-backend/internal/platform/httpx"
  "github.com/tubewise/tubewise-backend/internal/platform/logger"
)

// httpTranscriptFetcher talks to the deployed transcript service, a thin HTTP
// API in front of the caption scraper. One GET per video.
type httpTranscriptFetcher struct {
  log        *logger.Logger
  httpClient *http.Client
  baseURL    string
  apiKey     string
  maxRetries int
}

func NewHTTPTranscriptFetcher(log *logger.Logger) (TranscriptFetcher, error) {
  fetcherLog := log.With("service", "TranscriptFetcher")
  baseURL := strings.TrimRight(envutil.GetEnv("TRANSCRIPT_API_URL", "", log), "/")
  if baseURL == "" {
    return nil, fmt.Errorf("TRANSCRIPT_API_URL is required")
  }
  if _, err := url.Parse(baseURL); err != nil {
    return nil, fmt.Errorf("invalid TRANSCRIPT_API_URL: %w", err)
  }
  return &httpTranscriptFetcher{
    log:        fetcherLog,
    httpClient: &http.Client{Timeout: 60 * time.Second},
    baseURL:    baseURL,
    apiKey:     envutil.GetEnv("TRANSCRIPT_API_KEY", "", log),
    maxRetries: envutil.GetEnvAsInt("TRANSCRIPT_API_MAX_RETRIES", 2, log),
  }, nil
}

type transcriptAPIResponse struct {
  VideoID     string `json:"video_id"`
  Title       string `json:"title"`
  ChannelName string `json:"channel_name"`
  Duration    int    `json:"duration"`
  Transcript  string `json:"transcript"`
}

func (f *httpTranscriptFetcher) Fetch(ctx context.Context, youtubeVideoID string) (*FetchedTranscript, error) {
  endpoint := fmt.Sprintf("%s/transcripts/%s", f.baseURL, url.PathEscape(youtubeVideoID))

  var lastErr error
  for attempt := 0; attempt <= f.maxRetries; attempt++ {
    if attempt > 0 {
      backoff := httpx.JitterSleep(time.Duration(attempt) * time.Second)
      select {
      case <-ctx.Done():
        return nil, ctx.Err()
      case <-time.After(backoff):
      }
    }
    result, status, err := f.fetchOnce(ctx, endpoint)
    if err == nil {
      return result, nil
    }
    lastErr = err
    if ctx.Err() != nil {
      return nil, ctx.Err()
    }
    if status != 0 && !httpx.IsRetryableHTTPStatus(status) {
      return nil, err
    }
    f.log.Warn("transcript fetch attempt failed",
      "youtube_video_id", youtubeVideoID,
      "attempt", attempt+1,
      "error", err,
    )
  }
  return nil, fmt.Errorf("fetch transcript %s: %w", youtubeVideoID, lastErr)
}

func (f *httpTranscriptFetcher) fetchOnce(ctx context.Context, endpoint string) (*FetchedTranscript, int, error) {
  req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
  if err != nil {
    return nil, 0, err
  }
  if f.apiKey != "" {
    req.Header.Set("Authorization", "Bearer "+f.apiKey)
  }
  resp, err := f.httpClient.Do(req)
  if err != nil {
    return nil, 0, err
  }
  defer resp.Body.Close()

  body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
  if err != nil {
    return nil, resp.StatusCode, err
  }
  if resp.StatusCode != http.StatusOK {
    return nil, resp.StatusCode, fmt.Errorf("transcript api returned %d: %s", resp.StatusCode, truncateBody(body))
  }

  var decoded transcriptAPIResponse
  if err := json.Unmarshal(body, &decoded); err != nil {
    return nil, resp.StatusCode, fmt.Errorf("decode transcript response: %w", err)
  }
  return &FetchedTranscript{
    YoutubeVideoID: decoded.VideoID,
    Title:          decoded.Title,
    ChannelName:    decoded.ChannelName,
    Duration:       decoded.Duration,
    Text:           decoded.Transcript,
  }, resp.StatusCode, nil
}

func truncateBody(body []byte) string {
  const max = 256
  s := strings.TrimSpace(string(body))
  if len(s) > max {
    return s[:max] + "..."
  }
  return s
}
