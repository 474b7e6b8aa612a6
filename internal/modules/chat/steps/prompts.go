package steps

import (
	"fmt"
	"strings"

	"github.com/tubewise/tubewise-backend/internal/types"
)

func classifySystemPrompt() string {
	return strings.TrimSpace(strings.Join([]string{
		"You classify user messages for a YouTube transcript chat product.",
		"Choose exactly one intent:",
		"- chitchat: casual conversation, greetings, anything unrelated to the video library",
		"- qa: a topical question answerable from transcript content",
		"- linkedin: the user asks for a LinkedIn post; this overrides every other signal",
		"- metadata: the user wants the full list of their videos",
		"- metadata_search: the user wants videos filtered by a topic",
		"- metadata_search_and_summarize: the user names a video title (exact or partial) and wants it summarized or explained",
		"Rules:",
		"- An exact full video title in the query means metadata_search_and_summarize, never qa.",
		"- A partial title or topic with a summarize/explain verb means metadata_search_and_summarize.",
		"- Pronouns like \"it\", \"that\", \"the first one\" mean qa only when the conversation history names a clear antecedent.",
		"- If unsure between qa and chitchat, choose qa when the query is about video content.",
		"Return ONLY JSON matching the schema.",
	}, "\n"))
}

func renderClassifyInput(query string, history []HistoryMessage) string {
	return strings.TrimSpace(strings.Join([]string{
		"CONVERSATION_HISTORY:",
		defaultString(renderHistory(history), "(none)"),
		"",
		"USER_MESSAGE:",
		query,
	}, "\n"))
}

func chitchatSystemPrompt() string {
	return strings.TrimSpace(strings.Join([]string{
		"You are a friendly assistant for a YouTube transcript chat product.",
		"Reply conversationally and briefly. Do not invent video content.",
	}, "\n"))
}

func qaSystemPrompt() string {
	return strings.TrimSpace(strings.Join([]string{
		"You answer questions using transcript excerpts from the user's video library.",
		"Ground every claim in the provided context. If the context does not cover the",
		"question, say so instead of guessing.",
	}, "\n"))
}

func linkedinSystemPrompt() string {
	return strings.TrimSpace(strings.Join([]string{
		"You write LinkedIn posts based on transcript excerpts from the user's video library.",
		"Write in first person, keep it punchy, and end with a short call to action.",
		"Use only the provided context for factual claims.",
	}, "\n"))
}

func metadataListSystemPrompt() string {
	return strings.TrimSpace(strings.Join([]string{
		"You present the user's video library.",
		"List the videos clearly with their titles and channel names. Do not invent entries.",
	}, "\n"))
}

func metadataSearchSystemPrompt(summarize bool) string {
	lines := []string{
		"You present video search results from the user's library.",
		"Each result has a title and a relevance score. Do not invent results.",
	}
	if summarize {
		lines = append(lines,
			"After presenting the best match, summarize its content using the provided excerpts.")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func renderQAInput(query string, history []HistoryMessage, chunks []RetrievedChunk) string {
	return strings.TrimSpace(strings.Join([]string{
		"CONVERSATION_HISTORY:",
		defaultString(renderHistory(history), "(none)"),
		"",
		"CONTEXT:",
		defaultString(renderChunkContext(chunks), "(no relevant transcript context was found)"),
		"",
		"QUESTION:",
		query,
	}, "\n"))
}

func renderMetadataListInput(query string, transcripts []*types.Transcript) string {
	return strings.TrimSpace(strings.Join([]string{
		"VIDEO_LIBRARY:",
		defaultString(renderVideoList(transcripts), "(the library is empty)"),
		"",
		"USER_MESSAGE:",
		query,
	}, "\n"))
}

func renderMetadataSearchInput(query string, chunks []RetrievedChunk, summarize bool) string {
	lines := []string{
		"SEARCH_RESULTS:",
		defaultString(renderSearchHits(chunks), "(no videos matched)"),
	}
	if summarize {
		lines = append(lines,
			"",
			"EXCERPTS:",
			defaultString(renderChunkContext(chunks), "(none)"),
		)
	}
	lines = append(lines,
		"",
		"USER_MESSAGE:",
		query,
	)
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func renderHistory(history []HistoryMessage) string {
	if len(history) == 0 {
		return ""
	}
	var b strings.Builder
	for _, m := range history {
		role := strings.TrimSpace(m.Role)
		if role == "" {
			role = "user"
		}
		b.WriteString(role + ": " + trimToChars(strings.TrimSpace(m.Content), 600) + "\n")
	}
	return strings.TrimSpace(b.String())
}

func renderChunkContext(chunks []RetrievedChunk) string {
	var b strings.Builder
	for _, c := range chunks {
		header := c.VideoTitle
		if header == "" {
			header = c.YoutubeVideoID
		}
		b.WriteString(fmt.Sprintf("- [chunk_id=%s] %s (part %d)\n", c.ChunkID, header, c.ChunkIndex+1))
		b.WriteString("  " + trimToChars(strings.TrimSpace(c.ChunkText), 900) + "\n\n")
	}
	return strings.TrimSpace(b.String())
}

func renderVideoList(transcripts []*types.Transcript) string {
	var b strings.Builder
	for i, t := range transcripts {
		if t == nil {
			continue
		}
		line := fmt.Sprintf("%d. %s", i+1, strings.TrimSpace(t.Title))
		if strings.TrimSpace(t.ChannelName) != "" {
			line += " — " + strings.TrimSpace(t.ChannelName)
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimSpace(b.String())
}

// renderSearchHits collapses chunk hits to one line per video, keeping the
// best score.
func renderSearchHits(chunks []RetrievedChunk) string {
	type hit struct {
		title string
		score float64
	}
	seen := map[string]int{}
	hits := make([]hit, 0, len(chunks))
	for _, c := range chunks {
		title := c.VideoTitle
		if title == "" {
			title = c.YoutubeVideoID
		}
		if idx, ok := seen[c.YoutubeVideoID]; ok {
			if c.Score > hits[idx].score {
				hits[idx].score = c.Score
			}
			continue
		}
		seen[c.YoutubeVideoID] = len(hits)
		hits = append(hits, hit{title: title, score: c.Score})
	}
	var b strings.Builder
	for _, h := range hits {
		b.WriteString(fmt.Sprintf("- %s (relevance %.2f)\n", h.title, h.score))
	}
	return strings.TrimSpace(b.String())
}

func defaultString(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func trimToChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
