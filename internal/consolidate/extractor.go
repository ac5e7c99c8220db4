package consolidate

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// maxTranscriptChars bounds the transcript portion of the prompt.
const maxTranscriptChars = 2000

// OpenAIExtractor extracts insights with a chat completion against any
// OpenAI-compatible API.
type OpenAIExtractor struct {
	client *openai.Client
	model  string
}

// NewOpenAIExtractor creates an extractor.
func NewOpenAIExtractor(baseURL, apiKey, model string) *OpenAIExtractor {
	if model == "" {
		model = "gpt-4o-mini"
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIExtractor{client: openai.NewClientWithConfig(cfg), model: model}
}

// ExtractInsights asks the model for a JSON array of insights. Transport
// errors propagate; a response that is not valid JSON, or contains invalid
// entries, degrades to whatever valid insights it carries.
func (e *OpenAIExtractor) ExtractInsights(ctx context.Context, s Sections) ([]Insight, error) {
	prompt := buildPrompt(s)
	if prompt == "" {
		return nil, nil
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: 0.3,
		MaxTokens:   1000,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, nil
	}

	return parseInsights(resp.Choices[0].Message.Content), nil
}

func buildPrompt(s Sections) string {
	var parts []string
	if s.Summary != "" {
		parts = append(parts, "Session Summary:\n"+s.Summary)
	}
	if s.Transcript != "" {
		transcript := s.Transcript
		if len(transcript) > maxTranscriptChars {
			transcript = transcript[:maxTranscriptChars] + "..."
		}
		parts = append(parts, "\nTranscript:\n"+transcript)
	}
	if s.Actions != "" {
		parts = append(parts, "\nActions:\n"+s.Actions)
	}
	if len(parts) == 0 {
		return ""
	}

	return fmt.Sprintf(`Analyze this session log and extract key information worth remembering.

%s

Extract:
1. Important facts the user mentioned
2. Preferences or decisions made
3. Recurring topics or themes
4. People, places, or things mentioned

Return ONLY a JSON array of insights with this exact format:
[{"title": "short title", "content": "detailed content", "type": "fact|preference|topic"}]

If no insights are found, return an empty array: []

Do not include any other text or explanation.`, strings.Join(parts, "\n"))
}

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*?\\])\\s*```")

// parseInsights salvages a JSON array from model output and keeps only
// entries with a non-empty title and content. A missing category defaults
// to "fact". Unparseable output yields nil rather than an error.
func parseInsights(raw string) []Insight {
	raw = strings.TrimSpace(raw)

	if m := fencedJSONRe.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	} else if !strings.HasPrefix(raw, "[") {
		start := strings.Index(raw, "[")
		end := strings.LastIndex(raw, "]")
		if start < 0 || end <= start {
			return nil
		}
		raw = raw[start : end+1]
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}

	var insights []Insight
	for _, entry := range entries {
		var in Insight
		if err := json.Unmarshal(entry, &in); err != nil {
			continue
		}
		if in.Title == "" || in.Content == "" {
			continue
		}
		if in.Category == "" {
			in.Category = "fact"
		}
		insights = append(insights, in)
	}
	return insights
}
