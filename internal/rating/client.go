package rating

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"linkedin-scout/internal/core"
)

const systemPrompt = `You are a technical recruiter reviewing scraped candidate profiles.
Rate how strong the profile looks for a senior software role on a scale of 1-10.
Reply with "Score: N/10" on the first line, then two or three sentences of reasoning.`

// Client scores extracted profiles through an OpenAI-compatible chat
// completions endpoint. Rating is advisory; callers treat every failure as
// "no rating" and move on.
type Client struct {
	cfg    core.RatingConfig
	http   *resty.Client
	logger *zap.Logger
}

func New(cfg core.RatingConfig, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Rate asks the model for a fit score on one extraction result.
func (c *Client) Rate(ctx context.Context, result *core.ExtractionResult) (*core.Rating, error) {
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: describeProfile(result)},
		},
		Temperature: 0.2,
	}

	var out chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("rating request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("rating backend returned %s", resp.Status())
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("rating backend returned no choices")
	}

	content := strings.TrimSpace(out.Choices[0].Message.Content)
	score, ok := parseScore(content)
	if !ok {
		c.logger.Debug("Rating reply had no parseable score", zap.String("content", content))
	}

	return &core.Rating{
		Score:     score,
		Narrative: content,
		Model:     c.cfg.Model,
	}, nil
}

var scoreRe = regexp.MustCompile(`(?i)score[:\s]+(\d{1,2})`)

func parseScore(content string) (int, bool) {
	m := scoreRe.FindStringSubmatch(content)
	if m == nil {
		return 0, false
	}
	score, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score, true
}

// describeProfile flattens an extraction result into prompt text. Long
// histories are capped; the top entries carry the signal.
func describeProfile(result *core.ExtractionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", orUnknown(result.Name.Value))
	fmt.Fprintf(&b, "Headline: %s\n", orUnknown(result.Headline.Value))
	fmt.Fprintf(&b, "Location: %s\n", orUnknown(result.Location.Value))
	if result.Summary.Value != "" {
		fmt.Fprintf(&b, "About: %s\n", result.Summary.Value)
	}

	b.WriteString("Experience:\n")
	entries := result.Experience
	if len(entries) > 10 {
		entries = entries[:10]
	}
	if len(entries) == 0 {
		b.WriteString("- none listed\n")
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s at %s (%s)\n",
			orUnknown(e.Title.Value), orUnknown(e.Company.Value), orUnknown(e.DateRange.Value))
	}
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
