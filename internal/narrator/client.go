package narrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iammorganparry/timeline/internal/models"
)

const (
	defaultEventCount  = 4
	defaultChoiceCount = 3
	// Keep the head for the origin and the tail for recency.
	maxHistoryChars = 24000
)

// Client generates timeline narrative through the Ollama /api/generate API.
type Client struct {
	baseURL     string
	model       string
	temperature float64
	prompts     *Prompts
	logger      *slog.Logger
	httpClient  *http.Client
}

// NewClient creates a narrator client. A nil prompts uses the embedded set.
func NewClient(baseURL, model string, temperature float64, prompts *Prompts, logger *slog.Logger) (*Client, error) {
	if prompts == nil {
		p, err := DefaultPrompts()
		if err != nil {
			return nil, err
		}
		prompts = p
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		prompts:     prompts,
		logger:      logger,
		httpClient: &http.Client{
			Timeout: 180 * time.Second, // LLM generation can be slow; callers set tighter contexts
		},
	}, nil
}

// generateRequest is the request body for Ollama /api/generate.
type generateRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Format  string         `json:"format"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// generateResponse is the response body from Ollama /api/generate.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type eventsPayload struct {
	Events []string `json:"events"`
}

// InitialEvents asks for candidate starting events around year.
func (c *Client) InitialEvents(ctx context.Context, year int) ([]string, error) {
	prompt, err := render(c.prompts.initialEvents, promptData{
		Year:  models.FormatSignedYear(year),
		Count: defaultEventCount,
	})
	if err != nil {
		return nil, err
	}

	var payload eventsPayload
	if err := c.generate(ctx, prompt, &payload); err != nil {
		return nil, fmt.Errorf("initial events: %w", err)
	}

	events := make([]string, 0, len(payload.Events))
	for _, e := range payload.Events {
		if e = strings.TrimSpace(e); e != "" {
			events = append(events, e)
		}
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("initial events: narrator returned no events")
	}
	return events, nil
}

// StartGame opens the timeline at event in year.
func (c *Client) StartGame(ctx context.Context, event string, year int) (*models.Turn, error) {
	prompt, err := render(c.prompts.startGame, promptData{
		Year:  models.FormatSignedYear(year),
		Event: event,
		Count: defaultChoiceCount,
	})
	if err != nil {
		return nil, err
	}

	turn, err := c.turn(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("start game: %w", err)
	}
	return turn, nil
}

// AdvanceTimeline continues the story from the player's choice.
func (c *Client) AdvanceTimeline(ctx context.Context, history, choice string, lastYear int) (*models.Turn, error) {
	prompt, err := render(c.prompts.advanceTimeline, promptData{
		Year:    models.FormatSignedYear(lastYear),
		Choice:  choice,
		History: truncateHistory(history),
		Count:   defaultChoiceCount,
	})
	if err != nil {
		return nil, err
	}

	turn, err := c.turn(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("advance timeline: %w", err)
	}
	return turn, nil
}

// HealthCheck verifies Ollama is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("ollama health check: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) turn(ctx context.Context, prompt string) (*models.Turn, error) {
	var turn models.Turn
	if err := c.generate(ctx, prompt, &turn); err != nil {
		return nil, err
	}

	turn.Narrative = strings.TrimSpace(turn.Narrative)
	if turn.Narrative == "" {
		return nil, fmt.Errorf("narrator returned empty narrative")
	}

	events := turn.AutoGeneratedEvents[:0]
	for _, ev := range turn.AutoGeneratedEvents {
		if ev.Event = strings.TrimSpace(ev.Event); ev.Event != "" {
			events = append(events, ev)
		}
	}
	turn.AutoGeneratedEvents = events

	choices := make([]string, 0, len(turn.Choices))
	for _, ch := range turn.Choices {
		if ch = strings.TrimSpace(ch); ch != "" {
			choices = append(choices, ch)
		}
	}
	turn.Choices = choices
	return &turn, nil
}

// generate runs one non-streaming generation in JSON mode and decodes the
// model's output into out.
func (c *Client) generate(ctx context.Context, prompt string, out any) error {
	reqBody := generateRequest{
		Model:  c.model,
		System: c.prompts.System,
		Prompt: prompt,
		Format: "json",
		Stream: false,
		Options: map[string]any{
			"temperature": c.temperature,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(respBody))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return fmt.Errorf("decode ollama response: %w", err)
	}
	c.logger.Debug("narrator generation",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"response_chars", len(genResp.Response),
	)

	text := extractJSON(genResp.Response)
	if text == "" {
		return fmt.Errorf("empty response from ollama")
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("narrator returned invalid JSON: %w", err)
	}
	return nil
}

// extractJSON strips code fences and any prose around the outermost object.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return strings.TrimSpace(s)
	}
	return s[start : end+1]
}

func truncateHistory(history string) string {
	if len(history) <= maxHistoryChars {
		return history
	}
	// Both cuts land on rune boundaries so the prompt stays valid UTF-8.
	head := maxHistoryChars / 4
	for head > 0 && !utf8.RuneStart(history[head]) {
		head--
	}
	start := len(history) - (maxHistoryChars - maxHistoryChars/4)
	for start < len(history) && !utf8.RuneStart(history[start]) {
		start++
	}
	return history[:head] + "\n\n[... earlier events omitted ...]\n\n" + history[start:]
}
