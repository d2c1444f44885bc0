package policy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/attnmarkets/attnd/internal/domain"
)

// DefaultGeminiBaseURL is the Gemini REST API root.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// Gemini implements domain.Policy and domain.HolisticEstimator against the
// Gemini generateContent REST API. Reasonability checks and the holistic
// index use the Google Search grounding tool so answers reflect what is
// actually discussed on the web.
type Gemini struct {
	baseURL    string
	apiKey     string
	model      string
	imageModel string
	httpClient *http.Client
	logger     *slog.Logger
}

// GeminiConfig holds Gemini client parameters.
type GeminiConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	ImageModel string
	Timeout    time.Duration
}

// NewGemini creates a Gemini-backed policy client.
func NewGemini(cfg GeminiConfig, logger *slog.Logger) *Gemini {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash-lite"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Gemini{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		imageModel: cfg.ImageModel,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(slog.String("component", "policy_gemini")),
	}
}

// --- generateContent wire types ---

type generateRequest struct {
	Contents []content `json:"contents"`
	Tools    []tool    `json:"tools,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type tool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// generate performs one generateContent call and returns the first text part.
func (g *Gemini) generate(ctx context.Context, model, prompt string, withSearch bool) (string, error) {
	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}
	if withSearch {
		reqBody.Tools = []tool{{GoogleSearch: &struct{}{}}}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("policy/gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("policy/gemini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("policy/gemini: call %s: %w", model, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("policy/gemini: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("policy/gemini: %s returned status %d", model, resp.StatusCode)
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("policy/gemini: decode response: %w", err)
	}
	for _, c := range out.Candidates {
		for _, p := range c.Content.Parts {
			if p.Text != "" {
				return p.Text, nil
			}
		}
	}
	return "", fmt.Errorf("policy/gemini: no text in response")
}

// CheckReasonability verifies the topic is real and discussed on the web.
func (g *Gemini) CheckReasonability(ctx context.Context, name, sourceURL, description string) (domain.ReasonabilityResult, error) {
	prompt := "You check whether an event is suitable for an attention-trading market (tradable on attention). " +
		"Use the event name and description (if provided) to understand what the event is. " +
		"Use Google Search to verify the event is real and discussed on the web. " +
		"If you find no or insufficient information, the event is not tradable. " +
		`Reply with ONLY a JSON object: {"pass": true or false, "reason": "short explanation"}. ` +
		"If pass is false, reason should be user-friendly. No markdown, no code fences.\n\n" +
		topicContext(name, sourceURL, description)

	text, err := g.generate(ctx, g.model, prompt, true)
	if err != nil {
		return domain.ReasonabilityResult{}, err
	}

	var result domain.ReasonabilityResult
	if err := json.Unmarshal(jsonBlock(text), &result); err != nil {
		return domain.ReasonabilityResult{}, fmt.Errorf("policy/gemini: reasonability response not valid JSON: %w", err)
	}
	return result, nil
}

// SelectTools asks the model which channels and keywords to track.
func (g *Gemini) SelectTools(ctx context.Context, name, sourceURL, description string, available []domain.Tool, windowMinutes int) (domain.EventConfig, error) {
	toolsJSON, _ := json.Marshal(available)
	prompt := "You are a config generator for an attention-tracking system. " +
		"Use the event name and description (if provided) to decide which tools to use. " +
		"Output ONLY a single JSON object with keys: tools (array of tool ids), keywords (array of strings), exclusions (array of strings). " +
		"Available tools: " + string(toolsJSON) + ". " +
		"Routing rules: casual/viral content uses reddit; technical topics use hn_frontpage + reddit + github; " +
		"professional events use linkedin. Combine tools when the event fits multiple categories. " +
		"No markdown, no explanation.\n\n" +
		fmt.Sprintf("Window: %d minutes. ", windowMinutes) + topicContext(name, sourceURL, description)

	text, err := g.generate(ctx, g.model, prompt, false)
	if err != nil {
		return domain.EventConfig{}, err
	}

	var selected struct {
		Tools      []string `json:"tools"`
		Keywords   []string `json:"keywords"`
		Exclusions []string `json:"exclusions"`
	}
	if err := json.Unmarshal(jsonBlock(text), &selected); err != nil {
		return domain.EventConfig{}, fmt.Errorf("policy/gemini: tool selection not valid JSON: %w", err)
	}

	cfg := domain.EventConfig{
		Tools:         selected.Tools,
		Keywords:      selected.Keywords,
		Exclusions:    selected.Exclusions,
		WindowMinutes: windowMinutes,
		SourceURL:     sourceURL,
		Description:   description,
	}
	if len(cfg.Tools) == 0 {
		cfg.Tools = append([]string(nil), domain.DefaultToolIDs...)
	}
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = KeywordsFromName(name)
	}
	return cfg, nil
}

// DecideAccept asks the model whether the computed traction is enough.
func (g *Gemini) DecideAccept(ctx context.Context, name string, indexValue float64, activity domain.Activity) (domain.AcceptDecision, error) {
	activityJSON, _ := json.Marshal(activity)
	prompt := fmt.Sprintf(
		"Event: %s. Initial index (traction): %g. Per-channel activity: %s. "+
			"Should we accept this event for trading (is there enough traction)? "+
			`Reply with ONLY a JSON object: {"accept": true or false, "reason": "short reason"}. No markdown.`,
		name, indexValue, activityJSON,
	)

	text, err := g.generate(ctx, g.model, prompt, false)
	if err != nil {
		return domain.AcceptDecision{}, err
	}

	var decision domain.AcceptDecision
	if err := json.Unmarshal(jsonBlock(text), &decision); err != nil {
		return domain.AcceptDecision{}, fmt.Errorf("policy/gemini: accept decision not valid JSON: %w", err)
	}
	return decision, nil
}

// Explain asks the model for a short resolution narrative.
func (g *Gemini) Explain(ctx context.Context, name string, indexStart, indexEnd float64, history []domain.IndexPoint) (string, error) {
	tail := history
	if len(tail) > 20 {
		tail = tail[len(tail)-20:]
	}
	historyJSON, _ := json.Marshal(tail)
	prompt := fmt.Sprintf(
		"The attention index for %q moved from %g to %g over its trading window. Recent history: %s. "+
			"In one or two sentences, explain the movement for traders. Plain text only.",
		name, indexStart, indexEnd, historyJSON,
	)
	return g.generate(ctx, g.model, prompt, false)
}

// SuggestWindow asks the model for a window length in minutes.
func (g *Gemini) SuggestWindow(ctx context.Context, name, sourceURL, description string) (int, error) {
	prompt := "Suggest a trading window in minutes for an attention market on this topic. " +
		"Fast-moving viral topics suit 60; slower news cycles suit 1440. " +
		`Reply with ONLY a JSON object: {"minutes": number}. No markdown.` + "\n\n" +
		topicContext(name, sourceURL, description)

	text, err := g.generate(ctx, g.model, prompt, false)
	if err != nil {
		return 0, err
	}
	var out struct {
		Minutes int `json:"minutes"`
	}
	if err := json.Unmarshal(jsonBlock(text), &out); err != nil {
		return 0, fmt.Errorf("policy/gemini: window suggestion not valid JSON: %w", err)
	}
	if out.Minutes < 1 {
		return 0, fmt.Errorf("policy/gemini: non-positive window suggestion %d", out.Minutes)
	}
	return out.Minutes, nil
}

// Headline asks the model for event card copy.
func (g *Gemini) Headline(ctx context.Context, name, marketType, sourceURL, description string) (domain.Headline, error) {
	prompt := fmt.Sprintf(
		"Write display copy for an attention market card. Topic: %s. Market type: %s. "+
			"headline is an emotional hook; subline clarifies the mechanic; label_up/label_down are short button labels. "+
			`Reply with ONLY a JSON object: {"headline": "...", "subline": "...", "label_up": "...", "label_down": "..."}. No markdown.`+"\n\n",
		name, marketType,
	) + topicContext(name, sourceURL, description)

	text, err := g.generate(ctx, g.model, prompt, false)
	if err != nil {
		return domain.Headline{}, err
	}
	var h domain.Headline
	if err := json.Unmarshal(jsonBlock(text), &h); err != nil {
		return domain.Headline{}, fmt.Errorf("policy/gemini: headline not valid JSON: %w", err)
	}
	return h, nil
}

// BuildIndex implements domain.HolisticEstimator: a single grounded call
// rates the topic's attention today and over up to six months back. The
// current value is clamped to [0, 200]; backfill points are strictly in the
// past and clamped the same way.
func (g *Gemini) BuildIndex(ctx context.Context, name, sourceURL, description string) (float64, []domain.IndexPoint, error) {
	prompt := "Rate attention for this topic over the last up to 6 months (max 6 months) based on news, social media virality, etc. " +
		"If the topic is newer and had no traction in earlier months, use index 0 for those months. " +
		"Return JSON: current_index (number for today) and points (array of objects with month (string YYYY-MM) and index (number)). " +
		"No markdown, no code fences.\n\n" +
		topicContext(name, sourceURL, description)

	text, err := g.generate(ctx, g.model, prompt, true)
	if err != nil {
		return 0, nil, err
	}

	var out struct {
		CurrentIndex float64 `json:"current_index"`
		Points       []struct {
			Month string  `json:"month"`
			Index float64 `json:"index"`
		} `json:"points"`
	}
	if err := json.Unmarshal(jsonBlock(text), &out); err != nil {
		return 0, nil, fmt.Errorf("policy/gemini: holistic index not valid JSON: %w", err)
	}

	current := clamp200(out.CurrentIndex)
	now := time.Now().UTC()

	var points []domain.IndexPoint
	for _, p := range out.Points {
		t, ok := monthStart(p.Month)
		if !ok || !t.Before(now) {
			continue
		}
		points = append(points, domain.IndexPoint{T: t, Value: clamp200(p.Index)})
	}
	return current, points, nil
}

// Generate implements domain.ImageGenerator by asking the image model for an
// inline PNG. Returns an error when no image model is configured.
func (g *Gemini) Generate(ctx context.Context, name, headline string) ([]byte, error) {
	if g.imageModel == "" {
		return nil, fmt.Errorf("policy/gemini: no image model configured")
	}

	prompt := fmt.Sprintf(
		"Generate a bold, abstract thumbnail illustration for an attention market card titled %q (%s). "+
			"No text in the image.",
		headline, name,
	)

	reqBody := generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("policy/gemini: marshal image request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.imageModel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("policy/gemini: build image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("policy/gemini: image call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("policy/gemini: image model returned status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("policy/gemini: decode image response: %w", err)
	}
	for _, c := range out.Candidates {
		for _, p := range c.Content.Parts {
			if p.InlineData != nil && strings.HasPrefix(p.InlineData.MimeType, "image/") {
				data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					return nil, fmt.Errorf("policy/gemini: decode image data: %w", err)
				}
				return data, nil
			}
		}
	}
	return nil, fmt.Errorf("policy/gemini: no image in response")
}

func topicContext(name, sourceURL, description string) string {
	parts := []string{fmt.Sprintf("Topic/event name: %s.", name)}
	if sourceURL != "" {
		parts = append(parts, "Source URL: "+sourceURL)
	}
	if description != "" {
		parts = append(parts, "Description: "+description)
	}
	return strings.Join(parts, " ")
}

func clamp200(v float64) float64 {
	return math.Round(math.Max(0, math.Min(200, v))*100) / 100
}

// monthStart converts "YYYY-MM" to the first instant of that month in UTC.
func monthStart(month string) (time.Time, bool) {
	parts := strings.SplitN(strings.TrimSpace(month), "-", 3)
	if len(parts) < 2 {
		return time.Time{}, false
	}
	y, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || m < 1 || m > 12 {
		return time.Time{}, false
	}
	return time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC), true
}

// jsonBlock strips markdown fences and extracts the first JSON object or
// array from model output.
func jsonBlock(text string) []byte {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if i := strings.Index(text, "\n"); i >= 0 {
			text = text[i+1:]
		} else {
			text = text[3:]
		}
	}
	if strings.HasSuffix(text, "```") {
		text = strings.TrimSpace(text[:len(text)-3])
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return []byte(text)
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return []byte(text[start : i+1])
			}
		}
	}
	return []byte(text[start:])
}
