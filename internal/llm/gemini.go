package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// Bodies are truncated before being sent to the model; the judge only
	// needs enough content to classify, not the whole message.
	maxBodyChars = 15000
)

// Gemini judges mail via the Google Generative Language API.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGemini returns a judge for the given API key and model name.
func NewGemini(apiKey, model string) *Gemini {
	return &Gemini{
		apiKey:  apiKey,
		model:   model,
		baseURL: geminiBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// JudgeMail asks the model whether the message matches the user's rule.
// The model is instructed to answer MATCH or NO_MATCH; anything else is
// an error so the caller can downgrade to non-match.
func (g *Gemini) JudgeMail(ctx context.Context, systemPrompt, userPrompt, subject, body string) (bool, error) {
	if len(body) > maxBodyChars {
		body = body[:maxBodyChars]
	}
	prompt := fmt.Sprintf(
		"%s\n\nUser's Rule: %q\n\nEmail Subject:\n\"\"\"\n%s\n\"\"\"\n\nEmail Body:\n\"\"\"\n%s\n\"\"\"\n\nDoes this email match the user's rule? Respond with only 'MATCH' or 'NO_MATCH'.",
		systemPrompt, userPrompt, subject, body)

	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return false, fmt.Errorf("encoding judge request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("building judge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("calling judge: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, fmt.Errorf("reading judge response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("judge returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded geminiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return false, fmt.Errorf("decoding judge response: %w", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return false, fmt.Errorf("judge response carried no text")
	}

	verdict := strings.ToUpper(strings.TrimSpace(decoded.Candidates[0].Content.Parts[0].Text))
	switch verdict {
	case "MATCH":
		return true, nil
	case "NO_MATCH":
		return false, nil
	default:
		return false, fmt.Errorf("unexpected judge verdict %q", verdict)
	}
}

var _ Judge = (*Gemini)(nil)
