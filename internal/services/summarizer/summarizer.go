package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"legal-consult/internal/status"
)

const prompt = `You are a legal assistant helping to summarize case descriptions for lawyers.

Given the following case description, generate a concise professional summary (100-150 words) that identifies the main legal issue, highlights key facts, notes any urgency, and stays objective and factual.

Case description:
%q

Summary:`

type Config struct {
	BaseURL string `json:"baseUrl" mapstructure:"base_url"`
	APIKey  string `json:"apiKey" mapstructure:"api_key"`
}

// Client calls an external text-generation backend to turn free-form case
// text into a structured summary. Callers are expected to fail open: a
// booking draft is never blocked on this service.
type Client struct {
	baseURL string
	apiKey  string

	hc *http.Client
}

func New(cfg *Config) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,

		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Summarize returns a generated case summary for the given description.
func (c *Client) Summarize(ctx context.Context, description string) (string, error) {
	if c.baseURL == "" || c.apiKey == "" {
		return "", fmt.Errorf("%w: summarize: not configured", status.ErrGatewayUnavailable)
	}

	payload := struct {
		Contents []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
	}{}
	payload.Contents = append(payload.Contents, struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	}{Parts: []struct {
		Text string `json:"text"`
	}{{Text: fmt.Sprintf(prompt, description)}}})

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("summarize: json.Marshal: %v", err)
	}

	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", _baseURL.String(), "/models/gemini-pro:generateContent"), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("summarize: http.NewReq: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: summarize: %v", status.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: summarize: http status %d", status.ErrGatewayUnavailable, resp.StatusCode)
	}

	var reply struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return "", fmt.Errorf("summarize: json.Decode: %v", err)
	}
	if len(reply.Candidates) == 0 || len(reply.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("summarize: empty reply")
	}

	return strings.TrimSpace(reply.Candidates[0].Content.Parts[0].Text), nil
}
