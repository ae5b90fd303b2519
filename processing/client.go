// Package processing uploads a finished recording to the transcription
// service and maps its responses onto a small error taxonomy. It performs
// exactly one POST per call: no retries, no side effects beyond the request.
package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
)

// TokenSource supplies the bearer token for the service; auth lives
// outside this package.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource for a fixed token (env var, config file).
type StaticToken string

func (t StaticToken) Token() (string, error) { return string(t), nil }

// Result is the service's answer for one recording. Immutable once built.
type Result struct {
	Transcription        string
	CleanedTranscription string
	CleaningUsed         bool
	Metrics              *NetworkMetrics
}

type Client struct {
	http   *TracedClient
	apiURL string
	tokens TokenSource
}

func NewClient(apiURL string, tokens TokenSource) *Client {
	return &Client{
		http:   NewTracedClient(apiURL),
		apiURL: apiURL,
		tokens: tokens,
	}
}

// Warm pre-opens a connection to the service. Best effort, safe to call
// from a goroutine.
func (c *Client) Warm() { c.http.Warm() }

type transcribeResponse struct {
	Transcription        string `json:"transcription"`
	CleanedTranscription string `json:"cleanedTranscription"`
	CleaningUsed         bool   `json:"cleaningUsed"`
}

type rateLimitBody struct {
	Code     string `json:"code"`
	Used     int    `json:"used"`
	Limit    int    `json:"limit"`
	ResetsAt string `json:"resetsAt"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Transcribe uploads audio with its duration and the reference text the
// service uses for cleanup. Empty audio fails before any network traffic.
func (c *Client) Transcribe(ctx context.Context, audio []byte, duration float64, referenceText string) (*Result, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.flac")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, err
	}

	writer.WriteField("duration", strconv.FormatFloat(duration, 'f', -1, 64))
	writer.WriteField("referenceText", referenceText)
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, &body)
	if err != nil {
		return nil, err
	}

	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("resolving token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var tr transcribeResponse
		if err := json.Unmarshal(resp.Body, &tr); err != nil {
			return nil, fmt.Errorf("transcription response parse error: %w", err)
		}
		return &Result{
			Transcription:        tr.Transcription,
			CleanedTranscription: tr.CleanedTranscription,
			CleaningUsed:         tr.CleaningUsed,
			Metrics:              resp.Metrics,
		}, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		var rl rateLimitBody
		json.Unmarshal(resp.Body, &rl) // tolerate an empty or odd body
		if rl.Code == codeInProgress {
			return nil, ErrAlreadyInProgress
		}
		resetsAt := rl.ResetsAt
		if resetsAt == "" {
			resetsAt = defaultResetsAt
		}
		return nil, &RateLimitError{Used: rl.Used, Limit: rl.Limit, ResetsAt: resetsAt}

	default:
		var eb errorBody
		json.Unmarshal(resp.Body, &eb)
		msg := eb.Error
		if msg == "" {
			msg = eb.Message
		}
		if msg == "" {
			msg = "transcription failed"
		}
		return nil, fmt.Errorf("transcription service error %d: %s", resp.StatusCode, msg)
	}
}
