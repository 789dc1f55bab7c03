package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"medical-review-assistant/internal/consultation"
)

const defaultDeepSeekURL = "https://api.deepseek.com"

var ErrNotConfigured = errors.New("deepseek api key is not configured")

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// DeepSeekClient talks to the OpenAI compatible chat completion endpoint.
type DeepSeekClient struct {
	cfg        Config
	httpClient *http.Client
	log        *logrus.Logger
}

func NewDeepSeekClient(cfg Config, logger *logrus.Logger) *DeepSeekClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultDeepSeekURL
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &DeepSeekClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: logger,
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
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// GenerateConsultation asks the model for a full consultation write-up with
// the RAPPORT / DIAGNOSTIC / EXAMENS / PRESCRIPTION headings the extraction
// parsers expect.
func (c *DeepSeekClient) GenerateConsultation(ctx context.Context, p consultation.Patient) (string, error) {
	prompt, err := consultationPrompt(p)
	if err != nil {
		return "", fmt.Errorf("rendering consultation prompt: %w", err)
	}
	return c.Complete(ctx, consultationSystemPrompt, prompt)
}

// Complete sends a single system/user exchange and returns the reply text.
func (c *DeepSeekClient) Complete(ctx context.Context, system, user string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}

	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.cfg.Temperature,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepseek request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("deepseek api error: %s - %s", resp.Status, string(body))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding deepseek response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("deepseek returned no choices")
	}

	c.log.WithFields(logrus.Fields{
		"model":             c.cfg.Model,
		"prompt_tokens":     result.Usage.PromptTokens,
		"completion_tokens": result.Usage.CompletionTokens,
		"duration_ms":       time.Since(start).Milliseconds(),
	}).Debug("DeepSeek completion finished")

	return result.Choices[0].Message.Content, nil
}
