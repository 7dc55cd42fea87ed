package analysis

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

	"github.com/medisetu/platform/pkg/common/config"
	"github.com/medisetu/platform/pkg/common/httpclient"
	"github.com/medisetu/platform/pkg/common/logger"
	"github.com/medisetu/platform/pkg/common/models"
)

const promptTemplate = `Analyze this medical report text and extract structured data.
Text: %q

Ensure the summary is patient-friendly (not too technical) and includes:
1) What this report is
2) What is normal
3) What is not normal
4) What you should do next (3 steps)
5) Safety Disclaimer

For "what_is_wrong", use probability language like "may indicate" or "can be due to".
DO NOT claim a diagnosis. ALWAYS suggest consulting a doctor.

Respond with a single JSON object with these fields:
report_metadata {report_type, date, lab_name},
test_values [{test_name, value, unit, normal_range, flag}] where flag is LOW, HIGH, NORMAL or UNKNOWN,
summary, what_is_wrong, abnormal_findings (array of strings).`

// Client calls an OpenAI-compatible chat/completions endpoint.
type Client struct {
	baseURL   string
	modelName string
	retries   int
	http      *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.LLMBaseURL, "/"),
		modelName: cfg.LLMModelName,
		retries:   cfg.AnalysisRetries,
		http:      httpclient.New(cfg.AnalysisTimeout, httpclient.StaticToken(cfg.LLMAPIKey)),
	}
}

// New returns the live client when an API key is configured and the offline
// mock otherwise.
func New(cfg *config.Config) Analyzer {
	if cfg.LLMAPIKey == "" {
		logger.Log.Warn("LLM_API_KEY not set, using mock report analyzer")
		return Mock{}
	}
	return NewClient(cfg)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) AnalyzeReport(ctx context.Context, reportText string) (*models.StructuredReport, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.modelName,
		Messages: []chatMessage{
			{Role: "user", Content: fmt.Sprintf(promptTemplate, reportText)},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysis, err)
	}

	var content string
	start := time.Now()
	err = httpclient.Retry(ctx, c.retries+1, 250*time.Millisecond, httpclient.IsRetriable, func() error {
		var callErr error
		content, callErr = c.complete(ctx, payload)
		return callErr
	})
	if err != nil {
		logger.Log.WithError(err).WithField("model", c.modelName).Error("Report analysis call failed")
		if errors.Is(err, ErrAnalysis) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrAnalysis, err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"model":       c.modelName,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Report analysed")

	return decodeStructured(content)
}

func (c *Client) complete(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &httpclient.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: decoding completion: %v", ErrAnalysis, err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%w: no response from LLM", ErrAnalysis)
	}
	return result.Choices[0].Message.Content, nil
}
