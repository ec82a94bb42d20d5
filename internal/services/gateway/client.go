// Package gateway talks to the remote text-generation endpoint.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	apperrors "github.com/socialchef/recipewizard/internal/errors"
	"github.com/socialchef/recipewizard/internal/httpclient"
	"github.com/socialchef/recipewizard/internal/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Generator turns a prompt into generated text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type generateRequest struct {
	Message string `json:"message"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient returns a gateway client posting to url. A nil httpClient uses
// the instrumented client with the default timeout.
func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = httpclient.New(httpclient.DefaultTimeout)
	}
	return &Client{url: url, httpClient: httpClient}
}

// Generate sends one prompt and blocks until the gateway answers. Any status
// other than 200 is returned as a gateway error carrying that status.
func (c *Client) Generate(ctx context.Context, prompt string) (result string, err error) {
	startTime := time.Now()
	defer func() {
		duration := time.Since(startTime).Seconds()
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		attrs := metric.WithAttributes(
			attribute.String("provider", "gateway"),
			attribute.String("outcome", outcome),
		)
		metrics.GenerationDuration.Record(ctx, duration, attrs)
		metrics.ExternalAPIDuration.Record(ctx, duration, attrs)
		metrics.ExternalAPICallsTotal.Add(ctx, 1, attrs)
	}()

	body, err := json.Marshal(generateRequest{Message: prompt})
	if err != nil {
		return "", apperrors.NewGatewayError(0, "GATEWAY_ENCODE_FAILED", err)
	}

	req, err := http.NewRequestWithContext(httpclient.WithTarget(ctx, "Gateway"), http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", apperrors.NewGatewayError(0, "GATEWAY_REQUEST_FAILED", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewGatewayError(0, "GATEWAY_TRANSPORT_FAILED", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.NewGatewayError(resp.StatusCode, "GATEWAY_READ_FAILED", err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.WarnContext(ctx, "Gateway returned non-success status",
			"status", resp.StatusCode,
			"body", truncate(string(respBody), 256))
		return "", apperrors.NewGatewayError(resp.StatusCode, "GATEWAY_STATUS",
			fmt.Errorf("gateway status %d", resp.StatusCode))
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", apperrors.NewGatewayError(resp.StatusCode, "GATEWAY_DECODE_FAILED", err)
	}

	return out.Response, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
