// Package engine is the HTTP client for the external summarization engine.
// The engine is an opaque service: successful responses are returned as-is
// and error responses are surfaced with their status and body unchanged.
package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"omnidigest/pkg/domain"
)

// ErrUnavailable marks transport-level failures where no response was
// received at all, so callers can tell them apart from engine errors.
var ErrUnavailable = errors.New("summarization engine unreachable")

// UpstreamError carries a non-2xx engine response verbatim.
type UpstreamError struct {
	Status      int
	ContentType string
	Body        []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("engine returned status %d", e.Status)
}

// Client calls the summarization engine over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs an engine client. A zero timeout leaves the request
// without a client-side deadline; cancellation is then the transport's
// concern.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SummarizeText forwards a text payload in a single blocking call.
func (c *Client) SummarizeText(text string, ratio float64, lengthCategory int) (domain.SummarizeResult, error) {
	payload := map[string]any{
		"text":           text,
		"ratio":          ratio,
		"lengthCategory": lengthCategory,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.SummarizeResult{}, err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/extractive-summary", bytes.NewReader(body))
	if err != nil {
		return domain.SummarizeResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// SummarizeFile forwards a file payload as a multipart body. No size ceiling
// applies here; the ceiling is enforced at ingestion before staging.
func (c *Client) SummarizeFile(filename string, r io.Reader, ratio float64, lengthCategory int) (domain.SummarizeResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return domain.SummarizeResult{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return domain.SummarizeResult{}, err
	}
	if err := writer.WriteField("ratio", strconv.FormatFloat(ratio, 'f', -1, 64)); err != nil {
		return domain.SummarizeResult{}, err
	}
	if err := writer.WriteField("lengthCategory", strconv.Itoa(lengthCategory)); err != nil {
		return domain.SummarizeResult{}, err
	}
	if err := writer.Close(); err != nil {
		return domain.SummarizeResult{}, err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/extractive-summary-file", body)
	if err != nil {
		return domain.SummarizeResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.do(req)
}

// do performs exactly one forward attempt; there is no retry or backoff.
func (c *Client) do(req *http.Request) (domain.SummarizeResult, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.SummarizeResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		return domain.SummarizeResult{}, &UpstreamError{
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        raw,
		}
	}
	var result domain.SummarizeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.SummarizeResult{}, fmt.Errorf("decode engine response: %w", err)
	}
	return result, nil
}
