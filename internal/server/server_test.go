package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"omnidigest/internal/app"
	"omnidigest/internal/engine"
	"omnidigest/internal/ratelimit"
	"omnidigest/internal/storage"
	"omnidigest/internal/store"
	"omnidigest/pkg/domain"
)

type fakeEngine struct {
	result domain.SummarizeResult
	err    error
}

func (f *fakeEngine) SummarizeText(string, float64, int) (domain.SummarizeResult, error) {
	return f.result, f.err
}

func (f *fakeEngine) SummarizeFile(string, io.Reader, float64, int) (domain.SummarizeResult, error) {
	return f.result, f.err
}

type testServer struct {
	ts         *httptest.Server
	app        *app.App
	stagingDir string
}

func newTestServer(t *testing.T, eng app.SummaryEngine, maxUploadBytes int64, limiter *ratelimit.FixedWindowLimiter) *testServer {
	t.Helper()
	stagingDir := t.TempDir()
	attachments, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	appCore, err := app.New(app.Config{
		Store:          store.NewMemoryStore(),
		Engine:         eng,
		StagingDir:     stagingDir,
		Attachments:    attachments,
		MaxUploadBytes: maxUploadBytes,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv, err := New(Config{App: appCore, Limiter: limiter})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testServer{ts: ts, app: appCore, stagingDir: stagingDir}
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func multipartUpload(t *testing.T, url, filename, content string, fields map[string]string) *http.Response {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	resp, err := http.Post(url, writer.FormDataContentType(), body)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func createTestRecord(t *testing.T, ts *testServer, medium domain.MediumType) domain.SummaryRecord {
	t.Helper()
	resp := postJSON(t, ts.ts.URL+"/api/records", map[string]any{
		"ownerId":           "user-1",
		"originalContent":   map[string]any{"text": "long text", "wordCount": 100, "sentenceCount": 10},
		"summarizedContent": map[string]any{"text": "short", "wordCount": 10, "sentenceCount": 1},
		"inputMedium":       map[string]any{"type": string(medium)},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create record status = %d", resp.StatusCode)
	}
	var rec domain.SummaryRecord
	decodeBody(t, resp, &rec)
	return rec
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{}, 0, nil)
	resp, err := http.Get(ts.ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Request-Id"); got == "" {
		t.Fatalf("responses should carry a request id")
	}
}

func TestSummarizeTextEndpoint(t *testing.T) {
	eng := &fakeEngine{result: domain.SummarizeResult{SummaryText: "short", SummaryWordCount: 1}}
	ts := newTestServer(t, eng, 0, nil)

	resp := postJSON(t, ts.ts.URL+"/api/summaries/text", map[string]any{"text": "The cat sat.", "ratio": 0.1})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got struct {
		SummaryText           string `json:"summaryText"`
		SummaryLengthCategory int    `json:"summaryLengthCategory"`
	}
	decodeBody(t, resp, &got)
	if got.SummaryText != "short" {
		t.Fatalf("summaryText = %q", got.SummaryText)
	}
	if got.SummaryLengthCategory != domain.LengthShort {
		t.Fatalf("summaryLengthCategory = %d, want Short for ratio 0.1", got.SummaryLengthCategory)
	}
}

func TestSummarizeTextValidationErrors(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{}, 0, nil)

	resp := postJSON(t, ts.ts.URL+"/api/summaries/text", map[string]any{"text": "", "ratio": 0.1})
	var errBody map[string]string
	decodeBody(t, resp, &errBody)
	if resp.StatusCode != http.StatusBadRequest || errBody["kind"] != "validation" {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, errBody)
	}

	resp = postJSON(t, ts.ts.URL+"/api/summaries/text", map[string]any{"text": "abc", "ratio": 1.5})
	decodeBody(t, resp, &errBody)
	if resp.StatusCode != http.StatusBadRequest || errBody["kind"] != "validation" {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, errBody)
	}
}

func TestSummarizeFileEndpointCleansStaging(t *testing.T) {
	eng := &fakeEngine{result: domain.SummarizeResult{SummaryText: "short"}}
	ts := newTestServer(t, eng, 0, nil)

	resp := multipartUpload(t, ts.ts.URL+"/api/summaries/file", "notes.txt", "a document", map[string]string{"ratio": "0.2"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	entries, err := os.ReadDir(ts.stagingDir)
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("staging dir should be empty after the request, found %d entries", len(entries))
	}
}

func TestSummarizeFileRejectsUnsupportedExtension(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{}, 0, nil)

	resp := multipartUpload(t, ts.ts.URL+"/api/summaries/file", "notes.exe", "MZ", map[string]string{"ratio": "0.2"})
	var errBody map[string]string
	decodeBody(t, resp, &errBody)
	if resp.StatusCode != http.StatusBadRequest || errBody["kind"] != "validation" {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, errBody)
	}
	entries, _ := os.ReadDir(ts.stagingDir)
	if len(entries) != 0 {
		t.Fatalf("rejected upload must never reach staging")
	}
}

func TestSummarizeFileSizeBoundary(t *testing.T) {
	const max = 64
	eng := &fakeEngine{result: domain.SummarizeResult{SummaryText: "short"}}
	ts := newTestServer(t, eng, max, nil)

	exact := strings.Repeat("a", max)
	resp := multipartUpload(t, ts.ts.URL+"/api/summaries/file", "exact.txt", exact, map[string]string{"ratio": "0.2"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("file of exactly the ceiling should pass, status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	over := exact + "b"
	resp = multipartUpload(t, ts.ts.URL+"/api/summaries/file", "over.txt", over, map[string]string{"ratio": "0.2"})
	var errBody map[string]string
	decodeBody(t, resp, &errBody)
	if resp.StatusCode != http.StatusBadRequest || errBody["kind"] != "validation" {
		t.Fatalf("one byte over the ceiling: status = %d, body = %v", resp.StatusCode, errBody)
	}
}

func TestSummarizeFileMissingRatio(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{}, 0, nil)
	resp := multipartUpload(t, ts.ts.URL+"/api/summaries/file", "notes.txt", "body", nil)
	var errBody map[string]string
	decodeBody(t, resp, &errBody)
	if resp.StatusCode != http.StatusBadRequest || errBody["kind"] != "validation" {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, errBody)
	}
}

func TestUpstreamErrorPassesThroughVerbatim(t *testing.T) {
	upstreamBody := `{"detail":"text too short to summarize"}`
	eng := &fakeEngine{err: &engine.UpstreamError{
		Status:      http.StatusUnprocessableEntity,
		ContentType: "application/json",
		Body:        []byte(upstreamBody),
	}}
	ts := newTestServer(t, eng, 0, nil)

	resp := postJSON(t, ts.ts.URL+"/api/summaries/text", map[string]any{"text": "x", "ratio": 0.1})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want the upstream status", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Error-Kind"); got != "upstream" {
		t.Fatalf("X-Error-Kind = %q", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != upstreamBody {
		t.Fatalf("body = %q, want the upstream body verbatim", body)
	}
}

func TestEngineUnavailableMapsTo503(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{err: engine.ErrUnavailable}, 0, nil)
	resp := postJSON(t, ts.ts.URL+"/api/summaries/text", map[string]any{"text": "x", "ratio": 0.1})
	var errBody map[string]string
	decodeBody(t, resp, &errBody)
	if resp.StatusCode != http.StatusServiceUnavailable || errBody["kind"] != "unavailable" {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, errBody)
	}
}

func TestRecordLifecycle(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{}, 0, nil)
	created := createTestRecord(t, ts, domain.MediumFile)
	if created.ID == "" {
		t.Fatalf("created record should carry an id")
	}

	// Attach the original file in the second phase.
	resp := multipartUpload(t, ts.ts.URL+"/api/records/"+created.ID+"/file", "notes.txt", "original document", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("attach status = %d", resp.StatusCode)
	}
	var attached domain.SummaryRecord
	decodeBody(t, resp, &attached)
	if attached.InputMedium.Type != domain.MediumFile || attached.InputMedium.File == nil {
		t.Fatalf("input medium = %+v", attached.InputMedium)
	}
	if attached.InputMedium.File.OriginalName != "notes.txt" {
		t.Fatalf("attached name = %q", attached.InputMedium.File.OriginalName)
	}

	// Rate the summary.
	req, err := http.NewRequest(http.MethodPatch, ts.ts.URL+"/api/records/"+created.ID+"/feedback", strings.NewReader(`{"rating":4}`))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	patchResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("patch feedback: %v", err)
	}
	var rated domain.SummaryRecord
	decodeBody(t, patchResp, &rated)
	if patchResp.StatusCode != http.StatusOK || rated.Feedback == nil || *rated.Feedback != 4 {
		t.Fatalf("status = %d, feedback = %v", patchResp.StatusCode, rated.Feedback)
	}

	// List the owner's records.
	listResp, err := http.Get(ts.ts.URL + "/api/records?owner=user-1")
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	var list struct {
		Items []domain.SummaryRecord `json:"items"`
		Count int                    `json:"count"`
	}
	decodeBody(t, listResp, &list)
	if listResp.StatusCode != http.StatusOK || list.Count != 1 {
		t.Fatalf("status = %d, count = %d", listResp.StatusCode, list.Count)
	}
	if list.Items[0].ID != created.ID {
		t.Fatalf("listed id = %q", list.Items[0].ID)
	}
}

func TestListRecordsUnknownOwnerIs404(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{}, 0, nil)
	resp, err := http.Get(ts.ts.URL + "/api/records?owner=nobody")
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	var errBody map[string]string
	decodeBody(t, resp, &errBody)
	if resp.StatusCode != http.StatusNotFound || errBody["kind"] != "not_found" {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, errBody)
	}
}

func TestListRecordsMissingOwnerIs400(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{}, 0, nil)
	resp, err := http.Get(ts.ts.URL + "/api/records")
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	var errBody map[string]string
	decodeBody(t, resp, &errBody)
	if resp.StatusCode != http.StatusBadRequest || errBody["kind"] != "validation" {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, errBody)
	}
}

func TestAttachFileUnknownRecordIs404(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{}, 0, nil)
	resp := multipartUpload(t, ts.ts.URL+"/api/records/no-such-id/file", "notes.txt", "x", nil)
	var errBody map[string]string
	decodeBody(t, resp, &errBody)
	if resp.StatusCode != http.StatusNotFound || errBody["kind"] != "not_found" {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, errBody)
	}
}

func TestFeedbackValidation(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{}, 0, nil)
	created := createTestRecord(t, ts, domain.MediumText)

	patch := func(id, body string) (*http.Response, map[string]string) {
		req, err := http.NewRequest(http.MethodPatch, ts.ts.URL+"/api/records/"+id+"/feedback", strings.NewReader(body))
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("patch: %v", err)
		}
		var errBody map[string]string
		decodeBody(t, resp, &errBody)
		return resp, errBody
	}

	resp, errBody := patch(created.ID, `{"rating":6}`)
	if resp.StatusCode != http.StatusBadRequest || errBody["kind"] != "validation" {
		t.Fatalf("rating 6: status = %d, body = %v", resp.StatusCode, errBody)
	}
	resp, errBody = patch(created.ID, `{}`)
	if resp.StatusCode != http.StatusBadRequest || errBody["kind"] != "validation" {
		t.Fatalf("missing rating: status = %d, body = %v", resp.StatusCode, errBody)
	}
	resp, errBody = patch("no-such-id", `{"rating":4}`)
	if resp.StatusCode != http.StatusNotFound || errBody["kind"] != "not_found" {
		t.Fatalf("unknown id: status = %d, body = %v", resp.StatusCode, errBody)
	}
}

func TestAnalyticsEndpoint(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{}, 0, nil)
	createTestRecord(t, ts, domain.MediumText)

	resp, err := http.Get(ts.ts.URL + "/api/analytics")
	if err != nil {
		t.Fatalf("get analytics: %v", err)
	}
	var report domain.AnalyticsReport
	decodeBody(t, resp, &report)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if report.TotalSummaries != 1 {
		t.Fatalf("totalSummaries = %d, want 1", report.TotalSummaries)
	}
	if len(report.FeedbackAnalysis) != 1 || report.FeedbackAnalysis[0].Rating != nil {
		t.Fatalf("feedback buckets = %+v, want one null bucket", report.FeedbackAnalysis)
	}
}

func TestSummarizeEndpointsAreRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	limiter, err := ratelimit.New(client, "test:ratelimit", 1, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	eng := &fakeEngine{result: domain.SummarizeResult{SummaryText: "short"}}
	ts := newTestServer(t, eng, 0, limiter)

	resp := postJSON(t, ts.ts.URL+"/api/summaries/text", map[string]any{"text": "x", "ratio": 0.1})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first request status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, ts.ts.URL+"/api/summaries/text", map[string]any{"text": "x", "ratio": 0.1})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", resp.StatusCode)
	}

	// The file route carries its own quota.
	fileResp := multipartUpload(t, ts.ts.URL+"/api/summaries/file", "notes.txt", "body", map[string]string{"ratio": "0.2"})
	defer fileResp.Body.Close()
	if fileResp.StatusCode != http.StatusOK {
		t.Fatalf("file request status = %d, want 200 under its own quota", fileResp.StatusCode)
	}
}
