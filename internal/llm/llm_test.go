package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mrlead/mrlead/internal/review"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const sampleReview = `{
	"summary": ["adds invoice flow", "touches billing only"],
	"key_risks": [{"severity": "major", "title": "no idempotency", "details": "double charge possible"}],
	"blockers": [{"severity": "blocker", "file": "app/billing.py", "lines": "10-20", "title": "sql injection", "comment": "raw string interpolation"}],
	"questions_to_author": [{"question": "why no tests?", "why_it_matters": "regressions"}]
}`

func TestParseReviewResult(t *testing.T) {
	result, err := ParseReviewResult(sampleReview)
	if err != nil {
		t.Fatalf("ParseReviewResult: %v", err)
	}
	if len(result.Summary) != 2 || len(result.KeyRisks) != 1 || len(result.Blockers) != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.Blockers[0].File != "app/billing.py" {
		t.Errorf("blocker file = %q", result.Blockers[0].File)
	}
}

func TestParseReviewResultStripsFences(t *testing.T) {
	for _, raw := range []string{
		"```json\n" + sampleReview + "\n```",
		"```\n" + sampleReview + "\n```",
	} {
		result, err := ParseReviewResult(raw)
		if err != nil {
			t.Fatalf("ParseReviewResult(fenced): %v", err)
		}
		if len(result.Summary) != 2 {
			t.Errorf("summary = %v", result.Summary)
		}
	}
}

func TestParseReviewResultInvalid(t *testing.T) {
	if _, err := ParseReviewResult("not json at all"); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseReviewResultMissingFields(t *testing.T) {
	result, err := ParseReviewResult(`{"summary": ["only a summary"]}`)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Blockers) != 0 || len(result.KeyRisks) != 0 {
		t.Errorf("expected empty lists, got %+v", result)
	}
}

func TestDegradedResult(t *testing.T) {
	stats := &review.PipelineStats{DiffLines: 42, ContextFragments: 3, ContextFiles: 2}
	result := DegradedResult("rate limited", stats)
	if len(result.Summary) != 2 {
		t.Fatalf("summary = %v", result.Summary)
	}
	if !strings.Contains(result.Summary[0], "rate limited") {
		t.Errorf("reason missing: %q", result.Summary[0])
	}
	if !strings.Contains(result.Summary[1], "42 lines") {
		t.Errorf("stats missing: %q", result.Summary[1])
	}
}

func TestRetryWithBackoffNonRetryable(t *testing.T) {
	calls := 0
	_, err := retryWithBackoff(context.Background(), testLogger(), "op", func() (int, error) {
		calls++
		return 0, errors.New("permanent failure")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("non-retryable error retried %d times", calls)
	}
}

func TestRetryWithBackoffEventualSuccess(t *testing.T) {
	calls := 0
	got, err := retryWithBackoff(context.Background(), testLogger(), "op", func() (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("status 503")
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7 || calls != 2 {
		t.Errorf("got %d after %d calls", got, calls)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("got 429 too many requests"), true},
		{errors.New("upstream 502 bad gateway"), true},
		{errors.New("connection refused"), true},
		{errors.New("invalid api key"), false},
		{context.DeadlineExceeded, true},
	}
	for _, tt := range tests {
		if got := isRetryableError(tt.err); got != tt.want {
			t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestOpenAICompatComplete(t *testing.T) {
	var gotAuth string
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		io.WriteString(w, `{
			"choices": [{"message": {"content": "{\"summary\": [\"ok\"]}"}}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 30}
		}`)
	}))
	defer srv.Close()

	p := NewGroqProvider("test-key", "", testLogger()).WithBaseURL(srv.URL)
	content, usage, err := p.Complete(context.Background(), "review this")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if !strings.Contains(gotBody, `"json_object"`) {
		t.Errorf("json mode missing from request: %s", gotBody)
	}
	if !strings.Contains(content, "summary") {
		t.Errorf("content = %q", content)
	}
	if usage.PromptTokens != 120 || usage.CompletionTokens != 30 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestOpenAICompatNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices": []}`)
	}))
	defer srv.Close()

	p := NewDeepSeekProvider("k", "", testLogger()).WithBaseURL(srv.URL)
	if _, _, err := p.Complete(context.Background(), "x"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
