package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestClassify_StatusRules(t *testing.T) {
	tests := []struct {
		name      string
		raw       map[string]any
		category  Category
		retryable bool
	}{
		{"401", map[string]any{"statusCode": 401}, CategoryAuthentication, false},
		{"403", map[string]any{"status": 403}, CategoryAuthorization, false},
		{"404", map[string]any{"statusCode": 404}, CategoryNotFound, false},
		{"400", map[string]any{"statusCode": 400}, CategoryValidation, false},
		{"422", map[string]any{"status": 422}, CategoryValidation, false},
		{"429", map[string]any{"statusCode": 429}, CategoryRateLimit, true},
		{"429 with code", map[string]any{"code": "anything", "statusCode": 429}, CategoryRateLimit, true},
		{"500", map[string]any{"statusCode": 500}, CategoryServer, true},
		{"503 json number", map[string]any{"status": float64(503)}, CategoryServer, true},
		{"599 string", map[string]any{"status": "599"}, CategoryServer, true},
		{"418", map[string]any{"statusCode": 418}, CategoryUnknown, false},
		{"302", map[string]any{"statusCode": 302}, CategoryUnknown, false},
		{"no status", map[string]any{"code": "E_SOMETHING"}, CategoryUnknown, false},
		{"statusCode wins over status", map[string]any{"statusCode": 401, "status": 500}, CategoryAuthentication, false},
		{"zero statusCode falls through", map[string]any{"statusCode": 0, "status": 404}, CategoryNotFound, false},
		{"non numeric status", map[string]any{"status": "failed"}, CategoryUnknown, false},
	}

	c := New("stripe", nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ne := c.Classify(tt.raw)
			if ne.Category() != tt.category {
				t.Errorf("category = %s, want %s", ne.Category(), tt.category)
			}
			if ne.IsRetryable() != tt.retryable {
				t.Errorf("retryable = %v, want %v", ne.IsRetryable(), tt.retryable)
			}
		})
	}
}

func TestClassify_CodeLookupOrder(t *testing.T) {
	tests := []struct {
		raw  map[string]any
		want string
	}{
		{map[string]any{"code": "C", "error_code": "E", "type": "T"}, "C"},
		{map[string]any{"error_code": "E", "type": "T"}, "E"},
		{map[string]any{"type": "T"}, "T"},
		{map[string]any{"code": "", "error_code": "E"}, "E"},
		{map[string]any{"code": nil, "type": "T"}, "T"},
		{map[string]any{"code": float64(1001)}, "1001"},
		{map[string]any{}, "unknown"},
	}

	c := New("acme", nil)
	for _, tt := range tests {
		if got := c.Classify(tt.raw).Code().Key(); got != tt.want {
			t.Errorf("Classify(%v).Code() = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestClassify_DefaultMessage(t *testing.T) {
	c := New("acme", nil)

	for _, raw := range []any{nil, map[string]any{}, []byte("not json"), "just a string", 42} {
		ne := c.Classify(raw)
		if ne.Category() != CategoryUnknown || ne.IsRetryable() {
			t.Errorf("Classify(%v) = %s/%v, want unknown/false", raw, ne.Category(), ne.IsRetryable())
		}
		if ne.Message() != DefaultMessage {
			t.Errorf("Classify(%v).Message() = %q, want default", raw, ne.Message())
		}
		if ne.Code().Key() != "unknown" {
			t.Errorf("Classify(%v).Code() = %q, want unknown", raw, ne.Code().Key())
		}
	}

	ne := c.Classify(map[string]any{"message": "kept"})
	if ne.Message() != "kept" {
		t.Errorf("Message() = %q, want kept", ne.Message())
	}
}

func TestClassify_OverrideWinsOverStatus(t *testing.T) {
	c := New("acme", Overrides{
		"ERR_X": {Category: CategoryRateLimit, Retryable: true},
		"429":   {Category: CategoryServer, Retryable: false},
	})

	ne := c.Classify(map[string]any{"code": "ERR_X", "statusCode": 404})
	if ne.Category() != CategoryRateLimit || !ne.IsRetryable() {
		t.Errorf("got %s/%v, want rate_limit/true", ne.Category(), ne.IsRetryable())
	}
	if ne.StatusCode() != 404 {
		t.Errorf("StatusCode() = %d, want 404 preserved", ne.StatusCode())
	}

	// Numeric vendor codes match their decimal text form.
	ne = c.Classify(map[string]any{"error_code": float64(429), "status": 429})
	if ne.Category() != CategoryServer || ne.IsRetryable() {
		t.Errorf("numeric override: got %s/%v, want server/false", ne.Category(), ne.IsRetryable())
	}

	// Matching is exact.
	ne = c.Classify(map[string]any{"code": "err_x", "statusCode": 404})
	if ne.Category() != CategoryNotFound {
		t.Errorf("case-different code: got %s, want not_found", ne.Category())
	}
}

func TestClassify_OverrideTableIsCopied(t *testing.T) {
	table := Overrides{"X": {Category: CategoryServer, Retryable: true}}
	c := New("acme", table)
	table["X"] = Override{Category: CategoryValidation}

	if got := c.Classify(map[string]any{"code": "X"}).Category(); got != CategoryServer {
		t.Errorf("category = %s, want server", got)
	}
}

func TestClassify_Examples(t *testing.T) {
	c := New("acme", nil)

	got := toMap(t, c.Classify(map[string]any{"status": 401, "message": "bad token"}))
	if got["category"] != "authentication" || got["retryable"] != false ||
		got["statusCode"] != float64(401) || got["message"] != "bad token" {
		t.Errorf("unexpected serialization: %v", got)
	}

	got = toMap(t, c.Classify(map[string]any{"error_code": "429", "status": 429}))
	if got["category"] != "rate_limit" || got["retryable"] != true || got["code"] != "429" {
		t.Errorf("unexpected serialization: %v", got)
	}
}

func TestClassify_Serialization(t *testing.T) {
	raw := map[string]any{"code": "card_declined", "statusCode": 402, "message": "declined", "secret": "sk_live"}
	ne := New("stripe", nil).Classify(raw)

	got := toMap(t, ne)
	want := map[string]bool{"name": true, "message": true, "code": true, "category": true, "statusCode": true, "retryable": true}
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want exactly %v", got, want)
	}
	for k := range got {
		if !want[k] {
			t.Errorf("unexpected key %q in serialization", k)
		}
	}
	if got["name"] != "StripeError" {
		t.Errorf("name = %v, want StripeError", got["name"])
	}

	noStatus := toMap(t, New("stripe", nil).Classify(map[string]any{"code": "x"}))
	if _, ok := noStatus["statusCode"]; ok {
		t.Errorf("statusCode should be omitted when absent: %v", noStatus)
	}

	numeric := toMap(t, New("stripe", nil).Classify(map[string]any{"code": 7}))
	if numeric["code"] != float64(7) {
		t.Errorf("numeric code = %#v, want number 7", numeric["code"])
	}
}

func TestClassify_Idempotent(t *testing.T) {
	c := New("acme", Overrides{"slow": {Category: CategoryRateLimit, Retryable: true}})
	raw := map[string]any{"code": "slow", "status": 503, "message": "later"}

	a, err := json.Marshal(c.Classify(raw))
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(c.Classify(raw))
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Errorf("serializations differ:\n%s\n%s", a, b)
	}
}

func TestClassify_CauseIdentity(t *testing.T) {
	c := New("acme", nil)

	raw := map[string]any{"statusCode": 500}
	ne := c.Classify(raw)
	if reflect.ValueOf(ne.Cause()).Pointer() != reflect.ValueOf(raw).Pointer() {
		t.Error("map cause was copied, want the same map")
	}
	if len(raw) != 1 {
		t.Errorf("raw mutated: %v", raw)
	}

	sentinel := errors.New("boom")
	ne = c.Classify(sentinel)
	if ne.Cause() != sentinel {
		t.Error("error cause was not preserved")
	}
	if !errors.Is(ne, sentinel) {
		t.Error("errors.Is should reach the cause through Unwrap")
	}
	if ne.Message() != "boom" {
		t.Errorf("Message() = %q, want boom", ne.Message())
	}
}

func TestClassify_PassesThroughNormalized(t *testing.T) {
	first := New("a", nil).Classify(map[string]any{"statusCode": 429})
	if got := New("b", nil).Classify(first); got != first {
		t.Error("already classified error should be returned unchanged")
	}
}

func TestClassify_WrappedNormalized(t *testing.T) {
	stripeErr := New("stripe", nil).Classify(map[string]any{"code": "api_error", "statusCode": 500, "message": "boom", "retry_after": 2})
	wrapped := fmt.Errorf("charge: %w", stripeErr)

	ne := New("github", nil).Classify(wrapped)
	if ne == stripeErr {
		t.Fatal("wrapped error should get its own NormalizedError")
	}
	if ne.Cause() != wrapped {
		t.Error("cause should be the raw wrapped error")
	}
	if ne.Service() != "github" || ne.Name() != "GithubError" {
		t.Errorf("service = %q name = %q", ne.Service(), ne.Name())
	}
	if !ne.IsServer() || !ne.IsRetryable() || ne.StatusCode() != 500 || ne.Code().Key() != "api_error" {
		t.Errorf("fields not seeded from the wrapped error: %v", ne)
	}
	if ne.Message() != "boom" || ne.RetryAfter() != 2*time.Second {
		t.Errorf("message = %q retryAfter = %v", ne.Message(), ne.RetryAfter())
	}
	if !errors.Is(ne, stripeErr) {
		t.Error("wrapped NormalizedError should stay reachable")
	}

	// The caller's overrides apply to the seeded code.
	overridden := New("github", Overrides{"api_error": {Category: CategoryValidation}}).Classify(wrapped)
	if !overridden.IsValidation() || overridden.IsRetryable() {
		t.Errorf("override not applied: %s/%v", overridden.Category(), overridden.IsRetryable())
	}

	joined := errors.Join(errors.New("context"), stripeErr)
	if got := New("b", nil).Classify(joined); got.Service() != "b" || !got.IsServer() {
		t.Errorf("joined chain: %s/%s", got.Service(), got.Category())
	}
}

func TestClassify_JSONBytes(t *testing.T) {
	c := New("acme", nil)
	body := []byte(`{"type":"invalid_request","status":"422","message":"missing field","retry_after":3}`)

	ne := c.Classify(body)
	if ne.Category() != CategoryValidation {
		t.Errorf("category = %s, want validation", ne.Category())
	}
	if ne.Code().Key() != "invalid_request" {
		t.Errorf("code = %q", ne.Code().Key())
	}
	if ne.RetryAfter() != 3*time.Second {
		t.Errorf("RetryAfter() = %v, want 3s", ne.RetryAfter())
	}

	ne = c.Classify(json.RawMessage(`{"error_code":429,"statusCode":429}`))
	if ne.Code().Key() != "429" || !ne.Code().IsNumeric() {
		t.Errorf("code = %q numeric=%v, want numeric 429", ne.Code().Key(), ne.Code().IsNumeric())
	}
}

func TestClassify_Predicates(t *testing.T) {
	c := New("acme", nil)
	checks := []struct {
		status int
		pred   func(*NormalizedError) bool
	}{
		{401, (*NormalizedError).IsAuthentication},
		{403, (*NormalizedError).IsAuthorization},
		{422, (*NormalizedError).IsValidation},
		{404, (*NormalizedError).IsNotFound},
		{429, (*NormalizedError).IsRateLimit},
		{502, (*NormalizedError).IsServer},
		{0, (*NormalizedError).IsUnknown},
	}
	for _, ch := range checks {
		ne := c.Classify(map[string]any{"statusCode": ch.status})
		if !ch.pred(ne) {
			t.Errorf("status %d: predicate false for category %s", ch.status, ne.Category())
		}
	}
}

func TestClassify_Concurrent(t *testing.T) {
	c := New("acme", Overrides{"X": {Category: CategoryServer, Retryable: true}})
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raw := map[string]any{"statusCode": 400 + i}
			if i%2 == 0 {
				raw["code"] = "X"
			}
			_ = c.Classify(raw)
		}(i)
	}
	wg.Wait()
}

func TestErrorName(t *testing.T) {
	tests := map[string]string{
		"stripe":        "StripeError",
		"google-sheets": "GoogleSheetsError",
		"open_ai v2":    "OpenAiV2Error",
		"":              "IntegrationError",
		"--":            "IntegrationError",
	}
	for in, want := range tests {
		if got := errorName(in); got != want {
			t.Errorf("errorName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStackTraceCaptured(t *testing.T) {
	ne := New("acme", nil).Classify(nil)
	frames := ne.StackTrace()
	if len(frames) == 0 {
		t.Fatal("expected captured frames")
	}
	if frames[0].Function == "" {
		t.Error("first frame has no function name")
	}
}

func toMap(t *testing.T, ne *NormalizedError) map[string]any {
	t.Helper()
	data, err := json.Marshal(ne)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}
