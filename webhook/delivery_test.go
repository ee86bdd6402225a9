package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serveDelivery(t *testing.T, config *Config, sink Sink, body string) *httptest.ResponseRecorder {
	t.Helper()
	gate := newTestGate(t, config, sink, newFakeFacilitator())
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(http.MethodPost, "/hook", reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, req)
	return rec
}

func TestImmediateResponderEchoesBody(t *testing.T) {
	sink := &recordingSink{}
	rec := serveDelivery(t, openConfig(), sink, `{"order":"42"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["order"] != "42" {
		t.Errorf("firstEntryJson must echo the captured body: %+v", body)
	}
	if sink.calls.Load() != 1 {
		t.Errorf("sink must be called exactly once")
	}
}

func TestImmediateResponderSinkFailureDoesNotChangeResponse(t *testing.T) {
	sink := &recordingSink{err: errors.New("workflow exploded")}
	rec := serveDelivery(t, openConfig(), sink, `{"order":"42"}`)

	if rec.Code != http.StatusOK {
		t.Errorf("response is committed before delivery; sink failure must not alter it, got %d", rec.Code)
	}
}

func TestImmediateResponderCustomStatusAndHeaders(t *testing.T) {
	config := openConfig()
	config.ResponseCode = http.StatusAccepted
	config.ResponseHeaders = map[string]string{"X-Source": "gate"}
	rec := serveDelivery(t, config, &recordingSink{}, "")

	if rec.Code != http.StatusAccepted {
		t.Errorf("expected configured status 202, got %d", rec.Code)
	}
	if rec.Header().Get("X-Source") != "gate" {
		t.Errorf("configured headers were not set")
	}
}

func TestImmediateResponderNoData(t *testing.T) {
	config := openConfig()
	config.ResponseData = ResponseDataNone
	rec := serveDelivery(t, config, &recordingSink{}, `{"secret":"yes"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("noData must produce an empty body, got %q", rec.Body.String())
	}
}

func TestImmediateResponderAllEntries(t *testing.T) {
	config := openConfig()
	config.ResponseData = ResponseDataAllEntries
	rec := serveDelivery(t, config, &recordingSink{}, `{"order":"42"}`)

	var body []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("allEntries must produce an array: %v", err)
	}
	if len(body) != 1 || body[0]["order"] != "42" {
		t.Errorf("unexpected allEntries body: %+v", body)
	}
}

func TestResponseExpressionWins(t *testing.T) {
	config := openConfig()
	config.ResponseExpression = `{"received": body.order, "id": executionId}`
	rec := serveDelivery(t, config, &recordingSink{}, `{"order":"42"}`)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["received"] != "42" {
		t.Errorf("expression must see the captured body: %+v", body)
	}
	if body["id"] == "" || body["id"] == nil {
		t.Errorf("expression must see the execution id: %+v", body)
	}
}

func TestResponseExpressionFailureFallsBack(t *testing.T) {
	config := openConfig()
	// Compiles fine, fails at runtime when the key is absent.
	config.ResponseExpression = `body.missing.deeper`
	rec := serveDelivery(t, config, &recordingSink{}, `{"order":"42"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("runtime expression failure must not fail the request, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["message"] != "Workflow was started" {
		t.Errorf("expected fallback message, got %+v", body)
	}
}

func TestLastNodeResponder(t *testing.T) {
	config := openConfig()
	config.ResponseMode = RespondWithLastNode
	sink := &recordingSink{result: map[string]any{"processed": true}}
	rec := serveDelivery(t, config, sink, `{"order":"42"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["processed"] != true {
		t.Errorf("lastNode must answer with the workflow result: %+v", body)
	}
}

func TestLastNodeResponderWorkflowError(t *testing.T) {
	config := openConfig()
	config.ResponseMode = RespondWithLastNode
	sink := &recordingSink{err: errors.New("workflow exploded")}
	rec := serveDelivery(t, config, sink, "")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("uncommitted workflow error must be a 500, got %d", rec.Code)
	}
}

func TestDeferredResponderSinkWrites(t *testing.T) {
	config := openConfig()
	config.ResponseMode = RespondWithNode
	config.HasResponder = true
	sink := SinkFunc(func(ctx context.Context, d *Delivery) (any, error) {
		if d.Writer == nil {
			t.Fatal("deferred delivery must carry the response writer")
		}
		d.Writer.Header().Set("Content-Type", "text/plain")
		d.Writer.WriteHeader(http.StatusCreated)
		_, _ = d.Writer.Write([]byte("made by the workflow"))
		return nil, nil
	})
	rec := serveDelivery(t, config, sink, "")

	if rec.Code != http.StatusCreated {
		t.Errorf("the sink owns the response, got %d", rec.Code)
	}
	if rec.Body.String() != "made by the workflow" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestDeferredResponderNeverAnswered(t *testing.T) {
	config := openConfig()
	config.ResponseMode = RespondWithNode
	config.HasResponder = true
	sink := SinkFunc(func(ctx context.Context, d *Delivery) (any, error) {
		return nil, nil
	})
	rec := serveDelivery(t, config, sink, "")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("an unanswered deferred request must fail with 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "no response") {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestStreamingResponder(t *testing.T) {
	config := openConfig()
	config.ResponseMode = RespondStreaming
	config.ResponseContentType = "text/event-stream"
	sink := SinkFunc(func(ctx context.Context, d *Delivery) (any, error) {
		for _, chunk := range []string{"one\n", "two\n"} {
			if _, err := d.Writer.Write([]byte(chunk)); err != nil {
				return nil, err
			}
			d.Flush()
		}
		return nil, nil
	})
	rec := serveDelivery(t, config, sink, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Cache-Control") != "no-cache" {
		t.Errorf("streaming must disable caching")
	}
	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if rec.Body.String() != "one\ntwo\n" {
		t.Errorf("unexpected streamed body %q", rec.Body.String())
	}
	if !rec.Flushed {
		t.Errorf("stream chunks must be flushed")
	}
}

func TestCommitWriterFirstWriteWins(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &commitWriter{ResponseWriter: rec}

	if w.Committed() {
		t.Fatal("fresh writer must not be committed")
	}
	w.WriteHeader(http.StatusTeapot)
	w.WriteHeader(http.StatusOK)

	if rec.Code != http.StatusTeapot {
		t.Errorf("first WriteHeader must win, got %d", rec.Code)
	}
	if !w.Committed() {
		t.Error("writer must report committed after WriteHeader")
	}
}

func TestCommitWriterImplicitCommitOnWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &commitWriter{ResponseWriter: rec}

	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !w.Committed() {
		t.Error("Write must commit the response")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("implicit commit must be 200, got %d", rec.Code)
	}
}

func TestIncludePaymentDetails(t *testing.T) {
	fake := newFakeFacilitator()
	config := paidConfig()
	config.IncludePaymentDetails = true
	sink := &recordingSink{}
	gate := newTestGate(t, config, sink, fake)

	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{"order":"42"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-PAYMENT", paymentHeader(t))
	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	payment, ok := sink.record.Body["payment"].(map[string]any)
	if !ok {
		t.Fatalf("payment details were not merged into the body: %+v", sink.record.Body)
	}
	if payment["verified"] != true {
		t.Errorf("unexpected payment details: %+v", payment)
	}
}
