package webhook

import (
	"encoding/json"
	"net/http"

	"github.com/expr-lang/expr"
)

// responder is the per-mode response delivery strategy. Exactly one variant
// is selected at gate construction so mode checks never leak into the payment
// or capture logic.
type responder interface {
	respond(g *Gate, w *commitWriter, r *http.Request, record *RequestRecord)
}

func responderFor(mode ResponseMode) responder {
	switch mode {
	case RespondWithLastNode:
		return lastNodeResponder{}
	case RespondWithNode:
		return deferredResponder{}
	case RespondStreaming:
		return streamingResponder{}
	default:
		return immediateResponder{}
	}
}

// immediateResponder writes the configured response as soon as the request is
// admitted, then forwards the record downstream. A sink failure after the
// response is committed can only be logged.
type immediateResponder struct{}

func (immediateResponder) respond(g *Gate, w *commitWriter, r *http.Request, record *RequestRecord) {
	g.writeImmediate(w, record, nil)
	if _, err := g.sink.Deliver(r.Context(), &Delivery{Record: record}); err != nil {
		g.logger.Error("downstream delivery failed", "executionId", record.ExecutionID, "error", err)
	}
}

// lastNodeResponder forwards first and answers with whatever the downstream
// workflow returns.
type lastNodeResponder struct{}

func (lastNodeResponder) respond(g *Gate, w *commitWriter, r *http.Request, record *RequestRecord) {
	result, err := g.sink.Deliver(r.Context(), &Delivery{Record: record})
	if err != nil {
		g.logger.Error("downstream delivery failed", "executionId", record.ExecutionID, "error", err)
		if !w.Committed() {
			writePlain(w, http.StatusInternalServerError, "Error in workflow")
		}
		return
	}
	g.writeImmediate(w, record, result)
}

// deferredResponder writes nothing itself; the connected downstream responder
// owns the response. Configuration-time validation guarantees the responder
// exists, so an unanswered request here is an operational failure.
type deferredResponder struct{}

func (deferredResponder) respond(g *Gate, w *commitWriter, r *http.Request, record *RequestRecord) {
	if _, err := g.sink.Deliver(r.Context(), &Delivery{Record: record, Writer: w}); err != nil {
		g.logger.Error("downstream delivery failed", "executionId", record.ExecutionID, "error", err)
		if !w.Committed() {
			writePlain(w, http.StatusInternalServerError, "Error in workflow")
		}
		return
	}
	if !w.Committed() {
		g.logger.Error("responder produced no response", "executionId", record.ExecutionID)
		writePlain(w, http.StatusInternalServerError, "Workflow responder produced no response")
	}
}

// streamingResponder commits chunked response headers immediately, then lets
// the downstream workflow produce the body incrementally.
type streamingResponder struct{}

func (streamingResponder) respond(g *Gate, w *commitWriter, r *http.Request, record *RequestRecord) {
	header := w.Header()
	for key, value := range g.config.ResponseHeaders {
		header.Set(key, value)
	}
	if g.config.ResponseContentType != "" {
		header.Set("Content-Type", g.config.ResponseContentType)
	}
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	w.WriteHeader(g.config.ResponseCode)
	w.Flush()

	delivery := &Delivery{Record: record, Writer: w, Flush: w.Flush}
	if _, err := g.sink.Deliver(r.Context(), delivery); err != nil {
		// Headers are committed; the most we can do is stop the stream.
		g.logger.Error("downstream delivery failed mid-stream", "executionId", record.ExecutionID, "error", err)
	}
}

// writeImmediate writes a complete response per the configured status,
// headers and body policy. result, when non-nil, takes precedence over the
// body policy (lastNode mode).
func (g *Gate) writeImmediate(w *commitWriter, record *RequestRecord, result any) {
	header := w.Header()
	for key, value := range g.config.ResponseHeaders {
		header.Set(key, value)
	}

	body, ok := g.responseBody(record, result)
	if !ok {
		w.WriteHeader(g.config.ResponseCode)
		return
	}

	contentType := g.config.ResponseContentType
	if contentType == "" {
		contentType = "application/json"
	}
	header.Set("Content-Type", contentType)
	w.WriteHeader(g.config.ResponseCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		g.logger.Warn("failed to encode response body", "error", err)
	}
}

// responseBody resolves the immediate response body. The configured
// expression wins, then the lastNode result, then the response-data policy.
func (g *Gate) responseBody(record *RequestRecord, result any) (any, bool) {
	if g.config.responseProgram != nil {
		out, err := expr.Run(g.config.responseProgram, record.exprEnv())
		if err != nil {
			g.logger.Warn("response expression failed", "error", err)
			return map[string]any{"message": "Workflow was started"}, true
		}
		return Sanitize(out), true
	}
	if result != nil {
		// Workflow results may carry cyclic structures from outbound clients.
		return Sanitize(result), true
	}

	switch g.config.ResponseData {
	case ResponseDataNone:
		return nil, false
	case ResponseDataAllEntries:
		return []any{record.Body}, true
	default:
		return record.Body, true
	}
}

// exprEnv is the environment visible to response expressions.
func (rec *RequestRecord) exprEnv() map[string]any {
	env := map[string]any{
		"executionId": rec.ExecutionID,
		"method":      rec.Method,
		"webhookUrl":  rec.WebhookURL,
		"headers":     rec.Headers,
		"params":      rec.Params,
		"query":       rec.Query,
		"body":        rec.Body,
	}
	if rec.Payment != nil {
		env["payment"] = rec.Payment
	}
	return env
}

// commitWriter enforces exactly one terminal disposition of the underlying
// response: the first WriteHeader wins, later ones are dropped.
type commitWriter struct {
	http.ResponseWriter
	committed bool
}

func (w *commitWriter) WriteHeader(statusCode int) {
	if w.committed {
		return
	}
	w.committed = true
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *commitWriter) Write(b []byte) (int, error) {
	if !w.committed {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Committed reports whether a status line has been sent.
func (w *commitWriter) Committed() bool {
	return w.committed
}

// Flush implements http.Flusher for streaming responses.
func (w *commitWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
