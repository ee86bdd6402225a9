package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxMultipartMemory bounds how much of a multipart body is held in memory
// before the standard library spills parts to disk.
const maxMultipartMemory = 32 << 20

// capture normalizes the inbound request into a RequestRecord. Binary data is
// staged through uniquely named temp files that are removed on every exit
// path; capture never leaves a partially built attachment behind without
// returning an error.
func (g *Gate) capture(r *http.Request) (*RequestRecord, error) {
	record := &RequestRecord{
		ExecutionID:   uuid.NewString(),
		ExecutionMode: g.mode,
		Method:        r.Method,
		WebhookURL:    resourceURL(r),
		Headers:       flattenHeaders(r.Header),
		Params:        routeParams(r),
		Query:         flattenQuery(r),
		Body:          map[string]any{},
	}

	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch {
	case g.config.RawBody:
		if err := g.captureRawBody(r, record); err != nil {
			return nil, err
		}
	case strings.HasPrefix(contentType, "multipart/"):
		if err := g.captureMultipart(r, record); err != nil {
			return nil, err
		}
	case contentType == "application/json":
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		if len(body) > 0 {
			var parsed map[string]any
			if err := json.Unmarshal(body, &parsed); err != nil {
				// Not an object; keep the raw document under a single key.
				var anyDoc any
				if err := json.Unmarshal(body, &anyDoc); err != nil {
					return nil, fmt.Errorf("invalid JSON body: %w", err)
				}
				record.Body = map[string]any{"data": anyDoc}
			} else {
				record.Body = parsed
			}
		}
	case contentType == "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("failed to parse form body: %w", err)
		}
		for key, values := range r.PostForm {
			if len(values) == 1 {
				record.Body[key] = values[0]
			} else {
				record.Body[key] = values
			}
		}
	default:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		if len(body) > 0 {
			record.Body = map[string]any{"data": string(body)}
		}
	}

	return record, nil
}

// captureRawBody streams the request body to a temp file, then loads it as a
// single named binary attachment. The temp file is removed before returning,
// on success and on error alike.
func (g *Gate) captureRawBody(r *http.Request, record *RequestRecord) error {
	dir := g.config.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "webhook-"+uuid.NewString())

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to stage binary body: %w", err)
	}
	defer os.Remove(path)

	size, err := io.Copy(f, r.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to stage binary body: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load staged binary body: %w", err)
	}

	mimeType := r.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	record.Binary = map[string]BinaryAttachment{
		g.config.BinaryPropertyName: {
			FileName: g.config.BinaryPropertyName,
			MimeType: mimeType,
			Data:     data,
			Size:     size,
		},
	}
	return nil
}

// captureMultipart turns each uploaded file into a named binary attachment,
// indexing duplicate field names, and collects plain form values into the
// body. The multipart temp files are removed once copied into the record.
func (g *Gate) captureMultipart(r *http.Request, record *RequestRecord) error {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return fmt.Errorf("failed to parse multipart body: %w", err)
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	for key, values := range r.MultipartForm.Value {
		if len(values) == 1 {
			record.Body[key] = values[0]
		} else {
			record.Body[key] = values
		}
	}

	record.Binary = map[string]BinaryAttachment{}
	for field, files := range r.MultipartForm.File {
		multiple := len(files) > 1
		for i, header := range files {
			part, err := header.Open()
			if err != nil {
				return fmt.Errorf("failed to open uploaded file %q: %w", header.Filename, err)
			}
			data, err := io.ReadAll(part)
			part.Close()
			if err != nil {
				return fmt.Errorf("failed to read uploaded file %q: %w", header.Filename, err)
			}

			name := field
			if multiple {
				name = field + strconv.Itoa(i)
			}
			mimeType := header.Header.Get("Content-Type")
			if mimeType == "" {
				mimeType = "application/octet-stream"
			}
			record.Binary[name] = BinaryAttachment{
				FileName: header.Filename,
				MimeType: mimeType,
				Data:     data,
				Size:     header.Size,
			}
		}
	}
	return nil
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		out[strings.ToLower(key)] = strings.Join(values, ", ")
	}
	return out
}

func flattenQuery(r *http.Request) map[string]string {
	out := map[string]string{}
	for key, values := range r.URL.Query() {
		out[key] = values[0]
	}
	return out
}

// paramsContextKey carries path params injected by non-chi router adapters.
type paramsContextKey struct{}

// WithParams returns a context carrying pre-extracted path params. Router
// adapters that are not chi-based use this to hand params to the capture
// stage.
func WithParams(ctx context.Context, params map[string]string) context.Context {
	return context.WithValue(ctx, paramsContextKey{}, params)
}

// routeParams extracts dynamic path segments, either from the chi route
// context or from params injected via WithParams.
func routeParams(r *http.Request) map[string]string {
	out := map[string]string{}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if key == "*" {
				continue
			}
			out[key] = rctx.URLParams.Values[i]
		}
		return out
	}
	if params, ok := r.Context().Value(paramsContextKey{}).(map[string]string); ok {
		for key, value := range params {
			out[key] = value
		}
	}
	return out
}
