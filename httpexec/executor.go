// Package httpexec generalizes provider.ProviderHTTPClient
// (provider/http_client.go) into the single HTTP execution path every
// connector call goes through: it owns timeouts, header masking, audit
// pre/post logging, and classification of transport failures into apperr
// kinds, so no connector package reimplements any of that.
package httpexec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mstgnz/payflow/apperr"
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/infra/logger"
)

// defaultTimeout matches the teacher's CreateHTTPClientConfig fallback
// (provider/http_client.go), applied whenever a connector's Capability
// leaves Timeout unset.
const defaultTimeout = 30 * time.Second

// maskedHeaders are never written to audit logs verbatim.
var maskedHeaders = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
	"api-key":       true,
	"x-signature":   true,
	"cookie":        true,
}

// Executor performs the HTTPRequest a Connector builds and classifies any
// failure into an *apperr.Error before it reaches the flow layer.
type Executor struct {
	client *http.Client
	log    *logger.SystemLogger
}

// New returns an Executor with the given per-call timeout ceiling. Each
// request may still set its own shorter deadline via ctx.
func New(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Executor{
		client: &http.Client{Timeout: timeout},
		log:    logger.GetGlobalLogger(),
	}
}

// Do sends req, auto-generating an idempotency key header when the caller
// didn't supply one, and returns either a parsed HTTPResponse or a
// classified *apperr.Error.
func (e *Executor) Do(ctx context.Context, req *connector.HTTPRequest) (*connector.HTTPResponse, error) {
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}
	if _, ok := req.Headers["Idempotency-Key"]; !ok {
		req.Headers["Idempotency-Key"] = uuid.NewString()
	}

	e.log.Info("connector request", logger.LogContext{Fields: map[string]any{
		"method":  req.Method,
		"url":     req.URL,
		"headers": maskHeaders(req.Headers),
	}})

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidRequest, err, "build connector http request").With("url", req.URL)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("Content-Type", contentTypeHeader(req.Content))

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err, req.URL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConnectorTransient, err, "read connector response body").With("url", req.URL)
	}

	headers := map[string]string{}
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	e.log.Info("connector response", logger.LogContext{Fields: map[string]any{
		"url":         req.URL,
		"status_code": resp.StatusCode,
	}})

	return &connector.HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       body,
	}, nil
}

func classifyTransportError(err error, url string) *apperr.Error {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.Wrap(apperr.KindTimeout, err, "connector request timed out").With("url", url)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindTimeout, err, "connector request deadline exceeded").With("url", url)
	}
	return apperr.Wrap(apperr.KindConnectorTransient, err, "connector request failed").With("url", url)
}

func contentTypeHeader(c connector.RequestContent) string {
	switch c {
	case connector.ContentFormURLEncoded:
		return "application/x-www-form-urlencoded"
	case connector.ContentXML:
		return "application/xml"
	case connector.ContentFormData:
		return "multipart/form-data"
	case connector.ContentRawBytes:
		return "application/octet-stream"
	default:
		return "application/json"
	}
}

func maskHeaders(h map[string]string) map[string]string {
	masked := make(map[string]string, len(h))
	for k, v := range h {
		if maskedHeaders[strings.ToLower(k)] {
			masked[k] = "***"
			continue
		}
		masked[k] = v
	}
	return masked
}

// EncodeForm url-encodes a flat key/value map, for connectors whose
// Capability declares a form-urlencoded content type.
func EncodeForm(values map[string]string) []byte {
	form := url.Values{}
	for k, v := range values {
		form.Set(k, v)
	}
	return []byte(form.Encode())
}

// EncodeJSON marshals v, wrapping any marshal failure as an apperr.
func EncodeJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidRequest, err, "marshal connector request body")
	}
	return b, nil
}

// DecodeJSON is a small convenience wrapper used by connector HandleResponse
// implementations to keep error classification consistent.
func DecodeJSON(body []byte, target any) error {
	if err := json.Unmarshal(body, target); err != nil {
		return apperr.Wrap(apperr.KindIntegrity, err, fmt.Sprintf("decode connector response (%d bytes)", len(body)))
	}
	return nil
}
