package portals

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-portal-sync/internal/metrics"

	"go.uber.org/zap"
)

const maxLoggedBody = 8192

// secretFields are masked before a request payload is handed to the
// recorder. OLX carries the access token in the body, WebMotors carries the
// session hash as a call parameter, so header-only redaction is not enough.
var secretFields = map[string]bool{
	"access_token":      true,
	"refresh_token":     true,
	"client_secret":     true,
	"password":          true,
	"pSenha":            true,
	"pHashAutenticacao": true,
}

// client is the shared outbound HTTP envelope: every call is timed, secrets
// are redacted, and the interaction is recorded before the result propagates
// to the caller - including transport failures.
type client struct {
	portal   string
	http     *http.Client
	recorder CallRecorder
	log      *zap.Logger
}

func newClient(portal string, recorder CallRecorder, log *zap.Logger) *client {
	return &client{
		portal:   portal,
		http:     &http.Client{Timeout: 30 * time.Second},
		recorder: recorder,
		log:      log,
	}
}

type request struct {
	Method    string
	URL       string
	Endpoint  string // path logged in the call record
	Action    string
	VehicleID string

	Headers  map[string]string
	JSONBody map[string]interface{}
	FormBody url.Values
	RawBody  []byte // used verbatim when JSONBody and FormBody are unset

	// LogPayload overrides the recorded request payload; when nil the
	// redacted JSONBody is recorded.
	LogPayload map[string]interface{}
}

type response struct {
	StatusCode int
	Body       []byte
}

func (r *response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *response) JSON() (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(r.Body, &m); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	return m, nil
}

func (c *client) do(ctx context.Context, req request) (*response, error) {
	start := time.Now()

	var body io.Reader
	contentType := ""
	switch {
	case req.JSONBody != nil:
		raw, err := json.Marshal(req.JSONBody)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	case req.FormBody != nil:
		body = strings.NewReader(req.FormBody.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.RawBody != nil:
		body = bytes.NewReader(req.RawBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	rec := CallRecord{
		Portal:         c.portal,
		VehicleID:      req.VehicleID,
		Action:         req.Action,
		HTTPMethod:     req.Method,
		Endpoint:       req.Endpoint,
		RequestPayload: c.loggedPayload(req),
	}

	resp, err := c.http.Do(httpReq)
	rec.Duration = time.Since(start)
	metrics.CallDuration.WithLabelValues(c.portal).Observe(rec.Duration.Seconds())

	if err != nil {
		rec.Result = ResultError
		rec.ErrorMessage = err.Error()
		c.record(ctx, rec)
		return nil, fmt.Errorf("%s request to %s failed: %w", c.portal, req.Endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		rec.Result = ResultError
		rec.HTTPStatus = resp.StatusCode
		rec.ErrorMessage = err.Error()
		c.record(ctx, rec)
		return nil, fmt.Errorf("failed to read %s response: %w", c.portal, err)
	}

	rec.HTTPStatus = resp.StatusCode
	rec.ResponseBody = truncate(string(raw), maxLoggedBody)

	out := &response{StatusCode: resp.StatusCode, Body: raw}
	if out.OK() {
		rec.Result = ResultSuccess
	} else {
		rec.Result = ResultError
		rec.ErrorMessage = parseAPIError(raw, resp.StatusCode)
	}
	c.record(ctx, rec)

	return out, nil
}

func (c *client) record(ctx context.Context, rec CallRecord) {
	metrics.PortalCalls.WithLabelValues(c.portal, rec.Result).Inc()
	if c.recorder != nil {
		c.recorder.Record(ctx, rec)
	}
}

func (c *client) loggedPayload(req request) map[string]interface{} {
	if req.LogPayload != nil {
		return redactPayload(req.LogPayload)
	}
	if req.JSONBody != nil {
		return redactPayload(req.JSONBody)
	}
	if req.FormBody != nil {
		m := make(map[string]interface{}, len(req.FormBody))
		for k := range req.FormBody {
			m[k] = req.FormBody.Get(k)
		}
		return redactPayload(m)
	}
	return nil
}

// redactPayload returns a copy of the payload with secret fields masked,
// recursing into nested maps.
func redactPayload(payload map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if secretFields[k] || strings.EqualFold(k, "authorization") {
			out[k] = "***REDACTED***"
			continue
		}
		switch val := v.(type) {
		case map[string]interface{}:
			out[k] = redactPayload(val)
		case []interface{}:
			items := make([]interface{}, len(val))
			for i, item := range val {
				if m, ok := item.(map[string]interface{}); ok {
					items[i] = redactPayload(m)
				} else {
					items[i] = item
				}
			}
			out[k] = items
		default:
			out[k] = v
		}
	}
	return out
}

// parseAPIError extracts a human-readable message from the error body
// shapes the portals use: message, error(+message), cause list,
// error_description, reason, statusMessage.
func parseAPIError(body []byte, status int) string {
	var m map[string]interface{}
	if err := json.Unmarshal(body, &m); err != nil {
		return fmt.Sprintf("request failed with HTTP %d", status)
	}

	if msg, ok := m["message"].(string); ok && msg != "" {
		return msg
	}
	if e, ok := m["error"].(string); ok && e != "" {
		if desc, ok := m["error_description"].(string); ok && desc != "" {
			return e + ": " + desc
		}
		return e
	}
	if desc, ok := m["error_description"].(string); ok && desc != "" {
		return desc
	}
	if causes, ok := m["cause"].([]interface{}); ok && len(causes) > 0 {
		parts := make([]string, 0, len(causes))
		for _, c := range causes {
			if cm, ok := c.(map[string]interface{}); ok {
				if msg, ok := cm["message"].(string); ok {
					parts = append(parts, msg)
					continue
				}
			}
			parts = append(parts, fmt.Sprintf("%v", c))
		}
		return strings.Join(parts, "; ")
	}
	if reason, ok := m["reason"].(string); ok && reason != "" {
		return reason
	}
	if msg, ok := m["statusMessage"].(string); ok && msg != "" {
		return msg
	}
	return fmt.Sprintf("request failed with HTTP %d", status)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
