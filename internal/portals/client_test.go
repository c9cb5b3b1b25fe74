package portals

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClientRecordsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	recorder := &fakeRecorder{}
	c := newClient(PortalOLX, recorder, zap.NewNop())

	resp, err := c.do(context.Background(), request{
		Method:    "GET",
		URL:       srv.URL + "/things",
		Endpoint:  "/things",
		Action:    "GET /things",
		VehicleID: "42",
	})
	require.NoError(t, err)
	assert.True(t, resp.OK())

	records := recorder.all()
	require.Len(t, records, 1)
	assert.Equal(t, PortalOLX, records[0].Portal)
	assert.Equal(t, "42", records[0].VehicleID)
	assert.Equal(t, ResultSuccess, records[0].Result)
	assert.Equal(t, http.StatusOK, records[0].HTTPStatus)
	assert.Contains(t, records[0].ResponseBody, `"ok":true`)
	assert.Greater(t, records[0].Duration.Nanoseconds(), int64(0))
}

func TestClientRecordsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"invalid listing"}`))
	}))
	defer srv.Close()

	recorder := &fakeRecorder{}
	c := newClient(PortalICarros, recorder, zap.NewNop())

	resp, err := c.do(context.Background(), request{
		Method: "POST", URL: srv.URL + "/deals", Endpoint: "/deals", Action: "POST /deals",
		JSONBody: map[string]interface{}{"price": 1000},
	})
	// Non-2xx is not a transport error; callers branch on OK()
	require.NoError(t, err)
	assert.False(t, resp.OK())

	records := recorder.all()
	require.Len(t, records, 1)
	assert.Equal(t, ResultError, records[0].Result)
	assert.Equal(t, "invalid listing", records[0].ErrorMessage)
}

func TestClientRecordsTransportFailure(t *testing.T) {
	recorder := &fakeRecorder{}
	c := newClient(PortalOLX, recorder, zap.NewNop())

	_, err := c.do(context.Background(), request{
		Method: "GET", URL: "http://127.0.0.1:1/unreachable", Endpoint: "/unreachable", Action: "GET /unreachable",
	})
	require.Error(t, err)

	records := recorder.all()
	require.Len(t, records, 1)
	assert.Equal(t, ResultError, records[0].Result)
	assert.NotEmpty(t, records[0].ErrorMessage)
	assert.Zero(t, records[0].HTTPStatus)
}

func TestClientRedactsSecrets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	recorder := &fakeRecorder{}
	c := newClient(PortalOLX, recorder, zap.NewNop())

	_, err := c.do(context.Background(), request{
		Method: "PUT", URL: srv.URL, Endpoint: "/import", Action: "PUT /import",
		JSONBody: map[string]interface{}{
			"access_token": "tok-123",
			"subject":      "Onix 2021",
			"nested": map[string]interface{}{
				"password": "hunter2",
				"plate":    "ABC1D23",
			},
		},
	})
	require.NoError(t, err)

	records := recorder.all()
	require.Len(t, records, 1)
	payload := records[0].RequestPayload
	assert.Equal(t, "***REDACTED***", payload["access_token"])
	assert.Equal(t, "Onix 2021", payload["subject"])
	nested := payload["nested"].(map[string]interface{})
	assert.Equal(t, "***REDACTED***", nested["password"])
	assert.Equal(t, "ABC1D23", nested["plate"])
}

func TestRedactPayloadSOAPSecrets(t *testing.T) {
	out := redactPayload(map[string]interface{}{
		"pEmail":            "dealer@example.com",
		"pSenha":            "s3cret",
		"pHashAutenticacao": "hash-value",
	})
	assert.Equal(t, "dealer@example.com", out["pEmail"])
	assert.Equal(t, "***REDACTED***", out["pSenha"])
	assert.Equal(t, "***REDACTED***", out["pHashAutenticacao"])
}

func TestParseAPIError(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"message":"bad request"}`, "bad request"},
		{`{"error":"invalid_grant","error_description":"expired"}`, "invalid_grant: expired"},
		{`{"error":"forbidden"}`, "forbidden"},
		{`{"cause":[{"message":"title too long"},{"message":"missing picture"}]}`, "title too long; missing picture"},
		{`{"reason":"quota exceeded"}`, "quota exceeded"},
		{`{"statusMessage":"blocked"}`, "blocked"},
		{`not json`, "request failed with HTTP 500"},
		{`{}`, "request failed with HTTP 500"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, parseAPIError([]byte(tc.body), 500), "body %s", tc.body)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
