package builtin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/skillflow/skills"
	"github.com/BaSui01/skillflow/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculator(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]any
		want    float64
		wantErr string
	}{
		{name: "add", args: map[string]any{"a": 2.0, "b": 3.0, "operation": "add"}, want: 5},
		{name: "subtract", args: map[string]any{"a": 7.0, "b": 3.0, "operation": "subtract"}, want: 4},
		{name: "multiply int", args: map[string]any{"a": 4, "b": 2.5, "operation": "multiply"}, want: 10},
		{name: "divide", args: map[string]any{"a": 9.0, "b": 3.0, "operation": "divide"}, want: 3},
		{name: "power", args: map[string]any{"a": 2.0, "b": 10.0, "operation": "power"}, want: 1024},
		{name: "divide by zero", args: map[string]any{"a": 1.0, "b": 0.0, "operation": "divide"}, wantErr: "division by zero"},
		{name: "bad operation", args: map[string]any{"a": 1.0, "b": 1.0, "operation": "mod"}, wantErr: "unsupported operation"},
		{name: "bad operand", args: map[string]any{"a": "x", "b": 1.0, "operation": "add"}, wantErr: "must be a number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Calculator(context.Background(), tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got.(map[string]any)["result"], 1e-9)
		})
	}
}

func TestSlackMessage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	h := SlackMessage(srv.Client(), srv.URL, "#general")
	out, err := h(context.Background(), map[string]any{"message": "deploy done"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"text": "deploy done", "channel": "#general"}, got)
	assert.Equal(t, "ok", out.(map[string]any)["response"])

	_, err = h(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestWebhook_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	_, err := Webhook(srv.Client(), srv.URL)(context.Background(), map[string]any{"event": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")

	_, err = Webhook(http.DefaultClient, "")(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := Clock(func() time.Time { return fixed })

	out, err := h(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T12:00:00Z", out.(map[string]any)["time"])
	assert.Equal(t, "Sunday", out.(map[string]any)["weekday"])

	_, err = h(context.Background(), map[string]any{"timezone": "Mars/Olympus"})
	assert.Error(t, err)
}

func TestDefaultManifest(t *testing.T) {
	m, err := DefaultManifest(Config{})
	require.NoError(t, err)
	assert.Equal(t, skills.ModeHierarchical, m.Mode)
	require.Len(t, m.Groups, 4)

	reg, err := m.Build(context.Background(), mocks.NewStubEmbedder())
	require.NoError(t, err)
	assert.Equal(t, 4, reg.Len())

	sel := skills.NewSelector(reg, mocks.NewStubEmbedder())
	got, err := sel.SelectScored(context.Background(), "send a slack message to the team channel", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "send_slack_message", got[0].Skill.Name)
	assert.Equal(t, "messaging", got[0].Group)
}
