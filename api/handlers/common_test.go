package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BaSui01/skillflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Common 函数测试
// =============================================================================

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, map[string]string{"message": "hello"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestWriteSuccess_CarriesRequestID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(types.WithRequestID(r.Context(), "req-1"))
	w := httptest.NewRecorder()

	WriteSuccess(w, r, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid argument", types.NewError(types.ErrInvalidArgument, "bad"), http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"missing parameter", types.NewError(types.ErrMissingRequiredParameter, "bad"), http.StatusBadRequest, "MISSING_REQUIRED_PARAMETER"},
		{"skill not found", types.NewError(types.ErrSkillNotFound, "nope"), http.StatusNotFound, "SKILL_NOT_FOUND"},
		{"embedding unavailable", types.NewError(types.ErrEmbeddingUnavailable, "down"), http.StatusServiceUnavailable, "EMBEDDING_UNAVAILABLE"},
		{"llm unavailable", types.NewError(types.ErrLanguageModelUnavailable, "down"), http.StatusServiceUnavailable, "LANGUAGE_MODEL_UNAVAILABLE"},
		{"timeout", types.NewError(types.ErrTimeout, "slow"), http.StatusGatewayTimeout, "TIMEOUT"},
		{"explicit status wins", types.NewError(types.ErrInvalidArgument, "big").WithHTTPStatus(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge, "INVALID_ARGUMENT"},
		{"wrapped typed error", errors.Join(errors.New("ctx"), types.NewError(types.ErrTimeout, "slow")), http.StatusGatewayTimeout, "TIMEOUT"},
		{"plain error", errors.New("secret detail"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err, zap.NewNop())

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.NotContains(t, resp.Error.Message, "secret detail")
		})
	}
}

func TestWriteError_IncludesSkill(t *testing.T) {
	w := httptest.NewRecorder()
	err := types.NewError(types.ErrMalformedModelResponse, "not json").WithSkill("calculator")
	WriteError(w, nil, err, nil)

	resp := decodeResponse(t, w)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "calculator", resp.Error.Skill)
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Query string `json:"query"`
	}

	tests := []struct {
		name       string
		body       string
		wantErr    bool
		wantStatus int
	}{
		{name: "valid", body: `{"query":"hi"}`},
		{name: "unknown field", body: `{"query":"hi","extra":1}`, wantErr: true, wantStatus: http.StatusBadRequest},
		{name: "malformed", body: `{"query":`, wantErr: true, wantStatus: http.StatusBadRequest},
		{name: "too large", body: `{"query":"` + strings.Repeat("a", maxBodyBytes) + `"}`, wantErr: true, wantStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(tt.body))

			var dst payload
			err := DecodeJSONBody(w, r, &dst, zap.NewNop())
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "hi", dst.Query)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestDecodeJSONBody_EmptyBody(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)

	var dst map[string]any
	err := DecodeJSONBody(w, r, &dst, zap.NewNop())
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidArgument))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"Application/JSON", true},
		{"text/plain", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			r.Header.Set("Content-Type", tt.contentType)

			assert.Equal(t, tt.want, ValidateContentType(w, r, zap.NewNop()))
			if !tt.want {
				assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
			}
		})
	}
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusOK)
	n, err := rw.Write([]byte("test"))
	require.NoError(t, err)

	assert.Equal(t, 4, n)
	assert.Equal(t, http.StatusNotFound, rw.StatusCode)
	assert.Equal(t, 4, rw.Bytes)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Same(t, rec, rw.Unwrap())
}

func TestResponseWriter_ImplicitOK(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	_, _ = rw.Write([]byte("x"))
	assert.True(t, rw.Written)
	assert.Equal(t, http.StatusOK, rw.StatusCode)
}
