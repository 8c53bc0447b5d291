package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/skillflow/api"
	"github.com/BaSui01/skillflow/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSkillsHandler_List(t *testing.T) {
	d := newTestDispatcher(t, mocks.NewRecordingHandler(nil))
	h := NewSkillsHandler(d, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleList(w, httptest.NewRequest(http.MethodGet, "/v1/skills", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data api.SkillListResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "flat", resp.Data.Mode)
	require.Len(t, resp.Data.Skills, 1)
	assert.Equal(t, "calculator", resp.Data.Skills[0].Name)
	assert.Empty(t, resp.Data.Skills[0].Group)
	require.NotNil(t, resp.Data.Skills[0].Parameters)
	assert.ElementsMatch(t, []string{"a", "b"}, resp.Data.Skills[0].Parameters.Required)
	assert.Empty(t, resp.Data.Groups)
}

func TestDescribeRegistry_Nil(t *testing.T) {
	out := DescribeRegistry(nil)
	assert.Empty(t, out.Mode)
	assert.NotNil(t, out.Skills)
	assert.Empty(t, out.Skills)
}

// invokeRoute 通过 ServeMux 调用，使 PathValue 生效
func invokeRoute(t *testing.T, h *SkillsHandler, name string, body any) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/skills/{name}/invoke", h.HandleInvoke)
	return postJSON(t, mux.ServeHTTP, "/v1/skills/"+name+"/invoke", body)
}

func TestSkillsHandler_Invoke(t *testing.T) {
	calc := mocks.NewRecordingHandler(42)
	h := NewSkillsHandler(newTestDispatcher(t, calc), zap.NewNop())

	w := invokeRoute(t, h, "CALCULATOR", api.InvokeRequest{Arguments: map[string]any{"a": 40, "b": "2"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data api.InvokeResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "calculator", resp.Data.Skill)
	assert.EqualValues(t, 42, resp.Data.Result)

	require.Equal(t, 1, calc.CallCount())
	// 字符串参数按 Schema 转换为数字
	assert.Equal(t, 2.0, calc.Calls()[0].Args["b"])
}

func TestSkillsHandler_InvokeErrors(t *testing.T) {
	calc := mocks.NewRecordingHandler(nil)
	h := NewSkillsHandler(newTestDispatcher(t, calc), zap.NewNop())

	t.Run("unknown skill", func(t *testing.T) {
		w := invokeRoute(t, h, "teleport", api.InvokeRequest{})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing required argument", func(t *testing.T) {
		w := invokeRoute(t, h, "calculator", api.InvokeRequest{Arguments: map[string]any{"a": 1}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("argument violates schema", func(t *testing.T) {
		w := invokeRoute(t, h, "calculator", api.InvokeRequest{Arguments: map[string]any{"a": "one", "b": 2}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	assert.Equal(t, 0, calc.CallCount())
}
