package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEstimator_CountTokens(t *testing.T) {
	e := NewEstimatorTokenizer()

	n, err := e.CountTokens("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, _ = e.CountTokens("hi")
	assert.Equal(t, 1, n, "短文本至少计 1")

	n, _ = e.CountTokens(strings.Repeat("a", 40))
	assert.Equal(t, 10, n)

	n, _ = e.CountTokens("你好世界你好世")
	assert.Equal(t, 4, n)
}

func TestEstimator_Truncate(t *testing.T) {
	e := NewEstimatorTokenizer()

	out, cut, err := e.Truncate("short", 100)
	require.NoError(t, err)
	assert.False(t, cut)
	assert.Equal(t, "short", out)

	out, cut, _ = e.Truncate(strings.Repeat("abcd", 50), 10)
	assert.True(t, cut)
	assert.Equal(t, strings.Repeat("abcd", 10)+TruncationMarker, out)

	out, cut, _ = e.Truncate("anything", 0)
	assert.False(t, cut)
	assert.Equal(t, "anything", out)
}

func TestEstimator_TruncateProperty(t *testing.T) {
	e := NewEstimatorTokenizer()
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.String().Draw(t, "text")
		max := rapid.IntRange(1, 50).Draw(t, "max")

		out, cut, err := e.Truncate(text, max)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cut {
			if out != text {
				t.Fatalf("untruncated output changed")
			}
			return
		}
		body := strings.TrimSuffix(out, TruncationMarker)
		if !strings.HasPrefix(text, body) {
			t.Fatalf("truncated output is not a prefix")
		}
		if n, _ := e.CountTokens(body); n > max {
			t.Fatalf("truncated body has %d tokens, max %d", n, max)
		}
	})
}

func TestEncodingForModel(t *testing.T) {
	assert.Equal(t, "o200k_base", EncodingForModel("gpt-4o-mini"))
	assert.Equal(t, "cl100k_base", EncodingForModel("gpt-4-turbo"))
	assert.Equal(t, "cl100k_base", EncodingForModel("llama3"))
}

func TestRegistry(t *testing.T) {
	RegisterTokenizer("test-model", NewEstimatorTokenizer())
	RegisterTokenizer("test-model-long", NewTiktokenTokenizer("gpt-4o"))

	tk, ok := GetTokenizer("test-model-long-v2")
	require.True(t, ok)
	assert.Equal(t, "tiktoken[o200k_base]", tk.Name(), "最长前缀优先")

	tk, ok = GetTokenizer("test-model")
	require.True(t, ok)
	assert.Equal(t, "estimator", tk.Name())

	assert.Equal(t, "estimator", GetTokenizerOrEstimator("unregistered").Name())
}
