// Package openaicompat implements llm.Provider against any OpenAI-compatible
// Chat Completions endpoint (OpenAI, DeepSeek, Ollama, vLLM, LiteLLM gateways).
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "openai",
//	    APIKey:       cfg.APIKey,
//	    BaseURL:      "https://api.openai.com",
//	    DefaultModel: "gpt-4o-mini",
//	}, logger)
package openaicompat
