package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/reqforge/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaudeClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sys", req.System)
		assert.Equal(t, "claude-test", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "hello", req.Messages[0].Content)

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"[1,"},{"type":"text","text":"2]"}],"stop_reason":"end_turn"}`))
	}))
	defer srv.Close()

	c := NewClaudeClient(srv.Client(), srv.URL, "key-1", "claude-test")
	out, err := c.Generate(context.Background(), "sys", "hello")
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", out)
}

func TestClaudeClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	_, err := NewClaudeClient(srv.Client(), srv.URL, "bad", "m").Generate(context.Background(), "", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication_error")
}

func TestOpenAIClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	out, err := NewOpenAIClient("sk-test", srv.URL+"/v1", "gpt-test").Generate(context.Background(), "sys", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestHuggingFace_ResponseShapes(t *testing.T) {
	bodies := map[string]string{
		"flat":   `[{"label":"entailment","score":0.1},{"label":"CONTRADICTION","score":0.85}]`,
		"nested": `[[{"label":"neutral","score":0.05},{"label":"contradiction","score":0.85}]]`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer hf-key", r.Header.Get("Authorization"))
				var req struct {
					Inputs map[string]string `json:"inputs"`
				}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "a", req.Inputs["text"])
				assert.Equal(t, "b", req.Inputs["text_pair"])
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			score, err := NewHuggingFaceClient(srv.Client(), srv.URL, "hf-key").Contradiction(context.Background(), "a", "b")
			require.NoError(t, err)
			assert.InDelta(t, 0.85, score, 1e-9)
		})
	}
}

func TestHuggingFace_NoLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"label":"LABEL_0","score":1}]`))
	}))
	defer srv.Close()

	_, err := NewHuggingFaceClient(srv.Client(), srv.URL, "k").Contradiction(context.Background(), "a", "b")
	assert.Error(t, err)
}

type staticKeys struct {
	keys Keys
	err  error
}

func (s staticKeys) APIKeys(context.Context, uint) (Keys, error) { return s.keys, s.err }

func TestFactory_MissingKeys(t *testing.T) {
	f := NewFactory(config.AIConfig{Provider: ProviderClaude}, staticKeys{})
	ctx := context.Background()

	_, err := f.Author(ctx, 1)
	assert.True(t, IsMissingKey(err))
	assert.Equal(t, "40010:missing claude API key", err.Error())

	_, err = f.Reviewer(ctx, 1)
	assert.True(t, IsMissingKey(err))

	_, err = f.Scorer(ctx, 1)
	assert.True(t, IsMissingKey(err))

	f = NewFactory(config.AIConfig{Provider: ProviderOpenAI}, nil)
	_, err = f.Author(ctx, 1)
	assert.EqualError(t, err, "40010:missing openai API key")
}

func TestFactory_UserKeyWinsOverConfig(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("x-api-key")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{}"}]}`))
	}))
	defer srv.Close()

	cfg := config.AIConfig{AnthropicAPIKey: "config-key", AnthropicBaseURL: srv.URL, ClaudeModel: "m"}
	f := NewFactory(cfg, staticKeys{keys: Keys{Anthropic: "user-key"}})
	gen, err := f.Author(context.Background(), 3)
	require.NoError(t, err)
	_, err = gen.Generate(context.Background(), "", "x")
	require.NoError(t, err)
	assert.Equal(t, "user-key", seen)

	f = NewFactory(cfg, staticKeys{})
	gen, err = f.Author(context.Background(), 3)
	require.NoError(t, err)
	_, err = gen.Generate(context.Background(), "", "x")
	require.NoError(t, err)
	assert.Equal(t, "config-key", seen)
}

func TestFactory_PreferredModelOverridesConfig(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seen = req.Model
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{}"}]}`))
	}))
	defer srv.Close()

	cfg := config.AIConfig{AnthropicAPIKey: "config-key", AnthropicBaseURL: srv.URL, ClaudeModel: "config-model"}
	f := NewFactory(cfg, staticKeys{keys: Keys{Model: "claude-preferred"}})
	gen, err := f.Author(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, ProviderClaude, ProviderOf(gen))
	_, err = gen.Generate(context.Background(), "", "x")
	require.NoError(t, err)
	assert.Equal(t, "claude-preferred", seen)

	f = NewFactory(cfg, staticKeys{})
	gen, err = f.Author(context.Background(), 3)
	require.NoError(t, err)
	_, err = gen.Generate(context.Background(), "", "x")
	require.NoError(t, err)
	assert.Equal(t, "config-model", seen)
}

func TestProviderOf(t *testing.T) {
	assert.Equal(t, ProviderOpenAI, ProviderOf(&instrumented{provider: ProviderOpenAI}))
	assert.Equal(t, ProviderClaude, ProviderOf(failing{}))
}

type failing struct{}

func (failing) Generate(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("boom")
}

func TestInstrumented_WrapsProviderErrors(t *testing.T) {
	g := &instrumented{provider: ProviderClaude, gen: failing{}}
	_, err := g.Generate(context.Background(), "", "")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "50201:claude request failed"))
}

func TestSplitSource(t *testing.T) {
	chunks, err := SplitSource("   ")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	para := strings.Repeat("The operator records each shipment in the ledger. ", 60)
	text := para + "\n\n" + para + "\n\n" + para
	chunks, err = SplitSource(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), ChunkSize)
	}
}
