package dashscope

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServiceEmptyKey(t *testing.T) {
	assert.Nil(t, NewService(""))
	assert.Nil(t, NewService("   "))
	assert.False(t, NewService("").Ready())
}

func TestChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/compatible-mode/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen-turbo", req.Model)

		json.NewEncoder(w).Encode(ChatResponse{
			Choices: []ChatChoice{
				{Message: ChatMessage{Role: "assistant", Content: "hello"}},
			},
		})
	}))
	defer server.Close()

	svc := NewService("sk-test", WithBaseURL(server.URL))
	resp, err := svc.ChatCompletion(context.Background(), ChatRequest{
		Model:    "qwen-turbo",
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hello", resp.Choices[0].Message.Content)
}

func TestCreateEmbeddings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/compatible-mode/v1/embeddings", r.URL.Path)
		json.NewEncoder(w).Encode(EmbeddingResponse{
			Data: []EmbeddingData{{Embedding: []float64{0.1, 0.2}}},
		})
	}))
	defer server.Close()

	svc := NewService("sk-test", WithBaseURL(server.URL))
	resp, err := svc.CreateEmbeddings(context.Background(), EmbeddingRequest{
		Model: "text-embedding-v1",
		Input: []string{"hello"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, []float64{0.1, 0.2}, resp.Data[0].Embedding)
}

func TestCreateRerank(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/services/rerank/rerank", r.URL.Path)
		resp := RerankResponse{RequestID: "req-1"}
		resp.Output.Results = []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		}{
			{Index: 1, RelevanceScore: 0.9},
			{Index: 0, RelevanceScore: 0.2},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	svc := NewService("sk-test", WithBaseURL(server.URL))
	resp, err := svc.CreateRerank(context.Background(), RerankRequest{
		Model:     "gte-rerank",
		Query:     "q",
		Documents: []string{"a", "b"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Output.Results, 2)
	assert.Equal(t, 0.9, resp.Output.Results[0].RelevanceScore)
}

func TestAPIErrorDecoded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(Error{
			Code:      "InvalidApiKey",
			Message:   "Invalid API-key provided.",
			RequestID: "req-2",
		})
	}))
	defer server.Close()

	svc := NewService("sk-bad", WithBaseURL(server.URL))
	_, err := svc.ChatCompletion(context.Background(), ChatRequest{Model: "qwen-turbo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidApiKey")
	assert.Contains(t, err.Error(), "req-2")
}
