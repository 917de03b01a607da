package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateChatModelOllama(t *testing.T) {
	m, err := CreateChatModel(context.Background(), Options{
		Provider: "ollama",
		BaseURL:  "http://localhost:11434",
		Model:    "qwen2.5:7b",
		Timeout:  time.Second,
	})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestCreateChatModelOpenAINeedsKey(t *testing.T) {
	_, err := CreateChatModel(context.Background(), Options{Provider: "openai", Model: "gpt-4"})
	assert.Error(t, err)
}

func TestCreateChatModelUnknownProvider(t *testing.T) {
	_, err := CreateChatModel(context.Background(), Options{Provider: "bard"})
	assert.Error(t, err)
}
