package chat

import (
	"context"
	"fmt"
	"time"

	"contract-guard/vars"

	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// Options 模型创建参数
type Options struct {
	Provider    string
	BaseURL     string
	Model       string
	APIKey      string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32
}

// CreateChatModel 按 provider 创建对话模型
func CreateChatModel(ctx context.Context, opts Options) (model.ToolCallingChatModel, error) {
	switch opts.Provider {
	case vars.ProviderOllama, "":
		return CreateOllamaChatModel(ctx, opts.BaseURL, opts.Model, opts.Timeout)
	case vars.ProviderOpenAI:
		return CreateOpenAIChatModel(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown model provider %q", opts.Provider)
	}
}

func CreateOllamaChatModel(ctx context.Context, url string, name string, timeout time.Duration) (model.ToolCallingChatModel, error) {
	chatModel, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
		BaseURL: url,  // Ollama 服务地址
		Model:   name, // 模型名称
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create ollama chat model failed: %w", err)
	}
	return chatModel, nil
}

func CreateOpenAIChatModel(ctx context.Context, opts Options) (model.ToolCallingChatModel, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	cfg := &openai.ChatModelConfig{
		APIKey:  opts.APIKey,
		BaseURL: opts.BaseURL,
		Model:   opts.Model,
		Timeout: opts.Timeout,
	}
	if opts.MaxTokens > 0 {
		maxTokens := opts.MaxTokens
		cfg.MaxTokens = &maxTokens
	}
	if opts.Temperature > 0 {
		temperature := opts.Temperature
		cfg.Temperature = &temperature
	}
	chatModel, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create openai chat model failed: %w", err)
	}
	return chatModel, nil
}
