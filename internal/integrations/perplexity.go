package integrations

import (
	"context"
	"fmt"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"jarvis/internal/config"
)

// PerplexityClient 通过 Perplexity 的 OpenAI 兼容接口执行网络搜索。
type PerplexityClient struct {
	client *openai.Client
	model  string
}

// NewPerplexityClient 创建一个新的搜索客户端。
func NewPerplexityClient(cfg config.PerplexityConfig) *PerplexityClient {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	} else {
		c.BaseURL = "https://api.perplexity.ai"
	}
	model := cfg.Model
	if model == "" {
		model = "sonar"
	}
	return &PerplexityClient{client: openai.NewClientWithConfig(c), model: model}
}

// Search 执行一次在线搜索并返回带出处的文本回答。
func (p *PerplexityClient) Search(ctx context.Context, query, userID string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "Answer concisely with sourced, current information."},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
		User: userID,
	})
	if err != nil {
		return "", fmt.Errorf("perplexity search failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("perplexity returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
