package llm

import (
	"context"
	"fmt"

	"jarvis/internal/config"
	"jarvis/internal/models"
)

// GenerateRequest 描述一次文本生成调用。
// UserID 只用于下游的用量记录，模型本身不感知。
type GenerateRequest struct {
	Prompt            string               // 单轮提示词 (Generate 使用)
	Messages          []models.ChatMessage // 对话历史 (GenerateWithHistory 使用)
	SystemInstruction string               // 系统指令 (可选)
	Temperature       float32              // 采样温度
	MaxTokens         int                  // 输出 token 上限 (0 表示不限制)
	UserID            string               // 调用归属的用户标识
}

// LLM 定义了所有大型语言模型客户端必须实现的通用接口。
type LLM interface {
	// Generate 针对单个提示词生成文本。
	Generate(ctx context.Context, req *GenerateRequest) (string, error)
	// GenerateWithHistory 在完整对话历史的条件下生成下一条回复。
	GenerateWithHistory(ctx context.Context, req *GenerateRequest) (string, error)
}

// NewLLM 是一个工厂函数，根据提供的配置创建并返回一个实现了 LLM 接口的客户端。
func NewLLM(cfg config.LLMConfig) (LLM, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGemini(context.Background(), cfg.Gemini.Model, cfg.Gemini.APIKey)
	case "openai":
		return NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
