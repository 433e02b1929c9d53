package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"jarvis/internal/config"
)

// TelegramClient 通过 Bot API 向用户推送通知。
// worker 用它投递提醒和任务完成消息；对话入口不经过这里。
type TelegramClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewTelegramClient 创建一个新的 Telegram 通知客户端。
func NewTelegramClient(cfg config.TelegramConfig) *TelegramClient {
	return &TelegramClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    fmt.Sprintf("https://api.telegram.org/bot%s", cfg.BotToken),
	}
}

// SendMessage 向 chatID 发送一条 HTML 格式的消息。
func (t *TelegramClient) SendMessage(ctx context.Context, chatID, text string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/sendMessage", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram send returned %d: %s", resp.StatusCode, body)
	}
	return nil
}
