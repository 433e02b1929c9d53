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

const notionVersion = "2022-06-28"

// NotionClient 是 Notion 任务数据库的薄适配器。
type NotionClient struct {
	httpClient *http.Client
	apiKey     string
	databaseID string
	baseURL    string
}

// NewNotionClient 创建一个新的 Notion 客户端。
func NewNotionClient(cfg config.NotionConfig) *NotionClient {
	return &NotionClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     cfg.APIKey,
		databaseID: cfg.DatabaseID,
		baseURL:    "https://api.notion.com",
	}
}

// BoardTask 是任务板上一条任务的摘要。
type BoardTask struct {
	Title  string `json:"title"`
	Status string `json:"status"`
	Due    string `json:"due,omitempty"`
	Owner  string `json:"owner,omitempty"`
}

// ListTasks 查询任务数据库并返回任务摘要列表。
func (n *NotionClient) ListTasks(ctx context.Context) ([]BoardTask, error) {
	url := fmt.Sprintf("%s/v1/databases/%s/query", n.baseURL, n.databaseID)
	body := bytes.NewBufferString(`{"page_size": 50}`)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+n.apiKey)
	req.Header.Set("Notion-Version", notionVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notion query failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("notion query returned %d: %s", resp.StatusCode, raw)
	}

	var payload struct {
		Results []struct {
			Properties map[string]json.RawMessage `json:"properties"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("notion response unparseable: %w", err)
	}

	tasks := make([]BoardTask, 0, len(payload.Results))
	for _, page := range payload.Results {
		tasks = append(tasks, BoardTask{
			Title:  extractTitle(page.Properties),
			Status: extractStatus(page.Properties),
			Due:    extractDue(page.Properties),
		})
	}
	return tasks, nil
}

// Notion 的属性结构按类型嵌套，下面的提取器只认本系统需要的三种。

func extractTitle(props map[string]json.RawMessage) string {
	for _, raw := range props {
		var p struct {
			Type  string `json:"type"`
			Title []struct {
				PlainText string `json:"plain_text"`
			} `json:"title"`
		}
		if json.Unmarshal(raw, &p) == nil && p.Type == "title" && len(p.Title) > 0 {
			return p.Title[0].PlainText
		}
	}
	return ""
}

func extractStatus(props map[string]json.RawMessage) string {
	for _, raw := range props {
		var p struct {
			Type   string `json:"type"`
			Status *struct {
				Name string `json:"name"`
			} `json:"status"`
		}
		if json.Unmarshal(raw, &p) == nil && p.Type == "status" && p.Status != nil {
			return p.Status.Name
		}
	}
	return ""
}

func extractDue(props map[string]json.RawMessage) string {
	for _, raw := range props {
		var p struct {
			Type string `json:"type"`
			Date *struct {
				Start string `json:"start"`
			} `json:"date"`
		}
		if json.Unmarshal(raw, &p) == nil && p.Type == "date" && p.Date != nil {
			return p.Date.Start
		}
	}
	return ""
}
