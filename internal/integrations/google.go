package integrations

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"jarvis/internal/config"
)

// GoogleClient 封装了 Google Calendar 和 Gmail 的只读/写访问。
// 编排核心只通过结构化数据与它交互，不感知 Google 的线格式。
type GoogleClient struct {
	calendarSvc *calendar.Service
	gmailSvc    *gmail.Service
	calendarID  string
}

// NewGoogleClient 从 OAuth 凭据和令牌文件构造客户端。
func NewGoogleClient(ctx context.Context, cfg config.GoogleConfig) (*GoogleClient, error) {
	credentials, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("无法读取 Google 凭据文件: %w", err)
	}

	oauthCfg, err := google.ConfigFromJSON(credentials,
		calendar.CalendarScope, gmail.GmailReadonlyScope, gmail.GmailComposeScope)
	if err != nil {
		return nil, fmt.Errorf("解析 Google 凭据失败: %w", err)
	}

	tokenBytes, err := os.ReadFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("无法读取 Google 令牌文件: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenBytes, &token); err != nil {
		return nil, fmt.Errorf("解析 Google 令牌失败: %w", err)
	}

	httpClient := oauthCfg.Client(ctx, &token)

	calendarSvc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("创建 Calendar 服务失败: %w", err)
	}
	gmailSvc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("创建 Gmail 服务失败: %w", err)
	}

	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleClient{calendarSvc: calendarSvc, gmailSvc: gmailSvc, calendarID: calendarID}, nil
}

// UpcomingEvents 返回未来 days 天内的日历事件。
func (g *GoogleClient) UpcomingEvents(ctx context.Context, days int) ([]map[string]interface{}, error) {
	now := time.Now()
	events, err := g.calendarSvc.Events.List(g.calendarID).
		Context(ctx).
		TimeMin(now.Format(time.RFC3339)).
		TimeMax(now.AddDate(0, 0, days).Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(50).
		Do()
	if err != nil {
		return nil, fmt.Errorf("calendar list failed: %w", err)
	}

	items := make([]map[string]interface{}, 0, len(events.Items))
	for _, ev := range events.Items {
		start := ev.Start.DateTime
		if start == "" {
			start = ev.Start.Date // all-day event
		}
		end := ev.End.DateTime
		if end == "" {
			end = ev.End.Date
		}
		items = append(items, map[string]interface{}{
			"id":       ev.Id,
			"summary":  ev.Summary,
			"start":    start,
			"end":      end,
			"location": ev.Location,
		})
	}
	return items, nil
}

// CreateEvent 用自然语言快速创建一个日历事件。
func (g *GoogleClient) CreateEvent(ctx context.Context, text string) (map[string]interface{}, error) {
	ev, err := g.calendarSvc.Events.QuickAdd(g.calendarID, text).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar quick add failed: %w", err)
	}
	return map[string]interface{}{
		"id":      ev.Id,
		"summary": ev.Summary,
		"start":   ev.Start.DateTime,
	}, nil
}

// RecentMessages 返回收件箱中最近的 max 封邮件的摘要。
func (g *GoogleClient) RecentMessages(ctx context.Context, max int64) ([]map[string]interface{}, error) {
	list, err := g.gmailSvc.Users.Messages.List("me").
		Context(ctx).
		LabelIds("INBOX").
		MaxResults(max).
		Do()
	if err != nil {
		return nil, fmt.Errorf("gmail list failed: %w", err)
	}

	var messages []map[string]interface{}
	for _, ref := range list.Messages {
		msg, err := g.gmailSvc.Users.Messages.Get("me", ref.Id).
			Context(ctx).
			Format("metadata").
			MetadataHeaders("From", "Subject", "Date").
			Do()
		if err != nil {
			return nil, fmt.Errorf("gmail get %s failed: %w", ref.Id, err)
		}
		entry := map[string]interface{}{
			"id":      msg.Id,
			"snippet": msg.Snippet,
		}
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "From":
				entry["from"] = h.Value
			case "Subject":
				entry["subject"] = h.Value
			case "Date":
				entry["date"] = h.Value
			}
		}
		messages = append(messages, entry)
	}
	return messages, nil
}

// CreateDraft 在 Gmail 中创建一封草稿，不发送。正文按 RFC 822 组装后
// 以 base64url 编码提交。
func (g *GoogleClient) CreateDraft(ctx context.Context, to, subject, body string) (map[string]interface{}, error) {
	raw := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s",
		to, subject, body)
	draft, err := g.gmailSvc.Users.Drafts.Create("me", &gmail.Draft{
		Message: &gmail.Message{Raw: base64.URLEncoding.EncodeToString([]byte(raw))},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail draft create failed: %w", err)
	}
	return map[string]interface{}{
		"draft_id": draft.Id,
		"to":       to,
		"subject":  subject,
	}, nil
}
