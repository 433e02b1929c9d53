package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"jarvis/internal/cache"
	"jarvis/internal/integrations"
	"jarvis/internal/llm"
	"jarvis/internal/models"
	"jarvis/pkg/logger"
)

// The concrete agents below differ only in their core function and the
// backend they read from. Backends are narrowed to small interfaces so
// tests can substitute fakes without a live Google/Notion/Milvus setup.

// CalendarBackend is the slice of the Google client the calendar agent uses.
type CalendarBackend interface {
	UpcomingEvents(ctx context.Context, days int) ([]map[string]interface{}, error)
	CreateEvent(ctx context.Context, text string) (map[string]interface{}, error)
}

// EmailBackend is the slice of the Google client the email agent uses.
type EmailBackend interface {
	RecentMessages(ctx context.Context, max int64) ([]map[string]interface{}, error)
	CreateDraft(ctx context.Context, to, subject, body string) (map[string]interface{}, error)
}

// SearchBackend runs an online search and returns a sourced text answer.
type SearchBackend interface {
	Search(ctx context.Context, query, userID string) (string, error)
}

// DocumentBackend retrieves personal documents by semantic similarity.
type DocumentBackend interface {
	SearchDocuments(ctx context.Context, userID, query string, limit int) ([]string, error)
}

// GraphBackend looks up known entities and their relations.
type GraphBackend interface {
	RelevantEntities(ctx context.Context, userID, query string, limit int) ([]string, error)
}

// BoardBackend lists tasks from the external task board.
type BoardBackend interface {
	ListTasks(ctx context.Context) ([]integrations.BoardTask, error)
}

// NewCalendarAgent reads the next week of calendar events, or creates one
// when the routed intent asks for a write. Creation goes through Google's
// natural-language quick add, so the user's own phrasing is passed through.
func NewCalendarAgent(backend CalendarBackend, freshness *cache.Checker, log *logger.Logger) *Base {
	return New(models.AgentCalendar, models.ResourceCalendar, freshness, log,
		func(ctx context.Context, state *models.State) (interface{}, error) {
			if state.Intent == models.IntentCalendarWrite {
				created, err := backend.CreateEvent(ctx, state.CurrentInput)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"created": created}, nil
			}
			events, err := backend.UpcomingEvents(ctx, 7)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"events": events, "count": len(events)}, nil
		})
}

const draftPrompt = `Extract the email the user wants to write from their request. Reply ONLY with valid JSON:
{"to": "recipient address or name", "subject": "subject line", "body": "full message body, in the user's language"}

USER REQUEST:
%s

JSON:`

// NewEmailAgent reads recent inbox summaries, or turns a write request
// into a Gmail draft. Drafts are never sent automatically; the user
// reviews them in their own client.
func NewEmailAgent(backend EmailBackend, l llm.LLM, freshness *cache.Checker, log *logger.Logger) *Base {
	return New(models.AgentEmail, models.ResourceEmail, freshness, log,
		func(ctx context.Context, state *models.State) (interface{}, error) {
			if state.Intent == models.IntentEmailWrite {
				return draftEmail(ctx, backend, l, state)
			}
			messages, err := backend.RecentMessages(ctx, 10)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"messages": messages, "count": len(messages)}, nil
		})
}

// draftEmail extracts recipient, subject and body from the request and
// creates the draft.
func draftEmail(ctx context.Context, backend EmailBackend, l llm.LLM, state *models.State) (interface{}, error) {
	response, err := l.Generate(ctx, &llm.GenerateRequest{
		Prompt:      fmt.Sprintf(draftPrompt, state.CurrentInput),
		Temperature: 0.2,
		UserID:      state.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("draft extraction failed: %w", err)
	}

	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	fields := gjson.Parse(strings.TrimSpace(cleaned))

	to := fields.Get("to").String()
	subject := fields.Get("subject").String()
	body := fields.Get("body").String()
	if to == "" || body == "" {
		return nil, errors.New("could not extract recipient and body from the request")
	}

	draft, err := backend.CreateDraft(ctx, to, subject, body)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"draft": draft, "note": "draft created, not sent"}, nil
}

// NewWebAgent answers the user's query with a live web search.
func NewWebAgent(backend SearchBackend, freshness *cache.Checker, log *logger.Logger) *Base {
	return New(models.AgentWeb, models.ResourceWeb, freshness, log,
		func(ctx context.Context, state *models.State) (interface{}, error) {
			answer, err := backend.Search(ctx, state.CurrentInput, state.UserID)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"answer": answer, "query": state.CurrentInput}, nil
		})
}

// NewRagAgent retrieves passages from the user's personal document store.
func NewRagAgent(backend DocumentBackend, freshness *cache.Checker, log *logger.Logger) *Base {
	return New(models.AgentRag, models.ResourceRag, freshness, log,
		func(ctx context.Context, state *models.State) (interface{}, error) {
			docs, err := backend.SearchDocuments(ctx, state.UserID, state.CurrentInput, 5)
			if err != nil {
				return nil, err
			}
			if len(docs) == 0 {
				return map[string]interface{}{"documents": []string{}, "note": "no matching documents"}, nil
			}
			return map[string]interface{}{"documents": docs}, nil
		})
}

// NewKgAgent looks up entities the system already knows about. Graph
// lookups are cheap and query-shaped, so this agent opts out of caching.
func NewKgAgent(backend GraphBackend, log *logger.Logger) *Base {
	return New(models.AgentKg, "", nil, log,
		func(ctx context.Context, state *models.State) (interface{}, error) {
			entities, err := backend.RelevantEntities(ctx, state.UserID, state.CurrentInput, 10)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"entities": entities}, nil
		})
}

// NewTaskAgent lists the user's task board.
func NewTaskAgent(backend BoardBackend, freshness *cache.Checker, log *logger.Logger) *Base {
	return New(models.AgentTask, models.ResourceTasks, freshness, log,
		func(ctx context.Context, state *models.State) (interface{}, error) {
			tasks, err := backend.ListTasks(ctx)
			if err != nil {
				return nil, fmt.Errorf("task board query failed: %w", err)
			}
			return map[string]interface{}{"tasks": tasks, "count": len(tasks)}, nil
		})
}
