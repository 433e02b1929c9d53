package integrations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"jarvis/internal/config"
)

func TestListTasksParsesProperties(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Notion-Version") == "" {
			t.Error("request missing Notion-Version header")
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"results": [
				{"properties": {
					"Name": {"type": "title", "title": [{"plain_text": "Ship release"}]},
					"Status": {"type": "status", "status": {"name": "In progress"}},
					"Due": {"type": "date", "date": {"start": "2025-06-01"}}
				}},
				{"properties": {
					"Name": {"type": "title", "title": []}
				}}
			]
		}`))
	}))
	defer server.Close()

	client := NewNotionClient(config.NotionConfig{APIKey: "secret", DatabaseID: "db1"})
	client.baseURL = server.URL

	tasks, err := client.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("ListTasks() returned %d tasks, expected 2", len(tasks))
	}
	if tasks[0].Title != "Ship release" || tasks[0].Status != "In progress" || tasks[0].Due != "2025-06-01" {
		t.Errorf("tasks[0] = %+v", tasks[0])
	}
	if tasks[1].Title != "" {
		t.Errorf("empty title page parsed as %q", tasks[1].Title)
	}
}

func TestListTasksSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "invalid token"}`))
	}))
	defer server.Close()

	client := NewNotionClient(config.NotionConfig{APIKey: "bad", DatabaseID: "db1"})
	client.baseURL = server.URL

	if _, err := client.ListTasks(context.Background()); err == nil {
		t.Error("ListTasks() swallowed a 401 response")
	}
}

func TestSendMessagePayload(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := NewTelegramClient(config.TelegramConfig{BotToken: "token"})
	client.baseURL = server.URL

	if err := client.SendMessage(context.Background(), "42", "ciao"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if got["chat_id"] != "42" || got["text"] != "ciao" || got["parse_mode"] != "HTML" {
		t.Errorf("payload = %v", got)
	}
}

func TestSendMessageNonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok": false, "description": "chat not found"}`))
	}))
	defer server.Close()

	client := NewTelegramClient(config.TelegramConfig{BotToken: "token"})
	client.baseURL = server.URL

	if err := client.SendMessage(context.Background(), "0", "ciao"); err == nil {
		t.Error("SendMessage() swallowed a 400 response")
	}
}
