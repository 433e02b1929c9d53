package planner

import (
	"context"
	"fmt"
	"strings"

	"jarvis/internal/llm"
	"jarvis/internal/models"
	"jarvis/pkg/logger"
)

// agentCapabilities describes what each agent can do, for the prompt.
var agentCapabilities = []struct {
	kind models.AgentKind
	desc string
}{
	{models.AgentCalendar, "Google Calendar: read events, CREATE new events, modify, delete, block slots, schedule appointments"},
	{models.AgentEmail, "Gmail: read email, write email, create drafts, reply, search messages"},
	{models.AgentWeb, "Web search: look up online information, weather, news, current facts"},
	{models.AgentRag, "Personal knowledge base: search the user's documents, uploaded files, notes"},
	{models.AgentKg, "Known entities: people, organizations and their relationships learned from past conversations"},
	{models.AgentTask, "Task board: read tasks, due dates and project status from Notion"},
}

const plannerPrompt = `You are a planner that decides which agents to run for a user request, and in what order.

AVAILABLE AGENTS:
%s

RULES:
1. Analyze what the user is asking for.
2. Select ONLY the agents that are needed (can be 0, 1, or more).
3. Agents that do not depend on each other's output go in the SAME step (they run in parallel).
4. Use a NEW step only when a step functionally needs the previous step's output.
5. Use at most %d steps.
6. Plain conversation (greetings, thanks, questions about you) needs no agents at all.
7. When in doubt about calendar/email, include the agent rather than exclude it.

EXAMPLES:
- "ciao come stai" -> {"steps": []}
- "cosa ho domani" -> {"steps": [{"agents": ["calendar"], "goal": "read tomorrow's events"}]}
- "controlla email e calendario" -> {"steps": [{"agents": ["calendar", "email"], "goal": "check both sources"}]}
- "cerca il meteo e crea un evento se piove" -> {"steps": [{"agents": ["web"], "goal": "get the weather"}, {"agents": ["calendar"], "goal": "create the event based on the forecast"}]}

Reply ONLY with valid JSON:
{"steps": [{"agents": ["agent1"], "goal": "short description"}], "reasoning": "brief explanation"}

RECENT CONVERSATION:
%s

USER REQUEST:
%s

JSON:`

// Planner is the LLM-backed fallback that decomposes a request into agent
// invocation steps when the semantic router is not confident.
type Planner struct {
	llm      llm.LLM
	log      *logger.Logger
	maxSteps int
}

// New creates a planner. maxSteps caps the plan length (the prompt states
// the cap and Plan enforces it).
func New(l llm.LLM, log *logger.Logger, maxSteps int) *Planner {
	if maxSteps <= 0 {
		maxSteps = 3
	}
	return &Planner{llm: l, log: log, maxSteps: maxSteps}
}

// Plan analyzes the request and returns the deduplicated flat agent list
// (first-seen order) plus the ordered steps. A total failure returns an
// empty plan and no error: the orchestrator then falls back to a direct
// chitchat-style response.
func (p *Planner) Plan(ctx context.Context, userInput, userID string, history []models.ChatMessage) ([]models.AgentKind, []models.PlanStep, error) {
	prompt := fmt.Sprintf(plannerPrompt,
		formatCapabilities(),
		p.maxSteps,
		formatHistory(history),
		userInput,
	)

	response, err := p.llm.Generate(ctx, &llm.GenerateRequest{
		Prompt:      prompt,
		Temperature: 0.1, // low temperature for consistent decisions
		UserID:      userID,
	})
	if err != nil {
		p.log.WithErr(err).Error("planner generation failed")
		return nil, nil, nil
	}

	steps, err := parsePlan(response)
	if err != nil {
		p.log.WithPayload(map[string]interface{}{
			"response": truncate(response, 200),
		}).Warn("planner response unparseable")
		return nil, nil, nil
	}

	if len(steps) > p.maxSteps {
		steps = steps[:p.maxSteps]
	}

	flat := flattenAgents(steps)
	p.log.WithPayload(map[string]interface{}{
		"agents": flat,
		"steps":  len(steps),
	}).Info("planner decision")
	return flat, steps, nil
}

// flattenAgents deduplicates agents across steps preserving first-seen
// order. The flat list drives freshness checking and parallel execution;
// the step structure is kept on the state for response context.
func flattenAgents(steps []models.PlanStep) []models.AgentKind {
	seen := make(map[models.AgentKind]bool)
	var flat []models.AgentKind
	for _, step := range steps {
		for _, kind := range step.Agents {
			if !seen[kind] {
				seen[kind] = true
				flat = append(flat, kind)
			}
		}
	}
	return flat
}

func formatCapabilities() string {
	var b strings.Builder
	for _, c := range agentCapabilities {
		fmt.Fprintf(&b, "- %s: %s\n", c.kind, c.desc)
	}
	return b.String()
}

// formatHistory renders the last few turns, truncated, for plan context.
func formatHistory(history []models.ChatMessage) string {
	if len(history) == 0 {
		return "(none)"
	}
	if len(history) > 4 {
		history = history[len(history)-4:]
	}
	var lines []string
	for _, m := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, truncate(m.Content, 300)))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
