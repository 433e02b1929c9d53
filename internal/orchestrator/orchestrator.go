package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"jarvis/internal/agent"
	"jarvis/internal/config"
	"jarvis/internal/llm"
	"jarvis/internal/models"
	"jarvis/pkg/logger"
)

// IntentRouter classifies a query and names the agents an intent needs.
type IntentRouter interface {
	Route(ctx context.Context, query string, threshold float64) (string, float64, error)
	RequiredAgents(intent string) []models.AgentKind
}

// TaskPlanner decomposes a request the router could not classify.
type TaskPlanner interface {
	Plan(ctx context.Context, userInput, userID string, history []models.ChatMessage) ([]models.AgentKind, []models.PlanStep, error)
}

// FreshnessChecker reports which resources need a refresh.
type FreshnessChecker interface {
	CheckAll(ctx context.Context, userID string, resources []models.ResourceType) (map[models.ResourceType]bool, error)
}

// MemoryStore is the slice of the memory layer the pipeline reads and
// writes per turn.
type MemoryStore interface {
	RelevantFacts(ctx context.Context, userID, query string, limit int) ([]string, error)
	SaveTurn(ctx context.Context, userID, role, content string) error
}

// FactExtractor mines durable facts from a finished turn.
type FactExtractor interface {
	ExtractAndSave(ctx context.Context, userID string, messages []models.ChatMessage) error
}

// Below this router confidence the planner gets a say even when the
// intent cleared the routing threshold.
const plannerOverrideConfidence = 0.80

// actionKeywords are verbs that signal real work hiding inside a turn the
// router labeled chitchat ("grazie, ora crea l'evento"). Any hit sends
// the turn to the planner for a second opinion.
var actionKeywords = []string{
	"crea", "aggiungi", "schedula", "sposta", "cancella",
	"manda", "invia", "scrivi", "rispondi",
	"cerca", "trova", "controlla", "mostra", "leggi",
	"ricorda", "ricordami", "prenota",
}

func hasActionKeyword(input string) bool {
	lower := strings.ToLower(input)
	for _, kw := range actionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Orchestrator drives one user message through the pipeline: intent
// analysis, memory recall, freshness check, parallel agent execution,
// response generation, then background persistence and fact extraction.
// Every stage after intent analysis is best effort: a broken backend
// degrades the answer, it never loses the turn.
type Orchestrator struct {
	router    IntentRouter
	planner   TaskPlanner
	freshness FreshnessChecker
	registry  *agent.Registry
	memory    MemoryStore
	extractor FactExtractor
	llm       llm.LLM
	spawner   *Spawner
	cfg       config.OrchestratorConfig
	log       *logger.Logger
}

// New wires the pipeline together. extractor may be nil to disable
// background fact mining.
func New(
	router IntentRouter,
	planner TaskPlanner,
	freshness FreshnessChecker,
	registry *agent.Registry,
	memory MemoryStore,
	extractor FactExtractor,
	l llm.LLM,
	spawner *Spawner,
	cfg config.OrchestratorConfig,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		router:    router,
		planner:   planner,
		freshness: freshness,
		registry:  registry,
		memory:    memory,
		extractor: extractor,
		llm:       l,
		spawner:   spawner,
		cfg:       cfg,
		log:       log,
	}
}

// ProcessMessage runs the full pipeline and returns the assistant's reply.
func (o *Orchestrator) ProcessMessage(ctx context.Context, userID, input string, history []models.ChatMessage) (*models.State, error) {
	state := models.NewState(userID, input, history)
	log := o.log.WithField("user_id", userID)

	if err := o.analyzeIntent(ctx, state); err != nil {
		return nil, err
	}
	log.WithPayload(map[string]interface{}{
		"intent":     state.Intent,
		"confidence": state.IntentConfidence,
		"agents":     state.RequiredAgents,
	}).Info("intent analyzed")

	o.loadMemory(ctx, state)

	if len(state.RequiredAgents) > 0 {
		o.checkFreshness(ctx, state)
		o.executeAgents(ctx, state)
	}

	if err := o.generateResponse(ctx, state); err != nil {
		return nil, err
	}

	o.finishTurn(state)
	return state, nil
}

// analyzeIntent routes first and lets the planner override when routing
// was not conclusive: a "complex" or "unknown" verdict, a confidence
// below the override floor, or action verbs hiding in a chitchat turn.
func (o *Orchestrator) analyzeIntent(ctx context.Context, state *models.State) error {
	intent, confidence, err := o.router.Route(ctx, state.CurrentInput, o.cfg.RouterThreshold)
	if err != nil {
		return fmt.Errorf("orchestrator: intent routing: %w", err)
	}
	state.Intent = intent
	state.IntentConfidence = confidence
	state.RequiredAgents = o.router.RequiredAgents(intent)

	needsPlanner := intent == models.IntentComplex || intent == models.IntentUnknown ||
		confidence < plannerOverrideConfidence ||
		(intent == models.IntentChitchat && hasActionKeyword(state.CurrentInput))
	if !needsPlanner {
		return nil
	}

	agents, steps, err := o.planner.Plan(ctx, state.CurrentInput, state.UserID, state.Messages)
	if err != nil {
		return fmt.Errorf("orchestrator: planning: %w", err)
	}
	if len(agents) == 0 {
		// The planner saw no work either: treat the turn as conversation.
		if intent == models.IntentComplex || intent == models.IntentUnknown {
			state.Intent = models.IntentChitchat
			state.RequiredAgents = nil
		}
		return nil
	}
	state.Intent = models.IntentAction
	state.RequiredAgents = agents
	state.PlanSteps = steps
	return nil
}

// loadMemory recalls facts relevant to the query. Best effort.
func (o *Orchestrator) loadMemory(ctx context.Context, state *models.State) {
	facts, err := o.memory.RelevantFacts(ctx, state.UserID, state.CurrentInput, o.cfg.MemoryLimit)
	if err != nil {
		o.log.WithErr(err).Warn("memory recall failed")
		return
	}
	state.MemoryContext = facts
}

// checkFreshness fills NeedsRefresh for the resources behind the required
// agents. A cache failure fails open: everything needs a refresh.
func (o *Orchestrator) checkFreshness(ctx context.Context, state *models.State) {
	resources := o.registry.ResourcesFor(state.RequiredAgents)
	if len(resources) == 0 {
		return
	}
	needs, err := o.freshness.CheckAll(ctx, state.UserID, resources)
	if err != nil {
		o.log.WithErr(err).Warn("freshness check failed, refreshing everything")
		needs = make(map[models.ResourceType]bool, len(resources))
		for _, r := range resources {
			needs[r] = true
		}
	}
	state.NeedsRefresh = needs
}

// executeAgents fans the required agents out in parallel and collects
// their results. Unknown kinds become failed results instead of aborting
// the turn.
func (o *Orchestrator) executeAgents(ctx context.Context, state *models.State) {
	results := make(chan models.AgentResult, len(state.RequiredAgents))
	var wg sync.WaitGroup

	for _, kind := range state.RequiredAgents {
		a, err := o.registry.Get(kind)
		if err != nil {
			results <- models.FailedResult(kind, err)
			continue
		}
		wg.Add(1)
		go func(a agent.Agent) {
			defer wg.Done()
			results <- a.Execute(ctx, state)
		}(a)
	}

	wg.Wait()
	close(results)
	for result := range results {
		state.AgentResults[result.AgentName] = result
	}
}

const chitchatSystemPrompt = `You are Jarvis, a personal assistant. Reply briefly and warmly, in the user's language. Do not invent data you do not have.`

const responseSystemPrompt = `You are Jarvis, a personal assistant. Answer the user's request using ONLY the data below. Reply in the user's language, concisely. If a data source failed, say so briefly instead of guessing.

WHAT YOU KNOW ABOUT THE USER:
%s

DATA COLLECTED FOR THIS REQUEST:
%s`

// generateResponse produces the final reply: a plain conversational turn
// for chitchat, otherwise the agent data is grounded into the prompt.
func (o *Orchestrator) generateResponse(ctx context.Context, state *models.State) error {
	system := chitchatSystemPrompt
	if len(state.AgentResults) > 0 {
		system = fmt.Sprintf(responseSystemPrompt, o.formatMemory(state), o.formatResults(state))
	}

	response, err := o.llm.GenerateWithHistory(ctx, &llm.GenerateRequest{
		Messages:          state.Messages,
		SystemInstruction: system,
		Temperature:       0.7,
		UserID:            state.UserID,
	})
	if err != nil {
		return fmt.Errorf("orchestrator: response generation: %w", err)
	}
	state.FinalResponse = response
	state.Messages = append(state.Messages, models.ChatMessage{Role: "assistant", Content: response})
	return nil
}

func (o *Orchestrator) formatMemory(state *models.State) string {
	if len(state.MemoryContext) == 0 {
		return "(nothing yet)"
	}
	return "- " + strings.Join(state.MemoryContext, "\n- ")
}

func (o *Orchestrator) formatResults(state *models.State) string {
	var b strings.Builder
	for _, kind := range state.RequiredAgents {
		result, ok := state.AgentResults[kind]
		if !ok {
			continue
		}
		if !result.Success {
			fmt.Fprintf(&b, "[%s] FAILED: %s\n", kind, result.Error)
			continue
		}
		data, err := json.MarshalIndent(result.Data, "", "  ")
		if err != nil {
			data = []byte(fmt.Sprint(result.Data))
		}
		fmt.Fprintf(&b, "[%s]\n%s\n", kind, data)
	}
	if b.Len() == 0 {
		return "(no data)"
	}
	return b.String()
}

// finishTurn persists the turn and schedules fact extraction, both in the
// background so the reply is not delayed.
func (o *Orchestrator) finishTurn(state *models.State) {
	if o.spawner == nil {
		return
	}
	userID := state.UserID
	input := state.CurrentInput
	response := state.FinalResponse
	messages := append([]models.ChatMessage{}, state.Messages...)

	o.spawner.Spawn("save-turn", func(ctx context.Context) error {
		if err := o.memory.SaveTurn(ctx, userID, "user", input); err != nil {
			return err
		}
		return o.memory.SaveTurn(ctx, userID, "assistant", response)
	})

	if o.extractor != nil {
		o.spawner.Spawn("extract-facts", func(ctx context.Context) error {
			return o.extractor.ExtractAndSave(ctx, userID, messages)
		})
	}
}
