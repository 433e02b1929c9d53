package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"jarvis/internal/agent"
	"jarvis/internal/config"
	"jarvis/internal/llm"
	"jarvis/internal/models"
	"jarvis/pkg/logger"
)

type fakeRouter struct {
	intent     string
	confidence float64
	agents     map[string][]models.AgentKind
}

func (f *fakeRouter) Route(_ context.Context, _ string, _ float64) (string, float64, error) {
	return f.intent, f.confidence, nil
}

func (f *fakeRouter) RequiredAgents(intent string) []models.AgentKind {
	return f.agents[intent]
}

type fakePlanner struct {
	calls  int
	agents []models.AgentKind
	steps  []models.PlanStep
}

func (f *fakePlanner) Plan(_ context.Context, _, _ string, _ []models.ChatMessage) ([]models.AgentKind, []models.PlanStep, error) {
	f.calls++
	return f.agents, f.steps, nil
}

type fakeFreshness struct {
	calls int
	needs map[models.ResourceType]bool
	err   error
}

func (f *fakeFreshness) CheckAll(_ context.Context, _ string, resources []models.ResourceType) (map[models.ResourceType]bool, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.needs, nil
}

type fakeMemory struct {
	facts []string
	saved []string
}

func (f *fakeMemory) RelevantFacts(_ context.Context, _, _ string, _ int) ([]string, error) {
	return f.facts, nil
}

func (f *fakeMemory) SaveTurn(_ context.Context, _, role, content string) error {
	f.saved = append(f.saved, role+":"+content)
	return nil
}

type fakeLLM struct {
	response   string
	lastSystem string
}

func (f *fakeLLM) Generate(_ context.Context, _ *llm.GenerateRequest) (string, error) {
	return f.response, nil
}

func (f *fakeLLM) GenerateWithHistory(_ context.Context, req *llm.GenerateRequest) (string, error) {
	f.lastSystem = req.SystemInstruction
	return f.response, nil
}

// stubAgent counts executions and returns a fixed result.
type stubAgent struct {
	kind     models.AgentKind
	resource models.ResourceType
	calls    int
	result   models.AgentResult
}

func (s *stubAgent) Kind() models.AgentKind             { return s.kind }
func (s *stubAgent) ResourceType() models.ResourceType  { return s.resource }
func (s *stubAgent) Execute(_ context.Context, _ *models.State) models.AgentResult {
	s.calls++
	return s.result
}

func okAgent(kind models.AgentKind, resource models.ResourceType, data interface{}) *stubAgent {
	return &stubAgent{
		kind:     kind,
		resource: resource,
		result:   models.AgentResult{AgentName: kind, Success: true, Data: data},
	}
}

type fixture struct {
	router    *fakeRouter
	planner   *fakePlanner
	freshness *fakeFreshness
	memory    *fakeMemory
	llm       *fakeLLM
	calendar  *stubAgent
	web       *stubAgent
	orch      *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		router: &fakeRouter{
			agents: map[string][]models.AgentKind{
				"calendar_read": {models.AgentCalendar},
			},
		},
		planner:   &fakePlanner{},
		freshness: &fakeFreshness{needs: map[models.ResourceType]bool{models.ResourceCalendar: true}},
		memory:    &fakeMemory{},
		llm:       &fakeLLM{response: "ecco la risposta"},
		calendar:  okAgent(models.AgentCalendar, models.ResourceCalendar, map[string]interface{}{"events": []string{"standup"}}),
		web:       okAgent(models.AgentWeb, models.ResourceWeb, "sunny"),
	}
	registry, err := agent.NewRegistry(f.calendar, f.web)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	f.orch = New(f.router, f.planner, f.freshness, registry, f.memory, nil, f.llm, nil,
		config.OrchestratorConfig{RouterThreshold: 0.75, PlannerMaxSteps: 3, MemoryLimit: 5},
		logger.New("test", ""))
	return f
}

func TestChitchatSkipsAgentsAndFreshness(t *testing.T) {
	f := newFixture(t)
	f.router.intent = models.IntentChitchat
	f.router.confidence = 0.95

	state, err := f.orch.ProcessMessage(context.Background(), "u1", "ciao", nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if state.FinalResponse != "ecco la risposta" {
		t.Errorf("response = %q", state.FinalResponse)
	}
	if f.planner.calls != 0 {
		t.Error("planner consulted for confident chitchat")
	}
	if f.freshness.calls != 0 {
		t.Error("freshness checked with no agents required")
	}
	if f.calendar.calls != 0 || f.web.calls != 0 {
		t.Error("agents executed for chitchat")
	}
}

func TestActionIntentExecutesAgents(t *testing.T) {
	f := newFixture(t)
	f.router.intent = "calendar_read"
	f.router.confidence = 0.92

	state, err := f.orch.ProcessMessage(context.Background(), "u1", "cosa ho domani", nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if f.planner.calls != 0 {
		t.Error("planner consulted despite a confident route")
	}
	if f.freshness.calls != 1 {
		t.Errorf("freshness checked %d times, expected 1", f.freshness.calls)
	}
	if f.calendar.calls != 1 {
		t.Errorf("calendar agent ran %d times, expected 1", f.calendar.calls)
	}
	result, ok := state.AgentResults[models.AgentCalendar]
	if !ok || !result.Success {
		t.Fatalf("calendar result missing or failed: %+v", result)
	}
	if !strings.Contains(f.llm.lastSystem, "calendar") {
		t.Error("response prompt does not ground the calendar data")
	}
}

func TestComplexIntentConsultsPlanner(t *testing.T) {
	f := newFixture(t)
	f.router.intent = models.IntentComplex
	f.router.confidence = 0.4
	f.planner.agents = []models.AgentKind{models.AgentWeb}
	f.planner.steps = []models.PlanStep{{Agents: []models.AgentKind{models.AgentWeb}, Goal: "search"}}

	state, err := f.orch.ProcessMessage(context.Background(), "u1", "organizza tutto", nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if f.planner.calls != 1 {
		t.Errorf("planner consulted %d times, expected 1", f.planner.calls)
	}
	if state.Intent != models.IntentAction {
		t.Errorf("intent = %q, expected action after planning", state.Intent)
	}
	if f.web.calls != 1 {
		t.Errorf("web agent ran %d times, expected 1", f.web.calls)
	}
	if len(state.PlanSteps) != 1 {
		t.Errorf("plan steps = %v", state.PlanSteps)
	}
}

func TestEmptyPlanFallsBackToChitchat(t *testing.T) {
	f := newFixture(t)
	f.router.intent = models.IntentComplex
	f.router.confidence = 0.3

	state, err := f.orch.ProcessMessage(context.Background(), "u1", "boh", nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if state.Intent != models.IntentChitchat {
		t.Errorf("intent = %q, expected chitchat fallback", state.Intent)
	}
	if f.calendar.calls != 0 && f.web.calls != 0 {
		t.Error("agents ran despite an empty plan")
	}
}

func TestBorderlineConfidenceConsultsPlanner(t *testing.T) {
	f := newFixture(t)
	f.router.intent = "calendar_read"
	f.router.confidence = 0.76 // above routing threshold, below override
	f.planner.agents = []models.AgentKind{models.AgentCalendar, models.AgentWeb}

	_, err := f.orch.ProcessMessage(context.Background(), "u1", "eventi e meteo", nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if f.planner.calls != 1 {
		t.Errorf("planner consulted %d times, expected 1 for a borderline route", f.planner.calls)
	}
	if f.calendar.calls != 1 || f.web.calls != 1 {
		t.Errorf("agent calls = calendar:%d web:%d, expected both", f.calendar.calls, f.web.calls)
	}
}

func TestBorderlineChitchatConsultsPlanner(t *testing.T) {
	f := newFixture(t)
	f.router.intent = models.IntentChitchat
	f.router.confidence = 0.76 // above the routing threshold, below the override
	f.planner.agents = []models.AgentKind{models.AgentCalendar}

	state, err := f.orch.ProcessMessage(context.Background(), "u1", "mi sa che domani vediamo il dentista", nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if f.planner.calls != 1 {
		t.Errorf("planner consulted %d times, expected 1 for low-confidence chitchat", f.planner.calls)
	}
	if state.Intent != models.IntentAction || f.calendar.calls != 1 {
		t.Errorf("intent = %q, calendar calls = %d", state.Intent, f.calendar.calls)
	}
}

func TestBorderlineChitchatEmptyPlanStaysChitchat(t *testing.T) {
	f := newFixture(t)
	f.router.intent = models.IntentChitchat
	f.router.confidence = 0.76

	state, err := f.orch.ProcessMessage(context.Background(), "u1", "eh già, domani", nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if f.planner.calls != 1 {
		t.Errorf("planner consulted %d times, expected 1", f.planner.calls)
	}
	if state.Intent != models.IntentChitchat {
		t.Errorf("intent = %q, expected chitchat when the planner sees no work", state.Intent)
	}
	if f.calendar.calls != 0 || f.web.calls != 0 {
		t.Error("agents executed despite an empty plan")
	}
}

func TestChitchatWithActionKeywordConsultsPlanner(t *testing.T) {
	f := newFixture(t)
	f.router.intent = models.IntentChitchat
	f.router.confidence = 0.9
	f.planner.agents = []models.AgentKind{models.AgentCalendar}

	state, err := f.orch.ProcessMessage(context.Background(), "u1", "grazie, ora crea l'evento", nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if f.planner.calls != 1 {
		t.Errorf("planner consulted %d times, expected 1 for hidden action verbs", f.planner.calls)
	}
	if state.Intent != models.IntentAction || f.calendar.calls != 1 {
		t.Errorf("intent = %q, calendar calls = %d", state.Intent, f.calendar.calls)
	}
}

func TestPureChitchatKeepsNoAgents(t *testing.T) {
	f := newFixture(t)
	f.router.intent = models.IntentChitchat
	f.router.confidence = 0.9

	state, err := f.orch.ProcessMessage(context.Background(), "u1", "buongiorno!", nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if f.planner.calls != 0 {
		t.Errorf("planner consulted for a pure greeting")
	}
	if state.Intent != models.IntentChitchat {
		t.Errorf("intent = %q", state.Intent)
	}
}

func TestFreshnessFailureFailsOpen(t *testing.T) {
	f := newFixture(t)
	f.router.intent = "calendar_read"
	f.router.confidence = 0.92
	f.freshness.err = errors.New("redis down")

	state, err := f.orch.ProcessMessage(context.Background(), "u1", "cosa ho domani", nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if !state.NeedsRefresh[models.ResourceCalendar] {
		t.Error("cache failure did not mark the resource for refresh")
	}
	if f.calendar.calls != 1 {
		t.Error("agent did not run after a cache failure")
	}
}

func TestFailedAgentDoesNotAbortTurn(t *testing.T) {
	f := newFixture(t)
	f.router.intent = models.IntentComplex
	f.planner.agents = []models.AgentKind{models.AgentCalendar, models.AgentWeb}
	f.calendar.result = models.FailedResult(models.AgentCalendar, errors.New("google down"))

	state, err := f.orch.ProcessMessage(context.Background(), "u1", "eventi e meteo", nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if state.AgentResults[models.AgentCalendar].Success {
		t.Error("calendar failure not recorded")
	}
	if !state.AgentResults[models.AgentWeb].Success {
		t.Error("web success lost because a sibling failed")
	}
	if !strings.Contains(f.llm.lastSystem, "FAILED") {
		t.Error("response prompt does not surface the failure")
	}
}

func TestMemoryContextReachesPrompt(t *testing.T) {
	f := newFixture(t)
	f.router.intent = "calendar_read"
	f.router.confidence = 0.92
	f.memory.facts = []string{"prefers morning meetings"}

	_, err := f.orch.ProcessMessage(context.Background(), "u1", "organizza la riunione", nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if !strings.Contains(f.llm.lastSystem, "prefers morning meetings") {
		t.Error("recalled fact missing from the response prompt")
	}
}
