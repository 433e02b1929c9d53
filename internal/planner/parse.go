package planner

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/tidwall/gjson"

	"jarvis/internal/models"
)

// ErrNoParse is returned when every parse strategy failed on a response.
var ErrNoParse = errors.New("planner: no strategy could parse the response")

// rawPlan mirrors the JSON shape the model is asked to produce.
type rawPlan struct {
	Steps []struct {
		Agents []string `json:"agents"`
		Goal   string   `json:"goal"`
	} `json:"steps"`
	Reasoning string `json:"reasoning"`
}

// parseStrategy attempts to extract plan steps from a raw model response.
type parseStrategy func(response string) ([]models.PlanStep, error)

// parseStrategies are tried in order; the first success wins. The last one
// is a lexical fallback that only recovers agent names, so a degraded plan
// beats no plan.
var parseStrategies = []parseStrategy{
	parseStrictJSON,
	parseFencedJSON,
	parseKeywords,
}

// parsePlan runs the strategies in order and returns the first success.
func parsePlan(response string) ([]models.PlanStep, error) {
	for _, strategy := range parseStrategies {
		steps, err := strategy(response)
		if err == nil && len(steps) > 0 {
			return steps, nil
		}
	}
	return nil, ErrNoParse
}

// parseStrictJSON expects the whole response to be the plan document.
func parseStrictJSON(response string) ([]models.PlanStep, error) {
	var raw rawPlan
	if err := json.Unmarshal([]byte(strings.TrimSpace(response)), &raw); err != nil {
		return nil, err
	}
	return stepsFromRaw(raw)
}

// parseFencedJSON tolerates markdown fences and leading prose around the
// JSON document.
func parseFencedJSON(response string) ([]models.PlanStep, error) {
	cleaned := strings.TrimSpace(response)
	if i := strings.Index(cleaned, "```"); i >= 0 {
		cleaned = cleaned[i+3:]
		cleaned = strings.TrimPrefix(cleaned, "json")
		if j := strings.Index(cleaned, "```"); j >= 0 {
			cleaned = cleaned[:j]
		}
	}
	cleaned = strings.TrimSpace(cleaned)

	result := gjson.Get(cleaned, "steps")
	if !result.Exists() {
		// Some responses nest the document under a key or prepend text;
		// scan for the first object that has a steps array.
		if start := strings.Index(cleaned, "{"); start >= 0 {
			result = gjson.Get(cleaned[start:], "steps")
		}
	}
	if !result.IsArray() {
		return nil, errors.New("planner: no steps array found")
	}

	var steps []models.PlanStep
	result.ForEach(func(_, step gjson.Result) bool {
		var agents []models.AgentKind
		step.Get("agents").ForEach(func(_, a gjson.Result) bool {
			if kind, ok := models.ParseAgentKind(a.String()); ok {
				agents = append(agents, kind)
			}
			return true
		})
		steps = append(steps, models.PlanStep{Agents: agents, Goal: step.Get("goal").String()})
		return true
	})
	if len(steps) == 0 {
		return nil, errors.New("planner: empty steps array")
	}
	return steps, nil
}

// parseKeywords scans the raw text for known agent names. Everything lands
// in a single parallel step because lexical order carries no sequencing.
func parseKeywords(response string) ([]models.PlanStep, error) {
	lower := strings.ToLower(response)
	var agents []models.AgentKind
	for _, kind := range models.AllAgentKinds {
		if strings.Contains(lower, string(kind)) {
			agents = append(agents, kind)
		}
	}
	if len(agents) == 0 {
		return nil, errors.New("planner: no agent names in response")
	}
	return []models.PlanStep{{Agents: agents, Goal: "recovered from unparseable plan"}}, nil
}

func stepsFromRaw(raw rawPlan) ([]models.PlanStep, error) {
	if len(raw.Steps) == 0 {
		return nil, errors.New("planner: plan has no steps")
	}
	steps := make([]models.PlanStep, 0, len(raw.Steps))
	for _, s := range raw.Steps {
		var agents []models.AgentKind
		for _, name := range s.Agents {
			if kind, ok := models.ParseAgentKind(name); ok {
				agents = append(agents, kind)
			}
		}
		steps = append(steps, models.PlanStep{Agents: agents, Goal: s.Goal})
	}
	return steps, nil
}
