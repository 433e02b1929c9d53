package router

import (
	"context"
	"fmt"
	"math"

	"jarvis/internal/embedding"
	"jarvis/internal/models"
	"jarvis/pkg/logger"
)

// intentExample groups one intent label with its curated example phrases.
// A slice keeps the insertion order deterministic, which fixes tie-breaking.
type intentExample struct {
	intent   string
	examples []string
}

// intentExamples is the curated routing table. Matching is by embedding
// similarity, so the phrases stay in the language users actually speak.
var intentExamples = []intentExample{
	{"calendar_read", []string{
		"dammi gli eventi",
		"eventi di lunedì",
		"cosa ho lunedì",
		"appuntamenti per lunedì",
		"agenda della settimana",
		"calendario di domani",
		"che impegni ho oggi",
		"mostrami il calendario",
		"cosa ho in agenda domani",
		"quali sono i miei appuntamenti",
		"ho riunioni questa settimana",
	}},
	{models.IntentCalendarWrite, []string{
		"crea un evento",
		"aggiungi un appuntamento",
		"schedula una riunione",
		"sposta l'evento",
		"cancella l'appuntamento",
	}},
	{"email_read", []string{
		"controlla le email",
		"ho messaggi nuovi",
		"mostrami la posta",
		"leggi le email",
		"ci sono email importanti",
	}},
	{models.IntentEmailWrite, []string{
		"scrivi una email",
		"manda un messaggio a",
		"rispondi all'email",
		"invia una mail",
		"componi un'email",
	}},
	{"web_search", []string{
		"che tempo fa",
		"meteo oggi",
		"previsioni meteo",
		"temperatura a",
		"cerca su internet",
		"cerca informazioni su",
		"cosa sai di",
		"trova notizie su",
		"ricerca web",
		"cerca online",
	}},
	{"rag_query", []string{
		"cerca nei miei documenti",
		"cosa c'è nei file",
		"trova nel knowledge base",
	}},
	{"task_read", []string{
		"mostrami le task",
		"cosa ho da fare",
		"attività in scadenza",
		"stato dei progetti",
	}},
	{models.IntentChitchat, []string{
		"ciao",
		"come stai",
		"grazie",
		"buongiorno",
		"ok perfetto",
	}},
}

// intentAgents maps each routable intent to the agents it requires.
var intentAgents = map[string][]models.AgentKind{
	"calendar_read":            {models.AgentCalendar},
	models.IntentCalendarWrite: {models.AgentCalendar},
	"email_read":               {models.AgentEmail},
	models.IntentEmailWrite:    {models.AgentEmail},
	"web_search":               {models.AgentWeb},
	"rag_query":                {models.AgentRag},
	"task_read":                {models.AgentTask},
	models.IntentChitchat:      {},
	models.IntentComplex:       {},
	models.IntentUnknown:       {},
}

// Router routes a query to the nearest intent by cosine similarity against
// a table of example embeddings computed once at startup. Below the
// confidence threshold it reports "complex", which triggers the planner.
type Router struct {
	embedder embedding.Embedding
	log      *logger.Logger

	// read-only after Initialize
	table []intentVectors
}

type intentVectors struct {
	intent     string
	embeddings [][]float32
}

// New creates an uninitialized router.
func New(embedder embedding.Embedding, log *logger.Logger) *Router {
	return &Router{embedder: embedder, log: log}
}

// Initialize embeds every example phrase. Call once at process start; the
// table is read-only afterwards and safe for concurrent Route calls.
func (r *Router) Initialize(ctx context.Context) error {
	if r.table != nil {
		return nil
	}
	r.log.Info("initializing semantic router")

	table := make([]intentVectors, 0, len(intentExamples))
	for _, ie := range intentExamples {
		embeddings, err := r.embedder.EmbedBatch(ctx, ie.examples)
		if err != nil {
			return fmt.Errorf("router: embed examples for %q: %w", ie.intent, err)
		}
		table = append(table, intentVectors{intent: ie.intent, embeddings: embeddings})
	}
	r.table = table

	r.log.Info("semantic router initialized")
	return nil
}

// Route returns the best-matching intent and its confidence in [-1, 1].
// A best score below threshold yields ("complex", score).
func (r *Router) Route(ctx context.Context, query string, threshold float64) (string, float64, error) {
	if r.table == nil {
		if err := r.Initialize(ctx); err != nil {
			return "", 0, err
		}
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return "", 0, fmt.Errorf("router: embed query: %w", err)
	}

	bestIntent := models.IntentUnknown
	bestScore := 0.0

	for _, iv := range r.table {
		// Per-intent score is the max similarity over its examples.
		for _, emb := range iv.embeddings {
			if sim := cosineSimilarity(queryVec, emb); sim > bestScore {
				bestScore = sim
				bestIntent = iv.intent
			}
		}
	}

	if bestScore < threshold {
		return models.IntentComplex, bestScore, nil
	}

	r.log.WithPayload(map[string]interface{}{
		"intent": bestIntent,
		"score":  bestScore,
	}).Debug("routed query")
	return bestIntent, bestScore, nil
}

// RequiredAgents returns the agents an intent needs. Unrecognized intents
// map to none, which the orchestrator treats as chitchat.
func (r *Router) RequiredAgents(intent string) []models.AgentKind {
	return intentAgents[intent]
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
