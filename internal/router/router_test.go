package router

import (
	"context"
	"testing"

	"jarvis/internal/models"
	"jarvis/pkg/logger"
)

// fakeEmbedder assigns each distinct text a one-hot vector, so identical
// texts have similarity 1 and distinct texts similarity 0. That makes
// routing outcomes exact in tests.
type fakeEmbedder struct {
	dims map[string]int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{dims: make(map[string]int)}
}

func (f *fakeEmbedder) vector(text string) []float32 {
	dim, ok := f.dims[text]
	if !ok {
		dim = len(f.dims)
		f.dims[text] = dim
	}
	v := make([]float32, 256)
	v[dim%256] = 1
	return v
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return f.vector(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vector(text)
	}
	return out, nil
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	r := New(newFakeEmbedder(), logger.New("test", ""))
	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return r
}

func TestRouteExactExamplePhrase(t *testing.T) {
	r := newTestRouter(t)

	intent, confidence, err := r.Route(context.Background(), "ciao", 0.75)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if intent != models.IntentChitchat {
		t.Errorf("Route(ciao) intent = %q, expected chitchat", intent)
	}
	if confidence < 0.99 {
		t.Errorf("Route(ciao) confidence = %v, expected ~1.0", confidence)
	}
}

func TestRouteActionPhrase(t *testing.T) {
	r := newTestRouter(t)

	intent, _, err := r.Route(context.Background(), "controlla le email", 0.75)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if intent != "email_read" {
		t.Errorf("Route() intent = %q, expected email_read", intent)
	}

	agents := r.RequiredAgents(intent)
	if len(agents) != 1 || agents[0] != models.AgentEmail {
		t.Errorf("RequiredAgents(email_read) = %v, expected [email]", agents)
	}
}

func TestRouteBelowThresholdFallsToComplex(t *testing.T) {
	r := newTestRouter(t)

	intent, confidence, err := r.Route(context.Background(), "organizza il viaggio e avvisa il team", 0.75)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if intent != models.IntentComplex {
		t.Errorf("Route() intent = %q, expected complex for an unmatched query", intent)
	}
	if confidence >= 0.75 {
		t.Errorf("Route() confidence = %v, expected below threshold", confidence)
	}
}

func TestRouteIsDeterministic(t *testing.T) {
	r := newTestRouter(t)
	ctx := context.Background()

	first, firstScore, err := r.Route(ctx, "dammi gli eventi", 0.75)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		intent, score, err := r.Route(ctx, "dammi gli eventi", 0.75)
		if err != nil {
			t.Fatalf("Route() error = %v", err)
		}
		if intent != first || score != firstScore {
			t.Fatalf("Route() changed across calls: (%q, %v) then (%q, %v)", first, firstScore, intent, score)
		}
	}
}

func TestRequiredAgentsForSpecialIntents(t *testing.T) {
	r := newTestRouter(t)

	for _, intent := range []string{models.IntentChitchat, models.IntentComplex, models.IntentUnknown, "nonsense"} {
		if agents := r.RequiredAgents(intent); len(agents) != 0 {
			t.Errorf("RequiredAgents(%q) = %v, expected none", intent, agents)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	if sim := cosineSimilarity(a, a); sim < 0.999 {
		t.Errorf("cosineSimilarity(a, a) = %v, expected 1", sim)
	}
	if sim := cosineSimilarity(a, b); sim != 0 {
		t.Errorf("cosineSimilarity(orthogonal) = %v, expected 0", sim)
	}
	if sim := cosineSimilarity(a, []float32{1, 0, 0}); sim != 0 {
		t.Errorf("cosineSimilarity(mismatched lengths) = %v, expected 0", sim)
	}
	if sim := cosineSimilarity([]float32{0, 0}, []float32{0, 0}); sim != 0 {
		t.Errorf("cosineSimilarity(zero vectors) = %v, expected 0", sim)
	}
}
