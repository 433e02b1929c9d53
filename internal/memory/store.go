package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"jarvis/internal/database/milvus"
	"jarvis/internal/embedding"
	"jarvis/internal/models"
	"jarvis/pkg/logger"
)

// Store persists conversation turns and long-term memory facts. Fact
// metadata lives in MySQL; fact and document embeddings live in Milvus,
// joined by ID. The RAG document collection is read-only here; ingestion
// is a separate pipeline outside this system.
type Store struct {
	db       *gorm.DB
	vectors  *milvus.MilvusClient
	embedder embedding.Embedding
	factColl string
	ragColl  string
	log      *logger.Logger
}

// NewStore wires the storage backends together.
func NewStore(db *gorm.DB, vectors *milvus.MilvusClient, embedder embedding.Embedding, factColl, ragColl string, log *logger.Logger) *Store {
	return &Store{
		db:       db,
		vectors:  vectors,
		embedder: embedder,
		factColl: factColl,
		ragColl:  ragColl,
		log:      log,
	}
}

// SaveTurn appends one turn to the conversation log.
func (s *Store) SaveTurn(ctx context.Context, userID, role, content string) error {
	turn := &models.ConversationTurn{
		ID:        uuid.New().String(),
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(turn).Error; err != nil {
		return fmt.Errorf("memory: save turn: %w", err)
	}
	return nil
}

// RecentTurns returns the newest turns in chronological order.
func (s *Store) RecentTurns(ctx context.Context, userID string, limit int) ([]models.ConversationTurn, error) {
	var turns []models.ConversationTurn
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&turns).Error
	if err != nil {
		return nil, fmt.Errorf("memory: load turns: %w", err)
	}
	// reverse into chronological order
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// SaveFact embeds and persists one extracted fact.
func (s *Store) SaveFact(ctx context.Context, fact *models.MemoryFact) error {
	if fact.ID == "" {
		fact.ID = uuid.New().String()
	}
	now := time.Now()
	fact.CreatedAt = now
	fact.LastAccessedAt = now

	vector, err := s.embedder.Embed(ctx, fact.Fact)
	if err != nil {
		return fmt.Errorf("memory: embed fact: %w", err)
	}
	if err := s.vectors.Insert(ctx, s.factColl, fact.ID, fact.UserID, fact.Fact, vector); err != nil {
		return fmt.Errorf("memory: index fact: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(fact).Error; err != nil {
		return fmt.Errorf("memory: save fact: %w", err)
	}
	return nil
}

// RelevantFacts returns up to limit fact strings semantically close to the
// query, newest access time refreshed as a side effect.
func (s *Store) RelevantFacts(ctx context.Context, userID, query string, limit int) ([]string, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("memory: embed query: %w", err)
	}

	hits, err := s.vectors.Search(ctx, s.factColl, userID, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: search facts: %w", err)
	}

	facts := make([]string, 0, len(hits))
	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		facts = append(facts, hit.Text)
		ids = append(ids, hit.ID)
	}

	if len(ids) > 0 {
		// access-time touch, best effort
		if err := s.db.WithContext(ctx).Model(&models.MemoryFact{}).
			Where("id IN ?", ids).
			Update("last_accessed_at", time.Now()).Error; err != nil {
			s.log.WithErr(err).Warn("failed to touch fact access time")
		}
	}
	return facts, nil
}

// SearchDocuments runs vector retrieval over the user's RAG collection.
func (s *Store) SearchDocuments(ctx context.Context, userID, query string, limit int) ([]string, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("memory: embed query: %w", err)
	}
	hits, err := s.vectors.Search(ctx, s.ragColl, userID, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: search documents: %w", err)
	}
	docs := make([]string, 0, len(hits))
	for _, hit := range hits {
		docs = append(docs, hit.Text)
	}
	return docs, nil
}
