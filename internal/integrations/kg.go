package integrations

import (
	"context"
	"fmt"
	"strings"

	"jarvis/internal/database/neo4j"
)

// KgClient 是知识图谱的只读适配器：按查询词查找用户已知的实体及其
// 关系。实体抽取和写入属于后台管道，不在这里。
type KgClient struct {
	db *neo4j.Neo4jClient
}

// NewKgClient 创建一个新的知识图谱客户端。
func NewKgClient(db *neo4j.Neo4jClient) *KgClient {
	return &KgClient{db: db}
}

const entityQuery = `
MATCH (e:Entity {user_id: $userID})
WHERE any(token IN $tokens WHERE toLower(e.name) CONTAINS token)
OPTIONAL MATCH (e)-[r]->(other:Entity {user_id: $userID})
RETURN e.name AS name, e.kind AS kind,
       collect(type(r) + " " + other.name)[..5] AS relations
LIMIT $limit`

// RelevantEntities 返回与查询词相关的实体描述行，供提示词拼装使用。
func (k *KgClient) RelevantEntities(ctx context.Context, userID, query string, limit int) ([]string, error) {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	records, err := k.db.ReadCypherQuery(ctx, entityQuery, map[string]interface{}{
		"userID": userID,
		"tokens": tokens,
		"limit":  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("kg lookup failed: %w", err)
	}

	var lines []string
	for _, record := range records {
		name, _ := record.Get("name")
		kind, _ := record.Get("kind")
		relations, _ := record.Get("relations")

		line := fmt.Sprintf("%v (%v)", name, kind)
		if rels, ok := relations.([]interface{}); ok && len(rels) > 0 {
			parts := make([]string, 0, len(rels))
			for _, r := range rels {
				parts = append(parts, fmt.Sprint(r))
			}
			line += ": " + strings.Join(parts, ", ")
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// queryTokens 把查询切成小写词元，丢弃太短的词。
func queryTokens(query string) []string {
	var tokens []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		if len([]rune(f)) >= 3 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
