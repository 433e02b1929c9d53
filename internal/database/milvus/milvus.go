package milvus

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"jarvis/internal/config"
)

var (
	instance *MilvusClient
	once     sync.Once
	initErr  error
)

// MilvusClient 包含了 Milvus 客户端实例和相关配置。
// 系统中有两个集合：记忆事实集合和 RAG 文档集合，schema 相同
// (id 主键、user_id、text、embedding)，都按余弦相似度建索引。
type MilvusClient struct {
	Client client.Client
	Config *config.MilvusConfig
}

// GetClient 使用单例模式创建并返回一个 Milvus 客户端实例。
func GetClient(ctx context.Context, cfg *config.MilvusConfig) (*MilvusClient, error) {
	once.Do(func() {
		c, err := client.NewClient(ctx, client.Config{Address: cfg.Address})
		if err != nil {
			initErr = fmt.Errorf("无法连接到 Milvus: %w", err)
			return
		}
		log.Println("✅ 成功连接到 Milvus!")
		instance = &MilvusClient{Client: c, Config: cfg}
	})
	return instance, initErr
}

// Close 安全地关闭与 Milvus 的连接。
func (c *MilvusClient) Close() {
	if c.Client != nil {
		c.Client.Close()
		log.Println("ℹ️ 已安全关闭 Milvus 连接。")
	}
}

// HealthCheck 检查 Milvus 连接的健康状况。
func (c *MilvusClient) HealthCheck(ctx context.Context) error {
	if c.Client == nil {
		return fmt.Errorf("Milvus client is nil")
	}
	if _, err := c.Client.ListCollections(ctx); err != nil {
		return fmt.Errorf("Milvus health check failed: %w", err)
	}
	return nil
}

// EnsureCollection 确保指定集合存在；不存在则按统一 schema 创建并建立
// 余弦相似度索引。
func (c *MilvusClient) EnsureCollection(ctx context.Context, name string) error {
	has, err := c.Client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("无法检查集合 '%s': %w", name, err)
	}
	if has {
		return nil
	}

	schema := entity.NewSchema().
		WithName(name).
		WithField(entity.NewField().WithName("id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64).WithIsPrimaryKey(true)).
		WithField(entity.NewField().WithName("user_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(128)).
		WithField(entity.NewField().WithName("text").WithDataType(entity.FieldTypeVarChar).WithMaxLength(4096)).
		WithField(entity.NewField().WithName("embedding").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(c.Config.Dim)))

	if err := c.Client.CreateCollection(ctx, schema, 1); err != nil {
		return fmt.Errorf("创建集合 '%s' 失败: %w", name, err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.COSINE, 128)
	if err != nil {
		return fmt.Errorf("构建索引参数失败: %w", err)
	}
	if err := c.Client.CreateIndex(ctx, name, "embedding", idx, false); err != nil {
		return fmt.Errorf("为集合 '%s' 创建索引失败: %w", name, err)
	}

	log.Printf("✅ 成功创建集合: %s", name)
	return nil
}

// Insert 向指定集合插入一条带向量的文本记录。
func (c *MilvusClient) Insert(ctx context.Context, collName, id, userID, text string, vector []float32) error {
	idCol := entity.NewColumnVarChar("id", []string{id})
	userCol := entity.NewColumnVarChar("user_id", []string{userID})
	textCol := entity.NewColumnVarChar("text", []string{text})
	vecCol := entity.NewColumnFloatVector("embedding", c.Config.Dim, [][]float32{vector})

	if _, err := c.Client.Insert(ctx, collName, "", idCol, userCol, textCol, vecCol); err != nil {
		return fmt.Errorf("failed to insert data into Milvus: %w", err)
	}
	return nil
}

// SearchHit 是一次向量检索命中的记录。
type SearchHit struct {
	ID    string
	Text  string
	Score float32
}

// Search 在指定集合中按用户过滤执行向量相似度搜索，按相似度降序
// 返回至多 topK 条命中。
func (c *MilvusClient) Search(ctx context.Context, collName, userID string, vector []float32, topK int) ([]SearchHit, error) {
	if err := c.Client.LoadCollection(ctx, collName, false); err != nil {
		return nil, fmt.Errorf("加载集合 '%s' 失败: %w", collName, err)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(10)
	expr := fmt.Sprintf("user_id == \"%s\"", userID)

	results, err := c.Client.Search(
		ctx,
		collName,
		nil,
		expr,
		[]string{"text"},
		[]entity.Vector{entity.FloatVector(vector)},
		"embedding",
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("在集合 '%s' 中搜索失败: %w", collName, err)
	}

	var hits []SearchHit
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			id, _ := result.IDs.GetAsString(i)
			text := ""
			if len(result.Fields) > 0 {
				text, _ = result.Fields[0].GetAsString(i)
			}
			hits = append(hits, SearchHit{ID: id, Text: text, Score: result.Scores[i]})
		}
	}
	return hits, nil
}

// Delete 按 ID 删除指定集合中的记录。
func (c *MilvusClient) Delete(ctx context.Context, collName, id string) error {
	expr := fmt.Sprintf("id == \"%s\"", id)
	if err := c.Client.Delete(ctx, collName, "", expr); err != nil {
		return fmt.Errorf("failed to delete data from Milvus: %w", err)
	}
	return nil
}
