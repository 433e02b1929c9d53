package agent

import (
	"context"
	"fmt"

	"jarvis/internal/cache"
	"jarvis/internal/models"
	"jarvis/pkg/logger"
)

// CoreFunc is an agent's domain logic: fetch or act, return structured
// data, or fail with an error.
type CoreFunc func(ctx context.Context, state *models.State) (interface{}, error)

// Base wraps an agent's core logic with the shared execute behavior:
// transparent freshness caching and failure isolation. Concrete agents are
// constructed with New and differ only in their core function.
type Base struct {
	kind      models.AgentKind
	resource  models.ResourceType
	freshness *cache.Checker
	log       *logger.Logger
	core      CoreFunc
}

// New builds an agent. Pass an empty resource type to opt out of caching.
func New(kind models.AgentKind, resource models.ResourceType, freshness *cache.Checker, log *logger.Logger, core CoreFunc) *Base {
	return &Base{
		kind:      kind,
		resource:  resource,
		freshness: freshness,
		log:       log.WithField("agent", string(kind)),
		core:      core,
	}
}

func (b *Base) Kind() models.AgentKind { return b.kind }

func (b *Base) ResourceType() models.ResourceType { return b.resource }

// Execute applies the freshness cache around the core logic:
//
//  1. uncacheable agents run their core directly;
//  2. write intents always reach the core and, on success, invalidate the
//     resource's cached reads instead of populating them;
//  3. when the state says the resource does not need a refresh and a live
//     entry exists, the cached payload is returned without running the core;
//  4. otherwise the core runs and its result is cached exactly once.
//
// Panics and errors are both converted to failed results; Execute never
// raises out of an agent.
func (b *Base) Execute(ctx context.Context, state *models.State) (result models.AgentResult) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithPayload(map[string]interface{}{"panic": fmt.Sprint(r)}).Error("agent panicked")
			result = models.FailedResult(b.kind, fmt.Errorf("agent %s panicked: %v", b.kind, r))
		}
	}()

	if b.resource == "" {
		return b.run(ctx, state)
	}

	if models.IsWriteIntent(state.Intent) {
		result = b.run(ctx, state)
		if result.Success {
			if err := b.freshness.Invalidate(ctx, b.resource, state.UserID); err != nil {
				b.log.WithErr(err).Warn("cache invalidation failed after write")
			}
		}
		return result
	}

	// Missing entries in NeedsRefresh default to true: no freshness
	// information means refresh.
	needsRefresh, known := state.NeedsRefresh[b.resource]
	if known && !needsRefresh {
		cached, err := b.freshness.GetCached(ctx, b.resource, state.UserID, "")
		if err != nil {
			b.log.WithErr(err).Warn("cache read failed, falling through to core")
		} else if cached != nil {
			b.log.Debug("serving cached data")
			return models.AgentResult{AgentName: b.kind, Success: true, Data: cached}
		}
	}

	result = b.run(ctx, state)
	if result.Success {
		if err := b.freshness.SetCache(ctx, b.resource, state.UserID, result.Data, ""); err != nil {
			b.log.WithErr(err).Warn("cache write failed")
		}
	}
	return result
}

func (b *Base) run(ctx context.Context, state *models.State) models.AgentResult {
	data, err := b.core(ctx, state)
	if err != nil {
		b.log.WithErr(err).Error("agent execution failed")
		return models.FailedResult(b.kind, err)
	}
	return models.AgentResult{AgentName: b.kind, Success: true, Data: data}
}
