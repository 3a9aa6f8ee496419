package memory

import (
	"time"

	"clarvis-be/internal/entity"

	"github.com/patrickmn/go-cache"
)

// AgentStateCache fronts the agent_states table for hot agents.
type AgentStateCache struct {
	cache *cache.Cache
}

func NewAgentStateCache() *AgentStateCache {
	// Entries expire after an hour, purged every 10 minutes
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &AgentStateCache{
		cache: c,
	}
}

func (r *AgentStateCache) Save(state *entity.AgentState) {
	cp := *state
	r.cache.Set(state.AgentId, &cp, cache.DefaultExpiration)
}

func (r *AgentStateCache) Get(agentId string) (*entity.AgentState, bool) {
	if x, found := r.cache.Get(agentId); found {
		cp := *x.(*entity.AgentState)
		return &cp, true
	}
	return nil, false
}

func (r *AgentStateCache) Delete(agentId string) {
	r.cache.Delete(agentId)
}
