package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"clarvis-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "workflow_run_events"

type envelope struct {
	Origin     string          `json:"origin"`
	InstanceID string          `json:"instance_id"`
	Terminal   bool            `json:"terminal"`
	Message    json.RawMessage `json:"message"`
}

// Hub fans run progress out to the watchers of each run. With redis, updates
// produced on another server instance reach local watchers too.
type Hub struct {
	// Registered clients: run instance id -> watchers
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client
	// closed when Run returns
	done chan struct{}

	mu sync.RWMutex

	rdb    *redis.Client
	origin string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		origin:     uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.InstanceID] = append(h.clients[client.InstanceID], client)
			h.mu.Unlock()
			h.logger.Debug("Hub", "Watcher registered", map[string]interface{}{"instance_id": client.InstanceID})
		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

// attach hands the client to Run. It reports false once the hub has stopped.
func (h *Hub) attach(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// closeAll ends every watcher's write pump.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, clients := range h.clients {
		for _, c := range clients {
			close(c.Send)
		}
		delete(h.clients, id)
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.clients[client.InstanceID]
	for i, c := range clients {
		if c == client {
			h.clients[client.InstanceID] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.InstanceID]) == 0 {
		delete(h.clients, client.InstanceID)
	}
}

// Watchers reports how many local clients watch the run.
func (h *Hub) Watchers(instanceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[instanceID])
}

// Publish delivers data to the run's watchers. Terminal updates close them.
func (h *Hub) Publish(instanceID string, data []byte, terminal bool) {
	h.deliver(instanceID, data, terminal)

	if h.rdb != nil {
		payload, _ := json.Marshal(envelope{Origin: h.origin, InstanceID: instanceID, Terminal: terminal, Message: data})
		if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Redis publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (h *Hub) deliver(instanceID string, data []byte, terminal bool) {
	var drop []*Client
	h.mu.RLock()
	for _, client := range h.clients[instanceID] {
		select {
		case client.Send <- data:
			if terminal {
				drop = append(drop, client)
			}
		default:
			h.logger.Warn("Hub", "Watcher buffer full, dropping watcher", map[string]interface{}{"instance_id": instanceID})
			drop = append(drop, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range drop {
		h.remove(client)
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			h.logger.Warn("Hub", "Redis message parse error", map[string]interface{}{"error": err.Error()})
			continue
		}
		if env.Origin == h.origin {
			continue
		}
		h.deliver(env.InstanceID, env.Message, env.Terminal)
	}
}
