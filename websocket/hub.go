package websocket

import (
	"log"
	"sync"

	"glowworm/types"
)

// AllTasksChannel is the registration key for consumers that want every
// task's progress frames.
const AllTasksChannel = "all"

// Hub interface defines the methods for managing progress subscribers
type Hub interface {
	Run()
	BroadcastProgress(progress types.RegenerationProgress)
	RegisterClient(client *Client)
	UnregisterClient(client *Client)
}

// hub maintains the set of active subscribers and fans progress frames
// out to them
type hub struct {
	// Registered subscribers mapped by task ID
	clients map[string]map[*Client]bool

	// Broadcast channel for progress frames
	broadcast chan types.ProgressUpdate

	// Register requests from subscribers
	register chan *Client

	// Unregister requests from subscribers
	unregister chan *Client

	mu sync.RWMutex
}

// NewHub creates a new progress hub
func NewHub() Hub {
	return &hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan types.ProgressUpdate, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's main event loop
func (h *hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.taskID] == nil {
				h.clients[client.taskID] = make(map[*Client]bool)
			}
			h.clients[client.taskID][client] = true
			h.mu.Unlock()
			log.Printf("Progress subscriber connected for task %s", client.taskID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.taskID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.clients, client.taskID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("Progress subscriber disconnected for task %s", client.taskID)

		case update := <-h.broadcast:
			h.mu.Lock()
			h.deliverLocked(update.Data.TaskID, update)
			h.deliverLocked(AllTasksChannel, update)
			h.mu.Unlock()
		}
	}
}

// deliverLocked sends an update to every subscriber on a channel,
// dropping subscribers whose send buffer is full. Caller must hold h.mu.
func (h *hub) deliverLocked(key string, update types.ProgressUpdate) {
	clients, ok := h.clients[key]
	if !ok {
		return
	}
	for client := range clients {
		select {
		case client.send <- update:
		default:
			close(client.send)
			delete(clients, client)
		}
	}
	if len(clients) == 0 {
		delete(h.clients, key)
	}
}

// BroadcastProgress queues a progress snapshot for delivery to the
// task's subscribers and to the all-tasks channel
func (h *hub) BroadcastProgress(progress types.RegenerationProgress) {
	update := types.ProgressUpdate{
		Type: types.ProgressUpdateType,
		Data: progress,
	}

	select {
	case h.broadcast <- update:
	default:
		log.Printf("Progress broadcast channel full, dropping frame for task %s", progress.TaskID)
	}
}

// RegisterClient registers a new subscriber with the hub
func (h *hub) RegisterClient(client *Client) {
	h.register <- client
}

// UnregisterClient unregisters a subscriber from the hub
func (h *hub) UnregisterClient(client *Client) {
	h.unregister <- client
}
