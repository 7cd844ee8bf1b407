package socket

import (
	"encoding/json"
	"sync"

	"fragmentone/internal/fragment/model"
	"fragmentone/pkg/logger"
	"fragmentone/pkg/metrics"
)

const (
	FragmentAddedType  = "FRAGMENT_ADDED"  // Someone appended a fragment
	PresenceUpdateType = "PRESENCE_UPDATE" // A listener joined or left
)

type WSMessage struct {
	Type    string          `json:"type"`
	UserID  string          `json:"user_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type PresencePayload struct {
	Online int `json:"online"`
}

// Hub fans feed messages out to every connected listener.
type Hub struct {
	Clients    map[*Client]bool
	Broadcast  chan WSMessage
	Register   chan *Client
	Unregister chan *Client

	metrics *metrics.Collector
	quit    chan struct{}
	once    sync.Once
	mu      sync.Mutex
}

func NewHub(collector *metrics.Collector) *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Broadcast:  make(chan WSMessage, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		metrics:    collector,
		quit:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.Clients {
				h.removeLocked(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.Register:
			h.mu.Lock()
			h.Clients[client] = true
			h.mu.Unlock()
			h.setGauge()
			h.broadcastPresenceUpdate()

		case client := <-h.Unregister:
			h.mu.Lock()
			removed := h.removeLocked(client)
			h.mu.Unlock()
			if removed {
				h.setGauge()
				h.broadcastPresenceUpdate()
			}

		case msg := <-h.Broadcast:
			payload, err := json.Marshal(msg)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
				continue
			}

			// Collect recipients under the lock, send outside it.
			h.mu.Lock()
			clientsToSend := make([]*Client, 0, len(h.Clients))
			for client := range h.Clients {
				if client.UserID != msg.UserID {
					clientsToSend = append(clientsToSend, client)
				}
			}
			h.mu.Unlock()

			lagging := false
			for _, client := range clientsToSend {
				select {
				case client.Send <- payload:
				default:
					// Dropping a lagging listener keeps the hub from blocking.
					logger.Sugar.Warnf("Client %s's send buffer is full. Unregistering.", client.UserID)
					h.mu.Lock()
					h.removeLocked(client)
					h.mu.Unlock()
					lagging = true
				}
			}
			if lagging {
				h.setGauge()
				h.broadcastPresenceUpdate()
			}
		}
	}
}

// Stop ends Run and closes every client's send channel.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.quit) })
}

// NotifyFragmentAdded announces f to everyone except its author. It never
// blocks the caller; a full broadcast queue drops the notification.
func (h *Hub) NotifyFragmentAdded(f model.Fragment) {
	payload, err := json.Marshal(model.FragmentAddedPayload{ID: f.ID, CreatedAt: f.CreatedAt})
	if err != nil {
		logger.Sugar.Errorf("Error marshalling fragment notification: %v", err)
		return
	}
	select {
	case h.Broadcast <- WSMessage{Type: FragmentAddedType, UserID: f.AuthorID, Payload: payload}:
	default:
		logger.Sugar.Warnf("Broadcast queue full, dropped notification for fragment %s", f.ID)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Clients)
}

func (h *Hub) removeLocked(client *Client) bool {
	if _, ok := h.Clients[client]; !ok {
		return false
	}
	delete(h.Clients, client)
	close(client.Send)
	return true
}

func (h *Hub) setGauge() {
	if h.metrics != nil {
		h.metrics.FeedClients.Set(float64(h.ClientCount()))
	}
}

func (h *Hub) broadcastPresenceUpdate() {
	h.mu.Lock()
	clientsToSend := make([]*Client, 0, len(h.Clients))
	for client := range h.Clients {
		clientsToSend = append(clientsToSend, client)
	}
	h.mu.Unlock()

	if len(clientsToSend) == 0 {
		return
	}

	payload, _ := json.Marshal(PresencePayload{Online: len(clientsToSend)})
	broadcastPayload, err := json.Marshal(WSMessage{Type: PresenceUpdateType, Payload: payload})
	if err != nil {
		logger.Sugar.Errorf("Error marshalling presence broadcast: %v", err)
		return
	}

	for _, client := range clientsToSend {
		select {
		case client.Send <- broadcastPayload:
		default:
			// The pumps will handle unresponsive clients.
			logger.Sugar.Warnf("Client %s's send buffer was full during presence update.", client.UserID)
		}
	}
}
