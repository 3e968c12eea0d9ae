package websocket

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"sentrycam/internal/dto"
	"sentrycam/internal/logger"
	"sentrycam/internal/models"
)

// HubService fans detection events out to connected live viewers.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *HubService) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", h.GetClientCount())

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", h.GetClientCount())

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Error("Error sending message to viewer: %v", err)
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()

		case <-h.done:
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// Stop shuts the hub down and closes all viewer connections.
func (h *HubService) Stop() {
	close(h.done)
}

func (h *HubService) Register(client *websocket.Conn) {
	h.register <- client
}

func (h *HubService) Unregister(client *websocket.Conn) {
	h.unregister <- client
}

// EmitNewObject broadcasts a newly tracked object to all viewers.
func (h *HubService) EmitNewObject(evt *models.DetectionEvent) {
	h.send(dto.NewObjectMessage{Type: "new_object", Event: evt})
}

// EmitFrameDetections broadcasts the current frame's detection set.
func (h *HubService) EmitFrameDetections(detections []dto.FrameDetection) {
	if detections == nil {
		detections = []dto.FrameDetection{}
	}
	h.send(dto.FrameDetectionsMessage{Type: "detections", Detections: detections})
}

// send marshals and queues a message without ever blocking the caller. When
// viewers cannot keep up, messages are dropped.
func (h *HubService) send(payload interface{}) {
	message, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Error marshalling broadcast message: %v", err)
		return
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warning("Broadcast queue full - dropping message")
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
