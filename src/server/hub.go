package server

import (
	"encoding/json"
	"net/http"

	"signal-desk/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *FastAPIServer) handleWebsockets() {
	for {
		select {
		case client := <-s.register:
			s.clients[client] = struct{}{}
			// Send initial state on connect
			s.stateMutex.RLock()
			if s.latestState != nil {
				client.send <- s.snapshotLocked("INITIAL")
			}
			s.stateMutex.RUnlock()

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}

		case message := <-s.broadcast:
			// Merge into the cached state, then fan out the delta
			s.stateMutex.Lock()
			for id, entry := range message.Prices {
				s.latestState.Prices[id] = entry
			}
			s.latestState.Timestamp = message.Timestamp
			s.latestState.Type = "UPDATE"
			s.stateMutex.Unlock()

			// Broadcast to all clients
			for client := range s.clients {
				select {
				case client.send <- message:
					// Message sent successfully
				default:
					// Client too slow, disconnect to prevent Hub blocking
					delete(s.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// Broadcast queues one price frame for fan-out. Called by the feed pump.
func (s *FastAPIServer) Broadcast(payload *models.MPricePayload) {
	if payload == nil || len(payload.Prices) == 0 {
		return
	}
	// Blocking send: the 256-frame buffer absorbs any realistic burst.
	s.broadcast <- payload
}

// -----------------------------------------------------------------------------
// Helper Methods
// -----------------------------------------------------------------------------

// snapshotLocked copies the cached state into a frame of the given type.
// Caller holds stateMutex (read or write).
func (s *FastAPIServer) snapshotLocked(frameType string) *models.MPricePayload {
	prices := make(map[string]models.MLivePrice, len(s.latestState.Prices))
	for id, entry := range s.latestState.Prices {
		prices[id] = entry
	}
	return &models.MPricePayload{
		Type:      frameType,
		Prices:    prices,
		Timestamp: s.latestState.Timestamp,
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan *models.MPricePayload, 256),
	}

	s.register <- client

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *FastAPIServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	if cmd.Command != "subscribe" {
		return
	}

	s.stateMutex.RLock()
	response := s.filteredResponse(cmd.Category, cmd.IDs)
	s.stateMutex.RUnlock()

	// Send response to client
	// Use select to avoid blocking if client's send buffer is full
	select {
	case client.send <- response:
	default:
	}
}

// -----------------------------------------------------------------------------
// Response Filtering
// -----------------------------------------------------------------------------

// filteredResponse narrows the cached state to a category and/or explicit id
// list. Empty filters pass everything. Caller holds stateMutex.
func (s *FastAPIServer) filteredResponse(category models.MInstrumentType, ids []string) *models.MPricePayload {
	wantID := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wantID[id] = struct{}{}
	}

	categoryOf := make(map[string]models.MInstrumentType, len(s.Config.Instruments))
	for _, inst := range s.Config.Instruments {
		categoryOf[inst.ID] = inst.Type
	}

	prices := make(map[string]models.MLivePrice)
	for id, entry := range s.latestState.Prices {
		if category != "" && categoryOf[id] != category {
			continue
		}
		if len(wantID) > 0 {
			if _, ok := wantID[id]; !ok {
				continue
			}
		}
		prices[id] = entry
	}

	return &models.MPricePayload{
		Type:      "INITIAL",
		Prices:    prices,
		Timestamp: s.latestState.Timestamp,
	}
}
