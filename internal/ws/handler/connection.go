package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/exp/slog"

	"casino-core/internal/lib/logger/sl"
)

// Message is one round-feed event: the API process publishes round
// completions onto per-tenant channels and every subscribed client
// of that tenant receives them.
type Message struct {
	Channel string                 `json:"channel"`
	Event   string                 `json:"event"`
	Data    map[string]interface{} `json:"data"`
}

type Subscription struct {
	Conn    *websocket.Conn
	Channel string
}

type Hub struct {
	Channels  map[string]map[*websocket.Conn]bool
	Broadcast chan Message
	Subscribe chan Subscription
	mutex     sync.RWMutex
	log       *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		Channels:  make(map[string]map[*websocket.Conn]bool),
		Broadcast: make(chan Message),
		Subscribe: make(chan Subscription),
		log:       log,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func (hub *Hub) run() {
	for {
		select {
		case sub := <-hub.Subscribe:
			hub.mutex.Lock()
			if hub.Channels[sub.Channel] == nil {
				hub.Channels[sub.Channel] = make(map[*websocket.Conn]bool)
			}
			hub.Channels[sub.Channel][sub.Conn] = true
			hub.mutex.Unlock()
		case message := <-hub.Broadcast:
			hub.mutex.RLock()
			receivers, ok := hub.Channels[message.Channel]
			hub.mutex.RUnlock()

			if !ok {
				continue
			}

			data, err := json.Marshal(message)
			if err != nil {
				hub.log.Error("failed to marshal message", sl.Err(err))

				continue
			}

			hub.log.Info("broadcasting message",
				sl.String("channel", message.Channel),
				sl.String("event", message.Event))

			for conn := range receivers {
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					hub.log.Error("failed to write message", sl.Err(err))
				}
			}
		}
	}
}

func (hub *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Error("failed to upgrade connection", sl.Err(err))

		return
	}
	defer func(ws *websocket.Conn) {
		if err = ws.Close(); err != nil {
			hub.log.Error("failed to close connection", sl.Err(err))
		}
	}(ws)

	for {
		_, p, err := ws.ReadMessage()
		if err != nil {
			hub.log.Error("failed to read message", sl.Err(err))

			return
		}

		var message Message
		if err = json.Unmarshal(p, &message); err != nil {
			hub.log.Error("failed to unmarshal message", sl.Err(err))

			continue
		}

		hub.log.Info("incoming message",
			sl.String("channel", message.Channel),
			sl.String("event", message.Event),
			sl.Any("data", message.Data))

		hub.mutex.RLock()
		subscribed := hub.Channels[message.Channel][ws]
		hub.mutex.RUnlock()

		if !subscribed {
			hub.Subscribe <- Subscription{Conn: ws, Channel: message.Channel}
		}

		hub.Broadcast <- message
	}
}

func (hub *Hub) RunServer() {
	go hub.run()
}
