package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"faqbot/internal/middleware"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 4096
	wsSendBuffer     = 16
)

// wsClient is one WebSocket chat connection.
type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// originChecker allows upgrades from the configured CORS origins. Requests
// without an Origin header (non-browser clients) are always allowed.
func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed["*"] || allowed[origin]
	}
}

// handleWebSocket upgrades GET /ws. Each text frame {"q": "..."} is answered
// with one Response frame, in order.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		g.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	client := &wsClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
	}
	g.addClient(client)
	g.logger.Debug("client connected", "client", client.id)

	// The request context ends when this handler returns, so the read loop
	// runs detached with its own context.
	ctx, cancel := context.WithCancel(context.Background())
	go g.writePump(client, cancel)
	go g.readPump(ctx, client)
}

func (g *Gateway) readPump(ctx context.Context, client *wsClient) {
	defer func() {
		g.removeClient(client)
		close(client.send)
		g.logger.Debug("client disconnected", "client", client.id)
	}()

	client.conn.SetReadLimit(wsMaxMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.Warn("websocket read error", "client", client.id, "err", err)
			}
			return
		}

		reply := g.answerFrame(ctx, data)
		select {
		case client.send <- reply:
		case <-ctx.Done():
			return
		}
	}
}

// answerFrame turns one inbound frame into the JSON reply.
func (g *Gateway) answerFrame(ctx context.Context, data []byte) []byte {
	var req queryRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return mustMarshal(middleware.ErrorBody{Error: errBadRequest.Error, Message: errBadRequest.Message})
	}
	if !validQuery(req.Q) {
		return mustMarshal(middleware.ErrorBody{Error: errInvalidQuery.Error, Message: errInvalidQuery.Message})
	}

	resp, err := g.service.Answer(ctx, req.Q)
	if err != nil {
		g.logger.Error("answer failed", "err", err)
		return mustMarshal(middleware.ErrorBody{Error: errIndexUnavailable.Error, Message: errIndexUnavailable.Message})
	}
	return mustMarshal(resp)
}

func (g *Gateway) writePump(client *wsClient, cancel context.CancelFunc) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		client.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				g.logger.Warn("websocket write error", "client", client.id, "err", err)
				return
			}
		case <-ticker.C:
			if err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) addClient(c *wsClient) {
	g.clientMu.Lock()
	g.clients[c] = struct{}{}
	n := len(g.clients)
	g.clientMu.Unlock()

	if g.metrics != nil {
		g.metrics.SetWebSocketConnections(n)
	}
}

func (g *Gateway) removeClient(c *wsClient) {
	g.clientMu.Lock()
	delete(g.clients, c)
	n := len(g.clients)
	g.clientMu.Unlock()

	if g.metrics != nil {
		g.metrics.SetWebSocketConnections(n)
	}
}

// closeClients drops every open connection. Hijacked connections are not
// closed by http.Server.Shutdown.
func (g *Gateway) closeClients() {
	g.clientMu.Lock()
	defer g.clientMu.Unlock()
	for c := range g.clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.conn.Close()
	}
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Only plain structs are marshalled here
		panic(err)
	}
	return data
}
