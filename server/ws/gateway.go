// Package ws is a gorilla/websocket gateway running the same agent.Runner
// surface as package server, for callers that want a bidirectional
// transport instead of one-shot SSE. Grounded on the Hub/Client read/write
// pump pattern used by pack repo NGOClaw's websocket gateway, simplified to
// one connection per run (no broadcast hub) since each socket drives
// exactly one agent.Runner.RunWithEvents call.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentflowhq/agentflow/agent"
	"github.com/agentflowhq/agentflow/registry"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ClientMessage is the inbound control frame a caller sends to start a run.
type ClientMessage struct {
	Agent    string `json:"agent"`
	Query    string `json:"query"`
	MaxSteps int    `json:"max_steps,omitempty"`
}

// Gateway upgrades HTTP connections and drives one agent run per socket,
// streaming agent.Event frames back as JSON.
type Gateway struct {
	runners registry.Registry[*agent.Runner]
}

// New builds a Gateway resolving agent names against runners.
func New(runners registry.Registry[*agent.Runner]) *Gateway {
	return &Gateway{runners: runners}
}

// ServeHTTP implements http.Handler, upgrading the connection and running
// the handler loop until the client disconnects or the run completes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	var msg ClientMessage
	if err := conn.ReadJSON(&msg); err != nil {
		g.writeError(conn, "invalid client message")
		return
	}

	runner, ok := g.runners.Get(msg.Agent)
	if !ok {
		g.writeError(conn, "unknown agent")
		return
	}
	if msg.Query == "" {
		g.writeError(conn, "query is required")
		return
	}

	send := make(chan agent.Event, 32)
	done := make(chan struct{})
	go g.writePump(conn, send, done)

	state := agent.NewState(msg.Query, runner.Tools(), agent.DefaultCompletionOptions(), nil, "")
	opts := agent.RunOptions{MaxSteps: msg.MaxSteps}

	_, runErr := runner.RunWithEvents(r.Context(), state, opts, func(ev agent.Event) {
		select {
		case send <- ev:
		case <-done:
		}
	})
	if runErr != nil {
		send <- agent.Event{Kind: agent.EventAgentFailed, Error: runErr.Error()}
	}
	close(send)
	<-done
}

// writePump serializes outgoing events and periodic pings onto conn until
// send is closed or a write fails.
func (g *Gateway) writePump(conn *websocket.Conn, send <-chan agent.Event, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(done)
	}()

	for {
		select {
		case ev, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) writeError(conn *websocket.Conn, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteJSON(agent.Event{Kind: agent.EventAgentFailed, Error: message})
}
