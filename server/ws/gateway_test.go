package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflowhq/agentflow/agent"
	"github.com/agentflowhq/agentflow/llm"
	"github.com/agentflowhq/agentflow/registry"
)

func newTestGatewayServer(t *testing.T, runners registry.Registry[*agent.Runner]) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(New(runners))
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, wsURL
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGateway_StreamsEventsForValidRun(t *testing.T) {
	client := llm.NewMockClient(agent.Completion{Content: "streamed reply"})
	runner := agent.NewRunner("assistant", client, nil, nil)
	runners := registry.NewBaseRegistry[*agent.Runner]()
	require.NoError(t, runners.Register("assistant", runner))

	_, url := newTestGatewayServer(t, runners)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(ClientMessage{Agent: "assistant", Query: "hi"}))

	var kinds []string
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var ev agent.Event
		require.NoError(t, json.Unmarshal(payload, &ev))
		kinds = append(kinds, string(ev.Kind))
		if ev.Kind == agent.EventAgentCompleted || ev.Kind == agent.EventAgentFailed {
			break
		}
	}

	require.NotEmpty(t, kinds)
	assert.Equal(t, "AgentStarted", kinds[0])
	assert.Contains(t, kinds, "AgentCompleted")
}

func TestGateway_UnknownAgentSendsFailureEvent(t *testing.T) {
	runners := registry.NewBaseRegistry[*agent.Runner]()
	_, url := newTestGatewayServer(t, runners)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(ClientMessage{Agent: "ghost", Query: "hi"}))

	var ev agent.Event
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, agent.EventAgentFailed, ev.Kind)
	assert.Contains(t, ev.Error, "unknown agent")
}

func TestGateway_MissingQuerySendsFailureEvent(t *testing.T) {
	client := llm.NewMockClient(agent.Completion{Content: "unused"})
	runner := agent.NewRunner("assistant", client, nil, nil)
	runners := registry.NewBaseRegistry[*agent.Runner]()
	require.NoError(t, runners.Register("assistant", runner))

	_, url := newTestGatewayServer(t, runners)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(ClientMessage{Agent: "assistant"}))

	var ev agent.Event
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, agent.EventAgentFailed, ev.Kind)
	assert.Contains(t, ev.Error, "query is required")
}

func TestGateway_InvalidClientMessageSendsFailureEvent(t *testing.T) {
	runners := registry.NewBaseRegistry[*agent.Runner]()
	_, url := newTestGatewayServer(t, runners)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	var ev agent.Event
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, agent.EventAgentFailed, ev.Kind)
}
