package ws

import (
	"chat-relay/domain"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const origin = "http://chat.example"

type relay struct {
	server *httptest.Server
	users  *repositories.UserRepository
}

func newRelay(t *testing.T, options Options) *relay {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := repositories.OpenInMemory()
	require.NoError(t, err)
	users, err := repositories.NewUserRepository(db)
	require.NoError(t, err)

	orchestrator := runtime.NewOrchestrator(log, workers.NewSupervisor(log, 10*time.Millisecond),
		runtime.NewRegistry(), users, repositories.NewMessageLog(),
		observability.NewCollector(prometheus.NewRegistry()), 64, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	go orchestrator.Start(ctx)

	if options.AllowedOrigins == nil {
		options.AllowedOrigins = []string{origin}
	}
	if options.BufferSize == 0 {
		options.BufferSize = 16
	}
	server := httptest.NewServer(NewGateway(log, services.NewChatService(orchestrator), options))
	t.Cleanup(func() {
		server.Close()
		cancel()
		orchestrator.Stop()
		_ = users.Close()
		_ = db.Close()
	})
	return &relay{server: server, users: users}
}

func (r *relay) register(t *testing.T, username string) domain.User {
	t.Helper()
	user, err := r.users.CreateUser(context.Background(), username, strings.ToUpper(username[:1])+username[1:])
	require.NoError(t, err)
	return user
}

func (r *relay) dial(t *testing.T, from string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(r.server.URL, "http")
	header := http.Header{}
	if from != "" {
		header.Set("Origin", from)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func (r *relay) login(t *testing.T, user domain.User) *websocket.Conn {
	t.Helper()
	conn, _, err := r.dial(t, origin)
	require.NoError(t, err)
	send(t, conn, Authenticate, AuthenticatePayload{ID: user.ID, Username: user.Username})
	expect(t, conn, "all-users")
	return conn
}

func send(t *testing.T, conn *websocket.Conn, name string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: name, Data: data}))
}

// expect reads frames until one named name arrives and returns its data.
func expect(t *testing.T, conn *websocket.Conn, name string) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var envelope Envelope
		require.NoError(t, conn.ReadJSON(&envelope), "waiting for %s", name)
		if envelope.Event == name {
			return envelope.Data
		}
	}
}

func TestGateway_Alice_Messages_Bob(t *testing.T) {
	req := require.New(t)
	r := newRelay(t, Options{})
	alice := r.register(t, "alice")
	bob := r.register(t, "bob")

	// Given bob is connected first
	bobConn := r.login(t, bob)

	// When alice authenticates
	aliceConn, _, err := r.dial(t, origin)
	req.NoError(err)
	send(t, aliceConn, Authenticate, AuthenticatePayload{ID: alice.ID, Username: alice.Username})

	// Then alice sees bob online and bob sees alice arriving
	var snapshot []UserView
	req.NoError(json.Unmarshal(expect(t, aliceConn, "all-users"), &snapshot))
	req.Equal([]UserView{{ID: bob.ID, Username: "bob", Name: "Bob", Online: true}}, snapshot)

	var online ProfileView
	req.NoError(json.Unmarshal(expect(t, bobConn, "user-online"), &online))
	req.Equal(ProfileView{ID: alice.ID, Username: "alice", Name: "Alice"}, online)

	// When alice writes to bob
	send(t, aliceConn, SendMessage, SendMessagePayload{To: bob.ID, Text: "hi bob"})

	// Then both sides get their copy
	var outgoing, incoming NewMessageView
	req.NoError(json.Unmarshal(expect(t, aliceConn, "new-message"), &outgoing))
	req.NoError(json.Unmarshal(expect(t, bobConn, "new-message"), &incoming))
	req.Equal(domain.Outgoing, outgoing.Direction)
	req.Equal(domain.Incoming, incoming.Direction)
	req.Equal(outgoing.MessageView, incoming.MessageView)
	req.Equal(alice.ID, incoming.From)
	req.Equal(bob.ID, incoming.To)
	req.Equal("hi bob", incoming.Text)
	req.False(incoming.Read)
	req.Equal("alice", incoming.User.Username)
	_, err = time.Parse(time.RFC3339Nano, incoming.Timestamp)
	req.NoError(err)

	// When bob asks for the thread
	send(t, bobConn, GetHistory, GetHistoryPayload{WithUserID: alice.ID})

	// Then the message is there
	var history MessagesHistoryView
	req.NoError(json.Unmarshal(expect(t, bobConn, "messages-history"), &history))
	req.Equal(alice.ID, history.WithUserID)
	req.Equal([]MessageView{incoming.MessageView}, history.Messages)

	// When alice leaves
	req.NoError(aliceConn.Close())

	// Then bob is told with a bare id
	var gone string
	req.NoError(json.Unmarshal(expect(t, bobConn, "user-offline"), &gone))
	req.Equal(alice.ID, gone)
}

func TestGateway_Rejects_Disallowed_Origin(t *testing.T) {
	req := require.New(t)
	r := newRelay(t, Options{})

	_, resp, err := r.dial(t, "http://evil.example")
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusForbidden, resp.StatusCode)

	_, resp, err = r.dial(t, "")
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusForbidden, resp.StatusCode)
}

func TestGateway_Wildcard_Accepts_Any_Origin(t *testing.T) {
	r := newRelay(t, Options{AllowedOrigins: []string{"*"}})

	_, _, err := r.dial(t, "http://anything.example")
	require.NoError(t, err)
}

func TestGateway_Drops_Malformed_Frames(t *testing.T) {
	req := require.New(t)
	r := newRelay(t, Options{})
	alice := r.register(t, "alice")
	conn, _, err := r.dial(t, origin)
	req.NoError(err)

	// Given garbage and an unknown event
	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	send(t, conn, "typing", map[string]string{"to": "x"})

	// When the client authenticates afterwards
	send(t, conn, Authenticate, AuthenticatePayload{ID: alice.ID, Username: alice.Username})

	// Then the connection is still served
	var snapshot []UserView
	req.NoError(json.Unmarshal(expect(t, conn, "all-users"), &snapshot))
	req.Empty(snapshot)
}

func TestGateway_Closes_On_Oversized_Frame(t *testing.T) {
	req := require.New(t)
	r := newRelay(t, Options{MaxMessageSize: 64})
	conn, _, err := r.dial(t, origin)
	req.NoError(err)

	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 512))))

	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err = conn.ReadMessage()
	req.Error(err)
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		req.False(netErr.Timeout(), "connection should be closed by the server")
	}
}

func TestGateway_Unauthenticated_Send_Is_Ignored(t *testing.T) {
	req := require.New(t)
	r := newRelay(t, Options{})
	alice := r.register(t, "alice")
	bob := r.register(t, "bob")
	bobConn := r.login(t, bob)

	// Given a connection that never authenticated
	anonymous, _, err := r.dial(t, origin)
	req.NoError(err)

	// When it tries to talk to bob
	send(t, anonymous, SendMessage, SendMessagePayload{To: bob.ID, Text: "psst"})

	// Then bob only sees traffic from real sessions
	r.login(t, alice)
	var online ProfileView
	req.NoError(json.Unmarshal(expect(t, bobConn, "user-online"), &online))
	req.Equal(alice.ID, online.ID)
	send(t, bobConn, GetHistory, GetHistoryPayload{WithUserID: alice.ID})
	var history MessagesHistoryView
	req.NoError(json.Unmarshal(expect(t, bobConn, "messages-history"), &history))
	req.Empty(history.Messages)
}
