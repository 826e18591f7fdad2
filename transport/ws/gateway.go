package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"market-chat/auth"
	"market-chat/contract"
	"market-chat/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, restrict to configured origins.
		return true
	},
}

// commandFrame is the envelope of every client-to-server message.
// Which fields matter depends on Command.
type commandFrame struct {
	Command        string     `json:"command"`
	ToID           string     `json:"toId,omitempty"`
	RequestID      *uuid.UUID `json:"requestId,omitempty"`
	Accept         bool       `json:"accept,omitempty"`
	ConversationID *uuid.UUID `json:"conversationId,omitempty"`
	Content        string     `json:"content,omitempty"`
}

// Gateway authenticates sockets and routes their commands to the
// services. One readPump goroutine per socket; all of them run against
// the shared registries.
type Gateway struct {
	tokens       auth.Tokens
	presence     contract.IPresence
	requests     services.IRequestService
	conversation services.IConversationService
	bufferSize   int
	log          *slog.Logger
}

func NewGateway(tokens auth.Tokens, presence contract.IPresence,
	requests services.IRequestService, conversation services.IConversationService,
	bufferSize int, log *slog.Logger) *Gateway {
	return &Gateway{
		tokens:       tokens,
		presence:     presence,
		requests:     requests,
		conversation: conversation,
		bufferSize:   bufferSize,
		log:          log,
	}
}

// ServeHTTP handles GET /ws?token=. The token travels as a query
// parameter because browsers cannot set headers on websocket upgrades.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := g.tokens.Validate(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	identity := auth.IdentityFromClaims(claims)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := newClient(identity, conn, g.bufferSize, g.log)
	g.presence.Register(identity, client)
	g.log.Info("connection opened", "user", identity.ID, "conn", client.ID())

	go client.writePump()
	go g.readPump(client)
}

func (g *Gateway) readPump(client *Client) {
	defer g.disconnect(client)
	client.conn.SetReadLimit(maxFrameSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame commandFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			client.deliverError("", err)
			continue
		}
		g.handle(client, frame)
	}
}

// disconnect is the cross-registry cleanup: every channel subscription
// goes first, then the presence entry. An in-flight command keeps
// running; its write completes and the resulting event is simply
// undeliverable here.
func (g *Gateway) disconnect(client *Client) {
	for _, conversationID := range client.joinedChannels() {
		g.conversation.LeaveChannel(conversationID, client.ID())
	}
	g.presence.Deregister(client.Identity().ID, client.ID())
	client.close()
	g.log.Info("connection closed", "user", client.Identity().ID, "conn", client.ID())
}

func (g *Gateway) handle(client *Client, frame commandFrame) {
	ctx := context.Background()
	userID := client.Identity().ID

	var err error
	switch frame.Command {
	case "create-request":
		_, err = g.requests.Create(ctx, userID, frame.ToID)
	case "respond":
		if frame.RequestID == nil {
			client.deliverError(frame.Command, errMissingField("requestId"))
			return
		}
		_, err = g.requests.Respond(ctx, *frame.RequestID, userID, frame.Accept)
	case "join-channel":
		if frame.ConversationID == nil {
			client.deliverError(frame.Command, errMissingField("conversationId"))
			return
		}
		if err = g.conversation.JoinChannel(*frame.ConversationID, client.Identity(), client); err == nil {
			client.trackJoin(*frame.ConversationID)
		}
	case "leave-channel":
		if frame.ConversationID == nil {
			client.deliverError(frame.Command, errMissingField("conversationId"))
			return
		}
		g.conversation.LeaveChannel(*frame.ConversationID, client.ID())
		client.trackLeave(*frame.ConversationID)
	case "send":
		if frame.ConversationID == nil {
			client.deliverError(frame.Command, errMissingField("conversationId"))
			return
		}
		_, err = g.conversation.Send(ctx, *frame.ConversationID, userID, frame.Content)
	case "close":
		if frame.ConversationID == nil {
			client.deliverError(frame.Command, errMissingField("conversationId"))
			return
		}
		_, err = g.conversation.Close(ctx, *frame.ConversationID, userID)
	default:
		client.deliverError(frame.Command, errUnknownCommand)
		return
	}

	if err != nil {
		g.log.Debug("command failed", "command", frame.Command, "user", userID, "error", err)
		client.deliverError(frame.Command, err)
	}
}
