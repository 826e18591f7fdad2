package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"

	"market-chat/auth"
	"market-chat/moderation"
	"market-chat/projection"
	"market-chat/repositories"
	"market-chat/runtime"
	"market-chat/runtime/workers"
	"market-chat/search"
	"market-chat/services"
	"market-chat/transport/httpapi"
	"market-chat/transport/ws"
)

const frameTimeout = 3 * time.Second

// BaseWsSuite boots the whole server in-process for every test: real
// Badger, real Bluge, the supervised sink pipeline, the REST surface
// and the WebSocket gateway behind one httptest listener.
type BaseWsSuite struct {
	suite.Suite
	Config Config

	server *httptest.Server
	tokens auth.Tokens
	stats  *projection.Stats
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseWsSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
}

func (s *BaseWsSuite) SetupTest() {
	t := s.T()
	log := logs.GetLoggerFromLevel(slog.LevelError)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	s.Require().NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	s.Require().NoError(err)
	t.Cleanup(func() { _ = writer.Close() })

	censored, err := moderation.LoadDefault()
	s.Require().NoError(err)
	moderator, err := moderation.NewModerator(censored.Words, '*')
	s.Require().NoError(err)

	presence := runtime.NewPresence()
	channels := runtime.NewChannels()
	dispatcher := runtime.NewDispatcher(log, 256, time.Second)
	store := repositories.NewStore(db, log, nil)
	s.tokens = auth.NewTokens("e2e-secret-2026", time.Hour)

	index := search.NewIndex(writer, log)
	s.stats = projection.NewStats()

	directory := services.NewDirectoryService(store, presence, dispatcher, log)
	requests := services.NewRequestService(store, directory, presence, dispatcher, log)
	conversation := services.NewConversationService(store, channels, dispatcher,
		moderator, index, 500, log)
	authn := services.NewAuthService(store, s.tokens)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sup := workers.NewSupervisor(log, 200*time.Millisecond).Add(
		workers.NewSinkFanout(log, dispatcher.SinkEvents(), time.Second, index, s.stats),
	)
	go sup.Run(ctx)

	router := mux.NewRouter()
	api := httpapi.NewAPI(authn, requests, conversation, directory, log)
	api.Register(router, s.tokens)
	router.Handle("/ws", ws.NewGateway(s.tokens, presence, requests, conversation, 32, log))

	s.server = httptest.NewServer(router)
	t.Cleanup(s.server.Close)
}

// Step prints a colorized header for a scenario step in logs
func (s *BaseWsSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Register creates an account through the public REST surface and
// returns the bearer token plus the user id it carries.
func (s *BaseWsSuite) Register(email, fullName string, roles []string) (string, string) {
	body, err := json.Marshal(map[string]any{
		"email":    email,
		"password": "ComplexPass123!",
		"fullName": fullName,
		"roles":    roles,
	})
	s.Require().NoError(err)

	response, err := http.Post(s.server.URL+"/api/auth/register", "application/json",
		bytes.NewReader(body))
	s.Require().NoError(err)
	defer response.Body.Close()
	s.Require().Equal(http.StatusCreated, response.StatusCode)

	var out struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.NewDecoder(response.Body).Decode(&out))

	claims, err := s.tokens.Validate(out.Token)
	s.Require().NoError(err)
	return out.Token, claims.UserID
}

// Get performs an authenticated GET and decodes the JSON body into out.
func (s *BaseWsSuite) Get(path, token string, out any) {
	request, err := http.NewRequest(http.MethodGet, s.server.URL+path, nil)
	s.Require().NoError(err)
	request.Header.Set("Authorization", "Bearer "+token)

	response, err := http.DefaultClient.Do(request)
	s.Require().NoError(err)
	defer response.Body.Close()
	s.Require().Equal(http.StatusOK, response.StatusCode)
	s.Require().NoError(json.NewDecoder(response.Body).Decode(out))
}

// session is one live WebSocket connection during a scenario.
type session struct {
	suite *BaseWsSuite
	name  string
	conn  *websocket.Conn
}

// Dial opens a WebSocket session authenticated by the token.
func (s *BaseWsSuite) Dial(name, token string) *session {
	wsURL := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	s.Require().NoError(err, "Failed to connect to WebSocket at "+wsURL)
	s.T().Cleanup(func() { _ = conn.Close() })
	return &session{suite: s, name: name, conn: conn}
}

func (c *session) Send(command map[string]any) {
	raw, err := json.Marshal(command)
	c.suite.Require().NoError(err)
	c.suite.Require().NoError(c.conn.WriteMessage(websocket.TextMessage, raw))

	if c.suite.Config.DebugJSON {
		c.suite.T().Logf("[%s] SEND %s", c.name, raw)
	}
}

type frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func (c *session) read(timeout time.Duration) (frame, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		return frame{}, err
	}
	if c.suite.Config.DebugJSON {
		c.suite.T().Logf("[%s] RECV %s", c.name, raw)
	}
	var f frame
	return f, json.Unmarshal(raw, &f)
}

// Expect fails unless the next frame carries the given event name, then
// unmarshals its payload into out (when non-nil).
func (c *session) Expect(eventName string, out any) {
	f, err := c.read(frameTimeout)
	c.suite.Require().NoError(err, "[%s] waiting for %s", c.name, eventName)
	c.suite.Require().Equal(eventName, f.Event, "[%s] payload: %s", c.name, f.Payload)
	if out != nil {
		c.suite.Require().NoError(json.Unmarshal(f.Payload, out))
	}
}

// ExpectError fails unless the next frame is an error with the code.
func (c *session) ExpectError(code string) {
	var payload struct {
		Command string `json:"command"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	c.Expect("error", &payload)
	c.suite.Require().Equal(code, payload.Code)
}

// ExpectSilence asserts nothing arrives within a short grace period.
func (c *session) ExpectSilence() {
	f, err := c.read(300 * time.Millisecond)
	if err == nil {
		c.suite.Require().Failf("unexpected frame",
			"[%s] got %s: %s", c.name, f.Event, f.Payload)
	}
	netErr, ok := err.(interface{ Timeout() bool })
	c.suite.Require().True(ok && netErr.Timeout(), "[%s] read failed: %v", c.name, err)
}
