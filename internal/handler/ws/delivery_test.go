package ws

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gorilla/websocket"
	"github.com/strangerlink/match-signaling-service/config"
	"github.com/strangerlink/match-signaling-service/internal/adapter/pubsub"
	"github.com/strangerlink/match-signaling-service/internal/domain/registry"
	"github.com/strangerlink/match-signaling-service/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(origin string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{AllowedOrigin: origin, WriteTimeout: time.Second},
		WS: config.WSConfig{
			SendBufferSize: 16,
			MaxFrameBytes:  64 << 10,
			SendTimeout:    100 * time.Millisecond,
			PingInterval:   time.Minute,
			PongWait:       time.Minute,
		},
		Matching: config.MatchingConfig{RecentPairCacheSize: 16},
	}
}

func startServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })

	matcher := service.NewMatchService(cfg, logger,
		registry.NewRegistry(), registry.NewQueueSet(), pubsub.NewEventDispatcher(bus))
	srv := httptest.NewServer(NewWSHandler(cfg, logger, matcher))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// readFrame blocks for the next frame and decodes it loosely.
func readFrame(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func eventName(t *testing.T, frame map[string]json.RawMessage) string {
	t.Helper()
	var name string
	require.NoError(t, json.Unmarshal(frame["event"], &name))
	return name
}

func TestSessionEndToEnd(t *testing.T) {
	srv := startServer(t, testConfig("*"))
	c1 := dial(t, srv)
	c2 := dial(t, srv)

	send(t, c1, `{"event":"join-queue","username":"Ana","gender":"female","age":22}`)
	assert.Equal(t, "waiting", eventName(t, readFrame(t, c1)))

	send(t, c2, `{"event":"join-queue","username":"Ben","gender":"male","age":24}`)

	m1 := readFrame(t, c1)
	m2 := readFrame(t, c2)
	require.Equal(t, "matched", eventName(t, m1))
	require.Equal(t, "matched", eventName(t, m2))

	var c2ID, c1ID string
	require.NoError(t, json.Unmarshal(m1["partner_id"], &c2ID))
	require.NoError(t, json.Unmarshal(m2["partner_id"], &c1ID))
	assert.JSONEq(t, `{"name":"Ben","gender":"male","age":24}`, string(m1["partner_info"]))

	// Offer relayed along the partner edge, target_id stripped, from_id stamped.
	send(t, c1, `{"event":"offer","offer":{"type":"offer","sdp":"v=0"},"target_id":"`+c2ID+`"}`)
	offer := readFrame(t, c2)
	assert.Equal(t, "offer", eventName(t, offer))
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(offer["offer"]))
	assert.JSONEq(t, `"`+c1ID+`"`, string(offer["from_id"]))
	assert.NotContains(t, offer, "target_id")

	// Chat line with server-assigned timestamp.
	send(t, c1, `{"event":"message","text":"hi"}`)
	msg := readFrame(t, c2)
	assert.Equal(t, "message", eventName(t, msg))
	assert.JSONEq(t, `"hi"`, string(msg["text"]))
	var ts string
	require.NoError(t, json.Unmarshal(msg["timestamp"], &ts))
	_, err := time.Parse(time.RFC3339Nano, ts)
	assert.NoError(t, err)

	// Skip: the skipper goes idle, the partner is told and re-queued.
	send(t, c1, `{"event":"skip"}`)
	assert.Equal(t, "skipped", eventName(t, readFrame(t, c1)))
	assert.Equal(t, "partner-skipped", eventName(t, readFrame(t, c2)))
	assert.Equal(t, "waiting", eventName(t, readFrame(t, c2)))
}

func TestDisconnectNotifiesPartner(t *testing.T) {
	srv := startServer(t, testConfig("*"))
	c1 := dial(t, srv)
	c2 := dial(t, srv)

	send(t, c1, `{"event":"join-queue","username":"Ana","gender":"female","age":22}`)
	readFrame(t, c1) // waiting
	send(t, c2, `{"event":"join-queue","username":"Ben","gender":"male","age":24}`)
	readFrame(t, c1) // matched
	readFrame(t, c2) // matched

	require.NoError(t, c1.Close())

	assert.Equal(t, "partner-disconnected", eventName(t, readFrame(t, c2)))
	assert.Equal(t, "waiting", eventName(t, readFrame(t, c2)))
}

func TestMalformedFramesAreDroppedNotFatal(t *testing.T) {
	srv := startServer(t, testConfig("*"))
	c1 := dial(t, srv)

	send(t, c1, `this is not json`)
	send(t, c1, `{"no_event":"here"}`)
	send(t, c1, `{"event":"teleport"}`)
	send(t, c1, `{"event":"join-queue","gender":"robot"}`)

	// The connection survived every protocol error.
	send(t, c1, `{"event":"join-queue","username":"Ana","gender":"female","age":22}`)
	assert.Equal(t, "waiting", eventName(t, readFrame(t, c1)))
}

func TestOriginEnforcement(t *testing.T) {
	srv := startServer(t, testConfig("https://chat.example.com"))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{
		"Origin": []string{"https://evil.example.com"},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{
		"Origin": []string{"https://chat.example.com"},
	})
	require.NoError(t, err)
	_ = conn.Close()
}
