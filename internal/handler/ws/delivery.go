package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/strangerlink/match-signaling-service/config"
	"github.com/strangerlink/match-signaling-service/internal/domain/event"
	wsmarshaller "github.com/strangerlink/match-signaling-service/internal/handler/marshaller/ws"
	"github.com/strangerlink/match-signaling-service/internal/service"
)

// WSHandler is the transport adapter: it owns the WebSocket upgrade, the
// per-connection read/write pumps, and the translation between wire frames
// and matchmaker operations. The matching core never touches a socket.
type WSHandler struct {
	logger   *slog.Logger
	matcher  service.Matchmaker
	upgrader websocket.Upgrader

	maxFrameBytes int64
	pingInterval  time.Duration
	pongWait      time.Duration
	writeTimeout  time.Duration

	// droppedFrames counts protocol errors and unknown events.
	droppedFrames atomic.Uint64
}

func NewWSHandler(cfg *config.Config, logger *slog.Logger, matcher service.Matchmaker) *WSHandler {
	allowed := cfg.Server.AllowedOrigin
	return &WSHandler{
		logger:  logger,
		matcher: matcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Only the configured origin may complete the handshake.
			CheckOrigin: func(r *http.Request) bool {
				if allowed == "*" {
					return true
				}
				return r.Header.Get("Origin") == allowed
			},
		},
		maxFrameBytes: cfg.WS.MaxFrameBytes,
		pingInterval:  cfg.WS.PingInterval,
		pongWait:      cfg.WS.PongWait,
		writeTimeout:  cfg.Server.WriteTimeout,
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("ws upgrade failed", "err", err, "origin", r.Header.Get("Origin"))
		return
	}
	defer sock.Close()

	conn, err := h.matcher.Subscribe(r.Context())
	if err != nil {
		return
	}
	connID := conn.GetID()
	// Disconnect runs full teardown: queue removal, partner notification and
	// re-match, registry removal, mailbox close.
	defer h.matcher.Disconnect(connID)

	h.logger.Info("ws opened", "conn_id", connID, "remote", r.RemoteAddr)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return h.readPump(ctx, sock, connID) })
	g.Go(func() error { return h.writePump(ctx, sock, conn.Recv()) })

	if err := g.Wait(); err != nil && !isExpectedClose(err) {
		h.logger.Debug("ws session ended", "conn_id", connID, "err", err)
	}
	h.logger.Info("ws closed", "conn_id", connID)
}

// readPump decodes inbound frames and dispatches them to the matchmaker.
// Malformed or out-of-vocabulary frames are dropped; the sender stays
// connected.
func (h *WSHandler) readPump(ctx context.Context, sock *websocket.Conn, connID uuid.UUID) error {
	sock.SetReadLimit(h.maxFrameBytes)
	_ = sock.SetReadDeadline(time.Now().Add(h.pongWait))
	sock.SetPongHandler(func(string) error {
		return sock.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, data, err := sock.ReadMessage()
		if err != nil {
			return err
		}

		ev, err := wsmarshaller.DecodeClientEvent(data)
		if err != nil {
			h.drop(connID, "", err)
			continue
		}

		switch ev.Event {
		case wsmarshaller.EventJoinQueue:
			profile, err := ev.Profile()
			if err != nil {
				h.drop(connID, ev.Event, err)
				continue
			}
			h.matcher.Join(connID, profile)

		case wsmarshaller.EventOffer, wsmarshaller.EventAnswer, wsmarshaller.EventICECandidate:
			kind, blob, target, err := ev.Signal()
			if err != nil {
				h.drop(connID, ev.Event, err)
				continue
			}
			h.matcher.RelaySignal(connID, kind, blob, target)

		case wsmarshaller.EventMessage:
			h.matcher.RelayText(connID, ev.Text)

		case wsmarshaller.EventSkip:
			h.matcher.Skip(connID)

		case wsmarshaller.EventLeaveQueue:
			h.matcher.Leave(connID)

		default:
			h.drop(connID, ev.Event, errors.New("unknown event"))
		}
	}
}

// writePump drains the connection's mailbox onto the socket, preserving the
// submission order, and keeps the transport alive with pings.
func (h *WSHandler) writePump(ctx context.Context, sock *websocket.Conn, recv <-chan event.Eventer) error {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-recv:
			if !ok {
				_ = sock.WriteMessage(websocket.CloseMessage, nil)
				return nil
			}
			data, err := wsmarshaller.MarshalEvent(ev)
			if err != nil {
				h.logger.Error("outbound marshal failed", "err", err, "kind", ev.GetKind())
				continue
			}
			_ = sock.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := sock.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}

		case <-ticker.C:
			_ = sock.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func (h *WSHandler) drop(connID uuid.UUID, eventName string, err error) {
	h.droppedFrames.Add(1)
	h.logger.Debug("inbound frame dropped", "conn_id", connID, "event", eventName, "err", err)
}

// DroppedFrames exposes the protocol-error counter for diagnostics.
func (h *WSHandler) DroppedFrames() uint64 {
	return h.droppedFrames.Load()
}

func isExpectedClose(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}
