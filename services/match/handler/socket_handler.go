package handler

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"roulette/pkg/types/eventtype"
	"roulette/pkg/types/matchtype"
	"roulette/services/match/service"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SocketHandler holds the live match sockets of this instance and pushes
// consumed match events down to them. It implements event.Dispatcher.
type SocketHandler struct {
	matchService *service.MatchService
	waitTimeout  time.Duration
	log          zerolog.Logger

	// userID -> *socketSession
	sessions sync.Map
}

type socketSession struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes
	done chan struct{}
	once sync.Once
}

func (s *socketSession) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *socketSession) writeJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func NewSocketHandler(matchService *service.MatchService, waitTimeout time.Duration, log zerolog.Logger) *SocketHandler {
	if waitTimeout <= 0 {
		waitTimeout = 30 * time.Second
	}
	return &SocketHandler{matchService: matchService, waitTimeout: waitTimeout, log: log}
}

// HandleMatchSocket upgrades the connection, starts a search for the
// caller and keeps the socket open until a match arrives, the wait times
// out, or the client leaves. A client that disconnects while still queued
// is removed from the queue.
func (h *SocketHandler) HandleMatchSocket(c echo.Context) error {
	xUserID := c.Request().Header.Get("X-User-ID")
	userID, err := strconv.ParseInt(xUserID, 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "X-User-ID header missing or not a number")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "WebSocket upgrade failed")
	}
	defer conn.Close()

	session := &socketSession{conn: conn, done: make(chan struct{})}
	h.sessions.Store(userID, session)
	defer h.sessions.Delete(userID)

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.waitTimeout)
	defer cancel()

	result, err := h.matchService.StartSearch(ctx, userID)
	if err != nil {
		session.writeJSON(map[string]string{"event_type": "error", "message": httpErrorMessage(err)})
		return nil
	}

	if result.Matched {
		// Matched instantly; the fanout event may still race our session
		// registration, so push the result directly.
		h.pushMatched(session, userID, result.Pair)
		return nil
	}

	go h.readLoop(conn, session)

	select {
	case <-session.done:
		return nil
	case <-ctx.Done():
		// Timed out waiting: leave the queue and tell the client.
		if _, err := h.matchService.StopSearch(context.Background(), userID); err != nil {
			h.log.Debug().Err(err).Int64("user_id", userID).Msg("stop after socket timeout")
		}
		session.writeJSON(map[string]string{"event_type": "match_timeout"})
		return nil
	}
}

// readLoop drains client frames so close events are noticed. The client
// never sends meaningful data on this socket.
func (h *SocketHandler) readLoop(conn *websocket.Conn, session *socketSession) {
	defer session.close()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) && !isTimeoutError(err) {
				h.log.Debug().Err(err).Msg("unexpected websocket close")
			}
			return
		}
	}
}

// Dispatch pushes an event to the target user's socket when they are
// connected here. Matched and ended events also close the wait loop.
func (h *SocketHandler) Dispatch(payload eventtype.EventPayload) {
	value, ok := h.sessions.Load(payload.UserID)
	if !ok {
		return
	}
	session := value.(*socketSession)

	if err := session.writeJSON(payload); err != nil {
		h.log.Debug().Err(err).Int64("user_id", payload.UserID).Msg("socket push failed")
		session.close()
		return
	}

	switch payload.EventType {
	case eventtype.EventTypeMatched, eventtype.EventTypeEnded, eventtype.EventTypeSearchCancelled:
		session.close()
	}
}

func (h *SocketHandler) pushMatched(session *socketSession, userID int64, pair *matchtype.Pair) {
	event := eventtype.MatchedEvent{
		PairID:    pair.ID,
		UserID:    userID,
		PartnerID: pair.PartnerOf(userID),
		StartedAt: pair.StartedAt,
	}
	if err := session.writeJSON(map[string]any{
		"event_type": eventtype.EventTypeMatched,
		"user_id":    userID,
		"data":       event,
	}); err != nil {
		h.log.Debug().Err(err).Int64("user_id", userID).Msg("matched push failed")
	}
}

func httpErrorMessage(err error) string {
	if he, ok := httpError(err).(*echo.HTTPError); ok {
		if msg, ok := he.Message.(string); ok {
			return msg
		}
	}
	return "internal error"
}

func isTimeoutError(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}
