package httpapi

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsReadLimit    = 4 << 10
)

// SafeConn serializes writes to a websocket connection.
type SafeConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  bool
}

func NewSafeConn(conn *websocket.Conn) *SafeConn {
	return &SafeConn{conn: conn}
}

func (sc *SafeConn) WriteJSON(v any) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()

	if sc.closed {
		return nil
	}
	_ = sc.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return sc.conn.WriteJSON(v)
}

func (sc *SafeConn) Ping() error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()

	if sc.closed {
		return nil
	}
	return sc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

func (sc *SafeConn) Close() error {
	sc.writeMu.Lock()
	sc.closed = true
	sc.writeMu.Unlock()
	return sc.conn.Close()
}

// handleEvents streams every bus event to the client as JSON until either
// side goes away. Client messages are read only to notice the close.
func (s *Server) handleEvents(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return nil
	}

	safeConn := NewSafeConn(conn)
	defer safeConn.Close()

	sessionID := fmt.Sprintf("ws_%d", time.Now().UnixNano())
	eventCh, unsubscribe := s.svc.Events().Subscribe(sessionID)
	defer unsubscribe()

	log := s.logger.With().Str("session", sessionID).Logger()
	log.Info().Msg("websocket client connected")

	if err := safeConn.WriteJSON(map[string]any{"action": "connected", "sessionId": sessionID}); err != nil {
		return nil
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		conn.SetReadLimit(wsReadLimit)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-readDone:
			log.Info().Msg("websocket client disconnected")
			return nil
		case <-s.background.Done():
			return nil
		case <-ping.C:
			if err := safeConn.Ping(); err != nil {
				return nil
			}
		case event, ok := <-eventCh:
			if !ok {
				return nil
			}
			if err := safeConn.WriteJSON(event); err != nil {
				log.Warn().Err(err).Msg("websocket write failed")
				return nil
			}
		}
	}
}
