package httpapi

import (
	"github.com/labstack/echo/v4"

	"maestro/internal/eventbus"
)

// handleWebSocket upgrades the connection, subscribes it to the bus, and
// then reads only to notice text pings and disconnects -- all other
// traffic in this direction is outbound-only, per §4.H.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	unsubscribe := s.bus.Subscribe(conn)
	defer unsubscribe()

	conn.WriteJSON(eventbus.New(eventbus.TypeConnected, map[string]any{"clients": s.bus.Count()}))

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return nil
		}
		if string(msg) == "ping" {
			conn.WriteJSON(eventbus.New(eventbus.TypePong, nil))
		}
	}
}
