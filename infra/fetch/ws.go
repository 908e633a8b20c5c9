package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// DialSnapshot connects to a websocket source, optionally sends a subscribe
// payload, and returns the first complete message received before the
// deadline. Stream sources are wrapped into the synchronous parser contract
// this way; parsers must not hold the socket open across ticks.
func DialSnapshot(ctx context.Context, wsURL string, subscribe []byte, deadline time.Duration) ([]byte, error) {
	dialer := websocket.Dialer{HandshakeTimeout: deadline}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
		return nil, err
	}
	if subscribe != nil {
		if err := conn.WriteMessage(websocket.TextMessage, subscribe); err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", wsURL, err)
		}
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", wsURL, err)
	}
	return msg, nil
}
