package client

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"fragmentone/socket"

	"github.com/gorilla/websocket"
)

// Listen connects to the new-fragment feed and calls onMessage for every
// message until ctx is done or the connection drops.
func (c *Client) Listen(ctx context.Context, onMessage func(socket.WSMessage)) error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {c.Token}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		var msg socket.WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		onMessage(msg)
	}
}
