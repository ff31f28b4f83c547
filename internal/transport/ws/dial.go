package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"clothcraft.ai/internal/protocol"
)

// Conn is the client end of a replication stream.
type Conn struct {
	ws      *websocket.Conn
	Welcome protocol.WelcomeMsg
}

// Dial connects to url, sends HELLO for uid and waits for WELCOME.
func Dial(ctx context.Context, url, uid string) (*Conn, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, PlayerUID: uid}
	if err := c.WriteJSON(hello); err != nil {
		_ = c.Close()
		return nil, err
	}
	_, msg, err := c.ReadMessage()
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &welcome); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("decode welcome: %w", err)
	}
	if welcome.Type != protocol.TypeWelcome {
		_ = c.Close()
		return nil, fmt.Errorf("expected %s, got %q", protocol.TypeWelcome, welcome.Type)
	}
	return &Conn{ws: c, Welcome: welcome}, nil
}

// Next blocks for the next replication message, skipping types it does not know.
func (c *Conn) Next() (protocol.Message, error) {
	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		m, err := protocol.Decode(msg)
		if errors.Is(err, protocol.ErrUnknownType) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

// Stream delivers messages until ctx ends or the connection fails. The error channel
// receives exactly one value when the stream stops.
func (c *Conn) Stream(ctx context.Context) (<-chan protocol.Message, <-chan error) {
	msgs := make(chan protocol.Message, 64)
	errc := make(chan error, 1)
	go func() {
		<-ctx.Done()
		_ = c.ws.Close()
	}()
	go func() {
		defer close(msgs)
		for {
			m, err := c.Next()
			if err != nil {
				if ctx.Err() != nil {
					err = ctx.Err()
				}
				errc <- err
				return
			}
			select {
			case msgs <- m:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()
	return msgs, errc
}

func (c *Conn) Close() error {
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.ws.Close()
}
