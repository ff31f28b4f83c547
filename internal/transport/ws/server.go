package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"clothcraft.ai/internal/protocol"
)

// Snapshotter produces the full state a joining client starts from.
type Snapshotter interface {
	Snapshot() *protocol.FullSnapshotMsg
}

type Server struct {
	hub    *Hub
	snap   Snapshotter
	params protocol.WorldParams
	maxQ   int
	log    logrus.FieldLogger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

// NewServer serves hub's clients. outbox caps the per-client queue a HELLO may ask for.
func NewServer(hub *Hub, snap Snapshotter, params protocol.WorldParams, outbox int, log logrus.FieldLogger) *Server {
	if outbox <= 0 {
		outbox = 64
	}
	return &Server{
		hub:    hub,
		snap:   snap,
		params: params,
		maxQ:   outbox,
		log:    log.WithField("component", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c := s.handshake(conn)
		if c == nil {
			return
		}
		defer s.hub.remove(c.id)
		log := s.log.WithFields(logrus.Fields{"client": c.id, "player_uid": c.uid})
		log.Info("client joined")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-c.evicted:
					closeWith(conn, "outbox overflow; rejoin")
					_ = conn.Close()
					return
				case b := <-c.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop. Clients send nothing after HELLO; reading detects disconnects.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		log.Info("client left")
	}
}

func (s *Server) handshake(conn *websocket.Conn) *client {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return nil
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 || maxQ > s.maxQ {
		maxQ = s.maxQ
	}
	c := newClient(s.nextID.Add(1), hello.PlayerUID, maxQ)

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       fmt.Sprintf("S%d", c.id),
		WorldParams:     s.params,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}

	// Join the hub before taking the snapshot so no change made after the snapshot is missed.
	// Anything queued earlier is replayed on top of it and is idempotent.
	s.hub.add(c)
	if err := writeJSON(conn, s.snap.Snapshot()); err != nil {
		s.hub.remove(c.id)
		return nil
	}
	return c
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
