// Package live runs a presentation player on the server and drives it over a
// websocket. The browser renders state messages and acts as the narration
// engine.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"notebook-backend/internal/model"
	"notebook-backend/internal/player"
	"notebook-backend/pkg/logger"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 50 * time.Second
	maxMessage   = 4096
	outboxSize   = 64
)

type session struct {
	conn     *websocket.Conn
	player   *player.Player
	narrator *RemoteNarrator
	out      chan ServerMessage
	ctx      context.Context
	log      *logrus.Entry
}

// Serve plays p for the client on conn until either side closes. It owns
// conn and closes it before returning.
func Serve(ctx context.Context, conn *websocket.Conn, p model.Presentation, opts ...player.Option) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	s := &session{
		conn: conn,
		out:  make(chan ServerMessage, outboxSize),
		ctx:  gctx,
		log:  logger.WithFields(logrus.Fields{"presentation": p.ID, "remote": conn.RemoteAddr().String()}),
	}
	s.narrator = NewRemoteNarrator(s.send)
	s.player = player.New(p, s.narrator, append(opts, player.WithOnClose(cancel))...)
	s.player.OnChange(func(st player.State) {
		s.send(ServerMessage{Type: MsgState, State: &st})
	})

	initial := s.player.State()
	s.send(ServerMessage{Type: MsgState, State: &initial})
	s.log.Info("live session started")

	g.Go(func() error { return s.readPump(gctx) })
	g.Go(func() error { return s.writePump(gctx) })

	err := g.Wait()
	s.player.Close()

	if err != nil && !isNormalClose(err) && ctx.Err() == nil {
		s.log.WithField("error", err).Warn("live session ended with error")
		return err
	}
	s.log.Info("live session closed")
	return nil
}

func (s *session) send(msg ServerMessage) {
	select {
	case s.out <- msg:
	case <-s.ctx.Done():
	}
}

func (s *session) readPump(ctx context.Context) error {
	s.conn.SetReadLimit(maxMessage)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.send(ServerMessage{Type: MsgError, Error: "invalid message"})
			continue
		}
		if !s.dispatch(msg) {
			s.send(ServerMessage{Type: MsgError, Error: "unknown command " + msg.Type})
		}
	}
}

func (s *session) dispatch(msg ClientMessage) bool {
	p := s.player
	switch msg.Type {
	case CmdPlay:
		p.Play()
	case CmdPause:
		p.Pause()
	case CmdStop:
		p.Stop()
	case CmdGoTo:
		p.GoToSlide(msg.Index)
	case CmdNext:
		p.Next()
	case CmdPrevious:
		p.Previous()
	case CmdMute:
		p.ToggleMute()
	case CmdPointer:
		p.PointerActivity()
	case CmdKey:
		p.HandleKey(msg.Key)
	case CmdNarrationEnded:
		s.narrator.Ended(msg.ID)
	case CmdNarrationFailed:
		s.narrator.Failed(msg.ID, msg.Error)
	case CmdClose:
		p.Close()
	default:
		return false
	}
	return true
}

func (s *session) writePump(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				return err
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case <-ctx.Done():
			s.drain()
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "presentation closed"),
				time.Now().Add(writeWait))
			return nil
		}
	}
}

// drain flushes messages queued before the session ended.
func (s *session) drain() {
	for {
		select {
		case msg := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func isNormalClose(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
	}
	return false
}
