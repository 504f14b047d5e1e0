package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/fileflow/fileflow-server/internal/auth"
	"github.com/fileflow/fileflow-server/internal/core"
	"github.com/fileflow/fileflow-server/internal/proto"
	"github.com/fileflow/fileflow-server/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to core.Conn.
type WSHandler struct {
	engine      *core.Engine
	authService *auth.Service
	msgLimit    int
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. msgLimit caps inbound events
// per connection per minute; zero disables the limit.
func NewWSHandler(engine *core.Engine, authService *auth.Service, msgLimit int, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		engine:      engine,
		authService: authService,
		msgLimit:    msgLimit,
		log:         logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer socket.Close(websocket.StatusInternalError, "internal error")

	conn := core.NewConn(utils.NewID())
	defer h.engine.Disconnect(context.WithoutCancel(ctx), conn)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, socket, conn)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, socket, conn)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	socket.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, socket *websocket.Conn, conn *core.Conn) error {
	limiter := newRateLimiter(h.msgLimit)
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, socket, &inbound); err != nil {
			h.log.Warn().Err(err).Str("conn_id", conn.ID).Msg("read ws inbound")
			return err
		}

		if !limiter.allow() {
			if err := wsjson.Write(ctx, socket, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: core.ErrCodeRateLimited, Msg: "too many events"},
			}); err != nil {
				return err
			}
			continue
		}

		in, protoErr, err := inboundToCore(h.authService, inbound)
		if err != nil {
			h.log.Warn().Err(err).Str("conn_id", conn.ID).Msg("failed to map inbound")
			if writeErr := wsjson.Write(ctx, socket, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: core.ErrCodeMalformedEvent, Msg: "malformed event payload"},
			}); writeErr != nil {
				return writeErr
			}
			continue
		}
		if protoErr != nil {
			if writeErr := wsjson.Write(ctx, socket, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoErr,
			}); writeErr != nil {
				return writeErr
			}
			continue
		}

		h.engine.Handle(ctx, conn, *in)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, socket *websocket.Conn, conn *core.Conn) error {
	for {
		select {
		case event := <-conn.Events():
			if err := wsjson.Write(ctx, socket, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", conn.ID).Msg("write ws event")
				return err
			}
		case <-conn.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
