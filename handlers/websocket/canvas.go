package websocket

import (
	"fmt"
	"net/http"
	"overlay-server/core"
	"regexp"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// CanvasRoom is the room every viewer of the shared canvas joins.
const CanvasRoom socketio.Room = "overlays"

type ackInvoker func(err error, payload map[string]any)

// Channel is the socket.io side of the canvas: viewers join one room, get
// overlays-changed pushes, and relay live drag previews to each other.
type Channel struct {
	srv     *socketio.Server
	handler http.Handler
	closing sync.Once

	mu      sync.RWMutex
	viewers map[socketio.SocketId]struct{}
}

func SetupSocketIO(allowedOrigins []string) *Channel {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(1000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)

	origins := make([]any, 0, len(allowedOrigins)+1)
	for _, origin := range allowedOrigins {
		origins = append(origins, origin)
	}
	if len(origins) == 0 {
		origins = append(origins, regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`))
	}
	opts.SetCors(&types.Cors{
		Origin:      origins,
		Credentials: true,
	})

	c := &Channel{
		srv:     socketio.NewServer(nil, opts),
		viewers: make(map[socketio.SocketId]struct{}),
	}
	// Binds the engine, which Close needs even if nothing was served.
	c.handler = c.srv.ServeHandler(nil)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	c.srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		c.bind(socket)
	})

	return c
}

// Handler serves the socket.io transport; mount it under /socket.io/.
func (c *Channel) Handler() http.Handler {
	return c.handler
}

// Viewers returns how many sockets have joined the canvas.
func (c *Channel) Viewers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.viewers)
}

func (c *Channel) join(id socketio.SocketId) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewers[id] = struct{}{}
	return len(c.viewers)
}

func (c *Channel) leave(id socketio.SocketId) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.viewers, id)
	return len(c.viewers)
}

func (c *Channel) bind(socket *socketio.Socket) {
	me := socket.Id()
	log := logrus.WithField("socket_id", me)
	log.Debug("Socket connected")

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("join-canvas", func(datas ...any) {
		ack, _ := extractAck(datas)

		socket.Join(CanvasRoom)
		viewers := c.join(me)
		log.WithField("viewers", viewers).Info("Viewer joined canvas")

		_ = c.srv.To(CanvasRoom).Emit("viewer-count", viewers)
		respondWithAck(socket, ack, "join-canvas-ack", map[string]any{
			"status":  "ok",
			"viewers": viewers,
		}, nil)
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("overlay-drag", func(datas ...any) {
		ack, args := extractAck(datas)
		preview, err := parsePreview(args, string(me))
		if err != nil {
			respondWithAck(socket, ack, "", map[string]any{"status": "error", "error": err.Error()}, err)
			return
		}

		// Previews are lossy; the committed position arrives as overlays-changed.
		if err := socket.Volatile().Broadcast().To(CanvasRoom).Emit("overlay-preview", preview); err != nil {
			respondWithAck(socket, ack, "", map[string]any{"status": "error", "error": err.Error()}, err)
			return
		}
		respondWithAck(socket, ack, "", map[string]any{"status": "ok"}, nil)
	})

	socket.On("disconnecting", func(datas ...any) {
		viewers := c.leave(me)
		log.WithField("viewers", viewers).Debug("Viewer left canvas")
		_ = socket.Broadcast().To(CanvasRoom).Emit("viewer-count", viewers)
	})

	socket.On("disconnect", func(datas ...any) {
		socket.RemoveAllListeners("")
		socket.Disconnect(true)
	})
}

// Relay pushes every change from events to the canvas room until the
// channel closes.
func (c *Channel) Relay(events <-chan core.ChangeEvent) {
	for event := range events {
		if err := c.srv.To(CanvasRoom).Emit("overlays-changed", event); err != nil {
			logrus.WithError(err).WithField("type", event.Type).Warn("Failed to push overlay change")
		}
	}
}

func (c *Channel) Close() {
	c.closing.Do(func() {
		c.srv.Close(nil)
	})
}

// parsePreview accepts {overlayId, position: {x, y}} and stamps the sender.
func parsePreview(args []any, sender string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("preview payload is required")
	}
	payload, ok := args[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid preview payload")
	}

	id, _ := payload["overlayId"].(string)
	if id == "" {
		return nil, fmt.Errorf("overlay id is required")
	}

	position, ok := payload["position"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("position is required")
	}
	x, xok := position["x"].(float64)
	y, yok := position["y"].(float64)
	if !xok || !yok {
		return nil, fmt.Errorf("position must have numeric x and y")
	}

	origin, _ := payload["origin"].(string)
	if origin == "" {
		origin = sender
	}

	return map[string]any{
		"overlayId": id,
		"position":  map[string]any{"x": x, "y": y},
		"origin":    origin,
	}, nil
}

func extractAck(datas []any) (ack ackInvoker, args []any) {
	if len(datas) == 0 {
		return nil, datas
	}

	candidate := datas[len(datas)-1]
	ack = wrapAck(candidate)
	if ack == nil {
		return nil, datas
	}

	return ack, datas[:len(datas)-1]
}

// wrapAck accepts the socket.io acknowledgement callback and the two plain
// shapes handlers are tested with.
func wrapAck(candidate any) ackInvoker {
	switch fn := candidate.(type) {
	case func([]any, error):
		return func(err error, payload map[string]any) {
			fn([]any{payload}, err)
		}
	case func(error, map[string]any):
		return fn
	case func(any):
		return func(err error, payload map[string]any) {
			if err != nil {
				fn(err)
				return
			}
			fn(payload)
		}
	}
	return nil
}

func respondWithAck(socket *socketio.Socket, ack ackInvoker, event string, payload map[string]any, ackErr error) {
	if ack != nil {
		ack(ackErr, payload)
	}

	if event != "" && payload != nil {
		_ = socket.Emit(event, payload)
	}
}
