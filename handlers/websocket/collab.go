package websocket

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"whiteboard-server/core"
	"whiteboard-server/rooms"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

type (
	joinRoomPayload struct {
		RoomID string `mapstructure:"roomId"`
	}

	// drawPayload is what the drawing client emits: the stroke fields plus
	// the room id, which is stripped before the event reaches peers. The
	// session's own binding decides the room, not the payload.
	drawPayload struct {
		RoomID string  `mapstructure:"roomId"`
		Type   string  `mapstructure:"type"`
		X0     float64 `mapstructure:"x0"`
		Y0     float64 `mapstructure:"y0"`
		X1     float64 `mapstructure:"x1"`
		Y1     float64 `mapstructure:"y1"`
		Color  string  `mapstructure:"color"`
		Width  float64 `mapstructure:"width"`
	}
)

// socketSink adapts a socket.io socket to the rooms.EventSink the registry
// holds for each session.
type socketSink struct {
	socket *socketio.Socket
}

func (s socketSink) Emit(event string, args ...any) error {
	return s.socket.Emit(event, args...)
}

func SetupSocketIO(coordinator *rooms.Coordinator) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)

	localhostOrigin := regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)
	corsOrigins := []any{localhostOrigin}
	if clientURL := os.Getenv("CLIENT_URL"); clientURL != "" {
		corsOrigins = append(corsOrigins, clientURL)
	}
	opts.SetCors(&types.Cors{
		Origin:      corsOrigins,
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}

		sessionID := string(socket.Id())
		sink := socketSink{socket}
		log := logrus.WithField("session_id", sessionID)
		log.Info("session connected")

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("joinRoom", func(datas ...any) {
			payload, err := decodePayload[joinRoomPayload](datas)
			if err != nil {
				rejectAction(socket, err)
				return
			}
			if payload.RoomID == "" {
				rejectAction(socket, fmt.Errorf("room id is required"))
				return
			}
			coordinator.Join(context.Background(), sessionID, payload.RoomID, sink)
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("draw", func(datas ...any) {
			payload, err := decodePayload[drawPayload](datas)
			if err != nil {
				rejectAction(socket, err)
				return
			}
			event := core.StrokeEvent{
				X0:    payload.X0,
				Y0:    payload.Y0,
				X1:    payload.X1,
				Y1:    payload.Y1,
				Color: payload.Color,
				Width: payload.Width,
			}
			if err := coordinator.Draw(context.Background(), sessionID, event); err != nil {
				rejectAction(socket, err)
			}
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("clear", func(datas ...any) {
			if err := coordinator.Clear(context.Background(), sessionID); err != nil {
				rejectAction(socket, err)
			}
		})

		socket.On("disconnect", func(datas ...any) {
			log.Info("session disconnected")
			coordinator.Disconnect(sessionID)
		})
	})

	return srv
}

// rejectAction reports an invalid action back to the session that sent it.
// Peers never see rejected actions.
func rejectAction(socket *socketio.Socket, reason error) {
	logrus.WithFields(logrus.Fields{
		"session_id": socket.Id(),
		"reason":     reason,
	}).Warn("rejecting session action")
	_ = socket.Emit("actionRejected", map[string]any{"message": reason.Error()})
}

func decodePayload[T any](datas []any) (*T, error) {
	if len(datas) == 0 {
		return nil, fmt.Errorf("missing payload")
	}
	raw, ok := datas[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid payload")
	}

	var payload T
	if err := mapstructure.Decode(raw, &payload); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return &payload, nil
}
