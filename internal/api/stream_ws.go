package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"

	"github.com/orchardfi/advisor/internal/actions"
)

type wsWriter interface {
	Write(ctx context.Context, msgType websocket.MessageType, data []byte) error
}

// handleRoomWS streams the room's replies over a WebSocket until the client
// disconnects.
func (s *Server) handleRoomWS(w http.ResponseWriter, r *http.Request, roomID string) {
	if s.Hub == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "streaming disabled"})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	ctx := r.Context()
	sub := s.Hub.Subscribe(ctx, roomID)
	if err := streamReplies(ctx, sub, conn); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "stream error")
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "done")
}

func streamReplies(ctx context.Context, sub <-chan actions.Reply, writer wsWriter) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case reply, ok := <-sub:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(reply)
			if err != nil {
				return err
			}
			if err := writer.Write(ctx, websocket.MessageText, payload); err != nil {
				return err
			}
		}
	}
}
