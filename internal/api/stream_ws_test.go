package api

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/orchardfi/advisor/internal/actions"
)

type fakeWSWriter struct {
	messages [][]byte
}

func (f *fakeWSWriter) Write(_ context.Context, _ websocket.MessageType, data []byte) error {
	f.messages = append(f.messages, data)
	return nil
}

func TestStreamRepliesWriter(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer := &fakeWSWriter{}
	sub := hub.Subscribe(ctx, "room-1")
	go func() {
		_ = streamReplies(ctx, sub, writer)
	}()

	hub.Publish("room-1", []actions.Reply{{Text: "hello", Action: "GET_USER_WALLET"}})
	// A different room's replies must not reach this subscriber.
	hub.Publish("room-2", []actions.Reply{{Text: "other"}})

	deadline := time.After(2 * time.Second)
	for {
		if len(writer.messages) > 0 {
			var reply actions.Reply
			if err := json.Unmarshal(writer.messages[0], &reply); err != nil {
				t.Fatalf("decode ws payload: %v", err)
			}
			if reply.Text != "hello" {
				t.Fatalf("unexpected reply text %q", reply.Text)
			}
			if len(writer.messages) > 1 {
				t.Fatalf("cross-room reply leaked")
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for ws message")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}
