// Package engine runs conversation turns: it appends the inbound message to
// the room log, derives room state, and dispatches to the first eligible
// action. Rooms are independent; turns within one room are serialized.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/orchardfi/advisor/internal/actions"
	"github.com/orchardfi/advisor/internal/idgen"
	"github.com/orchardfi/advisor/internal/memory"
)

const fallbackReplyText = "I'm your Aave investment advisor. I can help you pick an asset, plan an investment, set up a secure multisig wallet, and prepare the deposit transaction. What would you like to do?"

// Engine dispatches messages to actions over the room's memory log.
type Engine struct {
	Store   *memory.Store
	Actions []actions.Action
	AgentID string
	Log     zerolog.Logger

	mu    sync.Mutex
	rooms map[string]*sync.Mutex
}

func New(store *memory.Store, deps *actions.Deps, log zerolog.Logger) *Engine {
	return &Engine{
		Store:   store,
		Actions: deps.All(),
		AgentID: deps.AgentID,
		Log:     log,
		rooms:   map[string]*sync.Mutex{},
	}
}

func (e *Engine) roomLock(roomID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.rooms[roomID]
	if !ok {
		lock = &sync.Mutex{}
		e.rooms[roomID] = lock
	}
	return lock
}

// HandleMessage runs one turn and returns every reply it produced. Exactly
// one action handles the turn; when no guard matches, the user gets the
// capability fallback. Guard errors are logged and treated as not eligible.
func (e *Engine) HandleMessage(ctx context.Context, msg actions.Message) ([]actions.Reply, error) {
	if msg.RoomID == "" {
		return nil, fmt.Errorf("room id is required")
	}
	if msg.ID == "" {
		msg.ID = idgen.Message()
	}

	lock := e.roomLock(msg.RoomID)
	lock.Lock()
	defer lock.Unlock()

	_, err := e.Store.Append(ctx, memory.RecordInput{
		RoomID:  msg.RoomID,
		UserID:  msg.UserID,
		AgentID: e.AgentID,
		Action:  actions.ActionMessage,
		Content: map[string]any{"text": msg.Text},
	})
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	records, err := e.Store.ByRoom(ctx, msg.RoomID)
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}
	state := actions.DeriveState(records)

	var replies []actions.Reply
	turn := actions.NewTurn(msg, state, func(r actions.Reply) {
		replies = append(replies, r)
	})

	for _, action := range e.Actions {
		eligible, err := action.Eligible(ctx, turn)
		if err != nil {
			e.Log.Warn().Err(err).Str("action", action.Name).Str("room_id", msg.RoomID).Msg("eligibility check failed")
			continue
		}
		if !eligible {
			continue
		}

		e.Log.Debug().Str("action", action.Name).Str("room_id", msg.RoomID).Str("message_id", msg.ID).Msg("handling turn")
		handled, err := action.Handle(ctx, turn)
		if err != nil {
			e.Log.Error().Err(err).Str("action", action.Name).Str("room_id", msg.RoomID).Msg("action failed")
		}
		if handled {
			break
		}
	}

	if !turn.Replied() {
		turn.Reply(actions.Reply{Text: fallbackReplyText})
	}
	return replies, nil
}
