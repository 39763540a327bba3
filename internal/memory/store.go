package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Store is an append-only conversation log. Records are inserted, read back
// by room, and never updated or deleted; recency decides which record wins
// when an action appears more than once.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

type Record struct {
	ID        string         `json:"id"`
	RoomID    string         `json:"room_id"`
	UserID    string         `json:"user_id,omitempty"`
	AgentID   string         `json:"agent_id,omitempty"`
	Action    string         `json:"action"`
	Body      string         `json:"body"`
	Content   map[string]any `json:"content,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type RecordInput struct {
	RoomID  string
	UserID  string
	AgentID string
	Action  string
	Body    string
	Content map[string]any
}

func (s *Store) Append(ctx context.Context, input RecordInput) (Record, error) {
	if strings.TrimSpace(input.RoomID) == "" {
		return Record{}, fmt.Errorf("room id is required")
	}
	if strings.TrimSpace(input.Action) == "" {
		return Record{}, fmt.Errorf("action is required")
	}

	id := ulid.Make().String()
	createdAt := time.Now().UTC()
	contentJSON, err := encodeJSON(input.Content)
	if err != nil {
		return Record{}, fmt.Errorf("encode content: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (id, room_id, user_id, agent_id, action, body, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, input.RoomID, nullString(input.UserID), nullString(input.AgentID), input.Action, input.Body, contentJSON, createdAt.Format(time.RFC3339Nano))
	if err != nil {
		return Record{}, fmt.Errorf("insert record: %w", err)
	}

	return Record{
		ID:        id,
		RoomID:    input.RoomID,
		UserID:    input.UserID,
		AgentID:   input.AgentID,
		Action:    input.Action,
		Body:      input.Body,
		Content:   input.Content,
		CreatedAt: createdAt,
	}, nil
}

// ByRoom returns every record for the room, oldest first. Insertion order is
// authoritative; ULID ids tiebreak records created in the same nanosecond.
func (s *Store) ByRoom(ctx context.Context, roomID string) ([]Record, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, fmt.Errorf("room id is required")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, user_id, agent_id, action, body, content, created_at
		FROM records WHERE room_id = ? ORDER BY created_at ASC, id ASC
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// LatestByAction returns the newest record in the room carrying the action
// tag, or ok=false when the room has none.
func (s *Store) LatestByAction(ctx context.Context, roomID, action string) (Record, bool, error) {
	if strings.TrimSpace(roomID) == "" {
		return Record{}, false, fmt.Errorf("room id is required")
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, room_id, user_id, agent_id, action, body, content, created_at
		FROM records WHERE room_id = ? AND action = ? ORDER BY created_at DESC, id DESC LIMIT 1
	`, roomID, action)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return record, true, nil
}

// MarkProcessed records that an action consumed a message id. The insert is
// idempotent, so marking twice is harmless.
func (s *Store) MarkProcessed(ctx context.Context, roomID, messageID, action string) error {
	if strings.TrimSpace(messageID) == "" {
		return fmt.Errorf("message id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO processed_messages (room_id, message_id, action, created_at)
		VALUES (?, ?, ?, ?)
	`, roomID, messageID, action, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

func (s *Store) Processed(ctx context.Context, roomID, messageID, action string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM processed_messages WHERE room_id = ? AND message_id = ? AND action = ?
	`, roomID, messageID, action).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check processed: %w", err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var r Record
	var userID, agentID, contentStr sql.NullString
	var createdAtStr string
	if err := row.Scan(&r.ID, &r.RoomID, &userID, &agentID, &r.Action, &r.Body, &contentStr, &createdAtStr); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan record: %w", err)
	}
	r.UserID = userID.String
	r.AgentID = agentID.String
	r.Content = decodeJSONMap(contentStr.String)
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	return r, nil
}

func encodeJSON(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeJSONMap(v string) map[string]any {
	if v == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return nil
	}
	return out
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
