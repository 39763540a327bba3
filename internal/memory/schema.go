package memory

const schemaSQL = `
CREATE TABLE IF NOT EXISTS records (
  id TEXT PRIMARY KEY,
  room_id TEXT NOT NULL,
  user_id TEXT,
  agent_id TEXT,
  action TEXT NOT NULL,
  body TEXT NOT NULL,
  content TEXT,
  created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_room_created ON records(room_id, created_at);
CREATE INDEX IF NOT EXISTS idx_records_room_action ON records(room_id, action, created_at);

CREATE TABLE IF NOT EXISTS processed_messages (
  room_id TEXT NOT NULL,
  message_id TEXT NOT NULL,
  action TEXT NOT NULL,
  created_at TEXT NOT NULL,
  PRIMARY KEY(room_id, message_id, action)
);
`
