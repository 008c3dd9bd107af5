package messagestore

// Schema creates the chat tables. It is valid for both Postgres and SQLite.
const Schema = `
CREATE TABLE IF NOT EXISTS chat_topics (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	position    BIGINT NOT NULL,
	created_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_topics_session ON chat_topics (session_id, position);

CREATE TABLE IF NOT EXISTS chat_messages (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	topic_id    TEXT NOT NULL DEFAULT '',
	parent_id   TEXT NOT NULL DEFAULT '',
	role        TEXT NOT NULL,
	position    BIGINT NOT NULL,
	payload     TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_scope ON chat_messages (session_id, topic_id, position);
`
