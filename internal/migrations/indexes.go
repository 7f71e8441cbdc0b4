package migrations

import "gorm.io/gorm"

// conversationActivityIndex backs the conversation list, which sorts by
// COALESCE(last_message_at, created_at).
func conversationActivityIndex() Migration {
	return Migration{
		ID:   "001_conversation_activity_index",
		Name: "Index conversations by last activity",
		Up: func(db *gorm.DB) error {
			return db.Exec(`
				CREATE INDEX IF NOT EXISTS idx_conversations_activity
				ON conversations ((COALESCE(last_message_at, created_at)) DESC)
			`).Error
		},
	}
}

// ringingCallsIndex covers the conditional updates on calls that have not
// ended yet.
func ringingCallsIndex() Migration {
	return Migration{
		ID:        "002_open_calls_index",
		Name:      "Partial index on calls still open",
		DependsOn: []string{"001_conversation_activity_index"},
		Up: func(db *gorm.DB) error {
			return db.Exec(`
				CREATE INDEX IF NOT EXISTS idx_calls_open
				ON calls (receiver_id, created_at)
				WHERE ended_at IS NULL
			`).Error
		},
	}
}
