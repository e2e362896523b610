package domain

import "time"

// MaxMessageLength is the longest chat message accepted, in runes.
const MaxMessageLength = 2000

// ChatMessage is append-only. Seq is assigned by the store and is the cursor
// for incremental reads.
type ChatMessage struct {
	Seq       int64
	ID        string
	TradeID   string
	SenderID  string
	Text      string
	CreatedAt time.Time
}
