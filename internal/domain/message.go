package domain

// Sender identifies who authored a timeline entry.
type Sender string

const (
	SenderPlayer        Sender = "player"
	SenderDungeonMaster Sender = "dm"
	SenderSystem        Sender = "system"
)

// Message is one entry in the session transcript. ID and Sender are fixed at
// creation; Text may only grow while the entry is the open streaming entry.
type Message struct {
	ID     int64
	Sender Sender
	Text   string
}
