package domain

// Chat is the conversation summary kept next to the message feed.
type Chat struct {
	ID          string            `json:"id"`
	Members     map[string]string `json:"members"` // member id -> display name
	LastMessage string            `json:"last_message"`
	SenderID    string            `json:"sender_id"`
	Timestamp   int64             `json:"timestamp"`
}

type ChatSummary struct {
	LastMessage string
	SenderID    string
	Timestamp   int64
}

type Contact struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Viewer is the identity the materialized view is built for.
type Viewer struct {
	ID       string
	Name     string
	Language string
}
