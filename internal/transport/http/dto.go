package http

type ErrorResponse struct {
	Error string `json:"error"`
}

type ContactItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type SendMessageRequest struct {
	ChatID    string        `json:"chat_id,omitempty"`
	ID        string        `json:"id,omitempty"`
	Contacts  []ContactItem `json:"contacts,omitempty"`
	Text      string        `json:"text"`
	Timestamp int64         `json:"timestamp,omitempty"`
}

type SendMessageResponse struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	Timestamp int64  `json:"timestamp"`
}

type ChatResponse struct {
	ID          string            `json:"id"`
	Members     map[string]string `json:"members"`
	LastMessage string            `json:"last_message"`
	SenderID    string            `json:"sender_id"`
	Timestamp   int64             `json:"timestamp"`
}

type ChatroomsResponse struct {
	Chatrooms []string `json:"chatrooms"`
}

type LanguageRequest struct {
	Language string `json:"language"`
}

type LanguageResponse struct {
	Language string `json:"language"`
	Name     string `json:"name,omitempty"`
}

type PushTokenRequest struct {
	Token string `json:"token"`
}
