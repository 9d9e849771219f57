package ws

// Типы событий WS. Клиент -> сервер
const (
	TypeOpen  = "open"  // подписаться на чат
	TypeClose = "close" // выйти из чата
	TypeSend  = "send"  // отправить сообщение
)

// Сервер -> клиент
const (
	TypeTimeline = "timeline" // упорядоченный список сообщений текущего чата
	TypeSendAck  = "send_ack" // подтверждение отправки (НЕ сообщение)
	TypeError    = "error"
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type OpenPayload struct {
	ChatID string `json:"chat_id"`
}

type ContactItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type SendPayload struct {
	ID       string        `json:"id,omitempty"`
	Text     string        `json:"text"`
	Contacts []ContactItem `json:"contacts,omitempty"`
}

type TimelinePayload struct {
	ChatID   string        `json:"chat_id"`
	Messages []MessageItem `json:"messages"`
}

type MessageItem struct {
	ID                 string `json:"id"`
	SenderID           string `json:"sender_id"`
	SenderName         string `json:"sender_name"`
	CreatedAt          int64  `json:"created_at"`
	Original           string `json:"original"`
	Text               string `json:"text"`
	TranslatedFrom     string `json:"translated_from,omitempty"`
	TranslatedFromName string `json:"translated_from_name,omitempty"`
	Pending            bool   `json:"pending,omitempty"`
}

// для client: снимает pending и переключает на новый чат, если он был создан
type SendAckPayload struct {
	ChatID string `json:"chat_id"`
	MsgID  string `json:"msg_id"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
