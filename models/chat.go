package models

// ChatHistoryLimit is how many tutor messages are kept and returned.
const ChatHistoryLimit = 50

// ChatMessage is one turn of the tutor conversation kept in `chat_history/{uid}`.
type ChatMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

type ChatHistory struct {
	Messages []ChatMessage `json:"messages"`
}
