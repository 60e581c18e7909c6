package chat

import "time"

// Frame types written to clients.
const (
	FrameNewMessage = "NEW_MESSAGE"
	FrameError      = "ERROR"
)

// Inbound is the payload a client sends to post a message.
type Inbound struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	RoomID     string `json:"roomId"`
	Content    string `json:"content"`
}

// Outbound is broadcast to the room after a message is stored.
type Outbound struct {
	Type       string    `json:"type"`
	Content    string    `json:"content"`
	SenderID   string    `json:"senderId"`
	RoomID     string    `json:"roomId"`
	SenderName string    `json:"senderName"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ErrorFrame is written only to the connection whose message was rejected.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
