package dto

import "time"

// SendMessageRequest is the body of POST /message.
type SendMessageRequest struct {
	FileID  string `json:"fileId" validate:"required,uuid"`
	Message string `json:"message" validate:"required,max=4000"`
}

type MessageResponseDTO struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	IsUserMessage bool      `json:"isUserMessage"`
	CreatedAt     time.Time `json:"createdAt"`
}

type MessagePageResponseDTO struct {
	Messages   []MessageResponseDTO `json:"messages"`
	NextCursor string               `json:"nextCursor,omitempty"`
}
