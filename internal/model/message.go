package model

import "time"

type Message struct {
	ID            string    `db:"id" json:"id"`
	Text          string    `db:"text" json:"text"`
	IsUserMessage bool      `db:"is_user_message" json:"isUserMessage"`
	UserID        string    `db:"user_id" json:"-"`
	FileID        string    `db:"file_id" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// Passage is a page of indexed text returned by similarity search.
type Passage struct {
	Page     int     `json:"page"`
	Content  string  `json:"content"`
	Distance float64 `json:"distance"`
}
