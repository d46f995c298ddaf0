package model

import "time"

// Question lifecycle.
const (
	QuestionPending  = "PENDING"
	QuestionAnswered = "ANSWERED"
	QuestionClosed   = "CLOSED"
)

// Question is a user-submitted quality question answered by an administrator.
type Question struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Answer    string    `json:"answer"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
