package models

import (
	"time"

	"github.com/google/uuid"
)

// Message — сообщение в чате задания.
type Message struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ErrandID  uuid.UUID `db:"errand_id" json:"errand_id"`
	SenderID  uuid.UUID `db:"sender_id" json:"sender_id"`
	Text      string    `db:"text" json:"text"`
	Seq       int64     `db:"seq" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
