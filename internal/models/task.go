package models

import "time"

// Task is a to-do item in the "todos" collection.
type Task struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IsCompleted bool      `json:"isCompleted"`
	IsImportant bool      `json:"isImportant"`
	CreatedAt   time.Time `json:"createdAt"`
	OwnerID     string    `json:"ownerId,omitempty"`
}

// Habit is a tracked habit in the "habits" collection.
type Habit struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	OwnerID   string    `json:"ownerId,omitempty"`
}

// JournalEntry is immutable once written.
type JournalEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	OwnerID   string    `json:"ownerId,omitempty"`
}
