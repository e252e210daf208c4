package model

import "time"

type VerifyHistory struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	SuccessAt time.Time `db:"success_at" json:"successAt"`
}

type VerifyStatus struct {
	Email     string    `db:"email" json:"email"`
	Status    string    `db:"status" json:"status"`
	Message   string    `db:"message" json:"message"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type RestoreItem struct {
	Email  string `json:"email"`
	Status string `json:"status"`
}

type RestoreResult struct {
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}
