package models

import "time"

// Student represents a learner registered with the institution.
type Student struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Name         string    `db:"name" json:"name"`
	Pin          string    `db:"pin" json:"pin"`
	Course       string    `db:"course" json:"course"`
	Branch       string    `db:"branch" json:"branch"`
	Mobile       string    `db:"mobile" json:"mobile"`
	PhotoColor   string    `db:"photo_color" json:"photo_color"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CreateStudentRequest carries the fields needed to register a student.
type CreateStudentRequest struct {
	StudentID  string `json:"student_id" validate:"required,min=3,max=32"`
	Password   string `json:"password" validate:"required,min=6,max=72"`
	Name       string `json:"name" validate:"required,min=2,max=120"`
	Pin        string `json:"pin" validate:"required,min=3,max=32"`
	Course     string `json:"course" validate:"required,max=64"`
	Branch     string `json:"branch" validate:"required,max=64"`
	Mobile     string `json:"mobile" validate:"required,len=10,number"`
	PhotoColor string `json:"photo_color" validate:"omitempty,max=32"`
}

// UpdateStudentRequest carries the mutable profile fields.
type UpdateStudentRequest struct {
	StudentID  string `json:"student_id" validate:"required,min=3,max=32"`
	Name       string `json:"name" validate:"required,min=2,max=120"`
	Pin        string `json:"pin" validate:"required,min=3,max=32"`
	Course     string `json:"course" validate:"required,max=64"`
	Branch     string `json:"branch" validate:"required,max=64"`
	Mobile     string `json:"mobile" validate:"required,len=10,number"`
	PhotoColor string `json:"photo_color" validate:"omitempty,max=32"`
}

// CreateStudentResult reports the created row plus whether the fee ledger
// initializer completed for every catalog entry.
type CreateStudentResult struct {
	Student           Student `json:"student"`
	LedgerInitialized bool    `json:"ledger_initialized"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Branch    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
