package model

import "time"

// Candidate represents an enrolled examinee account.
type Candidate struct {
	ID           int       `json:"id"`
	Number       string    `json:"number"` // registration number used for login
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CandidateLoginRequest is the payload for candidate authentication.
type CandidateLoginRequest struct {
	Number   string `json:"number" binding:"required,min=4,max=20"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

// CandidateLoginResponse is returned after successful candidate login.
type CandidateLoginResponse struct {
	Token     string    `json:"token"`
	Candidate Candidate `json:"candidate"`
}

// Admin represents an administrator/proctor account.
type Admin struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// AdminLoginRequest is the payload for admin authentication.
type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

// AdminLoginResponse is returned after successful admin login.
type AdminLoginResponse struct {
	Token string `json:"token"`
	Admin Admin  `json:"admin"`
}
