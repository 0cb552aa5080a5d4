package models

import "time"

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"displayName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	Avatar       string    `json:"avatar,omitempty"`
	Bio          string    `json:"bio"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Public returns the user without credential material.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// Snapshot returns the author snapshot embedded in new content.
func (u User) Snapshot() Author {
	return Author{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Avatar:      u.Avatar,
	}
}

type SignupRequest struct {
	Username        string `json:"username"`
	DisplayName     string `json:"displayName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProfileUpdate struct {
	DisplayName string `json:"displayName" form:"displayName"`
	Bio         string `json:"bio" form:"bio"`
	Avatar      string `json:"avatar" form:"avatar"`
}

type AuthResponse struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
	ExpiresIn   int    `json:"expires_in"`
}
