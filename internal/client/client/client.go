package client

import "context"

// User is the caller's own account as returned by the server.
type User struct {
	Email    string  `json:"email"`
	Username string  `json:"username"`
	Bio      *string `json:"bio"`
	Image    *string `json:"image"`
	Token    string  `json:"token,omitempty"`
}

// Update is a partial account update; nil fields are left unchanged.
type Update struct {
	Email    *string `json:"email,omitempty"`
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
	Bio      *string `json:"bio,omitempty"`
	Image    *string `json:"image,omitempty"`
}

// AvatarUpload is a presigned avatar upload slot.
type AvatarUpload struct {
	URL    string `json:"upload_url"`
	Method string `json:"method"`
	Image  string `json:"image"`
}

type Client interface {
	Close() error
	Register(ctx context.Context, email, username string, password []byte) (*User, error)
	Login(ctx context.Context, email string, password []byte) (*User, error)
	CurrentUser(ctx context.Context) (*User, error)
	UpdateUser(ctx context.Context, u Update) (*User, error)
	AvatarUpload(ctx context.Context, contentType string) (*AvatarUpload, error)
	LoggedIn() bool
	Logout()
}
