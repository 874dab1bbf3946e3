// Package models defines the server-side account model, the inputs of the
// account operations and the view returned to transports.
package models

import "time"

// Account is a registered user as persisted in the users table.
type Account struct {
	ID           string
	Email        string
	Username     string
	Bio          *string
	Image        *string
	PasswordHash string `json:"-"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterParams are the credentials supplied when creating an account.
type RegisterParams struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginParams are the credentials supplied when opening a session.
type LoginParams struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AccountUpdate is a partial update. A nil field leaves the stored value
// unchanged; a non-nil pointer to "" is an explicit value.
type AccountUpdate struct {
	Email    *string `json:"email,omitempty" validate:"omitnil,email,max=254"`
	Username *string `json:"username,omitempty" validate:"omitnil,min=1,max=64"`
	Password *string `json:"password,omitempty" validate:"omitnil,min=1,max=72"`
	Bio      *string `json:"bio,omitempty"`
	Image    *string `json:"image,omitempty" validate:"omitnil,omitempty,url"`
}

// Empty reports whether the update carries no field at all.
func (u AccountUpdate) Empty() bool {
	return u.Email == nil && u.Username == nil && u.Password == nil && u.Bio == nil && u.Image == nil
}

// AccountPatch is what the store applies: the same partial semantics as
// AccountUpdate, with the password already hashed.
type AccountPatch struct {
	Email        *string
	Username     *string
	PasswordHash *string
	Bio          *string
	Image        *string
}

// AccountView is the account as seen by its owner. Token is set only on
// register, login, self-fetch and update responses.
type AccountView struct {
	Email    string  `json:"email"`
	Username string  `json:"username"`
	Bio      *string `json:"bio"`
	Image    *string `json:"image"`
	Token    string  `json:"token,omitempty"`
}

// NewAccountView builds the owner's view of a, carrying token.
func NewAccountView(a *Account, token string) *AccountView {
	return &AccountView{
		Email:    a.Email,
		Username: a.Username,
		Bio:      a.Bio,
		Image:    a.Image,
		Token:    token,
	}
}

// ProfileView is the public view of an account. It never carries a token.
type ProfileView struct {
	Username string  `json:"username"`
	Bio      *string `json:"bio"`
	Image    *string `json:"image"`
}

// NewProfileView builds the public view of a.
func NewProfileView(a *Account) *ProfileView {
	return &ProfileView{Username: a.Username, Bio: a.Bio, Image: a.Image}
}
