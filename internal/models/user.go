package models

import "time"

// User is a registered account. ID is the identity carried by tokens.
type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Email        string    `bson:"email" json:"email"`
	Username     string    `bson:"username" json:"username"`
	Name         string    `bson:"name" json:"name"`
	PasswordHash string    `bson:"passwordHash" json:"-"`
	AvatarURL    string    `bson:"avatarUrl,omitempty" json:"avatarUrl,omitempty"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Profile is the public shape returned by the auth endpoints.
type Profile struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Username  string  `json:"username"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatarUrl"`
}

func (u *User) Profile() Profile {
	p := Profile{ID: u.ID, Email: u.Email, Username: u.Username, Name: u.Name}
	if u.AvatarURL != "" {
		avatar := u.AvatarURL
		p.AvatarURL = &avatar
	}
	return p
}
