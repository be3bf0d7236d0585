package auth

import "time"

type User struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	Name         string    `json:"name" gorm:"not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session is a server-side sign-in. It is valid while the row exists and
// ExpiresAt is in the future.
type Session struct {
	ID         string    `json:"id" gorm:"primaryKey;size:21"`
	UserID     string    `json:"userId" gorm:"not null;index"`
	RememberMe bool      `json:"rememberMe"`
	ExpiresAt  time.Time `json:"expiresAt" gorm:"not null;index"`
	CreatedAt  time.Time `json:"createdAt"`
}

type UserSession struct {
	User    User    `json:"user"`
	Session Session `json:"session"`
}

// Models lists the tables owned by the provider.
func Models() []any {
	return []any{&User{}, &Session{}}
}
