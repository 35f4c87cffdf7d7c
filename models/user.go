package models

import (
	"errors"
	"time"

	"github.com/mmdatafocus/rentease_backend/utils"
)

const MinPasswordLength = 8

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrEmailTaken       = errors.New("user with this email already exists")
	ErrResetTokenInvalid = errors.New("reset token is invalid or expired")
)

type User struct {
	ID                int        `gorm:"primary_key" json:"id"`
	Email             string     `gorm:"size:100;uniqueIndex;not null" json:"email" binding:"required,email"`
	PasswordHash      string     `gorm:"size:100;not null" json:"-"`
	Role              UserRole   `gorm:"type:enum('Landlord','Tenant');not null" json:"role"`
	FirstName         string     `gorm:"size:50" json:"first_name"`
	LastName          string     `gorm:"size:50" json:"last_name"`
	Phone             string     `gorm:"size:20" json:"phone"`
	ResetToken        string     `gorm:"size:64;index" json:"-"`
	ResetTokenExpires *time.Time `json:"-"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) SetPassword(plain string) error {
	if len(plain) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	hashed, err := utils.HashPassword(plain)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashed)
	return nil
}

func (u *User) CheckPassword(candidate string) bool {
	return utils.ComparePassword(u.PasswordHash, candidate) == nil
}

// GenerateResetToken rotates the reset token; default lifetime one hour.
func (u *User) GenerateResetToken(lifetime time.Duration) (string, error) {
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	token, err := utils.NewResetToken()
	if err != nil {
		return "", err
	}
	expires := time.Now().Add(lifetime)
	u.ResetToken = token
	u.ResetTokenExpires = &expires
	return token, nil
}

// ConsumeResetToken validates the token and sets the new password, clearing
// the token on success.
func (u *User) ConsumeResetToken(token, newPassword string, now time.Time) error {
	if u.ResetToken == "" || token != u.ResetToken {
		return ErrResetTokenInvalid
	}
	if u.ResetTokenExpires == nil || now.After(*u.ResetTokenExpires) {
		return ErrResetTokenInvalid
	}
	if err := u.SetPassword(newPassword); err != nil {
		return err
	}
	u.ResetToken = ""
	u.ResetTokenExpires = nil
	return nil
}
