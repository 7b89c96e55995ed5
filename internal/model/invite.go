package model

import "time"

type Invite struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Email      string     `gorm:"type:varchar(255);not null;index:idx_invites_email" json:"email"`
	Role       string     `gorm:"type:varchar(16);not null" json:"role"`
	Token      string     `gorm:"type:varchar(64);not null;uniqueIndex:uk_invites_token" json:"token"`
	InvitedBy  uint       `gorm:"not null" json:"invited_by"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at"`
	CreatedAt  time.Time  `json:"created_at"`

	Inviter *User `gorm:"foreignKey:InvitedBy" json:"inviter,omitempty"`
}

func (Invite) TableName() string { return "invites" }

func (i *Invite) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

func (i *Invite) Usable(now time.Time) bool {
	return i.AcceptedAt == nil && !i.Expired(now)
}
