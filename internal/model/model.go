package model

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string         `gorm:"not null" json:"-"`
	Role         string         `gorm:"default:'user'" json:"role"` // admin, user
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// Call is one ring as seen by the screener: the caller-ID fields collected
// for it and what was done about it.
type Call struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PortName    string    `json:"port_name"`
	Date        string    `json:"date"` // MMDD as sent by the exchange
	Time        string    `json:"time"` // HHMM
	Number      string    `gorm:"index" json:"number"`
	Name        string    `json:"name"`
	Blocked     bool      `gorm:"index" json:"blocked"`
	Reason      string    `json:"reason"`
	Matched     string    `json:"matched,omitempty"`
	Intercepted bool      `json:"intercepted"`
	HungUp      bool      `json:"hung_up"`
	Steps       string    `json:"steps,omitempty"` // JSON encoded interception steps
	FirstSeen   time.Time `gorm:"index" json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Webhook struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	URL         string    `gorm:"not null" json:"url"`
	Platform    string    `json:"platform"`   // telegram, slack, generic
	ChannelID   string    `json:"channel_id"` // For Telegram
	Template    string    `json:"template"`   // "Blocked {{.Number}} ({{.Name}})"
	OnlyBlocked bool      `json:"only_blocked"`
	Enabled     bool      `gorm:"default:true" json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
}
