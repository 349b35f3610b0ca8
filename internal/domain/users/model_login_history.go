package users

import "time"

type LoginHistory struct {
	ID           uint      `gorm:"primaryKey"`
	UserID       *uint     `gorm:"index"`
	User         *User     `gorm:"constraint:OnDelete:CASCADE"`
	Email        string    `gorm:"index"`
	LoginTime    time.Time `gorm:"not null"`
	IPAddress    string    `gorm:"size:45"`
	UserAgent    string
	AuthProvider string `gorm:"type:varchar(20)"`
	IsSuccessful bool
}
