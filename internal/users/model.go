package users

import "time"

// User is a registered community member. The password hash never leaves the
// service layer and is excluded from every JSON projection.
type User struct {
	ID           string    `gorm:"column:id;primaryKey;size:36;not null" json:"id"`
	Name         string    `gorm:"column:name;size:120;not null" json:"name"`
	Gender       string    `gorm:"column:gender;size:24" json:"gender"`
	Email        string    `gorm:"column:email;size:320;not null;uniqueIndex" json:"email"`
	Phone        string    `gorm:"column:phone;size:32" json:"phone"`
	Demographic  string    `gorm:"column:demographic;size:64" json:"demographic"`
	PasswordHash string    `gorm:"column:password_hash;size:80;not null" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}
