package models

import "time"

// User is a read-mostly projection of the account table; settlement uses it
// for notifications and gateway customer creation.
type User struct {
	ID        string    `gorm:"column:id;primary_key;type:uuid" json:"id"`
	Email     string    `gorm:"column:email;type:varchar(255);not null;uniqueIndex" json:"email"`
	Name      string    `gorm:"column:name;type:varchar(255)" json:"name"`
	Phone     string    `gorm:"column:phone;type:varchar(32)" json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

func (User) TableName() string {
	return "users"
}
