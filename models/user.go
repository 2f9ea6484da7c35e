// maarif-assessment/models/user.go
package models

import "gorm.io/gorm"

// User представляет сотрудника портала (администратора, методиста, учителя).
type User struct {
	gorm.Model
	Login        string `json:"login" gorm:"unique;not null"`
	PasswordHash string `json:"-" gorm:"not null"`
	FullName     string `json:"fullName"`
	Email        string `json:"email" gorm:"unique"`
	Phone        string `json:"phone"`
	Status       string `json:"status" gorm:"size:20;default:'active'"`

	Roles []Role `json:"roles,omitempty" gorm:"many2many:user_roles;"`
}
