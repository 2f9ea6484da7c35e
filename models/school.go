// maarif-assessment/models/school.go
package models

import "gorm.io/gorm"

// School представляет школу в составе сети.
type School struct {
	gorm.Model
	Name string `json:"name" gorm:"unique;not null"`
	City string `json:"city"`
}
