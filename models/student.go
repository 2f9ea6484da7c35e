// maarif-assessment/models/student.go

package models

import (
	"time"

	"gorm.io/gorm"
)

// Student represents the student model in the database.
type Student struct {
	gorm.Model
	IsStudying *bool      `json:"isStudying" gorm:"default:true"`
	LastName   string     `json:"lastName" gorm:"not null"`
	FirstName  string     `json:"firstName" gorm:"not null"`
	MiddleName string     `json:"middleName"`
	Gender     string     `json:"gender"`
	BirthDate  *time.Time `json:"birthDate"`
	Email      string     `json:"email"`
	SchoolID   *uint      `json:"schoolId"`
	GradeID    *uint      `json:"gradeId"`

	School *School `json:"school,omitempty" gorm:"foreignKey:SchoolID"`
	Grade  *Grade  `json:"grade,omitempty" gorm:"foreignKey:GradeID"`
}
