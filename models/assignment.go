// maarif-assessment/models/assignment.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// Статусы назначения оценочной работы.
const (
	AssignmentStatusDraft  = "draft"
	AssignmentStatusActive = "active"
	AssignmentStatusClosed = "closed"
)

// Assignment связывает оценочную работу с когортой (школа + параллель).
type Assignment struct {
	gorm.Model
	AssessmentID uint       `json:"assessmentId" gorm:"not null"`
	SchoolID     uint       `json:"schoolId" gorm:"not null"`
	GradeID      uint       `json:"gradeId" gorm:"not null"`
	DueDate      *time.Time `json:"dueDate"`
	Status       string     `json:"status" gorm:"size:20;default:'draft'"`

	Assessment *Assessment `json:"assessment,omitempty" gorm:"foreignKey:AssessmentID"`
	School     *School     `json:"school,omitempty" gorm:"foreignKey:SchoolID"`
	Grade      *Grade      `json:"grade,omitempty" gorm:"foreignKey:GradeID"`
}
