// maarif-assessment/models/response.go
package models

import "gorm.io/gorm"

// StudentResponse - ответ ученика в рамках назначенной оценочной работы.
// CompetencyID указывает, какую компетенцию проверял вопрос; на него
// опирается запрет удаления компетенции с привязанными ответами.
type StudentResponse struct {
	gorm.Model
	AssignmentID uint    `json:"assignmentId" gorm:"not null;index"`
	StudentID    uint    `json:"studentId" gorm:"not null;index"`
	CompetencyID *uint   `json:"competencyId"`
	Score        float64 `json:"score"`
	Answer       string  `json:"answer"`

	Student    *Student    `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Competency *Competency `json:"competency,omitempty" gorm:"foreignKey:CompetencyID"`
}
