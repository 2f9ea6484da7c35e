// maarif-assessment/models/assessment.go
package models

import "gorm.io/gorm"

// Периоды оценивания: начало и конец учебного года.
const (
	PeriodBOY = "BOY"
	PeriodEOY = "EOY"
)

// Assessment представляет оценочную работу по предмету за период (BOY/EOY).
// Формулы полос (strong/neutral) - это выражения govaluate над параметрами
// score, strong и neutral; они позволяют школе переопределить правило
// классификации, не трогая код.
type Assessment struct {
	gorm.Model
	Name             string  `json:"name" gorm:"not null"`
	SubjectID        uint    `json:"subjectId" gorm:"not null"`
	Period           string  `json:"period" gorm:"size:10;not null"`
	StrongThreshold  float64 `json:"strongThreshold"`
	NeutralThreshold float64 `json:"neutralThreshold"`
	StrongFormula    string  `json:"strongFormula" gorm:"default:'score >= strong'"`
	NeutralFormula   string  `json:"neutralFormula" gorm:"default:'score >= neutral'"`

	Subject *Subject `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
}
