// maarif-assessment/internal/handlers/assignment_handler.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"maarif-assessment/config"
	"maarif-assessment/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AssignmentListResponse - строка таблицы назначений с уже развернутыми
// названиями школы, параллели и предмета.
type AssignmentListResponse struct {
	ID             uint       `json:"id"`
	AssessmentName string     `json:"assessmentName"`
	Period         string     `json:"period"`
	SubjectName    string     `json:"subjectName"`
	SchoolName     string     `json:"schoolName"`
	GradeName      string     `json:"gradeName"`
	DueDate        *time.Time `json:"dueDate"`
	Status         string     `json:"status"`
}

// StudentResponseView - ответ ученика для страницы проверки.
type StudentResponseView struct {
	ID             uint    `json:"id"`
	StudentID      uint    `json:"studentId"`
	StudentName    string  `json:"studentName"`
	CompetencyCode string  `json:"competencyCode"`
	Score          float64 `json:"score"`
	Answer         string  `json:"answer"`
}

// ListAssignmentsHandler возвращает таблицу назначений с фильтрами по школе,
// параллели, предмету, периоду и поиском по названию работы.
func ListAssignmentsHandler(c *gin.Context) {
	var assignments []AssignmentListResponse
	var totalRows int64

	baseQuery := config.DB.Table("assignments").
		Select(`
            assignments.id,
            assessments.name as assessment_name,
            assessments.period,
            subjects.name as subject_name,
            schools.name as school_name,
            grades.name as grade_name,
            assignments.due_date,
            assignments.status
        `).
		Joins("LEFT JOIN assessments ON assignments.assessment_id = assessments.id").
		Joins("LEFT JOIN subjects ON assessments.subject_id = subjects.id").
		Joins("LEFT JOIN schools ON assignments.school_id = schools.id").
		Joins("LEFT JOIN grades ON assignments.grade_id = grades.id").
		Where("assignments.deleted_at IS NULL")

	if search := c.Query("search"); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		baseQuery = baseQuery.Where("LOWER(assessments.name) LIKE ?", pattern)
	}
	if schoolIDStr := c.Query("school_id"); schoolIDStr != "" {
		if schoolID, err := strconv.Atoi(schoolIDStr); err == nil {
			baseQuery = baseQuery.Where("assignments.school_id = ?", schoolID)
		}
	}
	if gradeIDStr := c.Query("grade_id"); gradeIDStr != "" {
		if gradeID, err := strconv.Atoi(gradeIDStr); err == nil {
			baseQuery = baseQuery.Where("assignments.grade_id = ?", gradeID)
		}
	}
	if subjectIDStr := c.Query("subject_id"); subjectIDStr != "" {
		if subjectID, err := strconv.Atoi(subjectIDStr); err == nil {
			baseQuery = baseQuery.Where("assessments.subject_id = ?", subjectID)
		}
	}
	if period := c.Query("period"); period != "" {
		baseQuery = baseQuery.Where("assessments.period = ?", period)
	}

	if err := baseQuery.Count(&totalRows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось посчитать назначения"})
		return
	}

	if err := baseQuery.Scopes(Paginate(c)).Order("assignments.id desc").Scan(&assignments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось получить список назначений"})
		return
	}

	if assignments == nil {
		assignments = make([]AssignmentListResponse, 0)
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, assignments, totalRows))
}

// GetAssignmentHandler возвращает назначение вместе с ответами учеников
// для постраничного просмотра проверяющим.
func GetAssignmentHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный ID назначения"})
		return
	}

	var assignment models.Assignment
	if err := config.DB.Preload("Assessment").Preload("School").Preload("Grade").First(&assignment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Назначение не найдено"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка получения назначения: " + err.Error()})
		return
	}

	var responses []StudentResponseView
	if err := config.DB.Table("student_responses").
		Select(`
            student_responses.id,
            student_responses.student_id,
            students.last_name || ' ' || students.first_name as student_name,
            COALESCE(competencies.code, '') as competency_code,
            student_responses.score,
            student_responses.answer
        `).
		Joins("LEFT JOIN students ON student_responses.student_id = students.id").
		Joins("LEFT JOIN competencies ON student_responses.competency_id = competencies.id").
		Where("student_responses.assignment_id = ? AND student_responses.deleted_at IS NULL", id).
		Order("students.last_name, students.first_name, student_responses.id").
		Scan(&responses).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось получить ответы учеников"})
		return
	}

	if responses == nil {
		responses = make([]StudentResponseView, 0)
	}

	c.JSON(http.StatusOK, gin.H{
		"assignment": assignment,
		"responses":  responses,
	})
}

// CreateAssignmentHandler назначает оценочную работу когорте.
func CreateAssignmentHandler(c *gin.Context) {
	var input struct {
		AssessmentID uint       `json:"assessmentId" binding:"required"`
		SchoolID     uint       `json:"schoolId" binding:"required"`
		GradeID      uint       `json:"gradeId" binding:"required"`
		DueDate      *time.Time `json:"dueDate"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные: " + err.Error()})
		return
	}

	var assessment models.Assessment
	if err := config.DB.First(&assessment, input.AssessmentID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Оценочная работа не найдена"})
		return
	}

	assignment := models.Assignment{
		AssessmentID: input.AssessmentID,
		SchoolID:     input.SchoolID,
		GradeID:      input.GradeID,
		DueDate:      input.DueDate,
		Status:       models.AssignmentStatusDraft,
	}
	if err := config.DB.Create(&assignment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось создать назначение: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, assignment)
}

// ReassignAssignmentHandler переназначает работу другой когорте
// (школа + параллель). Уже собранные ответы остаются привязанными к
// назначению как исторические данные.
func ReassignAssignmentHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный ID назначения"})
		return
	}

	var input struct {
		SchoolID uint `json:"schoolId" binding:"required"`
		GradeID  uint `json:"gradeId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные: " + err.Error()})
		return
	}

	var assignment models.Assignment
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&assignment, id).Error; err != nil {
			return err
		}
		if assignment.Status == models.AssignmentStatusClosed {
			return errors.New("нельзя переназначить закрытую работу")
		}

		var school models.School
		if err := tx.First(&school, input.SchoolID).Error; err != nil {
			return errors.New("школа не найдена")
		}
		var grade models.Grade
		if err := tx.First(&grade, input.GradeID).Error; err != nil {
			return errors.New("параллель не найдена")
		}

		assignment.SchoolID = input.SchoolID
		assignment.GradeID = input.GradeID
		return tx.Save(&assignment).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Назначение не найдено"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	GlobalHub.BroadcastEvent("assignment_reassigned", gin.H{
		"assignmentId": assignment.ID,
		"schoolId":     assignment.SchoolID,
		"gradeId":      assignment.GradeID,
	})

	c.JSON(http.StatusOK, assignment)
}

// UpdateAssignmentStatusHandler переводит назначение между статусами
// draft / active / closed.
func UpdateAssignmentStatusHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный ID назначения"})
		return
	}

	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные: " + err.Error()})
		return
	}

	switch input.Status {
	case models.AssignmentStatusDraft, models.AssignmentStatusActive, models.AssignmentStatusClosed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неизвестный статус: " + input.Status})
		return
	}

	result := config.DB.Model(&models.Assignment{}).Where("id = ?", id).Update("status", input.Status)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось обновить статус"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Назначение не найдено"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Статус обновлен", "status": input.Status})
}
