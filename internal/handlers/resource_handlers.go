// maarif-assessment/internal/handlers/resource_handlers.go
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"maarif-assessment/config"
	"maarif-assessment/models"

	"github.com/gin-gonic/gin"
)

// ListSchoolsHandler возвращает список всех школ сети.
func ListSchoolsHandler(c *gin.Context) {
	var schools []models.School
	if err := config.DB.Order("name ASC").Find(&schools).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch schools"})
		return
	}
	if schools == nil {
		schools = make([]models.School, 0)
	}
	c.JSON(http.StatusOK, schools)
}

// ListGradesHandler возвращает список всех параллелей.
func ListGradesHandler(c *gin.Context) {
	var grades []models.Grade
	if err := config.DB.Order("number ASC").Find(&grades).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch grades"})
		return
	}
	if grades == nil {
		grades = make([]models.Grade, 0)
	}
	c.JSON(http.StatusOK, grades)
}

// ListSubjectsHandler возвращает список всех учебных предметов.
func ListSubjectsHandler(c *gin.Context) {
	var subjects []models.Subject
	if err := config.DB.Order("name ASC").Find(&subjects).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch subjects"})
		return
	}
	if subjects == nil {
		subjects = make([]models.Subject, 0)
	}
	c.JSON(http.StatusOK, subjects)
}

// ListAssessmentsHandler возвращает оценочные работы с фильтрами по предмету
// и периоду.
func ListAssessmentsHandler(c *gin.Context) {
	query := config.DB.Preload("Subject").Order("id asc")

	if subjectIDStr := c.Query("subject_id"); subjectIDStr != "" {
		if subjectID, err := strconv.Atoi(subjectIDStr); err == nil {
			query = query.Where("subject_id = ?", subjectID)
		}
	}
	if period := c.Query("period"); period != "" {
		query = query.Where("period = ?", period)
	}

	var assessments []models.Assessment
	if err := query.Find(&assessments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось получить оценочные работы"})
		return
	}
	if assessments == nil {
		assessments = make([]models.Assessment, 0)
	}
	c.JSON(http.StatusOK, assessments)
}

// StudentListResponse - строка списка учеников с названием школы и параллели.
type StudentListResponse struct {
	ID         uint   `json:"id"`
	LastName   string `json:"lastName"`
	FirstName  string `json:"firstName"`
	SchoolName string `json:"schoolName"`
	GradeName  string `json:"gradeName"`
	IsStudying bool   `json:"isStudying"`
}

// ListStudentsHandler возвращает список учеников с пагинацией, поиском
// и фильтрами по школе и параллели.
func ListStudentsHandler(c *gin.Context) {
	var students []StudentListResponse
	var totalRows int64

	baseQuery := config.DB.Table("students").
		Select(`
            students.id,
            students.last_name,
            students.first_name,
            COALESCE(schools.name, '') as school_name,
            COALESCE(grades.name, '') as grade_name,
            COALESCE(students.is_studying, TRUE) as is_studying
        `).
		Joins("LEFT JOIN schools ON students.school_id = schools.id").
		Joins("LEFT JOIN grades ON students.grade_id = grades.id").
		Where("students.deleted_at IS NULL")

	if search := c.Query("search"); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		baseQuery = baseQuery.Where(
			"LOWER(students.last_name) LIKE ? OR LOWER(students.first_name) LIKE ?",
			pattern, pattern,
		)
	}
	if schoolIDStr := c.Query("school_id"); schoolIDStr != "" {
		if schoolID, err := strconv.Atoi(schoolIDStr); err == nil {
			baseQuery = baseQuery.Where("students.school_id = ?", schoolID)
		}
	}
	if gradeIDStr := c.Query("grade_id"); gradeIDStr != "" {
		if gradeID, err := strconv.Atoi(gradeIDStr); err == nil {
			baseQuery = baseQuery.Where("students.grade_id = ?", gradeID)
		}
	}

	if err := baseQuery.Model(&models.Student{}).Count(&totalRows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось посчитать учеников"})
		return
	}

	if err := baseQuery.Scopes(Paginate(c)).Order("students.last_name, students.first_name").Scan(&students).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось получить список учеников"})
		return
	}

	if students == nil {
		students = make([]StudentListResponse, 0)
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, students, totalRows))
}
