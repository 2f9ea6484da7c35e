// maarif-assessment/internal/handlers/competency_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"maarif-assessment/config"
	"maarif-assessment/models"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const competencyTreeCacheKey = "competencies:tree"

// CompetencyInput - входные данные для создания и редактирования компетенции.
type CompetencyInput struct {
	Code             string   `json:"code" binding:"required"`
	Name             string   `json:"name" binding:"required"`
	Description      string   `json:"description"`
	ParentID         *uint    `json:"parentId"`
	StrongThreshold  *float64 `json:"strongThreshold"`
	NeutralThreshold *float64 `json:"neutralThreshold"`
}

// ListCompetenciesHandler возвращает список компетенций с пагинацией и поиском
// по коду и названию.
func ListCompetenciesHandler(c *gin.Context) {
	var competencies []models.Competency
	var totalRows int64

	query := config.DB.Model(&models.Competency{}).Order("id asc")

	if search := c.Query("search"); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ?", pattern, pattern)
	}

	if err := query.Count(&totalRows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось посчитать компетенции"})
		return
	}

	if err := query.Scopes(Paginate(c)).Find(&competencies).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось получить список компетенций"})
		return
	}

	if competencies == nil {
		competencies = make([]models.Competency, 0)
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, competencies, totalRows))
}

// GetCompetencyHandler возвращает одну компетенцию по ID.
func GetCompetencyHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный ID компетенции"})
		return
	}

	var competency models.Competency
	if err := config.DB.First(&competency, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Компетенция не найдена"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка получения компетенции: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, competency)
}

// CreateCompetencyHandler создает компетенцию вручную (вне импорта).
func CreateCompetencyHandler(c *gin.Context) {
	var input CompetencyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные: " + err.Error()})
		return
	}

	var count int64
	if err := config.DB.Model(&models.Competency{}).Where("code = ?", input.Code).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка проверки кода"})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Компетенция с таким кодом уже существует"})
		return
	}

	if input.ParentID != nil && *input.ParentID != 0 {
		var parent models.Competency
		if err := config.DB.First(&parent, *input.ParentID).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Родительская компетенция не найдена"})
			return
		}
	}

	competency := models.Competency{
		Code:             input.Code,
		Name:             input.Name,
		Description:      input.Description,
		ParentID:         input.ParentID,
		StrongThreshold:  input.StrongThreshold,
		NeutralThreshold: input.NeutralThreshold,
	}
	if err := config.DB.Create(&competency).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось создать компетенцию: " + err.Error()})
		return
	}

	invalidateCompetencyTreeCache()
	c.JSON(http.StatusCreated, competency)
}

// UpdateCompetencyHandler редактирует компетенцию.
func UpdateCompetencyHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный ID компетенции"})
		return
	}

	var competency models.Competency
	if err := config.DB.First(&competency, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Компетенция не найдена"})
		return
	}

	var input CompetencyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные: " + err.Error()})
		return
	}

	if input.Code != competency.Code {
		var count int64
		if err := config.DB.Model(&models.Competency{}).Where("code = ? AND id != ?", input.Code, id).Count(&count).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка проверки кода"})
			return
		}
		if count > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Другая компетенция с таким кодом уже существует"})
			return
		}
	}

	if input.ParentID != nil && *input.ParentID != 0 {
		if *input.ParentID == competency.ID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Компетенция не может быть родителем самой себя"})
			return
		}
		var parent models.Competency
		if err := config.DB.First(&parent, *input.ParentID).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Родительская компетенция не найдена"})
			return
		}
	}

	competency.Code = input.Code
	competency.Name = input.Name
	competency.Description = input.Description
	competency.ParentID = input.ParentID
	competency.StrongThreshold = input.StrongThreshold
	competency.NeutralThreshold = input.NeutralThreshold

	if err := config.DB.Save(&competency).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось обновить компетенцию: " + err.Error()})
		return
	}

	invalidateCompetencyTreeCache()
	c.JSON(http.StatusOK, competency)
}

// DeleteCompetencyHandler удаляет компетенцию. Удаление узла с детьми или
// с привязанными ответами учеников отклоняется - каскадного удаления нет,
// вызывающая сторона получает ошибку.
func DeleteCompetencyHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный ID компетенции"})
		return
	}

	var childCount int64
	if err := config.DB.Model(&models.Competency{}).Where("parent_id = ?", id).Count(&childCount).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка проверки дочерних компетенций"})
		return
	}
	if childCount > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Нельзя удалить компетенцию с дочерними узлами"})
		return
	}

	var responseCount int64
	if err := config.DB.Model(&models.StudentResponse{}).Where("competency_id = ?", id).Count(&responseCount).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка проверки привязанных ответов"})
		return
	}
	if responseCount > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Нельзя удалить компетенцию: к ней привязаны ответы учеников"})
		return
	}

	result := config.DB.Delete(&models.Competency{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось удалить компетенцию"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Компетенция не найдена"})
		return
	}

	invalidateCompetencyTreeCache()
	c.JSON(http.StatusOK, gin.H{"message": "Компетенция удалена"})
}

// GetCompetencyTreeHandler возвращает лес компетенций в виде арены
// (узлы + ID детей + ID корней). Ответ кэшируется в Redis и сбрасывается
// при любом изменении каталога.
func GetCompetencyTreeHandler(c *gin.Context) {
	if config.RDB != nil {
		cached, err := config.RDB.Get(config.Ctx, competencyTreeCacheKey).Result()
		if err == nil {
			var forest models.CompetencyForest
			if json.Unmarshal([]byte(cached), &forest) == nil {
				c.JSON(http.StatusOK, forest)
				return
			}
		} else if err != redis.Nil {
			slog.Error("Не удалось прочитать кэш дерева компетенций", "error", err)
		}
	}

	var competencies []models.Competency
	if err := config.DB.Order("id asc").Find(&competencies).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось получить компетенции"})
		return
	}

	forest := models.BuildCompetencyForest(competencies)

	if config.RDB != nil {
		if data, err := json.Marshal(forest); err == nil {
			if err := config.RDB.Set(config.Ctx, competencyTreeCacheKey, data, 10*time.Minute).Err(); err != nil {
				slog.Error("Не удалось закэшировать дерево компетенций", "error", err)
			}
		}
	}

	c.JSON(http.StatusOK, forest)
}

// invalidateCompetencyTreeCache сбрасывает кэш дерева после изменений каталога.
func invalidateCompetencyTreeCache() {
	if config.RDB == nil {
		return
	}
	if err := config.RDB.Del(config.Ctx, competencyTreeCacheKey).Err(); err != nil {
		slog.Error("Не удалось сбросить кэш дерева компетенций", "error", err)
	}
}
