// maarif-assessment/internal/handlers/role_handler.go
package handlers

import (
	"net/http"

	"maarif-assessment/config"
	"maarif-assessment/models"

	"github.com/gin-gonic/gin"
)

// ListRolesHandler возвращает все роли с их правами.
func ListRolesHandler(c *gin.Context) {
	var roles []models.Role
	if err := config.DB.Preload("Permissions").Order("id asc").Find(&roles).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось получить роли"})
		return
	}
	if roles == nil {
		roles = make([]models.Role, 0)
	}
	c.JSON(http.StatusOK, roles)
}

// ListPermissionsHandler возвращает все права доступа для конструктора ролей.
func ListPermissionsHandler(c *gin.Context) {
	var permissions []models.Permission
	if err := config.DB.Order("category, name").Find(&permissions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось получить права доступа"})
		return
	}
	if permissions == nil {
		permissions = make([]models.Permission, 0)
	}
	c.JSON(http.StatusOK, permissions)
}

// RoleInput - входные данные для создания и редактирования роли.
type RoleInput struct {
	Name          string `json:"name" binding:"required"`
	Description   string `json:"description"`
	PermissionIDs []uint `json:"permissionIds"`
}

// CreateRoleHandler создает роль с набором прав.
func CreateRoleHandler(c *gin.Context) {
	var input RoleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные: " + err.Error()})
		return
	}

	role := models.Role{Name: input.Name, Description: input.Description}
	if len(input.PermissionIDs) > 0 {
		if err := config.DB.Where("id IN ?", input.PermissionIDs).Find(&role.Permissions).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить права"})
			return
		}
	}

	if err := config.DB.Create(&role).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось создать роль: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, role)
}

// UpdateRoleHandler редактирует роль и заменяет набор ее прав.
func UpdateRoleHandler(c *gin.Context) {
	id := c.Param("id")
	var role models.Role
	if err := config.DB.First(&role, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Роль не найдена"})
		return
	}

	var input RoleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные: " + err.Error()})
		return
	}

	role.Name = input.Name
	role.Description = input.Description
	if err := config.DB.Save(&role).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось обновить роль"})
		return
	}

	var permissions []models.Permission
	if len(input.PermissionIDs) > 0 {
		if err := config.DB.Where("id IN ?", input.PermissionIDs).Find(&permissions).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось загрузить права"})
			return
		}
	}
	if err := config.DB.Model(&role).Association("Permissions").Replace(permissions); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось назначить права"})
		return
	}

	c.JSON(http.StatusOK, role)
}

// DeleteRoleHandler удаляет роль.
func DeleteRoleHandler(c *gin.Context) {
	id := c.Param("id")
	result := config.DB.Delete(&models.Role{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось удалить роль"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Роль не найдена"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Роль удалена"})
}
