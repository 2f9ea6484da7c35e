// maarif-assessment/internal/routes/api_routes.go
package routes

import (
	"maarif-assessment/internal/handlers"
	"maarif-assessment/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterAPIRoutes регистрирует все маршруты API, требующие аутентификации.
func RegisterAPIRoutes(api *gin.RouterGroup) {
	apiGroup := api.Group("/api")
	{
		// --- КОМПЕТЕНЦИИ ---
		competencies := apiGroup.Group("/competencies")
		competencies.Use(middleware.PermissionMiddleware("competencies_view"))
		{
			competencies.GET("", handlers.ListCompetenciesHandler)
			competencies.GET("/tree", handlers.GetCompetencyTreeHandler)
			competencies.POST("", middleware.PermissionMiddleware("competencies_edit"), handlers.CreateCompetencyHandler)
			competencies.GET("/:id", handlers.GetCompetencyHandler)
			competencies.PUT("/:id", middleware.PermissionMiddleware("competencies_edit"), handlers.UpdateCompetencyHandler)
			competencies.DELETE("/:id", middleware.PermissionMiddleware("competencies_delete"), handlers.DeleteCompetencyHandler)

			// Импорт из CSV: шаблон, предпросмотр и сессии импорта
			imports := competencies.Group("/import")
			imports.Use(middleware.PermissionMiddleware("competencies_import"))
			{
				imports.GET("/template", handlers.ImportTemplateHandler)
				imports.POST("/preview", handlers.PreviewCompetencyImportHandler)
				imports.GET("/:sessionId", handlers.GetImportSessionHandler)
				imports.POST("/:sessionId/submit", handlers.SubmitCompetencyImportHandler)
				imports.POST("/:sessionId/back", handlers.BackToUploadHandler)
				imports.DELETE("/:sessionId", handlers.CloseImportSessionHandler)
			}
		}

		// --- НАЗНАЧЕНИЯ ОЦЕНОЧНЫХ РАБОТ ---
		assignments := apiGroup.Group("/assignments")
		assignments.Use(middleware.PermissionMiddleware("assignments_view"))
		{
			assignments.GET("", handlers.ListAssignmentsHandler)
			assignments.POST("", middleware.PermissionMiddleware("assignments_edit"), handlers.CreateAssignmentHandler)
			assignments.GET("/:id", handlers.GetAssignmentHandler)
			assignments.POST("/:id/reassign", middleware.PermissionMiddleware("assignments_edit"), handlers.ReassignAssignmentHandler)
			assignments.PUT("/:id/status", middleware.PermissionMiddleware("assignments_edit"), handlers.UpdateAssignmentStatusHandler)
		}

		// --- ОТЧЕТЫ ---
		reports := apiGroup.Group("/reports")
		reports.Use(middleware.PermissionMiddleware("reports_view"))
		{
			reports.GET("/growth", handlers.GetGrowthReportHandler)
			reports.GET("/growth/export", handlers.ExportGrowthReportHandler)
			reports.GET("/distribution", handlers.GetBandDistributionHandler)
		}

		// --- СПРАВОЧНИКИ ---
		apiGroup.GET("/schools", handlers.ListSchoolsHandler)
		apiGroup.GET("/grades", handlers.ListGradesHandler)
		apiGroup.GET("/subjects", handlers.ListSubjectsHandler)
		apiGroup.GET("/assessments", handlers.ListAssessmentsHandler)

		// --- УЧЕНИКИ ---
		students := apiGroup.Group("/students")
		students.Use(middleware.PermissionMiddleware("students_view"))
		{
			students.GET("", handlers.ListStudentsHandler)
		}

		// --- ПОЛЬЗОВАТЕЛИ И РОЛИ ---
		apiGroup.GET("/me", handlers.GetMeHandler)

		users := apiGroup.Group("/users")
		users.Use(middleware.PermissionMiddleware("users_view"))
		{
			users.GET("", handlers.ListUsersHandler)
			users.PUT("/:id", middleware.PermissionMiddleware("users_edit"), handlers.UpdateUserHandler)
			users.DELETE("/:id", middleware.PermissionMiddleware("users_delete"), handlers.DeleteUserHandler)
		}

		roles := apiGroup.Group("/roles")
		roles.Use(middleware.PermissionMiddleware("roles_view"))
		{
			roles.GET("", handlers.ListRolesHandler)
			roles.POST("", middleware.PermissionMiddleware("roles_edit"), handlers.CreateRoleHandler)
			roles.PUT("/:id", middleware.PermissionMiddleware("roles_edit"), handlers.UpdateRoleHandler)
			roles.DELETE("/:id", middleware.PermissionMiddleware("roles_edit"), handlers.DeleteRoleHandler)
		}
		apiGroup.GET("/permissions", middleware.PermissionMiddleware("roles_view"), handlers.ListPermissionsHandler)

		// --- СОБЫТИЯ ---
		apiGroup.GET("/events/ws", handlers.EventsWSEndpoint)
	}
}
