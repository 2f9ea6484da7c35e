// maarif-assessment/main.go
package main

import (
	"log/slog"
	"os"

	"maarif-assessment/config"
	"maarif-assessment/internal/handlers"
	"maarif-assessment/internal/routes"
	"maarif-assessment/models"

	"github.com/gin-gonic/gin"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	config.LoadAuthConfig()
	config.ConnectDB()
	config.ConnectRedis()

	if err := config.DB.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.School{},
		&models.Grade{},
		&models.Subject{},
		&models.Student{},
		&models.Competency{},
		&models.Assessment{},
		&models.Assignment{},
		&models.StudentResponse{},
	); err != nil {
		slog.Error("Ошибка миграции схемы БД", "error", err)
		os.Exit(1)
	}

	// Хаб событий для открытых админских окон.
	go handlers.GlobalHub.Run()

	r := gin.Default()
	routes.SetupRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	slog.Info("Запуск сервера", "port", port)
	if err := r.Run(":" + port); err != nil {
		slog.Error("Сервер остановлен с ошибкой", "error", err)
		os.Exit(1)
	}
}
