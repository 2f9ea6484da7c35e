package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"maarif-assessment/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestListUsersHandlerCountFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, mock := newMockDB(t)
	config.DB = db

	mock.ExpectQuery(`SELECT count\(\*\) FROM "users"`).
		WillReturnError(errors.New("connection refused"))

	r := gin.New()
	r.GET("/users", ListUsersHandler)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsersHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, mock := newMockDB(t)
	config.DB = db

	mock.ExpectQuery(`SELECT count\(\*\) FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "login", "email", "full_name"}).
			AddRow(1, "admin", "admin@school.kz", "Администратор"))
	mock.ExpectQuery(`SELECT \* FROM "user_roles"`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "role_id"}))

	r := gin.New()
	r.GET("/users", ListUsersHandler)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "admin")
	assert.NotContains(t, w.Body.String(), "passwordHash")
	assert.NoError(t, mock.ExpectationsWereMet())
}
