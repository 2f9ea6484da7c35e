package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"maarif-assessment/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return gdb, mock
}

func expectCodeFree(mock sqlmock.Sqlmock, code string) {
	mock.ExpectQuery(`SELECT count\(\*\) FROM "competencies"`).
		WithArgs(code).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
}

func expectCodeTaken(mock sqlmock.Sqlmock, code string) {
	mock.ExpectQuery(`SELECT count\(\*\) FROM "competencies"`).
		WithArgs(code).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
}

func expectInsert(mock sqlmock.Sqlmock, id uint) {
	mock.ExpectQuery(`INSERT INTO "competencies"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
}

func TestImportCompetencyRows(t *testing.T) {
	t.Run("корень и ребенок из одной пачки", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		expectCodeFree(mock, "ENG1")
		expectInsert(mock, 1)
		expectCodeFree(mock, "ENG1.1")
		expectInsert(mock, 2)
		// Родитель найден внутри пачки, запрос к базе не нужен - сразу апдейт.
		mock.ExpectExec(`UPDATE "competencies" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result, err := importCompetencyRows(db, []ImportRow{
			{Line: 2, Code: "ENG1", Name: "English"},
			{Line: 3, Code: "ENG1.1", Name: "Reading", ParentCode: "ENG1"},
		})
		require.NoError(t, err)

		assert.Equal(t, ImportSummary{Total: 2, Successful: 2, Failed: 0}, result.Summary)
		require.Len(t, result.Success, 2)
		assert.Equal(t, uint(1), result.Success[0].CompetencyID)
		assert.Equal(t, uint(2), result.Success[1].CompetencyID)
		assert.Equal(t, "ENG1", result.Success[1].ParentCode)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("дубликат внутри пачки отклоняется построчно", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		expectCodeFree(mock, "A")
		expectInsert(mock, 1)
		// Вторая строка с кодом A отсекается до базы.
		expectCodeFree(mock, "B")
		expectInsert(mock, 2)
		mock.ExpectCommit()

		result, err := importCompetencyRows(db, []ImportRow{
			{Line: 2, Code: "A", Name: "First"},
			{Line: 3, Code: "A", Name: "Second"},
			{Line: 4, Code: "B", Name: "Third"},
		})
		require.NoError(t, err)

		assert.Equal(t, ImportSummary{Total: 3, Successful: 2, Failed: 1}, result.Summary)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, 3, result.Errors[0].Row)
		assert.Contains(t, result.Errors[0].Error, "дубликат кода")
		assert.Equal(t, "A", result.Errors[0].Data.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("код уже существует в каталоге", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		expectCodeTaken(mock, "ENG1")
		mock.ExpectCommit()

		result, err := importCompetencyRows(db, []ImportRow{
			{Line: 2, Code: "ENG1", Name: "English"},
		})
		require.NoError(t, err)

		assert.Equal(t, ImportSummary{Total: 1, Successful: 0, Failed: 1}, result.Summary)
		assert.Contains(t, result.Errors[0].Error, "уже существует")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("неразрешенный родитель - строка убирается целиком", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		expectCodeFree(mock, "X1")
		expectInsert(mock, 5)
		// Родителя нет ни в пачке, ни в каталоге.
		mock.ExpectQuery(`SELECT "id" FROM "competencies"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectExec(`DELETE FROM "competencies"`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result, err := importCompetencyRows(db, []ImportRow{
			{Line: 2, Code: "X1", Name: "Orphan", ParentCode: "NOPE"},
		})
		require.NoError(t, err)

		assert.Equal(t, ImportSummary{Total: 1, Successful: 0, Failed: 1}, result.Summary)
		assert.Contains(t, result.Errors[0].Error, "NOPE")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("родитель находится в существующем каталоге", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		expectCodeFree(mock, "ENG1.9")
		expectInsert(mock, 7)
		mock.ExpectQuery(`SELECT "id" FROM "competencies"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
		mock.ExpectExec(`UPDATE "competencies" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result, err := importCompetencyRows(db, []ImportRow{
			{Line: 2, Code: "ENG1.9", Name: "Listening", ParentCode: "ENG1"},
		})
		require.NoError(t, err)
		assert.Equal(t, ImportSummary{Total: 1, Successful: 1, Failed: 0}, result.Summary)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("инфраструктурный сбой откатывает транзакцию", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT count\(\*\) FROM "competencies"`).
			WillReturnError(errors.New("connection refused"))
		mock.ExpectRollback()

		result, err := importCompetencyRows(db, []ImportRow{
			{Line: 2, Code: "ENG1", Name: "English"},
		})
		assert.Error(t, err)
		assert.Nil(t, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// --- HTTP-уровень ---

func newImportRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/import/template", ImportTemplateHandler)
	r.POST("/import/preview", PreviewCompetencyImportHandler)
	r.GET("/import/:sessionId", GetImportSessionHandler)
	r.POST("/import/:sessionId/submit", SubmitCompetencyImportHandler)
	r.POST("/import/:sessionId/back", BackToUploadHandler)
	r.DELETE("/import/:sessionId", CloseImportSessionHandler)
	return r
}

func multipartCSV(t *testing.T, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestPreviewCompetencyImportHandler(t *testing.T) {
	router := newImportRouter()

	t.Run("успешный предпросмотр", func(t *testing.T) {
		body, contentType := multipartCSV(t, "competencies.csv",
			"Comp Code,Comp Name,Description,Parent Competency\nENG1,English,,\nENG1.1,Reading,,ENG1\n")

		req := httptest.NewRequest(http.MethodPost, "/import/preview", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp struct {
			SessionID string      `json:"sessionId"`
			State     ImportState `json:"state"`
			FileName  string      `json:"fileName"`
			Total     int         `json:"total"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.SessionID)
		assert.Equal(t, ImportStatePreview, resp.State)
		assert.Equal(t, "competencies.csv", resp.FileName)
		assert.Equal(t, 2, resp.Total)

		// Сессия доступна по ID.
		req = httptest.NewRequest(http.MethodGet, "/import/"+resp.SessionID, nil)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("не CSV отклоняется", func(t *testing.T) {
		body, contentType := multipartCSV(t, "competencies.xlsx", "whatever")

		req := httptest.NewRequest(http.MethodPost, "/import/preview", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("отсутствующая колонка возвращается списком", func(t *testing.T) {
		body, contentType := multipartCSV(t, "competencies.csv", "Comp Code,Description\nENG1,text\n")

		req := httptest.NewRequest(http.MethodPost, "/import/preview", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp struct {
			MissingColumns []string `json:"missingColumns"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, []string{"comp name"}, resp.MissingColumns)
	})

	t.Run("только заголовок - слишком мало строк", func(t *testing.T) {
		body, contentType := multipartCSV(t, "competencies.csv", "Comp Code,Comp Name\n")

		req := httptest.NewRequest(http.MethodPost, "/import/preview", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), ErrTooFewRows.Error())
	})

	t.Run("без файла", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/import/preview", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSubmitCompetencyImportHandler(t *testing.T) {
	router := newImportRouter()

	seedPreviewSession := func(t *testing.T, rows []ImportRow) *ImportSession {
		t.Helper()
		s := newImportSession("competencies.csv")
		s.Rows = rows
		require.NoError(t, s.TransitionTo(ImportStatePreview))
		require.NoError(t, saveImportSession(s))
		return s
	}

	t.Run("пачка с дубликатом: частичный успех и итог", func(t *testing.T) {
		db, mock := newMockDB(t)
		config.DB = db

		mock.ExpectBegin()
		expectCodeFree(mock, "A")
		expectInsert(mock, 1)
		expectCodeFree(mock, "B")
		expectInsert(mock, 2)
		mock.ExpectCommit()

		session := seedPreviewSession(t, []ImportRow{
			{Line: 2, Code: "A", Name: "First"},
			{Line: 3, Code: "A", Name: "Second"},
			{Line: 4, Code: "B", Name: "Third"},
		})

		req := httptest.NewRequest(http.MethodPost, "/import/"+session.ID+"/submit", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp struct {
			State  ImportState  `json:"state"`
			Result ImportResult `json:"result"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, ImportStateResults, resp.State)
		assert.Equal(t, ImportSummary{Total: 3, Successful: 2, Failed: 1}, resp.Result.Summary)

		stored, err := loadImportSession(session.ID)
		require.NoError(t, err)
		assert.Equal(t, ImportStateResults, stored.State)
		require.NotNil(t, stored.Result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("сбой пачки возвращает сессию в preview", func(t *testing.T) {
		db, mock := newMockDB(t)
		config.DB = db

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT count\(\*\) FROM "competencies"`).
			WillReturnError(errors.New("connection refused"))
		mock.ExpectRollback()

		session := seedPreviewSession(t, []ImportRow{
			{Line: 2, Code: "A", Name: "First"},
		})

		req := httptest.NewRequest(http.MethodPost, "/import/"+session.ID+"/submit", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadGateway, w.Code)

		stored, err := loadImportSession(session.ID)
		require.NoError(t, err)
		assert.Equal(t, ImportStatePreview, stored.State, "строки сохраняются для повторной отправки")
		assert.Len(t, stored.Rows, 1)
		assert.NotEmpty(t, stored.Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("две одновременные отправки - выполняется одна", func(t *testing.T) {
		db, mock := newMockDB(t)
		config.DB = db

		// Пачку сохраняет только победитель: ровно одна транзакция.
		mock.ExpectBegin()
		expectCodeFree(mock, "A")
		expectInsert(mock, 1)
		mock.ExpectCommit()

		session := seedPreviewSession(t, []ImportRow{
			{Line: 2, Code: "A", Name: "First"},
		})

		statuses := make(chan int, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				req := httptest.NewRequest(http.MethodPost, "/import/"+session.ID+"/submit", nil)
				w := httptest.NewRecorder()
				router.ServeHTTP(w, req)
				statuses <- w.Code
			}()
		}
		wg.Wait()
		close(statuses)

		got := make([]int, 0, 2)
		for code := range statuses {
			got = append(got, code)
		}
		sort.Ints(got)
		assert.Equal(t, []int{http.StatusOK, http.StatusConflict}, got)

		stored, err := loadImportSession(session.ID)
		require.NoError(t, err)
		assert.Equal(t, ImportStateResults, stored.State)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("отправка из results отклоняется", func(t *testing.T) {
		s := newImportSession("competencies.csv")
		s.State = ImportStateResults
		require.NoError(t, saveImportSession(s))

		req := httptest.NewRequest(http.MethodPost, "/import/"+s.ID+"/submit", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("неизвестная сессия", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/import/missing/submit", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestBackAndCloseHandlers(t *testing.T) {
	router := newImportRouter()

	t.Run("назад к загрузке очищает строки", func(t *testing.T) {
		s := newImportSession("competencies.csv")
		s.Rows = []ImportRow{{Line: 2, Code: "ENG1", Name: "English"}}
		require.NoError(t, s.TransitionTo(ImportStatePreview))
		require.NoError(t, saveImportSession(s))

		req := httptest.NewRequest(http.MethodPost, "/import/"+s.ID+"/back", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		stored, err := loadImportSession(s.ID)
		require.NoError(t, err)
		assert.Equal(t, ImportStateUpload, stored.State)
		assert.Empty(t, stored.Rows)
		assert.Empty(t, stored.FileName)
	})

	t.Run("закрытие удаляет сессию", func(t *testing.T) {
		s := newImportSession("competencies.csv")
		require.NoError(t, saveImportSession(s))

		req := httptest.NewRequest(http.MethodDelete, "/import/"+s.ID, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		_, err := loadImportSession(s.ID)
		assert.ErrorIs(t, err, errImportSessionNotFound)
	})
}

func TestImportTemplateHandler(t *testing.T) {
	router := newImportRouter()

	req := httptest.NewRequest(http.MethodGet, "/import/template", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))

	// Шаблон должен проходить наш же предпросмотр.
	lines, err := parseDelimited(w.Body.String())
	require.NoError(t, err)
	rows, err := extractImportRows(lines)
	require.NoError(t, err)
	assert.NotEmpty(t, rows)
	assert.Equal(t, "ENG1", rows[0].Code)
}
