// maarif-assessment/internal/handlers/competency_import_handler.go
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"maarif-assessment/config"
	"maarif-assessment/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PreviewCompetencyImportHandler принимает CSV-файл, разбирает его и создает
// сессию импорта в состоянии preview. Все локальные ошибки (не тот тип файла,
// слишком мало строк, отсутствующие колонки) останавливают сессию здесь же -
// до базы данных они не доходят.
func PreviewCompetencyImportHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Файл не выбран"})
		return
	}

	if strings.ToLower(filepath.Ext(file.Filename)) != ".csv" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ожидается файл в формате CSV"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Не удалось открыть файл: " + err.Error()})
		return
	}
	defer src.Close()

	raw, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Не удалось прочитать файл: " + err.Error()})
		return
	}

	lines, err := parseDelimited(string(raw))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := extractImportRows(lines)
	if err != nil {
		var missingErr *MissingColumnsError
		if errors.As(err, &missingErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":          missingErr.Error(),
				"missingColumns": missingErr.Missing,
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := newImportSession(file.Filename)
	session.Rows = rows
	if err := session.TransitionTo(ImportStatePreview); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := saveImportSession(session); err != nil {
		slog.Error("Не удалось сохранить сессию импорта", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сохранить сессию импорта"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId": session.ID,
		"state":     session.State,
		"fileName":  session.FileName,
		"rows":      session.Rows,
		"total":     len(session.Rows),
	})
}

// SubmitCompetencyImportHandler отправляет всю пачку строк сессии на
// сохранение одним запросом. Переход preview -> importing захватывается
// атомарно: из двух одновременных отправок выполняется одна, вторая
// получает конфликт. При сбое уровня пачки сессия возвращается в preview,
// и пользователь может повторить отправку тех же строк.
func SubmitCompetencyImportHandler(c *gin.Context) {
	session, err := claimImportSession(c.Param("sessionId"))
	if err != nil {
		switch {
		case errors.Is(err, errImportSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": errImportSessionNotFound.Error()})
		case errors.Is(err, errImportInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": errImportInProgress.Error()})
		case errors.Is(err, ErrIllegalImportTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось обновить сессию импорта"})
		}
		return
	}
	defer releaseImportClaim(session.ID)

	result, err := importCompetencyRows(config.DB, session.Rows)
	if err != nil {
		// Сбой всей пачки: транзакция откатилась, результата нет.
		slog.Error("Сбой отправки пачки импорта", "session_id", session.ID, "error", err)
		session.Error = "Не удалось сохранить пачку: " + err.Error()
		if terr := session.TransitionTo(ImportStatePreview); terr != nil {
			slog.Error("Не удалось вернуть сессию в preview", "session_id", session.ID, "error", terr)
		}
		if serr := saveImportSession(session); serr != nil {
			slog.Error("Не удалось сохранить сессию после сбоя", "session_id", session.ID, "error", serr)
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": session.Error, "state": session.State})
		return
	}

	session.Result = result
	session.Error = ""
	if err := session.TransitionTo(ImportStateResults); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := saveImportSession(session); err != nil {
		slog.Error("Не удалось сохранить результат импорта", "session_id", session.ID, "error", err)
	}

	invalidateCompetencyTreeCache()
	GlobalHub.BroadcastEvent("competency_import_finished", gin.H{
		"sessionId": session.ID,
		"summary":   result.Summary,
	})

	c.JSON(http.StatusOK, gin.H{
		"state":  session.State,
		"result": result,
	})
}

// GetImportSessionHandler возвращает текущее состояние сессии импорта.
func GetImportSessionHandler(c *gin.Context) {
	session, err := loadImportSession(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errImportSessionNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, session)
}

// BackToUploadHandler - переход "назад" из предпросмотра к выбору файла.
// Разобранные строки при этом очищаются.
func BackToUploadHandler(c *gin.Context) {
	session, err := loadImportSession(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errImportSessionNotFound.Error()})
		return
	}

	if err := session.TransitionTo(ImportStateUpload); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	session.Reset()

	if err := saveImportSession(session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось обновить сессию импорта"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": session.State})
}

// CloseImportSessionHandler закрывает сессию в любом состоянии: строки и
// результаты удаляются, повторное открытие окна импорта начинает с чистого листа.
func CloseImportSessionHandler(c *gin.Context) {
	id := c.Param("sessionId")
	if _, err := loadImportSession(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errImportSessionNotFound.Error()})
		return
	}
	if err := deleteImportSession(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось удалить сессию импорта"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Сессия импорта закрыта"})
}

// ImportTemplateHandler отдает шаблон CSV с каноническими заголовками
// и примерами строк - тем же форматом, который принимает импорт.
func ImportTemplateHandler(c *gin.Context) {
	rows := [][]string{
		{"Comp Code", "Comp Name", "Description", "Parent Competency"},
		{"ENG1", "English", "Root competency for English", ""},
		{"ENG1.1", "Reading comprehension", "Understands grade-level texts", "ENG1"},
		{"ENG1.2", "Writing, grammar and style", "Writes structured paragraphs", "ENG1"},
	}

	var sb strings.Builder
	for _, row := range rows {
		sb.WriteString(writeCSVRow(row))
		sb.WriteString("\n")
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=competency_import_template.csv")
	c.String(http.StatusOK, sb.String())
}

// importCompetencyRows сохраняет пачку строк в одной транзакции.
// Первый проход создает компетенции и проверяет уникальность кодов
// (внутри пачки и против базы), второй - разрешает ссылки на родителей
// по коду из пачки или из уже существующего каталога. Ошибки отдельных
// строк не прерывают пачку; откатывает транзакцию только инфраструктурный
// сбой, который снаружи виден как ошибка всей отправки.
func importCompetencyRows(db *gorm.DB, rows []ImportRow) (*ImportResult, error) {
	result := &ImportResult{
		Success: make([]ImportRowSuccess, 0, len(rows)),
		Errors:  make([]ImportRowError, 0),
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		createdByCode := make(map[string]uint, len(rows))
		createdByRow := make(map[int]*models.Competency, len(rows))
		failed := make(map[int]string)

		// Проход 1: создание записей без родителей.
		for i := range rows {
			row := rows[i]

			if _, dup := createdByCode[row.Code]; dup {
				failed[i] = "дубликат кода внутри пачки: " + row.Code
				continue
			}

			var count int64
			if err := tx.Model(&models.Competency{}).Where("code = ?", row.Code).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				failed[i] = "компетенция с кодом " + row.Code + " уже существует"
				continue
			}

			comp := models.Competency{
				Code:        row.Code,
				Name:        row.Name,
				Description: row.Description,
			}
			if err := tx.Create(&comp).Error; err != nil {
				return err
			}
			createdByCode[row.Code] = comp.ID
			createdByRow[i] = &comp
		}

		// Проход 2: разрешение родителей по коду.
		for i := range rows {
			row := rows[i]
			comp, ok := createdByRow[i]
			if !ok || row.ParentCode == "" {
				continue
			}

			parentID, found := createdByCode[row.ParentCode]
			if !found {
				var existing models.Competency
				if err := tx.Select("id").Where("code = ?", row.ParentCode).Limit(1).Find(&existing).Error; err != nil {
					return err
				}
				if existing.ID != 0 {
					parentID = existing.ID
					found = true
				}
			}

			if !found {
				// Родитель не найден ни в пачке, ни в каталоге: строку убираем
				// целиком, чтобы не создавать молчаливых сирот.
				if err := tx.Unscoped().Delete(comp).Error; err != nil {
					return err
				}
				delete(createdByCode, row.Code)
				delete(createdByRow, i)
				failed[i] = "родительская компетенция с кодом " + row.ParentCode + " не найдена"
				continue
			}

			if err := tx.Model(comp).Update("parent_id", parentID).Error; err != nil {
				return err
			}
		}

		// Собираем результат в порядке исходных строк.
		for i := range rows {
			row := rows[i]
			if msg, bad := failed[i]; bad {
				result.Errors = append(result.Errors, ImportRowError{
					Row:   row.Line,
					Error: msg,
					Data:  row,
				})
				continue
			}
			comp := createdByRow[i]
			result.Success = append(result.Success, ImportRowSuccess{
				Row:          row.Line,
				CompetencyID: comp.ID,
				Code:         comp.Code,
				Name:         comp.Name,
				ParentCode:   row.ParentCode,
			})
		}

		result.Summary = ImportSummary{
			Total:      len(rows),
			Successful: len(result.Success),
			Failed:     len(result.Errors),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("транзакция импорта не выполнена: %w", err)
	}

	return result, nil
}
