// maarif-assessment/internal/handlers/import_session.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"maarif-assessment/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ImportState - состояние сессии импорта компетенций.
type ImportState string

const (
	ImportStateUpload    ImportState = "upload"
	ImportStatePreview   ImportState = "preview"
	ImportStateImporting ImportState = "importing"
	ImportStateResults   ImportState = "results"
	ImportStateClosed    ImportState = "closed"
)

// importTransitions - таблица разрешенных переходов состояния.
// Закрыть сессию можно из любого состояния; возврат importing -> preview
// происходит при ошибке отправки всей пачки (сетевой/серверный сбой),
// чтобы пользователь мог повторить отправку тех же строк.
var importTransitions = map[ImportState][]ImportState{
	ImportStateUpload:    {ImportStatePreview, ImportStateClosed},
	ImportStatePreview:   {ImportStateImporting, ImportStateUpload, ImportStateClosed},
	ImportStateImporting: {ImportStateResults, ImportStatePreview, ImportStateClosed},
	ImportStateResults:   {ImportStateClosed},
	ImportStateClosed:    {},
}

// ErrIllegalImportTransition возвращается при попытке недопустимого перехода.
var ErrIllegalImportTransition = errors.New("недопустимый переход состояния сессии импорта")

// errImportSessionNotFound - сессия не найдена или истекла.
var errImportSessionNotFound = errors.New("сессия импорта не найдена или истекла")

// ImportRowSuccess - успешно сохраненная строка импорта.
type ImportRowSuccess struct {
	Row          int    `json:"row"`
	CompetencyID uint   `json:"competencyId"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	ParentCode   string `json:"parentCode,omitempty"`
}

// ImportRowError - отклоненная строка внутри успешно обработанной пачки.
type ImportRowError struct {
	Row   int       `json:"row"`
	Error string    `json:"error"`
	Data  ImportRow `json:"data"`
}

// ImportSummary - итог по пачке.
type ImportSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// ImportResult - результат одной отправки пачки. Создается один раз,
// после создания не изменяется.
type ImportResult struct {
	Success []ImportRowSuccess `json:"success"`
	Errors  []ImportRowError   `json:"errors"`
	Summary ImportSummary      `json:"summary"`
}

// ImportSession - сессия импорта на сервере. Строки и результат живут только
// внутри сессии; закрытие сессии удаляет их без следа.
type ImportSession struct {
	ID        string        `json:"id"`
	State     ImportState   `json:"state"`
	FileName  string        `json:"fileName"`
	Rows      []ImportRow   `json:"rows"`
	Result    *ImportResult `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// newImportSession создает сессию в состоянии upload.
func newImportSession(fileName string) *ImportSession {
	return &ImportSession{
		ID:        uuid.NewString(),
		State:     ImportStateUpload,
		FileName:  fileName,
		CreatedAt: time.Now(),
	}
}

// TransitionTo переводит сессию в новое состояние, если переход разрешен.
func (s *ImportSession) TransitionTo(next ImportState) error {
	for _, allowed := range importTransitions[s.State] {
		if allowed == next {
			s.State = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalImportTransition, s.State, next)
}

// Reset очищает строки и результаты (переход "назад" к загрузке файла).
func (s *ImportSession) Reset() {
	s.Rows = nil
	s.Result = nil
	s.Error = ""
	s.FileName = ""
}

// --- Хранилище сессий ---

const importSessionTTL = 30 * time.Minute

// errImportInProgress - по сессии уже выполняется отправка.
var errImportInProgress = errors.New("импорт по этой сессии уже выполняется")

// memorySessions - запасное хранилище на случай, когда Redis не настроен.
// Сессии лежат сериализованными, как и в Redis: загрузка всегда отдает
// отдельную копию, и обработчики параллельных запросов не делят одну
// структуру сессии между собой.
var memorySessions = struct {
	sync.RWMutex
	m map[string][]byte
}{m: make(map[string][]byte)}

func importSessionKey(id string) string {
	return fmt.Sprintf("import:session:%s", id)
}

func importClaimKey(id string) string {
	return fmt.Sprintf("import:session:%s:claim", id)
}

// saveImportSession сохраняет сессию в Redis (с TTL) или в память процесса.
func saveImportSession(s *ImportSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}

	if config.RDB == nil {
		memorySessions.Lock()
		memorySessions.m[s.ID] = data
		memorySessions.Unlock()
		return nil
	}
	return config.RDB.Set(config.Ctx, importSessionKey(s.ID), data, importSessionTTL).Err()
}

// loadImportSession достает сессию по ID.
func loadImportSession(id string) (*ImportSession, error) {
	var data []byte

	if config.RDB == nil {
		memorySessions.RLock()
		stored, ok := memorySessions.m[id]
		memorySessions.RUnlock()
		if !ok {
			return nil, errImportSessionNotFound
		}
		data = stored
	} else {
		stored, err := config.RDB.Get(config.Ctx, importSessionKey(id)).Result()
		if err == redis.Nil {
			return nil, errImportSessionNotFound
		}
		if err != nil {
			return nil, err
		}
		data = []byte(stored)
	}

	var s ImportSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// deleteImportSession удаляет сессию из хранилища.
func deleteImportSession(id string) error {
	if config.RDB == nil {
		memorySessions.Lock()
		delete(memorySessions.m, id)
		memorySessions.Unlock()
		return nil
	}
	return config.RDB.Del(config.Ctx, importSessionKey(id), importClaimKey(id)).Err()
}

// claimImportSession атомарно переводит сессию из preview в importing,
// гарантируя единственную выполняющуюся отправку на сессию. В памяти
// переход выполняется под блокировкой карты; в Redis право на отправку
// захватывается отметкой через SETNX. Проигравший получает
// errImportInProgress, переход из любого другого состояния -
// ErrIllegalImportTransition.
func claimImportSession(id string) (*ImportSession, error) {
	if config.RDB == nil {
		memorySessions.Lock()
		defer memorySessions.Unlock()

		data, ok := memorySessions.m[id]
		if !ok {
			return nil, errImportSessionNotFound
		}
		var s ImportSession
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		if s.State == ImportStateImporting {
			return nil, errImportInProgress
		}
		if err := s.TransitionTo(ImportStateImporting); err != nil {
			return nil, err
		}
		updated, err := json.Marshal(&s)
		if err != nil {
			return nil, err
		}
		memorySessions.m[id] = updated
		return &s, nil
	}

	acquired, err := config.RDB.SetNX(config.Ctx, importClaimKey(id), "1", importSessionTTL).Result()
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, errImportInProgress
	}

	s, err := loadImportSession(id)
	if err != nil {
		releaseImportClaim(id)
		return nil, err
	}
	if err := s.TransitionTo(ImportStateImporting); err != nil {
		releaseImportClaim(id)
		return nil, err
	}
	if err := saveImportSession(s); err != nil {
		releaseImportClaim(id)
		return nil, err
	}
	return s, nil
}

// releaseImportClaim снимает отметку выполняющейся отправки.
func releaseImportClaim(id string) {
	if config.RDB == nil {
		return
	}
	if err := config.RDB.Del(config.Ctx, importClaimKey(id)).Err(); err != nil {
		slog.Error("Не удалось снять отметку выполняющегося импорта", "session_id", id, "error", err)
	}
}
