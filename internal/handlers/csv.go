// maarif-assessment/internal/handlers/csv.go
package handlers

import (
	"errors"
	"fmt"
	"strings"
)

// Имена колонок CSV-файла импорта компетенций. Сопоставление
// регистронезависимое, порядок колонок в файле не важен.
const (
	columnCompCode    = "comp code"
	columnCompName    = "comp name"
	columnDescription = "description"
	columnParent      = "parent competency"
)

// ErrTooFewRows возвращается, когда в файле нет хотя бы строки заголовка
// и одной строки данных.
var ErrTooFewRows = errors.New("файл должен содержать строку заголовка и хотя бы одну строку данных")

// MissingColumnsError перечисляет все обязательные колонки, отсутствующие в заголовке.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("в заголовке отсутствуют обязательные колонки: %s", strings.Join(e.Missing, ", "))
}

// ImportRow - одна разобранная строка импорта. Создается при разборе файла
// и дальше не изменяется; ParentCode ссылается на code другой строки или
// уже существующей компетенции.
type ImportRow struct {
	Line        int    `json:"line"` // номер строки в файле (заголовок = 1)
	Code        string `json:"compCode"`
	Name        string `json:"compName"`
	Description string `json:"description,omitempty"`
	ParentCode  string `json:"parentCompetency,omitempty"`
}

// splitCSVLine разбивает одну строку CSV на поля с учетом кавычек.
// Запятая внутри поля в кавычках не разделяет; удвоенная кавычка ("")
// внутри такого поля превращается в одну литеральную кавычку.
// Поля с переносом строки внутри кавычек не поддерживаются: строки файла
// разделяются до вызова этой функции.
func splitCSVLine(line string) []string {
	fields := make([]string, 0, 4)
	var buf strings.Builder
	inQuotes := false

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case inQuotes:
			if ch == '"' {
				if i+1 < len(runes) && runes[i+1] == '"' {
					buf.WriteRune('"')
					i++
				} else {
					inQuotes = false
				}
			} else {
				buf.WriteRune(ch)
			}
		case ch == '"':
			inQuotes = true
		case ch == ',':
			fields = append(fields, buf.String())
			buf.Reset()
		default:
			buf.WriteRune(ch)
		}
	}
	fields = append(fields, buf.String())
	return fields
}

// parsedLine хранит поля строки вместе с ее номером в исходном файле,
// чтобы результат импорта ссылался на реальные строки, а не на индексы
// после отбрасывания пустых.
type parsedLine struct {
	Number int
	Fields []string
}

// parseDelimited разбирает сырой текст CSV в последовательность строк.
// Пустые строки отбрасываются. Если непустых строк меньше двух
// (заголовок + данные), возвращается ErrTooFewRows.
func parseDelimited(raw string) ([]parsedLine, error) {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	rawLines := strings.Split(normalized, "\n")

	lines := make([]parsedLine, 0, len(rawLines))
	for i, rawLine := range rawLines {
		if strings.TrimSpace(rawLine) == "" {
			continue
		}
		lines = append(lines, parsedLine{
			Number: i + 1,
			Fields: splitCSVLine(rawLine),
		})
	}

	if len(lines) < 2 {
		return nil, ErrTooFewRows
	}
	return lines, nil
}

// columnMap - индексы семантических колонок в строке данных; -1 означает,
// что необязательная колонка в файле отсутствует.
type columnMap struct {
	Code        int
	Name        int
	Description int
	Parent      int
}

// mapColumns сопоставляет заголовок с обязательными и необязательными
// колонками. Значения заголовка приводятся к нижнему регистру и обрезаются.
func mapColumns(header []string) (columnMap, error) {
	cm := columnMap{Code: -1, Name: -1, Description: -1, Parent: -1}

	for i, cell := range header {
		switch strings.ToLower(strings.TrimSpace(cell)) {
		case columnCompCode:
			cm.Code = i
		case columnCompName:
			cm.Name = i
		case columnDescription:
			cm.Description = i
		case columnParent:
			cm.Parent = i
		}
	}

	var missing []string
	if cm.Code == -1 {
		missing = append(missing, columnCompCode)
	}
	if cm.Name == -1 {
		missing = append(missing, columnCompName)
	}
	if len(missing) > 0 {
		return cm, &MissingColumnsError{Missing: missing}
	}
	return cm, nil
}

// fieldAt безопасно достает поле по индексу: у коротких строк недостающие
// колонки считаются пустыми.
func fieldAt(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

// extractImportRows превращает разобранные строки файла в ImportRow.
// Первая строка - заголовок. Строка без кода или без названия молча
// пропускается: так переживаются пустые "хвостовые" строки, которые Excel
// любит дописывать в конец файла. Дубликаты кодов не отсеиваются -
// уникальность проверяет сервер при сохранении.
func extractImportRows(lines []parsedLine) ([]ImportRow, error) {
	cm, err := mapColumns(lines[0].Fields)
	if err != nil {
		return nil, err
	}

	rows := make([]ImportRow, 0, len(lines)-1)
	for _, line := range lines[1:] {
		code := fieldAt(line.Fields, cm.Code)
		name := fieldAt(line.Fields, cm.Name)
		if code == "" || name == "" {
			continue
		}
		rows = append(rows, ImportRow{
			Line:        line.Number,
			Code:        code,
			Name:        name,
			Description: fieldAt(line.Fields, cm.Description),
			ParentCode:  fieldAt(line.Fields, cm.Parent),
		})
	}
	return rows, nil
}

// formatCSVField экранирует значение поля для выгрузки в CSV тем же
// диалектом, который понимает импорт: кавычки удваиваются, поле с запятой,
// кавычкой или переносом строки берется в кавычки.
func formatCSVField(value string) string {
	if strings.ContainsAny(value, ",\"\n\r") {
		return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
	}
	return value
}

// writeCSVRow собирает строку CSV из значений полей.
func writeCSVRow(values []string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = formatCSVField(v)
	}
	return strings.Join(escaped, ",")
}
