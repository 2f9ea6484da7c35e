package handlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCSVLine(t *testing.T) {
	t.Run("запятая внутри кавычек не разделяет поле", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b,c", "d"}, splitCSVLine(`a,"b,c",d`))
	})

	t.Run("удвоенная кавычка превращается в литеральную", func(t *testing.T) {
		assert.Equal(t, []string{`x"y`}, splitCSVLine(`"x""y"`))
	})

	t.Run("пустые поля сохраняются", func(t *testing.T) {
		assert.Equal(t, []string{"a", "", "c"}, splitCSVLine("a,,c"))
	})

	t.Run("строка без кавычек", func(t *testing.T) {
		assert.Equal(t, []string{"ENG1", "English", "desc", "ENG0"}, splitCSVLine("ENG1,English,desc,ENG0"))
	})
}

func TestParseDelimited(t *testing.T) {
	t.Run("пустые строки отбрасываются, номера строк исходные", func(t *testing.T) {
		lines, err := parseDelimited("Comp Code,Comp Name\n\nENG1,English\n\n")
		require.NoError(t, err)
		require.Len(t, lines, 2)
		assert.Equal(t, 1, lines[0].Number)
		assert.Equal(t, 3, lines[1].Number)
	})

	t.Run("перенос строки в стиле Windows", func(t *testing.T) {
		lines, err := parseDelimited("Comp Code,Comp Name\r\nENG1,English\r\n")
		require.NoError(t, err)
		require.Len(t, lines, 2)
	})

	t.Run("меньше двух непустых строк - ошибка", func(t *testing.T) {
		_, err := parseDelimited("Comp Code,Comp Name\n\n\n")
		assert.ErrorIs(t, err, ErrTooFewRows)

		_, err = parseDelimited("")
		assert.ErrorIs(t, err, ErrTooFewRows)
	})
}

func TestMapColumns(t *testing.T) {
	t.Run("регистр и пробелы в заголовке не важны", func(t *testing.T) {
		cm, err := mapColumns([]string{"  COMP CODE ", "Comp Name", "DESCRIPTION", "Parent Competency"})
		require.NoError(t, err)
		assert.Equal(t, 0, cm.Code)
		assert.Equal(t, 1, cm.Name)
		assert.Equal(t, 2, cm.Description)
		assert.Equal(t, 3, cm.Parent)
	})

	t.Run("порядок колонок не важен", func(t *testing.T) {
		cm, err := mapColumns([]string{"Parent Competency", "Comp Name", "Comp Code"})
		require.NoError(t, err)
		assert.Equal(t, 2, cm.Code)
		assert.Equal(t, 1, cm.Name)
		assert.Equal(t, -1, cm.Description)
		assert.Equal(t, 0, cm.Parent)
	})

	t.Run("отсутствующая обязательная колонка названа в ошибке", func(t *testing.T) {
		_, err := mapColumns([]string{"Comp Code", "Description"})
		var missingErr *MissingColumnsError
		require.True(t, errors.As(err, &missingErr))
		assert.Equal(t, []string{"comp name"}, missingErr.Missing)
	})

	t.Run("перечисляются все отсутствующие колонки", func(t *testing.T) {
		_, err := mapColumns([]string{"Description"})
		var missingErr *MissingColumnsError
		require.True(t, errors.As(err, &missingErr))
		assert.Equal(t, []string{"comp code", "comp name"}, missingErr.Missing)
	})
}

func TestExtractImportRows(t *testing.T) {
	parse := func(t *testing.T, raw string) []ImportRow {
		t.Helper()
		lines, err := parseDelimited(raw)
		require.NoError(t, err)
		rows, err := extractImportRows(lines)
		require.NoError(t, err)
		return rows
	}

	t.Run("обычный файл", func(t *testing.T) {
		rows := parse(t, "Comp Code,Comp Name,Description,Parent Competency\nENG1,English,Root,\nENG1.1,Reading,,ENG1\n")
		require.Len(t, rows, 2)
		assert.Equal(t, ImportRow{Line: 2, Code: "ENG1", Name: "English", Description: "Root"}, rows[0])
		assert.Equal(t, ImportRow{Line: 3, Code: "ENG1.1", Name: "Reading", ParentCode: "ENG1"}, rows[1])
	})

	t.Run("строка с пустым названием молча пропускается", func(t *testing.T) {
		rows := parse(t, "Comp Code,Comp Name\nENG1,\nENG2,Science\n")
		require.Len(t, rows, 1)
		assert.Equal(t, "ENG2", rows[0].Code)
	})

	t.Run("строка с пустым кодом молча пропускается", func(t *testing.T) {
		rows := parse(t, "Comp Code,Comp Name\n,English\nENG2,Science\n")
		require.Len(t, rows, 1)
		assert.Equal(t, "ENG2", rows[0].Code)
	})

	t.Run("дубликаты кодов не отсеиваются на клиентской стороне", func(t *testing.T) {
		rows := parse(t, "Comp Code,Comp Name\nENG1,English\nENG1,English again\n")
		assert.Len(t, rows, 2)
	})

	t.Run("короткая строка - недостающие колонки пустые", func(t *testing.T) {
		rows := parse(t, "Comp Code,Comp Name,Description\nENG1,English\n")
		require.Len(t, rows, 1)
		assert.Empty(t, rows[0].Description)
	})
}

func TestFormatCSVField(t *testing.T) {
	assert.Equal(t, "plain", formatCSVField("plain"))
	assert.Equal(t, `"a,b"`, formatCSVField("a,b"))
	assert.Equal(t, `"x""y"`, formatCSVField(`x"y`))

	// Экранированная строка должна разбираться обратно нашим же парсером.
	row := writeCSVRow([]string{"a", `b,c`, `x"y`})
	assert.Equal(t, []string{"a", "b,c", `x"y`}, splitCSVLine(row))
}
