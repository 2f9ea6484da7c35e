// maarif-assessment/internal/handlers/report_handler.go
package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"maarif-assessment/config"
	"maarif-assessment/models"

	"github.com/Knetic/govaluate"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// Полосы успеваемости, в которые классифицируется балл.
const (
	BandStrong  = "strong"
	BandNeutral = "neutral"
	BandSupport = "support"
)

// GrowthRow - строка отчета роста: баллы ученика на начало и конец года
// и классификация итогового балла.
type GrowthRow struct {
	StudentID   uint     `json:"studentId"`
	StudentName string   `json:"studentName"`
	BOYScore    *float64 `json:"boyScore"`
	EOYScore    *float64 `json:"eoyScore"`
	Growth      *float64 `json:"growth"`
	Band        string   `json:"band"`
}

// classifyPerformanceBand вычисляет полосу для балла по формулам оценочной
// работы. Формулы - выражения govaluate над параметрами score, strong и
// neutral; по умолчанию "score >= strong" и "score >= neutral".
func classifyPerformanceBand(score float64, assessment models.Assessment) (string, error) {
	parameters := map[string]interface{}{
		"score":   score,
		"strong":  assessment.StrongThreshold,
		"neutral": assessment.NeutralThreshold,
	}

	strongFormula := assessment.StrongFormula
	if strongFormula == "" {
		strongFormula = "score >= strong"
	}
	neutralFormula := assessment.NeutralFormula
	if neutralFormula == "" {
		neutralFormula = "score >= neutral"
	}

	for _, step := range []struct {
		formula string
		band    string
	}{
		{strongFormula, BandStrong},
		{neutralFormula, BandNeutral},
	} {
		expr, err := govaluate.NewEvaluableExpression(step.formula)
		if err != nil {
			return "", fmt.Errorf("ошибка в формуле полосы %q: %w", step.formula, err)
		}
		result, err := expr.Evaluate(parameters)
		if err != nil {
			return "", fmt.Errorf("не удалось вычислить формулу %q: %w", step.formula, err)
		}
		matched, ok := result.(bool)
		if !ok {
			return "", fmt.Errorf("результат формулы %q не является логическим значением", step.formula)
		}
		if matched {
			return step.band, nil
		}
	}
	return BandSupport, nil
}

// scoredResponse - сырая строка выборки для агрегации по ученикам и периодам.
type scoredResponse struct {
	StudentID   uint
	StudentName string
	Period      string
	Score       float64
}

// buildGrowthRows агрегирует выборку: средний балл ученика за BOY и EOY,
// дельта роста и полоса по итоговому (EOY) баллу.
func buildGrowthRows(responses []scoredResponse, eoyAssessment models.Assessment) ([]GrowthRow, error) {
	type accumulator struct {
		name     string
		boySum   float64
		boyCount int
		eoySum   float64
		eoyCount int
	}

	order := make([]uint, 0)
	acc := make(map[uint]*accumulator)
	for _, r := range responses {
		a, ok := acc[r.StudentID]
		if !ok {
			a = &accumulator{name: r.StudentName}
			acc[r.StudentID] = a
			order = append(order, r.StudentID)
		}
		switch r.Period {
		case models.PeriodBOY:
			a.boySum += r.Score
			a.boyCount++
		case models.PeriodEOY:
			a.eoySum += r.Score
			a.eoyCount++
		}
	}

	rows := make([]GrowthRow, 0, len(order))
	for _, studentID := range order {
		a := acc[studentID]
		row := GrowthRow{StudentID: studentID, StudentName: a.name}

		if a.boyCount > 0 {
			boy := a.boySum / float64(a.boyCount)
			row.BOYScore = &boy
		}
		if a.eoyCount > 0 {
			eoy := a.eoySum / float64(a.eoyCount)
			row.EOYScore = &eoy

			band, err := classifyPerformanceBand(eoy, eoyAssessment)
			if err != nil {
				return nil, err
			}
			row.Band = band
		}
		if row.BOYScore != nil && row.EOYScore != nil {
			growth := *row.EOYScore - *row.BOYScore
			row.Growth = &growth
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// fetchGrowthData достает из базы выборку ответов и EOY-работу для
// параметров отчета (предмет + параллель, опционально школа).
func fetchGrowthData(c *gin.Context) ([]GrowthRow, bool) {
	subjectID, err := strconv.Atoi(c.Query("subject_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Не указан subject_id"})
		return nil, false
	}
	gradeID, err := strconv.Atoi(c.Query("grade_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Не указан grade_id"})
		return nil, false
	}

	var eoyAssessment models.Assessment
	if err := config.DB.Where("subject_id = ? AND period = ?", subjectID, models.PeriodEOY).
		Order("id desc").Limit(1).Find(&eoyAssessment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось найти итоговую оценочную работу"})
		return nil, false
	}
	if eoyAssessment.ID == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Для предмета нет итоговой (EOY) оценочной работы"})
		return nil, false
	}

	query := config.DB.Table("student_responses").
		Select(`
            student_responses.student_id,
            students.last_name || ' ' || students.first_name as student_name,
            assessments.period,
            student_responses.score
        `).
		Joins("JOIN assignments ON student_responses.assignment_id = assignments.id").
		Joins("JOIN assessments ON assignments.assessment_id = assessments.id").
		Joins("JOIN students ON student_responses.student_id = students.id").
		Where("assessments.subject_id = ? AND assignments.grade_id = ?", subjectID, gradeID).
		Where("student_responses.deleted_at IS NULL")

	if schoolIDStr := c.Query("school_id"); schoolIDStr != "" {
		if schoolID, err := strconv.Atoi(schoolIDStr); err == nil {
			query = query.Where("assignments.school_id = ?", schoolID)
		}
	}

	var responses []scoredResponse
	if err := query.Order("students.last_name, students.first_name").Scan(&responses).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось получить данные отчета"})
		return nil, false
	}

	rows, err := buildGrowthRows(responses, eoyAssessment)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return rows, true
}

// GetGrowthReportHandler возвращает данные роста для графиков.
func GetGrowthReportHandler(c *gin.Context) {
	rows, ok := fetchGrowthData(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "total": len(rows)})
}

// GetBandDistributionHandler возвращает распределение учеников по полосам
// для столбчатых диаграмм.
func GetBandDistributionHandler(c *gin.Context) {
	rows, ok := fetchGrowthData(c)
	if !ok {
		return
	}

	distribution := map[string]int{BandStrong: 0, BandNeutral: 0, BandSupport: 0}
	for _, row := range rows {
		if row.Band != "" {
			distribution[row.Band]++
		}
	}
	c.JSON(http.StatusOK, gin.H{"distribution": distribution, "total": len(rows)})
}

// ExportGrowthReportHandler выгружает отчет роста файлом: CSV (тем же
// диалектом, что принимает импорт) или XLSX.
func ExportGrowthReportHandler(c *gin.Context) {
	rows, ok := fetchGrowthData(c)
	if !ok {
		return
	}

	format := c.DefaultQuery("format", "csv")
	switch format {
	case "csv":
		writeGrowthCSV(c, rows)
	case "xlsx":
		writeGrowthXLSX(c, rows)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неизвестный формат выгрузки: " + format})
	}
}

func formatScore(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func writeGrowthCSV(c *gin.Context, rows []GrowthRow) {
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, writeCSVRow([]string{"Student", "BOY Score", "EOY Score", "Growth", "Band"}))
	for _, row := range rows {
		lines = append(lines, writeCSVRow([]string{
			row.StudentName,
			formatScore(row.BOYScore),
			formatScore(row.EOYScore),
			formatScore(row.Growth),
			row.Band,
		}))
	}

	fileName := fmt.Sprintf("growth_report_%s.csv", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename="+fileName)

	var body string
	for _, line := range lines {
		body += line + "\n"
	}
	c.String(http.StatusOK, body)
}

func writeGrowthXLSX(c *gin.Context, rows []GrowthRow) {
	f := excelize.NewFile()
	sheetName := "Growth"
	index, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Student", "BOY Score", "EOY Score", "Growth", "Band"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	for i, r := range rows {
		rowNum := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", rowNum), r.StudentName)
		if r.BOYScore != nil {
			f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowNum), *r.BOYScore)
		}
		if r.EOYScore != nil {
			f.SetCellValue(sheetName, fmt.Sprintf("C%d", rowNum), *r.EOYScore)
		}
		if r.Growth != nil {
			f.SetCellValue(sheetName, fmt.Sprintf("D%d", rowNum), *r.Growth)
		}
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", rowNum), r.Band)
	}

	fileName := fmt.Sprintf("growth_report_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+fileName)
	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write Excel file"})
	}
}
