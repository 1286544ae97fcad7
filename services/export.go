package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ExportFormat формат выгрузки отчета
type ExportFormat string

const (
	ExportFormatExcel ExportFormat = "xlsx"
	ExportFormatPDF   ExportFormat = "pdf"
	ExportFormatCSV   ExportFormat = "csv"
)

// ParseExportFormat разбирает формат из запроса
func ParseExportFormat(value string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(value))) {
	case ExportFormatExcel, "excel":
		return ExportFormatExcel, nil
	case ExportFormatPDF:
		return ExportFormatPDF, nil
	case ExportFormatCSV:
		return ExportFormatCSV, nil
	}
	return "", invalid("format", fmt.Sprintf("неподдерживаемый формат %q", value))
}

// ContentType MIME тип формата
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ExportFormatPDF:
		return "application/pdf"
	default:
		return "text/csv; charset=utf-8"
	}
}

// ReportTable табличное представление отчета для выгрузки
type ReportTable struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// ExportFile готовый файл отчета
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// WeeklyTable таблица недельного отчета
func WeeklyTable(report *WeeklyReport) *ReportTable {
	s := report.Summary
	table := summaryTable(fmt.Sprintf("Corte semanal %s - %s", s.Period.Start.Format("2006-01-02"), s.Period.End.Format("2006-01-02")), s)
	appendProjects(table, report.Projects)
	for _, c := range report.Cuts {
		table.Rows = append(table.Rows, []string{
			fmt.Sprintf("Corte %s %s", c.Country, c.Currency),
			fmt.Sprintf("USDT %s / calc %s / var %s",
				c.USDTReceived.StringFixed(2), c.USDTCalculated.StringFixed(2), c.Variance.StringFixed(2)),
		})
	}
	return table
}

// MonthlyTable таблица месячного отчета
func MonthlyTable(report *MonthlyReport) *ReportTable {
	s := report.Summary
	table := summaryTable(fmt.Sprintf("Reporte mensual %s", s.Period.MonthKey()), s)
	if report.Goal != nil {
		table.Rows = append(table.Rows,
			[]string{"Meta USD", report.Goal.Target.StringFixed(2)},
			[]string{"Falta para la meta", report.Goal.Remaining.StringFixed(2)},
			[]string{"Avance %", report.Goal.Percent.StringFixed(2)},
		)
	}
	appendProjects(table, report.Projects)
	for _, p := range report.Profitability {
		table.Rows = append(table.Rows, []string{
			"Servicio " + p.ServiceName,
			fmt.Sprintf("ingreso %s / costo %s / margen %s",
				p.BillableRevenue.StringFixed(2), p.PanelCost.StringFixed(2), p.Margin.StringFixed(2)),
		})
	}
	return table
}

func summaryTable(title string, s FinancialSummary) *ReportTable {
	return &ReportTable{
		Title:   title,
		Headers: []string{"Concepto", "Valor"},
		Rows: [][]string{
			{"Dias", fmt.Sprintf("%d", s.Days)},
			{"Ingreso facturable USD", s.BillableRevenue.StringFixed(2)},
			{"Ingreso cobrado USD", s.CollectedRevenue.StringFixed(2)},
			{"Gasto prorrateado USD", s.ProratedExpense.StringFixed(2)},
			{"Ganancia USD", s.Profit.StringFixed(2)},
			{"Pagos", fmt.Sprintf("%d", s.PaymentCount)},
		},
	}
}

func appendProjects(table *ReportTable, projects []ProjectSplit) {
	for _, p := range projects {
		table.Rows = append(table.Rows, []string{
			"Proyecto " + p.ProjectName,
			fmt.Sprintf("cobrado %s / comision %s / dueño %s",
				p.Collected.StringFixed(2), p.Commission.StringFixed(2), p.OwnerShare.StringFixed(2)),
		})
	}
}

// Export выгружает таблицу отчета в заданном формате
func (rs *ReportService) Export(table *ReportTable, format ExportFormat, baseName string) (*ExportFile, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case ExportFormatCSV:
		data, err = rs.generateCSVReport(table)
	case ExportFormatExcel:
		data, err = rs.generateExcelReport(table)
	case ExportFormatPDF:
		data, err = rs.generatePDFReport(table)
	default:
		return nil, invalid("format", fmt.Sprintf("неподдерживаемый формат %q", format))
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка выгрузки отчета в %s: %w", format, err)
	}

	return &ExportFile{
		Name:        fmt.Sprintf("%s.%s", baseName, format),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

// generateCSVReport генерирует CSV отчета
func (rs *ReportService) generateCSVReport(table *ReportTable) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(table.Headers); err != nil {
		return nil, err
	}
	for _, row := range table.Rows {
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	return buf.Bytes(), writer.Error()
}

// generateExcelReport генерирует Excel файл отчета
func (rs *ReportService) generateExcelReport(table *ReportTable) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			rs.log.Warn("Не удалось закрыть Excel файл", zap.Error(err))
		}
	}()

	sheetName := "Reporte"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	f.SetCellValue(sheetName, "A1", table.Title)
	for i, header := range table.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		f.SetCellValue(sheetName, cell, header)
	}
	for rowIdx, row := range table.Rows {
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+3)
			f.SetCellValue(sheetName, cell, value)
		}
	}
	f.SetColWidth(sheetName, "A", "A", 30)
	f.SetColWidth(sheetName, "B", "B", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// generatePDFReport генерирует PDF файл отчета
func (rs *ReportService) generatePDFReport(table *ReportTable) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 10, tr(table.Title))
	pdf.Ln(14)

	pdf.SetFont("Arial", "B", 10)
	widths := []float64{70, 120}
	for i, header := range table.Headers {
		pdf.CellFormat(widths[i%len(widths)], 8, tr(header), "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range table.Rows {
		for i, value := range row {
			pdf.CellFormat(widths[i%len(widths)], 7, tr(value), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
