package api

import (
	"fmt"
	"net/http"
	"time"

	"backend_panelhub/services"

	"github.com/gin-gonic/gin"
)

// ReportsAPI предоставляет API финансовых отчетов
type ReportsAPI struct {
	reports *services.ReportService
	cache   *services.CacheService
	loc     *time.Location
}

// NewReportsAPI создает новый экземпляр ReportsAPI. cache может быть nil
func NewReportsAPI(reports *services.ReportService, cache *services.CacheService, loc *time.Location) *ReportsAPI {
	return &ReportsAPI{reports: reports, cache: cache, loc: loc}
}

// RegisterRoutes регистрирует маршруты отчетов и главной панели
func (ra *ReportsAPI) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/dashboard", ra.GetDashboard)

	reports := router.Group("/reports")
	{
		reports.GET("/weekly", ra.GetWeekly)
		reports.GET("/monthly", ra.GetMonthly)
		reports.GET("/summary", ra.GetSummary)
		reports.GET("/profitability", ra.GetProfitability)
		reports.GET("/projects", ra.GetProjects)
		reports.GET("/goal", ra.GetGoal)
		reports.GET("/export", ra.Export)
	}
}

// GetDashboard сводка для главной панели, кэшируется до первого изменения данных
func (ra *ReportsAPI) GetDashboard(c *gin.Context) {
	key := services.ReportKey("dashboard", ra.reports.Today().Format(DateLayout))
	stats, err := services.Remember(c.Request.Context(), ra.cache, key, services.CacheTTLShort, ra.reports.Dashboard)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, stats)
}

// GetWeekly недельный отчет, ?week_start=YYYY-MM-DD
func (ra *ReportsAPI) GetWeekly(c *gin.Context) {
	weekStart, err := requireDate(c, "week_start", ra.loc)
	if err != nil {
		respondError(c, err)
		return
	}
	report, err := ra.reports.Weekly(weekStart)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, report)
}

// GetMonthly месячный отчет, ?month=YYYY-MM
func (ra *ReportsAPI) GetMonthly(c *gin.Context) {
	report, err := ra.reports.Monthly(c.Query("month"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, report)
}

// GetSummary финансовая сводка за произвольный период ?from&to
func (ra *ReportsAPI) GetSummary(c *gin.Context) {
	from, to, err := ra.period(c)
	if err != nil {
		respondError(c, err)
		return
	}
	summary, err := ra.reports.Summary(from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, summary)
}

// GetProfitability маржа по сервисам
func (ra *ReportsAPI) GetProfitability(c *gin.Context) {
	rows, err := ra.reports.Profitability()
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, rows)
}

// GetProjects распределение собранного по проектам за период ?from&to
func (ra *ReportsAPI) GetProjects(c *gin.Context) {
	from, to, err := ra.period(c)
	if err != nil {
		respondError(c, err)
		return
	}
	splits, err := ra.reports.Projects(from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, splits)
}

// GetGoal прогресс месячной цели, ?month=YYYY-MM
func (ra *ReportsAPI) GetGoal(c *gin.Context) {
	progress, err := ra.reports.GoalProgress(c.Query("month"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, progress)
}

// Export выгружает недельный или месячный отчет.
// ?type=weekly&week_start=YYYY-MM-DD или ?type=monthly&month=YYYY-MM, format xlsx|pdf|csv
func (ra *ReportsAPI) Export(c *gin.Context) {
	format, err := services.ParseExportFormat(c.DefaultQuery("format", string(services.ExportFormatExcel)))
	if err != nil {
		respondError(c, err)
		return
	}

	var table *services.ReportTable
	var baseName string
	switch kind := c.DefaultQuery("type", "weekly"); kind {
	case "weekly":
		weekStart, err := requireDate(c, "week_start", ra.loc)
		if err != nil {
			respondError(c, err)
			return
		}
		report, err := ra.reports.Weekly(weekStart)
		if err != nil {
			respondError(c, err)
			return
		}
		table = services.WeeklyTable(report)
		baseName = "corte-semanal-" + weekStart.Format(DateLayout)
	case "monthly":
		month := c.Query("month")
		report, err := ra.reports.Monthly(month)
		if err != nil {
			respondError(c, err)
			return
		}
		table = services.MonthlyTable(report)
		baseName = "reporte-mensual-" + month
	default:
		respondError(c, &services.ValidationError{Field: "type", Message: fmt.Sprintf("неизвестный тип отчета %q", kind)})
		return
	}

	file, err := ra.reports.Export(table, format, baseName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

func (ra *ReportsAPI) period(c *gin.Context) (time.Time, time.Time, error) {
	from, err := requireDate(c, "from", ra.loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := requireDate(c, "to", ra.loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}
