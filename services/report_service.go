package services

import (
	"fmt"
	"time"

	"backend_panelhub/logger"
	"backend_panelhub/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DashboardExpiringDays горизонт "скоро заканчиваются" на главной панели
const DashboardExpiringDays = 3

// ReportService строит финансовые отчеты. Отчеты не сохраняются и
// пересчитываются из текущих данных при каждом запросе
type ReportService struct {
	db    *gorm.DB
	clock Clock
	log   *zap.Logger
}

// NewReportService создает новый экземпляр ReportService
func NewReportService(db *gorm.DB, clock Clock, log *zap.Logger) *ReportService {
	return &ReportService{db: db, clock: clock, log: logger.OrNop(log).Named("reports")}
}

// WeeklyReport недельный отчет
type WeeklyReport struct {
	Summary  FinancialSummary `json:"summary"`
	Projects []ProjectSplit   `json:"projects"`
	Cuts     []models.Cut     `json:"cuts"`
}

// MonthlyReport месячный отчет
type MonthlyReport struct {
	Summary       FinancialSummary       `json:"summary"`
	Goal          *GoalProgress          `json:"goal,omitempty"`
	Projects      []ProjectSplit         `json:"projects"`
	Profitability []ServiceProfitability `json:"profitability"`
}

// DashboardStats сводка для главной панели
type DashboardStats struct {
	Clients            int                              `json:"clients"`
	Subscriptions      map[models.SubscriptionState]int `json:"subscriptions"`
	Panels             map[models.PanelState]int        `json:"panels"`
	TotalCapacity      int                              `json:"total_capacity"`
	UsedSlots          int                              `json:"used_slots"`
	AvailableSlots     int                              `json:"available_slots"`
	MonthlyBillable    decimal.Decimal                  `json:"monthly_billable"`
	CollectedThisMonth decimal.Decimal                  `json:"collected_this_month"`
	MonthlyPanelCost   decimal.Decimal                  `json:"monthly_panel_cost"`
	ExpiringSoon       int                              `json:"expiring_soon"`
	Goal               *GoalProgress                    `json:"goal,omitempty"`
	GeneratedAt        time.Time                        `json:"generated_at"`
}

// Snapshot загружает текущий срез всех коллекций
func (rs *ReportService) Snapshot() (Snapshot, error) {
	var s Snapshot
	loads := []struct {
		what string
		dest interface{}
	}{
		{"сервисов", &s.Services},
		{"панелей", &s.Panels},
		{"клиентов", &s.Clients},
		{"проектов", &s.Projects},
		{"подписок", &s.Subscriptions},
		{"платежей", &s.Payments},
		{"целей", &s.Goals},
	}
	for _, l := range loads {
		if err := rs.db.Find(l.dest).Error; err != nil {
			return Snapshot{}, fmt.Errorf("ошибка получения %s: %w", l.what, err)
		}
	}
	return s, nil
}

// Summary финансовая сводка за произвольный период
func (rs *ReportService) Summary(from, to time.Time) (*FinancialSummary, error) {
	period, err := NewPeriod(from, to)
	if err != nil {
		return nil, err
	}
	snapshot, err := rs.Snapshot()
	if err != nil {
		return nil, err
	}
	summary := Summarize(snapshot, period)
	return &summary, nil
}

// Weekly недельный отчет по семи дням начиная с weekStart
func (rs *ReportService) Weekly(weekStart time.Time) (*WeeklyReport, error) {
	snapshot, err := rs.Snapshot()
	if err != nil {
		return nil, err
	}
	period := WeekFrom(weekStart)

	var cuts []models.Cut
	if err := rs.db.Order("week_start ASC").Find(&cuts).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения корте: %w", err)
	}
	weekCuts := make([]models.Cut, 0)
	for _, c := range cuts {
		if period.Contains(c.WeekStart) {
			weekCuts = append(weekCuts, c)
		}
	}

	return &WeeklyReport{
		Summary:  Summarize(snapshot, period),
		Projects: SplitByProject(snapshot, period),
		Cuts:     weekCuts,
	}, nil
}

// Monthly месячный отчет за month в формате YYYY-MM
func (rs *ReportService) Monthly(month string) (*MonthlyReport, error) {
	period, err := ParseMonth(month, rs.location())
	if err != nil {
		return nil, err
	}
	snapshot, err := rs.Snapshot()
	if err != nil {
		return nil, err
	}

	summary := Summarize(snapshot, period)
	report := &MonthlyReport{
		Summary:       summary,
		Projects:      SplitByProject(snapshot, period),
		Profitability: ProfitabilityByService(snapshot),
	}
	if goal, ok := FindGoal(snapshot.Goals, period.MonthKey()); ok {
		progress := ProgressFor(goal, summary.CollectedRevenue)
		report.Goal = &progress
	}
	return report, nil
}

// Profitability рентабельность по сервисам
func (rs *ReportService) Profitability() ([]ServiceProfitability, error) {
	snapshot, err := rs.Snapshot()
	if err != nil {
		return nil, err
	}
	return ProfitabilityByService(snapshot), nil
}

// Projects распределение собранного по проектам за период
func (rs *ReportService) Projects(from, to time.Time) ([]ProjectSplit, error) {
	period, err := NewPeriod(from, to)
	if err != nil {
		return nil, err
	}
	snapshot, err := rs.Snapshot()
	if err != nil {
		return nil, err
	}
	return SplitByProject(snapshot, period), nil
}

// GoalProgress выполнение цели на месяц
func (rs *ReportService) GoalProgress(month string) (*GoalProgress, error) {
	period, err := ParseMonth(month, rs.location())
	if err != nil {
		return nil, err
	}
	snapshot, err := rs.Snapshot()
	if err != nil {
		return nil, err
	}

	goal, ok := FindGoal(snapshot.Goals, period.MonthKey())
	if !ok {
		return nil, fmt.Errorf("цель на %s: %w", month, ErrNotFound)
	}
	progress := ProgressFor(goal, CollectedRevenue(PaymentsIn(snapshot.Payments, period)))
	return &progress, nil
}

// Dashboard сводка для главной панели
func (rs *ReportService) Dashboard() (*DashboardStats, error) {
	snapshot, err := rs.Snapshot()
	if err != nil {
		return nil, err
	}

	now := rs.clock.Now()
	today := StartOfDay(now)
	month := MonthOf(today.Year(), today.Month(), today.Location())

	stats := &DashboardStats{
		Clients: len(snapshot.Clients),
		Subscriptions: map[models.SubscriptionState]int{
			models.SubscriptionActive:    0,
			models.SubscriptionExpired:   0,
			models.SubscriptionCancelled: 0,
		},
		Panels: map[models.PanelState]int{
			models.PanelStateActive: 0,
			models.PanelStateDown:   0,
		},
		MonthlyPanelCost: MonthlyPanelCost(snapshot.Panels),
		GeneratedAt:      now,
	}

	AnnotateState(snapshot.Subscriptions, today)
	for _, sub := range snapshot.Subscriptions {
		stats.Subscriptions[sub.EffectiveState]++
		if sub.EffectiveState != models.SubscriptionActive {
			continue
		}
		if left := DaysUntilDue(sub.DueDate, today); left >= 0 && left <= DashboardExpiringDays {
			stats.ExpiringSoon++
		}
	}
	stats.MonthlyBillable, _ = BillableRevenue(snapshot.Subscriptions)

	AnnotateSlots(snapshot.Panels, SlotUsage(snapshot.Subscriptions))
	for _, p := range snapshot.Panels {
		stats.Panels[p.State]++
		if !p.IsActive() {
			continue
		}
		stats.TotalCapacity += p.Capacity
		stats.UsedSlots += p.UsedSlots
		stats.AvailableSlots += p.AvailableSlots
	}

	collected := CollectedRevenue(PaymentsIn(snapshot.Payments, month))
	stats.CollectedThisMonth = collected
	if goal, ok := FindGoal(snapshot.Goals, month.MonthKey()); ok {
		progress := ProgressFor(goal, collected)
		stats.Goal = &progress
	}
	return stats, nil
}

// Today текущий день в часовом поясе отчетов
func (rs *ReportService) Today() time.Time {
	return Today(rs.clock)
}

func (rs *ReportService) location() *time.Location {
	return rs.clock.Now().Location()
}
