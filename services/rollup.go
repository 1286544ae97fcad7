package services

import (
	"sort"

	"backend_panelhub/models"

	"github.com/shopspring/decimal"
)

// Snapshot текущий срез коллекций, по которому строятся все сводки.
// Сводки ничего не сохраняют и каждый раз пересчитываются заново
type Snapshot struct {
	Services      []models.Service
	Panels        []models.Panel
	Clients       []models.Client
	Projects      []models.Project
	Subscriptions []models.Subscription
	Payments      []models.Payment
	Goals         []models.Goal
}

// FinancialSummary финансовая сводка за период
type FinancialSummary struct {
	Period              Period                     `json:"period"`
	Days                int                        `json:"days"`
	BillableRevenue     decimal.Decimal            `json:"billable_revenue"`
	CollectedRevenue    decimal.Decimal            `json:"collected_revenue"`
	MonthlyPanelCost    decimal.Decimal            `json:"monthly_panel_cost"`
	ProratedExpense     decimal.Decimal            `json:"prorated_expense"`
	Profit              decimal.Decimal            `json:"profit"`
	PaymentCount        int                        `json:"payment_count"`
	ActivePanels        int                        `json:"active_panels"`
	ActiveSubscriptions int                        `json:"active_subscriptions"`
	ByMethod            map[string]decimal.Decimal `json:"by_method"`
}

// BillableRevenue сумма цен подписок в состоянии "activa" (выставляемая, а не собранная выручка)
func BillableRevenue(subs []models.Subscription) (decimal.Decimal, int) {
	total := decimal.Zero
	count := 0
	for _, sub := range subs {
		if sub.State == models.SubscriptionActive {
			total = total.Add(sub.Price)
			count++
		}
	}
	return total, count
}

// PaymentsIn платежи, датированные внутри периода
func PaymentsIn(payments []models.Payment, period Period) []models.Payment {
	result := make([]models.Payment, 0)
	for _, p := range payments {
		if period.Contains(p.PaidAt) {
			result = append(result, p)
		}
	}
	return result
}

// CollectedRevenue сумма USD по платежам
func CollectedRevenue(payments []models.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

// Summarize строит финансовую сводку: прибыль = собранное - расход на панели за период
func Summarize(s Snapshot, period Period) FinancialSummary {
	days := period.Days()
	billable, activeSubs := BillableRevenue(s.Subscriptions)
	inPeriod := PaymentsIn(s.Payments, period)
	collected := CollectedRevenue(inPeriod)
	expense := ProratedExpense(s.Panels, days)

	byMethod := make(map[string]decimal.Decimal)
	for _, p := range inPeriod {
		method := p.Method
		if method == "" {
			method = "otro"
		}
		byMethod[method] = byMethod[method].Add(p.Amount)
	}

	activePanels := 0
	for _, p := range s.Panels {
		if p.IsActive() {
			activePanels++
		}
	}

	return FinancialSummary{
		Period:              period,
		Days:                days,
		BillableRevenue:     billable,
		CollectedRevenue:    collected,
		MonthlyPanelCost:    MonthlyPanelCost(s.Panels),
		ProratedExpense:     expense,
		Profit:              collected.Sub(expense),
		PaymentCount:        len(inPeriod),
		ActivePanels:        activePanels,
		ActiveSubscriptions: activeSubs,
		ByMethod:            byMethod,
	}
}

// ServiceProfitability рентабельность сервиса
type ServiceProfitability struct {
	ServiceID           uint            `json:"service_id"`
	ServiceName         string          `json:"service_name"`
	ActiveSubscriptions int             `json:"active_subscriptions"`
	Panels              int             `json:"panels"`
	Capacity            int             `json:"capacity"`
	BillableRevenue     decimal.Decimal `json:"billable_revenue"`
	PanelCost           decimal.Decimal `json:"panel_cost"`
	Margin              decimal.Decimal `json:"margin"`
}

// ProfitabilityByService считает месячную выручку и стоимость панелей по каждому сервису
func ProfitabilityByService(s Snapshot) []ServiceProfitability {
	rows := make(map[uint]*ServiceProfitability, len(s.Services))
	order := make([]uint, 0, len(s.Services))
	row := func(id uint) *ServiceProfitability {
		if r, ok := rows[id]; ok {
			return r
		}
		r := &ServiceProfitability{ServiceID: id, BillableRevenue: decimal.Zero, PanelCost: decimal.Zero}
		rows[id] = r
		order = append(order, id)
		return r
	}

	for _, svc := range s.Services {
		row(svc.ID).ServiceName = svc.Name
	}
	for _, sub := range s.Subscriptions {
		if sub.State != models.SubscriptionActive {
			continue
		}
		r := row(sub.ServiceID)
		r.ActiveSubscriptions++
		r.BillableRevenue = r.BillableRevenue.Add(sub.Price)
	}
	for _, p := range s.Panels {
		if !p.IsActive() {
			continue
		}
		r := row(p.ServiceID)
		r.Panels++
		r.Capacity += p.Capacity
		r.PanelCost = r.PanelCost.Add(p.MonthlyCost)
	}

	result := make([]ServiceProfitability, 0, len(order))
	for _, id := range order {
		r := rows[id]
		r.Margin = r.BillableRevenue.Sub(r.PanelCost)
		result = append(result, *r)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Margin.GreaterThan(result[j].Margin)
	})
	return result
}

// ProjectSplit распределение собранного по проекту
type ProjectSplit struct {
	ProjectID         uint            `json:"project_id"`
	ProjectName       string          `json:"project_name"`
	OwnerName         string          `json:"owner_name"`
	CommissionPercent decimal.Decimal `json:"commission_percent"`
	Collected         decimal.Decimal `json:"collected"`
	Commission        decimal.Decimal `json:"commission"`
	OwnerShare        decimal.Decimal `json:"owner_share"`
	PaymentCount      int             `json:"payment_count"`
}

// SplitByProject делит собранное за период по проектам клиентов
func SplitByProject(s Snapshot, period Period) []ProjectSplit {
	clientProject := make(map[uint]uint, len(s.Clients))
	for _, c := range s.Clients {
		if c.ProjectID != nil {
			clientProject[c.ID] = *c.ProjectID
		}
	}

	collected := make(map[uint]decimal.Decimal)
	counts := make(map[uint]int)
	for _, p := range PaymentsIn(s.Payments, period) {
		projectID, ok := clientProject[p.ClientID]
		if !ok {
			continue
		}
		collected[projectID] = collected[projectID].Add(p.Amount)
		counts[projectID]++
	}

	result := make([]ProjectSplit, 0, len(s.Projects))
	for _, project := range s.Projects {
		total := collected[project.ID]
		commission, owner := SplitCommission(total, project.CommissionPercent)
		result = append(result, ProjectSplit{
			ProjectID:         project.ID,
			ProjectName:       project.Name,
			OwnerName:         project.OwnerName,
			CommissionPercent: project.CommissionPercent,
			Collected:         total,
			Commission:        commission,
			OwnerShare:        owner,
			PaymentCount:      counts[project.ID],
		})
	}
	return result
}

// GoalProgress выполнение месячной цели
type GoalProgress struct {
	Month     string          `json:"month"`
	Target    decimal.Decimal `json:"target"`
	Collected decimal.Decimal `json:"collected"`
	Remaining decimal.Decimal `json:"remaining"`
	Percent   decimal.Decimal `json:"percent"`
	Reached   bool            `json:"reached"`
}

// ProgressFor считает выполнение цели по собранной сумме
func ProgressFor(goal models.Goal, collected decimal.Decimal) GoalProgress {
	progress := GoalProgress{
		Month:     goal.Month,
		Target:    goal.TargetUSD,
		Collected: collected,
		Remaining: decimal.Max(goal.TargetUSD.Sub(collected), decimal.Zero),
		Percent:   decimal.Zero,
	}
	if goal.TargetUSD.IsPositive() {
		progress.Percent = Round2(collected.Div(goal.TargetUSD).Mul(hundred))
	}
	progress.Reached = collected.GreaterThanOrEqual(goal.TargetUSD)
	return progress
}

// FindGoal ищет цель на месяц monthKey
func FindGoal(goals []models.Goal, monthKey string) (models.Goal, bool) {
	for _, g := range goals {
		if g.Month == monthKey {
			return g, true
		}
	}
	return models.Goal{}, false
}
