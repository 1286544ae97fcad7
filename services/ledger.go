package services

import (
	"fmt"
	"time"

	"backend_panelhub/models"

	"github.com/shopspring/decimal"
)

// CutWindowDays длина недели корте
const CutWindowDays = 7

var (
	hundred    = decimal.NewFromInt(100)
	monthDays  = decimal.NewFromInt(BillingCycleDays)
	weekOffset = map[time.Weekday]int{
		time.Monday: 0, time.Tuesday: 1, time.Wednesday: 2, time.Thursday: 3,
		time.Friday: 4, time.Saturday: 5, time.Sunday: 6,
	}
)

// Round2 округляет сумму до центов
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ConvertToUSD переводит локальную сумму в USD по курсу "единиц за 1 USD".
// Результат округляется один раз при вводе и дальше не пересчитывается
func ConvertToUSD(local, rate decimal.Decimal) (decimal.Decimal, error) {
	if !rate.IsPositive() {
		return decimal.Zero, invalid("exchange_rate", "курс должен быть больше нуля")
	}
	return Round2(local.Div(rate)), nil
}

// CutCalculation результат расчета корте
type CutCalculation struct {
	CollectedAmount   decimal.Decimal `json:"collected_amount"`
	CommissionPercent decimal.Decimal `json:"commission_percent"`
	CommissionAmount  decimal.Decimal `json:"commission_amount"`
	NetAmount         decimal.Decimal `json:"net_amount"`
	P2PRate           decimal.Decimal `json:"p2p_rate"`
	USDTCalculated    decimal.Decimal `json:"usdt_calculated"`
	USDTReceived      decimal.Decimal `json:"usdt_received"`
	Variance          decimal.Decimal `json:"variance"`
}

// CalculateCut считает ожидаемые USDT после комиссии и расхождение с полученными.
// Знак расхождения не интерпретируется
func CalculateCut(collected, commissionPercent, p2pRate, usdtReceived decimal.Decimal) (CutCalculation, error) {
	if !p2pRate.IsPositive() {
		return CutCalculation{}, invalid("p2p_rate", "курс P2P должен быть больше нуля")
	}
	if commissionPercent.IsNegative() || commissionPercent.GreaterThan(hundred) {
		return CutCalculation{}, invalid("commission_percent", "комиссия должна быть от 0 до 100")
	}
	if collected.IsNegative() {
		return CutCalculation{}, invalid("collected_amount", "сумма не может быть отрицательной")
	}

	commission := Round2(collected.Mul(commissionPercent).Div(hundred))
	net := collected.Sub(commission)
	calculated := Round2(net.Div(p2pRate))

	return CutCalculation{
		CollectedAmount:   collected,
		CommissionPercent: commissionPercent,
		CommissionAmount:  commission,
		NetAmount:         net,
		P2PRate:           p2pRate,
		USDTCalculated:    calculated,
		USDTReceived:      usdtReceived,
		Variance:          Round2(usdtReceived.Sub(calculated)),
	}, nil
}

// SplitCommission делит собранную сумму проекта на нашу комиссию и долю владельца.
// Обе части округляются независимо, поэтому в сумме могут отличаться от total на цент
func SplitCommission(total, commissionPercent decimal.Decimal) (commission, ownerShare decimal.Decimal) {
	commission = Round2(total.Mul(commissionPercent).Div(hundred))
	ownerShare = Round2(total.Mul(hundred.Sub(commissionPercent)).Div(hundred))
	return commission, ownerShare
}

// Period календарный период, обе границы включительно, с точностью до дня
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewPeriod создает период по датам начала и конца
func NewPeriod(start, end time.Time) (Period, error) {
	p := Period{Start: StartOfDay(start), End: inLocationOf(end, start)}
	if p.End.Before(p.Start) {
		return Period{}, invalid("period", "дата окончания раньше даты начала")
	}
	return p, nil
}

// WeekOf неделя с понедельника по воскресенье, содержащая date
func WeekOf(date time.Time) Period {
	start := StartOfDay(date).AddDate(0, 0, -weekOffset[date.Weekday()])
	return Period{Start: start, End: start.AddDate(0, 0, CutWindowDays-1)}
}

// WeekFrom семидневный период, начинающийся с start
func WeekFrom(start time.Time) Period {
	s := StartOfDay(start)
	return Period{Start: s, End: s.AddDate(0, 0, CutWindowDays-1)}
}

// MonthOf календарный месяц
func MonthOf(year int, month time.Month, loc *time.Location) Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return Period{Start: start, End: start.AddDate(0, 1, -1)}
}

// ParseMonth разбирает месяц в формате YYYY-MM
func ParseMonth(value string, loc *time.Location) (Period, error) {
	t, err := time.ParseInLocation("2006-01", value, loc)
	if err != nil {
		return Period{}, invalid("month", fmt.Sprintf("неверный формат месяца %q, ожидается YYYY-MM", value))
	}
	return MonthOf(t.Year(), t.Month(), loc), nil
}

// Days количество дней в периоде
func (p Period) Days() int {
	return daysBetween(p.Start, p.End) + 1
}

// Contains проверяет, попадает ли момент t в период
func (p Period) Contains(t time.Time) bool {
	day := inLocationOf(t, p.Start)
	return !day.Before(p.Start) && !day.After(p.End)
}

// MonthKey ключ месяца начала периода в формате YYYY-MM
func (p Period) MonthKey() string {
	return p.Start.Format("2006-01")
}

// MonthlyPanelCost сумма ежемесячной стоимости работающих панелей
func MonthlyPanelCost(panels []models.Panel) decimal.Decimal {
	total := decimal.Zero
	for _, p := range panels {
		if p.IsActive() {
			total = total.Add(p.MonthlyCost)
		}
	}
	return total
}

// ProratedExpense расход на панели за days дней: месячная стоимость * days / 30
func ProratedExpense(panels []models.Panel, days int) decimal.Decimal {
	return Round2(MonthlyPanelCost(panels).Mul(decimal.NewFromInt(int64(days))).Div(monthDays))
}

// LocalAmount исходная сумма платежа; для USD платежей это сама сумма
func LocalAmount(p *models.Payment) decimal.Decimal {
	if p.OriginalAmount != nil {
		return *p.OriginalAmount
	}
	return p.Amount
}
