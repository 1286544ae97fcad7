package services

import (
	"testing"
	"time"

	"backend_panelhub/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(expected).Equal(actual), "ожидалось %s, получено %s", expected, actual.String())
}

func TestRound2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"50", "50"},
		{"33.333333", "33.33"},
		{"0.125", "0.13"},
		{"-0.125", "-0.13"},
		{"2.675", "2.68"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assertDecimal(t, tt.expected, Round2(dec(tt.input)))
		})
	}
}

func TestConvertToUSD(t *testing.T) {
	t.Run("1000 MXN по курсу 20", func(t *testing.T) {
		usd, err := ConvertToUSD(dec("1000"), dec("20"))
		require.NoError(t, err)
		assertDecimal(t, "50.00", usd)
	})

	t.Run("округление при вводе", func(t *testing.T) {
		usd, err := ConvertToUSD(dec("100"), dec("3"))
		require.NoError(t, err)
		assertDecimal(t, "33.33", usd)
	})

	t.Run("нулевой курс", func(t *testing.T) {
		_, err := ConvertToUSD(dec("100"), decimal.Zero)
		assert.True(t, IsValidationError(err))
	})

	t.Run("отрицательный курс", func(t *testing.T) {
		_, err := ConvertToUSD(dec("100"), dec("-1"))
		assert.True(t, IsValidationError(err))
	})
}

func TestCalculateCut(t *testing.T) {
	tests := []struct {
		name       string
		collected  string
		percent    string
		rate       string
		received   string
		commission string
		net        string
		calculated string
		variance   string
	}{
		{"без комиссии с недостачей", "20000", "0", "20", "990", "0", "20000", "1000", "-10"},
		{"с комиссией и излишком", "10000", "5", "19.5", "490", "500", "9500", "487.18", "2.82"},
		{"точное совпадение", "4000", "10", "18", "200", "400", "3600", "200", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc, err := CalculateCut(dec(tt.collected), dec(tt.percent), dec(tt.rate), dec(tt.received))
			require.NoError(t, err)

			assertDecimal(t, tt.commission, calc.CommissionAmount)
			assertDecimal(t, tt.net, calc.NetAmount)
			assertDecimal(t, tt.calculated, calc.USDTCalculated)
			assertDecimal(t, tt.variance, calc.Variance)
			assertDecimal(t, tt.variance, calc.USDTReceived.Sub(calc.USDTCalculated))
		})
	}
}

func TestCalculateCutValidation(t *testing.T) {
	_, err := CalculateCut(dec("100"), dec("5"), decimal.Zero, dec("1"))
	assert.True(t, IsValidationError(err))

	_, err = CalculateCut(dec("100"), dec("120"), dec("20"), dec("1"))
	assert.True(t, IsValidationError(err))

	_, err = CalculateCut(dec("-100"), dec("5"), dec("20"), dec("1"))
	assert.True(t, IsValidationError(err))
}

func TestSplitCommission(t *testing.T) {
	t.Run("точное деление", func(t *testing.T) {
		commission, owner := SplitCommission(dec("1000"), dec("30"))
		assertDecimal(t, "300", commission)
		assertDecimal(t, "700", owner)
	})

	t.Run("независимое округление сохраняет расхождение", func(t *testing.T) {
		commission, owner := SplitCommission(dec("0.05"), dec("50"))
		// 0.025 -> 0.03 и 0.025 -> 0.03: в сумме на цент больше исходного
		assertDecimal(t, "0.03", commission)
		assertDecimal(t, "0.03", owner)
		assertDecimal(t, "0.06", commission.Add(owner))
	})
}

func TestPeriods(t *testing.T) {
	t.Run("неделя начинается с понедельника", func(t *testing.T) {
		// 2026-03-19 четверг
		week := WeekOf(time.Date(2026, 3, 19, 15, 0, 0, 0, time.UTC))
		assert.True(t, date(2026, 3, 16).Equal(week.Start))
		assert.True(t, date(2026, 3, 22).Equal(week.End))
		assert.Equal(t, 7, week.Days())
	})

	t.Run("воскресенье относится к прошедшей неделе", func(t *testing.T) {
		week := WeekOf(date(2026, 3, 22))
		assert.True(t, date(2026, 3, 16).Equal(week.Start))
	})

	t.Run("месяц", func(t *testing.T) {
		feb := MonthOf(2026, time.February, time.UTC)
		assert.Equal(t, 28, feb.Days())
		assert.Equal(t, "2026-02", feb.MonthKey())

		jan, err := ParseMonth("2026-01", time.UTC)
		require.NoError(t, err)
		assert.Equal(t, 31, jan.Days())
		assert.True(t, date(2026, 1, 31).Equal(jan.End))
	})

	t.Run("неверный месяц", func(t *testing.T) {
		_, err := ParseMonth("2026/01", time.UTC)
		assert.True(t, IsValidationError(err))
	})

	t.Run("границы включительно", func(t *testing.T) {
		p, err := NewPeriod(date(2026, 3, 1), date(2026, 3, 7))
		require.NoError(t, err)

		assert.True(t, p.Contains(date(2026, 3, 1)))
		assert.True(t, p.Contains(time.Date(2026, 3, 7, 23, 59, 0, 0, time.UTC)))
		assert.False(t, p.Contains(date(2026, 3, 8)))
		assert.False(t, p.Contains(time.Date(2026, 2, 28, 23, 59, 0, 0, time.UTC)))
	})

	t.Run("конец раньше начала", func(t *testing.T) {
		_, err := NewPeriod(date(2026, 3, 7), date(2026, 3, 1))
		assert.True(t, IsValidationError(err))
	})
}

func TestProratedExpense(t *testing.T) {
	panels := []models.Panel{
		{ID: 1, State: models.PanelStateActive, MonthlyCost: dec("300")},
	}

	t.Run("неделя с одной панелью за 300", func(t *testing.T) {
		assertDecimal(t, "70.00", ProratedExpense(panels, 7))
	})

	t.Run("неработающие панели не учитываются", func(t *testing.T) {
		withDown := append([]models.Panel{}, panels...)
		withDown = append(withDown, models.Panel{ID: 2, State: models.PanelStateDown, MonthlyCost: dec("100")})

		assertDecimal(t, "70.00", ProratedExpense(withDown, 7))
		assertDecimal(t, "300", MonthlyPanelCost(withDown))
	})

	t.Run("месяц из 31 дня", func(t *testing.T) {
		assertDecimal(t, "310", ProratedExpense(panels, 31))
	})

	t.Run("округление", func(t *testing.T) {
		odd := []models.Panel{{State: models.PanelStateActive, MonthlyCost: dec("100")}}
		assertDecimal(t, "23.33", ProratedExpense(odd, 7))
	})
}

func TestLocalAmount(t *testing.T) {
	original := dec("1000")

	assertDecimal(t, "1000", LocalAmount(&models.Payment{Amount: dec("50"), OriginalAmount: &original}))
	assertDecimal(t, "50", LocalAmount(&models.Payment{Amount: dec("50")}))
}
