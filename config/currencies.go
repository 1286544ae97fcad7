package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CurrencyTable сопоставляет код страны (ISO 3166-1 alpha-2) с локальной валютой
type CurrencyTable map[string]string

// defaultCurrencies страны, с которыми работают операторы
var defaultCurrencies = CurrencyTable{
	"MX": "MXN",
	"CO": "COP",
	"PE": "PEN",
	"AR": "ARS",
	"CL": "CLP",
	"VE": "VES",
	"BO": "BOB",
	"GT": "GTQ",
	"HN": "HNL",
	"NI": "NIO",
	"CR": "CRC",
	"DO": "DOP",
	"PY": "PYG",
	"UY": "UYU",
	"BR": "BRL",
	"ES": "EUR",
	"EC": "USD",
	"SV": "USD",
	"PA": "USD",
	"US": "USD",
}

// currencyFile формат YAML файла с переопределениями
type currencyFile struct {
	Countries map[string]string `yaml:"countries"`
}

// DefaultCurrencyTable возвращает копию встроенной таблицы валют
func DefaultCurrencyTable() CurrencyTable {
	table := make(CurrencyTable, len(defaultCurrencies))
	for country, currency := range defaultCurrencies {
		table[country] = currency
	}
	return table
}

// LoadCurrencyTable загружает таблицу валют. Если путь пустой, возвращается встроенная таблица
func LoadCurrencyTable(path string) (CurrencyTable, error) {
	table := DefaultCurrencyTable()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать файл валют %s: %w", path, err)
	}

	var file currencyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла валют %s: %w", path, err)
	}

	for country, currency := range file.Countries {
		country = strings.ToUpper(strings.TrimSpace(country))
		currency = strings.ToUpper(strings.TrimSpace(currency))
		if len(country) != 2 || len(currency) != 3 {
			return nil, fmt.Errorf("неверная запись в файле валют: %q -> %q", country, currency)
		}
		table[country] = currency
	}

	return table, nil
}

// CurrencyFor возвращает валюту страны, USD для неизвестных стран
func (t CurrencyTable) CurrencyFor(country string) string {
	if currency, ok := t[strings.ToUpper(country)]; ok {
		return currency
	}
	return "USD"
}
