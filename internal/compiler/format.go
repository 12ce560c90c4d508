package compiler

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DateStyle selects the date layout of a locale.
type DateStyle int

const (
	DateShort DateStyle = iota
	DateMedium
	DateLong
)

// Locale bundles everything the formatting helpers need. All helpers are
// pure: same input and locale, same output, every time.
type Locale struct {
	Code         string
	Tag          language.Tag
	Currency     currency.Unit
	SymbolPrefix bool
	DateLayouts  [3]string
	YesLabel     string
	NoLabel      string
}

// locales is the deployment's locale table. Date layouts use Go reference
// time; x/text has no CLDR date formatting.
var locales = map[string]Locale{
	"en": {
		Code:         "en",
		Tag:          language.English,
		Currency:     currency.USD,
		SymbolPrefix: true,
		DateLayouts:  [3]string{"1/2/2006", "Jan 2, 2006", "January 2, 2006"},
		YesLabel:     "Yes",
		NoLabel:      "No",
	},
	"nb": {
		Code:         "nb",
		Tag:          language.Norwegian,
		Currency:     currency.NOK,
		SymbolPrefix: false,
		DateLayouts:  [3]string{"02.01.2006", "2. Jan 2006", "2. January 2006"},
		YesLabel:     "Ja",
		NoLabel:      "Nei",
	},
	"de": {
		Code:         "de",
		Tag:          language.German,
		Currency:     currency.EUR,
		SymbolPrefix: false,
		DateLayouts:  [3]string{"02.01.2006", "2. Jan 2006", "2. January 2006"},
		YesLabel:     "Ja",
		NoLabel:      "Nein",
	},
	"fr": {
		Code:         "fr",
		Tag:          language.French,
		Currency:     currency.EUR,
		SymbolPrefix: false,
		DateLayouts:  [3]string{"02/01/2006", "2 Jan 2006", "2 January 2006"},
		YesLabel:     "Oui",
		NoLabel:      "Non",
	},
}

// LocaleFor resolves a locale code, falling back to the deployment default.
func LocaleFor(code, fallback string) Locale {
	normalized := strings.ToLower(strings.TrimSpace(code))
	if loc, ok := locales[normalized]; ok {
		return loc
	}
	if loc, ok := locales[strings.ToLower(strings.TrimSpace(fallback))]; ok {
		return loc
	}
	return locales["en"]
}

// FormatCurrency renders an amount with the locale's grouping, decimal
// separator, symbol and a two-digit minor unit. A non-numeric input renders
// the locale's zero amount so a bad upstream value degrades visibly instead
// of breaking generation.
func FormatCurrency(value any, loc Locale) string {
	amount, ok := toDecimal(value)
	if !ok {
		amount = decimal.Zero
	}

	printer := message.NewPrinter(loc.Tag)
	figure := printer.Sprint(number.Decimal(
		amount.InexactFloat64(),
		number.MinFractionDigits(2),
		number.MaxFractionDigits(2),
	))
	symbol := printer.Sprint(currency.Symbol(loc.Currency))

	if loc.SymbolPrefix {
		return symbol + figure
	}
	return figure + " " + symbol
}

// FormatNumber renders a number with locale grouping and no forced decimals.
func FormatNumber(value any, loc Locale) string {
	amount, ok := toDecimal(value)
	if !ok {
		return ""
	}
	printer := message.NewPrinter(loc.Tag)
	return printer.Sprint(number.Decimal(amount.InexactFloat64()))
}

// FormatDate renders a date per the locale's layout for the given style.
// It accepts a time.Time or a parseable date string.
func FormatDate(value any, loc Locale, style DateStyle) string {
	t, ok := toTime(value)
	if !ok {
		return ""
	}
	return t.Format(loc.DateLayouts[style])
}

// FormatBool renders a boolean with the locale's yes/no labels.
func FormatBool(value any, loc Locale) string {
	switch typed := value.(type) {
	case bool:
		if typed {
			return loc.YesLabel
		}
		return loc.NoLabel
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true", "yes", "1":
			return loc.YesLabel
		case "false", "no", "0":
			return loc.NoLabel
		}
	}
	return ""
}

func toDecimal(value any) (decimal.Decimal, bool) {
	switch typed := value.(type) {
	case decimal.Decimal:
		return typed, true
	case float64:
		return decimal.NewFromFloat(typed), true
	case int:
		return decimal.NewFromInt(int64(typed)), true
	case int64:
		return decimal.NewFromInt(typed), true
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(typed))
		if err != nil {
			return decimal.Decimal{}, false
		}
		return parsed, true
	default:
		return decimal.Decimal{}, false
	}
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"02.01.2006",
	"01/02/2006",
}

func toTime(value any) (time.Time, bool) {
	switch typed := value.(type) {
	case time.Time:
		if typed.IsZero() {
			return time.Time{}, false
		}
		return typed.UTC(), true
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, trimmed); err == nil {
				return parsed.UTC(), true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func stringify(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case decimal.Decimal:
		return typed.String()
	case time.Time:
		return typed.UTC().Format("2006-01-02")
	case bool:
		return strconv.FormatBool(typed)
	case nil:
		return ""
	default:
		return ""
	}
}
