package timeutil

import (
	"fmt"
	"time"
)

type localeNames struct {
	days   [7]string
	months [12]string
	format string // day name, day of month, month name
}

var locales = map[string]localeNames{
	"es": {
		days:   [7]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"},
		months: [12]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"},
		format: "%s, %d de %s",
	},
	"en": {
		days:   [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
		months: [12]string{"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"},
		format: "%s, %d %s",
	},
}

// DefaultLocale is used when a restaurant has no locale or an unknown one.
const DefaultLocale = "es"

// Label renders a human date label such as "viernes, 6 de marzo".
func Label(date time.Time, locale string) string {
	names, ok := locales[locale]
	if !ok {
		names = locales[DefaultLocale]
	}
	return fmt.Sprintf(names.format, names.days[date.Weekday()], date.Day(), names.months[date.Month()-1])
}

// SupportedLocale reports whether Label has names for locale.
func SupportedLocale(locale string) bool {
	_, ok := locales[locale]
	return ok
}
