package yelp

import (
	"fmt"
	"strings"
	"time"
)

const closedLabel = "Fermé"

var frenchDays = map[string]string{
	"Mon": "Lundi",
	"Tue": "Mardi",
	"Wed": "Mercredi",
	"Thu": "Jeudi",
	"Fri": "Vendredi",
	"Sat": "Samedi",
	"Sun": "Dimanche",
}

// LocalizeDay maps an English short weekday to its French name. Unknown
// values pass through.
func LocalizeDay(short string) string {
	if day, ok := frenchDays[strings.TrimSpace(short)]; ok {
		return day
	}
	return short
}

// NormalizeHours turns "9:00 AM - 10:30 PM" into "09h00 - 22h30". A trailing
// "(...)" note is dropped. An end of exactly "12:00 PM" is written as "00h00".
// Strings without AM/PM pass through with "Closed" localized.
func NormalizeHours(raw string) (string, error) {
	s := raw
	if i := strings.Index(s, "("); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)

	if !strings.Contains(s, "AM") && !strings.Contains(s, "PM") {
		return strings.ReplaceAll(s, "Closed", closedLabel), nil
	}

	parts := strings.Split(s, " - ")
	if len(parts) != 2 {
		return "", fmt.Errorf("yelp: hours %q: want \"start - end\"", raw)
	}

	start, err := to24h(parts[0])
	if err != nil {
		return "", err
	}
	end := "00h00"
	if strings.TrimSpace(parts[1]) != "12:00 PM" {
		if end, err = to24h(parts[1]); err != nil {
			return "", err
		}
	}
	return start + " - " + end, nil
}

func to24h(clock string) (string, error) {
	t, err := time.Parse("3:04 PM", strings.TrimSpace(clock))
	if err != nil {
		return "", fmt.Errorf("yelp: hours %q: %w", clock, err)
	}
	return t.Format("15h04"), nil
}
