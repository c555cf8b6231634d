// Package downline normalizes referral downline records and maintains
// their append-only CSV log. Unlike the bonus log, the downline log is
// deduplicated: rows already present in the file are never appended
// again, and that dedup also drives pagination shutoff.
package downline

import (
	"fmt"
	"strconv"
	"strings"
)

type Downline struct {
	URL              string
	ID               string
	Name             string
	Count            int
	Amount           float64
	RegisterDateTime string
}

func Header() []string {
	return []string{"url", "id", "name", "count", "amount", "register_date_time"}
}

func (d Downline) Record() []string {
	return []string{
		d.URL, d.ID, d.Name,
		strconv.Itoa(d.Count),
		strconv.FormatFloat(d.Amount, 'f', -1, 64),
		d.RegisterDateTime,
	}
}

// key is the identity used for dedup. Amount goes in with two decimal
// places so "5" and "5.00" collapse to the same row.
func (d Downline) key() string {
	return strings.Join([]string{
		d.URL, d.ID, d.Name,
		strconv.Itoa(d.Count),
		fmt.Sprintf("%.2f", d.Amount),
		d.RegisterDateTime,
	}, "\x1f")
}

func parseCount(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func parseAmount(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

// Normalize converts a raw downline record to its canonical row form.
// Missing or malformed fields default to zero values, one bad record
// never fails a page.
func Normalize(raw map[string]any, siteURL string) Downline {
	return Downline{
		URL:              siteURL,
		ID:               asString(raw["id"]),
		Name:             asString(raw["name"]),
		Count:            parseCount(raw["count"]),
		Amount:           parseAmount(raw["amount"]),
		RegisterDateTime: asString(raw["registerDateTime"]),
	}
}
