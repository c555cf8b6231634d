package bonus

import (
	"strconv"
	"strings"
	"time"
)

// RawRecord is the schema-less shape bonus records arrive in from the
// sync endpoint. It is never trusted and never travels past Normalize.
type RawRecord = map[string]any

// parseFloat coerces whatever the remote API put in a numeric field into
// a float64. Sites have been observed returning numbers, numeric
// strings, empty strings, nulls and even {value: ...} / {min: ...}
// wrapper objects; anything unparseable becomes 0.
func parseFloat(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	case map[string]any:
		for _, key := range []string{"value", "min"} {
			if inner, ok := t[key]; ok {
				return parseFloat(inner)
			}
		}
	}
	return 0
}

func parseString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// Normalize maps a raw record into a Bonus. It is total: every input,
// however malformed, produces a Bonus with defaulted fields.
func Normalize(raw RawRecord, siteURL, merchantName string) Bonus {
	b := Bonus{
		SiteURL:      siteURL,
		MerchantName: merchantName,
		ID:           parseString(raw["id"]),
		Name:         parseString(raw["name"]),

		Amount:      parseFloat(raw["amount"]),
		Rollover:    parseFloat(raw["rollover"]),
		BonusFixed:  parseFloat(raw["bonusFixed"]),
		MinWithdraw: parseFloat(raw["minWithdraw"]),
		MaxWithdraw: parseFloat(raw["maxWithdraw"]),
		MinTopup:    parseFloat(raw["minTopup"]),
		MaxTopup:    parseFloat(raw["maxTopup"]),

		TransactionType: parseString(raw["transactionType"]),
		Balance:         parseString(raw["balance"]),
		Bonus:           parseString(raw["bonus"]),
		BonusRandom:     parseString(raw["bonusRandom"]),
		Reset:           parseString(raw["reset"]),
		ReferLink:       parseString(raw["referLink"]),

		RawClaimConfig:    parseString(raw["claimConfig"]),
		RawClaimCondition: parseString(raw["claimCondition"]),

		ScrapedAt: time.Now(),
	}

	if b.BonusFixed != 0 {
		ratio := b.MinWithdraw / b.BonusFixed
		b.WithdrawToBonusRatio = &ratio
	}

	decodeClaimConfig(&b)
	return b
}
