package bonus

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// decodeClaimConfig derives the categorical claim fields from the raw
// claimConfig value, a JSON-encoded array of uppercase tag strings such
// as ["AUTO_CLAIM","LOSS_10%","TOPUP_50"].
//
// The matching semantics are deliberately those the upstream sites
// established: substring containment, case-insensitive, tags scanned
// independently, and last match wins for the claim type. Downstream
// consumers depend on these exact semantics. Decoding problems never
// fail the record, they just leave the derived fields at their defaults.
func decodeClaimConfig(b *Bonus) {
	raw := b.RawClaimConfig
	if !strings.HasPrefix(raw, "[") {
		return
	}

	var tags []any
	err := json.Unmarshal([]byte(raw), &tags)
	if err != nil {
		slog.Debug("claim config is not a valid tag list", "bonus_id", b.ID, "err", err)
		return
	}

	for _, entry := range tags {
		tag, ok := entry.(string)
		if !ok {
			continue
		}
		upper := strings.ToUpper(tag)

		if strings.Contains(upper, "AUTO_CLAIM") {
			b.IsAutoClaim = true
		}
		if strings.Contains(upper, "VIP") {
			b.IsVipOnly = true
		}
		if strings.Contains(upper, "DEPOSIT") {
			b.ClaimType = "DEPOSIT"
		}
		if strings.Contains(upper, "RESCUE") {
			b.ClaimType = "RESCUE"
		}
		if strings.Contains(upper, "REBATE") {
			b.ClaimType = "REBATE"
		}

		if strings.Contains(upper, "LOSS") {
			b.HasLossRequirement = true
			parts := strings.Split(tag, "_")
			if len(parts) > 1 {
				last := parts[len(parts)-1]
				if strings.Contains(last, "%") {
					v := parseFloat(strings.ReplaceAll(last, "%", ""))
					b.LossReqPercent = &v
				} else {
					v := parseFloat(last)
					b.LossReqAmount = &v
				}
			}
		}

		if strings.Contains(upper, "TOPUP") {
			b.HasTopupRequirement = true
			parts := strings.Split(tag, "_")
			if len(parts) > 1 {
				v := parseFloat(parts[len(parts)-1])
				b.TopupReqAmount = &v
			}
		}
	}
}
