package bonus

import (
	"strconv"
	"time"
)

// Bonus is the canonical, persisted form of a promotional record. It is
// produced once by Normalize and immutable afterwards; the row store
// merges it by (SiteURL, ID).
type Bonus struct {
	SiteURL      string
	MerchantName string
	ID           string
	Name         string

	Amount      float64
	Rollover    float64
	BonusFixed  float64
	MinWithdraw float64
	MaxWithdraw float64
	// unset when BonusFixed is zero
	WithdrawToBonusRatio *float64
	MinTopup             float64
	MaxTopup             float64

	TransactionType string
	Balance         string
	Bonus           string
	BonusRandom     string
	Reset           string
	ReferLink       string

	// derived from the claim-configuration tag list
	IsAutoClaim         bool
	IsVipOnly           bool
	HasLossRequirement  bool
	HasTopupRequirement bool
	LossReqPercent      *float64
	LossReqAmount       *float64
	TopupReqAmount      *float64
	ClaimType           string

	// source text kept for auditing
	RawClaimConfig    string
	RawClaimCondition string

	ScrapedAt time.Time
}

// Header is the canonical field list, it defines both the CSV column
// order and the row-store column set.
func Header() []string {
	return []string{
		"site_url", "merchant_name", "bonus_id", "name",
		"amount", "rollover", "bonus_fixed",
		"min_withdraw", "max_withdraw", "withdraw_to_bonus_ratio",
		"min_topup", "max_topup",
		"transaction_type", "balance", "bonus", "bonus_random",
		"reset", "refer_link",
		"is_auto_claim", "is_vip_only",
		"has_loss_requirement", "has_topup_requirement",
		"loss_req_percent", "loss_req_amount", "topup_req_amount",
		"claim_type",
		"raw_claim_config", "raw_claim_condition",
		"scraped_at",
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatOptFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

// Record serializes the bonus in Header order. Unset optional numerics
// render as empty cells.
func (b Bonus) Record() []string {
	return []string{
		b.SiteURL, b.MerchantName, b.ID, b.Name,
		formatFloat(b.Amount), formatFloat(b.Rollover), formatFloat(b.BonusFixed),
		formatFloat(b.MinWithdraw), formatFloat(b.MaxWithdraw), formatOptFloat(b.WithdrawToBonusRatio),
		formatFloat(b.MinTopup), formatFloat(b.MaxTopup),
		b.TransactionType, b.Balance, b.Bonus, b.BonusRandom,
		b.Reset, b.ReferLink,
		strconv.FormatBool(b.IsAutoClaim), strconv.FormatBool(b.IsVipOnly),
		strconv.FormatBool(b.HasLossRequirement), strconv.FormatBool(b.HasTopupRequirement),
		formatOptFloat(b.LossReqPercent), formatOptFloat(b.LossReqAmount), formatOptFloat(b.TopupReqAmount),
		b.ClaimType,
		b.RawClaimConfig, b.RawClaimCondition,
		b.ScrapedAt.UTC().Format(time.RFC3339),
	}
}
