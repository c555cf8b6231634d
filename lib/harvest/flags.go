package harvest

import (
	"bonuswatch-backend/lib/bonus"
	"bonuswatch-backend/lib/textutil"
)

var (
	commissionKeywords = []string{"commission", "affiliate"}
	downlineKeywords   = []string{"downline first deposit"}
	shareKeywords      = []string{"share bonus", "referrer"}
)

// Flags summarizes the bonus categories seen at a site, shown next to
// its progress line. The first four classify by name/claim-config
// keywords, the rest mirror the derived claim flags.
type Flags struct {
	Commission      bool
	DownlineDeposit bool
	Share           bool
	Other           bool

	AutoClaim bool
	VipOnly   bool
	Loss      bool
	Topup     bool
}

func matchesAny(haystacks []string, keywords []string) bool {
	for _, h := range haystacks {
		if textutil.MatchName(h, keywords) {
			return true
		}
	}
	return false
}

// Observe folds one bonus into the flag set.
func (f *Flags) Observe(b bonus.Bonus) {
	texts := []string{b.Name, b.RawClaimConfig}
	matched := false
	if matchesAny(texts, commissionKeywords) {
		f.Commission = true
		matched = true
	}
	if matchesAny(texts, downlineKeywords) {
		f.DownlineDeposit = true
		matched = true
	}
	if matchesAny(texts, shareKeywords) {
		f.Share = true
		matched = true
	}
	if !matched {
		f.Other = true
	}

	f.AutoClaim = f.AutoClaim || b.IsAutoClaim
	f.VipOnly = f.VipOnly || b.IsVipOnly
	f.Loss = f.Loss || b.HasLossRequirement
	f.Topup = f.Topup || b.HasTopupRequirement
}

func yn(set bool, letter string) string {
	if set {
		return letter
	}
	return "-"
}

func (f Flags) String() string {
	return yn(f.Commission, "C") + yn(f.DownlineDeposit, "D") +
		yn(f.Share, "S") + yn(f.Other, "O") + " " +
		yn(f.AutoClaim, "A") + yn(f.VipOnly, "V") +
		yn(f.Loss, "L") + yn(f.Topup, "T")
}
