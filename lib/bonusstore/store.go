package bonusstore

import (
	"context"
	"database/sql"
	"time"

	"bonuswatch-backend/lib/bonus"
	"bonuswatch-backend/lib/bonusstore/db"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Schema is the row-store schema, exposed so callers opening their own
// database handle can initialize it.
var Schema = db.Schema

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

const upsertQuery = `
insert into bonuses (
    site_url, merchant_name, bonus_id, name,
    amount, rollover, bonus_fixed,
    min_withdraw, max_withdraw, withdraw_to_bonus_ratio,
    min_topup, max_topup,
    transaction_type, balance, bonus, bonus_random,
    reset, refer_link,
    is_auto_claim, is_vip_only,
    has_loss_requirement, has_topup_requirement,
    loss_req_percent, loss_req_amount, topup_req_amount,
    claim_type,
    raw_claim_config, raw_claim_condition,
    scraped_at
) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
on conflict (site_url, bonus_id) do update set
    merchant_name = excluded.merchant_name,
    name = excluded.name,
    amount = excluded.amount,
    rollover = excluded.rollover,
    bonus_fixed = excluded.bonus_fixed,
    min_withdraw = excluded.min_withdraw,
    max_withdraw = excluded.max_withdraw,
    withdraw_to_bonus_ratio = excluded.withdraw_to_bonus_ratio,
    min_topup = excluded.min_topup,
    max_topup = excluded.max_topup,
    transaction_type = excluded.transaction_type,
    balance = excluded.balance,
    bonus = excluded.bonus,
    bonus_random = excluded.bonus_random,
    reset = excluded.reset,
    refer_link = excluded.refer_link,
    is_auto_claim = excluded.is_auto_claim,
    is_vip_only = excluded.is_vip_only,
    has_loss_requirement = excluded.has_loss_requirement,
    has_topup_requirement = excluded.has_topup_requirement,
    loss_req_percent = excluded.loss_req_percent,
    loss_req_amount = excluded.loss_req_amount,
    topup_req_amount = excluded.topup_req_amount,
    claim_type = excluded.claim_type,
    raw_claim_config = excluded.raw_claim_config,
    raw_claim_condition = excluded.raw_claim_condition,
    scraped_at = excluded.scraped_at
`

func optFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// Upsert merges a batch of bonuses into the store under one
// transaction. Rows are keyed by (site_url, bonus_id); an existing row
// is overwritten with the newer values, so replays of the same scrape
// are harmless.
func (s Store) Upsert(ctx context.Context, bonuses []bonus.Bonus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bonuses {
		_, err = stmt.ExecContext(ctx,
			b.SiteURL, b.MerchantName, b.ID, b.Name,
			b.Amount, b.Rollover, b.BonusFixed,
			b.MinWithdraw, b.MaxWithdraw, optFloat(b.WithdrawToBonusRatio),
			b.MinTopup, b.MaxTopup,
			b.TransactionType, b.Balance, b.Bonus, b.BonusRandom,
			b.Reset, b.ReferLink,
			b.IsAutoClaim, b.IsVipOnly,
			b.HasLossRequirement, b.HasTopupRequirement,
			optFloat(b.LossReqPercent), optFloat(b.LossReqAmount), optFloat(b.TopupReqAmount),
			b.ClaimType,
			b.RawClaimConfig, b.RawClaimCondition,
			b.ScrapedAt.Unix(),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

const bySiteQuery = `
select
    site_url, merchant_name, bonus_id, name,
    amount, rollover, bonus_fixed,
    min_withdraw, max_withdraw, withdraw_to_bonus_ratio,
    min_topup, max_topup,
    transaction_type, balance, bonus, bonus_random,
    reset, refer_link,
    is_auto_claim, is_vip_only,
    has_loss_requirement, has_topup_requirement,
    loss_req_percent, loss_req_amount, topup_req_amount,
    claim_type,
    raw_claim_config, raw_claim_condition,
    scraped_at
from bonuses
where site_url = ?
order by bonus_id
`

func (s Store) BySite(ctx context.Context, siteURL string) ([]bonus.Bonus, error) {
	rows, err := s.db.QueryContext(ctx, bySiteQuery, siteURL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bonus.Bonus
	for rows.Next() {
		var b bonus.Bonus
		var ratio, lossPercent, lossAmount, topupAmount sql.NullFloat64
		var scrapedAt int64
		err = rows.Scan(
			&b.SiteURL, &b.MerchantName, &b.ID, &b.Name,
			&b.Amount, &b.Rollover, &b.BonusFixed,
			&b.MinWithdraw, &b.MaxWithdraw, &ratio,
			&b.MinTopup, &b.MaxTopup,
			&b.TransactionType, &b.Balance, &b.Bonus, &b.BonusRandom,
			&b.Reset, &b.ReferLink,
			&b.IsAutoClaim, &b.IsVipOnly,
			&b.HasLossRequirement, &b.HasTopupRequirement,
			&lossPercent, &lossAmount, &topupAmount,
			&b.ClaimType,
			&b.RawClaimConfig, &b.RawClaimCondition,
			&scrapedAt,
		)
		if err != nil {
			return nil, err
		}
		if ratio.Valid {
			b.WithdrawToBonusRatio = &ratio.Float64
		}
		if lossPercent.Valid {
			b.LossReqPercent = &lossPercent.Float64
		}
		if lossAmount.Valid {
			b.LossReqAmount = &lossAmount.Float64
		}
		if topupAmount.Valid {
			b.TopupReqAmount = &topupAmount.Float64
		}
		b.ScrapedAt = time.Unix(scrapedAt, 0).UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}
