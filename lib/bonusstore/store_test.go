package bonusstore

import (
	"context"
	"testing"
	"time"

	"bonuswatch-backend/lib/bonus"
	"bonuswatch-backend/lib/bonusstore/db"
	"bonuswatch-backend/lib/testutil"

	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	service, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "bonusstore",
		DbSchema: db.Schema,
	})
	defer cleanup()

	store := NewStore(service.DB)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	{
		res, err := store.BySite(ctx, "https://unknown.example")
		require.NoError(t, err)
		require.Len(t, res, 0)
	}

	ratio := 2.5
	first := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	err := store.Upsert(ctx, []bonus.Bonus{
		{
			SiteURL: "https://a.example", MerchantName: "Alpha",
			ID: "1", Name: "Welcome Bonus",
			Amount: 50, BonusFixed: 20, MinWithdraw: 50,
			WithdrawToBonusRatio: &ratio,
			ClaimType:            "DEPOSIT",
			ScrapedAt:            first,
		},
		{
			SiteURL: "https://a.example", MerchantName: "Alpha",
			ID: "2", Name: "Weekly Rescue",
			ClaimType: "RESCUE",
			ScrapedAt: first,
		},
		{
			SiteURL: "https://b.example", MerchantName: "Beta",
			ID: "1", Name: "Rebate",
			ScrapedAt: first,
		},
	})
	require.NoError(t, err)

	// replaying the same bonus with newer values must overwrite, not
	// duplicate
	second := first.Add(time.Hour)
	err = store.Upsert(ctx, []bonus.Bonus{
		{
			SiteURL: "https://a.example", MerchantName: "Alpha",
			ID: "1", Name: "Welcome Bonus v2",
			Amount: 80, ClaimType: "DEPOSIT",
			ScrapedAt: second,
		},
	})
	require.NoError(t, err)

	res, err := store.BySite(ctx, "https://a.example")
	require.NoError(t, err)
	require.Len(t, res, 2)

	require.Equal(t, "1", res[0].ID)
	require.Equal(t, "Welcome Bonus v2", res[0].Name)
	require.Equal(t, float64(80), res[0].Amount)
	require.Nil(t, res[0].WithdrawToBonusRatio)
	require.Equal(t, second, res[0].ScrapedAt)

	require.Equal(t, "2", res[1].ID)
	require.Equal(t, "Weekly Rescue", res[1].Name)

	other, err := store.BySite(ctx, "https://b.example")
	require.NoError(t, err)
	require.Len(t, other, 1)
}
