package bonuscsv

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bonuswatch-backend/lib/bonus"

	"github.com/stretchr/testify/require"
)

func TestAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "bonuses.csv")
	scrapedAt := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	err := Append(path, []bonus.Bonus{
		{SiteURL: "https://a.example", ID: "1", Name: "Welcome", Amount: 50, ScrapedAt: scrapedAt},
		{SiteURL: "https://a.example", ID: "2", Name: "Rescue", ScrapedAt: scrapedAt},
	})
	require.NoError(t, err)

	// a second append must not repeat the header
	err = Append(path, []bonus.Bonus{
		{SiteURL: "https://b.example", ID: "1", Name: "Rebate", ScrapedAt: scrapedAt},
	})
	require.NoError(t, err)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, bonus.Header(), rows[0])
	require.Equal(t, "Welcome", rows[1][3])
	require.Equal(t, "https://b.example", rows[3][0])
	require.Equal(t, "2026-08-30T10:00:00Z", rows[1][len(rows[1])-1])
}
