package commands

import (
	"os"

	"bonuswatch-backend/lib/bonus"
	"bonuswatch-backend/lib/configutil"
	"bonuswatch-backend/lib/scrapers/merchant"
	"bonuswatch-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check <site url>",
	Short: "Logs into a single site and prints what a harvest would find there.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[Config]("config.json5")
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		if cfg.Username == "" || cfg.Password == "" {
			serviceutil.Fatal("username and password must be set in config", nil)
		}

		client := merchant.NewClient(merchant.ClientOptions{})
		siteURL, err := merchant.CleanBaseURL(args[0])
		if err != nil {
			serviceutil.Fatal("invalid site url", err)
		}

		session, err := client.Authenticate(cmd.Context(), siteURL, merchant.Credential{
			Username: cfg.Username,
			Password: cfg.Password,
		})
		if err != nil {
			serviceutil.Fatal("authentication failed", err)
		}

		records, err := client.SyncBonuses(cmd.Context(), session)
		if err != nil {
			serviceutil.Fatal("bonus fetch failed", err)
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Name", "Amount", "Claim Type", "Auto", "VIP"})
		for _, raw := range records {
			b := bonus.Normalize(raw, siteURL, session.MerchantName)
			t.AppendRow(table.Row{b.ID, b.Name, b.Amount, b.ClaimType, b.IsAutoClaim, b.IsVipOnly})
		}
		t.Render()
	},
}
