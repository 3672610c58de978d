package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdmedia/clubbot/internal/subscription"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show member and subscription counts",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	records, err := s.Snapshot(cmd.Context())
	if err != nil {
		exitErr("snapshot", err)
	}

	fmt.Printf("total members: %d\n", len(records))
	fmt.Printf("active subscriptions: %d\n", subscription.CountActive(records, subscription.Today()))
}
