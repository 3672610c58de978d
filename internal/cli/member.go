package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sdmedia/clubbot/internal/subscription"
)

func init() {
	cmd := &cobra.Command{
		Use:   "member <id>",
		Short: "Show one member record",
		Args:  cobra.ExactArgs(1),
		Run:   runMember,
	}

	RootCmd.AddCommand(cmd)
}

func runMember(cmd *cobra.Command, args []string) {
	memberID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || memberID <= 0 {
		exitErr("parse member id", fmt.Errorf("%q is not a valid member id", args[0]))
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	record, err := s.GetMember(cmd.Context(), memberID)
	if err != nil {
		exitErr("get member", err)
	}

	end := "never granted"
	if record.SubscriptionEnd != nil {
		end = subscription.FormatDate(*record.SubscriptionEnd)
	}
	intent := string(record.PendingIntent)
	if intent == "" {
		intent = "none"
	}

	fmt.Printf("member:           %d\n", record.MemberID)
	if record.Username != "" {
		fmt.Printf("username:         @%s\n", record.Username)
	}
	fmt.Printf("subscription end: %s\n", end)
	fmt.Printf("active:           %t\n", subscription.MemberActive(&record, subscription.Today()))
	fmt.Printf("pending intent:   %s\n", intent)
}
