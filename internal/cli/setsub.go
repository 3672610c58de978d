package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sdmedia/clubbot/internal/domain"
	"github.com/sdmedia/clubbot/internal/subscription"
)

func init() {
	cmd := &cobra.Command{
		Use:   "set-sub <id> <YYYY-MM-DD>",
		Short: "Set an exact subscription end-date for a member",
		Args:  cobra.ExactArgs(2),
		Run:   runSetSub,
	}

	RootCmd.AddCommand(cmd)
}

func runSetSub(cmd *cobra.Command, args []string) {
	memberID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || memberID <= 0 {
		exitErr("parse member id", fmt.Errorf("%q is not a valid member id", args[0]))
	}

	end, err := subscription.ParseEndDate(args[1])
	if err != nil {
		exitErr("parse end date", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	record, err := s.UpdateMember(cmd.Context(), memberID, domain.MemberPatch{SubscriptionEnd: &end})
	if err != nil {
		exitErr("update member", err)
	}

	fmt.Printf("subscription for %d set until %s\n", record.MemberID, subscription.FormatDate(*record.SubscriptionEnd))
}
