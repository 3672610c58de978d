// Package cli implements the clubctl maintenance commands. They operate
// directly on the member database, bypassing the transport entirely.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sdmedia/clubbot/internal/store"
)

var dbPath string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "clubctl",
	Short: "Maintenance CLI for the club membership database",
	Long:  "Inspect and correct member records directly against the SQLite database used by the server.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $DB_PATH or ./data/club.db)")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("DB_PATH"); env != "" {
		return env
	}
	return "./data/club.db"
}

func openStore() (store.Repository, error) {
	return store.NewSQLite(getDBPath())
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
