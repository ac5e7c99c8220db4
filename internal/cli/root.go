// Package cli implements the membank CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tmorring/membank/internal/embedding"
	"github.com/tmorring/membank/internal/retrieval"
	"github.com/tmorring/membank/internal/store"
)

var dbPath string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "membank",
	Short: "Durable memory with hybrid retrieval",
	Long:  "Store short text memories and retrieve them by combined keyword, semantic, recency, and importance ranking. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $MEMBANK_DB or ~/.membank/memory.db)")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("MEMBANK_DB"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".membank", "memory.db")
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(getDBPath())
}

// openEngine builds the store plus a retrieval engine with the embedder
// configured from the environment (nil embedder when disabled).
func openEngine() (*store.SQLiteStore, *retrieval.Engine, error) {
	s, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	embedder, err := embedding.NewFromEnv()
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, retrieval.NewEngine(s, embedder, nil), nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
