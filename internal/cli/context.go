package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tmorring/membank/internal/retrieval"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [query]",
		Short: "Assemble relevant memories within a token budget",
		Long:  "Pack the best hybrid-search matches for a query into a token budget, for pasting into a prompt.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runContext,
	}

	cmd.Flags().IntP("budget", "b", 4000, "Token budget")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	budget, _ := cmd.Flags().GetInt("budget")

	s, engine, err := openEngine()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	result, err := engine.Context(cmd.Context(), retrieval.ContextParams{
		Query:  strings.Join(args, " "),
		Budget: budget,
	})
	if err != nil {
		exitErr("context", err)
	}

	b, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(b))
}
