package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tmorring/membank/internal/consolidate"
)

func init() {
	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Extract insights from session logs into memory",
		Long:  "Parse session logs, extract durable insights via the configured chat model, and store them as consolidated memories.",
		Run:   runConsolidate,
	}

	cmd.Flags().String("session", "", "Path to a single session log file")
	cmd.Flags().String("dir", "", "Consolidate every session_*.txt in a directory")

	RootCmd.AddCommand(cmd)
}

func runConsolidate(cmd *cobra.Command, args []string) {
	session, _ := cmd.Flags().GetString("session")
	dir, _ := cmd.Flags().GetString("dir")

	if session == "" && dir == "" {
		exitErr("consolidate", fmt.Errorf("specify --session FILE or --dir DIR"))
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		exitErr("consolidate", fmt.Errorf("OPENAI_API_KEY is required"))
	}

	s, engine, err := openEngine()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	extractor := consolidate.NewOpenAIExtractor(
		os.Getenv("MEMBANK_CHAT_URL"),
		apiKey,
		os.Getenv("MEMBANK_CHAT_MODEL"),
	)
	c := consolidate.New(engine, extractor, nil)

	var n int
	if session != "" {
		n, err = c.ConsolidateSession(cmd.Context(), session)
	} else {
		n, err = c.ConsolidateDir(cmd.Context(), dir)
	}
	if err != nil {
		exitErr("consolidate", err)
	}

	fmt.Printf(`{"ok":true,"insights":%d}`+"\n", n)
}
