package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Regenerate every memory's embedding",
		Long:  "Re-embed all memories with the current model, replacing existing vectors. Run after changing the embedding model.",
		Run:   runRebuild,
	}

	cmd.Flags().Int("batch", 10, "Memories per embedding batch")

	RootCmd.AddCommand(cmd)
}

func runRebuild(cmd *cobra.Command, args []string) {
	batch, _ := cmd.Flags().GetInt("batch")

	s, engine, err := openEngine()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	n, err := engine.RebuildEmbeddings(cmd.Context(), batch)
	if err != nil {
		exitErr("rebuild", err)
	}

	fmt.Printf(`{"ok":true,"rebuilt":%d}`+"\n", n)
}
