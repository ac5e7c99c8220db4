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
		Use:   "search [query]",
		Short: "Hybrid search over memories",
		Long:  "Rank memories by combined keyword relevance, semantic similarity, recency, and importance.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	defaults := retrieval.DefaultWeights()
	cmd.Flags().IntP("top", "k", 10, "Max results")
	cmd.Flags().Float64("w-keyword", defaults.Keyword, "Keyword score weight")
	cmd.Flags().Float64("w-semantic", defaults.Semantic, "Semantic score weight")
	cmd.Flags().Float64("w-recency", defaults.Recency, "Recency score weight")
	cmd.Flags().Float64("w-importance", defaults.Importance, "Importance score weight")
	cmd.Flags().Bool("track", false, "Record access on every returned memory")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	topK, _ := cmd.Flags().GetInt("top")
	track, _ := cmd.Flags().GetBool("track")
	query := strings.Join(args, " ")

	weights := retrieval.Weights{}
	weights.Keyword, _ = cmd.Flags().GetFloat64("w-keyword")
	weights.Semantic, _ = cmd.Flags().GetFloat64("w-semantic")
	weights.Recency, _ = cmd.Flags().GetFloat64("w-recency")
	weights.Importance, _ = cmd.Flags().GetFloat64("w-importance")

	s, engine, err := openEngine()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	results, err := engine.HybridSearch(cmd.Context(), query, topK, &weights)
	if err != nil {
		exitErr("search", err)
	}

	if track {
		ids := make([]int64, len(results))
		for i, m := range results {
			ids[i] = m.ID
		}
		if err := engine.RecordAccess(cmd.Context(), ids); err != nil {
			exitErr("track access", err)
		}
	}

	if len(results) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(b))
}
