package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tmorring/membank/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories newest-first",
		Run:   runList,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max results (0 for all)")
	cmd.Flags().String("source", "", "Filter by source type")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	source, _ := cmd.Flags().GetString("source")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	var memories []model.Memory
	if source != "" {
		memories, err = s.ListBySourceType(cmd.Context(), source)
		if err == nil && limit > 0 && len(memories) > limit {
			memories = memories[:limit]
		}
	} else {
		memories, err = s.List(cmd.Context(), limit)
	}
	if err != nil {
		exitErr("list", err)
	}

	if len(memories) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(memories, "", "  ")
	fmt.Println(string(b))
}
