package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tmorring/membank/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Update fields of a memory",
		Long:  "Update title, content, metadata, or importance. Only flags that are set change anything; a content or title change re-indexes the memory.",
		Args:  cobra.ExactArgs(1),
		Run:   runUpdate,
	}

	cmd.Flags().String("title", "", "New title")
	cmd.Flags().String("content", "", "New content")
	cmd.Flags().String("metadata", "", "New metadata (JSON object)")
	cmd.Flags().Float64P("importance", "i", 0, "New importance score in [0,1]")

	RootCmd.AddCommand(cmd)
}

func runUpdate(cmd *cobra.Command, args []string) {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		exitErr("update", fmt.Errorf("invalid id %q", args[0]))
	}

	var patch model.Patch
	if cmd.Flags().Changed("title") {
		v, _ := cmd.Flags().GetString("title")
		patch.Title = &v
	}
	if cmd.Flags().Changed("content") {
		v, _ := cmd.Flags().GetString("content")
		patch.Content = &v
	}
	if cmd.Flags().Changed("metadata") {
		raw, _ := cmd.Flags().GetString("metadata")
		var meta map[string]any
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			exitErr("update", fmt.Errorf("invalid metadata JSON: %w", err))
		}
		patch.Metadata = &meta
	}
	if cmd.Flags().Changed("importance") {
		v, _ := cmd.Flags().GetFloat64("importance")
		patch.Importance = &v
	}

	if patch.Empty() {
		exitErr("update", fmt.Errorf("nothing to update (set at least one of --title, --content, --metadata, --importance)"))
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ok, err := s.Update(cmd.Context(), id, patch)
	if err != nil {
		exitErr("update", err)
	}
	if !ok {
		exitErr("update", fmt.Errorf("memory %d not found", id))
	}

	mem, err := s.Get(cmd.Context(), id)
	if err != nil {
		exitErr("update", err)
	}
	b, _ := json.Marshal(mem)
	fmt.Println(string(b))
}
