package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tmorring/membank/internal/model"
	"github.com/tmorring/membank/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Store a memory",
		Long:  "Store a memory and embed it for semantic search. Content can be a positional arg or piped via stdin.",
		Run:   runAdd,
	}

	cmd.Flags().StringP("type", "t", "note", "Memory type: note, conversation, insight, fact")
	cmd.Flags().String("title", "", "Optional title")
	cmd.Flags().String("tags", "", "Comma-separated tags (stored under metadata.tags)")
	cmd.Flags().Float64P("importance", "i", model.DefaultImportance, "Importance score in [0,1]")
	cmd.Flags().String("source", "manual", "Source type: manual, voice, session, consolidated, migrated")
	cmd.Flags().String("source-id", "", "Free-text provenance reference")
	cmd.Flags().Bool("no-embed", false, "Store without generating an embedding")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	memoryType, _ := cmd.Flags().GetString("type")
	title, _ := cmd.Flags().GetString("title")
	tagsStr, _ := cmd.Flags().GetString("tags")
	importance, _ := cmd.Flags().GetFloat64("importance")
	sourceType, _ := cmd.Flags().GetString("source")
	sourceID, _ := cmd.Flags().GetString("source-id")
	noEmbed, _ := cmd.Flags().GetBool("no-embed")

	if !model.ValidMemoryTypes[memoryType] {
		exitErr("add", fmt.Errorf("invalid memory type %q", memoryType))
	}
	if !model.ValidSourceTypes[sourceType] {
		exitErr("add", fmt.Errorf("invalid source type %q", sourceType))
	}

	// Content: positional arg first, then stdin.
	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}
	if strings.TrimSpace(content) == "" {
		exitErr("add", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	var metadata map[string]any
	if tagsStr != "" {
		var tags []string
		for _, t := range strings.Split(tagsStr, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		if len(tags) > 0 {
			metadata = map[string]any{"tags": tags}
		}
	}

	s, engine, err := openEngine()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	p := store.AddParams{
		Content:    strings.TrimSpace(content),
		MemoryType: memoryType,
		Title:      title,
		Metadata:   metadata,
		SourceType: sourceType,
		SourceID:   sourceID,
		Importance: &importance,
	}

	var id int64
	if noEmbed {
		id, err = s.Add(cmd.Context(), p)
	} else {
		id, err = engine.AddWithEmbedding(cmd.Context(), p)
	}
	if err != nil {
		exitErr("add", err)
	}

	mem, err := s.Get(cmd.Context(), id)
	if err != nil {
		exitErr("add", err)
	}
	b, _ := json.Marshal(mem)
	fmt.Println(string(b))
}
