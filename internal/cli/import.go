package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tmorring/membank/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import memories from structured notes or JSON",
		Long:  "Import structured note text (records separated by ---, with optional Date: and Tags: lines), or with --json the format produced by export. Reads the file argument or stdin.",
		Run:   runImport,
	}

	cmd.Flags().Bool("json", false, "Input is JSON produced by export")

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	asJSON, _ := cmd.Flags().GetBool("json")

	var data []byte
	var err error
	if len(args) > 0 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read input", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if asJSON {
		var memories []model.Memory
		if err := json.Unmarshal(data, &memories); err != nil {
			exitErr("parse json", err)
		}
		imported, err := s.ImportJSON(cmd.Context(), memories)
		if err != nil {
			exitErr("import", err)
		}
		fmt.Printf(`{"ok":true,"imported":%d}`+"\n", imported)
		return
	}

	res, err := s.ImportNotes(cmd.Context(), string(data))
	if err != nil {
		exitErr("import", err)
	}
	b, _ := json.Marshal(res)
	fmt.Println(string(b))
}
