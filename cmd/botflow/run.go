package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/urbangroup/botflow"
	"github.com/urbangroup/botflow/internal/adapters/file"
	"github.com/urbangroup/botflow/internal/cli"
	"github.com/urbangroup/botflow/pkg/script"
)

// runCmd drives one conversation on the terminal, standing in for the
// messaging transport while authoring scripts.
var runCmd = &cobra.Command{
	Use:   "run <script.json|script.yaml|dir>",
	Short: "Run a script interactively in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		startID, _ := cmd.Flags().GetString("script-id")

		scripts, err := loadScriptsArg(args[0])
		if err != nil {
			return err
		}
		if len(scripts) == 0 {
			return fmt.Errorf("no scripts found in %s", args[0])
		}
		if startID == "" {
			startID = scripts[0].ID
		}

		// The terminal session always runs on a private in-memory app; run
		// never touches the deployed stores.
		return cli.RunInteractive(scripts, startID, botflow.WithLogger(commandLogger(cmd)))
	},
}

func loadScriptsArg(path string) ([]*script.Script, error) {
	if scripts, err := file.LoadDir(path); err == nil {
		return scripts, nil
	}
	sc, err := file.LoadScript(path)
	if err != nil {
		return nil, err
	}
	return []*script.Script{sc}, nil
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("script-id", "", "Script to start with (default: first loaded)")
}
