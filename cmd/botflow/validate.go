package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/urbangroup/botflow/pkg/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate <script.json|script.yaml|dir>",
	Short: "Check scripts for broken transitions and option limits",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		strict, _ := cmd.Flags().GetBool("strict")

		scripts, err := loadScriptsArg(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		failed := false
		for _, sc := range scripts {
			r := validate.Check(sc)
			for _, iss := range r.Errors {
				fmt.Printf("%s: error: %s\n", sc.ID, iss)
				failed = true
			}
			for _, iss := range r.Warnings {
				fmt.Printf("%s: warning: %s\n", sc.ID, iss)
				if strict {
					failed = true
				}
			}
			if r.OK() && len(r.Warnings) == 0 {
				fmt.Printf("%s: ok\n", sc.ID)
			}
		}
		if failed {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("strict", false, "Treat warnings as errors")
}
