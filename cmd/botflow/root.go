package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/urbangroup/botflow/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "botflow",
	Short: "Botflow runs scripted WhatsApp conversations",
	Long: `Botflow executes conversation scripts: guided flows of prompts, button
choices and automated checks, authored in a visual editor and stored in a
canonical JSON format.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("redis", "", "Redis address (host:port); empty runs in-memory")
	rootCmd.PersistentFlags().String("redis-password", "", "Redis password")
	rootCmd.PersistentFlags().Int("redis-db", 0, "Redis database number")
}

func commandLogger(cmd *cobra.Command) *slog.Logger {
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		return logging.New(slog.LevelDebug)
	}
	return logging.New(slog.LevelInfo)
}
