package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/urbangroup/botflow"
	"github.com/urbangroup/botflow/pkg/script"
)

// defaultScript is the built-in troubleshooting flow, useful as a demo and
// as the starting point for new deployments.
func defaultScript() *script.Script {
	return &script.Script{
		ID:              "M10010",
		Name:            "Maintenance troubleshooting",
		GreetingKnown:   "Hello {customer_name}! This is the maintenance assistant.",
		GreetingUnknown: "Hello! This is the maintenance assistant.",
		FirstStep:       "GREETING",
		Active:          true,
		Steps: script.Steps{
			&script.ChoiceStep{ID: "GREETING", Text: "What would you like to do?", Buttons: []script.Button{
				{ID: "intent_fault", Title: "Report a fault", NextStep: "ASK_DEVICE",
					SkipIf: &script.SkipCondition{Field: "device_number", Mode: script.SkipNotEmpty, Goto: "LOOKUP_DEVICE"}},
				{ID: "intent_message", Title: "Leave a message", NextStep: "GET_MESSAGE"},
			}},
			&script.PromptStep{ID: "ASK_DEVICE", Text: "Which device is affected? Send the device number.",
				SaveTo: "device_number", NextStep: "LOOKUP_DEVICE"},
			&script.CheckStep{ID: "LOOKUP_DEVICE", ActionType: "equipment_lookup", Field: "device_number",
				Description: "One moment, looking up the device...",
				OnSuccess:   "DESCRIBE_FAULT", OnFailure: "ASK_DEVICE"},
			&script.PromptStep{ID: "DESCRIBE_FAULT", Text: "Please describe the fault.",
				SaveTo: "fault_description", NextStep: "DONE_FAULT"},
			&script.PromptStep{ID: "GET_MESSAGE", Text: "Send your message and we will pass it on.",
				SaveTo: "customer_message", NextStep: "DONE_MESSAGE"},
		},
		DoneActions: map[string]script.DoneAction{
			"DONE_FAULT":   {Text: "Thank you! A technician will contact you.", Action: script.ActionSaveServiceCall},
			"DONE_MESSAGE": {Text: "Thank you! Your message has been saved.", Action: script.ActionSaveMessage},
		},
	}
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Store the built-in demo script",
	Long:  `Writes the built-in troubleshooting script to the configured store, or to stdout with --stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		toStdout, _ := cmd.Flags().GetBool("stdout")
		sc := defaultScript()

		if toStdout {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(sc)
		}

		redisAddr, _ := cmd.Flags().GetString("redis")
		if redisAddr == "" {
			return fmt.Errorf("seed needs --redis (or use --stdout to print the script)")
		}
		redisPassword, _ := cmd.Flags().GetString("redis-password")
		redisDB, _ := cmd.Flags().GetInt("redis-db")

		app, err := botflow.New(
			botflow.WithRedis(redisAddr, redisPassword, redisDB),
			botflow.WithLogger(commandLogger(cmd)),
		)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Scripts.Put(cmd.Context(), sc); err != nil {
			return err
		}
		fmt.Printf("seeded script %s\n", sc.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().Bool("stdout", false, "Print the script as JSON instead of storing it")
}
