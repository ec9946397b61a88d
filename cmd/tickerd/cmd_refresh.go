package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/tickerd/internal/generate"
	"github.com/user/tickerd/internal/refresh"
	"github.com/user/tickerd/internal/types"
)

func init() {
	rootCmd.AddCommand(refreshCmd)
	refreshCmd.Flags().String("user", "", "also run generators for this user")
	refreshCmd.Flags().String("signals", "", "JSON file with generator inputs (campaigns, content, system)")
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run a refresh cycle synchronously",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		userID, _ := cmd.Flags().GetString("user")
		signalsPath, _ := cmd.Flags().GetString("signals")

		var signals refresh.SignalFunc
		if signalsPath != "" {
			data, err := os.ReadFile(signalsPath)
			if err != nil {
				return fmt.Errorf("read signals file: %w", err)
			}
			var in generate.Inputs
			if err := json.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("parse signals file: %w", err)
			}
			signals = func(ctx context.Context, userID types.UserID) (generate.Inputs, error) {
				return in, nil
			}
		}

		svc, st, err := buildService(cfg, signals)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := context.Background()
		report, err := svc.RefreshNow(ctx)
		if err != nil {
			return fmt.Errorf("refresh: %w", err)
		}
		printTally("general", report.General)
		fmt.Printf("Cleaned up %d expired items.\n", report.CleanedUp)

		if userID != "" {
			userReport, err := svc.RefreshUser(ctx, types.UserID(userID))
			if err != nil {
				return fmt.Errorf("refresh user %s: %w", userID, err)
			}
			printTally("insights", userReport.Insights)
			printTally("performance", userReport.Performance)
		}
		return nil
	},
}

func printTally(label string, t types.RefreshTally) {
	fmt.Printf("%s: %d succeeded, %d failed\n", label, t.Succeeded, t.Failed)
}
