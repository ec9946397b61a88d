package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/tickerd/internal/types"
)

func init() {
	rootCmd.AddCommand(sourceCmd)
	sourceCmd.AddCommand(sourceAddCmd, sourceListCmd, sourceEnableCmd, sourceDisableCmd)

	sourceAddCmd.Flags().String("name", "", "source name, matches a registered adapter unless --adapter is set (required)")
	sourceAddCmd.Flags().String("category", "general", "feed category")
	sourceAddCmd.Flags().String("type", "api", "source type (api, feed, webhook, internal)")
	sourceAddCmd.Flags().String("endpoint", "", "upstream URL")
	sourceAddCmd.Flags().String("adapter", "", "adapter to use when it differs from the source name")
	sourceAddCmd.Flags().Int("interval", 15, "refresh interval in minutes")
	sourceAddCmd.Flags().String("config", "", "fetch config as JSON (item_limit, min_score, keywords)")
	_ = sourceAddCmd.MarkFlagRequired("name")
}

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage ingestion sources",
}

var sourceAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		name, _ := cmd.Flags().GetString("name")
		category, _ := cmd.Flags().GetString("category")
		srcType, _ := cmd.Flags().GetString("type")
		endpoint, _ := cmd.Flags().GetString("endpoint")
		adapter, _ := cmd.Flags().GetString("adapter")
		interval, _ := cmd.Flags().GetInt("interval")
		rawConfig, _ := cmd.Flags().GetString("config")

		var fetchConfig map[string]any
		if rawConfig != "" {
			if err := json.Unmarshal([]byte(rawConfig), &fetchConfig); err != nil {
				return fmt.Errorf("parse --config: %w", err)
			}
		}
		if adapter != "" {
			if fetchConfig == nil {
				fetchConfig = make(map[string]any)
			}
			fetchConfig["adapter"] = adapter
		}

		svc, st, err := buildService(cfg, nil)
		if err != nil {
			return err
		}
		defer st.Close()

		src, err := svc.CreateSource(context.Background(), &types.Source{
			Category:       types.Category(category),
			Name:           name,
			Type:           types.SourceType(srcType),
			Endpoint:       endpoint,
			Config:         fetchConfig,
			RefreshMinutes: interval,
			Enabled:        true,
		})
		if err != nil {
			return fmt.Errorf("add source: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Source %q added (%s).\n", name, src.ID)
		return nil
	},
}

var sourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		svc, st, err := buildService(cfg, nil)
		if err != nil {
			return err
		}
		defer st.Close()

		sources, err := svc.ListSources(context.Background())
		if err != nil {
			return fmt.Errorf("list sources: %w", err)
		}
		if len(sources) == 0 {
			fmt.Println("No sources configured.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tENABLED\tFETCHES\tERRORS\tLAST ERROR")
		for _, s := range sources {
			lastError := s.LastError
			if len(lastError) > 40 {
				lastError = lastError[:40] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%d\t%d\t%s\n",
				s.ID,
				s.Name,
				s.Category,
				s.Enabled,
				s.FetchCount,
				s.ErrorCount,
				lastError,
			)
		}
		return w.Flush()
	},
}

var sourceEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSourceEnabled(args[0], true)
	},
}

var sourceDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSourceEnabled(args[0], false)
	},
}

func setSourceEnabled(id string, enabled bool) error {
	cfg := loadConfig()
	setupLogging(cfg)

	svc, st, err := buildService(cfg, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := svc.SetSourceEnabled(context.Background(), types.SourceID(id), enabled); err != nil {
		return err
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Fprintf(os.Stdout, "Source %s %s.\n", id, state)
	return nil
}
