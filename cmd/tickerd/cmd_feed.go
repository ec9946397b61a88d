package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/tickerd/internal/types"
)

func init() {
	rootCmd.AddCommand(feedCmd)
	feedCmd.Flags().String("user", "default", "user whose preferences and scores apply")
	feedCmd.Flags().String("categories", "", "comma-separated category filter")
	feedCmd.Flags().Int("limit", 20, "maximum number of items")
	feedCmd.Flags().String("sort", "relevance", "sort order (relevance, created_at, priority)")
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Print the current feed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		userID, _ := cmd.Flags().GetString("user")
		rawCategories, _ := cmd.Flags().GetString("categories")
		limit, _ := cmd.Flags().GetInt("limit")
		sortBy, _ := cmd.Flags().GetString("sort")

		filter := types.FeedFilter{
			Limit:  limit,
			SortBy: types.SortOrder(sortBy),
		}
		if rawCategories != "" {
			for _, c := range strings.Split(rawCategories, ",") {
				filter.Categories = append(filter.Categories, types.Category(strings.TrimSpace(c)))
			}
		}

		svc, st, err := buildService(cfg, nil)
		if err != nil {
			return err
		}
		defer st.Close()

		page, err := svc.GetFeed(context.Background(), filter, types.UserID(userID))
		if err != nil {
			return fmt.Errorf("get feed: %w", err)
		}
		if len(page.Items) == 0 {
			fmt.Println("Feed is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SCORE\tPRI\tCATEGORY\tTYPE\tTITLE\tAGE")
		for _, it := range page.Items {
			title := it.Title
			if len(title) > 60 {
				title = title[:60] + "..."
			}
			fmt.Fprintf(w, "%.1f\t%d\t%s\t%s\t%s\t%s\n",
				it.Relevance,
				it.Priority,
				it.Category,
				it.Type,
				title,
				formatAge(it.CreatedAt),
			)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if page.HasMore {
			fmt.Printf("... and %d more.\n", page.TotalCount-len(page.Items))
		}
		return nil
	},
}

func formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
