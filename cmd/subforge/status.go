package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"subforge/internal/db"
	"subforge/internal/logger"
	"subforge/internal/model"
	"subforge/internal/rename"
	"subforge/internal/subscription"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show node pool and subscription statistics",
	Long:  `Displays a dashboard of the current database state, including node counts per protocol, country and source, and the configured subscriptions.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		database, err := db.Connect(cfg.Database.Path)
		if err != nil {
			logger.Log.Fatalf("Error connecting to DB: %v", err)
		}
		defer db.Close(database)

		var totalNodes int64
		database.Model(&model.Node{}).Count(&totalNodes)

		protocols, err := db.CountNodesBy(database, "protocol")
		if err != nil {
			logger.Log.Fatalf("%v", err)
		}
		countries, err := db.CountNodesBy(database, "country_code")
		if err != nil {
			logger.Log.Fatalf("%v", err)
		}
		sources, err := db.CountNodesBy(database, "source")
		if err != nil {
			logger.Log.Fatalf("%v", err)
		}
		subs, err := db.ListSubscriptions(database)
		if err != nil {
			logger.Log.Fatalf("%v", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

		fmt.Println("\n📊 \033[1mSUBFORGE STATUS DASHBOARD\033[0m")
		fmt.Println("────────────────────────────────────────")

		fmt.Fprintln(w, "\033[1;36m[ SYSTEM ]\033[0m\t")
		fmt.Fprintf(w, "  Database Path:\t%s\n", cfg.Database.Path)
		fmt.Fprintf(w, "  DB Size:\t%s\n", formatBytes(getFileSize(cfg.Database.Path)))
		fmt.Fprintf(w, "  Total Nodes:\t%d\n", totalNodes)
		fmt.Fprintln(w, "\t")

		fmt.Fprintln(w, "\033[1;36m[ PROTOCOLS ]\033[0m\t")
		for _, b := range protocols {
			fmt.Fprintf(w, "  %s:\t%d\n", b.Name, b.Total)
		}
		fmt.Fprintln(w, "\t")

		fmt.Fprintln(w, "\033[1;36m[ TOP LOCATIONS ]\033[0m\t")
		for _, b := range lo.Slice(countries, 0, 5) {
			fmt.Fprintf(w, "  %s %s:\t%d\n", rename.Flag(b.Name), b.Name, b.Total)
		}
		fmt.Fprintln(w, "\t")

		fmt.Fprintln(w, "\033[1;36m[ SOURCES ]\033[0m\t")
		for _, b := range sources {
			name := b.Name
			if name == "" {
				name = "(none)"
			}
			fmt.Fprintf(w, "  %s:\t%d\n", name, b.Total)
		}
		fmt.Fprintln(w, "\t")

		fmt.Fprintln(w, "\033[1;36m[ SUBSCRIPTIONS ]\033[0m\t")
		if len(subs) == 0 {
			fmt.Fprintln(w, "  (No subscriptions imported)")
		}
		for _, sub := range subs {
			scope := "all sources"
			if src := subscription.SplitList(sub.Sources); len(src) > 0 {
				scope = fmt.Sprintf("%d sources", len(src))
			}
			chained := lo.Ternary(sub.ProxyChain != "", "chained", "direct")
			fmt.Fprintf(w, "  %s:\t%s, %s\n", sub.Name, scope, chained)
		}

		w.Flush()
		fmt.Println("")
	},
}

func getFileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
