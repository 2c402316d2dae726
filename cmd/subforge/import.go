package main

import (
	"github.com/spf13/cobra"

	"subforge/internal/dataset"
	"subforge/internal/db"
	"subforge/internal/geoip"
	"subforge/internal/logger"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import nodes and subscriptions from a YAML dataset",
	Long:  `Upserts the nodes and subscriptions of a dataset file into the database. Nodes without an id get a generated one; nodes without a country are located through GeoIP when their server is an IP address.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		ds, err := dataset.Load(args[0])
		if err != nil {
			logger.Log.Fatalf("Error loading dataset: %v", err)
		}

		if err := geoip.Init(cfg.GeoIP.CountryPath); err != nil {
			logger.Log.Warnf("⚠️  %v. Country data will be missing.", err)
		}
		defer geoip.Close()

		database, err := db.Connect(cfg.Database.Path)
		if err != nil {
			logger.Log.Fatalf("Error connecting to DB: %v", err)
		}
		defer db.Close(database)
		if err := db.Migrate(database); err != nil {
			logger.Log.Fatalf("Error migrating DB: %v", err)
		}

		next, err := db.NextSort(database)
		if err != nil {
			logger.Log.Fatalf("Error reading node order: %v", err)
		}

		var lookup dataset.CountryLookup
		if geoip.Enabled() {
			lookup = geoip.CountryCode
		}
		nodes, err := ds.Prepare(next, lookup)
		if err != nil {
			logger.Log.Fatalf("Invalid dataset: %v", err)
		}

		n, err := db.UpsertNodes(database, nodes)
		if err != nil {
			logger.Log.Fatalf("%v", err)
		}
		s, err := db.UpsertSubscriptions(database, ds.Subscriptions)
		if err != nil {
			logger.Log.Fatalf("%v", err)
		}
		logger.Log.Infof("✅ Imported %d nodes and %d subscriptions from %s.", n, s, args[0])
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
