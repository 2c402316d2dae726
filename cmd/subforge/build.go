package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"strconv"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"subforge/internal/chain"
	"subforge/internal/config"
	"subforge/internal/db"
	"subforge/internal/logger"
	"subforge/internal/metrics"
	"subforge/internal/model"
	"subforge/internal/pipeline"
	"subforge/internal/publishers"
	"subforge/internal/subscription"
)

var buildParams map[string]string
var buildPublishers []string
var dryRun bool

var buildCmd = &cobra.Command{
	Use:   "build [subscription_names...]",
	Short: "Run the node pipeline for subscriptions and publish the results",
	Long:  `Builds every subscription, or only the named ones, and hands each result to the configured publishers. Use --param to override publisher configuration.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		cfg.FilterPublishers(buildPublishers)
		applyPublisherParams(cfg, buildParams)

		database, err := db.Connect(cfg.Database.Path)
		if err != nil {
			logger.Log.Fatalf("Error connecting to DB: %v", err)
		}
		defer db.Close(database)

		subs, err := selectSubscriptions(database, args)
		if err != nil {
			logger.Log.Fatalf("%v", err)
		}
		if len(subs) == 0 {
			logger.Log.Warn("No subscriptions matched.")
			return
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		seed := cfg.Pipeline.Seed()
		logger.Log.Debugf("Random seed: %d", seed)
		collector := metrics.New()

		bar := newBar(len(subs))
		jobs := make(chan int)
		results := make([]*pipeline.Result, len(subs))

		var wg sync.WaitGroup
		for w := 0; w < min(cfg.Pipeline.Workers, len(subs)); w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					// one source per subscription keeps results independent of scheduling
					rng := rand.New(rand.NewPCG(seed, uint64(i)))
					res, err := buildOne(ctx, database, cfg, subs[i], rng)
					if err != nil {
						collector.RecordFailure(err)
						logger.Log.Errorf("❌ Subscription '%s' failed: %v", subs[i].Name, err)
					} else {
						collector.RecordBuild(res)
						results[i] = res
					}
					if bar != nil {
						bar.Add(1)
					}
				}
			}()
		}
		for i := range subs {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
		if bar != nil {
			bar.Finish()
		}

		if !dryRun {
			for _, res := range results {
				if res != nil {
					publish(ctx, cfg, res)
				}
			}
		}
		collector.PrintReport(os.Stdout)
	},
}

func buildOne(ctx context.Context, database *gorm.DB, cfg *config.Config, sub model.Subscription, rng *rand.Rand) (*pipeline.Result, error) {
	plan, err := subscription.Decode(sub, subscription.Defaults{
		FilterOrder: cfg.Pipeline.FilterOrder,
		UniqueNames: cfg.Pipeline.UniqueNames,
	})
	if err != nil {
		return nil, err
	}

	pool, err := db.LoadPool(database, plan.Sources)
	if err != nil {
		return nil, err
	}

	res, err := pipeline.Run(ctx, pool, *plan, pipeline.Options{TemplateGroups: cfg.Pipeline.TemplateGroups, Rand: rng})
	if err != nil {
		var re *chain.ResolveError
		if errors.As(err, &re) {
			return nil, fmt.Errorf("invalid proxy chain: %w", err)
		}
		return nil, err
	}
	logger.Log.Infof("🔧 Built '%s': %d nodes, %d chain groups.", sub.Name, len(res.Nodes), len(res.Groups))
	return res, nil
}

func publish(ctx context.Context, cfg *config.Config, res *pipeline.Result) {
	doc := publishers.NewDocument(res)
	for _, pubCfg := range cfg.Publishers {
		if !pubCfg.Wants(res.Plan) {
			continue
		}
		logger.Log.Infof("📨 Running Publisher: %s (%s) for '%s'...", pubCfg.Name, pubCfg.Type, res.Plan)

		plugin, err := publishers.Get(pubCfg.Type)
		if err != nil {
			logger.Log.Warnf("Plugin not found: %v", err)
			continue
		}
		if err := plugin.Publish(ctx, doc, pubCfg.Params); err != nil {
			logger.Log.Errorf("Publish failed: %v", err)
		}
	}
}

func selectSubscriptions(database *gorm.DB, names []string) ([]model.Subscription, error) {
	if len(names) == 0 {
		return db.ListSubscriptions(database)
	}
	subs := make([]model.Subscription, 0, len(names))
	for _, name := range names {
		sub, err := db.LoadSubscription(database, name)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, nil
}

func applyPublisherParams(cfg *config.Config, params map[string]string) {
	for i := range cfg.Publishers {
		if cfg.Publishers[i].Params == nil {
			cfg.Publishers[i].Params = make(map[string]interface{})
		}
		for k, v := range params {
			if intVal, err := strconv.Atoi(v); err == nil {
				cfg.Publishers[i].Params[k] = intVal
			} else if boolVal, err := strconv.ParseBool(v); err == nil {
				cfg.Publishers[i].Params[k] = boolVal
			} else {
				cfg.Publishers[i].Params[k] = v
			}
		}
	}
}

// newBar returns nil for a single subscription; its log line is enough.
func newBar(total int) *progressbar.ProgressBar {
	if total < 2 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(15),
		progressbar.OptionSetDescription("[cyan]Building...[reset]"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func init() {
	buildCmd.Flags().StringToStringVarP(&buildParams, "param", "p", nil, "Override publisher params (e.g. -p format=json)")
	buildCmd.Flags().StringSliceVar(&buildPublishers, "publisher", nil, "Only run these publishers")
	buildCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Build and report without publishing")
	rootCmd.AddCommand(buildCmd)
}
