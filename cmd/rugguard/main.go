package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"rugguard/internal/analysis"
	"rugguard/internal/analytics"
	"rugguard/internal/cmdlog"
	"rugguard/internal/config"
	"rugguard/internal/jobs"
	"rugguard/internal/logging"
	"rugguard/internal/metrics"
	"rugguard/internal/store/journal"
	"rugguard/internal/theme"
	"rugguard/internal/trustlist"
	"rugguard/internal/xclient"
)

func main() {
	app := cli.App{
		Name:  "rugguard",
		Usage: "answers trigger-phrase mentions on X with an account trust analysis",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to YAML config",
				Value:   "./rugguard.yaml",
				EnvVars: []string{"RUGGUARD_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file with credentials",
				Value: ".env",
			},
		},
		Before: func(cctx *cli.Context) error {
			return config.LoadDotEnv(cctx.String("env-file"))
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:  "init",
			Usage: "write a default config file",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "path", Value: "./rugguard.yaml", Usage: "where to write the config"},
				&cli.BoolFlag{Name: "force", Usage: "overwrite an existing file"},
			},
			Action: runInit,
		},
		{
			Name:   "run",
			Usage:  "poll mentions and reply to triggers until interrupted",
			Action: runBot,
		},
		{
			Name:      "analyze",
			Usage:     "analyze one account and print the reply the bot would post",
			ArgsUsage: "<handle>",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "json", Usage: "print the full result as JSON"},
			},
			Action: runAnalyze,
		},
		{
			Name:  "trustlist",
			Usage: "fetch the trust list and report its size",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "check", Usage: "report whether this handle is listed"},
				&cli.BoolFlag{Name: "print", Usage: "print every listed handle"},
			},
			Action: runTrustList,
		},
		{
			Name:  "history",
			Usage: "show recent analyses from the journal",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "limit", Value: 20},
				&cli.BoolFlag{Name: "hourly", Usage: "count verdict tiers per hour instead of listing"},
			},
			Action: runHistory,
		},
	}
	app.RunAndExitOnError()
}

// loadConfig reads the config file, falling back to defaults plus
// environment when it does not exist, and sets up logging.
func loadConfig(cctx *cli.Context) (config.Config, error) {
	path := cctx.String("config")
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		cfg.ResolveEnv()
		err = nil
	}
	if err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	logging.Init(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

func newClient(cfg config.Config) *xclient.HTTPClient {
	if cfg.Credentials.BearerToken == "" {
		logging.Warn("missing_bearer_token", map[string]any{"hint": "set X_BEARER_TOKEN"})
	}
	var signer *xclient.Signer
	if c := cfg.Credentials; c.HasUserAuth() {
		signer = xclient.NewSigner(c.ConsumerKey, c.ConsumerSecret, c.AccessToken, c.AccessSecret)
	}
	return xclient.NewHTTPClient(cfg.Credentials.BearerToken, signer)
}

func newTrustList(cfg config.Config) *trustlist.Store {
	return trustlist.New(cfg.TrustList.URL, cfg.TrustList.Timeout)
}

func runInit(cctx *cli.Context) error {
	return cmdlog.Run("init", func() error {
		path := cctx.String("path")
		if _, err := os.Stat(path); err == nil && !cctx.Bool("force") {
			return fmt.Errorf("%s exists; use --force to overwrite", path)
		}
		if err := config.Save(path, config.Default()); err != nil {
			return err
		}
		abs, _ := filepath.Abs(path)
		theme.PrintBanner(os.Stdout)
		fmt.Println("Config written to:", abs)
		return nil
	})
}

func runBot(cctx *cli.Context) error {
	return cmdlog.Run("run", func() error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		theme.PrintBanner(os.Stderr)
		if !cfg.Credentials.HasUserAuth() {
			logging.Warn("missing_user_credentials", map[string]any{"hint": "replies need X_CONSUMER_KEY, X_CONSUMER_SECRET, X_ACCESS_TOKEN, X_ACCESS_SECRET"})
		}

		ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		var db *journal.DB
		if cfg.Storage.DBPath != "" {
			db, err = journal.Open(cfg.Storage.DBPath)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer db.Close()
		}
		resolver, err := analysis.ResolverByName(cfg.Analysis.FollowerResolver)
		if err != nil {
			return err
		}
		bot, err := jobs.NewBot(cfg, jobs.Deps{
			Client:    newClient(cfg),
			TrustList: newTrustList(cfg),
			Resolver:  resolver,
			Journal:   db,
		})
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return bot.Run(gctx) })
		g.Go(func() error { return metrics.Serve(gctx, cfg.Metrics.Addr) })
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
}

func runAnalyze(cctx *cli.Context) error {
	return cmdlog.Run("analyze", func() error {
		handle := strings.TrimPrefix(strings.TrimSpace(cctx.Args().First()), "@")
		if handle == "" {
			return errors.New("need to provide a handle as an argument")
		}
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		resolver, err := analysis.ResolverByName(cfg.Analysis.FollowerResolver)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cctx.Context, 2*time.Minute)
		defer cancel()

		client := newClient(cfg)
		list := newTrustList(cfg)
		list.Refresh(ctx)
		u, err := client.GetUserByUsername(ctx, handle)
		if err != nil {
			return fmt.Errorf("look up @%s: %w", handle, err)
		}
		a := analysis.NewAnalyzer(list, resolver, nil)
		res, err := jobs.AnalyzeAccount(ctx, client, a, cfg.Analysis, u, jobs.NeedsFollowers(resolver))
		if err != nil {
			return err
		}
		if cctx.Bool("json") {
			b, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		}
		fmt.Println(analysis.RenderReply(res))
		fmt.Println()
		fmt.Printf("age=%d ratio=%d bio=%d engagement=%d trusted=%d\n",
			res.Scores.Age, res.Scores.Ratio, res.Scores.Bio, res.Scores.Engagement, res.Scores.Trusted)
		return nil
	})
}

func runTrustList(cctx *cli.Context) error {
	return cmdlog.Run("trustlist", func() error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		list := newTrustList(cfg)
		if !list.Refresh(cctx.Context) {
			return fmt.Errorf("could not fetch trust list from %s", cfg.TrustList.URL)
		}
		if h := cctx.String("check"); h != "" {
			if list.Contains(h) {
				fmt.Printf("@%s is on the trust list\n", strings.TrimPrefix(h, "@"))
			} else {
				fmt.Printf("@%s is not on the trust list\n", strings.TrimPrefix(h, "@"))
			}
			return nil
		}
		if cctx.Bool("print") {
			for _, h := range list.Handles() {
				fmt.Println(h)
			}
		}
		fmt.Printf("%d handles (fetched %s)\n", list.Len(), list.UpdatedAt().Format(time.RFC3339))
		return nil
	})
}

func runHistory(cctx *cli.Context) error {
	return cmdlog.Run("history", func() error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		if cfg.Storage.DBPath == "" {
			return errors.New("storage.dbPath is empty; no journal to read")
		}
		db, err := journal.Open(cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		recs, err := db.RecentAnalyses(cctx.Context, cctx.Int("limit"))
		if err != nil {
			return err
		}
		if cctx.Bool("hourly") {
			buckets := analytics.HourlyTiers(recs)
			for _, k := range analytics.SortedBucketKeys(buckets) {
				fmt.Printf("%s", k.Format("2006-01-02 15:00"))
				for _, tier := range analytics.SortedTiers(buckets[k]) {
					fmt.Printf("  %s=%d", tier, buckets[k][tier])
				}
				fmt.Println()
			}
			return nil
		}
		for _, r := range recs {
			vouched := ""
			if r.Vouched {
				vouched = " vouched"
			}
			fmt.Printf("%s @%-16s %3d/100 %-18s trigger=%s reply=%s%s\n",
				r.TS.Format(time.RFC3339), r.Username, r.Score, r.Tier, r.TriggerID, r.ReplyID, vouched)
		}
		return nil
	})
}
