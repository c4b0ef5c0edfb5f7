// Command cleanup runs the booking lifecycle batch for one or more sites:
// archive past-due bookings, optionally collapse duplicate archive rows, and
// optionally purge terminal history. Intended for cron.
package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/archive"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/awsconf"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/booking"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/cleanup"
	appconfig "github.com/amitayhanson-cloud/salon-platform-sub007/internal/config"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/tenant"
	"github.com/amitayhanson-cloud/salon-platform-sub007/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	var (
		sitesFlag  = flag.String("sites", "", "comma-separated site ids (required)")
		cutoffFlag = flag.String("cutoff", "", "cutoff date YYYY-MM-DD, empty means start of today in the site timezone")
		dryRunFlag = flag.Bool("dry-run", false, "classify without writing")
		dedupeFlag = flag.Bool("dedupe", false, "collapse duplicate archive rows after the scan")
		purgeFlag  = flag.Bool("purge", false, "permanently delete cancelled/expired archive rows after the scan")
		timeoutFlg = flag.Duration("timeout", 10*time.Minute, "overall run deadline")
	)
	flag.Parse()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	siteIDs := splitSites(*sitesFlag)
	if len(siteIDs) == 0 {
		logger.Error("no sites given, use -sites=site-a,site-b")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlg)
	defer cancel()

	awsCfg, err := awsconf.Load(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	dynamoClient := awsconf.NewDynamoClient(awsCfg)

	engine := cleanup.NewEngine(cleanup.Config{
		Bookings:        booking.NewRepository(dynamoClient, cfg.BookingsTable),
		Archives:        archive.NewStore(dynamoClient, cfg.ArchiveTable),
		Sites:           tenant.NewStore(dynamoClient, cfg.SitesTable),
		Logger:          logger,
		PurgeBatchSize:  cfg.PurgeBatchSize,
		DefaultTimezone: cfg.CleanupTimezone,
	})

	exitCode := 0
	for _, siteID := range siteIDs {
		if err := runSite(ctx, engine, logger, siteID, *cutoffFlag, *dryRunFlag, *dedupeFlag, *purgeFlag); err != nil {
			logger.Error("site run failed", "site_id", siteID, "error", err)
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

// runSite continues past per-stage failures within one site only when the
// stage's partial results are already durable.
func runSite(ctx context.Context, engine *cleanup.Engine, logger *logging.Logger, siteID, cutoff string, dryRun, dedupe, purge bool) error {
	res, err := engine.RunCleanup(ctx, siteID, cutoff, dryRun)
	if err != nil {
		return err
	}
	logger.Info("cleanup finished",
		"site_id", siteID,
		"dry_run", dryRun,
		"scanned", res.Scanned,
		"archived", res.Archived,
		"skipped_followups", res.SkippedFollowups,
		"errors", res.Errors,
	)

	if dedupe && !dryRun {
		dres, err := engine.Dedupe(ctx, siteID, "")
		if err != nil {
			return err
		}
		logger.Info("dedupe finished",
			"site_id", siteID,
			"clients", dres.ClientsProcessed,
			"deleted", dres.TotalDeleted,
			"written", dres.TotalWritten,
		)
	}

	if purge && !dryRun {
		pres, err := engine.Purge(ctx, siteID)
		if err != nil {
			return err
		}
		logger.Info("purge finished",
			"site_id", siteID,
			"deleted_cancelled", pres.DeletedCancelled,
			"deleted_expired", pres.DeletedExpired,
		)
	}
	return nil
}

func splitSites(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
