package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/veldt-fm/airgraph/internal/artist"
	"github.com/veldt-fm/airgraph/internal/config"
	"github.com/veldt-fm/airgraph/internal/database"
	"github.com/veldt-fm/airgraph/internal/extract"
	"github.com/veldt-fm/airgraph/internal/logging"
	"github.com/veldt-fm/airgraph/internal/pipeline"
	"github.com/veldt-fm/airgraph/internal/provider"
	"github.com/veldt-fm/airgraph/internal/provider/discogs"
	"github.com/veldt-fm/airgraph/internal/provider/spotify"
	"github.com/veldt-fm/airgraph/internal/relationship"
	"github.com/veldt-fm/airgraph/internal/track"
)

var version = "dev"

var (
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
	logCloser  io.Closer
)

func main() {
	err := rootCmd.Execute()
	if logCloser != nil {
		logCloser.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "airgraph",
	Short:   "Artist relationship graph builder",
	Long:    "Airgraph parses radio play logs into an artist relationship graph and enriches it from external music metadata providers.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, logCloser = logging.New(logging.Config{
			Level:    cfg.Logging.Level,
			Format:   cfg.Logging.Format,
			FilePath: cfg.Logging.FilePath,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(relatedCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("airgraph", version)
	},
}

// --- discover command ---

var (
	discoverLimit       int
	discoverOffset      int
	discoverSource      string
	discoverProviders   []string
	discoverNonBlocking bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run one relationship discovery batch over the play logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		source, err := track.ParseSource(discoverSource)
		if err != nil {
			return err
		}
		providers, err := parseProviders(discoverProviders)
		if err != nil {
			return err
		}

		ctx := context.Background()
		quota := newQuotaManager(discoverNonBlocking)
		store := provider.NewQuotaStore(db)
		if err := store.Restore(ctx, quota); err != nil {
			return err
		}
		registry := buildRegistry(quota)

		artists := artist.NewService(db)
		relations := relationship.NewService(db)
		orch := pipeline.New(pipeline.Options{
			Tracks:        track.NewService(db),
			Artists:       artists,
			Resolver:      artist.NewResolver(artists, logger),
			Relationships: relations,
			Writer:        relationship.NewWriter(relations, logger),
			Registry:      registry,
			Quota:         quota,
			Extractor:     extract.New(extract.DefaultRules()),
			Workers:       cfg.Batch.Workers,
			Logger:        logger,
		})

		summary, err := orch.Run(ctx, pipeline.BatchRequest{
			Limit:     discoverLimit,
			Offset:    discoverOffset,
			Source:    source,
			Providers: providers,
		})
		if err != nil {
			return err
		}
		if err := store.Save(ctx, quota); err != nil {
			return err
		}

		printSummary(summary)
		return nil
	},
}

func init() {
	discoverCmd.Flags().IntVar(&discoverLimit, "limit", 0, "Tracks per batch (0 uses the configured default)")
	discoverCmd.Flags().IntVar(&discoverOffset, "offset", 0, "Resume offset from a previous batch")
	discoverCmd.Flags().StringVar(&discoverSource, "source", "both", "Play-log source: live, archive, or both")
	discoverCmd.Flags().StringSliceVar(&discoverProviders, "providers", []string{"discogs", "spotify"}, "Enrichment providers to call")
	discoverCmd.Flags().BoolVar(&discoverNonBlocking, "non-blocking", false, "Skip provider calls instead of waiting when a minute quota is exhausted")
}

func printSummary(s *pipeline.BatchSummary) {
	fmt.Println("Batch complete:")
	fmt.Printf("  Tracks processed: %d\n", s.TracksProcessed)
	fmt.Printf("  Artists found: %d\n", s.ArtistsFound)
	fmt.Printf("  Relationships discovered: %d\n", s.RelationshipsDiscovered)
	fmt.Printf("  Relationships saved: %d\n", s.RelationshipsSaved)
	fmt.Printf("  Credits created: %d\n", s.CreditsCreated)

	if len(s.SampleRelationships) > 0 {
		fmt.Println("\nSample relationships:")
		for _, r := range s.SampleRelationships {
			fmt.Printf("  %s -> %s (%s, strength %.1f)\n",
				r.SourceArtistID, r.TargetArtistID, r.Type, r.Strength)
		}
	}

	if len(s.Errors) > 0 {
		fmt.Printf("\nPartial success: %d error(s):\n", len(s.Errors))
		for _, e := range s.Errors {
			fmt.Printf("  %s\n", e)
		}
	}

	fmt.Printf("\nResume with: airgraph discover --offset %d --limit %d --source %s\n",
		s.NextBatch.Offset, s.NextBatch.Limit, s.NextBatch.Source)
}

// --- import command ---

var importSource string

var importCmd = &cobra.Command{
	Use:   "import [csv-file]",
	Short: "Import play logs from a CSV file (columns: artist, title, optional RFC3339 timestamp)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		source, err := track.ParseSource(importSource)
		if err != nil {
			return err
		}
		if source == track.SourceBoth {
			return fmt.Errorf("import requires --source live or --source archive")
		}

		tracks, err := readTracksCSV(args[0])
		if err != nil {
			return err
		}

		inserted, err := track.NewService(db).Import(context.Background(), source, tracks)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d track(s), skipped %d duplicate(s).\n", inserted, len(tracks)-inserted)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importSource, "source", "live", "Target play log: live or archive")
}

func readTracksCSV(path string) ([]track.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var tracks []track.Track
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		line++
		if len(record) < 2 {
			return nil, fmt.Errorf("%s line %d: expected at least artist and title columns", path, line)
		}
		// A header row is tolerated.
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "artist") {
			continue
		}

		tr := track.Track{
			Artist: strings.TrimSpace(record[0]),
			Title:  strings.TrimSpace(record[1]),
		}
		if len(record) > 2 && strings.TrimSpace(record[2]) != "" {
			ts, err := time.Parse(time.RFC3339, strings.TrimSpace(record[2]))
			if err != nil {
				return nil, fmt.Errorf("%s line %d: bad timestamp: %w", path, line, err)
			}
			tr.CreatedAt = ts
		}
		tracks = append(tracks, tr)
	}
	return tracks, nil
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show graph and quota status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		live, archive, err := track.NewService(db).Counts(ctx)
		if err != nil {
			return err
		}
		artists, err := artist.NewService(db).Count(ctx)
		if err != nil {
			return err
		}
		relations := relationship.NewService(db)
		edges, err := relations.CountEdges(ctx)
		if err != nil {
			return err
		}
		credits, err := relations.CountCredits(ctx)
		if err != nil {
			return err
		}

		fmt.Println("Play logs:")
		fmt.Printf("  Live tracks: %d\n", live)
		fmt.Printf("  Archive tracks: %d\n", archive)
		fmt.Println("\nGraph:")
		fmt.Printf("  Artists: %d\n", artists)
		fmt.Printf("  Relationships: %d\n", edges)
		fmt.Printf("  Track credits: %d\n", credits)

		quota := newQuotaManager(false)
		if err := provider.NewQuotaStore(db).Restore(ctx, quota); err != nil {
			return err
		}
		fmt.Println("\nProvider quotas (today):")
		for _, state := range quota.States() {
			fmt.Printf("  %s: %d/%d daily requests used\n",
				state.Provider.DisplayName(), state.RequestsUsedToday, state.DailyCeiling)
		}
		return nil
	},
}

// --- related command ---

var relatedLimit int

var relatedCmd = &cobra.Command{
	Use:   "related [artist-name]",
	Short: "Show the strongest relationships for an artist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		norm, err := artist.Normalize(args[0])
		if err != nil {
			return err
		}
		ctx := context.Background()
		p, err := artist.NewService(db).GetBySlug(ctx, norm.Slug)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("no artist found for %q", args[0])
		}

		related, err := relationship.NewService(db).TopRelated(ctx, p.ID, relatedLimit)
		if err != nil {
			return err
		}
		if len(related) == 0 {
			fmt.Printf("%s has no discovered relationships yet.\n", p.Name)
			return nil
		}

		fmt.Printf("Related to %s:\n", p.Name)
		for _, r := range related {
			fmt.Printf("  %-30s %-14s strength %.1f\n", r.ArtistName, r.Type, r.Strength)
		}
		return nil
	},
}

func init() {
	relatedCmd.Flags().IntVar(&relatedLimit, "limit", 10, "Maximum relationships to show")
}

// --- wiring helpers ---

func openDB() (*sql.DB, error) {
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func newQuotaManager(nonBlocking bool) *provider.QuotaManager {
	return provider.NewQuotaManager(map[provider.Name]provider.Budget{
		provider.NameDiscogs: {
			PerMinute: cfg.Providers.Discogs.PerMinute,
			PerDay:    cfg.Providers.Discogs.DailyLimit,
		},
		provider.NameSpotify: {
			PerMinute: cfg.Providers.Spotify.PerMinute,
			PerDay:    cfg.Providers.Spotify.DailyLimit,
		},
	}, nonBlocking, logger)
}

// buildRegistry registers every provider that has credentials configured.
// Unconfigured providers are simply absent and skipped during enrichment.
func buildRegistry(quota *provider.QuotaManager) *provider.Registry {
	registry := provider.NewRegistry()
	limiter := provider.NewRateLimiterMap()

	if cfg.Providers.Discogs.Token != "" {
		registry.Register(discogs.New(cfg.Providers.Discogs.Token, limiter, quota, logger))
	}
	if cfg.Providers.Spotify.ClientID != "" && cfg.Providers.Spotify.ClientSecret != "" {
		registry.Register(spotify.New(cfg.Providers.Spotify.ClientID, cfg.Providers.Spotify.ClientSecret, limiter, quota, logger))
	}
	return registry
}

func parseProviders(names []string) ([]provider.Name, error) {
	var out []provider.Name
	for _, n := range names {
		name := provider.Name(strings.ToLower(strings.TrimSpace(n)))
		switch name {
		case provider.NameDiscogs, provider.NameSpotify:
			out = append(out, name)
		default:
			return nil, fmt.Errorf("unknown provider: %q", n)
		}
	}
	return out, nil
}
