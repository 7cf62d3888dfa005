package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/doeshing/sage-go/internal/app"
	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/infrastructure/cli/helpers"
	"github.com/doeshing/sage-go/internal/ports"
)

// NewCacheCommand creates the cache command with all subcommands
func NewCacheCommand(container *app.Container) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear cached consultations",
	}

	cacheCmd.AddCommand(
		newCacheListCommand(container),
		newCacheClearCommand(container),
		newCacheStatsCommand(container),
		newCacheConfigCommand(container),
	)

	return cacheCmd
}

func newCacheListCommand(container *app.Container) *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached consultations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listCacheEntries(cmd.OutOrStdout(), container.CacheStore, scope, time.Now())
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "Only show entries with this scope")
	return cmd
}

func newCacheClearCommand(container *app.Container) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached consultation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				if !helpers.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Delete all cached consultations?") {
					fmt.Fprintln(cmd.OutOrStdout(), MsgCacheClearCancelled)
					return nil
				}
			}
			return clearCache(cmd.OutOrStdout(), container.CacheStore)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newCacheStatsCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache settings, size and per-scope counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showCacheStats(cmd.OutOrStdout(), container.CacheStore, time.Now())
		},
	}
}

func newCacheConfigCommand(container *app.Container) *cobra.Command {
	var ttl string
	var maxEntries int

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Update cache TTL/max entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateCacheConfiguration(cmd.Context(), cmd.OutOrStdout(), container, ttl, maxEntries)
		},
	}

	cmd.Flags().StringVar(&ttl, "ttl", "", "Cache TTL duration (e.g. 30m, 168h)")
	cmd.Flags().IntVar(&maxEntries, "max", 0, "Max cache entries")
	return cmd
}

func listCacheEntries(out io.Writer, cache ports.CacheRepository, scope string, now time.Time) error {
	if cache == nil {
		return errors.New(ErrCacheStoreUnavailable)
	}

	entries, err := cache.Entries()
	if err != nil {
		return fmt.Errorf("failed to retrieve cache entries: %w", err)
	}

	shown := 0
	for _, entry := range entries {
		if scope != "" && entry.Scope != scope {
			continue
		}
		verdict := "-"
		if entry.Report != nil {
			verdict = string(entry.Report.Recommendation)
		}
		fmt.Fprintf(out, "%s | %s | %s | %s | %s\n",
			shortKey(entry.Key),
			orDash(entry.Scope),
			strings.Join(entry.Models, ","),
			verdict,
			humanize.RelTime(entry.CreatedAt, now, "ago", "from now"))
		shown++
	}

	if shown == 0 {
		fmt.Fprintln(out, MsgNoCachedConsultations)
	}
	return nil
}

func clearCache(out io.Writer, cache ports.CacheRepository) error {
	if cache == nil {
		return errors.New(ErrCacheStoreUnavailable)
	}

	if err := cache.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Fprintln(out, MsgCacheCleared)
	return nil
}

func showCacheStats(out io.Writer, cache ports.CacheRepository, now time.Time) error {
	if cache == nil {
		return errors.New(ErrCacheStoreUnavailable)
	}

	settings := cache.Settings()
	entries, err := cache.Entries()
	if err != nil {
		return fmt.Errorf("failed to retrieve cache entries: %w", err)
	}
	size, err := calculateStorageSize(cache.Location())
	if err != nil {
		return fmt.Errorf("failed to calculate cache size: %w", err)
	}

	fmt.Fprintf(out, "Backend: %s\nLocation: %s\nSize: %s\n", settings.Backend, cache.Location(), humanize.Bytes(uint64(size)))
	fmt.Fprintf(out, "Cache TTL: %s\nMax entries: %s\nCurrent entries: %s\n",
		settings.TTL,
		humanize.Comma(int64(settings.MaxEntries)),
		humanize.Comma(int64(len(entries))))

	if len(entries) == 0 {
		fmt.Fprintln(out, MsgNoCachedConsultations)
		return nil
	}

	expired := 0
	oldest := entries[0].CreatedAt
	for _, entry := range entries {
		if entry.Expired(now) {
			expired++
		}
		if entry.CreatedAt.Before(oldest) {
			oldest = entry.CreatedAt
		}
	}
	fmt.Fprintf(out, "Expired (pending eviction): %d\nOldest entry: %s\n", expired, humanize.RelTime(oldest, now, "ago", "from now"))

	fmt.Fprintln(out, "Entries per scope:")
	for _, stat := range helpers.TopCounts(helpers.CountByScope(entries), 0) {
		fmt.Fprintf(out, "  %s: %d\n", stat.Label, stat.Count)
	}
	fmt.Fprintln(out, "Entries per provider:")
	for _, stat := range helpers.TopCounts(helpers.CountByProvider(entries), 0) {
		fmt.Fprintf(out, "  %s: %d\n", stat.Label, stat.Count)
	}
	return nil
}

func updateCacheConfiguration(ctx context.Context, out io.Writer, container *app.Container, ttl string, maxEntries int) error {
	if ttl == "" && maxEntries <= 0 {
		return errors.New("nothing to update: pass --ttl and/or --max")
	}

	cfg, err := container.ConfigProvider.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	updated := cfg.Cache
	if ttl != "" {
		parsed, err := domain.ParseDuration(ttl)
		if err != nil {
			return fmt.Errorf("invalid ttl: %w", err)
		}
		updated.TTL = parsed
	}
	if maxEntries > 0 {
		updated.MaxEntries = maxEntries
	}
	cfg.Cache = updated

	if err := helpers.SaveConfigWithValidation(container, cfg); err != nil {
		return err
	}

	if container.CacheStore != nil {
		if err := container.CacheStore.Update(updated); err != nil {
			return fmt.Errorf("configuration saved but cache not updated: %w", err)
		}
	}

	fmt.Fprintf(out, "Cache TTL: %s, max entries: %d\n", cfg.GetCacheTTL(), cfg.GetCacheMaxEntries())
	return nil
}

// calculateStorageSize sums file sizes under path; path may be a single file.
func calculateStorageSize(path string) (int64, error) {
	var totalSize int64

	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip entries that can't be accessed
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		totalSize += info.Size()
		return nil
	})
	return totalSize, err
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
