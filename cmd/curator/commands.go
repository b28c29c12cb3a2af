package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cosmicdatasets/curator/internal/config"
	"github.com/cosmicdatasets/curator/internal/curation"
	"github.com/cosmicdatasets/curator/internal/eagle"
	"github.com/cosmicdatasets/curator/internal/progress"
	"github.com/cosmicdatasets/curator/internal/storage"
	"github.com/cosmicdatasets/curator/pkg/types"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newImportCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "import <paths...>",
		Short: "Import media files or directories as unprocessed assets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			res, err := curation.NewImporter(store).Import(cmd.Context(), args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, a := range res.Imported {
				fmt.Fprintf(out, "imported %s  %s  %s\n", a.ID, a.Kind, a.Name)
			}
			for path, err := range res.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", path, err)
			}
			fmt.Fprintf(out, "%d imported, %d skipped\n", len(res.Imported), len(res.Skipped))
			return nil
		},
	}
}

func newListCmd(cfg *config.Config) *cobra.Command {
	var (
		opts        storage.ListOptions
		kind        string
		unprocessed bool
		flagged     bool
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			if kind != "" {
				opts.Kind = types.AssetKind(kind)
				if !types.IsValidAssetKind(opts.Kind) {
					return fmt.Errorf("invalid kind %q", kind)
				}
			}
			if unprocessed {
				f := false
				opts.Processed = &f
			}
			if flagged {
				t := true
				opts.Flagged = &t
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			page, err := store.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), page)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tNAME\tRATING\tPROCESSED\tTAGS")
			for _, a := range page.Items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\t%d\n", a.ID, a.Kind, a.Name, a.Rating, a.Processed, len(a.Tags))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "page %d, %d of %d assets\n", page.Page, len(page.Items), page.Total)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.Page, "page", 1, "page number")
	f.IntVar(&opts.Limit, "limit", 50, "page size (max 500)")
	f.StringVar(&opts.SortBy, "sort", "created_at", "sort field: created_at, updated_at, name, rating, id")
	f.StringVar(&opts.SortOrder, "order", "desc", "sort order: asc or desc")
	f.StringVar(&kind, "kind", "", "filter by kind: image, audio, video")
	f.IntVar(&opts.MinRating, "min-rating", 0, "only assets rated at least this")
	f.StringVar(&opts.NameContains, "name", "", "filter by name substring")
	f.BoolVar(&unprocessed, "unprocessed", false, "only assets not yet analyzed")
	f.BoolVar(&flagged, "flagged", false, "only flagged assets")
	f.BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newAnalyzeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <id>",
		Short: "Analyze one asset and merge the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			asset, err := curation.NewCurator(a.store, a.facade, a.fetcher).AnalyzeOne(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), asset)
		},
	}
}

func newBatchCmd(cfg *config.Config) *cobra.Command {
	var (
		all         bool
		unprocessed bool
		listen      string
	)

	cmd := &cobra.Command{
		Use:   "batch [ids...]",
		Short: "Analyze a selection of assets sequentially",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ids, err := selectIDs(ctx, a.store, args, all, unprocessed)
			if err != nil {
				return err
			}

			var hub *progress.Hub
			if listen != "" {
				hub = progress.NewHub(cfg.ServerAddr(), "localhost:*", "127.0.0.1:*")
				addr, err := progress.Serve(ctx, listen, hub)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "progress stream at ws://%s/ws\n", addr)
			}

			ctrl := curation.NewController(a.store, a.facade, a.fetcher, curation.ControllerOptions{
				Interval: cfg.Batch.ItemInterval,
			})

			out := cmd.OutOrStdout()
			summary := ctrl.Run(ctx, ids, func(p curation.Progress) {
				status := "ok"
				if p.Err != nil {
					status = "failed: " + p.Err.Error()
				}
				fmt.Fprintf(out, "[%d/%d] %s %s\n", p.Current, p.Total, p.AssetID, status)
				if hub != nil {
					hub.PublishProgress(p)
				}
			})
			if hub != nil {
				hub.PublishDone(summary)
			}

			fmt.Fprintf(out, "%d succeeded, %d failed in %s\n", summary.Succeeded, summary.Failed, summary.Elapsed.Round(time.Millisecond))
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&all, "all", false, "analyze every asset")
	f.BoolVar(&unprocessed, "unprocessed", false, "analyze assets not yet processed")
	f.StringVar(&listen, "listen", "", "serve progress websocket and /metrics on this address")
	return cmd
}

// selectIDs resolves the batch selection from explicit ids or a flag.
func selectIDs(ctx context.Context, store storage.AssetStore, args []string, all, unprocessed bool) ([]string, error) {
	switch {
	case len(args) > 0 && (all || unprocessed):
		return nil, errors.New("pass ids or a selection flag, not both")
	case len(args) > 0:
		return args, nil
	case all:
		return store.IDs(ctx, storage.ListOptions{})
	case unprocessed:
		f := false
		return store.IDs(ctx, storage.ListOptions{Processed: &f})
	default:
		return nil, errors.New("no assets selected: pass ids, --all or --unprocessed")
	}
}

func newSettingsCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change AI provider settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print current settings with API keys redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(cmd.OutOrStdout(), a.facade.Settings().Redacted())
		},
	}

	set := &cobra.Command{
		Use:   "set key=value...",
		Short: "Change settings fields by their JSON name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, arg := range args {
				key, value, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("expected key=value, got %q", arg)
				}
				if _, err := a.settings.Set(cmd.Context(), key, value); err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), a.facade.Settings().Redacted())
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}

func newModelsCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Show local backend status and installed Ollama models",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			s := a.facade.Settings()
			out := cmd.OutOrStdout()

			local := a.clients.Local(s)
			fmt.Fprintf(out, "local backend %s online=%t\n", local.BaseURL(), local.Health(cmd.Context()))

			models, err := a.clients.Ollama(s, "").ListModels(cmd.Context())
			if err != nil {
				fmt.Fprintf(out, "ollama %s unavailable: %v\n", s.OllamaURL, err)
				return nil
			}
			fmt.Fprintf(out, "ollama %s models:\n", s.OllamaURL)
			for _, m := range models {
				fmt.Fprintf(out, "  %s\n", m)
			}
			return nil
		},
	}
}

func newStatsCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func newEagleCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eagle",
		Short: "Exchange assets with an Eagle library",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Check whether Eagle is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			ok := eagle.NewClient(eagle.Config{BaseURL: cfg.Eagle.URL}).Status(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "eagle %s online=%t\n", cfg.Eagle.URL, ok)
			return nil
		},
	}

	export := &cobra.Command{
		Use:   "export <ids...>",
		Short: "Push curated assets to Eagle",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := eagle.NewClient(eagle.Config{BaseURL: cfg.Eagle.URL})
			if !client.Status(ctx) {
				return fmt.Errorf("eagle is not running at %s", cfg.Eagle.URL)
			}

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var failed int
			for _, id := range args {
				asset, err := a.store.Get(ctx, id)
				if err == nil {
					err = client.Export(ctx, asset, func() (string, error) {
						return a.fetcher.Fetch(ctx, asset.URL)
					})
				}
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %s\n", id)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d exports failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.AddCommand(status, export)
	return cmd
}

func newDeleteCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
