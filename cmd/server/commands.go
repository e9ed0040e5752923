package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sanjeevkumarraob/ipc-search-service/internal/auth"
	"github.com/sanjeevkumarraob/ipc-search-service/internal/corpus"
	"github.com/sanjeevkumarraob/ipc-search-service/internal/search"
)

func newSearchCmd(flags *globalFlags) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Run one query against the corpus and print the matches",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			embedder, closeEmbedder := newEmbedder(cfg, logger)
			defer closeEmbedder()

			engine := search.Bootstrap(cmd.Context(), bootstrapConfig(cfg, false), embedder, logger)
			result := engine.Analyze(cmd.Context(), strings.Join(args, " "), limit)

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result.Matches)
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", search.DefaultLimit, "maximum number of matches")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print matches as JSON")
	return cmd
}

func printResult(w io.Writer, result *search.Result) error {
	fmt.Fprintf(w, "query: %q\n", result.Query)
	fmt.Fprintf(w, "steps: exact=%s semantic=%s fuzzy=%s\n\n",
		result.Exact.Status, result.Semantic.Status, result.Fuzzy.Status)

	if len(result.Matches) == 0 {
		fmt.Fprintln(w, "no matching section")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SECTION\tTYPE\tCONFIDENCE\tTITLE")
	for _, m := range result.Matches {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\n", m.SectionID, m.Kind, m.Confidence, m.Title)
	}
	return tw.Flush()
}

func newIndexCmd(flags *globalFlags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the vector cache for the corpus and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			c, err := corpus.Load(cfg.DataPath(), corpus.WithLogger(logger))
			if err != nil {
				return err
			}

			embedder, closeEmbedder := newEmbedder(cfg, logger)
			defer closeEmbedder()
			if embedder == nil {
				return errors.New("no embedding provider available")
			}

			builder, err := search.NewIndexBuilder(embedder, cfg.CachePath(),
				search.WithWorkers(cfg.IndexWorkers),
				search.WithBatchSize(cfg.IndexBatchSize),
				search.WithForceRebuild(force),
				search.WithIndexLogger(logger))
			if err != nil {
				return err
			}

			start := time.Now()
			store, source, err := builder.Build(cmd.Context(), c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "index %s: %d vectors of %d dims in %s (%s)\n",
				source, store.Len(), store.Dims(), time.Since(start).Round(time.Millisecond), cfg.CachePath())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "ignore an existing cache and recompute every vector")
	return cmd
}

func newTokenCmd(flags *globalFlags) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Mint a bearer token for the API (requires JWT_SECRET)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			manager, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
			if err != nil {
				return err
			}
			token, err := manager.GenerateToken(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to JWT_TTL)")
	return cmd
}
