package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/paperwalk/internal/config"
	"github.com/rohankatakam/paperwalk/internal/crawl"
	"github.com/rohankatakam/paperwalk/internal/s2"
)

var (
	expandDepth     int
	expandClean     bool
	expandRank      bool
	expandFirstPage bool
	jsonOutput      bool

	fetchCitations  bool
	fetchReferences bool
	fetchOffset     int

	searchLimit int
)

var expandCmd = &cobra.Command{
	Use:   "expand <paper-id>",
	Short: "Expand the citation graph around a seed paper",
	Long: `Fetch every paper citing the seed and every paper the seed cites,
store them with CITES edges, then recurse into citing papers until --depth
hops are done.

Examples:
  paperwalk expand 649def34f8be52c8b66281af98ae884c09aef38b
  paperwalk expand arXiv:1706.03762 --depth 2 --rank
  paperwalk expand DOI:10.18653/v1/N19-1423 --clean --first-page`,
	Args: cobra.ExactArgs(1),
	RunE: runExpand,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <paper-id>",
	Short: "Print a paper, or one raw page of its citations or references",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <paper-id>...",
	Short: "Store papers without expanding them",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search papers by keyword and store the matches",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	expandCmd.Flags().IntVarP(&expandDepth, "depth", "d", 0, "number of hops (default: expansion.depth)")
	expandCmd.Flags().BoolVar(&expandClean, "clean", false, "wipe the graph before expanding")
	expandCmd.Flags().BoolVar(&expandRank, "rank", false, "run PageRank and ArticleRank after expanding")
	expandCmd.Flags().BoolVar(&expandFirstPage, "first-page", false, "only fetch the first page of every listing")
	expandCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the run summary as JSON")

	fetchCmd.Flags().BoolVar(&fetchCitations, "citations", false, "print a raw page of citing papers")
	fetchCmd.Flags().BoolVar(&fetchReferences, "references", false, "print a raw page of referenced papers")
	fetchCmd.Flags().IntVar(&fetchOffset, "offset", 0, "page offset")
	fetchCmd.MarkFlagsMutuallyExclusive("citations", "references")

	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
}

func runExpand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(config.ValidationContextExpand).Err(); err != nil {
		return err
	}

	d, err := buildDeps(ctx, cfg, needs{graph: true, runs: true})
	if err != nil {
		return err
	}
	defer d.close(context.Background())

	if expandClean {
		if err := d.store.WipeAll(ctx); err != nil {
			return err
		}
		logger.Info("Graph wiped")
	}

	opts := crawl.Options{
		Depth:      expandDepth,
		EnrichSeed: true,
	}
	if opts.Depth <= 0 {
		opts.Depth = cfg.Expansion.Depth
	}
	if expandFirstPage {
		opts.Mode = s2.FirstPageOnly
	}

	result, err := d.crawler.Expand(ctx, args[0], opts)
	if err != nil {
		return err
	}

	if jsonOutput {
		if err := printJSON(result); err != nil {
			return err
		}
	} else {
		fmt.Printf("Expansion %s: %s\n", result.ID, result.Status)
		fmt.Printf("  Seed:               %s (depth %d)\n", result.SeedID, result.Depth)
		fmt.Printf("  Papers visited:     %d\n", result.PapersVisited)
		fmt.Printf("  Pages fetched:      %d\n", result.PagesFetched)
		fmt.Printf("  Papers written:     %d\n", result.PapersWritten)
		fmt.Printf("  Edges written:      %d\n", result.EdgesWritten)
		fmt.Printf("  Fetch failures:     %d\n", result.FetchFailures)
		fmt.Printf("  Normalize failures: %d\n", result.NormalizationFailures)
		fmt.Printf("  Store failures:     %d\n", result.StoreFailures)
		fmt.Printf("  Duration:           %s\n", result.Duration.Round(time.Millisecond))
	}

	if expandRank {
		return rank(ctx, d, 10)
	}
	return nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if err := cfg.Validate(config.ValidationContextFetch).Err(); err != nil {
		return err
	}

	d, err := buildDeps(ctx, cfg, needs{})
	if err != nil {
		return err
	}
	defer d.close(ctx)

	id := args[0]
	switch {
	case fetchCitations:
		page, err := d.provider.FetchCitationPage(ctx, id, fetchOffset, d.provider.PageSize())
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(page.Raw, '\n'))
		return err
	case fetchReferences:
		page, err := d.provider.FetchReferencePage(ctx, id, fetchOffset, d.provider.PageSize())
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(page.Raw, '\n'))
		return err
	}

	raw, err := d.provider.FetchPaper(ctx, id)
	if err != nil {
		return err
	}
	paper, err := s2.Normalize(raw)
	if err != nil {
		return err
	}
	return printJSON(paper)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := buildDeps(ctx, cfg, needs{graph: true})
	if err != nil {
		return err
	}
	defer d.close(context.Background())

	failed := 0
	for _, id := range args {
		paper, err := d.crawler.Ingest(ctx, id)
		if err != nil {
			failed++
			logger.WithError(err).WithField("paper_id", id).Error("Ingest failed")
			continue
		}
		fmt.Printf("✅ %s  %s\n", paper.PaperID, paper.Title)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d papers failed", failed, len(args))
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	d, err := buildDeps(ctx, cfg, needs{graph: true})
	if err != nil {
		return err
	}
	defer d.close(ctx)

	result, err := d.crawler.Search(ctx, strings.Join(args, " "), searchLimit)
	if err != nil {
		return err
	}

	for _, p := range result.Papers {
		year := "----"
		if p.Year > 0 {
			year = fmt.Sprintf("%d", p.Year)
		}
		fmt.Printf("%s  %s  %s\n", p.PaperID, year, p.Title)
	}
	fmt.Printf("\n%d stored, %d failed, %d could not be normalized\n",
		result.Stored.Succeeded, result.Stored.Failed, result.NormalizationFailures)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
