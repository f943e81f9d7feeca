package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/paperwalk/internal/config"
	"github.com/rohankatakam/paperwalk/internal/graph"
	"github.com/rohankatakam/paperwalk/internal/storage"
)

var (
	cleanYes  bool
	rankTop   int
	rankBy    string
	runsLimit int
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete every paper and edge, and drop the analytics projection",
	RunE:  runClean,
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Run PageRank and ArticleRank over the citation graph",
	Long: `Project Paper nodes and CITES edges into the graph data science
catalog, compute PageRank and ArticleRank, and write the scores back as
the pagerank and articlerank node properties.

Requires Neo4j with the Graph Data Science plugin.`,
	RunE: runRank,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show graph size",
	RunE:  runStats,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent expansion runs",
	RunE:  runListRuns,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one expansion run",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowRun,
}

func init() {
	cleanCmd.Flags().BoolVarP(&cleanYes, "yes", "y", false, "skip the confirmation prompt")

	rankCmd.Flags().IntVar(&rankTop, "top", 10, "number of top papers to print (0 prints none)")
	rankCmd.Flags().StringVar(&rankBy, "by", graph.PropertyPageRank, "score to order by: pagerank or articlerank")

	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to list")
	runsCmd.AddCommand(runsShowCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if !cleanYes {
		fmt.Print("This deletes every paper in the graph. Continue? [y/N]: ")
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted")
			return nil
		}
	}

	d, err := buildDeps(ctx, cfg, needs{graph: true})
	if err != nil {
		return err
	}
	defer d.close(ctx)

	if err := d.store.WipeAll(ctx); err != nil {
		return err
	}
	fmt.Println("✅ Graph is empty")
	return nil
}

func runRank(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if err := cfg.Validate(config.ValidationContextAnalytics).Err(); err != nil {
		return err
	}

	d, err := buildDeps(ctx, cfg, needs{graph: true})
	if err != nil {
		return err
	}
	defer d.close(ctx)

	return rank(ctx, d, rankTop)
}

// rank runs centrality and prints the top papers.
func rank(ctx context.Context, d *deps, top int) error {
	result, err := d.ranker.RunCentrality(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Projected %d papers and %d citations as %q\n",
		result.Projection.Nodes, result.Projection.Relationships, result.Projection.Name)
	for _, alg := range result.Algorithms {
		fmt.Printf("  %-12s %d iterations, converged=%t\n", alg.Algorithm, alg.Iterations, alg.Converged)
	}
	fmt.Printf("Wrote %d score properties in %s\n", result.PropertiesWritten, result.Duration.Round(time.Millisecond))

	if top <= 0 {
		return nil
	}
	by := rankBy
	if by == "" {
		by = graph.PropertyPageRank
	}
	papers, err := d.ranker.TopPapers(ctx, by, top)
	if err != nil {
		return err
	}

	fmt.Printf("\nTop %d by %s:\n", len(papers), by)
	for i, p := range papers {
		var pr, ar float64
		if p.PageRank != nil {
			pr = *p.PageRank
		}
		if p.ArticleRank != nil {
			ar = *p.ArticleRank
		}
		fmt.Printf("%3d. %-8.4f %-8.4f %s\n", i+1, pr, ar, p.Title)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	d, err := buildDeps(ctx, cfg, needs{graph: true})
	if err != nil {
		return err
	}
	defer d.close(ctx)

	stats, err := d.store.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Graph (%s backend)\n", cfg.Graph.Backend)
	fmt.Printf("  Papers:   %d\n", stats.Papers)
	fmt.Printf("  Stubs:    %d\n", stats.Stubs)
	fmt.Printf("  Edges:    %d\n", stats.Edges)
	fmt.Printf("  Ranked:   %d\n", stats.Ranked)

	if d.neo4j != nil {
		pool := d.neo4j.GetPoolStats()
		fmt.Printf("  Pool:     max %d connections\n", pool.MaxPoolSize)
	}
	return nil
}

func runListRuns(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	runs, err := openRuns()
	if err != nil {
		return err
	}
	defer runs.Close()

	list, err := runs.ListRuns(ctx, runsLimit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No expansion runs recorded")
		return nil
	}

	for _, r := range list {
		fmt.Printf("%s  %s  %-9s depth=%d papers=%d edges=%d  %s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Status,
			r.Depth, r.PapersWritten, r.EdgesWritten, r.SeedID)
	}
	return nil
}

func runShowRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	runs, err := openRuns()
	if err != nil {
		return err
	}
	defer runs.Close()

	run, err := runs.GetRun(ctx, args[0])
	if stderrors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no run with id %s", args[0])
	}
	if err != nil {
		return err
	}
	return printJSON(run)
}

func openRuns() (storage.RunStore, error) {
	runs, err := storage.Open(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		return nil, fmt.Errorf("run history is disabled (storage.type is %q)", cfg.Storage.Type)
	}
	return runs, nil
}
