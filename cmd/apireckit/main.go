package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/doujins-org/apireckit"
	"github.com/doujins-org/apireckit/chart"
	"github.com/doujins-org/apireckit/dataset"
	"github.com/doujins-org/apireckit/encoder"
	"github.com/doujins-org/apireckit/internal/config"
	"github.com/doujins-org/apireckit/llm"
	"github.com/doujins-org/apireckit/migrate"
	"github.com/doujins-org/apireckit/pg"
	"github.com/doujins-org/apireckit/worker"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "apireckit",
		Short: "API-recommendation research toolkit",
		Long: `apireckit recommends Java APIs for programming questions and scores
recommendation runs against gold answers (MRR, MAP, Success@k, Precision@k,
Recall@k, NDCG@k, BLEU).

Run 'apireckit eval' to score a run file against a dataset.
Run 'apireckit --help' for available commands.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")

	rootCmd.AddCommand(
		evalCmd(),
		recommendCmd(),
		backfillCmd(),
		workerCmd(),
		migrateCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func evalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval --dataset <name> --runs <file>",
		Short: "Score a recommendation run against a dataset's gold answers",
		Long: `Score a run file against a dataset. The run file has one line per dataset
record, in record order: a comma-separated ranked candidate list, best first.
Blank lines mean "no candidates".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			name, _ := cmd.Flags().GetString("dataset")
			runsPath, _ := cmd.Flags().GetString("runs")
			ks, _ := cmd.Flags().GetIntSlice("k")
			svgPath, _ := cmd.Flags().GetString("svg")

			ds, err := loadDataset(cfg, name)
			if err != nil {
				return err
			}

			runs, err := readRuns(runsPath)
			if err != nil {
				return err
			}

			mk, err := apireckit.Evaluate(ds, runs, ks)
			if err != nil {
				return err
			}

			fmt.Printf("dataset: %s (%d questions)\n", ds.Name(), ds.Len())
			fmt.Printf("MRR:  %.4f\n", mk.MRR)
			fmt.Printf("MAP:  %.4f\n", mk.MAP)
			fmt.Printf("BLEU: %.4f\n", mk.BLEU)
			for _, k := range distinct(mk.Ks) {
				fmt.Printf("@%d:  success=%.4f precision=%.4f recall=%.4f ndcg=%.4f\n",
					k, mk.Success[k], mk.Precision[k], mk.Recall[k], mk.NDCG[k])
			}

			if svgPath != "" {
				svg, err := chart.RenderSVG(chart.SeriesFromMultiK(mk), chart.Options{
					Title: fmt.Sprintf("%s metrics", ds.Name()),
				})
				if err != nil {
					return err
				}
				if err := os.WriteFile(svgPath, svg, 0o644); err != nil {
					return fmt.Errorf("write chart: %w", err)
				}
				fmt.Printf("chart: %s\n", svgPath)
			}
			return nil
		},
	}

	cmd.Flags().String("dataset", "", "dataset name from config")
	cmd.Flags().String("runs", "", "run file path")
	cmd.Flags().IntSlice("k", []int{1, 3, 5, 10}, "cutoffs to report")
	cmd.Flags().String("svg", "", "write a metric@k chart to this SVG file")
	_ = cmd.MarkFlagRequired("dataset")
	_ = cmd.MarkFlagRequired("runs")
	return cmd
}

func recommendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recommend <question>",
		Short: "Recommend APIs for one programming question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := cfg.NewLogger()
			ctx := cmd.Context()

			pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			tk, err := buildToolkit(cfg, pool)
			if err != nil {
				return err
			}

			useLLM, _ := cmd.Flags().GetBool("llm")
			rec, err := tk.Recommend(ctx, apireckit.RecommendRequest{
				Question:      args[0],
				Neighbors:     cfg.Search.Neighbors,
				TopK:          cfg.Search.TopK,
				RRFK:          cfg.Search.RRFK,
				MinSimilarity: cfg.Search.MinSimilarity,
				UseLLM:        useLLM || cfg.Search.UseLLM,
			})
			if err != nil {
				return err
			}

			logger.Debug("retrieved neighbors", "count", len(rec.Neighbors))
			for i, api := range rec.APIs {
				fmt.Printf("%2d. %-60s %.4f\n", i+1, api.Name, api.Score)
			}
			return nil
		},
	}
	cmd.Flags().Bool("llm", false, "also consult the chat model and fuse its suggestions")
	return cmd
}

func backfillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Enqueue embedding tasks for questions without stored vectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			tk, err := buildToolkit(cfg, pool)
			if err != nil {
				return err
			}

			total := 0
			for name := range cfg.Datasets {
				n, err := tk.EnqueueMissing(ctx, name, "backfill")
				if err != nil {
					return err
				}
				total += n
			}
			fmt.Printf("enqueued %d embedding tasks\n", total)
			return nil
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the embedding worker until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := cfg.NewLogger()
			ctx := cmd.Context()

			pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			tk, err := buildToolkit(cfg, pool)
			if err != nil {
				return err
			}

			datasets, err := loadDatasets(cfg)
			if err != nil {
				return err
			}
			enc, err := buildEncoder(cfg)
			if err != nil {
				return err
			}

			w, err := worker.New(worker.Options{
				Repo:        tk.TaskRepo(),
				Store:       tk.Store(),
				Encoder:     enc,
				Datasets:    datasets,
				Logger:      logger,
				BatchSize:   cfg.Worker.BatchSize,
				LockAhead:   time.Duration(cfg.Worker.LockAheadSecs) * time.Second,
				PollEvery:   time.Duration(cfg.Worker.PollSecs) * time.Second,
				MaxAttempts: cfg.Worker.MaxAttempts,
			})
			if err != nil {
				return err
			}

			logger.Info("worker starting", "model", enc.Model(), "batch", cfg.Worker.BatchSize)
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			if err := migrate.ApplyPostgres(ctx, pool, cfg.Postgres.Schema); err != nil {
				return err
			}

			models := []pg.ModelSpec{{Name: cfg.Embedding.Model, Dims: cfg.Embedding.Dimensions}}
			if err := pg.UpsertModels(ctx, pool, cfg.Postgres.Schema, models); err != nil {
				return fmt.Errorf("sync embedding models: %w", err)
			}
			if err := pg.EnsureIndexesForModels(ctx, pool, cfg.Postgres.Schema, models); err != nil {
				return fmt.Errorf("ensure model indexes: %w", err)
			}

			fmt.Printf("migrations applied to schema %s\n", cfg.Postgres.Schema)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("apireckit %s (%s)\n", version, commit)
		},
	}
}

func buildToolkit(cfg *config.Config, pool *pgxpool.Pool) (*apireckit.Toolkit, error) {
	datasets, err := loadDatasets(cfg)
	if err != nil {
		return nil, err
	}
	enc, err := buildEncoder(cfg)
	if err != nil {
		return nil, err
	}

	var chat *llm.Client
	if cfg.LLM.Model != "" && cfg.LLM.APIKey != "" {
		chat, err = llm.New(llm.Config{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Timeout:     cfg.LLMTimeout(),
			MaxRetries:  cfg.LLM.MaxRetries,
			Temperature: cfg.LLM.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("llm client: %w", err)
		}
	}

	return apireckit.New(apireckit.Options{
		Pool:     pool,
		Schema:   cfg.Postgres.Schema,
		Encoder:  enc,
		Datasets: datasets,
		LLM:      chat,
		Logger:   cfg.NewLogger(),
	})
}

func buildEncoder(cfg *config.Config) (*encoder.OpenAICompatibleEncoder, error) {
	return encoder.NewOpenAICompatible(encoder.OpenAICompatibleConfig{
		BaseURL:       cfg.Embedding.BaseURL,
		APIKey:        cfg.Embedding.APIKey,
		Model:         cfg.Embedding.Model,
		Dimensions:    cfg.Embedding.Dimensions,
		Timeout:       cfg.EmbeddingTimeout(),
		BatchSize:     cfg.Embedding.BatchSize,
		MaxConcurrent: cfg.Embedding.MaxConcurrent,
	})
}

func loadDatasets(cfg *config.Config) (map[string]*dataset.Dataset, error) {
	if len(cfg.Datasets) == 0 {
		return nil, fmt.Errorf("no datasets configured")
	}
	out := make(map[string]*dataset.Dataset, len(cfg.Datasets))
	for name, path := range cfg.Datasets {
		ds, err := dataset.Load(name, path)
		if err != nil {
			return nil, err
		}
		out[name] = ds
	}
	return out, nil
}

func loadDataset(cfg *config.Config, name string) (*dataset.Dataset, error) {
	path, ok := cfg.Datasets[name]
	if !ok {
		return nil, fmt.Errorf("dataset %q not in config (have: %s)", name, strings.Join(datasetNames(cfg), ", "))
	}
	return dataset.Load(name, path)
}

func datasetNames(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Datasets))
	for name := range cfg.Datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// readRuns parses a run file: one line per dataset record, comma-separated
// ranked candidates, best first. Blank lines mean no candidates.
func readRuns(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open run file: %w", err)
	}
	defer f.Close()

	var runs [][]string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			runs = append(runs, nil)
			continue
		}
		var candidates []string
		for _, c := range strings.Split(line, ",") {
			if c = strings.TrimSpace(c); c != "" {
				candidates = append(candidates, c)
			}
		}
		runs = append(runs, candidates)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read run file: %w", err)
	}
	return runs, nil
}

func distinct(ks []int) []int {
	seen := make(map[int]struct{}, len(ks))
	out := make([]int, 0, len(ks))
	for _, k := range ks {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
