package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/zombar/monitorclient/internal/database"
	"github.com/zombar/monitorclient/internal/metrics"
	"github.com/zombar/monitorclient/internal/models"
	"github.com/zombar/monitorclient/internal/queue"
	"github.com/zombar/monitorclient/internal/server"
)

func newBatchCmd(a *app) *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Queue requests and process them in the background",
	}
	batchCmd.AddCommand(newBatchEnqueueCmd(a))
	batchCmd.AddCommand(newBatchWorkerCmd(a))
	batchCmd.AddCommand(newBatchResultsCmd(a))
	return batchCmd
}

func newBatchEnqueueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue text, image and URL jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			texts, images, urls, err := readJobFlags(cmd.Flags())
			if err != nil {
				return err
			}
			if len(texts)+len(images)+len(urls) == 0 {
				return errors.New("nothing to enqueue: use --text, --image or --url")
			}

			client := queue.NewClient(queue.ClientConfig{
				RedisAddr:   a.cfg.Batch.RedisAddr,
				TaskTimeout: a.cfg.Batch.TaskTimeout,
			})
			defer client.Close()

			return enqueueAll(cmd.Context(), client, cmd.OutOrStdout(), texts, images, urls)
		},
	}
	cmd.Flags().StringArray("text", nil, "text to analyze (repeatable)")
	cmd.Flags().StringArray("image", nil, "image file to analyze (repeatable)")
	cmd.Flags().StringArray("url", nil, "page URL to parse (repeatable)")
	return cmd
}

// readJobFlags returns the --text, --image and --url values of batch enqueue
func readJobFlags(flags *pflag.FlagSet) (texts, images, urls []string, err error) {
	texts, err = flags.GetStringArray("text")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read --text: %w", err)
	}
	images, err = flags.GetStringArray("image")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read --image: %w", err)
	}
	urls, err = flags.GetStringArray("url")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read --url: %w", err)
	}
	return texts, images, urls, nil
}

// jobEnqueuer is the part of *queue.Client used by batch enqueue
type jobEnqueuer interface {
	EnqueueText(ctx context.Context, text string) (string, error)
	EnqueueImageFile(ctx context.Context, path string) (string, error)
	EnqueueURL(ctx context.Context, pageURL string) (string, error)
}

// enqueueAll queues every job and prints one "kind<TAB>job id" line per job
func enqueueAll(ctx context.Context, q jobEnqueuer, w io.Writer, texts, images, urls []string) error {
	type job struct {
		kind string
		arg  string
		fn   func(context.Context, string) (string, error)
	}
	var jobs []job
	for _, t := range texts {
		jobs = append(jobs, job{models.KindText, t, q.EnqueueText})
	}
	for _, p := range images {
		jobs = append(jobs, job{models.KindImage, p, q.EnqueueImageFile})
	}
	for _, u := range urls {
		jobs = append(jobs, job{models.KindParse, u, q.EnqueueURL})
	}

	for _, j := range jobs {
		id, err := j.fn(ctx, j.arg)
		if err != nil {
			return fmt.Errorf("failed to enqueue %s job: %w", j.kind, err)
		}
		fmt.Fprintf(w, "%s\t%s\n", j.kind, id)
	}
	return nil
}

func newBatchWorkerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process queued jobs and serve the status API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := a.logger

			db, err := openJournal(a.cfg.Batch.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			a.registry.MustRegister(collectors.NewDBStatsCollector(db.Conn(), "journal"))
			batchMetrics := metrics.NewBatchMetrics(metricsNamespace, a.registry)

			worker := queue.NewWorker(queue.WorkerConfig{
				RedisAddr:   a.cfg.Batch.RedisAddr,
				Concurrency: a.cfg.Batch.Concurrency,
				Logger:      logger,
				Metrics:     batchMetrics,
			}, db, a.client)

			var srv *http.Server
			if addr := a.cfg.Batch.StatusAddr; addr != "" {
				srv = &http.Server{
					Addr:         addr,
					Handler:      server.NewHandler(db, a.registry, logger),
					ReadTimeout:  30 * time.Second,
					WriteTimeout: 30 * time.Second,
					IdleTimeout:  120 * time.Second,
				}
				go func() {
					logger.Info("status server starting", "addr", addr, "database", a.cfg.Batch.DBPath)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("status server failed", "error", err)
					}
				}()
			}

			// Run blocks until SIGINT or SIGTERM
			runErr := worker.Start()

			if srv != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					logger.Error("status server forced to shutdown", "error", err)
				}
			}
			logger.Info("worker stopped")
			return runErr
		},
	}
}

func newBatchResultsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Print recorded batch results, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, id, err := readResultsFlags(cmd.Flags())
			if err != nil {
				return err
			}

			db, err := openJournal(a.cfg.Batch.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			w := cmd.OutOrStdout()
			if id != "" {
				r, err := db.GetResult(id)
				if err != nil {
					return err
				}
				printResult(w, r)
				return nil
			}

			results, err := db.ListResults(limit, 0)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(w, "Результатов нет.")
				return nil
			}
			for i, r := range results {
				if i > 0 {
					fmt.Fprintln(w)
				}
				printResult(w, r)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "number of results to print")
	cmd.Flags().String("id", "", "print only the result with this job id")
	return cmd
}

// readResultsFlags returns the --limit and --id values of batch results
func readResultsFlags(flags *pflag.FlagSet) (int, string, error) {
	limit, err := flags.GetInt("limit")
	if err != nil {
		return 0, "", fmt.Errorf("failed to read --limit: %w", err)
	}
	id, err := flags.GetString("id")
	if err != nil {
		return 0, "", fmt.Errorf("failed to read --id: %w", err)
	}
	return limit, id, nil
}

func openJournal(path string) (*database.DB, error) {
	db, err := database.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return db, nil
}

// printResult writes a header line followed by the rendered output
func printResult(w io.Writer, r *models.BatchResult) {
	fmt.Fprintf(w, "%s  %s  %s  %s\n", r.ID, r.Kind, r.Status, r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "> %s\n", r.Input)
	fmt.Fprintln(w, strings.TrimRight(r.Output, "\n"))
}
