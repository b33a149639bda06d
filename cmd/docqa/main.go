// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/docqa"
	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/router"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "docqa",
		Usage: "Local document question answering over vector stores",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest document files into a store",
				ArgsUsage: "FILE [FILE...]",
				Action:    ingestCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:     "store",
						Aliases:  []string{"s"},
						Usage:    "Target store id",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for each ingestion to complete",
						Value: 5 * time.Minute,
					},
				),
			},
			{
				Name:      "query",
				Usage:     "Ask a question against the indexed documents",
				ArgsUsage: "QUESTION",
				Action:    queryCommand,
				Flags: append(serviceFlags(),
					&cli.StringSliceFlag{
						Name:    "store",
						Aliases: []string{"s"},
						Usage:   "Store id(s) to search; omit to search all stores",
					},
					&cli.StringFlag{
						Name:  "model",
						Usage: "Override the generation model",
					},
					&cli.Float64Flag{
						Name:  "temperature",
						Usage: "Generation temperature in [0, 2]",
						Value: 0.7,
					},
					&cli.IntFlag{
						Name:  "max-results",
						Usage: "Maximum retrieved chunks in [1, 20]",
						Value: 5,
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the answer",
						Value: 2 * time.Minute,
					},
				),
			},
			{
				Name:   "stores",
				Usage:  "List stores and storage statistics",
				Action: storesCommand,
				Flags:  serviceFlags(),
			},
			{
				Name:   "delete",
				Usage:  "Delete a store and its artifacts",
				Action: deleteCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:     "store",
						Aliases:  []string{"s"},
						Usage:    "Store id to delete",
						Required: true,
					},
				),
			},
			{
				Name:   "cleanup",
				Usage:  "Run the retention sweep and report removed stores",
				Action: cleanupCommand,
				Flags: append(serviceFlags(),
					&cli.DurationFlag{
						Name:  "max-age",
						Usage: "Remove stores older than this",
						Value: 7 * 24 * time.Hour,
					},
					&cli.IntFlag{
						Name:  "max-count",
						Usage: "Keep at most this many stores",
						Value: 20,
					},
				),
			},
			{
				Name:   "history",
				Usage:  "Show recent answered queries",
				Action: historyCommand,
				Flags: append(serviceFlags(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of records to show",
						Value: 10,
					},
				),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// serviceFlags returns the flags shared by every command that opens the
// service.
func serviceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "data",
			Aliases:  []string{"d"},
			Usage:    "Path to the data directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "host",
			Usage: "OpenAI-compatible service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "all-minilm",
		},
		&cli.StringFlag{
			Name:  "generation-model",
			Usage: "Generation model name",
			Value: "mistral",
		},
	}
}

func openService(c *cli.Context, opts ...docqa.ServiceOption) (*docqa.Service, error) {
	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithGenerationModel(c.String("generation-model")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	opts = append([]docqa.ServiceOption{docqa.WithAIConfig(aiConfig)}, opts...)
	return docqa.NewService(c.String("data"), opts...)
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file argument is required")
	}

	service, err := openService(c)
	if err != nil {
		return err
	}
	defer service.Close()

	storeID := c.String("store")
	timeout := c.Duration("timeout")

	for _, path := range c.Args().Slice() {
		id, err := service.SubmitIngestFile(storeID, path)
		if err != nil {
			return fmt.Errorf("failed to submit %s: %w", path, err)
		}

		snap, err := service.Await(context.Background(), id, timeout)
		if err != nil {
			return fmt.Errorf("ingestion of %s failed: %w", path, err)
		}

		result := snap.Result.(docqa.IngestResult)
		fmt.Fprintf(os.Stderr, "Ingested %s into %s (%d chunks)\n", result.Source, result.StoreID, result.Chunks)

		if err := service.Ack(id); err != nil {
			return err
		}
	}
	return nil
}

func queryCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one question argument is required")
	}

	service, err := openService(c)
	if err != nil {
		return err
	}
	defer service.Close()

	id, err := service.SubmitQuery(router.QueryRequest{
		Question:    c.Args().First(),
		StoreIDs:    c.StringSlice("store"),
		Model:       c.String("model"),
		Temperature: c.Float64("temperature"),
		MaxResults:  c.Int("max-results"),
		OnToken: func(token string) {
			fmt.Print(token)
		},
	})
	if err != nil {
		return err
	}

	snap, err := service.Await(context.Background(), id, c.Duration("timeout"))
	if err != nil {
		return err
	}
	fmt.Println()

	result := snap.Result.(*router.QueryResult)
	fmt.Fprintf(os.Stderr, "\nIntent: %s (confidence %.2f), model %s, %s\n",
		result.Intent, result.Confidence, displayModel(result.Model, c.String("generation-model")), result.Elapsed.Round(time.Millisecond))
	for _, source := range result.Sources {
		fmt.Fprintf(os.Stderr, "  %.3f %s\n", source.Score, source.Source)
	}

	return service.Ack(id)
}

func displayModel(requested, fallback string) string {
	if requested != "" {
		return requested
	}
	return fallback
}

func storesCommand(c *cli.Context) error {
	service, err := openService(c, docqa.WithoutHistory())
	if err != nil {
		return err
	}
	defer service.Close()

	infos, err := service.Stores().List()
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Printf("%-24s %6d chunks %10d bytes created %s\n",
			info.StoreID, info.ChunkCount, info.SizeBytes, info.CreatedAt.Format(time.RFC3339))
	}

	stats, err := service.Stores().Stats()
	if err != nil {
		return err
	}
	fmt.Printf("\n%d stores, %d bytes total\n", stats.StoreCount, stats.TotalSizeBytes)
	return nil
}

func deleteCommand(c *cli.Context) error {
	service, err := openService(c, docqa.WithoutHistory())
	if err != nil {
		return err
	}
	defer service.Close()

	storeID := c.String("store")
	if err := service.Stores().Delete(storeID); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Deleted store %s\n", storeID)
	return nil
}

func cleanupCommand(c *cli.Context) error {
	service, err := openService(c,
		docqa.WithoutHistory(),
		docqa.WithRetention(c.Duration("max-age"), c.Int("max-count")),
	)
	if err != nil {
		return err
	}
	defer service.Close()

	removed, err := service.RunRetentionCleanup()
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to remove")
		return nil
	}
	for _, storeID := range removed {
		fmt.Println(storeID)
	}
	return nil
}

func historyCommand(c *cli.Context) error {
	service, err := openService(c)
	if err != nil {
		return err
	}
	defer service.Close()

	repo := service.History()
	if repo == nil {
		return fmt.Errorf("history log is disabled")
	}

	records, err := repo.Recent(context.Background(), c.Int("limit"))
	if err != nil {
		return err
	}
	for _, record := range records {
		fmt.Printf("[%s] %s\n", record.CreatedAt.Format(time.RFC3339), record.Question)
		fmt.Printf("    %s\n", firstLine(record.Answer))
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
