package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/sourcegraph/conc/pool"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/vectra"
	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/ingestion"
	"github.com/poiesic/vectra/server"
)

var errIngestFailures = errors.New("some documents failed to ingest")

func openEngine(ctx context.Context, c *cli.Context) (*vectra.Engine, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	engine, err := vectra.NewEngine(ctx, cfg, vectra.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}
	return engine, nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer engine.Close()

	gin.SetMode(gin.ReleaseMode)
	srv, err := server.New(engine,
		server.WithLogger(slog.Default()),
		server.WithGatherer(engine.Registry()),
	)
	if err != nil {
		return err
	}
	return srv.Run(ctx, engine.Config().Server.Addr())
}

func queryCommand(c *cli.Context) error {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return fmt.Errorf("query text is required")
	}
	filters, err := parsePairs(c.StringSlice("filter"))
	if err != nil {
		return fmt.Errorf("invalid filter: %w", err)
	}

	ctx := c.Context
	engine, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer engine.Close()

	result, err := engine.Query(ctx, core.QueryRequest{
		Text:    text,
		Mode:    core.QueryMode(strings.ToLower(c.String("mode"))),
		Limit:   c.Int("limit"),
		Filters: filters,
	})
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResult(c.App.Writer, result)
	return nil
}

func printResult(w io.Writer, result *core.HybridQueryResult) {
	header := color.New(color.Bold)
	score := color.New(color.FgGreen)
	source := color.New(color.FgCyan)

	header.Fprintf(w, "Found %d results for %q (%s, %.1fms)\n",
		result.TotalResults, result.Query, result.Mode, result.ExecutionTimeMs)
	if result.Partial {
		for _, f := range result.Failures {
			color.New(color.FgYellow).Fprintf(w, "partial: %s retriever failed (%s)\n", f.Source, f.Cause)
		}
	}
	for i, item := range result.Items {
		fmt.Fprintf(w, "%d: ", i+1)
		score.Fprintf(w, "[%0.4f] ", item.FusedScore)
		source.Fprintf(w, "%-8s ", item.Source)
		if name, ok := item.Metadata[ingestion.MetaFileName]; ok {
			fmt.Fprintf(w, "%v ", name)
		}
		fmt.Fprintf(w, "'%s'\n", snippet(item.Content, 120))
	}
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

func ingestCommand(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("at least one file is required")
	}
	if c.Int("report-interval") <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	meta, err := parsePairs(c.StringSlice("meta"))
	if err != nil {
		return fmt.Errorf("invalid metadata: %w", err)
	}

	docs := make([]core.Document, 0, len(paths))
	for _, path := range paths {
		doc, err := readDocument(path, meta)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer engine.Close()

	out := c.App.ErrWriter
	fmt.Fprintf(out, "Documents: %d\n", len(docs))
	fmt.Fprintf(out, "Vector store: %s\n", engine.Config().Storage.VectorBackend)
	fmt.Fprintf(out, "Graph store: %s\n", engine.Config().Storage.GraphBackend)
	fmt.Fprintln(out)

	tracker := ingestion.NewProgressTracker(out, len(docs), c.Int("report-interval"))
	tracker.Start()

	p := pool.New().WithErrors().WithContext(ctx)
	for _, doc := range docs {
		p.Go(func(ctx context.Context) error {
			id, err := engine.Submit(ctx, doc)
			if err != nil {
				tracker.Observe(ingestion.TaskStatus{State: ingestion.TaskFailure})
				return fmt.Errorf("%s: %w", doc.Name, err)
			}
			status, err := engine.WaitTask(ctx, id)
			if err != nil {
				return fmt.Errorf("%s: %w", doc.Name, err)
			}
			tracker.Observe(status)
			if status.State == ingestion.TaskFailure {
				return fmt.Errorf("%s: %s", doc.Name, status.Error)
			}
			return nil
		})
	}
	err = p.Wait()
	tracker.Finish()

	if err != nil {
		slog.Error("ingestion finished with errors", "failed", tracker.Failed(), "err", err)
		return fmt.Errorf("%w: %d of %d", errIngestFailures, tracker.Failed(), len(docs))
	}
	fmt.Fprintf(out, "Ingested %d documents in %s\n", len(docs), tracker.Elapsed().Round(time.Millisecond))
	return nil
}

// readDocument loads a UTF-8 text file as a document named by its base name.
func readDocument(path string, meta map[string]string) (core.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return core.Document{}, fmt.Errorf("%s is not valid UTF-8 text", path)
	}
	metadata := make(core.Metadata, len(meta))
	for k, v := range meta {
		metadata[k] = v
	}
	return core.Document{
		Name:     filepath.Base(path),
		Content:  string(data),
		Metadata: metadata,
	}, nil
}
