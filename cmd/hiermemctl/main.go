// Command hiermemctl is an administrative CLI over the memory engine: it
// creates and inspects sessions, drives the medical bulk-deletion flow,
// restores sessions across process restarts, and can run the background
// compression scheduler against a live data root.
//
// Every invocation constructs its own, empty Manager, so commands other
// than serve never rely on in-memory session state surviving between
// runs: session listing and lookup walk the on-disk meta.json files, and
// inspecting a session's contents restores it from its snapshot first.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	hiermem "github.com/Hirogarden/AuraNexus"
	"github.com/Hirogarden/AuraNexus/config"
	"github.com/Hirogarden/AuraNexus/log"
	"github.com/Hirogarden/AuraNexus/providers/openai"
	"github.com/Hirogarden/AuraNexus/scheduler"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "create":
		err = runCreate(args)
	case "list":
		err = runList(args)
	case "stats":
		err = runStats(args)
	case "delete":
		err = runDelete(args)
	case "delete-all-medical":
		err = runDeleteAllMedical(args)
	case "restore":
		err = runRestore(args)
	case "fork":
		err = runFork(args)
	case "serve":
		err = runServe(args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		errorStyle.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`hiermemctl - administrative CLI for the hierarchical memory engine

Usage:
  hiermemctl create [--id ID] --type TYPE [--passphrase PASS] [--data-root DIR]
  hiermemctl list [--data-root DIR]
  hiermemctl stats --id ID [--passphrase PASS] [--data-root DIR]
  hiermemctl delete --id ID [--data-root DIR]
  hiermemctl delete-all-medical --confirm TOKEN [--data-root DIR]
  hiermemctl restore --id ID [--passphrase PASS] [--data-root DIR]
  hiermemctl fork --id ID --new-id NEWID [--passphrase PASS] [--data-root DIR]
  hiermemctl serve [--data-root DIR] [--config PATH]

If --id is omitted, create generates a random session id.

Project types: medical_peer, medical_assistant, storytelling, general_chat, general_assistant`)
}

func dataRootFlag(fs *flag.FlagSet) *string {
	return fs.String("data-root", "./data", "engine data root directory")
}

func newManager(dataRoot string) (*hiermem.Manager, error) {
	cfg := config.Default()
	cfg.DataRoot = dataRoot
	if err := os.MkdirAll(cfg.DataRoot, 0o700); err != nil {
		return nil, fmt.Errorf("creating data root: %w", err)
	}
	return hiermem.NewManager(cfg.DataRoot, cfg.EmbeddingDimension,
		hiermem.WithCompressionBatchSize(cfg.CompressionBatch),
		hiermem.WithBackpressureBound(cfg.BackpressureBound),
	), nil
}

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	id := fs.String("id", "", "session id")
	projectType := fs.String("type", "", "project type")
	passphrase := fs.String("passphrase", "", "encryption passphrase (required for medical types)")
	dataRoot := dataRootFlag(fs)
	fs.Parse(args)

	m, err := newManager(*dataRoot)
	if err != nil {
		return err
	}
	if *id == "" {
		*id = uuid.NewString()
	}
	session, err := m.CreateSession(*id, hiermem.ProjectType(*projectType), *passphrase)
	if err != nil {
		return err
	}
	if err := m.Checkpoint(session.ID()); err != nil {
		return err
	}
	successStyle.Printf("created session %q (%s)\n", session.ID(), session.ProjectType())
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	dataRoot := dataRootFlag(fs)
	fs.Parse(args)

	m, err := newManager(*dataRoot)
	if err != nil {
		return err
	}
	sessions, err := m.DiscoverSessions()
	if err != nil {
		return err
	}

	header := []string{"ID", "TYPE", "ENCRYPTED"}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			s.ID, string(s.ProjectType), fmt.Sprintf("%v", s.Encrypted),
		})
	}
	printTable(header, rows)
	return nil
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	id := fs.String("id", "", "session id")
	passphrase := fs.String("passphrase", "", "encryption passphrase (required for medical types)")
	dataRoot := dataRootFlag(fs)
	fs.Parse(args)

	m, err := newManager(*dataRoot)
	if err != nil {
		return err
	}
	projectType, _, err := m.SessionMeta(*id)
	if err != nil {
		return err
	}
	session, err := m.Restore(*id, projectType, *passphrase)
	if err != nil {
		return err
	}
	stats := session.Stats()

	header := []string{"LAYER", "COUNT"}
	rows := [][]string{
		{"active", fmt.Sprint(stats.Counts[hiermem.LayerActive])},
		{"short_term", fmt.Sprint(stats.Counts[hiermem.LayerShortTerm])},
		{"medium_term", fmt.Sprint(stats.Counts[hiermem.LayerMediumTerm])},
		{"long_term", fmt.Sprint(stats.Counts[hiermem.LayerLongTerm])},
		{"archived", fmt.Sprint(stats.Counts[hiermem.LayerArchived])},
		{"bookmarks", fmt.Sprint(stats.BookmarkCount)},
		{"compression_queue", fmt.Sprint(stats.CompressionQueueDepth)},
		{"dead_letter", fmt.Sprint(stats.DeadLetterDepth)},
		{"behind", fmt.Sprint(stats.Behind)},
		{"quarantined", fmt.Sprint(stats.Quarantined)},
		{"token_usage_total", fmt.Sprint(stats.TokenUsage.TotalTokens)},
	}
	printTable(header, rows)
	return nil
}

func runDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.String("id", "", "session id")
	dataRoot := dataRootFlag(fs)
	fs.Parse(args)

	m, err := newManager(*dataRoot)
	if err != nil {
		return err
	}
	if err := m.PurgeSession(*id); err != nil {
		return err
	}
	successStyle.Printf("deleted session %q\n", *id)
	return nil
}

func runDeleteAllMedical(args []string) error {
	fs := flag.NewFlagSet("delete-all-medical", flag.ExitOnError)
	confirm := fs.String("confirm", "", "confirmation token")
	dataRoot := dataRootFlag(fs)
	fs.Parse(args)

	m, err := newManager(*dataRoot)
	if err != nil {
		return err
	}
	if err := m.PurgeAllMedical(*confirm); err != nil {
		return err
	}
	successStyle.Println("all medical sessions destroyed")
	return nil
}

func runRestore(args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	id := fs.String("id", "", "session id")
	passphrase := fs.String("passphrase", "", "encryption passphrase (required for medical types)")
	dataRoot := dataRootFlag(fs)
	fs.Parse(args)

	m, err := newManager(*dataRoot)
	if err != nil {
		return err
	}
	projectType, _, err := m.SessionMeta(*id)
	if err != nil {
		return err
	}
	session, err := m.Restore(*id, projectType, *passphrase)
	if err != nil {
		return err
	}
	successStyle.Printf("restored session %q with %d active messages\n", session.ID(), session.Stats().Counts[hiermem.LayerActive])
	return nil
}

func runFork(args []string) error {
	fs := flag.NewFlagSet("fork", flag.ExitOnError)
	id := fs.String("id", "", "source session id")
	newID := fs.String("new-id", "", "id for the forked session")
	passphrase := fs.String("passphrase", "", "encryption passphrase (required to fork a medical session)")
	dataRoot := dataRootFlag(fs)
	fs.Parse(args)

	m, err := newManager(*dataRoot)
	if err != nil {
		return err
	}
	projectType, _, err := m.SessionMeta(*id)
	if err != nil {
		return err
	}
	if _, err := m.Restore(*id, projectType, *passphrase); err != nil {
		return err
	}
	fork, err := m.ForkSession(*id, *newID, *passphrase)
	if err != nil {
		return err
	}
	successStyle.Printf("forked session %q into %q\n", *id, fork.ID())
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	dataRoot := dataRootFlag(fs)
	configPath := fs.String("config", "", "path to a YAML config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dataRoot != "" {
		cfg.DataRoot = *dataRoot
	}
	if err := os.MkdirAll(cfg.DataRoot, 0o700); err != nil {
		return fmt.Errorf("creating data root: %w", err)
	}

	logger := log.New(log.LevelFromString(cfg.LogLevel))
	m := hiermem.NewManager(cfg.DataRoot, cfg.EmbeddingDimension,
		hiermem.WithCompressionBatchSize(cfg.CompressionBatch),
		hiermem.WithBackpressureBound(cfg.BackpressureBound),
	)
	provider := openai.New()

	sched := scheduler.New(m, provider, provider, scheduler.Config{
		TickInterval:      cfg.TickInterval(),
		IdleThreshold:     cfg.IdleThreshold(),
		LongIdleThreshold: cfg.LongIdleThreshold(),
		MaxRetries:        cfg.Scheduler.MaxRetries,
		RetryBaseWait:     cfg.RetryBaseWait(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithLogger(ctx, logger)

	sched.Start(ctx)
	logger.Info("compression scheduler started", "data_root", cfg.DataRoot)

	<-ctx.Done()
	logger.Info("shutting down, checkpointing sessions")
	sched.Stop()
	if err := m.CheckpointAll(); err != nil {
		logger.Warn("checkpoint on shutdown failed", "error", err)
	}
	return nil
}
