package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ldi/taskboard/internal/board"
	"github.com/ldi/taskboard/internal/config"
	"github.com/ldi/taskboard/internal/mcp"
	"github.com/ldi/taskboard/internal/registry"
	"github.com/ldi/taskboard/internal/server"
	"github.com/ldi/taskboard/internal/storage"
	"github.com/ldi/taskboard/internal/tasks"
	"github.com/ldi/taskboard/internal/ui"
	"github.com/ldi/taskboard/pkg/models"
	log "github.com/sirupsen/logrus"
)

var (
	projectDir   string
	backend      string
	dbPath       string
	snapshotPath string
	logLevel     string
	verbose      bool

	out io.Writer = os.Stdout
)

func main() {
	flag.StringVar(&projectDir, "dir", ".", "Project directory containing .taskboard/")
	flag.StringVar(&backend, "backend", "", "Storage backend (sqlite, file, redis); overrides config")
	flag.StringVar(&dbPath, "db-path", "", "Path to database file; overrides config")
	flag.StringVar(&snapshotPath, "snapshot-path", "", "Export a JSON snapshot here after every change; overrides config")
	flag.StringVar(&logLevel, "log-level", "", "Log level; overrides config")
	flag.BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	flag.Parse()

	var command string
	var args []string

	if flag.NArg() == 0 {
		selected, err := ui.RunMenu()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error running menu: %v\n", err)
			os.Exit(1)
		}
		if selected == "" {
			os.Exit(0)
		}
		command = selected
		args = []string{}
	} else {
		command = flag.Arg(0)
		args = flag.Args()[1:]
	}

	if err := run(command, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	switch command {
	case "init":
		return runInit(args)
	case "board":
		return runBoard(args)
	case "web":
		return runWeb(args)
	case "mcp":
		return runMCP(args)
	case "list":
		return runList(args)
	case "add":
		return runAdd(args)
	case "move":
		return runMove(args)
	case "delete":
		return runDelete(args)
	case "status":
		return runStatus(args)
	case "export":
		return runExport(args)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(projectDir)
	if err != nil {
		return nil, err
	}
	if backend != "" {
		cfg.Backend = backend
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if snapshotPath != "" {
		cfg.SnapshotPath = snapshotPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *log.Logger {
	logger := log.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(cfg.Level())
	return logger
}

// app bundles everything a command needs.
type app struct {
	cfg   *config.Config
	log   *log.Logger
	store storage.Store
	repo  *tasks.Repository
	svc   *board.Service
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("Error closing store")
	}
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	store, err := cfg.OpenStore(ctx, projectDir)
	if err != nil {
		return nil, err
	}

	repo := tasks.Open(ctx, store, cfg.SlotKey, logger)
	if cfg.SnapshotPath != "" {
		repo.EnableAutoSnapshot(resolvePath(cfg.SnapshotPath))
	}

	return &app{
		cfg:   cfg,
		log:   logger,
		store: store,
		repo:  repo,
		svc:   board.NewDefaultService(repo),
	}, nil
}

func resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectDir, path)
}

func runInit(args []string) error {
	if len(args) > 0 {
		projectDir = args[0]
	}

	boardDir := filepath.Join(projectDir, config.Dir)
	if err := os.MkdirAll(boardDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", config.Dir, err)
	}
	fmt.Fprintf(out, "✓ Created %s/ directory\n", config.Dir)

	gitignorePath := filepath.Join(boardDir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte("taskboard.db*\nslots/\n*.log\n"), 0644); err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}
	fmt.Fprintf(out, "✓ Created %s/.gitignore\n", config.Dir)

	configPath := config.ConfigPath(projectDir)
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := config.WriteDefault(configPath); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Fprintf(out, "✓ Created %s/config.yaml\n", config.Dir)
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	fmt.Fprintf(out, "✓ Opened %s storage\n", a.cfg.Backend)

	// A committed snapshot seeds a fresh board.
	if a.cfg.SnapshotPath != "" && len(a.repo.List()) == 0 {
		path := resolvePath(a.cfg.SnapshotPath)
		if _, err := os.Stat(path); err == nil {
			n, err := a.repo.ImportSnapshot(ctx, path)
			if err != nil {
				return fmt.Errorf("failed to import snapshot: %w", err)
			}
			fmt.Fprintf(out, "✓ Imported %d tasks from %s\n", n, path)
		}
	}

	fmt.Fprintln(out, "✓ Task board initialized successfully")
	return nil
}

func runBoard(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// The terminal belongs to the board; keep logs out of it.
	logPath := filepath.Join(projectDir, config.Dir, "taskboard.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	a.log.SetOutput(logFile)

	return ui.RunBoard(ctx, a.svc)
}

func runWeb(args []string) error {
	webFlags := flag.NewFlagSet("web", flag.ContinueOnError)
	port := webFlags.String("port", "", "Port to listen on; overrides config")
	if err := webFlags.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	listenPort := a.cfg.Port
	if *port != "" {
		listenPort = *port
	}

	srv := server.NewServer(a.svc, a.log)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Start(fmt.Sprintf(":%s", listenPort)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runMCP(args []string) error {
	a, err := openApp(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	s := mcp.NewServer(a.svc)
	return mcp.Serve(s)
}

func runList(args []string) error {
	listFlags := flag.NewFlagSet("list", flag.ContinueOnError)
	status := listFlags.String("status", "ALL", "Status filter (ALL, TODO, IN_PROGRESS, DONE)")
	priority := listFlags.String("priority", "ALL", "Priority filter (ALL, HIGH, MEDIUM, LOW)")
	assignee := listFlags.String("assignee", registry.AllAssignees, "Assignee id or ALL")
	search := listFlags.String("search", "", "Title search")
	if err := listFlags.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	for field, value := range map[string]string{"status": *status, "priority": *priority, "search": *search} {
		if err := a.svc.SetFilter(ctx, field, value); err != nil {
			return err
		}
	}
	a.svc.SelectAssignee(ctx, *assignee)

	cols := a.svc.ListTasksByColumn()
	for i, st := range models.Statuses {
		if i > 0 {
			fmt.Fprintln(out)
		}
		column := cols.Column(st)
		fmt.Fprintf(out, "%s (%d)\n", strings.ToUpper(st.Label()), len(column))
		fmt.Fprintf(out, "%-36s %-30s %-8s %-15s %-10s\n", "ID", "TITLE", "PRIORITY", "ASSIGNEE", "DUE")
		fmt.Fprintln(out, strings.Repeat("-", 103))
		for _, t := range column {
			fmt.Fprintf(out, "%-36s %-30s %-8s %-15s %-10s\n", t.ID, t.Title, t.Priority, a.svc.AssigneeName(t.AssigneeID), t.DueDate)
		}
	}
	return nil
}

func runAdd(args []string) error {
	addFlags := flag.NewFlagSet("add", flag.ContinueOnError)
	title := addFlags.String("title", "", "Task title (required)")
	description := addFlags.String("description", "", "Task description")
	priority := addFlags.String("priority", "", "Priority (Low, Medium, High)")
	due := addFlags.String("due", "", "Due date (YYYY-MM-DD)")
	tags := addFlags.String("tags", "", "Comma-separated tags")
	assignee := addFlags.String("assignee", "", "Assignee id")
	if err := addFlags.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var tagList []string
	if *tags != "" {
		tagList = strings.Split(*tags, ",")
	}
	t, err := a.svc.CreateTask(ctx, board.TaskFields{
		Title:       *title,
		Description: *description,
		Priority:    *priority,
		DueDate:     *due,
		Tags:        tagList,
		AssigneeID:  *assignee,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Created task %s (%s)\n", t.ID, t.Title)
	return nil
}

func runMove(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: taskboard move <id> <todo|inProgress|done>")
	}
	status, err := models.ParseTaskStatus(args[1])
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	t, found, err := a.svc.MoveTask(ctx, args[0], status)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("task not found: %s", args[0])
	}
	fmt.Fprintf(out, "✓ Moved %s to %s\n", t.Title, t.Status.Label())
	return nil
}

func runDelete(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: taskboard delete <id>")
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.svc.DeleteTask(ctx, args[0]) {
		return fmt.Errorf("task not found: %s", args[0])
	}
	fmt.Fprintf(out, "✓ Deleted task %s\n", args[0])
	return nil
}

func runStatus(args []string) error {
	a, err := openApp(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	all := a.svc.Tasks()
	counts := make(map[models.TaskStatus]int)
	priorities := make(map[models.Priority]int)
	for _, t := range all {
		counts[t.Status]++
		priorities[t.Priority]++
	}

	fmt.Fprintln(out, "Task Board Status")
	fmt.Fprintln(out, "=================")
	fmt.Fprintf(out, "Backend:         %s\n", a.cfg.Backend)
	fmt.Fprintf(out, "Total Tasks:     %d\n", len(all))
	fmt.Fprintf(out, "Tags:            %d\n", len(a.svc.Tags()))
	fmt.Fprintf(out, "Assignees:       %d\n", len(a.svc.Assignees()))

	fmt.Fprintln(out, "\nColumns:")
	fmt.Fprintf(out, "  To Do:       %d\n", counts[models.TaskStatusTodo])
	fmt.Fprintf(out, "  In Progress: %d\n", counts[models.TaskStatusInProgress])
	fmt.Fprintf(out, "  Done:        %d\n", counts[models.TaskStatusDone])

	fmt.Fprintln(out, "\nPriorities:")
	for _, p := range models.Priorities {
		fmt.Fprintf(out, "  %-11s  %d\n", string(p)+":", priorities[p])
	}
	return nil
}

func runExport(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: taskboard export <path>")
	}

	a, err := openApp(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.repo.ExportSnapshot(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Exported %d tasks to %s\n", len(a.repo.List()), args[0])
	return nil
}
