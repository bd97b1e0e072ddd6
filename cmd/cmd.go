// Package cmd provides CLI command implementations for rigweave.
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/Benny93/rigweave/internal/config"
	"github.com/Benny93/rigweave/internal/document"
	"github.com/Benny93/rigweave/internal/editor"
	"github.com/Benny93/rigweave/internal/graph"
	"github.com/Benny93/rigweave/internal/logging"
	"github.com/Benny93/rigweave/internal/rig"
	"github.com/Benny93/rigweave/internal/storage"
	"github.com/Benny93/rigweave/internal/tui"
	"github.com/Benny93/rigweave/internal/watch"
	"github.com/Benny93/rigweave/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	bold   = color.New(color.Bold)
)

// Env is handed to every command.
type Env struct {
	Ctx        context.Context
	Config     *config.Config
	ConfigPath string
	Logger     *zap.Logger
	In         io.Reader
	Out        io.Writer
}

// EditCmd opens the node editor.
type EditCmd struct {
	File  string `arg:"" optional:"" type:"path" help:"Graph document to open; created on first save when missing"`
	Fresh bool   `help:"Start empty and discard any unsaved session instead of recovering it"`
}

// Run executes the edit command.
func (c *EditCmd) Run(env *Env) error {
	app, cleanup, err := editor.Bootstrap(env.Ctx, env.Config, env.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()

	s, err := c.session(env, app)
	if err != nil {
		return err
	}

	if err := tui.Run(env.Ctx, s, env.Logger); err != nil {
		// the recovery mirror stays behind for the next start
		return err
	}
	return app.Close(env.Ctx)
}

func (c *EditCmd) session(env *Env, app *editor.App) (*editor.Session, error) {
	if c.File != "" {
		if _, err := os.Stat(c.File); errors.Is(err, os.ErrNotExist) {
			s, err := app.New(env.Ctx)
			if s, err = keepSession(env, s, err); err != nil {
				return nil, err
			}
			return s, s.SaveAs(c.File)
		}
		s, _, err := app.Open(env.Ctx, c.File)
		return keepSession(env, s, err)
	}

	if !c.Fresh {
		s, report, err := app.Recover(env.Ctx)
		if s, err = keepSession(env, s, err); err != nil {
			return nil, fmt.Errorf("recovering session: %w", err)
		}
		if s != nil {
			env.Logger.Info("recovered unsaved session", zap.Int("problems", len(report.Problems())))
			return s, nil
		}
	}
	s, err := app.New(env.Ctx)
	return keepSession(env, s, err)
}

// keepSession carries on with a session whose recovery mirror could not be
// written. The editor shows the mirror as out of date until a write succeeds.
func keepSession(env *Env, s *editor.Session, err error) (*editor.Session, error) {
	var perr *storage.PersistenceError
	if s != nil && errors.As(err, &perr) {
		env.Logger.Warn("recovery mirror out of date", zap.Error(err))
		return s, nil
	}
	return s, err
}

// ValidateCmd checks a graph document.
type ValidateCmd struct {
	File string `arg:"" type:"existingfile" help:"Graph document to check"`
}

// Run executes the validate command.
func (c *ValidateCmd) Run(env *Env) error {
	doc, err := document.ReadFile(c.File)
	if err != nil {
		return err
	}
	g, report := document.Rebuild(doc, nil)
	if n := printReport(env.Out, c.File, g, report); n > 0 {
		return fmt.Errorf("%s: %d problem(s)", c.File, n)
	}
	return nil
}

// printReport writes a load summary and returns the number of problems.
func printReport(w io.Writer, name string, g *graph.Graph, report *document.LoadReport) int {
	problems := report.Problems()
	sort.Strings(problems)
	if len(problems) == 0 {
		green.Fprintf(w, "✓ %s: %d node(s), %d connection(s)\n", name, g.NodeCount(), g.ConnectionCount())
		return 0
	}
	yellow.Fprintf(w, "! %s: %d node(s), %d connection(s), %d problem(s)\n",
		name, g.NodeCount(), g.ConnectionCount(), len(problems))
	for _, p := range problems {
		fmt.Fprintf(w, "  - %s\n", p)
	}
	return len(problems)
}

// WatchCmd re-validates a document whenever it changes.
type WatchCmd struct {
	File     string        `arg:"" type:"path" help:"Graph document to watch"`
	Debounce time.Duration `default:"300ms" help:"Quiet period before a change is checked"`
}

// Run executes the watch command.
func (c *WatchCmd) Run(env *Env) error {
	fmt.Fprintln(env.Out, "## Watch Mode")
	fmt.Fprintf(env.Out, "Watching %s for changes (Ctrl+C to stop)\n\n", c.File)

	w := &watch.Watcher{
		Path:     c.File,
		Debounce: c.Debounce,
		Logger:   env.Logger.Named("watch"),
	}
	err := w.Run(env.Ctx, func(ev watch.Event) {
		stamp := time.Now().Format("15:04:05")
		if ev.Err != nil {
			red.Fprintf(env.Out, "[%s] %v\n", stamp, ev.Err)
			return
		}
		fmt.Fprintf(env.Out, "[%s] ", stamp)
		printReport(env.Out, ev.Path, ev.Graph, ev.Report)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch error: %w", err)
	}

	fmt.Fprintln(env.Out, "Watch mode stopped.")
	return nil
}

// KindsCmd lists the node kinds.
type KindsCmd struct {
	Builders bool `short:"b" help:"Show the builder module and operations of each kind"`
}

// Run executes the kinds command.
func (c *KindsCmd) Run(env *Env) error {
	var o *rig.Orchestrator
	if c.Builders {
		var err error
		if o, err = orchestrator(env.Config); err != nil {
			return err
		}
	}

	for _, spec := range graph.Kinds() {
		bold.Fprintf(env.Out, "%s", spec.Label)
		fmt.Fprintf(env.Out, " (%s)\n", spec.Kind)
		if len(spec.Inputs) > 0 {
			fmt.Fprintf(env.Out, "  inputs:  %s\n", socketList(spec.Inputs))
		}
		if len(spec.Outputs) > 0 {
			fmt.Fprintf(env.Out, "  outputs: %s\n", socketList(spec.Outputs))
		}
		for _, p := range spec.Params {
			fmt.Fprintf(env.Out, "  %s: %s, default %v\n", p.Name, p.Type, p.Default)
		}
		if o != nil {
			d, err := o.Dispatch(spec.Kind)
			if err != nil {
				return err
			}
			if d.Module != "" {
				fmt.Fprintf(env.Out, "  builder: %s template=%q build=%q\n", d.Module, d.Template, d.Build)
			}
		}
	}
	return nil
}

func socketList(specs []graph.SocketSpec) string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = fmt.Sprintf("%s[%s]", s.Name, s.Type)
	}
	return strings.Join(names, ", ")
}

// orchestrator builds an offline orchestrator honouring the configured
// dispatch overrides.
func orchestrator(cfg *config.Config) (*rig.Orchestrator, error) {
	var opts []rig.Option
	if cfg.BuildersFile != "" {
		overrides, err := rig.LoadOverrides(cfg.BuildersFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, rig.WithOverrides(overrides))
	}
	return rig.NewOrchestrator(rig.NewOfflineBuilder(cfg.Host.Handles), opts...), nil
}

// StatusCmd shows the configuration and the recovery mirror.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run(env *Env) error {
	cfg := env.Config
	fmt.Fprintf(env.Out, "Config:           %s\n", env.ConfigPath)
	fmt.Fprintf(env.Out, "Recovery backend: %s\n", cfg.Recovery.Backend)
	if cfg.Recovery.Path != "" {
		fmt.Fprintf(env.Out, "Recovery path:    %s\n", cfg.Recovery.Path)
	}
	if cfg.Host.URL != "" {
		fmt.Fprintf(env.Out, "Host:             %s (namespace %s, timeout %s)\n", cfg.Host.URL, cfg.Host.Namespace, cfg.Host.Timeout)
	} else {
		fmt.Fprintln(env.Out, "Host:             offline")
	}
	if cfg.BuildersFile != "" {
		fmt.Fprintf(env.Out, "Builders file:    %s\n", cfg.BuildersFile)
	}

	doc, err := readMirror(env)
	if err != nil {
		return err
	}
	if doc == nil {
		fmt.Fprintln(env.Out, "Unsaved session:  none")
		return nil
	}
	yellow.Fprintf(env.Out, "Unsaved session:  %d node(s), %d connection(s)\n", len(doc.Nodes), len(doc.Connections))
	return nil
}

// readMirror returns the recovery snapshot, or nil when there is none.
func readMirror(env *Env) (*document.Document, error) {
	cfg := env.Config
	if cfg.Recovery.Backend == string(storage.BackendMemory) {
		return nil, nil
	}
	if _, err := os.Stat(cfg.Recovery.Path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	backend, err := storage.Open(storage.BackendKind(cfg.Recovery.Backend), cfg.Recovery.Path, true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = backend.Close() }()

	doc, err := backend.ReadSnapshot(env.Ctx)
	if err != nil || doc == nil {
		return nil, err
	}
	if len(doc.Nodes) == 0 && len(doc.Connections) == 0 {
		return nil, nil
	}
	return doc, nil
}

// RecoverCmd exports the unsaved session to a document file.
type RecoverCmd struct {
	Output string `short:"o" required:"" type:"path" help:"Document file to write"`
}

// Run executes the recover command.
func (c *RecoverCmd) Run(env *Env) error {
	doc, err := readMirror(env)
	if err != nil {
		return err
	}
	if doc == nil {
		fmt.Fprintln(env.Out, "Nothing to recover")
		return nil
	}

	g, report := document.Rebuild(doc, nil)
	printReport(env.Out, "recovered session", g, report)
	if err := document.WriteFile(c.Output, document.Snapshot(g)); err != nil {
		return err
	}
	green.Fprintf(env.Out, "Wrote %s\n", c.Output)
	return nil
}

// CleanCmd discards the unsaved session.
type CleanCmd struct {
	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run(env *Env) error {
	doc, err := readMirror(env)
	if err != nil {
		return err
	}
	if doc == nil {
		fmt.Fprintln(env.Out, "No unsaved session. Nothing to clean")
		return nil
	}

	if !c.Force {
		fmt.Fprintf(env.Out, "Discard unsaved session with %d node(s)? [y/N] ", len(doc.Nodes))
		response, _ := bufio.NewReader(env.In).ReadString('\n')
		response = strings.TrimSpace(response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(env.Out, "Aborted")
			return nil
		}
	}

	backend, err := storage.Open(storage.BackendKind(env.Config.Recovery.Backend), env.Config.Recovery.Path, false)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()
	if err := backend.Clear(env.Ctx); err != nil {
		return fmt.Errorf("clearing recovery mirror: %w", err)
	}

	green.Fprintln(env.Out, "Discarded unsaved session")
	return nil
}

// InitCmd writes a default configuration file.
type InitCmd struct {
	Force bool `short:"f" help:"Overwrite an existing file"`
}

// Run executes the init command.
func (c *InitCmd) Run(env *Env) error {
	if _, err := os.Stat(env.ConfigPath); err == nil && !c.Force {
		return fmt.Errorf("%s already exists, use --force to overwrite", env.ConfigPath)
	}
	if err := env.Config.Save(env.ConfigPath); err != nil {
		return err
	}
	green.Fprintf(env.Out, "Wrote %s\n", env.ConfigPath)
	return nil
}

// MCPCmd starts the MCP server.
type MCPCmd struct {
	File string `type:"existingfile" help:"Serve a saved document instead of the live session"`
	SDK  bool   `help:"Serve through the SDK transport instead of the built-in loop"`
}

// Run executes the mcp command.
func (c *MCPCmd) Run(env *Env) error {
	o, err := orchestrator(env.Config)
	if err != nil {
		return err
	}

	var source mcp.Source
	if c.File != "" {
		source = mcp.FileSource(c.File)
	} else {
		backend, err := storage.Open(storage.BackendKind(env.Config.Recovery.Backend), env.Config.Recovery.Path, true)
		if err != nil {
			return err
		}
		defer func() { _ = backend.Close() }()
		source = mcp.BackendSource{Backend: backend}
	}

	server := mcp.NewServer(source, mcp.WithOrchestrator(o), mcp.WithLogger(env.Logger.Named("mcp")))

	// No output to stdout here: it carries JSON-RPC only.
	if c.SDK {
		return server.Serve(env.Ctx, &sdk.StdioTransport{})
	}
	return server.Run(env.Ctx, env.In, env.Out)
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Config  string           `short:"c" type:"path" default:"${config}" help:"Configuration file"`
	Verbose bool             `short:"v" help:"Log at debug level"`

	// Commands
	Edit     EditCmd     `cmd:"" default:"withargs" help:"Open the node editor"`
	Validate ValidateCmd `cmd:"" help:"Check a graph document"`
	Watch    WatchCmd    `cmd:"" help:"Re-validate a graph document on every change"`
	Kinds    KindsCmd    `cmd:"" help:"List the node kinds"`
	Status   StatusCmd   `cmd:"" help:"Show configuration and unsaved session"`
	Recover  RecoverCmd  `cmd:"" help:"Export the unsaved session to a file"`
	Clean    CleanCmd    `cmd:"" help:"Discard the unsaved session"`
	Init     InitCmd     `cmd:"" help:"Write a default configuration file"`
	MCP      MCPCmd      `cmd:"" help:"Start MCP server (stdio transport)"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return c.run(ctx, args, os.Stdin, os.Stdout)
}

func (c *CLI) run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	defaultConfig, err := config.DefaultPath()
	if err != nil {
		defaultConfig = "config.yaml"
	}

	parser, err := kong.New(c,
		kong.Name("rigweave"),
		kong.Description("Node-graph editor for character rigs"),
		kong.UsageOnError(),
		kong.Writers(out, out),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
			"config":  defaultConfig,
		},
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	logCfg := cfg.Log
	if c.Verbose {
		logCfg = logging.Verbose(logCfg)
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	return kongCtx.Run(&Env{
		Ctx:        ctx,
		Config:     cfg,
		ConfigPath: c.Config,
		Logger:     logger,
		In:         in,
		Out:        out,
	})
}
