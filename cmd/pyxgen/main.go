package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/broady/pyxgen"
	"github.com/broady/pyxgen/gen"
	"github.com/broady/pyxgen/gen/sink"
	"github.com/fsnotify/fsnotify"
)

type CLI struct {
	Version VersionCmd `cmd:"" help:"Print version information."`
	Gen     GenCmd     `cmd:"" help:"Transpile a Python file to Cython sources."`
	Check   CheckCmd   `cmd:"" help:"Analyze a Python file and report diagnostics without writing files."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

type GenCmd struct {
	Input     string `arg:"" help:"Python source file to transpile." type:"existingfile"`
	Out       string `help:"Output directory for generated files." short:"o" default:"cython_output"`
	Name      string `help:"Extension module name (default: input file name)." short:"n"`
	Pyproject string `help:"pyproject.toml to read [tool.pyxgen] options from."`
	Watch     bool   `help:"Watch the input file and regenerate on change." short:"w"`
	Verbose   bool   `help:"Enable debug logging." short:"v"`
}

func (c *GenCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := buildConfig(c.Out, c.Name, c.Pyproject, c.Verbose)
	if err != nil {
		return err
	}

	if err := runOnce(ctx, c.Input, cfg); err != nil && !c.Watch {
		return err
	}
	if !c.Watch {
		return nil
	}
	return watch(ctx, c.Input, cfg)
}

type CheckCmd struct {
	Input     string `arg:"" help:"Python source file to analyze." type:"existingfile"`
	Pyproject string `help:"pyproject.toml to read [tool.pyxgen] options from."`
}

func (c *CheckCmd) Run() error {
	ctx := context.Background()

	cfg, err := buildConfig("", "", c.Pyproject, false)
	if err != nil {
		return err
	}
	cfg.Sink = sink.NewMemorySink()

	result, err := gen.Generate(ctx, c.Input, cfg)
	if result != nil {
		for _, w := range result.Warnings {
			if w.Line > 0 {
				fmt.Fprintf(os.Stderr, "%s:%d: %s: %s\n", c.Input, w.Line, w.Code, w.Message)
			} else {
				fmt.Fprintf(os.Stderr, "%s: %s: %s\n", c.Input, w.Code, w.Message)
			}
		}
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s: ok (%d warnings)\n", c.Input, len(result.Warnings))
	return nil
}

func buildConfig(outDir, name, pyproject string, verbose bool) (*gen.Config, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := pyxgen.DefaultOptions()
	if pyproject != "" {
		var err error
		opts, err = pyxgen.LoadPyproject(pyproject)
		if err != nil {
			return nil, err
		}
	}

	return &gen.Config{
		OutDir:     outDir,
		ModuleName: name,
		Options:    opts,
		Logger:     logger,
	}, nil
}

func runOnce(ctx context.Context, input string, cfg *gen.Config) error {
	result, err := gen.Generate(ctx, input, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pyxgen: %v\n", err)
		return err
	}
	fmt.Printf("%s: wrote %s\n", input, strings.Join(result.Files, ", "))
	return nil
}

// watch regenerates whenever the input file changes. Editors commonly replace
// files via rename, so the watch is on the parent directory and filtered by
// name.
func watch(ctx context.Context, input string, cfg *gen.Config) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return pyxgen.Errorf(pyxgen.CodeIO, "start watcher: %v", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(input)
	if err := watcher.Add(dir); err != nil {
		return pyxgen.Errorf(pyxgen.CodeIO, "watch %s: %v", dir, err)
	}
	fmt.Fprintf(os.Stderr, "pyxgen: watching %s\n", input)

	target := filepath.Clean(input)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Regeneration failures keep the watch alive; the next save
			// gets another chance.
			_ = runOnce(ctx, input, cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "pyxgen: watch error: %v\n", err)
		}
	}
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("pyxgen"),
		kong.Description("Type-directed Python to Cython transpiler."),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
