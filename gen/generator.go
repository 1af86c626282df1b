// Package gen wires the front end, analysis passes, and Cython emitters into
// a single pipeline. Callers hand it a Python source file and get back a .pyx
// module, an optional .pxd interface, and a setup.py build script.
package gen

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/broady/pyxgen"
	"github.com/broady/pyxgen/gen/analyze"
	"github.com/broady/pyxgen/gen/cython"
	"github.com/broady/pyxgen/gen/ir"
	"github.com/broady/pyxgen/gen/sink"
	"github.com/broady/pyxgen/internal/directive"
	"github.com/broady/pyxgen/pyast"
)

// Config holds the configuration for one generation run.
type Config struct {
	// OutDir is the directory where generated files are written.
	// Defaults to "cython_output". Ignored when Sink is set.
	OutDir string

	// ModuleName names the generated extension module. Defaults to the input
	// file name without its extension.
	ModuleName string

	// Options is the transpilation option set. The zero value is replaced by
	// DefaultOptions; callers that load pyproject.toml pass the result here.
	// Source directives override these per file.
	Options pyxgen.Options

	// Logger receives per-artifact progress. Nil discards.
	Logger *slog.Logger

	// Sink overrides where output lands. Nil means a FilesystemSink rooted at
	// OutDir.
	Sink sink.OutputSink
}

// Result reports what one generation run produced.
type Result struct {
	// ModuleName is the extension module name the artifacts were emitted for.
	ModuleName string

	// Files are the sink-relative paths written, in write order.
	Files []string

	// Warnings are every non-fatal diagnostic from directives, annotation,
	// and emission, in pipeline order.
	Warnings []ir.Warning

	// UsesCPP reports whether the module needs the C++ toolchain.
	UsesCPP bool
}

// Generate transpiles the Python source file at inputPath and writes the
// artifacts through the configured sink. Warnings accumulated before a fatal
// error are returned alongside it.
func Generate(ctx context.Context, inputPath string, cfg *Config) (*Result, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, pyxgen.Errorf(pyxgen.CodeIO, "read %s: %v", inputPath, err)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ModuleName == "" {
		base := filepath.Base(inputPath)
		next := *cfg
		next.ModuleName = strings.TrimSuffix(base, filepath.Ext(base))
		cfg = &next
	}
	return GenerateSource(ctx, string(data), cfg)
}

// GenerateSource is Generate for callers that already hold the source text.
// cfg.ModuleName is required.
func GenerateSource(ctx context.Context, src string, cfg *Config) (*Result, error) {
	cfg = applyConfigDefaults(cfg)
	logger := cfg.Logger

	result := &Result{ModuleName: cfg.ModuleName}

	// 1. Apply source directives on top of the configured options.
	opts := cfg.Options
	directiveWarnings, err := directive.Apply(&opts, src)
	result.Warnings = append(result.Warnings, directiveWarnings...)
	if err != nil {
		return result, err
	}

	// 2. Parse.
	mod, err := pyast.Parse(src)
	if err != nil {
		return result, pyxgen.Errorf(pyxgen.CodeParse, "%s: %v", cfg.ModuleName, err)
	}

	// 3. Annotate types, then decide nogil eligibility.
	reg := ir.NewRegistry()
	res, err := analyze.Annotate(mod, reg)
	if res != nil {
		result.Warnings = append(result.Warnings, res.Warnings...)
	}
	if err != nil {
		return result, err
	}
	analyze.AnalyzePurity(res)

	// 4. Emit.
	pyx, emitWarnings := cython.EmitModule(mod, res, reg, opts)
	result.Warnings = append(result.Warnings, emitWarnings...)
	pxd := cython.EmitInterface(mod, res, reg, opts)
	result.UsesCPP = reg.UsesCPP()

	setupPy, err := cython.EmitSetup(cfg.ModuleName, result.UsesCPP)
	if err != nil {
		return result, err
	}

	// 5. Write artifacts.
	outputs := []struct {
		name string
		body string
	}{
		{cfg.ModuleName + ".pyx", pyx},
		{cfg.ModuleName + ".pxd", pxd},
		{"setup.py", setupPy},
	}
	for _, out := range outputs {
		if out.body == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := cfg.Sink.WriteFile(ctx, out.name, []byte(out.body)); err != nil {
			return result, pyxgen.Errorf(pyxgen.CodeIO, "write %s: %v", out.name, err)
		}
		result.Files = append(result.Files, out.name)
		logger.InfoContext(ctx, "wrote artifact", "file", out.name, "bytes", len(out.body))
	}

	for _, w := range result.Warnings {
		logger.WarnContext(ctx, w.Message, "code", w.Code, "line", w.Line)
	}

	return result, nil
}

func applyConfigDefaults(cfg *Config) *Config {
	next := &Config{}
	if cfg != nil {
		*next = *cfg
	}
	if next.OutDir == "" {
		next.OutDir = "cython_output"
	}
	if next.Options == (pyxgen.Options{}) {
		next.Options = pyxgen.DefaultOptions()
	}
	if next.Logger == nil {
		next.Logger = slog.New(slog.DiscardHandler)
	}
	if next.Sink == nil {
		next.Sink = sink.NewFilesystemSink(next.OutDir)
	}
	return next
}
