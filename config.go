package pyxgen

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Directives is the fixed set of Cython compiler directives rendered into the
// header comment block of the generated .pyx file. The pipeline passes the
// values through opaquely; it never interprets them beyond rendering.
type Directives struct {
	LanguageLevel int  `toml:"language_level" schema:"language_level" validate:"oneof=2 3"`
	Boundscheck   bool `toml:"boundscheck" schema:"boundscheck"`
	Wraparound    bool `toml:"wraparound" schema:"wraparound"`
	Cdivision     bool `toml:"cdivision" schema:"cdivision"`
	Nonecheck     bool `toml:"nonecheck" schema:"nonecheck"`
}

// Options holds the transpilation options shared by every run.
type Options struct {
	Directives Directives `toml:"directives"`

	// AutoNogil enables the synchronization-free analysis. When false, no
	// function is marked nogil regardless of what the analyzer would decide.
	AutoNogil bool `toml:"auto_nogil" schema:"auto_nogil"`

	// DefaultToCpdef emits module-level functions and methods as cpdef so they
	// remain callable from both Python and C. There is currently no per-function
	// override, so turning this off forces plain def everywhere.
	DefaultToCpdef bool `toml:"default_to_cpdef" schema:"default_to_cpdef"`
}

// DefaultOptions returns the stock option set.
func DefaultOptions() Options {
	return Options{
		Directives: Directives{
			LanguageLevel: 3,
			Boundscheck:   false,
			Wraparound:    false,
			Cdivision:     true,
			Nonecheck:     false,
		},
		AutoNogil:      true,
		DefaultToCpdef: true,
	}
}

// Validate checks the option set, returning a CodeInvalidConfig error envelope
// on failure.
func (o *Options) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(o); err != nil {
		return FromError(err)
	}
	return nil
}

// DirectiveItem is one rendered key=value pair. Bool values use the Python
// spelling (True/False) because the directives land in Cython source.
type DirectiveItem struct {
	Key   string
	Value string
}

// Items returns the directives in their canonical emission order.
func (d Directives) Items() []DirectiveItem {
	py := func(b bool) string {
		if b {
			return "True"
		}
		return "False"
	}
	return []DirectiveItem{
		{Key: "language_level", Value: fmt.Sprintf("%d", d.LanguageLevel)},
		{Key: "boundscheck", Value: py(d.Boundscheck)},
		{Key: "wraparound", Value: py(d.Wraparound)},
		{Key: "cdivision", Value: py(d.Cdivision)},
		{Key: "nonecheck", Value: py(d.Nonecheck)},
	}
}

// pyprojectFile mirrors the slice of pyproject.toml we care about:
//
//	[tool.pyxgen]
//	auto_nogil = true
//	[tool.pyxgen.directives]
//	boundscheck = false
type pyprojectFile struct {
	Tool struct {
		Pyxgen *Options `toml:"pyxgen"`
	} `toml:"tool"`
}

// LoadPyproject reads [tool.pyxgen] from a pyproject.toml file, applying it on
// top of the defaults. A file with no [tool.pyxgen] table yields the defaults.
func LoadPyproject(path string) (Options, error) {
	opts := DefaultOptions()

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, Errorf(CodeIO, "read %s: %v", path, err)
	}

	var file pyprojectFile
	file.Tool.Pyxgen = &opts
	if err := toml.Unmarshal(data, &file); err != nil {
		return DefaultOptions(), Errorf(CodeInvalidConfig, "parse %s: %v", path, err)
	}
	if err := opts.Validate(); err != nil {
		return DefaultOptions(), err
	}
	return opts, nil
}
