package pyxgen

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.Directives.LanguageLevel != 3 {
		t.Errorf("language_level = %d, want 3", opts.Directives.LanguageLevel)
	}
	if !opts.Directives.Cdivision {
		t.Error("cdivision should default to true")
	}
	if opts.Directives.Boundscheck {
		t.Error("boundscheck should default to false")
	}
	if opts.Directives.Wraparound {
		t.Error("wraparound should default to false")
	}
	if opts.Directives.Nonecheck {
		t.Error("nonecheck should default to false")
	}
	if !opts.AutoNogil {
		t.Error("auto_nogil should default to true")
	}
	if !opts.DefaultToCpdef {
		t.Error("default_to_cpdef should default to true")
	}

	if err := opts.Validate(); err != nil {
		t.Errorf("default options fail validation: %v", err)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{
			name:    "defaults",
			mutate:  func(o *Options) {},
			wantErr: false,
		},
		{
			name:    "language level 2",
			mutate:  func(o *Options) { o.Directives.LanguageLevel = 2 },
			wantErr: false,
		},
		{
			name:    "language level 4",
			mutate:  func(o *Options) { o.Directives.LanguageLevel = 4 },
			wantErr: true,
		},
		{
			name:    "language level 0",
			mutate:  func(o *Options) { o.Directives.LanguageLevel = 0 },
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			err := opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDirectiveItems(t *testing.T) {
	items := DefaultOptions().Directives.Items()

	wantKeys := []string{"language_level", "boundscheck", "wraparound", "cdivision", "nonecheck"}
	if len(items) != len(wantKeys) {
		t.Fatalf("got %d items, want %d", len(items), len(wantKeys))
	}
	for i, want := range wantKeys {
		if items[i].Key != want {
			t.Errorf("items[%d].Key = %q, want %q", i, items[i].Key, want)
		}
	}

	byKey := map[string]string{}
	for _, it := range items {
		byKey[it.Key] = it.Value
	}
	if byKey["language_level"] != "3" {
		t.Errorf("language_level = %q, want 3", byKey["language_level"])
	}
	if byKey["cdivision"] != "True" {
		t.Errorf("cdivision = %q, want True (Python spelling)", byKey["cdivision"])
	}
	if byKey["boundscheck"] != "False" {
		t.Errorf("boundscheck = %q, want False (Python spelling)", byKey["boundscheck"])
	}
}

func TestLoadPyproject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pyproject.toml")
	body := `
[project]
name = "simulation"

[tool.pyxgen]
auto_nogil = false

[tool.pyxgen.directives]
language_level = 2
boundscheck = true
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	opts, err := LoadPyproject(path)
	if err != nil {
		t.Fatalf("LoadPyproject: %v", err)
	}

	if opts.AutoNogil {
		t.Error("auto_nogil should be overridden to false")
	}
	if opts.Directives.LanguageLevel != 2 {
		t.Errorf("language_level = %d, want 2", opts.Directives.LanguageLevel)
	}
	if !opts.Directives.Boundscheck {
		t.Error("boundscheck should be overridden to true")
	}
	// Untouched keys keep their defaults.
	if !opts.Directives.Cdivision {
		t.Error("cdivision should keep its default true")
	}
	if !opts.DefaultToCpdef {
		t.Error("default_to_cpdef should keep its default true")
	}
}

func TestLoadPyprojectNoTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pyproject.toml")
	if err := os.WriteFile(path, []byte("[project]\nname = \"x\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	opts, err := LoadPyproject(path)
	if err != nil {
		t.Fatalf("LoadPyproject: %v", err)
	}
	if opts != DefaultOptions() {
		t.Errorf("options without [tool.pyxgen] = %+v, want defaults", opts)
	}
}

func TestLoadPyprojectMissingFile(t *testing.T) {
	_, err := LoadPyproject(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if FromError(err).Code != CodeIO {
		t.Errorf("expected code %s, got %s", CodeIO, FromError(err).Code)
	}
}

func TestLoadPyprojectInvalidValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pyproject.toml")
	body := "[tool.pyxgen.directives]\nlanguage_level = 7\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadPyproject(path)
	if err == nil {
		t.Fatal("expected validation error for language_level=7")
	}
	if FromError(err).Code != CodeInvalidConfig {
		t.Errorf("expected code %s, got %s", CodeInvalidConfig, FromError(err).Code)
	}
}
