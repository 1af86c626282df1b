package directive

import (
	"strings"
	"testing"

	"github.com/broady/pyxgen"
)

func TestApplyOverrides(t *testing.T) {
	src := `# pyx: boundscheck=True
# pyx: auto_nogil=False, language_level=2

def f(x: int) -> int:
    return x
`
	opts := pyxgen.DefaultOptions()
	warnings, err := Apply(&opts, src)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	if !opts.Directives.Boundscheck {
		t.Error("boundscheck not overridden to True")
	}
	if opts.AutoNogil {
		t.Error("auto_nogil not overridden to False")
	}
	if opts.Directives.LanguageLevel != 2 {
		t.Errorf("language_level = %d, want 2", opts.Directives.LanguageLevel)
	}
	// Untouched options keep their values.
	if !opts.Directives.Cdivision {
		t.Error("cdivision should keep its default")
	}
	if !opts.DefaultToCpdef {
		t.Error("default_to_cpdef should keep its default")
	}
}

func TestApplyNoDirectives(t *testing.T) {
	opts := pyxgen.DefaultOptions()
	warnings, err := Apply(&opts, "def f() -> None:\n    pass\n")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if opts != pyxgen.DefaultOptions() {
		t.Errorf("options changed without directives: %+v", opts)
	}
}

func TestApplyStopsAtFirstCode(t *testing.T) {
	src := `# pyx: boundscheck=True
x = 1
# pyx: wraparound=True
`
	opts := pyxgen.DefaultOptions()
	if _, err := Apply(&opts, src); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !opts.Directives.Boundscheck {
		t.Error("leading directive should apply")
	}
	if opts.Directives.Wraparound {
		t.Error("directive after code must be ignored")
	}
}

func TestApplyUnknownKeyWarns(t *testing.T) {
	src := "# pyx: turbo=True\n"
	opts := pyxgen.DefaultOptions()
	warnings, err := Apply(&opts, src)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warnings))
	}
	if !strings.Contains(warnings[0].Message, "turbo") {
		t.Errorf("warning should name the unknown key: %s", warnings[0].Message)
	}
	if warnings[0].Line != 1 {
		t.Errorf("warning line = %d, want 1", warnings[0].Line)
	}
}

func TestApplyMalformedPairWarns(t *testing.T) {
	src := "# pyx: boundscheck\n"
	opts := pyxgen.DefaultOptions()
	warnings, err := Apply(&opts, src)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0].Message, "key=value") {
		t.Errorf("expected a malformed-pair warning, got %v", warnings)
	}
}

func TestApplyInvalidValueFailsValidation(t *testing.T) {
	src := "# pyx: language_level=4\n"
	opts := pyxgen.DefaultOptions()
	_, err := Apply(&opts, src)
	if err == nil {
		t.Fatal("expected validation error for language_level=4")
	}
	if pyxgen.FromError(err).Code != pyxgen.CodeInvalidConfig {
		t.Errorf("code = %s, want %s", pyxgen.FromError(err).Code, pyxgen.CodeInvalidConfig)
	}
}

func TestApplyPlainCommentsIgnored(t *testing.T) {
	src := `# Copyright notice.
# Not a directive line.
# pyx: nonecheck=True
`
	opts := pyxgen.DefaultOptions()
	warnings, err := Apply(&opts, src)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("plain comments produced warnings: %v", warnings)
	}
	if !opts.Directives.Nonecheck {
		t.Error("directive after plain comments should still apply")
	}
}
