package cython

import (
	"strings"
	"testing"

	"github.com/broady/pyxgen"
	"github.com/broady/pyxgen/gen/analyze"
	"github.com/broady/pyxgen/gen/ir"
	"github.com/broady/pyxgen/pyast"
)

func emitInterfaceOpts(t *testing.T, src string, opts pyxgen.Options) string {
	t.Helper()
	mod, err := pyast.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	reg := ir.NewRegistry()
	res, err := analyze.Annotate(mod, reg)
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	return EmitInterface(mod, res, reg, opts)
}

func emitInterface(t *testing.T, src string) string {
	t.Helper()
	return emitInterfaceOpts(t, src, pyxgen.DefaultOptions())
}

func TestInterfaceEmpty(t *testing.T) {
	if out := emitInterface(t, "x: int = 1\n"); out != "" {
		t.Errorf("module with no classes or functions should yield no interface, got:\n%s", out)
	}
}

func TestInterfaceModuleFunction(t *testing.T) {
	out := emitInterface(t, "def scale(x: float, n: int) -> float:\n    return x * n\n")

	if !strings.HasPrefix(out, "# Generated by pyxgen. Do not edit.\n") {
		t.Errorf("missing generated-file banner:\n%s", out)
	}
	if !strings.Contains(out, "cpdef double scale(double x, long n)\n") {
		t.Errorf("missing function signature:\n%s", out)
	}
}

func TestInterfaceClass(t *testing.T) {
	src := `class Acc:
    total: float
    values: List[float]
    label: str

    def __init__(self) -> None:
        pass

    def push(self, v: float) -> None:
        self.values.append(v)
`
	out := emitInterface(t, src)

	for _, line := range []string{
		"cdef class Acc:",
		"    cdef double total",
		"    cdef vector[double]* values",
		"    cpdef void push(self, double v)",
		"from libcpp.vector cimport vector",
	} {
		if !strings.Contains(out, line+"\n") {
			t.Errorf("missing line %q:\n%s", line, out)
		}
	}

	if strings.Contains(out, "label") {
		t.Errorf("interpreter-object attribute leaked into interface:\n%s", out)
	}
	if strings.Contains(out, "__init__") {
		t.Errorf("interpreter hook leaked into interface:\n%s", out)
	}
	if strings.Contains(out, "cython.operator") {
		t.Errorf("deref import does not belong in the interface header:\n%s", out)
	}
}

func TestInterfaceViewIsPublic(t *testing.T) {
	src := `class Grid:
    data: Annotated[np.ndarray, 'double', 2]
`
	out := emitInterface(t, src)
	if !strings.Contains(out, "cdef public double[:, ::1] data\n") {
		t.Errorf("view attribute should be public:\n%s", out)
	}
}

func TestInterfaceEmptyClassGetsPass(t *testing.T) {
	src := `class Marker:
    label: str
`
	out := emitInterface(t, src)
	if !strings.Contains(out, "cdef class Marker:\n    pass\n") {
		t.Errorf("class with no linkable members needs an explicit pass:\n%s", out)
	}
}

func TestInterfaceDefOnlyOmitsSignatures(t *testing.T) {
	opts := pyxgen.DefaultOptions()
	opts.DefaultToCpdef = false

	// Plain-def methods are not linkable, but attribute declarations are.
	src := `class Box:
    v: int

    def get(self) -> int:
        return self.v
`
	out := emitInterfaceOpts(t, src, opts)
	if strings.Contains(out, "cpdef") {
		t.Errorf("def-only module must not declare cpdef signatures:\n%s", out)
	}
	wantLines(t, out, "cdef class Box:", "    cdef long v")

	// A module of bare functions has no native surface left at all.
	fnOnly := "def scale(x: float) -> float:\n    return x * 2.0\n"
	if out := emitInterfaceOpts(t, fnOnly, opts); out != "" {
		t.Errorf("def-only functions should yield no interface, got:\n%s", out)
	}
}

func TestEmitSetup(t *testing.T) {
	c, err := EmitSetup("simulation", false)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`"simulation"`,
		`["simulation.pyx"]`,
		`language="c"`,
		"name='simulation_module'",
		"cythonize(",
	} {
		if !strings.Contains(c, want) {
			t.Errorf("setup.py missing %q:\n%s", want, c)
		}
	}

	cpp, err := EmitSetup("simulation", true)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(cpp, `language="c++"`) {
		t.Errorf("C++ module should select language c++:\n%s", cpp)
	}
}
