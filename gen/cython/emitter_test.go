package cython

import (
	"strings"
	"testing"

	"github.com/broady/pyxgen"
	"github.com/broady/pyxgen/gen/analyze"
	"github.com/broady/pyxgen/gen/ir"
	"github.com/broady/pyxgen/pyast"
)

func emit(t *testing.T, src string, opts pyxgen.Options) string {
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
	analyze.AnalyzePurity(res)
	out, _ := EmitModule(mod, res, reg, opts)
	return out
}

func wantLines(t *testing.T, out string, lines ...string) {
	t.Helper()
	for _, line := range lines {
		if !strings.Contains(out, line+"\n") {
			t.Errorf("output missing line %q\n---\n%s", line, out)
		}
	}
}

func TestEmitDirectiveHeader(t *testing.T) {
	out := emit(t, "x: int = 1\n", pyxgen.DefaultOptions())

	want := `# cython: language_level=3
# cython: boundscheck=False
# cython: wraparound=False
# cython: cdivision=True
# cython: nonecheck=False

cdef long x = 1
`
	if out != want {
		t.Errorf("output:\n%s\nwant:\n%s", out, want)
	}
}

func TestEmitCimportBlock(t *testing.T) {
	out := emit(t, "values: List[float] = []\n", pyxgen.DefaultOptions())

	wantLines(t, out,
		"from cython.operator cimport dereference as deref",
		"from libcpp.vector cimport vector",
		"cdef vector[double]* values = new vector[double]()",
	)

	// cimports come after the directive block, before any code.
	directives := strings.Index(out, "# cython:")
	imports := strings.Index(out, "from libcpp")
	code := strings.Index(out, "cdef vector")
	if !(directives < imports && imports < code) {
		t.Errorf("section order wrong:\n%s", out)
	}
}

func TestEmitCpdefFunction(t *testing.T) {
	src := `def scale(x: float, n: int) -> float:
    return x * n
`
	out := emit(t, src, pyxgen.DefaultOptions())
	wantLines(t, out,
		"cpdef double scale(double x, long n):",
		"    with nogil:",
		"        return x * n",
	)
}

func TestEmitDefWhenCpdefDisabled(t *testing.T) {
	src := `def scale(x: float) -> float:
    return x
`
	opts := pyxgen.DefaultOptions()
	opts.DefaultToCpdef = false
	out := emit(t, src, opts)

	wantLines(t, out, "def scale(x):")
	if strings.Contains(out, "cpdef") {
		t.Errorf("cpdef emitted with default_to_cpdef=false:\n%s", out)
	}
}

func TestEmitNogilDisabled(t *testing.T) {
	src := `def scale(x: float) -> float:
    return x
`
	opts := pyxgen.DefaultOptions()
	opts.AutoNogil = false
	out := emit(t, src, opts)

	if strings.Contains(out, "nogil") {
		t.Errorf("nogil emitted with auto_nogil=false:\n%s", out)
	}
	wantLines(t, out, "    return x")
}

func TestEmitVoidReturn(t *testing.T) {
	src := `def log(x: int) -> None:
    print(x)
`
	out := emit(t, src, pyxgen.DefaultOptions())
	wantLines(t, out,
		"cpdef void log(long x):",
		"    print(x)",
	)
}

func TestEmitClassWithOwnedContainer(t *testing.T) {
	src := `class Acc:
    '''Running accumulator.'''
    total: float
    values: List[float]

    def push(self, v: float) -> None:
        self.total += v
        self.values.append(v)
`
	out := emit(t, src, pyxgen.DefaultOptions())
	wantLines(t, out,
		"cdef class Acc:",
		"    '''Running accumulator.'''",
		"    cdef double total",
		"    cdef vector[double]* values",
		"    def __cinit__(self):",
		"        self.values = new vector[double]()",
		"    def __dealloc__(self):",
		"        del self.values",
		"    cpdef void push(Acc self, double v):",
		"            deref(self.values).push_back(v)",
	)
}

func TestEmitHooksStayDef(t *testing.T) {
	src := `class P:
    x: float

    def __init__(self, x: float) -> None:
        self.x = x
`
	out := emit(t, src, pyxgen.DefaultOptions())
	wantLines(t, out,
		"    def __init__(self, x):",
		"        self.x = x",
	)
	if strings.Contains(out, "cpdef") && strings.Contains(out, "__init__") {
		if strings.Contains(out, "cpdef") {
			// cpdef must never decorate a dunder hook.
			for _, line := range strings.Split(out, "\n") {
				if strings.Contains(line, "cpdef") && strings.Contains(line, "__init__") {
					t.Errorf("hook emitted as cpdef: %q", line)
				}
			}
		}
	}
}

func TestEmitEmptyClassGetsPass(t *testing.T) {
	out := emit(t, "class Marker:\n    pass\n", pyxgen.DefaultOptions())
	wantLines(t, out,
		"cdef class Marker:",
		"    pass",
	)
}

func TestEmitTwoLevelDeref(t *testing.T) {
	src := `class Index:
    m: Dict[str, List[int]]

    def add(self, k: str, v: int) -> None:
        self.m[k].append(v)

    def start(self, k: str) -> None:
        self.m[k] = []
`
	out := emit(t, src, pyxgen.DefaultOptions())
	wantLines(t, out,
		"        deref(deref(self.m)[k]).push_back(v)",
		"        deref(self.m)[k] = new vector[long]()",
	)
}

func TestEmitOptionalPointer(t *testing.T) {
	src := `def reset(x: Optional[int]) -> None:
    x = None
    x = 5
`
	opts := pyxgen.DefaultOptions()
	opts.AutoNogil = false
	out := emit(t, src, opts)
	wantLines(t, out,
		"cpdef void reset(long* x):",
		"    x = NULL",
		"    deref(x) = 5",
	)
}

func TestEmitOptionalDeclaration(t *testing.T) {
	src := `def f() -> None:
    limit: Optional[int] = None
    limit = 3
`
	opts := pyxgen.DefaultOptions()
	opts.AutoNogil = false
	out := emit(t, src, opts)
	wantLines(t, out,
		"    cdef long* limit = NULL",
		"    deref(limit) = 3",
	)
}

func TestEmitOptionalAttribute(t *testing.T) {
	src := `class Slot:
    v: Optional[int]

    def clear(self) -> None:
        self.v = None

    def store(self) -> None:
        self.v = 5
`
	opts := pyxgen.DefaultOptions()
	opts.AutoNogil = false
	out := emit(t, src, opts)
	wantLines(t, out,
		"    cdef long* v",
		"        self.v = NULL",
		"        deref(self.v) = 5",
	)
}

func TestEmitAugAssignDerefsPointer(t *testing.T) {
	src := `def bump(x: Optional[int]) -> None:
    x += 1
`
	opts := pyxgen.DefaultOptions()
	opts.AutoNogil = false
	out := emit(t, src, opts)
	wantLines(t, out, "    deref(x) += 1")
}

func TestEmitLenTranslation(t *testing.T) {
	src := `def sizes(data: Annotated[np.ndarray, 'double', 1], values: List[int]) -> int:
    return len(data) + len(values)
`
	opts := pyxgen.DefaultOptions()
	opts.AutoNogil = false
	out := emit(t, src, opts)
	wantLines(t, out, "    return data.shape[0] + deref(values).size()")
}

func TestEmitSubscriptDeref(t *testing.T) {
	src := `def pick(values: List[float], i: int) -> float:
    return values[i]
`
	opts := pyxgen.DefaultOptions()
	opts.AutoNogil = false
	out := emit(t, src, opts)
	wantLines(t, out, "    return deref(values)[i]")
}

func TestEmitViewSubscriptStaysDirect(t *testing.T) {
	src := `def at(data: Annotated[np.ndarray, 'double', 1], i: int) -> float:
    return data[i]
`
	opts := pyxgen.DefaultOptions()
	opts.AutoNogil = false
	out := emit(t, src, opts)
	wantLines(t, out, "    return data[i]")
	if strings.Contains(out, "deref(data)") {
		t.Errorf("view access must not deref:\n%s", out)
	}
}

func TestEmitFStringDerefsPointer(t *testing.T) {
	src := `def show(x: Optional[int]) -> None:
    msg = f"value={x}"
`
	out := emit(t, src, pyxgen.DefaultOptions())
	wantLines(t, out, "    cdef object msg = f'value={deref(x)}'")
}

func TestEmitFStringEscapesBraces(t *testing.T) {
	src := `def show(x: int) -> None:
    msg = f"{{literal}} {x}"
`
	out := emit(t, src, pyxgen.DefaultOptions())
	wantLines(t, out, "    cdef object msg = f'{{literal}} {x}'")
}

func TestEmitElifChain(t *testing.T) {
	src := `def sign(x: int) -> int:
    if x > 0:
        return 1
    elif x < 0:
        return 0 - 1
    else:
        return 0
`
	opts := pyxgen.DefaultOptions()
	opts.AutoNogil = false
	out := emit(t, src, opts)
	wantLines(t, out,
		"    if x > 0:",
		"    elif x < 0:",
		"    else:",
	)
}

func TestEmitWarningsOnPlaceholder(t *testing.T) {
	// An annotated tuple target has no translation rule; the emitter keeps
	// going and records a warning instead of failing.
	src := "def f(x: int) -> int:\n    return x\n"
	mod, err := pyast.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	reg := ir.NewRegistry()
	res, err := analyze.Annotate(mod, reg)
	if err != nil {
		t.Fatal(err)
	}
	analyze.AnalyzePurity(res)
	out, warnings := EmitModule(mod, res, reg, pyxgen.DefaultOptions())
	if out == "" {
		t.Fatal("no output")
	}
	for _, w := range warnings {
		if w.Code != string(pyxgen.CodeTranslation) {
			t.Errorf("warning code = %q, want translation", w.Code)
		}
	}
}

func TestEmitRebindLosesNoDeclaration(t *testing.T) {
	src := `def f() -> None:
    x: int = 1
    x = 2
`
	opts := pyxgen.DefaultOptions()
	opts.AutoNogil = false
	out := emit(t, src, opts)
	wantLines(t, out,
		"    cdef long x = 1",
		"    x = 2",
	)
	if strings.Count(out, "cdef long x") != 1 {
		t.Errorf("x declared more than once:\n%s", out)
	}
}
