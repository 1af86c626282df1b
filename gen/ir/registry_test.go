package ir

import (
	"strings"
	"testing"
)

func TestResolveBuiltins(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		py string
		cy string
	}{
		{"int", "long"},
		{"float", "double"},
		{"bool", "bint"},
		{"None", "void"},
		{"str", "object"},
		{"List", "vector"},
		{"Dict", "map"},
		{"Set", "set"},
		{"object", "object"},
	}
	for _, tt := range tests {
		t.Run(tt.py, func(t *testing.T) {
			d := r.Resolve(tt.py)
			if d.CyName != tt.cy {
				t.Errorf("Resolve(%q).CyName = %q, want %q", tt.py, d.CyName, tt.cy)
			}
		})
	}
}

func TestResolveUnknownDegradesToObject(t *testing.T) {
	r := NewRegistry()

	d := r.Resolve("Banana")
	if d.CyName != "object" {
		t.Errorf("unknown name resolves to %q, want object", d.CyName)
	}
	if r.Known("Banana") {
		t.Error("Known should be false for unknown names")
	}
	if !r.Known("int") {
		t.Error("Known should be true for int")
	}
}

func TestResolveReturnsIndependentCopies(t *testing.T) {
	r := NewRegistry()

	a := r.Resolve("List")
	a.Dtype = "mutated"
	a.Params = append(a.Params, r.Resolve("int"))

	b := r.Resolve("List")
	if b.Dtype == "mutated" {
		t.Error("mutation of one resolved descriptor leaked into the prototype")
	}
	if len(b.Params) != 0 {
		t.Error("prototype grew params through a resolved copy")
	}
}

func TestParameterize(t *testing.T) {
	r := NewRegistry()

	vec := r.Parameterize(r.Resolve("List"), []Descriptor{r.Resolve("int")})
	if len(vec.Params) != 1 || vec.Params[0].CyName != "long" {
		t.Fatalf("params = %+v, want one long", vec.Params)
	}
	if got := vec.CythonType(); got != "vector[long]*" {
		t.Errorf("CythonType = %q, want vector[long]*", got)
	}
	if got := vec.BaseType(); got != "vector[long]" {
		t.Errorf("BaseType = %q, want vector[long]", got)
	}
	if !r.UsesCPP() {
		t.Error("parameterizing a container should mark C++ usage")
	}
}

func TestParameterizeStrBecomesString(t *testing.T) {
	r := NewRegistry()

	m := r.Parameterize(r.Resolve("Dict"), []Descriptor{r.Resolve("str"), r.Resolve("int")})
	if m.Params[0].CyName != "string" {
		t.Errorf("str inside template = %q, want string", m.Params[0].CyName)
	}
	if got := m.BaseType(); got != "map[string, long]" {
		t.Errorf("BaseType = %q, want map[string, long]", got)
	}

	imports := strings.Join(r.Cimports(), "\n")
	if !strings.Contains(imports, "from libcpp.string cimport string") {
		t.Errorf("missing string header import, got:\n%s", imports)
	}
	if !strings.Contains(imports, "from libcpp.map cimport map") {
		t.Errorf("missing map header import, got:\n%s", imports)
	}
	if !strings.Contains(imports, "dereference as deref") {
		t.Errorf("owned container should pull in deref, got:\n%s", imports)
	}
}

func TestParameterizeNonContainer(t *testing.T) {
	r := NewRegistry()

	d := r.Parameterize(r.Resolve("int"), []Descriptor{r.Resolve("int")})
	if len(d.Params) != 0 {
		t.Errorf("non-container grew params: %+v", d.Params)
	}
	if r.UsesCPP() {
		t.Error("non-container parameterize must not mark C++ usage")
	}
}

func TestViewTypes(t *testing.T) {
	r := NewRegistry()

	d := r.Resolve("ndarray")
	if !d.View {
		t.Fatal("ndarray should be a view")
	}
	if got := d.CythonType(); got != "double[::1]" {
		t.Errorf("1-dim view = %q, want double[::1]", got)
	}

	d.NDim = 2
	if got := d.CythonType(); got != "double[:, ::1]" {
		t.Errorf("2-dim view = %q, want double[:, ::1]", got)
	}

	d.Dtype = "long"
	d.NDim = 3
	if got := d.CythonType(); got != "long[:, :, ::1]" {
		t.Errorf("3-dim long view = %q, want long[:, :, ::1]", got)
	}
}

func TestMarkNumPy(t *testing.T) {
	r := NewRegistry()
	r.MarkNumPy()

	imports := r.Cimports()
	want := []string{"cimport numpy as np", "import numpy as np"}
	if len(imports) != 2 || imports[0] != want[0] || imports[1] != want[1] {
		t.Errorf("Cimports = %v, want %v", imports, want)
	}
}

func TestCimportsSortedAndDeduplicated(t *testing.T) {
	r := NewRegistry()
	r.AddCimport("import numpy as np")
	r.AddCimport("cimport numpy as np")
	r.AddCimport("import numpy as np")

	imports := r.Cimports()
	if len(imports) != 2 {
		t.Fatalf("got %d imports, want 2 after dedup", len(imports))
	}
	if imports[0] != "cimport numpy as np" {
		t.Errorf("imports not sorted: %v", imports)
	}
}

func TestElementType(t *testing.T) {
	r := NewRegistry()

	vec := r.Parameterize(r.Resolve("List"), []Descriptor{r.Resolve("float")})
	if el, ok := ElementType(vec); !ok || el.CyName != "double" {
		t.Errorf("vector element = %+v ok=%v, want double", el, ok)
	}

	m := r.Parameterize(r.Resolve("Dict"), []Descriptor{r.Resolve("str"), r.Resolve("int")})
	if el, ok := ElementType(m); !ok || el.CyName != "long" {
		t.Errorf("map element = %+v ok=%v, want the value type long", el, ok)
	}

	view := r.Resolve("ndarray")
	if el, ok := ElementType(view); !ok || el.CyName != "double" {
		t.Errorf("view element = %+v ok=%v, want double", el, ok)
	}

	if _, ok := ElementType(r.Resolve("int")); ok {
		t.Error("scalar should have no element type")
	}
}

func TestTranslateMethod(t *testing.T) {
	tests := []struct {
		container string
		method    string
		want      string
		ok        bool
	}{
		{"vector", "append", "push_back", true},
		{"set", "add", "insert", true},
		{"vector", "sort", "", false},
		{"map", "get", "", false},
		{"deque", "append", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.container+"."+tt.method, func(t *testing.T) {
			got, ok := TranslateMethod(tt.container, tt.method)
			if got != tt.want || ok != tt.ok {
				t.Errorf("TranslateMethod(%q, %q) = %q, %v; want %q, %v",
					tt.container, tt.method, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestRecognizedContainer(t *testing.T) {
	if !RecognizedContainer("vector") || !RecognizedContainer("map") || !RecognizedContainer("set") {
		t.Error("native containers should be recognized")
	}
	if RecognizedContainer("list") {
		t.Error("interpreter list should not be recognized")
	}
}

func TestIsObject(t *testing.T) {
	r := NewRegistry()
	if !r.Resolve("object").IsObject() {
		t.Error("object descriptor should report IsObject")
	}
	if r.Resolve("int").IsObject() {
		t.Error("int should not report IsObject")
	}
	if r.Resolve("ndarray").IsObject() {
		t.Error("ndarray view should not report IsObject")
	}
}
