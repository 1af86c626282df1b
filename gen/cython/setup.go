package cython

import (
	"bytes"
	"text/template"
)

// setupTemplate is the build script shell. It needs only the module name and
// the output language, which depends on whether native containers were used.
var setupTemplate = template.Must(template.New("setup").Parse(`from setuptools import setup, Extension
from Cython.Build import cythonize

# To compile, run:
# python setup.py build_ext --inplace

ext_modules = [
    Extension(
        "{{.ModuleName}}",
        ["{{.ModuleName}}.pyx"],
        language="{{.Language}}"
    )
]

setup(
    name='{{.ModuleName}}_module',
    ext_modules=cythonize(
        ext_modules,
        compiler_directives={'language_level': "3"},
        quiet=True
    ),
)
`))

// EmitSetup renders the setup.py build script for the generated module.
func EmitSetup(moduleName string, usesCPP bool) (string, error) {
	language := "c"
	if usesCPP {
		language = "c++"
	}
	var buf bytes.Buffer
	err := setupTemplate.Execute(&buf, struct {
		ModuleName string
		Language   string
	}{ModuleName: moduleName, Language: language})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
