// Package directive parses pyxgen directives from source files.
//
// Directives are comment lines in the leading comment block, before any code:
//
//	# pyx: boundscheck=False
//	# pyx: auto_nogil=True
//
// They override the option set for that file only. Values use Python
// spelling for booleans (True/False).
package directive

import (
	"fmt"
	"strings"

	"github.com/broady/pyxgen"
	"github.com/broady/pyxgen/gen/ir"
	"github.com/gorilla/schema"
)

const prefix = "# pyx:"

// knownKeys is the full directive surface. Anything else is reported, not
// silently dropped.
var knownKeys = map[string]bool{
	"language_level":   true,
	"boundscheck":      true,
	"wraparound":       true,
	"cdivision":        true,
	"nonecheck":        true,
	"auto_nogil":       true,
	"default_to_cpdef": true,
}

// Apply scans src's leading comment block for directives and applies them to
// opts in place. Unknown keys degrade to warnings; the only error is a
// post-application validation failure.
func Apply(opts *pyxgen.Options, src string) ([]ir.Warning, error) {
	values, warnings := scan(src)
	if len(values) == 0 {
		return warnings, nil
	}

	dec := schema.NewDecoder()
	dec.IgnoreUnknownKeys(true)

	if err := dec.Decode(&opts.Directives, values); err != nil {
		warnings = append(warnings, ir.Warning{
			Code:    string(pyxgen.CodeInvalidConfig),
			Message: fmt.Sprintf("directive decode: %v", err),
		})
	}
	if err := dec.Decode(opts, values); err != nil {
		warnings = append(warnings, ir.Warning{
			Code:    string(pyxgen.CodeInvalidConfig),
			Message: fmt.Sprintf("directive decode: %v", err),
		})
	}

	if err := opts.Validate(); err != nil {
		return warnings, err
	}
	return warnings, nil
}

// scan collects key=value pairs from `# pyx:` lines. Scanning stops at the
// first line that is neither blank nor a comment, matching where Cython
// itself accepts directive comments.
func scan(src string) (map[string][]string, []ir.Warning) {
	values := make(map[string][]string)
	var warnings []ir.Warning

	for i, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "#") {
			break
		}
		if !strings.HasPrefix(trimmed, prefix) {
			continue
		}
		body := strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
		for _, pair := range strings.Split(body, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			key, value, found := strings.Cut(pair, "=")
			if !found {
				warnings = append(warnings, ir.Warning{
					Code:    string(pyxgen.CodeInvalidConfig),
					Message: fmt.Sprintf("malformed directive %q, expected key=value", pair),
					Line:    i + 1,
				})
				continue
			}
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
			if !knownKeys[key] {
				warnings = append(warnings, ir.Warning{
					Code:    string(pyxgen.CodeInvalidConfig),
					Message: fmt.Sprintf("unknown directive %q ignored", key),
					Line:    i + 1,
				})
				continue
			}
			values[key] = []string{value}
		}
	}
	return values, warnings
}
