// Package recordfilter splits drained blocks into records and selects the
// records a consumer wants to see.
package recordfilter

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// Split returns the records of a drained block, without their delimiters.
// A trailing newline does not produce an empty record.
func Split(block string) []string {
	block = strings.TrimSuffix(block, "\n")
	if block == "" {
		return nil
	}
	return strings.Split(block, "\n")
}

// Filter decides which records are kept. The zero Filter keeps everything.
type Filter struct {
	keyword string
	program cel.Program
	expr    string
}

// Keyword returns a Filter keeping records that contain keyword.
func Keyword(keyword string) *Filter {
	return &Filter{keyword: keyword}
}

// Expression compiles a CEL boolean expression over the string variable
// "record", e.g. `record.startsWith("Mouse Move") && record.endsWith("=0")`.
func Expression(expr string) (*Filter, error) {
	env, err := cel.NewEnv(cel.Variable("record", cel.StringType))
	if err != nil {
		return nil, fmt.Errorf("failed to create filter environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", expr, issues.Err())
	}
	if ast.OutputType().String() != cel.BoolType.String() {
		return nil, fmt.Errorf("invalid filter %q: result is %s, want bool", expr, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build filter %q: %w", expr, err)
	}

	return &Filter{program: program, expr: expr}, nil
}

// New combines an optional keyword and an optional expression. Both must
// match when both are set.
func New(keyword, expr string) (*Filter, error) {
	if expr == "" {
		return Keyword(keyword), nil
	}
	f, err := Expression(expr)
	if err != nil {
		return nil, err
	}
	f.keyword = keyword
	return f, nil
}

// Match reports whether record passes the filter.
func (f *Filter) Match(record string) (bool, error) {
	if f == nil {
		return true, nil
	}
	if f.keyword != "" && !strings.Contains(record, f.keyword) {
		return false, nil
	}
	if f.program == nil {
		return true, nil
	}

	out, _, err := f.program.Eval(map[string]any{"record": record})
	if err != nil {
		return false, fmt.Errorf("filter %q failed on %q: %w", f.expr, record, err)
	}
	keep, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter %q returned %T, want bool", f.expr, out.Value())
	}
	return keep, nil
}

// Apply splits block and returns the records that pass the filter.
func (f *Filter) Apply(block string) ([]string, error) {
	records := Split(block)
	kept := records[:0]
	for _, record := range records {
		ok, err := f.Match(record)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, record)
		}
	}
	return kept, nil
}
