package security

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"

	"github.com/platinummonkey/gantry/pkg/metadata"
)

// Env holds the variables an expression can read
type Env struct {
	User           *User
	Object         metadata.Item
	PreviousObject metadata.Item
	// Granted resolves is_granted calls
	Granted func(role string) bool
}

// principal is the user as seen by expressions
type principal map[string]any

// exprEnv is the compile and run environment of every expression
type exprEnv struct {
	User           principal                              `expr:"user"`
	Object         metadata.Item                          `expr:"object"`
	PreviousObject metadata.Item                          `expr:"previous_object"`
	IsGranted      func(role string, subject ...any) bool `expr:"is_granted"`
}

func newEnv(env Env) exprEnv {
	out := exprEnv{
		Object:         env.Object,
		PreviousObject: env.PreviousObject,
		IsGranted: func(role string, _ ...any) bool {
			return env.Granted != nil && env.Granted(role)
		},
	}
	if u := env.User; u != nil {
		roles := make([]any, len(u.Roles))
		for i, r := range u.Roles {
			roles[i] = r
		}
		out.User = principal{"username": u.Username, "userIdentifier": u.Username, "roles": roles}
	}
	return out
}

// Expression is a compiled security expression
type Expression struct {
	source  string
	program *vm.Program
}

// String returns the source of the expression
func (e *Expression) String() string {
	return e.source
}

// Evaluate reports whether the expression grants access
func (e *Expression) Evaluate(env Env) (bool, error) {
	out, err := expr.Run(e.program, newEnv(env))
	if err != nil {
		return false, fmt.Errorf("expression %q: %w", e.source, err)
	}
	granted, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q: result is %T, not bool", e.source, out)
	}
	return granted, nil
}

// subjectEqual backs == and != in expressions
const subjectEqual = "subject_equal"

// Compile parses an expression such as
// "is_granted('ROLE_USER') and object.owner == user"
func Compile(source string) (*Expression, error) {
	if strings.TrimSpace(source) == "" {
		return nil, errors.New("empty expression")
	}
	program, err := expr.Compile(source,
		expr.Env(exprEnv{}),
		expr.AsBool(),
		expr.Function(subjectEqual, func(params ...any) (any, error) {
			return equal(params[0], params[1]), nil
		}, new(func(any, any) bool)),
		expr.Patch(comparisons{}),
	)
	if err != nil {
		return nil, fmt.Errorf("expression %q: %w", source, err)
	}
	return &Expression{source: source, program: program}, nil
}

// comparisons rewrites == and != into subject_equal calls so that a user
// compares equal to its username, and reads null as nil
type comparisons struct{}

func (comparisons) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		if n.Value == "null" {
			ast.Patch(node, &ast.NilNode{})
		}
	case *ast.BinaryNode:
		if n.Operator != "==" && n.Operator != "!=" {
			return
		}
		call := &ast.CallNode{
			Callee:    &ast.IdentifierNode{Value: subjectEqual},
			Arguments: []ast.Node{n.Left, n.Right},
		}
		if n.Operator == "!=" {
			ast.Patch(node, &ast.UnaryNode{Operator: "not", Node: call})
			return
		}
		ast.Patch(node, call)
	}
}

// equal compares values; a user equals its username
func equal(a, b any) bool {
	a, b = subjectValue(a), subjectValue(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func subjectValue(v any) any {
	switch x := v.(type) {
	case principal:
		if x == nil {
			return nil
		}
		return x["username"]
	case metadata.Item:
		if x == nil {
			return nil
		}
	case map[string]any:
		if x == nil {
			return nil
		}
	}
	return v
}
