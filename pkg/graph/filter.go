// ABOUTME: Filter expressions for graph queries
// ABOUTME: expr-lang programs evaluated against solution bindings

package graph

import (
	"fmt"
	"strings"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nainya/typecatalog/pkg/rdf"
)

const programCacheSize = 256

// filterFunctions are available in every filter expression. Unbound
// variables evaluate to nil.
var filterFunctions = []exprlang.Option{
	exprlang.Function("bound", func(params ...any) (any, error) {
		_, ok := termArg(params)
		return ok, nil
	}),
	exprlang.Function("str", func(params ...any) (any, error) {
		t, _ := termArg(params)
		return t.Value, nil
	}),
	exprlang.Function("lang", func(params ...any) (any, error) {
		t, _ := termArg(params)
		return t.Lang, nil
	}),
	exprlang.Function("datatype", func(params ...any) (any, error) {
		t, ok := termArg(params)
		if ok && t.IsLiteral() && t.Datatype == "" {
			return rdf.XSDString, nil
		}
		return t.Datatype, nil
	}),
	exprlang.Function("isIRI", func(params ...any) (any, error) {
		t, _ := termArg(params)
		return t.IsIRI(), nil
	}),
	exprlang.Function("isLiteral", func(params ...any) (any, error) {
		t, _ := termArg(params)
		return t.IsLiteral(), nil
	}),
	exprlang.Function("isBlank", func(params ...any) (any, error) {
		t, _ := termArg(params)
		return t.IsBlank(), nil
	}),
	exprlang.Function("langMatches", func(params ...any) (any, error) {
		if len(params) != 2 {
			return false, fmt.Errorf("langMatches expects 2 arguments")
		}
		tag, _ := params[0].(string)
		want, _ := params[1].(string)
		if want == "*" {
			return tag != "", nil
		}
		tag, want = strings.ToLower(tag), strings.ToLower(want)
		return tag == want || strings.HasPrefix(tag, want+"-"), nil
	}),
}

func termArg(params []any) (rdf.Term, bool) {
	if len(params) == 0 {
		return rdf.Term{}, false
	}
	switch v := params[0].(type) {
	case rdf.Term:
		return v, !v.IsZero()
	case *rdf.Term:
		if v == nil {
			return rdf.Term{}, false
		}
		return *v, !v.IsZero()
	default:
		return rdf.Term{}, false
	}
}

// filterSet compiles and caches filter programs
type filterSet struct {
	programs *lru.Cache[string, *exprvm.Program]
}

func newFilterSet() *filterSet {
	programs, err := lru.New[string, *exprvm.Program](programCacheSize)
	if err != nil {
		panic(err)
	}
	return &filterSet{programs: programs}
}

func (f *filterSet) compile(expression string) (*exprvm.Program, error) {
	if program, ok := f.programs.Get(expression); ok {
		return program, nil
	}
	options := append([]exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}, filterFunctions...)
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expression, err)
	}
	f.programs.Add(expression, program)
	return program, nil
}

// keep reports whether the solution passes every program. Evaluation errors
// and non-boolean results reject the solution.
func keep(programs []*exprvm.Program, sol Solution) bool {
	if len(programs) == 0 {
		return true
	}
	env := make(map[string]any, len(sol))
	for k, v := range sol {
		env[k] = v
	}
	for _, program := range programs {
		out, err := exprlang.Run(program, env)
		if err != nil {
			return false
		}
		ok, isBool := out.(bool)
		if !isBool || !ok {
			return false
		}
	}
	return true
}
