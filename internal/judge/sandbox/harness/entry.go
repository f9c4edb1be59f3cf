package harness

import (
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

const sourceName = "solution.js"

type entryCandidate struct {
	name   string
	params []string
}

// discoverEntries parses code as a standalone script and lists its top-level
// callables in source order: function declarations and var/let/const bindings
// initialised with a function or arrow literal.
func discoverEntries(code string) ([]entryCandidate, error) {
	program, err := parser.ParseFile(nil, sourceName, code, 0)
	if err != nil {
		return nil, &SyntaxError{Message: "SyntaxError: " + err.Error()}
	}
	var out []entryCandidate
	for _, stmt := range program.Body {
		switch st := stmt.(type) {
		case *ast.FunctionDeclaration:
			if st.Function == nil || st.Function.Name == nil {
				continue
			}
			out = append(out, entryCandidate{
				name:   st.Function.Name.Name.String(),
				params: paramNames(st.Function.ParameterList),
			})
		case *ast.VariableStatement:
			out = appendBindings(out, st.List)
		case *ast.LexicalDeclaration:
			out = appendBindings(out, st.List)
		}
	}
	return out, nil
}

func appendBindings(out []entryCandidate, bindings []*ast.Binding) []entryCandidate {
	for _, b := range bindings {
		id, ok := b.Target.(*ast.Identifier)
		if !ok {
			continue
		}
		switch init := b.Initializer.(type) {
		case *ast.FunctionLiteral:
			out = append(out, entryCandidate{name: id.Name.String(), params: paramNames(init.ParameterList)})
		case *ast.ArrowFunctionLiteral:
			out = append(out, entryCandidate{name: id.Name.String(), params: paramNames(init.ParameterList)})
		}
	}
	return out
}

// paramNames returns simple parameter names; destructured parameters yield "".
func paramNames(list *ast.ParameterList) []string {
	if list == nil {
		return []string{}
	}
	names := make([]string, 0, len(list.List))
	for _, p := range list.List {
		if id, ok := p.Target.(*ast.Identifier); ok {
			names = append(names, id.Name.String())
			continue
		}
		names = append(names, "")
	}
	return names
}
