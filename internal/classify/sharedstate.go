package classify

import (
	"fmt"
	"regexp"

	sitter "github.com/smacker/go-tree-sitter"
)

// mutableConstructors are call targets that create shared mutable objects
// when assigned at class scope.
var mutableConstructors = map[string]bool{
	"list":      true,
	"dict":      true,
	"set":       true,
	"Mock":      true,
	"MagicMock": true,
}

// fixtureScopeRe matches pytest fixtures declared with a scope wider than
// one test, which makes their state shared across parallel workers.
var fixtureScopeRe = regexp.MustCompile(`fixture\s*\([^)]*scope\s*=\s*["'](session|module)["']`)

// detectSharedState walks a pytest file for static state that can make
// parallel outcomes diverge from sequential ones: class-level mutable
// attributes and broadly scoped fixtures. Findings are advisory; the
// consistency validator catches the dynamic consequences.
func detectSharedState(root *sitter.Node, rel string, content []byte) []Finding {
	var findings []Finding

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "class_definition":
			className := ""
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				className = nameNode.Content(content)
			}
			if body := n.ChildByFieldName("body"); body != nil {
				for i := 0; i < int(body.NamedChildCount()); i++ {
					stmt := body.NamedChild(i)
					if stmt.Type() != "expression_statement" || stmt.NamedChildCount() == 0 {
						continue
					}
					assign := stmt.NamedChild(0)
					if assign.Type() != "assignment" {
						continue
					}
					left := assign.ChildByFieldName("left")
					right := assign.ChildByFieldName("right")
					if left == nil || right == nil || left.Type() != "identifier" {
						continue
					}
					if isMutableValue(right, content) {
						findings = append(findings, Finding{
							File: rel,
							Line: int(assign.StartPoint().Row) + 1,
							Kind: "class_mutable_state",
							Detail: fmt.Sprintf("class %s has mutable class-level attribute %q",
								className, left.Content(content)),
						})
					}
				}
			}
		case "decorated_definition":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				if child.Type() != "decorator" {
					continue
				}
				m := fixtureScopeRe.FindStringSubmatch(child.Content(content))
				if m == nil {
					continue
				}
				funcName := ""
				if def := n.ChildByFieldName("definition"); def != nil {
					if nameNode := def.ChildByFieldName("name"); nameNode != nil {
						funcName = nameNode.Content(content)
					}
				}
				findings = append(findings, Finding{
					File: rel,
					Line: int(child.StartPoint().Row) + 1,
					Kind: "shared_fixture_scope",
					Detail: fmt.Sprintf("fixture %q has shared scope %q",
						funcName, m[1]),
				})
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return findings
}

// isMutableValue reports whether an assignment right-hand side creates a
// mutable object.
func isMutableValue(n *sitter.Node, content []byte) bool {
	switch n.Type() {
	case "list", "dictionary", "set":
		return true
	case "call":
		fn := n.ChildByFieldName("function")
		return fn != nil && fn.Type() == "identifier" && mutableConstructors[fn.Content(content)]
	}
	return false
}
