package template

import "strings"

// Result is the output of rendering a template.
type Result struct {
	Text string
	// Unresolved lists placeholders that had no value and rendered as "".
	Unresolved []*TemplateResolutionError
}

// Render substitutes values into the template in a single pass.
// Substituted values are written as-is and never scanned for placeholders.
func (t *Template) Render(values map[string]string) Result {
	var sb strings.Builder
	var res Result

	for _, n := range t.Nodes {
		switch node := n.(type) {
		case *TextNode:
			sb.WriteString(node.Text)
		case *PlaceholderNode:
			v, ok := values[node.Name]
			if !ok {
				res.Unresolved = append(res.Unresolved, NewTemplateResolutionError(node.Pos(), node.Name))
				continue
			}
			sb.WriteString(v)
		}
	}

	res.Text = sb.String()
	return res
}

// Substitute parses src through the shared cache and renders it with values.
// The only error is a malformed template; missing values render as "".
func Substitute(src string, values map[string]string) (Result, error) {
	tmpl, err := defaultCache.Get(src, "")
	if err != nil {
		return Result{}, err
	}
	return tmpl.Render(values), nil
}
