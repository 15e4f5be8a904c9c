package template

import "strings"

// inputsPrefix is accepted in front of placeholder names ({inputs.message}).
const inputsPrefix = "inputs."

// Parse tokenizes and parses a template. The file name is only used in error positions.
func Parse(input, file string) (*Template, error) {
	tokens, err := NewLexer(input, file).Tokenize()
	if err != nil {
		return nil, err
	}

	tmpl := &Template{File: file, Source: input}
	for _, tok := range tokens {
		switch tok.Type {
		case TokenText:
			if tok.Value == "" {
				continue
			}
			// Merge adjacent text so escapes do not fragment the node list
			if n := len(tmpl.Nodes); n > 0 {
				if prev, ok := tmpl.Nodes[n-1].(*TextNode); ok {
					prev.Text += tok.Value
					continue
				}
			}
			tmpl.Nodes = append(tmpl.Nodes, &TextNode{nodeBase: nodeBase{pos: tok.Pos}, Text: tok.Value})
		case TokenPlaceholder:
			name := strings.TrimPrefix(tok.Value, inputsPrefix)
			tmpl.Nodes = append(tmpl.Nodes, &PlaceholderNode{nodeBase: nodeBase{pos: tok.Pos}, Name: name})
		case TokenEOF:
			return tmpl, nil
		}
	}
	return tmpl, nil
}
