package template

import (
	"strings"
	"unicode/utf8"
)

// TokenType identifies the type of token.
type TokenType int

// TokenType constants for template token types.
const (
	TokenText        TokenType = iota // Literal text, escapes resolved
	TokenPlaceholder                  // Placeholder name (between { and })
	TokenEOF                          // End of input
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "TEXT"
	case TokenPlaceholder:
		return "PLACEHOLDER"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Token represents a lexical token.
type Token struct {
	Type  TokenType
	Value string
	Pos   Position
}

// Lexer tokenizes a template string.
type Lexer struct {
	input    string
	file     string
	pos      int // current position in input
	line     int // current line number (1-based)
	col      int // current column number (1-based)
	lastLine int // line at start of current token
	lastCol  int // column at start of current token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input, file string) *Lexer {
	return &Lexer{
		input: input,
		file:  file,
		pos:   0,
		line:  1,
		col:   1,
	}
}

// Tokenize converts the input into a slice of tokens.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token

	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}

	return tokens, nil
}

// nextToken returns the next token from the input.
func (l *Lexer) nextToken() (Token, error) {
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.position()}, nil
	}

	// A single { opens a placeholder; {{ is an escaped brace and stays text
	if l.matchString("{") && !l.matchString("{{") {
		return l.scanPlaceholder()
	}

	return l.scanText()
}

// scanText scans literal text until a placeholder or EOF, resolving {{ and }}.
func (l *Lexer) scanText() (Token, error) {
	l.markStart()
	var sb strings.Builder

	for l.pos < len(l.input) {
		switch {
		case l.matchString("{{"):
			sb.WriteByte('{')
			l.advanceN(2)
			continue
		case l.matchString("}}"):
			sb.WriteByte('}')
			l.advanceN(2)
			continue
		case l.matchString("{"):
			return l.textToken(sb.String()), nil
		case l.matchString("}"):
			return Token{}, NewLexError(l.position(), "single '}' encountered in template")
		}
		_, size := utf8.DecodeRuneInString(l.input[l.pos:])
		sb.WriteString(l.input[l.pos : l.pos+size])
		l.advance()
	}

	return l.textToken(sb.String()), nil
}

func (l *Lexer) textToken(text string) Token {
	return Token{
		Type:  TokenText,
		Value: text,
		Pos:   l.startPosition(),
	}
}

// scanPlaceholder scans a {name} placeholder.
func (l *Lexer) scanPlaceholder() (Token, error) {
	l.markStart()

	// Skip {
	l.advance()
	nameStart := l.pos

	for l.pos < len(l.input) {
		r := l.peek()
		if r == '}' {
			name := strings.TrimSpace(l.input[nameStart:l.pos])
			l.advance()
			if name == "" {
				return Token{}, NewLexError(l.startPosition(), "empty placeholder '{}'")
			}
			return Token{
				Type:  TokenPlaceholder,
				Value: name,
				Pos:   l.startPosition(),
			}, nil
		}
		if r == '{' || r == '\n' {
			break
		}
		l.advance()
	}

	return Token{}, NewLexError(l.startPosition(), "unclosed placeholder: missing '}'")
}

// Helper methods

// peek returns the current rune without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

// advance moves to the next rune, updating position tracking.
func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

func (l *Lexer) advanceN(n int) {
	for i := 0; i < n; i++ {
		l.advance()
	}
}

// matchString checks if the input at current position matches s.
func (l *Lexer) matchString(s string) bool {
	return strings.HasPrefix(l.input[l.pos:], s)
}

// markStart records the start position for the current token.
func (l *Lexer) markStart() {
	l.lastLine = l.line
	l.lastCol = l.col
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{File: l.file, Line: l.line, Column: l.col}
}

// startPosition returns the position where the current token started.
func (l *Lexer) startPosition() Position {
	return Position{File: l.file, Line: l.lastLine, Column: l.lastCol}
}
