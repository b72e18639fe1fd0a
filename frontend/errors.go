package frontend

import "fmt"

// SyntaxError reports a parse failure with its source position, mirroring
// the compiler package's own Error{Kind,Message,Pos} shape.
type SyntaxError struct {
	Message string
	Line    int
	Col     int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d: %s", e.Line, e.Col, e.Message)
}

func syntaxErrorf(tok Token, format string, args ...interface{}) *SyntaxError {
	return &SyntaxError{Message: fmt.Sprintf(format, args...), Line: tok.Line, Col: tok.Col}
}
