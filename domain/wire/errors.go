package wire

import "fmt"

// Kind classifies protocol-layer failures.
type Kind uint8

const (
	KindRange Kind = iota + 1
	KindLayout
	KindTraversal
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindRange:
		return "range"
	case KindLayout:
		return "layout"
	case KindTraversal:
		return "traversal"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Error is returned by every encoder and decoder in the domain packages.
// Match a kind with errors.Is(err, wire.ErrLayout).
type Error struct {
	Kind Kind
	Op   string
	Msg  string
}

// Sentinels for errors.Is.
var (
	ErrRange     = &Error{Kind: KindRange}
	ErrLayout    = &Error{Kind: KindLayout}
	ErrTraversal = &Error{Kind: KindTraversal}
	ErrProtocol  = &Error{Kind: KindProtocol}
)

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Op, e.Kind, e.Msg)
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func Rangef(op, format string, args ...any) *Error {
	return &Error{Kind: KindRange, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Layoutf(op, format string, args ...any) *Error {
	return &Error{Kind: KindLayout, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Traversalf(op, format string, args ...any) *Error {
	return &Error{Kind: KindTraversal, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Protocolf(op, format string, args ...any) *Error {
	return &Error{Kind: KindProtocol, Op: op, Msg: fmt.Sprintf(format, args...)}
}
