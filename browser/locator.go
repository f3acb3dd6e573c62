package browser

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"
)

// LocatorKind is the query language of a Locator.
type LocatorKind int

const (
	XPath LocatorKind = iota
	CSS
)

func (k LocatorKind) String() string {
	switch k {
	case XPath:
		return "xpath"
	case CSS:
		return "css"
	default:
		return "unknown"
	}
}

// Locator selects elements on a page.
type Locator struct {
	Kind LocatorKind
	Expr string
}

// ParseLocator parses "xpath=..." or "css=...". A bare expression starting
// with "/" or "(" is XPath; any other bare expression is CSS.
func ParseLocator(s string) (Locator, error) {
	s = strings.TrimSpace(s)
	var loc Locator
	switch {
	case strings.HasPrefix(s, "xpath="):
		loc = Locator{Kind: XPath, Expr: strings.TrimSpace(strings.TrimPrefix(s, "xpath="))}
	case strings.HasPrefix(s, "css="):
		loc = Locator{Kind: CSS, Expr: strings.TrimSpace(strings.TrimPrefix(s, "css="))}
	case strings.HasPrefix(s, "/"), strings.HasPrefix(s, "("):
		loc = Locator{Kind: XPath, Expr: s}
	default:
		loc = Locator{Kind: CSS, Expr: s}
	}
	if err := loc.Validate(); err != nil {
		return Locator{}, err
	}
	return loc, nil
}

// MustParseLocator is like ParseLocator but panics on error.
// Use it only for compile-time constant expressions.
func MustParseLocator(s string) Locator {
	loc, err := ParseLocator(s)
	if err != nil {
		panic(err)
	}
	return loc
}

// Validate compiles the expression and reports syntax errors.
func (l Locator) Validate() error {
	if l.Expr == "" {
		return fmt.Errorf("empty %s locator", l.Kind)
	}
	switch l.Kind {
	case XPath:
		if _, err := xpath.Compile(l.Expr); err != nil {
			return fmt.Errorf("invalid xpath locator %q: %w", l.Expr, err)
		}
	case CSS:
		if _, err := cascadia.Compile(l.Expr); err != nil {
			return fmt.Errorf("invalid css locator %q: %w", l.Expr, err)
		}
	default:
		return fmt.Errorf("unknown locator kind %d", l.Kind)
	}
	return nil
}

// String renders the locator in the form ParseLocator accepts.
func (l Locator) String() string {
	return l.Kind.String() + "=" + l.Expr
}
