// Package layout renders the HTML document shell around public pages.
package layout

// Document describes the head of a page.
type Document struct {
	Title       string
	Description string
	Image       string
	Stylesheet  string
}

// styleElement wraps theme CSS for the document head. The CSS is assembled
// from validated theme values and is written unescaped.
func styleElement(css string) string {
	return "<style>" + css + "</style>"
}
