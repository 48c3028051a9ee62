package widget

import "strings"

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// Escape replaces the five HTML-reserved characters with their entities.
func Escape(s string) string {
	return htmlEscaper.Replace(s)
}

// RenderText escapes s and turns literal newlines into line breaks. It is the
// only sanitization applied to message text before it reaches the page.
func RenderText(s string) string {
	return strings.ReplaceAll(Escape(s), "\n", "<br>")
}
