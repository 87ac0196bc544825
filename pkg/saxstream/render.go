package saxstream

import "strings"

// strings.Replacer substitutes in a single pass, so "&" is never re-escaped
// by a later substitution.
var (
	textEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	attrEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
)

// EscapeText escapes &, < and > for use as element content. Quotes are
// left untouched.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

// EscapeAttribute escapes &, <, >, " and ' for use inside a double- or
// single-quoted attribute value.
func EscapeAttribute(s string) string {
	return attrEscaper.Replace(s)
}

// RenderOpenTag renders ev as `<name key="value" ...>`.
//
// For a self-closing tag the result is NOT terminated: it ends after the last
// attribute so the caller can pick "/>" or ">". To reproduce the source form
// append RenderCloseTag(CloseTag{Name: ev.Name, SelfClosing: true}), which
// yields "/>".
func RenderOpenTag(ev OpenTag) string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(ev.Name)
	for _, attr := range ev.Attributes {
		b.WriteByte(' ')
		b.WriteString(attr.Name)
		b.WriteString(`="`)
		b.WriteString(EscapeAttribute(attr.Value))
		b.WriteByte('"')
	}
	if !ev.SelfClosing {
		b.WriteByte('>')
	}
	return b.String()
}

// RenderCloseTag renders "/>" for a self-closing tag and "</name>" otherwise.
func RenderCloseTag(ev CloseTag) string {
	if ev.SelfClosing {
		return "/>"
	}
	return "</" + ev.Name + ">"
}
