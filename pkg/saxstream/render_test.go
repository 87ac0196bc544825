package saxstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeText(t *testing.T) {
	assert.Equal(t, "a &amp; b &lt;c&gt; \"q\" 'a'", EscapeText(`a & b <c> "q" 'a'`))
	assert.Equal(t, "&amp;lt;", EscapeText("&lt;"))
	assert.Equal(t, "", EscapeText(""))
}

func TestEscapeAttribute(t *testing.T) {
	assert.Equal(t, "&lt;&gt;&amp;&quot;&apos;", EscapeAttribute(`<>&"'`))
	assert.Equal(t, "plain", EscapeAttribute("plain"))
}

func TestRenderOpenTag(t *testing.T) {
	tests := []struct {
		name string
		ev   OpenTag
		want string
	}{
		{name: "bare", ev: OpenTag{Name: "a"}, want: "<a>"},
		{
			name: "attributes keep order and escape",
			ev: OpenTag{Name: "a", Attributes: Attributes{
				{Name: "z", Value: "1"},
				{Name: "b", Value: `x"y&z`},
			}},
			want: `<a z="1" b="x&quot;y&amp;z">`,
		},
		{name: "self closing is left open", ev: OpenTag{Name: "br", SelfClosing: true}, want: "<br"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderOpenTag(tt.ev))
		})
	}
}

func TestRenderCloseTag(t *testing.T) {
	assert.Equal(t, "</a>", RenderCloseTag(CloseTag{Name: "a"}))
	assert.Equal(t, "/>", RenderCloseTag(CloseTag{Name: "a", SelfClosing: true}))

	open := OpenTag{Name: "img", Attributes: Attributes{{Name: "src", Value: "a.png"}}, SelfClosing: true}
	assert.Equal(t, `<img src="a.png"/>`, RenderOpenTag(open)+RenderCloseTag(CloseTag{Name: open.Name, SelfClosing: true}))
}

func TestAttributes(t *testing.T) {
	var attrs Attributes
	attrs.Set("b", "1")
	attrs.Set("a", "2")
	attrs.Set("b", "3")

	assert.Equal(t, 2, attrs.Len())
	assert.Equal(t, []string{"b", "a"}, attrs.Names())
	v, ok := attrs.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
	_, ok = attrs.Get("missing")
	assert.False(t, ok)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "opentag", KindOpenTag.String())
	assert.Equal(t, "text", KindText.String())
	assert.Equal(t, "closetag", KindCloseTag.String())
	assert.Equal(t, "end", KindEnd.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
