package saxstream

// Kind identifies which of the four event types an Event is.
type Kind uint8

// Supported event kinds.
const (
	KindOpenTag Kind = iota + 1
	KindText
	KindCloseTag
	KindEnd
)

// String returns the handler-registration name of the kind.
func (k Kind) String() string {
	switch k {
	case KindOpenTag:
		return "opentag"
	case KindText:
		return "text"
	case KindCloseTag:
		return "closetag"
	case KindEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Event is one structural unit of the document. The set of implementations
// is closed: OpenTag, Text, CloseTag and End.
type Event interface {
	Kind() Kind
	event()
}

// OpenTag reports a start tag. SelfClosing tags (<item/>) are never followed
// by a matching CloseTag.
type OpenTag struct {
	Name        string
	Attributes  Attributes
	SelfClosing bool
}

// Text reports a run of character data with entities already decoded.
type Text struct {
	Content string
}

// CloseTag reports an end tag. Events produced by parsing always carry
// SelfClosing == false; the field exists so callers can render the closing
// half of a self-closing tag with RenderCloseTag.
type CloseTag struct {
	Name        string
	SelfClosing bool
}

// End is the terminal event of a document. It is produced exactly once,
// after every other event.
type End struct{}

// Kind implements Event.
func (OpenTag) Kind() Kind { return KindOpenTag }

// Kind implements Event.
func (Text) Kind() Kind { return KindText }

// Kind implements Event.
func (CloseTag) Kind() Kind { return KindCloseTag }

// Kind implements Event.
func (End) Kind() Kind { return KindEnd }

func (OpenTag) event()  {}
func (Text) event()     {}
func (CloseTag) event() {}
func (End) event()      {}

// Attr is a single attribute of an OpenTag.
type Attr struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Attributes is an insertion-ordered attribute list. Order matches the
// source tag.
type Attributes []Attr

// Get returns the value of the named attribute.
func (a Attributes) Get(name string) (string, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

// Set overwrites an existing attribute in place or appends a new one.
func (a *Attributes) Set(name, value string) {
	for i := range *a {
		if (*a)[i].Name == name {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, Attr{Name: name, Value: value})
}

// Len returns the number of attributes.
func (a Attributes) Len() int {
	return len(a)
}

// Names returns attribute names in source order.
func (a Attributes) Names() []string {
	names := make([]string, len(a))
	for i, attr := range a {
		names[i] = attr.Name
	}
	return names
}
