package saxstream

import (
	"context"
	"fmt"
	"strings"
)

// collector records every delivered event as a compact string.
type collector struct {
	events []string
	ended  bool
}

func (c *collector) handlers() Handlers {
	return Handlers{
		OpenTag: func(_ context.Context, ev OpenTag) error {
			c.events = append(c.events, describe(ev))
			return nil
		},
		Text: func(_ context.Context, ev Text) error {
			c.events = append(c.events, describe(ev))
			return nil
		},
		CloseTag: func(_ context.Context, ev CloseTag) error {
			c.events = append(c.events, describe(ev))
			return nil
		},
		End: func(context.Context) error {
			c.ended = true
			c.events = append(c.events, describe(End{}))
			return nil
		},
	}
}

func describe(ev Event) string {
	switch ev := ev.(type) {
	case OpenTag:
		var b strings.Builder
		b.WriteString("open " + ev.Name)
		for _, a := range ev.Attributes {
			fmt.Fprintf(&b, " %s=%q", a.Name, a.Value)
		}
		if ev.SelfClosing {
			b.WriteString(" /")
		}
		return b.String()
	case Text:
		return "text " + ev.Content
	case CloseTag:
		return "close " + ev.Name
	case End:
		return "end"
	default:
		return fmt.Sprintf("unknown %T", ev)
	}
}
