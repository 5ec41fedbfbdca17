package transport

import "encoding/json"

// Frame types sent to the browser.
const (
	FrameBootstrap = "bootstrap"
	FramePatch     = "patch"
)

// Frame is one outbound websocket message. Bootstrap frames carry the full
// document; patch frames carry the dynamic parts of a single widget.
type Frame struct {
	Type   string `json:"type"`
	Widget *int   `json:"widget,omitempty"`
	Markup string `json:"markup"`
}

// CommandFrame is one inbound websocket message: a client value for an input
// widget. The value stays raw until the widget model validates it.
type CommandFrame struct {
	Widget *int            `json:"widget"`
	Value  json.RawMessage `json:"value"`
}
