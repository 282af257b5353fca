package websocket

import "github.com/conneroisu/typster/internal/source"

// Message types sent on a feed.
const (
	TypeLine = "line"
	TypeEnd  = "end"
)

// Message is one JSON frame of a feed.
type Message struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Origin string `json:"origin,omitempty"`
}

// LineMessage wraps a streamed line.
func LineMessage(line source.Line) Message {
	return Message{Type: TypeLine, Text: line.Text, Origin: line.Origin}
}

// EndMessage announces that the stream is over.
func EndMessage() Message {
	return Message{Type: TypeEnd}
}
