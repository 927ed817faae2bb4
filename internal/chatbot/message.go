// Package chatbot implements the clinic's scripted chat: a special-option
// table and a keyword knowledge base driving a per-session transcript.
package chatbot

import "time"

// Sender identifies who authored a transcript message.
type Sender string

const (
	SenderBot  Sender = "bot"
	SenderUser Sender = "user"
)

// TimestampLayout is how message times are shown in the widget.
const TimestampLayout = "15:04"

// Message is one turn of the transcript. Messages are never mutated once appended.
type Message struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Options   []string  `json:"options,omitempty"`
	Timestamp string    `json:"timestamp"`
	At        time.Time `json:"at"`
}

func newMessage(sender Sender, text string, options []string, at time.Time) Message {
	return Message{
		Sender:    sender,
		Text:      text,
		Options:   cloneStrings(options),
		Timestamp: at.Format(TimestampLayout),
		At:        at,
	}
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneMessages(in []Message) []Message {
	out := make([]Message, len(in))
	for i, m := range in {
		m.Options = cloneStrings(m.Options)
		out[i] = m
	}
	return out
}
