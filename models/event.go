package models

// EventKind is the shape of an inbound transport event
type EventKind string

const (
	EventCommand EventKind = "command"
	EventText    EventKind = "text"
	EventMedia   EventKind = "media"
	EventButton  EventKind = "button"
)

// Event is what a transport adapter hands to the core for every inbound
// update from a party.
type Event struct {
	PartyID string    `json:"partyId"`
	Kind    EventKind `json:"kind"`
	// Command is the command name without the leading slash, Args the
	// whitespace separated remainder.
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	Text    string   `json:"text,omitempty"`
	Media   *Media   `json:"media,omitempty"`
	// Button is the opaque payload of a pressed menu button
	Button string `json:"button,omitempty"`
}

// Media is an attachment carried by a media event
type Media struct {
	Kind    MessageKind `json:"kind"`
	Ref     string      `json:"ref"`
	Caption string      `json:"caption,omitempty"`
}

// Content converts a text or media event into relayable content
func (e Event) Content() (Content, bool) {
	switch e.Kind {
	case EventText:
		return Content{Kind: KindText, Text: e.Text}, e.Text != ""
	case EventMedia:
		if e.Media == nil {
			return Content{}, false
		}
		return Content{Kind: e.Media.Kind, Text: e.Media.Caption, MediaRef: e.Media.Ref}, true
	}
	return Content{}, false
}

// Outbound is a message the core asks the transport to deliver
type Outbound struct {
	Text     string      `json:"text"`
	Kind     MessageKind `json:"kind"`
	MediaRef string      `json:"mediaRef,omitempty"`
	// Buttons are opaque payloads with their display labels, rendered by the
	// transport as a menu.
	Buttons []Button `json:"buttons,omitempty"`
}

// Button is one menu entry offered to a party
type Button struct {
	Payload string `json:"payload"`
	Label   string `json:"label"`
}

// TextMessage builds a plain text outbound message
func TextMessage(text string, buttons ...Button) Outbound {
	return Outbound{Text: text, Kind: KindText, Buttons: buttons}
}
