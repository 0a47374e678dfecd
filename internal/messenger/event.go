package messenger

// ObjectPage is the only webhook object this service handles.
const ObjectPage = "page"

// PayloadGetStarted is the postback payload of the Get Started button.
const PayloadGetStarted = "get_started"

// Payload is the body of a webhook POST.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the messaging events of one page.
type Entry struct {
	ID        string  `json:"id"`
	Time      int64   `json:"time"`
	Messaging []Event `json:"messaging"`
}

// Event is one messaging event. At most one of Message and Postback is set
// for the kinds handled here.
type Event struct {
	Sender    Party     `json:"sender"`
	Recipient Party     `json:"recipient"`
	Timestamp int64     `json:"timestamp"`
	Message   *Message  `json:"message,omitempty"`
	Postback  *Postback `json:"postback,omitempty"`
}

// Party identifies a sender or recipient by page-scoped id.
type Party struct {
	ID string `json:"id"`
}

// Message is an inbound text message.
type Message struct {
	MID  string `json:"mid"`
	Text string `json:"text"`
}

// Postback is a button tap.
type Postback struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// IsGetStarted reports whether e is the Get Started postback.
func (e Event) IsGetStarted() bool {
	return e.Postback != nil && e.Postback.Payload == PayloadGetStarted
}
