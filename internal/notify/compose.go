package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

type Event string

const (
	EventRequested Event = "requested"
	EventConfirmed Event = "confirmed"
	EventRejected  Event = "rejected"
	EventCancelled Event = "cancelled"
)

// Notice is everything needed to render one booking notification.
type Notice struct {
	Event            Event
	To               string
	RecipientName    string
	CounterpartyName string
	Day              time.Time
	Hours            []string
	Location         string
	TotalPrice       float64
	BookingIDs       []string
	CancelledBy      string
}

var subjects = map[Event]string{
	EventRequested: "New booking request",
	EventConfirmed: "Your booking is confirmed",
	EventRejected:  "Your booking request was declined",
	EventCancelled: "A booking was cancelled",
}

var templates = template.Must(template.New("notice").Parse(`
{{define "requested"}}<p>Hi {{.RecipientName}},</p>
<p>{{.CounterpartyName}} requested {{len .Hours}} hour(s) on {{.Date}}: {{range $i, $h := .Hours}}{{if $i}}, {{end}}{{$h}}{{end}}.</p>
<p>Total: {{printf "%.2f" .TotalPrice}}</p>
<p>Please confirm or decline each hour in the app.</p>{{end}}
{{define "confirmed"}}<p>Hi {{.RecipientName}},</p>
<p>{{.CounterpartyName}} confirmed your booking on {{.Date}} at {{range $i, $h := .Hours}}{{if $i}}, {{end}}{{$h}}{{end}}{{if .Location}} in {{.Location}}{{end}}.</p>{{end}}
{{define "rejected"}}<p>Hi {{.RecipientName}},</p>
<p>{{.CounterpartyName}} could not take your booking on {{.Date}} at {{range $i, $h := .Hours}}{{if $i}}, {{end}}{{$h}}{{end}}.</p>{{end}}
{{define "cancelled"}}<p>Hi {{.RecipientName}},</p>
<p>The booking on {{.Date}} at {{range $i, $h := .Hours}}{{if $i}}, {{end}}{{$h}}{{end}} with {{.CounterpartyName}} was cancelled by the {{.CancelledBy}}.</p>{{end}}
`))

type noticeView struct {
	Notice
	Date string
}

// Compose renders a notice into a message.
func Compose(n Notice) (Message, error) {
	subject, ok := subjects[n.Event]
	if !ok {
		return Message{}, fmt.Errorf("unknown notification event %q", n.Event)
	}
	if n.To == "" {
		return Message{}, fmt.Errorf("notification %s has no recipient", n.Event)
	}

	var buf bytes.Buffer
	view := noticeView{Notice: n, Date: n.Day.Format("Mon, 02 Jan 2006")}
	if err := templates.ExecuteTemplate(&buf, string(n.Event), view); err != nil {
		return Message{}, fmt.Errorf("render %s notification: %w", n.Event, err)
	}

	return Message{To: n.To, Subject: subject, HTMLBody: buf.String()}, nil
}
