package twilio

import (
	"encoding/xml"
	"strings"
)

// MessagingResponse is the TwiML document returned to an inbound webhook.
type MessagingResponse struct {
	XMLName  xml.Name `xml:"Response"`
	Messages []string `xml:"Message"`
}

// TwiML renders a "send these messages" instruction. Empty bodies are skipped.
func TwiML(bodies ...string) ([]byte, error) {
	resp := MessagingResponse{}
	for _, b := range bodies {
		if b = strings.TrimSpace(b); b != "" {
			resp.Messages = append(resp.Messages, truncateBody(b))
		}
	}
	raw, err := xml.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), raw...), nil
}

// InboundMessage is the subset of the webhook form the tutor channel reads.
type InboundMessage struct {
	MessageSID  string
	Body        string
	From        string
	To          string
	NumMedia    string
	ProfileName string
}

func ParseInbound(form map[string][]string) InboundMessage {
	get := func(k string) string {
		if v := form[k]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}
	return InboundMessage{
		MessageSID:  get("MessageSid"),
		Body:        get("Body"),
		From:        get("From"),
		To:          get("To"),
		NumMedia:    get("NumMedia"),
		ProfileName: get("ProfileName"),
	}
}
