package twilio

import (
	"strings"
	"testing"
)

func TestTwiMLEscapesAndSkipsEmpty(t *testing.T) {
	raw, err := TwiML("2 < 3 & 4 > 1", "  ")
	if err != nil {
		t.Fatalf("TwiML: %v", err)
	}
	s := string(raw)
	if !strings.HasPrefix(s, "<?xml") {
		t.Fatalf("missing header: %s", s)
	}
	if !strings.Contains(s, "<Response><Message>2 &lt; 3 &amp; 4 &gt; 1</Message></Response>") {
		t.Fatalf("unexpected body: %s", s)
	}
	if strings.Count(s, "<Message>") != 1 {
		t.Fatalf("empty message not skipped: %s", s)
	}
}

func TestParseInbound(t *testing.T) {
	msg := ParseInbound(map[string][]string{
		"Body":       {" what is photosynthesis? "},
		"From":       {"whatsapp:+254700000001"},
		"To":         {"whatsapp:+14155238886"},
		"MessageSid": {"SM9"},
	})
	if msg.Body != "what is photosynthesis?" || msg.From != "whatsapp:+254700000001" || msg.To != "whatsapp:+14155238886" || msg.MessageSID != "SM9" {
		t.Fatalf("msg=%#v", msg)
	}
}
