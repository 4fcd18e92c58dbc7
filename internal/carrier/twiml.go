package carrier

import (
	"bytes"
	"encoding/xml"
	"errors"
	"sort"
	"strings"
)

// Minimal TwiML response builder. It intentionally avoids any provider SDK
// dependency; only the verbs this service emits are modeled.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlReject struct {
	XMLName xml.Name `xml:"Reject"`
	Reason  string   `xml:"reason,attr,omitempty"`
}

type twimlConnect struct {
	XMLName xml.Name    `xml:"Connect"`
	Stream  twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter,omitempty"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// DeclineTwiML speaks an optional message to the caller and hangs up. With an
// empty message it rejects with the busy reason instead, which skips billing
// on most carriers.
func DeclineTwiML(message string) (string, error) {
	var r twimlResponse
	if strings.TrimSpace(message) == "" {
		r.Verbs = append(r.Verbs, twimlReject{Reason: "busy"})
	} else {
		r.Verbs = append(r.Verbs, twimlSay{Text: message})
		r.Verbs = append(r.Verbs, twimlHangup{})
	}
	return renderTwiML(r)
}

// ConnectStreamTwiML bridges the call audio to streamURL. Parameters are
// emitted in sorted key order so responses are byte-stable.
func ConnectStreamTwiML(streamURL string, params map[string]string) (string, error) {
	if strings.TrimSpace(streamURL) == "" {
		return "", errors.New("carrier: stream url required for connect")
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := twimlStream{URL: streamURL}
	for _, k := range keys {
		s.Parameters = append(s.Parameters, twimlParameter{Name: k, Value: params[k]})
	}

	var r twimlResponse
	r.Verbs = append(r.Verbs, twimlConnect{Stream: s})
	return renderTwiML(r)
}

func renderTwiML(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
