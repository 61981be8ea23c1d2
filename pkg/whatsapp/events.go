// Package whatsapp speaks the WhatsApp Cloud API: it decodes inbound webhook
// envelopes and sends outbound messages through the Graph API.
package whatsapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// ErrMalformedEnvelope is returned when a webhook body is not a valid envelope
var ErrMalformedEnvelope = errors.New("malformed webhook envelope")

// Envelope is the webhook notification body
type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the changes for one business account
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one notification
type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value carries messages (and delivery statuses, which are ignored)
type Value struct {
	MessagingProduct string            `json:"messaging_product"`
	Contacts         []Contact         `json:"contacts"`
	Messages         []json.RawMessage `json:"messages"`
	Statuses         []json.RawMessage `json:"statuses"`
}

// Contact is profile metadata for a sender
type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// Message is an inbound message
type Message struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
}

// Rejected is a message ParseEvents skipped
type Rejected struct {
	MessageID string // empty when the id itself is missing
	Reason    string
}

// Inbound is a decoded message ready for dispatch
type Inbound struct {
	ContactID   string
	MessageID   string
	Type        string
	Text        string
	ProfileName string
	Timestamp   time.Time
}

const envelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "object": {"type": "string"},
    "entry": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "changes": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": {
                "value": {
                  "type": "object",
                  "properties": {
                    "contacts": {
                      "type": "array",
                      "items": {
                        "type": "object",
                        "properties": {
                          "wa_id": {"type": "string"},
                          "profile": {"type": "object", "properties": {"name": {"type": "string"}}}
                        }
                      }
                    },
                    "messages": {"type": "array"}
                  }
                }
              }
            }
          }
        }
      }
    }
  },
  "required": ["entry"]
}`

// messageSchema is checked per message so one bad item does not drop its siblings
const messageSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["from", "id", "type"],
  "properties": {
    "from": {"type": "string", "minLength": 1},
    "id": {"type": "string", "minLength": 1},
    "type": {"type": "string"},
    "timestamp": {"type": "string"},
    "text": {"type": "object", "properties": {"body": {"type": "string"}}}
  }
}`

var (
	schema                = mustSchema(envelopeSchema)
	compiledMessageSchema = mustSchema(messageSchema)
)

func mustSchema(s string) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("invalid envelope schema: %v", err))
	}
	return compiled
}

// ParseEvents validates body against the envelope schema and flattens every
// message of every entry and change. Messages that fail their own schema are
// returned as rejected and the rest are kept. Envelopes without messages
// (delivery statuses) yield an empty slice.
func ParseEvents(body []byte) ([]Inbound, []Rejected, error) {
	if err := validate(schema, gojsonschema.NewBytesLoader(body)); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	var events []Inbound
	var rejected []Rejected
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			// A single contact without wa_id still names the sender.
			single := ""
			if len(change.Value.Contacts) == 1 {
				single = change.Value.Contacts[0].Profile.Name
			}

			for _, raw := range change.Value.Messages {
				m, err := decodeMessage(raw)
				if err != nil {
					rejected = append(rejected, Rejected{MessageID: m.ID, Reason: err.Error()})
					continue
				}
				in := Inbound{
					ContactID: m.From,
					MessageID: m.ID,
					Type:      m.Type,
					Timestamp: parseTimestamp(m.Timestamp),
				}
				if m.Text != nil {
					in.Text = strings.TrimSpace(m.Text.Body)
				}
				if name, ok := names[m.From]; ok && name != "" {
					in.ProfileName = name
				} else {
					in.ProfileName = single
				}
				events = append(events, in)
			}
		}
	}
	return events, rejected, nil
}

// decodeMessage returns whatever of raw decodes even when it is rejected, so
// the caller can log its id.
func decodeMessage(raw json.RawMessage) (Message, error) {
	var m Message
	decodeErr := json.Unmarshal(raw, &m)
	if err := validate(compiledMessageSchema, gojsonschema.NewBytesLoader(raw)); err != nil {
		return m, err
	}
	return m, decodeErr
}

func validate(s *gojsonschema.Schema, doc gojsonschema.JSONLoader) error {
	result, err := s.Validate(doc)
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New(strings.Join(msgs, "; "))
}

func parseTimestamp(s string) time.Time {
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
