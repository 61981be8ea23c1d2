package dispatch

import (
	"context"
	"time"

	"github.com/harun/iattom/pkg/artifact"
	"github.com/harun/iattom/pkg/command"
	"github.com/harun/iattom/pkg/research"
	"github.com/harun/iattom/pkg/trigger"
)

// MessageTypeText is the only message type that is answered
const MessageTypeText = "text"

// Event is one inbound message
type Event struct {
	ContactID   string
	MessageID   string
	Type        string
	Text        string
	ProfileName string
	Timestamp   time.Time
}

// ActionKind is the kind of an outbound action
type ActionKind string

const (
	ActionText     ActionKind = "text"
	ActionImage    ActionKind = "image"
	ActionDocument ActionKind = "document"
)

// Action is one outbound message
type Action struct {
	Kind     ActionKind
	Body     string // text
	URL      string // image, document
	Caption  string // image
	Filename string // document
}

// Outcome is the state that produced the reply
type Outcome string

const (
	OutcomeIgnored      Outcome = "ignored"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeNameLearned  Outcome = "name_learned"
	OutcomeCommand      Outcome = "command"
	OutcomeFirstContact Outcome = "first_contact"
	OutcomeTrigger      Outcome = "trigger"
	OutcomeCheckin      Outcome = "checkin"
	OutcomeDelegate     Outcome = "delegate"
	OutcomeFallback     Outcome = "fallback"
)

// Result describes what Dispatch decided
type Result struct {
	Outcome Outcome
	Command command.Kind     // set for OutcomeCommand
	Trigger trigger.Category // set when a topical trigger fired
	Actions []Action
}

// FirstContactPolicy controls whether the greeting ends the turn
type FirstContactPolicy string

const (
	// FirstContactShortCircuit answers a first message with the greeting only
	FirstContactShortCircuit FirstContactPolicy = "short_circuit"
	// FirstContactContinue follows the greeting with the trigger or delegated reply
	FirstContactContinue FirstContactPolicy = "continue"
)

// Sender delivers outbound actions
type Sender interface {
	SendText(ctx context.Context, to, body string) error
	SendImage(ctx context.Context, to, url, caption string) error
	SendDocument(ctx context.Context, to, url, filename string) error
}

// ImageGenerator turns a prompt into an image URL ("" when nothing usable)
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DocumentCreator renders a titled document and returns its locator
type DocumentCreator interface {
	CreateDocument(ctx context.Context, format artifact.Format, title, body string) (artifact.Document, error)
}

// KnowledgeBase looks up a topic
type KnowledgeBase interface {
	Lookup(ctx context.Context, topic string) (research.Summary, error)
}

// WebSearcher runs a web search
type WebSearcher interface {
	Search(ctx context.Context, query string, max int) ([]research.Result, error)
}

// LinkSummarizer summarizes the page behind a URL
type LinkSummarizer interface {
	Summarize(ctx context.Context, url string) (string, error)
}

// MessageLog remembers processed message ids
type MessageLog interface {
	// Add returns false when id was already recorded
	Add(id string) bool
}

func textAction(body string) Action {
	return Action{Kind: ActionText, Body: body}
}
