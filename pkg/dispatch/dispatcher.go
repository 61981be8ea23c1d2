package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/harun/iattom/internal/observability"
	"github.com/harun/iattom/internal/tracing"
	"github.com/harun/iattom/pkg/command"
	"github.com/harun/iattom/pkg/delegate"
	"github.com/harun/iattom/pkg/names"
	"github.com/harun/iattom/pkg/session"
	"github.com/harun/iattom/pkg/trigger"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "iattom/dispatch"

const (
	DefaultCheckinInterval = 6 * time.Hour
	DefaultSendTimeout     = 30 * time.Second
	DefaultToolTimeout     = 60 * time.Second
	DefaultSearchResults   = 3
)

// Options configures a Dispatcher
type Options struct {
	CheckinInterval time.Duration
	FirstContact    FirstContactPolicy
	Persona         string
	SignOff         string
	SendTimeout     time.Duration // per outbound action
	ToolTimeout     time.Duration // image, document and research calls
	SearchResults   int
	Now             func() time.Time
}

// Deps are the collaborators of a Dispatcher. Store is required; every other
// field may be nil and the matching feature answers with a fixed reply.
type Deps struct {
	Store      session.Store
	Seen       MessageLog
	Matcher    *command.Matcher
	Classifier *trigger.Classifier
	Delegate   delegate.Responder
	Sender     Sender
	Images     ImageGenerator
	Documents  DocumentCreator
	Knowledge  KnowledgeBase
	Search     WebSearcher
	Summarizer LinkSummarizer
}

// Dispatcher turns inbound events into replies
type Dispatcher struct {
	opts       Options
	deps       Deps
	classifier atomic.Pointer[trigger.Classifier]
	locks      *keyedMutex
	logger     zerolog.Logger
}

type sessionEffect int

const (
	effectNone sessionEffect = iota
	effectSave
	effectDeleted
)

// turn is the state of one Dispatch call
type turn struct {
	ev     Event
	text   string
	sess   *session.Session
	now    time.Time
	effect sessionEffect

	// saveFailedReply replaces the reply when the session change is lost
	saveFailedReply string
}

func (t *turn) changed() {
	if t.effect == effectNone {
		t.effect = effectSave
	}
}

// New creates a Dispatcher
func New(opts Options, deps Deps, logger zerolog.Logger) *Dispatcher {
	observability.EnsureRegistered()

	if opts.CheckinInterval <= 0 {
		opts.CheckinInterval = DefaultCheckinInterval
	}
	if opts.FirstContact == "" {
		opts.FirstContact = FirstContactShortCircuit
	}
	if opts.Persona == "" {
		opts.Persona = DefaultPersona
	}
	if opts.SignOff == "" {
		opts.SignOff = DefaultSignOff
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = DefaultToolTimeout
	}
	if opts.SearchResults <= 0 {
		opts.SearchResults = DefaultSearchResults
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Store == nil {
		deps.Store = session.NewMemoryStore()
	}
	if deps.Matcher == nil {
		deps.Matcher = command.Default()
	}

	d := &Dispatcher{
		opts:   opts,
		deps:   deps,
		locks:  newKeyedMutex(),
		logger: logger.With().Str("component", "dispatch").Logger(),
	}
	classifier := deps.Classifier
	if classifier == nil {
		classifier = trigger.Default()
	}
	d.classifier.Store(classifier)
	return d
}

// SetClassifier swaps the trigger classifier used by subsequent messages
func (d *Dispatcher) SetClassifier(c *trigger.Classifier) {
	if c == nil {
		return
	}
	d.classifier.Store(c)
	d.logger.Info().Strs("order", categories(c.Policy().Order)).Msg("Trigger policy updated")
}

// Handle dispatches ev and delivers the resulting actions
func (d *Dispatcher) Handle(ctx context.Context, ev Event) Result {
	result := d.Dispatch(ctx, ev)
	if len(result.Actions) > 0 {
		d.Deliver(ctx, ev.ContactID, result.Actions)
	}
	return result
}

// Dispatch decides the reply to ev and persists the session changes. It never
// sends anything.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) Result {
	start := time.Now()

	ctx = tracing.WithContactID(ctx, ev.ContactID)
	ctx = tracing.WithMessageID(ctx, ev.MessageID)
	ctx, span := tracing.StartSpan(ctx, tracerName, "dispatch.Dispatch",
		attribute.String("contact_id", ev.ContactID),
		attribute.String("message_id", ev.MessageID),
		attribute.String("message_type", ev.Type),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, d.logger)

	result := d.dispatch(ctx, ev, logger)

	span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
	observability.RecordDispatch(string(result.Outcome), time.Since(start))
	logger.Debug().
		Str("outcome", string(result.Outcome)).
		Int("actions", len(result.Actions)).
		Dur("duration", time.Since(start)).
		Msg("Message dispatched")
	return result
}

func (d *Dispatcher) dispatch(ctx context.Context, ev Event, logger zerolog.Logger) Result {
	if session.ValidateContactID(ev.ContactID) != nil || ev.MessageID == "" {
		logger.Warn().Msg("Ignoring event without contact or message id")
		return Result{Outcome: OutcomeIgnored}
	}
	text := strings.TrimSpace(ev.Text)
	if ev.Type != MessageTypeText || text == "" {
		logger.Debug().Str("type", ev.Type).Msg("Ignoring non-text message")
		return Result{Outcome: OutcomeIgnored}
	}

	unlock := d.locks.Lock(ev.ContactID)
	defer unlock()

	if d.deps.Seen != nil && !d.deps.Seen.Add(ev.MessageID) {
		logger.Info().Msg("Duplicate message ignored")
		return Result{Outcome: OutcomeDuplicate}
	}

	t := &turn{ev: ev, text: text, now: d.opts.Now()}

	sess, err := d.deps.Store.Get(ctx, ev.ContactID)
	persist := true
	if err != nil {
		// Answer from a blank session but never write it over the stored one.
		logger.Error().Err(err).Msg("Failed to load session")
		sess = session.New(ev.ContactID)
		persist = false
	}
	t.sess = sess

	if ev.ProfileName != "" {
		if name := names.NormalizeDisplayName(ev.ProfileName); sess.LearnName(name, session.NameSourceProfile) {
			logger.Debug().Str("name", name).Msg("Display name hydrated from profile")
			t.changed()
		}
	}

	result := d.decide(ctx, t, logger)

	saved := true
	if t.effect == effectSave {
		if !persist {
			saved = false
		} else if err := d.deps.Store.Put(ctx, sess); err != nil {
			logger.Error().Err(err).Msg("Failed to save session")
			saved = false
		}
	}
	if !saved && t.saveFailedReply != "" {
		result.Actions = []Action{textAction(t.saveFailedReply)}
	}
	return result
}

// decide walks the reply states in order
func (d *Dispatcher) decide(ctx context.Context, t *turn, logger zerolog.Logger) Result {
	match, isCommand := d.deps.Matcher.Match(t.text)

	if !isCommand || !match.Prefixed {
		if name, ok := names.FromText(t.text); ok {
			if t.sess.LearnName(name, session.NameSourceExplicit) {
				t.changed()
			}
			logger.Info().Str("name", name).Msg("Contact name learned")
			return Result{
				Outcome: OutcomeNameLearned,
				Actions: []Action{textAction(fmt.Sprintf(nameLearnedReply, name))},
			}
		}
	}

	if isCommand {
		observability.RecordCommand(string(match.Kind))
		logger.Info().Str("command", string(match.Kind)).Msg("Command matched")
		return Result{
			Outcome: OutcomeCommand,
			Command: match.Kind,
			Actions: d.runCommand(ctx, t, match, logger),
		}
	}

	var actions []Action
	firstContact := t.sess.IsFirstContact()
	if firstContact {
		t.sess.MarkFirstContact(t.now)
		t.changed()
		actions = append(actions, textAction(greeting(t.sess.DisplayName)))
		if d.opts.FirstContact != FirstContactContinue {
			return Result{Outcome: OutcomeFirstContact, Actions: actions}
		}
	}
	outcome := func(o Outcome) Outcome {
		if firstContact {
			return OutcomeFirstContact
		}
		return o
	}

	if cat, ok := d.classifier.Load().Classify(t.text); ok {
		observability.RecordTrigger(string(cat))
		if cat == trigger.Emotional && t.sess.MarkCheckin(t.now) {
			t.changed()
		}
		logger.Info().Str("trigger", string(cat)).Msg("Topical trigger matched")
		actions = append(actions, textAction(triggerReply(cat, t.sess.DisplayName)))
		return Result{Outcome: outcome(OutcomeTrigger), Trigger: cat, Actions: actions}
	}

	// The greeting already asks how the contact is doing.
	if !firstContact && t.sess.CheckinDue(t.now, d.opts.CheckinInterval) {
		t.sess.MarkCheckin(t.now)
		t.changed()
		logger.Info().Time("last_checkin", t.sess.LastCheckinAt).Msg("Check-in due")
		return Result{
			Outcome: OutcomeCheckin,
			Actions: []Action{textAction(addressed(t.sess.DisplayName, checkinReply))},
		}
	}

	reply, o := d.answer(ctx, t, logger)
	actions = append(actions, textAction(reply))
	return Result{Outcome: outcome(o), Actions: actions}
}

// answer asks the delegate and falls back to a fixed reply
func (d *Dispatcher) answer(ctx context.Context, t *turn, logger zerolog.Logger) (string, Outcome) {
	if d.deps.Delegate != nil {
		ctx, span := tracing.StartSpan(ctx, tracerName, "dispatch.Delegate",
			attribute.String("provider", d.deps.Delegate.Name()))
		reply, err := d.deps.Delegate.Generate(ctx, delegate.Request{
			Persona:     d.opts.Persona,
			ContactName: t.sess.DisplayName,
			Text:        t.text,
		})
		if err != nil {
			tracing.RecordError(span, err)
			logger.Warn().Err(err).Msg("Delegate failed, using fallback reply")
		}
		span.End()
		if reply = strings.TrimSpace(reply); err == nil && reply != "" {
			return withSignOff(reply, d.opts.SignOff), OutcomeDelegate
		}
	}
	return addressed(t.sess.DisplayName, fallbackReply), OutcomeFallback
}

// Deliver sends actions in order and returns how many were accepted. Failures
// are logged and do not stop the remaining actions.
func (d *Dispatcher) Deliver(ctx context.Context, contactID string, actions []Action) int {
	logger := tracing.LoggerFromContext(ctx, d.logger).With().Str("contact_id", contactID).Logger()
	if d.deps.Sender == nil {
		logger.Warn().Int("actions", len(actions)).Msg("No sender configured, dropping replies")
		return 0
	}

	sent := 0
	for _, action := range actions {
		sendCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
		var err error
		switch action.Kind {
		case ActionImage:
			err = d.deps.Sender.SendImage(sendCtx, contactID, action.URL, action.Caption)
		case ActionDocument:
			err = d.deps.Sender.SendDocument(sendCtx, contactID, action.URL, action.Filename)
		default:
			err = d.deps.Sender.SendText(sendCtx, contactID, action.Body)
		}
		cancel()
		if err != nil {
			logger.Error().Err(err).Str("kind", string(action.Kind)).Msg("Failed to send reply")
			continue
		}
		sent++
	}
	return sent
}

func categories(cs []trigger.Category) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}
