package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/go-github/v66/github"
)

// ErrMalformedPayload is wrapped by every decode failure returned from a
// Payload accessor.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// Payload is the verified body of one delivery plus its routing headers.
// Decoding is done on demand; a handler that only needs the raw bytes never
// pays for parsing, and a decode failure is only seen by the handler that
// asked for it.
type Payload struct {
	Kind       EventKind
	Event      string
	DeliveryID string

	body []byte

	typedOnce sync.Once
	typed     any
	typedErr  error

	commentOnce sync.Once
	comment     *IssueCommentPayload
	commentErr  error
}

// NewPayload wraps body. The slice is retained, not copied.
func NewPayload(kind EventKind, event, deliveryID string, body []byte) *Payload {
	return &Payload{
		Kind:       kind,
		Event:      event,
		DeliveryID: deliveryID,
		body:       body,
	}
}

// Body returns the raw, unparsed request body. Callers must not modify it.
func (p *Payload) Body() []byte {
	return p.body
}

// Decode unmarshals the JSON body into v.
func (p *Payload) Decode(v any) error {
	if err := json.Unmarshal(p.body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

// Typed parses the body into the matching go-github event struct, e.g.
// *github.PushEvent for a push delivery. The result is cached.
func (p *Payload) Typed() (any, error) {
	p.typedOnce.Do(func() {
		v, err := github.ParseWebHook(p.Event, p.body)
		if err != nil {
			p.typedErr = fmt.Errorf("%w: %s: %v", ErrMalformedPayload, p.Event, err)
			return
		}
		p.typed = v
	})
	return p.typed, p.typedErr
}

// Action returns the top-level "action" field, or "" when the body has none
// or is not a JSON object.
func (p *Payload) Action() string {
	var v struct {
		Action string `json:"action"`
	}
	if json.Unmarshal(p.body, &v) != nil {
		return ""
	}
	return v.Action
}

// IssueComment decodes the body as an issue_comment delivery. The result is
// cached.
func (p *Payload) IssueComment() (*IssueCommentPayload, error) {
	p.commentOnce.Do(func() {
		var ic IssueCommentPayload
		if err := p.Decode(&ic); err != nil {
			p.commentErr = err
			return
		}
		if ic.Action == "" {
			p.commentErr = fmt.Errorf("%w: missing action", ErrMalformedPayload)
			return
		}
		p.comment = &ic
	})
	return p.comment, p.commentErr
}

// Action is what happened to an issue comment.
type Action string

const (
	ActionCreated Action = "created"
	ActionEdited  Action = "edited"
	ActionDeleted Action = "deleted"
)

// UnmarshalText rejects actions outside the known set.
func (a *Action) UnmarshalText(text []byte) error {
	switch v := Action(text); v {
	case ActionCreated, ActionEdited, ActionDeleted:
		*a = v
		return nil
	default:
		return fmt.Errorf("unsupported action %q", string(text))
	}
}

// IssueCommentPayload is the issue_comment event body.
type IssueCommentPayload struct {
	Action     Action               `json:"action"`
	Sender     *github.User         `json:"sender,omitempty"`
	Repository *github.Repository   `json:"repository,omitempty"`
	Comment    *github.IssueComment `json:"comment,omitempty"`
	Issue      *github.Issue        `json:"issue,omitempty"`
}
