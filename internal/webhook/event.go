package webhook

import "fmt"

// EventKind identifies the category of a webhook delivery, as named by the
// X-GitHub-Event header.
type EventKind int

// Known event kinds. Unknown covers anything the platform sends that is not in
// the table below.
const (
	Unknown EventKind = iota
	CheckRun
	CheckSuite
	CommitComment
	Create
	Delete
	Deployment
	DeploymentStatus
	Discussion
	DiscussionComment
	Fork
	Gollum
	Installation
	IssueComment
	Issues
	Label
	Member
	Milestone
	Ping
	PullRequest
	PullRequestReview
	PullRequestReviewComment
	Push
	Release
	Repository
	Star
	Status
	Watch
	WorkflowDispatch
	WorkflowJob
	WorkflowRun
)

var eventNames = map[EventKind]string{
	CheckRun:                 "check_run",
	CheckSuite:               "check_suite",
	CommitComment:            "commit_comment",
	Create:                   "create",
	Delete:                   "delete",
	Deployment:               "deployment",
	DeploymentStatus:         "deployment_status",
	Discussion:               "discussion",
	DiscussionComment:        "discussion_comment",
	Fork:                     "fork",
	Gollum:                   "gollum",
	Installation:             "installation",
	IssueComment:             "issue_comment",
	Issues:                   "issues",
	Label:                    "label",
	Member:                   "member",
	Milestone:                "milestone",
	Ping:                     "ping",
	PullRequest:              "pull_request",
	PullRequestReview:        "pull_request_review",
	PullRequestReviewComment: "pull_request_review_comment",
	Push:                     "push",
	Release:                  "release",
	Repository:               "repository",
	Star:                     "star",
	Status:                   "status",
	Watch:                    "watch",
	WorkflowDispatch:         "workflow_dispatch",
	WorkflowJob:              "workflow_job",
	WorkflowRun:              "workflow_run",
}

var eventKinds = func() map[string]EventKind {
	m := make(map[string]EventKind, len(eventNames))
	for k, name := range eventNames {
		m[name] = k
	}
	return m
}()

// ParseEventKind maps a header value to an EventKind. Matching is
// case-sensitive; anything unrecognized is Unknown.
func ParseEventKind(s string) EventKind {
	return eventKinds[s]
}

// LookupEventKind is ParseEventKind with an explicit found flag.
func LookupEventKind(s string) (EventKind, bool) {
	k, ok := eventKinds[s]
	return k, ok
}

// String returns the wire name, or "unknown".
func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// UnmarshalText accepts the wire names plus "unknown". It is strict so that a
// typo in configuration does not silently register against Unknown.
func (k *EventKind) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "unknown" {
		*k = Unknown
		return nil
	}
	kind, ok := eventKinds[s]
	if !ok {
		return fmt.Errorf("unknown event %q", s)
	}
	*k = kind
	return nil
}
