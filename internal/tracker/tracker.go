package tracker

import "context"

// Issue is the tracker's view of one issue at a point in time. It is
// never cached across events; every event re-fetches what it needs.
type Issue struct {
	Number int
	Body   string
	Author string
	Labels []string
	Closed bool
	// Closer is the identity that closed the issue, empty while open.
	Closer string
}

// HasLabel reports whether the issue carries the named label.
func (i Issue) HasLabel(name string) bool {
	for _, l := range i.Labels {
		if l == name {
			return true
		}
	}
	return false
}

// Comment is one issue comment.
type Comment struct {
	ID     int64
	Author string
	Body   string
}

// AssignResult reports which of the requested identities the tracker
// actually assigned. Trackers silently refuse identities that are not
// valid assignees, so the confirmed set can be a strict subset of the
// request.
type AssignResult struct {
	Confirmed []string
}

// ConfirmedSet returns the confirmed identities as a lookup set.
func (r AssignResult) ConfirmedSet() map[string]bool {
	set := make(map[string]bool, len(r.Confirmed))
	for _, login := range r.Confirmed {
		set[login] = true
	}
	return set
}

// Client is the capability set the orchestrator consumes. All calls hit
// the network and may fail; the orchestrator decides which failures are
// fatal for an event.
type Client interface {
	// ListComments returns up to limit comments, newest first.
	ListComments(ctx context.Context, issue int, limit int) ([]Comment, error)
	CreateComment(ctx context.Context, issue int, body string) error
	EditComment(ctx context.Context, commentID int64, body string) error
	DeleteComment(ctx context.Context, commentID int64) error
	AddLabels(ctx context.Context, issue int, labels []string) error
	Assign(ctx context.Context, issue int, assignees []string) (AssignResult, error)
	Close(ctx context.Context, issue int) error
	Reopen(ctx context.Context, issue int) error
	// Fetch returns the authoritative current snapshot of the issue.
	Fetch(ctx context.Context, issue int) (Issue, error)
}
