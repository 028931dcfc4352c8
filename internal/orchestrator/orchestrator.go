package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/triagebot/internal/buildlog"
	"github.com/triagebot/internal/classifier"
	"github.com/triagebot/internal/impact"
	"github.com/triagebot/internal/metadata"
	"github.com/triagebot/internal/tracker"
)

// Event is one inbound (issue, edited) pair. The payload's own
// closed/closer fields are unreliable; the reopen step re-fetches them.
type Event struct {
	Issue  tracker.Issue
	Edited bool
}

// Options carries the identities and thresholds that shape triage
// behavior.
type Options struct {
	// Bot is the tracker identity this bot acts as.
	Bot string
	// Admin, when set, is exempt from the ownership-mismatch warning on
	// orphaning requests.
	Admin string
	// MinIssue is the lowest issue number the bot touches.
	MinIssue int
	// IgnoreLabel opts an issue out of triage entirely.
	IgnoreLabel string
	// AssignFailureNote selects the wording used when the tracker
	// refuses some assignees: "outside-contributors" or "generic".
	AssignFailureNote string
}

// How many recent comments to scan when locating the bot's own comment.
const commentScanLimit = 20

// requestFailedLabel blocks the automatic reopen of bot-closed issues.
const requestFailedLabel = "request-failed"

// Orchestrator drives the triage state machine for inbound issue
// events: classify, resolve maintainers, analyze dependency impact, and
// reconcile the tracker's visible state with the result. Processing is
// stateless across events; repeated delivery of the same logical event
// converges to the same tracker state.
type Orchestrator struct {
	tracker    tracker.Client
	classifier *classifier.Classifier
	store      *metadata.Store
	analyzer   *impact.Analyzer
	status     buildlog.StatusLinker
	opts       Options
	locks      *issueLocks
}

func New(tc tracker.Client, cl *classifier.Classifier, store *metadata.Store, analyzer *impact.Analyzer, status buildlog.StatusLinker, opts Options) *Orchestrator {
	return &Orchestrator{
		tracker:    tc,
		classifier: cl,
		store:      store,
		analyzer:   analyzer,
		status:     status,
		opts:       opts,
		locks:      newIssueLocks(),
	}
}

// Process handles one inbound event to completion. A returned error is
// fatal for this event only; the caller logs it and moves on. Events
// for the same issue number are serialized, others run concurrently.
func (o *Orchestrator) Process(ctx context.Context, event Event) error {
	issue := event.Issue

	if issue.Number < o.opts.MinIssue || issue.HasLabel(o.opts.IgnoreLabel) {
		log.Debug().Int("issue", issue.Number).Msg("issue exempt from triage")
		return nil
	}

	unlock := o.locks.lock(issue.Number)
	defer unlock()

	logger := log.With().
		Str("event_id", uuid.NewString()).
		Int("issue", issue.Number).
		Bool("edited", event.Edited).
		Logger()

	result := o.classifier.Classify(issue.Body)
	logger.Info().
		Str("type", result.Type.String()).
		Bool("has_type", result.HasType).
		Strs("packages", result.Packages).
		Msg("issue classified")

	prior := o.findBotComment(ctx, logger, issue.Number)

	if result.Unparseable() {
		return o.handleUnparseable(ctx, event, prior)
	}
	return o.handleActionable(ctx, logger, event, result, prior)
}

// findBotComment scans recent comments, newest first, for the bot's own
// comment. Lookup failures degrade to "no prior comment".
func (o *Orchestrator) findBotComment(ctx context.Context, logger zerolog.Logger, issue int) *tracker.Comment {
	comments, err := o.tracker.ListComments(ctx, issue, commentScanLimit)
	if err != nil {
		logger.Warn().Err(err).Msg("comment lookup failed, assuming no prior comment")
		return nil
	}
	for i := range comments {
		if comments[i].Author == o.opts.Bot {
			return &comments[i]
		}
	}
	return nil
}

func (o *Orchestrator) handleUnparseable(ctx context.Context, event Event, prior *tracker.Comment) error {
	text := cannotParseText(event.Edited)
	if _, err := o.reconcileComment(ctx, event.Issue.Number, prior, text); err != nil {
		return err
	}
	// The payload's closed flag is stale under concurrent edits; only
	// the re-fetched state decides whether a close is still needed.
	fresh, err := o.tracker.Fetch(ctx, event.Issue.Number)
	if err != nil {
		return fmt.Errorf("fetching issue %d: %w", event.Issue.Number, err)
	}
	if !fresh.Closed {
		if err := o.tracker.Close(ctx, event.Issue.Number); err != nil {
			return fmt.Errorf("closing issue %d: %w", event.Issue.Number, err)
		}
	}
	return nil
}

func (o *Orchestrator) handleActionable(ctx context.Context, logger zerolog.Logger, event Event, result classifier.Result, prior *tracker.Comment) error {
	issue := event.Issue
	pol := policyFor(result.Type)

	assignees := make(map[string]bool)
	if pol.assignBot {
		assignees[o.opts.Bot] = true
	}

	var comment string

	if len(result.Packages) > 0 && pol.needsLookup {
		var unmaintained []string
		maintainerUnion := make(map[string]bool)

		for _, pkg := range result.Packages {
			maintainers, err := o.store.Maintainers(pkg)
			if err != nil {
				// Best effort: one unknown package must not abort the
				// rest of the request.
				logger.Warn().Err(err).Str("pkg", pkg).Msg("skipping package without metadata")
				continue
			}
			if len(maintainers) == 0 {
				unmaintained = append(unmaintained, pkg)
			}
			for _, m := range maintainers {
				assignees[m] = true
				maintainerUnion[m] = true
			}
		}

		switch {
		case result.Type == classifier.Orphaning:
			orphaningNote, err := o.composeOrphaning(ctx, logger, event, result.Packages, assignees, maintainerUnion)
			if err != nil {
				return err
			}
			comment += orphaningNote
		case len(unmaintained) > 0:
			note, err := o.composeUnmaintainedNote(ctx, logger, unmaintained)
			if err != nil {
				return err
			}
			comment += note
		}

		if result.Type == classifier.OutOfDate {
			comment += o.status.StatusBlock(result.Packages)
		}
	}

	if len(pol.labels) > 0 {
		if err := o.tracker.AddLabels(ctx, issue.Number, pol.labels); err != nil {
			return fmt.Errorf("adding labels to issue %d: %w", issue.Number, err)
		}
	}

	if len(assignees) > 0 {
		requested := sortedKeys(assignees)
		assignResult, err := o.tracker.Assign(ctx, issue.Number, requested)
		if err != nil {
			return fmt.Errorf("assigning issue %d: %w", issue.Number, err)
		}
		confirmed := assignResult.ConfirmedSet()
		var failed []string
		for _, login := range requested {
			if !confirmed[login] {
				failed = append(failed, login)
			}
		}
		if len(failed) > 0 {
			logger.Info().Strs("failed", failed).Msg("tracker refused some assignees")
			if comment != "" {
				comment = strings.TrimRight(comment, "\n") + "\n\n"
			}
			comment += assignFailureNote(o.opts.AssignFailureNote, failed)
		}
	}

	comment = strings.TrimRight(comment, "\n")
	consumed, err := o.reconcileComment(ctx, issue.Number, prior, comment)
	if err != nil {
		return err
	}

	return o.reopenIfBotClosed(ctx, logger, issue.Number, prior, consumed)
}

// composeOrphaning builds the warning block for orphaning requests and
// widens the assignee set to the maintainers of out-of-set dependents.
// The requesting author is dropped from the assignees unless the author
// is the bot itself.
func (o *Orchestrator) composeOrphaning(ctx context.Context, logger zerolog.Logger, event Event, packages []string, assignees, maintainerUnion map[string]bool) (string, error) {
	author := event.Issue.Author
	if author != o.opts.Bot {
		delete(assignees, author)
	}

	var comment string

	depinfo := make(map[string][]impact.Dependent)
	for _, pkg := range packages {
		deps, skipped, err := o.analyzer.DependentsWithMaintainers(ctx, pkg, packages)
		if err != nil {
			return "", fmt.Errorf("scanning dependents of %s: %w", pkg, err)
		}
		for _, s := range skipped {
			logger.Warn().Err(s.Reason).Str("pkg", s.Pkgbase).Msg("skipped during dependent scan")
		}
		if len(deps) == 0 {
			continue
		}
		depinfo[pkg] = deps
		for _, d := range deps {
			for _, m := range d.Maintainers {
				assignees[m] = true
			}
		}
	}
	if len(depinfo) > 0 {
		comment += dependentsBlock("WARNING: other packages will be affected!\n", depinfo)
	}

	adminExempt := o.opts.Admin != "" && author == o.opts.Admin
	if !event.Edited && !maintainerUnion[author] && !adminExempt {
		comment += ownershipMismatchWarning(sortedKeys(maintainerUnion))
	}

	return comment, nil
}

// composeUnmaintainedNote lists the dependents of packages that
// resolved to zero maintainers, so a human can tell what would break.
func (o *Orchestrator) composeUnmaintainedNote(ctx context.Context, logger zerolog.Logger, unmaintained []string) (string, error) {
	depinfo := make(map[string][]impact.Dependent)
	for _, pkg := range unmaintained {
		deps, skipped, err := o.analyzer.DependentsWithMaintainers(ctx, pkg, nil)
		if err != nil {
			return "", fmt.Errorf("scanning dependents of %s: %w", pkg, err)
		}
		for _, s := range skipped {
			logger.Warn().Err(s.Reason).Str("pkg", s.Pkgbase).Msg("skipped during dependent scan")
		}
		depinfo[pkg] = deps
	}
	return dependentsBlock("NOTE: some affected packages are unmaintained:\n", depinfo), nil
}

// reconcileComment converges the bot's single comment to text. Returns
// whether the prior comment, if any, now carries the live content (and
// therefore must not be deleted as stale).
func (o *Orchestrator) reconcileComment(ctx context.Context, issue int, prior *tracker.Comment, text string) (bool, error) {
	if text == "" {
		return false, nil
	}
	if prior == nil {
		if err := o.tracker.CreateComment(ctx, issue, text); err != nil {
			return false, fmt.Errorf("creating comment on issue %d: %w", issue, err)
		}
		return false, nil
	}
	if prior.Body != text {
		if err := o.tracker.EditComment(ctx, prior.ID, text); err != nil {
			return true, fmt.Errorf("editing comment %d: %w", prior.ID, err)
		}
	}
	return true, nil
}

// reopenIfBotClosed re-fetches the issue's authoritative state, reopens
// it if the bot itself closed it (and no request-failed label blocks
// that), and deletes a stale cannot-parse comment that was not reused
// by reconciliation.
func (o *Orchestrator) reopenIfBotClosed(ctx context.Context, logger zerolog.Logger, issue int, prior *tracker.Comment, priorConsumed bool) error {
	fresh, err := o.tracker.Fetch(ctx, issue)
	if err != nil {
		return fmt.Errorf("fetching issue %d: %w", issue, err)
	}

	if fresh.Closed && fresh.Closer == o.opts.Bot && !fresh.HasLabel(requestFailedLabel) {
		logger.Info().Msg("reopening issue previously closed by bot")
		if err := o.tracker.Reopen(ctx, issue); err != nil {
			return fmt.Errorf("reopening issue %d: %w", issue, err)
		}
	}

	if prior != nil && !priorConsumed && strings.Contains(prior.Body, cannotParseMarker) {
		if err := o.tracker.DeleteComment(ctx, prior.ID); err != nil {
			return fmt.Errorf("deleting stale comment %d: %w", prior.ID, err)
		}
	}
	return nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
