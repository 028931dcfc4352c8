package orchestrator

import "github.com/triagebot/internal/classifier"

// policy is the fixed per-type handling table: which labels to apply,
// whether the bot assigns itself, and whether maintainer lookup runs.
type policy struct {
	labels      []string
	assignBot   bool
	needsLookup bool
}

func policyFor(t classifier.IssueType) policy {
	switch t {
	case classifier.PackageRequest:
		return policy{labels: []string{"package-request"}}
	case classifier.OutOfDate:
		return policy{labels: []string{"out-of-date"}, needsLookup: true}
	case classifier.Orphaning:
		return policy{labels: []string{"orphaning"}, assignBot: true, needsLookup: true}
	case classifier.Official:
		return policy{labels: []string{"in-official-repos"}, assignBot: true, needsLookup: true}
	case classifier.PackagingError, classifier.Other:
		return policy{}
	}
	return policy{}
}
