package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/triagebot/internal/impact"
)

const cannotParseNew = `Triagebot cannot parse this issue. Did you follow the template? Please update and I'll reopen this.

Triagebot 无法解析此问题报告。你按照模板填写了吗？请更新，然后我会重新打开这个问题。`

const cannotParseEdited = `Triagebot still cannot parse this issue, please check against the template. Please update and I'll reopen this.

Triagebot 依旧无法解析此问题报告，请对照模板检查。请更新，然后我会重新打开这个问题。`

// cannotParseMarker identifies a stale unparseable-notice comment left
// over from before the issue was fixed up.
const cannotParseMarker = "cannot parse"

func cannotParseText(edited bool) string {
	if edited {
		return cannotParseEdited
	}
	return cannotParseNew
}

// annotateMaintainers renders "pkg (@alice, @bob)".
func annotateMaintainers(pkg string, maintainers []string) string {
	handles := make([]string, 0, len(maintainers))
	for _, m := range maintainers {
		handles = append(handles, "@"+m)
	}
	return fmt.Sprintf("%s (%s)", pkg, strings.Join(handles, ", "))
}

// dependentsBlock renders one "* pkg is depended by a (@x), b (@y)"
// line per affected package, in sorted package order.
func dependentsBlock(heading string, depinfo map[string][]impact.Dependent) string {
	pkgs := make([]string, 0, len(depinfo))
	for pkg := range depinfo {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)

	parts := []string{heading}
	for _, pkg := range pkgs {
		annotated := make([]string, 0, len(depinfo[pkg]))
		for _, d := range depinfo[pkg] {
			annotated = append(annotated, annotateMaintainers(d.Pkgbase, d.Maintainers))
		}
		parts = append(parts, fmt.Sprintf("* %s is depended by %s", pkg, strings.Join(annotated, ", ")))
	}
	return strings.Join(parts, "\n") + "\n\n"
}

func ownershipMismatchWarning(maintainers []string) string {
	handles := make([]string, 0, len(maintainers))
	for _, m := range maintainers {
		handles = append(handles, "@"+m)
	}
	return fmt.Sprintf("WARNING: Listed packages are maintained by %s other than the issue author.",
		strings.Join(handles, " "))
}

func assignFailureNote(style string, failed []string) string {
	sort.Strings(failed)
	handles := make([]string, 0, len(failed))
	for _, f := range failed {
		handles = append(handles, "@"+f)
	}
	joined := strings.Join(handles, ", ")

	if style == "generic" {
		return "Some maintainers cannot be assigned: " + joined
	}
	return "Some maintainers (perhaps outside contributors) cannot be assigned: " + joined
}
