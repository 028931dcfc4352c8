package classifier

import (
	"regexp"
	"strings"
)

// IssueType is the classified intent of an issue report.
type IssueType int

const (
	PackageRequest IssueType = iota
	OutOfDate
	Orphaning
	Official
	PackagingError
	Other
)

func (t IssueType) String() string {
	switch t {
	case PackageRequest:
		return "package-request"
	case OutOfDate:
		return "out-of-date"
	case Orphaning:
		return "orphaning"
	case Official:
		return "official"
	case PackagingError:
		return "packaging-error"
	case Other:
		return "other"
	}
	return "unknown"
}

// NeedsPackages reports whether a classification of this type is
// meaningless without at least one affected package.
func (t IssueType) NeedsPackages() bool {
	return t == OutOfDate || t == Orphaning || t == Official
}

type parseState int

const (
	stateInit parseState = iota
	stateIssueType
	statePackages
)

const (
	issueTypeHeader = "### 问题类型"
	packagesHeader  = "### 受影响的软件包"

	// Template placeholder; never a real package name.
	placeholderPkg = "package-name"
)

// typeKeywords maps the localized keywords from the issue template to
// issue types. Matching is substring-based and scans in this order, so
// keywords that contain other keywords must come first.
var typeKeywords = []struct {
	keyword string
	typ     IssueType
}{
	{"软件打包请求", PackageRequest},
	{"过期软件包", OutOfDate},
	{"弃置软件包", Orphaning},
	{"软件包被官方仓库收录", Official},
	{"打包错误", PackagingError},
	{"其它", Other},
}

var pkgPattern = regexp.MustCompile(`[\w.+-]+`)

// Result is the outcome of classifying one issue body.
type Result struct {
	Type     IssueType
	HasType  bool
	Packages []string
}

// Unparseable reports whether the classification is inconclusive: no
// recognizable type, or a type that requires packages with none found.
func (r Result) Unparseable() bool {
	return !r.HasType || (r.Type.NeedsPackages() && len(r.Packages) == 0)
}

// Classifier turns issue bodies into (type, package set) pairs,
// normalizing package names through an optional alias map.
type Classifier struct {
	aliases *AliasMap
}

func New(aliases *AliasMap) *Classifier {
	return &Classifier{aliases: aliases}
}

// Classify runs a single forward pass over the body's lines. Lines
// inside HTML comments and empty lines are skipped; a horizontal rule
// ends the scan (trailing template sections are not parsed).
func (c *Classifier) Classify(body string) Result {
	st := stateInit
	skipping := false

	var res Result
	seen := make(map[string]bool)

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")

		// The end-marker check runs before the open-marker check so
		// that a one-line "<!-- ... -->" comment is dropped without
		// leaving skipping set.
		if strings.HasSuffix(line, "-->") {
			skipping = false
			continue
		} else if strings.HasPrefix(line, "<!--") {
			skipping = true
		}

		if skipping || line == "" {
			continue
		} else if strings.HasPrefix(line, issueTypeHeader) {
			st = stateIssueType
			continue
		} else if strings.HasPrefix(line, packagesHeader) {
			st = statePackages
			continue
		} else if strings.HasPrefix(line, "----") {
			break
		}

		switch st {
		case stateIssueType:
			if res.HasType {
				continue
			}
			for _, entry := range typeKeywords {
				if strings.Contains(line, entry.keyword) {
					res.Type = entry.typ
					res.HasType = true
					break
				}
			}
		case statePackages:
			if isCheckedItem(line) {
				continue
			}
			token := pkgPattern.FindString(line)
			if token == "" || token == placeholderPkg {
				continue
			}
			token = c.canonical(token)
			if !seen[token] {
				seen[token] = true
				res.Packages = append(res.Packages, token)
			}
		}
	}

	return res
}

func (c *Classifier) canonical(pkg string) string {
	if c.aliases == nil {
		return pkg
	}
	return c.aliases.Canonical(pkg)
}

// isCheckedItem matches checklist items already ticked off in the
// template, e.g. "* [x] foo"; those lines name packages that are not
// affected.
func isCheckedItem(line string) bool {
	lower := strings.ToLower(line)
	return strings.HasPrefix(lower, "* [x] ") || strings.HasPrefix(lower, "- [x] ")
}
