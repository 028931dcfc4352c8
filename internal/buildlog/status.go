package buildlog

import (
	"fmt"
	"sort"
	"strings"
)

// StatusLinker renders the build-status block appended to out-of-date
// reports, keyed by the affected package set.
type StatusLinker interface {
	StatusBlock(packages []string) string
}

// URLTemplates builds links from configured URL templates, replacing
// the {pkg} placeholder with each package name.
type URLTemplates struct {
	HistoryURL string
	LogURL     string
}

// StatusBlock lists, per package, a build-history link and the latest
// build log link. Packages are sorted for deterministic output; with no
// templates configured the block is empty and callers skip it.
func (t URLTemplates) StatusBlock(packages []string) string {
	if len(packages) == 0 || (t.HistoryURL == "" && t.LogURL == "") {
		return ""
	}

	sorted := append([]string(nil), packages...)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString("Build status for the affected packages:\n")
	for _, pkg := range sorted {
		b.WriteString(fmt.Sprintf("* %s:", pkg))
		if t.HistoryURL != "" {
			b.WriteString(fmt.Sprintf(" [build history](%s)", expand(t.HistoryURL, pkg)))
		}
		if t.LogURL != "" {
			b.WriteString(fmt.Sprintf(" [latest log](%s)", expand(t.LogURL, pkg)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func expand(template, pkg string) string {
	return strings.ReplaceAll(template, "{pkg}", pkg)
}
