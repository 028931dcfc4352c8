package buildlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusBlock(t *testing.T) {
	linker := URLTemplates{
		HistoryURL: "https://build.example.org/packages/{pkg}",
		LogURL:     "https://build.example.org/packages/{pkg}/log/latest",
	}

	got := linker.StatusBlock([]string{"zzz", "aaa"})
	want := `Build status for the affected packages:
* aaa: [build history](https://build.example.org/packages/aaa) [latest log](https://build.example.org/packages/aaa/log/latest)
* zzz: [build history](https://build.example.org/packages/zzz) [latest log](https://build.example.org/packages/zzz/log/latest)
`
	assert.Equal(t, want, got)
}

func TestStatusBlockEmpty(t *testing.T) {
	linker := URLTemplates{HistoryURL: "https://x/{pkg}"}
	assert.Empty(t, linker.StatusBlock(nil))

	// No templates configured: nothing to link to.
	assert.Empty(t, URLTemplates{}.StatusBlock([]string{"foo"}))
}

func TestStatusBlockHistoryOnly(t *testing.T) {
	linker := URLTemplates{HistoryURL: "https://x/{pkg}"}
	got := linker.StatusBlock([]string{"foo"})
	assert.Equal(t, "Build status for the affected packages:\n* foo: [build history](https://x/foo)\n", got)
}
