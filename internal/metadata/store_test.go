package metadata

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePackage(t *testing.T, dir, pkgbase, doc string) {
	t.Helper()
	pkgdir := filepath.Join(dir, pkgbase)
	require.NoError(t, os.MkdirAll(pkgdir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgdir, MetadataFile), []byte(doc), 0644))
}

func TestMaintainersOrdered(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, "foo", `
maintainers:
  - identity: alice
  - identity: bob
repo_depends:
  - name: libbar
    constraint: ">=1.0"
`)

	store := NewStore(dir)
	maintainers, err := store.Maintainers("foo")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, maintainers)
}

func TestMaintainersNotFoundVsUnmaintained(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, "orphan", "maintainers: []\n")

	store := NewStore(dir)

	// Present but empty: a valid "unmaintained" answer.
	maintainers, err := store.Maintainers("orphan")
	require.NoError(t, err)
	assert.Empty(t, maintainers)

	// Absent directory: a lookup failure.
	_, err = store.Maintainers("ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	// Directory without a metadata file is also not found.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bare"), 0755))
	_, err = store.Maintainers("bare")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMaintainerEntriesWithoutIdentitySkipped(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, "foo", `
maintainers:
  - identity: alice
  - identity: ""
`)

	store := NewStore(dir)
	maintainers, err := store.Maintainers("foo")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, maintainers)
}

func TestDependsOn(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, "app", `
repo_depends:
  - name: libfoo
  - name: libbar
    constraint: "<2"
`)

	store := NewStore(dir)
	md, err := store.Load("app")
	require.NoError(t, err)
	assert.True(t, md.DependsOn("libfoo"))
	assert.True(t, md.DependsOn("libbar"))
	assert.False(t, md.DependsOn("libbaz"))
}

func TestPackagesListing(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, "foo", "maintainers: []\n")
	writePackage(t, dir, "bar", "maintainers: []\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("x"), 0644))

	store := NewStore(dir)
	pkgs, err := store.Packages()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"foo", "bar"}, pkgs)
}

func TestLoadMalformedMetadata(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, "broken", "maintainers: [unclosed\n")

	store := NewStore(dir)
	_, err := store.Load("broken")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound), "parse errors are not NotFound")
}
