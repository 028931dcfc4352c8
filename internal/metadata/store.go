package metadata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// MetadataFile is the per-package metadata document inside each package
// directory of the checkout.
const MetadataFile = "package.yaml"

// ErrNotFound marks a package whose directory or metadata file does not
// exist in the checkout. It is distinct from metadata that is present
// but lists no maintainers.
var ErrNotFound = errors.New("package metadata not found")

// Dependency is one declared dependency of a package. The constraint is
// recorded but not interpreted here.
type Dependency struct {
	Name       string `yaml:"name"`
	Constraint string `yaml:"constraint"`
}

// Metadata is the parsed metadata document of one package.
type Metadata struct {
	Maintainers []MaintainerEntry `yaml:"maintainers"`
	RepoDepends []Dependency      `yaml:"repo_depends"`
}

// MaintainerEntry holds one maintainer's tracker identity. Entries
// without an identity are tolerated and skipped.
type MaintainerEntry struct {
	Identity string `yaml:"identity"`
}

// Store reads package metadata from a local checkout. All methods do
// blocking file I/O; callers run them off latency-sensitive paths.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string {
	return s.dir
}

// Load reads and parses the metadata for pkgbase. Returns ErrNotFound
// when the package directory or its metadata file is absent.
func (s *Store) Load(pkgbase string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, pkgbase, MetadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, pkgbase)
		}
		return nil, fmt.Errorf("reading metadata for %s: %w", pkgbase, err)
	}

	var md Metadata
	if err := yaml.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("parsing metadata for %s: %w", pkgbase, err)
	}
	return &md, nil
}

// Maintainers resolves the ordered maintainer identities for pkgbase.
// An empty result with a nil error means the package is unmaintained.
func (s *Store) Maintainers(pkgbase string) ([]string, error) {
	md, err := s.Load(pkgbase)
	if err != nil {
		return nil, err
	}
	return md.MaintainerIdentities(), nil
}

// MaintainerIdentities returns the non-empty identities in metadata
// order.
func (md *Metadata) MaintainerIdentities() []string {
	var out []string
	for _, m := range md.Maintainers {
		if m.Identity != "" {
			out = append(out, m.Identity)
		}
	}
	return out
}

// DependsOn reports whether the package declares a dependency on target
// by name.
func (md *Metadata) DependsOn(target string) bool {
	for _, d := range md.RepoDepends {
		if d.Name == target {
			return true
		}
	}
	return false
}

// Packages lists the package directories of the checkout, in directory
// order. Hidden directories and plain files are skipped.
func (s *Store) Packages() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing checkout %s: %w", s.dir, err)
	}

	var pkgs []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		pkgs = append(pkgs, e.Name())
	}
	return pkgs, nil
}
