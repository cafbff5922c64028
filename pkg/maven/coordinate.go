// Package maven resolves Maven-style library coordinates to repository
// paths and URLs. Only the coordinate-to-URL mapping lives here; fetching is
// the download engine's job.
package maven

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/lodestone/pkg/errors"
)

// Coordinate is a parsed Maven coordinate.
type Coordinate struct {
	Group      string
	Artifact   string
	Version    string
	Classifier string
	Extension  string
}

// Parse parses "group:artifact:version[:classifier][@extension]". The
// extension defaults to "jar".
func Parse(name string) (Coordinate, error) {
	ext := "jar"
	if at := strings.LastIndex(name, "@"); at >= 0 {
		ext = name[at+1:]
		name = name[:at]
	}

	parts := strings.Split(name, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return Coordinate{}, errors.Newf(errors.ErrInvalidInput, "malformed maven coordinate %q", name)
	}
	for _, p := range parts {
		if p == "" {
			return Coordinate{}, errors.Newf(errors.ErrInvalidInput, "malformed maven coordinate %q", name)
		}
	}

	c := Coordinate{
		Group:     parts[0],
		Artifact:  parts[1],
		Version:   parts[2],
		Extension: ext,
	}
	if len(parts) == 4 {
		c.Classifier = parts[3]
	}
	return c, nil
}

// WithClassifier returns a copy of the coordinate with the classifier
// replaced.
func (c Coordinate) WithClassifier(classifier string) Coordinate {
	c.Classifier = classifier
	return c
}

// Path is the repository-relative path for the coordinate.
func (c Coordinate) Path() string {
	file := fmt.Sprintf("%s-%s", c.Artifact, c.Version)
	if c.Classifier != "" {
		file += "-" + c.Classifier
	}
	file += "." + c.Extension
	return fmt.Sprintf("%s/%s/%s/%s",
		strings.ReplaceAll(c.Group, ".", "/"), c.Artifact, c.Version, file)
}

// URL joins the coordinate's path onto a repository base URL.
func (c Coordinate) URL(repository string) string {
	return strings.TrimSuffix(repository, "/") + "/" + c.Path()
}

// DedupKey identifies the coordinate for merge deduplication. The version is
// deliberately excluded (a child descriptor's version overrides the
// parent's) while the classifier is included, so native variants of the same
// artifact are never collapsed into each other.
func (c Coordinate) DedupKey() string {
	return c.Group + ":" + c.Artifact + ":" + c.Classifier
}

func (c Coordinate) String() string {
	s := fmt.Sprintf("%s:%s:%s", c.Group, c.Artifact, c.Version)
	if c.Classifier != "" {
		s += ":" + c.Classifier
	}
	if c.Extension != "jar" {
		s += "@" + c.Extension
	}
	return s
}
