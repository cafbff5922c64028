package maven

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/arthur-debert/lodestone/pkg/errors"
)

// Metadata is the subset of maven-metadata.xml the resolver cares about:
// the latest and release version markers and the full version list.
type Metadata struct {
	GroupID    string
	ArtifactID string
	Latest     string
	Release    string
	Versions   []string
}

// ParseMetadata parses a maven-metadata.xml document.
func ParseMetadata(data []byte) (*Metadata, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, errors.Wrap(err, errors.ErrDescriptorParse, "malformed maven-metadata.xml")
	}

	root := doc.SelectElement("metadata")
	if root == nil {
		return nil, errors.New(errors.ErrDescriptorParse, "maven-metadata.xml missing <metadata> root")
	}

	md := &Metadata{}
	if el := root.SelectElement("groupId"); el != nil {
		md.GroupID = el.Text()
	}
	if el := root.SelectElement("artifactId"); el != nil {
		md.ArtifactID = el.Text()
	}

	if versioning := root.SelectElement("versioning"); versioning != nil {
		if el := versioning.SelectElement("latest"); el != nil {
			md.Latest = el.Text()
		}
		if el := versioning.SelectElement("release"); el != nil {
			md.Release = el.Text()
		}
		if versions := versioning.SelectElement("versions"); versions != nil {
			for _, v := range versions.SelectElements("version") {
				md.Versions = append(md.Versions, v.Text())
			}
		}
	}
	return md, nil
}

// ResolveVersion maps the "latest" and "release" placeholder versions onto
// concrete ones using repository metadata. Concrete versions pass through
// unchanged.
func (m *Metadata) ResolveVersion(version string) (string, error) {
	switch version {
	case "latest":
		if m.Latest == "" {
			return "", errors.Newf(errors.ErrNotFound, "%s:%s has no latest version", m.GroupID, m.ArtifactID)
		}
		return m.Latest, nil
	case "release":
		if m.Release == "" {
			return "", errors.Newf(errors.ErrNotFound, "%s:%s has no release version", m.GroupID, m.ArtifactID)
		}
		return m.Release, nil
	default:
		return version, nil
	}
}

// MetadataPath is the repository-relative location of an artifact's
// maven-metadata.xml.
func (c Coordinate) MetadataPath() string {
	return strings.ReplaceAll(c.Group, ".", "/") + "/" + c.Artifact + "/maven-metadata.xml"
}
