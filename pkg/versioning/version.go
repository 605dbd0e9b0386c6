// Package versioning provides semantic versioning and breaking-change
// classification for dataset contracts.
package versioning

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	mmsemver "github.com/Masterminds/semver/v3"
)

// Version represents a semantic version following SemVer 2.0.0.
type Version struct {
	Major      int    `json:"major"`
	Minor      int    `json:"minor"`
	Patch      int    `json:"patch"`
	Prerelease string `json:"prerelease,omitempty"`
	Build      string `json:"build,omitempty"`
}

// String returns the string representation of the version.
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}
	if v.Build != "" {
		s += "+" + v.Build
	}
	return s
}

var versionRe = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(?:-([0-9A-Za-z\-\.]+))?(?:\+([0-9A-Za-z\-\.]+))?$`)

// Parse parses a version string into a Version struct. It delegates
// validity checking to Masterminds/semver and then extracts the
// numeric segments the rest of this package operates on.
func Parse(version string) (*Version, error) {
	if _, err := mmsemver.NewVersion(version); err != nil {
		return nil, fmt.Errorf("versioning: invalid version string %q: %w", version, err)
	}

	matches := versionRe.FindStringSubmatch(version)
	if matches == nil {
		return nil, fmt.Errorf("versioning: invalid version string: %s", version)
	}

	major, _ := strconv.Atoi(matches[1])
	minor, _ := strconv.Atoi(matches[2])
	patch, _ := strconv.Atoi(matches[3])

	return &Version{
		Major:      major,
		Minor:      minor,
		Patch:      patch,
		Prerelease: matches[4],
		Build:      matches[5],
	}, nil
}

// Compare compares two versions.
// Returns -1 if v < other, 0 if v == other, 1 if v > other.
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		return compareInt(v.Major, other.Major)
	}
	if v.Minor != other.Minor {
		return compareInt(v.Minor, other.Minor)
	}
	if v.Patch != other.Patch {
		return compareInt(v.Patch, other.Patch)
	}
	if v.Prerelease != "" && other.Prerelease == "" {
		return -1
	}
	if v.Prerelease == "" && other.Prerelease != "" {
		return 1
	}
	return strings.Compare(v.Prerelease, other.Prerelease)
}

func compareInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// IsCompatible checks if other version is compatible with v (same major version).
func (v Version) IsCompatible(other Version) bool {
	return v.Major == other.Major
}

// IncrementMajor returns a new version with major incremented and minor/patch reset.
func (v Version) IncrementMajor() Version {
	return Version{Major: v.Major + 1, Minor: 0, Patch: 0}
}

// IncrementMinor returns a new version with minor incremented and patch reset.
func (v Version) IncrementMinor() Version {
	return Version{Major: v.Major, Minor: v.Minor + 1, Patch: 0}
}

// IncrementPatch returns a new version with patch incremented.
func (v Version) IncrementPatch() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}
