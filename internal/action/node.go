package action

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// NodeVersion parses a manifest's runs.using tag (node12, node16, node20)
// into the major version it requires. The step executor does not consult it:
// a node action is run with whatever `node` the job's image provides, and no
// interpreter is provisioned.
func NodeVersion(using string) (*semver.Version, error) {
	major := strings.TrimPrefix(using, "node")
	if major == using || major == "" {
		return nil, fmt.Errorf("not a node runs.using tag: %q", using)
	}
	return semver.NewVersion(major + ".0.0")
}

// SatisfiesNode reports whether installedVersion (e.g. "v20.11.0" from
// `node --version`) meets the action's required major version, tolerating
// any minor/patch within that major per GitHub's own node1x contract.
func SatisfiesNode(using, installedVersion string) bool {
	required, err := NodeVersion(using)
	if err != nil {
		return false
	}
	installed, err := semver.NewVersion(strings.TrimPrefix(strings.TrimSpace(installedVersion), "v"))
	if err != nil {
		return false
	}
	c, err := semver.NewConstraint(fmt.Sprintf(">=%d.0.0 <%d.0.0", required.Major(), required.Major()+1))
	if err != nil {
		return false
	}
	return c.Check(installed)
}
