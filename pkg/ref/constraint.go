package ref

import (
	"fmt"

	masterminds "github.com/Masterminds/semver/v3"
)

const constraintLogPrefix = "ref:constraint"

// CheckConstraint reports whether a signature-set version satisfies a SemVer
// constraint (e.g. "^1.2.0", ">=2, <3"). An empty constraint accepts anything.
func CheckConstraint(version, constraint string) error {
	if constraint == "" {
		return nil
	}
	c, err := masterminds.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("%s - invalid constraint %q: %w", constraintLogPrefix, constraint, err)
	}
	if version == "" {
		return fmt.Errorf("%s - signatures carry no version, constraint %q cannot be satisfied", constraintLogPrefix, constraint)
	}
	v, err := masterminds.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%s - invalid signature version %q: %w", constraintLogPrefix, version, err)
	}
	if ok, errs := c.Validate(v); !ok {
		msg := ""
		if len(errs) > 0 {
			msg = errs[0].Error()
		}
		return fmt.Errorf("%s - version %s does not satisfy %q: %s", constraintLogPrefix, version, constraint, msg)
	}
	return nil
}
