package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
)

// CheckStrategyCompatibility checks whether a strategy's declared API
// version can be driven by this engine.
//
// Rules:
//   - If either version is "main" (development build), the check is skipped
//   - Major versions must match exactly
//   - Minor versions must match exactly
//   - Patch versions can differ
func CheckStrategyCompatibility(engineVersion, strategyVersion string) error {
	engineVersion = strings.TrimPrefix(engineVersion, "v")
	strategyVersion = strings.TrimPrefix(strategyVersion, "v")

	if engineVersion == "main" || strategyVersion == "main" {
		return nil
	}

	engineSemver, err := semver.NewVersion(engineVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeVersionMismatch, err, "invalid engine version %q", engineVersion)
	}

	strategySemver, err := semver.NewVersion(strategyVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeVersionMismatch, err, "invalid strategy version %q", strategyVersion)
	}

	if engineSemver.Major() != strategySemver.Major() {
		return errors.Newf(errors.ErrCodeVersionMismatch,
			"major version mismatch: engine is %d.x.x but strategy requires %d.x.x",
			engineSemver.Major(), strategySemver.Major())
	}

	if engineSemver.Minor() != strategySemver.Minor() {
		return errors.Newf(errors.ErrCodeVersionMismatch,
			"minor version mismatch: engine is %d.%d.x but strategy requires %d.%d.x",
			engineSemver.Major(), engineSemver.Minor(),
			strategySemver.Major(), strategySemver.Minor())
	}

	return nil
}
