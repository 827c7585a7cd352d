package version

import (
	"testing"

	"github.com/rxtech-lab/tempo-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type CompareTestSuite struct {
	suite.Suite
}

func TestCompareSuite(t *testing.T) {
	suite.Run(t, new(CompareTestSuite))
}

func (suite *CompareTestSuite) TestCheckStrategyCompatibility() {
	tests := []struct {
		name     string
		engine   string
		strategy string
		wantErr  bool
	}{
		{"exact match", "1.2.0", "1.2.0", false},
		{"patch differs", "1.2.1", "1.2.0", false},
		{"v prefix accepted", "v1.2.0", "1.2.3", false},
		{"minor differs", "1.3.0", "1.2.0", true},
		{"major differs", "2.0.0", "1.2.0", true},
		{"engine dev build", "main", "1.2.0", false},
		{"strategy dev build", "1.2.0", "main", false},
		{"garbage strategy version", "1.2.0", "not-a-version", true},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			err := CheckStrategyCompatibility(tc.engine, tc.strategy)
			if tc.wantErr {
				suite.Require().Error(err)
				suite.True(errors.HasCode(err, errors.ErrCodeVersionMismatch))
			} else {
				suite.NoError(err)
			}
		})
	}
}

func (suite *CompareTestSuite) TestGetVersion() {
	suite.NotEmpty(GetVersion())
}
