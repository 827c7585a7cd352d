package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidOrder, "invalid order")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidOrder, err.Code)
	suite.Equal("invalid order", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeUnknownSymbol, "no price for %s", "AAPL")
	suite.NotNil(err)
	suite.Equal(ErrCodeUnknownSymbol, err.Code)
	suite.Equal("no price for AAPL", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataUnavailable, "bars unavailable", cause)
	suite.NotNil(err)
	suite.Equal(ErrCodeDataUnavailable, err.Code)
	suite.Equal("bars unavailable", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("underlying error")
	err := Wrapf(ErrCodeDataUnavailable, cause, "bars unavailable for symbol: %s", "AAPL")
	suite.NotNil(err)
	suite.Equal("bars unavailable for symbol: AAPL", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeInvalidOrder, "invalid order")
	suite.Equal("[500] invalid order", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataUnavailable, "bars unavailable", cause)
	suite.Equal("[200] bars unavailable: underlying error", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataUnavailable, "bars unavailable", cause)
	suite.Equal(cause, err.Unwrap())
	suite.True(Is(err, cause))
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeInsufficientFunds, "cash too low")
	suite.Equal(ErrCodeInsufficientFunds, GetCode(err))
	suite.True(HasCode(err, ErrCodeInsufficientFunds))
	suite.False(HasCode(err, ErrCodeInvalidOrder))
}

func (suite *ErrorTestSuite) TestGetCodeFromWrapped() {
	cause := New(ErrCodeInvalidScheduleValue, "hour out of range")
	err := fmt.Errorf("building schedule: %w", cause)
	suite.Equal(ErrCodeInvalidScheduleValue, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeNonStructured() {
	suite.Equal(ErrCodeUnknown, GetCode(errors.New("plain")))
}

func (suite *ErrorTestSuite) TestIsConfiguration() {
	suite.True(IsConfiguration(New(ErrCodeInvalidScheduleField, "bad key")))
	suite.True(IsConfiguration(New(ErrCodeInvalidTimeRange, "both bounds relative")))
	suite.False(IsConfiguration(New(ErrCodeInsufficientFunds, "cash too low")))
}

func (suite *ErrorTestSuite) TestInsufficientDataError() {
	err := NewInsufficientDataErrorf(20, 5, "AAPL", "need %d bars, have %d", 20, 5)
	suite.Equal("need 20 bars, have 5", err.Error())
	suite.True(IsInsufficientDataError(err))
	suite.True(IsInsufficientDataError(fmt.Errorf("wrapped: %w", err)))
	suite.False(IsInsufficientDataError(errors.New("plain")))
}
