package subsystem

import "fmt"

// Result is the subsystem's numeric result code.
type Result int32

const (
	ResultNone               Result = 0
	ResultOK                 Result = 1
	ResultFail               Result = 2
	ResultNoConnection       Result = 3
	ResultInvalidParam       Result = 8
	ResultFileNotFound       Result = 9
	ResultBusy               Result = 10
	ResultInvalidState       Result = 11
	ResultAccessDenied       Result = 15
	ResultTimeout            Result = 16
	ResultServiceUnavailable Result = 20
	ResultPending            Result = 22
	ResultLimitExceeded      Result = 25
	ResultExpired            Result = 27
	ResultInsufficientFunds  Result = 107
)

var resultNames = map[Result]string{
	ResultNone:               "None",
	ResultOK:                 "OK",
	ResultFail:               "Fail",
	ResultNoConnection:       "NoConnection",
	ResultInvalidParam:       "InvalidParam",
	ResultFileNotFound:       "FileNotFound",
	ResultBusy:               "Busy",
	ResultInvalidState:       "InvalidState",
	ResultAccessDenied:       "AccessDenied",
	ResultTimeout:            "Timeout",
	ResultServiceUnavailable: "ServiceUnavailable",
	ResultPending:            "Pending",
	ResultLimitExceeded:      "LimitExceeded",
	ResultExpired:            "Expired",
	ResultInsufficientFunds:  "InsufficientFunds",
}

// String returns the code's name, or its number if unknown.
func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Result(%d)", int32(r))
}

// ParseResult maps a name produced by String back to its code.
func ParseResult(name string) (Result, error) {
	for code, n := range resultNames {
		if n == name {
			return code, nil
		}
	}
	return ResultNone, fmt.Errorf("unknown result code %q", name)
}
