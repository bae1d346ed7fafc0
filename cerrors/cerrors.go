// (c) Copyright 2024 MediaForge Technologies LP

package cerrors

import (
	"fmt"
	"strconv"

	log "github.com/mediaforge/boot-host-libs/logger"
)

type CoreErrorCode uint32

const (
	OK              CoreErrorCode = 0
	Cancelled       CoreErrorCode = 1
	Unknown         CoreErrorCode = 2
	InvalidArgument CoreErrorCode = 3
	NotFound        CoreErrorCode = 4
	NoDevice        CoreErrorCode = 5
	AccessDenied    CoreErrorCode = 6
	Sharing         CoreErrorCode = 7
	BadMedia        CoreErrorCode = 8
	LayoutRefuses   CoreErrorCode = 9
	RemountFailed   CoreErrorCode = 10
	Internal        CoreErrorCode = 11
	Timeout         CoreErrorCode = 12
	_maxCode        CoreErrorCode = 13
)

const (
	errorMessageInvalidInputParameters = "invalid input parameters"
)

type CoreError struct {
	Code CoreErrorCode `json:"code"`
	Text string        `json:"text,omitempty"`
}

// NewCoreError takes an array of objects and returns a pointer to a CoreError object.  The
// following input parameters, in any order, are supported:
//     CoreError     - CoreError object
//     error         - All other error objects
//     CoreErrorCode - core error code
//     string        - core error text
// This routine parses the input data to create and return a new CoreError object
func NewCoreError(args ...interface{}) *CoreError {

	// These are the optional parameters we support
	var coreError *CoreError
	var otherError *error
	errorCode := _maxCode
	errorMessage := ""

	// Parse the input parameters and populate local variables
	for _, arg := range args {
		switch arg.(type) {
		case CoreErrorCode:
			errorCode = arg.(CoreErrorCode)
		case string:
			errorMessage = arg.(string)
		case CoreError:
			err := arg.(CoreError)
			coreError = &err
		case *CoreError:
			coreError = arg.(*CoreError)
		case error:
			err := arg.(error)
			otherError = &err
		}
	}

	// Create a new initial CoreError object
	err := &CoreError{Code: _maxCode, Text: ""}

	// Populate the CoreError Text property
	if coreError != nil {
		err = coreError
	} else if otherError != nil {
		err.Text = (*otherError).Error()
	} else if errorMessage != "" {
		err.Text = errorMessage
	}

	// Populate the CoreError Code property
	if errorCode < _maxCode {
		err.Code = errorCode
	}

	// If neither an error message or an error code were provided, fail with generic error
	if (err.Code == _maxCode) && (err.Text == "") {
		return &CoreError{Code: Internal, Text: errorMessageInvalidInputParameters}
	}

	// Handle condition where CoreError Code property is still empty
	if err.Code == _maxCode {
		err.Code = Unknown
	}

	// Handle condition where CoreError text property is still empty
	if err.Text == "" {
		err.Text = err.Code.String()
	}

	return err
}

func NewCoreErrorf(c CoreErrorCode, format string, a ...interface{}) *CoreError {
	return &CoreError{Code: c, Text: fmt.Sprintf(format, a...)}
}

func (e *CoreError) Error() string {
	return fmt.Sprintf("status: %d msg: %s", e.Code, e.Text)
}

func (e *CoreError) LogAndError() CoreError {
	log.Errorln(e.Error())
	return *e
}

// ErrorCode returns the status code contained in CoreError
func (e *CoreError) ErrorCode() CoreErrorCode {
	if e == nil {
		return OK
	}
	return e.Code
}

// ErrorText returns the text contained in CoreError
func (e *CoreError) ErrorText() string {
	if e == nil {
		return ""
	}
	return e.Text
}

// Code extracts the CoreErrorCode from any error.  Errors that did not originate from
// this package report Unknown.
func Code(err error) CoreErrorCode {
	if err == nil {
		return OK
	}
	if coreErr, ok := err.(*CoreError); ok {
		return coreErr.ErrorCode()
	}
	return Unknown
}

func (c CoreErrorCode) String() string {
	switch c {
	case OK:
		return "OK"
	case Cancelled:
		return "Cancelled"
	case Unknown:
		return "Unknown"
	case InvalidArgument:
		return "InvalidArgument"
	case NotFound:
		return "NotFound"
	case NoDevice:
		return "NoDevice"
	case AccessDenied:
		return "AccessDenied"
	case Sharing:
		return "Sharing"
	case BadMedia:
		return "BadMedia"
	case LayoutRefuses:
		return "LayoutRefuses"
	case RemountFailed:
		return "RemountFailed"
	case Internal:
		return "Internal"
	case Timeout:
		return "Timeout"
	default:
		return "Code(" + strconv.FormatInt(int64(c), 10) + ")"
	}
}
