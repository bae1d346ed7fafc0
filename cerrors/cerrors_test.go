// (c) Copyright 2024 MediaForge Technologies LP

package cerrors

import (
	"errors"
	"testing"
)

func TestNewCoreError(t *testing.T) {

	var err *CoreError
	errorMessage := "this is a simple test error message"
	errorTemplate := `Invalid CoreError, received %v:"%v", expected %v:"%v"`

	err = NewCoreError(BadMedia, errorMessage)
	if (err.Code != BadMedia) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, BadMedia, errorMessage)
	}

	err = NewCoreError(BadMedia)
	if (err.Code != BadMedia) || (err.Text != err.Code.String()) {
		t.Errorf(errorTemplate, err.Code, err.Text, BadMedia, err.Code.String())
	}

	err = NewCoreError(errorMessage)
	if (err.Code != Unknown) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, Unknown, errorMessage)
	}

	err = NewCoreError(errors.New(errorMessage))
	if (err.Code != Unknown) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, Unknown, errorMessage)
	}

	err = NewCoreError(RemountFailed, errors.New(errorMessage))
	if (err.Code != RemountFailed) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, RemountFailed, errorMessage)
	}

	err = NewCoreError(NewCoreError(errorMessage))
	if (err.Code != Unknown) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, Unknown, errorMessage)
	}

	err = NewCoreError(NewCoreError(errorMessage), LayoutRefuses)
	if (err.Code != LayoutRefuses) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, LayoutRefuses, errorMessage)
	}

	err = NewCoreError()
	if (err.Code != Internal) || (err.Text != errorMessageInvalidInputParameters) {
		t.Errorf(errorTemplate, err.Code, err.Text, Internal, errorMessageInvalidInputParameters)
	}
}

func TestCode(t *testing.T) {
	if Code(nil) != OK {
		t.Error("nil error should report OK")
	}
	if Code(errors.New("plain")) != Unknown {
		t.Error("foreign error should report Unknown")
	}
	if Code(NewCoreError(Sharing, "drive is busy")) != Sharing {
		t.Error("CoreError should report its own code")
	}
}

func TestCoreErrorCodeString(t *testing.T) {
	names := map[CoreErrorCode]string{
		OK:              "OK",
		Cancelled:       "Cancelled",
		NoDevice:        "NoDevice",
		AccessDenied:    "AccessDenied",
		Sharing:         "Sharing",
		BadMedia:        "BadMedia",
		LayoutRefuses:   "LayoutRefuses",
		RemountFailed:   "RemountFailed",
		Internal:        "Internal",
		Timeout:         "Timeout",
		CoreErrorCode(200): "Code(200)",
	}
	for code, name := range names {
		if code.String() != name {
			t.Errorf("code %d: got %q, expected %q", code, code.String(), name)
		}
	}
}
