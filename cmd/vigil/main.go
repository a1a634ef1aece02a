package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess      = 0 // Session matched the plan
	ExitVerifyFailed = 1 // Verification completed but the session deviated
	ExitError        = 2 // Configuration or runtime error
)

// VerificationFailedError indicates that the pipeline ran to completion,
// but the recorded session deviated from the test plan.
type VerificationFailedError struct {
	Message string
}

func (e *VerificationFailedError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		// Check error type to determine exit code
		var verifyErr *VerificationFailedError
		if errors.As(err, &verifyErr) {
			os.Exit(ExitVerifyFailed)
		}

		// All other errors are configuration/runtime errors
		os.Exit(ExitError)
	}
}
