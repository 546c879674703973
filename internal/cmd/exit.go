package cmd

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/zycxfyh/nexus-verse/internal/ailink"
)

// Exit terminates the process for a failed command, choosing the exit code from the
// error: resolution and provider failures map to external-service-unavailable and
// configuration problems to config-invalid.
func Exit(err error) {
	ExitWithCode(nil, ExitCodeFor(err), "Command execution failed", err)
}

// ExitCodeFor maps a command error to a semantic foundry exit code.
func ExitCodeFor(err error) foundry.ExitCode {
	var completionErr *ailink.CompletionError
	switch {
	case err == nil:
		return foundry.ExitFailure
	case stderrors.Is(err, ailink.ErrServiceUnavailable), stderrors.As(err, &completionErr):
		return foundry.ExitExternalServiceUnavailable
	case stderrors.Is(err, ailink.ErrConfiguration), stderrors.Is(err, ailink.ErrInvalidRequest):
		return foundry.ExitConfigInvalid
	case stderrors.Is(err, os.ErrNotExist):
		return foundry.ExitFileNotFound
	default:
		return foundry.ExitFailure
	}
}

// ExitWithCode exits the program with a semantic foundry exit code and logs the error.
// A nil logger writes to stderr, which is what early failures need.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		os.Exit(int(exitCode))
	}

	if logger == nil {
		writeExitToStderr(msg, err)
		fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
		os.Exit(info.Code)
	}

	fields := []zap.Field{
		zap.Int("exit_code", info.Code),
		zap.String("exit_name", info.Name),
		zap.String("exit_category", info.Category),
	}
	if envelope, ok := err.(*errors.ErrorEnvelope); ok {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("correlation_id", envelope.CorrelationID))
		if envelope.Context != nil {
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
		if originalErr, ok := envelope.Original.(error); ok && originalErr != nil {
			err = originalErr
		}
	}
	fields = append(fields, zap.Error(err))
	logger.Error(msg, fields...)

	os.Exit(info.Code)
}

// ExitWithCodeStderr is a variant that writes to stderr without a logger.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	ExitWithCode(nil, exitCode, msg, err)
}

func writeExitToStderr(msg string, err error) {
	switch envelope, ok := err.(*errors.ErrorEnvelope); {
	case ok:
		fmt.Fprintf(os.Stderr, "Error: %s [%s]: %s\n", msg, envelope.Code, envelope.Message)
		if envelope.CorrelationID != "" {
			fmt.Fprintf(os.Stderr, "Correlation: %s\n", envelope.CorrelationID)
		}
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
}
