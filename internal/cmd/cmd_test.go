package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zycxfyh/nexus-verse/internal/ailink"
	"github.com/zycxfyh/nexus-verse/internal/appid"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want foundry.ExitCode
	}{
		{"Unavailable", &ailink.UnavailableError{Role: "chat"}, foundry.ExitExternalServiceUnavailable},
		{"Completion", &ailink.CompletionError{Code: "AILINK_PROVIDER_TIMEOUT", Status: http.StatusGatewayTimeout}, foundry.ExitExternalServiceUnavailable},
		{"ConfigError", &ailink.ConfigError{Reason: "no construction strategy"}, foundry.ExitConfigInvalid},
		{"InvalidRequest", fmt.Errorf("%w: role is required", ailink.ErrInvalidRequest), foundry.ExitConfigInvalid},
		{"Store", &ailink.StoreError{Op: "find earliest", Err: errors.New("locked")}, foundry.ExitFailure},
		{"Other", errors.New("boom"), foundry.ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeFor(tt.err))
		})
	}
}

func TestServeOverridesOnlyIncludeChangedFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "serve"}
	cmd.Flags().StringVar(&serverHost, "host", "localhost", "")
	cmd.Flags().IntVar(&serverPort, "port", 8080, "")

	assert.Nil(t, serveOverrides(cmd))

	require.NoError(t, cmd.Flags().Parse([]string{"--port", "9001"}))
	assert.Equal(t, map[string]any{"server": map[string]any{"port": 9001}}, serveOverrides(cmd))
}

func TestRootCommandUsesAppIdentity(t *testing.T) {
	assert.Equal(t, appid.Get().BinaryName, rootCmd.Name())

	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "resolve", "complete", "configs", "doctor", "envinfo", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestPromptMessages(t *testing.T) {
	messages := promptMessages("", "hello")
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].Role)

	messages = promptMessages("be terse", "hello")
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "hello", messages[1].Text())
}
