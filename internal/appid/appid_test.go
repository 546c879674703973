package appid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetReturnsPopulatedIdentity(t *testing.T) {
	identity := Get()
	assert.NotEmpty(t, identity.BinaryName)
	assert.NotEmpty(t, identity.ConfigName)
	assert.NotEmpty(t, identity.Description)
	assert.Equal(t, "NEXUS_", identity.Prefix())
}

func TestEnvNames(t *testing.T) {
	identity := Identity{EnvPrefix: "demo_"}
	assert.Equal(t, "DEMO_", identity.Prefix())
	assert.Equal(t, "DEMO_PORT", identity.Env("port"))

	assert.Equal(t, "", Identity{}.Prefix())
}

func TestTelemetryNamespace(t *testing.T) {
	assert.Equal(t, "nexus_engine", Get().TelemetryNamespace())
	assert.Equal(t, "", Identity{}.TelemetryNamespace())
}
