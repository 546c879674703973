package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/zycxfyh/nexus-verse/internal/ailink"
)

type memoryRepository struct {
	ailink.Repository
	byID    map[string]*ailink.Configuration
	created []string
	updated []string
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{byID: map[string]*ailink.Configuration{}}
}

func (m *memoryRepository) CreateConfiguration(ctx context.Context, cfg *ailink.Configuration) error {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.ID == "" {
		cfg.ID = "generated-" + cfg.ModelID
	}
	copied := *cfg
	m.byID[cfg.ID] = &copied
	m.created = append(m.created, cfg.ID)
	return nil
}

func (m *memoryRepository) GetConfiguration(ctx context.Context, id string) (*ailink.Configuration, error) {
	cfg, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	copied := *cfg
	return &copied, nil
}

func (m *memoryRepository) UpdateConfiguration(ctx context.Context, cfg *ailink.Configuration) error {
	if _, ok := m.byID[cfg.ID]; !ok {
		return ailink.ErrConfigurationNotFound
	}
	copied := *cfg
	m.byID[cfg.ID] = &copied
	m.updated = append(m.updated, cfg.ID)
	return nil
}

const importYAML = `configurations:
  - id: cfg-1
    owner_id: u1
    provider: DeepSeek
    api_key: sk-one
    model_id: deepseek-chat
    assigned_roles: [Chat, story-writer]
  - owner_id: u1
    provider: OpenAI
    api_key: sk-two
    model_id: gpt-4o-mini
    base_url: https://proxy.internal/v1
`

func TestReadConfigurationFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(importYAML), 0o600))

	file, err := readConfigurationFile(nil, path)
	require.NoError(t, err)
	require.Len(t, file.Configurations, 2)

	first := file.Configurations[0]
	assert.Equal(t, "cfg-1", first.ID)
	assert.Equal(t, "sk-one", first.APIKey)
	assert.True(t, first.AssignedRoles.Contains("chat"))
	assert.Equal(t, "https://proxy.internal/v1", file.Configurations[1].BaseURLValue())
}

func TestReadConfigurationFileFromStdin(t *testing.T) {
	file, err := readConfigurationFile(strings.NewReader(importYAML), "-")
	require.NoError(t, err)
	assert.Len(t, file.Configurations, 2)

	empty, err := readConfigurationFile(strings.NewReader(""), "-")
	require.NoError(t, err)
	assert.Empty(t, empty.Configurations)
}

func TestReadConfigurationFileRejectsUnknownFields(t *testing.T) {
	_, err := readConfigurationFile(strings.NewReader("configurations:\n  - owner: u1\n"), "-")
	require.ErrorIs(t, err, ailink.ErrInvalidRequest)
}

func TestReadConfigurationFileMissing(t *testing.T) {
	_, err := readConfigurationFile(nil, filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, ExitCodeFor(err), ExitCodeFor(os.ErrNotExist))
}

func TestImportConfigurationCreatesAndUpserts(t *testing.T) {
	repo := newMemoryRepository()
	ctx := context.Background()

	applied, err := importConfiguration(ctx, repo, &ailink.Configuration{
		ID: "cfg-1", OwnerID: "u1", Provider: "DeepSeek", APIKey: "sk-1", ModelID: "deepseek-chat",
	}, true)
	require.NoError(t, err)
	assert.Equal(t, "create", applied)

	applied, err = importConfiguration(ctx, repo, &ailink.Configuration{
		ID: "cfg-1", OwnerID: "someone-else", Provider: "DeepSeek", APIKey: "sk-2", ModelID: "deepseek-reasoner",
	}, true)
	require.NoError(t, err)
	assert.Equal(t, "update", applied)

	stored := repo.byID["cfg-1"]
	assert.Equal(t, "u1", stored.OwnerID, "upsert keeps the original owner")
	assert.Equal(t, "deepseek-reasoner", stored.ModelID)
	assert.Equal(t, []string{"cfg-1"}, repo.created)
	assert.Equal(t, []string{"cfg-1"}, repo.updated)
}

func TestImportConfigurationWithoutUpsertCreates(t *testing.T) {
	repo := newMemoryRepository()
	_, err := importConfiguration(context.Background(), repo, &ailink.Configuration{
		OwnerID: "u1", Provider: "OpenAI", APIKey: "sk", ModelID: "gpt-4o",
	}, false)
	require.NoError(t, err)
	assert.Len(t, repo.created, 1)
}

func TestImportConfigurationPropagatesValidation(t *testing.T) {
	repo := newMemoryRepository()
	_, err := importConfiguration(context.Background(), repo, &ailink.Configuration{
		OwnerID: ailink.SystemOwner, Provider: "OpenAI", APIKey: "sk", ModelID: "gpt-4o",
	}, false)
	require.ErrorIs(t, err, ailink.ErrInvalidRequest)
}

func TestApplyConfigurationFlagsOnlyTouchesChangedFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "update"}
	var provider, model, baseURL, apiKey string
	var roles []string
	cmd.Flags().StringVar(&provider, "provider", "", "")
	cmd.Flags().StringVar(&model, "model", "", "")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "")
	cmd.Flags().StringSliceVar(&roles, "roles", nil, "")
	require.NoError(t, cmd.Flags().Parse([]string{"--model", "gpt-4.1", "--base-url", "", "--roles", "chat,summarize"}))

	configsModel, configsBaseURL, configsRoles = model, baseURL, roles
	t.Cleanup(func() { configsModel, configsBaseURL, configsRoles = "", "", nil })

	cfg := &ailink.Configuration{
		ID:       "cfg-1",
		Provider: ailink.ProviderOpenAI,
		APIKey:   "sk-keep",
		BaseURL:  ailink.StringPtr("https://old.example"),
		ModelID:  "gpt-4o",
	}
	require.NoError(t, applyConfigurationFlags(cmd, cfg))

	assert.Equal(t, ailink.ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "sk-keep", cfg.APIKey)
	assert.Equal(t, "gpt-4.1", cfg.ModelID)
	assert.Nil(t, cfg.BaseURL)
	assert.Equal(t, "chat,summarize", cfg.AssignedRoles.String())
}

func TestBuildInitConfigIsValidYAML(t *testing.T) {
	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(buildInitConfig()), &parsed))
	assert.Contains(t, parsed, "store")
	assert.Contains(t, parsed, "fallback")
}
