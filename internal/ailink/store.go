package ailink

import "context"

// ConfigurationStore answers the two queries resolution needs. Both return (nil, nil)
// when nothing matches.
type ConfigurationStore interface {
	// FindDedicated returns a configuration owned by ownerID whose assigned roles contain role.
	FindDedicated(ctx context.Context, ownerID string, role Role) (*Configuration, error)
	// FindEarliest returns ownerID's configuration with the oldest creation time,
	// ties broken by ID.
	FindEarliest(ctx context.Context, ownerID string) (*Configuration, error)
}

// Repository is a ConfigurationStore that also supports the settings operations used
// by tooling. Update and Delete return ErrConfigurationNotFound for unknown IDs.
type Repository interface {
	ConfigurationStore

	CreateConfiguration(ctx context.Context, cfg *Configuration) error
	GetConfiguration(ctx context.Context, id string) (*Configuration, error)
	ListConfigurations(ctx context.Context, ownerID string) ([]Configuration, error)
	UpdateConfiguration(ctx context.Context, cfg *Configuration) error
	DeleteConfiguration(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}
