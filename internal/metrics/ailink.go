package metrics

import "time"

// Provider resolution and completion metrics
const (
	ResolutionsTotal      = "ailink_resolutions_total"
	CompletionsTotal      = "ailink_completions_total"
	CompletionDuration    = "ailink_completion_duration_ms"
	ConfigurationsWritten = "ailink_configurations_written_total"
)

// RecordResolution counts a resolution outcome for the tier that ended it.
func RecordResolution(tier string, status string) {
	count(ResolutionsTotal, map[string]string{"tier": tier, "status": status})
}

// RecordCompletion records a completion call made through a resolved provider.
func RecordCompletion(driverName string, success bool, duration time.Duration) {
	count(CompletionsTotal, map[string]string{
		"driver": driverName,
		"status": outcome(success, "success", "failure"),
	})
	observe(CompletionDuration, duration, map[string]string{"driver": driverName})
}

// RecordConfigurationWrite counts settings mutations by operation.
func RecordConfigurationWrite(op string) {
	count(ConfigurationsWritten, map[string]string{"op": op})
}
