package config

// Default returns the configuration used when the document carries no
// logging_config section: cloud logging enabled, no destination, no filters
// and no restriction on event types.
func Default() Config {
	return Config{
		enableCloudLogging: true,
	}
}
