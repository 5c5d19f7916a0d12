package config_test

import (
	"fmt"

	"github.com/ajitpratap0/trackpool/pkg/config"
)

// ExampleDefault demonstrates the defaults every loaded file starts from.
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Shard Size: %d\n", cfg.Traversal.ShardSize)
	fmt.Printf("Metrics Address: %s\n", cfg.Metrics.Address)
	fmt.Printf("Log Level: %s\n", cfg.Logging.Level)

	// Output:
	// Shard Size: 1000000
	// Metrics Address: :9090
	// Log Level: info
}

// ExampleParse shows decoding a configuration and validating it.
func ExampleParse() {
	cfg, err := config.Parse([]byte(`
reference:
  - {name: chr1, length: 1000}
tracks:
  - name: calls
    format: bed
    path: calls.bed
`))
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(cfg.Tracks[0].Name, cfg.Validate() == nil)

	// Output:
	// calls true
}
