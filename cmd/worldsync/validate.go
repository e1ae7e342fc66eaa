package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/jpalmerr/worldsync/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a config and preview the seed world",
	Long: `Load a config the way serve does (environment expansion, defaults,
validation) and print the stream limits and the world a server would start
with. Nothing is bound or served. A non-zero exit means the config would not
start.

Example:
  worldsync validate -c worldsync.yaml`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	printWorldPreview(cmd.OutOrStdout(), path, cfg)
	return nil
}

// printWorldPreview summarises the stream settings and seed entities of cfg.
func printWorldPreview(w io.Writer, path string, cfg *config.Config) {
	queue := "unbounded"
	if cfg.QueueLimit > 0 {
		queue = fmt.Sprintf("%d frames", cfg.QueueLimit)
	}
	origins := "any"
	if len(cfg.AllowedOrigins) > 0 {
		origins = fmt.Sprintf("%d listed", len(cfg.AllowedOrigins))
	}

	fmt.Fprintf(w, "%s is valid\n\n", path)
	fmt.Fprintf(w, "Stream on :%d/subscribe\n", cfg.Port)
	fmt.Fprintf(w, "  Write timeout: %s\n", cfg.WriteTimeout.Duration())
	fmt.Fprintf(w, "  Max message:   %d bytes\n", cfg.MaxMessageSize)
	fmt.Fprintf(w, "  Queue limit:   %s\n", queue)
	fmt.Fprintf(w, "  Origins:       %s\n", origins)

	names := make([]string, 0, len(cfg.Entities))
	width := 0
	for name := range cfg.Entities {
		names = append(names, name)
		width = max(width, len(name))
	}
	sort.Strings(names)

	fmt.Fprintf(w, "\nSeed world: %d entities\n", len(names))
	for _, name := range names {
		n := len(cfg.Entities[name])
		unit := "attributes"
		if n == 1 {
			unit = "attribute"
		}
		fmt.Fprintf(w, "  %-*s  %d %s\n", width, name, n, unit)
	}
}
