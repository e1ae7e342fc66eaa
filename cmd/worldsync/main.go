// Command worldsync serves a shared world of entities and can watch or
// check one from the terminal.
//
//	worldsync serve -c worldsync.yaml     # host the world
//	worldsync validate -c worldsync.yaml  # check a config and preview the seed world
//	worldsync watch --url http://host:80  # tail the change stream
//	worldsync version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "worldsync",
	Short: "Host and watch a shared world of entities",
	Long: `A world is a map of entity IDs to attribute objects held in memory by
one server. Any client may write an entity; every write is pushed to every
connected client, the writer included, so all of them converge.

Writing:
  WebSocket  /subscribe      send {"<entity>": {...}, ...}; each entity is replaced
  HTTP       /entity/{id}    POST or PUT {"<attr>": value, ...}; attributes are merged

Reading:
  WebSocket  /subscribe      one {"<entity>": {...}} frame per change
  SSE        /events         the current world, then every change
  HTTP       /world          the whole world; /clear empties it silently

Commands:
  serve     host a world from a YAML config (seed entities, port, limits)
  validate  check a config and summarise the world it would start with
  watch     connect to /subscribe and print each change as a line of JSON`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "worldsync %s (commit %s, built %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// cobra has already printed the error
		os.Exit(1)
	}
}
