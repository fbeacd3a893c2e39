package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"GuildBot/config"
	"GuildBot/extensions"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <name>",
	Short: "Resolve a short extension name to its qualified path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newResolver()
		if err != nil {
			return err
		}
		path, err := r.Resolve(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List every extension found in the source roots",
	Long: `Scan the source roots the way the resolver does and print each short name
with the qualified paths it matches. Names with more than one path are
ambiguous and must be loaded by their qualified path.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		r, err := newResolver()
		if err != nil {
			return err
		}
		found, err := r.Discover()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(found) == 0 {
			fmt.Fprintln(out, "No extensions found. Make sure you're in the bot source directory.")
			return nil
		}

		names := make([]string, 0, len(found))
		for name := range found {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			paths := found[name]
			marker := ""
			if len(paths) > 1 {
				marker = " (ambiguous)"
			}
			fmt.Fprintf(out, "%s%s\n", name, marker)
			for _, p := range paths {
				compiled := ""
				if _, ok := extensions.Default.Lookup(p); ok {
					compiled = " [compiled in]"
				}
				fmt.Fprintf(out, "  %s%s\n", p, compiled)
			}
		}
		return nil
	},
}

// loadConfig reads the environment and applies the global flags on top.
func loadConfig() (*config.Config, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}
	if len(extensionRoots) > 0 {
		cfg.ExtensionRoots = extensionRoots
	}
	if manifestFile != "" {
		cfg.ExtensionManifest = manifestFile
	}
	if driver != "" {
		cfg.SettingsDriver = driver
	}
	if dsn != "" {
		cfg.DatabaseURL = dsn
	}
	return cfg, nil
}

func newResolver() (*extensions.Resolver, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return extensions.NewResolver(cfg.ExtensionRoots, cfg.ExtensionManifest, nil)
}
