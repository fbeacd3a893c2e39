// Command botctl inspects the extensions compiled into the bot and edits
// guild settings offline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "GuildBot/extensions/admin"
	_ "GuildBot/extensions/help"
	_ "GuildBot/extensions/owner"
	_ "GuildBot/extensions/roles"
)

var rootCmd = &cobra.Command{
	Use:   "botctl",
	Short: "Inspect and administer the guild bot",
	Long: `botctl lists the extensions compiled into the bot, resolves extension
names the way the owner commands do, and reads or writes guild settings
directly in the settings store.`,
	SilenceUsage: true,
}

var (
	extensionRoots []string
	manifestFile   string
	driver         string
	dsn            string
	envFile        string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringSliceVar(&extensionRoots, "root", nil, "Source roots to search for extensions (default from EXTENSION_ROOTS)")
	flags.StringVar(&manifestFile, "manifest", "", "Extension manifest (default from EXTENSION_MANIFEST)")
	flags.StringVar(&driver, "driver", "", "Settings driver: sqlite, postgres, file or memory (default from SETTINGS_DRIVER)")
	flags.StringVar(&dsn, "dsn", "", "Settings database or file (default from DATABASE_URL)")
	flags.StringVar(&envFile, "env-file", "", "Load this .env file instead of ./.env")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(migrateCmd)
}
