package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"GuildBot/settings"
	"GuildBot/utils"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and write guild settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <namespace> <guild-id> <key>",
	Short: "Print one setting as JSON",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := parseKey(args)
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(ctx context.Context, s *settings.Store) error {
			raw, ok, err := s.Load(ctx, k)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s is not set", k)
			}
			return printJSON(cmd, raw)
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <namespace> <guild-id> <key> <json>",
	Short: "Replace one setting with a JSON value",
	Long: `Replace one setting with a JSON value.

With the sqlite and postgres drivers a running bot sees the new value on its
next read. The file driver keeps the whole document in the bot's memory and
rewrites it on every save, so stop the bot before setting values in a file
store or the change will be lost.`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := parseKey(args[:3])
		if err != nil {
			return err
		}
		if !json.Valid([]byte(args[3])) {
			return fmt.Errorf("value is not valid JSON: %s", args[3])
		}
		return withStore(cmd.Context(), func(ctx context.Context, s *settings.Store) error {
			return s.Set(ctx, k, json.RawMessage(args[3]))
		})
	},
}

var settingsDumpCmd = &cobra.Command{
	Use:   "dump <namespace> <guild-id>",
	Short: "Print every setting of a guild in a namespace",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		guildID, err := utils.ParseSnowflake(args[1])
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(ctx context.Context, s *settings.Store) error {
			values, err := s.List(ctx, args[0], guildID)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(values))
			for name := range values {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", name, values[name])
			}
			return nil
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply settings schema migrations",
	Long:  `Open the configured settings database, which applies any pending migrations, and exit.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd.Context(), func(context.Context, *settings.Store) error {
			fmt.Fprintln(cmd.OutOrStdout(), "Settings schema is up to date.")
			return nil
		})
	},
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd, settingsDumpCmd)
}

func parseKey(args []string) (settings.Key, error) {
	guildID, err := utils.ParseSnowflake(args[1])
	if err != nil {
		return settings.Key{}, err
	}
	return settings.Key{Namespace: args[0], GuildID: guildID, Name: args[2]}, nil
}

// withStore opens the configured store for the duration of fn.
func withStore(ctx context.Context, fn func(context.Context, *settings.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := settings.Open(ctx, settings.Options{
		Driver:  cfg.SettingsDriver,
		DSN:     cfg.DatabaseURL,
		Timeout: cfg.StorageTimeout,
	})
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store)
}

func printJSON(cmd *cobra.Command, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), buf.String())
	return nil
}
