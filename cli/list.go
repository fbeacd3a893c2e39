package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"GuildBot/commands"
	"GuildBot/extensions"
	"GuildBot/settings"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List compiled-in extensions and their commands",
	Long: `Display every extension compiled into the bot. Each extension is set up
against a scratch registry and in-memory settings so its commands can be
listed without connecting to Discord.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var (
	listModules  bool
	listCommands bool
	filterModule string
)

func init() {
	listCmd.Flags().BoolVarP(&listModules, "modules", "m", false, "List only extensions")
	listCmd.Flags().BoolVarP(&listCommands, "commands", "c", false, "List only commands")
	listCmd.Flags().StringVarP(&filterModule, "filter", "f", "", "Filter by extension path or name")
}

// extensionInfo is one extension with the commands it registers.
type extensionInfo struct {
	extensions.Info
	Commands []*commands.Command
	Err      error
}

func runList(cmd *cobra.Command, _ []string) error {
	infos := inspect(cmd.Context(), extensions.Default)
	if filterModule != "" {
		infos = slices.DeleteFunc(infos, func(e extensionInfo) bool {
			return e.Path != filterModule && !strings.EqualFold(e.Name, filterModule) && !strings.HasSuffix(e.Path, "/"+filterModule)
		})
		if len(infos) == 0 {
			return fmt.Errorf("extension %q not found", filterModule)
		}
	}

	out := cmd.OutOrStdout()
	switch {
	case listModules:
		displayModules(out, infos)
	case listCommands:
		displayCommands(out, infos)
	default:
		displayModulesAndCommands(out, infos)
	}
	return nil
}

// inspect loads every catalog entry into a throwaway manager and records
// what each registered.
func inspect(ctx context.Context, catalog *extensions.Catalog) []extensionInfo {
	if ctx == nil {
		ctx = context.Background()
	}
	all := catalog.All()
	out := make([]extensionInfo, 0, len(all))
	for _, info := range all {
		registry := commands.NewRegistry()
		store := settings.New(settings.NewMemory(), time.Second, nil)
		m := extensions.NewManager(extensions.Config{Catalog: catalog, Commands: registry, Settings: store})

		e := extensionInfo{Info: info}
		if e.Err = m.Load(ctx, info.Path); e.Err == nil {
			e.Commands = registry.Commands()
			m.UnloadAll(ctx)
		}
		out = append(out, e)
	}
	return out
}

func displayModules(w io.Writer, infos []extensionInfo) {
	fmt.Fprintln(w, "📦 Available Extensions:")
	fmt.Fprintln(w)
	for _, e := range infos {
		fmt.Fprintf(w, "  %s (%s)\n", e.Name, e.Path)
		if e.Description != "" {
			fmt.Fprintf(w, "    %s\n", e.Description)
		}
		if e.Err != nil {
			fmt.Fprintf(w, "    Error: %v\n", e.Err)
		} else {
			fmt.Fprintf(w, "    Commands: %d\n", len(e.Commands))
		}
		fmt.Fprintln(w)
	}
}

func displayCommands(w io.Writer, infos []extensionInfo) {
	fmt.Fprintln(w, "🔧 Available Commands:")
	fmt.Fprintln(w)

	var all []*commands.Command
	for _, e := range infos {
		all = append(all, e.Commands...)
	}
	slices.SortFunc(all, func(a, b *commands.Command) int {
		if c := strings.Compare(a.Category, b.Category); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})

	category := "\x00"
	for _, cmd := range all {
		if cmd.Category != category {
			if category != "\x00" {
				fmt.Fprintln(w)
			}
			category = cmd.Category
			name := category
			if name == "" {
				name = "No Category"
			}
			fmt.Fprintf(w, "📂 %s\n", name)
		}
		writeCommand(w, "  ", cmd)
		if cmd.Usage != "" {
			fmt.Fprintf(w, "    Usage: .%s\n", cmd.Signature())
		}
	}
	fmt.Fprintln(w)
}

func displayModulesAndCommands(w io.Writer, infos []extensionInfo) {
	fmt.Fprintln(w, "📦 Available Extensions and Commands:")
	fmt.Fprintln(w)

	total := 0
	for _, e := range infos {
		fmt.Fprintf(w, "📦 %s - %s\n", e.Path, e.Description)
		if e.Err != nil {
			fmt.Fprintf(w, "   Error: %v\n\n", e.Err)
			continue
		}
		fmt.Fprintln(w, "   Commands:")
		for _, cmd := range e.Commands {
			writeCommand(w, "     ", cmd)
		}
		total += len(e.Commands)
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "📊 Summary: %d extensions, %d commands\n", len(infos), total)
}

func writeCommand(w io.Writer, indent string, cmd *commands.Command) {
	fmt.Fprintf(w, "%s.%s", indent, cmd.Name)
	if len(cmd.Aliases) > 0 {
		fmt.Fprintf(w, " (%s)", strings.Join(cmd.Aliases, ", "))
	}
	if cmd.Hidden {
		fmt.Fprint(w, " [hidden]")
	}
	fmt.Fprintf(w, " - %s\n", cmd.Description)
}
