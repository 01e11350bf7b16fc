// Command daemonctl is the CLI client: its command tree is generated at
// startup from the same Tool Registry the daemon uses for host commands
// (internal/hostcmd), one cobra command per registered tool, rather than
// hand-written subcommands. Every leaf command sends a single command
// message over the control socket and prints the daemon's reply.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/daemonctl/daemonctl/internal/bridge"
	"github.com/daemonctl/daemonctl/internal/config"
	"github.com/daemonctl/daemonctl/internal/hostcmd"
	"github.com/daemonctl/daemonctl/internal/toolcatalog"
)

var (
	rootFlag    string
	timeoutFlag time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "daemonctl",
		Short:         "Control client for the daemonctl agent-execution daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&rootFlag, "root", "", "Installation root (defaults to $XDG_DATA_HOME/daemonctl)")
	root.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 10*time.Second, "Command round-trip timeout")

	// Dependencies are never invoked client-side: the registry only needs to
	// exist long enough to read Name/Help/Parameters off each Definition and
	// build matching cobra commands. The real Dependencies live in the
	// daemon process that actually runs these Handlers.
	reg := toolcatalog.NewRegistry()
	hostcmd.Register(reg, &hostcmd.Dependencies{})

	groups := map[string]*cobra.Command{}
	for _, def := range reg.List() {
		leaf := buildCommand(def)
		parentName, _, nested := strings.Cut(def.Name, "__")
		if !nested {
			root.AddCommand(leaf)
			continue
		}
		parent, ok := groups[parentName]
		if !ok {
			parent = &cobra.Command{Use: parentName}
			groups[parentName] = parent
			root.AddCommand(parent)
		}
		parent.AddCommand(leaf)
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// schema is the minimal JSON Schema subset a hostcmd Definition's Parameters
// ever uses: a flat object of string/integer/boolean properties.
type schema struct {
	Properties map[string]struct {
		Type        string   `json:"type"`
		Description string   `json:"description"`
		Enum        []string `json:"enum"`
	} `json:"properties"`
	Required []string `json:"required"`
}

// buildCommand turns one toolcatalog.Definition into a cobra.Command: one
// flag per schema property, required ones enforced by cobra, and a Run that
// ships the collected values to the daemon as a single command message.
func buildCommand(def toolcatalog.Definition) *cobra.Command {
	_, leafName, nested := strings.Cut(def.Name, "__")
	use := def.Name
	if nested {
		use = leafName
	}

	var sc schema
	if err := json.Unmarshal(def.Parameters, &sc); err != nil {
		sc = schema{}
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: def.Help,
	}

	strs := map[string]*string{}
	ints := map[string]*int64{}
	bools := map[string]*bool{}

	required := map[string]bool{}
	for _, name := range sc.Required {
		required[name] = true
	}

	for name, prop := range sc.Properties {
		usage := prop.Description
		switch prop.Type {
		case "integer", "number":
			v := new(int64)
			cmd.Flags().Int64Var(v, name, 0, usage)
			ints[name] = v
		case "boolean":
			v := new(bool)
			cmd.Flags().BoolVar(v, name, false, usage)
			bools[name] = v
		default:
			v := new(string)
			cmd.Flags().StringVar(v, name, "", usage)
			strs[name] = v
		}
		if required[name] {
			cmd.MarkFlagRequired(name)
		}
	}

	cmd.RunE = func(c *cobra.Command, args []string) error {
		payload := map[string]any{}
		for name, v := range strs {
			if *v != "" {
				payload[name] = *v
			}
		}
		for name, v := range ints {
			if *v != 0 {
				payload[name] = *v
			}
		}
		for name, v := range bools {
			payload[name] = *v
		}
		return run(def.Name, payload)
	}
	return cmd
}

// run dials the control socket, sends a single command message for
// toolName, and prints the daemon's reply.
func run(toolName string, args map[string]any) error {
	paths := config.NewPaths(rootFlag)
	client, err := bridge.DialControl(paths, nil)
	if err != nil {
		return fmt.Errorf("daemonctl: connect to daemon: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeoutFlag)
	defer cancel()

	reply, err := client.Call(ctx, bridge.Message{
		Type:    bridge.TypeCommand,
		Command: toolName,
		Data:    args,
	})
	if err != nil {
		return fmt.Errorf("daemonctl: %s: %w", toolName, err)
	}

	out, err := json.MarshalIndent(reply.Result, "", "  ")
	if err != nil {
		return fmt.Errorf("daemonctl: encode reply: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
