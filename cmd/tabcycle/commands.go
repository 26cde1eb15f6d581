package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dgnsrekt/tabcycle/internal/config"
	"github.com/dgnsrekt/tabcycle/internal/controller"
	"github.com/dgnsrekt/tabcycle/internal/cycle"
	"github.com/dgnsrekt/tabcycle/internal/recency"
	"github.com/dgnsrekt/tabcycle/internal/types"
	"github.com/spf13/cobra"
)

type cliState struct {
	addr    string
	timeout time.Duration
}

func (s *cliState) client() *apiClient {
	return newAPIClient(s.addr, s.timeout)
}

func newRootCmd() *cobra.Command {
	cfg := config.LoadCLI()
	state := &cliState{}

	root := &cobra.Command{
		Use:   "tabcycle",
		Short: "Cycle through and revisit recently activated browser tabs.",
		Long: `tabcycle talks to a running tabcycled. Bind "tabcycle cycle" to a ` +
			`hotkey to step through your most recently used tabs.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&state.addr, "addr", cfg.Addr, "tabcycled base URL (TABCYCLE_ADDR)")
	root.PersistentFlags().DurationVar(&state.timeout, "timeout", time.Duration(cfg.TimeoutMS)*time.Millisecond, "request timeout")

	root.AddCommand(
		newCycleCmd(state),
		newListCmd(state),
		newOpenCmd(state),
		newClearCmd(state),
		newSettingsCmd(state),
	)
	return root
}

func newCycleCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Activate the next tab in the cycle window.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var res cycle.Result
			if err := state.client().do(cmd.Context(), "POST", "/api/v1/commands/"+types.CycleCommand, nil, &res); err != nil {
				return err
			}
			switch res.Outcome {
			case cycle.OutcomeActivated:
				fmt.Fprintf(cmd.OutOrStdout(), "activated tab %d (next index %d)\n", res.TabID, res.NextIndex)
			case cycle.OutcomePruned:
				fmt.Fprintf(cmd.OutOrStdout(), "tab %d no longer exists, removed from history\n", res.TabID)
			case cycle.OutcomeEmpty:
				fmt.Fprintln(cmd.OutOrStdout(), "no recent tab activity")
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", res.Outcome)
			}
			return nil
		},
	}
}

func newListCmd(state *cliState) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recently activated tabs, most recent first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var body struct {
				Tabs []controller.TabView `json:"tabs"`
			}
			if err := state.client().do(cmd.Context(), "GET", "/api/v1/tabs", nil, &body); err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(body.Tabs)
			}
			if len(body.Tabs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recent tab activity.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSEEN\tURL")
			for _, t := range body.Tabs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", t.ID, t.Title, t.Ago, t.URL)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newOpenCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "open <tab-id>",
		Short: "Activate a tracked tab and focus its window.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid tab id %q", args[0])
			}
			return state.client().do(cmd.Context(), "POST", fmt.Sprintf("/api/v1/tabs/%d/activate", id), nil, nil)
		},
	}
}

func newClearCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the tab history.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := state.client().do(cmd.Context(), "DELETE", "/api/v1/tabs", nil, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
			return nil
		},
	}
}

func newSettingsCmd(state *cliState) *cobra.Command {
	var maxTabs, cycleLimit int
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change tracking and cycling settings.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var s recency.Settings
			c := state.client()

			upd := map[string]int{}
			if cmd.Flags().Changed("max-tabs") {
				upd["maxTrackedTabs"] = maxTabs
			}
			if cmd.Flags().Changed("cycle-limit") {
				upd["tabCycleLimit"] = cycleLimit
			}

			var err error
			if len(upd) > 0 {
				err = c.do(cmd.Context(), "PUT", "/api/v1/settings", upd, &s)
			} else {
				err = c.do(cmd.Context(), "GET", "/api/v1/settings", nil, &s)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "max tracked tabs: %d\ntab cycle limit:  %d\n", s.MaxTrackedTabs, s.TabCycleLimit)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxTabs, "max-tabs", recency.DefaultMaxTrackedTabs, "tabs kept in history (5-50)")
	cmd.Flags().IntVar(&cycleLimit, "cycle-limit", recency.DefaultTabCycleLimit, "size of the cycle window (>0)")
	return cmd
}
