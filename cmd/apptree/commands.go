package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kingrea/apptree/internal/config"
	"github.com/kingrea/apptree/internal/graph"
	"github.com/kingrea/apptree/internal/inspect"
	"github.com/kingrea/apptree/internal/project"
	"github.com/kingrea/apptree/internal/report"
	"github.com/kingrea/apptree/internal/snapshot"
	"github.com/kingrea/apptree/internal/tui"
	"github.com/kingrea/apptree/plugins"
)

func newInitCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the .apptree directory with a default config",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitDir(opts.dir); err != nil {
				return fmt.Errorf("initialize %s: %w", config.ProjectDirName, err)
			}
			cfg, err := config.NewConfig(opts.dir)
			if err != nil {
				return err
			}
			if opts.root != "" {
				if err := cfg.SetRoot(opts.root); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s (root %q)\n", cfg.TreeDir, cfg.RootID())
			return nil
		},
	}
}

func newResolveCmd(opts *globalOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the resolved tree and its orphans",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return &exitError{code: exitUsage, err: err}
			}
			p, res, err := resolveProject(opts)
			if err != nil {
				return err
			}
			defer p.Close()
			return report.Write(cmd.OutOrStdout(), res.Graph, f)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(report.FormatText), "Output format: text, json or yaml")
	return cmd
}

func newOrphansCmd(opts *globalOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "Print every extension not connected to the root",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return &exitError{code: exitUsage, err: err}
			}
			p, res, err := resolveProject(opts)
			if err != nil {
				return err
			}
			defer p.Close()
			return report.WriteOrphans(cmd.OutOrStdout(), res.Graph, f)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(report.FormatText), "Output format: text, json or yaml")
	return cmd
}

func newValidateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Load declaration files and report problems without resolving",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			seen := make(map[string]string)
			for _, path := range args {
				files, err := plugins.LoadPath(path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %v\n", err)
					continue
				}
				duplicates := 0
				for _, file := range files {
					if first, ok := seen[file.Declaration.ID]; ok {
						duplicates++
						fmt.Fprintf(out, "FAIL %s: duplicate extension id '%s' (first declared in %s)\n",
							file.Path, file.Declaration.ID, first)
						continue
					}
					seen[file.Declaration.ID] = file.Path
				}
				if duplicates > 0 {
					failed += duplicates
					continue
				}
				fmt.Fprintf(out, "ok   %s (%d declarations)\n", path, len(files))
			}
			if failed > 0 {
				return fmt.Errorf("%d problem(s) found", failed)
			}
			return nil
		},
	}
}

func newSnapshotCmd(opts *globalOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture or verify a snapshot of the resolved tree",
	}
	cmd.PersistentFlags().StringVar(&name, "name", snapshot.DefaultName, "Snapshot name inside .apptree/snapshots")

	write := &cobra.Command{
		Use:   "write",
		Short: "Capture the current tree",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, res, err := resolveProject(opts)
			if err != nil {
				return err
			}
			defer p.Close()
			snap := snapshot.Capture(res.Graph)
			path := snapshot.PathFor(p.Config().SnapshotsDir(), name)
			if err := snapshot.Write(path, snap); err != nil {
				return err
			}
			p.Logger().Infof("snapshot %s written fingerprint=%s", path, snap.Fingerprint)
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", path, snap.Fingerprint[:12])
			return nil
		},
	}
	check := &cobra.Command{
		Use:   "check",
		Short: "Compare the current tree with a captured snapshot",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, res, err := resolveProject(opts)
			if err != nil {
				return err
			}
			defer p.Close()
			path := snapshot.PathFor(p.Config().SnapshotsDir(), name)
			want, err := snapshot.Read(path)
			if err != nil {
				return err
			}
			diff, equal := snapshot.Compare(want, snapshot.Capture(res.Graph))
			if equal {
				fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s matches\n", path)
				return nil
			}
			p.Logger().Warnf("snapshot %s does not match", path)
			p.Journal().Warn("snapshot %s does not match", name)
			fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s differs (-snapshot +current):\n%s", path, diff)
			return fmt.Errorf("snapshot %s does not match the resolved tree", name)
		},
	}
	cmd.AddCommand(write, check)
	return cmd
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the resolved tree over local HTTP until interrupted",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, res, err := resolveProject(opts)
			if err != nil {
				return err
			}
			defer p.Close()

			settings := inspect.SettingsFromConfig(p.Config())
			if cmd.Flags().Changed("port") {
				settings.Port = port
			}
			srv, err := inspect.NewServer(settings, res.Graph,
				inspect.WithLogger(p.Logger()),
				inspect.WithResolver(reloader(p)))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := srv.Start(ctx); err != nil {
				if errors.Is(err, inspect.ErrDisabled) {
					return fmt.Errorf("inspection server is disabled (inspect.enabled or APPTREE_INSPECT_ENABLED)")
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s (ctrl+c to stop)\n", res.Graph.Root().ID(), srv.BaseURL())
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().IntVar(&port, "port", inspect.DefaultPort, "Port to listen on, overriding the config")
	return cmd
}

func newBrowseCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse the resolved tree in the terminal",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, res, err := resolveProject(opts)
			if err != nil {
				return err
			}
			defer p.Close()

			// tea.NewProgram creates the bubbletea application
			// tea.WithAltScreen keeps the shell scrollback intact
			program := tea.NewProgram(
				tui.NewApp(res.Graph, tui.WithJournal(p.Journal()), tui.WithReloader(reloader(p))),
				tea.WithAltScreen(),
			)
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("run browser: %w", err)
			}
			return nil
		},
	}
}

func newJournalCmd(opts *globalOptions) *cobra.Command {
	var lines int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show the most recent resolution journal entries",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if lines < 0 {
				return usageError("-n must not be negative")
			}
			p, err := openProject(opts)
			if err != nil {
				return err
			}
			defer p.Close()
			entries, total := p.Journal().Tail(lines)
			out := cmd.OutOrStdout()
			if total == 0 {
				fmt.Fprintln(out, "Journal is empty.")
				return nil
			}
			for _, line := range entries {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintf(out, "(%d of %d entries)\n", len(entries), total)
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of entries to show")
	return cmd
}

// reloader re-resolves the project for the server and the browser.
func reloader(p *project.Project) func() (*graph.Graph, error) {
	return func() (*graph.Graph, error) {
		res, err := p.Resolve()
		if err != nil {
			return nil, err
		}
		return res.Graph, nil
	}
}
