// cmd/apptree/main.go
//
// This is the entry point for the apptree CLI.
// Every command works on one project directory (--dir, default cwd):
//
// 1. Load .apptree/config.yaml and discover extension declarations
// 2. Resolve them into a tree rooted at the configured root id
// 3. Print, snapshot, serve or browse the result
//
// Exit codes: 0 success, 1 failure, 2 usage error.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/apptree/internal/project"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// exitError carries a specific exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(format string, args ...any) error {
	return &exitError{code: exitUsage, err: fmt.Errorf(format, args...)}
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	dir  string
	root string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(args []string, out, errOut io.Writer) int {
	root := newRootCmd(out, errOut)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(errOut, "Error: %v\n", err)
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	// cobra reports unknown subcommands as plain errors.
	if strings.HasPrefix(err.Error(), "unknown command") {
		return exitUsage
	}
	return exitFailure
}

// usageArgs marks positional argument errors as usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &exitError{code: exitUsage, err: err}
		}
		return nil
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "apptree",
		Short: "Resolve extension declarations into an application tree",
		Long: `apptree loads extension declarations (YAML, HCL or Go) from a project's
.apptree directory, attaches each extension to the input slot it names and
reports the resulting tree together with any extensions that never reach the root.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &exitError{code: exitUsage, err: err}
	})
	root.PersistentFlags().StringVar(&opts.dir, "dir", ".", "Project directory containing .apptree")
	root.PersistentFlags().StringVar(&opts.root, "root", "", "Override the configured root extension id")

	root.AddCommand(
		newInitCmd(opts),
		newResolveCmd(opts),
		newOrphansCmd(opts),
		newValidateCmd(opts),
		newSnapshotCmd(opts),
		newServeCmd(opts),
		newBrowseCmd(opts),
		newJournalCmd(opts),
	)
	return root
}

// openProject opens the project named by --dir and applies --root.
func openProject(opts *globalOptions) (*project.Project, error) {
	p, err := project.Open(opts.dir)
	if err != nil {
		return nil, err
	}
	if root := strings.TrimSpace(opts.root); root != "" {
		p.UseRoot(root)
	}
	return p, nil
}

// resolveProject opens the project and resolves it in one step.
func resolveProject(opts *globalOptions) (*project.Project, *project.Result, error) {
	p, err := openProject(opts)
	if err != nil {
		return nil, nil, err
	}
	res, err := p.Resolve()
	if err != nil {
		p.Close()
		return nil, nil, err
	}
	return p, res, nil
}
