// Package project ties configuration, discovery and resolution together for
// a directory containing .apptree/.
package project

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kingrea/apptree/internal/config"
	"github.com/kingrea/apptree/internal/graph"
	"github.com/kingrea/apptree/internal/logbook"
	"github.com/kingrea/apptree/internal/logging"
	"github.com/kingrea/apptree/plugins"
)

// Project is an opened apptree project.
type Project struct {
	cfg     *config.Config
	logger  *logging.Logger
	journal *logbook.Logbook
	root    string
}

// Result is a resolved graph together with the files its declarations came from.
type Result struct {
	Graph *graph.Graph
	Files []plugins.DeclarationFile
}

// Source returns where the declaration with id was loaded from.
func (r *Result) Source(id string) string {
	if r == nil {
		return ""
	}
	for _, file := range r.Files {
		if file.Declaration.ID == id {
			return file.Path
		}
	}
	return ""
}

// Open loads the configuration for projectDir and opens its log and journal.
func Open(projectDir string) (*Project, error) {
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg)
	if err != nil {
		return nil, err
	}
	journal, err := logbook.New(cfg.JournalPath())
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("project: open journal: %w", err)
	}
	return New(cfg, logger, journal), nil
}

// New assembles a project from already opened parts. logger and journal may be nil.
func New(cfg *config.Config, logger *logging.Logger, journal *logbook.Logbook) *Project {
	return &Project{cfg: cfg, logger: logger, journal: journal}
}

// Config returns the project configuration.
func (p *Project) Config() *config.Config { return p.cfg }

// Logger returns the project log, which may be nil.
func (p *Project) Logger() *logging.Logger { return p.logger }

// Journal returns the resolution journal, which may be nil.
func (p *Project) Journal() *logbook.Logbook { return p.journal }

// UseRoot overrides the configured root id for this process only.
func (p *Project) UseRoot(id string) {
	p.root = strings.TrimSpace(id)
}

// RootID returns the root id resolutions will use.
func (p *Project) RootID() string {
	if p.root != "" {
		return p.root
	}
	return p.cfg.RootID()
}

// Close releases the log file.
func (p *Project) Close() error {
	if p == nil {
		return nil
	}
	return p.logger.Close()
}

// Resolve discovers every configured declaration and builds the graph.
//
// The outcome is recorded in the journal either way. Duplicate id errors
// are wrapped in a *DuplicateError naming both files.
func (p *Project) Resolve() (*Result, error) {
	rootID := p.RootID()
	files, err := plugins.Discover(p.cfg)
	if err != nil {
		p.logger.Errorf("discovery failed: %v", err)
		p.journal.Error("discover root=%s: %v", rootID, err)
		return nil, err
	}
	p.logger.Debugf("discovered %d declarations", len(files))

	g, err := graph.Resolve(rootID, plugins.Declarations(files))
	if err != nil {
		err = enrich(err, files)
		p.logger.Errorf("resolve root=%s: %v", rootID, err)
		p.journal.Error("resolve root=%s: %v", rootID, err)
		return nil, err
	}

	sum := Summarize(g)
	p.logger.Infof("resolved root=%s %s", rootID, sum)
	for _, orphan := range g.Orphans() {
		p.logger.Debugf("orphan %s from %s", orphan.ID(), orphan.Declaration().Source)
	}
	p.journal.Info("resolved root=%s nodes=%d orphans=%d", rootID, sum.Nodes, sum.Orphans)
	return &Result{Graph: g, Files: files}, nil
}

// DuplicateError adds the declaring files to a core duplicate id error.
// It unwraps to the *graph.DuplicateIDError.
type DuplicateError struct {
	Err     *graph.DuplicateIDError
	Sources []string
}

func (e *DuplicateError) Error() string {
	if len(e.Sources) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s (declared in %s)", e.Err.Error(), strings.Join(e.Sources, " and "))
}

func (e *DuplicateError) Unwrap() error {
	return e.Err
}

func enrich(err error, files []plugins.DeclarationFile) error {
	var dup *graph.DuplicateIDError
	if !errors.As(err, &dup) {
		return err
	}
	var sources []string
	for _, file := range files {
		if file.Declaration.ID != dup.ID {
			continue
		}
		sources = append(sources, file.Path)
		if len(sources) == 2 {
			break
		}
	}
	return &DuplicateError{Err: dup, Sources: sources}
}
