package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/koksalmehmet/symbex/internal/filebuf"
	"github.com/koksalmehmet/symbex/internal/ignorespec"
	"github.com/koksalmehmet/symbex/internal/langserver"
	"github.com/koksalmehmet/symbex/internal/logging"
	"github.com/koksalmehmet/symbex/internal/projectconfig"
	"github.com/koksalmehmet/symbex/internal/router"
	"github.com/koksalmehmet/symbex/internal/symbolsvc"
)

// project bundles one activated Symbol Service together with the router
// that must be shut down when the command is done, mirroring how
// cmdServe/cmdExplore in the teacher's cli package hold onto a butler
// handle for the lifetime of one command invocation.
type project struct {
	svc    *symbolsvc.Service
	router *router.Router
}

// activate wires ProjectConfig, IgnoreSpec, the Router and the Symbol
// Service together for one project root, the startup sequence spec.md §6
// describes for "activating a project": validate the config, merge in
// .gitignore when requested, start one language server per requested
// language, and hand the result to the Symbol Service facade.
func activate(ctx context.Context, root string, languages []string, readOnly, honorGitignore bool) (*project, error) {
	abs, err := absPath(root)
	if err != nil {
		return nil, err
	}

	langs := make([]langserver.Language, 0, len(languages))
	for _, l := range languages {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		langs = append(langs, langserver.Language(l))
	}
	if len(langs) == 0 {
		detected, err := detectProjectLanguages(abs)
		if err != nil {
			return nil, err
		}
		langs = detected
	}

	cfg := &projectconfig.Config{
		ProjectRoot:    abs,
		Languages:      langs,
		ReadOnly:       readOnly,
		HonorGitignore: honorGitignore,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	patterns := append([]string{}, cfg.IgnoredPaths...)
	if cfg.HonorGitignore {
		gi, err := ignorespec.LoadGitignore(abs)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, gi...)
	}
	spec := ignorespec.New(patterns)

	logger := logging.New(os.Stderr, "symbex", logging.LevelWarn)
	registry := langserver.NewRegistry()
	rtr, err := router.Start(ctx, abs, registry, cfg.Languages, abs, logger)
	if err != nil {
		return nil, fmt.Errorf("activate project: %w", err)
	}

	buffers := filebuf.New()
	svc := symbolsvc.New(cfg, spec, rtr, buffers)
	return &project{svc: svc, router: rtr}, nil
}

func (p *project) Close(ctx context.Context) {
	p.router.SaveAllCaches(ctx)
	p.router.StopAll(ctx, false)
}

func absPath(root string) (string, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve project root %q: %w", root, err)
	}
	return abs, nil
}

// detectProjectLanguages falls back to every language with at least one
// matching source file under root, when the caller doesn't name one
// explicitly -- a manual-testing convenience the agent-facing activation
// path (outside this harness) would not need, since its caller always
// supplies ProjectConfig.Languages directly.
func detectProjectLanguages(root string) ([]langserver.Language, error) {
	found := make(map[langserver.Language]bool)
	if _, err := os.ReadDir(root); err != nil {
		return nil, fmt.Errorf("read project root: %w", err)
	}
	var walk func(dir string)
	walk = func(dir string) {
		ents, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range ents {
			name := e.Name()
			if e.IsDir() {
				skip := false
				for _, l := range langserver.IterAll(false) {
					if l.IsIgnoredDirname(name) {
						skip = true
						break
					}
				}
				if skip {
					continue
				}
				walk(filepath.Join(dir, name))
				continue
			}
			for _, l := range langserver.IterAll(false) {
				if l.MatchesSource(name) {
					found[l] = true
				}
			}
		}
	}
	walk(root)
	if len(found) == 0 {
		return nil, fmt.Errorf("no recognized source files under %s; pass --languages explicitly", root)
	}
	out := make([]langserver.Language, 0, len(found))
	for _, l := range langserver.IterAll(false) {
		if found[l] {
			out = append(out, l)
		}
	}
	return out, nil
}
