// Package router implements component C6, the Multi-Server Router: owns
// one running language server per configured Language, picks which one
// handles a given file by extension, and fans out whole-project
// operations across all of them. It is the direct generalization of the
// original's serena/ls_manager.py LanguageServerManager -- parallel
// goroutine startup with rollback-on-error in place of
// LanguageServerManager.from_languages' parallel threads, Get in place of
// get_language_server, and StopAll/SaveAllCaches in place of
// stop_all/save_all_caches.
package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/koksalmehmet/symbex/internal/langserver"
	"github.com/koksalmehmet/symbex/internal/lsperr"
	"github.com/koksalmehmet/symbex/internal/lsphandler"
	"github.com/koksalmehmet/symbex/internal/logging"
	"github.com/koksalmehmet/symbex/internal/symcache"
)

// Entry bundles one language's running handler with its dedicated symbol
// cache -- spec.md §4.5 keys cache entries per (path, language), so each
// adapter gets its own *symcache.Cache rather than sharing one across
// languages with different symbol shapes for the same path (e.g. the Vue
// hybrid adapter and a plain TypeScript adapter both touching .ts files).
type Entry struct {
	Language Language
	Handler  *lsphandler.Handler
	Cache    *symcache.Cache
	// Hybrid is non-nil only for the Vue adapter, whose handler is backed
	// by two cooperating subprocesses (langserver.StartHybrid); callers
	// that open a .vue file also need to index it on the companion
	// TypeScript server through this handle.
	Hybrid *langserver.HybridHandle
}

// Language is re-exported so callers of this package don't also need to
// import internal/langserver for the common case.
type Language = langserver.Language

// Router owns the running language servers for one project and routes
// file-scoped operations to the right one.
type Router struct {
	rootPath string
	registry *langserver.Registry
	logger   *logging.Logger
	// cacheDir is the directory SaveAllCaches reopens each entry's cache
	// under; set by Start to whatever cacheDir its caller passed in.
	cacheDir string

	mu      sync.RWMutex
	entries map[Language]*Entry
	// order preserves the caller-supplied Languages order; the first
	// entry is the default server, matching
	// LanguageServerManager.__init__'s "first server in iteration order
	// is the default."
	order []Language
}

// New constructs an empty Router; use Start to populate it.
func New(rootPath string, registry *langserver.Registry, logger *logging.Logger) *Router {
	return &Router{
		rootPath: rootPath,
		registry: registry,
		logger:   logger,
		entries:  make(map[Language]*Entry),
	}
}

// Start spawns a language server for every language, in parallel, mirroring
// LanguageServerManager.from_languages: if any one fails to start, every
// server that did start is shut down and the first error is returned, so a
// caller never ends up with a half-initialized Router.
func Start(ctx context.Context, rootPath string, registry *langserver.Registry, languages []Language, cacheDir string, logger *logging.Logger) (*Router, error) {
	r := New(rootPath, registry, logger)
	r.cacheDir = cacheDir

	type result struct {
		lang   Language
		h      *lsphandler.Handler
		hybrid *langserver.HybridHandle
		c      *symcache.Cache
		err    error
	}
	results := make(chan result, len(languages))
	var wg sync.WaitGroup
	for _, l := range languages {
		wg.Add(1)
		go func(l Language) {
			defer wg.Done()
			h, hybrid, err := langserver.Start(ctx, registry, l, rootPath, nil, logger)
			if err != nil {
				results <- result{lang: l, err: lsperr.ServerInitFailed(string(l), err)}
				return
			}
			c, err := symcache.Open(cacheDir)
			if err != nil {
				_ = h.Shutdown(ctx)
				results <- result{lang: l, err: err}
				return
			}
			results <- result{lang: l, h: h, hybrid: hybrid, c: c}
		}(l)
	}
	wg.Wait()
	close(results)

	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		r.entries[res.lang] = &Entry{Language: res.lang, Handler: res.h, Cache: res.c, Hybrid: res.hybrid}
	}
	for _, l := range languages {
		if _, ok := r.entries[l]; ok {
			r.order = append(r.order, l)
		}
	}

	if firstErr != nil {
		r.StopAll(ctx, false)
		return nil, firstErr
	}
	return r, nil
}

// Get returns the Entry that should handle relativePath. When more than
// one server is running, the language langserver.DetectLanguage derives
// from the file's extension is used if that language has a running
// server; otherwise, or when only one server is running, the default
// server (the first in order) handles it. Adapters' ignored-dirname lists
// are not consulted here.
func (r *Router) Get(relativePath string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.entries) == 0 {
		return nil, lsperr.ServerUnavailable("router")
	}
	if len(r.entries) > 1 {
		detected := langserver.DetectLanguage(relativePath)
		if detected != "" {
			if e, ok := r.entries[detected]; ok {
				return e, nil
			}
		}
	}
	def := r.order[0]
	e, ok := r.entries[def]
	if !ok {
		return nil, lsperr.ServerUnavailable(string(def))
	}
	return e, nil
}

// ByLanguage returns the Entry explicitly serving l, for callers that
// already know which server they want rather than deriving it from a path.
func (r *Router) ByLanguage(l Language) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[l]
	if !ok {
		return nil, lsperr.MissingToolchain(string(l), nil)
	}
	return e, nil
}

// All returns every running entry, for project-wide fan-out operations
// (overview, search_pattern across the whole tree).
func (r *Router) All() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.order))
	for _, l := range r.order {
		if e, ok := r.entries[l]; ok {
			out = append(out, e)
		}
	}
	return out
}

// AddLanguageServer dynamically starts a new language server for l,
// mirroring add_language_server.
func (r *Router) AddLanguageServer(ctx context.Context, l Language, cacheDir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[l]; exists {
		return fmt.Errorf("language server for %s already present", l)
	}
	h, hybrid, err := langserver.Start(ctx, r.registry, l, r.rootPath, nil, r.logger)
	if err != nil {
		return lsperr.ServerInitFailed(string(l), err)
	}
	c, err := symcache.Open(cacheDir)
	if err != nil {
		_ = h.Shutdown(ctx)
		return err
	}
	r.entries[l] = &Entry{Language: l, Handler: h, Cache: c, Hybrid: hybrid}
	r.order = append(r.order, l)
	return nil
}

// RemoveLanguageServer stops and forgets l's server, mirroring
// remove_language_server.
func (r *Router) RemoveLanguageServer(ctx context.Context, l Language, saveCache bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[l]
	if !ok {
		return fmt.Errorf("no language server for %s present; cannot remove", l)
	}
	delete(r.entries, l)
	for i, existing := range r.order {
		if existing == l {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return r.stopEntry(ctx, e, saveCache)
}

// RestartLanguageServer forces recreation of l's server, mirroring
// restart_language_server. The caller is expected to have already observed
// the existing handler as no longer running.
func (r *Router) RestartLanguageServer(ctx context.Context, l Language, cacheDir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.entries[l]
	if !ok {
		return fmt.Errorf("no language server for %s present; cannot restart", l)
	}
	_ = r.stopEntry(ctx, old, false)
	h, hybrid, err := langserver.Start(ctx, r.registry, l, r.rootPath, nil, r.logger)
	if err != nil {
		return lsperr.ServerInitFailed(string(l), err)
	}
	r.entries[l] = &Entry{Language: l, Handler: h, Cache: old.Cache, Hybrid: hybrid}
	return nil
}

func (r *Router) stopEntry(ctx context.Context, e *Entry, saveCache bool) error {
	if !saveCache && e.Cache != nil {
		_ = e.Cache.Close()
	}
	// Hybrid.Shutdown also stops e.Handler (the Vue side), so call it
	// instead of e.Handler.Shutdown when present -- otherwise the
	// companion TypeScript subprocess would be left running.
	if e.Hybrid != nil {
		return e.Hybrid.Shutdown(ctx)
	}
	if e.Handler != nil && e.Handler.IsRunning() {
		return e.Handler.Shutdown(ctx)
	}
	return nil
}

// StopAll stops every managed server, mirroring stop_all.
func (r *Router) StopAll(ctx context.Context, saveCache bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.order {
		if e, ok := r.entries[l]; ok {
			_ = r.stopEntry(ctx, e, saveCache)
		}
	}
	r.entries = make(map[Language]*Entry)
	r.order = nil
}

// SaveAllCaches flushes every running entry's symbol cache to disk -- the
// caches are already sqlite-backed and durable per write, so this is a
// best-effort Close/reopen cycle (closing flushes sqlite's WAL, reopening
// gives subsequent calls a fresh handle) rather than an explicit flush
// call, mirroring save_all_caches' "only touch servers that are still
// running." A per-entry reopen failure clears that entry's Cache to nil
// rather than leaving a closed handle behind, and does not abort the rest
// of the sweep.
func (r *Router) SaveAllCaches(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.order {
		e, ok := r.entries[l]
		if !ok || e.Handler == nil || !e.Handler.IsRunning() || e.Cache == nil {
			continue
		}
		if err := e.Cache.Close(); err != nil {
			if r.logger != nil {
				r.logger.Warnf("save cache for %s: close: %v", l, err)
			}
			continue
		}
		reopened, err := symcache.Open(r.cacheDir)
		if err != nil {
			if r.logger != nil {
				r.logger.Warnf("save cache for %s: reopen: %v", l, err)
			}
			e.Cache = nil
			continue
		}
		e.Cache = reopened
	}
}
