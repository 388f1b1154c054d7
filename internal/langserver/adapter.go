package langserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/koksalmehmet/symbex/internal/lsperr"
	"github.com/koksalmehmet/symbex/internal/lsphandler"
	"github.com/koksalmehmet/symbex/internal/logging"
)

// Adapter describes how to spawn and configure the language server for one
// Language, the Go-idiomatic sum-type dispatch that stands in for
// solidlsp's Language.get_ls_class() match/case. Each adapter contributes
// only the parts of lsphandler.Config that are language-specific; the
// handler owns the shared lifecycle machinery.
type Adapter interface {
	Language() Language
	// HandlerConfig fills in the command, args, and any per-language
	// extras (initialization options, readiness substring) for rootPath.
	HandlerConfig(rootPath string, logger *logging.Logger) lsphandler.Config
	// ValidateInitOptions schema-validates a caller-supplied
	// initialization_options payload before it is handed to the
	// subprocess, per SPEC_FULL.md §10.3. A nil schema means no
	// validation is performed.
	ValidateInitOptions(raw json.RawMessage) error
}

// baseAdapter implements the schema-validation plumbing shared by every
// concrete adapter; adapters embed it and only supply Language/Command/Args
// and, optionally, a schema.
type baseAdapter struct {
	language      Language
	command       string
	args          []string
	schema        *jsonschema.Schema
	readySubstring string
}

func (a baseAdapter) Language() Language { return a.language }

func (a baseAdapter) ValidateInitOptions(raw json.RawMessage) error {
	if a.schema == nil || len(raw) == 0 {
		return nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return lsperr.Protocol("unmarshal initialization_options", err)
	}
	if err := a.schema.Validate(doc); err != nil {
		return lsperr.Protocol(fmt.Sprintf("initialization_options failed schema validation for %s", a.language), err)
	}
	return nil
}

func (a baseAdapter) HandlerConfig(rootPath string, logger *logging.Logger) lsphandler.Config {
	var scoped *logging.Logger
	if logger != nil {
		scoped = logger.With(string(a.language))
	}
	return lsphandler.Config{
		Language:          string(a.language),
		Command:           a.command,
		Args:              a.args,
		RootPath:          rootPath,
		Logger:            scoped,
		ReadyLogSubstring: a.readySubstring,
	}
}

// compileSchema parses a literal JSON Schema string; adapters that embed
// one call this at package init time, so a malformed schema is a build-time
// programmer error rather than a runtime surprise.
func compileSchema(name, schemaJSON string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, mustUnmarshalAny(schemaJSON)); err != nil {
		panic(fmt.Sprintf("langserver: invalid embedded schema %s: %v", name, err))
	}
	schema, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("langserver: failed to compile schema %s: %v", name, err))
	}
	return schema
}

func mustUnmarshalAny(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		panic(fmt.Sprintf("langserver: invalid embedded schema JSON: %v", err))
	}
	return v
}

// Registry maps each Language to its Adapter. NewRegistry wires every
// built-in adapter; callers add experimental or custom ones with Register.
type Registry struct {
	adapters map[Language]Adapter
}

func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[Language]Adapter)}
	for _, a := range defaultAdapters() {
		r.Register(a)
	}
	return r
}

func (r *Registry) Register(a Adapter) { r.adapters[a.Language()] = a }

func (r *Registry) Get(l Language) (Adapter, error) {
	a, ok := r.adapters[l]
	if !ok {
		return nil, lsperr.MissingToolchain(string(l), nil)
	}
	return a, nil
}

// Start spawns and initializes the language server for l rooted at
// rootPath, using the registered Adapter's HandlerConfig, merging in any
// caller-supplied initialization options after validating them. Vue is
// the one Language backed by two cooperating subprocesses instead of
// one; for it Start spawns both via StartHybrid and returns the
// companion HybridHandle alongside the Vue-facing Handler so the caller
// can route .vue indexing through it. Every other Language returns a nil
// HybridHandle.
func Start(ctx context.Context, registry *Registry, l Language, rootPath string, initOptions json.RawMessage, logger *logging.Logger) (*lsphandler.Handler, *HybridHandle, error) {
	adapter, err := registry.Get(l)
	if err != nil {
		return nil, nil, err
	}
	if err := adapter.ValidateInitOptions(initOptions); err != nil {
		return nil, nil, err
	}
	if hybrid, ok := adapter.(*HybridVueAdapter); ok {
		h, err := StartHybrid(ctx, hybrid, rootPath, logger)
		if err != nil {
			return nil, nil, err
		}
		return h.Vue, h, nil
	}
	cfg := adapter.HandlerConfig(rootPath, logger)
	cfg.InitializationOptions = initOptions
	handler, err := lsphandler.Start(ctx, cfg)
	return handler, nil, err
}
