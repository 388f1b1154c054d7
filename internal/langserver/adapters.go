package langserver

// defaultAdapters wires one Adapter per non-experimental Language,
// including the Vue hybrid adapter (its two-subprocess nature is handled
// by Start's type switch, not by anything special here). Command names
// and arguments are the standard stdio invocation for each server (gopls,
// typescript-language-server --stdio, etc.), the same "ServerCmd"/
// "ServerArgs" shape as the teacher's LSPClientConfig in
// apps/cli/internal/analysis/lsp_client.go, generalized from a single
// hardcoded gopls call (apps/cli/internal/analysis/parser_go_lsp.go) to one
// table entry per language.
func defaultAdapters() []Adapter {
	return []Adapter{
		goAdapter(),
		pythonAdapter(),
		typeScriptAdapter(),
		NewHybridVueAdapter(),
		rustAdapter(),
		javaAdapter(),
		kotlinAdapter(),
		csharpAdapter(),
		rubyAdapter(),
		dartAdapter(),
		cppAdapter(),
		phpAdapter(),
		clojureAdapter(),
		elixirAdapter(),
		terraformAdapter(),
		swiftAdapter(),
		bashAdapter(),
		luaAdapter(),
		alAdapter(),
	}
}

// goInitOptionsSchema validates gopls's initializationOptions, restricted
// to the handful of settings this service actually cares about exposing
// (build tags and whether to enable the (slow) static-analysis-only
// diagnostics the symbol service never consumes anyway).
var goInitOptionsSchema = compileSchema("gopls-init-options", `{
	"type": "object",
	"properties": {
		"buildFlags": {"type": "array", "items": {"type": "string"}},
		"env": {"type": "object"},
		"directoryFilters": {"type": "array", "items": {"type": "string"}}
	},
	"additionalProperties": true
}`)

func goAdapter() Adapter {
	return baseAdapter{
		language: Go,
		command:  "gopls",
		args:     []string{"serve"},
		schema:   goInitOptionsSchema,
		// gopls logs this once its initial workspace package load settles;
		// waiting for it avoids racing the first documentSymbol call
		// against an index that is still being built (SPEC_FULL.md §12).
		readySubstring: "Finished loading packages.",
	}
}

var pyrightInitOptionsSchema = compileSchema("pyright-init-options", `{
	"type": "object",
	"properties": {
		"python": {"type": "object"}
	},
	"additionalProperties": true
}`)

func pythonAdapter() Adapter {
	return baseAdapter{
		language: Python,
		command:  "pyright-langserver",
		args:     []string{"--stdio"},
		schema:   pyrightInitOptionsSchema,
	}
}

func typeScriptAdapter() Adapter {
	return baseAdapter{
		language: TypeScript,
		command:  "typescript-language-server",
		args:     []string{"--stdio"},
	}
}

func rustAdapter() Adapter {
	return baseAdapter{
		language: Rust,
		command:  "rust-analyzer",
	}
}

func javaAdapter() Adapter {
	return baseAdapter{
		language: Java,
		command:  "jdtls",
	}
}

func kotlinAdapter() Adapter {
	return baseAdapter{
		language: Kotlin,
		command:  "kotlin-language-server",
	}
}

func csharpAdapter() Adapter {
	return baseAdapter{
		language: CSharp,
		command:  "csharp-ls",
	}
}

func rubyAdapter() Adapter {
	return baseAdapter{
		language: Ruby,
		command:  "ruby-lsp",
	}
}

func dartAdapter() Adapter {
	return baseAdapter{
		language: Dart,
		command:  "dart",
		args:     []string{"language-server", "--client-id=symbex"},
	}
}

func cppAdapter() Adapter {
	return baseAdapter{
		language: CPP,
		command:  "clangd",
	}
}

func phpAdapter() Adapter {
	return baseAdapter{
		language: PHP,
		command:  "intelephense",
		args:     []string{"--stdio"},
	}
}

func clojureAdapter() Adapter {
	return baseAdapter{
		language: Clojure,
		command:  "clojure-lsp",
	}
}

func elixirAdapter() Adapter {
	return baseAdapter{
		language: Elixir,
		command:  "elixir-ls",
	}
}

func terraformAdapter() Adapter {
	return baseAdapter{
		language: Terraform,
		command:  "terraform-ls",
		args:     []string{"serve"},
	}
}

func swiftAdapter() Adapter {
	return baseAdapter{
		language: Swift,
		command:  "sourcekit-lsp",
	}
}

func bashAdapter() Adapter {
	return baseAdapter{
		language: Bash,
		command:  "bash-language-server",
		args:     []string{"start"},
	}
}

func luaAdapter() Adapter {
	return baseAdapter{
		language: Lua,
		command:  "lua-language-server",
	}
}

func alAdapter() Adapter {
	return baseAdapter{
		language: AL,
		command:  "al-language-server",
	}
}
