// Package metadata provides types and helpers for generating a JSON
// manifest of the CLI command tree, consumed by docs tooling and shell
// completion generators.
package metadata

// CLIManifest represents the complete command metadata for the CLI.
type CLIManifest struct {
	SchemaVersion string    `json:"schemaVersion"`
	Name          string    `json:"name"`
	Commands      []Command `json:"commands"`
}

// Command represents a command or subcommand in the CLI's command tree.
type Command struct {
	Name        []string         `json:"name"`
	Short       string           `json:"short"`
	Long        string           `json:"long,omitempty"`
	Usage       string           `json:"usage,omitempty"`
	Examples    []CommandExample `json:"examples,omitempty"`
	Flags       []Flag           `json:"flags,omitempty"`
	Subcommands []Command        `json:"subcommands,omitempty"`
	Hidden      bool             `json:"hidden,omitempty"`
	Aliases     []string         `json:"aliases,omitempty"`
	Deprecated  string           `json:"deprecated,omitempty"`
}

// CommandExample represents an example usage of a command.
type CommandExample struct {
	Description string `json:"description"`
	Command     string `json:"command"`
}

// Flag represents a command-line flag/option.
type Flag struct {
	Name        string      `json:"name"`
	Shorthand   string      `json:"shorthand,omitempty"`
	Description string      `json:"description"`
	Type        string      `json:"type"`
	Default     interface{} `json:"default,omitempty"`
	Hidden      bool        `json:"hidden,omitempty"`
	Deprecated  string      `json:"deprecated,omitempty"`
}
