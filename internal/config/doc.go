// Package config loads docsearch configuration with viper: built-in
// defaults, then an optional YAML/TOML/JSON file, then DOCSEARCH_*
// environment variables (dots become underscores, so search.default_alpha
// is DOCSEARCH_SEARCH_DEFAULT_ALPHA).
package config
