// Package schemas holds the JSON Schemas that LLM responses are validated against.
package schemas

import "embed"

// Files contains every *.schema.json in this directory.
//
//go:embed *.schema.json
var Files embed.FS
