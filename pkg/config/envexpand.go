package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv substitutes {{.VAR}} references in raw YAML with the value
// of the named environment variable. Template syntax is used instead of
// $-style expansion so literal dollar signs survive untouched; config
// values routinely carry regex anchors, passwords, and shell fragments
// where $ is meaningful.
//
// An unset variable renders as the empty string; validation rejects
// required fields that end up empty. Input that fails to parse or
// execute as a template passes through unchanged, so YAML with stray
// braces never breaks.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok && key != "" {
			vars[key] = value
		}
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, vars); err != nil {
		return data
	}
	return out.Bytes()
}
