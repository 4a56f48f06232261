package testutil

import (
	"strings"
	"time"
)

// docData holds the fields a test usually cares about. Anything else goes
// through Set and Remove, which edit the encoded tree directly.
type docData struct {
	name        string
	description string
	author      string
	version     string
	provider    string
	model       string
	datasources int
	created     *time.Time
	modified    *time.Time
	sets        []pathValue
	removes     []string
}

type pathValue struct {
	path  []string
	value any
}

// defaultDoc returns a docData that validates as-is.
func defaultDoc(name string) docData {
	return docData{
		name:        name,
		description: "Configuration " + name,
		author:      "tester@example.com",
		version:     "1.0.0",
		provider:    "openai",
		model:       "gpt-4",
		datasources: 1,
	}
}

// DocOption configures a document during builder setup.
type DocOption func(*docData)

// Description sets metadata.description.
func Description(d string) DocOption {
	return func(doc *docData) { doc.description = d }
}

// Author sets metadata.author.
func Author(a string) DocOption {
	return func(doc *docData) { doc.author = a }
}

// Version sets the top-level version.
func Version(v string) DocOption {
	return func(doc *docData) { doc.version = v }
}

// Bedrock configures anthropic_bedrock credentials instead of openai.
func Bedrock() DocOption {
	return func(doc *docData) { doc.provider = "anthropic_bedrock" }
}

// BothProviders configures both providers, which the schema rejects.
func BothProviders() DocOption {
	return func(doc *docData) { doc.provider = "both" }
}

// Model sets llm_parameters.model.
func Model(m string) DocOption {
	return func(doc *docData) { doc.model = m }
}

// Datasources sets how many datasources data_context lists.
func Datasources(n int) DocOption {
	return func(doc *docData) { doc.datasources = n }
}

// Created sets metadata.created.
func Created(t time.Time) DocOption {
	return func(doc *docData) { doc.created = &t }
}

// Modified sets metadata.modified.
func Modified(t time.Time) DocOption {
	return func(doc *docData) { doc.modified = &t }
}

// Set writes value at a dotted path ("llm_parameters.max_tokens"),
// creating intermediate objects as needed.
func Set(path string, value any) DocOption {
	return func(doc *docData) {
		doc.sets = append(doc.sets, pathValue{path: strings.Split(path, "."), value: value})
	}
}

// Remove deletes the key at a dotted path.
func Remove(path string) DocOption {
	return func(doc *docData) { doc.removes = append(doc.removes, path) }
}
