// Package schemas embeds the JSON Schemas used to validate vigil input
// files before they reach the pipeline.
package schemas

import _ "embed"

// PlanSchemaJSON is the JSON Schema for test plan YAML files.
//
//go:embed plan.schema.json
var PlanSchemaJSON string

// TimelineSchemaJSON is the JSON Schema for precomputed timeline JSON files.
//
//go:embed timeline.schema.json
var TimelineSchemaJSON string
