package validation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/richardpark-msft/vigil/schemas"
)

// defaultPrinter is used to format schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

// planSchema is the compiled JSON Schema for plan YAML files.
var planSchema *jsonschema.Schema

// timelineSchema is the compiled JSON Schema for precomputed timeline files.
var timelineSchema *jsonschema.Schema

func init() {
	planSchema = mustCompileSchema(schemas.PlanSchemaJSON, "plan.schema.json")
	timelineSchema = mustCompileSchema(schemas.TimelineSchemaJSON, "timeline.schema.json")
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// ValidatePlanFile validates a plan YAML file at the given path against the
// JSON schema. When the plan names a readable precomputed timeline file,
// that file is validated too.
func ValidatePlanFile(planPath string) (planErrs []string, timelineErrs []string, err error) {
	data, err := os.ReadFile(planPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading plan file: %w", err)
	}

	planErrs = ValidatePlanBytes(data)

	// Parse into a minimal struct to resolve the session timeline path
	var spec struct {
		Session struct {
			Timeline string `yaml:"timeline"`
		} `yaml:"session"`
	}
	if yamlErr := yaml.Unmarshal(data, &spec); yamlErr != nil {
		return planErrs, nil, nil // can't resolve the session block, but plan errors are still useful
	}
	if spec.Session.Timeline == "" || strings.HasSuffix(spec.Session.Timeline, ".gz") {
		return planErrs, nil, nil
	}

	tlData, readErr := os.ReadFile(spec.Session.Timeline)
	if readErr != nil {
		return planErrs, nil, nil // missing timeline is the pipeline's problem, not a schema error
	}
	return planErrs, ValidateTimelineBytes(tlData), nil
}

// ValidatePlanBytes validates raw plan YAML bytes against the plan schema.
func ValidatePlanBytes(data []byte) []string {
	// Parse YAML into generic any
	var yamlDoc any
	if err := yaml.Unmarshal(data, &yamlDoc); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}

	return validateAgainstSchema(planSchema, convertToJSONCompatible(yamlDoc))
}

// ValidateTimelineBytes validates raw timeline JSON bytes against the
// timeline schema.
func ValidateTimelineBytes(data []byte) []string {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return []string{fmt.Sprintf("JSON parse error: %v", err)}
	}

	return validateAgainstSchema(timelineSchema, doc)
}

func validateAgainstSchema(schema *jsonschema.Schema, instance any) []string {
	err := schema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}

// convertToJSONCompatible converts YAML-decoded values to JSON-compatible types.
// yaml.v3 decodes to map[string]any which is fine, but integers need to stay as-is.
func convertToJSONCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v2 := range val {
			result[k] = convertToJSONCompatible(v2)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v2 := range val {
			result[i] = convertToJSONCompatible(v2)
		}
		return result
	default:
		return val
	}
}
