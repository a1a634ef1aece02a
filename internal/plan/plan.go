// Package plan loads verification plans. Native plans are YAML; planner-agent
// message logs (JSON) are converted into the same shape, one step per
// assistant planning message. A JUnit test output file can ride along as
// cross-check context for the run summary.
package plan

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/richardpark-msft/vigil/internal/models"
)

// Load reads a plan from path. Files ending in .json are treated as planner
// logs; everything else parses as a YAML plan. The returned plan is always
// validated.
func Load(path string) (*models.TestPlan, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		plan, err := ParsePlanningLog(data)
		if err != nil {
			return nil, fmt.Errorf("parsing planning log %s: %w", path, err)
		}
		if plan.Name == "" {
			plan.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		if err := plan.Validate(); err != nil {
			return nil, fmt.Errorf("planning log %s: %w", path, err)
		}
		return plan, nil
	}
	return models.LoadTestPlan(path)
}

// plannerContent is the structured payload of an assistant planning message.
type plannerContent struct {
	NextStep        string `json:"next_step"`
	NextStepSummary string `json:"next_step_summary"`
}

// plannerMessage keeps content raw: assistant messages carry an object, user
// messages carry a plain string.
type plannerMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type plannerLog struct {
	PlannerAgent []plannerMessage `json:"planner_agent"`
}

// ParsePlanningLog converts a planner-agent message log into a test plan.
// Each assistant message with a next_step becomes one step; when the next
// message is a user observation it becomes the step's expected outcome and
// flips the plan into audit mode. The caller names and validates the plan.
func ParsePlanningLog(data []byte) (*models.TestPlan, error) {
	var log plannerLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("planning log is not valid JSON: %w", err)
	}

	plan := &models.TestPlan{}
	number := 1

	messages := log.PlannerAgent
	for i, message := range messages {
		if message.Role != "assistant" || len(message.Content) == 0 {
			continue
		}

		var content plannerContent
		if err := json.Unmarshal(message.Content, &content); err != nil {
			continue
		}
		if content.NextStep == "" {
			continue
		}

		description := content.NextStepSummary
		if description == "" {
			description = content.NextStep
		}

		// The agent's own observation of the step outcome follows as a
		// user message in audit-style logs.
		var outcome string
		if i+1 < len(messages) && messages[i+1].Role == "user" {
			plan.AuditMode = true
			var text string
			if err := json.Unmarshal(messages[i+1].Content, &text); err == nil {
				outcome = text
			}
		}

		plan.Steps = append(plan.Steps, models.PlannedStep{
			Number:          number,
			Description:     description,
			Action:          content.NextStep,
			ExpectedOutcome: outcome,
		})
		number++
	}

	return plan, nil
}

// TestOutput is the parsed result of one recorded test execution, taken from
// the first test case of a JUnit XML file.
type TestOutput struct {
	TestName       string           `json:"test_name"`
	Status         models.RunStatus `json:"status"`
	Duration       float64          `json:"duration"`
	FailureMessage string           `json:"failure_message,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

type junitCase struct {
	Name    string        `xml:"name,attr"`
	Time    string        `xml:"time,attr"`
	Failure *junitFailure `xml:"failure"`
}

type junitSuite struct {
	Cases  []junitCase  `xml:"testcase"`
	Suites []junitSuite `xml:"testsuite"`
}

// junitDocument tolerates either a <testsuites> wrapper or a bare
// <testsuite> root.
type junitDocument struct {
	XMLName xml.Name
	Cases   []junitCase  `xml:"testcase"`
	Suites  []junitSuite `xml:"testsuite"`
}

// LoadTestOutput reads and parses a JUnit XML file.
func LoadTestOutput(path string) (*TestOutput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out, err := ParseTestOutput(data)
	if err != nil {
		return nil, fmt.Errorf("parsing test output %s: %w", path, err)
	}
	return out, nil
}

// ParseTestOutput extracts the first test case from a JUnit XML document.
func ParseTestOutput(data []byte) (*TestOutput, error) {
	var doc junitDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("test output is not valid XML: %w", err)
	}

	tc := firstCase(doc.Cases, doc.Suites)
	if tc == nil {
		return nil, fmt.Errorf("no testcase found in test output")
	}

	name := tc.Name
	if name == "" {
		name = "Unknown Test"
	}

	duration, err := strconv.ParseFloat(tc.Time, 64)
	if err != nil {
		duration = 0
	}

	out := &TestOutput{TestName: name, Status: models.RunPassed, Duration: duration}
	if tc.Failure != nil {
		out.Status = models.RunFailed
		out.FailureMessage = tc.Failure.Message
		if out.FailureMessage == "" {
			out.FailureMessage = strings.TrimSpace(tc.Failure.Text)
		}
	}
	return out, nil
}

func firstCase(cases []junitCase, suites []junitSuite) *junitCase {
	if len(cases) > 0 {
		return &cases[0]
	}
	for i := range suites {
		if tc := firstCase(suites[i].Cases, suites[i].Suites); tc != nil {
			return tc
		}
	}
	return nil
}
