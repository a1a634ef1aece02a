package report

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"

	"github.com/richardpark-msft/vigil/internal/models"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one verification run.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one planned step.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a step the session deviated from.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitSkipped marks a step whose outcome stayed uncertain.
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ConvertToJUnit maps a verification report onto the JUnit schema: one suite
// per run, one testcase per step. Deviations become failures and uncertain
// steps are marked skipped.
func ConvertToJUnit(r *models.Report) *JUnitTestSuites {
	suite := JUnitTestSuite{
		Name:      planName(r),
		Tests:     r.Total,
		Failures:  r.Deviated,
		Skipped:   r.Uncertain,
		Time:      r.Duration,
		Timestamp: r.GeneratedAt.Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "overall_status", Value: string(r.OverallStatus)},
			{Name: "pass_rate", Value: fmt.Sprintf("%.1f", r.PassRate)},
		},
	}
	if r.Provider != "" {
		suite.Properties = append(suite.Properties, JUnitProperty{Name: "provider", Value: r.Provider})
	}
	if r.Model != "" {
		suite.Properties = append(suite.Properties, JUnitProperty{Name: "model", Value: r.Model})
	}

	for _, v := range r.Verdicts {
		suite.TestCases = append(suite.TestCases, convertVerdict(planName(r), v))
	}

	return &JUnitTestSuites{
		Tests:      r.Total,
		Failures:   r.Deviated,
		Time:       r.Duration,
		TestSuites: []JUnitTestSuite{suite},
	}
}

func convertVerdict(classname string, v models.StepVerdict) JUnitTestCase {
	tc := JUnitTestCase{
		Name:      fmt.Sprintf("Step %d: %s", v.Step.Number, v.Step.Description),
		Classname: classname,
	}

	switch v.Status {
	case models.StepDeviation:
		tc.Failure = &JUnitFailure{
			Message: fmt.Sprintf("step %d deviated: confidence=%.2f", v.Step.Number, v.Confidence),
			Type:    "StepDeviation",
			Body:    v.EvidenceText,
		}
	case models.StepUncertain:
		tc.Skipped = &JUnitSkipped{
			Message: fmt.Sprintf("confidence=%.2f, manual review suggested", v.Confidence),
		}
	}

	return tc
}

// WriteJUnitXML writes the report as JUnit XML to the specified file path.
func WriteJUnitXML(r *models.Report, path string) error {
	suites := ConvertToJUnit(r)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	return os.WriteFile(path, output, 0644)
}
