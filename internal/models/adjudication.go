package models

// Adjudication is the parsed outcome of one semantic adjudication call for a
// single step. StepNumber is only populated by batch responses, where one
// payload covers several steps.
type Adjudication struct {
	StepNumber            int        `json:"step_number,omitempty" mapstructure:"step_number"`
	Status                StepStatus `json:"status" mapstructure:"status"`
	Confidence            float64    `json:"confidence" mapstructure:"confidence"`
	Reasoning             string     `json:"reasoning" mapstructure:"reasoning"`
	ContradictionDetected bool       `json:"contradiction_detected" mapstructure:"contradiction_detected"`
	ContradictionDetails  string     `json:"contradiction_details,omitempty" mapstructure:"contradiction_details"`
}
