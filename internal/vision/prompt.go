package vision

import (
	"fmt"
	"strings"

	"github.com/richardpark-msft/vigil/internal/models"
)

// ocrSummaryFrameCap bounds how many key frames contribute OCR hints to the
// prompt; ocrSummaryTextCap bounds the snippets quoted per frame.
const (
	ocrSummaryFrameCap = 10
	ocrSummaryTextCap  = 8
)

// buildTimelinePrompt assembles the single comprehensive analysis prompt:
// frame context, the planned steps, OCR hints, the negative-observation
// rules, and the required JSON contract.
func buildTimelinePrompt(keyframes []models.Frame, steps []models.PlannedStep, ocrText map[int][]string) string {
	first := keyframes[0]
	last := keyframes[len(keyframes)-1]

	var sb strings.Builder
	sb.WriteString("You are analyzing a UI test video to create a COMPREHENSIVE TIMELINE of all events.\n\n")

	sb.WriteString("**Video Information:**\n")
	sb.WriteString(fmt.Sprintf("- Frames analyzed: %d key frames\n", len(keyframes)))
	sb.WriteString(fmt.Sprintf("- Timestamps: %.1fs through %.1fs\n", first.Timestamp, last.Timestamp))
	sb.WriteString(fmt.Sprintf("- Total duration: %.1f seconds\n\n", last.Timestamp))

	sb.WriteString("**Test Steps (Expected Sequence):**\n")
	for i, step := range steps {
		sb.WriteString(fmt.Sprintf("Step %d: %s\n", i+1, step.Description))
	}
	sb.WriteString("\n")

	sb.WriteString("**OCR Text Detected:**\n")
	sb.WriteString(summarizeOCR(ocrText, keyframes))
	sb.WriteString("\n\n")

	sb.WriteString(`**Your Task:**
Analyze the frames chronologically and describe EVERYTHING you observe. Create a detailed timeline of ALL events.

For each significant event, note:
1. **Navigation & Page Loads**: URLs, page changes, redirects
2. **User Interactions**: Clicks, typing in inputs, selecting options
3. **UI State Changes**: Modals, dropdowns, filters, tooltips appearing/disappearing
4. **Content Updates**: Search results, product listings, dynamic text
5. **Visual Elements**: Buttons, inputs, navigation menus, icons visible at each stage
6. **Text Content**: Any readable text (combine with OCR data)
7. **Assertions/Validations**: Filter selections, result counts, validation messages

**CRITICAL - Negative Observations:**
When analyzing, you MUST explicitly note when UI elements are:
- MISSING (expected in test but not found in video)
- PRESENT (found as expected)
- DIFFERENT (found but in unexpected state)

For filter/option selections and assertions:
- List ALL available options you can actually see in each frame
- Explicitly state if expected options are NOT visible or NOT available
- Note checkbox/selection states (checked/unchecked, selected/unselected)
- Be ACCURATE - do NOT assume elements exist if you cannot see them
- Use EXACT phrases: "X is NOT visible", "X is NOT available", "X does NOT appear"

**MANDATORY NEGATIVE REPORTING:**
If a test step mentions an element (button, filter, option, text) but you CANNOT see it:
- You MUST explicitly state: "[Element Name] is NOT visible" or "[Element Name] is NOT available"
- Do NOT skip or ignore missing elements
- This is critical for detecting test failures

Example of GOOD analysis:
- "Neck filter section shows available options: 'Crew Neck', 'V-Neck'. IMPORTANT: 'Turtle Neck' option is NOT visible in the available filters."
- "Search results show 2 items for 'Rainbow sweater'. No filters are currently applied."

Example of BAD analysis (AVOID):
- "Turtle Neck filter is applied" (when you cannot see this option exists)
- "Filter section visible" (too vague - list actual available options)
- Omitting mention of missing elements entirely

**Output Format (JSON):**
` + "```json" + `
{
    "narrative": "Brief overall summary of what the test accomplishes",
    "key_observations": [
        "Important observation 1",
        "Important observation 2"
    ],
    "events": [
        {
            "timestamp": 0.0,
            "frame_index": 0,
            "type": "navigation",
            "description": "Detailed description of what's happening",
            "ui_elements": ["search icon", "navigation bar", "logo"],
            "visible_text": ["Wrangler", "Sign In"],
            "confidence": 0.95
        },
        {
            "timestamp": 10.5,
            "frame_index": 10,
            "type": "click",
            "description": "User clicked the search icon to activate search bar",
            "ui_elements": ["search bar expanded", "search input field", "close icon"],
            "visible_text": ["Start typing to search"],
            "confidence": 1.0
        }
    ]
}
` + "```" + `

**Event Types:**
- ` + "`navigation`" + `: Page loads, URL changes
- ` + "`click`" + `: Button/link clicks, UI interactions
- ` + "`type`" + `: Text input, form filling
- ` + "`ui_change`" + `: Modals, dropdowns, filters, visual state changes
- ` + "`assertion`" + `: Validation checks, filter states, result verification

**Important:**
- Be thorough - capture ALL observable changes
- Include timestamps from the frames
- Note UI elements visible at each stage
- Combine visual analysis with OCR text
- Provide high confidence (0.9-1.0) for clear observations
- This timeline will be used to verify all test steps, so completeness is critical

Analyze now and provide the comprehensive timeline.`)

	return sb.String()
}

// summarizeOCR condenses per-frame OCR text into prompt hint lines.
func summarizeOCR(ocrText map[int][]string, keyframes []models.Frame) string {
	if len(ocrText) == 0 {
		return "No OCR text detected"
	}

	var lines []string
	for i, frame := range keyframes {
		if i >= ocrSummaryFrameCap {
			break
		}
		texts := ocrText[frame.Index]
		if len(texts) == 0 {
			continue
		}
		if len(texts) > ocrSummaryTextCap {
			texts = texts[:ocrSummaryTextCap]
		}
		lines = append(lines, fmt.Sprintf("Frame %d (%.1fs): %s", frame.Index, frame.Timestamp, strings.Join(texts, ", ")))
	}

	if len(lines) == 0 {
		return "No significant text detected in key frames"
	}
	return strings.Join(lines, "\n")
}
