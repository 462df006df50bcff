// File: api/schemas/plan.go
package schemas

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Tool identifies one of the five primitive browser operations a step may
// perform.
type Tool string

const (
	ToolNavigate    Tool = "navigate"
	ToolClick       Tool = "click"
	ToolType        Tool = "type"
	ToolWaitFor     Tool = "wait_for"
	ToolExtractText Tool = "extract_text"
)

// ElementState is the condition a wait_for step blocks on.
type ElementState string

const (
	StateVisible  ElementState = "visible"
	StateHidden   ElementState = "hidden"
	StateAttached ElementState = "attached"
	StateDetached ElementState = "detached"
)

// Plan is the declarative document the interpreter consumes: a goal, an
// ordered list of raw steps, and an optional final report template consumed
// by the reporting layer.
type Plan struct {
	Goal        string            `json:"goal"`
	Steps       []RawStep         `json:"steps"`
	FinalReport map[string]string `json:"final_report,omitempty"`
}

// RawStep is the wire representation of a single step. Args is kept loose
// here; per-tool shape checks happen lazily in ParseStep, at execution time.
// Unknown extra keys in Args are tolerated and ignored.
type RawStep struct {
	Tool Tool           `json:"tool"`
	Args map[string]any `json:"args"`
	ID   string         `json:"id,omitempty"`
}

// DecodePlan parses a plan document from raw JSON.
func DecodePlan(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("malformed plan document: %w", err)
	}
	return &p, nil
}

// DecodePlanReader parses a plan document from a stream (HTTP body, file).
func DecodePlanReader(r io.Reader) (*Plan, error) {
	var p Plan
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("malformed plan document: %w", err)
	}
	return &p, nil
}

// Step is a validated step, ready for dispatch. Exactly one of the variant
// pointers is set, matching Tool.
type Step struct {
	Tool  Tool
	ID    string
	Index int

	Navigate *NavigateArgs
	Click    *ClickArgs
	Type     *TypeArgs
	WaitFor  *WaitForArgs
	Extract  *ExtractTextArgs
}

// NavigateArgs carries the arguments for a navigate step.
type NavigateArgs struct {
	URL string
}

// ClickArgs carries the arguments for a click step.
type ClickArgs struct {
	Selector string
}

// TypeArgs carries the arguments for a type step. Clear empties the target
// field before input; it defaults to false when unset.
type TypeArgs struct {
	Selector string
	Text     string
	Clear    bool
}

// WaitForArgs carries the arguments for a wait_for step.
type WaitForArgs struct {
	Selector string
	State    ElementState
}

// ExtractTextArgs carries the arguments for an extract_text step. The
// capture id lives on the Step, not here; a step without an id is executed
// but its output is discarded.
type ExtractTextArgs struct {
	Selector string
}

// ParseStep validates a raw step and returns its typed form. Validation
// order: the tool must be recognized, then each required argument must be
// present with the correct primitive type. Failures come back as a
// *ValidationError carrying the step index; they never reach the driver.
func ParseStep(raw RawStep, index int) (*Step, error) {
	step := &Step{Tool: raw.Tool, ID: raw.ID, Index: index}

	switch raw.Tool {
	case ToolNavigate:
		url, err := requireString(raw.Args, "url", index)
		if err != nil {
			return nil, err
		}
		step.Navigate = &NavigateArgs{URL: url}

	case ToolClick:
		sel, err := requireString(raw.Args, "selector", index)
		if err != nil {
			return nil, err
		}
		step.Click = &ClickArgs{Selector: sel}

	case ToolType:
		sel, err := requireString(raw.Args, "selector", index)
		if err != nil {
			return nil, err
		}
		text, ok := raw.Args["text"]
		if !ok {
			return nil, &ValidationError{StepIndex: index, Detail: `missing required arg "text"`}
		}
		textStr, ok := text.(string)
		if !ok {
			return nil, &ValidationError{StepIndex: index, Detail: `arg "text" must be a string`}
		}
		clearField := false
		if rawClear, ok := raw.Args["clear"]; ok {
			clearBool, ok := rawClear.(bool)
			if !ok {
				return nil, &ValidationError{StepIndex: index, Detail: `arg "clear" must be a boolean`}
			}
			clearField = clearBool
		}
		step.Type = &TypeArgs{Selector: sel, Text: textStr, Clear: clearField}

	case ToolWaitFor:
		sel, err := requireString(raw.Args, "selector", index)
		if err != nil {
			return nil, err
		}
		stateStr, err := requireString(raw.Args, "state", index)
		if err != nil {
			return nil, err
		}
		state := ElementState(stateStr)
		switch state {
		case StateVisible, StateHidden, StateAttached, StateDetached:
		default:
			return nil, &ValidationError{
				StepIndex: index,
				Detail:    fmt.Sprintf("arg \"state\" must be one of visible, hidden, attached, detached; got %q", stateStr),
			}
		}
		step.WaitFor = &WaitForArgs{Selector: sel, State: state}

	case ToolExtractText:
		sel, err := requireString(raw.Args, "selector", index)
		if err != nil {
			return nil, err
		}
		step.Extract = &ExtractTextArgs{Selector: sel}

	default:
		return nil, &ValidationError{
			StepIndex: index,
			Detail:    fmt.Sprintf("unrecognized tool %q", string(raw.Tool)),
		}
	}

	return step, nil
}

// requireString fetches a mandatory non-empty string argument.
func requireString(args map[string]any, key string, index int) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", &ValidationError{StepIndex: index, Detail: fmt.Sprintf("missing required arg %q", key)}
	}
	s, ok := v.(string)
	if !ok {
		return "", &ValidationError{StepIndex: index, Detail: fmt.Sprintf("arg %q must be a string", key)}
	}
	if s == "" {
		return "", &ValidationError{StepIndex: index, Detail: fmt.Sprintf("arg %q must not be empty", key)}
	}
	return s, nil
}
