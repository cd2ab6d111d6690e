package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Params is the typed parameter set of one node type. Each node type has
// exactly one variant.
type Params interface {
	// Kind reports the node type the parameters belong to.
	Kind() NodeType

	// Validate checks the parameters after defaults have been applied.
	Validate() error
}

// decodeParams strictly decodes raw into the variant for t and applies defaults.
func decodeParams(t NodeType, raw json.RawMessage) (Params, error) {
	var p Params
	switch t {
	case NodeEntry:
		p = &EntryParams{}
	case NodeGenerator:
		p = &GeneratorParams{}
	case NodeCounter:
		p = &CounterParams{}
	case NodeSwitch:
		p = &SwitchParams{}
	case NodeJoin:
		p = &JoinParams{}
	default:
		return nil, &ValidationError{Field: "type", Message: fmt.Sprintf("unknown node type %q", t)}
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := strictUnmarshal(trimmed, p); err != nil {
			return nil, &ValidationError{Field: "params", Message: err.Error()}
		}
	}
	switch v := p.(type) {
	case *GeneratorParams:
		*v = v.Normalized()
	case *SwitchParams:
		*v = v.Normalized()
	}
	return p, nil
}

// EntryParams configures an entry node. Entry nodes take no parameters.
type EntryParams struct{}

// Kind implements Params.
func (*EntryParams) Kind() NodeType { return NodeEntry }

// Validate implements Params.
func (*EntryParams) Validate() error { return nil }

// JoinParams configures a join node. The required inputs come from the
// node's declared input ports, or from its incoming edges when none are declared.
type JoinParams struct{}

// Kind implements Params.
func (*JoinParams) Kind() NodeType { return NodeJoin }

// Validate implements Params.
func (*JoinParams) Validate() error { return nil }

// Rhythm grids a generator may use, mapped to steps per bar.
var rhythmGrids = map[string]int{
	"1/4":  4,
	"1/8":  8,
	"1/12": 12,
	"1/16": 16,
	"1/24": 24,
}

// StepsPerBar returns the number of grid steps in one 4-beat bar, and false
// for an unknown grid.
func StepsPerBar(grid string) (int, bool) {
	n, ok := rhythmGrids[grid]
	return n, ok
}

// GeneratorParams configures a generator ("thought") node. The scheduler only
// reads DurationBars; the remaining fields are passed through to the
// BarCompiler.
type GeneratorParams struct {
	// DurationBars is how many consecutive bars one firing spans (default 1).
	DurationBars int `json:"durationBars,omitempty"`

	// RhythmGrid is one of 1/4, 1/8, 1/12, 1/16 or 1/24 (default 1/12).
	RhythmGrid string `json:"rhythmGrid,omitempty"`

	// Pattern is an optional rhythm string: '.' rest, '0'-'9' hit intensity,
	// '-' sustain. Spaces and '|' are ignored.
	Pattern string `json:"pattern,omitempty"`

	// PatternType selects the arpeggio order (default arp-3-up).
	PatternType string `json:"patternType,omitempty"`

	ChordRoot    string `json:"chordRoot,omitempty"`
	ChordQuality string `json:"chordQuality,omitempty"`
	ChordNotes   string `json:"chordNotes,omitempty"`

	// RegisterMin and RegisterMax bound the pitches by octave folding
	// (defaults 48 and 84).
	RegisterMin int `json:"registerMin,omitempty"`
	RegisterMax int `json:"registerMax,omitempty"`

	Syncopation     string  `json:"syncopation,omitempty"`
	TimingWarp      string  `json:"timingWarp,omitempty"`
	TimingIntensity float64 `json:"timingIntensity,omitempty"`

	Lane             string `json:"lane,omitempty"`
	InstrumentPreset string `json:"instrumentPreset,omitempty"`

	// Poly is "mono" to stop each event before the next one starts.
	Poly string `json:"poly,omitempty"`
}

// Kind implements Params.
func (*GeneratorParams) Kind() NodeType { return NodeGenerator }

// Normalized returns a copy with defaults filled in.
func (p GeneratorParams) Normalized() GeneratorParams {
	if p.DurationBars < 1 {
		p.DurationBars = 1
	}
	if p.RhythmGrid == "" {
		p.RhythmGrid = "1/12"
	}
	if p.PatternType == "" {
		p.PatternType = "arp-3-up"
	}
	if p.RegisterMin == 0 {
		p.RegisterMin = 48
	}
	if p.RegisterMax == 0 {
		p.RegisterMax = 84
	}
	if p.Syncopation == "" {
		p.Syncopation = "none"
	}
	if p.TimingWarp == "" {
		p.TimingWarp = "none"
	}
	if p.Lane == "" {
		p.Lane = "note"
	}
	return p
}

// Validate implements Params.
func (p *GeneratorParams) Validate() error {
	n := p.Normalized()
	p = &n
	if _, ok := StepsPerBar(p.RhythmGrid); !ok {
		return &ValidationError{Field: "rhythmGrid", Message: fmt.Sprintf("unsupported grid %q", p.RhythmGrid)}
	}
	switch p.PatternType {
	case "arp-3-up", "arp-3-down", "arp-3-skip", "block":
	default:
		return &ValidationError{Field: "patternType", Message: fmt.Sprintf("unsupported pattern type %q", p.PatternType)}
	}
	switch p.Syncopation {
	case "none", "offbeat", "anticipation":
	default:
		return &ValidationError{Field: "syncopation", Message: fmt.Sprintf("unsupported syncopation %q", p.Syncopation)}
	}
	switch p.TimingWarp {
	case "none", "swing", "shuffle":
	default:
		return &ValidationError{Field: "timingWarp", Message: fmt.Sprintf("unsupported timing warp %q", p.TimingWarp)}
	}
	if p.TimingIntensity < 0 || p.TimingIntensity > 1 {
		return &ValidationError{Field: "timingIntensity", Message: "must be within [0, 1]"}
	}
	if p.RegisterMin > p.RegisterMax {
		return &ValidationError{Field: "registerMin", Message: fmt.Sprintf("%d is above registerMax %d", p.RegisterMin, p.RegisterMax)}
	}
	switch p.Poly {
	case "", "mono", "poly":
	default:
		return &ValidationError{Field: "poly", Message: fmt.Sprintf("unsupported poly mode %q", p.Poly)}
	}
	return nil
}

// CounterParams configures a counter node.
type CounterParams struct {
	// Start is the value the first increment is applied to.
	Start int `json:"start,omitempty"`

	// Step is added on every firing (default 1).
	Step *int `json:"step,omitempty"`

	// ResetOnPlay drops the stored value on a fresh run (default true).
	ResetOnPlay *bool `json:"resetOnPlay,omitempty"`
}

// Kind implements Params.
func (*CounterParams) Kind() NodeType { return NodeCounter }

// Validate implements Params.
func (*CounterParams) Validate() error { return nil }

// StepValue returns Step or its default.
func (p CounterParams) StepValue() int {
	if p.Step == nil {
		return 1
	}
	return *p.Step
}

// ResetsOnPlay returns ResetOnPlay or its default.
func (p CounterParams) ResetsOnPlay() bool {
	if p.ResetOnPlay == nil {
		return true
	}
	return *p.ResetOnPlay
}

// Switch evaluation modes.
const (
	SwitchFirst = "first"
	SwitchAll   = "all"
)

// SwitchParams configures a switch node.
type SwitchParams struct {
	// Mode is "first" (default) or "all".
	Mode string `json:"mode,omitempty"`

	// DefaultBranch is the output port used when no branch matches
	// (default "default").
	DefaultBranch string `json:"defaultBranch,omitempty"`

	// ManualSelection is compared against manual branch conditions.
	ManualSelection string `json:"manualSelection,omitempty"`

	// Branches are evaluated in order. A branch's edges are the outgoing
	// edges whose source port id equals the branch id.
	Branches []Branch `json:"branches,omitempty"`
}

// Branch is one routing option of a switch.
type Branch struct {
	ID        string    `json:"id"`
	Condition Condition `json:"condition"`
}

// UnmarshalJSON applies the default (always true) condition when absent.
func (b *Branch) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        string          `json:"id"`
		Condition json.RawMessage `json:"condition"`
	}
	if err := strictUnmarshal(data, &raw); err != nil {
		return &ValidationError{Field: "branches", Message: err.Error()}
	}
	b.ID = raw.ID
	b.Condition = Condition{Type: ConditionAlways}
	trimmed := bytes.TrimSpace(raw.Condition)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &b.Condition); err != nil {
			return err
		}
	}
	return nil
}

// Kind implements Params.
func (*SwitchParams) Kind() NodeType { return NodeSwitch }

// Normalized returns a copy with defaults filled in.
func (p SwitchParams) Normalized() SwitchParams {
	if p.Mode == "" {
		p.Mode = SwitchFirst
	}
	if p.DefaultBranch == "" {
		p.DefaultBranch = "default"
	}
	p.Branches = append([]Branch(nil), p.Branches...)
	for i := range p.Branches {
		if p.Branches[i].Condition.Type == "" {
			p.Branches[i].Condition = Condition{Type: ConditionAlways}
		}
		if p.Branches[i].Condition.Op == "" {
			p.Branches[i].Condition.Op = ">="
		}
	}
	return p
}

// Validate implements Params.
func (p *SwitchParams) Validate() error {
	n := p.Normalized()
	p = &n
	if p.Mode != SwitchFirst && p.Mode != SwitchAll {
		return &ValidationError{Field: "mode", Message: fmt.Sprintf("unsupported mode %q", p.Mode)}
	}
	seen := make(map[string]bool, len(p.Branches))
	for i, b := range p.Branches {
		if b.ID == "" {
			return &ValidationError{Field: fmt.Sprintf("branches[%d].id", i), Message: "branch id is required"}
		}
		if seen[b.ID] {
			return &ValidationError{Field: fmt.Sprintf("branches[%d].id", i), Message: fmt.Sprintf("duplicate branch id %q", b.ID)}
		}
		seen[b.ID] = true
		if err := b.Condition.validate(); err != nil {
			return &ValidationError{Field: fmt.Sprintf("branches[%d].condition", i), Message: err.Error()}
		}
	}
	return nil
}

// ConditionType selects how a branch condition is evaluated.
type ConditionType string

const (
	ConditionAlways   ConditionType = "always"
	ConditionManual   ConditionType = "manual"
	ConditionCounter  ConditionType = "counter"
	ConditionBarIndex ConditionType = "barIndex"
	ConditionRandom   ConditionType = "random"
)

// Condition decides whether a switch branch matches. Only the fields of the
// selected Type are meaningful.
type Condition struct {
	Type ConditionType

	// Disabled turns an always condition off. The zero value matches.
	Disabled bool

	// Selection is matched against the switch's manual selection.
	Selection string

	// CounterID names the counter read by a counter condition.
	CounterID string

	// Op compares the counter or bar index against Operand (default ">=").
	Op      string
	Operand int

	// Threshold is the probability of a random condition (default 0.5).
	Threshold float64
}

type conditionJSON struct {
	Type      ConditionType   `json:"type,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
	Op        string          `json:"op,omitempty"`
	CounterID string          `json:"counterId,omitempty"`
	Threshold *float64        `json:"threshold,omitempty"`
}

// UnmarshalJSON interprets the "value" field according to the condition type.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw conditionJSON
	if err := strictUnmarshal(data, &raw); err != nil {
		return &ValidationError{Field: "condition", Message: err.Error()}
	}
	out := Condition{Type: raw.Type, Op: raw.Op, CounterID: raw.CounterID}
	if out.Type == "" {
		out.Type = ConditionAlways
	}
	if out.Op == "" {
		out.Op = ">="
	}
	value := bytes.TrimSpace(raw.Value)
	hasValue := len(value) > 0 && !bytes.Equal(value, []byte("null"))

	switch out.Type {
	case ConditionAlways:
		out.Disabled = bytes.Equal(value, []byte("false"))
	case ConditionManual:
		if hasValue {
			s, err := scalarString(value)
			if err != nil {
				return &ValidationError{Field: "condition.value", Message: err.Error()}
			}
			out.Selection = s
		}
	case ConditionCounter, ConditionBarIndex:
		if hasValue {
			n, err := scalarInt(value)
			if err != nil {
				return &ValidationError{Field: "condition.value", Message: err.Error()}
			}
			out.Operand = n
		}
	case ConditionRandom:
		out.Threshold = 0.5
		switch {
		case raw.Threshold != nil:
			out.Threshold = *raw.Threshold
		case hasValue:
			f, err := scalarFloat(value)
			if err != nil {
				return &ValidationError{Field: "condition.value", Message: err.Error()}
			}
			out.Threshold = f
		}
	default:
		return &ValidationError{Field: "condition.type", Message: fmt.Sprintf("unknown condition type %q", raw.Type)}
	}
	*c = out
	return nil
}

// MarshalJSON writes the condition in the shape UnmarshalJSON accepts.
func (c Condition) MarshalJSON() ([]byte, error) {
	out := conditionJSON{Type: c.Type}
	var value any
	switch c.Type {
	case ConditionAlways:
		value = !c.Disabled
	case ConditionManual:
		value = c.Selection
	case ConditionCounter:
		out.CounterID = c.CounterID
		out.Op = c.Op
		value = c.Operand
	case ConditionBarIndex:
		out.Op = c.Op
		value = c.Operand
	case ConditionRandom:
		threshold := c.Threshold
		out.Threshold = &threshold
	}
	if value != nil {
		b, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		out.Value = b
	}
	return json.Marshal(out)
}

func (c Condition) validate() error {
	switch c.Type {
	case ConditionAlways, ConditionManual, ConditionRandom:
	case ConditionCounter:
		if c.CounterID == "" {
			return fmt.Errorf("counter condition requires counterId")
		}
	case ConditionBarIndex:
	default:
		return fmt.Errorf("unknown condition type %q", c.Type)
	}
	if c.Type == ConditionCounter || c.Type == ConditionBarIndex {
		if _, ok := comparators[c.Op]; !ok {
			return fmt.Errorf("unknown operator %q", c.Op)
		}
	}
	return nil
}

func scalarString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("expected a string, got %s", raw)
}

func scalarInt(raw json.RawMessage) (int, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("expected an integer, got %s", raw)
		}
		n = json.Number(strings.TrimSpace(s))
	}
	if i, err := strconv.Atoi(n.String()); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("expected an integer, got %s", raw)
	}
	return int(f), nil
}

func scalarFloat(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("expected a number, got %s", raw)
}
