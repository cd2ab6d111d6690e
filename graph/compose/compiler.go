// Package compose turns generator parameters into the events of one bar.
//
// Compiler is the reference graph.BarCompiler: a chord, a rhythm pattern and
// a handful of timing transforms. It is deterministic for a fixed node,
// bar offset and seed.
package compose

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/hambonesoftware/MIND/graph"
)

// BeatsPerBar is fixed at 4/4.
const BeatsPerBar = 4.0

// Drum lanes and their default MIDI pitches.
var drumPitches = map[string]int{
	"kick":  36,
	"snare": 38,
	"hat":   42,
}

const (
	noteFill     = 0.95
	minDuration  = 0.05
	drumDuration = 0.1
	offbeatShift = 0.5
	anticipation = -0.33
	swingShift   = 0.5
	shuffleShift = 0.75
)

// Compiler is the reference bar compiler.
type Compiler struct{}

// NewCompiler returns a Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

var _ graph.BarCompiler = (*Compiler)(nil)

// CompileBar implements graph.BarCompiler.
//
// Events are measured in beats, so bpm does not affect them. Problems with
// the parameters are returned as error diagnostics with no events.
func (c *Compiler) CompileBar(_ context.Context, node graph.Node, barOffset int, _ float64, seed int64) ([]graph.Event, []graph.Diagnostic) {
	params, ok := node.Generator()
	if !ok {
		return nil, []graph.Diagnostic{failure(node, fmt.Sprintf("node %q is not a generator", node.ID))}
	}

	steps, ok := graph.StepsPerBar(params.RhythmGrid)
	if !ok {
		return nil, []graph.Diagnostic{failure(node, fmt.Sprintf("invalid grid %q", params.RhythmGrid))}
	}

	bars, err := ParseRhythm(params.Pattern, steps)
	if err != nil {
		return nil, []graph.Diagnostic{failure(node, err.Error())}
	}
	if barOffset < 0 {
		barOffset = 0
	}
	bar := bars[barOffset%len(bars)]

	drum, isDrum := drumPitches[params.Lane]
	var chord []int
	if !isDrum {
		chord, err = chordFor(params)
		if err != nil {
			return nil, []graph.Diagnostic{failure(node, err.Error())}
		}
	}

	stepBeats := BeatsPerBar / float64(steps)
	order := arpeggioOrder(params.PatternType, len(chord))
	rotation := 0
	if len(order) > 0 {
		rotation = stableSeed(fmt.Sprintf("%s:%d:%d:offset", node.ID, seed, barOffset)) % len(order)
	}

	events := make([]graph.Event, 0, steps)
	hit := 0
	for i, s := range bar {
		if !s.Hit {
			continue
		}
		e := graph.Event{
			Beat:     beatFor(i, stepBeats, params),
			Lane:     params.Lane,
			Velocity: s.Velocity,
			Preset:   params.InstrumentPreset,
		}
		switch {
		case isDrum:
			e.Pitches = []int{drum}
			e.DurationBeats = drumDuration
		case order == nil:
			e.Pitches = append([]int(nil), chord...)
			e.DurationBeats = noteDuration(stepBeats, s.Sustain)
		default:
			e.Pitches = []int{chord[order[(hit+rotation)%len(order)]]}
			e.DurationBeats = noteDuration(stepBeats, s.Sustain)
		}
		events = append(events, e)
		hit++
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Beat != events[j].Beat {
			return events[i].Beat < events[j].Beat
		}
		return events[i].Pitches[0] < events[j].Pitches[0]
	})

	if params.Poly == "mono" {
		for i := 0; i+1 < len(events); i++ {
			gap := (events[i+1].Beat - events[i].Beat) * noteFill
			if gap < events[i].DurationBeats {
				events[i].DurationBeats = maxFloat(gap, minDuration)
			}
		}
	}
	return events, nil
}

func failure(node graph.Node, msg string) graph.Diagnostic {
	return graph.Diagnostic{Level: graph.LevelError, Message: msg, NodeID: node.ID}
}

// chordFor resolves the pitches a note lane plays, folded into the register.
func chordFor(p graph.GeneratorParams) ([]int, error) {
	var chord []int
	var err error
	if p.ChordNotes != "" {
		chord, err = ParseNotes(p.ChordNotes)
	} else {
		chord, err = Chord(p.ChordRoot, p.ChordQuality)
	}
	if err != nil {
		return nil, err
	}
	folded := FoldRegister(chord, p.RegisterMin, p.RegisterMax)
	sort.Ints(folded)
	return folded, nil
}

// arpeggioOrder returns chord indexes in playing order, or nil for block
// chords.
func arpeggioOrder(patternType string, n int) []int {
	if n == 0 || patternType == "block" {
		return nil
	}
	order := make([]int, 0, n)
	switch patternType {
	case "arp-3-down":
		for i := n - 1; i >= 0; i-- {
			order = append(order, i)
		}
	case "arp-3-skip":
		// low-high-mid for triads: even positions first, then odd
		for i := 0; i < n; i += 2 {
			order = append(order, i)
		}
		for i := n - 1; i > 0; i-- {
			if i%2 == 1 {
				order = append(order, i)
			}
		}
	default:
		for i := 0; i < n; i++ {
			order = append(order, i)
		}
	}
	return order
}

// beatFor places step i within the bar after syncopation and swing.
func beatFor(i int, stepBeats float64, p graph.GeneratorParams) float64 {
	beat := float64(i) * stepBeats
	switch p.Syncopation {
	case "offbeat":
		beat += offbeatShift * stepBeats
	case "anticipation":
		beat += anticipation * stepBeats
	}
	if i%2 == 1 {
		switch p.TimingWarp {
		case "swing":
			beat += swingShift * stepBeats * p.TimingIntensity
		case "shuffle":
			beat += shuffleShift * stepBeats * p.TimingIntensity
		}
	}
	if beat < 0 {
		return 0
	}
	if beat > BeatsPerBar {
		return BeatsPerBar
	}
	return beat
}

func noteDuration(stepBeats float64, sustain int) float64 {
	return maxFloat(stepBeats*float64(1+sustain)*noteFill, minDuration)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// stableSeed hashes value into a non-negative int from the first 32 bits of
// its SHA-256 digest.
func stableSeed(value string) int {
	sum := sha256.Sum256([]byte(value))
	n, _ := strconv.ParseUint(hex.EncodeToString(sum[:4]), 16, 64)
	return int(n)
}
