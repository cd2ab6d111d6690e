package compose

import (
	"fmt"
	"strconv"
	"strings"
)

var noteSemitones = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// chordQualities maps a chord quality to its intervals above the root.
var chordQualities = map[string][]int{
	"major":      {0, 4, 7},
	"minor":      {0, 3, 7},
	"diminished": {0, 3, 6},
	"augmented":  {0, 4, 8},
}

// NoteToMIDI converts a note name such as "C4", "D#3" or "Bb2" to a MIDI
// note number. C4 is 60.
func NoteToMIDI(name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("empty note name")
	}
	semitone, ok := noteSemitones[strings.ToUpper(name[:1])[0]]
	if !ok {
		return 0, fmt.Errorf("invalid note letter %q", name[:1])
	}
	rest := name[1:]
	if rest != "" && (rest[0] == '#' || rest[0] == 'b') {
		if rest[0] == '#' {
			semitone++
		} else {
			semitone--
		}
		rest = rest[1:]
	}
	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("invalid octave in note %q", name)
	}
	midi := (octave+1)*12 + semitone
	if midi < 0 || midi > 127 {
		return 0, fmt.Errorf("MIDI note out of range for %q", name)
	}
	return midi, nil
}

// ParseNotes parses a colon-separated list of note names or MIDI numbers,
// such as "C4:E4:G4" or "60:64:67".
func ParseNotes(list string) ([]int, error) {
	var out []int
	for _, tok := range strings.Split(list, ":") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if n, err := strconv.Atoi(tok); err == nil {
			if n < 0 || n > 127 {
				return nil, fmt.Errorf("MIDI note %d out of range", n)
			}
			out = append(out, n)
			continue
		}
		n, err := NoteToMIDI(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no notes in %q", list)
	}
	return out, nil
}

// Chord builds a chord from a root such as "A3" and a quality. A root
// without an octave is placed in octave 4; an empty root is C4 and an empty
// quality is major.
func Chord(root, quality string) ([]int, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		root = "C"
	}
	last := root[len(root)-1]
	if last < '0' || last > '9' {
		root += "4"
	}
	base, err := NoteToMIDI(root)
	if err != nil {
		return nil, err
	}
	if quality == "" {
		quality = "major"
	}
	intervals, ok := chordQualities[strings.ToLower(quality)]
	if !ok {
		return nil, fmt.Errorf("unknown chord quality %q", quality)
	}
	out := make([]int, len(intervals))
	for i, iv := range intervals {
		out[i] = clampPitch(base + iv)
	}
	return out, nil
}

// FoldRegister moves each pitch by whole octaves into [lo, hi]. A pitch that
// cannot fit (a range narrower than an octave) ends at the nearest bound.
// Results are clamped to 0..127.
func FoldRegister(pitches []int, lo, hi int) []int {
	out := make([]int, len(pitches))
	for i, p := range pitches {
		for p < lo && p+12 <= 127 {
			p += 12
		}
		for p > hi && p-12 >= 0 {
			p -= 12
		}
		if p < lo {
			p = lo
		}
		if p > hi {
			p = hi
		}
		out[i] = clampPitch(p)
	}
	return out
}

func clampPitch(p int) int {
	if p < 0 {
		return 0
	}
	if p > 127 {
		return 127
	}
	return p
}
