package compose

import "fmt"

// MaxPatternBars bounds how many bars one rhythm pattern may span.
const MaxPatternBars = 16

// defaultIntensity is the hit strength used when a generator has no pattern.
const defaultIntensity = 7

// Step is one grid position of a rhythm pattern.
type Step struct {
	Hit      bool
	Velocity int

	// Sustain counts the '-' steps that extend this hit.
	Sustain int
}

// Velocity maps a pattern digit to a MIDI velocity.
func Velocity(digit int) int {
	v := 15 + 12*digit
	if v < 1 {
		return 1
	}
	if v > 127 {
		return 127
	}
	return v
}

// ParseRhythm splits a pattern into bars of steps grid positions.
//
// '.' is a rest, a digit is a hit of that intensity and '-' sustains the
// previous hit. Spaces and '|' are ignored. A pattern whose length is an
// exact multiple of steps spans that many bars (at most MaxPatternBars);
// any other pattern is repeated or truncated to a single bar. An empty
// pattern hits every step.
func ParseRhythm(pattern string, steps int) ([][]Step, error) {
	if steps < 1 {
		return nil, fmt.Errorf("invalid step count %d", steps)
	}

	var cells []byte
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == ' ' || c == '|' || c == '\t' || c == '\n':
			continue
		case c == '.' || c == '-' || (c >= '0' && c <= '9'):
			cells = append(cells, c)
		default:
			return nil, fmt.Errorf("invalid pattern character %q at %d", c, i)
		}
	}

	if len(cells) == 0 {
		bar := make([]Step, steps)
		for i := range bar {
			bar[i] = Step{Hit: true, Velocity: Velocity(defaultIntensity)}
		}
		return [][]Step{bar}, nil
	}

	bars := 1
	if n := len(cells) / steps; len(cells)%steps == 0 && n >= 1 && n <= MaxPatternBars {
		bars = n
	} else {
		fitted := make([]byte, steps)
		for i := range fitted {
			fitted[i] = cells[i%len(cells)]
		}
		cells = fitted
	}

	all := make([]Step, len(cells))
	last := -1
	for i, c := range cells {
		switch {
		case c == '.':
			last = -1
		case c == '-':
			if last >= 0 {
				all[last].Sustain++
			}
		default:
			all[i] = Step{Hit: true, Velocity: Velocity(int(c - '0'))}
			last = i
		}
	}

	out := make([][]Step, bars)
	for b := range out {
		out[b] = all[b*steps : (b+1)*steps]
	}
	return out, nil
}
