package geometry

import (
	"slices"

	"github.com/paulmach/orb"
)

// Segment is one input line of a join. Index identifies it in the caller's input.
type Segment struct {
	Index       int
	Orientation orb.Orientation
	Reversed    bool
	Line        orb.LineString
}

// Reverse will reverse the line string of the segment.
func (s *Segment) Reverse() {
	s.Reversed = !s.Reversed
	s.Line.Reverse()
}

// First returns the first point in the segment linestring.
func (s Segment) First() orb.Point {
	return s.Line[0]
}

// Last returns the last point in the segment linestring.
func (s Segment) Last() orb.Point {
	return s.Line[len(s.Line)-1]
}

// MultiSegment is an ordered set of segments that form a continuous line.
type MultiSegment []Segment

// First returns the first point in the list of linestrings.
func (ms MultiSegment) First() orb.Point {
	return ms[0].Line[0]
}

// Last returns the last point in the list of linestrings.
func (ms MultiSegment) Last() orb.Point {
	line := ms[len(ms)-1].Line
	return line[len(line)-1]
}

// Members returns the input indices joined into ms, ascending.
func (ms MultiSegment) Members() []int {
	out := make([]int, 0, len(ms))
	for _, s := range ms {
		out = append(out, s.Index)
	}
	slices.Sort(out)
	return out
}

// LineString converts a multisegment into a single linestring.
func (ms MultiSegment) LineString() orb.LineString {
	length := 0
	for _, s := range ms {
		length += len(s.Line)
	}

	line := make(orb.LineString, 0, length)
	for _, s := range ms {
		line = append(line, s.Line...)
	}

	return line
}

// Ring converts the multisegment to a ring of the given orientation.
// It uses the orientation on the members if possible.
func (ms MultiSegment) Ring(o orb.Orientation) orb.Ring {
	length := 0
	for _, s := range ms {
		length += len(s.Line)
	}

	ring := make(orb.Ring, 0, length)

	haveOrient := false
	reversed := false
	for _, s := range ms {
		if s.Orientation != 0 {
			haveOrient = true
			if (s.Orientation == o) == s.Reversed {
				reversed = true
			}
		}

		ring = append(ring, s.Line...)
	}

	if (haveOrient && reversed) || (!haveOrient && ring.Orientation() != o) {
		ring.Reverse()
	}

	return ring
}

// Join links segments whose end points touch into continuous runs.
// The segment lines are modified in place, callers that need their input
// intact must pass copies. Segments with fewer than two points are dropped.
func Join(segments []Segment) []MultiSegment {
	lists := []MultiSegment{}
	segments = compact(segments)

	// matches are removed from `segments` and put into the current
	// group, so when `segments` is empty we're done.
	for len(segments) != 0 {
		current := MultiSegment{segments[len(segments)-1]}
		segments = segments[:len(segments)-1]

		// a closed ring can't be extended any further
		for len(segments) != 0 && !current.First().Equal(current.Last()) {
			first := current.First()
			last := current.Last()

			foundAt := -1
			for i, segment := range segments {
				if last.Equal(segment.First()) {
					// nice fit at the end of current
					segment.Line = segment.Line[1:]
					current = append(current, segment)
					foundAt = i
					break
				} else if last.Equal(segment.Last()) {
					// reverse it and it'll fit at the end
					segment.Reverse()
					segment.Line = segment.Line[1:]
					current = append(current, segment)
					foundAt = i
					break
				} else if first.Equal(segment.Last()) {
					// nice fit at the start of current
					segment.Line = segment.Line[:len(segment.Line)-1]
					current = append(MultiSegment{segment}, current...)
					foundAt = i
					break
				} else if first.Equal(segment.First()) {
					// reverse it and it'll fit at the start
					segment.Reverse()
					segment.Line = segment.Line[:len(segment.Line)-1]
					current = append(MultiSegment{segment}, current...)
					foundAt = i
					break
				}
			}

			if foundAt == -1 {
				break // dangling way or unclosed ring
			}

			segments = slices.Delete(segments, foundAt, foundAt+1)
		}

		lists = append(lists, current)
	}

	return lists
}

func compact(ms []Segment) []Segment {
	at := 0
	for _, s := range ms {
		if len(s.Line) <= 1 {
			continue
		}

		ms[at] = s
		at++
	}

	return ms[:at]
}

// Chain is a run of input lines joined end to end.
type Chain struct {
	// Members are the input indices of the joined lines, ascending.
	Members []int
	Line    orb.LineString
}

// JoinLines joins connected lines without touching the input.
// Every input index appears in exactly one chain, chains are ordered by their first member.
func JoinLines(lines []orb.LineString) []Chain {
	segments := make([]Segment, 0, len(lines))
	var chains []Chain
	for i, l := range lines {
		if len(l) <= 1 {
			chains = append(chains, Chain{Members: []int{i}, Line: l})
			continue
		}
		segments = append(segments, Segment{Index: i, Line: l.Clone()})
	}

	for _, ms := range Join(segments) {
		members := ms.Members()
		if len(members) == 1 {
			chains = append(chains, Chain{Members: members, Line: lines[members[0]]})
			continue
		}
		chains = append(chains, Chain{Members: members, Line: ms.LineString()})
	}

	slices.SortFunc(chains, func(a, b Chain) int {
		return a.Members[0] - b.Members[0]
	})
	return chains
}
