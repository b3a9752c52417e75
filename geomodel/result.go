package geomodel

import (
	"math"

	"github.com/paulmach/orb/encoding/wkt"
)

type UrbanRural string

const (
	Urban UrbanRural = "URBAN"
	Rural UrbanRural = "RURAL"
)

type Salience struct {
	Name       *float64 `json:"name,omitempty"`
	Type       *float64 `json:"type,omitempty"`
	Popularity *float64 `json:"popularity,omitempty"`
}

// Normalize replaces non finite values with zero and stores popularity as a whole count.
func (s *Salience) Normalize() {
	if s == nil {
		return
	}
	s.Name = finite(s.Name)
	s.Type = finite(s.Type)
	s.Popularity = finite(s.Popularity)
	if s.Popularity != nil {
		v := math.Round(*s.Popularity)
		s.Popularity = &v
	}
}

func finite(v *float64) *float64 {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		z := 0.0
		return &z
	}
	return v
}

type Entry struct {
	Name     string    `json:"name"`
	Geometry string    `json:"geometry"`
	TypePath TypePath  `json:"typePath"`
	Salience *Salience `json:"salience,omitempty"`
}

func NewEntry(t Toponym) Entry {
	e := Entry{
		Name:     t.Feature.Name,
		TypePath: t.Type.Clone(),
	}
	if t.Feature.Geometry != nil {
		e.Geometry = wkt.MarshalString(t.Feature.Geometry)
	}
	return e
}

type Result struct {
	Containment []Entry `json:"containment"`
	Proximal    []Entry `json:"proximal"`
}

func (r *Result) Normalize() {
	for i := range r.Containment {
		r.Containment[i].Salience.Normalize()
	}
	for i := range r.Proximal {
		r.Proximal[i].Salience.Normalize()
	}
}
