package grading

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidRubric is returned when a rubric, criterion or level breaks a
	// structural rule (empty name, negative points, min above max, ...).
	ErrInvalidRubric = errors.New("invalid rubric")
	// ErrNoLevels is returned when a criterion carries no performance levels.
	ErrNoLevels = errors.New("criterion has no levels")
)

// Rubric is an ordered list of criteria authored by an instructor.
type Rubric struct {
	ID          string      `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Criteria    []Criterion `json:"criteria" yaml:"criteria"`
}

// Criterion is one evaluated dimension of a rubric.
type Criterion struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Weight      float64 `json:"weight" yaml:"weight"`
	Order       int     `json:"order,omitempty" yaml:"order,omitempty"`
	Levels      []Level `json:"levels" yaml:"levels"`
}

// Level is a named performance band with its raw point range.
type Level struct {
	Name        string   `json:"name" yaml:"name"`
	MinPoints   float64  `json:"min_points" yaml:"min_points"`
	MaxPoints   float64  `json:"max_points" yaml:"max_points"`
	Descriptors []string `json:"descriptors,omitempty" yaml:"descriptors,omitempty"`
	Order       int      `json:"order,omitempty" yaml:"order,omitempty"`
}

// NewLevel builds a validated Level. Blank descriptors are dropped.
func NewLevel(name string, minPoints, maxPoints float64, descriptors ...string) (Level, error) {
	l := Level{Name: strings.TrimSpace(name), MinPoints: minPoints, MaxPoints: maxPoints}
	for _, d := range descriptors {
		if d = strings.TrimSpace(d); d != "" {
			l.Descriptors = append(l.Descriptors, d)
		}
	}
	if err := l.Validate(); err != nil {
		return Level{}, err
	}
	return l, nil
}

func (l Level) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("%w: level name is required", ErrInvalidRubric)
	}
	if l.MinPoints < 0 || l.MaxPoints < 0 {
		return fmt.Errorf("%w: level %q has negative points", ErrInvalidRubric, l.Name)
	}
	if l.MinPoints > l.MaxPoints {
		return fmt.Errorf("%w: level %q min_points %.2f > max_points %.2f", ErrInvalidRubric, l.Name, l.MinPoints, l.MaxPoints)
	}
	return nil
}

func (c Criterion) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: criterion name is required", ErrInvalidRubric)
	}
	if c.Weight < 0 {
		return fmt.Errorf("%w: criterion %q has negative weight", ErrInvalidRubric, c.Name)
	}
	if len(c.Levels) == 0 {
		return fmt.Errorf("criterion %q: %w", c.Name, ErrNoLevels)
	}
	seen := make(map[string]bool, len(c.Levels))
	for _, l := range c.Levels {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("criterion %q: %w", c.Name, err)
		}
		if seen[l.Name] {
			return fmt.Errorf("%w: criterion %q repeats level %q", ErrInvalidRubric, c.Name, l.Name)
		}
		seen[l.Name] = true
	}
	return nil
}

// Validate checks every criterion and that criterion keys are unique.
func (r Rubric) Validate() error {
	if len(r.Criteria) == 0 {
		return fmt.Errorf("%w: at least one criterion is required", ErrInvalidRubric)
	}
	seen := make(map[string]bool, len(r.Criteria))
	for _, c := range r.Criteria {
		if err := c.Validate(); err != nil {
			return err
		}
		k := c.Key()
		if seen[k] {
			return fmt.Errorf("%w: duplicate criterion %q", ErrInvalidRubric, k)
		}
		seen[k] = true
	}
	return nil
}

// Key identifies the criterion in result maps: the ID when set, else the name.
func (c Criterion) Key() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Name
}

// SortedLevels returns the levels ordered best to worst by Order. Levels
// without an explicit order go last, in authored position.
func (c Criterion) SortedLevels() []Level {
	out := make([]Level, len(c.Levels))
	copy(out, c.Levels)
	sort.SliceStable(out, func(i, j int) bool { return orderKey(out[i]) < orderKey(out[j]) })
	return out
}

func orderKey(l Level) int {
	if l.Order == 0 {
		return 999
	}
	return l.Order
}

// MaxPoints is the highest MaxPoints across the criterion's levels.
func (c Criterion) MaxPoints() float64 { return scaleMax(c.Levels) }

func scaleMax(levels []Level) float64 {
	m := 0.0
	for _, l := range levels {
		if l.MaxPoints > m {
			m = l.MaxPoints
		}
	}
	return m
}

// DefaultLevels are used when a caller has no rubric-defined levels. They carry
// no points, so normalization goes through the keyword table.
func DefaultLevels() []Level {
	return []Level{
		{Name: "Excelente", Order: 1},
		{Name: "Bueno", Order: 2},
		{Name: "Regular", Order: 3},
		{Name: "Insuficiente", Order: 4},
	}
}
