package grading

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// rubricDoc is the on-disk rubric. Besides the English keys it accepts the
// Spanish names used by the rubric-management service.
type rubricDoc struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	NameES      string         `json:"nombre_rubrica" yaml:"nombre_rubrica"`
	Description string         `json:"description" yaml:"description"`
	DescES      string         `json:"descripcion" yaml:"descripcion"`
	Criteria    []criterionDoc `json:"criteria" yaml:"criteria"`
	CriteriaES  []criterionDoc `json:"criterios" yaml:"criterios"`
}

type criterionDoc struct {
	ID          any        `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	NameES      string     `json:"nombre_criterio" yaml:"nombre_criterio"`
	Description string     `json:"description" yaml:"description"`
	DescES      string     `json:"descripcion_criterio" yaml:"descripcion_criterio"`
	Weight      *float64   `json:"weight" yaml:"weight"`
	WeightES    *float64   `json:"peso" yaml:"peso"`
	Order       int        `json:"order" yaml:"order"`
	OrderES     int        `json:"orden" yaml:"orden"`
	Levels      []levelDoc `json:"levels" yaml:"levels"`
	LevelsES    []levelDoc `json:"niveles" yaml:"niveles"`
}

type levelDoc struct {
	Name          string   `json:"name" yaml:"name"`
	NameES        string   `json:"nombre_nivel" yaml:"nombre_nivel"`
	MinPoints     *float64 `json:"min_points" yaml:"min_points"`
	MinES         *float64 `json:"puntaje_min" yaml:"puntaje_min"`
	MaxPoints     *float64 `json:"max_points" yaml:"max_points"`
	MaxES         *float64 `json:"puntaje_max" yaml:"puntaje_max"`
	Descriptors   []string `json:"descriptors" yaml:"descriptors"`
	DescriptorsES []string `json:"descriptores" yaml:"descriptores"`
	Order         int      `json:"order" yaml:"order"`
	OrderES       int      `json:"orden" yaml:"orden"`
}

// DecodeRubricJSON reads and validates a JSON rubric.
func DecodeRubricJSON(r io.Reader) (Rubric, error) {
	var doc rubricDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Rubric{}, fmt.Errorf("%w: decode json: %v", ErrInvalidRubric, err)
	}
	return doc.rubric()
}

// DecodeRubricYAML reads and validates a YAML rubric.
func DecodeRubricYAML(r io.Reader) (Rubric, error) {
	var doc rubricDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return Rubric{}, fmt.Errorf("%w: decode yaml: %v", ErrInvalidRubric, err)
	}
	return doc.rubric()
}

// LoadRubricFile picks the decoder from the file extension.
func LoadRubricFile(path string) (Rubric, error) {
	f, err := os.Open(path)
	if err != nil {
		return Rubric{}, err
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeRubricYAML(f)
	default:
		return DecodeRubricJSON(f)
	}
}

func (d *rubricDoc) rubric() (Rubric, error) {
	r := Rubric{
		ID:          d.ID,
		Name:        pick(d.Name, d.NameES),
		Description: pick(d.Description, d.DescES),
	}
	criteria := d.Criteria
	if len(criteria) == 0 {
		criteria = d.CriteriaES
	}
	for i, cd := range criteria {
		c := Criterion{
			ID:          idString(cd.ID),
			Name:        pick(cd.Name, cd.NameES),
			Description: pick(cd.Description, cd.DescES),
			Order:       pickInt(cd.Order, cd.OrderES),
		}
		if w := pickPtr(cd.Weight, cd.WeightES); w != nil {
			c.Weight = *w
		}
		levels := cd.Levels
		if len(levels) == 0 {
			levels = cd.LevelsES
		}
		for _, ld := range levels {
			l := Level{
				Name:        strings.TrimSpace(pick(ld.Name, ld.NameES)),
				Descriptors: cleanDescriptors(pickSlice(ld.Descriptors, ld.DescriptorsES)),
				Order:       pickInt(ld.Order, ld.OrderES),
			}
			if v := pickPtr(ld.MinPoints, ld.MinES); v != nil {
				l.MinPoints = *v
			}
			if v := pickPtr(ld.MaxPoints, ld.MaxES); v != nil {
				l.MaxPoints = *v
			}
			c.Levels = append(c.Levels, l)
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("%d", i+1)
		}
		r.Criteria = append(r.Criteria, c)
	}
	if err := r.Validate(); err != nil {
		return Rubric{}, err
	}
	return r, nil
}

func idString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}

func pick(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func pickInt(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

func pickPtr(a, b *float64) *float64 {
	if a != nil {
		return a
	}
	return b
}

func pickSlice(a, b []string) []string {
	if len(a) > 0 {
		return a
	}
	return b
}
