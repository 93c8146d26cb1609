package grading

import (
	"fmt"
	"strings"
)

// Phrasebook holds the sentence templates used to build NLI hypotheses and
// feedback. Every template is a fmt format string.
type Phrasebook struct {
	Lang string

	Because      string // criterion, joined descriptors
	Conjunction  string // joins the last descriptor
	Excellent    string // criterion
	Good         string // criterion
	Basic        string // criterion
	Deficient    string // criterion
	AtLevel      string // criterion, level
	Fragments    string // fragment count
	OneFragment  string
	ContextIntro string // criterion, topic, description
	ContextItems string
}

var (
	English = Phrasebook{
		Lang:         "en",
		Because:      "This text demonstrates %s because %s.",
		Conjunction:  " and ",
		Excellent:    "This text demonstrates %s in an excellent, complete and thorough way.",
		Good:         "This text demonstrates %s in an adequate and satisfactory way.",
		Basic:        "This text demonstrates %s in a basic or limited way.",
		Deficient:    "This text does not adequately demonstrate %s.",
		AtLevel:      "This text demonstrates %s at level %s.",
		Fragments:    "Evaluation based on the analysis of %d fragments.",
		OneFragment:  "Evaluation based on the analysis of 1 fragment.",
		ContextIntro: "Evaluate the following academic text against the criterion: %q\n\nDocument context:\n- Topic: %s\n- Description: %s\n",
		ContextItems: "\nAspects to evaluate for this criterion:",
	}

	Spanish = Phrasebook{
		Lang:         "es",
		Because:      "Este texto demuestra %s ya que %s.",
		Conjunction:  " y ",
		Excellent:    "Este texto demuestra %s de manera excelente, completa y profunda.",
		Good:         "Este texto demuestra %s de manera adecuada y satisfactoria.",
		Basic:        "Este texto demuestra %s de manera básica o limitada.",
		Deficient:    "Este texto no demuestra %s de manera adecuada.",
		AtLevel:      "Este texto demuestra %s a nivel %s.",
		Fragments:    "Evaluación basada en análisis de %d fragmentos.",
		OneFragment:  "Evaluación basada en análisis de 1 fragmento.",
		ContextIntro: "Evalúa el siguiente texto académico en base al criterio: %q\n\nContexto del documento:\n- Tema: %s\n- Descripción: %s\n",
		ContextItems: "\nAspectos a evaluar para este criterio:",
	}
)

// PhrasebookFor returns the phrasebook for a language tag, English otherwise.
func PhrasebookFor(lang string) Phrasebook {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "es", "es-es", "es-419", "spa", "spanish":
		return Spanish
	default:
		return English
	}
}

// BuildHypothesis turns a criterion and one of its levels into the claim the
// classifier is asked to entail. It is a pure function of its inputs.
func (p Phrasebook) BuildHypothesis(criterion, level string, descriptors []string) string {
	valid := cleanDescriptors(descriptors)
	for i := range valid {
		valid[i] = strings.ToLower(valid[i])
	}
	if len(valid) > 0 {
		joined := valid[0]
		if n := len(valid); n > 1 {
			joined = strings.Join(valid[:n-1], ", ") + p.Conjunction + valid[n-1]
		}
		return fmt.Sprintf(p.Because, criterion, joined)
	}

	switch classifyLevel(level) {
	case bandExcellent:
		return fmt.Sprintf(p.Excellent, criterion)
	case bandGood:
		return fmt.Sprintf(p.Good, criterion)
	case bandBasic:
		return fmt.Sprintf(p.Basic, criterion)
	case bandDeficient:
		return fmt.Sprintf(p.Deficient, criterion)
	default:
		return fmt.Sprintf(p.AtLevel, criterion, level)
	}
}

// BuildContextPrompt renders the document context and the aspects to look
// for. Scoring does not depend on it; it is logged and handed to collaborators
// that prompt generative models.
func (p Phrasebook) BuildContextPrompt(criterion, topic, topicDescription string, descriptors []string) string {
	if strings.TrimSpace(topicDescription) == "" {
		topicDescription = "N/A"
	}
	var b strings.Builder
	fmt.Fprintf(&b, p.ContextIntro, criterion, topic, topicDescription)
	valid := cleanDescriptors(descriptors)
	if len(valid) > 0 {
		b.WriteString(p.ContextItems)
		for i, d := range valid {
			fmt.Fprintf(&b, "\n%d. %s", i+1, d)
		}
	}
	return b.String()
}

func (p Phrasebook) fragmentsFeedback(n int) string {
	if n == 1 {
		return p.OneFragment
	}
	return fmt.Sprintf(p.Fragments, n)
}

func cleanDescriptors(descriptors []string) []string {
	out := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}
