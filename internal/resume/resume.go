package resume

import (
	"sort"
	"strings"
	"time"
)

const (
	SectionContact    = "contact"
	SectionEducation  = "education"
	SectionExperience = "experience"
	SectionSkills     = "skills"
	SectionOther      = "other"

	// SectionError holds text the extraction step could not recognize.
	SectionError = "error"
	// SectionUnclassified holds text that matched no segmentation heuristic.
	SectionUnclassified = "unclassified"
)

// ExtractionFailedMarker is emitted by the text extraction step when recognition fails.
const ExtractionFailedMarker = "文字识别失败"

// failureMarkers are fragments of the explanatory strings returned by the
// OCR and PDF collaborators instead of résumé text.
var failureMarkers = []string{
	ExtractionFailedMarker,
	"无法识别文字内容",
	"无法识别图片文件",
	"无法从PDF中提取文本",
	"PDF处理失败",
}

// canonicalOrder is the order sections are analyzed and displayed in.
var canonicalOrder = []string{
	SectionContact,
	SectionEducation,
	SectionExperience,
	SectionSkills,
	SectionOther,
	SectionError,
	SectionUnclassified,
}

type Section struct {
	Name        string   `json:"-"`
	Content     string   `json:"content"`
	Score       float64  `json:"score"`
	Suggestions []string `json:"suggestions"`
	Highlights  []string `json:"highlights"`
}

type Report struct {
	ID           string              `json:"id"`
	CreatedAt    time.Time           `json:"created_at"`
	Source       string              `json:"source,omitempty"`
	OverallScore float64             `json:"overall_score"`
	Sections     map[string]*Section `json:"sections"`
}

func newSection(name, content string) *Section {
	return &Section{
		Name:        name,
		Content:     content,
		Suggestions: []string{},
		Highlights:  []string{},
	}
}

// IsSentinel reports whether the section name marks a non-content placeholder.
func IsSentinel(name string) bool {
	return name == SectionError || name == SectionUnclassified
}

// IsFailureText reports whether text is an extraction failure message rather than résumé content.
func IsFailureText(text string) bool {
	for _, marker := range failureMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// OrderedNames returns the section names in canonical order. Unknown names
// follow the known ones in lexical order.
func OrderedNames(sections map[string]*Section) []string {
	names := make([]string, 0, len(sections))
	for _, name := range canonicalOrder {
		if _, ok := sections[name]; ok {
			names = append(names, name)
		}
	}

	var rest []string
	for name := range sections {
		if !isCanonical(name) {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)

	return append(names, rest...)
}

func isCanonical(name string) bool {
	for _, known := range canonicalOrder {
		if known == name {
			return true
		}
	}
	return false
}

// OrderedSections returns the report sections in canonical order.
func (r *Report) OrderedSections() []*Section {
	ordered := make([]*Section, 0, len(r.Sections))
	for _, name := range OrderedNames(r.Sections) {
		ordered = append(ordered, r.Sections[name])
	}
	return ordered
}

// ScoredCount returns the number of sections that take part in the overall score.
func (r *Report) ScoredCount() int {
	count := 0
	for name := range r.Sections {
		if !IsSentinel(name) {
			count++
		}
	}
	return count
}

// UpdateOverallScore sets OverallScore to the mean score of all non-sentinel sections.
func (r *Report) UpdateOverallScore() float64 {
	total := 0.0
	count := 0
	for name, section := range r.Sections {
		if IsSentinel(name) {
			continue
		}
		total += section.Score
		count++
	}

	r.OverallScore = total / float64(max(count, 1))
	return r.OverallScore
}
