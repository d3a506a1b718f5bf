package resume

import (
	"strings"
)

const errorSuggestion = "请上传清晰的简历图片"

var unclassifiedSuggestions = []string{
	"无法识别简历结构，建议：",
	"1. 确保简历包含清晰的标题（如：基本信息、教育背景等）",
	"2. 检查图片是否清晰完整",
	"3. 调整图片方向确保文字正向",
}

type headingRule struct {
	section string
	// keywords match anywhere in a line.
	keywords []string
	// titles match a whole line once case and trailing colons are dropped.
	titles []string
}

var headingRules = []headingRule{
	{
		section:  SectionContact,
		keywords: []string{"基本信息", "个人信息", "个人资料", "简历信息", "联系方式"},
		titles:   []string{"contact", "contacts", "contact information", "contact info", "personal information", "personal details"},
	},
	{
		section:  SectionEducation,
		keywords: []string{"教育背景", "教育经历", "学习经历", "教育信息", "学历信息"},
		titles:   []string{"education", "education background", "academic background"},
	},
	{
		section:  SectionExperience,
		keywords: []string{"工作经验", "工作经历", "项目经验", "实习经历", "工作情况"},
		titles:   []string{"experience", "work experience", "professional experience", "employment history", "projects", "internships"},
	},
	{
		section:  SectionSkills,
		keywords: []string{"技能特长", "专业技能", "技术技能", "个人技能", "技能证书"},
		titles:   []string{"skills", "technical skills", "skills and certificates", "certifications"},
	},
}

type guessRule struct {
	section string
	tokens  []string
}

// guessRules are checked in order; the first rule with a token in the block wins.
var guessRules = []guessRule{
	{section: SectionContact, tokens: []string{"电话", "邮箱", "地址", "性别", "年龄", "phone", "email", "e-mail", "address"}},
	{section: SectionEducation, tokens: []string{"大学", "学校", "专业", "学历", "university", "college", "bachelor", "master", "degree"}},
	{section: SectionExperience, tokens: []string{"公司", "工作", "职位", "项目", "company", "project", "position", "responsible for"}},
	{section: SectionSkills, tokens: []string{"技能", "证书", "语言", "熟练", "skill", "certificate", "language", "proficient"}},
}

// Segment partitions extracted résumé text into named sections.
//
// Headings are recognized by keyword. Without any heading the text is split
// into blank-line separated blocks whose type is guessed from their content;
// several blocks guessed as the same type keep only the last one. Failed
// extractions produce a single SectionError and unrecognizable text a single
// SectionUnclassified.
func Segment(text string) map[string]*Section {
	sections := make(map[string]*Section)

	if text == "" || IsFailureText(text) {
		s := newSection(SectionError, text)
		s.Suggestions = []string{errorSuggestion}
		sections[SectionError] = s
		return sections
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")

	segmentByHeadings(text, sections)
	if len(sections) > 0 {
		return sections
	}

	blocks := splitBlocks(text)
	if len(blocks) > 0 {
		for _, block := range blocks {
			name := guessSectionType(block)
			sections[name] = newSection(name, block)
		}
		return sections
	}

	s := newSection(SectionUnclassified, text)
	s.Suggestions = append([]string(nil), unclassifiedSuggestions...)
	sections[SectionUnclassified] = s
	return sections
}

func segmentByHeadings(text string, sections map[string]*Section) {
	current := ""
	var buf []string

	for _, line := range nonBlankLines(text) {
		matched := matchHeading(line)
		if matched == "" {
			buf = append(buf, line)
			continue
		}

		if matched == current {
			continue
		}

		switch {
		case current != "":
			appendContent(sections, current, buf)
		case len(buf) > 0:
			// Lines above the first heading, usually a name or a short summary.
			appendContent(sections, SectionOther, buf)
		}

		current = matched
		buf = nil
	}

	if current != "" && len(buf) > 0 {
		appendContent(sections, current, buf)
	}
}

func appendContent(sections map[string]*Section, name string, lines []string) {
	content := strings.Join(lines, "\n")

	existing, ok := sections[name]
	if !ok {
		sections[name] = newSection(name, content)
		return
	}

	switch {
	case content == "":
	case existing.Content == "":
		existing.Content = content
	default:
		existing.Content += "\n" + content
	}
}

// matchHeading returns the section a heading line opens or an empty string.
func matchHeading(line string) string {
	lower := strings.ToLower(line)
	title := strings.TrimSpace(strings.TrimRight(lower, ":： "))

	for _, rule := range headingRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lower, keyword) {
				return rule.section
			}
		}
		for _, t := range rule.titles {
			if title == t {
				return rule.section
			}
		}
	}

	return ""
}

func nonBlankLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// splitBlocks splits text on blank lines. Lines inside a block are kept as is.
func splitBlocks(text string) []string {
	var blocks []string
	var current []string

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			current = append(current, line)
			continue
		}
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}

	if len(current) > 0 {
		blocks = append(blocks, strings.Join(current, "\n"))
	}

	return blocks
}

func guessSectionType(block string) string {
	lower := strings.ToLower(block)
	for _, rule := range guessRules {
		for _, token := range rule.tokens {
			if strings.Contains(lower, token) {
				return rule.section
			}
		}
	}
	return SectionOther
}
