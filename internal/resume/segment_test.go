package resume

import (
	"reflect"
	"strings"
	"testing"
)

const headedResume = `张三
求职意向：后端开发

基本信息
电话：138-0000-0000
邮箱：zhangsan@example.com

教育背景
2015-2019 北京大学 计算机科学 本科

工作经验
2019-至今 某科技公司 后端工程师
负责订单系统重构

专业技能
Go / Kubernetes / PostgreSQL
`

func TestSegmentErrorSentinel(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"",
		"文字识别失败，请确保：\n1. 图片格式正确",
		"PDF处理失败: 缺少必要的依赖。",
	} {
		sections := Segment(text)
		if len(sections) != 1 {
			t.Fatalf("expected exactly one section for %q, got %d", text, len(sections))
		}

		s, ok := sections[SectionError]
		if !ok {
			t.Fatalf("expected %q section for %q, got %v", SectionError, text, OrderedNames(sections))
		}
		if s.Content != text {
			t.Fatalf("expected raw text to be kept, got %q", s.Content)
		}
		if !reflect.DeepEqual(s.Suggestions, []string{errorSuggestion}) {
			t.Fatalf("unexpected suggestions: %v", s.Suggestions)
		}
		if s.Score != 0 {
			t.Fatalf("expected zero score, got %v", s.Score)
		}
	}
}

func TestSegmentByHeadings(t *testing.T) {
	t.Parallel()

	sections := Segment(headedResume)

	want := map[string]string{
		SectionOther:      "张三\n求职意向：后端开发",
		SectionContact:    "电话：138-0000-0000\n邮箱：zhangsan@example.com",
		SectionEducation:  "2015-2019 北京大学 计算机科学 本科",
		SectionExperience: "2019-至今 某科技公司 后端工程师\n负责订单系统重构",
		SectionSkills:     "Go / Kubernetes / PostgreSQL",
	}

	if len(sections) != len(want) {
		t.Fatalf("expected %d sections, got %v", len(want), OrderedNames(sections))
	}

	for name, content := range want {
		s, ok := sections[name]
		if !ok {
			t.Fatalf("missing section %q", name)
		}
		if s.Content != content {
			t.Fatalf("section %q: expected %q, got %q", name, content, s.Content)
		}
		if s.Name != name {
			t.Fatalf("section %q carries name %q", name, s.Name)
		}
		if s.Score != 0 || len(s.Suggestions) != 0 || len(s.Highlights) != 0 {
			t.Fatalf("section %q must start unscored: %+v", name, s)
		}
	}
}

func TestSegmentKeepsEveryContentLine(t *testing.T) {
	t.Parallel()

	inputs := []string{
		headedResume,
		"教育背景\n清华大学\n工作经历\nA公司\n教育经历\n研究生 复旦大学\n技能证书\nCET-6",
		"Education:\nMIT, BSc\n\nWork Experience\nAcme Corp, engineer\nSkills\nGo, Rust",
		"intro line\n  \n技术技能\n\n\tGo  \n",
	}

	for _, input := range inputs {
		sections := Segment(input)

		var collected []string
		for _, s := range sections {
			collected = append(collected, nonBlankLines(s.Content)...)
		}

		for _, line := range nonBlankLines(input) {
			if matchHeading(line) != "" {
				continue
			}
			if !containsLine(collected, line) {
				t.Fatalf("line %q lost while segmenting %q", line, input)
			}
		}
	}
}

func TestSegmentRepeatedCategoryAppends(t *testing.T) {
	t.Parallel()

	sections := Segment("工作经验\nA公司\n技能特长\nGo\n项目经验\n订单系统")

	if got := sections[SectionExperience].Content; got != "A公司\n订单系统" {
		t.Fatalf("expected repeated category to append, got %q", got)
	}
	if got := sections[SectionSkills].Content; got != "Go" {
		t.Fatalf("unexpected skills content %q", got)
	}
}

func TestSegmentSameHeadingTwiceKeepsBuffer(t *testing.T) {
	t.Parallel()

	sections := Segment("工作经验\nA公司\n工作经历\nB公司")
	if len(sections) != 1 {
		t.Fatalf("expected one section, got %v", OrderedNames(sections))
	}
	if got := sections[SectionExperience].Content; got != "A公司\nB公司" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestSegmentTableOrderWinsTies(t *testing.T) {
	t.Parallel()

	// The heading mentions both education and skills keywords.
	sections := Segment("技能特长与教育背景\n北京大学")
	if _, ok := sections[SectionEducation]; !ok {
		t.Fatalf("expected education to win, got %v", OrderedNames(sections))
	}
}

func TestSegmentEmptyIntermediateSection(t *testing.T) {
	t.Parallel()

	sections := Segment("教育背景\n工作经验\nA公司\n专业技能")

	edu, ok := sections[SectionEducation]
	if !ok {
		t.Fatalf("expected an empty education section")
	}
	if edu.Content != "" {
		t.Fatalf("expected empty content, got %q", edu.Content)
	}
	if _, ok := sections[SectionSkills]; ok {
		t.Fatalf("trailing heading without content must not create a section")
	}
}

func TestSegmentEnglishHeadingsMatchWholeLinesOnly(t *testing.T) {
	t.Parallel()

	sections := Segment("EDUCATION:\nStanford University\nExperience\nI have experience with Go\nSkills\nGo")

	if got := sections[SectionExperience].Content; got != "I have experience with Go" {
		t.Fatalf("sentence mentioning experience must stay content, got %q", got)
	}
	if got := sections[SectionEducation].Content; got != "Stanford University" {
		t.Fatalf("unexpected education content %q", got)
	}
}

func TestSegmentSmartSplit(t *testing.T) {
	t.Parallel()

	text := "电话：123\n邮箱：a@b.c\n\n北京大学 本科\n\n熟练使用 Go\n\n爱好：长跑"
	sections := Segment(text)

	want := map[string]string{
		SectionContact:   "电话：123\n邮箱：a@b.c",
		SectionEducation: "北京大学 本科",
		SectionSkills:    "熟练使用 Go",
		SectionOther:     "爱好：长跑",
	}

	if len(sections) != len(want) {
		t.Fatalf("expected %d sections, got %v", len(want), OrderedNames(sections))
	}
	for name, content := range want {
		if got := sections[name].Content; got != content {
			t.Fatalf("section %q: expected %q, got %q", name, content, got)
		}
	}
}

func TestSegmentSmartSplitLaterBlockOverwrites(t *testing.T) {
	t.Parallel()

	sections := Segment("A公司 实习\n\nB公司 全职")
	if len(sections) != 1 {
		t.Fatalf("expected a single section, got %v", OrderedNames(sections))
	}
	if got := sections[SectionExperience].Content; got != "B公司 全职" {
		t.Fatalf("expected the later block to win, got %q", got)
	}
}

func TestSegmentUnclassified(t *testing.T) {
	t.Parallel()

	text := " \n\t\n  "
	sections := Segment(text)

	s, ok := sections[SectionUnclassified]
	if !ok || len(sections) != 1 {
		t.Fatalf("expected single unclassified section, got %v", OrderedNames(sections))
	}
	if s.Content != text {
		t.Fatalf("expected whole text to be kept")
	}
	if len(s.Suggestions) != len(unclassifiedSuggestions) {
		t.Fatalf("unexpected suggestions: %v", s.Suggestions)
	}

	s.Suggestions[0] = "changed"
	if unclassifiedSuggestions[0] == "changed" {
		t.Fatalf("suggestions must not alias the package defaults")
	}
}

func TestGuessSectionType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		block string
		want  string
	}{
		{block: "Email: me@example.com", want: SectionContact},
		{block: "大学 工作", want: SectionEducation},
		{block: "项目：支付网关", want: SectionExperience},
		{block: "证书：PMP", want: SectionSkills},
		{block: "爱好：围棋", want: SectionOther},
	}

	for _, tt := range tests {
		if got := guessSectionType(tt.block); got != tt.want {
			t.Fatalf("guessSectionType(%q) = %q, want %q", tt.block, got, tt.want)
		}
	}
}

func containsLine(lines []string, target string) bool {
	for _, line := range lines {
		if strings.TrimSpace(line) == target {
			return true
		}
	}
	return false
}
