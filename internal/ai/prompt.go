package ai

import (
	"strings"

	_ "embed"

	"github.com/spigell/resume-analyzer/internal/resume"
)

// SystemPrompt is sent as the system message of every analysis request.
const SystemPrompt = "你是一位专业的HR和简历分析专家，请帮助分析简历并给出专业的建议。"

const genericInstruction = "请分析以下简历内容："

//go:embed prompt.md
var promptTemplate string

var sectionInstructions = map[string]string{
	resume.SectionContact:    "请分析以下简历基本信息部分，给出改进建议：",
	resume.SectionEducation:  "请分析以下教育背景，评估其优劣势并给出建议：",
	resume.SectionExperience: "请分析以下工作经验，给出如何更好展示的建议：",
	resume.SectionSkills:     "请分析以下技能特长，并给出改进建议：",
}

// BuildPrompt returns the user prompt asking to score one section.
func BuildPrompt(section, content string) string {
	instruction, ok := sectionInstructions[section]
	if !ok {
		instruction = genericInstruction
	}

	template := strings.TrimSpace(promptTemplate)
	if template == "" {
		template = "{{SECTION_INSTRUCTION}}\n\n{{CONTENT}}\n\n请给出：\n1. 评分（0-100）\n2. 具体改进建议（至少3条）\n3. 亮点分析"
	}

	prompt := strings.ReplaceAll(template, "{{SECTION_INSTRUCTION}}", instruction)
	return strings.ReplaceAll(prompt, "{{CONTENT}}", content)
}
