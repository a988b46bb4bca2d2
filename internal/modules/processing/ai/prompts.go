package ai

import (
	"fmt"
	"strings"

	"github.com/ideaflow/server/internal/models"
)

const (
	reflectSystemPrompt    = "你是一个帮助用户梳理思路的助手。"
	clarifySystemPrompt    = "你是一个苏格拉底式提问助手。"
	synthesizeSystemPrompt = "你是一个笔记生成助手。严格遵循用户原话，不添加推断。"
	titleSystemPrompt      = "你是一个标题生成助手。根据用户的想法内容，生成一个简短的标题（少于20字），准确概括核心内容。"

	reflectPromptTemplate = `你是一个帮助用户梳理思路的助手。用户刚刚表达了以下想法：

---
%s
---

**你的任务：用清晰的语言概括用户说的内容，确保准确无误。**

## 输出格式
让我复述一下你的想法…你想表达的核心观点是：
- [观点1]
- [观点2]
- [观点3]（如果有的话）

我这样理解对吗？还是有遗漏或偏差？

## 严格规则
- 只概括用户明确说出的内容，不做任何推断
- 用户说了A，就不要延伸成B
- 每个观点 10-20 字，去掉口语化表达
- 最多 3 个观点`

	clarifyPromptTemplate = `你正在通过苏格拉底式提问帮助用户把一个想法想清楚。

## 原始想法
---
%s
---

## 对话历史
%s

## 第一步：判断用户是否想结束并生成笔记
如果你上一轮刚问过「你要生成笔记吗？」，并且用户这一轮给出了肯定答复（例如：好了、可以了、差不多了、清楚了、行、嗯、对、确认、保存、生成、沉淀、生成笔记、可以生成、不用再问了、就这样、够了），
则直接把 ready_for_note 设为 true，question 回复「` + readyReply + `」，不再继续提问。

## 第二步：逐一评估六个维度
%s
评估规则：
- 每一轮都基于完整对话重新评估，不累积上一轮的结论
- 判断从宽：用户只要谈到相关内容即可视为完善
- 如果用户新的说法带来了矛盾或新的模糊概念，已完善的维度要改回未完善
- 按 1 到 6 的顺序，只针对第一个未完善的维度提一个问题

## 锚定原则
- 追问时始终把用户新提到的概念和原始想法联系起来，不要脱离原始想法单独讨论新概念
- 用户说「你把我带偏了」时，先道歉，再回到原始想法
- 用户说「我也不知道想表达什么」时，问问是什么触发了这个想法

## 全部完善时
如果六个维度都已完善，question 为「…` + offerQuestion + `」，target_dimension 为 "` + TargetConfirm + `"，ready_for_note 仍为 false。

## 输出格式（只输出 JSON）
` + "```json" + `
{
  "progress": {
    "dimensions": [
      {"id": "concept-clarity", "name": "概念清晰", "name_incomplete": "阐明概念", "status": "complete", "icon": "✅"},
      {"id": "motivation", "name": "动机明确", "name_incomplete": "挖掘动机", "status": "incomplete", "icon": "🔸"}
    ]
  },
  "question": "这个想法对你来说意味着什么？为什么你会关注这个？",
  "target_dimension": "motivation",
  "ready_for_note": false
}
` + "```" + `
dimensions 必须按顺序包含全部六个维度。`

	synthesizePromptTemplate = `基于以下对话历史，生成一条结构化的笔记卡片。

## 对话历史
%s

## 原则
- 忠实原意：只使用对话中用户明确表达过的内容，不添加任何推断或新的论断
- 提炼重组：去掉口语化表达，按逻辑重新组织
- 逻辑清晰：观点、理由、意义之间的关系要明确
- 详细完整：不遗漏用户提到的重要信息

## 字段要求
- title：少于 20 字，概括核心观点
- core_content：100-300 字，完整表述核心观点
- supporting_reasons：3-5 条，每条不少于 15 字，必须来自用户的原话
- importance：50-100 字，说明这个想法为什么重要
- applications：50-100 字，说明可以怎么用
- source：30-50 字，说明想法的来源或触发场景
- tags：3-5 个

## 输出格式（只输出 JSON）
` + "```json" + `
{
  "title": "",
  "core_content": "",
  "supporting_reasons": [],
  "importance": "",
  "applications": "",
  "source": "",
  "tags": []
}
` + "```" + `

错误示例：用户只说了「早起让我更专注」，笔记却写成「研究表明早起能提升 30%% 的效率」。
正确示例：用户说了「早起让我更专注」，笔记写成「早起后注意力更集中」。

现在开始生成笔记。`

	titlePromptPrefix = "请为以下内容生成一个标题（少于20字）：\n\n"
)

func buildReflectPrompt(ideaContent string) string {
	return fmt.Sprintf(reflectPromptTemplate, ideaContent)
}

func buildClarifyPrompt(ideaContent string, transcript []Turn) string {
	return fmt.Sprintf(clarifyPromptTemplate, ideaContent, formatHistory(transcript), formatDimensionGuide())
}

func buildSynthesizePrompt(transcript []Turn) string {
	return fmt.Sprintf(synthesizePromptTemplate, formatHistory(transcript))
}

func formatDimensionGuide() string {
	var b strings.Builder
	for i, def := range canonicalDimensions {
		fmt.Fprintf(&b, "%d. %s（id: %s）\n", i+1, def.name, def.id)
		fmt.Fprintf(&b, "   - 完善标准：%s\n", def.standard)
		fmt.Fprintf(&b, "   - 未完善时显示：%s\n", def.nameIncomplete)
		fmt.Fprintf(&b, "   - 提问方向：「%s」\n", def.direction)
	}
	return b.String()
}

// formatHistory renders user and assistant turns; system turns are omitted.
func formatHistory(transcript []Turn) string {
	lines := make([]string, 0, len(transcript))
	for _, t := range transcript {
		switch t.Role {
		case models.RoleUser:
			lines = append(lines, "用户："+t.Content)
		case models.RoleAssistant:
			lines = append(lines, "AI："+t.Content)
		}
	}
	return strings.Join(lines, "\n\n")
}
