// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package persona defines the assistant's identity: the hidden system turn
// prepended to every request, the greeting that opens a conversation, the
// header text and the quick suggestion chips.
package persona

import "strings"

// MaxSuggestions is the number of suggestion chips the UI can bind to keys.
const MaxSuggestions = 4

// Persona is the assistant identity shown to the user and sent to the model.
type Persona struct {
	Name         string   `toml:"name" json:"name"`
	Subtitle     string   `toml:"subtitle" json:"subtitle"`
	SystemPrompt string   `toml:"system_prompt" json:"system_prompt"`
	Greeting     string   `toml:"greeting" json:"greeting"`
	Placeholder  string   `toml:"placeholder" json:"placeholder"`
	Suggestions  []string `toml:"suggestions" json:"suggestions"`
}

// defaultSystemPrompt asks the model to introduce itself by name and credit
// its developer when asked who it is.
const defaultSystemPrompt = `你是由陈真同学开发的全知全能的“小智1.0”。
  
  你的核心设定：
  1. 开发者：陈真同学。
  2. 定位：专门为期末周复习准备的AI助手，全知全能，永久免费。
  3. 性格：专业、耐心、鼓励性强，像一位学霸学长/学姐。
  4. 目标：帮助用户高效复习，解答学术难题，缓解考试焦虑，制定复习计划。
  
  在回答时，请保持条理清晰，重点突出，适合备考复习。如果用户问你是谁，请自豪地介绍自己是陈真同学开发的小智1.0。`

const defaultGreeting = "同学你好！👋 我是由**陈真同学**开发的全知全能的**小智1.0**。\n\n" +
	"期末周到了，别慌！无论是知识点梳理、重点预测，还是复习计划制定，我都免费为你服务。我们从哪一科开始复习？"

// Default returns the built-in study-assistant persona, 小智1.0.
func Default() Persona {
	return Persona{
		Name:         "小智 1.0",
		Subtitle:     "陈真同学开发 · 期末复习神器",
		SystemPrompt: defaultSystemPrompt,
		Greeting:     defaultGreeting,
		Placeholder:  "问问小智关于期末复习的问题...",
		Suggestions: []string{
			"帮我制定三天复习计划",
			"解释一下这个概念...",
			"帮我总结本章考点",
			"我好焦虑，求安慰",
		},
	}
}

// Merge returns p with every empty field filled from base.
func (p Persona) Merge(base Persona) Persona {
	out := p
	if strings.TrimSpace(out.Name) == "" {
		out.Name = base.Name
	}
	if strings.TrimSpace(out.Subtitle) == "" {
		out.Subtitle = base.Subtitle
	}
	if strings.TrimSpace(out.SystemPrompt) == "" {
		out.SystemPrompt = base.SystemPrompt
	}
	if strings.TrimSpace(out.Greeting) == "" {
		out.Greeting = base.Greeting
	}
	if strings.TrimSpace(out.Placeholder) == "" {
		out.Placeholder = base.Placeholder
	}
	if len(out.Suggestions) == 0 {
		out.Suggestions = append([]string(nil), base.Suggestions...)
	}
	return out
}

// Chips returns the non-blank suggestions, at most MaxSuggestions of them.
func (p Persona) Chips() []string {
	chips := make([]string, 0, MaxSuggestions)
	for _, s := range p.Suggestions {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		chips = append(chips, s)
		if len(chips) == MaxSuggestions {
			break
		}
	}
	return chips
}
