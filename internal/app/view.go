package app

import (
	"career-compass/internal/aggregator"
	"career-compass/internal/chat"
	"career-compass/internal/constants"
	"career-compass/internal/wizard"
)

// ChatState 聊天记录和是否在等待回复
type ChatState struct {
	Turns      []chat.Turn `json:"turns"`
	Responding bool        `json:"responding"`
}

// Options 问卷各题的可选项
type Options struct {
	Personalities    []string `json:"personalities"`
	CareerValues     []string `json:"career_values"`
	CareerValueCap   int      `json:"career_value_cap"`
	ExperienceLevels []string `json:"experience_levels"`
	EducationLevels  []string `json:"education_levels"`
	TechnicalSkills  []string `json:"technical_skills"`
	SoftSkills       []string `json:"soft_skills"`
	Industries       []string `json:"industries"`
	IndustryCap      int      `json:"industry_cap"`
	TeamSizes        []string `json:"team_sizes"`
}

// ViewModel 前端渲染所需的全部状态
type ViewModel struct {
	View    View             `json:"view"`
	Name    string           `json:"name,omitempty"`
	Wizard  *wizard.State    `json:"wizard,omitempty"`
	Options *Options         `json:"options,omitempty"`
	Result  *aggregator.View `json:"result,omitempty"`
	Chat    *ChatState       `json:"chat,omitempty"`
}

func optionsFor(caps wizard.Caps) *Options {
	return &Options{
		Personalities:    constants.PersonalityOptions,
		CareerValues:     constants.CareerValueOptions,
		CareerValueCap:   caps.CareerValues,
		ExperienceLevels: constants.ExperienceLevels,
		EducationLevels:  constants.EducationLevels,
		TechnicalSkills:  constants.TechnicalSkillOptions,
		SoftSkills:       constants.SoftSkillOptions,
		Industries:       constants.IndustryOptions,
		IndustryCap:      caps.Industries,
		TeamSizes:        constants.TeamSizes,
	}
}

// State 当前视图模型
func (a *App) State() ViewModel {
	a.mu.Lock()
	view := a.view
	vm := ViewModel{View: view}
	if a.sess != nil {
		vm.Name = a.sess.Name
	}
	w, agg, c := a.wizard, a.agg, a.chat
	a.mu.Unlock()

	switch view {
	case ViewWizard:
		st := w.State()
		vm.Wizard = &st
		vm.Options = optionsFor(w.Caps())
	case ViewResult:
		rv := agg.Snapshot()
		vm.Result = &rv
		vm.Chat = &ChatState{Turns: c.Transcript(), Responding: c.Responding()}
	}
	return vm
}
