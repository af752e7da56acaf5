// Package configform provides the interactive auto-responder settings
// form.
package configform

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/mailtriage/internal/model"
)

const (
	scopeCustom = "custom"
	maxWait     = 60
	formWidth   = 72
)

// Values holds the editable auto-response settings as form fields.
type Values struct {
	Enabled   bool
	Scope     string
	Custom    []string
	Wait      string
	Signature string
	Style     string
	Mode      string
}

// ValuesFrom fills the form fields from cfg. A category list matching a
// preset selects that preset; anything else is a custom selection.
func ValuesFrom(cfg model.AutoResponseConfig) Values {
	v := Values{
		Enabled:   cfg.Enabled,
		Scope:     scopeCustom,
		Custom:    slices.Clone(cfg.Categories),
		Wait:      strconv.Itoa(cfg.WaitMinutes),
		Signature: cfg.SignatureName,
		Style:     cfg.StyleInstructions,
		Mode:      cfg.Mode,
	}
	if v.Mode == "" {
		v.Mode = model.ModeSend
	}
	for _, scope := range []string{model.ScopePriority, model.ScopePriorityMain, model.ScopeAll} {
		preset, _ := model.ScopeCategories(scope)
		if slices.Equal(preset, cfg.Categories) {
			v.Scope = scope
			v.Custom = nil
			break
		}
	}
	return v
}

// Apply validates the fields and writes them into cfg.
func (v Values) Apply(cfg *model.AutoResponseConfig) error {
	if err := validateWait(v.Wait); err != nil {
		return err
	}
	wait, _ := strconv.Atoi(strings.TrimSpace(v.Wait))

	var categories []string
	if v.Scope == scopeCustom {
		if len(v.Custom) == 0 {
			return fmt.Errorf("select at least one category")
		}
		categories = slices.Clone(v.Custom)
	} else {
		var err error
		if categories, err = model.ScopeCategories(v.Scope); err != nil {
			return err
		}
	}

	next := *cfg
	next.Enabled = v.Enabled
	next.Categories = categories
	next.WaitMinutes = wait
	next.SignatureName = strings.TrimSpace(v.Signature)
	next.StyleInstructions = strings.TrimSpace(v.Style)
	next.Mode = v.Mode
	if err := next.Validate(); err != nil {
		return err
	}
	*cfg = next
	return nil
}

// New builds the settings form bound to v.
func New(v *Values) *huh.Form {
	categoryOptions := make([]huh.Option[string], 0, len(model.Categories()))
	for _, cat := range model.Categories() {
		categoryOptions = append(categoryOptions, huh.NewOption(cat.DisplayName(), string(cat)))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Auto-respond").
				Description("Reply automatically to messages in the selected categories").
				Affirmative("Enabled").
				Negative("Disabled").
				Value(&v.Enabled),
			huh.NewSelect[string]().
				Title("Respond to").
				Options(
					huh.NewOption("Priority only", model.ScopePriority),
					huh.NewOption("Priority and Primary", model.ScopePriorityMain),
					huh.NewOption("All categories", model.ScopeAll),
					huh.NewOption("Choose categories", scopeCustom),
				).
				Value(&v.Scope),
		),
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Categories").
				Options(categoryOptions...).
				Value(&v.Custom).
				Validate(func(s []string) error {
					if len(s) == 0 {
						return fmt.Errorf("select at least one category")
					}
					return nil
				}),
		).WithHideFunc(func() bool { return v.Scope != scopeCustom }),
		huh.NewGroup(
			huh.NewInput().
				Title("Wait before replying").
				Description(fmt.Sprintf("Minutes, 0 to %d", maxWait)).
				Placeholder("5").
				Value(&v.Wait).
				Validate(validateWait),
			huh.NewSelect[string]().
				Title("Delivery").
				Options(
					huh.NewOption("Send the reply", model.ModeSend),
					huh.NewOption("Save as draft", model.ModeDraft),
				).
				Value(&v.Mode),
			huh.NewInput().
				Title("Signature name").
				Placeholder("Your Name").
				Value(&v.Signature).
				Validate(validateRequired("Signature name")),
			huh.NewText().
				Title("Style instructions").
				Description("Optional guidance for generated replies").
				Value(&v.Style),
		),
	).WithWidth(formWidth)
}

// Run shows the form for cfg.AutoResponse, applies the result and saves
// the config to path. It returns huh.ErrUserAborted when cancelled.
func Run(path string, cfg *model.AppConfig) error {
	v := ValuesFrom(cfg.AutoResponse)
	if err := New(&v).Run(); err != nil {
		return err
	}
	if err := v.Apply(&cfg.AutoResponse); err != nil {
		return err
	}
	return model.SaveConfig(path, cfg)
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateWait(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("wait must be a whole number of minutes")
	}
	if n < 0 || n > maxWait {
		return fmt.Errorf("wait must be between 0 and %d minutes", maxWait)
	}
	return nil
}
