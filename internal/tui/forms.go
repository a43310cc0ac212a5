package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/daybook/internal/forum"
	"github.com/julianstephens/daybook/internal/utils"
)

func notBlank(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", what)
		}
		return nil
	}
}

// NewNameForm edits a single name, as used by to-dos and habits.
func NewNameForm(title string, f *formFields) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Value(&f.Title).
				Validate(notBlank("name")),
		),
	).WithTheme(huh.ThemeDracula())
}

// NewWritingForm asks for a title and a markdown body.
func NewWritingForm(heading string, f *formFields) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(heading).
				Placeholder("Title").
				Value(&f.Title).
				Validate(notBlank("title")),
			huh.NewText().
				Title("Content").
				Description("Markdown is supported").
				Value(&f.Body).
				Validate(notBlank("content")),
		),
	).WithTheme(huh.ThemeDracula())
}

func NewCommentForm(f *formFields) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Comment").
				Value(&f.Body).
				Validate(notBlank("comment")),
		),
	).WithTheme(huh.ThemeDracula())
}

func NewConfirmForm(prompt string, f *formFields) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(prompt).
				Affirmative("Delete").
				Negative("Cancel").
				Value(&f.Confirm),
		),
	).WithTheme(huh.ThemeDracula())
}

// NewCommentPicker selects one of comments for deletion.
func NewCommentPicker(comments []forum.CommentView, f *formFields) *huh.Form {
	opts := make([]huh.Option[string], 0, len(comments))
	for i, c := range comments {
		content := c.Content
		if r := []rune(content); len(r) > 40 {
			content = string(r[:40]) + "…"
		}
		label := fmt.Sprintf("%d. %s (%s): %s", i+1, c.Author, utils.Ago(c.CreatedAt), content)
		opts = append(opts, huh.NewOption(label, c.ID))
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Delete which comment?").
				Options(opts...).
				Value(&f.Choice),
		),
	).WithTheme(huh.ThemeDracula())
}
