package ux

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/charmbracelet/huh"
)

// ErrAborted is returned when the user cancels a form.
var ErrAborted = huh.ErrUserAborted

// Credentials prompts for any of email and password that are empty.
func Credentials(ctx context.Context, email, password *string) error {
	var fields []huh.Field
	if *email == "" {
		fields = append(fields, huh.NewInput().
			Title("Email").
			Value(email).
			Validate(validateEmail))
	}
	if *password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(password).
			Validate(required("password")))
	}
	if len(fields) == 0 {
		return nil
	}
	return huh.NewForm(huh.NewGroup(fields...)).RunWithContext(ctx)
}

// ProfileNames prompts for first and last name, prefilled with the
// current values.
func ProfileNames(ctx context.Context, first, last *string) error {
	form := huh.NewForm(huh.NewGroup(
		huh.NewNote().Title("Complete your profile").Description("At least one name is required."),
		huh.NewInput().Title("First name").Value(first),
		huh.NewInput().Title("Last name").Value(last).
			Validate(func(string) error {
				if strings.TrimSpace(*first) == "" && strings.TrimSpace(*last) == "" {
					return fmt.Errorf("enter a first or last name")
				}
				return nil
			}),
	))
	return form.RunWithContext(ctx)
}

// TaskFields prompts for a new task's title and priority.
func TaskFields(ctx context.Context, title, priority *string) error {
	if *priority == "" {
		*priority = "medium"
	}
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Title").Value(title).Validate(required("title")),
		huh.NewSelect[string]().
			Title("Priority").
			Options(huh.NewOptions("low", "medium", "high")...).
			Value(priority),
	))
	return form.RunWithContext(ctx)
}

// Confirm asks a yes/no question.
func Confirm(ctx context.Context, title string) (bool, error) {
	var ok bool
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(title).Affirmative("Yes").Negative("No").Value(&ok),
	)).RunWithContext(ctx)
	return ok, err
}

func validateEmail(v string) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(v)); err != nil {
		return fmt.Errorf("enter a valid email address")
	}
	return nil
}

func required(name string) func(string) error {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}
