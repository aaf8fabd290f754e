package ux

import (
	"strings"

	"github.com/felixgeelhaar/tasksync/internal/errors"
)

// hints adds a suggestion to uncoded errors whose text points at a common
// cause.
var hints = []struct {
	match      []string
	suggestion string
}{
	{[]string{"connection refused", "no such host", "no route to host"}, "Check backend.url and your network connection"},
	{[]string{"context deadline exceeded", "Client.Timeout"}, "The server took too long to answer; raise http.timeout or try again"},
	{[]string{"permission denied"}, "Check the permissions of the TaskSync config directory"},
}

// EnhanceError attaches a suggestion to err when it has none.
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}
	var coded *errors.Error
	if errors.As(err, &coded) && len(coded.Suggestions) > 0 {
		return err
	}

	msg := err.Error()
	for _, h := range hints {
		for _, m := range h.match {
			if strings.Contains(msg, m) {
				if coded != nil {
					return errors.Wrap(coded.Code, coded.Message, coded.Cause).WithSuggestion(h.suggestion)
				}
				return errors.Wrap(errors.ErrorCode(""), msg, nil).WithSuggestion(h.suggestion)
			}
		}
	}
	return err
}

// RenderError formats err for stderr: the message, the cause in muted
// text when verbose, then suggestions.
func RenderError(s Styles, err error, verbose bool) string {
	err = EnhanceError(err)

	var coded *errors.Error
	if !errors.As(err, &coded) {
		return s.Error.Render("Error: ") + err.Error()
	}

	var b strings.Builder
	b.WriteString(s.Error.Render("Error: "))
	if coded.Code != "" {
		b.WriteString(s.Muted.Render("["+string(coded.Code)+"] "))
	}
	b.WriteString(coded.Message)
	if verbose && coded.Cause != nil {
		b.WriteString("\n" + s.Muted.Render("  caused by: "+coded.Cause.Error()))
	}
	for _, sug := range coded.Suggestions {
		b.WriteString("\n  " + s.Label.Render("→ ") + sug)
	}
	return b.String()
}
