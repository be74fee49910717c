// Package templates holds the HTML fragments returned to HTMX requests.
package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// ErrorAlert renders a dismissible error box with an optional suggested
// action and the error code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var html string
		html += `<div class="alert alert-error" role="alert">`
		html += `<p class="alert-message">` + templ.EscapeString(message) + `</p>`
		if action != "" {
			html += `<p class="alert-action">` + templ.EscapeString(action) + `</p>`
		}
		html += `<p class="alert-code">Code: ` + templ.EscapeString(code) + `</p>`
		html += `<button type="button" class="alert-close" onclick="this.parentElement.remove()">Dismiss</button>`
		html += `</div>`
		_, err := io.WriteString(w, html)
		return err
	})
}

// Notice renders a success message, with one line per warning.
func Notice(message string, warnings []string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		html := `<div class="alert alert-success" role="status"><p>` + templ.EscapeString(message) + `</p>`
		if len(warnings) > 0 {
			html += `<ul class="alert-warnings">`
			for _, warn := range warnings {
				html += `<li>` + templ.EscapeString(warn) + `</li>`
			}
			html += `</ul>`
		}
		html += `</div>`
		_, err := io.WriteString(w, html)
		return err
	})
}
