// Package templates renders the server's HTML fragments as templ components.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// PreviewRow is one row position of a preview: either decoded values or an error.
type PreviewRow struct {
	Line   int
	Values []string
	Error  string
	Code   string
}

// PreviewData is everything the preview page shows.
type PreviewData struct {
	TableKey  string
	Label     string
	Columns   []string
	Rows      []PreviewRow
	Decoded   int
	Failed    int
	Truncated bool // more rows follow the ones shown
}

// Preview renders a table of the first decoded rows of an upload.
func Preview(data PreviewData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		esc := templ.EscapeString[string]

		fmt.Fprintf(&b, `<section class="preview" data-table="%s">`, esc(data.TableKey))
		fmt.Fprintf(&b, `<h2>%s</h2>`, esc(data.Label))
		fmt.Fprintf(&b, `<p class="summary">%d decoded, %d failed`, data.Decoded, data.Failed)
		if data.Truncated {
			b.WriteString(`, more rows not shown`)
		}
		b.WriteString(`</p><table><thead><tr><th>Line</th>`)
		for _, col := range data.Columns {
			fmt.Fprintf(&b, `<th>%s</th>`, esc(col))
		}
		b.WriteString(`</tr></thead><tbody>`)

		for _, row := range data.Rows {
			if row.Error != "" {
				fmt.Fprintf(&b, `<tr class="error"><td>%d</td><td colspan="%d">%s <code>%s</code></td></tr>`,
					row.Line, max(len(data.Columns), 1), esc(row.Error), esc(row.Code))
				continue
			}
			fmt.Fprintf(&b, `<tr><td>%d</td>`, row.Line)
			for _, v := range row.Values {
				fmt.Fprintf(&b, `<td>%s</td>`, esc(v))
			}
			b.WriteString(`</tr>`)
		}
		b.WriteString(`</tbody></table></section>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ErrorAlert renders a user-facing error with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert alert-error" role="alert">`)
		fmt.Fprintf(&b, `<p class="message">%s</p>`, templ.EscapeString(message))
		if action != "" {
			fmt.Fprintf(&b, `<p class="action">%s</p>`, templ.EscapeString(action))
		}
		fmt.Fprintf(&b, `<p class="code">Code: %s</p></div>`, templ.EscapeString(code))
		_, err := io.WriteString(w, b.String())
		return err
	})
}
