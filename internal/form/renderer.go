// internal/form/renderer.go
//
// Intake – HTML renderer.
//
// Context
//   Render turns a FormDef plus the controller's View into accessible
//   markup.  The controller decides what is wrong; this file only decides
//   how it is announced:
//
//   •  View.Message goes into a role="alert" region with
//      aria-live="assertive", so screen readers speak it on re-render.
//   •  Each input gets id=Field.ID() and a <label for> pointing at it.  A
//      field in error also gets aria-invalid and aria-describedby pointing at
//      its Field.ErrorID() span.
//   •  Age is displayed next to the date of birth as read-only <output>.
//      It is never an input, so it can never be posted back.
//   •  The submit button is disabled while the controller is Submitting.
//
// Style
//   Output HTML is deliberately plain so themes can style via element
//   selectors or class hooks.  Each field is wrapped in
//   <div class="form-field">.
//
//------------------------------------------------------------------------------

package form

import (
	"bytes"
	"errors"
	"html"
	"html/template"
	"strconv"

	"github.com/yanizio/intake/internal/intake"
)

// StatusID is the element id of the assertive announcement region.
const StatusID = "form-status"

// AgeID is the element id of the derived age display.
const AgeID = "age-display"

// RenderOptions bundles the per-request inputs of Render.
type RenderOptions struct {
	Action    string      // form action URL
	CSRFToken string      // hidden csrf_token value
	View      intake.View // controller read model
}

// Render returns the HTML markup of fd filled from opts.View.
func Render(fd *FormDef, opts RenderOptions) (template.HTML, error) {
	if fd == nil {
		return "", errors.New("render: nil form definition")
	}
	v := opts.View

	var buf bytes.Buffer
	buf.WriteString(`<form class="intake-form" method="post" action="` + html.EscapeString(opts.Action) + `" novalidate`)
	if v.Loading {
		buf.WriteString(` aria-busy="true"`)
	}
	buf.WriteString(">\n")

	if fd.Title != "" {
		buf.WriteString(`<h1>` + html.EscapeString(fd.Title) + "</h1>\n")
	}

	// Always present so assistive tech registers the live region before it
	// receives text.
	buf.WriteString(`<div id="` + StatusID + `" class="form-status" role="alert" aria-live="assertive" aria-atomic="true">`)
	buf.WriteString(html.EscapeString(v.Message))
	buf.WriteString("</div>\n")

	for i := range fd.Fields {
		writeField(&buf, &fd.Fields[i], v)
	}

	buf.WriteString(`<input type="hidden" name="csrf_token" value="` + html.EscapeString(opts.CSRFToken) + `">` + "\n")

	buf.WriteString(`<button type="submit"`)
	if v.Loading {
		buf.WriteString(` disabled aria-disabled="true"`)
	}
	buf.WriteString(`>` + html.EscapeString(fd.Submit) + "</button>\n")
	buf.WriteString("</form>")

	return template.HTML(buf.String()), nil
}

// writeField emits one labelled input with its error slot.
func writeField(buf *bytes.Buffer, f *FieldDef, v intake.View) {
	id := f.Name.ID()
	errID := f.Name.ErrorID()
	msg, bad := v.FieldErrors[f.Name]

	buf.WriteString(`<div class="form-field">` + "\n")

	buf.WriteString(`<label for="` + id + `">` + html.EscapeString(f.Label))
	if f.Required {
		buf.WriteString(` <span class="required" aria-hidden="true">*</span>`)
	}
	buf.WriteString("</label>\n")

	buf.WriteString(`<input id="` + id + `" name="` + html.EscapeString(string(f.Name)) + `" type="` + f.Type + `"`)
	if val := v.Draft.Get(f.Name); val != "" {
		buf.WriteString(` value="` + html.EscapeString(val) + `"`)
	}
	if f.Placeholder != "" {
		buf.WriteString(` placeholder="` + html.EscapeString(f.Placeholder) + `"`)
	}
	if f.Autocomplete != "" {
		buf.WriteString(` autocomplete="` + html.EscapeString(f.Autocomplete) + `"`)
	}
	if f.Required {
		buf.WriteString(` aria-required="true"`)
	}

	describedBy := ""
	if f.Hint != "" {
		describedBy = id + "-hint"
	}
	if bad {
		buf.WriteString(` aria-invalid="true"`)
		if describedBy != "" {
			describedBy += " "
		}
		describedBy += errID
	}
	if describedBy != "" {
		buf.WriteString(` aria-describedby="` + describedBy + `"`)
	}
	buf.WriteString(">\n")

	if f.Hint != "" {
		buf.WriteString(`<small id="` + id + `-hint" class="hint">` + html.EscapeString(f.Hint) + "</small>\n")
	}
	if f.Name == intake.FieldDOB {
		writeAge(buf, v.Age)
	}

	// Error slot is always rendered so the id stays stable across re-renders.
	buf.WriteString(`<span id="` + errID + `" class="error">`)
	if bad {
		buf.WriteString(html.EscapeString(msg))
	}
	buf.WriteString("</span>\n")

	buf.WriteString("</div>\n")
}

func writeAge(buf *bytes.Buffer, age *int) {
	buf.WriteString(`<output id="` + AgeID + `" for="` + intake.FieldDOB.ID() + `" class="age">`)
	if age != nil {
		buf.WriteString("Age: " + strconv.Itoa(*age))
	}
	buf.WriteString("</output>\n")
}
