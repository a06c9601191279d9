package templates

import (
	"fmt"
	"html"
	"regexp"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-z_]+)\s*\}\}`)

// Values maps parameter types to rendered strings
type Values map[string]string

// Render replaces {{token}} placeholders. Unknown tokens render empty.
func Render(text string, values Values, escapeHTML bool) string {
	return tokenPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := tokenPattern.FindStringSubmatch(match)[1]
		v := values[name]
		if escapeHTML {
			return html.EscapeString(v)
		}
		return v
	})
}

// Rendered is an email ready to send
type Rendered struct {
	Subject  string
	HTMLBody string
}

// RenderEmail fills an email template
func RenderEmail(t Template, values Values, meetingID string) Rendered {
	return Rendered{
		Subject:  Render(t.Subject, values, false),
		HTMLBody: Render(t.Body, values, true) + renderHiddenMetadata(meetingID, string(t.Kind)),
	}
}

// ChatParams produces exactly the declared number of parameters, taking
// them in order from the template's parameter types and padding with
// empty strings
func ChatParams(t Template, values Values) []string {
	count := 0
	if t.ParamCount != nil {
		count = *t.ParamCount
	}
	params := make([]string, count)
	for i := 0; i < count && i < len(t.Params); i++ {
		params[i] = values[t.Params[i]]
	}
	return params
}

// renderHiddenMetadata generates hidden HTML fields for email tracking
func renderHiddenMetadata(meetingID, kind string) string {
	return fmt.Sprintf(`<div style="display:none; max-height:0px; overflow:hidden;">
    <span id="meeting-id">%s</span>
    <span id="notification-kind">%s</span>
</div>`,
		html.EscapeString(meetingID),
		html.EscapeString(kind),
	)
}
