package mailer

import "strings"

// RenderTemplate substitutes {{name}} placeholders in a user-editable template.
// Unknown placeholders are left verbatim so a typo in a stored template shows
// up in the delivered mail instead of silently vanishing.
func RenderTemplate(template string, vars map[string]string) string {
	out := template
	for name, value := range vars {
		out = strings.ReplaceAll(out, "{{"+name+"}}", value)
	}
	return out
}
