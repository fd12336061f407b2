package notify

import (
	"strings"
	"text/template"

	"github.com/lborres/tanod/core"
)

// mailParams is passed as data when executing a mail template.
type mailParams struct {
	Email    string
	Token    string
	SiteName string
}

type mailTemplate struct {
	subject string
	body    *template.Template
}

func (t *mailTemplate) render(params mailParams) (string, error) {
	var sb strings.Builder
	if err := t.body.Execute(&sb, params); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func mustTemplate(kind core.EventKind, body string) *template.Template {
	return template.Must(template.New(string(kind)).Parse(body))
}

func defaultTemplates() map[core.EventKind]*mailTemplate {
	return map[core.EventKind]*mailTemplate{
		core.EventRegistered: {
			subject: "Welcome",
			body: mustTemplate(core.EventRegistered,
				`Thank you for registering to {{.SiteName}}!`),
		},
		core.EventVerificationRequested: {
			subject: "Verify your email address",
			body: mustTemplate(core.EventVerificationRequested,
				`Please verify your email address with the token {{.Token}}.`),
		},
		core.EventVerified: {
			subject: "Address verified",
			body: mustTemplate(core.EventVerified,
				`Your email address has been verified.`),
		},
		core.EventResetRequested: {
			subject: "Reset password",
			body: mustTemplate(core.EventResetRequested,
				`Reset your password with this token {{.Token}}.`),
		},
		core.EventPasswordReset: {
			subject: "Password has been reset",
			body: mustTemplate(core.EventPasswordReset,
				`Your password has been reset.`),
		},
	}
}
