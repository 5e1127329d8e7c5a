// Package mailer sends transactional mail for the account flows. Delivery
// runs through a queue so a slow SMTP server never blocks a request.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	texttemplate "text/template"

	"github.com/pkg/errors"
	"github.com/wneessen/go-mail"

	"github.com/jrsteele09/go-ident-server/internal/config"
)

// Mailer renders and delivers mail over SMTP.
type Mailer struct {
	client  *mail.Client
	from    string
	appName string
}

// New builds a Mailer from the SMTP configuration. Credentials are optional;
// without an account the client connects unauthenticated, which suits local
// catch-all servers.
func New(cfg config.SMTPConfig, appName string) (*Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.GetSMTPPort()),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.GetSMTPAccount() != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.GetSMTPAccount()),
			mail.WithPassword(cfg.GetSMTPPassword()),
		)
	}

	client, err := mail.NewClient(cfg.GetSMTPHost(), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "[mailer.New] creating SMTP client")
	}

	return &Mailer{
		client:  client,
		from:    cfg.GetSMTPFrom(),
		appName: appName,
	}, nil
}

// TestConnection dials the SMTP server and disconnects. Called at startup so
// a misconfigured relay is caught before the server takes traffic.
func (m *Mailer) TestConnection(ctx context.Context) error {
	if err := m.client.DialWithContext(ctx); err != nil {
		return errors.Wrap(err, "[Mailer.TestConnection] dialing SMTP server")
	}
	return m.client.Close()
}

// SendEmailVerification delivers the confirmation code for an address added
// to an account, with the verification link as an alternative to typing the
// code.
func (m *Mailer) SendEmailVerification(ctx context.Context, to, code, verifyURL string) error {
	textBody, htmlBody, err := renderVerification(m.appName, code, verifyURL)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return errors.Wrap(err, "[Mailer.SendEmailVerification] setting from address")
	}
	if err := msg.To(to); err != nil {
		return errors.Wrap(err, "[Mailer.SendEmailVerification] setting to address")
	}
	msg.Subject(fmt.Sprintf("Confirm this address for your %s account", m.appName))
	msg.SetBodyString(mail.TypeTextPlain, textBody)
	msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Wrap(err, "[Mailer.SendEmailVerification] sending mail")
	}
	return nil
}

const verificationText = `Hello,

A request was made to add this address to a {{.AppName}} account.
Your verification code is:

    {{.Code}}

You can also confirm the address by following this link:

    {{.VerifyURL}}

If this was not you, ignore this mail and the code will expire on its own.
`

const verificationHTML = `<p>Hello,</p>
<p>A request was made to add this address to a {{.AppName}} account.
Your verification code is:</p>
<p><strong>{{.Code}}</strong></p>
<p>You can also confirm the address by following
<a href="{{.VerifyURL}}">this link</a>.</p>
<p>If this was not you, ignore this mail and the code will expire on its own.</p>
`

var (
	verificationTextTpl = texttemplate.Must(texttemplate.New("verification_text").Parse(verificationText))
	verificationHTMLTpl = template.Must(template.New("verification_html").Parse(verificationHTML))
)

func renderVerification(appName, code, verifyURL string) (textBody, htmlBody string, err error) {
	data := struct {
		AppName   string
		Code      string
		VerifyURL string
	}{AppName: appName, Code: code, VerifyURL: verifyURL}

	var text bytes.Buffer
	if err := verificationTextTpl.Execute(&text, data); err != nil {
		return "", "", errors.Wrap(err, "[renderVerification] rendering text body")
	}

	var html bytes.Buffer
	if err := verificationHTMLTpl.Execute(&html, data); err != nil {
		return "", "", errors.Wrap(err, "[renderVerification] rendering html body")
	}

	return text.String(), html.String(), nil
}
