package emailsvc

import (
	"crypto/tls"
	"encoding/base64"
	"io"
	"net/mail"
	"strings"
	"sync"

	gomail "github.com/go-mail/mail/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core"
)

type smtpService struct {
	dialer     *gomail.Dialer
	conf       *core.Config
	subjPrefix string
	logger     core.Logger
	inflight   *sync.WaitGroup
}

var (
	_ core.EmailService = (*smtpService)(nil)
	_ Waiter            = (*smtpService)(nil)
)

func NewSMTPService(conf *core.Config, logger core.Logger) core.EmailService {
	d := gomail.NewDialer(conf.Mail.SMTPHost, conf.Mail.SMTPPort, conf.Mail.SMTPUser, conf.Mail.SMTPPassword)
	d.StartTLSPolicy = gomail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{ServerName: conf.Mail.SMTPHost}
	return &smtpService{
		dialer:     d,
		conf:       conf,
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
		inflight:   new(sync.WaitGroup),
	}
}

func (svc smtpService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		svc.inflight.Add(1)
		go func() {
			defer svc.inflight.Done()
			if err := msg.Render(); err != nil {
				svc.logger.Error("rendering email", err)
				return
			}
			if msg.HasRecipients() && (msg.HasContent() || msg.HasAttachments()) {
				if err := svc.dialer.DialAndSend(svc.prepare(*msg)); err != nil {
					svc.logger.Error("sending email", errors.Wrap(err, strings.Join(addresses(msg.To), ", ")))
				}
			}
		}()
	}
}

func (svc smtpService) Wait() { svc.inflight.Wait() }

func (svc smtpService) prepare(msg core.EmailMessage) *gomail.Message {
	m := gomail.NewMessage()
	from := svc.conf.DefaultFromEmail()
	m.SetAddressHeader("From", from.Address, from.Name)
	m.SetHeader("To", addresses(msg.To)...)
	if len(msg.Cc) > 0 {
		m.SetHeader("Cc", addresses(msg.Cc)...)
	}
	if len(msg.Bcc) > 0 {
		m.SetHeader("Bcc", addresses(msg.Bcc)...)
	}
	m.SetHeader("Subject", svc.subjPrefix+msg.Subject)

	m.SetBody("text/plain", msg.TextContent)
	if msg.HTMLContent != "" {
		m.AddAlternative("text/html", msg.HTMLContent)
	}

	for _, at := range msg.Attachments {
		at := at
		m.Attach(at.Filename,
			gomail.SetHeader(map[string][]string{"Content-Type": {at.ContentType}}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				// core attachments are stored base64 encoded
				_, err := io.Copy(w, base64.NewDecoder(base64.StdEncoding, strings.NewReader(at.Content.String())))
				return err
			}),
		)
	}
	return m
}

func addresses(addrs []mail.Address) []string {
	formatted := make([]string, 0, len(addrs))
	for _, a := range addrs {
		formatted = append(formatted, a.String())
	}
	return formatted
}
