package emailsvc

import (
	"github.com/trezcool/reviewdesk/core"
)

// Waiter is implemented by the services sending in the background.
// Wait blocks until every message handed to SendMessages has been processed.
type Waiter interface {
	Wait()
}

// New returns the email service of the configured provider. Tests always get the synchronous console mock.
func New(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.TestMode {
		return NewConsoleServiceMock(conf, logger)
	}
	switch conf.Mail.Provider {
	case core.MailSendgrid:
		return NewSendgridService(conf, logger)
	case core.MailSMTP:
		return NewSMTPService(conf, logger)
	default:
		return NewConsoleService(conf, logger)
	}
}
