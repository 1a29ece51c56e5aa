package main

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/report"
)

type exportArgs struct {
	kind   string
	filter report.Filter
	out    string
	mailTo string
}

func (cli *commandLine) export(args exportArgs) error {
	var to []mail.Address
	if args.mailTo != "" {
		addrs, err := mail.ParseAddressList(args.mailTo)
		if err != nil {
			return errors.Wrap(err, "parsing -mailto")
		}
		for _, a := range addrs {
			to = append(to, *a)
		}
	}

	file, err := cli.reports.Export(context.Background(), args.kind, args.filter)
	if err != nil {
		return err
	}

	out := args.out
	if out == "" {
		out = file.Name
	}
	if err := os.WriteFile(out, file.Data, 0o644); err != nil {
		return errors.Wrap(err, "writing report")
	}
	fmt.Printf("report written to %s\n", out)

	if len(to) == 0 {
		return nil
	}
	msg := &core.EmailMessage{
		To:           to,
		Subject:      fmt.Sprintf("%s report: %s", args.kind, file.Label),
		TemplateName: "report_export",
		TemplateData: map[string]string{"Kind": args.kind, "Cycle": file.Label},
	}
	if err := msg.Attach(bytes.NewReader(file.Data), file.Name, file.ContentType); err != nil {
		return errors.Wrap(err, "attaching report")
	}
	cli.mailSvc.SendMessages(msg)
	cli.logger.Info(fmt.Sprintf("%s report mailed to %s", args.kind, args.mailTo))
	return nil
}
