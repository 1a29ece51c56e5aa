package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/importer"
	"github.com/trezcool/reviewdesk/core/report"
	"github.com/trezcool/reviewdesk/core/team"
	"github.com/trezcool/reviewdesk/core/user"
	emailsvc "github.com/trezcool/reviewdesk/services/email"
	"github.com/trezcool/reviewdesk/services/spreadsheet"
	"github.com/trezcool/reviewdesk/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf     *core.Config
	logger   core.Logger
	repos    *database.Repositories
	mailSvc  core.EmailService
	usrSvc   *user.Service
	importer *importer.Service
	reports  *report.Service
}

func newCommandLine(conf *core.Config, logger core.Logger, repos *database.Repositories, mailSvc core.EmailService) *commandLine {
	teams := team.NewService(repos.Teams)
	return &commandLine{
		conf:     conf,
		logger:   logger,
		repos:    repos,
		mailSvc:  mailSvc,
		usrSvc:   user.NewService(repos.Users, mailSvc, conf),
		importer: importer.NewService(spreadsheet.XLSX{}, teams, logger),
		reports:  report.NewService(repos.Cycles, repos.Columns, repos.Teams, repos.Submissions, spreadsheet.XLSX{}),
	}
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -username USERNAME -email EMAIL [-name NAME] [-admin] [-reviewer] [-sections A,B] - create or update a user")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  migrate COMMAND [ARGS] - run database migrations (goose commands on postgres, 'up' elsewhere)")
	fmt.Println("  import -file ROSTER.xlsx [-dry-run] - import teams from a roster spreadsheet")
	fmt.Println("  export [-kind score|attendance|submissions] [-team NAME] [-section A] [-out FILE] [-mailto ADDRS] - export a report")
}

// wait blocks until emails sent in the background are gone.
func (cli *commandLine) wait() {
	if w, ok := cli.mailSvc.(emailsvc.Waiter); ok {
		w.Wait()
	}
}

func promptPassword() ([]byte, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	return pwd, err
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserName := addUserCmd.String("name", "", "The user's full name. Defaults to the username.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant the admin role.")
	addUserReviewer := addUserCmd.Bool("reviewer", false, "Grant the reviewer role.")
	addUserSections := addUserCmd.String("sections", "", "Comma separated sections a reviewer may score. Empty means all.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	importCmd := flag.NewFlagSet("import", flag.ContinueOnError)
	importFile := importCmd.String("file", "", "The roster spreadsheet (.xlsx).")
	importDryRun := importCmd.Bool("dry-run", false, "Parse the roster without creating teams.")

	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	exportKind := exportCmd.String("kind", report.KindScore, "The report kind: "+strings.Join(report.Kinds, ", ")+".")
	exportTeam := exportCmd.String("team", "", "Only this team.")
	exportSection := exportCmd.String("section", "", "Only teams of this section.")
	exportOut := exportCmd.String("out", "", "The output file. Defaults to the report's file name.")
	exportMailTo := exportCmd.String("mailto", "", "Comma separated addresses to mail the report to.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserUname == "" && *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(newUserArgs{
			name:     *addUserName,
			username: *addUserUname,
			email:    *addUserEmail,
			password: string(pwd),
			admin:    *addUserAdmin,
			reviewer: *addUserReviewer,
			sections: splitList(*addUserSections),
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, string(pwd))

	case "migrate":
		if len(args) < 3 {
			fmt.Println("Usage: migrate COMMAND [ARGS]")
			return errHelp
		}
		return cli.migrate(args[2:])

	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importTeams(*importFile, *importDryRun)

	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.export(exportArgs{
			kind:   *exportKind,
			filter: report.Filter{Team: *exportTeam, Section: *exportSection},
			out:    *exportOut,
			mailTo: *exportMailTo,
		})

	default:
		cli.printUsage()
		return errHelp
	}
}
