package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/excellacademy/academia/core/finance"
	"github.com/excellacademy/academia/core/reportcard"
	"github.com/excellacademy/academia/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db          *sqlx.DB
	usrRepo     user.Repository
	reportCards *reportcard.Service
	finance     *finance.Service
	out         io.Writer
	now         func() time.Time
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, up-by-one, up-to, down, down-to, redo, reset, status, version)")
	fmt.Fprintln(cli.out, "  adduser -name NAME -username USERNAME -email EMAIL [-admin] - create or update a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  recalculate-positions -class CLASS_ID -term TERM -year ACADEMIC_YEAR - regenerate draft report cards")
	fmt.Fprintln(cli.out, "  generate-missing-pdfs - produce the documents of finalized report cards lacking one")
	fmt.Fprintln(cli.out, "  check-report-cards - move finalized report cards whose document vanished back to draft")
	fmt.Fprintln(cli.out, "  generate-invoices -fee FEE_STRUCTURE_ID - bill a fee structure to its class")
	fmt.Fprintln(cli.out, "  refresh-overdue - mark unpaid invoices past their due date as overdue")
}

// readPassword prompts for a password and rejects an empty one.
func (cli *commandLine) readPassword(fs *flag.FlagSet) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant every role to the user.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	recalcCmd := flag.NewFlagSet("recalculate-positions", flag.ContinueOnError)
	recalcClass := recalcCmd.String("class", "", "The class ID.")
	recalcTerm := recalcCmd.String("term", "", "The term, e.g. \"First Term\".")
	recalcYear := recalcCmd.String("year", "", "The academic year, e.g. 2023/2024.")

	genInvoicesCmd := flag.NewFlagSet("generate-invoices", flag.ContinueOnError)
	genInvoicesFee := genInvoicesCmd.String("fee", "", "The fee structure ID.")

	for _, fs := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, recalcCmd, genInvoicesCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || (*addUserUname == "" && *addUserEmail == "") {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword(addUserCmd)
		if err != nil {
			return err
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, pwd, *addUserAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "recalculate-positions":
		if err := recalcCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *recalcClass == "" || *recalcTerm == "" || *recalcYear == "" {
			recalcCmd.Usage()
			return errHelp
		}
		return cli.recalculatePositions(*recalcClass, *recalcTerm, *recalcYear)

	case "generate-missing-pdfs":
		return cli.generateMissingPDFs()

	case "check-report-cards":
		return cli.checkReportCards()

	case "generate-invoices":
		if err := genInvoicesCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *genInvoicesFee == "" {
			genInvoicesCmd.Usage()
			return errHelp
		}
		return cli.generateInvoices(*genInvoicesFee)

	case "refresh-overdue":
		return cli.refreshOverdue()

	default:
		cli.printUsage()
		return errHelp
	}
}
