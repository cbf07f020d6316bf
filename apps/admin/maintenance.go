package main

import (
	"context"
	"fmt"

	"github.com/excellacademy/academia/core/grading"
)

const cliAuthor = "admin-cli"

func (cli *commandLine) recalculatePositions(classID, term, year string) error {
	res, err := cli.reportCards.Generate(context.Background(), classID, grading.Period{Term: term, AcademicYear: year}, cliAuthor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d report cards updated, %d finalized skipped, %d students unscored\n",
		len(res.Records), len(res.Skipped), len(res.Unscored))
	return nil
}

func (cli *commandLine) generateMissingPDFs() error {
	n, err := cli.reportCards.RegenerateMissingDocuments(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d documents generated\n", n)
	return nil
}

func (cli *commandLine) checkReportCards() error {
	n, err := cli.reportCards.VerifyDocuments(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d report cards moved back to draft\n", n)
	return nil
}

func (cli *commandLine) generateInvoices(feeID string) error {
	out, err := cli.finance.GenerateInvoices(context.Background(), feeID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d invoices created, %d students already invoiced\n", len(out.Created), len(out.Skipped))
	return nil
}

func (cli *commandLine) refreshOverdue() error {
	n, err := cli.finance.RefreshOverdue(context.Background(), cli.now())
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d invoices marked overdue\n", n)
	return nil
}
