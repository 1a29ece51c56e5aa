package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
)

func (cli *commandLine) importTeams(path string, dryRun bool) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening roster")
	}
	defer f.Close()

	res, err := cli.importer.Import(context.Background(), f, dryRun)
	if err != nil {
		return err
	}

	fmt.Printf("header found on row %d\n", res.HeaderRow+1)
	if res.DryRun {
		for _, nt := range res.Teams {
			fmt.Printf("  %s: %s\n", nt.Name, nt.Members)
		}
		fmt.Printf("%d teams parsed, nothing saved\n", len(res.Teams))
	} else {
		fmt.Printf("%d teams created\n", len(res.Created))
	}
	if len(res.Skipped) > 0 {
		fmt.Printf("skipped, name already in use: %s\n", strings.Join(res.Skipped, ", "))
	}
	return nil
}
