package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/services/spreadsheet"
)

func (cli *commandLine) importAttendance(uname, path string) error {
	usr, err := cli.usrSvc.GetByUsername(uname)
	if err != nil {
		return err
	}
	if !spreadsheet.Supported(path) {
		return spreadsheet.ErrUnsupportedFormat
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening attendance sheet")
	}
	defer func() { _ = f.Close() }()

	rows, lines, err := spreadsheet.ReadRows(f, filepath.Base(path))
	if err != nil {
		return err
	}
	res, err := cli.profileSvc.ImportAttendance(usr.ID, rows)
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "added %d new attendance records for %q\n", res.Added, usr.Username)
	for _, s := range res.Skipped {
		fmt.Fprintf(cli.out, "  line %d skipped: %s\n", lines[s.Row], s.Reason)
	}
	return nil
}
