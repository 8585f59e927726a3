package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/taoyao-code/isis-master/internal/canned"
)

func dumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump FILE.PKT",
		Short: "Decode and print every record of a canned packet file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return dump(f, cmd.OutOrStdout())
		},
	}
}

// dump 逐条打印记录；坏记录标记 BAD 后继续，输入损坏时返回错误
func dump(r io.Reader, w io.Writer) error {
	rd := canned.NewReader(r)
	var good, bad int
	for {
		rec, err := rd.Next()
		switch {
		case err == nil:
			fmt.Fprintf(w, "%4d  %s\n", rd.Index()-1, rec)
			good++
			continue
		case errors.Is(err, io.EOF):
			fmt.Fprintf(w, "%d records, %d bad\n", good, bad)
			return nil
		case errors.Is(err, canned.ErrBadRecord):
			fmt.Fprintf(w, "%4d  BAD %v\n", rd.Index()-1, err)
			bad++
			continue
		}
		return err
	}
}
