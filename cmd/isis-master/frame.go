package main

import (
	"bufio"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/taoyao-code/isis-master/internal/protocol/slip"
)

func frameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frame INFILE OUTFILE",
		Short: "Convert a text file to SLIP frames, one frame per line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer in.Close()
			out, err := os.Create(args[1])
			if err != nil {
				return err
			}
			if err := frameLines(in, out); err != nil {
				_ = out.Close()
				return err
			}
			return out.Close()
		},
	}
	return cmd
}

// frameLines 每行（含换行符）编码为一帧
func frameLines(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			if _, werr := bw.Write(slip.Encode(line)); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			return bw.Flush()
		}
		if err != nil {
			return err
		}
	}
}
