package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taoyao-code/isis-master/internal/canned"
)

func compileCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "compile PROGRAM.yaml",
		Short: "Compile a YAML lighting program into a canned packet file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			data, res, err := canned.CompileBytes(src)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			out := outputPath(args[0], output, res.File)
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records, %d bytes, end tick %d -> %s\n",
				displayName(res.Name, args[0]), res.Records, len(data), res.EndTick, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: program's file field, else NAME.PKT)")
	return cmd
}

// outputPath 优先级：命令行 > 程序 file 字段（相对源文件目录）> 源文件名改扩展名
func outputPath(src, flag, file string) string {
	if flag != "" {
		return flag
	}
	if file != "" {
		if filepath.IsAbs(file) {
			return file
		}
		return filepath.Join(filepath.Dir(src), file)
	}
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".PKT"
}

func displayName(name, src string) string {
	if name != "" {
		return name
	}
	return filepath.Base(src)
}
