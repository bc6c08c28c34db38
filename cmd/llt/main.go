// Command llt builds an LZ-compressed linked-list tree from a word list and
// writes it next to the input as <input>.llt.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"lltrie/llt"
)

func main() {
	app := &cli.App{
		Name:      "llt",
		Usage:     "build a compressed dictionary from a word list",
		ArgsUsage: "<path-to-word-list>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "parallel", Usage: "compress with the partition-parallel search"},
			&cli.BoolFlag{Name: "reverse", Usage: "insert tokens back-to-front (suffix dictionary)"},
			&cli.BoolFlag{Name: "withData", Usage: "attach the token index as payload"},
			&cli.BoolFlag{Name: "splitWord", Usage: "split each line on whitespace"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		klog.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(cctx *cli.Context) error {
	if cctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one word-list path")
	}
	path := cctx.Args().First()

	tokens, err := readTokens(path, cctx.Bool("splitWord"))
	if err != nil {
		return fmt.Errorf("reading word list: %w", err)
	}
	klog.Infof("read %s tokens from %s", humanize.Comma(int64(len(tokens))), path)

	paths := make([][]int32, len(tokens))
	for i, tok := range tokens {
		symbols := []int32(tok)
		if cctx.Bool("reverse") {
			reverse(symbols)
		}
		paths[i] = symbols
	}

	root := llt.NewNode()
	bar := progressbar.Default(int64(len(paths)), "inserting")
	for i, symbols := range paths {
		data := 0
		if cctx.Bool("withData") {
			data = i
		}
		root.Insert(symbols, data)
		_ = bar.Add(1)
	}

	tree, err := llt.Build(context.Background(), root, llt.BuildOptions{
		Compress:      true,
		Parallel:      cctx.Bool("parallel"),
		ClearBaseTree: true,
	})
	if err != nil {
		return err
	}
	klog.Infof("tree holds %s units in %s",
		humanize.Comma(int64(tree.NumberOfUnits())),
		humanize.Bytes(uint64(tree.AllocationSize())))
	if report := tree.MemDetailed(); klog.V(3).Enabled() {
		klog.V(3).Infof("memory breakdown: %s", report.JSON())
	} else if klog.V(2).Enabled() {
		klog.V(2).Infof("memory breakdown:\n%s", report)
	}

	missing := 0
	for _, symbols := range paths {
		if !tree.Contains(symbols) {
			missing++
		}
	}
	if missing > 0 {
		return fmt.Errorf("verification failed: %d of %d tokens missing", missing, len(paths))
	}
	klog.Infof("verified %s lookups", humanize.Comma(int64(len(paths))))

	out := path + ".llt"
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := tree.Write(w); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	klog.Infof("wrote %s", out)
	return nil
}

func readTokens(path string, splitWord bool) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tokens []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if splitWord {
			tokens = append(tokens, strings.Fields(line)...)
		} else {
			tokens = append(tokens, line)
		}
	}
	return tokens, sc.Err()
}

func reverse(s []int32) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
