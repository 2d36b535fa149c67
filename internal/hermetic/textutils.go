// SPDX-License-Identifier: MPL-2.0

package hermetic

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mvdan.cc/sh/v3/interp"
)

// registerTextUtils adds the locally implemented text and timing utilities
// that u-root's core set does not cover.
func registerTextUtils(r *Registry) {
	r.Register("basename", runBasename)
	r.Register("dirname", runDirname)
	r.Register("grep", runGrep)
	r.Register("head", runHead)
	r.Register("seq", runSeq)
	r.Register("sleep", runSleep)
	r.Register("tail", runTail)
	r.Register("tee", runTee)
	r.Register("wc", runWc)
}

func runBasename(_ context.Context, stdio *IO, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("basename: missing operand")
	}
	name := filepath.Base(args[0])
	if len(args) > 1 && args[1] != name {
		name = strings.TrimSuffix(name, args[1])
	}
	fmt.Fprintln(stdio.Stdout, name)
	return nil
}

func runDirname(_ context.Context, stdio *IO, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("dirname: missing operand")
	}
	for _, arg := range args {
		fmt.Fprintln(stdio.Stdout, filepath.Dir(arg))
	}
	return nil
}

// runSeq prints a numeric sequence: seq LAST, seq FIRST LAST, or
// seq FIRST INCR LAST.
func runSeq(_ context.Context, stdio *IO, args []string) error {
	first, incr, last := 1, 1, 0
	var err error
	switch len(args) {
	case 1:
		last, err = strconv.Atoi(args[0])
	case 2:
		if first, err = strconv.Atoi(args[0]); err == nil {
			last, err = strconv.Atoi(args[1])
		}
	case 3:
		if first, err = strconv.Atoi(args[0]); err == nil {
			if incr, err = strconv.Atoi(args[1]); err == nil {
				last, err = strconv.Atoi(args[2])
			}
		}
	default:
		return fmt.Errorf("seq: expected 1 to 3 operands, got %d", len(args))
	}
	if err != nil {
		return fmt.Errorf("seq: %w", err)
	}
	if incr == 0 {
		return fmt.Errorf("seq: increment must not be zero")
	}
	w := bufio.NewWriter(stdio.Stdout)
	for n := first; (incr > 0 && n <= last) || (incr < 0 && n >= last); n += incr {
		fmt.Fprintln(w, n)
	}
	return w.Flush()
}

// runSleep accepts plain seconds ("2", "0.5") and Go durations ("300ms").
// It wakes early when the context is cancelled so env timeouts cut through.
func runSleep(ctx context.Context, _ *IO, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("sleep: expected one duration operand")
	}
	d, err := time.ParseDuration(args[0])
	if err != nil {
		secs, ferr := strconv.ParseFloat(args[0], 64)
		if ferr != nil {
			return fmt.Errorf("sleep: invalid duration %q", args[0])
		}
		d = time.Duration(secs * float64(time.Second))
	}
	if d < 0 {
		return fmt.Errorf("sleep: invalid duration %q", args[0])
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func runTee(_ context.Context, stdio *IO, args []string) error {
	fs := flag.NewFlagSet("tee", flag.ContinueOnError)
	fs.SetOutput(stdio.Stderr)
	appendMode := fs.Bool("a", false, "append instead of truncating")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mode := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if *appendMode {
		mode = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	writers := []io.Writer{stdio.Stdout}
	for _, name := range fs.Args() {
		f, err := os.OpenFile(stdio.resolve(name), mode, 0o644)
		if err != nil {
			return fmt.Errorf("tee: %w", err)
		}
		defer f.Close()
		writers = append(writers, f)
	}
	if _, err := io.Copy(io.MultiWriter(writers...), stdio.Stdin); err != nil {
		return fmt.Errorf("tee: %w", err)
	}
	return nil
}

func runHead(_ context.Context, stdio *IO, args []string) error {
	return headTail(stdio, args, "head")
}

func runTail(_ context.Context, stdio *IO, args []string) error {
	return headTail(stdio, args, "tail")
}

// headTail implements both line selectors; they differ only in which end of
// the input survives.
func headTail(stdio *IO, args []string, name string) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stdio.Stderr)
	count := fs.Int("n", 10, "number of lines")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *count < 0 {
		return fmt.Errorf("%s: invalid line count %d", name, *count)
	}

	in := stdio.Stdin
	if fs.NArg() > 0 {
		f, err := stdio.open(fs.Arg(0))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		defer f.Close()
		in = f
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	if name == "head" {
		for i := 0; i < *count && scanner.Scan(); i++ {
			fmt.Fprintln(stdio.Stdout, scanner.Text())
		}
	} else {
		keep := make([]string, 0, *count)
		for scanner.Scan() {
			if len(keep) == *count {
				keep = keep[1:]
			}
			if *count > 0 {
				keep = append(keep, scanner.Text())
			}
		}
		for _, line := range keep {
			fmt.Fprintln(stdio.Stdout, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func runWc(_ context.Context, stdio *IO, args []string) error {
	fs := flag.NewFlagSet("wc", flag.ContinueOnError)
	fs.SetOutput(stdio.Stderr)
	lines := fs.Bool("l", false, "count lines")
	words := fs.Bool("w", false, "count words")
	bytesOnly := fs.Bool("c", false, "count bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	in := stdio.Stdin
	if fs.NArg() > 0 {
		f, err := stdio.open(fs.Arg(0))
		if err != nil {
			return fmt.Errorf("wc: %w", err)
		}
		defer f.Close()
		in = f
	}

	var nl, nw, nb int64
	reader := bufio.NewReader(in)
	inWord := false
	for {
		r, size, err := reader.ReadRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("wc: %w", err)
		}
		nb += int64(size)
		if r == '\n' {
			nl++
		}
		if strings.ContainsRune(" \t\n\r\v\f", r) {
			inWord = false
		} else if !inWord {
			inWord = true
			nw++
		}
	}

	// No selector prints the traditional lines/words/bytes triple.
	none := !*lines && !*words && !*bytesOnly
	var cols []string
	if *lines || none {
		cols = append(cols, strconv.FormatInt(nl, 10))
	}
	if *words || none {
		cols = append(cols, strconv.FormatInt(nw, 10))
	}
	if *bytesOnly || none {
		cols = append(cols, strconv.FormatInt(nb, 10))
	}
	fmt.Fprintln(stdio.Stdout, strings.Join(cols, " "))
	return nil
}

// runGrep supports the flag subset test commands rely on. No match exits 1
// without a diagnostic, matching the historical contract that makes
// `grep -q` usable in conditions.
func runGrep(_ context.Context, stdio *IO, args []string) error {
	fs := flag.NewFlagSet("grep", flag.ContinueOnError)
	fs.SetOutput(stdio.Stderr)
	ignoreCase := fs.Bool("i", false, "ignore case")
	invert := fs.Bool("v", false, "select non-matching lines")
	lineNumbers := fs.Bool("n", false, "prefix line numbers")
	countOnly := fs.Bool("c", false, "print match count only")
	quiet := fs.Bool("q", false, "suppress output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("grep: missing pattern")
	}

	pattern := fs.Arg(0)
	if *ignoreCase {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("grep: %w", err)
	}

	files := fs.Args()[1:]
	if len(files) == 0 {
		files = []string{"-"}
	}
	prefixNames := len(files) > 1

	matched := false
	for _, name := range files {
		f, err := stdio.open(name)
		if err != nil {
			return fmt.Errorf("grep: %w", err)
		}
		count := 0
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for lineNo := 1; scanner.Scan(); lineNo++ {
			line := scanner.Text()
			if re.MatchString(line) == *invert {
				continue
			}
			matched = true
			count++
			if *quiet || *countOnly {
				continue
			}
			var sb strings.Builder
			if prefixNames {
				sb.WriteString(name)
				sb.WriteByte(':')
			}
			if *lineNumbers {
				sb.WriteString(strconv.Itoa(lineNo))
				sb.WriteByte(':')
			}
			sb.WriteString(line)
			fmt.Fprintln(stdio.Stdout, sb.String())
		}
		scanErr := scanner.Err()
		f.Close()
		if scanErr != nil {
			return fmt.Errorf("grep: %w", scanErr)
		}
		if *countOnly && !*quiet {
			if prefixNames {
				fmt.Fprintf(stdio.Stdout, "%s:%d\n", name, count)
			} else {
				fmt.Fprintln(stdio.Stdout, count)
			}
		}
	}
	if !matched {
		return interp.ExitStatus(1)
	}
	return nil
}
