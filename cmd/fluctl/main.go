// fluctl is a simple CLI for creating and driving one FLU instance.
//
// Usage:
//
//	fluctl <dir>              Open an existing FLU directory
//	fluctl new [opts] <dir>   Create a new FLU directory
//
// Options for 'new':
//
//	-page-size   Page payload size in bytes (default: 8)
//	-max-mem     Addressable slot region in bytes (default: 64MiB)
//
// Commands (in REPL):
//
//	write <epoch> <lpn> <data>   Write a page (hex or text, padded/truncated to page_size)
//	read <epoch> <lpn>           Read a page
//	trim <epoch> <lpn>           Trim a written page
//	fill <epoch> <lpn>           Fill an unwritten page
//	seal <epoch>                 Seal at epoch, fencing out lower epochs
//	status                       Show node status
//	help                         Show this help
//	exit / quit / q              Exit
package main

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/flunode/flu/pkg/flu"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return errors.New("missing command or directory")
	}

	if os.Args[1] == "new" {
		return runNew(os.Args[2:])
	}

	return runOpen(os.Args[1:])
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  fluctl <dir>              Open an existing FLU directory\n")
	fmt.Fprintf(os.Stderr, "  fluctl new [opts] <dir>   Create a new FLU directory\n")
	fmt.Fprintf(os.Stderr, "\nRun 'fluctl new --help' for options when creating a new node.\n")
}

func runNew(args []string) error {
	fs := flag.NewFlagSet("new", flag.ExitOnError)

	pageSize := fs.Uint("page-size", 0, "page payload size in bytes")
	maxMem := fs.Uint64("max-mem", 0, "addressable slot region in bytes")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fluctl new [options] <dir>\n\n")
		fmt.Fprintf(os.Stderr, "Create a new FLU directory. Geometry not given on the command line\n")
		fmt.Fprintf(os.Stderr, "falls back to <dir>/flu.json, then package defaults.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		fs.Usage()
		return errors.New("missing directory")
	}

	dir := fs.Arg(0)

	if hasContents(dir) {
		return fmt.Errorf("directory already has contents: %s (use 'fluctl %s' to open it)", dir, dir)
	}

	cfg, err := loadNodeConfig(dir)
	if err != nil {
		return err
	}

	opts := flu.Options{
		Dir:      dir,
		PageSize: uint32(*pageSize),
		MaxMem:   *maxMem,
	}

	if opts.PageSize == 0 {
		opts.PageSize = cfg.PageSize
	}

	if opts.MaxMem == 0 {
		opts.MaxMem = cfg.MaxMem
	}

	f, err := flu.Open(opts)
	if err != nil {
		return fmt.Errorf("creating node: %w", err)
	}
	defer f.Stop() //nolint:errcheck

	st, err := f.Status()
	if err != nil {
		return err
	}

	fmt.Printf("\nCreated FLU node:\n")
	fmt.Printf("  Dir:        %s\n", dir)
	fmt.Printf("  Page size:  %d bytes\n", st.PageSize)
	fmt.Printf("  Max mem:    %d bytes\n", st.MaxMem)
	fmt.Printf("  Max LPN:    %d\n", st.MaxLPN)
	fmt.Println()

	repl := &REPL{flu: f, pageSize: int(st.PageSize)}

	return repl.Run()
}

// hasContents reports whether dir holds anything besides an optional
// configFileName - so a directory holding only a pre-placed flu.json (read
// by loadNodeConfig) still counts as fresh for 'new'.
func hasContents(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}

	for _, e := range entries {
		if e.Name() != configFileName {
			return true
		}
	}

	return false
}

func runOpen(args []string) error {
	fs := flag.NewFlagSet("open", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fluctl <dir>\n\nOpen an existing FLU directory.\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		fs.Usage()
		return errors.New("missing directory")
	}

	dir := fs.Arg(0)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("directory does not exist: %s (use 'fluctl new %s' to create it)", dir, dir)
	}

	opts := flu.Options{Dir: dir}

	// Take the geometry from the node's hard-state record (page_size at
	// offset 16, max_mem at offset 20; see pkg/flu/format.go) so a node
	// created with non-default geometry reopens with that geometry.
	if hs, err := os.ReadFile(filepath.Join(dir, "hard-state")); err == nil && len(hs) >= 28 {
		opts.PageSize = binary.BigEndian.Uint32(hs[16:20])
		opts.MaxMem = binary.BigEndian.Uint64(hs[20:28])
	}

	f, err := flu.Open(opts)
	if err != nil {
		return fmt.Errorf("opening node: %w", err)
	}
	defer f.Stop() //nolint:errcheck

	st, err := f.Status()
	if err != nil {
		return err
	}

	repl := &REPL{flu: f, pageSize: int(st.PageSize)}

	return repl.Run()
}

// REPL is the interactive command loop driving one open [flu.FLU].
type REPL struct {
	flu      *flu.FLU
	pageSize int
	liner    *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".fluctl_history")
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("fluctl - FLU console (page_size=%d)\n", r.pageSize)
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("fluctl> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println("\nBye!")
				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()

			return nil

		case "help", "?":
			r.printHelp()

		case "write":
			r.cmdWrite(args)

		case "read":
			r.cmdRead(args)

		case "trim":
			r.cmdTrim(args)

		case "fill":
			r.cmdFill(args)

		case "seal":
			r.cmdSeal(args)

		case "status":
			r.cmdStatus()

		case "clear", "cls":
			fmt.Print("\033[H\033[2J")

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *REPL) completer(line string) []string {
	commands := []string{
		"write", "read", "trim", "fill", "seal",
		"status", "clear", "cls", "help", "exit", "quit", "q",
	}

	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  write <epoch> <lpn> <data>   Write a page (hex or text)")
	fmt.Println("  read <epoch> <lpn>           Read a page")
	fmt.Println("  trim <epoch> <lpn>           Trim a written page")
	fmt.Println("  fill <epoch> <lpn>           Fill an unwritten page")
	fmt.Println("  seal <epoch>                 Seal at epoch")
	fmt.Println("  status                       Show node status")
	fmt.Println("  help                         Show this help")
	fmt.Println("  exit / quit / q              Exit")
	fmt.Println()
	fmt.Println("Data: hex (e.g. 'deadbeef') or plain text. Zero-padded or truncated to page_size.")
}

func (r *REPL) parsePage(s string) []byte {
	raw, err := hex.DecodeString(s)
	if err != nil {
		raw = []byte(s)
	}

	page := make([]byte, r.pageSize)
	copy(page, raw)

	return page
}

func formatPage(page []byte) string {
	printable := true

	for _, b := range page {
		if b != 0 && (b < 32 || b > 126) {
			printable = false
			break
		}
	}

	if printable {
		end := len(page)
		for end > 0 && page[end-1] == 0 {
			end--
		}

		if end > 0 {
			return fmt.Sprintf("%q", string(page[:end]))
		}
	}

	return hex.EncodeToString(page)
}

func parseUint64(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func (r *REPL) cmdWrite(args []string) {
	if len(args) < 3 {
		fmt.Println("Usage: write <epoch> <lpn> <data>")
		return
	}

	epoch, err := parseUint64(args[0])
	if err != nil {
		fmt.Printf("invalid epoch: %v\n", err)
		return
	}

	lpn, err := parseUint64(args[1])
	if err != nil {
		fmt.Printf("invalid lpn: %v\n", err)
		return
	}

	page := r.parsePage(strings.Join(args[2:], " "))

	if err := r.flu.Write(epoch, lpn, page); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	fmt.Println("ok")
}

func (r *REPL) cmdRead(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: read <epoch> <lpn>")
		return
	}

	epoch, err := parseUint64(args[0])
	if err != nil {
		fmt.Printf("invalid epoch: %v\n", err)
		return
	}

	lpn, err := parseUint64(args[1])
	if err != nil {
		fmt.Printf("invalid lpn: %v\n", err)
		return
	}

	page, err := r.flu.Read(epoch, lpn)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	fmt.Println(formatPage(page))
}

func (r *REPL) cmdTrim(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: trim <epoch> <lpn>")
		return
	}

	epoch, err := parseUint64(args[0])
	if err != nil {
		fmt.Printf("invalid epoch: %v\n", err)
		return
	}

	lpn, err := parseUint64(args[1])
	if err != nil {
		fmt.Printf("invalid lpn: %v\n", err)
		return
	}

	if err := r.flu.Trim(epoch, lpn); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	fmt.Println("ok")
}

func (r *REPL) cmdFill(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: fill <epoch> <lpn>")
		return
	}

	epoch, err := parseUint64(args[0])
	if err != nil {
		fmt.Printf("invalid epoch: %v\n", err)
		return
	}

	lpn, err := parseUint64(args[1])
	if err != nil {
		fmt.Printf("invalid lpn: %v\n", err)
		return
	}

	if err := r.flu.Fill(epoch, lpn); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	fmt.Println("ok")
}

func (r *REPL) cmdSeal(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: seal <epoch>")
		return
	}

	epoch, err := parseUint64(args[0])
	if err != nil {
		fmt.Printf("invalid epoch: %v\n", err)
		return
	}

	maxLPN, err := r.flu.Seal(epoch)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	fmt.Printf("ok max_logical_page=%d\n", maxLPN)
}

func (r *REPL) cmdStatus() {
	st, err := r.flu.Status()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	fmt.Printf("min_epoch:        %d\n", st.MinEpoch)
	fmt.Printf("page_size:        %d\n", st.PageSize)
	fmt.Printf("max_mem:          %d\n", st.MaxMem)
	fmt.Printf("max_logical_page: %d\n", st.MaxLogicalPage)
	fmt.Printf("trim_watermark:   %d\n", st.TrimWatermark)
	fmt.Printf("max_lpn:          %d\n", st.MaxLPN)
}
