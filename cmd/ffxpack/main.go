// ffxpack is a CLI utility for working with .ffxpack asset archives.
package main

import (
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/facefx-go/internal/facefx"
	"github.com/Faultbox/facefx-go/internal/logger"
	"github.com/Faultbox/facefx-go/pkg/formats"
	"github.com/Faultbox/facefx-go/pkg/pack"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "list", "ls":
		cmdList(args)
	case "extract", "x":
		cmdExtract(args)
	case "search", "find":
		cmdSearch(args)
	case "build":
		cmdBuild(args)
	case "ids":
		cmdIDs(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`ffxpack - FaceFX asset archive utility

Usage:
  ffxpack <command> [options]

Commands:
  info <file.ffxpack>                    Show archive information
  list <file.ffxpack> [pattern]          List files (optional glob pattern)
  extract <file.ffxpack> <path> [output] Extract file(s) to directory
  search <file.ffxpack> <pattern>        Search files by name pattern
  build [-v] <out.ffxpack> <dir>         Pack a directory of compiled assets
  ids [-w] <file.ffxids>                 Validate (and rewrite) an id table

Examples:
  ffxpack info hero.ffxpack
  ffxpack list hero.ffxpack "*.ffxanim"
  ffxpack extract hero.ffxpack default/hello.ffxanim ./output
  ffxpack build hero.ffxpack ./compiled`)
}

func fatal(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func openArchive(path string) *pack.Archive {
	archive, err := pack.Open(path)
	if err != nil {
		fatal("Error: %v", err)
	}
	return archive
}

// archiveStats summarizes an archive by file type.
type archiveStats struct {
	files      int
	size       uint64
	stored     uint64
	compressed int
	byExt      map[string]int
}

func collectStats(archive *pack.Archive) archiveStats {
	st := archiveStats{byExt: make(map[string]int)}
	for _, f := range archive.List() {
		e, ok := archive.Stat(f)
		if !ok {
			continue
		}
		st.files++
		st.size += uint64(e.Size)
		st.stored += uint64(e.StoredSize)
		if e.Compressed() {
			st.compressed++
		}

		ext := strings.ToLower(filepath.Ext(f))
		if ext == "" {
			ext = "(no ext)"
		}
		st.byExt[ext]++
	}
	return st
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fatal("Usage: ffxpack info <file.ffxpack>")
	}

	archive := openArchive(args[0])
	defer archive.Close()

	st := collectStats(archive)
	fmt.Printf("Archive:    %s\n", args[0])
	fmt.Printf("Version:    %d\n", archive.Version())
	fmt.Printf("Files:      %d (%d compressed)\n", st.files, st.compressed)
	fmt.Printf("Size:       %.2f KB\n", float64(st.size)/1024)
	fmt.Printf("Stored:     %.2f KB\n", float64(st.stored)/1024)
	fmt.Println()
	fmt.Println("Files by type:")

	// Sort by count
	type extStat struct {
		ext   string
		count int
	}
	var stats []extStat
	for ext, count := range st.byExt {
		stats = append(stats, extStat{ext, count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].count != stats[j].count {
			return stats[i].count > stats[j].count
		}
		return stats[i].ext < stats[j].ext
	})

	for _, s := range stats {
		fmt.Printf("  %-10s %d\n", s.ext, s.count)
	}
}

// matchFiles returns the files whose base name matches the glob pattern or
// whose path contains it.
func matchFiles(files []string, pattern string) []string {
	pattern = strings.ToLower(pattern)
	var out []string
	for _, f := range files {
		matched, _ := filepath.Match(pattern, strings.ToLower(filepath.Base(f)))
		if !matched && !strings.Contains(strings.ToLower(f), pattern) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func cmdList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fs.Int("n", 0, "Limit output to N files (0 = all)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatal("Usage: ffxpack list <file.ffxpack> [pattern]")
	}

	archive := openArchive(fs.Arg(0))
	defer archive.Close()

	files := archive.List()
	if fs.NArg() > 1 {
		files = matchFiles(files, fs.Arg(1))
	}

	for i, f := range files {
		if *limit > 0 && i >= *limit {
			break
		}
		fmt.Println(f)
	}

	if fs.NArg() > 1 {
		fmt.Fprintf(os.Stderr, "\n(%d files matched)\n", len(files))
	}
}

// extractFile writes one archive file to outputPath.
func extractFile(archive *pack.Archive, name, outputPath string) (int, error) {
	data, err := archive.Read(name)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return 0, fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return 0, fmt.Errorf("writing %s: %w", outputPath, err)
	}
	return len(data), nil
}

func cmdExtract(args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 2 {
		fatal("Usage: ffxpack extract <file.ffxpack> <path> [output_dir]")
	}

	filePath := fs.Arg(1)
	outputDir := "."
	if fs.NArg() > 2 {
		outputDir = fs.Arg(2)
	}

	archive := openArchive(fs.Arg(0))
	defer archive.Close()

	// Check if it's a pattern
	if strings.Contains(filePath, "*") {
		extracted := 0
		for _, f := range archive.List() {
			matched, _ := filepath.Match(strings.ToLower(filePath), filepath.Base(f))
			if !matched {
				continue
			}
			// Preserve directory structure
			outputPath := filepath.Join(outputDir, filepath.FromSlash(f))
			if _, err := extractFile(archive, f, outputPath); err != nil {
				fmt.Fprintf(os.Stderr, "Error extracting %s: %v\n", f, err)
				continue
			}
			fmt.Printf("Extracted: %s\n", outputPath)
			extracted++
		}
		fmt.Fprintf(os.Stderr, "\nExtracted %d files\n", extracted)
		return
	}

	if !archive.Contains(filePath) {
		fatal("File not found: %s", filePath)
	}

	outputPath := filepath.Join(outputDir, filepath.Base(filePath))
	n, err := extractFile(archive, filePath, outputPath)
	if err != nil {
		fatal("Error: %v", err)
	}
	fmt.Printf("Extracted: %s (%d bytes)\n", outputPath, n)
}

func cmdSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	limit := fs.Int("n", 50, "Limit results (0 = all)")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fatal("Usage: ffxpack search <file.ffxpack> <pattern>")
	}

	archive := openArchive(fs.Arg(0))
	defer archive.Close()

	pattern := strings.ToLower(fs.Arg(1))
	count := 0
	for _, f := range archive.List() {
		if !strings.Contains(f, pattern) {
			continue
		}
		fmt.Println(f)
		count++
		if *limit > 0 && count >= *limit {
			fmt.Fprintf(os.Stderr, "\n(showing first %d matches, use -n 0 for all)\n", *limit)
			break
		}
	}

	if count == 0 {
		fmt.Fprintln(os.Stderr, "No files found")
	} else if *limit == 0 || count < *limit {
		fmt.Fprintf(os.Stderr, "\n(%d files found)\n", count)
	}
}

// buildPack packs every file below dir into a new archive at out. Id
// tables are validated before they are added.
func buildPack(out, dir string) (int, error) {
	w, err := pack.Create(out)
	if err != nil {
		return 0, err
	}

	count := 0
	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if strings.EqualFold(filepath.Ext(name), facefx.ExtIDs) {
			if _, err := formats.ParseIDMap(data); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		if err := w.Add(name, data); err != nil {
			return err
		}
		logger.Debug("packed", zap.String("path", name), zap.Int("size", len(data)))
		count++
		return nil
	})

	if err := w.Close(); err != nil && walkErr == nil {
		walkErr = err
	}
	if walkErr != nil {
		os.Remove(out)
		return 0, walkErr
	}
	return count, nil
}

func cmdBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	verbose := fs.Bool("v", false, "Log every packed file")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fatal("Usage: ffxpack build [-v] <out.ffxpack> <dir>")
	}

	if *verbose {
		if err := logger.Init("debug", ""); err != nil {
			fatal("Logger error: %v", err)
		}
		defer logger.Sync()
	}

	n, err := buildPack(fs.Arg(0), fs.Arg(1))
	if err != nil {
		fatal("Error: %v", err)
	}
	fmt.Printf("Packed %d files into %s\n", n, fs.Arg(0))
}

// checkIDs parses an id table and writes its canonical form to w.
func checkIDs(data []byte, w io.Writer) (int, error) {
	ids, err := formats.ParseIDMap(data)
	if err != nil {
		return 0, err
	}
	if _, err := w.Write(ids.Format()); err != nil {
		return 0, err
	}
	return ids.Len(), nil
}

func cmdIDs(args []string) {
	fs := flag.NewFlagSet("ids", flag.ExitOnError)
	rewrite := fs.Bool("w", false, "Rewrite the file in canonical UTF-8 form")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatal("Usage: ffxpack ids [-w] <file.ffxids>")
	}

	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		fatal("Error: %v", err)
	}

	var out strings.Builder
	n, err := checkIDs(data, &out)
	if err != nil {
		fatal("Error: %s: %v", path, err)
	}

	if *rewrite {
		if err := os.WriteFile(path, []byte(out.String()), 0644); err != nil {
			fatal("Error: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Rewrote %s (%d ids)\n", path, n)
		return
	}
	fmt.Print(out.String())
	fmt.Fprintf(os.Stderr, "\n(%d ids)\n", n)
}
