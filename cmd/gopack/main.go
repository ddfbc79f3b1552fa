// Command gopack is a minimal demo CLI around the pack package: build a
// pack stream from a repository's objects and write it to a file.
// Not part of the original libgit2 pack-objects (a library only); every
// sibling repo in this corpus ships a cmd/, so this does too, in the
// same flag-based style as go-git's own cli/go-git.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"flag"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing"
	gitconfig "github.com/go-git/go-git/v5/plumbing/format/config"

	"github.com/go-git/gopack/pack"
	"github.com/go-git/gopack/pack/odb/memory"
)

const usage = `Usage:
	gopack -repo <path/to/.git> -tree <hash> -out <pack-file> [-threads N] [-window N] [-depth N]
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "ERR:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	f := flag.NewFlagSet("gopack", flag.ExitOnError)
	repo := f.String("repo", "", "path to the repository's .git directory")
	tree := f.String("tree", "", "hex hash of the root tree to pack")
	out := f.String("out", "pack.pack", "output pack file path")
	threads := f.Int("threads", 1, "worker thread count for delta search")
	window := f.Int("window", 0, "sliding window size (0 = package default)")
	depth := f.Int("depth", 0, "maximum delta chain depth (0 = package default)")
	if err := f.Parse(args); err != nil {
		return err
	}

	if *repo == "" || *tree == "" {
		fmt.Print(usage)
		os.Exit(129)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	logger.Info("opening repository", "path", *repo)
	dotGit := osfs.New(*repo)
	store, err := memory.LoadFixture(dotGit)
	if err != nil {
		return err
	}

	cfg := gitconfig.New()
	if cf, err := dotGit.Open("config"); err == nil {
		defer cf.Close()
		if derr := gitconfig.NewDecoder(cf).Decode(cfg); derr != nil {
			return derr
		}
	}

	opts := []pack.Option{}
	if *threads > 0 {
		opts = append(opts, pack.WithThreads(*threads))
	}
	if *window > 0 {
		opts = append(opts, pack.WithWindow(*window))
	}
	if *depth > 0 {
		opts = append(opts, pack.WithMaxDepth(*depth))
	}

	session, err := pack.NewSession(store, cfg, opts...)
	if err != nil {
		return err
	}
	defer session.Close()

	rootHash := plumbing.NewHash(*tree)
	if rootHash.IsZero() {
		return fmt.Errorf("invalid tree hash %q", *tree)
	}

	logger.Info("collecting objects", "tree", rootHash.String())
	if err := session.InsertTree(rootHash); err != nil {
		return err
	}

	outDir := filepath.Dir(*out)
	outFS := osfs.New(outDir)

	logger.Info("building pack", "threads", *threads)
	digest, err := session.Write(context.Background(), outFS, filepath.Base(*out))
	if err != nil {
		return err
	}

	logger.Info("wrote pack", "path", *out, "digest", digest.String())
	return nil
}
