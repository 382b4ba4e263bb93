// Command mgit is the CLI driver for vcsmini's Porcelain, in the teacher's
// command-dispatch-table style (git-backup.go's `commands` map, `-v`/`-q`
// countFlag verbosity).
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/vcsmini/vcsmini/internal/errs"
	"github.com/vcsmini/vcsmini/internal/logger"
	"github.com/vcsmini/vcsmini/internal/porcelain"
	"github.com/vcsmini/vcsmini/internal/repo"
	"github.com/vcsmini/vcsmini/internal/sync"
)

var verbose countFlag = 1

type command func(log logger.Logger, argv []string) error

var commands = map[string]command{
	"init":     cmdInit,
	"add":      cmdAdd,
	"rm":       cmdRM,
	"commit":   cmdCommit,
	"branch":   cmdBranch,
	"checkout": cmdCheckout,
	"merge":    cmdMerge,
	"diff":     cmdDiff,
	"remote":   cmdRemote,
	"pull":     cmdPull,
	"push":     cmdPush,
	"status":   cmdStatus,
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: mgit [-v] [-q] command [args...]\n\ncommands:\n")
	for name := range commands {
		fmt.Fprintf(os.Stderr, "\t%s\n", name)
	}
}

func main() {
	flag.Usage = usage
	quiet := countFlag(0)
	flag.Var(&verbose, "v", "increase verbosity")
	flag.Var(&quiet, "q", "decrease verbosity")
	flag.Parse()
	verbose -= quiet

	if !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}

	argv := flag.Args()
	if len(argv) == 0 {
		usage()
		os.Exit(1)
	}

	cmd, ok := commands[argv[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "E: unknown command %q\n", argv[0])
		os.Exit(1)
	}

	log := logger.FromVerbosity(int(verbose))
	if err := cmd(log, argv[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "E: %s\n", err)
		os.Exit(1)
	}
}

func cwd() string {
	d, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "E: %s\n", err)
		os.Exit(1)
	}
	return d
}

func cmdInit(log logger.Logger, argv []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	bare := fs.Bool("bare", false, "create a bare repository")
	fs.Parse(argv)

	root := cwd()
	if fs.NArg() > 0 {
		root = fs.Arg(0)
	}
	_, err := repo.Init(root, *bare, log)
	return err
}

func cmdAdd(log logger.Logger, argv []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	fs.Parse(argv)
	r, err := repo.Open(cwd(), log)
	if err != nil {
		return err
	}
	pathspec := ""
	if fs.NArg() > 0 {
		pathspec = fs.Arg(0)
	}
	return porcelain.Add(r, pathspec)
}

func cmdRM(log logger.Logger, argv []string) error {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	force := fs.Bool("f", false, "unsupported, always an error")
	recursive := fs.Bool("r", false, "remove a directory's tracked files")
	fs.Parse(argv)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: mgit rm [-r] <path>")
	}
	r, err := repo.Open(cwd(), log)
	if err != nil {
		return err
	}
	return porcelain.RM(r, fs.Arg(0), *force, *recursive)
}

func cmdCommit(log logger.Logger, argv []string) error {
	fs := flag.NewFlagSet("commit", flag.ExitOnError)
	message := fs.String("m", "", "commit message")
	fs.Parse(argv)
	r, err := repo.Open(cwd(), log)
	if err != nil {
		return err
	}
	_, err = porcelain.Commit(r, *message)
	return err
}

func cmdBranch(log logger.Logger, argv []string) error {
	fs := flag.NewFlagSet("branch", flag.ExitOnError)
	fs.Parse(argv)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: mgit branch <name>")
	}
	r, err := repo.Open(cwd(), log)
	if err != nil {
		return err
	}
	return porcelain.Branch(r, fs.Arg(0))
}

func cmdCheckout(log logger.Logger, argv []string) error {
	fs := flag.NewFlagSet("checkout", flag.ExitOnError)
	fs.Parse(argv)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: mgit checkout <ref>")
	}
	r, err := repo.Open(cwd(), log)
	if err != nil {
		return err
	}
	return porcelain.Checkout(r, fs.Arg(0))
}

func cmdMerge(log logger.Logger, argv []string) error {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	fs.Parse(argv)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: mgit merge <ref>")
	}
	r, err := repo.Open(cwd(), log)
	if err != nil {
		return err
	}
	return porcelain.Merge(r, fs.Arg(0))
}

func cmdDiff(log logger.Logger, argv []string) error {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	fs.Parse(argv)
	if fs.NArg() > 2 {
		return fmt.Errorf("usage: mgit diff [<rev> [<rev>]]")
	}
	r, err := repo.Open(cwd(), log)
	if err != nil {
		return err
	}
	var fromRev, toRev string
	if fs.NArg() > 0 {
		fromRev = fs.Arg(0)
	}
	if fs.NArg() > 1 {
		toRev = fs.Arg(1)
	}
	diffs, err := porcelain.Diff(r, fromRev, toRev)
	if err != nil {
		return err
	}
	fmt.Println(porcelain.FormatDiff(diffs))
	return nil
}

func cmdRemote(log logger.Logger, argv []string) error {
	fs := flag.NewFlagSet("remote", flag.ExitOnError)
	fs.Parse(argv)
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: mgit remote <name> <url>")
	}
	r, err := repo.Open(cwd(), log)
	if err != nil {
		return err
	}
	return porcelain.Remote(r, fs.Arg(0), fs.Arg(1))
}

func cmdPull(log logger.Logger, argv []string) error {
	fs := flag.NewFlagSet("pull", flag.ExitOnError)
	fs.Parse(argv)
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: mgit pull <remote> <branch>")
	}
	r, err := repo.Open(cwd(), log)
	if err != nil {
		return err
	}
	remoteName, branch := fs.Arg(0), fs.Arg(1)
	peer, engine, err := openRemote(r, log, remoteName)
	if err != nil {
		return err
	}
	return porcelain.Pull(r, remoteName, branch, engine, peer)
}

func cmdPush(log logger.Logger, argv []string) error {
	fs := flag.NewFlagSet("push", flag.ExitOnError)
	force := fs.Bool("f", false, "allow a non-fast-forward update")
	fs.Parse(argv)
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: mgit push [-f] <remote> <branch>")
	}
	r, err := repo.Open(cwd(), log)
	if err != nil {
		return err
	}
	remoteName, branch := fs.Arg(0), fs.Arg(1)
	peer, engine, err := openRemote(r, log, remoteName)
	if err != nil {
		return err
	}
	return porcelain.Push(r, remoteName, branch, *force, engine, peer)
}

func cmdStatus(log logger.Logger, argv []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	fs.Parse(argv)
	r, err := repo.Open(cwd(), log)
	if err != nil {
		return err
	}
	report, err := porcelain.Status(r)
	if err != nil {
		return err
	}
	fmt.Println(report)
	return nil
}

func openRemote(r *repo.Repo, log logger.Logger, remoteName string) (*sync.LocalPeer, *sync.Engine, error) {
	url, ok := r.Config.RemoteURL(remoteName)
	if !ok {
		return nil, nil, errs.New(errs.RemoteMissing, "no remote named %q", remoteName)
	}
	remoteMetaDir, bare, err := repo.MetaDirFor(url)
	if err != nil {
		return nil, nil, err
	}
	peer, err := sync.OpenLocalPeer(filepath.Clean(url), remoteMetaDir, bare)
	if err != nil {
		return nil, nil, err
	}
	engine := sync.New(r.Store, r.Refs, r.Merge, log)
	return peer, engine, nil
}
