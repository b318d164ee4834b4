// Command gofat32 mounts a FAT32 disk image and opens a shell on it.
//
// By default the image is read through an emulated ATA controller, so every
// sector goes through the same register protocol a real drive would see.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aligator/gofat32"
	"github.com/aligator/gofat32/config"
	"github.com/aligator/gofat32/ide"
	"github.com/aligator/gofat32/shell"
	"github.com/canonical/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/term"
)

// Set by the linker.
var Version = "devel"

var _ gofat32.Device = (*ide.Driver)(nil)

type options struct {
	Config         string   `short:"c" long:"config" description:"YAML config file"`
	PartitionStart uint32   `short:"p" long:"partition-start" description:"First sector of the FAT32 partition"`
	Mode           string   `short:"m" long:"mode" choice:"ide" choice:"file" description:"Device used to read the image"`
	LogLevel       string   `short:"l" long:"log-level" description:"Log level"`
	Exec           []string `short:"e" long:"exec" description:"Run a shell command and exit, may be repeated"`
	Version        bool     `short:"v" long:"version" description:"Print the version and exit"`

	Positional struct {
		Image string `positional-arg-name:"image" description:"Disk image"`
	} `positional-args:"yes"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		// the parser already printed its own errors
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return err
	}
	if opts.Version {
		fmt.Println("gofat32", Version)
		return nil
	}

	partitionSet := parser.FindOptionByLongName("partition-start").IsSet()
	cfg, err := loadConfig(afero.NewOsFs(), opts, partitionSet)
	if err != nil {
		return err
	}
	level, _ := cfg.Level()
	log := logrus.New()
	log.SetLevel(level)

	reg := prometheus.NewRegistry()
	dev, closer, err := openDevice(afero.NewOsFs(), cfg, log, reg)
	if err != nil {
		return err
	}
	defer closer.Close()

	fsys, err := gofat32.Mount(dev, cfg.PartitionStart, gofat32.WithLogger(log))
	if err != nil {
		return err
	}

	if len(opts.Exec) > 0 {
		sh := shell.New(fsys, os.Stdout, shell.WithLogger(log), shell.WithGatherer(reg), shell.WithVersion(Version))
		for _, line := range opts.Exec {
			if err := sh.Execute(line); err != nil {
				return err
			}
		}
		return nil
	}
	return interactive(fsys, log, reg)
}

func loadConfig(fs afero.Fs, opts options, partitionSet bool) (config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(fs, opts.Config); err != nil {
			return cfg, err
		}
	}

	if opts.Positional.Image != "" {
		cfg.Image = opts.Positional.Image
	}
	if partitionSet {
		cfg.PartitionStart = opts.PartitionStart
	}
	if opts.Mode != "" {
		cfg.Device.Mode = opts.Mode
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	if cfg.Image == "" {
		return cfg, errors.New("no image given")
	}
	return cfg, cfg.Validate()
}

// openDevice opens the image read-only and puts the configured device in
// front of it.
func openDevice(fs afero.Fs, cfg config.Config, log logrus.FieldLogger, reg prometheus.Registerer) (gofat32.Device, io.Closer, error) {
	file, err := fs.Open(cfg.Image)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Device.Mode == config.ModeFile {
		return gofat32.NewFileDevice(file), file, nil
	}

	emu := ide.NewEmulator(file)
	emu.BusyPolls = cfg.Device.BusyPolls
	driver := ide.New(emu,
		ide.WithTimeout(cfg.Timeout()),
		ide.WithLogger(log.WithField("image", cfg.Image)),
		ide.WithMetrics(ide.NewMetrics(reg)),
	)
	return driver, file, nil
}

func interactive(fsys *gofat32.Fs, log logrus.FieldLogger, gatherer prometheus.Gatherer) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		sh := shell.New(fsys, os.Stdout, shell.WithLogger(log), shell.WithGatherer(gatherer), shell.WithVersion(Version))
		return sh.Run(shell.NewLineReader(os.Stdin, nil, nil))
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer term.Restore(fd, state)

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, "")
	sh := shell.New(fsys, t, shell.WithLogger(log), shell.WithGatherer(gatherer), shell.WithVersion(Version))

	fmt.Fprintf(t, "gofat32 %s on %q. Type 'help'.\n", Version, fsys.Label())
	return sh.Run(&prompter{terminal: t, shell: sh})
}

// prompter refreshes the prompt before each line, cd changes it.
type prompter struct {
	terminal *term.Terminal
	shell    *shell.Shell
}

func (p *prompter) ReadLine() (string, error) {
	p.terminal.SetPrompt(p.shell.Prompt())
	return p.terminal.ReadLine()
}
