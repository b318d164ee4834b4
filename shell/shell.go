// Package shell is a small line based command interpreter over a mounted
// gofat32 volume.
package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aligator/gofat32"
	"github.com/aligator/gofat32/checkpoint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownCommand = errors.New("command not found")
	ErrUsage          = errors.New("wrong arguments")
	ErrReadOnly       = errors.New("read-only file system")
	ErrNoMetrics      = errors.New("no metrics configured")
)

// LineReader delivers one input line per call without the line break.
// A *term.Terminal is a LineReader.
type LineReader interface {
	ReadLine() (string, error)
}

type command struct {
	summary string
	run     func(s *Shell, args []string) error
}

func commandTable() map[string]command {
	return map[string]command{
		"help":    {"list the commands", (*Shell).help},
		"version": {"print the version", (*Shell).version},
		"echo":    {"print the arguments", (*Shell).echo},
		"ls":      {"list a directory, -l for details", (*Shell).ls},
		"cd":      {"change the current directory", (*Shell).cd},
		"pwd":     {"print the current directory", (*Shell).pwd},
		"cat":     {"print a file", (*Shell).cat},
		"info":    {"print the volume geometry", (*Shell).info},
		"stats":   {"print the drive counters", (*Shell).stats},
		"mkdir":   {"create a directory", (*Shell).mkdir},
		"touch":   {"create a file", (*Shell).touch},
		"exit":    {"leave the shell", (*Shell).exit},
	}
}

type Shell struct {
	fs       *gofat32.Fs
	out      io.Writer
	log      logrus.FieldLogger
	gatherer prometheus.Gatherer
	release  string
	commands map[string]command

	// cwd are the names from the root to fs.CurrentDir().
	cwd  []string
	done bool
}

type Option func(s *Shell)

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Shell) {
		s.log = log
	}
}

// WithGatherer enables the stats command.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Shell) {
		s.gatherer = g
	}
}

func WithVersion(version string) Option {
	return func(s *Shell) {
		s.release = version
	}
}

// New returns a shell writing to out. fs must be mounted.
func New(fs *gofat32.Fs, out io.Writer, opts ...Option) *Shell {
	s := &Shell{
		fs:      fs,
		out:     out,
		log:     logrus.StandardLogger(),
		release: "devel",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.commands = commandTable()
	return s
}

// Prompt is the prompt for the next line.
func (s *Shell) Prompt() string {
	return s.path(s.cwd) + "> "
}

// Done reports whether exit was executed.
func (s *Shell) Done() bool {
	return s.done
}

// Execute runs one command line. Empty lines are ignored.
func (s *Shell) Execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	cmd, ok := s.commands[fields[0]]
	if !ok {
		s.printf("%s: command not found\n", fields[0])
		return checkpoint.Wrapf(ErrUnknownCommand, "%q", fields[0])
	}
	return cmd.run(s, fields[1:])
}

// Run executes lines from r until r is exhausted or exit is executed.
// Failed commands are reported on the output and do not stop the loop.
func (s *Shell) Run(r LineReader) error {
	for !s.done {
		line, err := r.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return checkpoint.From(err)
		}

		if err := s.Execute(line); err != nil {
			s.log.WithField("line", line).WithError(err).Debug("command failed")
		}
	}
	return nil
}

// NewLineReader reads lines from a plain stream. Set prompt to echo a
// prompt to out before every line.
func NewLineReader(r io.Reader, out io.Writer, prompt func() string) LineReader {
	return &lineReader{scanner: bufio.NewScanner(r), out: out, prompt: prompt}
}

type lineReader struct {
	scanner *bufio.Scanner
	out     io.Writer
	prompt  func() string
}

func (l *lineReader) ReadLine() (string, error) {
	if l.prompt != nil && l.out != nil {
		fmt.Fprint(l.out, l.prompt())
	}
	if !l.scanner.Scan() {
		if err := l.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return l.scanner.Text(), nil
}

func (s *Shell) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) help(args []string) error {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	s.printf("Commands:\n")
	for _, name := range names {
		s.printf("  %-8s %s\n", name, s.commands[name].summary)
	}
	return nil
}

func (s *Shell) version(args []string) error {
	s.printf("gofat32 %s\n", s.release)
	return nil
}

func (s *Shell) echo(args []string) error {
	s.printf("%s\n", strings.Join(args, " "))
	return nil
}

func (s *Shell) exit(args []string) error {
	s.done = true
	return nil
}

func (s *Shell) mkdir(args []string) error {
	s.printf("mkdir: %v\n", ErrReadOnly)
	return checkpoint.From(ErrReadOnly)
}

func (s *Shell) touch(args []string) error {
	s.printf("touch: %v\n", ErrReadOnly)
	return checkpoint.From(ErrReadOnly)
}
