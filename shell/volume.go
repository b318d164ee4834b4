package shell

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"syscall"

	"github.com/aligator/gofat32"
	"github.com/aligator/gofat32/checkpoint"
	dto "github.com/prometheus/client_model/go"
)

// target is a resolved path.
type target struct {
	names []string
	dir   bool
	// cluster is the first cluster of a directory target.
	cluster uint32

	// parent and entry are unset for the root and the current directory.
	parent uint32
	entry  gofat32.DirEntry
}

func newTarget(parent uint32, entry gofat32.DirEntry, names []string) target {
	return target{
		names:   names,
		dir:     entry.IsDir(),
		cluster: entry.Cluster(),
		parent:  parent,
		entry:   entry,
	}
}

func (s *Shell) path(names []string) string {
	return "/" + strings.Join(names, "/")
}

// resolve walks p from the root if it is absolute and from the current
// directory otherwise.
func (s *Shell) resolve(p string) (target, error) {
	root := target{dir: true, cluster: s.fs.RootCluster()}
	t := root
	if !strings.HasPrefix(p, "/") {
		t = target{names: s.cwd, dir: true, cluster: s.fs.CurrentDir()}
	}

	for _, part := range strings.Split(p, "/") {
		if part == "" || part == "." {
			continue
		}
		if !t.dir {
			return t, checkpoint.Wrapf(gofat32.ErrNotDir, "%s", s.path(t.names))
		}

		if part == ".." {
			if len(t.names) <= 1 {
				t = root
				continue
			}
			entry, err := s.fs.Find(t.cluster, "..")
			if err != nil {
				return t, err
			}
			t = newTarget(t.cluster, entry, t.names[:len(t.names)-1])
			continue
		}

		entry, err := s.fs.Find(t.cluster, part)
		if err != nil {
			return t, err
		}
		names := append(append([]string(nil), t.names...), entry.Name)
		t = newTarget(t.cluster, entry, names)
	}
	return t, nil
}

func (s *Shell) ls(args []string) error {
	var long bool
	var p string
	for _, arg := range args {
		switch {
		case arg == "-l":
			long = true
		case p == "":
			p = arg
		default:
			s.printf("usage: ls [-l] [path]\n")
			return checkpoint.From(ErrUsage)
		}
	}

	cluster := s.fs.CurrentDir()
	if p != "" {
		t, err := s.resolve(p)
		if err != nil {
			s.printf("ls: %s: %v\n", p, err)
			return err
		}
		if !t.dir {
			s.printEntry(t.entry, long)
			return nil
		}
		cluster = t.cluster
	}

	s.printf("Contents C%d:\n", cluster)
	found, err := s.fs.List(cluster, func(entry gofat32.EntryHeader, name string) error {
		s.printEntry(gofat32.DirEntry{EntryHeader: entry, Name: name}, long)
		return nil
	})
	if err != nil {
		s.printf("ls: read error: %v\n", err)
		return err
	}
	if !found {
		s.printf("  (empty)\n")
	}
	return nil
}

func (s *Shell) printEntry(entry gofat32.DirEntry, long bool) {
	name := entry.Name
	if entry.IsDir() {
		name += "/"
	}
	if !long {
		s.printf("  %s\n", name)
		return
	}

	info := entry.FileInfo()
	size := fmt.Sprint(info.Size())
	if info.IsDir() {
		size = "<DIR>"
	}
	s.printf("  %s %10s %s %s\n", info.Mode(), size, info.ModTime().Format("2006-01-02 15:04"), name)
}

func (s *Shell) cd(args []string) error {
	if len(args) > 1 {
		s.printf("usage: cd [path]\n")
		return checkpoint.From(ErrUsage)
	}

	t := target{dir: true, cluster: s.fs.RootCluster()}
	if len(args) == 1 {
		var err error
		if t, err = s.resolve(args[0]); err != nil {
			s.printf("cd: %s: %v\n", args[0], err)
			return err
		}
	}
	if !t.dir {
		s.printf("cd: %s: %v\n", args[0], gofat32.ErrNotDir)
		return checkpoint.Wrapf(gofat32.ErrNotDir, "%s", args[0])
	}

	if err := s.fs.SetCurrentDir(t.cluster); err != nil {
		s.printf("cd: %v\n", err)
		return err
	}
	s.cwd = t.names
	return nil
}

func (s *Shell) pwd(args []string) error {
	s.printf("%s\n", s.path(s.cwd))
	return nil
}

func (s *Shell) cat(args []string) error {
	if len(args) == 0 {
		s.printf("usage: cat path...\n")
		return checkpoint.From(ErrUsage)
	}

	for _, p := range args {
		if err := s.catFile(p); err != nil {
			s.printf("cat: %s: %v\n", p, err)
			return err
		}
	}
	return nil
}

func (s *Shell) catFile(p string) error {
	t, err := s.resolve(p)
	if err != nil {
		return err
	}
	if t.dir {
		return checkpoint.From(syscall.EISDIR)
	}

	file, err := s.fs.Open(t.parent, t.entry.Name)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(s.out, file)
	return checkpoint.From(err)
}

func (s *Shell) info(args []string) error {
	info, err := s.fs.Info()
	if err != nil {
		s.printf("info: %v\n", err)
		return err
	}

	s.printf("Label:             %s\n", s.fs.Label())
	s.printf("Partition start:   %d\n", info.PartitionStart)
	s.printf("Bytes per sector:  %d\n", info.BPB.BytesPerSector)
	s.printf("Sectors/cluster:   %d\n", info.BPB.SectorsPerCluster)
	s.printf("FATs:              %d x %d sectors at %d\n", info.BPB.NumFATs, info.SectorsPerFAT, info.FATStart)
	s.printf("Data start:        %d\n", info.DataStart)
	s.printf("Total sectors:     %d\n", info.TotalSectors)
	s.printf("Clusters:          %d of %d bytes\n", info.TotalClusters, info.BytesPerCluster)
	s.printf("Root cluster:      %d\n", s.fs.RootCluster())
	return nil
}

func (s *Shell) stats(args []string) error {
	if s.gatherer == nil {
		s.printf("stats: %v\n", ErrNoMetrics)
		return checkpoint.From(ErrNoMetrics)
	}

	families, err := s.gatherer.Gather()
	if err != nil {
		s.printf("stats: %v\n", err)
		return checkpoint.From(err)
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			s.printf("%s%s %v\n", family.GetName(), labels(metric), value(family.GetType(), metric))
		}
	}
	return nil
}

func labels(metric *dto.Metric) string {
	pairs := metric.GetLabel()
	if len(pairs) == 0 {
		return ""
	}

	result := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		result = append(result, fmt.Sprintf("%s=%q", pair.GetName(), pair.GetValue()))
	}
	sort.Strings(result)
	return "{" + strings.Join(result, ",") + "}"
}

func value(kind dto.MetricType, metric *dto.Metric) float64 {
	switch kind {
	case dto.MetricType_COUNTER:
		return metric.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return metric.GetGauge().GetValue()
	default:
		return metric.GetUntyped().GetValue()
	}
}
