package gofat32

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestShortName(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "name and extension", raw: "FOO     TXT", want: "FOO.TXT"},
		{name: "blank extension has no dot", raw: "FOO        ", want: "FOO"},
		{name: "full length", raw: "ABCDEFGHIJK", want: "ABCDEFGH.IJK"},
		{name: "short extension", raw: "README  MD ", want: "README.MD"},
		{name: "escaped 0xE5", raw: "\x05BC     TXT", want: "\xE5BC.TXT"},
		{name: "0x05 later in the name stays", raw: "A\x05C     TXT", want: "A\x05C.TXT"},
		{name: "dot entry", raw: ".          ", want: "."},
		{name: "dotdot entry", raw: "..         ", want: ".."},
		{name: "name ends at the first space", raw: "A B     TXT", want: "A.TXT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw [11]byte
			copy(raw[:], tt.raw)
			if got := ShortName(raw); got != tt.want {
				t.Errorf("ShortName(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

// fullCluster returns as many file records as fit into one cluster.
func fullCluster(f *fixture, prefix string) ([]byte, []string) {
	var data []byte
	var names []string
	for i := 0; i < f.clusterSize()/entrySize; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		data = append(data, record(fmt.Sprintf("%-8sDAT", name), AttrArchive, 0, 0)...)
		names = append(names, name+".DAT")
	}
	return data, names
}

func listNames(fs *Fs, cluster uint32) ([]string, bool, error) {
	names := []string{}
	found, err := fs.List(cluster, func(entry EntryHeader, name string) error {
		names = append(names, name)
		return nil
	})
	return names, found, err
}

func TestFs_List(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *fixture) []string
		cluster   uint32
		wantFound bool
		wantErr   []error
	}{
		{
			name: "empty directory",
			setup: func(f *fixture) []string {
				return nil
			},
			cluster: 2,
		},
		{
			name: "unreadable directory",
			setup: func(f *fixture) []string {
				f.failCluster(2)
				return nil
			},
			cluster: 2,
			wantErr: []error{ErrReadDir, errDevice},
		},
		{
			name: "names in on-disk order",
			setup: func(f *fixture) []string {
				f.setCluster(2, records(
					record("FOO     TXT", AttrArchive, 3, 10),
					record("FOO        ", AttrArchive, 4, 10),
					record("SUB        ", AttrDirectory, 5, 0),
				))
				return []string{"FOO.TXT", "FOO", "SUB"}
			},
			cluster:   2,
			wantFound: true,
		},
		{
			name: "escaped first byte",
			setup: func(f *fixture) []string {
				f.setCluster(2, record("\x05BC     TXT", AttrArchive, 3, 1))
				return []string{"\xE5BC.TXT"}
			},
			cluster:   2,
			wantFound: true,
		},
		{
			name: "skipped entries never reach the function",
			setup: func(f *fixture) []string {
				f.setCluster(2, records(
					record("\xE5OO     TXT", AttrArchive, 3, 1),
					record("ALONGNAMETX", AttrLongName, 0, 0),
					record("MYVOLUME   ", AttrVolumeID, 0, 0),
					record("ARCHIVED   ", AttrVolumeID|AttrArchive, 0, 0),
					record("KEEP    TXT", AttrArchive|AttrReadOnly, 4, 1),
					record("\xE5EMOVED    ", AttrDirectory, 5, 0),
				))
				return []string{"KEEP.TXT"}
			},
			cluster:   2,
			wantFound: true,
		},
		{
			name: "only skipped entries is empty",
			setup: func(f *fixture) []string {
				f.setCluster(2, records(
					record("\xE5OO     TXT", AttrArchive, 3, 1),
					record("ALONGNAMETX", AttrLongName, 0, 0),
				))
				return nil
			},
			cluster: 2,
		},
		{
			name: "two cluster chain",
			setup: func(f *fixture) []string {
				first, names := fullCluster(f, "A")
				f.setCluster(2, first)
				f.setCluster(9, records(
					record("LAST1   TXT", AttrArchive, 0, 0),
					record("LAST2   TXT", AttrArchive, 0, 0),
				))
				f.chain(2, 9)
				return append(names, "LAST1.TXT", "LAST2.TXT")
			},
			cluster:   2,
			wantFound: true,
		},
		{
			name: "end of chain without end marker",
			setup: func(f *fixture) []string {
				first, names := fullCluster(f, "A")
				f.setCluster(2, first)
				f.chain(2)
				return names
			},
			cluster:   2,
			wantFound: true,
		},
		{
			name: "end marker stops the whole walk",
			setup: func(f *fixture) []string {
				f.setCluster(2, records(
					record("FIRST   TXT", AttrArchive, 0, 0),
					make([]byte, entrySize),
					record("HIDDEN  TXT", AttrArchive, 0, 0),
				))
				f.setCluster(3, record("NEVER   TXT", AttrArchive, 0, 0))
				f.chain(2, 3)
				return []string{"FIRST.TXT"}
			},
			cluster:   2,
			wantFound: true,
		},
		{
			name: "bad cluster in the chain",
			setup: func(f *fixture) []string {
				first, names := fullCluster(f, "A")
				f.setCluster(2, first)
				f.setFAT(2, 0x0FFFFFF7)
				return names
			},
			cluster:   2,
			wantFound: true,
			wantErr:   []error{ErrBadChain},
		},
		{
			name: "free cluster in the chain",
			setup: func(f *fixture) []string {
				first, names := fullCluster(f, "A")
				f.setCluster(2, first)
				f.setFAT(2, 0)
				return names
			},
			cluster:   2,
			wantFound: true,
			wantErr:   []error{ErrFreeCluster},
		},
		{
			name: "unreadable FAT",
			setup: func(f *fixture) []string {
				first, names := fullCluster(f, "A")
				f.setCluster(2, first)
				f.chain(2, 3)
				f.failFAT(2)
				return names
			},
			cluster:   2,
			wantFound: true,
			wantErr:   []error{ErrReadFAT, errDevice},
		},
		{
			name: "unreadable second cluster",
			setup: func(f *fixture) []string {
				first, names := fullCluster(f, "A")
				f.setCluster(2, first)
				f.chain(2, 3)
				f.failCluster(3)
				return names
			},
			cluster:   2,
			wantFound: true,
			wantErr:   []error{ErrReadDir, errDevice},
		},
		{
			name: "chain leaves the volume",
			setup: func(f *fixture) []string {
				first, names := fullCluster(f, "A")
				f.setCluster(2, first)
				f.setFAT(2, 70000)
				return names
			},
			cluster:   2,
			wantFound: true,
			wantErr:   []error{ErrTranslateCluster},
		},
		{
			name: "cluster 0",
			setup: func(f *fixture) []string {
				return nil
			},
			cluster: 0,
			wantErr: []error{ErrInvalidCluster},
		},
		{
			name: "cluster 1",
			setup: func(f *fixture) []string {
				return nil
			},
			cluster: 1,
			wantErr: []error{ErrInvalidCluster},
		},
		{
			name: "end of chain value as directory",
			setup: func(f *fixture) []string {
				return nil
			},
			cluster: 0x0FFFFFFF,
			wantErr: []error{ErrTranslateCluster},
		},
		{
			name: "bad cluster value as directory",
			setup: func(f *fixture) []string {
				return nil
			},
			cluster: 0x0FFFFFF7,
			wantErr: []error{ErrTranslateCluster},
		},
		{
			name: "subdirectory",
			setup: func(f *fixture) []string {
				f.setCluster(40, records(
					record(".          ", AttrDirectory, 40, 0),
					record("..         ", AttrDirectory, 0, 0),
					record("INNER   BIN", AttrArchive, 41, 3),
				))
				return []string{".", "..", "INNER.BIN"}
			},
			cluster:   40,
			wantFound: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testVolume())
			want := tt.setup(f)
			if want == nil {
				want = []string{}
			}
			fs := f.mount()

			got, found, err := listNames(fs, tt.cluster)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Fs.List() error = %v", err)
			}
			for _, wantErr := range tt.wantErr {
				if !errors.Is(err, wantErr) {
					t.Errorf("Fs.List() error = %v, want it to match %v", err, wantErr)
				}
			}
			if found != tt.wantFound {
				t.Errorf("Fs.List() found = %v, want %v", found, tt.wantFound)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Fs.List() reported %q, want %q", got, want)
			}
		})
	}
}

func TestFs_List_Arguments(t *testing.T) {
	fs := newFixture(t, testVolume()).mount()
	if _, err := fs.List(2, nil); !errors.Is(err, ErrNilEntryFunc) {
		t.Errorf("Fs.List(nil) error = %v, want %v", err, ErrNilEntryFunc)
	}

	vol := testVolume()
	vol.bytesPerSector = 4096
	vol.sectorsPerCluster = 16
	fs = newFixture(t, vol).mount()
	found, err := fs.List(2, func(EntryHeader, string) error { return nil })
	if !errors.Is(err, ErrClusterTooLarge) || found {
		t.Errorf("Fs.List() = %v, %v, want false, %v", found, err, ErrClusterTooLarge)
	}
}

func TestFs_List_ChainLoop(t *testing.T) {
	f := newFixture(t, testVolume())
	first, _ := fullCluster(f, "A")
	second, _ := fullCluster(f, "B")
	f.setCluster(2, first)
	f.setCluster(3, second)
	f.setFAT(2, 3)
	f.setFAT(3, 2)
	fs := f.mount()

	calls := 0
	perCluster := f.clusterSize() / entrySize
	found, err := fs.List(2, func(EntryHeader, string) error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrChainLoop) || !found {
		t.Fatalf("Fs.List() = %v, %v, want true, %v", found, err, ErrChainLoop)
	}
	if want := int(f.vol.clusters) * perCluster; calls != want {
		t.Errorf("Fs.List() called the function %d times, want %d", calls, want)
	}
}

// A cluster near the end of a big 4096 byte sector volume lies beyond
// 32 bit device sector numbers.
func TestFs_List_DeviceLBARange(t *testing.T) {
	vol := testVolume()
	vol.bytesPerSector = 4096
	vol.sectorsPerCluster = 4
	vol.sectorsPerFAT = 200000
	vol.clusters = 200000000
	fs := newFixture(t, vol).mount()

	found, err := fs.List(vol.clusters+1, func(EntryHeader, string) error { return nil })
	if !errors.Is(err, ErrLBARange) || found {
		t.Errorf("Fs.List() = %v, %v, want false, %v", found, err, ErrLBARange)
	}

	// the FAT itself is still addressable
	if _, err := fs.NextCluster(vol.clusters + 1); err != nil {
		t.Errorf("Fs.NextCluster() error = %v", err)
	}
}

func TestFs_List_LargeSectors(t *testing.T) {
	vol := testVolume()
	vol.bytesPerSector = 2048
	vol.sectorsPerCluster = 2
	f := newFixture(t, vol)

	first, want := fullCluster(f, "B")
	f.setCluster(2, first)
	f.setCluster(3, record("TAIL    TXT", AttrArchive, 0, 0))
	f.chain(2, 3)
	fs := f.mount()

	got, found, err := listNames(fs, 2)
	if err != nil || !found {
		t.Fatalf("Fs.List() = %v, %v", found, err)
	}
	want = append(want, "TAIL.TXT")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Fs.List() reported %d names, want %d", len(got), len(want))
	}
}

func TestFs_List_Stop(t *testing.T) {
	f := newFixture(t, testVolume())
	f.setCluster(2, records(
		record("ONE        ", AttrArchive, 0, 0),
		record("TWO        ", AttrArchive, 0, 0),
	))
	fs := f.mount()

	calls := 0
	found, err := fs.List(2, func(EntryHeader, string) error {
		calls++
		return ErrStop
	})
	if err != nil || !found || calls != 1 {
		t.Errorf("Fs.List() = %v, %v after %d calls, want true, nil after 1", found, err, calls)
	}

	errCallback := errors.New("callback failed")
	_, err = fs.List(2, func(EntryHeader, string) error { return errCallback })
	if !errors.Is(err, errCallback) {
		t.Errorf("Fs.List() error = %v, want %v", err, errCallback)
	}
}

func TestFs_List_Reentrant(t *testing.T) {
	f := newFixture(t, testVolume())
	f.setCluster(2, record("ONE        ", AttrArchive, 0, 0))
	f.setCluster(3, record("INNER      ", AttrArchive, 0, 0))
	fs := f.mount()

	calls := map[string]func() error{
		"List": func() error {
			_, err := fs.List(3, func(EntryHeader, string) error { return nil })
			return err
		},
		"NextCluster": func() error {
			_, err := fs.NextCluster(2)
			return err
		},
		"Find": func() error {
			_, err := fs.Find(3, "INNER")
			return err
		},
		"ReadDir": func() error {
			_, err := fs.ReadDir(3)
			return err
		},
		"Mount": func() error {
			return fs.Mount(f.vol.partitionStart)
		},
		"SetCurrentDir": func() error {
			return fs.SetCurrentDir(3)
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			reads := f.dev.reads
			var inner error
			_, err := fs.List(2, func(EntryHeader, string) error {
				reads = f.dev.reads
				inner = call()
				if f.dev.reads != reads {
					t.Errorf("%s read the device during the walk", name)
				}
				return inner
			})
			if !errors.Is(inner, ErrReentrant) {
				t.Errorf("%s error = %v, want %v", name, inner, ErrReentrant)
			}
			if !errors.Is(err, ErrReentrant) {
				t.Errorf("Fs.List() error = %v, want %v", err, ErrReentrant)
			}
		})
	}

	// the guard is released afterwards
	if _, _, err := listNames(fs, 3); err != nil {
		t.Errorf("Fs.List() after the walk error = %v", err)
	}
	if fs.CurrentDir() != 2 {
		t.Errorf("Fs.CurrentDir() = %d, want it untouched", fs.CurrentDir())
	}
}

func TestFs_Find(t *testing.T) {
	f := newFixture(t, testVolume())
	f.setCluster(2, records(
		record("README  MD ", AttrArchive, 10, 42),
		record("DOCS       ", AttrDirectory, 11, 0),
	))
	f.setCluster(11, records(
		record(".          ", AttrDirectory, 11, 0),
		record("..         ", AttrDirectory, 0, 0),
	))
	fs := f.mount()

	tests := []struct {
		name        string
		dir         uint32
		lookup      string
		wantName    string
		wantCluster uint32
		wantErr     error
	}{
		{name: "exact", dir: 2, lookup: "README.MD", wantName: "README.MD", wantCluster: 10},
		{name: "ignores case", dir: 2, lookup: "readme.md", wantName: "README.MD", wantCluster: 10},
		{name: "directory", dir: 2, lookup: "docs", wantName: "DOCS", wantCluster: 11},
		{name: "dotdot to the root", dir: 11, lookup: "..", wantName: "..", wantCluster: 2},
		{name: "missing", dir: 2, lookup: "NOPE", wantErr: ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fs.Find(tt.dir, tt.lookup)
			if !errors.Is(err, tt.wantErr) || (err == nil) != (tt.wantErr == nil) {
				t.Fatalf("Fs.Find() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got.Name != tt.wantName || got.Cluster() != tt.wantCluster {
				t.Errorf("Fs.Find() = %q at cluster %d, want %q at cluster %d", got.Name, got.Cluster(), tt.wantName, tt.wantCluster)
			}
		})
	}
}

func TestFs_ReadDir(t *testing.T) {
	f := newFixture(t, testVolume())
	f.setCluster(2, records(
		record("A       TXT", AttrArchive, 3, 1),
		record("\xE5       TXT", AttrArchive, 4, 1),
		record("B       TXT", AttrArchive, 5, 2),
	))
	fs := f.mount()

	entries, err := fs.ReadDir(2)
	if err != nil {
		t.Fatalf("Fs.ReadDir() error = %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "A.TXT" || entries[1].Name != "B.TXT" {
		t.Fatalf("Fs.ReadDir() = %+v, want A.TXT and B.TXT", entries)
	}
	if entries[1].FileSize != 2 || entries[1].Cluster() != 5 {
		t.Errorf("Fs.ReadDir()[1] size %d cluster %d, want 2 and 5", entries[1].FileSize, entries[1].Cluster())
	}
}
