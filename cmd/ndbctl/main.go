// Command ndbctl is an operator tool for a database directory: it reads
// the on-disk layout directly (meta.json, WAL, checkpoints, heap
// segments) so it needs no knowledge of an application's registered
// models, and it can force a checkpoint through the core API.
//
// Compacting a table (Vacuum) needs the owning application's Collection
// to repoint live records by their decoded primary key, so it is not a
// generic CLI operation here — call ndb.Vacuum from the application
// instead. See DESIGN.md.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ndbkit/ndb"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ndbctl",
		Short: "Operator tool for an ndb database directory",
	}

	rootCmd.AddCommand(metaCmd())
	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(checkpointCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func metaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meta <path>",
		Short: "Print a database directory's format version",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			info, found, err := ndb.ReadMeta(args[0])
			if err != nil {
				return err
			}
			if !found {
				fmt.Printf("%s: no database found (no meta.json)\n", args[0])
				return nil
			}
			fmt.Printf("native_db_version: %d\n", info.NativeDBVersion)
			fmt.Printf("codec_version:     %d\n", info.CodecVersion)
			fmt.Printf("engine_version:    %d\n", info.EngineVersion)
			return nil
		},
	}
}

var (
	checkpointFileRE = regexp.MustCompile(`^checkpoint_(.+)_(\d+)\.chk$`)
	heapSegmentRE    = regexp.MustCompile(`^data\.heap_(.+)_(\d{3})\.data$`)
)

type tableReport struct {
	name          string
	checkpointLSN uint64
	hasCheckpoint bool
	heapSegments  int
	heapBytes     int64
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <path>",
		Short: "Report WAL, checkpoint, and heap segment sizes for a database directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runInspect(args[0])
		},
	}
}

func runInspect(dir string) error {
	info, found, err := ndb.ReadMeta(dir)
	if err != nil {
		return err
	}
	if !found {
		fmt.Printf("%s: no database found (no meta.json)\n", dir)
		return nil
	}
	fmt.Printf("directory:      %s\n", dir)
	fmt.Printf("format version: native_db=%d codec=%d engine=%d\n",
		info.NativeDBVersion, info.CodecVersion, info.EngineVersion)

	if walBytes, segments, err := walSize(filepath.Join(dir, "wal")); err == nil && segments > 0 {
		fmt.Printf("WAL:            %d bytes across %d segment(s)\n", walBytes, segments)
	} else {
		fmt.Printf("WAL:            none (in-memory or never written)\n")
	}

	tables, err := scanTables(dir)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		fmt.Println("tables:         none found")
		return nil
	}

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("tables:")
	for _, name := range names {
		t := tables[name]
		ckpt := "none"
		if t.hasCheckpoint {
			ckpt = fmt.Sprintf("lsn=%d", t.checkpointLSN)
		}
		if t.heapSegments > 0 {
			fmt.Printf("  %-40s checkpoint=%-10s heap_segments=%d heap_bytes=%d\n",
				name, ckpt, t.heapSegments, t.heapBytes)
		} else {
			fmt.Printf("  %-40s checkpoint=%-10s (secondary index, no heap)\n", name, ckpt)
		}
	}
	return nil
}

// walSize sums the size of every segment file in a log directory,
// since a segmented WAL no longer lives at one fixed path.
func walSize(walDir string) (bytes int64, segments int, err error) {
	entries, err := os.ReadDir(walDir)
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return 0, 0, err
		}
		bytes += info.Size()
		segments++
	}
	return bytes, segments, nil
}

// scanTables reconstructs the set of known table names and their
// on-disk footprint purely from file names: checkpoint files exist for
// every table kind, heap segments only for primary tables. Nothing here
// decodes a record body, so it works without the registering
// application's model definitions.
func scanTables(dir string) (map[string]*tableReport, error) {
	tables := make(map[string]*tableReport)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ndbctl: read %s: %w", dir, err)
	}
	for _, e := range entries {
		if m := heapSegmentRE.FindStringSubmatch(e.Name()); m != nil {
			name := m[1]
			t := tables[name]
			if t == nil {
				t = &tableReport{name: name}
				tables[name] = t
			}
			if info, err := e.Info(); err == nil {
				t.heapSegments++
				t.heapBytes += info.Size()
			}
		}
	}

	checkpointDir := filepath.Join(dir, "checkpoints")
	ckptEntries, err := os.ReadDir(checkpointDir)
	if err != nil {
		if os.IsNotExist(err) {
			return tables, nil
		}
		return nil, fmt.Errorf("ndbctl: read %s: %w", checkpointDir, err)
	}
	for _, e := range ckptEntries {
		m := checkpointFileRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		name := m[1]
		lsn, err := strconv.ParseUint(m[2], 10, 64)
		if err != nil {
			continue
		}
		t := tables[name]
		if t == nil {
			t = &tableReport{name: name}
			tables[name] = t
		}
		if !t.hasCheckpoint || lsn > t.checkpointLSN {
			t.hasCheckpoint = true
			t.checkpointLSN = lsn
		}
	}
	return tables, nil
}

func checkpointCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoint <path>",
		Short: "Force an immediate checkpoint of a database",
		Long: `Opens the database at path and forces a checkpoint ahead of the
engine's own schedule. ndbctl registers no models of its own, so this
only checkpoints tables an embedding application has already created on
disk; it is meant for operators who already know the application's
schema is unchanged, not as a substitute for running the application
itself.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			db, err := ndb.NewBuilder().Open(args[0])
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.CreateCheckpoint(); err != nil {
				return err
			}
			fmt.Printf("checkpoint written for %s\n", args[0])
			return nil
		},
	}
}
