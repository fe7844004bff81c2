// Command arbordb inspects and edits an arbordb database file.
//
//	arbordb [-v] [-record-size N] FILE COMMAND [ARGS]
//
// Commands:
//
//	constants            print the page and node geometry
//	tree                 print the tree structure
//	validate             check the tree structure
//	stats                print page, cache and I/O counters
//	scan [START END]     print records in key order
//	get KEY              print one record
//	insert KEY HEX       add a record
//	update KEY HEX       replace the record of an existing key
//	delete KEY           remove a record
package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"arbordb"
	"arbordb/logger"
)

var errUsage = errors.New("usage: arbordb [-v] [-record-size N] FILE COMMAND [ARGS]")

func main() {
	verbose := flag.Bool("v", false, "log engine events to stderr")
	recordSize := flag.Int("record-size", 0, "record size in bytes, required to create a new file")
	flag.Parse()

	if err := run(os.Stdout, flag.Args(), *recordSize, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "arbordb:", err)
		os.Exit(1)
	}
}

func run(w io.Writer, args []string, recordSize int, verbose bool) error {
	if len(args) < 2 {
		return errUsage
	}
	path, command, args := args[0], args[1], args[2:]

	options := []arbordb.Option{arbordb.WithRecordSize(recordSize)}
	if verbose {
		zapLogger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer zapLogger.Sync()
		options = append(options, arbordb.WithLogger(logger.NewZap(zapLogger)))
	}

	db, err := arbordb.Open(path, options...)
	if err != nil {
		return err
	}
	err = runCommand(w, db, command, args)
	return errors.Join(err, db.Close())
}

func runCommand(w io.Writer, db *arbordb.DB, command string, args []string) error {
	switch command {
	case "constants":
		return printConstants(w, db.Layout())
	case "tree":
		return db.Dump(w)
	case "validate":
		if err := db.Validate(); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w, "ok")
		return err
	case "stats":
		stats, err := db.Stats()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, stats)
		return err
	case "scan":
		return scan(w, db, args)
	case "get":
		key, err := parseKeys(args, 1)
		if err != nil {
			return err
		}
		rec, err := db.Get(key[0])
		if err != nil {
			return err
		}
		return printRecord(w, key[0], rec)
	case "insert":
		key, rec, err := parseRecord(command, args)
		if err != nil {
			return err
		}
		return db.Insert(key, rec)
	case "update":
		key, rec, err := parseRecord(command, args)
		if err != nil {
			return err
		}
		return db.Update(key, rec)
	case "delete":
		key, err := parseKeys(args, 1)
		if err != nil {
			return err
		}
		return db.Delete(key[0])
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func scan(w io.Writer, db *arbordb.DB, args []string) error {
	visit := func(key uint32, rec []byte) error {
		return printRecord(w, key, rec)
	}
	if len(args) == 0 {
		return db.Scan(visit)
	}
	keys, err := parseKeys(args, 2)
	if err != nil {
		return err
	}
	return db.Range(keys[0], keys[1], visit)
}

// parseRecord reads the KEY HEX arguments of insert and update.
func parseRecord(command string, args []string) (uint32, []byte, error) {
	if len(args) != 2 {
		return 0, nil, fmt.Errorf("%s takes KEY HEX", command)
	}
	key, err := parseKeys(args[:1], 1)
	if err != nil {
		return 0, nil, err
	}
	rec, err := hex.DecodeString(args[1])
	if err != nil {
		return 0, nil, err
	}
	return key[0], rec, nil
}

func parseKeys(args []string, n int) ([]uint32, error) {
	if len(args) != n {
		return nil, fmt.Errorf("expected %d key arguments, got %d", n, len(args))
	}
	keys := make([]uint32, n)
	for i, arg := range args {
		k, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad key %q: %w", arg, err)
		}
		keys[i] = uint32(k)
	}
	return keys, nil
}

func printRecord(w io.Writer, key uint32, rec []byte) error {
	_, err := fmt.Fprintf(w, "%d\t%s\n", key, hex.EncodeToString(rec))
	return err
}

func printConstants(w io.Writer, l arbordb.Layout) error {
	_, err := fmt.Fprintf(w,
		"PAGE_SIZE: %s\nRECORD_SIZE: %d\nLEAF_NODE_CELL_SIZE: %d\nLEAF_NODE_MAX_CELLS: %d\nLEAF_NODE_MIN_CELLS: %d\nINTERNAL_NODE_MAX_KEYS: %d\nINTERNAL_NODE_MIN_KEYS: %d\n",
		humanize.IBytes(uint64(l.PageSize)),
		l.RecordSize,
		l.LeafCellSize,
		l.LeafMaxCells,
		l.LeafMinCells,
		l.InternalMaxKeys,
		l.InternalMinKeys,
	)
	return err
}
