// dsval converts JSON and YAML documents into Datastore values and keeps
// them in a local entity store.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/andreyvit/dsval"
	"github.com/andreyvit/dsval/entitystore"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage: dsval encode|put|get|dump [flags] (see dsval --help)")

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "encode":
		return runEncode(args, stdout)
	case "put":
		return runPut(args, stdout)
	case "get":
		return runGet(args, stdout)
	case "dump":
		return runDump(args, stdout)
	case "-h", "--help", "help":
		printHelp(stdout)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `dsval converts documents into Datastore values.

Usage:
  dsval encode [--yaml] FILE
  dsval put --db PATH --project P [--namespace N] --path KEY [--yaml] [--encoding msgpack|json] FILE
  dsval get --db PATH --project P [--namespace N] --path KEY
  dsval dump --db PATH --project P [--namespace N] [--kind K]

KEY is a slash-separated path of Kind:name or Kind:#id elements,
e.g. Org:mozilla/Lang:#42.

Every command accepts --verbose for debug logging on stderr.
`)
}

// storeFlags are shared by the commands that open a database.
type storeFlags struct {
	db        string
	project   string
	namespace string
	encoding  string
	verbose   bool
}

func (sf *storeFlags) add(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&sf.db, "db", "", "path to the database file")
	flagSet.StringVarP(&sf.project, "project", "p", "", "project ID")
	flagSet.StringVarP(&sf.namespace, "namespace", "n", "", "namespace ID")
	flagSet.StringVar(&sf.encoding, "encoding", "msgpack", "encoding of written entities (msgpack or json)")
	flagSet.BoolVarP(&sf.verbose, "verbose", "v", false, "log debug records to stderr")
}

func (sf *storeFlags) open() (*entitystore.Store, error) {
	if sf.db == "" {
		return nil, fmt.Errorf("--db is required")
	}
	if sf.project == "" {
		return nil, fmt.Errorf("--project is required")
	}
	enc, err := entitystore.ParseEncoding(sf.encoding)
	if err != nil {
		return nil, err
	}
	return entitystore.Open(sf.db, entitystore.Options{
		Encoding: enc,
		Logger:   newLogger(sf.verbose),
		Verbose:  sf.verbose,
	})
}

func (sf *storeFlags) partition() dsval.PartitionID {
	return dsval.PartitionID{ProjectID: sf.project, NamespaceID: sf.namespace}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runEncode(args []string, stdout io.Writer) error {
	var isYAML bool
	flagSet := pflag.NewFlagSet("encode", pflag.ContinueOnError)
	flagSet.BoolVar(&isYAML, "yaml", false, "read YAML instead of JSON")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("encode: expected one FILE argument")
	}

	doc, err := readDocument(flagSet.Arg(0), isYAML)
	if err != nil {
		return err
	}
	v, err := dsval.Encode(doc)
	if err != nil {
		return err
	}
	return writeValue(stdout, v)
}

func runPut(args []string, stdout io.Writer) error {
	var sf storeFlags
	var keyPath string
	var isYAML bool
	flagSet := pflag.NewFlagSet("put", pflag.ContinueOnError)
	sf.add(flagSet)
	flagSet.StringVar(&keyPath, "path", "", "key path, e.g. Org:mozilla/Lang:#42")
	flagSet.BoolVar(&isYAML, "yaml", false, "read YAML instead of JSON")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("put: expected one FILE argument")
	}
	key, err := parseKey(sf.partition(), keyPath)
	if err != nil {
		return err
	}
	doc, err := readDocument(flagSet.Arg(0), isYAML)
	if err != nil {
		return err
	}

	store, err := sf.open()
	if err != nil {
		return err
	}
	defer store.Close()
	err = store.Write(func(tx *entitystore.Tx) error {
		return entitystore.Put(tx, key, doc)
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, key)
	return nil
}

func runGet(args []string, stdout io.Writer) error {
	var sf storeFlags
	var keyPath string
	flagSet := pflag.NewFlagSet("get", pflag.ContinueOnError)
	sf.add(flagSet)
	flagSet.StringVar(&keyPath, "path", "", "key path, e.g. Org:mozilla/Lang:#42")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	key, err := parseKey(sf.partition(), keyPath)
	if err != nil {
		return err
	}

	store, err := sf.open()
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Read(func(tx *entitystore.Tx) error {
		e, err := tx.Get(key)
		if err != nil {
			return err
		}
		return writeValue(stdout, e)
	})
}

func runDump(args []string, stdout io.Writer) error {
	var sf storeFlags
	var kind string
	flagSet := pflag.NewFlagSet("dump", pflag.ContinueOnError)
	sf.add(flagSet)
	flagSet.StringVar(&kind, "kind", "", "only entities whose key ends with this kind")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	store, err := sf.open()
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Read(func(tx *entitystore.Tx) error {
		var werr error
		err := tx.Scan(sf.partition(), kind, func(key *dsval.Key, e *dsval.Entity) bool {
			raw, err := dsval.MarshalJSON(e)
			if err != nil {
				werr = err
				return false
			}
			_, werr = fmt.Fprintf(stdout, "%s\t%s\n", key, raw)
			return werr == nil
		})
		if err != nil {
			return err
		}
		return werr
	})
}

func writeValue(w io.Writer, v dsval.Value) error {
	raw, err := dsval.MarshalJSON(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(raw, '\n'))
	return err
}

// parseKey parses a slash-separated path such as Org:mozilla/Lang:#42.
func parseKey(part dsval.PartitionID, s string) (*dsval.Key, error) {
	if s == "" {
		return nil, fmt.Errorf("--path is required")
	}
	key := &dsval.Key{PartitionID: part}
	for _, seg := range strings.Split(s, "/") {
		kind, ident, ok := strings.Cut(seg, ":")
		if !ok || kind == "" || ident == "" {
			return nil, fmt.Errorf("invalid key path element %q, wanted Kind:name or Kind:#id", seg)
		}
		if idStr, isID := strings.CutPrefix(ident, "#"); isID {
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil || id == 0 {
				return nil, fmt.Errorf("invalid id in key path element %q", seg)
			}
			key.Path = append(key.Path, dsval.IDElement(kind, id))
		} else {
			key.Path = append(key.Path, dsval.NameElement(kind, ident))
		}
	}
	return key, nil
}

func readDocument(path string, isYAML bool) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc any
	if isYAML {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return doc, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return resolveNumbers(doc), nil
}

// resolveNumbers turns JSON numbers into int64 where they are integral
// and float64 otherwise, so that integers encode as integer values.
func resolveNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case []any:
		for i, el := range v {
			v[i] = resolveNumbers(el)
		}
		return v
	case map[string]any:
		for k, el := range v {
			v[k] = resolveNumbers(el)
		}
		return v
	default:
		return v
	}
}
