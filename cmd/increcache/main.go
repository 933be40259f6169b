// Command increcache is a small CLI driver built on top of pkg/incremental,
// pkg/increxample, pkg/queryset, pkg/config, and pkg/snapshot: it exists to
// give every one of those packages somewhere to run, not to be a serious
// end-user tool.
//
// Subcommands:
//
//	increcache demo              run every queryset query twice, bump an input, rerun
//	increcache repl              interactively set inputs and run named queries
//	increcache snapshot save     persist current queryset inputs to disk
//	increcache snapshot load     print inputs restored from a saved snapshot
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aardwolf-sfl/increcache/pkg/config"
	"github.com/aardwolf-sfl/increcache/pkg/increxample"
	"github.com/aardwolf-sfl/increcache/pkg/incremental"
	"github.com/aardwolf-sfl/increcache/pkg/incremental/input"
	"github.com/aardwolf-sfl/increcache/pkg/queryset"
	"github.com/aardwolf-sfl/increcache/pkg/snapshot"
)

var version = "0.1.0"

// demoStorage is the single input kind every CLI demo System uses: a flat
// name->int table, so a queryset.Set's dynamically named inputs all live
// in one Table keyed by name rather than one Go type per input.
type demoStorage struct {
	values *input.Table[string, int]
}

func newDemoStorage() demoStorage {
	return demoStorage{values: input.NewTable[string, int]()}
}

var valuesInput = input.NewKind[string, int, demoStorage](
	0, func(g *demoStorage) *input.Table[string, int] { return g.values },
)

// demoSystem is parametrized by query name (a string), since a queryset.Set
// declares queries by name rather than by Go type.
type demoSystem = increxample.System[demoStorage, string]

// sumQuery is the one query type this CLI registers; which inputs it reads
// is resolved at call time from the queryset.Set's declaration for the
// given name, not fixed at compile time.
type sumQuery struct{}

func sumBody(set *queryset.Set) func(name string, ctx *incremental.QueryContext[demoStorage], sys *demoSystem) (int, error) {
	return func(name string, ctx *incremental.QueryContext[demoStorage], sys *demoSystem) (int, error) {
		q, ok := set.Query(name)
		if !ok {
			return 0, fmt.Errorf("increcache: no query named %q", name)
		}
		total := 0
		for _, in := range q.Inputs {
			v, _ := incremental.UseInput(ctx, valuesInput, in)
			total += v
		}
		return total, nil
	}
}

func newDemoSystem(cfg *config.Config, set *queryset.Set) *demoSystem {
	sys := increxample.New[demoStorage, string](newDemoStorage(), cfg.Query.LockReadonly)
	for name, value := range set.Inputs {
		incremental.SetInput(sys.Runtime, valuesInput, name, value)
	}
	return sys
}

func main() {
	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("increcache: %v", err)
	}
	incremental.ConfigurePooling(cfg.Query.PoolEnabled, cfg.Query.PoolInitialCap, cfg.Query.PoolMaxSize)

	var querysetPath string

	root := &cobra.Command{
		Use:   "increcache",
		Short: "increcache - a small driver over an incremental query engine",
		Long: `increcache demonstrates pkg/incremental, the dependency-tracked
memoization engine this module implements: inputs are set through a
Runtime and tagged with a monotonically increasing revision; queries
are memoized in a QueryCache and invalidated once an input they read
has changed since they were computed.`,
	}
	root.PersistentFlags().StringVar(&querysetPath, "queryset", "", "path to a queryset YAML file (default: built-in demo set)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("increcache v%s\n", version)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "demo",
		Short: "run the built-in caching and invalidation demo",
		Run: func(cmd *cobra.Command, args []string) {
			runDemo(cfg, queryset.LoadOrDefault(querysetPath))
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "repl",
		Short: "interactively set inputs and run named queries",
		Run: func(cmd *cobra.Command, args []string) {
			runRepl(cfg, queryset.LoadOrDefault(querysetPath))
		},
	})

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "persist or restore queryset input values",
	}
	snapshotCmd.AddCommand(&cobra.Command{
		Use:   "save <dir>",
		Short: "save the queryset's current input values to a badger store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotSave(cfg, queryset.LoadOrDefault(querysetPath), args[0])
		},
	})
	snapshotCmd.AddCommand(&cobra.Command{
		Use:   "load <dir>",
		Short: "print input values restored from a previously saved badger store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotLoad(cfg, args[0])
		},
	})
	root.AddCommand(snapshotCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// runDemo seeds a demoSystem from set, runs every declared query twice
// (demonstrating a cache hit the second time), bumps one input, and reruns
// to demonstrate invalidation — scenarios S1/S2 as a CLI-visible demo.
func runDemo(cfg *config.Config, set *queryset.Set) {
	sys := newDemoSystem(cfg, set)

	for _, name := range set.QueryNames() {
		first, err := increxample.TryQuery[sumQuery, int](sys, name, sumBody(set))
		if err != nil {
			log.Fatalf("increcache: query %q failed: %v", name, err)
		}
		second, err := increxample.TryQuery[sumQuery, int](sys, name, sumBody(set))
		if err != nil {
			log.Fatalf("increcache: query %q failed: %v", name, err)
		}
		fmt.Printf("%s = %d (first run), %d (second run, should be a cache hit)\n", name, first, second)
	}

	if names := set.InputNames(); len(names) > 0 {
		bumped := names[0]
		old, _ := incremental.GetInput(sys.Runtime, valuesInput, bumped)
		incremental.SetInput(sys.Runtime, valuesInput, bumped, old+1)
		fmt.Printf("bumped %s: %d -> %d\n", bumped, old, old+1)

		for _, name := range set.QueryNames() {
			out, err := increxample.TryQuery[sumQuery, int](sys, name, sumBody(set))
			if err != nil {
				log.Fatalf("increcache: query %q failed: %v", name, err)
			}
			fmt.Printf("%s = %d (recomputed after invalidation)\n", name, out)
		}
	}

	if cfg.Logging.LogQueries {
		for _, entry := range sys.LogBook() {
			log.Printf("log: kind=%d query=%s", entry.Kind, entry.Query)
		}
	}
}

// runRepl drives an interactive session: `set <name> <value>`, `run
// <query>`, `list`, `stats`, `exit`.
func runRepl(cfg *config.Config, set *queryset.Set) {
	sys := newDemoSystem(cfg, set)
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("increcache repl - type `help` for commands")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "help":
			fmt.Println("commands: set <name> <value> | run <query> | list | stats | exit")
		case "exit", "quit":
			return
		case "list":
			fmt.Printf("inputs: %s\n", strings.Join(set.InputNames(), ", "))
			fmt.Printf("queries: %s\n", strings.Join(set.QueryNames(), ", "))
		case "set":
			if len(fields) != 3 {
				fmt.Println("usage: set <name> <value>")
				continue
			}
			value, err := strconv.Atoi(fields[2])
			if err != nil {
				fmt.Printf("invalid integer %q\n", fields[2])
				continue
			}
			incremental.SetInput(sys.Runtime, valuesInput, fields[1], value)
			set.Inputs[fields[1]] = value
		case "run":
			if len(fields) != 2 {
				fmt.Println("usage: run <query>")
				continue
			}
			out, err := increxample.TryQuery[sumQuery, int](sys, fields[1], sumBody(set))
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Printf("%s = %d\n", fields[1], out)
		case "stats":
			hits, starts := 0, 0
			for _, entry := range sys.LogBook() {
				if entry.IsCacheHit() {
					hits++
				}
				if entry.IsQueryStart() {
					starts++
				}
			}
			fmt.Printf("cache hits: %d, query starts: %d\n", hits, starts)
			for _, name := range set.QueryNames() {
				if id, ok := incremental.Id[sumQuery, string](sys.Queries, name); ok {
					fmt.Printf("  %s -> query id #%d\n", name, id)
				}
			}
		default:
			fmt.Printf("unknown command %q (try `help`)\n", fields[0])
		}
	}
}

func runSnapshotSave(cfg *config.Config, set *queryset.Set, dataDir string) error {
	store, err := snapshot.Open(snapshot.Options{
		DataDir:    dataDir,
		InMemory:   cfg.Snapshot.InMemory,
		SyncWrites: cfg.Snapshot.SyncWrites,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Save(set.Inputs); err != nil {
		return err
	}
	fmt.Printf("saved %d input(s) to %s\n", len(set.Inputs), dataDir)
	return nil
}

func runSnapshotLoad(cfg *config.Config, dataDir string) error {
	store, err := snapshot.Open(snapshot.Options{
		DataDir:    dataDir,
		InMemory:   cfg.Snapshot.InMemory,
		SyncWrites: cfg.Snapshot.SyncWrites,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	values, err := store.Load()
	if err != nil {
		return err
	}
	for name, value := range values {
		fmt.Printf("%s = %d\n", name, value)
	}
	return nil
}
