/*
 * GraphStream
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
graphstreamd is the GraphStream node binary: a "run" subcommand that
streams edges from an input file through a GraphStore and appends
completed matches to an output file, and a "console" subcommand that
drives the same GraphStore interactively from the terminal.
*/
package main

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/krotik/common/termutil"

	"github.com/flowmatch/graphstream/cluster"
	"github.com/flowmatch/graphstream/config"
	"github.com/flowmatch/graphstream/edge"
	"github.com/flowmatch/graphstream/metrics"
	"github.com/flowmatch/graphstream/store"
	"github.com/flowmatch/graphstream/version"
)

/*
Fatal and print logger hooks, overridable from tests the same way
EliasDB's cli/eliasdb.go keeps fatal/print as package variables rather
than calling log.Fatal directly.
*/
type consolelogger func(v ...interface{})

var fatal consolelogger = log.Fatal
var print consolelogger = log.Print

func main() {
	flag.CommandLine.Init(os.Args[0], flag.ContinueOnError)

	flag.Usage = func() {
		fmt.Println(fmt.Sprintf("Usage of %s <command>", os.Args[0]))
		fmt.Println()
		fmt.Println("GraphStream distributed subgraph pattern streaming engine")
		fmt.Println()
		fmt.Println("Available commands:")
		fmt.Println()
		fmt.Println("    run        Stream edges from a file through a node")
		fmt.Println("    console    Interactive console against a node")
		fmt.Println()
		fmt.Println(fmt.Sprintf("Use %s <command> -help for more information about a given command.", os.Args[0]))
		fmt.Println()
	}

	err := flag.CommandLine.Parse(os.Args[1:])

	if len(flag.Args()) == 0 {
		if err == nil {
			flag.Usage()
			os.Exit(1)
		}
		os.Exit(1)
	}

	switch flag.Args()[0] {
	case "run":
		os.Exit(runCommand(os.Args[2:]))
	case "console":
		os.Exit(consoleCommand(os.Args[2:]))
	default:
		flag.Usage()
		os.Exit(1)
	}
}

/*
nodeFlags are the flags shared by both subcommands.
*/
type nodeFlags struct {
	configFile      string
	numNodes        int
	nodeID          int
	prefix          string
	startingPort    int
	graphCapacity   int
	tableCapacity   int
	featureCapacity int
	hwm             int
	timeoutMS       int
	timeWindow      float64
	queueLength     int
	numSockets      int
	numPullThreads  int
	input           string
	output          string
	queries         string
}

func bindNodeFlags(fs *flag.FlagSet) *nodeFlags {
	nf := &nodeFlags{}

	fs.StringVar(&nf.configFile, "config", config.DefaultConfigFile, "Config file")
	fs.IntVar(&nf.numNodes, "numNodes", -1, "Number of nodes in the cluster")
	fs.IntVar(&nf.nodeID, "nodeId", -1, "This node's id (0-based)")
	fs.StringVar(&nf.prefix, "prefix", "", "Hostname prefix for peer nodes")
	fs.IntVar(&nf.startingPort, "startingPort", -1, "First port reserved for cluster transport")
	fs.IntVar(&nf.graphCapacity, "graphCapacity", -1, "Bucket count for the local edge index")
	fs.IntVar(&nf.tableCapacity, "tableCapacity", -1, "Bucket count for the partial match table")
	fs.IntVar(&nf.featureCapacity, "featureCapacity", -1, "Bucket count for feature lookups")
	fs.IntVar(&nf.hwm, "hwm", -1, "Per-socket send queue high-water mark")
	fs.IntVar(&nf.timeoutMS, "timeout", -1, "Per-send timeout in milliseconds")
	fs.Float64Var(&nf.timeWindow, "timeWindow", -1, "Query window in seconds (stored in config; each loaded query uses its own window)")
	fs.IntVar(&nf.queueLength, "queueLength", -1, "Queue length (stored in config; not read when building the node)")
	fs.IntVar(&nf.numSockets, "numSockets", -1, "Outbound sockets per peer per class")
	fs.IntVar(&nf.numPullThreads, "numPullThreads", -1, "Pull goroutines per listener")
	fs.StringVar(&nf.input, "input", "", "Input edge stream (CSV: src,dst,tstart,tend)")
	fs.StringVar(&nf.output, "output", "", "Output file for completed matches (JSON lines)")
	fs.StringVar(&nf.queries, "queries", "", "JSON file of query definitions to register")

	return nf
}

/*
loadConfig loads the config file (creating it with defaults if absent)
and overlays every flag the caller actually set, the same overlay-over-
file pattern as EliasDB's own config loading.
*/
func (nf *nodeFlags) loadConfig(fs *flag.FlagSet) error {
	if err := config.LoadConfigFile(nf.configFile); err != nil {
		return err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	overlay := map[string]struct {
		key string
		val interface{}
	}{
		"numNodes":        {config.NumNodes, nf.numNodes},
		"nodeId":          {config.NodeID, nf.nodeID},
		"prefix":          {config.Prefix, nf.prefix},
		"startingPort":    {config.StartingPort, nf.startingPort},
		"graphCapacity":   {config.GraphCapacity, nf.graphCapacity},
		"tableCapacity":   {config.TableCapacity, nf.tableCapacity},
		"featureCapacity": {config.FeatureCapacity, nf.featureCapacity},
		"hwm":             {config.HWM, nf.hwm},
		"timeout":         {config.TimeoutMS, nf.timeoutMS},
		"timeWindow":      {config.TimeWindow, nf.timeWindow},
		"queueLength":     {config.QueueLength, nf.queueLength},
		"numSockets":      {config.NumSockets, nf.numSockets},
		"numPullThreads":  {config.NumPullThreads, nf.numPullThreads},
		"input":           {config.InputPath, nf.input},
		"output":          {config.OutputPath, nf.output},
	}

	for name, ov := range overlay {
		if set[name] {
			config.Config[ov.key] = ov.val
		}
	}

	return nil
}

/*
buildStore constructs a GraphStore (and, for a multi-node cluster, the
cluster.Partitioner that feeds it) from the current config.
*/
func buildStore(nf *nodeFlags) (*store.GraphStore, error) {
	numNodes := int(config.Int(config.NumNodes))
	nodeID := int(config.Int(config.NodeID))
	counters := metrics.New()

	// featureCapacity is sized for a feature.Lookup collaborator, which
	// is out of scope here, so it is only carried in config for whatever
	// builds one; reqmap shares tableCapacity's bucket count since both
	// are bucket-hashed tables of comparable scale.
	cfg := store.Config{
		NodeID:          nodeID,
		GraphCapacity:   int(config.Int(config.GraphCapacity)),
		TableCapacity:   int(config.Int(config.TableCapacity)),
		RequestCapacity: int(config.Int(config.TableCapacity)),
		Hash:            edge.DefaultHash,
		Counters:        counters,
	}

	if numNodes > 1 {
		topo := cluster.Topology{
			NumNodes:     numNodes,
			Prefix:       config.Str(config.Prefix),
			StartingPort: int(config.Int(config.StartingPort)),
			NumSockets:   int(config.Int(config.NumSockets)),
		}

		cfg.Partitioner = cluster.New(cluster.Config{
			Topology:       topo,
			NodeID:         nodeID,
			HWM:            int(config.Int(config.HWM)),
			Timeout:        time.Duration(config.Int(config.TimeoutMS)) * time.Millisecond,
			NumPullThreads: int(config.Int(config.NumPullThreads)),
			Counters:       counters,
			Hash:           edge.DefaultHash,
		})
	}

	gs := store.New(cfg)
	if err := gs.Start(); err != nil {
		return nil, err
	}

	return gs, nil
}

/*
runCommand streams every edge in the configured input file through a
GraphStore and appends each completed match to the configured output
file as it is produced. Returns the process exit code: 0 clean, 1 usage
error, -1 missing input/output or a failure to start.
*/
func runCommand(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	nf := bindNodeFlags(fs)
	showHelp := fs.Bool("help", false, "Show this help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *showHelp {
		fs.PrintDefaults()
		return 0
	}

	print(fmt.Sprintf("GraphStream %s.%s", version.VERSION, version.REV))

	if err := nf.loadConfig(fs); err != nil {
		fatal(err)
		return 1
	}

	inputPath := config.Str(config.InputPath)
	outputPath := config.Str(config.OutputPath)
	if inputPath == "" || outputPath == "" {
		print("both -input and -output must be set")
		return -1
	}

	in, err := os.Open(inputPath)
	if err != nil {
		print(err)
		return -1
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		print(err)
		return -1
	}
	defer out.Close()

	gs, err := buildStore(nf)
	if err != nil {
		print(err)
		return -1
	}
	defer gs.Terminate()

	if qpath := nf.queries; qpath != "" {
		queries, err := loadQueries(qpath)
		if err != nil {
			print(err)
			return -1
		}
		for _, q := range queries {
			if err := gs.RegisterQuery(q); err != nil {
				print(err)
			}
		}
	}

	if err := streamEdges(in, out, gs); err != nil {
		print(err)
		return -1
	}

	return 0
}

/*
streamEdges reads src,dst,tstart,tend rows from r, ingests each into gs,
and appends every newly completed match to w as a JSON line. It sweeps
gs once at the end of the stream so a short-lived run does not leak the
partial matches and requests a longer-lived deployment would expire on
its own.
*/
func streamEdges(r io.Reader, w io.Writer, gs *store.GraphStore) error {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1

	bw := bufio.NewWriter(w)
	defer bw.Flush()

	enc := json.NewEncoder(bw)

	var lastTStart float64

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if len(rec) < 4 {
			continue
		}

		src := edge.VertexID(rec[0])
		dst := edge.VertexID(rec[1])
		tstart, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return err
		}
		tend, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return err
		}

		var tuple interface{}
		if len(rec) > 4 {
			tuple = strings.Join(rec[4:], ",")
		}

		if _, err := gs.Ingest(src, dst, tstart, tend, tuple); err != nil {
			return err
		}

		lastTStart = tstart

		for _, m := range gs.ClearResults() {
			if err := enc.Encode(m); err != nil {
				return err
			}
		}
	}

	gs.Sweep(lastTStart)

	for _, m := range gs.ClearResults() {
		if err := enc.Encode(m); err != nil {
			return err
		}
	}

	return nil
}

/*
consoleCommand drives a GraphStore interactively: "ingest src dst tstart
tend", "results", "status" and "quit", grounded on cli/eliasdb.go's
RunCliConsole line loop (there driven over a REST client; here driven
directly against an in-process GraphStore, since graphstreamd has no
separate always-on server process to attach to).
*/
func consoleCommand(args []string) int {
	fs := flag.NewFlagSet("console", flag.ContinueOnError)
	nf := bindNodeFlags(fs)
	showHelp := fs.Bool("help", false, "Show this help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *showHelp {
		fs.PrintDefaults()
		return 0
	}

	if err := nf.loadConfig(fs); err != nil {
		fatal(err)
		return 1
	}

	gs, err := buildStore(nf)
	if err != nil {
		print(err)
		return -1
	}
	defer gs.Terminate()

	if qpath := nf.queries; qpath != "" {
		queries, err := loadQueries(qpath)
		if err != nil {
			print(err)
			return -1
		}
		for _, q := range queries {
			if err := gs.RegisterQuery(q); err != nil {
				print(err)
			}
		}
	}

	fmt.Println(fmt.Sprintf("GraphStream %s.%s - Console", version.VERSION, version.REV))
	fmt.Println("Type 'quit' to exit")

	clt, err := termutil.NewConsoleLineTerminal(os.Stdout)
	if err != nil {
		print(err)
		return -1
	}

	if err := clt.StartTerm(); err != nil {
		print(err)
		return -1
	}
	defer clt.StopTerm()

	line, err := clt.NextLine()
	for err == nil && strings.TrimSpace(line) != "quit" {
		handleConsoleLine(gs, strings.TrimSpace(line))
		line, err = clt.NextLine()
	}

	return 0
}

func handleConsoleLine(gs *store.GraphStore, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "ingest":
		if len(fields) != 5 {
			fmt.Println("usage: ingest <src> <dst> <tstart> <tend>")
			return
		}
		tstart, err1 := strconv.ParseFloat(fields[3], 64)
		tend, err2 := strconv.ParseFloat(fields[4], 64)
		if err1 != nil || err2 != nil {
			fmt.Println("tstart/tend must be numbers")
			return
		}
		if _, err := gs.Ingest(edge.VertexID(fields[1]), edge.VertexID(fields[2]), tstart, tend, nil); err != nil {
			fmt.Println(err)
		}
	case "results":
		for _, m := range gs.ClearResults() {
			fmt.Printf("%+v\n", m)
		}
	case "status":
		fmt.Println("state:", gs.State())
		fmt.Println("pending results:", gs.GetNumResults())
		fmt.Println("total edge pulls:", gs.GetTotalEdgePulls())
	default:
		fmt.Println("unknown command:", fields[0])
	}
}
