package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	log "github.com/helinwang/log15"
	"github.com/helinwang/prodcon/pkg/config"
	"github.com/helinwang/prodcon/pkg/ledger"
	"github.com/helinwang/prodcon/pkg/prodcon"
	"github.com/helinwang/prodcon/pkg/state"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/urfave/cli"
)

var cfg config.Config
var rootHex string

func setupLog() error {
	lvl, err := cfg.Level()
	if err != nil {
		return err
	}

	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, log.TerminalFormat())))
	return nil
}

func loadSigner() (ledger.Signer, error) {
	if cfg.Credential == "" {
		log.Info("no credential provided, signing with a random key", "scheme", cfg.Signer)
		return ledger.NewRandomSigner(cfg.Scheme())
	}

	c, err := ledger.LoadCredential(cfg.Credential)
	if err != nil {
		return nil, err
	}

	if c.Scheme != cfg.Scheme() {
		log.Warn("credential scheme overrides the configured signer", "credential", c.Scheme, "signer", cfg.Signer)
		cfg.Signer = string(c.Scheme)
	}

	return c.Signer()
}

// startRoot returns the root given with --root, or the head of the
// store.
func startRoot(store *state.MerkleState) (ledger.Hash, error) {
	if rootHex == "" {
		return store.Head(), nil
	}

	root, err := ledger.HashFromHex(rootHex)
	if err != nil {
		return ledger.Hash{}, fmt.Errorf("parse root: %v", err)
	}

	if !store.Has(root) {
		return ledger.Hash{}, fmt.Errorf("%w: %s", state.ErrUnknownRoot, root.Hex())
	}

	return root, nil
}

func printInventory(store *state.MerkleState, root ledger.Hash) error {
	items, err := prodcon.Inventory(store, root)
	if err != nil {
		return err
	}

	fmt.Printf("State root:\n%s\n", root.Hex())
	fmt.Println("\nInventory:")
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', tabwriter.Debug)
	_, err = fmt.Fprintln(tw, "\tIdentifier\tQuantity\t")
	if err != nil {
		return err
	}

	for _, item := range items {
		_, err = fmt.Fprintf(tw, "\t%s\t%d\t\n", item.Identifier, item.Quantity)
		if err != nil {
			return err
		}
	}

	return tw.Flush()
}

func run(c *cli.Context) error {
	err := cfg.Validate()
	if err != nil {
		return err
	}

	err = setupLog()
	if err != nil {
		return err
	}

	signer, err := loadSigner()
	if err != nil {
		return err
	}

	verifier, err := ledger.NewVerifier(cfg.Scheme())
	if err != nil {
		return err
	}

	store, err := state.Open(cfg.DataDir, cfg.StateCacheSize)
	if err != nil {
		return err
	}
	defer store.Close()

	root, err := startRoot(store)
	if err != nil {
		return err
	}

	engine, err := prodcon.NewEngine(store, verifier)
	if err != nil {
		return err
	}
	defer engine.Stop()

	log.Info("pipeline started", "root", root, "scheme", cfg.Signer, "data_dir", cfg.DataDir)
	p := prodcon.NewPipeline(
		prodcon.NewBatcher(signer),
		engine.Orchestrator(cfg.ExecutionTimeout),
		store,
		root,
		nil,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	err = p.Run(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		log.Info("interrupted", "root", p.Root())
	} else if err != nil {
		return err
	}

	err = printInventory(store, p.Root())
	if err != nil {
		return err
	}

	metrics.WriteOnce(p.Metrics().Registry(), os.Stderr)
	return nil
}

func exportState(c *cli.Context) error {
	path := c.Args().First()
	if path == "" || cfg.DataDir == "" {
		return fmt.Errorf("expecting a data directory and an output file: ./prodcon --data-dir DIR export FILE")
	}

	store, err := state.Open(cfg.DataDir, cfg.StateCacheSize)
	if err != nil {
		return err
	}
	defer store.Close()

	root, err := startRoot(store)
	if err != nil {
		return err
	}

	b, err := store.Export(root)
	if err != nil {
		return err
	}

	err = ioutil.WriteFile(path, b.Encode(), 0644)
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d nodes of state root:\n%s\n", len(b.Data), root.Hex())
	return nil
}

func importState(c *cli.Context) error {
	path := c.Args().First()
	if path == "" || cfg.DataDir == "" {
		return fmt.Errorf("expecting a data directory and an input file: ./prodcon --data-dir DIR import FILE")
	}

	d, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}

	b, err := state.DecodeTrieBlob(d)
	if err != nil {
		return fmt.Errorf("decode %s: %v", path, err)
	}

	store, err := state.Open(cfg.DataDir, cfg.StateCacheSize)
	if err != nil {
		return err
	}
	defer store.Close()

	err = store.Import(b)
	if err != nil {
		return err
	}

	fmt.Printf("Imported state root, run with --root to continue from it:\n%s\n", b.Root.Hex())
	return nil
}

func printAddress(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("expecting an identifier: ./prodcon address IDENTIFIER")
	}

	fmt.Println(hex.EncodeToString(prodcon.Address(id)))
	return nil
}

func encodeCommand(c *cli.Context) error {
	args := c.Args()
	if len(args) == 0 {
		return fmt.Errorf("expecting a command: ./prodcon encode PRODUCE|CONSUME IDENTIFIER QUANTITY")
	}

	payload, inputs, _, err := prodcon.Encode(strings.Join(args, " "))
	if err != nil {
		return err
	}

	fmt.Printf("Payload:\n%x\n", payload)
	fmt.Printf("Address:\n%x\n", inputs[0])
	return nil
}

func main() {
	log.Root().SetHandler(log.LvlFilterHandler(log.LvlInfo, log.StreamHandler(os.Stderr, log.TerminalFormat())))

	var err error
	cfg, err = config.Load()
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}

	app := cli.NewApp()
	app.Name = "prodcon"
	app.Usage = "produce and consume items, one signed batch per command"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "signer",
			Value:       cfg.Signer,
			Usage:       "signature scheme: secp256k1 or bls",
			Destination: &cfg.Signer,
		},
		cli.StringFlag{
			Name:        "credential, c",
			Value:       cfg.Credential,
			Usage:       "path to the credential file, a random key is used if empty",
			Destination: &cfg.Credential,
		},
		cli.StringFlag{
			Name:        "data-dir",
			Value:       cfg.DataDir,
			Usage:       "state database directory, state is kept in memory if empty",
			Destination: &cfg.DataDir,
		},
		cli.DurationFlag{
			Name:        "timeout",
			Value:       cfg.ExecutionTimeout,
			Usage:       "maximum time to wait for a batch execution result",
			Destination: &cfg.ExecutionTimeout,
		},
		cli.StringFlag{
			Name:        "log-level",
			Value:       cfg.LogLevel,
			Usage:       "log level: crit, error, warn, info or debug",
			Destination: &cfg.LogLevel,
		},
		cli.StringFlag{
			Name:        "root",
			Usage:       "hex encoded state root to start from, the last committed root if empty",
			Destination: &rootHex,
		},
		cli.IntFlag{
			Name:        "cache",
			Value:       cfg.StateCacheSize,
			Usage:       "number of state versions kept open",
			Destination: &cfg.StateCacheSize,
		},
	}

	app.Action = run
	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "Read commands from stdin until end of input: ./prodcon run",
			Action: run,
		},
		{
			Name:   "address",
			Usage:  "Print the state address of an item: ./prodcon address IDENTIFIER",
			Action: printAddress,
		},
		{
			Name:   "export",
			Usage:  "Write the state at the head (or --root) to a file: ./prodcon --data-dir DIR export FILE",
			Action: exportState,
		},
		{
			Name:   "import",
			Usage:  "Load a state written by export: ./prodcon --data-dir DIR import FILE",
			Action: importState,
		},
		{
			Name:   "encode",
			Usage:  "Print the payload of a command without submitting it: ./prodcon encode PRODUCE widget 5",
			Action: encodeCommand,
		},
	}

	err = app.Run(os.Args)
	if err != nil {
		log.Error("command failed", "err", err)
		os.Exit(1)
	}
}
