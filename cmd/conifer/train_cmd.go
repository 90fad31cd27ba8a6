package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/facekit/conifer"
	"github.com/facekit/conifer/forest"
	"github.com/facekit/conifer/param"
	"github.com/facekit/conifer/patch"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
)

type trainCmdConfig struct {
	*rootCmdConfig
	configPath   string
	patchesPath  string
	offsetsPath  string
	store        string
	redisPrefix  string
	mongoDB      string
	seed         int64
	saveInterval int
	cpuProfile   string
	ctx          context.Context
	cancelFunc   context.CancelFunc
}

func trainCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &trainCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a forest of regression trees",
		Long:  `Train a forest of conditional regression trees on a stack of facial-feature patches, resuming any tree with an unfinished checkpoint in the store.`,
		Run: func(cmd *cobra.Command, args []string) {
			err := config.Validate()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			config.Context()
			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt)
			go func(cancel context.CancelFunc) {
				<-interrupt
				config.Logf("Interrupting, training will stop at the next node...")
				cancel()
			}(config.ContextCancelFunc())

			config.Logf("Reading forest parameters from %s...", config.configPath)
			params, err := param.ReadFile(config.configPath)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			err = params.Validate()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(3)
			}
			if config.store == "" {
				config.store = params.TreePath
			}
			store, err := openCheckpointStore(config.Context(), config.rootCmdConfig, config.store, config.redisPrefix, config.mongoDB)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(4)
			}
			defer store.Close(context.Background())

			config.Logf("Loading patches from %s and offsets from %s...", config.patchesPath, config.offsetsPath)
			samples, err := patch.LoadStack(config.patchesPath, config.offsetsPath)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(5)
			}
			if len(samples) == 0 {
				fmt.Fprintln(os.Stderr, "no patches found in the stack")
				os.Exit(6)
			}
			if p, ok := samples[0].(*patch.Patch); ok && p.Channels() != len(params.Features) {
				fmt.Fprintf(os.Stderr, "patches carry %d channels but the forest config lists %d features\n", p.Channels(), len(params.Features))
				os.Exit(6)
			}
			config.Logf("%d patches loaded", len(samples))

			if config.cpuProfile != "" {
				defer profile.Start(profile.CPUProfile, profile.ProfilePath(config.cpuProfile)).Stop()
			}
			log, err := newZapLogger(config.verbose)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(7)
			}
			defer log.Sync()

			generator := patch.NewGenerator(len(params.Features))
			trainer := conifer.NewTrainer(params, generator, &patch.Fitter{}, store,
				conifer.WithLogger(log),
				conifer.WithSaveInterval(time.Duration(config.saveInterval)*time.Second))
			config.Logf("Growing %d trees of depth %d from %d patches...", params.NTrees, params.MaxDepth, len(samples))
			trees, err := forest.New(params, trainer, log).Train(config.Context(), samples, config.seed)
			if err != nil {
				if config.Context().Err() != nil {
					config.Logf("Training interrupted, the saved checkpoints allow resuming")
					os.Exit(0)
				}
				fmt.Fprintf(os.Stderr, "training forest: %v\n", err)
				os.Exit(8)
			}
			for i, t := range trees {
				config.Logf("%s: %d nodes, %d leaves", forest.TreeKey(i), len(t.Nodes), t.LeafCount)
			}
			config.Logf("Done")
		},
	}
	cmd.PersistentFlags().StringVarP(&(config.configPath), "config", "c", "", "path to a YML file with the forest parameters (required)")
	cmd.PersistentFlags().StringVarP(&(config.patchesPath), "patches", "p", "", "path to an NPY file with the patch stack, shaped patches x channels x rows x cols (required)")
	cmd.PersistentFlags().StringVarP(&(config.offsetsPath), "offsets", "o", "", "path to an NPY file with the patch offsets, shaped patches x dims (required)")
	cmd.PersistentFlags().StringVarP(&(config.store), "store", "s", "", "directory path, .db SQLite3 file, or redis://, mongodb:// or postgresql:// URL to keep tree checkpoints on (defaults to the tree_path in the forest config)")
	cmd.PersistentFlags().StringVar(&(config.redisPrefix), "redis-prefix", "conifer", "prefix for checkpoint keys when the store is a redis URL")
	cmd.PersistentFlags().StringVar(&(config.mongoDB), "mongo-db", "conifer", "database holding the checkpoint collection when the store is a mongodb URL")
	cmd.PersistentFlags().Int64Var(&(config.seed), "seed", 1, "seed for the random sequence of each tree, offset by the tree number")
	cmd.PersistentFlags().IntVar(&(config.saveInterval), "save-interval", 600, "seconds between automatic checkpoints while growing (0 checkpoints after every split)")
	cmd.PersistentFlags().StringVar(&(config.cpuProfile), "cpu-profile", "", "directory to write a CPU profile of the training run to")
	return cmd
}

func (tcc *trainCmdConfig) Validate() error {
	if tcc.configPath == "" {
		return fmt.Errorf("required config flag was not set")
	}
	if tcc.patchesPath == "" {
		return fmt.Errorf("required patches flag was not set")
	}
	if tcc.offsetsPath == "" {
		return fmt.Errorf("required offsets flag was not set")
	}
	if tcc.saveInterval < 0 {
		return fmt.Errorf("save-interval cannot be negative")
	}
	return nil
}

func (tcc *trainCmdConfig) setContextAndCancelFunc() {
	if tcc.ctx == nil {
		tcc.ctx, tcc.cancelFunc = context.WithCancel(context.Background())
	}
}

func (tcc *trainCmdConfig) Context() context.Context {
	tcc.setContextAndCancelFunc()
	return tcc.ctx
}

func (tcc *trainCmdConfig) ContextCancelFunc() context.CancelFunc {
	tcc.setContextAndCancelFunc()
	return tcc.cancelFunc
}
