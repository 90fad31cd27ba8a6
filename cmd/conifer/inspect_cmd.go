package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/facekit/conifer"
	"github.com/facekit/conifer/checkpoint"
	"github.com/facekit/conifer/forest"
	"github.com/facekit/conifer/param"
	"github.com/facekit/conifer/patch"
	"github.com/facekit/conifer/tree"
	"github.com/spf13/cobra"
)

type inspectCmdConfig struct {
	*rootCmdConfig
	configPath  string
	store       string
	redisPrefix string
	mongoDB     string
	ctx         context.Context
	cancelFunc  context.CancelFunc
}

func inspectCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &inspectCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Report the training state of a forest",
		Long:  `Report the training state every tree checkpoint of a forest is in: absent, unreadable, partially grown or finished.`,
		Run: func(cmd *cobra.Command, args []string) {
			err := config.Validate()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			config.Context()
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

			trainer := conifer.NewTrainer(params, patch.NewGenerator(len(params.Features)), &patch.Fitter{}, store)
			for i := 0; i < params.NTrees; i++ {
				key := forest.TreeKey(i)
				t, err := trainer.Load(config.Context(), key)
				var decodeErr *tree.DecodeError
				switch {
				case errors.Is(err, checkpoint.ErrNotFound):
					fmt.Printf("%s: not started\n", key)
				case errors.As(err, &decodeErr):
					fmt.Printf("%s: unreadable checkpoint (%v)\n", key, err)
				case err != nil:
					fmt.Fprintln(os.Stderr, err)
					os.Exit(5)
				case t.IsFinished():
					fmt.Printf("%s: finished, %d nodes, %d leaves\n", key, len(t.Nodes), t.LeafCount)
				default:
					fmt.Printf("%s: %.1f%% grown, %d nodes, %d leaves\n", key, t.Progress(), len(t.Nodes), t.LeafCount)
				}
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&(config.configPath), "config", "c", "", "path to a YML file with the forest parameters (required)")
	cmd.PersistentFlags().StringVarP(&(config.store), "store", "s", "", "directory path, .db SQLite3 file, or redis://, mongodb:// or postgresql:// URL holding the tree checkpoints (defaults to the tree_path in the forest config)")
	cmd.PersistentFlags().StringVar(&(config.redisPrefix), "redis-prefix", "conifer", "prefix for checkpoint keys when the store is a redis URL")
	cmd.PersistentFlags().StringVar(&(config.mongoDB), "mongo-db", "conifer", "database holding the checkpoint collection when the store is a mongodb URL")
	return cmd
}

func (icc *inspectCmdConfig) Validate() error {
	if icc.configPath == "" {
		return fmt.Errorf("required config flag was not set")
	}
	return nil
}

func (icc *inspectCmdConfig) setContextAndCancelFunc() {
	if icc.ctx == nil {
		icc.ctx, icc.cancelFunc = context.WithCancel(context.Background())
	}
}

func (icc *inspectCmdConfig) Context() context.Context {
	icc.setContextAndCancelFunc()
	return icc.ctx
}

func (icc *inspectCmdConfig) ContextCancelFunc() context.CancelFunc {
	icc.setContextAndCancelFunc()
	return icc.cancelFunc
}
