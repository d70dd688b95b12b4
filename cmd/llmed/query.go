package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"llmed/internal/logging"
	"llmed/internal/manager"
	"llmed/internal/sampling"
	"llmed/pkg/types"
)

type queryFlags struct {
	image     string
	maxTokens int
	sampling  sampling.Params
}

func newQueryCmd(o *options) *cobra.Command {
	var q queryFlags
	cmd := &cobra.Command{
		Use:   "query NAME TEXT...",
		Short: "Load a model, run one request and print the result",
		Example: "  llmed query qwen2 \"Write a haiku about the ocean.\"\n" +
			"  llmed query qwen2-vl --image /tmp/frame.jpg \"What is in the picture?\"\n" +
			"  llmed query nomic-embed \"graph database\"",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.resolve(cmd)
			if err != nil {
				return err
			}
			log := logging.New(cfg.LogLevel, cfg.LogFormat)
			mgr := manager.New(managerConfig(cfg, openBackend(cfg, log), &log, nil))
			defer mgr.Close()
			return runQuery(cmd.Context(), mgr, args[0], strings.Join(args[1:], " "), q, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&q.image, "image", "", "Image file for multimodal models")
	f.IntVar(&q.maxTokens, "n", 0, "Maximum new tokens (0 = server bound)")
	f.Float64Var(&q.sampling.Temperature, "temperature", 0, "Sampling temperature (0 = greedy)")
	f.IntVar(&q.sampling.TopK, "top-k", 0, "Top-K candidates")
	f.Float64Var(&q.sampling.TopP, "top-p", 0, "Nucleus probability")
	f.Int64Var(&q.sampling.Seed, "seed", 0, "Sampling seed (0 = time based)")
	return cmd
}

// runQuery dispatches on the loaded model's kind and unloads it afterwards.
func runQuery(ctx context.Context, mgr *manager.Manager, name, text string, q queryFlags, w io.Writer) error {
	desc, err := mgr.Load(name)
	if err != nil {
		return err
	}
	defer mgr.Unload(desc.InstanceID)

	opts := manager.GenerateOptions{MaxTokens: q.maxTokens, Sampling: q.sampling}
	var c manager.Completion
	switch desc.Kind {
	case types.KindEmbedding:
		vec, err := mgr.Embed(ctx, desc.InstanceID, text)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%d %v\n", len(vec), vec)
		return err
	case types.KindMultimodal:
		if q.image == "" {
			return fmt.Errorf("model %s needs --image", name)
		}
		c, err = mgr.QueryImageWith(ctx, desc.InstanceID, text, q.image, opts)
	default:
		c, err = mgr.QueryWith(ctx, desc.InstanceID, text, opts)
	}
	if err != nil {
		if p := manager.PartialOutput(err); p != "" {
			fmt.Fprintln(w, p)
		}
		return err
	}
	_, err = fmt.Fprintln(w, c.Text)
	return err
}
