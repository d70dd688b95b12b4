package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"llmed/internal/catalog"
	"llmed/internal/config"
)

// options collects persistent and per-command flag values. Only flags the
// user actually set override the config file and environment.
type options struct {
	configPath string
	flags      config.Config
	// CSV forms of the cors list flags.
	corsOrigins, corsMethods, corsHeaders string
}

func defaultConfig() config.Config {
	return config.Config{
		Addr:         ":8080",
		Manifest:     catalog.DefaultManifestPath,
		LogLevel:     "info",
		LogFormat:    "console",
		MaxBodyBytes: 1 << 20,
	}
}

func newRootCmd() *cobra.Command { return newRootCmdWith(&options{}) }

// newRootCmdWith builds the command tree with flag values bound into o.
func newRootCmdWith(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "llmed",
		Short:         "Local model lifecycle and inference dispatch server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "Path to config file (yaml|json|toml)")
	pf.StringVar(&o.flags.Manifest, "manifest", "", "Model manifest (defaults LLMED_MANIFEST or "+catalog.DefaultManifestPath+")")
	pf.StringVar(&o.flags.LogLevel, "log-level", "", "Log level: debug|info|warn|error")
	pf.StringVar(&o.flags.LogFormat, "log-format", "", "Log format: console|json")
	pf.StringVar(&o.flags.LibPath, "lib-path", "", "Directory holding the llama.cpp shared libraries (defaults YZMA_LIB)")
	pf.IntVar(&o.flags.Threads, "threads", 0, "Decode threads (0 = backend default)")
	pf.IntVar(&o.flags.GPULayers, "gpu-layers", 0, "Layers offloaded to GPU for text and embedding models")
	pf.IntVar(&o.flags.CtxSize, "ctx-size", 0, "Context window for text and embedding models")
	pf.IntVar(&o.flags.MaxTokens, "max-tokens", 0, "Step bound for text generation")
	pf.IntVar(&o.flags.MMCtxSize, "mm-ctx-size", 0, "Context window for multimodal models")
	pf.IntVar(&o.flags.MMBatchSize, "mm-batch-size", 0, "Batch size for multimodal prompt evaluation")
	pf.IntVar(&o.flags.MMMaxTokens, "mm-max-tokens", 0, "Step bound for multimodal generation")
	pf.IntVar(&o.flags.MaxQueueDepth, "max-queue-depth", 0, "Queued generations per instance before 429")
	pf.IntVar(&o.flags.MaxWaitMS, "max-wait-ms", 0, "Maximum queue wait before 429")

	root.AddCommand(newServeCmd(o), newModelsCmd(o), newQueryCmd(o))
	return root
}

// resolve merges defaults < config file < environment < flags.
func (o *options) resolve(cmd *cobra.Command) (config.Config, error) {
	cfg := defaultConfig()
	if o.configPath != "" {
		fileCfg, err := config.Load(o.configPath)
		if err != nil {
			return cfg, err
		}
		overlay(&cfg, fileCfg)
	}
	if v := os.Getenv("LLMED_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("LLMED_MANIFEST"); v != "" {
		cfg.Manifest = v
	}

	f := o.flags
	f.CORSOrigins = splitCSV(o.corsOrigins)
	f.CORSMethods = splitCSV(o.corsMethods)
	f.CORSHeaders = splitCSV(o.corsHeaders)
	changed := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}
	set := func(name string, apply func()) {
		if changed(name) {
			apply()
		}
	}
	set("addr", func() { cfg.Addr = f.Addr })
	set("manifest", func() { cfg.Manifest = f.Manifest })
	set("log-level", func() { cfg.LogLevel = f.LogLevel })
	set("log-format", func() { cfg.LogFormat = f.LogFormat })
	set("lib-path", func() { cfg.LibPath = f.LibPath })
	set("threads", func() { cfg.Threads = f.Threads })
	set("gpu-layers", func() { cfg.GPULayers = f.GPULayers })
	set("ctx-size", func() { cfg.CtxSize = f.CtxSize })
	set("max-tokens", func() { cfg.MaxTokens = f.MaxTokens })
	set("mm-ctx-size", func() { cfg.MMCtxSize = f.MMCtxSize })
	set("mm-batch-size", func() { cfg.MMBatchSize = f.MMBatchSize })
	set("mm-max-tokens", func() { cfg.MMMaxTokens = f.MMMaxTokens })
	set("max-queue-depth", func() { cfg.MaxQueueDepth = f.MaxQueueDepth })
	set("max-wait-ms", func() { cfg.MaxWaitMS = f.MaxWaitMS })
	set("infer-timeout-seconds", func() { cfg.InferTimeoutSeconds = f.InferTimeoutSeconds })
	set("max-body-bytes", func() { cfg.MaxBodyBytes = f.MaxBodyBytes })
	set("cors-enabled", func() { cfg.CORSEnabled = f.CORSEnabled })
	set("cors-origins", func() { cfg.CORSOrigins = f.CORSOrigins })
	set("cors-methods", func() { cfg.CORSMethods = f.CORSMethods })
	set("cors-headers", func() { cfg.CORSHeaders = f.CORSHeaders })
	set("inspect-gguf", func() { cfg.InspectGGUF = f.InspectGGUF })
	return cfg, nil
}

// overlay copies the non-zero fields of src onto dst.
func overlay(dst *config.Config, src config.Config) {
	str := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	num := func(d *int, s int) {
		if s != 0 {
			*d = s
		}
	}
	list := func(d *[]string, s []string) {
		if len(s) > 0 {
			*d = append([]string(nil), s...)
		}
	}
	str(&dst.Addr, src.Addr)
	str(&dst.Manifest, src.Manifest)
	str(&dst.LogLevel, src.LogLevel)
	str(&dst.LogFormat, src.LogFormat)
	str(&dst.LibPath, src.LibPath)
	num(&dst.Threads, src.Threads)
	num(&dst.GPULayers, src.GPULayers)
	num(&dst.CtxSize, src.CtxSize)
	num(&dst.MMCtxSize, src.MMCtxSize)
	num(&dst.MMBatchSize, src.MMBatchSize)
	num(&dst.MaxTokens, src.MaxTokens)
	num(&dst.MMMaxTokens, src.MMMaxTokens)
	num(&dst.MaxQueueDepth, src.MaxQueueDepth)
	num(&dst.MaxWaitMS, src.MaxWaitMS)
	num(&dst.InferTimeoutSeconds, src.InferTimeoutSeconds)
	if src.MaxBodyBytes > 0 {
		dst.MaxBodyBytes = src.MaxBodyBytes
	}
	if src.CORSEnabled {
		dst.CORSEnabled = true
	}
	list(&dst.CORSOrigins, src.CORSOrigins)
	list(&dst.CORSMethods, src.CORSMethods)
	list(&dst.CORSHeaders, src.CORSHeaders)
	if src.InspectGGUF {
		dst.InspectGGUF = true
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
