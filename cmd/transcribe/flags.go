package main

import (
	"flag"
	"fmt"

	"github.com/rasata/transcription-mp3-to-text/internal/config"
)

// options carries parsed CLI flags. Flag defaults are zero values on
// purpose: only flags the user actually set override config-file values.
type options struct {
	configPath   string
	language     string
	output       string
	chunk        int
	model        string
	service      string
	noSSLFix     bool
	keepSegments bool
	diarize      bool
	history      bool
	watchDir     string
	statusListen string
	verbose      bool
	version      bool

	args  []string
	set   map[string]bool
	usage func()
}

func parseArgs(argv []string) (*options, error) {
	o := &options{set: make(map[string]bool)}
	fs := flag.NewFlagSet("transcribe", flag.ContinueOnError)
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintln(out, "Usage:")
		fmt.Fprintln(out, "  transcribe [flags] AUDIO_FILE")
		fmt.Fprintln(out, "  transcribe -watch DIR [flags]")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Cuts the audio into segments with ffmpeg, transcribes each through the")
		fmt.Fprintln(out, "selected service and appends the text to a growing transcript file.")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Flags:")
		fs.PrintDefaults()
	}

	fs.StringVar(&o.language, "language", "", "transcription language code (default fr)")
	fs.StringVar(&o.language, "l", "", "shorthand for -language")
	fs.StringVar(&o.output, "output", "", "transcript file path (default derived from the audio name)")
	fs.StringVar(&o.output, "o", "", "shorthand for -output")
	fs.IntVar(&o.chunk, "chunk", 0, "segment length in minutes (default 10)")
	fs.IntVar(&o.chunk, "c", 0, "shorthand for -chunk")
	fs.StringVar(&o.model, "model", "", "local whisper model: tiny, base, small, medium or large (default tiny)")
	fs.StringVar(&o.model, "m", "", "shorthand for -model")
	fs.StringVar(&o.service, "service", "", "transcription service: local, assemblyai or openai (default local)")
	fs.StringVar(&o.service, "s", "", "shorthand for -service")
	fs.StringVar(&o.configPath, "config", "", "config file path (default ~/.config/transcribe/config.yaml)")
	fs.BoolVar(&o.noSSLFix, "no-ssl-fix", false, "skip the TLS preflight check against the provider")
	fs.BoolVar(&o.keepSegments, "keep-segments", false, "keep extracted segment files after the job")
	fs.BoolVar(&o.diarize, "diarize", false, "label speakers in the transcript (assemblyai only)")
	fs.BoolVar(&o.history, "history", false, "list recent jobs and exit")
	fs.StringVar(&o.watchDir, "watch", "", "watch DIR and transcribe every new audio file")
	fs.StringVar(&o.statusListen, "status-listen", "", "serve progress snapshots over WebSocket on ADDR")
	fs.BoolVar(&o.verbose, "verbose", false, "debug logging")
	fs.BoolVar(&o.version, "version", false, "print version and exit")

	if err := fs.Parse(argv); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	o.args = fs.Args()
	o.usage = fs.Usage
	return o, nil
}

// on reports whether any of the given flag names was set on the command line.
func (o *options) on(names ...string) bool {
	for _, n := range names {
		if o.set[n] {
			return true
		}
	}
	return false
}

// apply layers explicitly-set flags over the loaded config.
func (o *options) apply(cfg *config.Config) {
	if o.on("language", "l") {
		cfg.Language = o.language
	}
	if o.on("chunk", "c") {
		cfg.ChunkMinutes = o.chunk
	}
	if o.on("model", "m") {
		cfg.Model = o.model
	}
	if o.on("service", "s") {
		cfg.Service = o.service
	}
	if o.on("keep-segments") {
		cfg.KeepSegments = o.keepSegments
	}
	if o.on("diarize") {
		cfg.Diarization.Enabled = o.diarize
	}
	if o.verbose {
		cfg.LogLevel = "debug"
	}
}
