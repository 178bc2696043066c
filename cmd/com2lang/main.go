package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	com2 "github.com/com2lang/com2lang/go"
)

const defaultWritePermission = 0644 // -rw-r--r--

var (
	flagDriver    string
	flagProvider  string
	flagNoiseRate int
	flagParams    []string
	flagASTOnly   bool
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "com2 <file> <output_prefix>",
	Short: "Compile a com2 protocol description to C",
	Long: "com2 compiles a synchronous wire-level protocol description into a\n" +
		"portable C source/header pair implementing one endpoint's view of the\n" +
		"protocol as a free-running polling loop.",
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&flagDriver, "driver", "LEFT", "endpoint to compile (LEFT or RIGHT)")
	rootCmd.Flags().StringVar(&flagProvider, "provider", "arduino", "target provider (arduino or noisy)")
	rootCmd.Flags().IntVar(&flagNoiseRate, "noise-rate", 1000, "flip one in N written bits (noisy provider only)")
	rootCmd.Flags().StringArrayVar(&flagParams, "param", nil, "override a parameter, as name=value (repeatable)")
	rootCmd.Flags().BoolVar(&flagASTOnly, "ast-only", false, "print the parse tree and exit")
	rootCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "enable debug logging")
}

func run(cmd *cobra.Command, args []string) error {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if flagVerbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	inputPath, outputPrefix := args[0], args[1]
	source, err := os.ReadFile(inputPath)
	if err != nil {
		return errors.Wrapf(err, "reading %s", inputPath)
	}

	if flagASTOnly {
		tree, err := com2.Parse(string(source))
		if err != nil {
			return err
		}
		fmt.Println(tree.PrettyString())
		return nil
	}

	opts, err := buildOptions()
	if err != nil {
		return err
	}

	log.Debug().Str("file", inputPath).Stringer("side", opts.Side).Msg("compiling")
	csrc, hsrc, err := com2.Compile(string(source), opts)
	if err != nil {
		return err
	}

	cPath, hPath := outputPrefix+".c", outputPrefix+".h"
	if err := os.WriteFile(hPath, []byte(hsrc), defaultWritePermission); err != nil {
		return errors.Wrapf(err, "writing %s", hPath)
	}
	if err := os.WriteFile(cPath, []byte(csrc), defaultWritePermission); err != nil {
		return errors.Wrapf(err, "writing %s", cPath)
	}
	log.Debug().Str("c", cPath).Str("h", hPath).Msg("wrote output")
	return nil
}

func buildOptions() (*com2.Options, error) {
	opts := com2.NewOptions()

	side, err := com2.ParseDriver(flagDriver)
	if err != nil {
		return nil, err
	}
	opts.Side = side

	switch flagProvider {
	case "arduino":
		opts.Provider = com2.ArduinoProvider{}
	case "noisy":
		opts.Provider = com2.NewNoisyProvider(com2.ArduinoProvider{}, flagNoiseRate)
	default:
		return nil, errors.Errorf("unknown provider `%s`, want arduino or noisy", flagProvider)
	}

	for _, kv := range flagParams {
		name, value, found := strings.Cut(kv, "=")
		if !found || name == "" {
			return nil, errors.Errorf("malformed --param `%s`, want name=value", kv)
		}
		opts.Params[name] = value
	}
	return opts, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("compilation failed")
		os.Exit(1)
	}
}
