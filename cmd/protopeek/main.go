package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode"

	"github.com/anirudhraja/protopeek"
	"github.com/anirudhraja/protopeek/internal/config"
	"github.com/anirudhraja/protopeek/internal/logging"
	"github.com/anirudhraja/protopeek/schema"
	"github.com/anirudhraja/protopeek/wire"
)

const demoMessage = "demo.ScaleReading"

type stringList []string

func (l *stringList) String() string     { return strings.Join(*l, ",") }
func (l *stringList) Set(v string) error { *l = append(*l, v); return nil }

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "protopeek: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("protopeek", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath  = fs.String("config", "", "TOML config file")
		message     = fs.String("message", "", "message type to decode as")
		hexInput    = fs.Bool("hex", false, "input is hex text")
		offset      = fs.Int("offset", 0, "byte offset where the message starts")
		strict      = fs.Bool("strict", false, "reject wire types that disagree with the declared field type")
		logLevel    = fs.String("log-level", "", "log level (trace, debug, info, warn, error, off)")
		demo        = fs.Bool("demo", false, "decode a built-in sample scale reading")
		includes    stringList
		protoFiles  stringList
		descriptors stringList
	)
	fs.Var(&includes, "I", "directory searched for .proto files (repeatable)")
	fs.Var(&protoFiles, "proto", ".proto file to load (repeatable)")
	fs.Var(&descriptors, "descriptors", "YAML or JSON descriptor file to load (repeatable)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: protopeek [flags] [file]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "I":
			cfg.ProtoPaths = append(cfg.ProtoPaths, includes...)
		case "proto":
			cfg.ProtoFiles = append(cfg.ProtoFiles, protoFiles...)
		case "descriptors":
			cfg.DescriptorFiles = append(cfg.DescriptorFiles, descriptors...)
		case "message":
			cfg.Message = *message
		case "strict":
			cfg.StrictWireType = *strict
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	logger := logging.Configure(logging.ProfileRuntime, cfg.LogLevel, stderr)

	p := protopeek.New(cfg.ProtoPaths...)
	p.SetLogger(logger)
	p.SetConfig(cfg.WireConfig())

	for _, path := range cfg.ProtoFiles {
		if err := p.LoadProtoFile(path); err != nil {
			return err
		}
	}
	for _, path := range cfg.DescriptorFiles {
		if err := p.LoadDescriptorFile(path); err != nil {
			return err
		}
	}

	var data []byte
	if *demo {
		sample, err := demoPayload(p)
		if err != nil {
			return err
		}
		data = sample
		if cfg.Message == "" {
			cfg.Message = demoMessage
		}
	} else {
		raw, err := readInput(fs.Args(), stdin)
		if err != nil {
			return err
		}
		data = raw
		if *hexInput {
			if data, err = decodeHex(raw); err != nil {
				return err
			}
		}
	}

	if cfg.Message == "" {
		return fmt.Errorf("no message type given; use -message or set message in the config")
	}

	logger.Debug().
		Str("message_type", cfg.Message).
		Int("bytes", len(data)).
		Int("offset", *offset).
		Bool("strict", cfg.StrictWireType).
		Msg("decoding")

	msg, err := p.DecodeAt(data, *offset, cfg.Message)
	if err != nil {
		var decodeErr *wire.DecodeError
		if errors.As(err, &decodeErr) {
			logger.Error().
				Int("offset", decodeErr.Offset).
				Strs("path", decodeErr.FieldPath).
				Msg("decode failed")
		}
		return err
	}

	out, err := json.MarshalIndent(jsonValue(msg), "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintf(stdout, "%s\n", out)
	return err
}

func readInput(args []string, stdin io.Reader) ([]byte, error) {
	switch len(args) {
	case 0:
		return io.ReadAll(stdin)
	case 1:
		if args[0] == "-" {
			return io.ReadAll(stdin)
		}
		return os.ReadFile(args[0])
	default:
		return nil, fmt.Errorf("expected at most one input file, got %d", len(args))
	}
}

// decodeHex accepts hex text with any whitespace between digits.
func decodeHex(raw []byte) ([]byte, error) {
	compact := bytes.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	data := make([]byte, hex.DecodedLen(len(compact)))
	n, err := hex.Decode(data, compact)
	if err != nil {
		return nil, fmt.Errorf("decode hex input: %w", err)
	}
	return data[:n], nil
}

// jsonValue converts a decoded value for encoding/json. Non-finite floats
// become strings.
func jsonValue(v wire.Value) interface{} {
	switch v := v.(type) {
	case wire.Message:
		out := make(map[string]interface{}, len(v))
		for name, field := range v {
			if field != nil {
				out[name] = jsonValue(field)
			}
		}
		return out
	case wire.Float:
		f := float64(v)
		switch {
		case math.IsNaN(f):
			return "NaN"
		case math.IsInf(f, 1):
			return "Infinity"
		case math.IsInf(f, -1):
			return "-Infinity"
		}
		return float32(v)
	default:
		return v.Interface()
	}
}

// demoPayload registers a scale reading table and returns an encoded sample:
// a stable 72.4 kg reading from one device.
func demoPayload(p *protopeek.Protopeek) ([]byte, error) {
	device := schema.NewDescriptor(
		&schema.Field{Number: 1, Name: "address", Type: schema.TypeString},
		&schema.Field{Number: 2, Name: "rssi", Type: schema.TypeUint},
	)
	reading := schema.NewDescriptor(
		&schema.Field{Number: 1, Name: "weight", Type: schema.TypeUint},
		&schema.Field{Number: 2, Name: "drift", Type: schema.TypeSint},
		&schema.Field{Number: 3, Name: "unit", Type: schema.TypeString},
		&schema.Field{Number: 4, Name: "ratio", Type: schema.TypeFloat},
		&schema.Field{Number: 5, Name: "device", Type: schema.TypeMessage, Message: device},
		&schema.Field{Number: 6, Name: "state", Type: schema.TypeUint},
	)
	if err := p.Register("demo.ScaleDevice", device); err != nil {
		return nil, err
	}
	if err := p.Register(demoMessage, reading); err != nil {
		return nil, err
	}

	return p.Encode(wire.Message{
		"weight": wire.Uint(724),
		"drift":  wire.Sint(-2),
		"unit":   wire.String("kg"),
		"ratio":  wire.Float(0.05),
		"device": wire.Message{
			"address": wire.String("c8:47:8c:00:00:01"),
			"rssi":    wire.Uint(61),
		},
		"state": wire.Uint(2),
	}, demoMessage)
}
