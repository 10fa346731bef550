// pcdump decodes postcard messages with a runtime schema and prints them as
// JSON, YAML, CBOR or Go values. With --encode it goes the other way, turning
// a JSON, YAML or CBOR document into a postcard message.
//
// The schema is read from a file in the tagged interchange form (YAML or
// JSON, or CBOR with a .cbor extension) or as a postcard-encoded schema
// (.pc or .postcard).
package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/davecgh/go-spew/spew"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/oy3o/postcard"
	"github.com/oy3o/postcard/dyn"
	"github.com/oy3o/postcard/schema"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type config struct {
	schemaPath string
	format     string
	lossy      bool
	hex        bool
	cobs       bool
	crc        bool
	encode     bool
	pseudocode bool
	keyPath    string
	verbose    bool
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var cfg config
	flagSet := pflag.NewFlagSet("pcdump", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&cfg.schemaPath, "schema", "s", "", "schema file (.yaml, .json, .cbor, or postcard-encoded .pc)")
	flagSet.StringVarP(&cfg.format, "format", "f", "json", "document format: json, yaml, cbor, value or postcard")
	flagSet.BoolVar(&cfg.lossy, "lossy", false, "present structs as maps and variants by name only")
	flagSet.BoolVar(&cfg.hex, "hex", false, "postcard bytes are hex text")
	flagSet.BoolVar(&cfg.cobs, "cobs", false, "postcard messages are COBS frames")
	flagSet.BoolVar(&cfg.crc, "crc32", false, "postcard messages carry a CRC-32 trailer")
	flagSet.BoolVarP(&cfg.encode, "encode", "e", false, "encode a document into a postcard message")
	flagSet.BoolVar(&cfg.pseudocode, "pseudocode", false, "print the schema and every type it uses, then exit")
	flagSet.StringVar(&cfg.keyPath, "key", "", "print the schema key for this path, then exit")
	flagSet.BoolVarP(&cfg.verbose, "verbose", "v", false, "log each message")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet, stderr)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet, stderr)
		return nil
	}

	level := slog.LevelWarn
	if cfg.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if cfg.schemaPath == "" {
		return errors.New("--schema is required")
	}
	s, err := loadSchema(cfg.schemaPath)
	if err != nil {
		return fmt.Errorf("loading schema %s: %w", cfg.schemaPath, err)
	}
	logger.Debug("loaded schema", "path", cfg.schemaPath, "type", s.Pseudocode(false))

	if cfg.pseudocode {
		for _, t := range s.AllUsedTypes() {
			fmt.Fprintln(stdout, t.String())
		}
		return nil
	}
	if flagSet.Changed("key") {
		fmt.Fprintln(stdout, schema.ForOwned(cfg.keyPath, s))
		return nil
	}

	in, err := openInput(flagSet.Args(), stdin)
	if err != nil {
		return err
	}
	if cfg.encode {
		return encode(&cfg, s, in, stdout, logger)
	}
	return decode(&cfg, s, in, stdout, logger)
}

func printHelp(flagSet *pflag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, `pcdump decodes postcard messages using a runtime schema.

Usage:
  pcdump --schema FILE [flags] [INPUT]

INPUT defaults to standard input. Concatenated messages are decoded one
after another; with --cobs each frame holds one message.

Examples:
  # Decode a hex dump as JSON
  pcdump -s point.yaml --hex dump.txt

  # Decode COBS frames with CRC trailers as YAML
  pcdump -s telemetry.yaml --cobs --crc32 -f yaml capture.bin

  # Encode a JSON document
  pcdump -s point.yaml -e --hex <<< '{"x": 1, "y": 2}'

Flags:
`)
	flagSet.PrintDefaults()
}

func loadSchema(path string) (*schema.OwnedDataModelType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s schema.OwnedDataModelType
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = s.UnmarshalJSON(data)
	case ".cbor":
		err = s.UnmarshalCBOR(data)
	case ".pc", ".postcard":
		s, err = postcard.FromBytes[schema.OwnedDataModelType](data)
	default:
		err = yaml.Unmarshal(data, &s)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func openInput(args []string, stdin io.Reader) ([]byte, error) {
	switch len(args) {
	case 0:
		return io.ReadAll(stdin)
	case 1:
		if args[0] == "-" {
			return io.ReadAll(stdin)
		}
		return os.ReadFile(args[0])
	}
	return nil, fmt.Errorf("unexpected argument: %s", args[1])
}

func decodeHex(in []byte) ([]byte, error) {
	clean := bytes.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, in)
	out := make([]byte, hex.DecodedLen(len(clean)))
	n, err := hex.Decode(out, clean)
	if err != nil {
		return nil, fmt.Errorf("decoding hex input: %w", err)
	}
	return out[:n], nil
}

func decode(cfg *config, s *schema.OwnedDataModelType, in []byte, out io.Writer, logger *slog.Logger) error {
	if cfg.hex {
		var err error
		if in, err = decodeHex(in); err != nil {
			return err
		}
	}
	w, err := newSink(cfg.format, out)
	if err != nil {
		return err
	}
	opts := dyn.Options{Interner: dyn.NewInterner()}
	if cfg.lossy {
		opts.Strategy = dyn.Lossy
	}

	for count := 0; len(in) > 0; count++ {
		payload, next := in, []byte(nil)
		if cfg.cobs {
			if payload, next, err = postcard.DecodeCobsFrame(in); err != nil {
				return fmt.Errorf("message %d: %w", count, err)
			}
			if len(payload) == 0 {
				in = next
				count--
				continue
			}
		}
		rest, err := decodeOne(cfg, s, payload, w, opts)
		if err != nil {
			return fmt.Errorf("message %d: %w", count, err)
		}
		logger.Debug("decoded message", "index", count, "bytes", len(payload)-len(rest))
		if cfg.cobs {
			if len(rest) > 0 {
				logger.Warn("trailing bytes in frame", "index", count, "bytes", len(rest))
			}
			in = next
		} else {
			in = rest
		}
	}
	return w.close()
}

func decodeOne(cfg *config, s *schema.OwnedDataModelType, payload []byte, w sink, opts dyn.Options) ([]byte, error) {
	slice := postcard.NewSliceSource(payload)
	var src postcard.Source = slice
	finish := slice.Finalize
	if cfg.crc {
		c := postcard.NewCrcSource[[]byte](slice, postcard.Hash32(crc32.NewIEEE()))
		src, finish = c, c.Finalize
	}
	if err := w.emit(s, postcard.NewDeserializer(src), opts); err != nil {
		return nil, err
	}
	return finish()
}

// sink writes one document per decoded message.
type sink interface {
	emit(s *schema.OwnedDataModelType, d *postcard.Deserializer, opts dyn.Options) error
	close() error
}

func newSink(format string, out io.Writer) (sink, error) {
	switch format {
	case "json":
		return &jsonSink{stream: jsoniter.NewStream(jsoniter.ConfigCompatibleWithStandardLibrary, out, 4096)}, nil
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		return &yamlSink{enc: enc}, nil
	case "cbor":
		return &cborSink{target: dyn.NewCBORWriter(out)}, nil
	case "value":
		return &valueSink{out: out, cfg: &spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true}}, nil
	case "postcard":
		return &postcardSink{out: out}, nil
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

type jsonSink struct {
	stream *jsoniter.Stream
}

func (j *jsonSink) emit(s *schema.OwnedDataModelType, d *postcard.Deserializer, opts dyn.Options) error {
	if err := dyn.Reserialize(s, d, dyn.NewJSONTarget(j.stream), opts); err != nil {
		return err
	}
	j.stream.WriteRaw("\n")
	return j.stream.Flush()
}

func (j *jsonSink) close() error { return j.stream.Flush() }

type yamlSink struct {
	enc *yaml.Encoder
}

func (y *yamlSink) emit(s *schema.OwnedDataModelType, d *postcard.Deserializer, opts dyn.Options) error {
	t := dyn.NewYAMLTarget()
	if err := dyn.Reserialize(s, d, t, opts); err != nil {
		return err
	}
	n, err := t.Node()
	if err != nil {
		return err
	}
	return y.enc.Encode(n)
}

func (y *yamlSink) close() error { return y.enc.Close() }

type cborSink struct {
	target *dyn.CBORTarget
}

func (c *cborSink) emit(s *schema.OwnedDataModelType, d *postcard.Deserializer, opts dyn.Options) error {
	return dyn.Reserialize(s, d, c.target, opts)
}

func (c *cborSink) close() error { return nil }

type valueSink struct {
	out io.Writer
	cfg *spew.ConfigState
}

func (v *valueSink) emit(s *schema.OwnedDataModelType, d *postcard.Deserializer, opts dyn.Options) error {
	t := dyn.NewValueTarget()
	if err := dyn.Reserialize(s, d, t, opts); err != nil {
		return err
	}
	val, err := t.Value()
	if err != nil {
		return err
	}
	v.cfg.Fdump(v.out, val)
	return nil
}

func (v *valueSink) close() error { return nil }

// postcardSink re-encodes each message, which normalizes and validates it.
type postcardSink struct {
	out io.Writer
}

func (p *postcardSink) emit(s *schema.OwnedDataModelType, d *postcard.Deserializer, _ dyn.Options) error {
	f := postcard.NewBufferFlavor(nil)
	if err := dyn.ReserializeLossless(s, d, dyn.NewPostcardTarget(postcard.NewSerializer(f)), nil); err != nil {
		return err
	}
	_, err := fmt.Fprintln(p.out, hex.EncodeToString(f.B))
	return err
}

func (p *postcardSink) close() error { return nil }

func encode(cfg *config, s *schema.OwnedDataModelType, in []byte, out io.Writer, logger *slog.Logger) error {
	var (
		payload []byte
		err     error
	)
	switch cfg.format {
	case "json":
		payload, err = dyn.FromJSON(s, in)
	case "yaml":
		payload, err = dyn.FromYAML(s, in)
	case "cbor":
		payload, err = dyn.FromCBOR(s, in)
	default:
		return fmt.Errorf("cannot encode from format %q", cfg.format)
	}
	if err != nil {
		return err
	}

	// COBS frames the message together with its CRC trailer.
	var f postcard.Finalizer[[]byte] = postcard.NewBufferFlavor(nil)
	if cfg.cobs {
		f = postcard.NewCobsFlavor[[]byte](f)
	}
	if cfg.crc {
		f = postcard.NewCrcFlavor[[]byte](f, postcard.Hash32(crc32.NewIEEE()))
	}
	if err := f.TryExtend(payload); err != nil {
		return err
	}
	msg, err := f.Finalize()
	if err != nil {
		return err
	}
	logger.Debug("encoded message", "payload", len(payload), "bytes", len(msg))

	if cfg.hex {
		_, err = fmt.Fprintln(out, hex.EncodeToString(msg))
		return err
	}
	_, err = out.Write(msg)
	return err
}
