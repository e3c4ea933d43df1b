package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BLAZED-sh/xml-stream/pkg/xmlstream"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// CLI flag definitions
	// Basic options
	inputPath := flag.String("input", "-", "XML file to parse, or - for stdin")

	// Performance options
	bufferSize := flag.Int("buffer", 16384, "Buffer size for the XML stream reader")
	maxRead := flag.Int("max-read", 4096, "Maximum read size per operation")
	maxDepth := flag.Int("max-depth", 256, "Maximum element nesting depth (0 disables the limit)")

	// Output options
	stats := flag.Bool("stats", false, "Print event counts and timing at the end")

	// Logging options
	logLevel := flag.String("log-level", "info", "Log level (trace, debug, info, warn, error, fatal)")
	prettyLogs := flag.Bool("pretty", false, "Enable pretty logging output")

	// Other options
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Parse()

	const version = "0.1.0"

	if *showVersion {
		fmt.Printf("xmlev version %s\n", version)
		os.Exit(0)
	}

	setupLogging(*logLevel, *prettyLogs)

	var src io.Reader
	name := *inputPath
	if name == "-" {
		src = os.Stdin
		name = "stdin"
	} else {
		f, err := os.Open(name)
		if err != nil {
			log.Fatal().Err(err).Str("input", name).Msg("Failed to open input")
		}
		defer f.Close()
		src = f
	}

	reader, err := xmlstream.NewReader(src, *bufferSize, *maxRead)
	if err != nil {
		log.Fatal().Err(err).Str("input", name).Msg("Failed to initialize reader")
	}
	reader.SetMaxDepth(*maxDepth)

	log.Info().
		Str("input", name).
		Str("encoding", reader.DetectedEncoding().String()).
		Int("buffer_size", *bufferSize).
		Int("max_read", *maxRead).
		Str("version", version).
		Msg("Parsing started")

	counts := make(map[xmlstream.EventKind]int)
	deepest := 0
	start := time.Now()

	for {
		ev, err := reader.Next()
		if err != nil {
			var streamErr *xmlstream.StreamError
			if errors.As(err, &streamErr) {
				log.Error().
					Str("input", name).
					Int("line", streamErr.Loc.Line).
					Int("column", streamErr.Loc.Column).
					Int64("offset", streamErr.Loc.Offset).
					Err(streamErr.Err).
					Msg("Parse failed")
			} else {
				log.Error().Err(err).Str("input", name).Msg("Parse failed")
			}
			os.Exit(1)
		}
		counts[ev]++
		if d := reader.Depth(); d > deepest {
			deepest = d
		}
		dumpEvent(reader, ev)
		if ev == xmlstream.EventEndDocument {
			break
		}
	}

	elapsed := time.Since(start)
	loc := reader.Location()
	log.Info().
		Str("input", name).
		Int("lines", loc.Line).
		Int64("bytes", loc.Offset).
		Int("max_depth", deepest).
		Dur("elapsed", elapsed).
		Msg("Parsing finished")

	if *stats {
		for kind, n := range counts {
			fmt.Printf("%-22s %d\n", kind.String(), n)
		}
	}
}

// dumpEvent logs one line per event at debug level so large documents
// stay quiet under the default level.
func dumpEvent(r *xmlstream.Reader, ev xmlstream.EventKind) {
	e := log.Debug().Str("event", ev.String()).Int("depth", r.Depth())
	switch ev {
	case xmlstream.EventStartElement:
		qname, _ := r.QName()
		e = e.Str("name", qname.String())
		if uri, err := r.NamespaceURI(); err == nil && !uri.IsZero() {
			e = e.Str("ns", uri.String())
		}
		if n, _ := r.AttributeCount(); n > 0 {
			e = e.Int("attrs", n)
		}
	case xmlstream.EventEndElement:
		qname, _ := r.QName()
		e = e.Str("name", qname.String())
	case xmlstream.EventCharacters, xmlstream.EventComment, xmlstream.EventDTD:
		text, _ := r.Text()
		e = e.Int("len", text.Len())
	case xmlstream.EventProcessingInstruction:
		target, _ := r.PITarget()
		e = e.Str("target", target.String())
	}
	e.Msg("Event")
}

func setupLogging(level string, pretty bool) {
	// Set log level
	var logLevel zerolog.Level
	switch level {
	case "trace":
		logLevel = zerolog.TraceLevel
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	case "fatal":
		logLevel = zerolog.FatalLevel
	default:
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	// Configure output format
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
