// scribe-export converts a saved transcript JSON document into its download
// forms: the canonical pretty-printed JSON and the flat scribe text.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moonlitpsych/medical-transcript-diarizer/internal/export"
	"github.com/moonlitpsych/medical-transcript-diarizer/internal/model"
)

func main() {
	var (
		inPath   = flag.String("in", "", "path to a transcript JSON file")
		outDir   = flag.String("out", ".", "directory to write exports into")
		format   = flag.String("format", "both", "export format: json, txt, or both")
		toStdout = flag.Bool("stdout", false, "write the scribe text to stdout instead of a file")
	)
	flag.Parse()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "usage: scribe-export -in transcript.json [-out dir] [-format json|txt|both]")
		os.Exit(2)
	}

	raw, err := os.ReadFile(*inPath)
	if err != nil {
		fatal("read input: %v", err)
	}

	var transcript model.Transcript
	if err := json.Unmarshal(raw, &transcript); err != nil {
		fatal("parse transcript: %v", err)
	}
	if err := transcript.Validate(); err != nil {
		fatal("invalid transcript: %v", err)
	}

	if *toStdout {
		fmt.Print(export.ToScribeText(transcript))
		return
	}

	if *format == "json" || *format == "both" {
		data, err := export.ToJSON(transcript)
		if err != nil {
			fatal("encode transcript: %v", err)
		}
		path := filepath.Join(*outDir, export.FileName(transcript, "json"))
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			fatal("write %s: %v", path, err)
		}
		fmt.Println(path)
	}

	if *format == "txt" || *format == "both" {
		path := filepath.Join(*outDir, export.FileName(transcript, "txt"))
		if err := os.WriteFile(path, []byte(export.ToScribeText(transcript)), 0o644); err != nil {
			fatal("write %s: %v", path, err)
		}
		fmt.Println(path)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
