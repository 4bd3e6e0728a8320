package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"mixcore/internal/library"
	"mixcore/internal/wav"
)

func main() {
	var (
		dbPath  = flag.String("db", "./data/mixcore.db", "sound library database path")
		dir     = flag.String("dir", "./sounds", "directory of .wav files to import")
		tags    = flag.String("tags", "", "comma-joined tags applied to every imported clip")
		dryRun  = flag.Bool("dry-run", false, "scan and report without writing to the database")
		verbose = flag.Bool("v", false, "log every file as it's processed")
	)
	flag.Parse()

	entries, err := os.ReadDir(*dir)
	if err != nil {
		log.Fatalf("read %s: %v", *dir, err)
	}

	var store *library.Store
	if !*dryRun {
		store, err = library.Open(*dbPath)
		if err != nil {
			log.Fatalf("open library %s: %v", *dbPath, err)
		}
		defer store.Close()
	}

	imported, skipped := 0, 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			continue
		}
		path := filepath.Join(*dir, e.Name())
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))

		r, err := wav.ReadFile(path)
		if err != nil {
			fmt.Printf("skip %s: %v\n", path, err)
			skipped++
			continue
		}
		if *verbose {
			fmt.Printf("%s: %d Hz, %d ch, %d-bit, %d samples\n", path, r.SampleRate, r.Channels, r.BitsPerSample, len(r.Samples))
		}

		if *dryRun {
			imported++
			continue
		}

		c := &library.Clip{
			Name:          name,
			FilePath:      path,
			Tags:          *tags,
			SampleRate:    r.SampleRate,
			Channels:      r.Channels,
			BitsPerSample: r.BitsPerSample,
			DefaultVolume: 1.0,
		}
		if err := store.Create(c); err != nil {
			fmt.Printf("insert %s: %v\n", path, err)
			skipped++
			continue
		}
		imported++
	}

	fmt.Printf("imported %d clip(s), skipped %d\n", imported, skipped)
}
