package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mixcore/internal/audio"
	"mixcore/internal/diag"
)

func main() {
	var (
		device          = flag.String("device", "", "output device name (empty = first enumerated device)")
		sampleRate      = flag.Uint("sample-rate", 48000, "sample rate (Hz)")
		channels        = flag.Uint("channels", 2, "channel count")
		blockCount      = flag.Uint("blocks", 4, "ring block count")
		samplesPerBlock = flag.Uint("samples-per-block", 4096, "samples per block, must be a multiple of channels")
		soundDir        = flag.String("sounds", "", "folder of .wav clips to load at startup")
		listDevices     = flag.Bool("list-devices", false, "list output devices and exit")
	)
	flag.Parse()

	if *listDevices {
		names, err := audio.Devices()
		if err != nil {
			fatalf(1, "list devices: %v", err)
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return
	}

	if *device == "" {
		names, err := audio.Devices()
		if err != nil {
			fatalf(1, "list devices: %v", err)
		}
		if len(names) == 0 {
			fatalf(1, "no output devices found")
		}
		*device = names[0]
	}

	d := diag.NewConsole()

	eng, err := audio.NewEngine(audio.Config{
		DeviceName:      *device,
		SampleRate:      int(*sampleRate),
		Channels:        int(*channels),
		BlockCount:      int(*blockCount),
		SamplesPerBlock: int(*samplesPerBlock),
		Diag:            d,
	})
	if err != nil {
		fatalf(1, "open engine: %v", err)
	}
	defer eng.Close()

	voices := map[string]*audio.Voice{}
	if *soundDir != "" {
		if err := loadDir(eng, *soundDir, voices); err != nil {
			fatalf(1, "load sounds: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupCtrlC(cancel)

	logf("ready: %d clip(s) loaded, device %q", len(voices), eng.Device())
	logf("commands: play <name> | stop <name> | loop <name> | vol <name> <0..2> | list | quit")

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !dispatch(strings.TrimSpace(line), voices) {
				return
			}
		}
	}
}

func dispatch(line string, voices map[string]*audio.Voice) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "quit", "exit":
		return false
	case "list":
		for name := range voices {
			fmt.Println(name)
		}
	case "play":
		if v, ok := requireVoice(voices, args); ok {
			v.Play()
		}
	case "stop":
		if v, ok := requireVoice(voices, args); ok {
			v.Stop()
		}
	case "loop":
		if v, ok := requireVoice(voices, args); ok {
			v.SwapLoop()
		}
	case "vol":
		if len(args) < 2 {
			logf("usage: vol <name> <0..2>")
			break
		}
		if v, ok := requireVoice(voices, args[:1]); ok {
			f, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				logf("bad volume %q: %v", args[1], err)
				break
			}
			v.VolumeTo(f)
		}
	default:
		logf("unknown command %q", cmd)
	}
	return true
}

func requireVoice(voices map[string]*audio.Voice, args []string) (*audio.Voice, bool) {
	if len(args) < 1 {
		logf("missing clip name")
		return nil, false
	}
	v, ok := voices[args[0]]
	if !ok {
		logf("no such clip %q", args[0])
		return nil, false
	}
	return v, true
}

func loadDir(eng *audio.Engine, dir string, voices map[string]*audio.Voice) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		v, err := audio.NewVoice(eng).LoadWAVE(path)
		if err != nil {
			logf("skip %s: %v", path, err)
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		voices[name] = v
	}
	return nil
}

func logf(format string, a ...any) {
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(os.Stdout, "%s "+format+"\n", append([]any{ts}, a...)...)
}

func fatalf(code int, format string, a ...any) {
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(os.Stderr, "%s ERROR: "+format+"\n", append([]any{ts}, a...)...)
	os.Exit(code)
}

func setupCtrlC(cancel context.CancelFunc) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	go func() {
		<-ch
		cancel()
	}()
}
