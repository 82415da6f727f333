// flirone-dump inspects the files the bridge writes: chunk logs
// (recorded USB traffic) and CBOR frame archives. A chunk log can also
// be pushed through the reassembly engine to count the frames it holds.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"flirone-go/internal/frame"
	"flirone-go/internal/output"
	"flirone-go/internal/types"
)

func main() {
	var (
		path       = flag.String("path", "", "Chunk log or frame archive to inspect")
		limit      = flag.Int("limit", 10, "Number of records to print (0 for all)")
		reassemble = flag.Bool("reassemble", false, "Feed a chunk log through the reassembly engine")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("path is required")
	}
	f, err := os.Open(*path)
	if err != nil {
		log.Fatalf("open %s: %v", *path, err)
	}
	defer f.Close()

	magic := make([]byte, 8)
	if _, err := io.ReadFull(f, magic); err != nil {
		log.Fatalf("read magic: %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		log.Fatalf("rewind: %v", err)
	}
	r := bufio.NewReaderSize(f, 1024*1024)

	switch string(magic) {
	case output.ChunkLogMagic:
		if *reassemble {
			reassembleChunkLog(r)
			return
		}
		dumpChunkLog(r, *limit)
	case output.ArchiveMagic:
		dumpArchive(r, *limit)
	default:
		log.Fatalf("unrecognized file magic %q", string(magic))
	}
}

func dumpChunkLog(r io.Reader, limit int) {
	count := 0
	err := output.ReadChunkLog(r, func(rec output.ChunkRecord) error {
		if limit > 0 && count >= limit {
			return io.EOF
		}
		marker := ""
		if len(rec.Data) >= 4 && rec.Data[0] == 0xEF && rec.Data[1] == 0xBE {
			marker = " frame-start"
		}
		fmt.Printf("chunk %d  %s  %d bytes%s\n",
			count, rec.Timestamp.Format(time.RFC3339Nano), len(rec.Data), marker)
		count++
		return nil
	})
	if err != nil && err != io.EOF {
		log.Fatalf("read chunk log: %v", err)
	}
}

func reassembleChunkLog(r io.Reader) {
	engine := frame.NewEngine(frame.Config{LogEvery: 1}, nil, nil, func(f types.Frame) {
		fmt.Printf("frame %d: thermal=%d jpeg=%d status=%d soi=%v max=%.1fC\n",
			f.Seq, f.ThermalSize, f.JpegSize, f.StatusSize, f.SOIValid, f.Stats.MaxC)
	})
	err := output.ReadChunkLog(r, func(rec output.ChunkRecord) error {
		engine.Ingest(rec.Data)
		return nil
	})
	if err != nil {
		log.Fatalf("read chunk log: %v", err)
	}
	c := engine.Snapshot()
	fmt.Printf("chunks=%d frames=%d desyncs=%d overflows=%d\n",
		c.Chunks, c.Frames, c.Desyncs, c.Overflows)
}

func dumpArchive(r io.Reader, limit int) {
	count := 0
	err := output.ReadArchive(r,
		func(h output.ArchiveHeader) error {
			fmt.Printf("archive run=%s started=%s grid=%dx%d\n",
				h.RunID, time.Unix(0, int64(h.Started*1e9)).Format(time.RFC3339), h.Width, h.Height)
			return nil
		},
		func(f types.Frame) error {
			if limit > 0 && count >= limit {
				return io.EOF
			}
			fmt.Printf("frame %d  thermal=%d jpeg=%d soi=%v  min=%.1fC max=%.1fC mean=%.1fC hot=(%d,%d)\n",
				f.Seq, f.ThermalSize, f.JpegSize, f.SOIValid,
				f.Stats.MinC, f.Stats.MaxC, f.Stats.MeanC, f.Stats.HotX, f.Stats.HotY)
			count++
			return nil
		})
	if err != nil && err != io.EOF {
		log.Fatalf("read archive: %v", err)
	}
}
