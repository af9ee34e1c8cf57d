package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/wsami/rodos-go/content"
	"github.com/wsami/rodos-go/disks"
	"github.com/wsami/rodos-go/engine"
	"github.com/wsami/rodos-go/store"
)

func main() {
	app := cli.App{
		Usage: "Drive a FAT-style disk image engine",
		Commands: []*cli.Command{
			{
				Name:      "format",
				Usage:     "Create or wipe an image (destructive: content is not migrated)",
				ArgsUsage: "IMAGE_FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "preset", Value: "floppy-tiny"},
					&cli.BoolFlag{Name: "confirm", Usage: "required to actually wipe an existing image"},
				},
				Action: formatImage,
			},
			{
				Name:      "ls",
				Usage:     "List the root directory's files",
				ArgsUsage: "IMAGE_FILE",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "preset", Value: "floppy-tiny"}},
				Action:    listFiles,
			},
			{
				Name:      "defrag",
				Usage:     "Compact the allocation table in place",
				ArgsUsage: "IMAGE_FILE",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "preset", Value: "floppy-tiny"}},
				Action:    defragImage,
			},
			{
				Name:      "create",
				Usage:     "Create a file with generated content in the working directory",
				ArgsUsage: "IMAGE_FILE NAME EXT SIZE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "preset", Value: "floppy-tiny"},
					&cli.StringFlag{Name: "kind", Value: "alpha", Usage: "alpha, num, or hex"},
				},
				Action: createFile,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func openEngine(path, presetSlug string) (*engine.Engine, error) {
	preset, err := disks.Preset(presetSlug)
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Config{
		ClusterSize:  preset.ClusterSize,
		ClusterCount: preset.ClusterCount,
		Backend:      store.FileBackend{Path: path},
	})
}

func formatImage(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("format requires an image file path")
	}
	if _, err := os.Stat(path); err == nil && !c.Bool("confirm") {
		return fmt.Errorf("%s already exists; pass --confirm to wipe it (format does not migrate content)", path)
	}

	preset, err := disks.Preset(c.String("preset"))
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	_, err = engine.New(engine.Config{
		ClusterSize:  preset.ClusterSize,
		ClusterCount: preset.ClusterCount,
		Backend:      store.FileBackend{Path: path},
	})
	return err
}

func listFiles(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("ls requires an image file path")
	}
	e, err := openEngine(path, c.String("preset"))
	if err != nil {
		return err
	}
	files, err := e.ListFiles(nil, 0)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Printf("%-8s %-3s %8d %s\n", f.Name, f.Extension, f.Size, f.ModTime.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func defragImage(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("defrag requires an image file path")
	}
	e, err := openEngine(path, c.String("preset"))
	if err != nil {
		return err
	}
	return e.Defragment()
}

func createFile(c *cli.Context) error {
	args := c.Args()
	path, name, ext, sizeStr := args.Get(0), args.Get(1), args.Get(2), args.Get(3)
	if path == "" || name == "" || sizeStr == "" {
		return fmt.Errorf("create requires IMAGE_FILE NAME EXT SIZE")
	}
	size, err := strconv.ParseUint(sizeStr, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid SIZE %q: %w", sizeStr, err)
	}

	kind, err := kindFromFlag(c.String("kind"))
	if err != nil {
		return err
	}

	e, err := openEngine(path, c.String("preset"))
	if err != nil {
		return err
	}
	return e.CreateFile(name, ext, uint32(size), 0, time.Now(), kind)
}

func kindFromFlag(s string) (content.Kind, error) {
	switch s {
	case "alpha":
		return content.KindAlpha, nil
	case "num":
		return content.KindNum, nil
	case "hex":
		return content.KindHex, nil
	default:
		return 0, fmt.Errorf("unknown content kind %q (want alpha, num, or hex)", s)
	}
}
