package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pyropy/softraid/core/device"
	"github.com/pyropy/softraid/core/discipline"
	"github.com/pyropy/softraid/core/metadata"
	"github.com/pyropy/softraid/core/model"
	"github.com/pyropy/softraid/core/volume"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
)

var volumeFlag = &cli.StringFlag{
	Name:     "volume",
	Required: true,
	Usage:    "Volume name",
}

func withStore(ctx *cli.Context, fn func(context.Context, *Config, *metadata.Store) error) (err error) {
	cfg := config(ctx)

	store, err := metadata.NewStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	return fn(ctx.Context, cfg, store)
}

func withVolume(ctx *cli.Context, fn func(context.Context, *volume.Volume) error) error {
	return withStore(ctx, func(cctx context.Context, cfg *Config, store *metadata.Store) (err error) {
		vol, err := openVolume(cctx, cfg, store, ctx.String("volume"))
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, vol.Close()) }()

		return fn(cctx, vol)
	})
}

var createCmd = &cli.Command{
	Name:  "create",
	Usage: "Create a volume",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "name",
			Required: true,
			Usage:    "Volume name",
		},
		&cli.StringFlag{
			Name:  "discipline",
			Value: model.KindConcat.String(),
			Usage: "One of concat, raid0, raid1",
		},
		&cli.StringSliceFlag{
			Name:     "chunk",
			Required: true,
			Usage:    "Chunk as <descriptor>@<blocks>, in volume order",
		},
		&cli.Int64Flag{
			Name:  "strip-blocks",
			Usage: "Strip size in blocks for raid0",
		},
		&cli.Int64Flag{
			Name:  "data-offset",
			Usage: "Blocks reserved at the start of every chunk",
		},
	},
	Action: func(ctx *cli.Context) error {
		kind, err := model.ParseKind(ctx.String("discipline"))
		if err != nil {
			return err
		}

		return withStore(ctx, func(cctx context.Context, cfg *Config, store *metadata.Store) error {
			var chunks []model.Chunk
			for _, spec := range ctx.StringSlice("chunk") {
				chunk, err := parseChunkSpec(spec)
				if err != nil {
					return err
				}
				chunk.DataOffset = ctx.Int64("data-offset")
				chunks = append(chunks, chunk)
			}

			if err := checkChunkDevices(chunks); err != nil {
				return err
			}

			geo := model.NewGeometry(ctx.String("name"), kind, cfg.Volume.BlockSize, chunks)
			geo.StripBlocks = ctx.Int64("strip-blocks")

			for i := range geo.Chunks {
				if err := provisionRemote(&geo.Chunks[i], chunkBytes(&geo, geo.Chunks[i])); err != nil {
					return err
				}
			}

			devices, err := openDevices(cfg, &geo)
			if err != nil {
				return err
			}

			vol, err := volume.Create(geo, devices, volumeOptions(cfg, store, geo.Name))
			if err != nil {
				for _, d := range devices {
					err = multierr.Append(err, d.Close())
				}
				return err
			}

			created := vol.Geometry()
			err = multierr.Append(store.Create(cctx, created), vol.Close())
			if err != nil {
				return err
			}

			log.Infow("create", "status", "volume created", "volume", created.Name, "id", created.ID,
				"discipline", created.Discipline, "size", created.Size)
			fmt.Printf("%s %s %d blocks\n", created.Name, created.ID, created.Size)
			return nil
		})
	},
}

var listCmd = &cli.Command{
	Name:  "list",
	Usage: "List all volumes",
	Action: func(ctx *cli.Context) error {
		return withStore(ctx, func(cctx context.Context, _ *Config, store *metadata.Store) error {
			volumes, err := store.All(cctx)
			if err != nil {
				return err
			}

			for _, geo := range volumes {
				fmt.Printf("%s\t%s\t%s\t%d blocks\t%d chunks\n", geo.Name, geo.ID, geo.Discipline, geo.Size, len(geo.Chunks))
			}

			return nil
		})
	},
}

var statusCmd = &cli.Command{
	Name:  "status",
	Usage: "Show volume and chunk states",
	Flags: []cli.Flag{volumeFlag},
	Action: func(ctx *cli.Context) error {
		return withStore(ctx, func(cctx context.Context, _ *Config, store *metadata.Store) error {
			geo, err := store.Get(cctx, ctx.String("volume"))
			if err != nil {
				return err
			}

			disc, err := discipline.New(geo.Discipline)
			if err != nil {
				return err
			}

			fmt.Printf("%s %s %s %d blocks %s\n", geo.Name, geo.ID, geo.Discipline, geo.Size, disc.VolState(geo.Chunks))
			for _, chunk := range geo.Chunks {
				fmt.Printf("  %d\t%s\t%s\t%d blocks\t%s\n", chunk.Index, chunk.ID, chunk.State, chunk.Blocks, chunk.Device)
			}

			return nil
		})
	},
}

var writeCmd = &cli.Command{
	Name:  "write",
	Usage: "Write a file to a volume",
	Flags: []cli.Flag{
		volumeFlag,
		&cli.StringFlag{
			Name:     "file-path",
			Required: true,
			Usage:    "Path to file you want to write to the volume",
		},
		&cli.Int64Flag{
			Name:  "offset",
			Usage: "Starting block",
		},
	},
	Action: func(ctx *cli.Context) error {
		content, err := os.ReadFile(ctx.String("file-path"))
		if err != nil {
			return err
		}

		return withVolume(ctx, func(cctx context.Context, vol *volume.Volume) error {
			bs := vol.BlockSize()
			if rem := len(content) % bs; rem != 0 {
				content = append(content, make([]byte, bs-rem)...)
			}

			n, err := transfer(cctx, vol, device.OpWrite, ctx.Int64("offset"), content, config(ctx).Volume.MaxRequestBytes)
			log.Infow("write", "volume", vol.Name(), "offset", ctx.Int64("offset"), "bytes", n)
			return err
		})
	},
}

var readCmd = &cli.Command{
	Name:  "read",
	Usage: "Read blocks from a volume",
	Flags: []cli.Flag{
		volumeFlag,
		&cli.Int64Flag{
			Name:  "offset",
			Usage: "Starting block",
		},
		&cli.Int64Flag{
			Name:     "blocks",
			Required: true,
			Usage:    "Number of blocks to read",
		},
		&cli.StringFlag{
			Name:  "out",
			Usage: "Output file, stdout if empty",
		},
	},
	Action: func(ctx *cli.Context) error {
		return withVolume(ctx, func(cctx context.Context, vol *volume.Volume) (err error) {
			buf := make([]byte, ctx.Int64("blocks")*int64(vol.BlockSize()))
			if _, err := transfer(cctx, vol, device.OpRead, ctx.Int64("offset"), buf, config(ctx).Volume.MaxRequestBytes); err != nil {
				return err
			}

			var out io.Writer = os.Stdout
			if path := ctx.String("out"); path != "" {
				f, ferr := os.Create(path)
				if ferr != nil {
					return ferr
				}
				defer func() { err = multierr.Append(err, f.Close()) }()
				out = f
			}

			_, err = out.Write(buf)
			return err
		})
	},
}

var setChunkStateCmd = &cli.Command{
	Name:  "set-chunk-state",
	Usage: "Change the state of a chunk",
	Flags: []cli.Flag{
		volumeFlag,
		&cli.IntFlag{
			Name:     "chunk",
			Required: true,
			Usage:    "Chunk index",
		},
		&cli.StringFlag{
			Name:     "state",
			Required: true,
			Usage:    "One of online, offline, failed",
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Only update the store, for volumes that cannot be assembled",
		},
	},
	Action: func(ctx *cli.Context) error {
		state, err := model.ParseChunkState(ctx.String("state"))
		if err != nil {
			return err
		}

		if ctx.Bool("force") {
			return withStore(ctx, func(cctx context.Context, _ *Config, store *metadata.Store) error {
				return store.SetChunkState(cctx, ctx.String("volume"), ctx.Int("chunk"), state)
			})
		}

		return withVolume(ctx, func(_ context.Context, vol *volume.Volume) error {
			if err := vol.SetChunkState(ctx.Int("chunk"), state); err != nil {
				return err
			}

			fmt.Printf("%s %s\n", vol.Name(), vol.VolState())
			return nil
		})
	},
}

var deleteCmd = &cli.Command{
	Name:  "delete",
	Usage: "Forget a volume",
	Flags: []cli.Flag{volumeFlag},
	Action: func(ctx *cli.Context) error {
		return withStore(ctx, func(cctx context.Context, _ *Config, store *metadata.Store) error {
			return store.Delete(cctx, ctx.String("volume"))
		})
	},
}

// transfer moves buf in requests of at most maxBytes.
func transfer(ctx context.Context, vol *volume.Volume, op device.Op, blk int64, buf []byte, maxBytes int) (int64, error) {
	step := maxBytes / vol.BlockSize() * vol.BlockSize()
	if step == 0 {
		step = vol.BlockSize()
	}

	var n int64
	for off := 0; off < len(buf); off += step {
		end := off + step
		if end > len(buf) {
			end = len(buf)
		}

		r, err := vol.Do(ctx, blk+int64(off/vol.BlockSize()), op, buf[off:end])
		n += r.Bytes
		if err != nil {
			if errors.Is(err, volume.ErrIOFailed) {
				log.Errorw(op.String(), "error", err, "succeeded", r.Succeeded, "failed", r.Failed)
			}
			return n, err
		}

		if r.State == model.WUPartiallyFailed {
			log.Warnw(op.String(), "status", "degraded", "succeeded", r.Succeeded, "failed", r.Failed)
		}
	}

	return n, nil
}
