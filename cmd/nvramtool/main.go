// Command nvramtool inspects and edits an nvram flash image.
//
// Usage:
//
//	nvramtool -image flash.bin [flags] <command> [args]
//
// Commands:
//
//	get NAME              print a value (User, then Factory-RW, then Factory)
//	get-factory NAME      print a factory value
//	set NAME VALUE        write a User value; VALUE "@path" reads a file
//	set-factory NAME VALUE
//	del NAME              delete a User value
//	dump                  list every live record
//	stats                 show region occupancy
//	clear [BYTES]         compact the User region if BYTES do not fit
//	clear-all             erase the User region
//	backup TAG            save region images to the backup target
//	restore TAG           program region images from the backup target
//	tags                  list backup tags
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/nvram"
	"github.com/hupe1980/nvram/backup"
	"github.com/hupe1980/nvram/blobstore"
	"github.com/hupe1980/nvram/blobstore/minio"
	"github.com/hupe1980/nvram/blobstore/s3"
	"github.com/hupe1980/nvram/partition"
	"github.com/hupe1980/nvram/storage"
)

type cliConfig struct {
	image       string
	size        uint
	eraseBlock  uint
	partitions  string
	segmentSize uint
	ioLimit     int
	linear      bool
	forcePurge  bool
	logLevel    string

	backupDir   string
	s3Bucket    string
	s3Prefix    string
	minioURL    string
	minioBucket string
	minioSecure bool
	compression string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "nvramtool:", err)
		if errors.Is(err, nvram.ErrNotFound) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var cfg cliConfig
	fs := flag.NewFlagSet("nvramtool", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.image, "image", "", "flash image file (created if missing)")
	fs.UintVar(&cfg.size, "size", 0x10000, "device size in bytes")
	fs.UintVar(&cfg.eraseBlock, "erase-block", 4096, "erase block size in bytes")
	fs.StringVar(&cfg.partitions, "partitions", "", "partition table YAML (default: 32K user, 16K factory, 16K factory-rw)")
	fs.UintVar(&cfg.segmentSize, "segment-size", nvram.DefaultSegmentSize, "segment size in bytes")
	fs.IntVar(&cfg.ioLimit, "io-limit", 0, "program/erase bandwidth limit in bytes per second (0 = unlimited)")
	fs.BoolVar(&cfg.linear, "linear", false, "scan records linearly instead of using the bitmap index")
	fs.BoolVar(&cfg.forcePurge, "force-purge", false, "compact every region at open")
	fs.StringVar(&cfg.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.backupDir, "backup-dir", "", "backup target: local directory")
	fs.StringVar(&cfg.s3Bucket, "s3-bucket", "", "backup target: S3 bucket")
	fs.StringVar(&cfg.s3Prefix, "s3-prefix", "nvram/", "key prefix for S3 and MinIO targets")
	fs.StringVar(&cfg.minioURL, "minio-endpoint", "", "backup target: MinIO endpoint (credentials from MINIO_ACCESS_KEY/MINIO_SECRET_KEY)")
	fs.StringVar(&cfg.minioBucket, "minio-bucket", "nvram", "MinIO bucket")
	fs.BoolVar(&cfg.minioSecure, "minio-secure", false, "use TLS for MinIO")
	fs.StringVar(&cfg.compression, "compression", "zstd", "backup compression (none, lz4, zstd)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cfg.image == "" {
		return errors.New("-image is required")
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.logLevel)); err != nil {
		return fmt.Errorf("-log-level: %w", err)
	}
	logger := nvram.NewLogger(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	table, err := loadTable(cfg)
	if err != nil {
		return err
	}

	file, err := storage.OpenFile(cfg.image, uint32(cfg.size), uint32(cfg.eraseBlock))
	if err != nil {
		return err
	}
	defer file.Close()

	if err := table.Fit(file.Size(), file.EraseBlockSize()); err != nil {
		return err
	}

	var dev storage.Device = file
	if cfg.ioLimit > 0 {
		dev = storage.NewThrottled(file, cfg.ioLimit)
	}

	store, err := nvram.Open(ctx, dev, table,
		nvram.WithSegmentSize(uint32(cfg.segmentSize)),
		nvram.WithFastSearch(!cfg.linear),
		nvram.WithForcePurge(cfg.forcePurge),
		nvram.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	if err := dispatch(ctx, cfg, store, logger, cmd, cmdArgs, stdout); err != nil {
		return err
	}
	return file.Sync()
}

func loadTable(cfg cliConfig) (*partition.Table, error) {
	if cfg.partitions != "" {
		return partition.LoadFile(cfg.partitions)
	}
	return partition.Layout(0x8000, 0x4000, 0x4000)
}

func nargs(cmd string, args []string, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		return fmt.Errorf("%s: wrong number of arguments", cmd)
	}
	return nil
}

func dispatch(ctx context.Context, cfg cliConfig, store *nvram.Store, logger *nvram.Logger, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "get", "get-factory":
		if err := nargs(cmd, args, 1, 1); err != nil {
			return err
		}
		buf := make([]byte, 512)
		get := store.Get
		if cmd == "get-factory" {
			get = store.GetFactory
		}
		n, err := get(ctx, args[0], buf)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, format(buf[:n]))
		return nil

	case "set", "set-factory":
		if err := nargs(cmd, args, 2, 2); err != nil {
			return err
		}
		value, err := readValue(args[1])
		if err != nil {
			return err
		}
		if cmd == "set-factory" {
			return store.SetFactory(ctx, args[0], value)
		}
		return store.Set(ctx, args[0], value)

	case "del":
		if err := nargs(cmd, args, 1, 1); err != nil {
			return err
		}
		return store.Set(ctx, args[0], nil)

	case "dump":
		entries, err := store.Dump(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "REGION\tOFFSET\tSIZE\tNAME\tVALUE")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%#05x\t%d\t%s\t%s\n", e.Region, e.Offset, e.Size, e.Name, format(e.Data))
		}
		return tw.Flush()

	case "stats":
		stats, err := store.Stats(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "REGION\tSIZE\tSEGMENT\tSEQ\tRECORDS\tLIVE\tOBSOLETE\tFREE")
		for _, s := range stats {
			fmt.Fprintf(tw, "%s\t%d\t%#x\t%d\t%d\t%d\t%d\t%d\n",
				s.Name, s.Size, s.SegmentOffset, s.SeqID, s.LiveRecords, s.LiveBytes, s.ObsoleteBytes, s.FreeBytes)
		}
		return tw.Flush()

	case "clear":
		if err := nargs(cmd, args, 0, 1); err != nil {
			return err
		}
		reserve := 0
		if len(args) == 1 {
			n, err := strconv.ParseUint(args[0], 0, 32)
			if err != nil {
				return fmt.Errorf("clear: %w", err)
			}
			reserve = int(n)
		}
		return store.Clear(ctx, reserve)

	case "clear-all":
		return store.ClearAll(ctx)

	case "backup", "restore":
		if err := nargs(cmd, args, 1, 1); err != nil {
			return err
		}
		archive, err := openArchive(ctx, cfg, logger)
		if err != nil {
			return err
		}
		if cmd == "backup" {
			return store.Backup(ctx, archive, args[0])
		}
		return store.Restore(ctx, archive, args[0])

	case "tags":
		archive, err := openArchive(ctx, cfg, logger)
		if err != nil {
			return err
		}
		tags, err := archive.Tags(ctx)
		if err != nil {
			return err
		}
		for _, tag := range tags {
			fmt.Fprintln(out, tag)
		}
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func readValue(arg string) ([]byte, error) {
	if len(arg) > 1 && arg[0] == '@' {
		return os.ReadFile(arg[1:])
	}
	return []byte(arg), nil
}

// format prints printable values as text and anything else as hex.
func format(v []byte) string {
	if utf8.Valid(v) {
		s := string(v)
		if strconv.CanBackquote(s) {
			return s
		}
	}
	return fmt.Sprintf("0x%x", v)
}

func openArchive(ctx context.Context, cfg cliConfig, logger *nvram.Logger) (*backup.Archive, error) {
	c, err := backup.ParseCompression(cfg.compression)
	if err != nil {
		return nil, err
	}

	var store blobstore.Store
	switch {
	case cfg.backupDir != "":
		store = blobstore.NewLocalStore(cfg.backupDir)

	case cfg.s3Bucket != "":
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		store = s3.NewStore(awss3.NewFromConfig(awsCfg), cfg.s3Bucket, cfg.s3Prefix)

	case cfg.minioURL != "":
		client, err := miniogo.New(cfg.minioURL, &miniogo.Options{
			Creds:  credentials.NewStaticV4(os.Getenv("MINIO_ACCESS_KEY"), os.Getenv("MINIO_SECRET_KEY"), ""),
			Secure: cfg.minioSecure,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		ms := minio.NewStore(client, cfg.minioBucket, cfg.s3Prefix)
		if err := ms.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		store = ms

	default:
		return nil, errors.New("no backup target: set -backup-dir, -s3-bucket or -minio-endpoint")
	}

	return backup.NewArchive(store, backup.WithCompression(c), backup.WithLogger(logger.Logger)), nil
}
