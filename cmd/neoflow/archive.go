package main

import (
	"context"

	"neoflow/internal/service"
	s3storage "neoflow/internal/storage/s3"
)

func archiveCommand() *Command {
	c := &Command{
		Name:        "archive",
		Description: "Copy documents and their extraction results to the S3 archive bucket",
		Usage:       "neoflow archive <document-id>...",
		Examples:    []string{"NEOFLOW_S3_BUCKET=records neoflow archive 3f2c..."},
	}
	c.Run = func(ctx context.Context, e *env, args []string) error {
		fs := c.NewFlagSet(e.out)
		if err := parse(fs, args, 1, "document id"); err != nil {
			return quiet(err)
		}
		storage, err := s3storage.NewS3Client(ctx, &e.cfg.S3)
		if err != nil {
			return err
		}
		archiver := service.NewArchiveService(e.docs, storage, service.ArchiveConfig{
			Bucket:        e.cfg.S3.Bucket,
			Prefix:        e.cfg.S3.Prefix,
			PresignExpiry: e.cfg.S3.PresignExpiry,
		})
		for _, id := range fs.Args() {
			res, err := archiver.Archive(ctx, id)
			if err != nil {
				return err
			}
			e.printf("%s\t%s\t%s\n", id, res.OriginalKey, res.URL)
		}
		return nil
	}
	return c
}
