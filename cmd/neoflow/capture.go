package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"neoflow/internal/camera"
	"neoflow/internal/domain"
)

func captureCommand() *Command {
	c := &Command{
		Name:        "capture",
		Description: "Capture a still from the configured camera and save or upload it",
		Usage:       "neoflow capture [--facing user|environment] [--dir path] [--upload] [--template id] [--process]",
		Examples: []string{
			"NEOFLOW_CAMERA_ENVIRONMENT_IMAGE=page.png neoflow capture --upload --process",
		},
	}
	c.Run = func(ctx context.Context, e *env, args []string) error {
		fs := c.NewFlagSet(e.out)
		facing := fs.String("facing", string(e.cfg.Camera.FacingMode), "camera facing mode")
		dir := fs.String("dir", "", "directory to save the photo in")
		upload := fs.Bool("upload", false, "upload the photo")
		templateID := fs.String("template", "", "template id for the upload")
		process := fs.Bool("process", false, "process the uploaded photo synchronously")
		if err := parse(fs, args, 0, ""); err != nil {
			return quiet(err)
		}
		mode := domain.FacingMode(*facing)
		if mode != domain.FacingUser && mode != domain.FacingEnvironment {
			return fmt.Errorf("invalid facing mode: %s", *facing)
		}

		devices := camera.NewStillDevices(e.cfg.Camera.UserImage, e.cfg.Camera.EnvironmentImage)
		m := camera.NewManager(devices, camera.Config{
			FacingMode:  mode,
			Width:       e.cfg.Camera.Width,
			Height:      e.cfg.Camera.Height,
			JPEGQuality: e.cfg.Camera.JPEGQuality,
		})
		m.Bind(&camera.StreamSource{})

		var photo *domain.CapturedPhoto
		err := camera.WithCamera(ctx, m, func(h *camera.Handle) error {
			var err error
			photo, err = h.Capture()
			return err
		})
		if err != nil {
			var cerr *camera.Error
			if errors.As(err, &cerr) {
				return fmt.Errorf("%s", cerr.Message())
			}
			return err
		}

		if *dir != "" || !*upload {
			path := filepath.Join(*dir, photo.FileName)
			if err := os.WriteFile(path, photo.Content, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			e.printf("%s\n", path)
		}
		if !*upload {
			return nil
		}
		resp, err := e.docs.Upload(ctx, photo.UploadFile(), *templateID)
		if err != nil {
			return err
		}
		e.printf("%s\t%s\t%s\n", resp.DocumentID, resp.Status, photo.FileName)
		if *process {
			return processOne(ctx, e, resp.DocumentID, true)
		}
		return nil
	}
	return c
}
