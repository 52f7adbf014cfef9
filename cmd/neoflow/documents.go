package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"neoflow/internal/domain"
)

// parse returns errHelpShown when -h was requested so callers can exit cleanly.
var errHelpShown = errors.New("help shown")

func parse(fs *flag.FlagSet, args []string, minArgs int, what string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelpShown
		}
		return err
	}
	if fs.NArg() < minArgs {
		fs.Usage()
		return fmt.Errorf("%s required", what)
	}
	return nil
}

func quiet(err error) error {
	if errors.Is(err, errHelpShown) {
		return nil
	}
	return err
}

func readUploadFile(path string) (*domain.UploadFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return &domain.UploadFile{
		FileName:    filepath.Base(path),
		ContentType: contentTypeFor(path),
		Content:     content,
	}, nil
}

// contentTypeFor prefers the accepted-type table over the host's mime
// database, which may name accepted formats differently (image/x-ms-bmp).
func contentTypeFor(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ct, ok := domain.ExtensionContentTypes[ext]; ok {
		return ct
	}
	return mime.TypeByExtension(filepath.Ext(path))
}

func uploadCommand() *Command {
	c := &Command{
		Name:        "upload",
		Description: "Upload one or more files, optionally processing and watching them",
		Usage:       "neoflow upload [--template id] [--process] [--sync] [--watch] <file>...",
		Examples: []string{
			"neoflow upload --process --watch report.pdf",
			"neoflow upload --template tpl-1 a.png b.png",
		},
	}
	c.Run = func(ctx context.Context, e *env, args []string) error {
		fs := c.NewFlagSet(e.out)
		templateID := fs.String("template", "", "template id to upload against")
		process := fs.Bool("process", false, "start processing after upload")
		syncMode := fs.Bool("sync", false, "process synchronously (implies --process)")
		watch := fs.Bool("watch", false, "poll status until terminal (implies --process)")
		if err := parse(fs, args, 1, "at least one file"); err != nil {
			return quiet(err)
		}

		var ids []string
		for _, path := range fs.Args() {
			file, err := readUploadFile(path)
			if err != nil {
				return err
			}
			resp, err := e.docs.Upload(ctx, file, *templateID)
			if err != nil {
				return fmt.Errorf("uploading %s: %w", path, err)
			}
			e.printf("%s\t%s\t%s\n", resp.DocumentID, resp.Status, file.FileName)
			ids = append(ids, resp.DocumentID)
		}
		if !*process && !*syncMode && !*watch {
			return nil
		}
		for _, id := range ids {
			if err := processOne(ctx, e, id, *syncMode); err != nil {
				return err
			}
		}
		if *watch && !*syncMode {
			return watchAll(ctx, e, ids)
		}
		return nil
	}
	return c
}

func processOne(ctx context.Context, e *env, id string, sync bool) error {
	resp, err := e.docs.Process(ctx, id, sync)
	if err != nil {
		return err
	}
	e.printf("%s\t%s\t%s\n", id, resp.Status, resp.Message)
	if resp.ErrorMessage != "" {
		e.printf("%s\terror: %s\n", id, resp.ErrorMessage)
	}
	return nil
}

// watchAll polls every id concurrently and returns when all are terminal.
func watchAll(ctx context.Context, e *env, ids []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			sub, err := e.syncer.Subscribe(ctx, id)
			if err != nil {
				return err
			}
			defer sub.Cancel()
			for snap := range sub.Updates() {
				line := fmt.Sprintf("%s\t%s", snap.DocumentID, snap.Status)
				if snap.ErrorMessage != nil {
					line += "\t" + *snap.ErrorMessage
				}
				e.printf("%s\n", line)
			}
			if sub.Latest() == nil || !sub.Latest().Status.IsTerminal() {
				if err := ctx.Err(); err != nil {
					return err
				}
				return sub.Err()
			}
			return nil
		})
	}
	return g.Wait()
}

func processCommand() *Command {
	c := &Command{
		Name:        "process",
		Description: "Start (or restart) OCR processing of documents",
		Usage:       "neoflow process [--sync] [--watch] <document-id>...",
		Examples:    []string{"neoflow process --sync 3f2c...", "neoflow process --watch 3f2c... 9a1b..."},
	}
	c.Run = func(ctx context.Context, e *env, args []string) error {
		fs := c.NewFlagSet(e.out)
		syncMode := fs.Bool("sync", false, "wait for the server to finish processing")
		watch := fs.Bool("watch", false, "poll status until terminal")
		if err := parse(fs, args, 1, "document id"); err != nil {
			return quiet(err)
		}
		for _, id := range fs.Args() {
			if err := processOne(ctx, e, id, *syncMode); err != nil {
				return err
			}
		}
		if *watch && !*syncMode {
			return watchAll(ctx, e, fs.Args())
		}
		return nil
	}
	return c
}

func statusCommand() *Command {
	c := &Command{
		Name:        "status",
		Description: "Show the current status of a document",
		Usage:       "neoflow status <document-id>",
	}
	c.Run = func(ctx context.Context, e *env, args []string) error {
		fs := c.NewFlagSet(e.out)
		if err := parse(fs, args, 1, "document id"); err != nil {
			return quiet(err)
		}
		snap, err := e.docs.Status(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		return writeJSON(e, snap)
	}
	return c
}

func watchCommand() *Command {
	c := &Command{
		Name:        "watch",
		Description: "Poll documents until each reaches completed or failed",
		Usage:       "neoflow watch <document-id>...",
	}
	c.Run = func(ctx context.Context, e *env, args []string) error {
		fs := c.NewFlagSet(e.out)
		if err := parse(fs, args, 1, "document id"); err != nil {
			return quiet(err)
		}
		return watchAll(ctx, e, fs.Args())
	}
	return c
}

func listCommand() *Command {
	c := &Command{
		Name:        "list",
		Description: "List documents",
		Usage:       "neoflow list [--page n] [--limit n] [--status s] [--type t]",
		Examples:    []string{"neoflow list --status pending_review"},
	}
	c.Run = func(ctx context.Context, e *env, args []string) error {
		fs := c.NewFlagSet(e.out)
		filter := domain.ListFilter{}
		fs.IntVar(&filter.Page, "page", 1, "page number")
		fs.IntVar(&filter.Limit, "limit", 20, "page size")
		status := fs.String("status", "", "filter by status")
		fs.StringVar(&filter.DocumentType, "type", "", "filter by document type")
		if err := parse(fs, args, 0, ""); err != nil {
			return quiet(err)
		}
		filter.Status = domain.DocumentStatus(*status)
		if filter.Status != "" && !filter.Status.Valid() {
			return fmt.Errorf("invalid status: %s", *status)
		}

		list, err := e.docs.List(ctx, filter)
		if err != nil {
			return err
		}
		tw := NewTableWriter("ID", "STATUS", "TYPE", "NAME", "CREATED")
		for i := range list.Items {
			d := &list.Items[i]
			docType := ""
			if d.DocumentType != nil {
				docType = *d.DocumentType
			}
			tw.AddRow(d.ID, string(d.Status), docType, d.Name(), d.CreatedAt.Local().Format(time.DateTime))
		}
		tw.Render(e.out)
		e.printf("\npage %d, %d of %d total\n", list.Page, len(list.Items), list.Total)
		return nil
	}
	return c
}

func resultCommand() *Command {
	c := &Command{
		Name:        "result",
		Description: "Print the extraction result of a reviewed or completed document",
		Usage:       "neoflow result <document-id>",
	}
	c.Run = func(ctx context.Context, e *env, args []string) error {
		fs := c.NewFlagSet(e.out)
		if err := parse(fs, args, 1, "document id"); err != nil {
			return quiet(err)
		}
		res, err := e.docs.Result(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		return writeJSON(e, res)
	}
	return c
}

func downloadCommand() *Command {
	c := &Command{
		Name:        "download",
		Description: "Download the original file of a document",
		Usage:       "neoflow download [--dir path] <document-id>",
	}
	c.Run = func(ctx context.Context, e *env, args []string) error {
		fs := c.NewFlagSet(e.out)
		dir := fs.String("dir", ".", "directory to write into")
		if err := parse(fs, args, 1, "document id"); err != nil {
			return quiet(err)
		}
		f, err := e.docs.Download(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		name := filepath.Base(f.FileName)
		if name == "." || name == string(filepath.Separator) {
			name = fs.Arg(0)
		}
		path := filepath.Join(*dir, name)
		if err := os.WriteFile(path, f.Content, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		e.printf("%s\n", path)
		return nil
	}
	return c
}

func deleteCommand() *Command {
	c := &Command{
		Name:        "delete",
		Description: "Delete documents",
		Usage:       "neoflow delete <document-id>...",
	}
	c.Run = func(ctx context.Context, e *env, args []string) error {
		fs := c.NewFlagSet(e.out)
		if err := parse(fs, args, 1, "document id"); err != nil {
			return quiet(err)
		}
		for _, id := range fs.Args() {
			if err := e.docs.Delete(ctx, id); err != nil {
				return err
			}
			e.printf("%s\tdeleted\n", id)
		}
		return nil
	}
	return c
}

func validateCommand() *Command {
	c := &Command{
		Name:        "validate",
		Description: "Approve a document under review, optionally with corrected fields",
		Usage:       "neoflow validate --type <document-type> [--data fields.json] [--notes text] <document-id>",
		Examples:    []string{`neoflow validate --type 检测报告 --data fixed.json 3f2c...`},
	}
	c.Run = func(ctx context.Context, e *env, args []string) error {
		fs := c.NewFlagSet(e.out)
		var input domain.ValidateInput
		fs.StringVar(&input.DocumentType, "type", "", "confirmed document type")
		dataPath := fs.String("data", "", "JSON file with the corrected extraction fields")
		fs.StringVar(&input.ValidationNotes, "notes", "", "reviewer notes")
		if err := parse(fs, args, 1, "document id"); err != nil {
			return quiet(err)
		}
		if *dataPath != "" {
			raw, err := os.ReadFile(*dataPath)
			if err != nil {
				return fmt.Errorf("reading %s: %w", *dataPath, err)
			}
			if err := json.Unmarshal(raw, &input.Data); err != nil {
				return fmt.Errorf("parsing %s: %w", *dataPath, err)
			}
		}
		resp, err := e.docs.Validate(ctx, fs.Arg(0), input)
		if err != nil {
			return err
		}
		e.printf("%s\t%s\n", fs.Arg(0), resp.Message)
		return nil
	}
	return c
}

func rejectCommand() *Command {
	c := &Command{
		Name:        "reject",
		Description: "Reject a document under review",
		Usage:       "neoflow reject --reason <text> <document-id>",
	}
	c.Run = func(ctx context.Context, e *env, args []string) error {
		fs := c.NewFlagSet(e.out)
		reason := fs.String("reason", "", "rejection reason")
		if err := parse(fs, args, 1, "document id"); err != nil {
			return quiet(err)
		}
		resp, err := e.docs.Reject(ctx, fs.Arg(0), *reason)
		if err != nil {
			return err
		}
		e.printf("%s\t%s\n", fs.Arg(0), resp.Message)
		return nil
	}
	return c
}

func renameCommand() *Command {
	c := &Command{
		Name:        "rename",
		Description: "Set the display name of a document",
		Usage:       "neoflow rename <document-id> <display-name>",
	}
	c.Run = func(ctx context.Context, e *env, args []string) error {
		fs := c.NewFlagSet(e.out)
		if err := parse(fs, args, 2, "document id and display name"); err != nil {
			return quiet(err)
		}
		resp, err := e.docs.Rename(ctx, fs.Arg(0), fs.Arg(1))
		if err != nil {
			return err
		}
		e.printf("%s\t%s\n", fs.Arg(0), resp.DisplayName)
		return nil
	}
	return c
}

func templatesCommand() *Command {
	c := &Command{
		Name:        "templates",
		Description: "List the tenant's document templates and merge rules",
		Usage:       "neoflow templates",
	}
	c.Run = func(ctx context.Context, e *env, args []string) error {
		fs := c.NewFlagSet(e.out)
		if err := parse(fs, args, 0, ""); err != nil {
			return quiet(err)
		}
		templates, err := e.docs.Templates(ctx)
		if err != nil {
			return err
		}
		rules, err := e.docs.MergeRules(ctx)
		if err != nil {
			return err
		}
		tw := NewTableWriter("ID", "CODE", "NAME", "MODE", "FILES", "MERGE TYPES")
		for _, t := range templates {
			types := ""
			for _, r := range rules {
				if r.TemplateID == t.ID {
					types = r.DocTypeA + " + " + r.DocTypeB
				}
			}
			tw.AddRow(t.ID, t.Code, t.Name, string(t.ProcessMode), strconv.Itoa(t.RequiredDocCount), types)
		}
		tw.Render(e.out)
		return nil
	}
	return c
}

func writeJSON(e *env, v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
