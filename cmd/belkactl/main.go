package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/belkahq/belka/internal/uploader"
)

var version = "dev"

// consoleNotifier prints queue and upload notices to the terminal.
type consoleNotifier struct{}

func (consoleNotifier) Success(msg string) { fmt.Println("ok:", msg) }
func (consoleNotifier) Error(msg string)   { fmt.Fprintln(os.Stderr, "error:", msg) }
func (consoleNotifier) Info(msg string)    { fmt.Println(msg) }

func main() {
	server := flag.String("server", getenv("BELKA_SERVER", "http://localhost:8080"), "base URL of the belka server")
	apiKey := flag.String("key", os.Getenv("BELKA_API_KEY"), "api key")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "an api key is required (-key or BELKA_API_KEY)")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := uploader.NewClient(*server, *apiKey)

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "upload":
		err = runUpload(ctx, client, flag.Args()[1:])
	case "list":
		err = runList(ctx, client)
	case "rm":
		err = runRemove(ctx, client, flag.Args()[1:])
	case "version":
		fmt.Println("belkactl version", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: belkactl [flags] <command>

commands:
  upload [-tags "#a,#b"] [-simple] <file>...  upload images
  list                                        list your images
  rm <id>...                                  delete images by id
  version                                     print the version

flags:
`)
	flag.PrintDefaults()
}

func runUpload(ctx context.Context, client *uploader.Client, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	tagsFlag := fs.String("tags", "", "comma-separated tags applied to every file, e.g. \"#mare,#estate\"")
	simple := fs.Bool("simple", false, "skip per-file metadata and derive titles from filenames")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("upload: at least one file is required")
	}

	notifier := consoleNotifier{}
	mode := uploader.ModePerFile
	if *simple {
		mode = uploader.ModeSimple
	}
	queue := uploader.NewQueue(notifier, uploader.WithMode(mode))

	tags := splitTags(*tagsFlag)
	if len(tags) > 0 {
		queue.SetBatchTags(tags)
	}

	var raw []uploader.RawFile
	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		raw = append(raw, uploader.RawFile{
			Name:        filepath.Base(path),
			Size:        int64(len(data)),
			ContentType: http.DetectContentType(data),
			Data:        data,
		})
	}
	queue.AddFiles(raw)
	if queue.Len() == 0 {
		return fmt.Errorf("upload: no files were admitted to the queue")
	}

	// In per-file mode every queued file keeps its derived title and, when
	// given, the shared tag list.
	if mode == uploader.ModePerFile && len(tags) > 0 {
		for _, f := range queue.Files() {
			queue.UpdateMetadata(f.ID, uploader.MetadataPatch{Tags: &tags})
		}
	}

	orch := uploader.NewOrchestrator(queue, client, notifier)
	return orch.Run(ctx)
}

func runList(ctx context.Context, client *uploader.Client) error {
	images, err := client.ListImages(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tTAGS\tCREATED")
	for _, img := range images {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", img.ID, img.Title, strings.Join(img.Tags, " "), img.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runRemove(ctx context.Context, client *uploader.Client, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("rm: at least one id is required")
	}
	for _, id := range ids {
		if err := client.DeleteImage(ctx, id); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
		fmt.Println("deleted", id)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitTags(input string) []string {
	if input == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(input, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, "#") {
			t = "#" + t
		}
		out = append(out, t)
	}
	return out
}
