package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/duette-app/duette/cmd/duettectl/library"
	"github.com/duette-app/duette/cmd/duettectl/recording"
	"github.com/duette-app/duette/common/clients"
	"github.com/duette-app/duette/common/logger"
	"github.com/joho/godotenv"
)

// app bundles the clients every subcommand works with
type app struct {
	catalog *clients.CatalogClient
	objects *clients.ObjectClient
	events  *clients.EventsClient
	lib     *library.Library
	log     *logger.Logger
}

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"list", "list [-search text] [-filter cel]", runList},
	{"add", "add -title t -performer p [-composer c] [-key k] [-notes n]", runAdd},
	{"delete", "delete -id videoID [-search text]", runDelete},
	{"put", "put -key objectKey -file path", runPut},
	{"get", "get -key objectKey -out path", runGet},
	{"record", "record -video videoID -file take.mov [-duration 5s] [-discard]", runRecord},
	{"save", "save -video videoID -duette duetteID [-dir .]", runSave},
	{"watch", "watch", runWatch},
}

// printUsage prints the usage information for the application
func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: duettectl [OPTIONS] COMMAND [COMMAND OPTIONS]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %s\n", c.usage)
	}
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Options:")
	flag.PrintDefaults()
}

func main() {
	_ = godotenv.Load()

	server := flag.String("server", getEnv("DUETTE_SERVER", "http://localhost:8080"), "Base URL of the duette server")
	user := flag.String("user", os.Getenv("DUETTE_USER"), "User id sent as X-User-ID")
	logLevel := flag.String("log-level", getEnv("LOG_LEVEL", "warn"), "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(2)
	}

	log := logger.New(*logLevel, "text")
	catalog := clients.NewCatalogClient(*server, log)
	objects := clients.NewObjectClient(*server, log)
	a := &app{
		catalog: catalog,
		objects: objects,
		events:  clients.NewEventsClient(*server, log),
		lib:     library.New(catalog, objects, log),
		log:     log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *user != "" {
		ctx = clients.WithUserID(ctx, *user)
	}

	name := flag.Arg(0)
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(ctx, a, flag.Args()[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", name)
	printUsage()
	os.Exit(2)
}

func runList(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	search := fs.String("search", "", "Case-insensitive title, composer or performer match")
	filter := fs.String("filter", "", "CEL expression over `video`")
	fs.Parse(args)

	var videos []clients.Video
	if *filter != "" {
		var err error
		videos, err = a.catalog.ListVideos(ctx, *search, clients.WithFilter(*filter))
		if err != nil {
			return err
		}
	} else {
		if err := a.lib.FetchVideos(ctx, *search); err != nil {
			return err
		}
		videos = a.lib.Videos()
	}

	for _, v := range videos {
		printVideo(v)
	}
	return nil
}

func printVideo(v clients.Video) {
	fmt.Printf("%s  %-30s  %-20s", v.ID, v.Title, v.Performer)
	if v.Composer != "" {
		fmt.Printf("  composer=%s", v.Composer)
	}
	if v.Key != "" {
		fmt.Printf("  key=%s", v.Key)
	}
	fmt.Println()
}

func runAdd(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	var d clients.VideoDetails
	fs.StringVar(&d.Title, "title", "", "Title (required)")
	fs.StringVar(&d.Performer, "performer", "", "Performer (required)")
	fs.StringVar(&d.Composer, "composer", "", "Composer")
	fs.StringVar(&d.Key, "key", "", "Musical key")
	fs.StringVar(&d.Notes, "notes", "", "Notes, at most 250 characters")
	fs.Parse(args)

	video, err := a.lib.PostVideo(ctx, d)
	if err != nil {
		return err
	}
	fmt.Printf("created %s (%d videos in catalog)\n", video.ID, len(a.lib.Videos()))
	return nil
}

func runDelete(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.String("id", "", "Video id (required)")
	search := fs.String("search", "", "Search to refresh the list with")
	fs.Parse(args)
	if *id == "" {
		return errors.New("-id is required")
	}

	report, err := a.lib.DeleteVideo(ctx, *id, *search)
	if report == nil {
		return err
	}
	for _, step := range report.Steps {
		fmt.Printf("%-17s %-40s %s\n", step.Step, step.Target, step.Status)
	}
	if err != nil && len(report.Failed()) > 0 {
		fmt.Println("retrying failed steps")
		report, err = a.lib.ResumeDelete(ctx, report)
		for _, step := range report.Failed() {
			fmt.Printf("%-17s %-40s %s\n", step.Step, step.Target, step.Status)
		}
	}
	return err
}

func runPut(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("put", flag.ExitOnError)
	key := fs.String("key", "", "Object key (required)")
	file := fs.String("file", "", "File to upload (required)")
	fs.Parse(args)
	if *key == "" || *file == "" {
		return errors.New("-key and -file are required")
	}

	body, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	result, err := a.objects.Put(ctx, *key, body)
	if err != nil {
		return err
	}
	fmt.Printf("stored %s (%d bytes, etag %s)\n", result.Key, result.Size, result.ETag)
	return nil
}

func runGet(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	key := fs.String("key", "", "Object key (required)")
	out := fs.String("out", "", "Output file (required)")
	fs.Parse(args)
	if *key == "" || *out == "" {
		return errors.New("-key and -out are required")
	}

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	n, err := a.objects.Download(ctx, *key, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(*out)
		return err
	}
	fmt.Printf("wrote %d bytes to %s\n", n, *out)
	return nil
}

func runRecord(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	videoID := fs.String("video", "", "Reference video id (required)")
	file := fs.String("file", "", "File standing in for the camera take (required)")
	duration := fs.Duration("duration", 0, "Recording length, 0 waits for Enter")
	discard := fs.Bool("discard", false, "Discard the take instead of saving it")
	fs.Parse(args)
	if *videoID == "" || *file == "" {
		return errors.New("-video and -file are required")
	}

	player := recording.NewObjectPlayer(a.objects, *videoID, a.log)
	uploader := recording.NewClientUploader(a.catalog, a.objects, a.log)
	flow := recording.NewFlow(*videoID, recording.NewFileCamera(*file), player, uploader, a.log)
	defer flow.Close()

	flow.OnStateChange(func(s recording.State) {
		fmt.Printf("state: %s\n", s)
	})

	if err := player.Load(ctx); err != nil {
		return err
	}
	if err := flow.Start(ctx); err != nil {
		return err
	}

	if *duration > 0 {
		select {
		case <-time.After(*duration):
		case <-ctx.Done():
			return flow.Cancel(context.Background())
		}
	} else {
		fmt.Println("recording, press Enter to stop")
		bufio.NewReader(os.Stdin).ReadString('\n')
	}

	if err := flow.Stop(ctx); err != nil {
		return err
	}

	if *discard {
		return flow.Discard()
	}
	duette, err := flow.Save(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("saved duette %s as %s\n", duette.ID, duette.ObjectKey)
	return nil
}

func runSave(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	videoID := fs.String("video", "", "Video id (required)")
	duetteID := fs.String("duette", "", "Duette id (required)")
	dir := fs.String("dir", ".", "Directory to save into")
	fs.Parse(args)
	if *videoID == "" || *duetteID == "" {
		return errors.New("-video and -duette are required")
	}

	path, err := a.lib.SaveDuette(ctx, *videoID, *duetteID, *dir)
	if err != nil {
		return err
	}
	fmt.Printf("saved %s\n", path)
	return nil
}

func runWatch(ctx context.Context, a *app, args []string) error {
	if err := a.lib.FetchVideos(ctx, ""); err != nil {
		return err
	}
	unsubscribe := a.lib.Subscribe(func(videos []clients.Video) {
		fmt.Printf("%s  catalog changed, %d videos\n", time.Now().Format(time.TimeOnly), len(videos))
	})
	defer unsubscribe()

	fmt.Printf("watching catalog (%d videos), Ctrl-C to stop\n", len(a.lib.Videos()))
	return a.lib.Sync(ctx, a.events)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
