// gospellibrary queries gospel library content catalogs from the command
// line and maintains S3 mirrors of them.
//
// Usage:
//
//	gospellibrary [flags] <command> [args...]
//
// Query results are written to stdout as JSON; logs go to stderr.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/text/language"

	"github.com/gospellibrary/sdk-go/catalog"
	"github.com/gospellibrary/sdk-go/client"
	"github.com/gospellibrary/sdk-go/mirror"
	"github.com/gospellibrary/sdk-go/types"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the global flags.
type options struct {
	language   string
	locale     string
	version    int
	baseURL    string
	cachePath  string
	codec      string
	fromMirror bool
	verbose    bool
}

// app is the state shared by commands.
type app struct {
	opts   options
	cfg    types.Config
	logger *slog.Logger
	stdout io.Writer

	mirrorCfg     mirror.Config
	mirrorClients *mirror.Clients
}

type command struct {
	usage   string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"languages":     {"languages", "list languages from the languages index", cmdLanguages},
	"version":       {"version", "print the current catalog version", cmdVersion},
	"fetch":         {"fetch", "download the catalog and print its local path", cmdFetch},
	"language-name": {"language-name <language-id>", "print a language name from the catalog", cmdLanguageName},
	"db-languages":  {"db-languages", "list the languages table of the catalog", cmdDBLanguages},
	"categories":    {"categories", "list item categories", cmdCategories},
	"collection":    {"collection <collection-id>", "print one library collection", cmdCollection},
	"sections":      {"sections <collection-id>", "list the sections of a collection", cmdSections},
	"collections":   {"collections <section-id>...", "list collections in sections", cmdCollections},
	"items":         {"items [section-id...]", "list items, all of them when no section is given", cmdItems},
	"nodes":         {"nodes <section-id>...", "list collections and items in sections by position", cmdNodes},
	"item":          {"item <item-id | uri>", "print one item by id or by uri", cmdItem},
	"stats":         {"stats", "print row counts and column emptiness of the catalog", cmdStats},
	"publish":       {"publish", "copy the catalog into the S3 mirror", cmdPublish},
	"watch":         {"watch", "print catalog publish notifications from the mirror queue", cmdWatch},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options

	flagSet := pflag.NewFlagSet("gospellibrary", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.language, "language", "l", "", "ISO 639-3 catalog language (default: $GOSPELLIBRARY_LANGUAGE or eng)")
	flagSet.StringVar(&opts.locale, "locale", "", "pick the catalog language best matching a BCP 47 locale, e.g. es-MX")
	flagSet.IntVar(&opts.version, "catalog-version", 0, "catalog version (default: current)")
	flagSet.StringVar(&opts.baseURL, "base-url", "", "CDN base URL")
	flagSet.StringVar(&opts.cachePath, "cache", "", "catalog cache directory")
	flagSet.StringVar(&opts.codec, "codec", "", "catalog compression: xz, zstd or gzip")
	flagSet.BoolVar(&opts.fromMirror, "from-mirror", false, "read catalogs from the S3 mirror instead of the CDN")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flagSet.Usage = func() { printUsage(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(stderr, flagSet)
		return errors.New("missing command")
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", rest[0])
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := client.LoadConfig()
	if err != nil {
		return err
	}
	if opts.baseURL != "" {
		cfg.BaseURL = opts.baseURL
	}
	if opts.cachePath != "" {
		cfg.CachePath = opts.cachePath
	}
	if opts.language != "" {
		cfg.LanguageCode = opts.language
	}
	cfg.Logger = logger

	a := &app{opts: opts, cfg: cfg, logger: logger, stdout: stdout}
	return cmd.run(ctx, a, rest[1:])
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: gospellibrary [flags] <command> [args...]\n\nCommands:\n")
	for _, name := range sortedCommandNames() {
		cmd := commands[name]
		fmt.Fprintf(w, "  %-30s %s\n", cmd.usage, cmd.summary)
	}
	fmt.Fprintf(w, "\nFlags:\n%s", flagSet.FlagUsages())
}

// catalogClient builds a catalog client for the configured source.
func (a *app) catalogClient(ctx context.Context) (*catalog.Client, error) {
	var opts []catalog.Option

	codec, err := a.codec()
	if err != nil {
		return nil, err
	}
	if codec != nil {
		opts = append(opts, catalog.WithCodec(codec))
	}

	if a.opts.fromMirror {
		clients, cfg, err := a.connectMirror(ctx)
		if err != nil {
			return nil, err
		}
		envelope := mirror.NewEnvelope(clients.KMS, cfg.KMSKeyID)
		opts = append(opts, catalog.WithSource(mirror.NewSource(clients.S3, cfg.Bucket, cfg.Prefix, envelope)))
	}

	c, err := catalog.NewClient(a.cfg, opts...)
	if err != nil {
		return nil, err
	}

	if a.opts.locale != "" && a.opts.language == "" {
		code, err := a.matchLocale(ctx, c)
		if err != nil {
			return nil, err
		}
		return catalog.NewClient(withLanguage(a.cfg, code), opts...)
	}
	return c, nil
}

func (a *app) codec() (catalog.Codec, error) {
	if a.opts.codec == "" {
		return nil, nil
	}
	return catalog.CodecByName(a.opts.codec)
}

func (a *app) matchLocale(ctx context.Context, c *catalog.Client) (string, error) {
	tag, err := language.Parse(a.opts.locale)
	if err != nil {
		return "", fmt.Errorf("invalid locale %q: %w", a.opts.locale, err)
	}

	languages, found, err := c.Languages(ctx)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%w: languages index unavailable", types.ErrNotFound)
	}

	match, ok := catalog.MatchLanguage(languages, tag)
	if !ok {
		return "", fmt.Errorf("%w: no catalog language matches %s", types.ErrNotFound, tag)
	}
	a.logger.Debug("matched locale", "locale", tag.String(), "language", match.ISO639_3Code)
	return match.ISO639_3Code, nil
}

// connectMirror connects to AWS once per invocation.
func (a *app) connectMirror(ctx context.Context) (mirror.Clients, mirror.Config, error) {
	if a.mirrorClients != nil {
		return *a.mirrorClients, a.mirrorCfg, nil
	}

	cfg, err := mirror.LoadConfig()
	if err != nil {
		return mirror.Clients{}, cfg, err
	}
	clients, cfg, err := mirror.Connect(ctx, cfg)
	if err != nil {
		return mirror.Clients{}, cfg, err
	}
	a.mirrorClients = &clients
	a.mirrorCfg = cfg
	return clients, cfg, nil
}

// catalog opens the selected catalog.
func (a *app) catalog(ctx context.Context) (*catalog.DB, error) {
	c, err := a.catalogClient(ctx)
	if err != nil {
		return nil, err
	}
	return c.Catalog(ctx, "", a.opts.version)
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func withLanguage(cfg types.Config, code string) types.Config {
	cfg.LanguageCode = code
	return cfg
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid id %q", types.ErrInvalidInput, arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseID(args []string, name string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: expected exactly one %s", types.ErrInvalidInput, name)
	}
	ids, err := parseIDs(args)
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}
