package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/gospellibrary/sdk-go/catalog"
	"github.com/gospellibrary/sdk-go/client"
	"github.com/gospellibrary/sdk-go/mirror"
	"github.com/gospellibrary/sdk-go/types"
)

func sortedCommandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func cmdLanguages(ctx context.Context, a *app, _ []string) error {
	c, err := a.catalogClient(ctx)
	if err != nil {
		return err
	}
	languages, found, err := c.Languages(ctx)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: languages index unavailable", types.ErrNotFound)
	}
	return a.print(languages)
}

func cmdVersion(ctx context.Context, a *app, _ []string) error {
	c, err := a.catalogClient(ctx)
	if err != nil {
		return err
	}
	version, found, err := c.CurrentVersion(ctx, "")
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: no current version for %s", types.ErrCatalogNotFound, c.Config().LanguageCode)
	}
	return a.print(map[string]any{"language": c.Config().LanguageCode, "catalog_version": version})
}

func cmdFetch(ctx context.Context, a *app, _ []string) error {
	db, err := a.catalog(ctx)
	if err != nil {
		return err
	}
	path, err := db.Path(ctx)
	if err != nil {
		return err
	}
	return a.print(map[string]any{"catalog": db.Key().String(), "path": path})
}

func cmdLanguageName(ctx context.Context, a *app, args []string) error {
	id, err := parseID(args, "language id")
	if err != nil {
		return err
	}
	db, err := a.catalog(ctx)
	if err != nil {
		return err
	}
	name, found, err := db.LanguageName(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: language %d", types.ErrNotFound, id)
	}
	return a.print(name)
}

func cmdDBLanguages(ctx context.Context, a *app, _ []string) error {
	return queryRows(ctx, a, (*catalog.DB).Languages)
}

func cmdCategories(ctx context.Context, a *app, _ []string) error {
	return queryRows(ctx, a, (*catalog.DB).ItemCategories)
}

func cmdCollection(ctx context.Context, a *app, args []string) error {
	id, err := parseID(args, "collection id")
	if err != nil {
		return err
	}
	db, err := a.catalog(ctx)
	if err != nil {
		return err
	}
	row, found, err := db.Collection(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: collection %d", types.ErrNotFound, id)
	}
	return a.print(row)
}

func cmdSections(ctx context.Context, a *app, args []string) error {
	id, err := parseID(args, "collection id")
	if err != nil {
		return err
	}
	return queryRows(ctx, a, func(db *catalog.DB, ctx context.Context) ([]types.Row, error) {
		return db.Sections(ctx, id)
	})
}

func cmdCollections(ctx context.Context, a *app, args []string) error {
	return sectionQuery(ctx, a, args, (*catalog.DB).Collections)
}

func cmdItems(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return queryRows(ctx, a, func(db *catalog.DB, ctx context.Context) ([]types.Row, error) {
			return db.Items(ctx, nil)
		})
	}
	return sectionQuery(ctx, a, args, (*catalog.DB).Items)
}

func cmdNodes(ctx context.Context, a *app, args []string) error {
	return sectionQuery(ctx, a, args, (*catalog.DB).Nodes)
}

func cmdItem(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: expected an item id or uri", types.ErrInvalidInput)
	}
	ref := types.ItemRef{URI: args[0]}
	if id, err := strconv.ParseInt(args[0], 10, 64); err == nil {
		ref = types.ItemRef{ID: id}
	}

	db, err := a.catalog(ctx)
	if err != nil {
		return err
	}
	row, found, err := db.Item(ctx, ref)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: item %s", types.ErrNotFound, args[0])
	}
	return a.print(row)
}

func cmdStats(ctx context.Context, a *app, _ []string) error {
	db, err := a.catalog(ctx)
	if err != nil {
		return err
	}
	path, err := db.Path(ctx)
	if err != nil {
		return err
	}
	result, err := catalog.Analyze(ctx, path)
	if err != nil {
		return err
	}
	return a.print(result)
}

func cmdPublish(ctx context.Context, a *app, _ []string) error {
	clients, cfg, err := a.connectMirror(ctx)
	if err != nil {
		return err
	}
	codec, err := a.codec()
	if err != nil {
		return err
	}

	upstream, err := catalog.NewHTTPSource(client.NewSession(a.cfg), a.cfg.BaseURL)
	if err != nil {
		return err
	}
	publisher, err := mirror.NewPublisher(mirror.PublisherConfig{
		Mirror:        cfg,
		SchemaVersion: a.cfg.SchemaVersion,
		Upstream:      upstream,
		S3:            clients.S3,
		SQS:           clients.SQS,
		Envelope:      mirror.NewEnvelope(clients.KMS, cfg.KMSKeyID),
		Logger:        a.logger,
	})
	if err != nil {
		return err
	}

	opts := mirror.NewPublishOptions()
	opts.Codec = codec
	notification, err := publisher.Publish(ctx, a.cfg.LanguageCode, a.opts.version, opts)
	if err != nil {
		return err
	}
	return a.print(notification)
}

func cmdWatch(ctx context.Context, a *app, args []string) error {
	clients, cfg, err := a.connectMirror(ctx)
	if err != nil {
		return err
	}
	if cfg.QueueURL == "" {
		return errors.New("mirror queue not configured")
	}

	watcher := mirror.NewWatcher(clients.SQS, cfg.QueueURL, a.logger)
	opts := mirror.PollOptions{LanguageCodes: args}
	for {
		notifications, err := watcher.Poll(ctx, opts)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		for _, n := range notifications {
			if err := a.print(n); err != nil {
				return err
			}
		}
	}
}

func queryRows(ctx context.Context, a *app, query func(*catalog.DB, context.Context) ([]types.Row, error)) error {
	db, err := a.catalog(ctx)
	if err != nil {
		return err
	}
	rows, err := query(db, ctx)
	if err != nil {
		return err
	}
	return a.print(rows)
}

func sectionQuery(ctx context.Context, a *app, args []string, query func(*catalog.DB, context.Context, []int64) ([]types.Row, error)) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: at least one section id is required", types.ErrInvalidInput)
	}
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	return queryRows(ctx, a, func(db *catalog.DB, ctx context.Context) ([]types.Row, error) {
		return query(db, ctx, ids)
	})
}
