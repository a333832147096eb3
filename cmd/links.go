package main

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spondex/internal/formatter"
	"github.com/desertthunder/spondex/internal/models"
	"github.com/desertthunder/spondex/internal/repositories"
	"github.com/desertthunder/spondex/internal/shared"
	"github.com/desertthunder/spondex/internal/ui"
	"github.com/urfave/cli/v3"
)

func parseKind(value string) (models.EntityKind, error) {
	kind := models.EntityKind(value)
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown entity kind %q", shared.ErrInvalidFlag, value)
	}
	return kind, nil
}

func parseService(value string) (models.Service, error) {
	service := models.Service(value)
	if !service.Valid() {
		return "", fmt.Errorf("%w: unknown service %q", shared.ErrInvalidFlag, value)
	}
	return service, nil
}

// LinksList lists stored links for one entity kind.
func (r *Runner) LinksList(ctx context.Context, cmd *cli.Command) error {
	kind, err := parseKind(cmd.String("kind"))
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	links, err := repositories.NewLinkRepository(db).List(kind)
	if err != nil {
		return err
	}

	if export := cmd.String("export"); export != "" {
		path, err := formatter.WriteLinksExport(kind, links, export)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Exported %d links to %s\n", len(links), path)
	}

	if cmd.Bool("json") {
		return r.writeJSON(links, cmd.Bool("pretty"))
	}

	return r.writePlain("%s", formatter.LinksToText(kind, links))
}

// LinksFind looks up a single link by normalized key.
func (r *Runner) LinksFind(ctx context.Context, cmd *cli.Command) error {
	key := cmd.StringArg("key")
	if key == "" {
		return fmt.Errorf("%w: normalized key", shared.ErrMissingArgument)
	}

	kind, err := parseKind(cmd.String("kind"))
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	link, found, err := repositories.NewLinkRepository(db).FindByKey(kind, key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: no %s link for key %q", shared.ErrLinkNotFound, kind, key)
	}

	r.writePlain("%s\n", link.NormalizedKey)
	r.writePlain("  spotify: %s\n", link.SpotifyID)
	r.writePlain("  yandex:  %s\n", link.YandexID)
	r.writePlain("  linked:  %s\n", link.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

// LinksUnlink removes the link holding a service-side ID.
func (r *Runner) LinksUnlink(ctx context.Context, cmd *cli.Command) error {
	kind, err := parseKind(cmd.String("kind"))
	if err != nil {
		return err
	}

	service, err := parseService(cmd.String("service"))
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	id := cmd.String("id")
	if err := repositories.NewLinkRepository(db).Unlink(kind, service, id); err != nil {
		return err
	}

	r.logger.Info("link removed", "kind", kind, "service", service, "id", id)
	return r.writePlain("✓ Unlinked %s %s:%s\n", kind, service, id)
}

// LinksMissing lists tracks that could not be found on a service.
func (r *Runner) LinksMissing(ctx context.Context, cmd *cli.Command) error {
	service, err := parseService(cmd.String("service"))
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	tracks, err := repositories.NewUndiscoveredRepository(db).List(service)
	if err != nil {
		return err
	}

	return r.writePlain("%s", formatter.UndiscoveredToText(service, tracks))
}

// LinksBrowse opens the interactive crosswalk browser.
func (r *Runner) LinksBrowse(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	// Silence logs so they don't interfere with TUI rendering
	r.logger.SetOutput(io.Discard)

	model := ui.NewModel(repositories.NewLinkRepository(db))
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
