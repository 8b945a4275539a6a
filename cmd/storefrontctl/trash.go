package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func (s *session) trash(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: trash requires a subcommand", errUsage)
	}

	var (
		kind string
		yes  bool
	)
	sub := args[0]
	fs := flag.NewFlagSet("trash "+sub, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&kind, "kind", string(domain.EntityKindOrder), "order|category|product")
	fs.BoolVar(&yes, "yes", false, "confirm permanent deletion")
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	entityKind := domain.EntityKind(kind)
	if !entityKind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", errUsage, kind)
	}

	switch sub {
	case "list":
		return s.trashList(ctx, entityKind)
	case "count":
		count, err := s.bin.SyncCount(ctx, entityKind)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(s.out, "%s: %d in recycle bin\n", entityKind, count)
		return nil
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("%w: trash %s requires an id", errUsage, sub)
	}
	id := fs.Arg(0)

	switch sub {
	case "delete":
		if err := s.bin.SoftDelete(ctx, entityKind, id); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(s.out, "%s %s moved to recycle bin\n", entityKind, id)
		return nil
	case "restore":
		if err := s.bin.Restore(ctx, entityKind, id); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(s.out, "%s %s restored\n", entityKind, id)
		return nil
	case "purge":
		return s.trashPurge(ctx, entityKind, id, yes)
	default:
		return fmt.Errorf("%w: unknown trash subcommand %q", errUsage, sub)
	}
}

func (s *session) trashList(ctx context.Context, kind domain.EntityKind) error {
	entities, err := s.bin.List(ctx, kind)
	if err != nil {
		return err
	}
	expiring := make(map[string]bool)
	for _, e := range s.bin.Expiring(entities, domain.ExpiryWarningDays) {
		expiring[e.ID] = true
	}

	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tDELETED\tPURGE AT\tCHILDREN\t")
	for _, e := range entities {
		mark := ""
		if expiring[e.ID] {
			mark = "expiring soon"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.ID, e.Name, formatTime(e.DeletedAt), e.PurgeAt().Format("2006-01-02"), e.RestorableChildren, mark)
	}
	return w.Flush()
}

// trashPurge удаляет сущность безвозвратно только с -yes; без него запрос подтверждения отзывается.
func (s *session) trashPurge(ctx context.Context, kind domain.EntityKind, id string, yes bool) error {
	entities, err := s.bin.List(ctx, kind)
	if err != nil {
		return err
	}
	var target *domain.RecyclableEntity
	for i := range entities {
		if entities[i].ID == id {
			target = &entities[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%s %s is not in recycle bin: %w", kind, id, domain.ErrNotFound)
	}

	confirmation, err := s.bin.RequestForceDelete(*target)
	if err != nil {
		return err
	}
	if !yes {
		if err := s.bin.DismissForceDelete(confirmation.Token); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(s.out, "%s %q will be deleted permanently", confirmation.Kind, confirmation.Name)
		if confirmation.RestorableChildren > 0 {
			_, _ = fmt.Fprintf(s.out, " along with %d restorable items", confirmation.RestorableChildren)
		}
		_, _ = fmt.Fprintln(s.out, "; rerun with -yes to confirm")
		return nil
	}

	if err := s.bin.ConfirmForceDelete(ctx, confirmation); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.out, "%s %q deleted permanently\n", confirmation.Kind, confirmation.Name)
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
