package importer

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/packdock/packdock/pkg/catalog"
)

// reconcile diffs the discovered actions against the catalog and applies
// the resulting plan inside one transaction. Package and action identity
// is keyed by name; IDs are generated once and preserved forever after.
func (imp *Importer) reconcile(ctx context.Context, pkg *catalog.ActionPackage, actions []*catalog.Action, disableNotImported bool) error {
	existing, err := imp.store.GetActionPackageByName(ctx, pkg.Name)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return newImportError(ErrorKindStorage, "failed to look up action package", err)
	}

	if existing == nil {
		return imp.insertNew(ctx, pkg, actions)
	}
	return imp.updateExisting(ctx, existing, pkg, actions, disableNotImported)
}

// insertNew registers a package seen for the first time: the package row
// and every discovered action, all with fresh IDs.
func (imp *Importer) insertNew(ctx context.Context, pkg *catalog.ActionPackage, actions []*catalog.Action) error {
	imp.logger.Info().Str("package", pkg.Name).Msg("Found new action package")

	pkg.ID = uuid.New().String()

	return imp.inTransaction(ctx, func(tx *sql.Tx) error {
		if err := imp.store.InsertActionPackage(ctx, tx, pkg); err != nil {
			return err
		}
		for _, action := range actions {
			action.ID = uuid.New().String()
			action.ActionPackageID = pkg.ID
			imp.logger.Info().Str("action", action.Name).Msg("Found new action")
			if err := imp.store.InsertAction(ctx, tx, action); err != nil {
				return err
			}
			imp.metrics.RecordActionMutation("inserted")
		}
		return nil
	})
}

// updateExisting reconciles against a package that is already cataloged:
// the package row is overwritten in place, discovered actions update
// their same-name predecessor or insert fresh, and, when requested,
// snapshotted actions not seen during the pass are disabled.
func (imp *Importer) updateExisting(ctx context.Context, existing, pkg *catalog.ActionPackage, actions []*catalog.Action, disableNotImported bool) error {
	imp.logger.Debug().Str("package", pkg.Name).Msg("Updating action package")

	pkg.ID = existing.ID

	existingActions, err := imp.store.ListActionsByPackage(ctx, existing.ID)
	if err != nil {
		return newImportError(ErrorKindStorage, "failed to load existing actions", err)
	}

	byName := make(map[string]*catalog.Action, len(existingActions))
	for _, action := range existingActions {
		byName[action.Name] = action
	}

	// The stale snapshot is taken before any mutation so the disable pass
	// sees the catalog as it was when this import started.
	var snapshot []*catalog.Action
	if disableNotImported {
		switch imp.cfg.StaleScope {
		case StaleScopeAllPackages:
			snapshot, err = imp.store.ListActions(ctx)
		default:
			snapshot = existingActions
		}
		if err != nil {
			return newImportError(ErrorKindStorage, "failed to snapshot actions", err)
		}
	}

	if len(actions) == 0 {
		imp.logger.Info().Str("package", pkg.Name).Msg("Found no actions in package")
	}

	return imp.inTransaction(ctx, func(tx *sql.Tx) error {
		if err := imp.store.UpdateActionPackage(ctx, tx, pkg); err != nil {
			return err
		}

		seen := make(map[string]bool, len(actions))
		for _, action := range actions {
			action.ActionPackageID = existing.ID
			if prev, ok := byName[action.Name]; ok {
				action.ID = prev.ID
				imp.logger.Debug().Str("action", action.Name).Msg("Updating action")
				if err := imp.store.UpdateAction(ctx, tx, action); err != nil {
					return err
				}
				imp.metrics.RecordActionMutation("updated")
			} else {
				action.ID = uuid.New().String()
				imp.logger.Info().Str("action", action.Name).Msg("Found new action")
				if err := imp.store.InsertAction(ctx, tx, action); err != nil {
					return err
				}
				imp.metrics.RecordActionMutation("inserted")
			}
			seen[action.ID] = true
		}

		for _, stale := range snapshot {
			if seen[stale.ID] {
				continue
			}
			imp.logger.Info().Str("action", stale.Name).Msg("Disabling action")
			if err := imp.store.DisableAction(ctx, tx, stale.ID); err != nil {
				return err
			}
			imp.metrics.RecordActionMutation("disabled")
		}
		return nil
	})
}

// inTransaction runs fn inside a catalog transaction, committing on
// success and rolling back on any error so the catalog never ends up
// partially updated.
func (imp *Importer) inTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := imp.store.BeginTx(ctx)
	if err != nil {
		return newImportError(ErrorKindStorage, "failed to begin transaction", err)
	}

	if err := fn(tx); err != nil {
		_ = imp.store.RollbackTx(tx)
		return newImportError(ErrorKindStorage, "reconciliation rolled back", err)
	}

	if err := imp.store.CommitTx(tx); err != nil {
		return newImportError(ErrorKindStorage, "failed to commit reconciliation", err)
	}
	return nil
}
