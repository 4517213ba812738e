package storage

import (
	"context"
	"fmt"
	"relastore/internal/ident"
	"strings"
)

// Move renames oldName to newName, keeping the object's identity.
//
// With ReplaceExisting an existing newName is deleted first, as a separate
// statement. AtomicMove demands a store bound to a transaction so the pair
// commits together; without one it always fails with
// ErrPreconditionFailed.
func (s *Store) Move(ctx context.Context, oldName, newName string, opts ...CopyOption) error {
	mode, err := parseCopyOptions(opts)
	if err != nil {
		return fmt.Errorf("file %q: %w", oldName, err)
	}
	if mode.atomic && !s.inTx {
		return fmt.Errorf("file %q: %w: atomic move requires an active transaction", oldName, ErrPreconditionFailed)
	}

	if oldName == newName {
		return s.mustExist(ctx, oldName)
	}

	if mode.replace {
		// Never drop the destination for a source that is not there.
		if err := s.mustExist(ctx, oldName); err != nil {
			return err
		}
		if _, err := s.exec(ctx, "DELETE FROM "+s.table+" WHERE "+s.cols.filename+" = ?", newName); err != nil {
			return classify(newName, err)
		}
	}

	res, err := s.exec(ctx, "UPDATE "+s.table+" SET "+s.cols.filename+" = ? WHERE "+s.cols.filename+" = ?", newName, oldName)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("file %q: %w", newName, ErrAlreadyExists)
		}
		return classify(oldName, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return classify(oldName, err)
	}
	if n == 0 {
		return fmt.Errorf("file %q: %w", oldName, ErrNotFound)
	}

	s.cfg.Logger.Debug("Moved file", "from", oldName, "to", newName, "replace", mode.replace)
	return nil
}

// Copy duplicates srcName as dstName under a fresh identity.
//
// With ReplaceExisting an existing dstName is overwritten column by column
// from srcName and keeps its own identity. AtomicMove is not meaningful for
// a copy and is rejected.
func (s *Store) Copy(ctx context.Context, srcName, dstName string, opts ...CopyOption) error {
	mode, err := parseCopyOptions(opts)
	if err != nil {
		return fmt.Errorf("file %q: %w", srcName, err)
	}
	if mode.atomic {
		return fmt.Errorf("file %q: %w: %s", srcName, ErrUnsupportedOption, AtomicMove)
	}

	if srcName == dstName {
		return s.mustExist(ctx, srcName)
	}

	if mode.replace {
		exists, err := s.Exists(ctx, dstName)
		if err != nil {
			return err
		}
		if exists {
			return s.overwrite(ctx, srcName, dstName)
		}
	}

	c := s.cols
	q := "INSERT INTO " + s.table + " (" +
		c.uuid + ", " + c.filename + ", " + c.length + ", " + c.modified + ", " +
		c.compressed + ", " + c.encrypted + ", " + c.contents +
		") SELECT ?, ?, " +
		c.length + ", " + c.modified + ", " + c.compressed + ", " + c.encrypted + ", " + c.contents +
		" FROM " + s.table + " WHERE " + c.filename + " = ?"

	res, err := s.exec(ctx, q, ident.Encode(ident.New()), dstName, srcName)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("file %q: %w", dstName, ErrAlreadyExists)
		}
		return classify(srcName, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return classify(srcName, err)
	}
	if n == 0 {
		return fmt.Errorf("file %q: %w", srcName, ErrNotFound)
	}

	s.cfg.Logger.Debug("Copied file", "from", srcName, "to", dstName)
	return nil
}

// overwrite copies every column but filename and uuid from srcName onto the
// existing dstName. Each column is pulled by its own subquery because not
// every backend accepts a multi-column correlated update. The subqueries
// read through a derived table so MySQL accepts a subquery on the table
// being updated.
func (s *Store) overwrite(ctx context.Context, srcName, dstName string) error {
	if err := s.mustExist(ctx, srcName); err != nil {
		return err
	}

	c := s.cols
	copied := []string{c.length, c.modified, c.compressed, c.encrypted, c.contents}

	sets := make([]string, 0, len(copied))
	args := make([]any, 0, len(copied)+1)
	for _, col := range copied {
		sets = append(sets, col+" = (SELECT src."+col+" FROM (SELECT "+col+" FROM "+s.table+" WHERE "+c.filename+" = ?) src)")
		args = append(args, srcName)
	}
	args = append(args, dstName)

	q := "UPDATE " + s.table + " SET " + strings.Join(sets, ", ") + " WHERE " + c.filename + " = ?"

	res, err := s.exec(ctx, q, args...)
	if err != nil {
		return classify(dstName, err)
	}
	if err := expectOne(dstName, res); err != nil {
		return err
	}

	s.cfg.Logger.Debug("Copied file over existing", "from", srcName, "to", dstName)
	return nil
}

func (s *Store) mustExist(ctx context.Context, name string) error {
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("file %q: %w", name, ErrNotFound)
	}
	return nil
}
