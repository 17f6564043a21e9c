package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/netsync/internal/marshal"
	"github.com/roach88/netsync/internal/schema"
	"github.com/roach88/netsync/internal/session"
	"github.com/roach88/netsync/internal/store"
)

// loadFactory compiles and validates the classes in dir and registers
// them with a new factory.
func loadFactory(dir, ownerField string) (*session.Factory, error) {
	classes, err := loadClasses(dir, ownerField)
	if err != nil {
		return nil, err
	}
	factory := session.NewFactory()
	for _, c := range classes {
		if err := factory.RegisterClass(c); err != nil {
			return nil, fmt.Errorf("register %s: %w", c.Name, err)
		}
	}
	return factory, nil
}

func loadClasses(dir, ownerField string) ([]*marshal.ClassDesc, error) {
	res, loadErrs := schema.LoadDir(dir, schema.LoadModeFailFast)
	if len(loadErrs) > 0 {
		return nil, loadErrs[0]
	}
	if errs := schema.Validate(res.Classes, ownerField); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return nil, fmt.Errorf("invalid classes: %w", errors.Join(joined...))
	}
	return res.Classes, nil
}

// openExisting opens a journal that must already exist.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "journal not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return st, nil
}
