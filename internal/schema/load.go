package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/netsync/internal/marshal"
)

// Load error codes, shared with the CLI.
const (
	ErrCodeGeneric     = "E001"
	ErrCodeScanError   = "E002"
	ErrCodeNoFiles     = "E003"
	ErrCodeLoadFailed  = "E004"
	ErrCodeNotFound    = "E005"
	ErrCodeBuildFailed = "E006"
	ErrCodeCompile     = "E010"
)

// LoadMode controls how errors are handled while loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult holds the classes found in a schema directory.
type LoadResult struct {
	Classes   []*marshal.ClassDesc
	FileCount int
}

// LoadError is a load failure with an optional CUE position.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadDir loads every CUE file in dir as one instance and compiles its
// classes, sorted by name.
func LoadDir(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{FileCount: len(files)}
	var errs []error

	classesVal := v.LookupPath(cue.ParsePath("class"))
	if !classesVal.Exists() {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: "no classes found in schemas"}}
	}
	iter, err := classesVal.Fields()
	if err != nil {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating classes: %v", err)}}
	}
	for iter.Next() {
		desc, err := CompileClass(iter.Value())
		if err != nil {
			errs = append(errs, convertCompileError(err, "class."+iter.Label()))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Classes = append(result.Classes, desc)
	}

	slices.SortFunc(result.Classes, func(a, b *marshal.ClassDesc) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return result, errs
}

// FindCUEFiles walks dir and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeCompile,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}
