package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/netsync/internal/authority"
	"github.com/roach88/netsync/internal/schema"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	OwnerField string
}

// ClassSummary describes one valid class.
type ClassSummary struct {
	Name      string `json:"name"`
	Fields    int    `json:"fields"`
	Replicate bool   `json:"replicate"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool                     `json:"valid"`
	Classes []ClassSummary           `json:"classes,omitempty"`
	Errors  []schema.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <schemas-dir>",
		Short: "Validate class schemas",
		Long: `Compile the CUE class schemas in a directory and check them.

Reports every class that cannot be replicated: unsupported field types,
invalid map keys, empty enums, owner fields that are not integers and
replicated classes without an owner field.

Examples:
  netsync validate ./schemas
  netsync validate ./schemas --owner-field Owner --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.OwnerField, "owner-field", authority.DefaultOwnerField, "property holding the owner client id")

	return cmd
}

func runValidate(opts *ValidateOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := schema.LoadDir(dir, schema.LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *schema.LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message)
		}
		return outputValidateError(formatter, schema.ErrCodeGeneric, loadErrors[0].Error())
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, dir)

	var validationErrors []schema.ValidationError
	for _, err := range loadErrors {
		ve := schema.ValidationError{Field: "load", Message: err.Error(), Code: schema.ErrCodeCompile}
		var loadErr *schema.LoadError
		if errors.As(err, &loadErr) {
			ve.Code = loadErr.Code
			ve.Message = loadErr.Message
		}
		validationErrors = append(validationErrors, ve)
	}
	for _, c := range loadResult.Classes {
		formatter.VerboseLog("Validating class: %s", c.Name)
	}
	validationErrors = append(validationErrors, schema.Validate(loadResult.Classes, opts.OwnerField)...)

	if len(loadResult.Classes) == 0 && len(validationErrors) == 0 {
		validationErrors = append(validationErrors, schema.ValidationError{
			Field:   "schemas",
			Message: "no classes found in schemas",
			Code:    schema.ErrCodeNoFiles,
		})
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	summaries := make([]ClassSummary, len(loadResult.Classes))
	for i, c := range loadResult.Classes {
		summaries[i] = ClassSummary{Name: c.Name, Fields: len(c.Fields), Replicate: c.Replicate}
	}
	return outputValidateSuccess(formatter, summaries)
}

func outputValidateSuccess(formatter *OutputFormatter, classes []ClassSummary) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Classes: classes})
	}

	for _, c := range classes {
		fmt.Fprintf(formatter.Writer, "  %s (%d fields)\n", c.Name, c.Fields)
	}
	fmt.Fprintf(formatter.Writer, "✓ %d class(es) valid\n", len(classes))
	return nil
}

// outputValidateError reports a failure to load the directory at all.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return exitErrorf(ExitCommandError, "%s: %s", code, message)
}

func outputValidationErrors(formatter *OutputFormatter, errs []schema.ValidationError) error {
	failure := exitErrorf(ExitFailure, "validation failed with %d error(s)", len(errs))

	if formatter.Format == "json" {
		err := writeResponse(formatter.Writer, CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		})
		if err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s\n", err.Error())
	}
	return failure
}
