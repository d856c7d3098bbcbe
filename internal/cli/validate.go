package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/citycycle/internal/config"
	"github.com/roach88/citycycle/internal/harness"
)

// Validation error codes.
const (
	ErrCodeConfigSchema  = "E_CONFIG_SCHEMA"
	ErrCodeConfigInvalid = "E_CONFIG_INVALID"
	ErrCodeScenario      = "E_SCENARIO"
)

// ValidationIssue is one problem found by validate.
type ValidationIssue struct {
	Source  string `json:"source"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Config    string            `json:"config"`
	Scenarios int               `json:"scenarios"`
	Errors    []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [scenario-files...]",
		Short: "Validate the config and scenario files",
		Long: `Validate citycycle.yaml against its schema and threshold rules, and
check that every scenario file given parses and is well formed.

Nothing is read from or written to the store.

Example:
  citycycle validate
  citycycle validate --config ./prod.yaml ./scenarios/*.yaml`,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, scenarios []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	source := opts.Config
	if source == "" {
		source = config.DefaultPath
	}
	result := ValidationResult{Config: source, Scenarios: len(scenarios)}

	cfg, err := config.Load(opts.Config)
	switch {
	case err == nil:
		formatter.VerboseLog("Config %s valid (store driver %s)", source, cfg.Store.Driver)
	default:
		var ve *config.ValidationError
		if errors.As(err, &ve) {
			for _, issue := range ve.Issues {
				result.Errors = append(result.Errors, ValidationIssue{Source: source, Code: ErrCodeConfigSchema, Message: issue})
			}
		} else {
			result.Errors = append(result.Errors, ValidationIssue{Source: source, Code: ErrCodeConfigInvalid, Message: err.Error()})
		}
	}

	for _, path := range scenarios {
		formatter.VerboseLog("Validating scenario: %s", path)
		if _, err := harness.LoadScenario(path); err != nil {
			result.Errors = append(result.Errors, ValidationIssue{Source: path, Code: ErrCodeScenario, Message: err.Error()})
		}
	}

	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	result.Valid = true
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	if result.Scenarios > 0 {
		formatter.Pass("Config and %d scenario(s) valid", result.Scenarios)
		return nil
	}
	formatter.Pass("Config valid")
	return nil
}

// outputValidationErrors outputs every validation issue.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	formatter.Fail("Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "%s\n", err.Source)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
