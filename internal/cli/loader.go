package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ingestlab/internal/compiler"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No HTML documents found
	ErrCodeLoadFailed  = "E004" // Rule file failed to decode or build
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // Analysis or extraction failed
	ErrCodeWriteFailed = "E007" // Database write error
	ErrCodeMissingArg  = "E008" // Required path given neither as argument nor in config
)

// LoadError represents an error that occurred while loading command inputs.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadRules reads and builds a rule document from a .json, .yaml, .yml or
// .cue file.
func LoadRules(path string) (*compiler.Loaded, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("rules file not found: %s", path), Err: err}
	}
	loaded, err := compiler.LoadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("%s: %v", path, err), Err: err}
	}
	return loaded, nil
}

// LoadDocuments reads every .html and .htm file under dir. Documents are
// keyed by their slash-separated path relative to dir.
func LoadDocuments(dir string) (map[string]string, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("documents directory not found: %s", dir), Err: err}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing documents directory: %v", err), Err: err}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	paths, err := FindHTMLFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err), Err: err}
	}
	if len(paths) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no HTML documents found in %s", dir)}
	}

	docs := make(map[string]string, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("reading %s: %v", p, err), Err: err}
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: err.Error(), Err: err}
		}
		docs[filepath.ToSlash(rel)] = string(data)
	}
	return docs, nil
}

// FindHTMLFiles walks the directory and returns all .html/.htm paths in
// lexical order.
func FindHTMLFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".html", ".htm":
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// inputs are the rule document and documents a command operates on.
type inputs struct {
	Rules *compiler.Loaded
	Docs  map[string]string
}

// resolvePaths fills rules and documents paths from positional arguments,
// falling back to the project config.
func resolvePaths(opts *RootOptions, args []string, needDocs bool) (rules, docs string, err error) {
	cfg := opts.settings()
	rules, docs = cfg.Rules, cfg.Documents
	if len(args) > 0 {
		rules = args[0]
	}
	if len(args) > 1 {
		docs = args[1]
	}
	if rules == "" {
		return "", "", &LoadError{Code: ErrCodeMissingArg, Message: "no rules file given (argument or config \"rules\")"}
	}
	if needDocs && docs == "" {
		return "", "", &LoadError{Code: ErrCodeMissingArg, Message: "no documents directory given (argument or config \"documents\")"}
	}
	return rules, docs, nil
}

// loadInputs resolves paths and loads rules plus documents.
func loadInputs(opts *RootOptions, args []string, formatter *OutputFormatter) (*inputs, error) {
	rulesPath, docsDir, err := resolvePaths(opts, args, true)
	if err != nil {
		return nil, err
	}
	loaded, err := LoadRules(rulesPath)
	if err != nil {
		return nil, err
	}
	docs, err := LoadDocuments(docsDir)
	if err != nil {
		return nil, err
	}
	formatter.VerboseLog("Loaded %d resource(s) from %s and %d document(s) from %s",
		len(loaded.Doc.ResourceNames()), rulesPath, len(docs), docsDir)
	return &inputs{Rules: loaded, Docs: docs}, nil
}

// newFormatter builds the output formatter for a command.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// commandError reports err through the formatter and converts it into an
// ExitError with ExitCommandError.
func commandError(formatter *OutputFormatter, message string, err error) error {
	code := ErrCodeGeneric
	msg := err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code = loadErr.Code
		msg = loadErr.Message
	}
	_ = formatter.Error(code, msg, nil)
	return WrapExitError(ExitCommandError, message, err)
}
