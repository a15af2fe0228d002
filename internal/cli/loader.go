package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"cuelang.org/go/cue/token"

	"github.com/roach88/cpurt/internal/compiler"
	"github.com/roach88/cpurt/internal/ir"
)

// LoadError represents an error that occurred while loading a module.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Detail returns the message prefixed with its CUE position, if any.
func (e *LoadError) Detail() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeStoreFailed = "E008" // Run log could not be opened or written

	// Module description errors
	ErrCodeModuleSyntax = "E101" // CUE value does not describe a valid module
)

// LoadModule compiles the module at path (a .cue file or a package
// directory), converting failures to *LoadError.
func LoadModule(path string) (*ir.Module, error) {
	m, err := compiler.Load(path)
	if err != nil {
		return nil, convertLoadError(err)
	}
	return m, nil
}

// convertLoadError maps front-end errors to CLI error codes, keeping CUE
// positions where the front-end reported them.
func convertLoadError(err error) *LoadError {
	var compileErr *compiler.CompileError
	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		code := ErrCodeLoadFailed
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("module not found: %s", loadErr.Path)}
		case loadErr.Stage == compiler.StageStat:
			code = ErrCodeNotFound
		case loadErr.Stage == compiler.StageBuild:
			code = ErrCodeBuildFailed
		}
		le := &LoadError{Code: code, Message: loadErr.Err.Error()}
		if errors.As(loadErr.Err, &compileErr) {
			le.Message = compileErr.Message
			le.Pos = compileErr.Pos
		}
		return le
	}
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeModuleSyntax,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// outputLoadError reports a LoadModule failure and returns the command
// error (exit code 2).
func outputLoadError(formatter *OutputFormatter, err error) error {
	var le *LoadError
	if !errors.As(err, &le) {
		le = &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}
	_ = formatter.Error(le.Code, le.Detail(), nil)
	return WrapExitError(ExitCommandError, "failed to load module", err)
}
