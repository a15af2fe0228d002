package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/cpurt/internal/ir"
)

// Load stages reported by LoadError.
const (
	StageStat  = "stat"
	StageLoad  = "load"
	StageBuild = "build"
)

// LoadError reports a failure to turn a path into a CUE value. Errors in
// the module description itself are returned as *CompileError instead.
type LoadError struct {
	Stage string
	Path  string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load compiles the module described at path. A file is loaded on its
// own; a directory is loaded as one CUE package, so a module may be split
// across files.
func Load(path string) (*ir.Module, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Stage: StageStat, Path: path, Err: err}
	}

	cfg := &load.Config{Dir: path}
	args := []string{"."}
	if !info.IsDir() {
		cfg.Dir = filepath.Dir(path)
		args = []string{filepath.Base(path)}
	}

	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Stage: StageLoad, Path: path, Err: fmt.Errorf("no CUE instances loaded")}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Stage: StageLoad, Path: path, Err: inst.Err}
	}

	v := cuecontext.New().BuildInstance(inst)
	if err := v.Validate(); err != nil {
		return nil, &LoadError{Stage: StageBuild, Path: path, Err: formatCUEError(err)}
	}
	return CompileModule(v)
}
