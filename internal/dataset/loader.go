package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// LoadError represents an error that occurred during descriptor loading.
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

// Error code constants shared with the CLI.
const (
	ErrCodeGeneric    = "E001" // Generic/unknown error
	ErrCodeScanError  = "E002" // Directory scan error
	ErrCodeNoFiles    = "E003" // No CUE files found
	ErrCodeLoadFailed = "E004" // CUE load failed
	ErrCodeNotFound   = "E005" // Path not found
	ErrCodeBuild      = "E006" // CUE build failed
	ErrCodeInvalid    = "E007" // Descriptor failed validation
)

// LoadDir loads every dataset descriptor declared under `dataset:` in the
// CUE files of dir. Descriptors are returned sorted by name for stable
// batch ordering. The first error encountered aborts the load.
func LoadDir(dir string) ([]Descriptor, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("dataset directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing dataset directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := findCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuild, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	return extractDescriptors(value)
}

// extractDescriptors pulls every entry of the `dataset` struct out of a
// built CUE value.
func extractDescriptors(value cue.Value) ([]Descriptor, error) {
	datasetsVal := value.LookupPath(cue.ParsePath("dataset"))
	if !datasetsVal.Exists() {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: "no datasets found (expected a top-level `dataset` struct)"}
	}

	iter, err := datasetsVal.Fields()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating datasets: %v", err)}
	}

	var descriptors []Descriptor
	for iter.Next() {
		d, err := CompileDescriptor(iter.Value())
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, *d)
	}
	if len(descriptors) == 0 {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: "no datasets found in descriptor files"}
	}

	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Name < descriptors[j].Name })
	return descriptors, nil
}

// CompileDescriptor parses a CUE value into a Descriptor and validates it.
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
//
// The CUE value should be the dataset struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`dataset: transactions: { ... }`)
//	d, err := CompileDescriptor(v.LookupPath(cue.ParsePath("dataset.transactions")))
func CompileDescriptor(v cue.Value) (*Descriptor, error) {
	if err := v.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuild, Message: err.Error(), Pos: v.Pos()}
	}

	d := &Descriptor{}

	// The descriptor name is the struct label (the path selector).
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		d.Name = labels[len(labels)-1].String()
	}

	var err error
	if d.Entity, err = requiredString(v, "entity"); err != nil {
		return nil, err
	}
	if d.Table, err = requiredString(v, "table"); err != nil {
		return nil, err
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: "fields is required", Pos: v.Pos()}
	}
	fieldIter, err := fieldsVal.List()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("fields must be a list: %v", err), Pos: fieldsVal.Pos()}
	}
	for fieldIter.Next() {
		f, err := compileField(fieldIter.Value())
		if err != nil {
			return nil, err
		}
		d.Fields = append(d.Fields, f)
	}

	if err := d.Validate(); err != nil {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: err.Error(), Pos: v.Pos()}
	}
	return d, nil
}

func compileField(v cue.Value) (Field, error) {
	f := Field{Kind: KindText}

	var err error
	if f.Remote, err = requiredString(v, "remote"); err != nil {
		return Field{}, err
	}
	if f.Column, err = requiredString(v, "column"); err != nil {
		return Field{}, err
	}

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if kindVal.Exists() {
		kind, err := kindVal.String()
		if err != nil {
			return Field{}, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("kind: %v", err), Pos: kindVal.Pos()}
		}
		f.Kind = FieldKind(kind)
	}

	keyVal := v.LookupPath(cue.ParsePath("key"))
	if keyVal.Exists() {
		key, err := keyVal.Bool()
		if err != nil {
			return Field{}, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("key: %v", err), Pos: keyVal.Pos()}
		}
		f.Key = key
	}

	return f, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &LoadError{Code: ErrCodeInvalid, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("%s: %v", field, err), Pos: fv.Pos()}
	}
	return s, nil
}

// findCUEFiles walks the directory and returns all .cue file paths.
func findCUEFiles(dir string) ([]string, error) {
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
