package glesutil

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
)

// =============================================================================
// MODULE TYPES AND STRUCTURES
// =============================================================================

// ModuleExportEntry represents a single module export
type ModuleExportEntry struct {
	Name  string     // Export name
	Value goja.Value // Export value
}

// ModuleBuilder provides a fluent API for building the script module that
// carries the factory functions.
type ModuleBuilder struct {
	name    string
	exports []ModuleExportEntry
}

// DefaultModuleName is the name scripts require() and the runner installs.
const DefaultModuleName = "glesutil"

// DefaultGlobalName is the global the factory is installed under.
const DefaultGlobalName = "Glesutil"

// NewModuleBuilder creates a new ModuleBuilder named name.
func NewModuleBuilder(name string) *ModuleBuilder {
	return &ModuleBuilder{name: name}
}

// Export adds an export to the module.
func (mb *ModuleBuilder) Export(name string, value goja.Value) *ModuleBuilder {
	mb.exports = append(mb.exports, ModuleExportEntry{Name: name, Value: value})
	return mb
}

// Name returns the module name.
func (mb *ModuleBuilder) Name() string { return mb.name }

// validate checks the builder configuration.
func (mb *ModuleBuilder) validate() error {
	if mb.name == "" {
		return errors.New("module name cannot be empty")
	}
	seen := make(map[string]bool)
	for _, export := range mb.exports {
		if export.Name == "" {
			return errors.New("export name cannot be empty")
		}
		if seen[export.Name] {
			return fmt.Errorf("duplicate export name: %s", export.Name)
		}
		seen[export.Name] = true
	}
	return nil
}

// Loader returns a goja_nodejs module loader that copies the exports into
// module.exports of the requiring runtime. The exported values belong to
// vm, requiring the module from another runtime panics with a TypeError.
func (mb *ModuleBuilder) Loader(vm *goja.Runtime) (require.ModuleLoader, error) {
	if err := mb.validate(); err != nil {
		return nil, fmt.Errorf("module validation failed: %w", err)
	}
	return func(rt *goja.Runtime, module *goja.Object) {
		if rt != vm {
			panic(rt.NewTypeError(fmt.Sprintf("module %q is bound to another runtime", mb.name)))
		}
		exports := module.Get("exports").(*goja.Object)
		for _, export := range mb.exports {
			_ = exports.Set(export.Name, export.Value)
		}
	}, nil
}

// Object builds a plain object holding the exports.
func (mb *ModuleBuilder) Object(vm *goja.Runtime) (*goja.Object, error) {
	if err := mb.validate(); err != nil {
		return nil, fmt.Errorf("module validation failed: %w", err)
	}
	obj := vm.NewObject()
	for _, export := range mb.exports {
		if err := obj.Set(export.Name, export.Value); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// =============================================================================
// RUNTIME REGISTRATION
// =============================================================================

// Module returns a builder preloaded with the factory functions.
func (r *Runtime) Module(name string) *ModuleBuilder {
	f := r.Factory()
	return NewModuleBuilder(name).
		Export("initContext", f.Get("initContext")).
		Export("loadImage", f.Get("loadImage"))
}

// Install sets the factory object as the global name.
func (r *Runtime) Install(name string) error {
	if name == "" {
		return errors.New("global name cannot be empty")
	}
	return r.vm.Set(name, r.Factory())
}

// ModuleLoader returns the loader for require(DefaultModuleName).
func (r *Runtime) ModuleLoader() require.ModuleLoader {
	loader, err := r.Module(DefaultModuleName).Loader(r.vm)
	if err != nil {
		// the built-in exports are always valid
		panic(err)
	}
	return loader
}

// Register adds the module to a goja_nodejs registry under name.
func (r *Runtime) Register(registry *require.Registry, name string) error {
	loader, err := r.Module(name).Loader(r.vm)
	if err != nil {
		return err
	}
	registry.RegisterNativeModule(name, loader)
	return nil
}
