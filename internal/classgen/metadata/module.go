package metadata

import (
	"fmt"
	"sort"
)

// ModuleExtension is the file extension of the module index.
const ModuleExtension = ".kgql_module"

// ModulePath is where the index of a module is stored in the output.
func ModulePath(module string) string {
	return "META-INF/" + module + ModuleExtension
}

// Module is the module index: for each package, the facade classes and the
// top-level functions they host.
type Module struct {
	Version  uint32         `json:"version" yaml:"version"`
	Name     string         `json:"name" yaml:"name"`
	Packages []PackageParts `json:"packages" yaml:"packages"`
}

// PackageParts lists the facades of one package.
type PackageParts struct {
	Package string        `json:"package" yaml:"package"`
	Facades []FacadeEntry `json:"facades" yaml:"facades"`
}

// FacadeEntry is one facade class (internal name) and its function names.
type FacadeEntry struct {
	Class     string   `json:"class" yaml:"class"`
	Functions []string `json:"functions,omitempty" yaml:"functions,omitempty"`
}

// AddFacade records a facade under its package, keeping packages sorted.
func (m *Module) AddFacade(pkg string, entry FacadeEntry) {
	i := sort.Search(len(m.Packages), func(i int) bool { return m.Packages[i].Package >= pkg })
	if i == len(m.Packages) || m.Packages[i].Package != pkg {
		m.Packages = append(m.Packages, PackageParts{})
		copy(m.Packages[i+1:], m.Packages[i:])
		m.Packages[i] = PackageParts{Package: pkg}
	}
	m.Packages[i].Facades = append(m.Packages[i].Facades, entry)
}

// Facades lists every facade class in the index.
func (m *Module) Facades() []string {
	var out []string
	for _, p := range m.Packages {
		for _, f := range p.Facades {
			out = append(out, f.Class)
		}
	}
	return out
}

// Marshal encodes the module index.
func (m *Module) Marshal() []byte {
	e := &encoder{}
	e.uint(1, uint64(m.Version))
	e.str(2, m.Name)
	for _, p := range m.Packages {
		e.msg(3, func(e *encoder) {
			e.str(1, p.Package)
			for _, f := range p.Facades {
				e.msg(2, func(e *encoder) {
					e.str(1, f.Class)
					e.strings(2, f.Functions)
				})
			}
		})
	}
	return e.b
}

// UnmarshalModule decodes a module index.
func UnmarshalModule(b []byte) (*Module, error) {
	m := &Module{}
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Version = uint32(f.varint)
		case 2:
			m.Name = f.str()
		case 3:
			var p PackageParts
			err := walk(f.bytes, func(f field) error {
				switch f.num {
				case 1:
					p.Package = f.str()
				case 2:
					var entry FacadeEntry
					err := walk(f.bytes, func(f field) error {
						switch f.num {
						case 1:
							entry.Class = f.str()
						case 2:
							entry.Functions = append(entry.Functions, f.str())
						}
						return nil
					})
					if err != nil {
						return err
					}
					p.Facades = append(p.Facades, entry)
				}
				return nil
			})
			if err != nil {
				return err
			}
			m.Packages = append(m.Packages, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("metadata: module index: %w", err)
	}
	if m.Version != Version {
		return nil, fmt.Errorf("metadata: unsupported module index version %d", m.Version)
	}
	return m, nil
}
