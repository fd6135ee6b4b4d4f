package metadata

import (
	"errors"
	"fmt"

	"github.com/dbsmedya/gosymbol/internal/failure"
	"github.com/dbsmedya/gosymbol/internal/graph"
)

// Column positions used by the loader.
const (
	colTypeDefFlags      = 0
	colTypeDefName       = 1
	colTypeDefNamespace  = 2
	colTypeDefMethodList = 5

	colMethodRVA       = 0
	colMethodImplFlags = 1
	colMethodFlags     = 2
	colMethodName      = 3
	colMethodSignature = 4

	colNestedClass    = 0
	colEnclosingClass = 1

	colGenericParamNumber = 0
	colGenericParamOwner  = 2
	colGenericParamName   = 3
)

// moduleReader turns the decoded tables into TypeDefinitions.
type moduleReader struct {
	img *peImage
	ts  *tableStream

	typeNames    []string // full names by TypeDef row-1
	typeRefNames map[uint32]string
	typeParams   map[uint32]map[uint32]string // TypeDef row -> number -> name
	methodParams map[uint32]map[uint32]string // MethodDef row -> number -> name
}

func (m *moduleReader) read() (*ModuleImage, error) {
	if m.ts.count(tabModule) == 0 {
		return nil, corruptf("read module", "module table is empty")
	}
	name, err := m.ts.str(tabModule, 1, 1)
	if err != nil {
		return nil, failure.New(failure.ErrImageCorrupt, "read module", err)
	}

	types, err := m.readTypes()
	if err != nil {
		return nil, err
	}
	if err := m.readGenericParams(); err != nil {
		return nil, err
	}
	if err := m.readMethods(types); err != nil {
		return nil, err
	}
	return &ModuleImage{Name: name, Types: types}, nil
}

// readTypes reads every TypeDef row and names it, resolving nested types
// after their enclosing types.
func (m *moduleReader) readTypes() ([]*TypeDefinition, error) {
	const op = "read types"
	count := m.ts.count(tabTypeDef)
	types := make([]*TypeDefinition, count)
	nesting := graph.NewGraph()

	for row := uint32(1); row <= count; row++ {
		flags, err := m.ts.get(tabTypeDef, row, colTypeDefFlags)
		if err != nil {
			return nil, failure.New(failure.ErrImageCorrupt, op, err)
		}
		name, err := m.ts.str(tabTypeDef, row, colTypeDefName)
		if err != nil {
			return nil, failure.New(failure.ErrImageCorrupt, op, err)
		}
		ns, err := m.ts.str(tabTypeDef, row, colTypeDefNamespace)
		if err != nil {
			return nil, failure.New(failure.ErrImageCorrupt, op, err)
		}
		types[row-1] = &TypeDefinition{Namespace: ns, Name: name, Attributes: flags}
		nesting.AddNode(row)
	}

	for row := uint32(1); row <= m.ts.count(tabNestedClass); row++ {
		nested, err := m.ts.get(tabNestedClass, row, colNestedClass)
		if err != nil {
			return nil, failure.New(failure.ErrImageCorrupt, op, err)
		}
		enclosing, err := m.ts.get(tabNestedClass, row, colEnclosingClass)
		if err != nil {
			return nil, failure.New(failure.ErrImageCorrupt, op, err)
		}
		if nested == 0 || nested > count || enclosing == 0 || enclosing > count {
			return nil, corruptf(op, "NestedClass row %d refers to TypeDef %d/%d of %d", row, nested, enclosing, count)
		}
		nesting.AddEdge(enclosing, nested)
		if nesting.InDegree(nested) > 1 {
			return nil, corruptf(op, "TypeDef %d is nested in more than one type", nested)
		}
	}

	order, err := nesting.TopologicalSort()
	if err != nil {
		return nil, failure.New(failure.ErrImageCorrupt, op, err)
	}
	m.typeNames = make([]string, count)
	for _, row := range order {
		t := types[row-1]
		t.FullName = qualify(t.Namespace, t.Name)
		if enclosing, ok := nesting.Enclosing(row); ok {
			t.DeclaringType = types[enclosing-1]
			t.FullName = t.DeclaringType.FullName + "/" + t.FullName
		}
		m.typeNames[row-1] = t.FullName
	}
	return types, nil
}

func (m *moduleReader) readGenericParams() error {
	const op = "read generic parameters"
	for row := uint32(1); row <= m.ts.count(tabGenericParam); row++ {
		number, err := m.ts.get(tabGenericParam, row, colGenericParamNumber)
		if err != nil {
			return failure.New(failure.ErrImageCorrupt, op, err)
		}
		owner, err := m.ts.get(tabGenericParam, row, colGenericParamOwner)
		if err != nil {
			return failure.New(failure.ErrImageCorrupt, op, err)
		}
		name, err := m.ts.str(tabGenericParam, row, colGenericParamName)
		if err != nil {
			return failure.New(failure.ErrImageCorrupt, op, err)
		}
		table, ownerRow, err := ciTypeOrMethodDef.decode(owner)
		if err != nil {
			return failure.New(failure.ErrImageCorrupt, op, err)
		}

		target := m.typeParams
		if table == tabMethodDef {
			target = m.methodParams
		}
		if target[ownerRow] == nil {
			target[ownerRow] = make(map[uint32]string)
		}
		target[ownerRow][number] = name
	}
	return nil
}

// methodRange returns the logical MethodDef list [start, end) owned by the
// TypeDef at row.
func (m *moduleReader) methodRange(row uint32) (uint32, uint32, error) {
	total := m.ts.listLength(tabMethodPtr, tabMethodDef)
	start, err := m.ts.get(tabTypeDef, row, colTypeDefMethodList)
	if err != nil {
		return 0, 0, err
	}
	end := total + 1
	if row < m.ts.count(tabTypeDef) {
		if end, err = m.ts.get(tabTypeDef, row+1, colTypeDefMethodList); err != nil {
			return 0, 0, err
		}
	}
	// An empty method table allows a list start of 0 or 1.
	if total == 0 && start <= 1 && end <= 1 {
		return 1, 1, nil
	}
	if start == 0 || start > total+1 || end < start || end > total+1 {
		return 0, 0, fmt.Errorf("TypeDef %d method list [%d,%d) outside %d methods", row, start, end, total)
	}
	return start, end, nil
}

func (m *moduleReader) readMethods(types []*TypeDefinition) error {
	for i, t := range types {
		row := uint32(i + 1)
		start, end, err := m.methodRange(row)
		if err != nil {
			return failure.New(failure.ErrImageCorrupt, "read method list", err)
		}
		t.Methods = make([]*MethodDefinition, 0, end-start)
		for idx := start; idx < end; idx++ {
			methodRow, err := m.ts.resolve(tabMethodPtr, idx)
			if err != nil {
				return failure.New(failure.ErrImageCorrupt, "read method list", err)
			}
			md, err := m.readMethod(methodRow, row)
			if err != nil {
				return err
			}
			md.DeclaringType = t
			t.Methods = append(t.Methods, md)
		}
	}
	return nil
}

func (m *moduleReader) readMethod(row, typeRow uint32) (*MethodDefinition, error) {
	op := fmt.Sprintf("read method %d", row)
	wrap := func(err error) error {
		var typed *failure.Error
		if errors.As(err, &typed) {
			return err
		}
		return failure.New(failure.ErrImageCorrupt, op, err)
	}

	rva, err := m.ts.get(tabMethodDef, row, colMethodRVA)
	if err != nil {
		return nil, wrap(err)
	}
	implFlags, err := m.ts.get(tabMethodDef, row, colMethodImplFlags)
	if err != nil {
		return nil, wrap(err)
	}
	flags, err := m.ts.get(tabMethodDef, row, colMethodFlags)
	if err != nil {
		return nil, wrap(err)
	}
	name, err := m.ts.str(tabMethodDef, row, colMethodName)
	if err != nil {
		return nil, wrap(err)
	}
	sig, err := m.ts.blob(tabMethodDef, row, colMethodSignature)
	if err != nil {
		return nil, wrap(err)
	}

	md := &MethodDefinition{
		Name:           name,
		Attributes:     MethodAttributes(flags),
		ImplAttributes: MethodImplAttributes(implFlags),
		RVA:            rva,
	}
	md.ReturnType, md.Parameters, err = m.methodSignature(sig, genericContext{typeRow: typeRow, methodRow: row})
	if err != nil {
		return nil, wrap(fmt.Errorf("signature of %s: %w", name, err))
	}
	if md.Instructions, err = m.instructionCount(md); err != nil {
		return nil, wrap(err)
	}
	return md, nil
}
