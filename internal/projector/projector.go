// Package projector flattens a loaded module into one MethodRecord per
// method definition.
package projector

import "github.com/dbsmedya/gosymbol/internal/metadata"

// VoidType is the return type name of methods that return nothing.
const VoidType = "System.Void"

// MethodRecord is the structural summary of one method.
type MethodRecord struct {
	FullyQualifiedName string   `json:"fullyQualifiedName"`
	ContainingClass    *string  `json:"containingClass"`
	AccessModifiers    int      `json:"accessModifiers"`
	Parameters         []string `json:"parameters"`
	ReturnType         string   `json:"returnType"`
	Instructions       int      `json:"instructions"`
}

// Project walks module in type order, then declaration order, and returns
// one record per method. The result is never nil.
func Project(module *metadata.ModuleImage) []MethodRecord {
	records := make([]MethodRecord, 0, module.MethodCount())
	for _, t := range module.Types {
		for _, md := range t.Methods {
			records = append(records, Record(md))
		}
	}
	return records
}

// Record maps a single method definition.
func Record(md *metadata.MethodDefinition) MethodRecord {
	rec := MethodRecord{
		FullyQualifiedName: md.Name,
		AccessModifiers:    Modifiers(md),
		Parameters:         append(make([]string, 0, len(md.Parameters)), md.Parameters...),
		ReturnType:         md.ReturnType,
	}
	if rec.ReturnType == "" {
		rec.ReturnType = VoidType
	}
	if md.DeclaringType != nil {
		name := md.DeclaringType.FullName
		rec.ContainingClass = &name
	}
	if md.HasBody() && md.Instructions > 0 {
		rec.Instructions = md.Instructions
	}
	return rec
}
